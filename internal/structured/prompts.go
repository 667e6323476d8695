package structured

import (
	"encoding/json"
	"strconv"
	"strings"
)

const extractionPrompt = `Extract the education and work experience from the resume below.

Return a single JSON object with exactly these keys:
{
  "education": [
    {"institute": "", "location": "", "degree": "", "major": "", "startDate": "", "endDate": "", "gpa": "", "relevantCoursework": "", "other": ""}
  ],
  "workExperience": [
    {"jobTitle": "", "company": "", "location": "", "startDate": "", "endDate": "", "responsibilities": [""]}
  ]
}

Use an empty string for unknown values and an empty array when a section is absent.
Do not invent information. Respond with JSON only.

Resume:
`

const mergePrompt = `The JSON documents below describe the same person's resume, submitted at different times.
Consolidate them into one document with the same shape:
- keep every distinct education and work experience entry once
- when entries describe the same school or job, combine them and prefer the most complete values
- keep responsibilities unique, in their original order
- the first document is the newest submission; prefer its values on conflict

Respond with a single JSON object with keys "education" and "workExperience" only.

Documents:
`

func buildExtractionPrompt(rawText string) string {
	return extractionPrompt + strings.TrimSpace(rawText)
}

func buildMergePrompt(newest StructuredRecord, others []StructuredRecord) string {
	var b strings.Builder
	b.WriteString(mergePrompt)
	all := append([]StructuredRecord{newest}, others...)
	for i, rec := range all {
		payload, err := json.Marshal(rec.Normalized())
		if err != nil {
			continue
		}
		b.WriteString("\n--- document ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(" ---\n")
		b.Write(payload)
		b.WriteString("\n")
	}
	return b.String()
}
