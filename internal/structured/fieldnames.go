package structured

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// fieldAliases maps a compacted field name (lowercase, separators removed)
// to the canonical camelCase key. camelCase, PascalCase and snake_case
// spellings all compact to the same entry, so one table covers the naming
// conventions found in stored payloads and model output.
var fieldAliases = map[string]string{
	"education":          "education",
	"educations":         "education",
	"workexperience":     "workExperience",
	"workexperiences":    "workExperience",
	"experience":         "workExperience",
	"institute":          "institute",
	"institution":        "institute",
	"school":             "institute",
	"university":         "institute",
	"location":           "location",
	"degree":             "degree",
	"major":              "major",
	"fieldofstudy":       "major",
	"startdate":          "startDate",
	"start":              "startDate",
	"enddate":            "endDate",
	"end":                "endDate",
	"gpa":                "gpa",
	"relevantcoursework": "relevantCoursework",
	"coursework":         "relevantCoursework",
	"other":              "other",
	"jobtitle":           "jobTitle",
	"title":              "jobTitle",
	"position":           "jobTitle",
	"company":            "company",
	"employer":           "company",
	"responsibilities":   "responsibilities",
	"highlights":         "responsibilities",
}

// canonicalKey resolves a field name in any supported spelling.
func canonicalKey(name string) (string, bool) {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if r == '_' || r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	key, ok := fieldAliases[b.String()]
	return key, ok
}

// canonicalizeKeys rewrites every known object key of a decoded JSON value
// to its canonical spelling. Unknown keys are kept as-is. When two spellings
// of the same field are present the first non-null one wins.
func canonicalizeKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			key := k
			if canon, ok := canonicalKey(k); ok {
				key = canon
			}
			if existing, ok := out[key]; ok && existing != nil {
				continue
			}
			out[key] = canonicalizeKeys(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = canonicalizeKeys(child)
		}
		return out
	default:
		return v
	}
}

// decodeFields splits a JSON object into canonical keys.
func decodeFields(data []byte) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		key, ok := canonicalKey(k)
		if !ok {
			continue
		}
		if existing, ok := out[key]; ok && !isNull(existing) {
			continue
		}
		out[key] = v
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// scalarString renders a JSON scalar as a string. null and objects become
// "", numbers keep their literal text and arrays are joined with ", ".
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return ""
		}
		return strconv.FormatBool(b)
	case '[':
		parts := stringList(raw)
		return strings.Join(parts, ", ")
	case '{':
		return ""
	default:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return ""
		}
		return n.String()
	}
}

// stringList decodes a JSON array of scalars, or a single scalar, into a
// list of non-empty strings.
func stringList(raw json.RawMessage) []string {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return []string{}
	}
	if raw[0] != '[' {
		if s := scalarString(raw); s != "" {
			return []string{s}
		}
		return []string{}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := scalarString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// objectList decodes a JSON array of objects, or a single object.
func objectList(raw json.RawMessage) []json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if isNull(raw) {
		return nil
	}
	if raw[0] == '{' {
		return []json.RawMessage{raw}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := items[:0]
	for _, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '{' {
			out = append(out, item)
		}
	}
	return out
}

// UnmarshalJSON accepts any supported field naming convention.
func (e *Education) UnmarshalJSON(data []byte) error {
	fields, err := decodeFields(data)
	if err != nil {
		return err
	}
	*e = Education{
		Institute:          scalarString(fields["institute"]),
		Location:           scalarString(fields["location"]),
		Degree:             scalarString(fields["degree"]),
		Major:              scalarString(fields["major"]),
		StartDate:          scalarString(fields["startDate"]),
		EndDate:            scalarString(fields["endDate"]),
		GPA:                scalarString(fields["gpa"]),
		RelevantCoursework: scalarString(fields["relevantCoursework"]),
		Other:              scalarString(fields["other"]),
	}
	return nil
}

// UnmarshalJSON accepts any supported field naming convention.
func (w *WorkExperience) UnmarshalJSON(data []byte) error {
	fields, err := decodeFields(data)
	if err != nil {
		return err
	}
	*w = WorkExperience{
		JobTitle:         scalarString(fields["jobTitle"]),
		Company:          scalarString(fields["company"]),
		Location:         scalarString(fields["location"]),
		StartDate:        scalarString(fields["startDate"]),
		EndDate:          scalarString(fields["endDate"]),
		Responsibilities: stringList(fields["responsibilities"]),
	}
	return nil
}

// UnmarshalJSON accepts any supported field naming convention. Missing or
// null sections decode to empty sequences.
func (s *StructuredRecord) UnmarshalJSON(data []byte) error {
	fields, err := decodeFields(data)
	if err != nil {
		return err
	}
	out := StructuredRecord{
		Education:      []Education{},
		WorkExperience: []WorkExperience{},
	}
	for _, item := range objectList(fields["education"]) {
		var e Education
		if err := json.Unmarshal(item, &e); err != nil {
			return err
		}
		out.Education = append(out.Education, e)
	}
	for _, item := range objectList(fields["workExperience"]) {
		var w WorkExperience
		if err := json.Unmarshal(item, &w); err != nil {
			return err
		}
		out.WorkExperience = append(out.WorkExperience, w)
	}
	*s = out
	return nil
}
