package structured

import (
	"regexp"
	"strings"
	"unicode"
)

type section int

const (
	sectionNone section = iota
	sectionEducation
	sectionWork
)

var (
	dateRangeRe = regexp.MustCompile(`(?i)\b((?:(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+)?(?:19|20)\d{2})\s*(?:-|–|—|to)\s*((?:(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+)?(?:19|20)\d{2}|present|current|now)\b`)
	gpaRe       = regexp.MustCompile(`(?i)\bgpa\b\s*[:=]?\s*([0-9]+(?:\.[0-9]+)?(?:\s*/\s*[0-9]+(?:\.[0-9]+)?)?)`)
	degreeRe    = regexp.MustCompile(`(?i)\b(bachelor|master|associate|doctor|ph\.?d|mba|b\.?sc?|m\.?sc?|b\.?a|m\.?a|b\.?eng|m\.?eng|diploma|degree)\b`)
	headerRe    = regexp.MustCompile(`^[a-z][a-z &/]{1,40}:$`)
)

// ParseFallback is the rule-based extractor used when AI extraction is
// unavailable. It scans lines for section markers and entry heuristics.
// It never panics; on unexpected input it returns whatever was collected,
// at worst two empty sequences.
func ParseFallback(text string) (rec StructuredRecord) {
	p := &fallbackParser{}
	defer func() {
		if r := recover(); r != nil {
			rec = p.result()
		}
	}()
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		p.feed(line)
	}
	return p.result()
}

type fallbackParser struct {
	section          section
	education        []Education
	work             []WorkExperience
	responsibilities bool
}

func (p *fallbackParser) result() StructuredRecord {
	return StructuredRecord{Education: p.education, WorkExperience: p.work}.Normalized()
}

func (p *fallbackParser) feed(raw string) {
	line := strings.TrimSpace(strings.Map(printable, raw))
	if line == "" {
		return
	}
	lower := strings.ToLower(line)

	switch {
	case strings.Contains(lower, "education:"):
		p.section = sectionEducation
		p.responsibilities = false
		return
	case strings.Contains(lower, "work experience:"), strings.Contains(lower, "professional experience:"), lower == "experience:":
		p.section = sectionWork
		p.responsibilities = false
		return
	case p.section == sectionWork && strings.HasPrefix(lower, "responsibilities:"):
		p.responsibilities = true
		if rest := strings.TrimSpace(line[len("responsibilities:"):]); rest != "" {
			p.addResponsibility(rest)
		}
		return
	case headerRe.MatchString(lower) && !strings.Contains(lower, "coursework"):
		p.section = sectionNone
		p.responsibilities = false
		return
	}

	indented := len(raw) > 0 && unicode.IsSpace(rune(raw[0]))
	dash := strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•") || strings.HasPrefix(line, "*")
	body := strings.TrimSpace(strings.TrimLeft(line, "-•* "))

	switch p.section {
	case sectionEducation:
		if dash || len(p.education) == 0 {
			p.education = append(p.education, Education{})
		}
		p.fillEducation(body)
	case sectionWork:
		if p.responsibilities && dash && indented {
			p.addResponsibility(body)
			return
		}
		if dash || len(p.work) == 0 {
			p.responsibilities = false
			p.work = append(p.work, WorkExperience{})
			p.fillWork(body, true)
			return
		}
		if p.responsibilities {
			p.addResponsibility(body)
			return
		}
		p.fillWork(body, false)
	}
}

func (p *fallbackParser) fillEducation(text string) {
	e := &p.education[len(p.education)-1]
	if m := gpaRe.FindStringSubmatch(text); m != nil {
		if e.GPA == "" {
			e.GPA = strings.ReplaceAll(m[1], " ", "")
		}
		text = strings.TrimSpace(gpaRe.ReplaceAllString(text, ""))
	}
	if start, end, rest, ok := splitDateRange(text); ok {
		if e.StartDate == "" {
			e.StartDate, e.EndDate = start, end
		}
		text = rest
	}
	text = strings.Trim(text, " ,;|")
	if text == "" {
		return
	}
	head, _ := splitPlace(text)
	switch {
	case strings.Contains(strings.ToLower(text), "coursework"):
		e.RelevantCoursework = afterColon(text)
	case degreeRe.MatchString(head) && e.Degree == "":
		e.Degree, e.Major = splitDegree(text)
	case e.Institute == "":
		e.Institute, e.Location = splitPlace(text)
	default:
		e.Other = joinNonEmpty(e.Other, text)
	}
}

func (p *fallbackParser) fillWork(text string, first bool) {
	w := &p.work[len(p.work)-1]
	if start, end, rest, ok := splitDateRange(text); ok {
		if w.StartDate == "" {
			w.StartDate, w.EndDate = start, end
		}
		text = rest
	}
	text = strings.Trim(text, " ,;|")
	if text == "" {
		return
	}
	switch {
	case first:
		title, company := splitAt(text)
		w.JobTitle = title
		if company != "" {
			w.Company, w.Location = splitPlace(company)
		}
	case w.Company == "":
		w.Company, w.Location = splitPlace(text)
	case w.JobTitle == "":
		w.JobTitle = text
	default:
		w.Responsibilities = append(w.Responsibilities, text)
	}
}

func (p *fallbackParser) addResponsibility(text string) {
	if len(p.work) == 0 {
		p.work = append(p.work, WorkExperience{})
	}
	text = strings.TrimSpace(strings.TrimLeft(text, "-•* "))
	if text == "" {
		return
	}
	w := &p.work[len(p.work)-1]
	w.Responsibilities = append(w.Responsibilities, text)
}

func splitDateRange(text string) (start, end, rest string, ok bool) {
	loc := dateRangeRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", "", text, false
	}
	start = text[loc[2]:loc[3]]
	end = text[loc[4]:loc[5]]
	if strings.EqualFold(end, "current") || strings.EqualFold(end, "now") || strings.EqualFold(end, "present") {
		end = "Present"
	}
	rest = strings.TrimSpace(text[:loc[0]] + " " + text[loc[1]:])
	rest = strings.Trim(rest, " ,;|()")
	return start, end, rest, true
}

// splitPlace splits "Name, City, ST" into the name and the remaining location.
func splitPlace(text string) (string, string) {
	name, loc, found := strings.Cut(text, ",")
	if !found {
		return strings.TrimSpace(text), ""
	}
	return strings.TrimSpace(name), strings.TrimSpace(loc)
}

// splitAt splits "Title at Company" or "Title | Company" headers.
func splitAt(text string) (string, string) {
	lower := strings.ToLower(text)
	if i := strings.Index(lower, " at "); i > 0 {
		return strings.TrimSpace(text[:i]), strings.TrimSpace(text[i+4:])
	}
	if title, company, ok := strings.Cut(text, "|"); ok {
		return strings.TrimSpace(title), strings.TrimSpace(company)
	}
	return strings.TrimSpace(text), ""
}

func splitDegree(text string) (string, string) {
	lower := strings.ToLower(text)
	for _, sep := range []string{" in ", ", "} {
		if i := strings.Index(lower, sep); i > 0 {
			return strings.TrimSpace(text[:i]), strings.TrimSpace(text[i+len(sep):])
		}
	}
	return text, ""
}

func afterColon(text string) string {
	if _, rest, ok := strings.Cut(text, ":"); ok {
		return strings.TrimSpace(rest)
	}
	return text
}

func joinNonEmpty(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

func printable(r rune) rune {
	if r == '\t' {
		return ' '
	}
	if r == unicode.ReplacementChar || !unicode.IsPrint(r) {
		return -1
	}
	return r
}
