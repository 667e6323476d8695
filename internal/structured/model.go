package structured

import "time"

// Education is one education entry of a structured resume.
type Education struct {
	Institute          string `json:"institute"`
	Location           string `json:"location"`
	Degree             string `json:"degree"`
	Major              string `json:"major"`
	StartDate          string `json:"startDate"`
	EndDate            string `json:"endDate"`
	GPA                string `json:"gpa"`
	RelevantCoursework string `json:"relevantCoursework"`
	Other              string `json:"other"`
}

// WorkExperience is one job entry of a structured resume.
type WorkExperience struct {
	JobTitle         string   `json:"jobTitle"`
	Company          string   `json:"company"`
	Location         string   `json:"location"`
	StartDate        string   `json:"startDate"`
	EndDate          string   `json:"endDate"`
	Responsibilities []string `json:"responsibilities"`
}

// StructuredRecord is the payload produced by extraction or merge.
type StructuredRecord struct {
	Education      []Education      `json:"education"`
	WorkExperience []WorkExperience `json:"workExperience"`
}

// Normalized returns a copy whose sequences are never nil.
func (s StructuredRecord) Normalized() StructuredRecord {
	out := StructuredRecord{
		Education:      make([]Education, len(s.Education)),
		WorkExperience: make([]WorkExperience, len(s.WorkExperience)),
	}
	copy(out.Education, s.Education)
	for i, w := range s.WorkExperience {
		resp := make([]string, len(w.Responsibilities))
		copy(resp, w.Responsibilities)
		w.Responsibilities = resp
		out.WorkExperience[i] = w
	}
	return out
}

// IsEmpty reports whether the payload carries no entries.
func (s StructuredRecord) IsEmpty() bool {
	return len(s.Education) == 0 && len(s.WorkExperience) == 0
}

// ResumeRecord is the persisted unit of the ingestion pipeline.
//
// Superseded and IsMergedDocument are independent: a record folded into a
// later merge is Superseded, while the merge output itself is
// IsMergedDocument. A merge output can later be superseded in turn.
type ResumeRecord struct {
	ID               string
	UserID           string
	RawContent       string
	ParsedData       StructuredRecord
	ContentHash      string
	Keywords         []string
	SimilarDocuments []string
	IsMergedDocument bool
	Superseded       bool
	SupersededBy     string
	SupersededAt     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Active reports whether the record takes part in duplicate and similarity checks.
func (r ResumeRecord) Active() bool {
	return !r.Superseded
}

// ContentUpdate carries the fields refreshed when identical content is resubmitted.
type ContentUpdate struct {
	RawContent string
	ParsedData StructuredRecord
	Keywords   []string
	UpdatedAt  time.Time
}

// ListOptions controls ListByUser.
type ListOptions struct {
	IncludeSuperseded bool
	Limit             int
	Offset            int
}

func (o ListOptions) normalized() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 20
	}
	if o.Limit > 100 {
		o.Limit = 100
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
