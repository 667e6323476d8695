package structured

import "time"

// ingestRequest is the body of POST /structured-data.
type ingestRequest struct {
	Content string `json:"content" binding:"required,max=200000"`
}

// IngestResponse is the outward-facing result of an ingestion.
type IngestResponse struct {
	Status      Status           `json:"status"`
	Message     string           `json:"message"`
	Data        StructuredRecord `json:"data"`
	MergedCount int              `json:"mergedCount,omitempty"`
	RecordID    string           `json:"recordId"`
}

// RecordResponse is the outward-facing representation of a resume record.
type RecordResponse struct {
	RecordID         string           `json:"recordId"`
	Data             StructuredRecord `json:"data"`
	Keywords         []string         `json:"keywords"`
	SimilarDocuments []string         `json:"similarDocuments"`
	IsMergedDocument bool             `json:"isMergedDocument"`
	Superseded       bool             `json:"superseded"`
	SupersededBy     string           `json:"supersededBy,omitempty"`
	SupersededAt     *time.Time       `json:"supersededAt,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// ToIngestResponse renders an IngestResult for the API.
func ToIngestResponse(res IngestResult) IngestResponse {
	return IngestResponse{
		Status:      res.Status,
		Message:     res.Message,
		Data:        res.Data.Normalized(),
		MergedCount: res.MergedCount,
		RecordID:    res.Record.ID,
	}
}

// ToRecordResponse converts a stored record for output.
func ToRecordResponse(rec ResumeRecord) RecordResponse {
	return RecordResponse{
		RecordID:         rec.ID,
		Data:             rec.ParsedData.Normalized(),
		Keywords:         nonNil(rec.Keywords),
		SimilarDocuments: nonNil(rec.SimilarDocuments),
		IsMergedDocument: rec.IsMergedDocument,
		Superseded:       rec.Superseded,
		SupersededBy:     rec.SupersededBy,
		SupersededAt:     rec.SupersededAt,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
}
