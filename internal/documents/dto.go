package documents

import (
	"time"

	"resume-builder/internal/structured"
)

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	DocumentID  string     `json:"documentId"`
	FileName    string     `json:"fileName"`
	MimeType    string     `json:"mimeType"`
	SizeBytes   int64      `json:"sizeBytes"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	RecordID    string     `json:"recordId,omitempty"`
	UploadedAt  time.Time  `json:"uploadedAt"`
	ExtractedAt *time.Time `json:"extractedAt,omitempty"`
}

// UploadResponse is returned by POST /documents.
type UploadResponse struct {
	Document DocumentResponse           `json:"document"`
	Ingest   *structured.IngestResponse `json:"ingest,omitempty"`
}

func toResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		DocumentID:  doc.ID,
		FileName:    doc.FileName,
		MimeType:    doc.ContentType,
		SizeBytes:   doc.SizeBytes,
		Status:      string(doc.IngestStatus),
		Error:       doc.IngestError,
		RecordID:    doc.RecordID,
		UploadedAt:  doc.CreatedAt,
		ExtractedAt: doc.ExtractedAt,
	}
}

func toUploadResponse(res UploadResult) UploadResponse {
	out := UploadResponse{Document: toResponse(res.Document)}
	if res.Ingest != nil {
		ing := structured.ToIngestResponse(*res.Ingest)
		out.Ingest = &ing
	}
	return out
}
