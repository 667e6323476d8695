package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"resume-builder/internal/shared/telemetry"
)

// Keys handlers set so the request log can name what was touched.
const (
	DocumentIDKey   = "documentId"
	RecordIDKey     = "recordId"
	IngestStatusKey = "ingestStatus"
)

// Annotate records pipeline identifiers for the request log. Empty values
// are skipped.
func Annotate(c *gin.Context, documentID, recordID, ingestStatus string) {
	for key, val := range map[string]string{
		DocumentIDKey:   documentID,
		RecordIDKey:     recordID,
		IngestStatusKey: ingestStatus,
	} {
		if val != "" {
			c.Set(key, val)
		}
	}
}

// Logging emits one structured line per request. Server errors log at error
// level and client errors at warn.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		status := c.Writer.Status()

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      status,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"user_id":     UserIDFromContext(c),
			"is_guest":    IsGuest(c),
			"client_ip":   c.ClientIP(),
			"bytes":       c.Writer.Size(),
		}
		if fields["path"] == "" {
			fields["path"] = c.Request.URL.Path
		}
		for _, key := range []string{DocumentIDKey, RecordIDKey, IngestStatusKey} {
			if val := c.GetString(key); val != "" {
				fields[logFieldName(key)] = val
			}
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch {
		case status >= http.StatusInternalServerError:
			telemetry.Error("request.complete", fields)
		case status >= http.StatusBadRequest:
			telemetry.Warn("request.complete", fields)
		default:
			telemetry.Info("request.complete", fields)
		}
	}
}

func logFieldName(key string) string {
	switch key {
	case DocumentIDKey:
		return "document_id"
	case RecordIDKey:
		return "record_id"
	case IngestStatusKey:
		return "ingest_status"
	}
	return key
}
