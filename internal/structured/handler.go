package structured

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"resume-builder/internal/shared/server/middleware"
	"resume-builder/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches structured-data routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/structured-data", h.ingest)
	rg.GET("/structured-data", h.list)
	rg.GET("/structured-data/:id", h.get)
}

func (h *Handler) ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "content is required", nil)
		return
	}

	res, err := h.Svc.Ingest(c.Request.Context(), req.Content, middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err, "failed to ingest resume")
		return
	}
	middleware.Annotate(c, "", res.Record.ID, string(res.Status))

	status := http.StatusCreated
	if res.Status == StatusUpdated {
		status = http.StatusOK
	}
	respond.JSON(c, status, ToIngestResponse(res))
}

func (h *Handler) get(c *gin.Context) {
	rec, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		writeError(c, err, "failed to fetch record")
		return
	}
	respond.OK(c, ToRecordResponse(rec))
}

func (h *Handler) list(c *gin.Context) {
	opts := ListOptions{Limit: 20}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			opts.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			opts.Offset = parsed
		}
	}
	opts.IncludeSuperseded = c.Query("includeSuperseded") == "true"

	recs, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), opts)
	if err != nil {
		writeError(c, err, "failed to list records")
		return
	}

	resp := make([]RecordResponse, 0, len(recs))
	for _, rec := range recs {
		resp = append(resp, ToRecordResponse(rec))
	}
	respond.OK(c, resp)
}

func writeError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "record not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", message, nil)
	}
}
