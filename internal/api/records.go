package api

import (
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"scribely/internal/ai"
	"scribely/internal/apperr"
	"scribely/internal/model"
	"scribely/internal/repository"
	"scribely/internal/utils"
)

const previewLength = 100

// listRecords handles GET /api/v1/records
func (h *Handler) listRecords(c *gin.Context) {
	if h.Records == nil {
		utils.Error(c, http.StatusServiceUnavailable, "no record store configured")
		return
	}

	records, err := h.Records.List(c.Request.Context())
	if err != nil {
		h.Logger.Error("Error listing records", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to retrieve records")
		return
	}

	items := make([]gin.H, 0, len(records))
	for _, rec := range records {
		kinds := make([]model.ArtifactKind, 0, len(model.PostProcessKinds))
		for _, a := range rec.Artifacts() {
			kinds = append(kinds, a.Kind)
		}
		item := gin.H{
			"id":            rec.ID.String(),
			"created_at":    rec.CreatedAt,
			"filename":      rec.Filename,
			"duration_ms":   rec.DurationMs,
			"segment_count": rec.SegmentCount,
			"artifacts":     kinds,
		}
		if rec.Transcript != "" {
			item["transcript_preview"] = preview(rec.Transcript)
		}
		if len(rec.MissingSegments) > 0 {
			item["missing_segments"] = rec.MissingSegments
		}
		items = append(items, item)
	}

	utils.Success(c, gin.H{
		"items": items,
		"count": len(items),
	})
}

// getRecord handles GET /api/v1/records/:id
func (h *Handler) getRecord(c *gin.Context) {
	if h.Records == nil {
		utils.Error(c, http.StatusServiceUnavailable, "no record store configured")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid id format")
		return
	}

	rec, err := h.Records.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.Error(c, http.StatusNotFound, "record not found")
			return
		}
		h.Logger.Error("Error getting record", zap.String("record_id", id.String()), zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to retrieve record")
		return
	}

	utils.Success(c, rec)
}

// QueryRequest represents the ad-hoc query request body
type QueryRequest struct {
	Instruction string   `json:"instruction"`
	Fields      []string `json:"fields"`
	RecordIDs   []string `json:"record_ids"`
}

// query handles POST /api/v1/query
func (h *Handler) query(c *gin.Context) {
	if h.Records == nil || h.Querier == nil {
		utils.Error(c, http.StatusServiceUnavailable, "querying needs a record store and a text-generation provider")
		return
	}

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	q := ai.Query{Instruction: req.Instruction, Fields: req.Fields}
	if err := q.Normalize(); err != nil {
		utils.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	records, status, err := h.selectRecords(c, req.RecordIDs)
	if err != nil {
		utils.Error(c, status, err.Error())
		return
	}
	if len(records) == 0 {
		utils.Error(c, http.StatusBadRequest, "no records available. Transcribe some recordings first")
		return
	}

	h.Logger.Info("Query request", zap.Int("records", len(records)), zap.Strings("fields", q.Fields))

	artifact, err := h.Querier.Ask(c.Request.Context(), q, records)
	if err != nil {
		switch {
		case errors.Is(err, ai.ErrEmptyInstruction), errors.Is(err, ai.ErrNoRecords):
			utils.Error(c, http.StatusBadRequest, err.Error())
		default:
			h.Logger.Error("Query failed", zap.Error(err))
			utils.StageError(c, http.StatusBadGateway, "query", err.Error())
		}
		return
	}

	utils.Success(c, gin.H{
		"kind":         artifact.Kind,
		"answer":       artifact.Text,
		"instruction":  q.Instruction,
		"fields":       q.Fields,
		"record_count": len(records),
	})
}

// selectRecords loads the requested records, or every record when ids is
// empty. On failure it also returns the HTTP status to answer with.
func (h *Handler) selectRecords(c *gin.Context, ids []string) ([]model.Record, int, error) {
	ctx := c.Request.Context()
	if len(ids) == 0 {
		records, err := h.Records.List(ctx)
		if err != nil {
			h.Logger.Error("Error listing records", zap.Error(err))
			return nil, http.StatusInternalServerError, &apperr.PersistenceError{Driver: h.Records.Driver(), Err: err}
		}
		return records, 0, nil
	}

	records := make([]model.Record, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, http.StatusBadRequest, errors.New("invalid record id " + raw)
		}
		rec, err := h.Records.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, http.StatusNotFound, errors.New("record not found: " + raw)
		}
		if err != nil {
			h.Logger.Error("Error getting record", zap.String("record_id", raw), zap.Error(err))
			return nil, http.StatusInternalServerError, &apperr.PersistenceError{Driver: h.Records.Driver(), Err: err}
		}
		records = append(records, *rec)
	}
	return records, 0, nil
}

// preview returns the first previewLength characters of s.
func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewLength {
		return s
	}
	return string([]rune(s)[:previewLength]) + "..."
}
