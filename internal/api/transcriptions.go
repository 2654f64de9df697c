package api

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scribely/internal/ai"
	"scribely/internal/apperr"
	"scribely/internal/pipeline"
	"scribely/internal/storage"
	"scribely/internal/utils"
)

// uploadFields are the accepted multipart field names for the audio file.
var uploadFields = []string{"audio_file", "audio", "file"}

// createTranscription handles POST /api/v1/transcriptions
func (h *Handler) createTranscription(c *gin.Context) {
	if h.MaxUploadBytes > 0 {
		// Leave room for the other multipart parts.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+1<<20)
	}

	file, err := formFile(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.Error(c, http.StatusBadRequest, h.sizeLimitMessage())
			return
		}
		utils.Error(c, http.StatusBadRequest, "audio_file is required. Error: "+err.Error())
		return
	}

	if !storage.AllowedExtension(file.Filename) {
		utils.Error(c, http.StatusBadRequest, "unsupported audio format. Supported: "+strings.Join(storage.AllowedExtensions, ", "))
		return
	}
	if h.MaxUploadBytes > 0 && file.Size > h.MaxUploadBytes {
		utils.Error(c, http.StatusBadRequest, h.sizeLimitMessage())
		return
	}

	tasks, err := ai.ParseKinds(c.PostFormArray("tasks"))
	if err != nil {
		utils.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	body, err := file.Open()
	if err != nil {
		h.Logger.Error("Failed to open upload", zap.Error(err))
		utils.Error(c, http.StatusInternalServerError, "failed to read uploaded file")
		return
	}
	defer body.Close()

	h.Logger.Info("Transcription requested",
		zap.String("filename", file.Filename),
		zap.Int64("size_bytes", file.Size),
		zap.Int("tasks", len(tasks)))

	out, err := h.Pipeline.Process(c.Request.Context(), pipeline.Input{
		Filename: file.Filename,
		Body:     body,
		Tasks:    tasks,
	})
	if err != nil {
		utils.StageError(c, statusFor(err), apperr.Stage(err), err.Error())
		return
	}

	artifacts := make(gin.H, len(out.Artifacts))
	for _, a := range out.Artifacts {
		artifacts[string(a.Kind)] = a.Text
	}

	utils.Success(c, gin.H{
		"record_id":     out.Record.ID.String(),
		"run_id":        out.RunID,
		"filename":      out.Record.Filename,
		"duration_ms":   out.Record.DurationMs,
		"segment_count": out.SegmentCount,
		"transcript":    out.Record.Transcript,
		"artifacts":     artifacts,
		"gaps":          out.Gaps,
		"warnings":      out.Failures,
		"persisted":     out.Persisted,
		"stt_provider":  out.Record.STTProvider,
		"llm_provider":  out.Record.LLMProvider,
	})
}

// formFile returns the first upload found under any accepted field name.
func formFile(c *gin.Context) (*multipart.FileHeader, error) {
	var err error
	for _, name := range uploadFields {
		var file *multipart.FileHeader
		if file, err = c.FormFile(name); err == nil {
			return file, nil
		}
		if !errors.Is(err, http.ErrMissingFile) {
			return nil, err
		}
	}
	return nil, err
}

func (h *Handler) sizeLimitMessage() string {
	return fmt.Sprintf("file size exceeds %dMB limit", h.MaxUploadBytes>>20)
}

// statusFor maps a fatal pipeline error to an HTTP status: caller input is a
// 400, server misconfiguration or a local segment cut a 500, everything
// upstream a 502.
func statusFor(err error) int {
	var (
		invalid *apperr.InvalidConfigurationError
		chunk   *apperr.ChunkError
	)
	switch {
	case errors.As(err, &invalid), errors.As(err, &chunk):
		return http.StatusInternalServerError
	case apperr.IsInputError(err):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
