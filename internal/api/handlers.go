// Package api is the HTTP surface: upload-and-transcribe, record browsing
// and ad-hoc queries behind the shared-secret gate.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scribely/internal/ai"
	"scribely/internal/auth"
	"scribely/internal/metrics"
	"scribely/internal/model"
	"scribely/internal/pipeline"
	"scribely/internal/repository"
	"scribely/internal/utils"
)

// Processor runs one upload through the pipeline. *pipeline.Pipeline
// implements it.
type Processor interface {
	Process(ctx context.Context, in pipeline.Input) (*pipeline.Outcome, error)
}

// Querier answers ad-hoc instructions over records. *ai.Runner implements it.
type Querier interface {
	Ask(ctx context.Context, q ai.Query, records []model.Record) (model.Artifact, error)
}

// Handler holds the collaborators shared by every route. Querier and Records
// may be nil, in which case their routes answer 503.
type Handler struct {
	Pipeline       Processor
	Records        repository.RecordRepository
	Querier        Querier
	Auth           *auth.Authenticator
	Metrics        *metrics.Metrics
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(h *Handler) *gin.Engine {
	if h.Logger == nil {
		h.Logger = zap.NewNop()
	}
	if h.Auth == nil {
		h.Auth = auth.New("", "", 0)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(h.Logger), corsMiddleware())
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// Health check
	r.GET("/health", h.healthCheck)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	}

	r.POST("/api/v1/auth/login", h.login)

	// API v1
	v1 := r.Group("/api/v1", h.Auth.Middleware())
	{
		v1.GET("/tasks", h.listTasks)
		v1.POST("/transcriptions", h.createTranscription)
		v1.GET("/records", h.listRecords)
		v1.GET("/records/:id", h.getRecord)
		v1.POST("/query", h.query)
	}
}

// healthCheck returns server health status
func (h *Handler) healthCheck(c *gin.Context) {
	data := gin.H{
		"status":  "ok",
		"service": "scribely",
		"auth":    h.Auth.Enabled(),
	}
	if h.Records != nil {
		data["store"] = h.Records.Driver()
	}
	utils.Success(c, data)
}

// listTasks returns the post-processing tasks a caller may request
func (h *Handler) listTasks(c *gin.Context) {
	utils.Success(c, gin.H{
		"tasks": ai.Tasks,
		"count": len(ai.Tasks),
	})
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// login exchanges the shared password for a bearer token
func (h *Handler) login(c *gin.Context) {
	if !h.Auth.Enabled() {
		utils.Error(c, http.StatusBadRequest, "authentication is disabled on this server")
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "password is required")
		return
	}

	token, expires, err := h.Auth.Login(req.Password)
	if err != nil {
		h.Logger.Warn("Login rejected", zap.String("client_ip", c.ClientIP()))
		utils.Error(c, http.StatusUnauthorized, "invalid password")
		return
	}

	utils.Success(c, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
}

// requestLogger logs one line per request
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("Request failed", fields...)
			return
		}
		logger.Debug("Request served", fields...)
	}
}

// corsMiddleware adds CORS headers for browser and mobile clients
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
