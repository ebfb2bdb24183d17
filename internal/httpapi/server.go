// Package httpapi exposes the analysis service over HTTP.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ipcmatch/internal/metrics"
	"ipcmatch/internal/service"
	"ipcmatch/internal/summarizer"
)

const (
	sessionHeader = "X-Session-ID"
	sessionCookie = "session_id"
	defaultLogs   = 50
)

// Handler serves the API routes.
type Handler struct {
	svc     *service.Service
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(svc *service.Service, m *metrics.Metrics, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{svc: svc, metrics: m, logger: logger}

	r := gin.New()
	r.Use(requestLogger(logger), gin.CustomRecovery(func(c *gin.Context, rec any) {
		logger.Error("panic in handler", zap.Any("panic", rec), zap.String("path", c.Request.URL.Path))
		abortError(c, http.StatusInternalServerError, "INTERNAL", "An error occurred while processing your request. Please try again.")
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	api := r.Group("/api")
	{
		api.POST("/analyze", h.Analyze)
		api.POST("/summary", h.Summary)
		api.POST("/suggestions", h.Suggestions)
		api.POST("/test-enhanced", h.RankSamples)
		api.GET("/sections", h.Sections)
		api.GET("/search", h.Search)
		api.GET("/logs", h.Logs)
		api.GET("/status", h.Status)
	}
	return r
}

type describeRequest struct {
	Description string `json:"description"`
}

// Analyze handles POST /api/analyze
func (h *Handler) Analyze(c *gin.Context) {
	var req describeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	res, err := h.svc.Analyze(c.Request.Context(), sessionID(c), req.Description)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Summary handles POST /api/summary
func (h *Handler) Summary(c *gin.Context) {
	var req describeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	res, err := h.svc.Summary(c.Request.Context(), req.Description)
	if errors.Is(err, summarizer.ErrUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":             "Unable to generate AI summary. Please try again.",
			"code":              "SUMMARY_UNAVAILABLE",
			"relevant_sections": res.RelevantSections,
		})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Suggestions handles POST /api/suggestions
func (h *Handler) Suggestions(c *gin.Context) {
	var req describeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	res, err := h.svc.Suggestions(c.Request.Context(), req.Description)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type samplesRequest struct {
	Queries []string `json:"queries"`
}

// RankSamples handles POST /api/test-enhanced. An empty body ranks the
// built-in sample queries.
func (h *Handler) RankSamples(c *gin.Context) {
	var req samplesRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
	}
	c.JSON(http.StatusOK, h.svc.RankSamples(req.Queries))
}

// Sections handles GET /api/sections
func (h *Handler) Sections(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sections": h.svc.Sections()})
}

// Search handles GET /api/search?q=
func (h *Handler) Search(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Search(c.Query("q")))
}

// Logs handles GET /api/logs?limit=
func (h *Handler) Logs(c *gin.Context) {
	limit := defaultLogs
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			abortError(c, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	logs, err := h.svc.Logs(limit)
	if err != nil {
		h.logger.Error("load logs", zap.Error(err))
		abortError(c, http.StatusInternalServerError, "LOGS_FAILED", "Failed to load logs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// Status handles GET /api/status
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Status())
}

func (h *Handler) fail(c *gin.Context, err error) {
	var ie *service.InputError
	if errors.As(err, &ie) {
		abortError(c, http.StatusBadRequest, "INVALID_INPUT", ie.Msg)
		return
	}
	h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	abortError(c, http.StatusInternalServerError, "INTERNAL", "An error occurred while processing your request. Please try again.")
}

func abortError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}

// sessionID reuses the caller's session from the header or cookie and
// issues a new one otherwise.
func sessionID(c *gin.Context) string {
	if id := c.GetHeader(sessionHeader); id != "" {
		return id
	}
	if id, err := c.Cookie(sessionCookie); err == nil && id != "" {
		return id
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, id, int((24 * time.Hour).Seconds()), "/", "", false, true)
	c.Header(sessionHeader, id)
	return id
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("request", fields...)
			return
		}
		logger.Info("request", fields...)
	}
}
