package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"translate-bridge/internal/services"
	"translate-bridge/internal/sse"
	"translate-bridge/pkg/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// jobTimeout bounds a background job: two provider attempts plus queueing
const jobTimeout = 2 * time.Minute

type GinServer struct {
	router   *gin.Engine
	logger   *zap.Logger
	services *services.Services
	sseHub   *sse.Hub
	jobs     *semaphore.Weighted
	cancel   context.CancelFunc
}

func NewGinServer(logger *zap.Logger, services *services.Services) *GinServer {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(GinLogger(logger))

	// Initialize SSE Hub
	ctx, cancel := context.WithCancel(context.Background())
	sseHub := sse.NewHub()
	go sseHub.Run(ctx)

	server := &GinServer{
		router:   router,
		logger:   logger,
		services: services,
		sseHub:   sseHub,
		jobs:     semaphore.NewWeighted(int64(services.Config.Translation.MaxConcurrentJobs)),
		cancel:   cancel,
	}
	server.SetupRoutes()
	return server
}

// GetRouter returns the Gin router
func (s *GinServer) GetRouter() *gin.Engine {
	return s.router
}

// Close stops the hub cleanup loop
func (s *GinServer) Close() {
	s.cancel()
}

func (s *GinServer) SetupRoutes() {
	s.router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	s.router.GET("/health", s.HealthCheck)
	s.router.POST("/translate", s.Translate)
	s.router.POST("/translate/sync", s.TranslateSync)
	s.router.GET("/translate/stream/:id", s.StreamHandler)
	s.router.POST("/providers/test", s.TestProvider)
	s.router.GET("/cache/stats", s.CacheStats)
	s.router.DELETE("/cache", s.ClearCache)
	s.router.GET("/limits", s.Limits)
}

// GinLogger returns a gin middleware for logging using zap
func GinLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// HealthCheck godoc
// @Summary Health check endpoint
// @Description Check if the API server is running
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (s *GinServer) HealthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "healthy",
		"service": "translate-bridge-api",
	})
}

// buildRequest validates the body and derives the request and settings snapshot
func (s *GinServer) buildRequest(c *gin.Context) (types.TranslationRequest, types.Settings, bool) {
	var req types.TranslateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return types.TranslationRequest{}, types.Settings{}, false
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": types.ErrEmptyText.Error()})
		return types.TranslationRequest{}, types.Settings{}, false
	}

	settings := s.services.Settings()
	if req.Provider != "" {
		if !req.Provider.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%v: %q", types.ErrUnknownProvider, req.Provider)})
			return types.TranslationRequest{}, types.Settings{}, false
		}
		settings = settings.WithPrimary(req.Provider)
	}

	target := req.TargetLanguage
	if target == "" {
		target = s.services.Config.Translation.TargetLanguage
	}
	id := req.RequestID
	if id == "" {
		id = uuid.NewString()
	}
	return types.TranslationRequest{
		Text:           req.Text,
		TargetLanguage: target,
		RequestID:      id,
	}, settings, true
}

// Translate starts a background translation job
// @Summary Translate text
// @Description Starts a translation job; progress is streamed from /translate/stream/{id}
// @Tags translation
// @Accept json
// @Produce json
// @Param request body types.TranslateRequest true "Translation request"
// @Success 202 {object} map[string]string
// @Router /translate [post]
func (s *GinServer) Translate(c *gin.Context) {
	req, settings, ok := s.buildRequest(c)
	if !ok {
		return
	}

	if !s.jobs.TryAcquire(1) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "too many translation jobs in flight"})
		return
	}

	id := req.RequestID
	if !s.sseHub.Create(id) {
		s.jobs.Release(1)
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("translation job %q already exists", id)})
		return
	}

	s.logger.Info("translation job created",
		zap.String("id", id),
		zap.String("target_language", req.TargetLanguage),
		zap.Int("text_length", len(req.Text)),
	)
	c.JSON(http.StatusAccepted, gin.H{"id": id})

	go func() {
		defer s.jobs.Release(1)
		s.runJob(req, settings)
	}()
}

func (s *GinServer) runJob(req types.TranslationRequest, settings types.Settings) {
	id := req.RequestID
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result, err := s.services.TextTranslatorService.Translate(ctx, req, settings, func(text string, complete bool) {
		if complete {
			return
		}
		_ = s.sseHub.Publish(id, sse.Event{Type: sse.EventProgress, Text: text})
	})
	if err != nil {
		s.logger.Error("translation error", zap.String("id", id), zap.Error(err))
		_ = s.sseHub.Publish(id, sse.Event{Type: sse.EventError, Error: err.Error()})
	} else {
		_ = s.sseHub.Publish(id, sse.Event{Type: sse.EventComplete, Text: result.TranslatedText, Result: result})
	}
	// Always signal end, even on error
	_ = s.sseHub.Finish(id)
	s.logger.Info("translation job finished", zap.String("id", id))
}

// TranslateSync translates and returns the result in the response
// @Summary Translate text and wait for the result
// @Tags translation
// @Accept json
// @Produce json
// @Param request body types.TranslateRequest true "Translation request"
// @Success 200 {object} types.TranslationResult
// @Router /translate/sync [post]
func (s *GinServer) TranslateSync(c *gin.Context) {
	req, settings, ok := s.buildRequest(c)
	if !ok {
		return
	}

	result, err := s.services.TextTranslatorService.Translate(c.Request.Context(), req, settings, nil)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// statusFor maps pipeline errors onto HTTP statuses
func statusFor(err error) int {
	var all *types.AllProvidersFailedError
	switch {
	case errors.As(err, &all):
		if errors.Is(all.Primary.Err, types.ErrRateLimited) && errors.Is(all.Fallback.Err, types.ErrRateLimited) {
			return http.StatusTooManyRequests
		}
		if errors.Is(all.Primary.Err, types.ErrTimeout) && errors.Is(all.Fallback.Err, types.ErrTimeout) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.Is(err, types.ErrEmptyText),
		errors.Is(err, types.ErrInvalidLanguage),
		errors.Is(err, types.ErrUnknownProvider):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrMissingCredential):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// StreamHandler attaches client to SSE stream
func (s *GinServer) StreamHandler(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	if !s.sseHub.Exists(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown translation job"})
		return
	}

	s.logger.Info("client connecting to stream", zap.String("id", id))

	client := s.sseHub.AddClient(id)
	defer func() {
		s.logger.Info("client disconnecting from stream", zap.String("id", id))
		s.sseHub.RemoveClient(id, client)
	}()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	// Send initial connection message to establish the stream
	fmt.Fprintf(c.Writer, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case msg, ok := <-client.Ch:
			if !ok {
				return
			}

			s.logger.Debug("sending message to client",
				zap.String("id", id),
				zap.String("msg_preview", msg[:min(len(msg), 50)]))

			fmt.Fprintf(c.Writer, "data: %s\n\n", msg)
			flusher.Flush()

			if msg == sse.DoneSignal {
				s.logger.Info("stream end signal sent to client", zap.String("id", id))
				return
			}
		case <-c.Request.Context().Done():
			s.logger.Info("client context cancelled", zap.String("id", id))
			return
		}
	}
}

// TestProvider checks a provider's credential with one short round trip
// @Summary Test provider connectivity
// @Tags providers
// @Accept json
// @Produce json
// @Param request body types.TestProviderRequest true "Provider test request"
// @Success 200 {object} types.ProbeResult
// @Router /providers/test [post]
func (s *GinServer) TestProvider(c *gin.Context) {
	var req types.TestProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// unset fields fall back to the configured provider
	configured := s.services.Config.Provider(req.Provider)
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		apiKey = configured.APIKey
	}
	baseURL := req.BaseURL
	if baseURL == "" {
		baseURL = configured.BaseURL
	}
	model := req.Model
	if model == "" {
		model = configured.Model
	}

	result := s.services.TextTranslatorService.TestProvider(c.Request.Context(), req.Provider, apiKey, baseURL, model)
	c.JSON(http.StatusOK, result)
}

// CacheStats reports cache occupancy
func (s *GinServer) CacheStats(c *gin.Context) {
	stats := s.services.Cache.Stats()
	c.JSON(http.StatusOK, gin.H{
		"total":       stats.Total,
		"valid":       stats.Valid,
		"expired":     stats.Expired,
		"max_entries": stats.MaxEntries,
		"enabled":     s.services.Config.Cache.Enabled,
	})
}

// ClearCache drops every cached translation
func (s *GinServer) ClearCache(c *gin.Context) {
	if err := s.services.Cache.Clear(c.Request.Context()); err != nil {
		s.logger.Error("failed to clear cache store", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// Limits reports the rate limit window of every provider
func (s *GinServer) Limits(c *gin.Context) {
	out := gin.H{}
	for id, snap := range s.services.Limiters.Snapshots() {
		out[string(id)] = gin.H{
			"used":        snap.Used,
			"max":         snap.Max,
			"window_ms":   snap.Window.Milliseconds(),
			"reset_in_ms": snap.ResetIn.Milliseconds(),
		}
	}
	c.JSON(http.StatusOK, out)
}
