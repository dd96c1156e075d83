package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"linkedin-scout/internal/core"
	"linkedin-scout/internal/extract"
)

// Server exposes the scraper over HTTP. A scrape request holds its
// connection open until the job resolves; the scheduler behind it
// serializes and paces the actual browser work.
type Server struct {
	cfg       *core.Config
	scheduler core.SchedulerPort
	browser   core.BrowserPort
	repo      core.RepositoryPort
	logger    *zap.Logger
	engine    *gin.Engine
	http      *http.Server
	started   time.Time
}

func New(cfg *core.Config, scheduler core.SchedulerPort, browser core.BrowserPort, repo core.RepositoryPort, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(requestLogger(logger), gin.Recovery())

	s := &Server{
		cfg:       cfg,
		scheduler: scheduler,
		browser:   browser,
		repo:      repo,
		logger:    logger,
		engine:    engine,
		started:   time.Now(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	v1 := s.engine.Group("/api/v1")
	v1.POST("/scrape", s.handleScrape)
	v1.GET("/health", s.handleHealth)
	v1.GET("/browser", s.handleBrowserStatus)
	v1.POST("/browser/restart", s.handleBrowserRestart)
	v1.GET("/records", s.handleRecords)
}

// Handler returns the underlying HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:    s.cfg.API.Addr,
		Handler: s.engine,
	}

	s.logger.Info("API listening", zap.String("addr", s.cfg.API.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

type scrapeRequest struct {
	URL string `json:"url" binding:"required"`
}

func (s *Server) handleScrape(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	result, err := s.scheduler.Schedule(c.Request.Context(), req.URL)
	if err != nil {
		code := core.ErrorCode(err)
		c.JSON(statusForCode(code), gin.H{
			"error":  err.Error(),
			"code":   code,
			"result": result,
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"uptime":            time.Since(s.started).Round(time.Second).String(),
		"queue_depth":       s.scheduler.QueueDepth(),
		"browser":           s.browser.Status(c.Request.Context()),
		"selector_revision": extract.Revision,
	})
}

func (s *Server) handleBrowserStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.browser.Status(c.Request.Context()))
}

func (s *Server) handleBrowserRestart(c *gin.Context) {
	if err := s.browser.ForceRestart(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.browser.Status(c.Request.Context()))
}

func (s *Server) handleRecords(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}

	records, err := s.repo.ListRecentScrapes(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

func statusForCode(code string) int {
	switch code {
	case core.ErrCodeBadRequest:
		return http.StatusBadRequest
	case core.ErrCodeBudget:
		return http.StatusTooManyRequests
	case core.ErrCodeQueueClosed:
		return http.StatusServiceUnavailable
	case core.ErrCodeAuthFailed, core.ErrCodeBrowser:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}
