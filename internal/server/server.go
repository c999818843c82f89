// Package server provides the HTTP API for knowledged.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowledged/internal/assistant"
	"github.com/fyrsmithlabs/knowledged/internal/extract"
	"github.com/fyrsmithlabs/knowledged/internal/ingest"
	"github.com/fyrsmithlabs/knowledged/internal/prompt"
)

// userIDHeader carries the caller's identity. Authentication happens at the
// gateway in front of this service; the header is trusted as-is.
const userIDHeader = "X-User-ID"

// Ingestor runs the ingestion pipeline for each source kind.
type Ingestor interface {
	IngestText(ctx context.Context, text, userID string) (*ingest.Result, error)
	IngestFile(ctx context.Context, src ingest.FileSource, userID string) (*ingest.Result, error)
	IngestURL(ctx context.Context, src ingest.URLSource, userID string) (*ingest.Result, error)
}

// Querier answers questions from a user's knowledge base.
type Querier interface {
	Query(ctx context.Context, text string, history []prompt.Message, userID string) (*assistant.Answer, error)
}

// URLFetcher extracts readable text from a web page.
type URLFetcher interface {
	Extract(ctx context.Context, rawURL string) (*extract.URLContent, error)
}

// Server provides HTTP endpoints for knowledged.
type Server struct {
	echo     *echo.Echo
	ingestor Ingestor
	querier  Querier
	fetcher  URLFetcher
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(ingestor Ingestor, querier Querier, fetcher URLFetcher, logger *zap.Logger, cfg *Config) (*Server, error) {
	if ingestor == nil {
		return nil, fmt.Errorf("ingestor cannot be nil")
	}
	if querier == nil {
		return nil, fmt.Errorf("querier cannot be nil")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:     e,
		ingestor: ingestor,
		querier:  querier,
		fetcher:  fetcher,
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/text", s.handleText)
	v1.POST("/url", s.handleURL)
	v1.POST("/file", s.handleFile)
	v1.POST("/query", s.handleQuery)
}

// TextRequest is the request body for POST /api/v1/text.
type TextRequest struct {
	Content string `json:"content"`
}

// URLRequest is the request body for POST /api/v1/url.
type URLRequest struct {
	URL string `json:"url"`
}

// QueryRequest is the request body for POST /api/v1/query.
type QueryRequest struct {
	Question string           `json:"question"`
	History  []prompt.Message `json:"conversationHistory,omitempty"`
}

// IngestResponse is the response body for the ingestion endpoints.
type IngestResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Result  *ingest.Result `json:"result"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleText ingests raw text into the caller's knowledge base.
func (s *Server) handleText(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req TextRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid text request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	result, err := s.ingestor.IngestText(c.Request().Context(), req.Content, userID)
	if err != nil {
		return s.ingestError(c, "text", err)
	}

	return c.JSON(http.StatusOK, IngestResponse{
		Success: true,
		Message: fmt.Sprintf("Successfully added %d chunks to your knowledge base", result.ChunksCreated),
		Result:  result,
	})
}

// handleURL fetches a web page and ingests its readable text.
func (s *Server) handleURL(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req URLRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid url request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.URL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url field is required")
	}

	ctx := c.Request().Context()

	content, err := s.fetcher.Extract(ctx, req.URL)
	if err != nil {
		return s.extractError(c, err)
	}

	result, err := s.ingestor.IngestURL(ctx, ingest.URLSource{
		URL:         content.URL,
		Title:       content.Title,
		Description: content.Description,
		Domain:      content.Domain,
		Text:        content.Text,
	}, userID)
	if err != nil {
		return s.ingestError(c, "url", err)
	}

	return c.JSON(http.StatusOK, IngestResponse{
		Success: true,
		Message: fmt.Sprintf("Successfully added %d chunks from %s to your knowledge base", result.ChunksCreated, content.Domain),
		Result:  result,
	})
}

// handleFile ingests an uploaded file. Expects multipart form data with the
// file under the "file" field.
func (s *Server) handleFile(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}

	f, err := fileHeader.Open()
	if err != nil {
		s.logger.Error("opening uploaded file", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read uploaded file")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, extract.MaxFileSize+1))
	if err != nil {
		s.logger.Error("reading uploaded file", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read uploaded file")
	}

	mimeType := fileHeader.Header.Get("Content-Type")

	content, err := extract.FileText(fileHeader.Filename, mimeType, data)
	if err != nil {
		return s.extractError(c, err)
	}

	result, err := s.ingestor.IngestFile(c.Request().Context(), ingest.FileSource{
		FileName: content.FileName,
		MimeType: content.MimeType,
		Size:     content.Size,
		Text:     content.Text,
	}, userID)
	if err != nil {
		return s.ingestError(c, "file", err)
	}

	return c.JSON(http.StatusOK, IngestResponse{
		Success: true,
		Message: fmt.Sprintf("Successfully added %d chunks from %s to your knowledge base", result.ChunksCreated, content.FileName),
		Result:  result,
	})
}

// handleQuery answers a question from the caller's knowledge base.
func (s *Server) handleQuery(c echo.Context) error {
	userID, err := requireUserID(c)
	if err != nil {
		return err
	}

	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
	}

	answer, err := s.querier.Query(c.Request().Context(), req.Question, req.History, userID)
	if err != nil {
		s.logger.Error("query failed", zap.String("user_id", userID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to answer the question")
	}

	return c.JSON(http.StatusOK, answer)
}

func requireUserID(c echo.Context) (string, error) {
	userID := c.Request().Header.Get(userIDHeader)
	if userID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "X-User-ID header is required")
	}
	return userID, nil
}

// ingestError maps pipeline errors to HTTP responses with stable, generic
// messages. Internal failure detail stays in the logs.
func (s *Server) ingestError(c echo.Context, kind string, err error) error {
	if errors.Is(err, ingest.ErrValidation) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.logger.Error("ingestion failed", zap.String("kind", kind), zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "failed to add content to your knowledge base")
}

// extractError maps extraction errors to HTTP responses.
func (s *Server) extractError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, extract.ErrInvalidURL),
		errors.Is(err, extract.ErrNoContent),
		errors.Is(err, extract.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, extract.ErrUnsupportedType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, extract.ErrUnreachable):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	s.logger.Error("extraction failed", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "failed to extract content")
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
