// Package server exposes the retrieval core over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ragtutor/internal/domain"
	"ragtutor/internal/extract"
	"ragtutor/internal/service"
)

const maxQuestionChars = 1000

// RAG is the server-facing subset of the orchestrator.
type RAG interface {
	AnswerQuestion(ctx context.Context, question string) (domain.Answer, error)
	IngestDocument(ctx context.Context, text string) (int, error)
	Images() []domain.ImageDescriptor
	Status() service.Status
}

// Config holds HTTP server configuration.
type Config struct {
	Host           string
	Port           int
	CORSOrigins    []string
	UploadDir      string
	MaxUploadBytes int64
	// ModelID and APIKeySet are surfaced by the health endpoint.
	ModelID   string
	APIKeySet bool
}

// Server wires the echo instance, middleware and routes.
type Server struct {
	echo   *echo.Echo
	rag    RAG
	logger *zap.Logger
	config Config
}

// New creates the HTTP server.
func New(rag RAG, logger *zap.Logger, cfg Config) (*Server, error) {
	if rag == nil {
		return nil, fmt.Errorf("rag service cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 10 << 20
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{echo: e, rag: rag, logger: logger.Named("server"), config: cfg}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/chat", s.handleChat)
	v1.POST("/upload", s.handleUpload)
	v1.GET("/images", s.handleImages)
}

// ChatRequest is the request body for POST /api/v1/chat.
type ChatRequest struct {
	Question string `json:"question"`
}

// UploadResponse is the response body for POST /api/v1/upload.
type UploadResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	ChunksCreated int    `json:"chunks_created"`
	Filename      string `json:"filename"`
	TopicID       string `json:"topic_id"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string         `json:"status"`
	Model     string         `json:"model"`
	APIKeySet bool           `json:"api_key_configured"`
	Index     service.Status `json:"index"`
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"service": "ragtutor",
		"endpoints": map[string]string{
			"POST /api/v1/chat":   "Ask a question, get a grounded answer",
			"POST /api/v1/upload": "Upload and index a document",
			"GET /api/v1/images":  "List indexed image metadata",
			"GET /health":         "Health check",
			"GET /metrics":        "Prometheus metrics",
		},
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Model:     s.config.ModelID,
		APIKeySet: s.config.APIKeySet,
		Index:     s.rag.Status(),
	})
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
	}
	if utf8.RuneCountInString(req.Question) > maxQuestionChars {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("question too long (max %d characters)", maxQuestionChars))
	}

	answer, err := s.rag.AnswerQuestion(c.Request().Context(), req.Question)
	if err != nil {
		// Only index- and embedding-layer failures reach this point; the
		// model fallback already happened inside the orchestrator.
		s.logger.Error("answering question failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "error processing question")
	}
	return c.JSON(http.StatusOK, answer)
}

func (s *Server) handleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}
	if !extract.Supported(fileHeader.Filename) {
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported file type (use .txt or .md)")
	}
	if fileHeader.Size > s.config.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", s.config.MaxUploadBytes))
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read upload")
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, s.config.MaxUploadBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read upload")
	}
	if int64(len(data)) > s.config.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", s.config.MaxUploadBytes))
	}

	topicID := uuid.NewString()
	if s.config.UploadDir != "" {
		if err := os.MkdirAll(s.config.UploadDir, 0o755); err != nil {
			s.logger.Error("creating upload dir failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "error storing upload")
		}
		stored := filepath.Join(s.config.UploadDir, topicID+"_"+filepath.Base(fileHeader.Filename))
		if err := os.WriteFile(stored, data, 0o644); err != nil {
			s.logger.Error("storing upload failed", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "error storing upload")
		}
	}

	text, err := extract.Text(data)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupported) {
			return echo.NewHTTPError(http.StatusBadRequest, "document is not valid text")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "error extracting document")
	}

	chunks, err := s.rag.IngestDocument(c.Request().Context(), text)
	if err != nil {
		s.logger.Error("ingesting document failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "error processing document")
	}

	s.logger.Info("document ingested",
		zap.String("filename", fileHeader.Filename),
		zap.Int("chunks", chunks),
		zap.String("topic_id", topicID),
	)
	return c.JSON(http.StatusOK, UploadResponse{
		Status:        "success",
		Message:       "document processed and indexed",
		ChunksCreated: chunks,
		Filename:      fileHeader.Filename,
		TopicID:       topicID,
	})
}

func (s *Server) handleImages(c echo.Context) error {
	images := s.rag.Images()
	if images == nil {
		images = []domain.ImageDescriptor{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"images": images,
		"count":  len(images),
	})
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

// Echo exposes the underlying echo instance, mainly for tests.
func (s *Server) Echo() *echo.Echo { return s.echo }
