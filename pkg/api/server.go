// Package api exposes the memory engine over HTTP. The transport is a
// thin caller of engine operations; it owns no state and no invariants.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sito-labs/chatmem-go/pkg/core"
	"github.com/sito-labs/chatmem-go/pkg/extract"
	"github.com/sito-labs/chatmem-go/pkg/llm"
)

// Server serves the engine's inbound operation surface.
type Server struct {
	engine  *core.Engine
	httpSrv *http.Server
	logger  *slog.Logger
}

// NewServer creates an HTTP server bound to an engine.
func NewServer(engine *core.Engine, cfg core.HTTPConfig) *Server {
	s := &Server{
		engine: engine,
		logger: slog.Default().With(slog.String("component", "api")),
	}

	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/v1")
	{
		v1.POST("/ask", s.handleAsk)
		v1.GET("/context/:user_id", s.handleContext)
		v1.GET("/thread/:user_id", s.handleThread)
		v1.GET("/summaries/:user_id", s.handleSummaries)
		v1.POST("/profile/bootstrap", s.handleBootstrap)
		v1.POST("/images", s.handleGenerateImage)
		v1.POST("/files", s.handleUploadFile)
	}

	s.httpSrv = &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	return s
}

// Handler returns the route tree, for embedding or in-process testing.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start listens and serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", slog.String("addr", s.httpSrv.Addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

type askRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

// handleAsk records the inbound message and returns a generated reply.
// Malformed input is rejected before any store mutation.
func (s *Server) handleAsk(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request, 'message' or 'user_id' is missing"})
		return
	}

	reply, err := s.engine.RecordAndRespond(c.Request.Context(), req.UserID, req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request, 'message' or 'user_id' is missing"})
			return
		}
		s.logger.Error("ask failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate the response"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"response": reply})
}

func (s *Server) handleContext(c *gin.Context) {
	block, err := s.engine.BuildContext(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "'user_id' is missing"})
			return
		}
		s.logger.Error("context assembly failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not assemble context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"context": block})
}

func (s *Server) handleThread(c *gin.Context) {
	thread, err := s.engine.Thread(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		s.logger.Error("thread reconstruction failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not reconstruct thread"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"thread": thread})
}

func (s *Server) handleSummaries(c *gin.Context) {
	summaries, err := s.engine.RecentSummaries(c.Request.Context(), c.Param("user_id"), 10)
	if err != nil {
		s.logger.Error("summaries read failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read summaries"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}

type bootstrapRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (s *Server) handleBootstrap(c *gin.Context) {
	var req bootstrapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'user_id' is missing"})
		return
	}

	if err := s.engine.EnsureProfile(c.Request.Context(), req.UserID); err != nil {
		s.logger.Error("profile bootstrap failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not bootstrap profile"})
		return
	}

	c.Status(http.StatusNoContent)
}

type imageRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

func (s *Server) handleGenerateImage(c *gin.Context) {
	var req imageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'prompt' is missing"})
		return
	}

	generator, ok := s.engine.LLM().(llm.ImageGenerator)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "image generation is not available"})
		return
	}

	url, err := generator.GenerateImage(c.Request.Context(), req.Prompt)
	if err != nil {
		s.logger.Error("image generation failed", slog.Any("error", err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not generate the image"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"image_url": url})
}

// handleUploadFile receives a file, asks the generative collaborator what
// to do with it and runs the chosen extraction.
func (s *Server) handleUploadFile(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file was sent"})
		return
	}

	path := filepath.Join(os.TempDir(), filepath.Base(file.Filename))
	if err := c.SaveUploadedFile(file, path); err != nil {
		s.logger.Error("file save failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store the file"})
		return
	}
	defer func() { _ = os.Remove(path) }()

	ctx := c.Request.Context()
	decision, err := s.engine.LLM().Generate(ctx,
		"I have uploaded a file called "+file.Filename+". Should I analyze it, summarize it, or neither? Answer briefly.",
		llm.WithMaxTokens(100))
	if err != nil {
		s.logger.Error("file decision failed", slog.Any("error", err))
		c.JSON(http.StatusOK, gin.H{"response": "could not determine what to do with the file"})
		return
	}

	result, err := s.processFile(ctx, path, strings.ToLower(decision))
	if err != nil {
		s.logger.Warn("file processing failed", slog.String("file", file.Filename), slog.Any("error", err))
		c.JSON(http.StatusOK, gin.H{"response": "no clear action found for this file"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"response": result})
}

func (s *Server) processFile(ctx context.Context, path, decision string) (string, error) {
	switch {
	case strings.Contains(decision, "analyze") || strings.Contains(decision, "extract information"):
		content, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		entities, err := s.engine.Analyzer().AnalyzeEntities(ctx, string(content))
		if err != nil {
			return "", err
		}
		found := make([]string, 0, len(entities))
		for _, e := range entities {
			found = append(found, e.Name+" ("+e.Type+")")
		}
		return "Entities found: " + strings.Join(found, ", "), nil
	case strings.Contains(decision, "summarize"):
		return extract.Summarize(ctx, s.engine.LLM(), path)
	default:
		return extract.Analyze(path)
	}
}
