// Package httpapi exposes the message service over plain HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"travel-agent/internal/domain"
	"travel-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type MessageHandler interface {
	HandleMessage(ctx context.Context, in usecase.Input) (domain.Response, error)
}

type ServerDeps struct {
	Service  MessageHandler
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

type Server struct {
	svc      MessageHandler
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

type messageRequest struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewServer(deps ServerDeps) (*Server, error) {
	if deps.Service == nil {
		return nil, errors.New("httpapi: message service must not be nil")
	}
	s := &Server{svc: deps.Service, gatherer: deps.Gatherer, logger: deps.Logger}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(s.correlation(), s.accessLog(), s.recovery())

	r.POST("/api/request", s.handleRequest)
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	return r
}

func (s *Server) handleRequest(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput)})
		return
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = strings.TrimSpace(req.ConversationID)
	}

	resp, err := s.svc.HandleMessage(c.Request.Context(), usecase.Input{ConversationID: id, Text: req.Text})
	if err != nil {
		if usecase.CodeOf(err) == usecase.ErrorInvalidInput {
			c.JSON(http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput)})
			return
		}
		s.logger.ErrorContext(c.Request.Context(), "message service failed", "err", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(correlationHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("correlation_id", id)
		c.Header(correlationHeader, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.InfoContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"correlation_id", c.GetString("correlation_id"))
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.ErrorContext(c.Request.Context(), "handler panicked", "panic", r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)})
			}
		}()
		c.Next()
	}
}
