// Package handler adapts API Gateway proxy events to the message service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"travel-agent/internal/domain"
	"travel-agent/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type MessageHandler interface {
	HandleMessage(ctx context.Context, in usecase.Input) (domain.Response, error)
}

type Handler struct {
	svc    MessageHandler
	logger *slog.Logger
}

// messageRequest accepts the conversation id as "id" or "conversation_id".
type messageRequest struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

func (r messageRequest) conversationID() string {
	if id := strings.TrimSpace(r.ID); id != "" {
		return id
	}
	return strings.TrimSpace(r.ConversationID)
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewHandler(svc MessageHandler) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("handler: message service must not be nil")
	}
	return &Handler{svc: svc, logger: slog.Default()}, nil
}

func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(event.Headers)
	logger := h.logger.With("correlation_id", corrID)

	var req messageRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "err", err)
		return jsonResponse(http.StatusBadRequest, corrID, errorResponse{Error: string(usecase.ErrorInvalidInput)}), nil
	}

	resp, err := h.svc.HandleMessage(ctx, usecase.Input{ConversationID: req.conversationID(), Text: req.Text})
	if err != nil {
		status, code := mapError(err)
		logger.WarnContext(ctx, "request rejected", "conversation_id", req.conversationID(), "err", err)
		return jsonResponse(status, corrID, errorResponse{Error: code}), nil
	}
	return jsonResponse(http.StatusOK, corrID, resp), nil
}

func mapError(err error) (int, string) {
	if usecase.CodeOf(err) == usecase.ErrorInvalidInput {
		return http.StatusBadRequest, string(usecase.ErrorInvalidInput)
	}
	return http.StatusInternalServerError, string(usecase.ErrorInternal)
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return uuid.NewString()
}

func jsonResponse(status int, corrID string, body any) events.APIGatewayProxyResponse {
	buf, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		buf = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(buf),
	}
}
