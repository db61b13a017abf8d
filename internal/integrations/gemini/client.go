// Package gemini adapts Google's Gemini models to the chat-completion shape
// the remote trip extractor expects.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"travel-agent/internal/domain"
)

const DefaultModel = "gemini-2.0-flash"

// generator is the subset of *genai.GenerativeModel used here.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type settings struct {
	model       string
	temperature float32
	maxTokens   int32
}

type Option func(*settings)

func WithModel(name string) Option {
	return func(s *settings) {
		if n := strings.TrimSpace(name); n != "" {
			s.model = n
		}
	}
}

func WithTemperature(t float32) Option {
	return func(s *settings) {
		s.temperature = t
	}
}

func WithMaxTokens(n int32) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// Client sends flattened chat prompts to a Gemini model in JSON mode.
type Client struct {
	client *genai.Client
	model  generator
}

// NewClient connects to Gemini with apiKey.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key must not be empty")
	}
	s := settings{model: DefaultModel, temperature: 0.1, maxTokens: 500}
	for _, opt := range opts {
		opt(&s)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	model := client.GenerativeModel(s.model)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(s.temperature)
	model.SetMaxOutputTokens(s.maxTokens)

	return &Client{client: client, model: model}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Complete flattens messages into one prompt and returns the model's text.
func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("gemini: messages must not be empty")
	}
	resp, err := c.model.GenerateContent(ctx, genai.Text(flatten(messages)))
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: no response candidates")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out.WriteString(string(txt))
		}
	}
	return out.String(), nil
}

// flatten renders system messages first, then the dialogue, and the final
// user message last.
func flatten(messages []domain.ChatMessage) string {
	var system, dialogue []string
	for _, m := range messages[:len(messages)-1] {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, m.Content)
		case domain.RoleAssistant:
			dialogue = append(dialogue, "Assistant: "+m.Content)
		default:
			dialogue = append(dialogue, "User: "+m.Content)
		}
	}

	sections := []string{strings.Join(system, "\n\n")}
	if len(dialogue) > 0 {
		sections = append(sections, "Conversation so far:\n"+strings.Join(dialogue, "\n"))
	}
	sections = append(sections, "User Message: "+messages[len(messages)-1].Content)
	return strings.TrimSpace(strings.Join(sections, "\n\n"))
}
