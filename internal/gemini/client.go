// Package gemini adapts the Google GenAI SDK to the chat-message shape the
// rest of procura uses.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	DefaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 3
	initialBackoff    = time.Second
)

// sleep is replaced in tests.
var sleep = time.Sleep

// Message is one chat turn. Role is "system", "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// Request is a single generation call. An empty Model uses the client's model.
type Request struct {
	Model       string
	Messages    []Message
	JSON        bool
	Temperature *float64
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client generates text with a Gemini model.
type Client struct {
	models     contentGenerator
	model      string
	maxRetries int
	logger     *slog.Logger
}

// NewClient creates a Client for the Gemini API backend.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if model = strings.TrimSpace(model); model == "" {
		model = DefaultModel
	}
	return &Client{
		models:     client.Models,
		model:      model,
		maxRetries: defaultMaxRetries,
		logger:     slog.Default(),
	}, nil
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// Generate sends the conversation and returns the concatenated text of the
// response. System messages become the system instruction. Server errors and
// rate limits are retried with exponential backoff.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	contents, cfg := buildContents(req)
	if len(contents) == 0 {
		return "", errors.New("no user or assistant messages to send")
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		resp, err := c.models.GenerateContent(ctx, model, contents, cfg)
		if err == nil {
			return responseText(resp)
		}
		lastErr = err
		if !retryable(err) || attempt == c.maxRetries-1 {
			break
		}
		backoff := initialBackoff << attempt
		c.logger.Warn("gemini request failed, retrying", "attempt", attempt+1, "backoff", backoff, "error", err)
		sleep(backoff)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("generate content: %w", lastErr)
}

func buildContents(req Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	cfg := &genai.GenerateContentConfig{}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.Temperature != nil {
		t := float32(*req.Temperature)
		cfg.Temperature = &t
	}

	var system []string
	var contents []*genai.Content
	for _, m := range req.Messages {
		text := strings.TrimSpace(m.Content)
		if text == "" {
			continue
		}
		switch m.Role {
		case "system":
			system = append(system, text)
		case "assistant":
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}})
		default:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: text}}})
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n\n")}}}
	}
	return contents, cfg
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned no response")
	}
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return output, nil
}

func retryable(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
}
