package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"CurriculumSpider/internal/config"
	"CurriculumSpider/internal/domain"
	"CurriculumSpider/internal/ports"
)

// ErrMisconfigured is returned when required client settings are missing.
var ErrMisconfigured = errors.New("llm client misconfigured")

// ErrEmptyReply is returned when the provider answered without any choice.
var ErrEmptyReply = errors.New("llm returned no choices")

// StatusError reports a non-2xx provider response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm error %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// ChatClient implements ports.Oracle against OpenAI-compatible chat completion APIs. In Azure
// mode the deployment URL and api-key header are used instead of a bearer token.
type ChatClient struct {
	endpoint    string
	model       string
	apiKey      string
	azure       bool
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

var _ ports.Oracle = (*ChatClient)(nil)

// NewChatClient builds a client for the "openai" or "azure" provider.
func NewChatClient(cfg config.OracleConfig) (*ChatClient, error) {
	if cfg.APIKey == "" || cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint and api key are required", ErrMisconfigured)
	}

	c := &ChatClient{
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  &http.Client{Timeout: orDefault(cfg.Timeout, 2*time.Minute)},
	}
	if strings.EqualFold(cfg.Provider, "azure") {
		if cfg.Deployment == "" || cfg.APIVersion == "" {
			return nil, fmt.Errorf("%w: azure needs deployment and api version", ErrMisconfigured)
		}
		c.azure = true
		c.endpoint = fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			strings.TrimRight(cfg.Endpoint, "/"), url.PathEscape(cfg.Deployment), url.QueryEscape(cfg.APIVersion))
	} else if c.model == "" {
		return nil, fmt.Errorf("%w: model is required", ErrMisconfigured)
	}
	return c, nil
}

type chatRequest struct {
	Model       string           `json:"model,omitempty"`
	Messages    []domain.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate posts the conversation and returns the first choice.
func (c *ChatClient) Generate(ctx context.Context, messages []domain.Message) (domain.Completion, error) {
	payload := chatRequest{Messages: messages, Temperature: c.temperature, MaxTokens: c.maxTokens}
	if !c.azure {
		payload.Model = c.model
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Completion{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Completion{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.azure {
		req.Header.Set("api-key", c.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Completion{}, fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.Completion{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.Completion{}, fmt.Errorf("decode chat response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return domain.Completion{}, ErrEmptyReply
	}

	return domain.Completion{
		Text: decoded.Choices[0].Message.Content,
		Usage: domain.TokenUsage{
			Calls:            1,
			PromptTokens:     decoded.Usage.PromptTokens,
			CompletionTokens: decoded.Usage.CompletionTokens,
		},
	}, nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
