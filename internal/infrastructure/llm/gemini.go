package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"CurriculumSpider/internal/config"
	"CurriculumSpider/internal/domain"
	"CurriculumSpider/internal/ports"
)

// GeminiClient implements ports.Oracle with the Google GenAI SDK.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

var _ ports.Oracle = (*GeminiClient)(nil)

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(ctx context.Context, cfg config.OracleConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is required", ErrMisconfigured)
	}
	model := cfg.Model
	if model == "" || strings.HasPrefix(model, "gpt-") {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		model:       model,
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(cfg.MaxTokens),
	}, nil
}

// Generate sends the conversation; system messages become the system instruction.
func (g *GeminiClient) Generate(ctx context.Context, messages []domain.Message) (domain.Completion, error) {
	system, contents := toGenAI(messages)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       genai.Ptr(g.temperature),
	}
	if g.maxTokens > 0 {
		cfg.MaxOutputTokens = g.maxTokens
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return domain.Completion{}, fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return domain.Completion{}, ErrEmptyReply
	}

	out := domain.Completion{Text: text, Usage: domain.TokenUsage{Calls: 1}}
	if resp.UsageMetadata != nil {
		out.Usage.PromptTokens = int64(resp.UsageMetadata.PromptTokenCount)
		out.Usage.CompletionTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}

// toGenAI joins system messages into one instruction and maps the remaining turns to Gemini
// roles.
func toGenAI(messages []domain.Message) (*genai.Content, []*genai.Content) {
	var (
		instructions []string
		contents     []*genai.Content
	)
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			instructions = append(instructions, m.Content)
		case domain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(instructions) == 0 {
		return nil, contents
	}
	return genai.NewContentFromText(strings.Join(instructions, "\n\n"), genai.RoleUser), contents
}
