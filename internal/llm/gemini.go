package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiClient completes prompts through Google's Gemini API. It satisfies the
// same methods as Client so either can drive a game.
type GeminiClient struct {
	client  *genai.Client
	timeout time.Duration
}

// NewGeminiClient dials the Gemini API. The caller owns Close.
// 키가 비어 있으면 자격 없는 클라이언트를 반환하고, 호출 시 ErrMissingAPIKey.
// 왜: 키 누락은 New가 아니라 Start 시점에 ErrMissingCredential로 드러나야 함.
func NewGeminiClient(ctx context.Context, apiKey string, timeout time.Duration) (*GeminiClient, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return &GeminiClient{timeout: timeout}, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{client: client, timeout: timeout}, nil
}

func (g *GeminiClient) HasCredential() bool { return g != nil && g.client != nil }

func (g *GeminiClient) Complete(ctx context.Context, req Request) (string, error) {
	if !g.HasCredential() {
		return "", ErrMissingAPIKey
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	model := g.client.GenerativeModel(req.Model)
	if strings.TrimSpace(req.System) != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	model.SetTemperature(float32(req.Temperature))
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	model.StopSequences = req.Stop

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyChoices
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// ListModels lists Gemini models. Pricing is not exposed, so Free is never set.
func (g *GeminiClient) ListModels(ctx context.Context) ([]Model, error) {
	if !g.HasCredential() {
		return nil, ErrMissingAPIKey
	}
	it := g.client.ListModels(ctx)
	var models []Model
	for {
		info, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gemini models: %w", err)
		}
		models = append(models, Model{ID: strings.TrimPrefix(info.Name, "models/"), Name: info.DisplayName})
	}
	return models, nil
}

func (g *GeminiClient) FreeModels(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (g *GeminiClient) Ping(ctx context.Context) error {
	if !g.HasCredential() {
		return ErrMissingAPIKey
	}
	it := g.client.ListModels(ctx)
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("gemini ping: %w", err)
	}
	return nil
}

func (g *GeminiClient) Close() error {
	if g == nil || g.client == nil {
		return nil
	}
	return g.client.Close()
}
