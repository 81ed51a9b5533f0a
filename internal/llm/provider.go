package llm

import "context"

// Provider is the completion surface shared by the OpenRouter and Gemini
// clients.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
	ListModels(ctx context.Context) ([]Model, error)
	FreeModels(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	HasCredential() bool
}

var (
	_ Provider = (*Client)(nil)
	_ Provider = (*GeminiClient)(nil)
)
