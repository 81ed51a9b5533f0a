package llm

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAPIKey = errors.New("llm api key not set")
	ErrEmptyChoices  = errors.New("llm response has no choices")
)

// Request is one chat completion call: a system instruction plus a single
// user prompt.
type Request struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// Model is an entry of the provider's model catalogue.
type Model struct {
	ID   string
	Name string
	Free bool
}

// StatusError is a non-2xx answer from the completion endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm api error: status=%d body=%s", e.Code, truncate(e.Body, 512))
}

// Hint explains common status codes to an operator.
func (e *StatusError) Hint() string {
	switch e.Code {
	case 401:
		return "unauthorized: check the API key"
	case 403:
		return "forbidden: the API key may not have access to this model"
	case 404:
		return "endpoint or model not found: check the base URL and model name"
	case 429:
		return "rate limited by the provider"
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
