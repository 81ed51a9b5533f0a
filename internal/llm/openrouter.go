package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Client talks to an OpenAI-compatible chat completion API (OpenRouter by
// default). Requests are never retried.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	referer string
	title   string

	defaultTimeout time.Duration

	mu     sync.RWMutex
	apiKey string
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.defaultTimeout = d
		}
	}
}

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if strings.TrimSpace(u) != "" {
			c.baseURL = strings.TrimRight(strings.TrimSpace(u), "/")
		}
	}
}

// WithAttribution sets the HTTP-Referer and X-Title headers OpenRouter uses
// to attribute traffic.
func WithAttribution(referer, title string) Option {
	return func(c *Client) {
		c.referer = strings.TrimSpace(referer)
		c.title = strings.TrimSpace(title)
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:        DefaultBaseURL,
		apiKey:         strings.TrimSpace(apiKey),
		http:           &fasthttp.Client{ReadTimeout: 30 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		defaultTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasCredential reports whether an API key is configured.
func (c *Client) HasCredential() bool { return c != nil && c.key() != "" }

// SetAPIKey replaces the credential used by later requests.
func (c *Client) SetAPIKey(apiKey string) {
	c.mu.Lock()
	c.apiKey = strings.TrimSpace(apiKey)
	c.mu.Unlock()
}

func (c *Client) key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type modelsResponse struct {
	Data []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Pricing struct {
			Prompt json.RawMessage `json:"prompt"`
		} `json:"pricing"`
	} `json:"data"`
}

// Complete sends req and returns the first choice's message content, trimmed.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if !c.HasCredential() {
		return "", ErrMissingAPIKey
	}
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	in := chatRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stop:        req.Stop,
	}
	var out chatResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/chat/completions", in, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyChoices
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// ListModels returns the provider's model catalogue.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	if !c.HasCredential() {
		return nil, ErrMissingAPIKey
	}
	var out modelsResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/models", nil, &out); err != nil {
		return nil, err
	}
	models := make([]Model, 0, len(out.Data))
	for _, m := range out.Data {
		if strings.TrimSpace(m.ID) == "" {
			continue
		}
		models = append(models, Model{ID: m.ID, Name: m.Name, Free: zeroPrice(m.Pricing.Prompt)})
	}
	return models, nil
}

// FreeModels returns the ids of models whose prompt price is zero.
func (c *Client) FreeModels(ctx context.Context) ([]string, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, m := range models {
		if m.Free {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

// Ping checks that the API is reachable with the configured key.
func (c *Client) Ping(ctx context.Context) error {
	if !c.HasCredential() {
		return ErrMissingAPIKey
	}
	return c.doJSON(ctx, fasthttp.MethodGet, "/models", nil, nil)
}

// pricing values arrive as strings ("0") or numbers depending on the provider
func zeroPrice(raw json.RawMessage) bool {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && f == 0
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	release := func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+c.key())
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			release()
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	if err := ctx.Err(); err != nil {
		release()
		return fmt.Errorf("request failed: %w", err)
	}

	// fasthttp has no context support; a cancelled caller abandons the call
	// and the buffers are released once it completes.
	errCh := make(chan error, 1)
	go func() { errCh <- c.http.DoDeadline(req, resp, c.computeDeadline(ctx)) }()
	select {
	case err := <-errCh:
		defer release()
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
	case <-ctx.Done():
		go func() {
			<-errCh
			release()
		}()
		return fmt.Errorf("request failed: %w", ctx.Err())
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return &StatusError{Code: status, Body: string(resp.Body())}
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}
