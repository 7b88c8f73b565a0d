// Package ai talks to a Mistral-compatible chat-completions API.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starford/lorekeeper/internal/models"
)

const (
	DefaultBaseURL = "https://api.mistral.ai/v1"
	DefaultTimeout = 30 * time.Second
	PingTimeout    = 10 * time.Second

	// maxErrorBody bounds how much of a failed response ends up in errors.
	maxErrorBody = 512
)

// Request is one chat completion.
type Request struct {
	APIKey      string
	Model       string
	System      string // omitted when empty
	Prompt      string
	Temperature float64
}

// Client is safe for concurrent use.
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another compatible endpoint.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.base = strings.TrimRight(base, "/")
		}
	}
}

// WithTimeout overrides the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient swaps the transport, mostly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		base:    DefaultBaseURL,
		http:    &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// RequestFor fills key and model from project settings.
func RequestFor(s models.ProjectSettings, system, prompt string, temperature float64) Request {
	return Request{
		APIKey:      s.MistralAPIKey,
		Model:       s.Model(),
		System:      system,
		Prompt:      prompt,
		Temperature: temperature,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate runs one completion and returns the assistant text.
func (c *Client) Generate(ctx context.Context, r Request) (string, error) {
	if strings.TrimSpace(r.APIKey) == "" {
		return "", ErrUnavailable
	}
	if r.Model == "" {
		r.Model = models.DefaultMistralModel
	}

	msgs := make([]message, 0, 2)
	if r.System != "" {
		msgs = append(msgs, message{Role: "system", Content: r.System})
	}
	msgs = append(msgs, message{Role: "user", Content: r.Prompt})

	buf, err := json.Marshal(chatRequest{Model: r.Model, Temperature: r.Temperature, Messages: msgs})
	if err != nil {
		return "", fmt.Errorf("ai: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := c.do(ctx, http.MethodPost, "/chat/completions", r.APIKey, buf)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &Error{Kind: KindMalformed, Message: "unreadable completion response", Err: err}
	}
	if len(parsed.Choices) == 0 {
		return "", &Error{Kind: KindMalformed, Message: "completion has no choices"}
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// Ping checks that the key is accepted by listing models.
func (c *Client) Ping(ctx context.Context, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return ErrUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	_, err := c.do(ctx, http.MethodGet, "/models", apiKey, nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path, apiKey string, payload []byte) ([]byte, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, fmt.Errorf("ai: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, clip(strings.TrimSpace(string(body)), maxErrorBody))
	}
	return body, nil
}

func transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "provider took too long to respond; retry", Err: err}
	}
	return &Error{Kind: KindProvider, Message: "network error: " + err.Error(), Err: err}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
