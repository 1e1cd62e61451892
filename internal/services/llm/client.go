package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryAttempts  = 5
	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// Config captures the runtime settings required to talk to the model.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client wraps an OpenAI-compatible chat completion endpoint (OpenRouter by
// default) and only ever asks for JSON objects.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retry      retryPolicy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts sets the total number of attempts per request.
// Values below one mean a single attempt.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retry.attempts = attempts
	}
}

// WithRetryBackoff sets the first backoff delay and the cap applied to every
// delay, Retry-After included.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.base = baseDelay
		c.retry.max = maxDelay
	}
}

// WithSleeper replaces the timer used between attempts.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.retry.sleeper = sleeper
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		retry: retryPolicy{
			attempts: defaultRetryAttempts,
			base:     defaultRetryBaseDelay,
			max:      defaultRetryMaxDelay,
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// CompleteJSON sends a system and a user prompt and returns the model's raw
// JSON reply.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	const op = "llm complete"
	system, user, err := c.prompts(op, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	return c.complete(ctx, op, []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	})
}

// AudioInput is an audio attachment sent alongside a prompt. Format defaults
// to wav.
type AudioInput struct {
	Data   []byte
	Format string
}

// CompleteJSONWithAudio is CompleteJSON with an inline input_audio part
// following the user prompt.
func (c *Client) CompleteJSONWithAudio(ctx context.Context, systemPrompt, userPrompt string, audio AudioInput) (string, error) {
	const op = "llm audio"
	system, user, err := c.prompts(op, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	if len(audio.Data) == 0 {
		return "", errors.New(op + ": audio data required")
	}
	format := strings.ToLower(strings.TrimSpace(audio.Format))
	if format == "" {
		format = "wav"
	}
	return c.complete(ctx, op, []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: []contentPart{
			{Type: "text", Text: user},
			{Type: "input_audio", InputAudio: &inputAudio{
				Data:   base64.StdEncoding.EncodeToString(audio.Data),
				Format: format,
			}},
		}},
	})
}

// HealthCheck asks the model for a trivial JSON object to prove the key,
// endpoint and model all work.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.CompleteJSON(ctx, "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

func (c *Client) prompts(op, system, user string) (string, string, error) {
	system = strings.TrimSpace(system)
	user = strings.TrimSpace(user)
	switch {
	case system == "":
		return "", "", errors.New(op + ": system prompt required")
	case user == "":
		return "", "", errors.New(op + ": user prompt required")
	case c.cfg.APIKey == "":
		return "", "", errors.New(op + ": api key required")
	}
	return system, user, nil
}

func (c *Client) complete(ctx context.Context, op string, messages []chatMessage) (string, error) {
	req := chatRequest{
		Model:          c.cfg.Model,
		Messages:       messages,
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	return c.retry.do(ctx, op, func() (string, error) {
		resp, body, err := c.send(ctx, req)
		if err != nil {
			return "", err
		}
		content, finish := resp.content()
		if content != "" {
			return content, nil
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("%s: empty choices", op)
		}
		return "", &emptyContentError{
			op:      op,
			finish:  finish,
			refusal: resp.refusal(),
			snippet: snippet(string(body)),
		}
	})
}
