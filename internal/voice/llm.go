package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"spendigo/internal/core"
	"spendigo/internal/log"
	"spendigo/internal/metrics"
)

const (
	DefaultEndpoint   = "https://api.perplexity.ai/chat/completions"
	DefaultModel      = "sonar-pro"
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultTimeout    = 30 * time.Second

	temperature = 0.2
	maxTokens   = 400
	// maxJitter bounds the random delay added to each backoff step.
	maxJitter = time.Second
	// maxErrorBody bounds how much of a failed response is kept for logs.
	maxErrorBody = 512
)

// ErrNoAPIKey is returned by an LLMClient built without a key.
var ErrNoAPIKey = errors.New("llm api key not configured")

// ExternalError is a failed call to the completion endpoint. Retryable
// errors (429, network) are retried with backoff; the rest fail at once.
type ExternalError struct {
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ExternalError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llm status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("llm: %v", e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is an ExternalError worth retrying.
func IsRetryable(err error) bool {
	var ext *ExternalError
	return errors.As(err, &ext) && ext.Retryable
}

// LLMConfig configures the completion endpoint client.
type LLMConfig struct {
	APIKey     string
	Endpoint   string
	Model      string
	MaxRetries int
	BaseDelay  time.Duration
	Timeout    time.Duration
}

func (c LLMConfig) withDefaults() LLMConfig {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// LLMClient calls an OpenAI-compatible chat completion endpoint and decodes
// the JSON draft it returns.
type LLMClient struct {
	cfg    LLMConfig
	client *http.Client
	logger *log.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

// LLMOption customises an LLMClient.
type LLMOption func(*LLMClient)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) LLMOption {
	return func(l *LLMClient) { l.client = c }
}

// WithSleep replaces the backoff wait. Tests use it to skip real delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) LLMOption {
	return func(l *LLMClient) { l.sleep = sleep }
}

// WithJitter replaces the random jitter source.
func WithJitter(jitter func() time.Duration) LLMOption {
	return func(l *LLMClient) { l.jitter = jitter }
}

func NewLLMClient(cfg LLMConfig, logger *log.Logger, opts ...LLMOption) *LLMClient {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentLLM)
	}
	c := &LLMClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.WithComponent(log.ComponentLLM),
		sleep:  sleepContext,
		jitter: func() time.Duration { return time.Duration(rand.Int63n(int64(maxJitter))) },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backoff returns the wait before retry number attempt (0-based):
// base·2^attempt plus jitter.
func (c *LLMClient) Backoff(attempt int) time.Duration {
	return c.cfg.BaseDelay*time.Duration(math.Pow(2, float64(attempt))) + c.jitter()
}

// Extract asks the model for a draft. Retryable failures are retried up to
// MaxRetries times; the last error is returned when the budget runs out.
func (c *LLMClient) Extract(ctx context.Context, text string, today core.Date, sources []core.PaymentSource, categories []string) (Result, error) {
	if c.cfg.APIKey == "" {
		return Result{}, &ExternalError{Err: ErrNoAPIKey}
	}
	body, err := json.Marshal(c.request(text, today, sources, categories))
	if err != nil {
		return Result{}, fmt.Errorf("encode llm request: %w", err)
	}

	start := time.Now()
	defer func() { metrics.LLMDuration.Observe(time.Since(start).Seconds()) }()

	for attempt := 0; ; attempt++ {
		content, err := c.complete(ctx, body)
		if err == nil {
			metrics.LLMAttempts.WithLabelValues("ok").Inc()
			return decodeResult(content, today)
		}
		if !IsRetryable(err) || attempt >= c.cfg.MaxRetries {
			metrics.LLMAttempts.WithLabelValues("failed").Inc()
			return Result{}, err
		}
		metrics.LLMAttempts.WithLabelValues("retried").Inc()

		delay := c.Backoff(attempt)
		c.logger.WarnContext(ctx, "LLM call failed, retrying",
			log.FieldAttempt, attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"delay", delay,
			log.FieldError, err.Error())
		if err := c.sleep(ctx, delay); err != nil {
			return Result{}, &ExternalError{Err: err}
		}
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *LLMClient) request(text string, today core.Date, sources []core.PaymentSource, categories []string) chatRequest {
	var src strings.Builder
	for _, s := range sources {
		if s.IsActive {
			fmt.Fprintf(&src, "- %s (%s, %s)\n", s.ID, s.Name, s.Type)
		}
	}
	system := fmt.Sprintf(`You extract expense data from spoken descriptions. Amounts are Indian rupees.
Today is %s. Resolve relative dates against it.
Use exactly one category from: %s.
Payment sources:
%sIf no payment method is mentioned, pick the source with the highest balance.
Return ONLY a JSON object with keys vendor, amount, date (YYYY-MM-DD), category, description (max 50 chars), sourceId, confidence (0-100), reasoning.`,
		today, strings.Join(categories, ", "), src.String())

	return chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: fmt.Sprintf("Extract the expense from this voice input:\n\n%q", text)},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

// complete performs one HTTP attempt and returns the message content.
func (c *LLMClient) complete(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", &ExternalError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// Cancellation is the caller's decision, not a hiccup.
		return "", &ExternalError{Err: err, Retryable: ctx.Err() == nil}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", statusError(resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &ExternalError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", &ExternalError{StatusCode: resp.StatusCode, Err: errors.New("response has no message content")}
	}
	return out.Choices[0].Message.Content, nil
}

func statusError(code int, body string) *ExternalError {
	switch code {
	case http.StatusTooManyRequests:
		return &ExternalError{StatusCode: code, Retryable: true, Err: errors.New("rate limited")}
	case http.StatusUnauthorized:
		return &ExternalError{StatusCode: code, Err: errors.New("invalid api key")}
	case http.StatusForbidden:
		return &ExternalError{StatusCode: code, Err: errors.New("access forbidden, check key permissions or credits")}
	default:
		return &ExternalError{StatusCode: code, Err: fmt.Errorf("unexpected response: %s", body)}
	}
}

type llmPayload struct {
	Vendor          string          `json:"vendor"`
	Amount          core.Money      `json:"amount"`
	Date            string          `json:"date"`
	Category        string          `json:"category"`
	Description     string          `json:"description"`
	SourceID        string          `json:"sourceId"`
	PaymentSourceID string          `json:"payment_source_id"`
	Confidence      json.RawMessage `json:"confidence"`
	Reasoning       string          `json:"reasoning"`
}

// decodeResult parses the model's JSON answer. Anything that is not a JSON
// object is a hard failure.
func decodeResult(content string, today core.Date) (Result, error) {
	var p llmPayload
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &p); err != nil {
		return Result{}, &ExternalError{Err: fmt.Errorf("model returned non-JSON content: %w", err)}
	}

	r := Result{
		Amount:      p.Amount,
		Vendor:      strings.TrimSpace(p.Vendor),
		Date:        today,
		Category:    strings.TrimSpace(p.Category),
		Description: truncateRunes(strings.TrimSpace(p.Description), descriptionLimit),
		SourceID:    p.SourceID,
		Confidence:  parseConfidence(p.Confidence),
		Reasoning:   p.Reasoning,
	}
	if r.SourceID == "" {
		r.SourceID = p.PaymentSourceID
	}
	if d, err := core.ParseDate(p.Date); err == nil {
		r.Date = d
	}
	if r.Amount.Paise < 0 {
		r.Amount = core.Money{}
	}
	return r, nil
}

// parseConfidence accepts a number or numeric string and clamps to 0..100.
func parseConfidence(raw json.RawMessage) int {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return 0
		}
		if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &f); err != nil {
			return 0
		}
	}
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(100, f))))
}

// stripCodeFence removes a ```json ... ``` wrapper some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
