// Package assistant talks to a Gemini-style generative text endpoint.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/tasksync/internal/domain"
	"github.com/felixgeelhaar/tasksync/internal/errors"
	"github.com/felixgeelhaar/tasksync/internal/log"
	"github.com/felixgeelhaar/tasksync/internal/metrics"
)

const (
	// DefaultBaseURL is the public generative language endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultModel is used when Options.Model is empty.
	DefaultModel = "gemini-1.5-flash"
)

// Messages shown to the user for failed calls.
const (
	MsgBadRequest    = "Bad request. Please check your input."
	MsgUnauthorized  = "Invalid API key. Please check your configuration."
	MsgModelNotFound = "Model not found. Please check the model name."
	MsgRateLimited   = "Rate limit exceeded. Please wait a moment and try again."
	MsgUnavailable   = "Sorry, I couldn't process your request. Please try again later."
	MsgEmpty         = "Sorry, I couldn't generate a response. Please try rephrasing your question."
	MsgNotConfigured = "The assistant is not configured. Please set an API key."
)

// Reply is the outcome of one question. Text is always displayable: on
// failure it carries the user-facing message and Err the coded error.
type Reply struct {
	Text string `json:"text" yaml:"text"`
	Err  error  `json:"-" yaml:"-"`
}

// Options configures a Client.
type Options struct {
	BaseURL         string
	APIKey          string
	Model           string
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
	HTTPClient      *http.Client
	Logger          *log.Logger
	Metrics         *metrics.Metrics
}

// Client sends prompts to the model.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	gen     generationConfig
	http    *http.Client
	logger  *log.Logger
	metrics *metrics.Metrics
}

// New creates an assistant client. Zero generation values fall back to
// temperature 0.9, topK 1, topP 1 and 2048 output tokens.
func New(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	gen := generationConfig{
		Temperature:     opts.Temperature,
		TopK:            opts.TopK,
		TopP:            opts.TopP,
		MaxOutputTokens: opts.MaxOutputTokens,
	}
	if gen.Temperature == 0 {
		gen.Temperature = 0.9
	}
	if gen.TopK == 0 {
		gen.TopK = 1
	}
	if gen.TopP == 0 {
		gen.TopP = 1
	}
	if gen.MaxOutputTokens == 0 {
		gen.MaxOutputTokens = 2048
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 120 * time.Second}
	}

	return &Client{
		baseURL: base,
		apiKey:  opts.APIKey,
		model:   model,
		gen:     gen,
		http:    hc,
		logger:  log.OrDefault(opts.Logger).Named("assistant"),
		metrics: opts.Metrics,
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.model
}

// BaseURL returns the endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ask sends a single user turn.
func (c *Client) Ask(ctx context.Context, prompt string) (Reply, error) {
	return c.Converse(ctx, nil, prompt)
}

// Converse sends prior turns followed by prompt.
func (c *Client) Converse(ctx context.Context, history []domain.ChatMessage, prompt string) (Reply, error) {
	if strings.TrimSpace(prompt) == "" {
		return failed(errors.New(errors.ErrCodeAIBadRequest, MsgBadRequest).
			WithSuggestion("Type a question before sending"))
	}
	if c.apiKey == "" {
		return failed(errors.New(errors.ErrCodeAIConfig, MsgNotConfigured).
			WithSuggestion("Set the TASKSYNC_ASSISTANT_API_KEY environment variable"))
	}

	contents := make([]content, 0, len(history)+1)
	for _, m := range history {
		contents = append(contents, content{Role: string(m.Role), Parts: []part{{Text: m.Content}}})
	}
	contents = append(contents, content{Role: string(domain.ChatRoleUser), Parts: []part{{Text: prompt}}})

	start := time.Now()
	text, genErr := c.generate(ctx, generateRequest{
		Contents:         contents,
		GenerationConfig: &c.gen,
		SafetySettings:   defaultSafetySettings(),
	})
	c.metrics.RecordExternalCall("assistant", genErr == nil, time.Since(start))
	if genErr != nil {
		c.logger.WithError(genErr).Warn("assistant request failed", "model", c.model)
		return failed(genErr)
	}
	return Reply{Text: text}, nil
}

func (c *Client) generate(ctx context.Context, body generateRequest) (string, *errors.Error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeAIUnavailable, MsgUnavailable, fmt.Errorf("marshal request: %w", err))
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeAIUnavailable, MsgUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeAIUnavailable, MsgUnavailable, redact(err, c.apiKey))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeAIUnavailable, MsgUnavailable, fmt.Errorf("read response: %w", err))
	}

	var parsed generateResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode != http.StatusOK {
		detail := fmt.Errorf("status %d", resp.StatusCode)
		if decodeErr == nil && parsed.Error != nil {
			detail = fmt.Errorf("status %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return "", statusError(resp.StatusCode, detail)
	}
	if decodeErr != nil {
		return "", errors.Wrap(errors.ErrCodeAIUnavailable, MsgUnavailable, fmt.Errorf("parse response: %w", decodeErr))
	}
	if parsed.Error != nil {
		return "", statusError(parsed.Error.Code, fmt.Errorf("%s", parsed.Error.Message))
	}

	text := parsed.text()
	if strings.TrimSpace(text) == "" {
		reason := "no candidates"
		if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
			reason = "blocked: " + parsed.PromptFeedback.BlockReason
		} else if len(parsed.Candidates) > 0 && parsed.Candidates[0].FinishReason != "" {
			reason = "finish reason " + parsed.Candidates[0].FinishReason
		}
		return "", errors.Wrap(errors.ErrCodeAIEmptyResponse, MsgEmpty, fmt.Errorf("%s", reason))
	}
	return text, nil
}

// statusError maps an HTTP status to the user-facing message.
func statusError(status int, cause error) *errors.Error {
	switch status {
	case http.StatusBadRequest:
		return errors.Wrap(errors.ErrCodeAIBadRequest, MsgBadRequest, cause)
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Wrap(errors.ErrCodeAIUnauthorized, MsgUnauthorized, cause).
			WithSuggestion("Check TASKSYNC_ASSISTANT_API_KEY")
	case http.StatusNotFound:
		return errors.Wrap(errors.ErrCodeAIModelNotFound, MsgModelNotFound, cause).
			WithSuggestion("Check assistant.model in the config file")
	case http.StatusTooManyRequests:
		return errors.Wrap(errors.ErrCodeAIRateLimit, MsgRateLimited, cause)
	default:
		return errors.Wrap(errors.ErrCodeAIUnavailable, MsgUnavailable, cause)
	}
}

func failed(err *errors.Error) (Reply, error) {
	return Reply{Text: err.Message, Err: err}, err
}

// Message returns the user-facing text for an assistant error.
func Message(err error) string {
	var coded *errors.Error
	if errors.As(err, &coded) {
		return coded.Message
	}
	return MsgUnavailable
}

func redact(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), key, "REDACTED"))
}
