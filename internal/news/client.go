// Package news reads headlines from a NewsAPI-compatible aggregator.
package news

import (
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

// DefaultBaseURL is the public NewsAPI endpoint.
const DefaultBaseURL = "https://newsapi.org/v2"

// failureMessage is the only text a caller ever sees for a failed call.
const failureMessage = "Failed to fetch news"

// Response is the aggregator's article list.
type Response struct {
	Status       string           `json:"status" yaml:"status"`
	TotalResults int              `json:"totalResults" yaml:"total_results"`
	Articles     []domain.Article `json:"articles" yaml:"articles"`
}

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	// Country is used by TopHeadlines when the caller passes none.
	Country    string
	HTTPClient *http.Client
	Logger     *log.Logger
	Metrics    *metrics.Metrics
}

// Client calls the aggregator.
type Client struct {
	baseURL string
	apiKey  string
	country string
	http    *http.Client
	logger  *log.Logger
	metrics *metrics.Metrics
}

// New creates a news client. A missing API key is reported on first use
// so the rest of the application still starts.
func New(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: base,
		apiKey:  opts.APIKey,
		country: opts.Country,
		http:    hc,
		logger:  log.OrDefault(opts.Logger).Named("news"),
		metrics: opts.Metrics,
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// BaseURL returns the aggregator endpoint.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TopHeadlines returns the current headlines for country, optionally
// narrowed to category.
func (c *Client) TopHeadlines(ctx context.Context, country, category string) (*Response, error) {
	if country == "" {
		country = c.country
	}
	q := url.Values{}
	if country != "" {
		q.Set("country", country)
	}
	if category != "" {
		q.Set("category", category)
	}
	return c.get(ctx, "/top-headlines", q)
}

// Search returns articles matching query. sortBy is one of relevancy,
// popularity or publishedAt; empty leaves the aggregator default.
func (c *Client) Search(ctx context.Context, query, sortBy string) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New(errors.ErrCodeNewsFetchFailed, failureMessage).
			WithSuggestion("Pass a search term, for example 'tasksync news search golang'")
	}
	q := url.Values{}
	q.Set("q", query)
	if sortBy != "" {
		q.Set("sortBy", sortBy)
	}
	return c.get(ctx, "/everything", q)
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (resp *Response, err error) {
	if c.apiKey == "" {
		return nil, errors.New(errors.ErrCodeNewsConfig, failureMessage).
			WithSuggestion("Set the TASKSYNC_NEWS_API_KEY environment variable")
	}

	start := time.Now()
	defer func() {
		c.metrics.RecordExternalCall("news", err == nil, time.Since(start))
		if err != nil {
			c.logger.WithError(err).Warn("news request failed", "path", path)
		}
	}()

	q.Set("apiKey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNewsFetchFailed, failureMessage, err)
	}
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNewsFetchFailed, failureMessage, redact(err, c.apiKey))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNewsFetchFailed, failureMessage, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr apiError
		detail := http.StatusText(httpResp.StatusCode)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			detail = apiErr.Code + ": " + apiErr.Message
		}
		return nil, errors.Wrap(errors.ErrCodeNewsFetchFailed, failureMessage,
			fmt.Errorf("status %d: %s", httpResp.StatusCode, detail))
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, errors.Wrap(errors.ErrCodeNewsFetchFailed, failureMessage, fmt.Errorf("parse response: %w", err))
	}
	if out.Status != "" && out.Status != "ok" {
		return nil, errors.Wrap(errors.ErrCodeNewsFetchFailed, failureMessage, fmt.Errorf("status %q", out.Status))
	}
	if out.Articles == nil {
		out.Articles = []domain.Article{}
	}
	return &out, nil
}

// redact strips the API key from transport errors, which quote the URL.
func redact(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), key) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), key, "REDACTED"))
}
