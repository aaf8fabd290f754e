// Package httpx builds the HTTP clients shared by the backend, news and
// assistant clients.
package httpx

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/felixgeelhaar/tasksync/internal/log"
	"github.com/felixgeelhaar/tasksync/internal/metrics"
)

// DefaultTimeout applies when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Options configures a client.
type Options struct {
	// Service labels request metrics, e.g. "backend" or "news".
	Service  string
	Timeout  time.Duration
	RetryMax int
	// UserAgent is set on requests that carry none.
	UserAgent string
	Logger    *log.Logger
	Metrics   *metrics.Metrics
}

// New returns an *http.Client backed by go-retryablehttp.
//
// Non-2xx responses are always handed back to the caller, including after
// retries are exhausted, so status codes can be mapped to user messages.
func New(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retryMax := opts.RetryMax
	if retryMax < 0 {
		retryMax = 0
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = log.OrDefault(opts.Logger).Named("http")
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := rc.StandardClient()
	client.Transport = &instrumented{
		next:    client.Transport,
		service:   opts.Service,
		userAgent: opts.UserAgent,
		metrics:   opts.Metrics,
	}
	return client
}

type instrumented struct {
	next      http.RoundTripper
	service   string
	userAgent string
	metrics   *metrics.Metrics
}

func (t *instrumented) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	t.metrics.RecordBackendRequest(t.service, req.Method, status, time.Since(start))
	return resp, err
}
