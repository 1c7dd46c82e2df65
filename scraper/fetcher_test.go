package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-rate-signals/config"
	"github.com/jarcoal/httpmock"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Parallelism = 4
	cfg.Delay = 0
	cfg.RandomDelay = 0
	cfg.MaxRetries = 2
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 2 * time.Millisecond
	cfg.RequestsPerSecond = 0
	return cfg
}

func newTestFetcher(t *testing.T, cfg *config.Config, transport http.RoundTripper) *Fetcher {
	t.Helper()
	f, err := NewFetcher(cfg, NewMetrics())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	f.WithTransport(transport)
	return f
}

func TestFetcherBackoffCapped(t *testing.T) {
	cfg := testConfig()
	cfg.RetryBackoff = 200 * time.Millisecond
	cfg.RetryBackoffMax = 500 * time.Millisecond

	f := newTestFetcher(t, cfg, httpmock.NewMockTransport())

	if got := f.backoff(1); got != 200*time.Millisecond {
		t.Fatalf("first backoff = %v, want 200ms", got)
	}
	if delay := f.backoff(4); delay > cfg.RetryBackoffMax {
		t.Fatalf("delay %v exceeds max %v", delay, cfg.RetryBackoffMax)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server", err: nil, statusCode: http.StatusBadGateway, expected: "server"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestErrorTypeLabelSentinels(t *testing.T) {
	if got := ErrorTypeLabel(fmt.Errorf("amadeus: %w", ErrSourceDisabled)); got != "disabled" {
		t.Fatalf("label = %q, want disabled", got)
	}
	if got := ErrorTypeLabel(ErrBlocked{URL: "http://x", Marker: "captcha"}); got != "blocked" {
		t.Fatalf("label = %q, want blocked", got)
	}
}

func TestFetcherHTTPStatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{status: http.StatusTooManyRequests, expected: "rate_limited"},
		{status: http.StatusForbidden, expected: "forbidden"},
		{status: http.StatusNotFound, expected: "not_found"},
		{status: http.StatusServiceUnavailable, expected: "server"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			cfg := testConfig()
			cfg.MaxRetries = 0

			transport := httpmock.NewMockTransport()
			transport.RegisterResponder("GET", "http://example.test/page", httpmock.NewStringResponder(tt.status, ""))

			f := newTestFetcher(t, cfg, transport)
			_, err := f.Get(context.Background(), "test", "http://example.test/page", nil)
			if err == nil {
				t.Fatalf("expected error for status %d", tt.status)
			}
			if got := ErrorTypeLabel(err); got != tt.expected {
				t.Fatalf("label = %q, want %q (err=%v)", got, tt.expected, err)
			}
		})
	}
}

func TestFetcherRetriesTransientErrors(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()

	calls := 0
	transport.RegisterResponder("GET", "http://example.test/flaky", func(req *http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return httpmock.NewStringResponse(http.StatusServiceUnavailable, ""), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, "ok"), nil
	})

	f := newTestFetcher(t, cfg, transport)
	page, err := f.Get(context.Background(), "test", "http://example.test/flaky", nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(page.Body) != "ok" {
		t.Fatalf("body = %q, want ok", page.Body)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestFetcherDoesNotRetryNotFound(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://example.test/missing", httpmock.NewStringResponder(http.StatusNotFound, ""))

	f := newTestFetcher(t, cfg, transport)
	if _, err := f.Get(context.Background(), "test", "http://example.test/missing", nil); err == nil {
		t.Fatalf("expected not found error")
	}
	if got := transport.GetTotalCallCount(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestFetcherPostSendsBody(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("POST", "http://example.test/token", func(req *http.Request) (*http.Response, error) {
		if err := req.ParseForm(); err != nil {
			return nil, err
		}
		if req.PostForm.Get("grant_type") != "client_credentials" {
			return httpmock.NewStringResponse(http.StatusBadRequest, "bad grant"), nil
		}
		return httpmock.NewStringResponse(http.StatusOK, `{"access_token":"abc"}`), nil
	})

	f := newTestFetcher(t, cfg, transport)
	hdr := http.Header{"Content-Type": []string{"application/x-www-form-urlencoded"}}
	page, err := f.Post(context.Background(), "test", "http://example.test/token", []byte("grant_type=client_credentials"), hdr)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if !strings.Contains(string(page.Body), "abc") {
		t.Fatalf("unexpected body %q", page.Body)
	}
}

func TestFetcherDocumentDetectsBlockedPage(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://example.test/wall", htmlResponder("<html><body><h1>Please complete the CAPTCHA</h1></body></html>"))
	transport.RegisterResponder("GET", "http://example.test/ok", htmlResponder("<html><body><h1 class=\"title\">Hotel</h1></body></html>"))

	f := newTestFetcher(t, cfg, transport)
	_, err := f.Document(context.Background(), "test", "http://example.test/wall")
	var blocked ErrBlocked
	if !errors.As(err, &blocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}

	doc, err := f.Document(context.Background(), "test", "http://example.test/ok")
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if got := doc.Find("h1.title").Text(); got != "Hotel" {
		t.Fatalf("title = %q, want Hotel", got)
	}
	if doc.Url == nil || doc.Url.Host != "example.test" {
		t.Fatalf("document URL not set: %v", doc.Url)
	}
}

func TestFetcherHonoursContextDeadline(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()
	release := make(chan struct{})
	defer close(release)
	transport.RegisterResponder("GET", "http://example.test/slow", func(req *http.Request) (*http.Response, error) {
		<-release
		return httpmock.NewStringResponse(http.StatusOK, "late"), nil
	})

	f := newTestFetcher(t, cfg, transport)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Get(ctx, "test", "http://example.test/slow", nil)
	if got := ErrorTypeLabel(err); got != "timeout" {
		t.Fatalf("label = %q, want timeout (err=%v)", got, err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Get blocked for %v past its deadline", elapsed)
	}
}

func TestFetcherCancelsAbandonedRequest(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()
	cancelled := make(chan struct{})
	transport.RegisterResponder("GET", "http://example.test/hang", func(req *http.Request) (*http.Response, error) {
		if req.Header.Get(fetchIDHeader) != "" {
			t.Errorf("internal header leaked to the wire")
		}
		select {
		case <-req.Context().Done():
			close(cancelled)
			return nil, req.Context().Err()
		case <-time.After(5 * time.Second):
			return httpmock.NewStringResponse(http.StatusOK, "late"), nil
		}
	})

	f := newTestFetcher(t, cfg, transport)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := f.Get(ctx, "test", "http://example.test/hang", nil); ErrorTypeLabel(err) != "timeout" {
		t.Fatalf("err = %v, want timeout", err)
	}
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatalf("abandoned request kept running after the deadline")
	}
}

func TestDetectBlocked(t *testing.T) {
	if _, blocked := DetectBlocked([]byte("<html>Access Denied</html>")); !blocked {
		t.Fatalf("expected access denied page to be blocked")
	}
	if _, blocked := DetectBlocked([]byte("<html><body>Hotel Riviera</body></html>")); blocked {
		t.Fatalf("regular page flagged as blocked")
	}
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}
