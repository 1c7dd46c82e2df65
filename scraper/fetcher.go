package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-rate-signals/config"
	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

// Page is a fetched HTTP response body.
type Page struct {
	URL        *url.URL
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Fetcher issues HTTP requests for extractors through a shared colly
// collector. It adds per-source rate limiting, retries with capped
// exponential backoff and typed error classification.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	transport *contextTransport
	Metrics   *Metrics

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewFetcher builds a fetcher configured from cfg.
func NewFetcher(cfg *config.Config, metrics *Metrics) (*Fetcher, error) {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	transport := &contextTransport{base: &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}}
	collector.WithTransport(transport)

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	return &Fetcher{
		cfg:       cfg,
		collector: collector,
		transport: transport,
		Metrics:   metrics,
		limiters:  make(map[string]*rate.Limiter),
	}, nil
}

// WithTransport swaps the HTTP transport, used by tests to inject mocks.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.transport = &contextTransport{base: rt}
	f.collector.WithTransport(f.transport)
}

// Get fetches rawURL on behalf of source.
func (f *Fetcher) Get(ctx context.Context, source, rawURL string, hdr http.Header) (*Page, error) {
	return f.Do(ctx, source, http.MethodGet, rawURL, nil, hdr)
}

// Post sends body to rawURL on behalf of source.
func (f *Fetcher) Post(ctx context.Context, source, rawURL string, body []byte, hdr http.Header) (*Page, error) {
	return f.Do(ctx, source, http.MethodPost, rawURL, body, hdr)
}

// Document fetches an HTML page and parses it. Bot walls served with a
// 200 status are reported as ErrBlocked.
func (f *Fetcher) Document(ctx context.Context, source, rawURL string) (*goquery.Document, error) {
	page, err := f.Get(ctx, source, rawURL, http.Header{"Accept": []string{"text/html,application/xhtml+xml"}})
	if err != nil {
		return nil, err
	}
	if marker, blocked := DetectBlocked(page.Body); blocked {
		err := ErrBlocked{URL: rawURL, Marker: marker}
		f.Metrics.IncError(source, ErrorTypeLabel(err))
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	doc.Url = page.URL
	return doc, nil
}

// Do runs one request with rate limiting and retries.
func (f *Fetcher) Do(ctx context.Context, source, method, rawURL string, body []byte, hdr http.Header) (*Page, error) {
	limiter := f.limiter(source)
	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			f.Metrics.IncRetries(source)
			if err := sleepContext(ctx, f.backoff(attempt)); err != nil {
				return nil, ErrTimeout{Err: err}
			}
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, ErrTimeout{Err: err}
			}
		}

		page, err := f.once(ctx, source, method, rawURL, body, hdr)
		if err == nil {
			return page, nil
		}
		lastErr = err
		category := ErrorTypeLabel(err)
		f.Metrics.IncError(source, category)
		slog.Debug("request error",
			slog.String("source", source),
			slog.String("url", rawURL),
			slog.String("category", category),
			slog.Int("attempt", attempt+1),
			slog.Any("error", err),
		)
		if !retryable(err) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (f *Fetcher) once(ctx context.Context, source, method, rawURL string, body []byte, hdr http.Header) (*Page, error) {
	c := f.collector.Clone()

	var (
		page     *Page
		fetchErr error
		start    time.Time
	)
	c.OnRequest(func(r *colly.Request) {
		start = time.Now()
		f.Metrics.IncRequest(source, "started")
	})
	c.OnResponse(func(r *colly.Response) {
		f.Metrics.ObserveDuration(source, time.Since(start))
		header := http.Header{}
		if r.Headers != nil {
			header = r.Headers.Clone()
		}
		page = &Page{
			URL:        r.Request.URL,
			StatusCode: r.StatusCode,
			Header:     header,
			Body:       r.Body,
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		statusCode := 0
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = classifyError(err, statusCode)
	})

	// colly requests carry no context; the transport looks ours up by
	// header so a request abandoned here is cancelled and frees its slot.
	id, hdr := f.transport.track(ctx, hdr)
	done := make(chan error, 1)
	go func() {
		defer f.transport.forget(id)
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		done <- c.Request(method, rawURL, reader, nil, hdr)
	}()

	select {
	case <-ctx.Done():
		return nil, ErrTimeout{Err: ctx.Err()}
	case err := <-done:
		if fetchErr != nil {
			return nil, fetchErr
		}
		if err != nil {
			return nil, classifyError(err, 0)
		}
		if page == nil {
			return nil, fmt.Errorf("no response from %s", rawURL)
		}
		f.Metrics.IncRequest(source, "completed")
		return page, nil
	}
}

const fetchIDHeader = "X-Ratesignals-Fetch"

// contextTransport binds each outgoing request to the context of the
// Fetcher call that issued it.
type contextTransport struct {
	base     http.RoundTripper
	seq      atomic.Uint64
	inflight sync.Map
}

func (t *contextTransport) track(ctx context.Context, hdr http.Header) (string, http.Header) {
	id := strconv.FormatUint(t.seq.Add(1), 10)
	t.inflight.Store(id, ctx)
	tagged := hdr.Clone()
	if tagged == nil {
		tagged = http.Header{}
	}
	tagged.Set(fetchIDHeader, id)
	return id, tagged
}

func (t *contextTransport) forget(id string) {
	t.inflight.Delete(id)
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	id := req.Header.Get(fetchIDHeader)
	if id == "" {
		return t.base.RoundTrip(req)
	}
	ctx := req.Context()
	if v, ok := t.inflight.Load(id); ok {
		ctx = v.(context.Context)
	}
	out := req.Clone(ctx)
	out.Header.Del(fetchIDHeader)
	return t.base.RoundTrip(out)
}

func (f *Fetcher) limiter(source string) *rate.Limiter {
	if f.cfg.RequestsPerSecond <= 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[source]
	if !ok {
		l = rate.NewLimiter(rate.Limit(f.cfg.RequestsPerSecond), f.cfg.Burst)
		f.limiters[source] = l
	}
	return l
}

func (f *Fetcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := f.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := f.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var blockedMarkers = []string{
	"captcha",
	"access denied",
	"are you a robot",
	"verify you are human",
	"unusual traffic",
}

// DetectBlocked looks for bot-wall markers in the first part of a page.
func DetectBlocked(body []byte) (string, bool) {
	head := body
	if len(head) > 16*1024 {
		head = head[:16*1024]
	}
	lower := strings.ToLower(string(head))
	for _, marker := range blockedMarkers {
		if strings.Contains(lower, marker) {
			return marker, true
		}
	}
	return "", false
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode == http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case statusCode == http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case statusCode == http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case statusCode >= http.StatusInternalServerError:
			return ErrServer{StatusCode: statusCode, Err: wrapped}
		}
	}

	if err == nil {
		return fmt.Errorf("http status %d", statusCode)
	}
	return err
}
