package sources

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-rate-signals/config"
	"github.com/aluiziolira/go-rate-signals/scraper"
	"github.com/jarcoal/httpmock"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Parallelism = 4
	cfg.Delay = 0
	cfg.RandomDelay = 0
	cfg.MaxRetries = 0
	cfg.RequestsPerSecond = 0
	cfg.Booking.BaseURL = "http://booking.test"
	cfg.Songkick.BaseURL = "http://songkick.test"
	cfg.Eventbrite.BaseURL = "http://eventbrite.test"
	cfg.Amadeus.BaseURL = "http://amadeus.test"
	return cfg
}

func newTestFetcher(t *testing.T, cfg *config.Config, transport http.RoundTripper) *scraper.Fetcher {
	t.Helper()
	f, err := scraper.NewFetcher(cfg, scraper.NewMetrics())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	f.WithTransport(transport)
	return f
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return doc
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}
