package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// Renderer returns the DOM of a page after client-side scripts have run.
type Renderer interface {
	Render(ctx context.Context, url string) (*goquery.Document, error)
}

// ChromeRenderer renders pages in a headless Chrome via chromedp. A new
// browser context is created per call and torn down afterwards.
type ChromeRenderer struct {
	UserAgent string
	ExecPath  string
	WaitFor   string
	Settle    time.Duration
}

// Render navigates to url and returns the rendered outer HTML.
func (r *ChromeRenderer) Render(ctx context.Context, url string) (*goquery.Document, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1280, 900),
	)
	if r.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(r.UserAgent))
	}
	if r.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	settle := r.Settle
	if settle <= 0 {
		settle = 3 * time.Second
	}
	actions := []chromedp.Action{chromedp.Navigate(url)}
	if r.WaitFor != "" {
		actions = append(actions, chromedp.WaitReady(r.WaitFor, chromedp.ByQuery))
	} else {
		actions = append(actions, chromedp.Sleep(settle))
	}
	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(browserCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return nil, ErrTimeout{Err: ctx.Err()}
		}
		return nil, fmt.Errorf("render %s: %w", url, err)
	}
	if marker, blocked := DetectBlocked([]byte(html)); blocked {
		return nil, ErrBlocked{URL: url, Marker: marker}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered %s: %w", url, err)
	}
	return doc, nil
}
