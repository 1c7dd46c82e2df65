package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-rate-signals/config"
	"github.com/aluiziolira/go-rate-signals/geo"
	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/aluiziolira/go-rate-signals/parser"
	"github.com/aluiziolira/go-rate-signals/scraper"
)

// Songkick extracts concerts from a metro-area listing located by
// coordinates.
type Songkick struct {
	cfg     *config.Config
	fetcher Fetcher
}

// NewSongkick builds the first event listing extractor.
func NewSongkick(cfg *config.Config, fetcher Fetcher) *Songkick {
	return &Songkick{cfg: cfg, fetcher: fetcher}
}

// Name implements scraper.Extractor.
func (s *Songkick) Name() string { return config.SourceSongkick }

// Fetch locates the listing, extracts events and drops those outside the
// target radius.
func (s *Songkick) Fetch(ctx context.Context, target scraper.Target) ([]models.RawObservation, error) {
	listingURL := s.ListingURL(target)
	doc, err := s.fetcher.Document(ctx, s.Name(), listingURL)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", listingURL, err)
	}

	obs := ParseSongkickListing(doc, s.cfg.Songkick.BaseURL)
	obs = enrichEvents(ctx, s.fetcher, s.Name(), obs, s.cfg.EnrichWorkers, s.cfg.EnrichLimit)

	fence := geo.Fence{Origin: target.Origin, RadiusKm: radius(target, s.cfg)}
	kept, _ := fence.Apply(obs)
	return kept, nil
}

// ListingURL picks the nearest configured metro area page, or the
// coordinate search when no metro is close enough.
func (s *Songkick) ListingURL(target scraper.Target) string {
	base := strings.TrimSuffix(s.cfg.Songkick.BaseURL, "/")
	if area, ok := geo.NearestMetro(target.Origin, s.cfg.MetroAreas, s.cfg.MetroMatchKm); ok {
		return fmt.Sprintf("%s/metro-areas/%s-%s", base, area.ID, area.Slug)
	}
	q := url.Values{}
	q.Set("query", "")
	q.Set("location", fmt.Sprintf("%g,%g", target.Origin.Latitude, target.Origin.Longitude))
	q.Set("radius", fmt.Sprintf("%g", radius(target, s.cfg)))
	return base + "/search?" + q.Encode()
}

var songkickSelectors = []string{
	"li.event-listings-element",
	".event-listings li",
	".event-listings .event",
	`[data-testid="event-item"]`,
	".event-item",
}

// ParseSongkickListing walks the selector chain and falls back to any
// element whose class mentions "event".
func ParseSongkickListing(doc *goquery.Document, base string) []models.RawObservation {
	var items *goquery.Selection
	for _, sel := range songkickSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			items = found
			break
		}
	}
	if items == nil {
		items = doc.Find(`[class*="event"]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.Find("strong").Length() > 0
		})
	}

	var out []models.RawObservation
	seen := make(map[string]bool)
	items.Each(func(_ int, item *goquery.Selection) {
		name := parser.NormalizeText(item.Find("strong").First().Text())
		if name == "" {
			return
		}
		date, _ := item.Find("time[datetime]").First().Attr("datetime")
		if date == "" {
			date, _ = item.Attr("title")
		}
		if len(date) > 10 {
			date = date[:10]
		}
		href, _ := item.Find("a.event-link").First().Attr("href")
		link := absoluteURL(doc, base, href)

		key := name + "|" + date + "|" + link
		if seen[key] {
			return
		}
		seen[key] = true

		var latLon *models.LatLon
		for _, n := range jsonLDNodes(item.Find("div.microformat")) {
			if latLon = geoOf(n); latLon != nil {
				break
			}
		}

		out = append(out, models.RawObservation{
			SourceID:           config.SourceSongkick,
			Kind:               models.KindEvent,
			RawName:            name,
			RawDate:            strings.TrimSpace(date),
			RawVenueOrRoomType: parser.NormalizeText(item.Find("a.venue-link").First().Text()),
			RawLatLon:          latLon,
			URL:                link,
		})
	})
	return out
}

func radius(target scraper.Target, cfg *config.Config) float64 {
	if target.RadiusKm > 0 {
		return target.RadiusKm
	}
	return cfg.RadiusKm
}
