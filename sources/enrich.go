package sources

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/aluiziolira/go-rate-signals/parser"
	"golang.org/x/sync/errgroup"
)

// EventDetail is what a detail page adds to a listing record.
type EventDetail struct {
	Date  string
	Venue string
	Geo   *models.LatLon
}

var venueSelectors = []string{
	`[data-testid="venue-name"]`,
	".location-info__address-text",
	".venue-name",
	"a.venue-link",
	`[itemprop="location"] [itemprop="name"]`,
}

// ParseEventDetail reads a detail page: JSON-LD Event first, then
// time[datetime] and venue selectors.
func ParseEventDetail(doc *goquery.Document) EventDetail {
	var d EventDetail
	for _, n := range jsonLDNodes(doc.Selection) {
		if !hasType(n, "Event", "MusicEvent", "SportsEvent", "TheaterEvent", "Festival", "ComedyEvent") {
			continue
		}
		d.Date = str(n, "startDate")
		d.Venue = str(child(n, "location"), "name")
		d.Geo = geoOf(n)
		break
	}
	if d.Date == "" {
		if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
			d.Date = strings.TrimSpace(dt)
		}
	}
	if d.Venue == "" {
		for _, sel := range venueSelectors {
			if v := parser.NormalizeText(doc.Find(sel).First().Text()); v != "" {
				d.Venue = v
				break
			}
		}
	}
	return d
}

func needsEnrichment(o models.RawObservation) bool {
	return o.URL != "" && (strings.TrimSpace(o.RawDate) == "" || strings.TrimSpace(o.RawVenueOrRoomType) == "")
}

type enrichment struct {
	index  int
	detail EventDetail
}

// enrichEvents backfills date and venue for the first limit records that
// lack them, fetching detail pages with at most workers in flight.
// Fetch failures leave the record as it was.
func enrichEvents(ctx context.Context, fetcher Fetcher, source string, obs []models.RawObservation, workers, limit int) []models.RawObservation {
	var pending []int
	for i, o := range obs {
		if len(pending) >= limit {
			break
		}
		if needsEnrichment(o) {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return obs
	}

	var (
		mu      sync.Mutex
		results []enrichment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, idx := range pending {
		detailURL := obs[idx].URL
		g.Go(func() error {
			doc, err := fetcher.Document(gctx, source, detailURL)
			if err != nil {
				slog.Debug("enrichment fetch failed",
					slog.String("source", source),
					slog.String("url", detailURL),
					slog.Any("error", err),
				)
				return nil
			}
			detail := ParseEventDetail(doc)
			mu.Lock()
			results = append(results, enrichment{index: idx, detail: detail})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.RawObservation, len(obs))
	copy(out, obs)
	for _, r := range results {
		o := &out[r.index]
		if strings.TrimSpace(o.RawDate) == "" {
			o.RawDate = r.detail.Date
		}
		if strings.TrimSpace(o.RawVenueOrRoomType) == "" {
			o.RawVenueOrRoomType = r.detail.Venue
		}
		if o.RawLatLon == nil {
			o.RawLatLon = r.detail.Geo
		}
	}
	return out
}
