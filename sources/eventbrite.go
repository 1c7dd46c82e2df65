package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-rate-signals/config"
	"github.com/aluiziolira/go-rate-signals/geo"
	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/aluiziolira/go-rate-signals/parser"
	"github.com/aluiziolira/go-rate-signals/scraper"
)

// Eventbrite extracts events from a city listing.
type Eventbrite struct {
	cfg     *config.Config
	fetcher Fetcher
}

// NewEventbrite builds the second event listing extractor.
func NewEventbrite(cfg *config.Config, fetcher Fetcher) *Eventbrite {
	return &Eventbrite{cfg: cfg, fetcher: fetcher}
}

// Name implements scraper.Extractor.
func (e *Eventbrite) Name() string { return config.SourceEventbrite }

// Fetch locates the city listing, extracts events, enriches incomplete
// ones from their detail pages and geofences those carrying coordinates.
func (e *Eventbrite) Fetch(ctx context.Context, target scraper.Target) ([]models.RawObservation, error) {
	listingURL, err := e.ListingURL(target)
	if err != nil {
		return nil, err
	}
	doc, err := e.fetcher.Document(ctx, e.Name(), listingURL)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", listingURL, err)
	}

	obs := ParseEventbriteListing(doc, e.cfg.Eventbrite.BaseURL)
	obs = enrichEvents(ctx, e.fetcher, e.Name(), obs, e.cfg.EnrichWorkers, e.cfg.EnrichLimit)

	fence := geo.Fence{Origin: target.Origin, RadiusKm: radius(target, e.cfg)}
	kept, _ := fence.Apply(obs)
	return kept, nil
}

// ListingURL resolves the target city, or failing that the nearest metro
// area, into a listing page.
func (e *Eventbrite) ListingURL(target scraper.Target) (string, error) {
	city := strings.TrimSpace(target.City)
	if city == "" {
		if area, ok := geo.NearestMetro(target.Origin, e.cfg.MetroAreas, e.cfg.MetroMatchKm); ok {
			city = area.Name
		}
	}
	if city == "" {
		return "", fmt.Errorf("no city to locate listing: %w", scraper.ErrNoCandidates)
	}
	base := strings.TrimSuffix(e.cfg.Eventbrite.BaseURL, "/")
	place := slugify(city)
	if country := slugify(e.cfg.Eventbrite.Country); country != "" {
		place = country + "--" + place
	}
	return fmt.Sprintf("%s/d/%s/events/", base, place), nil
}

// ParseEventbriteListing reads the JSON-LD ItemList of events and falls
// back to event cards and /e/ links when the block is missing.
func ParseEventbriteListing(doc *goquery.Document, base string) []models.RawObservation {
	if obs := parseEventbriteItemList(doc, base); len(obs) > 0 {
		return obs
	}
	return parseEventbriteCards(doc, base)
}

func parseEventbriteItemList(doc *goquery.Document, base string) []models.RawObservation {
	var out []models.RawObservation
	for _, n := range jsonLDNodes(doc.Selection) {
		if !hasType(n, "ItemList") {
			continue
		}
		for _, entry := range children(n, "itemListElement") {
			ev := child(entry, "item")
			if ev == nil {
				ev = entry
			}
			name := parser.NormalizeText(str(ev, "name"))
			if name == "" {
				continue
			}
			out = append(out, models.RawObservation{
				SourceID:           config.SourceEventbrite,
				Kind:               models.KindEvent,
				RawName:            name,
				RawDate:            str(ev, "startDate"),
				RawVenueOrRoomType: parser.NormalizeText(str(child(ev, "location"), "name")),
				RawLatLon:          geoOf(ev),
				URL:                absoluteURL(doc, base, str(ev, "url")),
			})
		}
	}
	return out
}

func parseEventbriteCards(doc *goquery.Document, base string) []models.RawObservation {
	var out []models.RawObservation
	seen := make(map[string]bool)
	doc.Find(`a[href*="/e/"]`).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		abs := absoluteURL(doc, base, href)
		if abs == "" || seen[abs] {
			return
		}
		card := link.Closest(`[data-testid="event-card"], .event-card, article, li`)
		if card.Length() == 0 {
			card = link.Parent()
		}
		name := parser.NormalizeText(card.Find("h2, h3").First().Text())
		if name == "" {
			name = parser.NormalizeText(link.Text())
		}
		if name == "" {
			return
		}
		seen[abs] = true

		date, _ := card.Find("time[datetime]").First().Attr("datetime")
		if date == "" {
			date = parser.NormalizeText(card.Find(`[data-testid="event-date"], .event-card__date`).First().Text())
		}
		out = append(out, models.RawObservation{
			SourceID:           config.SourceEventbrite,
			Kind:               models.KindEvent,
			RawName:            name,
			RawDate:            date,
			RawVenueOrRoomType: parser.NormalizeText(card.Find(`[data-testid="event-location"], .event-card__location`).First().Text()),
			URL:                abs,
		})
	})
	return out
}
