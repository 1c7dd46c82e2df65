package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-rate-signals/config"
	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/aluiziolira/go-rate-signals/parser"
	"github.com/aluiziolira/go-rate-signals/scraper"
	"golang.org/x/sync/errgroup"
)

// Booking extracts competitor room prices from a booking-search aggregator.
type Booking struct {
	cfg      *config.Config
	fetcher  Fetcher
	renderer scraper.Renderer
}

// NewBooking builds the price extractor. renderer may be nil; it is only
// used when cfg.Booking.RenderJS is set.
func NewBooking(cfg *config.Config, fetcher Fetcher, renderer scraper.Renderer) *Booking {
	return &Booking{cfg: cfg, fetcher: fetcher, renderer: renderer}
}

// Name implements scraper.Extractor.
func (b *Booking) Name() string { return config.SourceBooking }

// RoomPrice is a room label and its raw price text as found on a page.
type RoomPrice struct {
	Label string
	Price string
}

// Fetch looks up every competitor in the target with bounded concurrency.
// A competitor that cannot be priced is logged and skipped; the source
// only fails when every competitor failed.
func (b *Booking) Fetch(ctx context.Context, target scraper.Target) ([]models.RawObservation, error) {
	if len(target.Competitors) == 0 {
		return nil, nil
	}

	var (
		mu   sync.Mutex
		obs  []models.RawObservation
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Booking.Concurrency)
	for _, comp := range target.Competitors {
		g.Go(func() error {
			found, err := b.fetchCompetitor(gctx, comp, target)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("competitor not priced",
					slog.String("source", b.Name()),
					slog.String("competitor", comp.Name),
					slog.String("category", scraper.ErrorTypeLabel(err)),
					slog.Any("error", err),
				)
				errs = append(errs, fmt.Errorf("%s: %w", comp.Name, err))
				return nil
			}
			obs = append(obs, found...)
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) == len(target.Competitors) {
		return nil, errors.Join(errs...)
	}
	return obs, nil
}

func (b *Booking) fetchCompetitor(ctx context.Context, comp models.CompetitorHotel, target scraper.Target) ([]models.RawObservation, error) {
	city := comp.City
	if city == "" {
		city = target.City
	}
	searchDoc, err := b.fetcher.Document(ctx, b.Name(), b.searchURL(comp.Name, city, target.Date))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	candidate, ok := PickCandidate(comp.Name, city, ParseBookingCandidates(searchDoc), b.cfg.MetroAreas)
	if !ok {
		return nil, scraper.ErrNoCandidates
	}
	hotelURL := absoluteURL(searchDoc, b.cfg.Booking.BaseURL, candidate.URL)

	for offset := 0; offset <= b.cfg.Booking.DateRetries; offset++ {
		day := models.Day(target.Date).AddDate(0, 0, offset)
		doc, err := b.hotelDocument(ctx, stayURL(hotelURL, day, b.cfg.Booking.Adults))
		if err != nil {
			return nil, fmt.Errorf("hotel page: %w", err)
		}
		rooms := ExtractBookingRooms(doc)
		if len(rooms) == 0 {
			slog.Debug("no rooms for date, trying next day",
				slog.String("competitor", comp.Name),
				slog.String("date", day.Format(models.DateLayout)),
			)
			continue
		}
		out := make([]models.RawObservation, 0, len(rooms))
		for _, r := range rooms {
			out = append(out, models.RawObservation{
				SourceID:           b.Name(),
				Kind:               models.KindPrice,
				RawName:            comp.Name,
				RawDate:            day.Format(models.DateLayout),
				RawVenueOrRoomType: r.Label,
				RawPriceText:       r.Price,
				URL:                hotelURL,
				CompetitorID:       comp.ID,
				City:               city,
			})
		}
		return out, nil
	}
	return nil, nil
}

func (b *Booking) hotelDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if b.cfg.Booking.RenderJS && b.renderer != nil {
		return b.renderer.Render(ctx, rawURL)
	}
	return b.fetcher.Document(ctx, b.Name(), rawURL)
}

func (b *Booking) searchURL(name, city string, day time.Time) string {
	q := url.Values{}
	q.Set("ss", strings.TrimSpace(name+" "+city))
	q.Set("group_adults", strconv.Itoa(b.cfg.Booking.Adults))
	q.Set("no_rooms", "1")
	if !day.IsZero() {
		q.Set("checkin", day.Format(models.DateLayout))
		q.Set("checkout", day.AddDate(0, 0, 1).Format(models.DateLayout))
	}
	return strings.TrimSuffix(b.cfg.Booking.BaseURL, "/") + "/searchresults.html?" + q.Encode()
}

func stayURL(hotelURL string, day time.Time, adults int) string {
	u, err := url.Parse(hotelURL)
	if err != nil {
		return hotelURL
	}
	q := u.Query()
	q.Set("checkin", day.Format(models.DateLayout))
	q.Set("checkout", day.AddDate(0, 0, 1).Format(models.DateLayout))
	q.Set("group_adults", strconv.Itoa(adults))
	q.Set("no_rooms", "1")
	u.RawQuery = q.Encode()
	return u.String()
}

// ParseBookingCandidates reads property cards from a search results page.
func ParseBookingCandidates(doc *goquery.Document) []Candidate {
	var out []Candidate
	doc.Find(`[data-testid="property-card"]`).Each(func(_ int, card *goquery.Selection) {
		link := card.Find(`a[data-testid="title-link"]`).First()
		href, _ := link.Attr("href")
		name := parser.NormalizeText(card.Find(`[data-testid="title"]`).First().Text())
		if name == "" || href == "" {
			return
		}
		out = append(out, Candidate{
			Name:         name,
			URL:          href,
			LocationHint: parser.NormalizeText(card.Find(`[data-testid="address"]`).First().Text()),
		})
	})
	if len(out) > 0 {
		return out
	}

	seen := make(map[string]bool)
	doc.Find(`a[href*="/hotel/"]`).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		name := parser.NormalizeText(link.Text())
		if name == "" || seen[href] {
			return
		}
		seen[href] = true
		out = append(out, Candidate{Name: name, URL: href})
	})
	return out
}

// ExtractBookingRooms runs the pricing table, JSON-LD offers and proximity
// scan strategies in order and returns the first non-empty result.
func ExtractBookingRooms(doc *goquery.Document) []RoomPrice {
	if rooms := extractPricingTable(doc); len(rooms) > 0 {
		return rooms
	}
	if rooms := extractJSONLDOffers(doc); len(rooms) > 0 {
		return rooms
	}
	return extractByProximity(doc)
}

type roomCollector struct {
	seen  map[string]bool
	rooms []RoomPrice
}

func (rc *roomCollector) add(label, price string) {
	label = parser.NormalizeText(label)
	price = parser.NormalizeText(price)
	if label == "" || price == "" {
		return
	}
	if _, ok := parser.ParsePrice(price); !ok {
		return
	}
	key := strings.ToLower(label)
	if rc.seen == nil {
		rc.seen = make(map[string]bool)
	}
	if rc.seen[key] {
		return
	}
	rc.seen[key] = true
	rc.rooms = append(rc.rooms, RoomPrice{Label: label, Price: price})
}

var tablePriceSelectors = []string{
	".bui-price-display__value",
	".prco-valign-middle-helper",
	`[data-testid="price-and-discounted-price"]`,
	".hprt-price-price",
}

// extractPricingTable reads #hprt-table. The room label cell spans several
// occupancy rows, so rows without a label inherit the previous one.
func extractPricingTable(doc *goquery.Document) []RoomPrice {
	var rc roomCollector
	current := ""
	doc.Find("#hprt-table tbody tr").Each(func(_ int, row *goquery.Selection) {
		label := row.Find(".hprt-roomtype-icon-link").First().Text()
		if strings.TrimSpace(label) == "" {
			label = row.Find(".hprt-roomtype-name").First().Text()
		}
		if strings.TrimSpace(label) != "" {
			current = label
		}
		for _, sel := range tablePriceSelectors {
			if price := strings.TrimSpace(row.Find(sel).First().Text()); price != "" {
				rc.add(current, price)
				return
			}
		}
	})
	return rc.rooms
}

func extractJSONLDOffers(doc *goquery.Document) []RoomPrice {
	var rc roomCollector
	for _, n := range jsonLDNodes(doc.Selection) {
		if !hasType(n, "Hotel", "LodgingBusiness", "Resort") {
			continue
		}
		offers := children(n, "makesOffer")
		offers = append(offers, children(n, "offers")...)
		for _, offer := range offers {
			label := str(offer, "name")
			if label == "" {
				label = str(child(offer, "itemOffered"), "name")
			}
			rc.add(label, priceText(offer))
		}
	}
	return rc.rooms
}

var (
	priceToken = regexp.MustCompile(`(?i)(MXN|US\$|USD|EUR|COP|€|£|\$)\s?\d(?:[\d.,]*\d)?`)
	labelToken = regexp.MustCompile(`(?i)\b(room|habitaci[oó]n|suite|doble|double|king|queen|twin|single|sencilla|standard|est[aá]ndar|deluxe|superior|villa|penthouse|studio|estudio|junior)\b`)
)

// extractByProximity looks for leaf elements holding a price token and
// searches the element, then its parent, then its grandparent for a
// label-like leaf.
func extractByProximity(doc *goquery.Document) []RoomPrice {
	var rc roomCollector
	doc.Find("body *").Each(func(_ int, el *goquery.Selection) {
		if el.Children().Length() > 0 {
			return
		}
		text := parser.NormalizeText(el.Text())
		price := priceToken.FindString(text)
		if price == "" {
			return
		}
		if rest := strings.TrimSpace(strings.Replace(text, price, "", 1)); labelToken.MatchString(rest) {
			rc.add(rest, price)
			return
		}
		for _, scope := range []*goquery.Selection{el.Parent(), el.Parent().Parent()} {
			if label := labelNear(scope); label != "" {
				rc.add(label, price)
				return
			}
		}
	})
	return rc.rooms
}

func labelNear(scope *goquery.Selection) string {
	label := ""
	scope.Find("*").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 {
			return true
		}
		text := parser.NormalizeText(s.Text())
		if labelToken.MatchString(text) && !priceToken.MatchString(text) {
			label = text
			return false
		}
		return true
	})
	return label
}
