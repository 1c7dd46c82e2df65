package sources

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/aluiziolira/go-rate-signals/scraper"
	"github.com/jarcoal/httpmock"
)

const bookingTableFixture = `<html><body>
<table id="hprt-table"><tbody>
  <tr>
    <td><a class="hprt-roomtype-icon-link">Habitación Doble Estándar</a></td>
    <td><span class="bui-price-display__value">MXN 1,850</span></td>
  </tr>
  <tr>
    <td></td>
    <td><span class="bui-price-display__value">MXN 2,100</span></td>
  </tr>
  <tr>
    <td><a class="hprt-roomtype-icon-link">Suite Junior</a></td>
    <td><span class="prco-valign-middle-helper">MXN 3,400</span></td>
  </tr>
  <tr>
    <td><a class="hprt-roomtype-icon-link">Habitación Doble Estándar</a></td>
    <td><span class="bui-price-display__value">MXN 1,990</span></td>
  </tr>
</tbody></table>
</body></html>`

const bookingJSONLDFixture = `<html><head>
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"Hotel","name":"Hotel Lucerna",
 "makesOffer":[
   {"@type":"Offer","name":"King Deluxe","price":"2450.00","priceCurrency":"MXN"},
   {"@type":"Offer","itemOffered":{"name":"Twin Room"},"priceSpecification":{"price":1780}},
   {"@type":"Offer","name":"Sin precio"}
 ]}
</script></head><body></body></html>`

const bookingProximityFixture = `<html><body>
<div class="room">
  <h4>Habitación Sencilla</h4>
  <div class="rate"><span>MXN 1,200</span></div>
</div>
<div class="room">
  <span>Suite Presidencial MXN 5,900</span>
</div>
<p>Impuestos incluidos</p>
</body></html>`

func TestExtractBookingRoomsPricingTable(t *testing.T) {
	rooms := ExtractBookingRooms(mustDoc(t, bookingTableFixture))
	want := []RoomPrice{
		{Label: "Habitación Doble Estándar", Price: "MXN 1,850"},
		{Label: "Suite Junior", Price: "MXN 3,400"},
	}
	if len(rooms) != len(want) {
		t.Fatalf("rooms = %+v, want %+v", rooms, want)
	}
	for i := range want {
		if rooms[i] != want[i] {
			t.Fatalf("room[%d] = %+v, want %+v", i, rooms[i], want[i])
		}
	}
}

func TestExtractBookingRoomsJSONLDFallback(t *testing.T) {
	rooms := ExtractBookingRooms(mustDoc(t, bookingJSONLDFixture))
	if len(rooms) != 2 {
		t.Fatalf("rooms = %+v, want 2", rooms)
	}
	if rooms[0].Label != "King Deluxe" || rooms[0].Price != "MXN 2450.00" {
		t.Fatalf("first offer = %+v", rooms[0])
	}
	if rooms[1].Label != "Twin Room" || rooms[1].Price != "1780" {
		t.Fatalf("second offer = %+v", rooms[1])
	}
}

func TestExtractBookingRoomsProximityFallback(t *testing.T) {
	rooms := ExtractBookingRooms(mustDoc(t, bookingProximityFixture))
	if len(rooms) != 2 {
		t.Fatalf("rooms = %+v, want 2", rooms)
	}
	if rooms[0].Label != "Habitación Sencilla" || rooms[0].Price != "MXN 1,200" {
		t.Fatalf("grandparent scan = %+v", rooms[0])
	}
	if rooms[1].Label != "Suite Presidencial" || rooms[1].Price != "MXN 5,900" {
		t.Fatalf("same element scan = %+v", rooms[1])
	}
}

func TestExtractBookingRoomsProximityPriceEndsSentence(t *testing.T) {
	const page = `<html><body>
<div class="room"><h4>Habitación Doble</h4><p>Precio por noche MXN 1,358.</p></div>
<div class="room"><span>Suite Junior MXN 2,100</span></div>
</body></html>`

	rooms := ExtractBookingRooms(mustDoc(t, page))
	want := []RoomPrice{
		{Label: "Habitación Doble", Price: "MXN 1,358"},
		{Label: "Suite Junior", Price: "MXN 2,100"},
	}
	if len(rooms) != len(want) {
		t.Fatalf("got %d rooms, want %d: %+v", len(rooms), len(want), rooms)
	}
	for i := range want {
		if rooms[i] != want[i] {
			t.Fatalf("room[%d] = %+v, want %+v", i, rooms[i], want[i])
		}
	}
}

func TestExtractBookingRoomsEmpty(t *testing.T) {
	if rooms := ExtractBookingRooms(mustDoc(t, "<html><body><p>Sin disponibilidad</p></body></html>")); len(rooms) != 0 {
		t.Fatalf("expected no rooms, got %+v", rooms)
	}
}

const bookingSearchFixture = `<html><body>
<div data-testid="property-card">
  <div data-testid="title">Hotel Lucerna</div>
  <a data-testid="title-link" href="/hotel/mx/lucerna-monterrey.html">ver</a>
  <span data-testid="address">Centro, Monterrey</span>
</div>
<div data-testid="property-card">
  <div data-testid="title">Hotel Lucerna Tijuana</div>
  <a data-testid="title-link" href="/hotel/mx/lucerna-tijuana.html">ver</a>
  <span data-testid="address">Zona Río, Tijuana</span>
</div>
</body></html>`

func TestBookingFetchRetriesSubsequentDays(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://booking.test/searchresults.html", htmlResponder(bookingSearchFixture))

	var checkins []string
	transport.RegisterResponder("GET", "http://booking.test/hotel/mx/lucerna-tijuana.html", func(req *http.Request) (*http.Response, error) {
		checkin := req.URL.Query().Get("checkin")
		checkins = append(checkins, checkin)
		body := "<html><body><p>No hay habitaciones disponibles</p></body></html>"
		if checkin == "2025-03-16" {
			body = bookingTableFixture
		}
		resp := httpmock.NewStringResponse(http.StatusOK, body)
		resp.Header.Set("Content-Type", "text/html")
		return resp, nil
	})

	b := NewBooking(cfg, newTestFetcher(t, cfg, transport), nil)
	target := scraper.Target{
		City: "Tijuana",
		Date: day("2025-03-14"),
		Competitors: []models.CompetitorHotel{
			{ID: "comp-1", Name: "Hotel Lucerna", City: "Tijuana"},
		},
	}

	obs, err := b.Fetch(context.Background(), target)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(checkins) != 3 || checkins[0] != "2025-03-14" || checkins[2] != "2025-03-16" {
		t.Fatalf("checkins = %v, want 14th through 16th", checkins)
	}
	if len(obs) != 2 {
		t.Fatalf("observations = %d, want 2", len(obs))
	}
	got := obs[0]
	if got.Kind != models.KindPrice || got.CompetitorID != "comp-1" || got.RawDate != "2025-03-16" {
		t.Fatalf("unexpected observation %+v", got)
	}
	if got.RawVenueOrRoomType != "Habitación Doble Estándar" || got.RawPriceText != "MXN 1,850" {
		t.Fatalf("unexpected room %+v", got)
	}
}

func TestBookingFetchGivesUpAfterRetryWindow(t *testing.T) {
	cfg := testConfig()
	cfg.Booking.DateRetries = 2
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://booking.test/searchresults.html", htmlResponder(bookingSearchFixture))
	transport.RegisterResponder("GET", "http://booking.test/hotel/mx/lucerna-tijuana.html", htmlResponder("<html><body></body></html>"))

	b := NewBooking(cfg, newTestFetcher(t, cfg, transport), nil)
	obs, err := b.Fetch(context.Background(), scraper.Target{
		City:        "Tijuana",
		Date:        day("2025-03-14"),
		Competitors: []models.CompetitorHotel{{ID: "comp-1", Name: "Hotel Lucerna", City: "Tijuana"}},
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(obs) != 0 {
		t.Fatalf("expected no observations, got %d", len(obs))
	}
	if got := transport.GetTotalCallCount(); got != 4 {
		t.Fatalf("calls = %d, want 1 search and 3 hotel pages", got)
	}
}

func TestBookingFetchFailsWhenEveryCompetitorFails(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://booking.test/searchresults.html", httpmock.NewStringResponder(http.StatusForbidden, ""))

	b := NewBooking(cfg, newTestFetcher(t, cfg, transport), nil)
	_, err := b.Fetch(context.Background(), scraper.Target{
		City: "Tijuana",
		Date: day("2025-03-14"),
		Competitors: []models.CompetitorHotel{
			{ID: "a", Name: "Hotel Lucerna"},
			{ID: "b", Name: "Hotel Real del Río"},
		},
	})
	if got := scraper.ErrorTypeLabel(err); got != "forbidden" {
		t.Fatalf("label = %q, want forbidden (err=%v)", got, err)
	}
}

type stubRenderer struct {
	calls int
}

func (s *stubRenderer) Render(_ context.Context, _ string) (*goquery.Document, error) {
	s.calls++
	return goquery.NewDocumentFromReader(strings.NewReader(bookingJSONLDFixture))
}

func TestBookingUsesRendererWhenEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.Booking.RenderJS = true
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://booking.test/searchresults.html", htmlResponder(bookingSearchFixture))

	renderer := &stubRenderer{}
	b := NewBooking(cfg, newTestFetcher(t, cfg, transport), renderer)
	obs, err := b.Fetch(context.Background(), scraper.Target{
		City:        "Tijuana",
		Date:        day("2025-03-14"),
		Competitors: []models.CompetitorHotel{{ID: "comp-1", Name: "Hotel Lucerna", City: "Tijuana"}},
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if renderer.calls != 1 || len(obs) != 2 {
		t.Fatalf("renderer calls = %d, observations = %d", renderer.calls, len(obs))
	}
}
