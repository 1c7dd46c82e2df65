package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-rate-signals/config"
	"github.com/aluiziolira/go-rate-signals/geo"
	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/aluiziolira/go-rate-signals/scraper"
)

// Cache stores raw directory responses between runs.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// Amadeus lists hotels around a coordinate from the hotel-geocode
// directory. It needs API credentials.
type Amadeus struct {
	cfg     *config.Config
	fetcher Fetcher
	cache   Cache
	now     func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewAmadeus builds the directory extractor. cache may be nil.
func NewAmadeus(cfg *config.Config, fetcher Fetcher, cache Cache) *Amadeus {
	return &Amadeus{cfg: cfg, fetcher: fetcher, cache: cache, now: time.Now}
}

// Name implements scraper.Extractor.
func (a *Amadeus) Name() string { return config.SourceAmadeus }

// Preflight implements scraper.Preflighter.
func (a *Amadeus) Preflight() error {
	if a.cfg.Amadeus.Credentials == nil {
		return fmt.Errorf("AMADEUS_API_KEY and AMADEUS_API_SECRET not set: %w", scraper.ErrSourceDisabled)
	}
	return nil
}

type amadeusToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type amadeusHotel struct {
	Name    string `json:"name"`
	HotelID string `json:"hotelId"`
	Rating  string `json:"rating"`
	GeoCode struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"geoCode"`
	Address struct {
		CityName    string `json:"cityName"`
		CountryCode string `json:"countryCode"`
	} `json:"address"`
}

type amadeusHotelsResponse struct {
	Data []amadeusHotel `json:"data"`
}

// Fetch returns up to MaxHotels directory hotels inside the target radius.
func (a *Amadeus) Fetch(ctx context.Context, target scraper.Target) ([]models.RawObservation, error) {
	if err := a.Preflight(); err != nil {
		return nil, err
	}
	r := radius(target, a.cfg)
	obs, err := a.hotelsByGeocode(ctx, target.Origin, r, target.City)
	if err != nil {
		return nil, err
	}
	kept, dropped := geo.Fence{Origin: target.Origin, RadiusKm: r}.Apply(obs)
	if dropped > 0 {
		slog.Debug("directory hotels outside radius", slog.Int("dropped", dropped))
	}
	return kept, nil
}

// ParseAmadeusHotels decodes a by-geocode response into hotel observations.
func ParseAmadeusHotels(body []byte, city string, max int) ([]models.RawObservation, error) {
	var resp amadeusHotelsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode hotels: %w", err)
	}
	hotels := resp.Data
	if max > 0 && len(hotels) > max {
		hotels = hotels[:max]
	}
	out := make([]models.RawObservation, 0, len(hotels))
	for _, h := range hotels {
		hotelCity := h.Address.CityName
		if hotelCity == "" {
			hotelCity = city
		}
		var latLon *models.LatLon
		if h.GeoCode.Latitude != 0 || h.GeoCode.Longitude != 0 {
			latLon = &models.LatLon{Latitude: h.GeoCode.Latitude, Longitude: h.GeoCode.Longitude}
		}
		out = append(out, models.RawObservation{
			SourceID:   config.SourceAmadeus,
			Kind:       models.KindHotel,
			RawName:    h.Name,
			RawLatLon:  latLon,
			ExternalID: h.HotelID,
			City:       hotelCity,
			StarRating: h.Rating,
		})
	}
	return out, nil
}

func (a *Amadeus) hotelsByGeocode(ctx context.Context, origin models.LatLon, radiusKm float64, city string) ([]models.RawObservation, error) {
	key := fmt.Sprintf("amadeus:hotels:%.4f:%.4f:%g", origin.Latitude, origin.Longitude, radiusKm)
	if a.cache != nil {
		if body, ok := a.cache.Get(ctx, key); ok {
			if obs, err := ParseAmadeusHotels(body, city, a.cfg.Amadeus.MaxHotels); err == nil {
				return obs, nil
			}
		}
	}

	token, err := a.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(origin.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(origin.Longitude, 'f', -1, 64))
	q.Set("radius", strconv.Itoa(int(radiusKm+0.5)))
	q.Set("radiusUnit", "KM")
	endpoint := a.endpoint("/v1/reference-data/locations/hotels/by-geocode") + "?" + q.Encode()

	page, err := a.fetcher.Get(ctx, a.Name(), endpoint, http.Header{
		"Authorization": []string{"Bearer " + token},
		"Accept":        []string{"application/json"},
	})
	if err != nil {
		a.invalidateToken()
		return nil, fmt.Errorf("hotels by geocode: %w", err)
	}
	obs, err := ParseAmadeusHotels(page.Body, city, a.cfg.Amadeus.MaxHotels)
	if err != nil {
		return nil, err
	}
	if a.cache != nil {
		a.cache.Set(ctx, key, page.Body, a.cfg.CacheTTL)
	}
	return obs, nil
}

// accessToken returns the cached OAuth token or requests a new one. The
// lock is not held across the token request.
func (a *Amadeus) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	if a.token != "" && a.now().Before(a.tokenExpiry) {
		token := a.token
		a.mu.Unlock()
		return token, nil
	}
	a.mu.Unlock()

	creds := a.cfg.Amadeus.Credentials
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", creds.Key)
	form.Set("client_secret", creds.Secret)
	page, err := a.fetcher.Post(ctx, a.Name(), a.endpoint("/v1/security/oauth2/token"), []byte(form.Encode()), http.Header{
		"Content-Type": []string{"application/x-www-form-urlencoded"},
	})
	if err != nil {
		return "", fmt.Errorf("oauth token: %w", err)
	}
	var tok amadeusToken
	if err := json.Unmarshal(page.Body, &tok); err != nil {
		return "", fmt.Errorf("decode oauth token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("oauth token response without access_token")
	}

	lifetime := time.Duration(tok.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = 30 * time.Minute
	}
	a.mu.Lock()
	a.token = tok.AccessToken
	// expire a minute early
	a.tokenExpiry = a.now().Add(lifetime - time.Minute)
	a.mu.Unlock()
	return tok.AccessToken, nil
}

func (a *Amadeus) invalidateToken() {
	a.mu.Lock()
	a.token = ""
	a.mu.Unlock()
}

func (a *Amadeus) endpoint(path string) string {
	return strings.TrimSuffix(a.cfg.Amadeus.BaseURL, "/") + path
}
