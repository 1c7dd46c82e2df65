package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/aluiziolira/go-rate-signals/geo"
)

// Source names used for toggles, per-source timeouts and metrics labels.
const (
	SourceBooking    = "booking"
	SourceSongkick   = "songkick"
	SourceEventbrite = "eventbrite"
	SourceAmadeus    = "amadeus"
)

// Credentials holds an API key pair. A nil *Credentials means the
// integration is not configured.
type Credentials struct {
	Key    string
	Secret string
}

// Config holds ingestion, pricing and serving configuration.
type Config struct {
	// HTTP collection
	Parallelism       int
	Delay             time.Duration
	RandomDelay       time.Duration
	Timeout           time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	RetryBackoffMax   time.Duration
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
	RespectRobotsTxt  bool

	// Orchestration
	SourceTimeout  time.Duration
	SourceTimeouts map[string]time.Duration
	Sources        SourceToggles
	EnrichWorkers  int
	EnrichLimit    int

	// Geography
	RadiusKm     float64
	MetroMatchKm float64
	MetroAreas   []geo.MetroArea

	Booking    BookingConfig
	Songkick   SongkickConfig
	Eventbrite EventbriteConfig
	Amadeus    AmadeusConfig

	// Persistence
	ChunkSize         int
	StaleLookbackDays int
	DatabaseURL       string
	AutoMigrate       bool
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	CacheTTL          time.Duration
	CacheSize         int

	Pricing PricingRules

	// Output and serving
	OutputFile   string
	OutputFormat string // csv, json, or dual
	ListenAddr   string
	MetricsAddr  string
	Verbose      bool
}

// SourceToggles switches individual sources on or off for a run.
type SourceToggles struct {
	Booking    bool
	Songkick   bool
	Eventbrite bool
	Amadeus    bool
}

// Enabled reports the toggle for a source name. Unknown names are enabled.
func (t SourceToggles) Enabled(name string) bool {
	switch name {
	case SourceBooking:
		return t.Booking
	case SourceSongkick:
		return t.Songkick
	case SourceEventbrite:
		return t.Eventbrite
	case SourceAmadeus:
		return t.Amadeus
	default:
		return true
	}
}

// BookingConfig configures the booking-search price extractor.
type BookingConfig struct {
	BaseURL     string
	Concurrency int
	DateRetries int
	Adults      int
	RenderJS    bool
	ChromePath  string
}

// SongkickConfig configures the first event listing source.
type SongkickConfig struct {
	BaseURL string
}

// EventbriteConfig configures the second event listing source.
type EventbriteConfig struct {
	BaseURL string
	Country string
}

// AmadeusConfig configures the hotel-geocode directory.
type AmadeusConfig struct {
	BaseURL     string
	Credentials *Credentials
	MaxHotels   int
}

// DefaultConfig returns conservative defaults for production sources.
func DefaultConfig() *Config {
	return &Config{
		Parallelism:       2,
		Delay:             500 * time.Millisecond,
		RandomDelay:       500 * time.Millisecond,
		Timeout:           20 * time.Second,
		MaxRetries:        2,
		RetryBackoff:      500 * time.Millisecond,
		RetryBackoffMax:   5 * time.Second,
		RequestsPerSecond: 2,
		Burst:             4,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		RespectRobotsTxt:  false,

		SourceTimeout:  2 * time.Minute,
		SourceTimeouts: map[string]time.Duration{},
		Sources: SourceToggles{
			Booking:    true,
			Songkick:   true,
			Eventbrite: true,
			Amadeus:    true,
		},
		EnrichWorkers: 5,
		EnrichLimit:   15,

		RadiusKm:     20,
		MetroMatchKm: 150,
		MetroAreas:   append([]geo.MetroArea(nil), geo.DefaultMetroAreas...),

		Booking: BookingConfig{
			BaseURL:     "https://www.booking.com",
			Concurrency: 3,
			DateRetries: 5,
			Adults:      2,
		},
		Songkick: SongkickConfig{
			BaseURL: "https://www.songkick.com",
		},
		Eventbrite: EventbriteConfig{
			BaseURL: "https://www.eventbrite.com",
			Country: "mexico",
		},
		Amadeus: AmadeusConfig{
			BaseURL:   "https://test.api.amadeus.com",
			MaxHotels: 50,
		},

		ChunkSize:         100,
		StaleLookbackDays: 7,
		CacheTTL:          6 * time.Hour,
		CacheSize:         256,

		Pricing: DefaultPricingRules(),

		OutputFile:   "output/recommendations.csv",
		OutputFormat: "csv",
		ListenAddr:   ":8080",
	}
}

// TimeoutFor returns the per-source override or the shared source timeout.
func (c *Config) TimeoutFor(source string) time.Duration {
	if d, ok := c.SourceTimeouts[source]; ok && d > 0 {
		return d
	}
	return c.SourceTimeout
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative")
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return fmt.Errorf("burst must be positive when rate limiting")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.SourceTimeout <= 0 {
		return fmt.Errorf("source timeout must be positive")
	}
	for name, d := range c.SourceTimeouts {
		if d < 0 {
			return fmt.Errorf("source timeout for %s cannot be negative", name)
		}
	}
	if c.RadiusKm <= 0 {
		return fmt.Errorf("radius must be positive")
	}
	if c.MetroMatchKm < 0 {
		return fmt.Errorf("metro match distance cannot be negative")
	}

	for name, raw := range map[string]string{
		"booking base URL":    c.Booking.BaseURL,
		"songkick base URL":   c.Songkick.BaseURL,
		"eventbrite base URL": c.Eventbrite.BaseURL,
		"amadeus base URL":    c.Amadeus.BaseURL,
	} {
		if err := validateURL(name, raw); err != nil {
			return err
		}
	}
	if c.Booking.Concurrency <= 0 {
		return fmt.Errorf("booking concurrency must be positive")
	}
	if c.Booking.DateRetries < 0 {
		return fmt.Errorf("booking date retries cannot be negative")
	}
	if c.EnrichWorkers <= 0 {
		return fmt.Errorf("enrich workers must be positive")
	}
	if c.EnrichLimit < 0 {
		return fmt.Errorf("enrich limit cannot be negative")
	}
	if c.Amadeus.MaxHotels <= 0 {
		return fmt.Errorf("amadeus max hotels must be positive")
	}
	if creds := c.Amadeus.Credentials; creds != nil && (creds.Key == "" || creds.Secret == "") {
		return fmt.Errorf("amadeus credentials need both key and secret")
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive")
	}
	if c.StaleLookbackDays < 0 {
		return fmt.Errorf("stale lookback days cannot be negative")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache TTL cannot be negative")
	}
	if err := c.Pricing.Validate(); err != nil {
		return fmt.Errorf("pricing rules: %w", err)
	}

	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	return nil
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
