package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads variables from the given files without overriding the
// process environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// EnvString returns a trimmed, non-empty environment value.
func EnvString(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// EnvInt parses an integer environment value.
func EnvInt(key string) (int, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return v, true, nil
}

// EnvFloat parses a floating point environment value.
func EnvFloat(key string) (float64, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return v, true, nil
}

// EnvBool parses a boolean environment value.
func EnvBool(key string) (bool, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return v, true, nil
}

// EnvDuration parses a Go duration string ("90s", "2m").
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return v, true, nil
}

// ApplyEnv overlays RATESIGNALS_* and provider variables onto cfg.
func ApplyEnv(cfg *Config) error {
	var errs []error
	setInt := func(key string, dst *int) {
		if v, ok, err := EnvInt(key); err != nil {
			errs = append(errs, err)
		} else if ok {
			*dst = v
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok, err := EnvFloat(key); err != nil {
			errs = append(errs, err)
		} else if ok {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok, err := EnvBool(key); err != nil {
			errs = append(errs, err)
		} else if ok {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v, ok, err := EnvDuration(key); err != nil {
			errs = append(errs, err)
		} else if ok {
			*dst = v
		}
	}
	setString := func(key string, dst *string) {
		if v, ok := EnvString(key); ok {
			*dst = v
		}
	}

	setInt("RATESIGNALS_PARALLEL", &cfg.Parallelism)
	setInt("RATESIGNALS_MAX_RETRIES", &cfg.MaxRetries)
	setFloat("RATESIGNALS_RPS", &cfg.RequestsPerSecond)
	setDuration("RATESIGNALS_TIMEOUT", &cfg.Timeout)
	setDuration("RATESIGNALS_SOURCE_TIMEOUT", &cfg.SourceTimeout)
	setFloat("RATESIGNALS_RADIUS_KM", &cfg.RadiusKm)
	setBool("RATESIGNALS_BOOKING", &cfg.Sources.Booking)
	setBool("RATESIGNALS_SONGKICK", &cfg.Sources.Songkick)
	setBool("RATESIGNALS_EVENTBRITE", &cfg.Sources.Eventbrite)
	setBool("RATESIGNALS_AMADEUS", &cfg.Sources.Amadeus)
	setBool("RATESIGNALS_BOOKING_RENDER_JS", &cfg.Booking.RenderJS)
	setString("RATESIGNALS_CHROME_PATH", &cfg.Booking.ChromePath)
	setInt("RATESIGNALS_CHUNK_SIZE", &cfg.ChunkSize)
	setString("DATABASE_URL", &cfg.DatabaseURL)
	setString("REDIS_ADDR", &cfg.RedisAddr)
	setString("REDIS_PASSWORD", &cfg.RedisPassword)
	setInt("REDIS_DB", &cfg.RedisDB)
	setString("RATESIGNALS_LISTEN_ADDR", &cfg.ListenAddr)
	setString("RATESIGNALS_METRICS_ADDR", &cfg.MetricsAddr)
	setString("RATESIGNALS_OUTPUT", &cfg.OutputFile)
	setString("AMADEUS_BASE_URL", &cfg.Amadeus.BaseURL)

	key, hasKey := EnvString("AMADEUS_API_KEY")
	secret, hasSecret := EnvString("AMADEUS_API_SECRET")
	if hasKey && hasSecret {
		cfg.Amadeus.Credentials = &Credentials{Key: key, Secret: secret}
	}

	if path, ok := EnvString("RATESIGNALS_PRICING_RULES"); ok {
		rules, err := LoadPricingRules(path)
		if err != nil {
			errs = append(errs, err)
		} else {
			cfg.Pricing = rules
		}
	}

	return errors.Join(errs...)
}
