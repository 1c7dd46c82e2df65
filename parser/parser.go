package parser

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/go-rate-signals/models"
)

// ValidateEvent ensures a normalized event carries its identity fields.
func ValidateEvent(e *models.NormalizedEvent) error {
	if e == nil {
		return fmt.Errorf("event is nil")
	}
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("event missing name")
	}
	if e.Date.IsZero() {
		return fmt.Errorf("event missing date for %s", e.Name)
	}
	if strings.TrimSpace(e.OwnerID) == "" {
		return fmt.Errorf("event missing owner for %s", e.Name)
	}
	return nil
}

// ValidatePrice enforces the price observation invariants: a positive
// price, a known room type and a non-empty identity.
func ValidatePrice(o *models.NormalizedPriceObservation) error {
	if o == nil {
		return fmt.Errorf("price observation is nil")
	}
	if strings.TrimSpace(o.CompetitorID) == "" {
		return fmt.Errorf("price observation missing competitor")
	}
	if o.Date.IsZero() {
		return fmt.Errorf("price observation missing date for %s", o.CompetitorID)
	}
	if !o.Price.IsPositive() {
		return fmt.Errorf("price observation for %s has non-positive price %s", o.CompetitorID, o.Price)
	}
	if !o.StandardizedRoomType.Valid() {
		return fmt.Errorf("price observation for %s has unknown room type %q", o.CompetitorID, o.StandardizedRoomType)
	}
	return nil
}

// ValidateCompetitor ensures a directory entry can be stored.
func ValidateCompetitor(h *models.CompetitorHotel) error {
	if h == nil {
		return fmt.Errorf("competitor is nil")
	}
	if strings.TrimSpace(h.ID) == "" {
		return fmt.Errorf("competitor missing id")
	}
	if strings.TrimSpace(h.Name) == "" {
		return fmt.Errorf("competitor %s missing name", h.ID)
	}
	if h.StarRating != nil && (*h.StarRating < 0 || *h.StarRating > 5) {
		return fmt.Errorf("competitor %s has star rating %d out of range", h.Name, *h.StarRating)
	}
	return nil
}

// NormalizeText collapses internal whitespace and trims the ends.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// StarRating converts a textual rating ("4", "4 stars", "Four") to a number.
// It returns false when no rating can be read.
func StarRating(text string) (int, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return 0, false
	}
	for _, r := range text {
		if r >= '0' && r <= '5' {
			return int(r - '0'), true
		}
		if r >= '6' && r <= '9' {
			return 0, false
		}
	}
	words := []string{"zero", "one", "two", "three", "four", "five"}
	for i := len(words) - 1; i >= 0; i-- {
		if strings.HasPrefix(text, words[i]) {
			return i, true
		}
	}
	return 0, false
}
