package parser

import (
	"regexp"
	"strings"
	"time"

	"github.com/aluiziolira/go-rate-signals/models"
)

var isoDatePrefix = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})`)

var listingDateLayouts = []string{
	"Monday 02 January 2006",
	"Monday 2 January 2006",
	"Mon 2 Jan 2006",
	"Mon, Jan 2, 2006",
	"Mon, January 2, 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"02/01/2006",
}

// ParseDate reads a calendar day out of ISO timestamps, YYYY-MM-DD
// prefixes and the listing formats seen on event pages. The result is
// midnight UTC.
func ParseDate(text string) (time.Time, bool) {
	text = NormalizeText(text)
	if text == "" {
		return time.Time{}, false
	}
	if m := isoDatePrefix.FindStringSubmatch(text); m != nil {
		t, err := time.Parse(models.DateLayout, m[1])
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	for _, layout := range listingDateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return models.Day(t), true
		}
	}
	if i := strings.Index(text, " - "); i > 0 {
		return ParseDate(text[:i])
	}
	return time.Time{}, false
}
