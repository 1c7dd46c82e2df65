package parser

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	priceNoise       = regexp.MustCompile(`[^0-9.,\-]`)
	commaThousands   = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+$`)
	dotThousands     = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+$`)
	canonicalDecimal = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

// separatorRule rewrites a stripped price string into canonical form when
// it applies. Rules are evaluated in order and the first match wins.
type separatorRule struct {
	name    string
	applies func(s string) bool
	rewrite func(s string) string
}

var separatorRules = []separatorRule{
	{
		name: "both separators, last one is decimal",
		applies: func(s string) bool {
			return strings.Contains(s, ".") && strings.Contains(s, ",")
		},
		rewrite: func(s string) string {
			if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
				s = strings.ReplaceAll(s, ".", "")
				return strings.ReplaceAll(s, ",", ".")
			}
			return strings.ReplaceAll(s, ",", "")
		},
	},
	{
		name: "comma thousands grouping",
		applies: func(s string) bool {
			return commaThousands.MatchString(s)
		},
		rewrite: func(s string) string {
			return strings.ReplaceAll(s, ",", "")
		},
	},
	{
		name: "comma decimal",
		applies: func(s string) bool {
			return strings.Contains(s, ",")
		},
		rewrite: func(s string) string {
			return strings.ReplaceAll(s, ",", ".")
		},
	},
	{
		name: "dot thousands grouping",
		applies: func(s string) bool {
			return dotThousands.MatchString(s)
		},
		rewrite: func(s string) string {
			return strings.ReplaceAll(s, ".", "")
		},
	},
	{
		name: "plain digits or dot decimal",
		applies: func(string) bool {
			return true
		},
		rewrite: func(s string) string {
			return s
		},
	},
}

// canonicalPrice strips currency noise and trailing punctuation, then
// applies the separator rules.
func canonicalPrice(text string) string {
	s := strings.TrimRight(priceNoise.ReplaceAllString(text, ""), ".,")
	if s == "" {
		return ""
	}
	for _, rule := range separatorRules {
		if rule.applies(s) {
			return rule.rewrite(s)
		}
	}
	return s
}

// ParsePrice turns free-text price strings such as "$1,234.56", "1.234"
// or "123,45 €" into a decimal. The boolean is false when the text holds
// no positive amount.
func ParsePrice(text string) (decimal.Decimal, bool) {
	s := canonicalPrice(text)
	if !canonicalDecimal.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// ParsePriceValue accepts values that are already numeric as well as text.
func ParsePriceValue(v any) (decimal.Decimal, bool) {
	var d decimal.Decimal
	switch val := v.(type) {
	case nil:
		return decimal.Zero, false
	case string:
		return ParsePrice(val)
	case decimal.Decimal:
		d = val
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero, false
		}
		d = *val
	case int:
		d = decimal.NewFromInt(int64(val))
	case int32:
		d = decimal.NewFromInt32(val)
	case int64:
		d = decimal.NewFromInt(val)
	case float32:
		return parseFloat(float64(val))
	case float64:
		return parseFloat(val)
	default:
		return decimal.Zero, false
	}
	if !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

func parseFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}
