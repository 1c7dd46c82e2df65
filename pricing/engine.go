package pricing

import (
	"fmt"
	"time"

	"github.com/aluiziolira/go-rate-signals/config"
	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Bounds is a per-night price override for one room type.
type Bounds struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// Input is everything a recommendation depends on.
type Input struct {
	Date             time.Time
	RoomType         models.RoomType
	CurrentPrice     decimal.Decimal
	CompetitorMedian decimal.Decimal
	EventCount       int
	Bounds           *Bounds
	// Notes are prepended to the reasoning, e.g. market fallbacks.
	Notes []string
}

// Engine applies the pricing rules. It holds no mutable state.
type Engine struct {
	rules config.PricingRules
}

// NewEngine builds an engine over rules.
func NewEngine(rules config.PricingRules) *Engine {
	return &Engine{rules: rules}
}

// Rules returns the constants the engine applies.
func (e *Engine) Rules() config.PricingRules {
	return e.rules
}

// Recommend computes a recommendation. The same input always yields the
// same prices and the same ordered reasoning steps. Identity and timestamp
// fields are left for the caller.
func (e *Engine) Recommend(in Input) models.PriceRecommendation {
	r := e.rules
	day := in.Date.Format(models.DateLayout)
	steps := append([]string(nil), in.Notes...)

	base := e.round(in.CompetitorMedian.Mul(r.Undercut))
	steps = append(steps, fmt.Sprintf(
		"Base suggestion: competitor median %s for %s x %s, rounded to the nearest %s = %s.",
		in.CompetitorMedian.StringFixed(2), in.RoomType, r.Undercut, r.RoundTo, base,
	))

	multiplier := e.Multiplier(in.EventCount)
	suggested := base
	if in.EventCount <= 0 {
		steps = append(steps, fmt.Sprintf("No events on %s; event multiplier stays at 1.00.", day))
	} else {
		steps = append(steps, fmt.Sprintf(
			"%d event(s) on %s: multiplier min(%s, 1 + %s x %d) = %s.",
			in.EventCount, day, r.EventCap, r.EventStep, in.EventCount, multiplier.StringFixed(2),
		))
		suggested = e.round(base.Mul(multiplier))
		steps = append(steps, fmt.Sprintf(
			"Applied multiplier: %s x %s, rounded to the nearest %s = %s.",
			base, multiplier.StringFixed(2), r.RoundTo, suggested,
		))
	}

	final, step := e.clamp(suggested, in.Bounds)
	steps = append(steps, step)

	if in.CurrentPrice.IsPositive() {
		delta := final.Sub(in.CurrentPrice)
		sign := ""
		if delta.IsPositive() {
			sign = "+"
		}
		steps = append(steps, fmt.Sprintf("Change against current price %s: %s%s.", in.CurrentPrice.StringFixed(2), sign, delta.StringFixed(2)))
	}

	return models.PriceRecommendation{
		Date:                 models.Day(in.Date),
		StandardizedRoomType: in.RoomType,
		CurrentPrice:         in.CurrentPrice,
		CompetitorMedian:     in.CompetitorMedian,
		EventMultiplier:      multiplier,
		SuggestedPrice:       suggested,
		FinalPrice:           final,
		ReasoningSteps:       steps,
	}
}

// Multiplier returns min(EventCap, 1 + EventStep x count), and 1 when
// there are no events.
func (e *Engine) Multiplier(count int) decimal.Decimal {
	if count <= 0 {
		return one
	}
	m := one.Add(e.rules.EventStep.Mul(decimal.NewFromInt(int64(count))))
	if m.GreaterThan(e.rules.EventCap) {
		return e.rules.EventCap
	}
	return m
}

func (e *Engine) round(v decimal.Decimal) decimal.Decimal {
	return v.Div(e.rules.RoundTo).Round(0).Mul(e.rules.RoundTo)
}

func (e *Engine) clamp(v decimal.Decimal, b *Bounds) (decimal.Decimal, string) {
	lo, hi, label := e.rules.HardFloor, e.rules.HardCeiling, "hard floor/ceiling"
	note := ""
	if b != nil {
		if b.Min.GreaterThan(b.Max) {
			note = fmt.Sprintf(" Override [%s, %s] is inverted and was ignored.", b.Min, b.Max)
		} else {
			lo, hi, label = b.Min, b.Max, "override range"
		}
	}

	switch {
	case v.LessThan(lo):
		return lo, fmt.Sprintf("Raised %s to the %s minimum [%s, %s] = %s.%s", v, label, lo, hi, lo, note)
	case v.GreaterThan(hi):
		return hi, fmt.Sprintf("Lowered %s to the %s maximum [%s, %s] = %s.%s", v, label, lo, hi, hi, note)
	default:
		return v, fmt.Sprintf("%s is within the %s [%s, %s]; final price %s.%s", v, label, lo, hi, v, note)
	}
}
