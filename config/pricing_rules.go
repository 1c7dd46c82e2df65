package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// PricingRules are the business constants of the recommendation engine.
type PricingRules struct {
	Undercut              decimal.Decimal `yaml:"undercut"`
	RoundTo               decimal.Decimal `yaml:"round_to"`
	EventStep             decimal.Decimal `yaml:"event_step"`
	EventCap              decimal.Decimal `yaml:"event_cap"`
	HardFloor             decimal.Decimal `yaml:"hard_floor"`
	HardCeiling           decimal.Decimal `yaml:"hard_ceiling"`
	MarketAverageFallback decimal.Decimal `yaml:"market_average_fallback"`
	OwnOccupancy          decimal.Decimal `yaml:"own_occupancy"`
	CompetitorOccupancy   decimal.Decimal `yaml:"competitor_occupancy"`
}

// DefaultPricingRules returns a 3% undercut rounded to tens, +5% per
// event capped at +20%, and a 500-5000 backstop.
func DefaultPricingRules() PricingRules {
	return PricingRules{
		Undercut:              decimal.RequireFromString("0.97"),
		RoundTo:               decimal.NewFromInt(10),
		EventStep:             decimal.RequireFromString("0.05"),
		EventCap:              decimal.RequireFromString("1.20"),
		HardFloor:             decimal.NewFromInt(500),
		HardCeiling:           decimal.NewFromInt(5000),
		MarketAverageFallback: decimal.NewFromInt(1500),
		OwnOccupancy:          decimal.RequireFromString("0.85"),
		CompetitorOccupancy:   decimal.RequireFromString("0.80"),
	}
}

// Validate checks the rules produce a usable engine.
func (r PricingRules) Validate() error {
	if !r.Undercut.IsPositive() {
		return fmt.Errorf("undercut must be positive")
	}
	if !r.RoundTo.IsPositive() {
		return fmt.Errorf("round_to must be positive")
	}
	if r.EventStep.IsNegative() {
		return fmt.Errorf("event_step cannot be negative")
	}
	if r.EventCap.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("event_cap must be at least 1")
	}
	if !r.HardFloor.IsPositive() {
		return fmt.Errorf("hard_floor must be positive")
	}
	if r.HardCeiling.LessThan(r.HardFloor) {
		return fmt.Errorf("hard_ceiling (%s) cannot be below hard_floor (%s)", r.HardCeiling, r.HardFloor)
	}
	if !r.MarketAverageFallback.IsPositive() {
		return fmt.Errorf("market_average_fallback must be positive")
	}
	if !r.OwnOccupancy.IsPositive() || !r.CompetitorOccupancy.IsPositive() {
		return fmt.Errorf("occupancy factors must be positive")
	}
	return nil
}

// LoadPricingRules reads a YAML rules file on top of the defaults, so a
// file may override only the constants it names.
func LoadPricingRules(path string) (PricingRules, error) {
	rules := DefaultPricingRules()
	data, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read pricing rules: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return rules, fmt.Errorf("parse pricing rules %s: %w", path, err)
	}
	if err := rules.Validate(); err != nil {
		return rules, fmt.Errorf("pricing rules %s: %w", path, err)
	}
	return rules, nil
}
