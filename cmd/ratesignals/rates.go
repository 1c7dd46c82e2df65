package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/aluiziolira/go-rate-signals/parser"
	"github.com/aluiziolira/go-rate-signals/store"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ratesFile is the property's own price sheet:
//
//	rates:
//	  - date: 2025-03-15
//	    room_type: Standard
//	    current_price: 2100
//	    min_price: 1800
//	    max_price: 2600
type ratesFile struct {
	Rates []rateEntry `yaml:"rates"`
}

type rateEntry struct {
	Date         string           `yaml:"date"`
	RoomType     string           `yaml:"room_type"`
	CurrentPrice decimal.Decimal  `yaml:"current_price"`
	MinPrice     *decimal.Decimal `yaml:"min_price"`
	MaxPrice     *decimal.Decimal `yaml:"max_price"`
}

func loadRates(path, propertyID string) ([]models.PropertyRoomRate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rates: %w", err)
	}
	var file ratesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rates %s: %w", path, err)
	}

	rates := make([]models.PropertyRoomRate, 0, len(file.Rates))
	for i, e := range file.Rates {
		date, err := time.Parse(models.DateLayout, e.Date)
		if err != nil {
			return nil, fmt.Errorf("rates %s entry %d: bad date %q", path, i, e.Date)
		}
		roomType := models.RoomType(e.RoomType)
		if !roomType.Valid() {
			roomType = parser.ClassifyRoomType(e.RoomType)
		}
		if !e.CurrentPrice.IsPositive() {
			return nil, fmt.Errorf("rates %s entry %d: current_price must be positive", path, i)
		}
		rates = append(rates, models.PropertyRoomRate{
			PropertyID:   propertyID,
			RoomType:     roomType,
			Date:         date,
			CurrentPrice: e.CurrentPrice,
			MinPrice:     e.MinPrice,
			MaxPrice:     e.MaxPrice,
		})
	}
	return rates, nil
}

// seedRates stores the rates file for propertyID; a blank path is a no-op.
func seedRates(ctx context.Context, st store.Store, path, propertyID string) error {
	if path == "" {
		return nil
	}
	rates, err := loadRates(path, propertyID)
	if err != nil {
		return err
	}
	if err := st.UpsertPropertyRates(ctx, rates); err != nil {
		return fmt.Errorf("storing rates: %w", err)
	}
	return nil
}
