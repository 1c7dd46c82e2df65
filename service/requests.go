package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest rejects a whole operation before any work is done.
var ErrInvalidRequest = errors.New("invalid request")

// IngestionRequest triggers one ingestion run around a property.
type IngestionRequest struct {
	PropertyID string  `json:"property_id" validate:"required"`
	Latitude   float64 `json:"latitude" validate:"latitude"`
	Longitude  float64 `json:"longitude" validate:"longitude"`
	// RadiusKm falls back to the configured radius when zero.
	RadiusKm float64 `json:"radius_km" validate:"omitempty,gt=0"`
	City     string  `json:"city"`
	// Date is the stay night priced by hotel sources; today when empty.
	Date string   `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Skip []string `json:"skip" validate:"dive,oneof=booking songkick eventbrite amadeus"`
}

// AnalysisRequest asks for recommendations for one property and night.
type AnalysisRequest struct {
	TargetDate string `json:"target_date" query:"target_date" validate:"required,datetime=2006-01-02"`
	PropertyID string `json:"property_id" query:"property_id" validate:"required"`
}

// Date parses TargetDate. Call after validation.
func (r AnalysisRequest) Date() time.Time {
	d, _ := time.Parse(models.DateLayout, r.TargetDate)
	return d
}

func (s *Service) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
