package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type eventRow struct {
	Name       string    `gorm:"column:name;primaryKey"`
	Date       time.Time `gorm:"column:date;type:date;primaryKey"`
	OwnerID    string    `gorm:"column:owner_id;primaryKey;index"`
	Venue      string    `gorm:"column:venue"`
	SourceURL  string    `gorm:"column:source_url"`
	Source     string    `gorm:"column:source"`
	DistanceKm *float64  `gorm:"column:distance_km"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (eventRow) TableName() string { return "events" }

type priceRow struct {
	OriginalRoomTypeLabel string          `gorm:"column:original_room_type_label;primaryKey"`
	Date                  time.Time       `gorm:"column:date;type:date;primaryKey;index"`
	CompetitorID          string          `gorm:"column:competitor_id;primaryKey"`
	StandardizedRoomType  string          `gorm:"column:standardized_room_type;index"`
	Price                 decimal.Decimal `gorm:"column:price;type:numeric(12,2)"`
	Source                string          `gorm:"column:source"`
	UpdatedAt             time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (priceRow) TableName() string { return "competitor_prices" }

// competitorMeta holds directory fields that are not queried.
type competitorMeta struct {
	Geo        *models.LatLon `json:"geo,omitempty"`
	DistanceKm *float64       `json:"distance_km,omitempty"`
}

type competitorRow struct {
	ID         string         `gorm:"column:id;primaryKey"`
	Name       string         `gorm:"column:name"`
	City       string         `gorm:"column:city;index"`
	StarRating *int           `gorm:"column:star_rating"`
	ExternalID string         `gorm:"column:external_id"`
	Source     string         `gorm:"column:source"`
	Metadata   datatypes.JSON `gorm:"column:metadata;type:jsonb"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (competitorRow) TableName() string { return "competitors" }

type rateRow struct {
	PropertyID   string              `gorm:"column:property_id;primaryKey"`
	RoomType     string              `gorm:"column:room_type;primaryKey"`
	Date         time.Time           `gorm:"column:date;type:date;primaryKey"`
	CurrentPrice decimal.Decimal     `gorm:"column:current_price;type:numeric(12,2)"`
	MinPrice     decimal.NullDecimal `gorm:"column:min_price;type:numeric(12,2)"`
	MaxPrice     decimal.NullDecimal `gorm:"column:max_price;type:numeric(12,2)"`
}

func (rateRow) TableName() string { return "property_room_rates" }

type recommendationRow struct {
	ID               string          `gorm:"column:id;primaryKey"`
	RunID            string          `gorm:"column:run_id;index"`
	PropertyID       string          `gorm:"column:property_id;index:idx_rec_lookup"`
	Date             time.Time       `gorm:"column:date;type:date;index:idx_rec_lookup"`
	RoomType         string          `gorm:"column:room_type;index:idx_rec_lookup"`
	CurrentPrice     decimal.Decimal `gorm:"column:current_price;type:numeric(12,2)"`
	CompetitorMedian decimal.Decimal `gorm:"column:competitor_median;type:numeric(12,2)"`
	EventMultiplier  decimal.Decimal `gorm:"column:event_multiplier;type:numeric(6,4)"`
	SuggestedPrice   decimal.Decimal `gorm:"column:suggested_price;type:numeric(12,2)"`
	FinalPrice       decimal.Decimal `gorm:"column:final_price;type:numeric(12,2)"`
	ReasoningSteps   datatypes.JSON  `gorm:"column:reasoning_steps;type:jsonb"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
}

func (recommendationRow) TableName() string { return "price_recommendations" }

// Postgres is the gorm-backed Store.
type Postgres struct {
	DB *gorm.DB
}

var _ Store = (*Postgres)(nil)

// OpenPostgres connects to dsn. With autoMigrate the tables are created or
// altered to match the row types, a development convenience only.
func OpenPostgres(dsn string, autoMigrate bool) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if autoMigrate {
		if err := db.AutoMigrate(&eventRow{}, &priceRow{}, &competitorRow{}, &rateRow{}, &recommendationRow{}); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return &Postgres{DB: db}, nil
}

// NewPostgres wraps an existing connection.
func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{DB: db}
}

func (p *Postgres) UpsertEvents(ctx context.Context, events []models.NormalizedEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if len(events) == 0 {
		return nil
	}
	rows := make([]eventRow, len(events))
	for i, e := range events {
		rows[i] = eventRow{
			Name:       e.Name,
			Date:       models.Day(e.Date),
			OwnerID:    e.OwnerID,
			Venue:      e.Venue,
			SourceURL:  e.SourceURL,
			Source:     e.Source,
			DistanceKm: e.DistanceKm,
		}
	}
	err := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "date"}, {Name: "owner_id"}},
		UpdateAll: true,
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to upsert events: %w", err)
	}
	return nil
}

func (p *Postgres) UpsertPrices(ctx context.Context, prices []models.NormalizedPriceObservation) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if len(prices) == 0 {
		return nil
	}
	rows := make([]priceRow, len(prices))
	for i, o := range prices {
		rows[i] = priceRow{
			OriginalRoomTypeLabel: o.OriginalRoomTypeLabel,
			Date:                  models.Day(o.Date),
			CompetitorID:          o.CompetitorID,
			StandardizedRoomType:  string(o.StandardizedRoomType),
			Price:                 o.Price,
			Source:                o.Source,
		}
	}
	err := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "original_room_type_label"}, {Name: "date"}, {Name: "competitor_id"}},
		UpdateAll: true,
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to upsert competitor prices: %w", err)
	}
	return nil
}

func (p *Postgres) UpsertCompetitors(ctx context.Context, hotels []models.CompetitorHotel) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if len(hotels) == 0 {
		return nil
	}
	rows := make([]competitorRow, len(hotels))
	for i, h := range hotels {
		row, err := toCompetitorRow(h)
		if err != nil {
			return err
		}
		rows[i] = row
	}
	err := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to upsert competitors: %w", err)
	}
	return nil
}

func (p *Postgres) UpsertPropertyRates(ctx context.Context, rates []models.PropertyRoomRate) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if len(rates) == 0 {
		return nil
	}
	rows := make([]rateRow, len(rates))
	for i, r := range rates {
		rows[i] = rateRow{
			PropertyID:   r.PropertyID,
			RoomType:     string(r.RoomType),
			Date:         models.Day(r.Date),
			CurrentPrice: r.CurrentPrice,
			MinPrice:     nullDecimal(r.MinPrice),
			MaxPrice:     nullDecimal(r.MaxPrice),
		}
	}
	err := p.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "property_id"}, {Name: "room_type"}, {Name: "date"}},
		UpdateAll: true,
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to upsert property rates: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteEventsBefore(ctx context.Context, ownerID string, date time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}
	res := p.DB.WithContext(ctx).
		Where("owner_id = ? AND date < ?", ownerID, models.Day(date)).
		Delete(&eventRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete stale events: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (p *Postgres) CountEvents(ctx context.Context, ownerID string, date time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}
	var n int64
	err := p.DB.WithContext(ctx).Model(&eventRow{}).
		Where("owner_id = ? AND date = ?", ownerID, models.Day(date)).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return int(n), nil
}

func (p *Postgres) PricesOn(ctx context.Context, date time.Time) ([]models.NormalizedPriceObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	var rows []priceRow
	err := p.DB.WithContext(ctx).
		Where("date = ?", models.Day(date)).
		Order("competitor_id, original_room_type_label").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query competitor prices: %w", err)
	}
	out := make([]models.NormalizedPriceObservation, len(rows))
	for i, r := range rows {
		out[i] = models.NormalizedPriceObservation{
			CompetitorID:          r.CompetitorID,
			StandardizedRoomType:  models.RoomType(r.StandardizedRoomType),
			Date:                  models.Day(r.Date),
			Price:                 r.Price,
			OriginalRoomTypeLabel: r.OriginalRoomTypeLabel,
			Source:                r.Source,
		}
	}
	return out, nil
}

func (p *Postgres) LatestPriceDate(ctx context.Context, onOrBefore time.Time, lookbackDays int) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, fmt.Errorf("context error: %w", err)
	}
	start, end := window(onOrBefore, lookbackDays)
	var latest sql.NullTime
	err := p.DB.WithContext(ctx).Model(&priceRow{}).
		Select("MAX(date)").
		Where("date BETWEEN ? AND ?", start, end).
		Row().Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query latest price date: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return models.Day(latest.Time), true, nil
}

func (p *Postgres) PropertyRates(ctx context.Context, propertyID string, date time.Time) ([]models.PropertyRoomRate, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	var rows []rateRow
	err := p.DB.WithContext(ctx).
		Where("property_id = ? AND date = ?", propertyID, models.Day(date)).
		Order("room_type").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query property rates: %w", err)
	}
	out := make([]models.PropertyRoomRate, len(rows))
	for i, r := range rows {
		out[i] = models.PropertyRoomRate{
			PropertyID:   r.PropertyID,
			RoomType:     models.RoomType(r.RoomType),
			Date:         models.Day(r.Date),
			CurrentPrice: r.CurrentPrice,
			MinPrice:     decimalPtr(r.MinPrice),
			MaxPrice:     decimalPtr(r.MaxPrice),
		}
	}
	return out, nil
}

func (p *Postgres) CompetitorsInCity(ctx context.Context, city string) ([]models.CompetitorHotel, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	var rows []competitorRow
	err := p.DB.WithContext(ctx).
		Where("LOWER(city) = LOWER(?)", city).
		Order("name").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query competitors: %w", err)
	}
	return fromCompetitorRows(rows)
}

func (p *Postgres) Competitors(ctx context.Context, ids []string) ([]models.CompetitorHotel, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []competitorRow
	if err := p.DB.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query competitors: %w", err)
	}
	return fromCompetitorRows(rows)
}

func (p *Postgres) SaveRecommendations(ctx context.Context, recs []models.PriceRecommendation) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if len(recs) == 0 {
		return nil
	}
	rows := make([]recommendationRow, len(recs))
	for i, r := range recs {
		steps, err := json.Marshal(r.ReasoningSteps)
		if err != nil {
			return fmt.Errorf("failed to marshal reasoning steps: %w", err)
		}
		rows[i] = recommendationRow{
			ID:               r.ID,
			RunID:            r.RunID,
			PropertyID:       r.PropertyID,
			Date:             models.Day(r.Date),
			RoomType:         string(r.StandardizedRoomType),
			CurrentPrice:     r.CurrentPrice,
			CompetitorMedian: r.CompetitorMedian,
			EventMultiplier:  r.EventMultiplier,
			SuggestedPrice:   r.SuggestedPrice,
			FinalPrice:       r.FinalPrice,
			ReasoningSteps:   datatypes.JSON(steps),
			CreatedAt:        r.CreatedAt,
		}
	}
	if err := p.DB.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to save recommendations: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toCompetitorRow(h models.CompetitorHotel) (competitorRow, error) {
	meta, err := json.Marshal(competitorMeta{Geo: h.Geo, DistanceKm: h.DistanceKm})
	if err != nil {
		return competitorRow{}, fmt.Errorf("failed to marshal competitor metadata: %w", err)
	}
	return competitorRow{
		ID:         h.ID,
		Name:       h.Name,
		City:       h.City,
		StarRating: h.StarRating,
		ExternalID: h.ExternalID,
		Source:     h.Source,
		Metadata:   datatypes.JSON(meta),
	}, nil
}

func fromCompetitorRows(rows []competitorRow) ([]models.CompetitorHotel, error) {
	out := make([]models.CompetitorHotel, len(rows))
	for i, r := range rows {
		var meta competitorMeta
		if len(r.Metadata) > 0 {
			if err := json.Unmarshal(r.Metadata, &meta); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for competitor %s: %w", r.ID, err)
			}
		}
		out[i] = models.CompetitorHotel{
			ID:         r.ID,
			Name:       r.Name,
			City:       r.City,
			StarRating: r.StarRating,
			Geo:        meta.Geo,
			ExternalID: r.ExternalID,
			Source:     r.Source,
			DistanceKm: meta.DistanceKm,
		}
	}
	return out, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func decimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}
