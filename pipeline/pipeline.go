// Package pipeline normalizes raw observations, collapses duplicates and
// writes chunked batches to the store. It also exports recommendations.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/aluiziolira/go-rate-signals/parser"
)

// DefaultChunkSize bounds a single upsert call.
const DefaultChunkSize = 100

// Dedup collapses items sharing a key. The first occurrence wins and the
// relative order of survivors is preserved. It returns the survivors and
// the number of duplicates removed.
func Dedup[T any](items []T, key func(T) string) ([]T, int) {
	if len(items) == 0 {
		return nil, 0
	}
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out, len(items) - len(out)
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// WriteResult reports what happened to one batch.
type WriteResult struct {
	Written    int `json:"written"`
	Failed     int `json:"failed"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
}

// Recorder receives per-kind record outcomes, typically prometheus counters.
type Recorder interface {
	AddRecords(kind, outcome string, n int)
}

// EventWriter persists events.
type EventWriter interface {
	UpsertEvents(ctx context.Context, events []models.NormalizedEvent) error
}

// PriceWriter persists competitor price observations.
type PriceWriter interface {
	UpsertPrices(ctx context.Context, prices []models.NormalizedPriceObservation) error
}

// CompetitorWriter persists directory hotels.
type CompetitorWriter interface {
	UpsertCompetitors(ctx context.Context, hotels []models.CompetitorHotel) error
}

// Upserter validates, deduplicates and writes batches chunk by chunk.
// Chunks are issued sequentially; a failed chunk is logged and the rest are
// still attempted, with no rollback of earlier chunks.
type Upserter struct {
	chunkSize int
	recorder  Recorder
}

// NewUpserter builds an upserter. recorder may be nil.
func NewUpserter(chunkSize int, recorder Recorder) *Upserter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Upserter{chunkSize: chunkSize, recorder: recorder}
}

// Events writes events keyed by (name, date, owner).
func (u *Upserter) Events(ctx context.Context, w EventWriter, events []models.NormalizedEvent) WriteResult {
	return upsert(ctx, u, "event", events,
		func(e models.NormalizedEvent) error { return parser.ValidateEvent(&e) },
		models.NormalizedEvent.Key,
		w.UpsertEvents,
	)
}

// Prices writes observations keyed by (label, date, competitor).
func (u *Upserter) Prices(ctx context.Context, w PriceWriter, prices []models.NormalizedPriceObservation) WriteResult {
	return upsert(ctx, u, "price", prices,
		func(p models.NormalizedPriceObservation) error { return parser.ValidatePrice(&p) },
		models.NormalizedPriceObservation.Key,
		w.UpsertPrices,
	)
}

// Competitors writes directory hotels keyed by their stable id.
func (u *Upserter) Competitors(ctx context.Context, w CompetitorWriter, hotels []models.CompetitorHotel) WriteResult {
	return upsert(ctx, u, "competitor", hotels,
		func(h models.CompetitorHotel) error { return parser.ValidateCompetitor(&h) },
		models.CompetitorHotel.Key,
		w.UpsertCompetitors,
	)
}

func upsert[T any](
	ctx context.Context,
	u *Upserter,
	kind string,
	items []T,
	validate func(T) error,
	key func(T) string,
	write func(context.Context, []T) error,
) WriteResult {
	var res WriteResult

	valid := make([]T, 0, len(items))
	for _, item := range items {
		if err := validate(item); err != nil {
			res.Invalid++
			slog.Debug("dropping invalid record", slog.String("kind", kind), slog.Any("error", err))
			continue
		}
		valid = append(valid, item)
	}

	unique, dups := Dedup(valid, key)
	res.Duplicates = dups

	for i, chunk := range Chunk(unique, u.chunkSize) {
		if err := ctx.Err(); err != nil {
			res.Failed += len(chunk)
			continue
		}
		if err := write(ctx, chunk); err != nil {
			res.Failed += len(chunk)
			slog.Warn("upsert chunk failed",
				slog.String("kind", kind),
				slog.Int("chunk", i),
				slog.Int("records", len(chunk)),
				slog.Any("error", err),
			)
			continue
		}
		res.Written += len(chunk)
	}

	u.record(kind, res)
	return res
}

func (u *Upserter) record(kind string, res WriteResult) {
	if u.recorder == nil {
		return
	}
	u.recorder.AddRecords(kind, "written", res.Written)
	u.recorder.AddRecords(kind, "failed", res.Failed)
	u.recorder.AddRecords(kind, "duplicate", res.Duplicates)
	u.recorder.AddRecords(kind, "invalid", res.Invalid)
}
