package pricing

import (
	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/aluiziolira/go-rate-signals/parser"
	"github.com/shopspring/decimal"
)

// BroadReading is a market median in the coarse five-bucket taxonomy.
type BroadReading struct {
	RoomType models.BroadRoomType `json:"room_type"`
	Median   decimal.Decimal      `json:"median"`
	Count    int                  `json:"count"`
}

// Snapshot reclassifies observations by their original labels into the
// broad taxonomy and returns one reading per bucket in a fixed order.
// Empty buckets report a zero count.
func Snapshot(obs []models.NormalizedPriceObservation) []BroadReading {
	groups := make(map[models.BroadRoomType][]decimal.Decimal)
	for _, o := range obs {
		t := parser.ClassifyBroadRoomType(o.OriginalRoomTypeLabel)
		groups[t] = append(groups[t], o.Price)
	}
	out := make([]BroadReading, 0, len(models.BroadRoomTypes))
	for _, t := range models.BroadRoomTypes {
		median, _ := Median(groups[t])
		out = append(out, BroadReading{RoomType: t, Median: median, Count: len(groups[t])})
	}
	return out
}
