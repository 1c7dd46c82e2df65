package parser

import (
	"strings"

	"github.com/aluiziolira/go-rate-signals/models"
)

type keywordFamily[T any] struct {
	target   T
	keywords []string
}

// premiumFamilies are checked in order before bed descriptors, so a
// "King Deluxe" room lands in Deluxe rather than Standard.
var premiumFamilies = []keywordFamily[models.RoomType]{
	{models.RoomSuite, []string{"suite"}},
	{models.RoomBusiness, []string{"business", "negocios"}},
	{models.RoomSuperior, []string{"superior"}},
	{models.RoomDeluxe, []string{"deluxe", "de luxe", "de lujo", "lujo", "luxury"}},
	{models.RoomExecutive, []string{"executive", "ejecutiv"}},
	{models.RoomPresidential, []string{"presidential", "presidencial"}},
	{models.RoomPenthouse, []string{"penthouse", "ático", "atico"}},
	{models.RoomVilla, []string{"villa"}},
	{models.RoomMaster, []string{"master"}},
	{models.RoomJunior, []string{"junior"}},
}

// ClassifyRoomType maps a free-text room label onto the closed set of
// standardized room types. Bed and occupancy descriptors (king, queen,
// twin, matrimonial, doble, sencilla and so on) carry no tier and resolve
// to Standard, as does any label without a premium keyword.
func ClassifyRoomType(label string) models.RoomType {
	if t, ok := matchFamily(strings.ToLower(label), premiumFamilies); ok {
		return t
	}
	return models.RoomStandard
}

var broadFamilies = []keywordFamily[models.BroadRoomType]{
	{models.BroadSuite, []string{"suite"}},
	{models.BroadDeluxe, []string{"deluxe", "de luxe", "de lujo", "lujo", "luxury", "superior", "premium"}},
	{models.BroadDouble, []string{"double", "doble", "matrimonial", "king", "queen", "twin"}},
	{models.BroadSingle, []string{"single", "sencilla", "individual"}},
	{models.BroadStandard, []string{"standard", "estándar", "estandar", "classic", "clásica"}},
}

// ClassifyBroadRoomType maps a room label onto the five-bucket taxonomy
// used for market snapshots. Unmatched labels resolve to Standard.
func ClassifyBroadRoomType(label string) models.BroadRoomType {
	if t, ok := matchFamily(strings.ToLower(label), broadFamilies); ok {
		return t
	}
	return models.BroadStandard
}

// BroadFromStandardized projects an already standardized room type onto
// the broad taxonomy.
func BroadFromStandardized(t models.RoomType) models.BroadRoomType {
	switch t {
	case models.RoomSuite, models.RoomPresidential, models.RoomPenthouse, models.RoomJunior:
		return models.BroadSuite
	case models.RoomDeluxe, models.RoomSuperior, models.RoomExecutive, models.RoomBusiness, models.RoomVilla, models.RoomMaster:
		return models.BroadDeluxe
	default:
		return models.BroadStandard
	}
}

func matchFamily[T any](lower string, families []keywordFamily[T]) (T, bool) {
	for _, family := range families {
		for _, kw := range family.keywords {
			if strings.Contains(lower, kw) {
				return family.target, true
			}
		}
	}
	var zero T
	return zero, false
}
