package models

// RoomType is the closed set of standardized room categories.
type RoomType string

const (
	RoomStandard     RoomType = "Standard"
	RoomSuite        RoomType = "Suite"
	RoomBusiness     RoomType = "Business"
	RoomSuperior     RoomType = "Superior"
	RoomDeluxe       RoomType = "Deluxe"
	RoomExecutive    RoomType = "Executive"
	RoomPresidential RoomType = "Presidential"
	RoomPenthouse    RoomType = "Penthouse"
	RoomVilla        RoomType = "Villa"
	RoomMaster       RoomType = "Master"
	RoomJunior       RoomType = "Junior"
)

// RoomTypes lists every standardized category.
var RoomTypes = []RoomType{
	RoomStandard, RoomSuite, RoomBusiness, RoomSuperior, RoomDeluxe, RoomExecutive,
	RoomPresidential, RoomPenthouse, RoomVilla, RoomMaster, RoomJunior,
}

// Valid reports whether t belongs to the closed set.
func (t RoomType) Valid() bool {
	for _, known := range RoomTypes {
		if t == known {
			return true
		}
	}
	return false
}

// BroadRoomType is the coarser five-bucket taxonomy used for market snapshots.
type BroadRoomType string

const (
	BroadDouble   BroadRoomType = "Double"
	BroadSuite    BroadRoomType = "Suite"
	BroadStandard BroadRoomType = "Standard"
	BroadDeluxe   BroadRoomType = "Deluxe"
	BroadSingle   BroadRoomType = "Single"
)

// BroadRoomTypes lists the broad buckets.
var BroadRoomTypes = []BroadRoomType{BroadDouble, BroadSuite, BroadStandard, BroadDeluxe, BroadSingle}
