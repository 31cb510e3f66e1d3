package services

import "strings"

// Room type classification, matching the downstream feature mart's encoding.
const (
	RoomTypeEntireUnit  = 1
	RoomTypePrivateRoom = 2
	RoomTypeSharedRoom  = 3
	RoomTypeHotelRoom   = 4
)

// ClassifyRoomType maps the listing's property-type badge, name and room name
// onto a room type ID. The badge is unreliable: it can be a plain label
// ("Room", "Entire apartment") or a floor size ("65 m²"), so the name fields
// break ties.
func ClassifyRoomType(propertyType, name, roomName string) int {
	switch propertyType {
	case "Room":
		return RoomTypeHotelRoom
	case "Entire apartment", "Entire studio":
		return RoomTypeEntireUnit
	}

	if strings.Contains(propertyType, "m²") {
		if size, ok := leadingInt(propertyType); ok && size > 50 {
			return RoomTypeEntireUnit
		}
		return RoomTypeHotelRoom
	}

	lowerName := strings.ToLower(name)
	switch {
	case strings.Contains(strings.ToLower(roomName), "room") || strings.Contains(lowerName, "accommodations"):
		return RoomTypePrivateRoom
	case strings.Contains(lowerName, "hostel"):
		return RoomTypeHotelRoom
	default:
		return RoomTypeEntireUnit
	}
}

func leadingInt(s string) (int, bool) {
	n := 0
	found := false
	for _, r := range strings.TrimSpace(s) {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		found = true
	}
	return n, found
}
