package mode

import "strings"

// Mode selects which domain a search box queries.
type Mode string

// Search mode constants.
const (
	// Asset searches feature attribute values through the index and lazy loader.
	Asset Mode = "asset"
	// Location delegates to the external geocoder.
	Location Mode = "location"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Asset || m == Location
}

// Parse converts user input into a Mode. Empty input defaults to Asset.
func Parse(s string) (Mode, bool) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return Asset, true
	case Asset, Location:
		return m, true
	default:
		return "", false
	}
}
