package meeting

import "strings"

// Category tables driving the safety/convenience/accessibility scores.
// Values follow Google Places type names since that is what the production
// router returns; the in-memory fakes use the same vocabulary.
var (
	safePOITypes = map[string]bool{
		"transit_station": true,
		"bus_station":     true,
		"subway_station":  true,
		"train_station":   true,
		"bank":            true,
		"school":          true,
		"police":          true,
		"hospital":        true,
		"pharmacy":        true,
		"fire_station":    true,
	}

	unsafePOITypes = map[string]bool{
		"bar":          true,
		"night_club":   true,
		"liquor_store": true,
		"cemetery":     true,
	}

	convenientPOITypes = map[string]bool{
		"cafe":              true,
		"restaurant":        true,
		"convenience_store": true,
		"supermarket":       true,
		"shopping_mall":     true,
		"gas_station":       true,
		"parking":           true,
	}

	accessiblePOITypes = map[string]bool{
		"transit_station": true,
		"bus_station":     true,
		"subway_station":  true,
		"train_station":   true,
		"parking":         true,
		"hospital":        true,
		"pharmacy":        true,
	}
)

// mainStreetHints mark street names that suggest a busy, well-lit
// thoroughfare rather than a back alley.
var mainStreetHints = []string{
	"main", "central", "broadway", "avenue", "boulevard", "plaza", "square", "station",
}

func hasAnyType(types []string, set map[string]bool) bool {
	for _, t := range types {
		if set[t] {
			return true
		}
	}
	return false
}

func looksLikeMainStreet(address string) bool {
	lower := strings.ToLower(address)
	for _, hint := range mainStreetHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
