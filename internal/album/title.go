package album

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultTitle is used when reverse geocoding produced nothing usable.
const DefaultTitle = "Location"

// NormalizeTitle trims and NFC-normalizes a location title, falling back to DefaultTitle.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(norm.NFC.String(title))
	if title == "" {
		return DefaultTitle
	}
	return title
}

// PickTitle returns the first non-empty placemark component, in the order
// locality, administrative area, country, ocean.
func PickTitle(candidates ...string) string {
	for _, c := range candidates {
		if t := strings.TrimSpace(c); t != "" {
			return NormalizeTitle(t)
		}
	}
	return DefaultTitle
}
