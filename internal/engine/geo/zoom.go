package geo

import (
	"regexp"
	"strconv"
)

// Map URLs look like .../@50.0755,14.4378,13z/... or ...,13.5z.
var zoomRe = regexp.MustCompile(`@-?\d+(?:\.\d+)?,-?\d+(?:\.\d+)?,(\d+(?:\.\d+)?)z`)

// ParseZoomFromURL extracts the zoom level from a map URL.
func ParseZoomFromURL(rawURL string) (float64, bool) {
	m := zoomRe.FindStringSubmatch(rawURL)
	if m == nil {
		return 0, false
	}
	z, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return z, true
}
