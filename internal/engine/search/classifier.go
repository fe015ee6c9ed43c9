package search

import (
	"net/url"
	"regexp"
	"strconv"
)

// ResponseKind tells which listing shape a response carries.
type ResponseKind int

const (
	KindIgnored ResponseKind = iota
	KindSearch
	KindPreview
)

func (k ResponseKind) String() string {
	switch k {
	case KindSearch:
		return "search"
	case KindPreview:
		return "preview"
	default:
		return "ignored"
	}
}

var (
	searchURLRe  = regexp.MustCompile(`google\.[a-z.]+/search`)
	previewURLRe = regexp.MustCompile(`google\.[a-z.]+/maps/preview/place`)
)

// Classify decides whether a response URL is a listing search, a detail preview, or neither.
func Classify(rawURL string) ResponseKind {
	switch {
	case previewURLRe.MatchString(rawURL):
		return KindPreview
	case searchURLRe.MatchString(rawURL):
		return KindSearch
	default:
		return KindIgnored
	}
}

// IsDataURL reports whether responses from rawURL are worth reading.
func IsDataURL(rawURL string) bool {
	return Classify(rawURL) != KindIgnored
}

// PlacesPerResultPage is the page size ranks assume, whatever a response actually holds.
const PlacesPerResultPage = 20

// Rank is the 1-based position of the index-th (0-based) candidate of a result page.
func Rank(pageNumber, index int) int {
	return (pageNumber-1)*PlacesPerResultPage + index + 1
}

// PageNumberFromURL reads the result page number ("ech" parameter) of a
// search response URL. Missing or invalid values mean page 1.
func PageNumberFromURL(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 1
	}
	n, err := strconv.Atoi(u.Query().Get("ech"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
