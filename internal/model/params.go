package model

import "strings"

// SearchParams holds the scraping options of one crawl run.
type SearchParams struct {
	// Searches
	Queries  []string
	StartURL string // map page loaded before typing; also the search key when a query is empty

	// Map viewport
	Lat  float64
	Lng  float64
	Zoom int

	// Budgets (0 = unlimited)
	MaxCrawledPlaces          int
	MaxCrawledPlacesPerSearch int
	MaxPlacesPerPage          int

	// MaxAutomaticZoomOut stops a search once the map zoomed out by more than this. Nil disables the check.
	MaxAutomaticZoomOut *float64

	ExportPlaceURLs bool
	Concurrency     int
	MaxRetries      int
	Lang            string
}

// IsCoordMode reports whether searches start from an explicit map center.
func (p *SearchParams) IsCoordMode() bool {
	return p.Lat != 0 || p.Lng != 0
}

// NormalizedQueries trims queries and drops empty and duplicate ones while keeping order.
func (p *SearchParams) NormalizedQueries() []string {
	seen := make(map[string]bool, len(p.Queries))
	var out []string
	for _, q := range p.Queries {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out
}
