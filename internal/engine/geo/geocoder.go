package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/paulmach/orb/geojson"
)

const nominatimURL = "https://nominatim.openstreetmap.org/search"

// Fetcher performs a GET and returns the response body.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

type nominatimResult struct {
	DisplayName string          `json:"display_name"`
	GeoJSON     json.RawMessage `json:"geojson"`
}

// GeocodePolygon resolves a free-text location (e.g. "Prague, Czechia") into
// its boundary polygon using the OSM Nominatim API.
func GeocodePolygon(ctx context.Context, f Fetcher, query string) (*Polygon, error) {
	u := nominatimURL + "?" + url.Values{
		"q":               {query},
		"format":          {"json"},
		"limit":           {"1"},
		"polygon_geojson": {"1"},
	}.Encode()

	body, err := f.Get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("decoding geocoding response: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("location %q not found", query)
	}
	if len(results[0].GeoJSON) == 0 {
		return nil, fmt.Errorf("location %q has no boundary", query)
	}

	g, err := geojson.UnmarshalGeometry(results[0].GeoJSON)
	if err != nil {
		return nil, fmt.Errorf("decoding boundary of %q: %w", query, err)
	}
	mp, err := ParsePolygon(results[0].GeoJSON)
	if err != nil {
		return nil, fmt.Errorf("boundary of %q is a %s, not an area: %w", query, g.Type, err)
	}
	return NewPolygon(mp), nil
}
