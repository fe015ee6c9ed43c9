package model

import (
	"fmt"
	"net/url"
)

const mapsSearchURL = "https://www.google.com/maps/search/"

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// AddressParsed holds the structured address attached to a listing entry.
type AddressParsed struct {
	Neighborhood string `json:"neighborhood,omitempty"`
	Street       string `json:"street,omitempty"`
	City         string `json:"city,omitempty"`
	PostalCode   string `json:"postalCode,omitempty"`
	State        string `json:"state,omitempty"`
	CountryCode  string `json:"countryCode,omitempty"`
}

// PlaceCandidate is a listing entry extracted from one search response.
// Coords is nil until resolved.
type PlaceCandidate struct {
	PlaceID         string         `json:"placeId"`
	Coords          *Coordinates   `json:"coords,omitempty"`
	Rank            int            `json:"rank"`
	AddressParsed   *AddressParsed `json:"addressParsed,omitempty"`
	IsAdvertisement bool           `json:"isAdvertisement"`
	Categories      []string       `json:"categories,omitempty"`
}

// Point is a pixel position on the rendered page.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PlaceURL builds the canonical URL of a place within a search.
func PlaceURL(searchString, placeID string) string {
	return fmt.Sprintf("%s?api=1&query=%s&query_place_id=%s",
		mapsSearchURL, url.QueryEscape(searchString), url.QueryEscape(placeID))
}

// OutOfPolygonPlace records a candidate dropped by the geo filter.
type OutOfPolygonPlace struct {
	URL           string       `json:"url"`
	SearchPageURL string       `json:"searchPageUrl"`
	Coordinates   *Coordinates `json:"coordinates,omitempty"`
}
