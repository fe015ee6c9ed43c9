package scraper

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/rendis/mapcrawl/internal/model"
)

var (
	// ErrInvalidJSON means the body could not be decoded at all, usually a block page.
	ErrInvalidJSON = errors.New("Response body doesn't contain a valid JSON")
	// ErrUnexpectedStructure means the JSON decoded but the places array was not where it should be.
	ErrUnexpectedStructure = errors.New("Response body doesn't have the expected places structure")
)

var (
	xssiPrefix   = []byte(")]}'")
	commentGuard = []byte(`/*""*/`)
)

// Index paths inside a place entry.
const (
	idxCoords     = 9
	idxCategories = 13
	idxPlaceID    = 78
	idxAddress    = 183
	// Sponsored entries carry a non-empty ad tracking block here.
	idxAdBlock = 165

	// previewPlaceIdx is where a detail preview keeps its single place.
	previewPlaceIdx = 6
)

// MapParser decodes the JSON bodies of tbm=map search and place preview responses.
type MapParser struct{}

func NewMapParser() *MapParser {
	return &MapParser{}
}

// Parse returns the place candidates of a response body. isPreview selects the
// detail preview shape (one place) instead of the search shape (a page of places).
func (p *MapParser) Parse(body []byte, isPreview bool) ([]model.PlaceCandidate, error) {
	root, err := decodeBody(body)
	if err != nil {
		return nil, err
	}
	if isPreview {
		return parsePreview(root)
	}
	return parseSearch(root)
}

// decodeBody strips the anti-XSSI prefix and the XHR envelope, if any, and decodes the JSON array.
func decodeBody(body []byte) ([]any, error) {
	body = bytes.TrimSpace(body)
	if bytes.HasSuffix(body, commentGuard) {
		body = bytes.TrimSpace(bytes.TrimSuffix(body, commentGuard))
	}

	// XHR responses wrap the payload as {"c":0,"d":")]}'\n[...]"}.
	if len(body) > 0 && body[0] == '{' {
		var envelope struct {
			D string `json:"d"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil || envelope.D == "" {
			return nil, ErrInvalidJSON
		}
		body = []byte(envelope.D)
	}

	if bytes.HasPrefix(body, xssiPrefix) {
		if idx := bytes.IndexByte(body, '\n'); idx >= 0 {
			body = body[idx+1:]
		} else {
			body = body[len(xssiPrefix):]
		}
	}

	var root []any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, ErrInvalidJSON
	}
	return root, nil
}

func parseSearch(root []any) ([]model.PlaceCandidate, error) {
	head := safeSlice(safeGet(root, 0))
	if head == nil {
		return nil, ErrUnexpectedStructure
	}
	// No results pages simply have no entries.
	items := safeSlice(safeGet(head, 1))

	var places []model.PlaceCandidate
	// Index 0 carries search metadata.
	for i := 1; i < len(items); i++ {
		biz := safeSlice(safeGet(items, i, 14))
		if biz == nil {
			continue
		}
		if c, ok := placeFromEntry(biz); ok {
			places = append(places, c)
		}
	}
	return places, nil
}

func parsePreview(root []any) ([]model.PlaceCandidate, error) {
	biz := safeSlice(safeGet(root, previewPlaceIdx))
	if biz == nil {
		return nil, ErrUnexpectedStructure
	}
	c, ok := placeFromEntry(biz)
	if !ok {
		return nil, nil
	}
	return []model.PlaceCandidate{c}, nil
}

func placeFromEntry(biz []any) (model.PlaceCandidate, bool) {
	id := safeString(safeGet(biz, idxPlaceID))
	if id == "" {
		return model.PlaceCandidate{}, false
	}

	c := model.PlaceCandidate{
		PlaceID:         id,
		IsAdvertisement: len(safeSlice(safeGet(biz, idxAdBlock))) > 0,
	}

	lat, latOK := safeFloat(safeGet(biz, idxCoords, 2))
	lng, lngOK := safeFloat(safeGet(biz, idxCoords, 3))
	if latOK && lngOK {
		c.Coords = &model.Coordinates{Lat: lat, Lng: lng}
	}

	for _, cat := range safeSlice(safeGet(biz, idxCategories)) {
		if s := safeString(cat); s != "" {
			c.Categories = append(c.Categories, s)
		}
	}

	if addr := safeSlice(safeGet(biz, idxAddress, 1)); addr != nil {
		c.AddressParsed = &model.AddressParsed{
			Neighborhood: safeString(safeGet(addr, 1)),
			Street:       safeString(safeGet(addr, 2)),
			City:         safeString(safeGet(addr, 3)),
			PostalCode:   safeString(safeGet(addr, 4)),
			State:        safeString(safeGet(addr, 5)),
			CountryCode:  safeString(safeGet(addr, 6)),
		}
	}
	return c, true
}

// safeGet navigates nested []any arrays by index path without panicking.
func safeGet(data any, path ...int) any {
	current := data
	for _, idx := range path {
		slice, ok := current.([]any)
		if !ok || idx < 0 || idx >= len(slice) {
			return nil
		}
		current = slice[idx]
	}
	return current
}

func safeSlice(data any) []any {
	slice, _ := data.([]any)
	return slice
}

// safeString extracts a string from any. Handles string and numbers.
func safeString(data any) string {
	switch v := data.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// safeFloat extracts a float64 from any. ok is false when there is no number.
func safeFloat(data any) (float64, bool) {
	switch v := data.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}
