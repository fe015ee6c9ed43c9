package model

// LabelDetail marks requests that point at a place detail page.
const LabelDetail = "detail"

// RequestPayload is the user data carried by an enqueued detail request.
type RequestPayload struct {
	Label           string         `json:"label"`
	SearchString    string         `json:"searchString"`
	Rank            int            `json:"rank"`
	SearchPageURL   string         `json:"searchPageUrl"`
	Coords          *Coordinates   `json:"coords,omitempty"`
	AddressParsed   *AddressParsed `json:"addressParsed,omitempty"`
	IsAdvertisement bool           `json:"isAdvertisement"`
	Categories      []string       `json:"categories,omitempty"`
}

// Request is a crawl request added to the request queue.
type Request struct {
	URL       string         `json:"url"`
	UniqueKey string         `json:"uniqueKey"`
	UserData  RequestPayload `json:"userData"`
}

// ExportRecord is the single output record produced in export mode.
type ExportRecord struct {
	URL string `json:"url"`
}
