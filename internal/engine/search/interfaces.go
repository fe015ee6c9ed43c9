package search

import (
	"context"
	"time"

	"github.com/rendis/mapcrawl/internal/model"
)

// Response is a completed network response observed on the page.
type Response interface {
	URL() string
	Status() int
	Text() (string, error)
}

// Page is the browser tab a search runs in.
type Page interface {
	// URL returns the current page URL.
	URL(ctx context.Context) (string, error)
	// Responses delivers completed network responses in arrival order.
	Responses() <-chan Response

	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Type(ctx context.Context, selector, text string) error
	// Click performs a real pointer click on the element.
	Click(ctx context.Context, selector string) error
	// ClickProgrammatic re-fetches the element and calls its click() method.
	ClickProgrammatic(ctx context.Context, selector string) error
	PressEnter(ctx context.Context) error
	Exists(ctx context.Context, selector string) (bool, error)
	ExistsXPath(ctx context.Context, xpath string) (bool, error)
	MoveMouse(ctx context.Context, x, y float64) error
	Wheel(ctx context.Context, deltaY float64) error
	Screenshot(ctx context.Context) ([]byte, error)
}

// Parser turns a raw response body into place candidates.
type Parser interface {
	Parse(body []byte, isPreview bool) ([]model.PlaceCandidate, error)
}

// RequestQueue stores detail requests. AddRequest must be an atomic add-if-absent on UniqueKey.
type RequestQueue interface {
	AddRequest(ctx context.Context, req model.Request, forefront bool) (wasAlreadyPresent bool, err error)
}

// SnapshotStore persists diagnostic blobs and returns a reference to them.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, key string, blob []byte, contentType string) (string, error)
}

// ExportSink receives exported records.
type ExportSink interface {
	Push(ctx context.Context, rec model.ExportRecord) error
}

// Scheduler is the crawl run that owns this search.
type Scheduler interface {
	// Abort stops the whole run, not only the current search.
	Abort()
}

// PinRecognizer locates place pins on a rendered map.
type PinRecognizer interface {
	Recognize(ctx context.Context, page Page) ([]model.Point, error)
}
