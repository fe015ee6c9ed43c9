package pins

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/rendis/mapcrawl/internal/engine/search"
	"github.com/rendis/mapcrawl/internal/model"
)

// Poster sends a JSON request and decodes the JSON answer.
type Poster interface {
	PostJSON(ctx context.Context, rawURL string, in, out any) error
}

type recognizeRequest struct {
	Image       string `json:"image"`
	ContentType string `json:"contentType"`
}

type recognizeResponse struct {
	Pins []model.Point `json:"pins"`
}

// Recognizer asks a remote service where the place pins are on a map screenshot.
type Recognizer struct {
	client   Poster
	endpoint string
}

func NewRecognizer(client Poster, endpoint string) *Recognizer {
	return &Recognizer{client: client, endpoint: endpoint}
}

// Recognize screenshots the page and returns the pin positions in page pixels.
func (r *Recognizer) Recognize(ctx context.Context, page search.Page) ([]model.Point, error) {
	shot, err := page.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("taking screenshot: %w", err)
	}

	req := recognizeRequest{
		Image:       base64.StdEncoding.EncodeToString(shot),
		ContentType: "image/png",
	}
	var resp recognizeResponse
	if err := r.client.PostJSON(ctx, r.endpoint, req, &resp); err != nil {
		return nil, fmt.Errorf("recognizing pins: %w", err)
	}
	return resp.Pins, nil
}
