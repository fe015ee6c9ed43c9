package pins

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/mapcrawl/internal/engine/remote"
	"github.com/rendis/mapcrawl/internal/engine/search"
	"github.com/rendis/mapcrawl/internal/model"
)

// shotPage only supports screenshots.
type shotPage struct {
	search.Page
	png []byte
	err error
}

func (p shotPage) Screenshot(context.Context) ([]byte, error) { return p.png, p.err }

func TestRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req recognizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		img, err := base64.StdEncoding.DecodeString(req.Image)
		require.NoError(t, err)
		assert.Equal(t, "PNGDATA", string(img))
		assert.Equal(t, "image/png", req.ContentType)
		w.Write([]byte(`{"pins":[{"x":120,"y":340},{"x":500.5,"y":80}]}`))
	}))
	defer srv.Close()

	r := NewRecognizer(remote.NewClient(remote.Options{Timeout: time.Second}), srv.URL)
	points, err := r.Recognize(context.Background(), shotPage{png: []byte("PNGDATA")})
	require.NoError(t, err)
	assert.Equal(t, []model.Point{{X: 120, Y: 340}, {X: 500.5, Y: 80}}, points)
}

func TestRecognizeScreenshotFailure(t *testing.T) {
	r := NewRecognizer(remote.NewClient(remote.Options{}), "http://127.0.0.1:1")
	_, err := r.Recognize(context.Background(), shotPage{err: errors.New("target closed")})
	assert.ErrorContains(t, err, "taking screenshot")
}

func TestRecognizeServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	r := NewRecognizer(remote.NewClient(remote.Options{}), srv.URL)
	_, err := r.Recognize(context.Background(), shotPage{png: []byte("x")})

	var se *remote.StatusError
	assert.ErrorAs(t, err, &se)
}
