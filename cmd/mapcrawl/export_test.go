package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/mapcrawl/internal/engine/storage"
	"github.com/rendis/mapcrawl/internal/model"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestExportRequests(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AddRequest(ctx, model.Request{
		URL:       model.PlaceURL("cafes", "ChIJ1"),
		UniqueKey: "ChIJ1",
		UserData: model.RequestPayload{
			Label:         model.LabelDetail,
			SearchString:  "cafes",
			Rank:          3,
			Coords:        &model.Coordinates{Lat: 50.0875, Lng: 14.4213},
			AddressParsed: &model.AddressParsed{City: "Prague", CountryCode: "CZ"},
			Categories:    []string{"Cafe", "Bakery"},
		},
	}, false)
	require.NoError(t, err)
	_, err = s.AddRequest(ctx, model.Request{URL: "https://example.com/2", UniqueKey: "ChIJ2"}, false)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := exportRequests(ctx, s, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "url", rows[0][0])

	first := rows[1]
	assert.Equal(t, "ChIJ1", first[1])
	assert.Equal(t, "cafes", first[2])
	assert.Equal(t, "3", first[3])
	assert.Equal(t, "50.0875000", first[5])
	assert.Equal(t, "Prague", first[9])
	assert.Equal(t, "Cafe; Bakery", first[14])

	second := rows[2]
	assert.Equal(t, "ChIJ2", second[1])
	assert.Empty(t, second[5])
}

func TestExportURLs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Push(ctx, model.ExportRecord{URL: "https://example.com/a"}))
	require.NoError(t, s.Push(ctx, model.ExportRecord{URL: "https://example.com/b"}))

	var buf bytes.Buffer
	n, err := exportURLs(ctx, s, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "url\nhttps://example.com/a\nhttps://example.com/b\n", buf.String())
}
