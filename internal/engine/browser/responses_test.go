package browser

import (
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/mapcrawl/internal/engine/search"
)

func received(id, url string, status int64) *network.EventResponseReceived {
	return &network.EventResponseReceived{
		RequestID: network.RequestID(id),
		Response:  &network.Response{URL: url, Status: status},
	}
}

func finished(id string) *network.EventLoadingFinished {
	return &network.EventLoadingFinished{RequestID: network.RequestID(id)}
}

func next(t *testing.T, ch <-chan search.Response) search.Response {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(time.Second):
		t.Fatal("no response delivered")
		return nil
	}
}

func TestTrackerDeliversDataResponses(t *testing.T) {
	tr := newResponseTracker(func(id network.RequestID) ([]byte, error) {
		return []byte("body-" + string(id)), nil
	})
	defer tr.close()

	tr.handleEvent(received("1", "https://www.google.com/search?tbm=map&ech=2", 200))
	tr.handleEvent(finished("1"))

	r := next(t, tr.out)
	assert.Equal(t, "https://www.google.com/search?tbm=map&ech=2", r.URL())
	assert.Equal(t, 200, r.Status())
	text, err := r.Text()
	require.NoError(t, err)
	assert.Equal(t, "body-1", text)
}

func TestTrackerIgnoresOtherResponses(t *testing.T) {
	fetched := make(chan network.RequestID, 4)
	tr := newResponseTracker(func(id network.RequestID) ([]byte, error) {
		fetched <- id
		return nil, nil
	})
	defer tr.close()

	tr.handleEvent(received("1", "https://www.google.com/maps/vt?pb=tile", 200))
	tr.handleEvent(finished("1"))
	tr.handleEvent(finished("unknown"))

	tr.handleEvent(received("2", "https://www.google.com/maps/preview/place?pb=x", 200))
	tr.handleEvent(&network.EventLoadingFailed{RequestID: "2"})
	tr.handleEvent(finished("2"))

	select {
	case id := <-fetched:
		t.Fatalf("body of %s should not be read", id)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Empty(t, tr.pending)
}

func TestTrackerBodyError(t *testing.T) {
	tr := newResponseTracker(func(network.RequestID) ([]byte, error) {
		return nil, errors.New("No resource with given identifier found")
	})
	defer tr.close()

	tr.handleEvent(received("7", "https://www.google.com/maps/preview/place?pb=x", 429))
	tr.handleEvent(finished("7"))

	r := next(t, tr.out)
	assert.Equal(t, 429, r.Status())
	_, err := r.Text()
	assert.Error(t, err)
}

func TestTrackerCloseUnblocksDelivery(t *testing.T) {
	tr := newResponseTracker(nil)
	for i := 0; i < responseBuffer; i++ {
		tr.deliver(&response{})
	}

	done := make(chan struct{})
	go func() {
		tr.deliver(&response{})
		close(done)
	}()
	tr.close()
	tr.close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliver blocked after close")
	}
}
