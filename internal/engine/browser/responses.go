package browser

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/network"

	"github.com/rendis/mapcrawl/internal/engine/search"
)

const responseBuffer = 256

type response struct {
	url    string
	status int
	body   []byte
	err    error
}

func (r *response) URL() string { return r.url }
func (r *response) Status() int { return r.status }

func (r *response) Text() (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return string(r.body), nil
}

type pendingResponse struct {
	url    string
	status int
}

// responseTracker pairs response headers with their finished bodies and
// delivers data responses on a channel. Other responses are never read.
type responseTracker struct {
	mu      sync.Mutex
	pending map[network.RequestID]pendingResponse
	out     chan search.Response
	done    chan struct{}
	closed  bool

	// fetchBody reads a finished body. It is called on its own goroutine.
	fetchBody func(id network.RequestID) ([]byte, error)
}

func newResponseTracker(fetchBody func(network.RequestID) ([]byte, error)) *responseTracker {
	return &responseTracker{
		pending:   make(map[network.RequestID]pendingResponse),
		out:       make(chan search.Response, responseBuffer),
		done:      make(chan struct{}),
		fetchBody: fetchBody,
	}
}

// handleEvent is the target listener. It must not block.
func (t *responseTracker) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		if e.Response == nil || !search.IsDataURL(e.Response.URL) {
			return
		}
		t.mu.Lock()
		t.pending[e.RequestID] = pendingResponse{url: e.Response.URL, status: int(e.Response.Status)}
		t.mu.Unlock()
	case *network.EventLoadingFinished:
		p, ok := t.take(e.RequestID)
		if !ok {
			return
		}
		go func() {
			body, err := t.fetchBody(e.RequestID)
			t.deliver(&response{url: p.url, status: p.status, body: body, err: err})
		}()
	case *network.EventLoadingFailed:
		t.take(e.RequestID)
	}
}

func (t *responseTracker) take(id network.RequestID) (pendingResponse, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	return p, ok
}

func (t *responseTracker) deliver(r search.Response) {
	select {
	case t.out <- r:
	case <-t.done:
	}
}

func (t *responseTracker) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.done)
	}
}

// bodyFetcher reads response bodies through the tab's target.
func bodyFetcher(tabCtx context.Context) func(network.RequestID) ([]byte, error) {
	return func(id network.RequestID) ([]byte, error) {
		var body []byte
		err := runOn(tabCtx, func(ctx context.Context) error {
			var err error
			body, err = network.GetResponseBody(id).Do(ctx)
			return err
		})
		return body, err
	}
}
