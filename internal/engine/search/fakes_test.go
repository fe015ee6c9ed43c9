package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rendis/mapcrawl/internal/engine/crawlstate"
	"github.com/rendis/mapcrawl/internal/model"
)

type fakeResponse struct {
	url    string
	status int
	body   string
	err    error
}

func (r fakeResponse) URL() string           { return r.url }
func (r fakeResponse) Status() int           { return r.status }
func (r fakeResponse) Text() (string, error) { return r.body, r.err }

func searchResponse(page int, body string) fakeResponse {
	return fakeResponse{
		url:    fmt.Sprintf("https://www.google.com/search?tbm=map&authuser=0&hl=en&ech=%d&q=pubs", page),
		status: 200,
		body:   body,
	}
}

type fakePage struct {
	mu        sync.Mutex
	url       string
	responses chan Response
	selectors map[string]bool
	xpaths    map[string]bool

	clickErr    error
	progErr     error
	enterErr    error
	waitErr     error
	submitCalls []string
	typed       string
	moves       []model.Point
	wheels      int

	// onWheel runs after every wheel action, e.g. to deliver the next page of results.
	onWheel func(p *fakePage, n int)
}

func newFakePage() *fakePage {
	return &fakePage{
		url:       "https://www.google.com/maps/search/pubs/@50.08,14.42,14z",
		responses: make(chan Response, 256),
		selectors: map[string]bool{resultLinkSel: true},
		xpaths:    map[string]bool{},
	}
}

func (p *fakePage) deliver(r Response) { p.responses <- r }

func (p *fakePage) setURL(u string) {
	p.mu.Lock()
	p.url = u
	p.mu.Unlock()
}

func (p *fakePage) setSelector(sel string, present bool) {
	p.mu.Lock()
	p.selectors[sel] = present
	p.mu.Unlock()
}

func (p *fakePage) URL(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *fakePage) Responses() <-chan Response { return p.responses }

func (p *fakePage) WaitVisible(context.Context, string, time.Duration) error { return p.waitErr }

func (p *fakePage) Type(_ context.Context, _ string, text string) error {
	p.typed = text
	return nil
}

func (p *fakePage) Click(_ context.Context, sel string) error {
	p.submitCalls = append(p.submitCalls, "click:"+sel)
	return p.clickErr
}

func (p *fakePage) ClickProgrammatic(_ context.Context, sel string) error {
	p.submitCalls = append(p.submitCalls, "programmatic:"+sel)
	return p.progErr
}

func (p *fakePage) PressEnter(context.Context) error {
	p.submitCalls = append(p.submitCalls, "enter")
	return p.enterErr
}

func (p *fakePage) Exists(_ context.Context, sel string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selectors[sel], nil
}

func (p *fakePage) ExistsXPath(_ context.Context, xpath string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.xpaths[xpath], nil
}

func (p *fakePage) MoveMouse(_ context.Context, x, y float64) error {
	p.moves = append(p.moves, model.Point{X: x, Y: y})
	return nil
}

func (p *fakePage) Wheel(context.Context, float64) error {
	p.wheels++
	if p.onWheel != nil {
		p.onWheel(p, p.wheels)
	}
	return nil
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) { return []byte("png"), nil }

// fakeParser maps response bodies to parse results.
type fakeParser struct {
	results map[string][]model.PlaceCandidate
	errs    map[string]error
	panics  bool
}

func (f *fakeParser) Parse(body []byte, _ bool) ([]model.PlaceCandidate, error) {
	if f.panics {
		panic("index out of range")
	}
	if err, ok := f.errs[string(body)]; ok {
		return nil, err
	}
	src := f.results[string(body)]
	out := make([]model.PlaceCandidate, len(src))
	copy(out, src)
	return out, nil
}

type fakeQueue struct {
	mu       sync.Mutex
	requests map[string]model.Request
	order    []string
	err      error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{requests: map[string]model.Request{}}
}

func (q *fakeQueue) AddRequest(_ context.Context, req model.Request, _ bool) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return false, q.err
	}
	if _, ok := q.requests[req.UniqueKey]; ok {
		return true, nil
	}
	q.requests[req.UniqueKey] = req
	q.order = append(q.order, req.UniqueKey)
	return false, nil
}

type fakeSink struct {
	mu      sync.Mutex
	records []model.ExportRecord
	err     error
}

func (s *fakeSink) Push(_ context.Context, rec model.ExportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

type fakeSnapshots struct {
	blobs map[string]string
	err   error
}

func (s *fakeSnapshots) PutSnapshot(_ context.Context, key string, blob []byte, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.blobs == nil {
		s.blobs = map[string]string{}
	}
	s.blobs[key] = string(blob)
	return "memory://" + key, nil
}

type fakeScheduler struct {
	aborted int
}

func (s *fakeScheduler) Abort() { s.aborted++ }

type fakePins struct {
	points []model.Point
	err    error
}

func (f *fakePins) Recognize(context.Context, Page) ([]model.Point, error) {
	return f.points, f.err
}

var errBoom = errors.New("boom")

func fastTiming() Timing {
	return Timing{
		OutcomeTimeout: 50 * time.Millisecond,
		PollInterval:   time.Millisecond,
	}
}

type fixture struct {
	page      *fakePage
	parser    *fakeParser
	queue     *fakeQueue
	sink      *fakeSink
	snapshots *fakeSnapshots
	scheduler *fakeScheduler
	cache     *crawlstate.CoordinateCache
	budget    *crawlstate.BudgetTracker
	deduper   *crawlstate.ExportDeduper
	stats     *crawlstate.Stats
}

func newFixture(maxTotal, maxPerSearch int) *fixture {
	return &fixture{
		page:      newFakePage(),
		parser:    &fakeParser{results: map[string][]model.PlaceCandidate{}, errs: map[string]error{}},
		queue:     newFakeQueue(),
		sink:      &fakeSink{},
		snapshots: &fakeSnapshots{},
		scheduler: &fakeScheduler{},
		cache:     crawlstate.NewCoordinateCache(nil, nil),
		budget:    crawlstate.NewBudgetTracker(maxTotal, maxPerSearch),
		deduper:   crawlstate.NewExportDeduper(),
		stats:     &crawlstate.Stats{},
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		Page:      f.page,
		Parser:    f.parser,
		Queue:     f.queue,
		Sink:      f.sink,
		Snapshots: f.snapshots,
		Scheduler: f.scheduler,
		Cache:     f.cache,
		Budget:    f.budget,
		Deduper:   f.deduper,
		Stats:     f.stats,
	}
}

func (f *fixture) searcher(opts Options) *Searcher {
	if opts.Timing == (Timing{}) {
		opts.Timing = fastTiming()
	}
	return NewSearcher(opts, f.deps())
}

func places(ids ...string) []model.PlaceCandidate {
	out := make([]model.PlaceCandidate, len(ids))
	for i, id := range ids {
		out[i] = model.PlaceCandidate{PlaceID: id, Coords: &model.Coordinates{Lat: 50.08, Lng: 14.42}}
	}
	return out
}
