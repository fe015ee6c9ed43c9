package search

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/mapcrawl/internal/engine/crawlstate"
	"github.com/rendis/mapcrawl/internal/engine/geo"
	"github.com/rendis/mapcrawl/internal/logger"
)

const (
	defaultStallLimit       = 10
	defaultMaxPlacesPerPage = 120

	scrollPanelX = 10
	scrollPanelY = 300
	scrollDeltaY = 800
)

// Timing holds every delay of a search.
type Timing struct {
	OutcomeTimeout   time.Duration
	PollInterval     time.Duration
	SearchBoxTimeout time.Duration
	Settle           time.Duration
	LoaderTimeout    time.Duration
	ScrollDelayMin   time.Duration
	ScrollDelayMax   time.Duration
	PointerPause     time.Duration
	ExportGrace      time.Duration
	NoSearchSettle   time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		OutcomeTimeout:   30 * time.Second,
		PollInterval:     500 * time.Millisecond,
		SearchBoxTimeout: 15 * time.Second,
		Settle:           5 * time.Second,
		LoaderTimeout:    15 * time.Second,
		ScrollDelayMin:   2 * time.Second,
		ScrollDelayMax:   4 * time.Second,
		PointerPause:     100 * time.Millisecond,
		ExportGrace:      5 * time.Second,
		NoSearchSettle:   10 * time.Second,
	}
}

// Viewport is the page size used for pointer sweeps.
type Viewport struct {
	Width  float64
	Height float64
	Step   float64
}

// Options configure one search.
type Options struct {
	SearchString string
	// RequestURL is the map page the search runs on. It keys the budget when SearchString is empty.
	RequestURL          string
	ExportPlaceURLs     bool
	MaxAutomaticZoomOut *float64
	MaxPlacesPerPage    int
	StallLimit          int
	Timing              Timing
	Viewport            Viewport
	SubmitStrategies    []SubmitStrategy
}

// Deps are the collaborators of a search. Cache, Budget, Deduper and Stats are shared by every search of a run.
type Deps struct {
	Page      Page
	Parser    Parser
	Queue     RequestQueue
	Sink      ExportSink
	Snapshots SnapshotStore
	Scheduler Scheduler
	Pins      PinRecognizer
	Polygon   *geo.Polygon
	Cache     *crawlstate.CoordinateCache
	Budget    *crawlstate.BudgetTracker
	Deduper   *crawlstate.ExportDeduper
	Stats     *crawlstate.Stats
	Log       *logger.Logger
}

// Searcher drives one paginated search on one page.
type Searcher struct {
	opts      Options
	deps      Deps
	stats     *PageStats
	processor *Processor
	log       *logger.Logger
	jitter    func() float64
}

func NewSearcher(opts Options, deps Deps) *Searcher {
	if opts.MaxPlacesPerPage == 0 {
		opts.MaxPlacesPerPage = defaultMaxPlacesPerPage
	}
	if opts.StallLimit <= 0 {
		opts.StallLimit = defaultStallLimit
	}
	if opts.SubmitStrategies == nil {
		opts.SubmitStrategies = DefaultSubmitStrategies()
	}
	if opts.Viewport.Width == 0 {
		opts.Viewport = Viewport{Width: 1024, Height: 768, Step: 50}
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Stats == nil {
		deps.Stats = &crawlstate.Stats{}
	}
	if deps.Cache == nil {
		deps.Cache = crawlstate.NewCoordinateCache(nil, nil)
	}
	if deps.Budget == nil {
		deps.Budget = crawlstate.NewBudgetTracker(0, 0)
	}
	deps.Log = deps.Log.ForSearch(opts.SearchString)

	s := &Searcher{
		opts:   opts,
		deps:   deps,
		stats:  NewPageStats(),
		log:    deps.Log,
		jitter: rand.Float64,
	}
	s.processor = newProcessor(opts, deps, s.wait)
	return s
}

// PageStats exposes the counters of this search.
func (s *Searcher) PageStats() *PageStats {
	return s.stats
}

// wait sleeps for d while handling every response that arrives meanwhile.
// All response processing happens here, on the search goroutine.
func (s *Searcher) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	responses := s.deps.Page.Responses()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			s.drain(ctx)
			return nil
		case resp, ok := <-responses:
			if !ok {
				responses = nil
				continue
			}
			s.processor.HandleResponse(ctx, resp, s.stats)
		}
	}
}

// drain handles responses already delivered without blocking.
func (s *Searcher) drain(ctx context.Context) {
	responses := s.deps.Page.Responses()
	for {
		select {
		case resp, ok := <-responses:
			if !ok {
				return
			}
			s.processor.HandleResponse(ctx, resp, s.stats)
		default:
			return
		}
	}
}

// Run submits the search and scrolls through its results until one of the
// termination conditions fires.
func (s *Searcher) Run(ctx context.Context) error {
	if strings.HasPrefix(s.opts.SearchString, noSearchPrefix) {
		return s.runWithoutSearch(ctx)
	}

	page := s.deps.Page
	t := s.opts.Timing

	// There is no search string when a start URL is crawled as is.
	if s.opts.SearchString != "" {
		if err := page.WaitVisible(ctx, searchBoxSel, t.SearchBoxTimeout); err != nil {
			return newError(ErrorKindNavigation, s.opts.SearchString, "search box did not appear", err)
		}
		if err := page.Type(ctx, searchBoxSel, s.opts.SearchString); err != nil {
			return newError(ErrorKindNavigation, s.opts.SearchString, "typing the search failed", err)
		}
	}

	if err := s.wait(ctx, t.Settle); err != nil {
		return err
	}
	if err := submitSearch(ctx, page, s.opts.SubmitStrategies, s.log); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return newError(ErrorKindSubmit, s.opts.SearchString, "could not submit the search", err)
	}
	if err := s.wait(ctx, t.Settle); err != nil {
		return err
	}
	if err := s.waitForMapLoader(ctx); err != nil {
		return err
	}

	startURL, _ := page.URL(ctx)
	startZoom, hasZoom := geo.ParseZoomFromURL(startURL)

	detector := &OutcomeDetector{Page: page, Timeout: t.OutcomeTimeout, PollInterval: t.PollInterval, Wait: s.wait}
	outcome, err := detector.Detect(ctx)
	if err != nil {
		return err
	}

	switch outcome {
	case OutcomeTimeout:
		return newError(ErrorKindOutcome, s.opts.SearchString,
			fmt.Sprintf("Don't recognize the loaded content - %s", s.opts.RequestURL), nil)
	case OutcomeBadQuery:
		s.log.Warn().Str("request_url", s.opts.RequestURL).Msg("Finishing search because this query yielded no results")
		return nil
	case OutcomeNoResults:
		s.log.Warn().Str("request_url", s.opts.RequestURL).Msg("Finishing search because there are no results for this query")
		return nil
	case OutcomeSinglePlace:
		// The place itself is picked up from its preview response.
		s.log.Warn().Str("request_url", s.opts.RequestURL).Msg("Finishing scroll because we loaded a single place page directly")
		return nil
	}

	loop := &scrollLoop{s: s, startZoom: startZoom, hasZoom: hasZoom}
	return loop.run(ctx)
}

// waitForMapLoader waits until the map spinner is gone. Giving up is not an error.
func (s *Searcher) waitForMapLoader(ctx context.Context) error {
	deadline := time.Now().Add(s.opts.Timing.LoaderTimeout)
	for time.Now().Before(deadline) {
		loading, err := s.deps.Page.Exists(ctx, mapLoaderSel)
		if err == nil && !loading {
			return nil
		}
		if err := s.wait(ctx, s.opts.Timing.PollInterval); err != nil {
			return err
		}
	}
	s.log.Debug().Msg("Map loader still visible, continuing anyway")
	return nil
}

// snapshotKey names the stored body of a failing response.
func snapshotKey() string {
	return "SEARCH-RESPONSE-ERROR-" + uuid.NewString()
}
