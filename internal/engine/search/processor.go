package search

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rendis/mapcrawl/internal/engine/crawlstate"
	"github.com/rendis/mapcrawl/internal/engine/geo"
	"github.com/rendis/mapcrawl/internal/logger"
	"github.com/rendis/mapcrawl/internal/model"
)

// Processor turns listing responses into enqueued requests or exported records.
type Processor struct {
	searchString string
	requestURL   string
	export       bool
	exportGrace  time.Duration

	page      Page
	parser    Parser
	queue     RequestQueue
	sink      ExportSink
	scheduler Scheduler
	polygon   *geo.Polygon
	cache     *crawlstate.CoordinateCache
	budget    *crawlstate.BudgetTracker
	deduper   *crawlstate.ExportDeduper
	stats     *crawlstate.Stats
	log       *logger.Logger

	// wait blocks for the export grace period before the run is aborted.
	wait func(ctx context.Context, d time.Duration) error
}

func newProcessor(opts Options, deps Deps, wait func(context.Context, time.Duration) error) *Processor {
	return &Processor{
		searchString: opts.SearchString,
		requestURL:   opts.RequestURL,
		export:       opts.ExportPlaceURLs,
		exportGrace:  opts.Timing.ExportGrace,
		page:         deps.Page,
		parser:       deps.Parser,
		queue:        deps.Queue,
		sink:         deps.Sink,
		scheduler:    deps.Scheduler,
		polygon:      deps.Polygon,
		cache:        deps.Cache,
		budget:       deps.Budget,
		deduper:      deps.Deduper,
		stats:        deps.Stats,
		log:          deps.Log,
		wait:         wait,
	}
}

// searchKey identifies the search for per-search budgets.
func (p *Processor) searchKey() string {
	if p.searchString != "" {
		return p.searchString
	}
	return p.requestURL
}

// HandleResponse processes one network response. It never fails: problems are
// stored in stats as a deferred error for the scroll loop to raise.
func (p *Processor) HandleResponse(ctx context.Context, resp Response, stats *PageStats) {
	kind := Classify(resp.URL())
	if kind == KindIgnored {
		return
	}
	stats.IsDataPage = true

	var (
		status int
		body   string
	)
	fail := func(msg string) {
		p.stats.ResponseErrors.Add(1)
		stats.Defer(DeferredError{
			Message:        "Unexpected error during response processing: " + msg,
			ResponseStatus: status,
			ResponseBody:   body,
		})
	}
	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Sprint(r))
		}
	}()

	status = resp.Status()
	if status != http.StatusOK {
		p.log.Warn().Int("status", status).Str("url", resp.URL()).
			Msg("Response status is not 200. This might mean the response is blocked")
	}

	text, err := resp.Text()
	if err != nil {
		fail(err.Error())
		return
	}
	body = text

	candidates, err := p.parser.Parse([]byte(body), kind == KindPreview)
	if err != nil {
		p.stats.ResponseErrors.Add(1)
		stats.Defer(DeferredError{Message: err.Error(), ResponseStatus: status, ResponseBody: body})
	}

	if err := p.processCandidates(ctx, kind, resp.URL(), candidates, stats); err != nil {
		fail(err.Error())
	}
}

func (p *Processor) processCandidates(ctx context.Context, kind ResponseKind, respURL string, candidates []model.PlaceCandidate, stats *PageStats) error {
	// The page URL is resolved by the time listing responses arrive.
	searchPageURL, _ := p.page.URL(ctx)
	pageNumber := PageNumberFromURL(respURL)

	stats.Enqueued = 0
	stats.Pushed = 0
	stats.Found = len(candidates)
	stats.TotalFound += len(candidates)
	p.stats.PlacesFound.Add(int64(len(candidates)))

	ads := 0
	for i := range candidates {
		c := &candidates[i]
		if c.IsAdvertisement {
			ads++
		}
		c.Rank = Rank(pageNumber, i)
		if c.Coords == nil {
			c.Coords = p.cache.GetLocation(c.PlaceID)
		}
		placeURL := model.PlaceURL(p.searchString, c.PlaceID)
		p.cache.AddLocation(c.PlaceID, c.Coords, p.searchString)

		if !p.polygon.Contains(c.Coords) {
			p.stats.AddOutOfPolygonPlace(model.OutOfPolygonPlace{
				URL:           placeURL,
				SearchPageURL: searchPageURL,
				Coordinates:   c.Coords,
			})
			continue
		}

		var (
			stop bool
			err  error
		)
		if p.export {
			stop, err = p.exportCandidate(ctx, c, placeURL, stats)
		} else {
			stop, err = p.enqueueCandidate(ctx, c, placeURL, searchPageURL, stats)
		}
		if err != nil {
			return err
		}
		if stop {
			break
		}
	}

	// Preview responses carry one place each, the scroll loop reports them in aggregate.
	if kind == KindSearch {
		action, count, total := "Enqueued", stats.Enqueued, stats.TotalEnqueued
		if p.export {
			action, count, total = "Pushed", stats.Pushed, stats.TotalPushed
		}
		p.log.Info().
			Int("scroll", stats.PageNum).
			Int("ads", ads).
			Str("url", searchPageURL).
			Msgf("%s %d/%d places (unique & correct/found) + %d ads for this page. Total for this search: %d/%d",
				action, count, stats.Found, ads, total, stats.TotalFound)
	}
	return nil
}

// enqueueCandidate adds a detail request. stop reports that the enqueue budget is spent.
func (p *Processor) enqueueCandidate(ctx context.Context, c *model.PlaceCandidate, placeURL, searchPageURL string, stats *PageStats) (bool, error) {
	key := p.searchKey()
	if !p.budget.TryEnqueue(key) {
		p.log.Warn().
			Int("enqueued_search", p.budget.EnqueuedFor(key)).
			Int("enqueued_total", p.budget.EnqueuedTotal()).
			Str("request_url", p.requestURL).
			Msg("Finishing search because we enqueued maxCrawledPlaces")
		return true, nil
	}

	req := model.Request{
		URL:       placeURL,
		UniqueKey: c.PlaceID,
		UserData: model.RequestPayload{
			Label:           model.LabelDetail,
			SearchString:    p.searchString,
			Rank:            c.Rank,
			SearchPageURL:   searchPageURL,
			Coords:          c.Coords,
			AddressParsed:   c.AddressParsed,
			IsAdvertisement: c.IsAdvertisement,
			Categories:      c.Categories,
		},
	}
	present, err := p.queue.AddRequest(ctx, req, true)
	if err != nil {
		p.budget.UnsetEnqueued(key)
		return true, fmt.Errorf("enqueueing place %s: %w", c.PlaceID, err)
	}
	if present {
		p.budget.UnsetEnqueued(key)
		p.log.Debug().Str("place_id", c.PlaceID).Msg("Place already enqueued, skipping")
		return false, nil
	}

	stats.Enqueued++
	stats.TotalEnqueued++
	p.stats.PlacesEnqueued.Add(1)
	return false, nil
}

// exportCandidate pushes the place URL. stop reports that the scrape budget is spent.
func (p *Processor) exportCandidate(ctx context.Context, c *model.PlaceCandidate, placeURL string, stats *PageStats) (bool, error) {
	if !p.budget.CanScrapeMore() {
		return true, nil
	}
	if p.deduper != nil && p.deduper.TestDuplicateAndAdd(c.PlaceID) {
		return false, nil
	}

	key := p.searchKey()
	if !p.budget.TryScrape(key) {
		p.forgetExported(c.PlaceID)
		return true, nil
	}
	if err := p.sink.Push(ctx, model.ExportRecord{URL: placeURL}); err != nil {
		p.budget.UnsetScraped(key)
		p.forgetExported(c.PlaceID)
		return true, fmt.Errorf("exporting place %s: %w", c.PlaceID, err)
	}
	stats.Pushed++
	stats.TotalPushed++
	p.stats.PlacesPushed.Add(1)

	if p.budget.CanScrapeMore() {
		return false, nil
	}

	p.log.Warn().
		Int("scraped_total", p.budget.ScrapedTotal()).
		Str("request_url", p.requestURL).
		Msg("Finishing scraping because we reached maxCrawledPlaces")
	// Let exports already in flight land before the run goes down.
	if err := p.wait(ctx, p.exportGrace); err != nil {
		p.log.Debug().Err(err).Msg("Export grace period interrupted")
	}
	if p.scheduler != nil {
		p.scheduler.Abort()
	}
	return true, nil
}

func (p *Processor) forgetExported(placeID string) {
	if p.deduper != nil {
		p.deduper.Forget(placeID)
	}
}
