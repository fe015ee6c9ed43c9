package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rendis/mapcrawl/internal/engine/crawlstate"
	"github.com/rendis/mapcrawl/internal/engine/search"
	"github.com/rendis/mapcrawl/internal/logger"
	"github.com/rendis/mapcrawl/internal/model"
)

const (
	mapsBaseURL = "https://www.google.com/maps"

	defaultConcurrency      = 1
	defaultProgressInterval = 10 * time.Second
)

// Job is one search of a crawl run.
type Job struct {
	SearchString string
	// URL is the map page opened before the search is typed.
	URL string
}

// PageOpener opens a fresh page on startURL. The returned func releases it.
type PageOpener func(ctx context.Context, startURL string) (search.Page, func(), error)

// RunOptions configure a crawl run.
type RunOptions struct {
	Concurrency int
	// MaxRetries is how many times a search failing with a retryable error is run again on a fresh page.
	MaxRetries int
	OpenPage   PageOpener
	// Search is the template every search starts from. SearchString and RequestURL are set per job.
	Search search.Options
	// Deps are shared by every search. Page and Scheduler are set per job.
	Deps search.Deps
	// Stats allows passing an external Stats object for live progress tracking.
	// If nil, Run() creates its own.
	Stats            *crawlstate.Stats
	ProgressInterval time.Duration
	Log              *logger.Logger
}

// Scheduler runs the jobs of one crawl. Abort stops all of them.
type Scheduler struct {
	cancel context.CancelCauseFunc
}

// Abort cancels every running and pending search because the crawl budget is spent.
func (s *Scheduler) Abort() {
	s.cancel(search.ErrBudgetReached)
}

// BuildJobs derives the searches of a run. With no queries the start URL is crawled as is.
func BuildJobs(params model.SearchParams) []Job {
	startURL := params.StartURL
	if startURL == "" {
		startURL = MapURL(params.Lat, params.Lng, params.Zoom, params.Lang)
	}

	queries := params.NormalizedQueries()
	if len(queries) == 0 {
		return []Job{{URL: startURL}}
	}
	jobs := make([]Job, 0, len(queries))
	for _, q := range queries {
		jobs = append(jobs, Job{SearchString: q, URL: startURL})
	}
	return jobs
}

// MapURL builds a map page URL centered on lat/lng. Without coordinates the default map is used.
func MapURL(lat, lng float64, zoom int, lang string) string {
	u := mapsBaseURL
	if lat != 0 || lng != 0 {
		if zoom <= 0 {
			zoom = 14
		}
		u += fmt.Sprintf("/@%s,%s,%dz", strconv.FormatFloat(lat, 'f', 7, 64), strconv.FormatFloat(lng, 'f', 7, 64), zoom)
	}
	if lang != "" {
		u += "?hl=" + url.QueryEscape(lang)
	}
	return u
}

// Run executes the jobs concurrently and returns the run statistics. Reaching
// the crawl budget is a normal end of the run, not an error.
func Run(ctx context.Context, jobs []Job, opts RunOptions) (*crawlstate.Stats, error) {
	if opts.OpenPage == nil {
		return nil, errors.New("scraper: RunOptions.OpenPage is required")
	}
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	log = log.ForComponent("scheduler")

	stats := opts.Stats
	if stats == nil {
		stats = opts.Deps.Stats
	}
	if stats == nil {
		stats = &crawlstate.Stats{}
	}
	if stats.SearchesTotal == 0 {
		stats.SearchesTotal = len(jobs)
	}
	opts.Deps.Stats = stats
	if opts.Deps.Log == nil {
		opts.Deps.Log = log
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	sched := &Scheduler{cancel: cancel}

	startTime := time.Now()
	done := make(chan struct{})
	go reportProgress(stats, opts.ProgressInterval, startTime, log, done)

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(concurrency)
	for _, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			runJob(gctx, job, sched, opts, stats, log)
			return nil
		})
	}
	_ = g.Wait()
	close(done)

	log.Info().
		Int64("done", stats.SearchesDone.Load()).
		Int64("failed", stats.SearchesFailed.Load()).
		Int64("retries", stats.Retries.Load()).
		Int64("enqueued", stats.PlacesEnqueued.Load()).
		Int64("pushed", stats.PlacesPushed.Load()).
		Dur("elapsed", time.Since(startTime).Truncate(time.Second)).
		Msg("Crawl finished")

	if errors.Is(context.Cause(runCtx), search.ErrBudgetReached) {
		log.Warn().Msg("Crawl aborted because maxCrawledPlaces was reached")
		return stats, nil
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

// runJob runs one search, on a fresh page per attempt.
func runJob(ctx context.Context, job Job, sched *Scheduler, opts RunOptions, stats *crawlstate.Stats, log *logger.Logger) {
	log = log.ForSearch(job.SearchString)
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return
		}
		err := runAttempt(ctx, job, sched, opts)
		if err == nil {
			stats.SearchesDone.Add(1)
			return
		}
		if ctx.Err() != nil {
			return
		}
		if search.IsRetryable(err) && attempt < opts.MaxRetries {
			stats.Retries.Add(1)
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("Search failed, retrying on a fresh page")
			continue
		}
		stats.SearchesFailed.Add(1)
		log.Error().Err(err).Int("attempts", attempt+1).Msg("Search failed")
		return
	}
}

func runAttempt(ctx context.Context, job Job, sched *Scheduler, opts RunOptions) error {
	page, release, err := opts.OpenPage(ctx, job.URL)
	if err != nil {
		return &search.Error{
			Kind:    search.ErrorKindNavigation,
			Search:  job.SearchString,
			Message: "opening page " + job.URL,
			Err:     err,
			Time:    time.Now(),
		}
	}
	if release != nil {
		defer release()
	}

	searchOpts := opts.Search
	searchOpts.SearchString = job.SearchString
	searchOpts.RequestURL = job.URL

	deps := opts.Deps
	deps.Page = page
	deps.Scheduler = sched

	return search.NewSearcher(searchOpts, deps).Run(ctx)
}

func reportProgress(stats *crawlstate.Stats, interval time.Duration, startTime time.Time, log *logger.Logger, done <-chan struct{}) {
	if interval <= 0 {
		interval = defaultProgressInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			log.Info().
				Int64("searches_done", stats.SearchesDone.Load()).
				Int("searches_total", stats.SearchesTotal).
				Int64("failed", stats.SearchesFailed.Load()).
				Int64("found", stats.PlacesFound.Load()).
				Int64("enqueued", stats.PlacesEnqueued.Load()).
				Int64("pushed", stats.PlacesPushed.Load()).
				Int64("out_of_polygon", stats.OutOfPolygon.Load()).
				Dur("elapsed", time.Since(startTime).Truncate(time.Second)).
				Msg("PROGRESS")
		case <-done:
			return
		}
	}
}
