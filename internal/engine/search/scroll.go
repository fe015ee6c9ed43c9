package search

import (
	"context"
	"time"

	"github.com/rendis/mapcrawl/internal/engine/geo"
)

// loopCheck is one termination condition of the scroll loop. done stops the
// search gracefully, a non-nil error fails it.
type loopCheck struct {
	name string
	eval func(ctx context.Context) (done bool, err error)
}

type scrollLoop struct {
	s         *Searcher
	startZoom float64
	hasZoom   bool

	emptyScrolls int
	lastTotal    int
}

// checks returns the termination conditions in evaluation order.
func (l *scrollLoop) checks() []loopCheck {
	return []loopCheck{
		{"end of results", l.endOfResults},
		{"stalled", l.stalled},
		{"deferred error", l.deferredError},
		{"budget", l.budgetSpent},
		{"auto zoom", l.zoomedOut},
		{"page cap", l.pageCapReached},
	}
}

func (l *scrollLoop) run(ctx context.Context) error {
	for {
		// Responses that arrived since the last step count for this iteration.
		l.s.drain(ctx)

		for _, c := range l.checks() {
			done, err := c.eval(ctx)
			if err != nil {
				return err
			}
			if done {
				l.s.log.Debug().Str("reason", c.name).Int("scroll", l.s.stats.PageNum).Msg("Scroll loop finished")
				return nil
			}
		}

		if err := l.scroll(ctx); err != nil {
			return err
		}
	}
}

func (l *scrollLoop) endOfResults(ctx context.Context) (bool, error) {
	found, err := l.s.deps.Page.Exists(ctx, endOfResultsSel)
	if err != nil || !found {
		return false, ctx.Err()
	}
	l.s.log.Info().Int("total_found", l.s.stats.TotalFound).Str("request_url", l.s.opts.RequestURL).
		Msg("Finishing search because we reached all results")
	return true, nil
}

// stalled counts consecutive iterations without new results. Results arrive in
// batches of at most 20, so a few empty scrolls are expected.
func (l *scrollLoop) stalled(context.Context) (bool, error) {
	total := l.s.stats.TotalFound
	if total == l.lastTotal {
		l.emptyScrolls++
	} else {
		l.emptyScrolls = 0
	}
	l.lastTotal = total
	if l.emptyScrolls < l.s.opts.StallLimit {
		return false, nil
	}
	l.s.log.Warn().Int("scroll", l.s.stats.PageNum).Int("total_found", total).Str("request_url", l.s.opts.RequestURL).
		Msgf("Finishing scroll because scrolling doesn't yield any more results (and is less than maximum %d)", l.s.opts.MaxPlacesPerPage)
	return true, nil
}

// deferredError raises a failure recorded while handling responses, after
// storing the offending body for diagnosis.
func (l *scrollLoop) deferredError(ctx context.Context) (bool, error) {
	derr := l.s.stats.TakeError()
	if derr == nil {
		return false, nil
	}

	e := newError(ErrorKindResponse, l.s.opts.SearchString, derr.Message, nil)
	e.Status = derr.ResponseStatus
	if snaps := l.s.deps.Snapshots; snaps != nil {
		key := snapshotKey()
		ref, err := snaps.PutSnapshot(ctx, key, []byte(derr.ResponseBody), "text/plain")
		if err != nil {
			l.s.log.Warn().Err(err).Str("key", key).Msg("Storing response snapshot failed")
		} else {
			e.SnapshotRef = ref
		}
	}
	l.s.log.Error().Int("scroll", l.s.stats.PageNum).Str("snapshot", e.SnapshotRef).Str("request_url", l.s.opts.RequestURL).
		Msgf("Error occurred, will retry the page: %s", derr.Message)
	return true, e
}

// budgetSpent stops once this search can no longer add places. The processor already logged why.
func (l *scrollLoop) budgetSpent(context.Context) (bool, error) {
	budget := l.s.deps.Budget
	if l.s.opts.ExportPlaceURLs {
		return !budget.CanScrapeMore(), nil
	}
	return !budget.CanEnqueueMore(l.s.processor.searchKey()), nil
}

func (l *scrollLoop) zoomedOut(ctx context.Context) (bool, error) {
	maxOut := l.s.opts.MaxAutomaticZoomOut
	if maxOut == nil || !l.hasZoom {
		return false, nil
	}
	current, _ := l.s.deps.Page.URL(ctx)
	zoom, ok := geo.ParseZoomFromURL(current)
	if !ok || l.startZoom-zoom <= *maxOut {
		return false, nil
	}
	l.s.log.Warn().Int("scroll", l.s.stats.PageNum).Float64("zoom", zoom).Float64("start_zoom", l.startZoom).
		Str("request_url", l.s.opts.RequestURL).
		Msg("Finishing search because the map zoomed out further than maxAutomaticZoomOut")
	return true, nil
}

func (l *scrollLoop) pageCapReached(context.Context) (bool, error) {
	limit := l.s.opts.MaxPlacesPerPage
	if limit < 0 || l.s.stats.TotalFound < limit {
		return false, nil
	}
	l.s.log.Warn().Int("scroll", l.s.stats.PageNum).Int("total_found", l.s.stats.TotalFound).Str("request_url", l.s.opts.RequestURL).
		Msgf("Finishing scrolling because we found maximum (%d) places per page", limit)
	return true, nil
}

// scroll waits a randomized interval, then wheels the results panel once.
func (l *scrollLoop) scroll(ctx context.Context) error {
	t := l.s.opts.Timing
	delay := t.ScrollDelayMin
	if spread := t.ScrollDelayMax - t.ScrollDelayMin; spread > 0 {
		delay += time.Duration(float64(spread) * l.s.jitter())
	}
	if err := l.s.wait(ctx, delay); err != nil {
		return err
	}

	page := l.s.deps.Page
	// The pointer has to be over the results panel for the wheel to scroll it.
	if err := page.MoveMouse(ctx, scrollPanelX, scrollPanelY); err != nil {
		return err
	}
	if err := l.s.wait(ctx, t.PointerPause); err != nil {
		return err
	}
	if err := page.Wheel(ctx, scrollDeltaY); err != nil {
		return err
	}
	l.s.stats.PageNum++
	return nil
}
