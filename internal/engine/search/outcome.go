package search

import (
	"context"
	"time"
)

// Outcome is the classified state of a page right after a search was submitted.
type Outcome int

const (
	OutcomeTimeout Outcome = iota
	OutcomeBadQuery
	OutcomeNoResults
	OutcomeSinglePlace
	OutcomeResultsLoaded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBadQuery:
		return "bad_query"
	case OutcomeNoResults:
		return "no_results"
	case OutcomeSinglePlace:
		return "single_place"
	case OutcomeResultsLoaded:
		return "results_loaded"
	default:
		return "timeout"
	}
}

type outcomeCheck struct {
	outcome Outcome
	matches func(ctx context.Context, page Page) (bool, error)
}

func bySelector(sel string) func(context.Context, Page) (bool, error) {
	return func(ctx context.Context, page Page) (bool, error) {
		return page.Exists(ctx, sel)
	}
}

// outcomeChecks are evaluated in this order on every poll; the first match wins.
var outcomeChecks = []outcomeCheck{
	{OutcomeBadQuery, bySelector(badQuerySel)},
	{OutcomeNoResults, func(ctx context.Context, page Page) (bool, error) {
		return page.ExistsXPath(ctx, noResultsXPath)
	}},
	{OutcomeSinglePlace, bySelector(placeTitleSel)},
	{OutcomeResultsLoaded, bySelector(resultLinkSel)},
}

// OutcomeDetector polls the page until one known outcome shows up or the timeout passes.
type OutcomeDetector struct {
	Page         Page
	Timeout      time.Duration
	PollInterval time.Duration
	// Wait sleeps between polls.
	Wait func(ctx context.Context, d time.Duration) error

	now func() time.Time
}

// Detect returns the first outcome that matches. OutcomeTimeout is returned
// with a nil error when nothing matched in time.
func (d *OutcomeDetector) Detect(ctx context.Context) (Outcome, error) {
	now := d.now
	if now == nil {
		now = time.Now
	}
	start := now()
	for {
		if now().Sub(start) > d.Timeout {
			return OutcomeTimeout, nil
		}
		for _, c := range outcomeChecks {
			ok, err := c.matches(ctx, d.Page)
			if err != nil {
				if ctx.Err() != nil {
					return OutcomeTimeout, ctx.Err()
				}
				// The page may be mid-navigation, try again on the next poll.
				continue
			}
			if ok {
				return c.outcome, nil
			}
		}
		if err := d.Wait(ctx, d.PollInterval); err != nil {
			return OutcomeTimeout, err
		}
	}
}
