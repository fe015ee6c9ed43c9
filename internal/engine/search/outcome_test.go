package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noWait(context.Context, time.Duration) error { return nil }

func TestOutcomeDetectorPriority(t *testing.T) {
	tests := []struct {
		name      string
		selectors map[string]bool
		xpaths    map[string]bool
		want      Outcome
	}{
		{"bad query wins over results", map[string]bool{badQuerySel: true, resultLinkSel: true}, nil, OutcomeBadQuery},
		{"no results wins over single place", map[string]bool{placeTitleSel: true}, map[string]bool{noResultsXPath: true}, OutcomeNoResults},
		{"single place wins over results", map[string]bool{placeTitleSel: true, resultLinkSel: true}, nil, OutcomeSinglePlace},
		{"results loaded", map[string]bool{resultLinkSel: true}, nil, OutcomeResultsLoaded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := newFakePage()
			page.selectors = tt.selectors
			if tt.xpaths != nil {
				page.xpaths = tt.xpaths
			}
			d := &OutcomeDetector{Page: page, Timeout: time.Second, PollInterval: time.Millisecond, Wait: noWait}

			got, err := d.Detect(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutcomeDetectorTimesOut(t *testing.T) {
	page := newFakePage()
	page.selectors = map[string]bool{}

	clock := time.Unix(0, 0)
	polls := 0
	d := &OutcomeDetector{
		Page:    page,
		Timeout: 30 * time.Second,
		Wait: func(context.Context, time.Duration) error {
			polls++
			clock = clock.Add(500 * time.Millisecond)
			return nil
		},
		now: func() time.Time { return clock },
	}

	got, err := d.Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimeout, got)
	assert.Equal(t, 61, polls)
}

func TestOutcomeDetectorWaitsForLateOutcome(t *testing.T) {
	page := newFakePage()
	page.selectors = map[string]bool{}
	polls := 0
	d := &OutcomeDetector{
		Page:    page,
		Timeout: time.Minute,
		Wait: func(context.Context, time.Duration) error {
			polls++
			if polls == 3 {
				page.setSelector(placeTitleSel, true)
			}
			return nil
		},
	}

	got, err := d.Detect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSinglePlace, got)
	assert.Equal(t, "single_place", got.String())
}

func TestRunUnrecognizedPageIsRetryable(t *testing.T) {
	f := newFixture(0, 0)
	f.page.selectors = map[string]bool{}
	s := f.searcher(Options{SearchString: "pubs", RequestURL: "https://www.google.com/maps"})

	err := s.Run(context.Background())

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrorKindOutcome, se.Kind)
	assert.Equal(t, "Don't recognize the loaded content - https://www.google.com/maps", se.Message)
	assert.True(t, IsRetryable(err))
	assert.Zero(t, f.page.wheels)
}

func TestRunTerminalOutcomesFinishQuietly(t *testing.T) {
	for _, sel := range []string{badQuerySel, placeTitleSel} {
		f := newFixture(0, 0)
		f.page.selectors = map[string]bool{sel: true}
		s := f.searcher(Options{SearchString: "pubs"})

		require.NoError(t, s.Run(context.Background()), sel)
		assert.Zero(t, f.page.wheels, sel)
	}
}
