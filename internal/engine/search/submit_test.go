package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitFallsBackInOrder(t *testing.T) {
	f := newFixture(0, 0)
	f.page.clickErr = errBoom
	f.page.setSelector(endOfResultsSel, true)
	s := f.searcher(Options{SearchString: "pubs"})

	require.NoError(t, s.Run(context.Background()))

	assert.Equal(t, "pubs", f.page.typed)
	assert.Equal(t, []string{"click:" + searchButtonSel, "programmatic:" + searchButtonSel}, f.page.submitCalls)
}

func TestSubmitStopsAtFirstSuccess(t *testing.T) {
	f := newFixture(0, 0)
	f.page.setSelector(endOfResultsSel, true)
	s := f.searcher(Options{SearchString: "pubs"})

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, []string{"click:" + searchButtonSel}, f.page.submitCalls)
}

func TestSubmitAllStrategiesFail(t *testing.T) {
	f := newFixture(0, 0)
	f.page.clickErr = errBoom
	f.page.progErr = errBoom
	f.page.enterErr = errBoom
	s := f.searcher(Options{SearchString: "pubs"})

	err := s.Run(context.Background())

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrorKindSubmit, se.Kind)
	assert.False(t, se.IsRetryable())
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, []string{"click:" + searchButtonSel, "programmatic:" + searchButtonSel, "enter"}, f.page.submitCalls)
}

func TestRunSearchBoxMissing(t *testing.T) {
	f := newFixture(0, 0)
	f.page.waitErr = errBoom
	s := f.searcher(Options{SearchString: "pubs"})

	err := s.Run(context.Background())

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrorKindNavigation, se.Kind)
	assert.True(t, se.IsRetryable())
	assert.Empty(t, f.page.submitCalls)
}

func TestCustomSubmitStrategies(t *testing.T) {
	f := newFixture(0, 0)
	f.page.setSelector(endOfResultsSel, true)
	var used []string
	s := f.searcher(Options{SearchString: "pubs", SubmitStrategies: []SubmitStrategy{
		{"first", func(context.Context, Page) error { used = append(used, "first"); return errBoom }},
		{"second", func(context.Context, Page) error { used = append(used, "second"); return nil }},
	}})

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, []string{"first", "second"}, used)
	assert.Empty(t, f.page.submitCalls)
}
