package search

import (
	"context"
	"strings"

	"github.com/rendis/mapcrawl/internal/model"
)

const (
	// noSearchPrefix switches to sweeping the map instead of searching.
	noSearchPrefix = "all_places_no_search"
	// pinsSuffix requires pin positions from the recognizer.
	pinsSuffix = "_ocr"
)

// runWithoutSearch hovers over the map so its place previews load, without using the search box.
func (s *Searcher) runWithoutSearch(ctx context.Context) error {
	page := s.deps.Page
	if err := s.wait(ctx, s.opts.Timing.NoSearchSettle); err != nil {
		return err
	}

	if ok, _ := page.Exists(ctx, dismissOverlaySel); ok {
		if err := page.Click(ctx, dismissOverlaySel); err != nil {
			s.log.Debug().Err(err).Msg("Dismissing overlay failed")
		}
	}

	var pins []model.Point
	if strings.HasSuffix(s.opts.SearchString, pinsSuffix) {
		if s.deps.Pins != nil {
			var err error
			pins, err = s.deps.Pins.Recognize(ctx, page)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.Warn().Err(err).Msg("Pin recognition failed")
			}
		}
		// Without pins there is nothing to hover, a blind sweep is not a substitute.
		if len(pins) == 0 {
			s.log.Warn().Msg("No pins recognized, finishing without moving the mouse")
			return nil
		}
	}

	if err := s.sweep(ctx, pins); err != nil {
		return err
	}
	s.log.Info().Int("enqueued", s.stats.TotalEnqueued).Int("pushed", s.stats.TotalPushed).
		Int("found", s.stats.TotalFound).Str("request_url", s.opts.RequestURL).
		Msg("Mouse moving finished")

	// A deferred error is still worth a retry here.
	if derr := s.stats.TakeError(); derr != nil {
		return newError(ErrorKindResponse, s.opts.SearchString, derr.Message, nil)
	}
	return nil
}

// sweep moves the pointer over every pin, or across the whole viewport when no pins are given.
func (s *Searcher) sweep(ctx context.Context, pins []model.Point) error {
	points := pins
	if len(points) == 0 {
		points = gridPoints(s.opts.Viewport)
	}
	for _, p := range points {
		if err := s.deps.Page.MoveMouse(ctx, p.X, p.Y); err != nil {
			return err
		}
		if err := s.wait(ctx, s.opts.Timing.PointerPause); err != nil {
			return err
		}
	}
	return nil
}

func gridPoints(v Viewport) []model.Point {
	step := v.Step
	if step <= 0 {
		step = 50
	}
	var points []model.Point
	for y := step / 2; y < v.Height; y += step {
		for x := step / 2; x < v.Width; x += step {
			points = append(points, model.Point{X: x, Y: y})
		}
	}
	return points
}
