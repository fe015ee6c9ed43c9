package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/rendis/mapcrawl/internal/logger"
)

// SubmitStrategy is one way of submitting the search box.
type SubmitStrategy struct {
	Name   string
	Submit func(ctx context.Context, page Page) error
}

// DefaultSubmitStrategies are tried in order, each only after the previous one failed.
func DefaultSubmitStrategies() []SubmitStrategy {
	return []SubmitStrategy{
		{"click", func(ctx context.Context, page Page) error {
			return page.Click(ctx, searchButtonSel)
		}},
		{"programmatic click", func(ctx context.Context, page Page) error {
			return page.ClickProgrammatic(ctx, searchButtonSel)
		}},
		{"enter", func(ctx context.Context, page Page) error {
			return page.PressEnter(ctx)
		}},
	}
}

// submitSearch runs the strategies until one succeeds.
func submitSearch(ctx context.Context, page Page, strategies []SubmitStrategy, log *logger.Logger) error {
	var errs []error
	for _, s := range strategies {
		err := s.Submit(ctx, page)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Str("strategy", s.Name).Msg("Submitting search failed")
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}
	return errors.Join(errs...)
}
