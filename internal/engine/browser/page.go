package browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/rendis/mapcrawl/internal/engine/search"
	"github.com/rendis/mapcrawl/internal/logger"
)

// clickTimeout bounds a pointer click so the next submit strategy gets its turn.
const clickTimeout = 5 * time.Second

// Page is one Chrome tab. It implements search.Page.
type Page struct {
	tabCtx  context.Context
	tracker *responseTracker
	log     *logger.Logger

	mu     sync.Mutex
	mouseX float64
	mouseY float64
}

var _ search.Page = (*Page)(nil)

func newPage(tabCtx context.Context, log *logger.Logger) *Page {
	return &Page{
		tabCtx:  tabCtx,
		tracker: newResponseTracker(bodyFetcher(tabCtx)),
		log:     log,
	}
}

// runOn runs fn against the tab. Cancelling ctx aborts fn without closing the tab.
func runOn(tabCtx context.Context, fn func(ctx context.Context) error) error {
	return chromedp.Run(tabCtx, chromedp.ActionFunc(fn))
}

func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(p.tabCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(p.tabCtx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var u string
	err := p.run(ctx, 0, chromedp.Location(&u))
	return u, err
}

func (p *Page) Responses() <-chan search.Response {
	return p.tracker.out
}

func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (p *Page) Type(ctx context.Context, selector, text string) error {
	return p.run(ctx, 0,
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

func (p *Page) Click(ctx context.Context, selector string) error {
	return p.run(ctx, clickTimeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (p *Page) ClickProgrammatic(ctx context.Context, selector string) error {
	script := fmt.Sprintf(`(function () {
  const el = document.querySelector(%s);
  if (!el) return false;
  el.click();
  return true;
})();`, strconv.Quote(selector))

	var clicked bool
	if err := p.run(ctx, clickTimeout, chromedp.Evaluate(script, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("element %s not found", selector)
	}
	return nil
}

func (p *Page) PressEnter(ctx context.Context) error {
	return p.run(ctx, 0, chromedp.KeyEvent(kb.Enter))
}

func (p *Page) Exists(ctx context.Context, selector string) (bool, error) {
	return p.exists(ctx, selector, chromedp.ByQueryAll)
}

func (p *Page) ExistsXPath(ctx context.Context, xpath string) (bool, error) {
	return p.exists(ctx, xpath, chromedp.BySearch)
}

func (p *Page) exists(ctx context.Context, sel string, by chromedp.QueryOption) (bool, error) {
	var nodes []*cdp.Node
	err := p.run(ctx, 0, chromedp.Nodes(sel, &nodes, by, chromedp.AtLeast(0)))
	if err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

func (p *Page) MoveMouse(ctx context.Context, x, y float64) error {
	if err := p.run(ctx, 0, chromedp.MouseEvent(input.MouseMoved, x, y)); err != nil {
		return err
	}
	p.mu.Lock()
	p.mouseX, p.mouseY = x, y
	p.mu.Unlock()
	return nil
}

// Wheel scrolls whatever is under the pointer.
func (p *Page) Wheel(ctx context.Context, deltaY float64) error {
	p.mu.Lock()
	x, y := p.mouseX, p.mouseY
	p.mu.Unlock()
	return p.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, x, y).
			WithDeltaX(0).
			WithDeltaY(deltaY).
			Do(ctx)
	}))
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, 0, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, errors.New("empty screenshot")
	}
	return buf, nil
}
