package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/rendis/mapcrawl/internal/engine/search"
	"github.com/rendis/mapcrawl/internal/logger"
)

const (
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

	navigationTimeout = 60 * time.Second
)

const consentScript = `(function () {
  const selectors = [
    'button[aria-label="Accept all"]',
    'button[aria-label="I agree"]',
    'button[aria-label="Alles akzeptieren"]',
    'button.VfPpkd-LgbsSe-OWXEXe-k8QpJ'
  ];
  for (const sel of selectors) {
    const btn = document.querySelector(sel);
    if (btn) {
      btn.click();
      return true;
    }
  }
  return false;
})();`

// Options configure the Chrome instance.
type Options struct {
	Headless  bool
	ExecPath  string
	UserAgent string
	Lang      string
	Width     int
	Height    int
	ProxyURL  string
}

// Browser owns one Chrome process. Every search gets its own tab.
type Browser struct {
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	width         int
	height        int
	log           *logger.Logger
}

// New starts Chrome.
func New(opts Options, log *logger.Logger) (*Browser, error) {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 1024, 768
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(ua),
		chromedp.WindowSize(opts.Width, opts.Height),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.Lang != "" {
		allocOpts = append(allocOpts, chromedp.Flag("lang", opts.Lang))
	}
	if opts.ProxyURL != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyURL))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Running with no actions launches the process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("starting chrome: %w", err)
	}

	return &Browser{
		allocCtx:      allocCtx,
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		width:         opts.Width,
		height:        opts.Height,
		log:           log.ForComponent("browser"),
	}, nil
}

// OpenPage opens a new tab on startURL. It matches scraper.PageOpener.
func (b *Browser) OpenPage(ctx context.Context, startURL string) (search.Page, func(), error) {
	tabCtx, closeTab := chromedp.NewContext(b.browserCtx)
	page := newPage(tabCtx, b.log)

	chromedp.ListenTarget(tabCtx, page.tracker.handleEvent)

	navCtx, cancel := context.WithTimeout(tabCtx, navigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(navCtx,
		network.Enable(),
		chromedp.Navigate(startURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var clicked bool
			if err := chromedp.Evaluate(consentScript, &clicked).Do(ctx); err != nil {
				return err
			}
			if clicked {
				b.log.Debug().Str("url", startURL).Msg("Consent dialog accepted")
			}
			return nil
		}),
	)
	if err != nil {
		closeTab()
		return nil, nil, fmt.Errorf("navigating to %s: %w", startURL, err)
	}

	return page, func() {
		page.tracker.close()
		closeTab()
	}, nil
}

// Close shuts Chrome down.
func (b *Browser) Close() {
	b.cancelBrowser()
	b.cancelAlloc()
}
