package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rendis/mapcrawl/internal/config"
	"github.com/rendis/mapcrawl/internal/engine/browser"
	"github.com/rendis/mapcrawl/internal/engine/crawlstate"
	"github.com/rendis/mapcrawl/internal/engine/geo"
	"github.com/rendis/mapcrawl/internal/engine/pins"
	"github.com/rendis/mapcrawl/internal/engine/remote"
	"github.com/rendis/mapcrawl/internal/engine/scraper"
	"github.com/rendis/mapcrawl/internal/engine/search"
	"github.com/rendis/mapcrawl/internal/engine/storage"
	"github.com/rendis/mapcrawl/internal/logger"
	"github.com/rendis/mapcrawl/internal/tui"
)

const statsSnapshotKey = "STATS"

func runScan(args []string) error {
	var (
		configPath, queries, startURL, polygonFile, polygonQuery string
		dbPath, backend, lang, logPath, logLevel                 string
		lat, lng                                                 float64
		zoom, maxPlaces, maxPerSearch, maxPerPage, concurrency   int
		headless, exportURLs, useTUI                             bool
	)

	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "TOML config file")
	fs.StringVar(&queries, "queries", "", "Comma-separated search terms")
	fs.StringVar(&startURL, "start-url", "", "Map page to open before searching; crawled as is without queries")
	fs.Float64Var(&lat, "lat", 0, "Map center latitude")
	fs.Float64Var(&lng, "lng", 0, "Map center longitude")
	fs.IntVar(&zoom, "zoom", 0, "Map zoom")
	fs.IntVar(&maxPlaces, "max-places", 0, "Max places crawled in total (0 = unlimited)")
	fs.IntVar(&maxPerSearch, "max-places-per-search", 0, "Max places crawled per search (0 = unlimited)")
	fs.IntVar(&maxPerPage, "max-places-per-page", 0, "Stop scrolling after this many places (negative = no cap)")
	fs.IntVar(&concurrency, "concurrency", 0, "Searches run in parallel")
	fs.StringVar(&polygonFile, "polygon", "", "GeoJSON file with the target area")
	fs.StringVar(&polygonQuery, "area", "", "Target area looked up by name, e.g. \"Prague, Czechia\"")
	fs.BoolVar(&exportURLs, "export-urls", false, "Export place URLs instead of enqueueing detail requests")
	fs.StringVar(&backend, "backend", "", "Storage backend: sqlite or redis")
	fs.StringVar(&dbPath, "db", "", "SQLite database path")
	fs.StringVar(&lang, "lang", "", "Map language")
	fs.BoolVar(&headless, "headless", true, "Run Chrome headless")
	fs.BoolVar(&useTUI, "tui", false, "Show the progress screen")
	fs.StringVar(&logPath, "log", "", "Log file (default: stderr, or mapcrawl.log with -tui)")
	fs.StringVar(&logLevel, "log-level", "", "Log level")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mapcrawl scan [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  mapcrawl scan -queries \"cafes,bars\" -lat 50.0875 -lng 14.4213 -zoom 15\n")
		fmt.Fprintf(os.Stderr, "  mapcrawl scan -config mapcrawl.toml -area \"Prague, Czechia\" -max-places 500 -tui\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Flags override only when given.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "queries":
			cfg.Search.Queries = strings.Split(queries, ",")
		case "start-url":
			cfg.Search.StartURL = startURL
		case "lat":
			cfg.Search.Lat = lat
		case "lng":
			cfg.Search.Lng = lng
		case "zoom":
			cfg.Search.Zoom = zoom
		case "max-places":
			cfg.Search.MaxCrawledPlaces = maxPlaces
		case "max-places-per-search":
			cfg.Search.MaxCrawledPlacesPerSearch = maxPerSearch
		case "max-places-per-page":
			cfg.Search.MaxPlacesPerPage = maxPerPage
		case "concurrency":
			cfg.Search.Concurrency = concurrency
		case "polygon":
			cfg.Search.PolygonFile = polygonFile
		case "area":
			cfg.Search.PolygonQuery = polygonQuery
		case "export-urls":
			cfg.Search.ExportPlaceURLs = exportURLs
		case "backend":
			cfg.Storage.Backend = backend
		case "db":
			cfg.Storage.SQLitePath = dbPath
		case "lang":
			cfg.Browser.Lang = lang
		case "headless":
			cfg.Browser.Headless = headless
		case "tui":
			cfg.TUI = useTUI
		case "log-level":
			cfg.LogLevel = logLevel
		}
	})

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config:\n%w", err)
	}

	var logOut io.Writer = os.Stderr
	if logPath == "" && cfg.TUI {
		logPath = "mapcrawl.log"
	}
	if logPath != "" {
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log: %w", err)
		}
		defer logFile.Close()
		logOut = logFile
		fmt.Fprintf(os.Stderr, "Log: %s\n", logPath)
	}
	log := logger.Init(cfg.LogLevel, logOut)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	store, coords, output, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	client := remote.NewClient(remote.Options{
		UserAgent: cfg.Browser.UserAgent,
		Lang:      cfg.Browser.Lang,
		ProxyURL:  cfg.Browser.ProxyURL,
	})

	polygon, err := loadPolygon(ctx, cfg, client)
	if err != nil {
		return err
	}
	if polygon.IsSet() {
		b := polygon.Bound()
		log.Info().
			Float64("min_lat", b.Min.Lat()).Float64("min_lng", b.Min.Lon()).
			Float64("max_lat", b.Max.Lat()).Float64("max_lng", b.Max.Lon()).
			Msg("Filtering places by target area")
	}

	params := cfg.SearchParams()
	stats := &crawlstate.Stats{}
	deps := search.Deps{
		Parser:    scraper.NewMapParser(),
		Queue:     store,
		Sink:      store,
		Snapshots: store,
		Polygon:   polygon,
		Cache: crawlstate.NewCoordinateCache(coords, func(err error) {
			log.Warn().Err(err).Msg("Coordinate cache write failed")
		}),
		Budget:  crawlstate.NewBudgetTracker(params.MaxCrawledPlaces, params.MaxCrawledPlacesPerSearch),
		Deduper: crawlstate.NewExportDeduper(),
		Stats:   stats,
		Log:     log,
	}
	if cfg.Pins.Endpoint != "" {
		deps.Pins = pins.NewRecognizer(client, cfg.Pins.Endpoint)
	}

	b, err := browser.New(browser.Options{
		Headless:  cfg.Browser.Headless,
		ExecPath:  cfg.Browser.ExecPath,
		UserAgent: cfg.Browser.UserAgent,
		Lang:      cfg.Browser.Lang,
		Width:     cfg.Browser.Width,
		Height:    cfg.Browser.Height,
		ProxyURL:  cfg.Browser.ProxyURL,
	}, log)
	if err != nil {
		return err
	}
	defer b.Close()

	jobs := scraper.BuildJobs(params)
	stats.SearchesTotal = len(jobs)
	opts := scraper.RunOptions{
		Concurrency: params.Concurrency,
		MaxRetries:  params.MaxRetries,
		OpenPage:    b.OpenPage,
		Search: search.Options{
			ExportPlaceURLs:     params.ExportPlaceURLs,
			MaxAutomaticZoomOut: params.MaxAutomaticZoomOut,
			MaxPlacesPerPage:    params.MaxPlacesPerPage,
			Timing:              cfg.SearchTiming(),
			Viewport: search.Viewport{
				Width:  float64(cfg.Browser.Width),
				Height: float64(cfg.Browser.Height),
				Step:   50,
			},
		},
		Deps:  deps,
		Stats: stats,
		Log:   log,
	}

	log.Info().
		Int("searches", len(jobs)).
		Int("concurrency", params.Concurrency).
		Int("max_crawled_places", params.MaxCrawledPlaces).
		Bool("export_place_urls", params.ExportPlaceURLs).
		Msg("Starting crawl")

	startTime := time.Now()
	run := func() error {
		_, err := scraper.Run(ctx, jobs, opts)
		return err
	}
	if cfg.TUI {
		title := "Crawling: " + describeRun(jobs)
		err = tui.Run(title, output, stats, cancel, run)
	} else {
		err = run()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("crawling: %w", err)
	}

	// The run context may be cancelled already; the stats are still worth keeping.
	summary := stats.Summary()
	ref, snapErr := saveStats(context.Background(), store, summary)
	if snapErr != nil {
		log.Error().Err(snapErr).Msg("Saving run statistics failed")
	}

	printSummary(summary, time.Since(startTime), output, ref)
	return nil
}

// openStorage returns the crawl store and the coordinate backend.
func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage.Backend, crawlstate.CoordBackend, string, error) {
	var (
		store  storage.Backend
		coords crawlstate.CoordBackend
		output string
	)
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		rs := storage.NewRedisStore(cfg.Storage.RedisAddr, cfg.Storage.RedisDB, cfg.Storage.RedisPrefix)
		if err := rs.Ping(ctx); err != nil {
			rs.Close()
			return nil, nil, "", fmt.Errorf("connecting to redis at %s: %w", cfg.Storage.RedisAddr, err)
		}
		store = rs
		output = fmt.Sprintf("redis://%s/%d (%s)", cfg.Storage.RedisAddr, cfg.Storage.RedisDB, cfg.Storage.RedisPrefix)
	default:
		s, err := storage.NewStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, "", fmt.Errorf("opening store: %w", err)
		}
		store, coords = s, s
		output = cfg.Storage.SQLitePath
	}

	if cfg.Storage.MemcacheAddr != "" {
		ttl := time.Duration(cfg.Storage.MemcacheTTLSecs) * time.Second
		coords = storage.NewMemcacheCoords(cfg.Storage.MemcacheAddr, cfg.Storage.RedisPrefix, ttl)
		log.Info().Str("addr", cfg.Storage.MemcacheAddr).Msg("Sharing place coordinates through memcached")
	}
	return store, coords, output, nil
}

func loadPolygon(ctx context.Context, cfg *config.Config, f geo.Fetcher) (*geo.Polygon, error) {
	switch {
	case cfg.Search.PolygonFile != "":
		return geo.LoadPolygonFile(cfg.Search.PolygonFile)
	case cfg.Search.PolygonQuery != "":
		p, err := geo.GeocodePolygon(ctx, f, cfg.Search.PolygonQuery)
		if err != nil {
			return nil, fmt.Errorf("looking up area %q: %w", cfg.Search.PolygonQuery, err)
		}
		return p, nil
	}
	return nil, nil
}

func saveStats(ctx context.Context, store search.SnapshotStore, summary crawlstate.Summary) (string, error) {
	blob, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding stats: %w", err)
	}
	return store.PutSnapshot(ctx, statsSnapshotKey, blob, "application/json")
}

func describeRun(jobs []scraper.Job) string {
	var names []string
	for _, j := range jobs {
		if j.SearchString != "" {
			names = append(names, j.SearchString)
		}
	}
	if len(names) == 0 && len(jobs) > 0 {
		return jobs[0].URL
	}
	return strings.Join(names, ", ")
}

func printSummary(s crawlstate.Summary, elapsed time.Duration, output, statsRef string) {
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Crawl Complete\n")
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Searches:   %d/%d (%d failed, %d retries)\n",
		s.SearchesDone, s.SearchesTotal, s.SearchesFailed, s.Retries)
	fmt.Fprintf(os.Stderr, "  Found:      %d\n", s.PlacesFound)
	fmt.Fprintf(os.Stderr, "  Enqueued:   %d\n", s.PlacesEnqueued)
	fmt.Fprintf(os.Stderr, "  Exported:   %d\n", s.PlacesPushed)
	if s.OutOfPolygon > 0 {
		fmt.Fprintf(os.Stderr, "  Outside:    %d\n", s.OutOfPolygon)
	}
	fmt.Fprintf(os.Stderr, "  Duration:   %s\n", elapsed.Truncate(time.Second))
	fmt.Fprintf(os.Stderr, "  Output:     %s\n", output)
	if statsRef != "" {
		fmt.Fprintf(os.Stderr, "  Stats:      %s\n", statsRef)
	}
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
}
