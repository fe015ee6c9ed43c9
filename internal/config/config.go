package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/rendis/mapcrawl/internal/engine/search"
	"github.com/rendis/mapcrawl/internal/model"
)

const envPrefix = "MAPCRAWL_"

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config is the configuration of a crawl run.
type Config struct {
	LogLevel string `toml:"log_level"`
	TUI      bool   `toml:"tui"`

	Browser struct {
		Headless  bool   `toml:"headless"`
		ExecPath  string `toml:"exec_path"`
		UserAgent string `toml:"user_agent"`
		Lang      string `toml:"lang"`
		ProxyURL  string `toml:"proxy_url"`
		Width     int    `toml:"width"`
		Height    int    `toml:"height"`
	} `toml:"browser"`

	Search struct {
		Queries  []string `toml:"queries"`
		StartURL string   `toml:"start_url"`
		Lat      float64  `toml:"lat"`
		Lng      float64  `toml:"lng"`
		Zoom     int      `toml:"zoom"`

		MaxCrawledPlaces          int      `toml:"max_crawled_places"`
		MaxCrawledPlacesPerSearch int      `toml:"max_crawled_places_per_search"`
		MaxPlacesPerPage          int      `toml:"max_places_per_page"` // negative disables the cap
		MaxAutomaticZoomOut       *float64 `toml:"max_automatic_zoom_out,omitempty"`
		ExportPlaceURLs           bool     `toml:"export_place_urls"`

		PolygonFile  string `toml:"polygon_file"`
		PolygonQuery string `toml:"polygon_query"` // geocoded into a boundary when no file is given

		Concurrency int `toml:"concurrency"`
		MaxRetries  int `toml:"max_retries"`
	} `toml:"search"`

	// Timing values are in milliseconds.
	Timing struct {
		OutcomeTimeoutMs int `toml:"outcome_timeout_ms"`
		PollIntervalMs   int `toml:"poll_interval_ms"`
		SearchBoxMs      int `toml:"search_box_timeout_ms"`
		SettleMs         int `toml:"settle_ms"`
		ScrollMinMs      int `toml:"scroll_min_ms"`
		ScrollMaxMs      int `toml:"scroll_max_ms"`
		PointerPauseMs   int `toml:"pointer_pause_ms"`
		ExportGraceMs    int `toml:"export_grace_ms"`
		NoSearchSettleMs int `toml:"no_search_settle_ms"`
	} `toml:"timing"`

	Storage struct {
		Backend         string `toml:"backend"`
		SQLitePath      string `toml:"sqlite_path"`
		RedisAddr       string `toml:"redis_addr"`
		RedisDB         int    `toml:"redis_db"`
		RedisPrefix     string `toml:"redis_prefix"`
		MemcacheAddr    string `toml:"memcache_addr"` // empty disables the shared coordinate cache
		MemcacheTTLSecs int    `toml:"memcache_ttl_seconds"`
	} `toml:"storage"`

	Pins struct {
		Endpoint string `toml:"endpoint"`
	} `toml:"pins"`
}

// Default returns a config with default values.
func Default() *Config {
	cfg := &Config{}
	cfg.LogLevel = "info"

	cfg.Browser.Headless = true
	cfg.Browser.Lang = "en"
	cfg.Browser.Width = 1024
	cfg.Browser.Height = 768

	cfg.Search.Zoom = 14
	cfg.Search.MaxPlacesPerPage = 120
	cfg.Search.Concurrency = 2
	cfg.Search.MaxRetries = 3

	t := search.DefaultTiming()
	cfg.Timing.OutcomeTimeoutMs = int(t.OutcomeTimeout.Milliseconds())
	cfg.Timing.PollIntervalMs = int(t.PollInterval.Milliseconds())
	cfg.Timing.SearchBoxMs = int(t.SearchBoxTimeout.Milliseconds())
	cfg.Timing.SettleMs = int(t.Settle.Milliseconds())
	cfg.Timing.ScrollMinMs = int(t.ScrollDelayMin.Milliseconds())
	cfg.Timing.ScrollMaxMs = int(t.ScrollDelayMax.Milliseconds())
	cfg.Timing.PointerPauseMs = int(t.PointerPause.Milliseconds())
	cfg.Timing.ExportGraceMs = int(t.ExportGrace.Milliseconds())
	cfg.Timing.NoSearchSettleMs = int(t.NoSearchSettle.Milliseconds())

	cfg.Storage.Backend = BackendSQLite
	cfg.Storage.SQLitePath = "mapcrawl.db"
	cfg.Storage.RedisAddr = "localhost:6379"
	cfg.Storage.RedisPrefix = "mapcrawl"
	return cfg
}

// Load reads .env (if present), the TOML file at path (if any), then MAPCRAWL_* variables.
func Load(path string) (*Config, error) {
	// A missing .env is normal.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a TOML file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides values with MAPCRAWL_* environment variables.
func (c *Config) ApplyEnv() error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
				return
			}
			*dst = b
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := os.LookupEnv(envPrefix + "QUERIES"); ok {
		c.Search.Queries = splitList(v)
	}
	str("START_URL", &c.Search.StartURL)
	float("LAT", &c.Search.Lat)
	float("LNG", &c.Search.Lng)
	num("ZOOM", &c.Search.Zoom)
	num("MAX_CRAWLED_PLACES", &c.Search.MaxCrawledPlaces)
	num("MAX_CRAWLED_PLACES_PER_SEARCH", &c.Search.MaxCrawledPlacesPerSearch)
	num("MAX_PLACES_PER_PAGE", &c.Search.MaxPlacesPerPage)
	if v, ok := os.LookupEnv(envPrefix + "MAX_AUTOMATIC_ZOOM_OUT"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_AUTOMATIC_ZOOM_OUT: %w", envPrefix, err))
		} else {
			c.Search.MaxAutomaticZoomOut = &f
		}
	}
	boolean("EXPORT_PLACE_URLS", &c.Search.ExportPlaceURLs)
	str("POLYGON_FILE", &c.Search.PolygonFile)
	str("POLYGON_QUERY", &c.Search.PolygonQuery)
	num("CONCURRENCY", &c.Search.Concurrency)
	num("MAX_RETRIES", &c.Search.MaxRetries)

	boolean("HEADLESS", &c.Browser.Headless)
	str("CHROME_PATH", &c.Browser.ExecPath)
	str("USER_AGENT", &c.Browser.UserAgent)
	str("LANG", &c.Browser.Lang)
	str("PROXY_URL", &c.Browser.ProxyURL)

	str("STORAGE_BACKEND", &c.Storage.Backend)
	str("SQLITE_PATH", &c.Storage.SQLitePath)
	str("REDIS_ADDR", &c.Storage.RedisAddr)
	num("REDIS_DB", &c.Storage.RedisDB)
	str("REDIS_PREFIX", &c.Storage.RedisPrefix)
	str("MEMCACHE_ADDR", &c.Storage.MemcacheAddr)

	str("PINS_ENDPOINT", &c.Pins.Endpoint)
	boolean("TUI", &c.TUI)

	return errors.Join(errs...)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	params := c.SearchParams()
	if len(params.NormalizedQueries()) == 0 && c.Search.StartURL == "" {
		errs = append(errs, errors.New("search: at least one query or a start_url is required"))
	}
	if c.Search.MaxCrawledPlaces < 0 {
		errs = append(errs, errors.New("search: max_crawled_places must not be negative"))
	}
	if c.Search.MaxCrawledPlacesPerSearch < 0 {
		errs = append(errs, errors.New("search: max_crawled_places_per_search must not be negative"))
	}
	if z := c.Search.MaxAutomaticZoomOut; z != nil && *z < 0 {
		errs = append(errs, errors.New("search: max_automatic_zoom_out must not be negative"))
	}
	if c.Search.Concurrency < 1 {
		errs = append(errs, errors.New("search: concurrency must be at least 1"))
	}
	if c.Search.MaxRetries < 0 {
		errs = append(errs, errors.New("search: max_retries must not be negative"))
	}
	if c.Timing.ScrollMinMs > c.Timing.ScrollMaxMs {
		errs = append(errs, errors.New("timing: scroll_min_ms must not exceed scroll_max_ms"))
	}
	if c.Timing.OutcomeTimeoutMs <= 0 || c.Timing.PollIntervalMs <= 0 {
		errs = append(errs, errors.New("timing: outcome_timeout_ms and poll_interval_ms must be positive"))
	}
	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage: sqlite_path is required"))
		}
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("storage: redis_addr is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage: unknown backend %q", c.Storage.Backend))
	}
	return errors.Join(errs...)
}

// SearchParams returns the crawl options of this config.
func (c *Config) SearchParams() model.SearchParams {
	return model.SearchParams{
		Queries:                   c.Search.Queries,
		StartURL:                  c.Search.StartURL,
		Lat:                       c.Search.Lat,
		Lng:                       c.Search.Lng,
		Zoom:                      c.Search.Zoom,
		MaxCrawledPlaces:          c.Search.MaxCrawledPlaces,
		MaxCrawledPlacesPerSearch: c.Search.MaxCrawledPlacesPerSearch,
		MaxPlacesPerPage:          c.Search.MaxPlacesPerPage,
		MaxAutomaticZoomOut:       c.Search.MaxAutomaticZoomOut,
		ExportPlaceURLs:           c.Search.ExportPlaceURLs,
		Concurrency:               c.Search.Concurrency,
		MaxRetries:                c.Search.MaxRetries,
		Lang:                      c.Browser.Lang,
	}
}

// SearchTiming converts the millisecond settings.
func (c *Config) SearchTiming() search.Timing {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	t := search.DefaultTiming()
	t.OutcomeTimeout = ms(c.Timing.OutcomeTimeoutMs)
	t.PollInterval = ms(c.Timing.PollIntervalMs)
	t.SearchBoxTimeout = ms(c.Timing.SearchBoxMs)
	t.Settle = ms(c.Timing.SettleMs)
	t.ScrollDelayMin = ms(c.Timing.ScrollMinMs)
	t.ScrollDelayMax = ms(c.Timing.ScrollMaxMs)
	t.PointerPause = ms(c.Timing.PointerPauseMs)
	t.ExportGrace = ms(c.Timing.ExportGraceMs)
	t.NoSearchSettle = ms(c.Timing.NoSearchSettleMs)
	return t
}

// Save writes the config as TOML.
func Save(cfg *Config, path string) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
