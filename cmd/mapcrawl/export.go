package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rendis/mapcrawl/internal/config"
	"github.com/rendis/mapcrawl/internal/engine/storage"
	"github.com/rendis/mapcrawl/internal/model"
)

// exportSource is a store whose crawl output can be listed.
type exportSource interface {
	ListRequests(ctx context.Context) ([]model.Request, error)
	ListExports(ctx context.Context) ([]model.ExportRecord, error)
	Close() error
}

var (
	_ exportSource = (*storage.Store)(nil)
	_ exportSource = (*storage.RedisStore)(nil)
)

func runExport(args []string) error {
	var configPath, dbPath, backend, outputPath, kind string

	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "TOML config file")
	fs.StringVar(&backend, "backend", "", "Storage backend: sqlite or redis")
	fs.StringVar(&dbPath, "db", "", "SQLite database path")
	fs.StringVar(&outputPath, "output", "", "Output CSV file (default: stdout)")
	fs.StringVar(&kind, "what", "requests", "What to export: requests or urls")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: mapcrawl export [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  mapcrawl export -db mapcrawl.db -output places.csv\n")
		fmt.Fprintf(os.Stderr, "  mapcrawl export -backend redis -what urls\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if kind != "requests" && kind != "urls" {
		return fmt.Errorf("unsupported -what %q (requests or urls)", kind)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if backend != "" {
		cfg.Storage.Backend = backend
	}
	if dbPath != "" {
		cfg.Storage.SQLitePath = dbPath
	}

	ctx := context.Background()
	src, err := openExportSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer src.Close()

	var out io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()
		out = f
	}

	var n int
	if kind == "urls" {
		n, err = exportURLs(ctx, src, out)
	} else {
		n, err = exportRequests(ctx, src, out)
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("nothing to export")
	}

	dest := outputPath
	if dest == "" {
		dest = "stdout"
	}
	fmt.Fprintf(os.Stderr, "Exported %d rows to %s\n", n, dest)
	return nil
}

func openExportSource(ctx context.Context, cfg *config.Config) (exportSource, error) {
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		rs := storage.NewRedisStore(cfg.Storage.RedisAddr, cfg.Storage.RedisDB, cfg.Storage.RedisPrefix)
		if err := rs.Ping(ctx); err != nil {
			rs.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Storage.RedisAddr, err)
		}
		return rs, nil
	case config.BackendSQLite:
		if _, err := os.Stat(cfg.Storage.SQLitePath); err != nil {
			return nil, fmt.Errorf("opening %s: %w", cfg.Storage.SQLitePath, err)
		}
		s, err := storage.NewStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func exportRequests(ctx context.Context, src exportSource, out io.Writer) (int, error) {
	reqs, err := src.ListRequests(ctx)
	if err != nil {
		return 0, err
	}

	w := csv.NewWriter(out)
	w.Write([]string{
		"url", "unique_key", "search_string", "rank", "search_page_url",
		"lat", "lng", "neighborhood", "street", "city", "postal_code", "state", "country_code",
		"is_advertisement", "categories",
	})
	for _, r := range reqs {
		w.Write(requestRow(r))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("writing csv: %w", err)
	}
	return len(reqs), nil
}

func requestRow(r model.Request) []string {
	d := r.UserData
	var lat, lng string
	if d.Coords != nil {
		lat = strconv.FormatFloat(d.Coords.Lat, 'f', 7, 64)
		lng = strconv.FormatFloat(d.Coords.Lng, 'f', 7, 64)
	}
	var a model.AddressParsed
	if d.AddressParsed != nil {
		a = *d.AddressParsed
	}
	return []string{
		r.URL,
		r.UniqueKey,
		d.SearchString,
		strconv.Itoa(d.Rank),
		d.SearchPageURL,
		lat,
		lng,
		a.Neighborhood,
		a.Street,
		a.City,
		a.PostalCode,
		a.State,
		a.CountryCode,
		strconv.FormatBool(d.IsAdvertisement),
		strings.Join(d.Categories, "; "),
	}
}

func exportURLs(ctx context.Context, src exportSource, out io.Writer) (int, error) {
	recs, err := src.ListExports(ctx)
	if err != nil {
		return 0, err
	}

	w := csv.NewWriter(out)
	w.Write([]string{"url"})
	for _, rec := range recs {
		w.Write([]string{rec.URL})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("writing csv: %w", err)
	}
	return len(recs), nil
}
