package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/rendis/mapcrawl/internal/model"
)

// Store is a single-file crawl store: request queue, exports, snapshots and coordinates.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	// Optimize for write throughput
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: dbPath}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS requests (
		unique_key TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		label TEXT,
		search_string TEXT,
		rank INTEGER,
		search_page_url TEXT,
		lat REAL,
		lng REAL,
		address TEXT,
		is_advertisement INTEGER NOT NULL DEFAULT 0,
		categories TEXT,
		priority INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_requests_priority ON requests(priority);
	CREATE INDEX IF NOT EXISTS idx_requests_search ON requests(search_string);

	CREATE TABLE IF NOT EXISTS exports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		key TEXT PRIMARY KEY,
		content_type TEXT NOT NULL,
		body BLOB,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS coordinates (
		place_id TEXT PRIMARY KEY,
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		search_string TEXT
	);
	`
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// AddRequest inserts req unless a request with the same unique key exists.
// Forefront requests are ordered before everything already queued.
func (s *Store) AddRequest(ctx context.Context, req model.Request, forefront bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	address, err := marshalNullable(req.UserData.AddressParsed)
	if err != nil {
		return false, err
	}
	categories, err := marshalNullable(req.UserData.Categories)
	if err != nil {
		return false, err
	}
	var lat, lng sql.NullFloat64
	if c := req.UserData.Coords; c != nil {
		lat = sql.NullFloat64{Float64: c.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: c.Lng, Valid: true}
	}

	priority := `(SELECT COALESCE(MAX(priority), 0) + 1 FROM requests)`
	if forefront {
		priority = `(SELECT COALESCE(MIN(priority), 0) - 1 FROM requests)`
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO requests
		(unique_key, url, label, search_string, rank, search_page_url, lat, lng,
		 address, is_advertisement, categories, priority)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,`+priority+`)
	`,
		req.UniqueKey, req.URL, req.UserData.Label, req.UserData.SearchString, req.UserData.Rank,
		req.UserData.SearchPageURL, lat, lng, address, req.UserData.IsAdvertisement, categories,
	)
	if err != nil {
		return false, fmt.Errorf("inserting request %s: %w", req.UniqueKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting request %s: %w", req.UniqueKey, err)
	}
	return n == 0, nil
}

// ListRequests returns the queued requests in processing order.
func (s *Store) ListRequests(ctx context.Context) ([]model.Request, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT unique_key, url, label, search_string, rank, search_page_url, lat, lng,
		       address, is_advertisement, categories
		FROM requests ORDER BY priority
	`)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	var out []model.Request
	for rows.Next() {
		var (
			r                         model.Request
			label, search, searchPage sql.NullString
			address, categories       sql.NullString
			lat, lng                  sql.NullFloat64
			rank                      sql.NullInt64
		)
		if err := rows.Scan(&r.UniqueKey, &r.URL, &label, &search, &rank, &searchPage,
			&lat, &lng, &address, &r.UserData.IsAdvertisement, &categories); err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		r.UserData.Label = label.String
		r.UserData.SearchString = search.String
		r.UserData.Rank = int(rank.Int64)
		r.UserData.SearchPageURL = searchPage.String
		if lat.Valid && lng.Valid {
			r.UserData.Coords = &model.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
		}
		if address.Valid {
			if err := json.Unmarshal([]byte(address.String), &r.UserData.AddressParsed); err != nil {
				return nil, fmt.Errorf("decoding address of %s: %w", r.UniqueKey, err)
			}
		}
		if categories.Valid {
			if err := json.Unmarshal([]byte(categories.String), &r.UserData.Categories); err != nil {
				return nil, fmt.Errorf("decoding categories of %s: %w", r.UniqueKey, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Push appends an export record.
func (s *Store) Push(ctx context.Context, rec model.ExportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO exports (url) VALUES (?)`, rec.URL); err != nil {
		return fmt.Errorf("inserting export: %w", err)
	}
	return nil
}

// ListExports returns the export records in insertion order.
func (s *Store) ListExports(ctx context.Context) ([]model.ExportRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM exports ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing exports: %w", err)
	}
	defer rows.Close()

	var out []model.ExportRecord
	for rows.Next() {
		var rec model.ExportRecord
		if err := rows.Scan(&rec.URL); err != nil {
			return nil, fmt.Errorf("scanning export: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PutSnapshot stores blob under key, replacing an older one, and returns its reference.
func (s *Store) PutSnapshot(ctx context.Context, key string, blob []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, content_type, body) VALUES (?,?,?)
		ON CONFLICT(key) DO UPDATE SET content_type = excluded.content_type, body = excluded.body,
			created_at = CURRENT_TIMESTAMP
	`, key, contentType, blob)
	if err != nil {
		return "", fmt.Errorf("storing snapshot %s: %w", key, err)
	}
	return fmt.Sprintf("sqlite://%s#%s", s.path, key), nil
}

// GetSnapshot returns a stored blob and its content type.
func (s *Store) GetSnapshot(ctx context.Context, key string) ([]byte, string, error) {
	var (
		blob        []byte
		contentType string
	)
	err := s.db.QueryRowContext(ctx, `SELECT body, content_type FROM snapshots WHERE key = ?`, key).
		Scan(&blob, &contentType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("reading snapshot %s: %w", key, err)
	}
	return blob, contentType, nil
}

// GetCoords implements crawlstate.CoordBackend.
func (s *Store) GetCoords(placeID string) (*model.Coordinates, bool) {
	var c model.Coordinates
	err := s.db.QueryRow(`SELECT lat, lng FROM coordinates WHERE place_id = ?`, placeID).Scan(&c.Lat, &c.Lng)
	if err != nil {
		return nil, false
	}
	return &c, true
}

// SetCoords implements crawlstate.CoordBackend.
func (s *Store) SetCoords(placeID string, coords model.Coordinates, searchString string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO coordinates (place_id, lat, lng, search_string) VALUES (?,?,?,?)
		ON CONFLICT(place_id) DO UPDATE SET lat = excluded.lat, lng = excluded.lng,
			search_string = excluded.search_string
	`, placeID, coords.Lat, coords.Lng, searchString)
	if err != nil {
		return fmt.Errorf("storing coordinates of %s: %w", placeID, err)
	}
	return nil
}

func (s *Store) CountRequests() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM requests").Scan(&count)
	return count, err
}

func (s *Store) CountExports() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM exports").Scan(&count)
	return count, err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func marshalNullable(v any) (sql.NullString, error) {
	switch x := v.(type) {
	case *model.AddressParsed:
		if x == nil {
			return sql.NullString{}, nil
		}
	case []string:
		if x == nil {
			return sql.NullString{}, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding %T: %w", v, err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
