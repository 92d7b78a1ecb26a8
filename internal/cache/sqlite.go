package cache

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/analysis-cli/internal/histogram"
)

// SQLite is a persistent cache backed by modernc.org/sqlite, so expensive
// full-dataset scans survive process restarts.
type SQLite struct {
	db *sql.DB
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS histograms (
	key        TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

// NewSQLite opens (or creates) the cache database at the given path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	if _, err := db.Exec(sqliteMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "cache: migrate")
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get returns the stored histogram for the key, or (nil, false) on a miss.
// A corrupt entry counts as a miss and is logged, never fatal.
func (s *SQLite) Get(key string) (*histogram.H1, bool) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM histograms WHERE key = ?`, key).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		zap.L().Warn("cache: get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	var h histogram.H1
	if err := json.Unmarshal([]byte(payload), &h); err != nil {
		zap.L().Warn("cache: corrupt entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &h, true
}

// Put stores the histogram, overwriting any prior entry for the key.
func (s *SQLite) Put(key string, h *histogram.H1) error {
	payload, err := json.Marshal(h)
	if err != nil {
		return eris.Wrap(err, "cache: marshal")
	}
	_, err = s.db.Exec(
		`INSERT INTO histograms (key, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`,
		key, string(payload), time.Now().UTC(),
	)
	return eris.Wrap(err, "cache: put")
}

// Clear drops every entry and returns how many were removed.
func (s *SQLite) Clear() (int, error) {
	res, err := s.db.Exec(`DELETE FROM histograms`)
	if err != nil {
		return 0, eris.Wrap(err, "cache: clear")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Len returns the number of stored entries.
func (s *SQLite) Len() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM histograms`).Scan(&n)
	return n, eris.Wrap(err, "cache: count")
}
