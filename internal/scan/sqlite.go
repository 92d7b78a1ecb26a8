package scan

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/analysis-cli/internal/histogram"
)

// SQLiteEngine scans SQLite database files. Source references are glob
// patterns; every matched file contributes the rows of the table named by
// the request's source tag, forming one logical table.
type SQLiteEngine struct {
	keepResident bool
	resident     map[string]*sql.DB
}

// NewSQLite creates a SQLite scan engine. With keepResident set, database
// handles stay open across queries until released.
func NewSQLite(keepResident bool) *SQLiteEngine {
	return &SQLiteEngine{
		keepResident: keepResident,
		resident:     make(map[string]*sql.DB),
	}
}

// expandSources resolves glob patterns to file paths, preserving order and
// dropping duplicates.
func expandSources(patterns []string) ([]string, error) {
	var files []string
	seen := map[string]bool{}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: bad source pattern %q", pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	return files, nil
}

func (e *SQLiteEngine) open(path string) (*sql.DB, error) {
	if db, ok := e.resident[path]; ok {
		return db, nil
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: open %s", path)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, eris.Wrapf(err, "sqlite: configure %s", path)
	}
	if e.keepResident {
		e.resident[path] = db
	}
	return db, nil
}

func (e *SQLiteEngine) release(path string, db *sql.DB) {
	if !e.keepResident {
		db.Close()
	}
}

// Release closes resident handles for all files matched by the patterns.
func (e *SQLiteEngine) Release(patterns []string) {
	files, err := expandSources(patterns)
	if err != nil {
		return
	}
	for _, f := range files {
		if db, ok := e.resident[f]; ok {
			db.Close()
			delete(e.resident, f)
		}
	}
}

// Close releases every resident handle.
func (e *SQLiteEngine) Close() error {
	for path, db := range e.resident {
		db.Close()
		delete(e.resident, path)
	}
	return nil
}

func buildScanQuery(req Request) string {
	sel := req.Selection
	if sel == "" {
		sel = "1=1"
	}
	weight := req.Weight
	if weight == "" {
		weight = "1"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT (%s) AS v, (%s) AS w FROM %s", req.Var.Expr, weight, req.SourceTag)
	for i, f := range req.Friends {
		if len(f.Sources) > 0 {
			fmt.Fprintf(&b, " JOIN fr%d.%s USING (event_id)", i, f.Table)
		} else {
			fmt.Fprintf(&b, " JOIN %s USING (event_id)", f.Table)
		}
	}
	fmt.Fprintf(&b, " WHERE %s", sel)
	return b.String()
}

// attachFriends attaches external friend files for the main file at index
// idx and returns a detach func. Friend source lists are matched pairwise
// with the expanded main file list.
func attachFriends(db *sql.DB, req Request, idx, nMain int) (func(), error) {
	var attached []string
	detach := func() {
		for _, alias := range attached {
			db.Exec("DETACH DATABASE " + alias) //nolint:errcheck
		}
	}
	for i, f := range req.Friends {
		if len(f.Sources) == 0 {
			continue
		}
		files, err := expandSources(f.Sources)
		if err != nil {
			detach()
			return nil, err
		}
		if len(files) != nMain {
			detach()
			return nil, eris.Errorf("sqlite: friend %s has %d files for %d main files", f.Table, len(files), nMain)
		}
		alias := fmt.Sprintf("fr%d", i)
		if _, err := db.Exec(fmt.Sprintf("ATTACH DATABASE '%s' AS %s", files[idx], alias)); err != nil {
			detach()
			return nil, eris.Wrapf(err, "sqlite: attach friend %s", files[idx])
		}
		attached = append(attached, alias)
	}
	return detach, nil
}

// Scan implements Engine. Zero selected rows produce an empty result; zero
// matched source files report ErrSourceUnavailable.
func (e *SQLiteEngine) Scan(ctx context.Context, req Request) (*Result, error) {
	files, err := expandSources(req.Sources)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		zap.L().Warn("scan: no files matched", zap.Strings("sources", req.Sources))
		return nil, ErrSourceUnavailable
	}
	query := buildScanQuery(req)
	res := &Result{}
	for idx, path := range files {
		if err := e.scanFile(ctx, path, query, req, idx, len(files), res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (e *SQLiteEngine) scanFile(ctx context.Context, path, query string, req Request, idx, nMain int, res *Result) error {
	db, err := e.open(path)
	if err != nil {
		return eris.Wrap(ErrSourceUnavailable, err.Error())
	}
	defer e.release(path, db)

	detach, err := attachFriends(db, req, idx, nMain)
	if err != nil {
		return err
	}
	defer detach()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			zap.L().Warn("scan: table missing, skipping file",
				zap.String("file", path), zap.String("table", req.SourceTag))
			return nil
		}
		return eris.Wrapf(err, "sqlite: scan %s", path)
	}
	defer rows.Close()

	for rows.Next() {
		var v, w float64
		if err := rows.Scan(&v, &w); err != nil {
			return eris.Wrapf(err, "sqlite: scan row in %s", path)
		}
		res.Values = append(res.Values, v)
		res.Weights = append(res.Weights, w)
	}
	return eris.Wrapf(rows.Err(), "sqlite: iterate %s", path)
}

// Histogram implements Engine by filling the variable's binning from a scan.
func (e *SQLiteEngine) Histogram(ctx context.Context, req Request) (*histogram.H1, error) {
	res, err := e.Scan(ctx, req)
	if err != nil {
		return nil, err
	}
	return fillHistogram(req.Var, "", res)
}

func (e *SQLiteEngine) sumQuery(ctx context.Context, sources []string, query string, args ...any) (float64, error) {
	files, err := expandSources(sources)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, ErrSourceUnavailable
	}
	total := 0.0
	for _, path := range files {
		db, err := e.open(path)
		if err != nil {
			return 0, eris.Wrap(ErrSourceUnavailable, err.Error())
		}
		var partial float64
		err = db.QueryRowContext(ctx, query, args...).Scan(&partial)
		e.release(path, db)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: sum over %s", path)
		}
		total += partial
	}
	return total, nil
}

// SumWeights implements Engine.
func (e *SQLiteEngine) SumWeights(ctx context.Context, sources []string, tag, weightExpr string) (float64, error) {
	query := fmt.Sprintf("SELECT COALESCE(SUM(%s), 0) FROM %s", weightExpr, tag)
	return e.sumQuery(ctx, sources, query)
}

// MetadataSum implements Engine.
func (e *SQLiteEngine) MetadataSum(ctx context.Context, sources []string, table, key string) (float64, error) {
	query := fmt.Sprintf("SELECT COALESCE(SUM(value), 0) FROM %s WHERE key = ?", table)
	return e.sumQuery(ctx, sources, query, key)
}
