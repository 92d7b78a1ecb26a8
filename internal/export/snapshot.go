// Package export writes query results to external formats: flat SQLite
// snapshots of selected rows and cutflow workbooks.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/analysis-cli/internal/cut"
	"github.com/sells-group/analysis-cli/internal/sample"
	"github.com/sells-group/analysis-cli/internal/variable"
)

// Snapshot writes the selected rows of every leaf under q into a new SQLite
// file: one table per leaf with a column per variable plus the scaled row
// weight, and a metadata table carrying each leaf's consolidated
// sum of weights (inputs summed across files). Leaves with no backing data
// are skipped. Duplicate leaf names get a unique suffix so no table is
// silently overwritten.
func Snapshot(ctx context.Context, q sample.Queryable, vars []variable.Variable, selection cut.Cut, outPath string) error {
	if len(vars) == 0 {
		return eris.New("export: no variables to snapshot")
	}
	db, err := sql.Open("sqlite", outPath)
	if err != nil {
		return eris.Wrapf(err, "export: open %s", outPath)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS metadata (sample TEXT, key TEXT, value REAL)`); err != nil {
		return eris.Wrap(err, "export: create metadata table")
	}

	used := map[string]bool{}
	for _, leaf := range q.Leaves() {
		table := tableName(leaf.Name(), used)
		if err := snapshotLeaf(ctx, db, leaf, table, vars, selection); err != nil {
			return err
		}
	}
	return nil
}

func snapshotLeaf(ctx context.Context, db *sql.DB, leaf *sample.Sample, table string, vars []variable.Variable, selection cut.Cut) error {
	opt := sample.Options{Cut: selection}

	// One scan per variable; identical selections keep the row order stable,
	// so the value arrays zip into columns.
	columns := make([][]float64, len(vars))
	var weights []float64
	for i, v := range vars {
		res, err := leaf.GetValues(ctx, v, opt)
		if err != nil {
			return eris.Wrapf(err, "export: values for %s", leaf.Name())
		}
		if res == nil {
			zap.L().Warn("export: leaf has no data, skipping", zap.String("sample", leaf.Name()))
			return nil
		}
		columns[i] = res.Values
		if i == 0 {
			weights = res.Weights
		} else if len(res.Values) != len(weights) {
			return eris.Errorf("export: row count mismatch for %s in %s", v.Name, leaf.Name())
		}
	}

	cols := make([]string, len(vars))
	marks := make([]string, len(vars)+1)
	for i, v := range vars {
		cols[i] = fmt.Sprintf("%s REAL", v.Name)
		marks[i] = "?"
	}
	marks[len(vars)] = "?"
	if _, err := db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE %s (%s, weight REAL)`, table, strings.Join(cols, ", "))); err != nil {
		return eris.Wrapf(err, "export: create table %s", table)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "export: begin")
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s VALUES (%s)`, table, strings.Join(marks, ", ")))
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return eris.Wrap(err, "export: prepare")
	}
	args := make([]any, len(vars)+1)
	for row := range weights {
		for i := range vars {
			args[i] = columns[i][row]
		}
		args[len(vars)] = weights[row]
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			stmt.Close()       //nolint:errcheck
			tx.Rollback()      //nolint:errcheck
			return eris.Wrapf(err, "export: insert into %s", table)
		}
	}
	stmt.Close() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO metadata (sample, key, value) VALUES (?, 'sum_of_weights', ?)`,
		table, leaf.SumOfWeights(ctx)); err != nil {
		tx.Rollback() //nolint:errcheck
		return eris.Wrap(err, "export: metadata")
	}
	return eris.Wrap(tx.Commit(), "export: commit")
}

// tableName sanitizes a leaf name into an SQL identifier, disambiguating
// duplicates with a random suffix.
func tableName(name string, used map[string]bool) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	table := b.String()
	if table == "" || (table[0] >= '0' && table[0] <= '9') {
		table = "t_" + table
	}
	if used[table] {
		table = table + "_" + uuid.NewString()[:8]
	}
	used[table] = true
	return table
}
