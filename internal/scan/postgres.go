package scan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/analysis-cli/internal/histogram"
)

// Pool is the subset of pgxpool.Pool the engine needs; pgxmock satisfies it
// in tests.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// PostgresEngine scans tables in a Postgres database. Source references are
// schema names (default "public"); the request's source tag names the table
// within each schema.
type PostgresEngine struct {
	pool    Pool
	closeFn func()
}

// NewPostgres connects a Postgres scan engine with a tuned pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresEngine, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresEngine{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool Pool) *PostgresEngine {
	return &PostgresEngine{pool: pool}
}

func (e *PostgresEngine) Close() error {
	if e.closeFn != nil {
		e.closeFn()
	}
	return nil
}

func schemasOf(sources []string) []string {
	if len(sources) == 0 {
		return []string{"public"}
	}
	return sources
}

func buildPostgresQuery(req Request, schema string) string {
	sel := req.Selection
	if sel == "" {
		sel = "TRUE"
	}
	weight := req.Weight
	if weight == "" {
		weight = "1"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT (%s)::float8 AS v, (%s)::float8 AS w FROM %s.%s",
		req.Var.Expr, weight, schema, req.SourceTag)
	for _, f := range req.Friends {
		fmt.Fprintf(&b, " JOIN %s.%s USING (event_id)", schema, f.Table)
	}
	fmt.Fprintf(&b, " WHERE %s", sel)
	return b.String()
}

// Scan implements Engine. Unknown schemas or tables report
// ErrSourceUnavailable; zero selected rows produce an empty result.
func (e *PostgresEngine) Scan(ctx context.Context, req Request) (*Result, error) {
	res := &Result{}
	for _, schema := range schemasOf(req.Sources) {
		rows, err := e.pool.Query(ctx, buildPostgresQuery(req, schema))
		if err != nil {
			if isUndefined(err) {
				zap.L().Warn("scan: relation missing",
					zap.String("schema", schema), zap.String("table", req.SourceTag))
				return nil, ErrSourceUnavailable
			}
			return nil, eris.Wrapf(err, "postgres: scan %s.%s", schema, req.SourceTag)
		}
		for rows.Next() {
			var v, w float64
			if err := rows.Scan(&v, &w); err != nil {
				rows.Close()
				return nil, eris.Wrapf(err, "postgres: scan row in %s", schema)
			}
			res.Values = append(res.Values, v)
			res.Weights = append(res.Weights, w)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: iterate %s", schema)
		}
	}
	return res, nil
}

// Histogram implements Engine.
func (e *PostgresEngine) Histogram(ctx context.Context, req Request) (*histogram.H1, error) {
	res, err := e.Scan(ctx, req)
	if err != nil {
		return nil, err
	}
	return fillHistogram(req.Var, "", res)
}

// SumWeights implements Engine.
func (e *PostgresEngine) SumWeights(ctx context.Context, sources []string, tag, weightExpr string) (float64, error) {
	total := 0.0
	for _, schema := range schemasOf(sources) {
		query := fmt.Sprintf("SELECT COALESCE(SUM((%s)::float8), 0) FROM %s.%s", weightExpr, schema, tag)
		var partial float64
		if err := e.pool.QueryRow(ctx, query).Scan(&partial); err != nil {
			return 0, eris.Wrapf(err, "postgres: sum over %s.%s", schema, tag)
		}
		total += partial
	}
	return total, nil
}

// MetadataSum implements Engine.
func (e *PostgresEngine) MetadataSum(ctx context.Context, sources []string, table, key string) (float64, error) {
	total := 0.0
	for _, schema := range schemasOf(sources) {
		query := fmt.Sprintf("SELECT COALESCE(SUM(value), 0)::float8 FROM %s.%s WHERE key = $1", schema, table)
		var partial float64
		if err := e.pool.QueryRow(ctx, query, key).Scan(&partial); err != nil {
			return 0, eris.Wrapf(err, "postgres: metadata %s.%s", schema, table)
		}
		total += partial
	}
	return total, nil
}

// isUndefined matches undefined_table (42P01) and invalid_schema_name (3F000).
func isUndefined(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "42P01") || strings.Contains(msg, "3F000") ||
		strings.Contains(msg, "does not exist")
}
