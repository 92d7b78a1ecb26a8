// Package scan defines the contract to the columnar storage engines that
// execute selection+expression passes over a sample's rows, and provides
// SQLite and Postgres implementations. Selections are SQL boolean
// predicates, weights are SQL numeric expressions.
package scan

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/analysis-cli/internal/histogram"
	"github.com/sells-group/analysis-cli/internal/variable"
)

// ErrSourceUnavailable reports that no backing source could be opened for a
// request. Callers treat it as "no data", not a hard failure.
var ErrSourceUnavailable = eris.New("scan: source unavailable")

// Friend is an auxiliary column group joined onto the main table by
// event_id. When Sources is empty the friend table lives in the same files
// as the main table; otherwise Sources are matched pairwise with the main
// source list.
type Friend struct {
	Table   string
	Sources []string
}

// Request describes one scan: which sources to read, which table (source
// tag) within them, the row selection, the per-row weight and the variable
// to evaluate.
type Request struct {
	Sources   []string
	SourceTag string
	Friends   []Friend
	Selection string
	Weight    string
	Var       variable.Variable
}

// Result holds per-row values and their weights. Zero selected rows yields
// empty slices, not an error.
type Result struct {
	Values  []float64
	Weights []float64
}

// Summary returns the weighted mean and standard deviation of the values.
// An empty result reports zeros.
func (r *Result) Summary() (mean, stddev float64) {
	if r == nil || len(r.Values) == 0 {
		return 0, 0
	}
	mean, stddev = stat.MeanStdDev(r.Values, r.Weights)
	if math.IsNaN(stddev) {
		stddev = 0
	}
	return mean, stddev
}

// Engine executes scans against a columnar backend.
type Engine interface {
	// Scan returns the per-row variable values and weights.
	Scan(ctx context.Context, req Request) (*Result, error)
	// Histogram returns the variable's distribution filled with per-row
	// weights, unnormalized.
	Histogram(ctx context.Context, req Request) (*histogram.H1, error)
	// SumWeights sums a weight expression over all rows of the tag table.
	SumWeights(ctx context.Context, sources []string, tag, weightExpr string) (float64, error)
	// MetadataSum sums a named metadata value across all sources.
	MetadataSum(ctx context.Context, sources []string, table, key string) (float64, error)
	Close() error
}

// SumOfWeightsCalculator computes a sample's normalization constant.
type SumOfWeightsCalculator interface {
	Calculate(ctx context.Context, e Engine, sources []string, tag string) (float64, error)
}

// QueryCalculator sums a weight expression over every generated row.
type QueryCalculator struct {
	WeightExpr string
}

func (c QueryCalculator) Calculate(ctx context.Context, e Engine, sources []string, tag string) (float64, error) {
	expr := c.WeightExpr
	if expr == "" {
		expr = "1"
	}
	return e.SumWeights(ctx, sources, tag, expr)
}

// MetadataCalculator reads a pre-computed normalization from a metadata
// table, summing the entries of all input sources. This is the analog of a
// bookkeeping histogram written by the production step.
type MetadataCalculator struct {
	Table string
	Key   string
}

// DefaultMetadataCalculator reads the conventional metadata location.
func DefaultMetadataCalculator() MetadataCalculator {
	return MetadataCalculator{Table: "metadata", Key: "sum_of_weights"}
}

func (c MetadataCalculator) Calculate(ctx context.Context, e Engine, sources []string, tag string) (float64, error) {
	table := c.Table
	if table == "" {
		table = "metadata"
	}
	key := c.Key
	if key == "" {
		key = "sum_of_weights"
	}
	return e.MetadataSum(ctx, sources, table, key)
}

// fillHistogram builds the variable's histogram from a scan result.
func fillHistogram(v variable.Variable, title string, res *Result) (*histogram.H1, error) {
	h, err := v.NewHistogram(title)
	if err != nil {
		return nil, err
	}
	for i, x := range res.Values {
		h.Fill(x, res.Weights[i])
	}
	return h, nil
}
