// Package sample implements the weighted-dataset abstraction at the heart of
// the analysis: Sample leaves backed by a scan engine, Process composites
// that aggregate them, and the query pipeline threading cuts, systematics
// and normalization through both.
package sample

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/analysis-cli/internal/cut"
	"github.com/sells-group/analysis-cli/internal/histogram"
	"github.com/sells-group/analysis-cli/internal/scan"
	"github.com/sells-group/analysis-cli/internal/systematics"
	"github.com/sells-group/analysis-cli/internal/variable"
)

// Options carries the per-query context. The zero value means: no extra cut,
// default weight expression, luminosity 1, nominal variation, no extra
// systematics.
type Options struct {
	Cut              cut.Cut
	WeightExpr       string
	Luminosity       float64
	Variation        systematics.Variation
	ExtraSystematics *systematics.Set
	// Recreate bypasses the cache lookup but still stores the fresh scan,
	// overwriting any prior entry.
	Recreate bool
	// IncludeOverflow folds the under/overflow slots into the edge bins.
	IncludeOverflow bool
	// ForceBinning coerces cached histograms onto the variable's binning.
	ForceBinning bool
	// IgnoreWeights makes GetYield count raw selected rows.
	IgnoreWeights bool
	// IgnoreSF skips scale factors and luminosity, keeping per-row weights
	// and the sum-of-weights normalization.
	IgnoreSF bool
}

func (o Options) luminosity() float64 {
	if o.Luminosity == 0 {
		return 1
	}
	return o.Luminosity
}

// Yield is an integrated event count with its statistical uncertainty.
type Yield struct {
	Value float64
	Error float64
}

// CutYield pairs a cutflow step with its yield.
type CutYield struct {
	Cut   cut.Cut
	Yield Yield
}

// Queryable is the shared surface of Sample and Process. Composite
// operations fold over child results; they never mutate children.
type Queryable interface {
	Name() string
	Title() string
	IsData() bool
	IsSignal() bool

	CrossSection() float64
	EffectiveCrossSection() float64
	SumOfWeights(ctx context.Context) float64
	Entries(ctx context.Context) int64
	CombinedScaleFactors() float64

	// Leaves returns all reachable Sample leaves.
	Leaves() []*Sample
	// CombinedSystematics unions this node's systematics with all children's.
	CombinedSystematics() *systematics.Set

	AddSystematicsToAll(e *systematics.Entry)
	RemoveSystematicsFromAll(name string)
	AddFriendToAll(f FriendSource)
	SetPreselection(c cut.Cut)
	SetWeightExpression(expr string)

	GetValues(ctx context.Context, v variable.Variable, opt Options) (*scan.Result, error)
	GetYield(ctx context.Context, opt Options) (Yield, error)
	GetHistogram(ctx context.Context, v variable.Variable, opt Options) (*histogram.H1, error)
	GetCutFlowYields(ctx context.Context, cuts []cut.Cut, accumulate bool, opt Options) ([]CutYield, error)
}

// FriendSource joins an auxiliary column group onto a sample's rows. Tables
// are named "<Table>_<tag>"; tags outside SourceTags fall back to the
// sample's default tag, so a friend without systematic variants always
// contributes its nominal columns.
type FriendSource struct {
	Table      string
	Sources    []string
	SourceTags []string
}

func (f FriendSource) resolve(tag, defaultTag string) scan.Friend {
	use := defaultTag
	for _, t := range f.SourceTags {
		if t == tag {
			use = tag
			break
		}
	}
	return scan.Friend{Table: f.Table + "_" + use, Sources: append([]string(nil), f.Sources...)}
}

func combineWeights(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return "(" + a + ") * (" + b + ")"
}

// yieldFromHistogram reduces a single-bin proxy histogram to a yield. With
// raw set, the fill count stands in for the weighted integral and the
// uncertainty follows Poisson counting.
func yieldFromHistogram(h *histogram.H1, raw bool) Yield {
	if raw {
		n := float64(h.Entries())
		return Yield{Value: n, Error: math.Sqrt(n)}
	}
	v, e := h.IntegralAndError()
	return Yield{Value: v, Error: e}
}

// CutflowHistogram renders a cutflow as a labeled categorical histogram: one
// bin per cut, content = yield, error = statistical uncertainty, bin label =
// the cut's display string.
func CutflowHistogram(ctx context.Context, q Queryable, cuts []cut.Cut, accumulate bool, opt Options) (*histogram.H1, error) {
	flow, err := q.GetCutFlowYields(ctx, cuts, accumulate, opt)
	if err != nil {
		return nil, err
	}
	h, err := histogram.NewUniform(q.Name()+"_cutflow", q.Title(), len(flow), 0, float64(len(flow)))
	if err != nil {
		return nil, eris.Wrap(err, "sample: cutflow histogram")
	}
	for i, step := range flow {
		h.SetBin(i, step.Yield.Value, step.Yield.Error)
		h.SetBinLabel(i, step.Cut.String())
	}
	return h, nil
}

// cutFlowYields runs the shared cutflow loop for both leaves and composites.
// With accumulate set, each step ANDs onto the previous selection.
func cutFlowYields(ctx context.Context, q Queryable, cuts []cut.Cut, accumulate bool, opt Options) ([]CutYield, error) {
	out := make([]CutYield, 0, len(cuts))
	running := opt.Cut
	for _, c := range cuts {
		step := opt
		if accumulate {
			running = running.And(c)
			step.Cut = running
		} else {
			step.Cut = opt.Cut.And(c)
		}
		y, err := q.GetYield(ctx, step)
		if err != nil {
			return nil, eris.Wrapf(err, "sample: cutflow step %s", c.Expr)
		}
		out = append(out, CutYield{Cut: c, Yield: y})
	}
	return out, nil
}
