package sample

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/analysis-cli/internal/cut"
	"github.com/sells-group/analysis-cli/internal/histogram"
	"github.com/sells-group/analysis-cli/internal/scan"
	"github.com/sells-group/analysis-cli/internal/systematics"
	"github.com/sells-group/analysis-cli/internal/variable"
)

// Process is a named group of samples and nested processes exposing the same
// query surface as a leaf. Queries fan out to the children and merge the
// results; the process applies its own scale factors once on top, never
// reaching into child state.
type Process struct {
	name  string
	title string

	children     []Queryable
	scaleFactors map[string]float64
	isSignal     bool
	color        int
}

// NewProcess creates an empty process.
func NewProcess(name string) *Process {
	return &Process{
		name:         name,
		title:        name,
		scaleFactors: map[string]float64{"kFactor": 1},
	}
}

func (p *Process) Name() string       { return p.name }
func (p *Process) Title() string      { return p.title }
func (p *Process) SetTitle(t string)  { p.title = t }
func (p *Process) IsSignal() bool     { return p.isSignal }
func (p *Process) SetSignal(v bool)   { p.isSignal = v }
func (p *Process) Color() int         { return p.color }
func (p *Process) SetColor(c int)     { p.color = c }

// Children returns a copy of the child list in insertion order.
func (p *Process) Children() []Queryable { return append([]Queryable(nil), p.children...) }

// Copy clones the process under a new name. The child list and scale factor
// map are copied; the children themselves are shared.
func (p *Process) Copy(name, title string) *Process {
	dup := &Process{
		name:         name,
		title:        title,
		color:        p.color,
		isSignal:     p.isSignal,
		children:     append([]Queryable(nil), p.children...),
		scaleFactors: make(map[string]float64, len(p.scaleFactors)),
	}
	for k, v := range p.scaleFactors {
		dup.scaleFactors[k] = v
	}
	return dup
}

// Add appends a child. Children are queried in insertion order.
func (p *Process) Add(children ...Queryable) {
	p.children = append(p.children, children...)
}

// IsData reports whether every child is real data. Mixing data and
// simulation under one process is unusual and logged.
func (p *Process) IsData() bool {
	if len(p.children) == 0 {
		return false
	}
	data := p.children[0].IsData()
	for _, c := range p.children[1:] {
		if c.IsData() != data {
			zap.L().Warn("process: mixed data and simulation children", zap.String("process", p.name))
			break
		}
	}
	return data
}

// SetKFactor updates the process-level correction factor.
func (p *Process) SetKFactor(v float64) { p.scaleFactors["kFactor"] = v }

// KFactor returns the process-level correction factor.
func (p *Process) KFactor() float64 { return p.scaleFactors["kFactor"] }

// SetScaleFactor sets an arbitrary named factor applied once on merged
// results.
func (p *Process) SetScaleFactor(name string, v float64) { p.scaleFactors[name] = v }

// SetCrossSection is meaningless on a composite: the cross section lives on
// the leaves. Logged and ignored.
func (p *Process) SetCrossSection(float64) {
	zap.L().Warn("process: cross section must be set on leaf samples", zap.String("process", p.name))
}

// SetDSID on a composite is a programming error: dataset IDs identify
// individual productions, never groups.
func (p *Process) SetDSID(int, XSecDB) {
	panic("process: SetDSID called on composite " + p.name)
}

// CombinedScaleFactors returns the product of the process-level factors.
func (p *Process) CombinedScaleFactors() float64 {
	product := 1.0
	for _, v := range p.scaleFactors {
		product *= v
	}
	return product
}

// CrossSection sums the children.
func (p *Process) CrossSection() float64 {
	var total float64
	for _, c := range p.children {
		total += c.CrossSection()
	}
	return total
}

// EffectiveCrossSection sums the children and applies the process factors.
func (p *Process) EffectiveCrossSection() float64 {
	var total float64
	for _, c := range p.children {
		total += c.EffectiveCrossSection()
	}
	return total * p.CombinedScaleFactors()
}

// SumOfWeights sums the children.
func (p *Process) SumOfWeights(ctx context.Context) float64 {
	var total float64
	for _, c := range p.children {
		total += c.SumOfWeights(ctx)
	}
	return total
}

// Entries sums the children.
func (p *Process) Entries(ctx context.Context) int64 {
	var total int64
	for _, c := range p.children {
		total += c.Entries(ctx)
	}
	return total
}

// Leaves collects all reachable leaves, depth-first in insertion order.
func (p *Process) Leaves() []*Sample {
	var out []*Sample
	for _, c := range p.children {
		out = append(out, c.Leaves()...)
	}
	return out
}

// CombinedSystematics unions the systematics of all children.
func (p *Process) CombinedSystematics() *systematics.Set {
	out := systematics.NewSet()
	for _, c := range p.children {
		out = out.Union(c.CombinedSystematics())
	}
	return out
}

// AddSystematicsToAll fans out to every child.
func (p *Process) AddSystematicsToAll(e *systematics.Entry) {
	for _, c := range p.children {
		c.AddSystematicsToAll(e)
	}
}

// RemoveSystematicsFromAll fans out to every child.
func (p *Process) RemoveSystematicsFromAll(name string) {
	for _, c := range p.children {
		c.RemoveSystematicsFromAll(name)
	}
}

// AddFriendToAll fans out to every child.
func (p *Process) AddFriendToAll(f FriendSource) {
	for _, c := range p.children {
		c.AddFriendToAll(f)
	}
}

// SetPreselection fans out to every child.
func (p *Process) SetPreselection(c cut.Cut) {
	for _, child := range p.children {
		child.SetPreselection(c)
	}
}

// SetWeightExpression fans out to every child.
func (p *Process) SetWeightExpression(expr string) {
	for _, c := range p.children {
		c.SetWeightExpression(expr)
	}
}

// GetHistogram merges the child histograms bin-wise and applies the process
// scale factors once. A child with no backing data contributes nothing; all
// children missing yields (nil, nil).
func (p *Process) GetHistogram(ctx context.Context, v variable.Variable, opt Options) (*histogram.H1, error) {
	var merged *histogram.H1
	for _, c := range p.children {
		h, err := c.GetHistogram(ctx, v, opt)
		if err != nil {
			return nil, eris.Wrapf(err, "process: histogram for %s", p.name)
		}
		if h == nil {
			zap.L().Warn("process: child contributed no histogram",
				zap.String("process", p.name), zap.String("child", c.Name()))
			continue
		}
		if merged == nil {
			merged = h
			continue
		}
		if err := merged.Add(h); err != nil {
			return nil, eris.Wrapf(err, "process: merge for %s", p.name)
		}
	}
	if merged == nil {
		return nil, nil
	}
	merged.Scale(p.CombinedScaleFactors())
	merged.SetTitle(p.title)
	return merged, nil
}

// GetYield sums the child yields, combining uncertainties in quadrature, and
// applies the process scale factors.
func (p *Process) GetYield(ctx context.Context, opt Options) (Yield, error) {
	var value, sumSq float64
	for _, c := range p.children {
		y, err := c.GetYield(ctx, opt)
		if err != nil {
			return Yield{}, eris.Wrapf(err, "process: yield for %s", p.name)
		}
		value += y.Value
		sumSq += y.Error * y.Error
	}
	sf := p.CombinedScaleFactors()
	return Yield{Value: value * sf, Error: math.Sqrt(sumSq) * sf}, nil
}

// GetValues concatenates the child rows, scaling weights by the process
// factors.
func (p *Process) GetValues(ctx context.Context, v variable.Variable, opt Options) (*scan.Result, error) {
	out := &scan.Result{}
	sf := p.CombinedScaleFactors()
	for _, c := range p.children {
		res, err := c.GetValues(ctx, v, opt)
		if err != nil {
			return nil, eris.Wrapf(err, "process: values for %s", p.name)
		}
		if res == nil {
			continue
		}
		out.Values = append(out.Values, res.Values...)
		for _, w := range res.Weights {
			out.Weights = append(out.Weights, w*sf)
		}
	}
	return out, nil
}

// GetCutFlowYields evaluates the cut sequence against the merged process.
func (p *Process) GetCutFlowYields(ctx context.Context, cuts []cut.Cut, accumulate bool, opt Options) ([]CutYield, error) {
	return cutFlowYields(ctx, p, cuts, accumulate, opt)
}
