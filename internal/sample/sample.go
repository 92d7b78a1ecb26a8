package sample

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/analysis-cli/internal/cache"
	"github.com/sells-group/analysis-cli/internal/cut"
	"github.com/sells-group/analysis-cli/internal/histogram"
	"github.com/sells-group/analysis-cli/internal/scan"
	"github.com/sells-group/analysis-cli/internal/systematics"
	"github.com/sells-group/analysis-cli/internal/variable"
)

// Sample is one physical weighted dataset: a group of input sources forming
// one logical table, its default weight expression, normalization constants
// and attached systematics. Real-data samples skip luminosity and
// sum-of-weights scaling entirely.
type Sample struct {
	name  string
	title string

	Inputs           []string
	DefaultSourceTag string

	weightExpr   string
	crossSection float64
	kFactor      float64
	isData       bool
	isSignal     bool
	isBSMSignal  bool
	dsid         int
	color        int

	scaleFactors map[string]float64
	systs        *systematics.Set
	preselection cut.Cut
	injected     []cut.Cut
	excluded     []cut.Cut
	aliases      map[string]variable.Variable
	friends      []FriendSource

	sumw    float64
	sumwSet bool
	calc    scan.SumOfWeightsCalculator

	engine scan.Engine
	store  cache.Cache
}

// New creates a Sample with defaults: cross section and k-factor 1, nominal
// source tag "nominal", metadata-based sum-of-weights calculator.
func New(name string, engine scan.Engine) *Sample {
	s := &Sample{
		name:             name,
		title:            name,
		DefaultSourceTag: "nominal",
		crossSection:     1,
		kFactor:          1,
		scaleFactors:     make(map[string]float64),
		systs:            systematics.NewSet(),
		aliases:          make(map[string]variable.Variable),
		calc:             scan.DefaultMetadataCalculator(),
		engine:           engine,
	}
	s.recomputeScaleFactors()
	return s
}

func (s *Sample) Name() string   { return s.name }
func (s *Sample) Title() string  { return s.title }
func (s *Sample) IsData() bool   { return s.isData }
func (s *Sample) IsSignal() bool { return s.isSignal }
func (s *Sample) DSID() int      { return s.dsid }
func (s *Sample) Color() int     { return s.color }
func (s *Sample) SetColor(c int) { s.color = c }

func (s *Sample) SetTitle(t string)            { s.title = t }
func (s *Sample) SetData(v bool)               { s.isData = v }
func (s *Sample) SetSignal(v bool)             { s.isSignal = v }
func (s *Sample) SetBSMSignal(v bool)          { s.isBSMSignal = v }
func (s *Sample) SetWeightExpression(e string) { s.weightExpr = e }
func (s *Sample) WeightExpression() string     { return s.weightExpr }
func (s *Sample) SetCache(c cache.Cache)       { s.store = c }
func (s *Sample) Engine() scan.Engine          { return s.engine }

// SetCalculator swaps the sum-of-weights strategy.
func (s *Sample) SetCalculator(c scan.SumOfWeightsCalculator) { s.calc = c }

func (s *Sample) CrossSection() float64 { return s.crossSection }
func (s *Sample) KFactor() float64      { return s.kFactor }

// SetCrossSection updates the cross section (in pb) and the derived scale
// factor map through the one explicit recompute path.
func (s *Sample) SetCrossSection(v float64) {
	s.crossSection = v
	s.recomputeScaleFactors()
}

// SetKFactor updates the correction factor and the derived scale factor map.
func (s *Sample) SetKFactor(v float64) {
	s.kFactor = v
	s.recomputeScaleFactors()
}

// SetScaleFactor sets an arbitrary named multiplicative factor. The
// crossSection and kFactor entries are derived and cannot be set directly.
func (s *Sample) SetScaleFactor(name string, v float64) {
	if name == "crossSection" || name == "kFactor" {
		zap.L().Warn("sample: scale factor is derived, use the dedicated setter",
			zap.String("sample", s.name), zap.String("factor", name))
		return
	}
	s.scaleFactors[name] = v
}

// recomputeScaleFactors syncs the derived entries of the scale factor map
// after a normalization-affecting field change.
func (s *Sample) recomputeScaleFactors() {
	s.scaleFactors["crossSection"] = s.crossSection
	s.scaleFactors["kFactor"] = s.kFactor
}

// CombinedScaleFactors returns the product of all named scale factors.
func (s *Sample) CombinedScaleFactors() float64 {
	product := 1.0
	for _, v := range s.scaleFactors {
		product *= v
	}
	return product
}

// ScaleFactors returns a copy of the named factor map.
func (s *Sample) ScaleFactors() map[string]float64 {
	out := make(map[string]float64, len(s.scaleFactors))
	for k, v := range s.scaleFactors {
		out[k] = v
	}
	return out
}

// EffectiveCrossSection includes all scale factors and the nominal
// systematics scale factor.
func (s *Sample) EffectiveCrossSection() float64 {
	return s.CombinedScaleFactors() * s.systs.TotalScaleFactor(systematics.Nominal(s.DefaultSourceTag), cut.Cut{})
}

// XSecEntry is one cross-section database record.
type XSecEntry struct {
	CrossSection     float64
	KFactor          float64
	BranchingRatio   float64
	FilterEfficiency float64
}

// XSecDB maps dataset IDs to production cross sections.
type XSecDB map[int]XSecEntry

// SetDSID records the dataset ID and pulls normalization constants from the
// database. An unknown DSID is a recoverable anomaly: logged, fields left
// untouched.
func (s *Sample) SetDSID(dsid int, db XSecDB) {
	s.dsid = dsid
	entry, ok := db[dsid]
	if !ok {
		zap.L().Warn("sample: no cross section for DSID",
			zap.String("sample", s.name), zap.Int("dsid", dsid))
		return
	}
	s.crossSection = entry.CrossSection
	s.kFactor = entry.KFactor
	if entry.BranchingRatio != 0 {
		s.scaleFactors["branchingRatio"] = entry.BranchingRatio
	}
	if entry.FilterEfficiency != 0 {
		s.scaleFactors["filterEfficiency"] = entry.FilterEfficiency
	}
	s.recomputeScaleFactors()
}

// Systematics returns the attached systematics set.
func (s *Sample) Systematics() *systematics.Set { return s.systs }

// CombinedSystematics implements Queryable; for a leaf it is the own set.
func (s *Sample) CombinedSystematics() *systematics.Set { return s.systs }

// AddSystematicsToAll implements Queryable; a leaf adds to its own set.
func (s *Sample) AddSystematicsToAll(e *systematics.Entry) { s.systs.Add(e) }

// RemoveSystematicsFromAll implements Queryable.
func (s *Sample) RemoveSystematicsFromAll(name string) { s.systs.Discard(name) }

// AddFriend joins an auxiliary column group onto this sample.
func (s *Sample) AddFriend(f FriendSource) { s.friends = append(s.friends, f) }

// AddFriendToAll implements Queryable.
func (s *Sample) AddFriendToAll(f FriendSource) { s.AddFriend(f) }

// SetPreselection replaces the always-applied selection. An empty cut
// resets it.
func (s *Sample) SetPreselection(c cut.Cut) { s.preselection = c }

// Preselection returns the always-applied selection.
func (s *Sample) Preselection() cut.Cut { return s.preselection }

// InjectCut adds a cut applied to every query on this sample.
func (s *Sample) InjectCut(c cut.Cut) { s.injected = append(s.injected, c) }

// ExcludeCut removes a matching conjunct from every query on this sample.
func (s *Sample) ExcludeCut(c cut.Cut) { s.excluded = append(s.excluded, c) }

// AliasVariable substitutes a variable on queries against this sample.
func (s *Sample) AliasVariable(name string, v variable.Variable) { s.aliases[name] = v }

// SetSumOfWeights presets the normalization constant, skipping calculation.
func (s *Sample) SetSumOfWeights(v float64) {
	s.sumw = v
	s.sumwSet = true
}

// InvalidateSumOfWeights forces recomputation on next use.
func (s *Sample) InvalidateSumOfWeights() { s.sumwSet = false }

// SumOfWeights lazily computes and memoizes the normalization constant. A
// failed calculation is a recoverable anomaly reported as zero.
func (s *Sample) SumOfWeights(ctx context.Context) float64 {
	if s.sumwSet {
		return s.sumw
	}
	v, err := s.calc.Calculate(ctx, s.engine, s.Inputs, s.DefaultSourceTag)
	if err != nil {
		zap.L().Warn("sample: sum of weights unavailable",
			zap.String("sample", s.name), zap.Error(err))
		return 0
	}
	s.sumw = v
	s.sumwSet = true
	return v
}

// Entries counts the rows of the nominal source.
func (s *Sample) Entries(ctx context.Context) int64 {
	n, err := s.engine.SumWeights(ctx, s.Inputs, s.DefaultSourceTag, "1")
	if err != nil {
		zap.L().Warn("sample: entries unavailable", zap.String("sample", s.name), zap.Error(err))
		return 0
	}
	return int64(n)
}

// Leaves implements Queryable.
func (s *Sample) Leaves() []*Sample { return []*Sample{s} }

// Copy clones the sample under a new name with deep copies of all mutable
// collections. The clone shares the engine and cache handles.
func (s *Sample) Copy(name, title string) *Sample {
	dup := *s
	dup.name = name
	dup.title = title
	dup.Inputs = append([]string(nil), s.Inputs...)
	dup.injected = append([]cut.Cut(nil), s.injected...)
	dup.excluded = append([]cut.Cut(nil), s.excluded...)
	dup.friends = append([]FriendSource(nil), s.friends...)
	dup.scaleFactors = make(map[string]float64, len(s.scaleFactors))
	for k, v := range s.scaleFactors {
		dup.scaleFactors[k] = v
	}
	dup.aliases = make(map[string]variable.Variable, len(s.aliases))
	for k, v := range s.aliases {
		dup.aliases[k] = v
	}
	dup.systs = systematics.NewSet(s.systs.Entries()...)
	return &dup
}

// ResolveCut applies preselection, the user cut and injected cuts, then
// removes excluded conjuncts. Exclusion runs last since it matches by
// subexpression against the combined cut.
func (s *Sample) ResolveCut(c cut.Cut) cut.Cut {
	resolved := s.preselection.And(c)
	for _, ic := range s.injected {
		resolved = resolved.And(ic)
	}
	for _, ec := range s.excluded {
		resolved = resolved.Without(ec)
	}
	return resolved
}

// resolveVariable applies the per-sample alias substitution.
func (s *Sample) resolveVariable(v variable.Variable) variable.Variable {
	if alias, ok := s.aliases[v.Name]; ok {
		return alias
	}
	return v
}

func (s *Sample) resolveFriends(tag string) []scan.Friend {
	if len(s.friends) == 0 {
		return nil
	}
	out := make([]scan.Friend, len(s.friends))
	for i, f := range s.friends {
		out[i] = f.resolve(tag, s.DefaultSourceTag)
	}
	return out
}

// resolveContext normalizes the query context: effective cut, variable,
// systematics set and (possibly demoted) variation.
func (s *Sample) resolveContext(v variable.Variable, opt Options) (cut.Cut, variable.Variable, *systematics.Set, systematics.Variation) {
	c := s.ResolveCut(opt.Cut)
	v = s.resolveVariable(v)
	systs := s.systs.Union(opt.ExtraSystematics)
	variation := opt.Variation
	if variation.Name == "" {
		variation = systematics.Nominal(s.DefaultSourceTag)
	}
	variation = systs.Demote(variation, s.DefaultSourceTag)
	return c, v, systs, variation
}

// GetValues returns per-row values and fully scaled weights. A missing
// backing source yields (nil, nil): no data, not a hard error.
func (s *Sample) GetValues(ctx context.Context, v variable.Variable, opt Options) (*scan.Result, error) {
	c, v, systs, variation := s.resolveContext(v, opt)

	weightExpr := opt.WeightExpr
	if weightExpr == "" {
		weightExpr = s.weightExpr
	}
	weightExpr = combineWeights(weightExpr, systs.TotalWeight(variation, c))

	res, err := s.engine.Scan(ctx, scan.Request{
		Sources:   s.Inputs,
		SourceTag: variation.SourceTag,
		Friends:   s.resolveFriends(variation.SourceTag),
		Selection: c.Expr,
		Weight:    weightExpr,
		Var:       v,
	})
	if err != nil {
		if eris.Is(err, scan.ErrSourceUnavailable) {
			zap.L().Warn("sample: source unavailable", zap.String("sample", s.name), zap.Error(err))
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sample: values for %s", s.name)
	}

	sf := s.CombinedScaleFactors() * systs.TotalScaleFactor(variation, c)
	if !s.isData {
		sf *= opt.luminosity()
	}
	for i := range res.Weights {
		res.Weights[i] *= sf
	}
	return res, nil
}

// GetHistogram is the central query. It resolves the context, consults the
// cache keyed on the storage variation (shape identity only), scans on a
// miss, normalizes by the sum of weights, then applies post-cache binning
// adjustments, scale factors, luminosity and blinding. A missing backing
// source returns (nil, nil).
func (s *Sample) GetHistogram(ctx context.Context, v variable.Variable, opt Options) (*histogram.H1, error) {
	c, v, systs, variation := s.resolveContext(v, opt)

	// Weight-only variations collapse to nominal for cache identity: their
	// effect is re-applied after retrieval.
	storage := variation
	if !variation.Shape {
		storage = systematics.Nominal(s.DefaultSourceTag)
	}
	key := cache.Key(s.name, storage.Name, v.Key(), c.Expr)

	var h *histogram.H1
	if s.store != nil && !opt.Recreate {
		if cached, ok := s.store.Get(key); ok {
			zap.L().Debug("sample: cache hit",
				zap.String("sample", s.name), zap.String("variable", v.Name))
			h = cached
		}
	}

	if h == nil {
		weightExpr := opt.WeightExpr
		if weightExpr == "" {
			weightExpr = s.weightExpr
		}
		weightExpr = combineWeights(weightExpr, systs.TotalWeight(variation, c))

		scanned, err := s.engine.Histogram(ctx, scan.Request{
			Sources:   s.Inputs,
			SourceTag: variation.SourceTag,
			Friends:   s.resolveFriends(variation.SourceTag),
			Selection: c.Expr,
			Weight:    weightExpr,
			Var:       v,
		})
		if err != nil {
			if eris.Is(err, scan.ErrSourceUnavailable) {
				zap.L().Warn("sample: source unavailable",
					zap.String("sample", s.name), zap.Error(err))
				return nil, nil
			}
			return nil, eris.Wrapf(err, "sample: histogram for %s", s.name)
		}
		if !s.isData {
			if sumw := s.SumOfWeights(ctx); sumw != 0 {
				scanned.Scale(1 / sumw)
			}
		}
		if s.store != nil {
			if err := s.store.Put(key, scanned); err != nil {
				zap.L().Warn("sample: cache store failed",
					zap.String("sample", s.name), zap.Error(err))
			}
		}
		h = scanned
	}

	if opt.ForceBinning {
		coerced, err := h.CoerceBinning(v.Binning.EdgeSlice())
		if err != nil {
			return nil, eris.Wrapf(err, "sample: coerce binning for %s", s.name)
		}
		h = coerced
	}
	if opt.IncludeOverflow {
		h.FoldOverflow()
	}

	if !opt.IgnoreSF {
		sf := s.CombinedScaleFactors() * systs.TotalScaleFactor(variation, c)
		if !s.isData {
			sf *= opt.luminosity()
		}
		h.Scale(sf)
	}
	h.SetTitle(s.title)
	if s.isData {
		v.ApplyBlinding(h)
	}
	return h, nil
}

// GetYield integrates a single-bin proxy histogram, reusing the histogram
// pipeline so yields and integrals always agree. With IgnoreWeights set the
// raw selected row count is returned instead.
func (s *Sample) GetYield(ctx context.Context, opt Options) (Yield, error) {
	h, err := s.GetHistogram(ctx, variable.Yield(), opt)
	if err != nil {
		return Yield{}, err
	}
	if h == nil {
		return Yield{}, nil
	}
	return yieldFromHistogram(h, opt.IgnoreWeights), nil
}

// GetCutFlowYields evaluates a sequence of cuts, either AND-accumulated or
// independently, and returns the per-cut yields in order.
func (s *Sample) GetCutFlowYields(ctx context.Context, cuts []cut.Cut, accumulate bool, opt Options) ([]CutYield, error) {
	return cutFlowYields(ctx, s, cuts, accumulate, opt)
}
