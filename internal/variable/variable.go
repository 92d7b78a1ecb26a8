// Package variable describes plottable quantities: the column expression to
// scan, the binning of the resulting histogram and any blinded regions.
package variable

import (
	"fmt"
	"strings"

	"github.com/sells-group/analysis-cli/internal/cut"
	"github.com/sells-group/analysis-cli/internal/histogram"
)

// Range is a half-open interval [Low, High).
type Range struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// Contains reports whether x falls in the range.
func (r Range) Contains(x float64) bool {
	return x >= r.Low && x < r.High
}

// Binning is either uniform (NBins over [Low, High)) or explicit via Edges.
// Explicit edges take precedence when set.
type Binning struct {
	NBins int       `yaml:"nbins"`
	Low   float64   `yaml:"low"`
	High  float64   `yaml:"high"`
	Edges []float64 `yaml:"edges,omitempty"`
}

// EdgeSlice materializes the bin edges.
func (b Binning) EdgeSlice() []float64 {
	if len(b.Edges) > 0 {
		return append([]float64(nil), b.Edges...)
	}
	edges := make([]float64, b.NBins+1)
	width := (b.High - b.Low) / float64(b.NBins)
	for i := range edges {
		edges[i] = b.Low + float64(i)*width
	}
	edges[b.NBins] = b.High
	return edges
}

func (b Binning) key() string {
	if len(b.Edges) > 0 {
		parts := make([]string, len(b.Edges))
		for i, e := range b.Edges {
			parts[i] = fmt.Sprintf("%g", e)
		}
		return "e:" + strings.Join(parts, ",")
	}
	return fmt.Sprintf("u:%d:%g:%g", b.NBins, b.Low, b.High)
}

// Variable is a scannable quantity with its binning and presentation
// metadata. Blinded lists regions hidden on real data.
type Variable struct {
	Name       string
	Expr       string
	Title      string
	Unit       string
	Binning    Binning
	Blinded    []Range
	DefaultCut cut.Cut
}

// New creates a uniformly binned variable whose expression equals its name.
func New(name string, nbins int, low, high float64) Variable {
	return Variable{
		Name:    name,
		Expr:    name,
		Binning: Binning{NBins: nbins, Low: low, High: high},
	}
}

// Yield is the single-bin integral proxy. Scanning it counts every selected
// row once, so yields and histogram integrals always agree.
func Yield() Variable {
	return Variable{
		Name:    "yield",
		Expr:    "1",
		Title:   "Yield",
		Binning: Binning{NBins: 1, Low: 0, High: 2},
	}
}

// Key is the canonical descriptor used in cache fingerprints. It covers the
// expression and binning but not presentation metadata.
func (v Variable) Key() string {
	return v.Name + "|" + v.Expr + "|" + v.Binning.key()
}

// NewHistogram creates an empty histogram with this variable's binning.
func (v Variable) NewHistogram(title string) (*histogram.H1, error) {
	return histogram.New(v.Name, title, v.Binning.EdgeSlice())
}

// ApplyBlinding zeroes the bins whose centers fall in a blinded region.
// Callers restrict this to real-data histograms.
func (v Variable) ApplyBlinding(h *histogram.H1) {
	if h == nil || len(v.Blinded) == 0 {
		return
	}
	for i := 0; i < h.NBins(); i++ {
		center := h.BinCenter(i)
		for _, r := range v.Blinded {
			if r.Contains(center) {
				h.SetBin(i, 0, 0)
				break
			}
		}
	}
}

// AxisLabel renders the axis title with its unit.
func (v Variable) AxisLabel() string {
	title := v.Title
	if title == "" {
		title = v.Name
	}
	if v.Unit != "" {
		return title + " [" + v.Unit + "]"
	}
	return title
}
