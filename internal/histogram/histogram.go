// Package histogram provides the one-dimensional weighted histogram used as
// the aggregate result of dataset scans. Bin errors track the sum of squared
// weights, matching the statistical model of weighted event counts.
package histogram

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
)

// H1 is a binned distribution with underflow/overflow slots. Internal slices
// are indexed 0 = underflow, 1..n = in-range bins, n+1 = overflow.
type H1 struct {
	name    string
	title   string
	edges   []float64
	sumw    []float64
	sumw2   []float64
	labels  []string
	entries int64
}

// New creates a histogram with explicit bin edges. Edges must be strictly
// increasing and at least two.
func New(name, title string, edges []float64) (*H1, error) {
	if len(edges) < 2 {
		return nil, eris.Errorf("histogram: need at least 2 edges, got %d", len(edges))
	}
	if !sort.Float64sAreSorted(edges) {
		return nil, eris.New("histogram: edges must be increasing")
	}
	n := len(edges) - 1
	return &H1{
		name:  name,
		title: title,
		edges: append([]float64(nil), edges...),
		sumw:  make([]float64, n+2),
		sumw2: make([]float64, n+2),
	}, nil
}

// NewUniform creates a histogram with n equal-width bins over [low, high).
func NewUniform(name, title string, n int, low, high float64) (*H1, error) {
	if n < 1 {
		return nil, eris.Errorf("histogram: need at least 1 bin, got %d", n)
	}
	if high <= low {
		return nil, eris.Errorf("histogram: invalid range [%g, %g)", low, high)
	}
	edges := make([]float64, n+1)
	width := (high - low) / float64(n)
	for i := range edges {
		edges[i] = low + float64(i)*width
	}
	edges[n] = high
	return New(name, title, edges)
}

func (h *H1) Name() string      { return h.name }
func (h *H1) Title() string     { return h.title }
func (h *H1) SetTitle(t string) { h.title = t }
func (h *H1) NBins() int        { return len(h.edges) - 1 }
func (h *H1) Entries() int64    { return h.entries }

// Edges returns a copy of the bin edges.
func (h *H1) Edges() []float64 {
	return append([]float64(nil), h.edges...)
}

// findBin maps a value to its slice index (0 underflow, NBins+1 overflow).
func (h *H1) findBin(x float64) int {
	if x < h.edges[0] {
		return 0
	}
	if x >= h.edges[len(h.edges)-1] {
		return h.NBins() + 1
	}
	return sort.Search(len(h.edges), func(i int) bool { return h.edges[i] > x })
}

// Fill adds one entry with the given weight.
func (h *H1) Fill(x, w float64) {
	i := h.findBin(x)
	h.sumw[i] += w
	h.sumw2[i] += w * w
	h.entries++
}

// BinContent returns the weighted content of in-range bin i (0-based).
func (h *H1) BinContent(i int) float64 { return h.sumw[i+1] }

// BinError returns the statistical uncertainty of in-range bin i.
func (h *H1) BinError(i int) float64 { return math.Sqrt(h.sumw2[i+1]) }

// SetBin overrides the content and error of in-range bin i.
func (h *H1) SetBin(i int, content, err float64) {
	h.sumw[i+1] = content
	h.sumw2[i+1] = err * err
}

// SetBinLabel attaches a text label to in-range bin i, used for categorical
// axes such as cutflows.
func (h *H1) SetBinLabel(i int, label string) {
	if h.labels == nil {
		h.labels = make([]string, h.NBins())
	}
	h.labels[i] = label
}

// BinLabel returns the label of in-range bin i, empty if none was set.
func (h *H1) BinLabel(i int) string {
	if h.labels == nil {
		return ""
	}
	return h.labels[i]
}

// Underflow returns the content of the underflow slot.
func (h *H1) Underflow() float64 { return h.sumw[0] }

// Overflow returns the content of the overflow slot.
func (h *H1) Overflow() float64 { return h.sumw[len(h.sumw)-1] }

// BinCenter returns the center of in-range bin i.
func (h *H1) BinCenter(i int) float64 {
	return 0.5 * (h.edges[i] + h.edges[i+1])
}

// Integral sums the in-range bin contents.
func (h *H1) Integral() float64 {
	return floats.Sum(h.sumw[1 : len(h.sumw)-1])
}

// IntegralAndError sums all bins including underflow and overflow and
// returns the summed content with its uncertainty.
func (h *H1) IntegralAndError() (float64, float64) {
	return floats.Sum(h.sumw), math.Sqrt(floats.Sum(h.sumw2))
}

// Scale multiplies every bin content by f (errors scale linearly).
func (h *H1) Scale(f float64) {
	floats.Scale(f, h.sumw)
	floats.Scale(f*f, h.sumw2)
}

// Add accumulates another histogram bin-wise. Binnings must be identical.
func (h *H1) Add(other *H1) error {
	if other == nil {
		return nil
	}
	if len(h.edges) != len(other.edges) || !floats.EqualApprox(h.edges, other.edges, 1e-9) {
		return eris.Errorf("histogram: binning mismatch adding %q to %q", other.name, h.name)
	}
	floats.Add(h.sumw, other.sumw)
	floats.Add(h.sumw2, other.sumw2)
	h.entries += other.entries
	return nil
}

// FoldOverflow merges the underflow and overflow slots into the first and
// last in-range bins.
func (h *H1) FoldOverflow() {
	n := h.NBins()
	h.sumw[1] += h.sumw[0]
	h.sumw2[1] += h.sumw2[0]
	h.sumw[0], h.sumw2[0] = 0, 0
	h.sumw[n] += h.sumw[n+1]
	h.sumw2[n] += h.sumw2[n+1]
	h.sumw[n+1], h.sumw2[n+1] = 0, 0
}

// CoerceBinning maps the histogram onto the target edges. Source bins whose
// centers fall outside the target range land in its under/overflow. Source
// bin contents are assigned whole to the target bin containing their center;
// no splitting is attempted, so the target binning should be compatible
// (equal or coarser) for exact results.
func (h *H1) CoerceBinning(edges []float64) (*H1, error) {
	out, err := New(h.name, h.title, edges)
	if err != nil {
		return nil, err
	}
	out.sumw[0], out.sumw2[0] = h.sumw[0], h.sumw2[0]
	last := len(out.sumw) - 1
	out.sumw[last] += h.sumw[len(h.sumw)-1]
	out.sumw2[last] += h.sumw2[len(h.sumw2)-1]
	for i := 0; i < h.NBins(); i++ {
		j := out.findBin(h.BinCenter(i))
		out.sumw[j] += h.sumw[i+1]
		out.sumw2[j] += h.sumw2[i+1]
	}
	out.entries = h.entries
	return out, nil
}

// Clone returns a deep copy.
func (h *H1) Clone() *H1 {
	dup := &H1{
		name:    h.name,
		title:   h.title,
		edges:   append([]float64(nil), h.edges...),
		sumw:    append([]float64(nil), h.sumw...),
		sumw2:   append([]float64(nil), h.sumw2...),
		entries: h.entries,
	}
	if h.labels != nil {
		dup.labels = append([]string(nil), h.labels...)
	}
	return dup
}

type h1JSON struct {
	Name    string    `json:"name"`
	Title   string    `json:"title"`
	Edges   []float64 `json:"edges"`
	SumW    []float64 `json:"sumw"`
	SumW2   []float64 `json:"sumw2"`
	Labels  []string  `json:"labels,omitempty"`
	Entries int64     `json:"entries"`
}

// MarshalJSON implements json.Marshaler for cache persistence.
func (h *H1) MarshalJSON() ([]byte, error) {
	return json.Marshal(h1JSON{
		Name:    h.name,
		Title:   h.title,
		Edges:   h.edges,
		SumW:    h.sumw,
		SumW2:   h.sumw2,
		Labels:  h.labels,
		Entries: h.entries,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *H1) UnmarshalJSON(data []byte) error {
	var raw h1JSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "histogram: unmarshal")
	}
	if len(raw.Edges) < 2 || len(raw.SumW) != len(raw.Edges)+1 || len(raw.SumW2) != len(raw.SumW) {
		return eris.New("histogram: malformed serialized histogram")
	}
	h.name = raw.Name
	h.title = raw.Title
	h.edges = raw.Edges
	h.sumw = raw.SumW
	h.sumw2 = raw.SumW2
	h.labels = raw.Labels
	h.entries = raw.Entries
	return nil
}
