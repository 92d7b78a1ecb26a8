package variable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinning_EdgeSlice(t *testing.T) {
	uniform := Binning{NBins: 4, Low: 0, High: 8}
	assert.Equal(t, []float64{0, 2, 4, 6, 8}, uniform.EdgeSlice())

	explicit := Binning{Edges: []float64{0, 1, 5, 100}}
	assert.Equal(t, []float64{0, 1, 5, 100}, explicit.EdgeSlice())
}

func TestVariable_Key(t *testing.T) {
	a := New("met", 10, 0, 500)
	b := New("met", 20, 0, 500)
	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, a.Key(), New("met", 10, 0, 500).Key())

	// Explicit edges distinguish from uniform.
	c := Variable{Name: "met", Expr: "met", Binning: Binning{Edges: []float64{0, 250, 500}}}
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestYield_SingleBin(t *testing.T) {
	v := Yield()
	h, err := v.NewHistogram("")
	require.NoError(t, err)
	assert.Equal(t, 1, h.NBins())

	// The proxy expression evaluates to 1 for every row.
	h.Fill(1, 0.7)
	h.Fill(1, 0.3)
	assert.InDelta(t, 1.0, h.Integral(), 1e-12)
}

func TestVariable_ApplyBlinding(t *testing.T) {
	v := New("mbb", 4, 0, 200)
	v.Blinded = []Range{{Low: 100, High: 150}}

	h, err := v.NewHistogram("")
	require.NoError(t, err)
	for _, x := range []float64{25, 75, 125, 175} {
		h.Fill(x, 2.0)
	}

	v.ApplyBlinding(h)
	assert.Equal(t, 2.0, h.BinContent(0))
	assert.Equal(t, 2.0, h.BinContent(1))
	assert.Zero(t, h.BinContent(2)) // center 125 is blinded
	assert.Zero(t, h.BinError(2))
	assert.Equal(t, 2.0, h.BinContent(3))

	v.ApplyBlinding(nil) // must not panic
}
