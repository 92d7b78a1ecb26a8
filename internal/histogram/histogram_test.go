package histogram

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestH1_FillAndBins(t *testing.T) {
	h, err := NewUniform("h", "test", 4, 0, 4)
	require.NoError(t, err)

	h.Fill(0.5, 1.0)
	h.Fill(1.5, 2.0)
	h.Fill(1.0, 1.0) // edge value goes to the upper bin
	h.Fill(-1.0, 3.0)
	h.Fill(10.0, 4.0)

	assert.Equal(t, 1.0, h.BinContent(0))
	assert.Equal(t, 3.0, h.BinContent(1))
	assert.Equal(t, 3.0, h.Underflow())
	assert.Equal(t, 4.0, h.Overflow())
	assert.Equal(t, int64(5), h.Entries())
}

func TestH1_IntegralAndError(t *testing.T) {
	h, err := NewUniform("h", "", 2, 0, 2)
	require.NoError(t, err)

	h.Fill(0.5, 2.0)
	h.Fill(1.5, 2.0)
	h.Fill(-1, 1.0)

	assert.InDelta(t, 4.0, h.Integral(), 1e-12)

	total, unc := h.IntegralAndError()
	assert.InDelta(t, 5.0, total, 1e-12)
	assert.InDelta(t, math.Sqrt(4+4+1), unc, 1e-12)
}

func TestH1_Scale(t *testing.T) {
	h, err := NewUniform("h", "", 1, 0, 1)
	require.NoError(t, err)
	h.Fill(0.5, 2.0)

	h.Scale(3.0)
	assert.InDelta(t, 6.0, h.BinContent(0), 1e-12)
	// Errors scale linearly with the content.
	assert.InDelta(t, 6.0, h.BinError(0), 1e-12)
}

func TestH1_Add(t *testing.T) {
	a, err := NewUniform("a", "", 2, 0, 2)
	require.NoError(t, err)
	b, err := NewUniform("b", "", 2, 0, 2)
	require.NoError(t, err)

	a.Fill(0.5, 1.0)
	b.Fill(0.5, 2.0)
	b.Fill(1.5, 3.0)

	require.NoError(t, a.Add(b))
	assert.InDelta(t, 3.0, a.BinContent(0), 1e-12)
	assert.InDelta(t, 3.0, a.BinContent(1), 1e-12)
	assert.Equal(t, int64(3), a.Entries())

	require.NoError(t, a.Add(nil))
}

func TestH1_Add_BinningMismatch(t *testing.T) {
	a, err := NewUniform("a", "", 2, 0, 2)
	require.NoError(t, err)
	b, err := NewUniform("b", "", 3, 0, 2)
	require.NoError(t, err)

	assert.Error(t, a.Add(b))
}

func TestH1_FoldOverflow(t *testing.T) {
	h, err := NewUniform("h", "", 2, 0, 2)
	require.NoError(t, err)
	h.Fill(-5, 1.0)
	h.Fill(0.5, 1.0)
	h.Fill(5, 2.0)

	h.FoldOverflow()
	assert.InDelta(t, 2.0, h.BinContent(0), 1e-12)
	assert.InDelta(t, 2.0, h.BinContent(1), 1e-12)
	assert.Zero(t, h.Underflow())
	assert.Zero(t, h.Overflow())

	// Total content is preserved.
	total, _ := h.IntegralAndError()
	assert.InDelta(t, 4.0, total, 1e-12)
}

func TestH1_CoerceBinning(t *testing.T) {
	h, err := NewUniform("h", "", 4, 0, 4)
	require.NoError(t, err)
	h.Fill(0.5, 1.0)
	h.Fill(1.5, 2.0)
	h.Fill(2.5, 3.0)
	h.Fill(3.5, 4.0)

	coarse, err := h.CoerceBinning([]float64{0, 2, 4})
	require.NoError(t, err)
	assert.Equal(t, 2, coarse.NBins())
	assert.InDelta(t, 3.0, coarse.BinContent(0), 1e-12)
	assert.InDelta(t, 7.0, coarse.BinContent(1), 1e-12)
	assert.InDelta(t, h.Integral(), coarse.Integral(), 1e-12)
}

func TestH1_JSONRoundTrip(t *testing.T) {
	h, err := NewUniform("mjj", "m_{jj}", 3, 0, 300)
	require.NoError(t, err)
	h.Fill(50, 1.5)
	h.Fill(250, 0.5)
	h.Fill(1000, 2.0)
	h.SetBinLabel(0, "low")

	data, err := json.Marshal(h)
	require.NoError(t, err)

	var got H1
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, h.Name(), got.Name())
	assert.Equal(t, h.Edges(), got.Edges())
	assert.Equal(t, h.Entries(), got.Entries())
	for i := 0; i < h.NBins(); i++ {
		assert.Equal(t, h.BinContent(i), got.BinContent(i))
		assert.Equal(t, h.BinError(i), got.BinError(i))
	}
	assert.Equal(t, h.Overflow(), got.Overflow())
	assert.Equal(t, "low", got.BinLabel(0))
	assert.Empty(t, got.BinLabel(1))
}

func TestH1_InvalidConstruction(t *testing.T) {
	_, err := New("h", "", []float64{1})
	assert.Error(t, err)
	_, err = New("h", "", []float64{2, 1})
	assert.Error(t, err)
	_, err = NewUniform("h", "", 0, 0, 1)
	assert.Error(t, err)
	_, err = NewUniform("h", "", 2, 1, 1)
	assert.Error(t, err)
}
