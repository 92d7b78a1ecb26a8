package cut

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCut_And_Identity(t *testing.T) {
	a := NewTitled("pt > 20", "pt20")

	assert.Equal(t, a, a.And(Cut{}))
	assert.Equal(t, a, Cut{}.And(a))
}

func TestCut_And_Conjunction(t *testing.T) {
	a := NewTitled("pt > 20", "pt20")
	b := NewTitled("abs(eta) < 2.5", "central")

	c := a.And(b)
	assert.Equal(t, "(pt > 20) AND (abs(eta) < 2.5)", c.Expr)
	assert.Equal(t, "pt20 central", c.Title)

	// The originals are untouched.
	assert.Equal(t, "pt > 20", a.Expr)
	assert.Equal(t, "abs(eta) < 2.5", b.Expr)
}

func TestCut_And_Associativity(t *testing.T) {
	a := New("a > 1")
	b := New("b > 2")
	c := New("c > 3")

	left := a.And(b).And(c)
	right := a.And(b.And(c))

	// Textual grouping differs but the conjunct set is the same; both
	// evaluate identically for any row.
	assert.Contains(t, left.Expr, "a > 1")
	assert.Contains(t, left.Expr, "b > 2")
	assert.Contains(t, left.Expr, "c > 3")
	assert.Contains(t, right.Expr, "a > 1")
	assert.Contains(t, right.Expr, "b > 2")
	assert.Contains(t, right.Expr, "c > 3")
}

func TestCut_Without(t *testing.T) {
	a := NewTitled("pt > 20", "pt20")
	b := NewTitled("nbjets >= 2", "2b")

	combined := a.And(b)

	got := combined.Without(b)
	assert.Equal(t, "pt > 20", got.Expr)
	assert.Equal(t, "pt20", got.Title)

	got = combined.Without(a)
	assert.Equal(t, "nbjets >= 2", got.Expr)
	assert.Equal(t, "2b", got.Title)
}

func TestCut_Without_NoMatchIsNoop(t *testing.T) {
	a := New("pt > 20")
	unrelated := New("met > 100")

	assert.Equal(t, a, a.Without(unrelated))
}

func TestCut_Without_WholeExpression(t *testing.T) {
	a := NewTitled("pt > 20", "pt20")
	got := a.Without(a)
	assert.True(t, got.IsEmpty())
}

func TestCut_TimesWeight(t *testing.T) {
	a := New("pt > 20")

	got := a.TimesWeight("mcweight")
	assert.Equal(t, "(pt > 20) * (mcweight)", got.Expr)

	assert.Equal(t, a, a.TimesWeight(""))
	assert.Equal(t, "mcweight", Cut{}.TimesWeight("mcweight").Expr)
}

func TestCut_String(t *testing.T) {
	assert.Equal(t, "pt20", NewTitled("pt > 20", "pt20").String())
	assert.Equal(t, "pt > 20", New("pt > 20").String())
}
