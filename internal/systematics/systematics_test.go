package systematics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/analysis-cli/internal/cut"
)

func weightEntry(name, nominal, up, down string) *Entry {
	return &Entry{Name: name, Weight: nominal, WeightUp: up, WeightDown: down}
}

func TestSet_AddIsIdempotent(t *testing.T) {
	s := NewSet()
	e := weightEntry("btag", "btag_w", "btag_w_up", "btag_w_down")
	s.Add(e)
	s.Add(e)
	s.Add(&Entry{Name: "btag"}) // same name, ignored

	assert.Equal(t, 1, s.Len())
	assert.Same(t, e, s.Entries()[0])
}

func TestSet_UnionDifference(t *testing.T) {
	a := NewSet(weightEntry("a", "wa", "", ""))
	b := NewSet(weightEntry("b", "wb", "", ""))

	u := a.Union(b)
	assert.Equal(t, []string{"a", "b"}, u.Names())
	// Union does not mutate the operands.
	assert.Equal(t, []string{"a"}, a.Names())

	d := u.Difference(b)
	assert.Equal(t, []string{"a"}, d.Names())

	assert.Equal(t, []string{"a", "b"}, u.Union(nil).Names())
	assert.Equal(t, []string{"a", "b"}, u.Difference(nil).Names())
}

func TestSet_TotalWeight(t *testing.T) {
	btag := weightEntry("btag", "btag_w", "btag_w_up", "btag_w_down")
	pu := weightEntry("pileup", "pu_w", "pu_w_up", "pu_w_down")
	s := NewSet(btag, pu)

	nominal := Nominal("nominal")
	assert.Equal(t, "(btag_w) * (pu_w)", s.TotalWeight(nominal, cut.Cut{}))

	up := btag.Variation(DirUp)
	assert.Equal(t, "(btag_w_up) * (pu_w)", s.TotalWeight(up, cut.Cut{}))

	down := pu.Variation(DirDown)
	assert.Equal(t, "(btag_w) * (pu_w_down)", s.TotalWeight(down, cut.Cut{}))
}

func TestSet_TotalWeight_AppliesTo(t *testing.T) {
	e := weightEntry("btag", "btag_w", "", "")
	e.AppliesTo = cut.New("nbjets >= 1")
	s := NewSet(e)

	withB := cut.New("pt > 20").And(cut.New("nbjets >= 1"))
	without := cut.New("pt > 20")

	assert.Equal(t, "(btag_w)", s.TotalWeight(Nominal("nominal"), withB))
	assert.Equal(t, "", s.TotalWeight(Nominal("nominal"), without))
}

func TestSet_TotalScaleFactor(t *testing.T) {
	lumi := &Entry{Name: "lumi", ScaleUp: 1.02, ScaleDown: 0.98}
	norm := &Entry{Name: "norm", Scale: 1.1, ScaleUp: 1.3, ScaleDown: 0.9}
	s := NewSet(lumi, norm)

	nominal := Nominal("nominal")
	assert.InDelta(t, 1.1, s.TotalScaleFactor(nominal, cut.Cut{}), 1e-12)

	up := lumi.Variation(DirUp)
	assert.InDelta(t, 1.02*1.1, s.TotalScaleFactor(up, cut.Cut{}), 1e-12)

	down := norm.Variation(DirDown)
	assert.InDelta(t, 0.9, s.TotalScaleFactor(down, cut.Cut{}), 1e-12)
}

func TestSet_TotalScaleFactor_DisjointUnionFactorizes(t *testing.T) {
	a := NewSet(&Entry{Name: "a", Scale: 1.2})
	b := NewSet(&Entry{Name: "b", Scale: 0.8})

	nominal := Nominal("nominal")
	c := cut.New("pt > 20")

	want := a.TotalScaleFactor(nominal, c) * b.TotalScaleFactor(nominal, c)
	assert.InDelta(t, want, a.Union(b).TotalScaleFactor(nominal, c), 1e-12)
}

func TestSet_Demote(t *testing.T) {
	jes := &Entry{Name: "jes", Shape: true, SourceTagUp: "jes_up", SourceTagDown: "jes_down"}
	s := NewSet()

	up := jes.Variation(DirUp)
	assert.Equal(t, "jes__1up", up.Name)
	assert.Equal(t, "jes_up", up.SourceTag)

	// Owner not registered: demoted to nominal.
	got := s.Demote(up, "nominal")
	assert.True(t, got.IsNominal())
	assert.Equal(t, "nominal", got.SourceTag)

	s.Add(jes)
	got = s.Demote(up, "nominal")
	assert.Equal(t, "jes__1up", got.Name)
	assert.Equal(t, "jes_up", got.SourceTag)
}

func TestSet_SourceTags(t *testing.T) {
	s := NewSet(
		&Entry{Name: "jes", Shape: true, SourceTagUp: "jes_up", SourceTagDown: "jes_down"},
		weightEntry("btag", "btag_w", "", ""),
	)
	assert.Equal(t, []string{"jes_down", "jes_up"}, s.SourceTags())
}
