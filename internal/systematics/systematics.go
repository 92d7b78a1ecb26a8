// Package systematics models named sources of systematic uncertainty and
// their combination into per-query weight and scale-factor modifiers.
package systematics

import (
	"sort"
	"strings"

	"github.com/sells-group/analysis-cli/internal/cut"
)

// Direction selects which side of a systematic source a variation probes.
type Direction int

const (
	DirNominal Direction = iota
	DirUp
	DirDown
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	}
	return "nominal"
}

// Entry is one systematic source. A source contributes either a per-row
// weight reweighting (WeightUp/WeightDown), a scalar scale factor
// (ScaleUp/ScaleDown around the nominal Scale), an alternate data source
// (Shape with per-direction source tags), or a combination.
//
// AppliesTo optionally restricts the source to queries whose cut contains
// the given subexpression; an empty condition means "always".
type Entry struct {
	Name    string
	Display string

	Weight     string // nominal per-row weight expression, empty for none
	WeightUp   string
	WeightDown string

	Scale     float64 // nominal scalar factor, zero value treated as 1
	ScaleUp   float64
	ScaleDown float64

	Shape         bool
	SourceTagUp   string
	SourceTagDown string

	AppliesTo cut.Cut
}

// Applies reports whether the entry participates in a query with the given cut.
func (e *Entry) Applies(c cut.Cut) bool {
	if e.AppliesTo.IsEmpty() {
		return true
	}
	return strings.Contains(c.Expr, e.AppliesTo.Expr)
}

func (e *Entry) nominalScale() float64 {
	if e.Scale == 0 {
		return 1
	}
	return e.Scale
}

func (e *Entry) scale(dir Direction) float64 {
	var s float64
	switch dir {
	case DirUp:
		s = e.ScaleUp
	case DirDown:
		s = e.ScaleDown
	}
	if s == 0 {
		return e.nominalScale()
	}
	return s
}

func (e *Entry) weight(dir Direction) string {
	switch dir {
	case DirUp:
		if e.WeightUp != "" {
			return e.WeightUp
		}
	case DirDown:
		if e.WeightDown != "" {
			return e.WeightDown
		}
	}
	return e.Weight
}

// Variation makes the up or down variation owned by this entry.
func (e *Entry) Variation(dir Direction) Variation {
	v := Variation{
		Name:      e.Name + "__1" + dir.String(),
		Display:   e.Display,
		Owner:     e,
		Shape:     e.Shape,
		Direction: dir,
	}
	if e.Shape {
		switch dir {
		case DirUp:
			v.SourceTag = e.SourceTagUp
		case DirDown:
			v.SourceTag = e.SourceTagDown
		}
	}
	return v
}

// Variation is one uncertainty direction of a systematic source, or the
// distinguished nominal. A shape variation carries its own data-source tag
// and requires a rescan; a weight-only variation reuses the nominal scan.
// Owner is a non-owning back-reference to the defining entry; it is nil for
// the nominal variation.
type Variation struct {
	Name      string
	Display   string
	SourceTag string
	Owner     *Entry
	Shape     bool
	Direction Direction
}

// Nominal returns the distinguished nominal variation reading the given
// data-source tag.
func Nominal(sourceTag string) Variation {
	return Variation{Name: "nominal", Display: "Nominal", SourceTag: sourceTag}
}

// IsNominal reports whether v is the nominal variation.
func (v Variation) IsNominal() bool {
	return v.Owner == nil
}

// Set is an unordered collection of systematic sources, unique by name.
// Derived values are pure functions of the members; no operation mutates
// the receiver except Add and Discard.
type Set struct {
	entries map[string]*Entry
}

// NewSet creates a Set holding the given entries.
func NewSet(entries ...*Entry) *Set {
	s := &Set{entries: make(map[string]*Entry, len(entries))}
	for _, e := range entries {
		s.Add(e)
	}
	return s
}

// Add inserts a source. Adding an entry already present is a no-op.
func (s *Set) Add(e *Entry) {
	if e == nil {
		return
	}
	if _, ok := s.entries[e.Name]; ok {
		return
	}
	s.entries[e.Name] = e
}

// Discard removes a source by name, if present.
func (s *Set) Discard(name string) {
	delete(s.entries, name)
}

// Contains reports whether a source with the given name is registered.
func (s *Set) Contains(name string) bool {
	_, ok := s.entries[name]
	return ok
}

// Len returns the number of registered sources.
func (s *Set) Len() int {
	return len(s.entries)
}

// Entries returns the members sorted by name.
func (s *Set) Entries() []*Entry {
	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the sorted member names.
func (s *Set) Names() []string {
	out := make([]string, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Union returns a new Set with the members of both sets. A nil other is the
// identity.
func (s *Set) Union(other *Set) *Set {
	out := NewSet(s.Entries()...)
	if other != nil {
		for _, e := range other.Entries() {
			out.Add(e)
		}
	}
	return out
}

// Difference returns a new Set with other's members removed.
func (s *Set) Difference(other *Set) *Set {
	out := NewSet()
	for name, e := range s.entries {
		if other != nil && other.Contains(name) {
			continue
		}
		out.Add(e)
	}
	return out
}

// SourceTags returns the sorted distinct data-source tags referenced by
// shape members.
func (s *Set) SourceTags() []string {
	seen := map[string]bool{}
	for _, e := range s.entries {
		if !e.Shape {
			continue
		}
		for _, tag := range []string{e.SourceTagUp, e.SourceTagDown} {
			if tag != "" {
				seen[tag] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for tag := range seen {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// TotalWeight combines the per-row weight expressions of all applicable
// members into one multiplicative expression. The member owning the
// variation contributes its varied weight, all others their nominal weight.
// Returns the empty string when no member contributes.
func (s *Set) TotalWeight(v Variation, c cut.Cut) string {
	var terms []string
	for _, e := range s.Entries() {
		if !e.Applies(c) {
			continue
		}
		w := e.Weight
		if v.Owner == e {
			w = e.weight(v.Direction)
		}
		if w != "" {
			terms = append(terms, "("+w+")")
		}
	}
	return strings.Join(terms, " * ")
}

// TotalScaleFactor combines the scalar scale factors of all applicable
// members. The member owning the variation is resolved for the variation's
// direction; every other member contributes its nominal factor (1 unless
// configured otherwise).
func (s *Set) TotalScaleFactor(v Variation, c cut.Cut) float64 {
	sf := 1.0
	for _, e := range s.entries {
		if !e.Applies(c) {
			continue
		}
		if v.Owner == e {
			sf *= e.scale(v.Direction)
		} else {
			sf *= e.nominalScale()
		}
	}
	return sf
}

// Demote maps a variation whose owning source is not registered in the set
// back to the nominal variation reading defaultTag. A shape variation
// without its owner present has nothing to vary.
func (s *Set) Demote(v Variation, defaultTag string) Variation {
	if v.IsNominal() {
		if v.SourceTag == "" {
			v.SourceTag = defaultTag
		}
		return v
	}
	if !s.Contains(v.Owner.Name) {
		return Nominal(defaultTag)
	}
	if v.SourceTag == "" {
		v.SourceTag = defaultTag
	}
	return v
}
