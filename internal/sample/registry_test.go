package sample

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_RegisterLookup(t *testing.T) {
	r := NewRegistry()
	s := New("bkg1", nil)

	assert.Nil(t, r.Register(s))
	got, ok := r.Lookup("bkg1")
	assert.True(t, ok)
	assert.Same(t, s, got)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistry_LastWriterWins(t *testing.T) {
	r := NewRegistry()
	first := New("bkg1", nil)
	second := New("bkg1", nil)

	assert.Nil(t, r.Register(first))
	displaced := r.Register(second)
	assert.Same(t, first, displaced)

	got, _ := r.Lookup("bkg1")
	assert.Same(t, second, got)

	// Re-registering the current handle reports no conflict.
	assert.Nil(t, r.Register(second))
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(New("zjets", nil))
	r.Register(New("ttbar", nil))
	p := NewProcess("allbkg")
	r.Register(p)

	assert.Equal(t, []string{"allbkg", "ttbar", "zjets"}, r.Names())
	assert.Equal(t, 3, r.Len())

	r.Remove("ttbar")
	assert.Equal(t, 2, r.Len())
}
