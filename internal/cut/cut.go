package cut

import "strings"

// Cut is an immutable row-selection expression with an optional human-readable
// title. Expressions are SQL boolean predicates evaluated by a scan engine.
// Every combinator returns a new value; the receiver is never modified.
type Cut struct {
	Expr  string
	Title string
}

// New creates a Cut from a bare expression.
func New(expr string) Cut {
	return Cut{Expr: strings.TrimSpace(expr)}
}

// NewTitled creates a Cut with a display title used for labeling.
func NewTitled(expr, title string) Cut {
	return Cut{Expr: strings.TrimSpace(expr), Title: title}
}

// IsEmpty reports whether the cut selects everything.
func (c Cut) IsEmpty() bool {
	return c.Expr == ""
}

// And returns the conjunction of two cuts. An empty operand is the identity.
// Titles are space-joined.
func (c Cut) And(other Cut) Cut {
	switch {
	case c.IsEmpty():
		return other
	case other.IsEmpty():
		return c
	}
	return Cut{
		Expr:  "(" + c.Expr + ") AND (" + other.Expr + ")",
		Title: joinTitles(c.Title, other.Title),
	}
}

// Without removes a previously conjoined subexpression. The removal is
// textual and best-effort: it only matches a conjunct that was attached at
// the top level via And. If sub was never conjoined the receiver is returned
// unchanged, silently. Expressions are not parsed into a tree, so a conjunct
// buried by an intermediate combination step will not be found.
func (c Cut) Without(sub Cut) Cut {
	if c.IsEmpty() || sub.IsEmpty() {
		return c
	}
	if c.Expr == sub.Expr {
		return Cut{Title: c.Title}
	}
	wrapped := "(" + sub.Expr + ")"
	for _, pattern := range []string{wrapped + " AND ", " AND " + wrapped} {
		if idx := strings.Index(c.Expr, pattern); idx >= 0 {
			expr := c.Expr[:idx] + c.Expr[idx+len(pattern):]
			return Cut{Expr: trimOuterParens(expr), Title: removeTitle(c.Title, sub.Title)}
		}
	}
	return c
}

// TimesWeight multiplies the cut by a per-row weight expression, producing
// `(expr) * (weight)`. Selection and weighting share one scan call, so the
// weight rides on the same expression instead of a separate channel. An empty
// cut degenerates to the weight itself; an empty weight is the identity.
func (c Cut) TimesWeight(weight string) Cut {
	weight = strings.TrimSpace(weight)
	if weight == "" {
		return c
	}
	if c.IsEmpty() {
		return Cut{Expr: weight, Title: c.Title}
	}
	return Cut{Expr: "(" + c.Expr + ") * (" + weight + ")", Title: c.Title}
}

func (c Cut) String() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Expr
}

func joinTitles(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}

func removeTitle(combined, sub string) string {
	if sub == "" || combined == "" {
		return combined
	}
	parts := strings.Fields(combined)
	out := parts[:0]
	removed := false
	for _, p := range parts {
		if !removed && p == sub {
			removed = true
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, " ")
}

// trimOuterParens strips one redundant pair of wrapping parentheses left
// behind when a conjunct is removed from a two-term conjunction.
func trimOuterParens(expr string) string {
	expr = strings.TrimSpace(expr)
	if len(expr) < 2 || expr[0] != '(' || expr[len(expr)-1] != ')' {
		return expr
	}
	depth := 0
	for i, r := range expr {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(expr)-1 {
				return expr
			}
		}
	}
	return expr[1 : len(expr)-1]
}
