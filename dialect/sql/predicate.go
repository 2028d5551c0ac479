package sql

import "strings"

// Predicate is a composable WHERE-clause fragment. Predicates are built
// with the package-level constructors (EQ, In, And, ...) and rendered
// into the statement by the owning builder.
type Predicate struct {
	apply func(*Builder)
}

// P wraps a raw builder function as a predicate.
func P(apply func(*Builder)) *Predicate {
	return &Predicate{apply: apply}
}

// EQ returns a column = value predicate.
func EQ(col string, v any) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" = ")
		b.Arg(v)
	})
}

// NEQ returns a column <> value predicate.
func NEQ(col string, v any) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" <> ")
		b.Arg(v)
	})
}

// GT returns a column > value predicate.
func GT(col string, v any) *Predicate { return cmp(col, " > ", v) }

// GTE returns a column >= value predicate.
func GTE(col string, v any) *Predicate { return cmp(col, " >= ", v) }

// LT returns a column < value predicate.
func LT(col string, v any) *Predicate { return cmp(col, " < ", v) }

// LTE returns a column <= value predicate.
func LTE(col string, v any) *Predicate { return cmp(col, " <= ", v) }

func cmp(col, op string, v any) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(op)
		b.Arg(v)
	})
}

// In returns a column IN (...) predicate. An empty value list renders as
// an impossible predicate, matching no rows.
func In(col string, vs ...any) *Predicate {
	return P(func(b *Builder) {
		if len(vs) == 0 {
			False().apply(b)
			return
		}
		b.Ident(col).WriteString(" IN (")
		for i, v := range vs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Arg(v)
		}
		b.WriteString(")")
	})
}

// NotIn returns a column NOT IN (...) predicate. An empty value list
// matches all rows.
func NotIn(col string, vs ...any) *Predicate {
	return P(func(b *Builder) {
		if len(vs) == 0 {
			True().apply(b)
			return
		}
		b.Ident(col).WriteString(" NOT IN (")
		for i, v := range vs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.Arg(v)
		}
		b.WriteString(")")
	})
}

// IsNull returns a column IS NULL predicate.
func IsNull(col string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" IS NULL")
	})
}

// NotNull returns a column IS NOT NULL predicate.
func NotNull(col string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" IS NOT NULL")
	})
}

// Like returns a column LIKE pattern predicate.
func Like(col, pattern string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" LIKE ")
		b.Arg(pattern)
	})
}

// Contains returns a predicate matching columns containing substr.
func Contains(col, substr string) *Predicate {
	return Like(col, "%"+escapeLike(substr)+"%")
}

// HasPrefix returns a predicate matching columns starting with prefix.
func HasPrefix(col, prefix string) *Predicate {
	return Like(col, escapeLike(prefix)+"%")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return r.Replace(s)
}

// And combines predicates with AND. Nil entries collapse.
func And(ps ...*Predicate) *Predicate {
	ps = compact(ps)
	switch len(ps) {
	case 0:
		return True()
	case 1:
		return ps[0]
	}
	return P(func(b *Builder) {
		for i, p := range ps {
			if i > 0 {
				b.WriteString(" AND ")
			}
			b.WriteString("(")
			p.apply(b)
			b.WriteString(")")
		}
	})
}

// Or combines predicates with OR.
func Or(ps ...*Predicate) *Predicate {
	ps = compact(ps)
	switch len(ps) {
	case 0:
		return False()
	case 1:
		return ps[0]
	}
	return P(func(b *Builder) {
		for i, p := range ps {
			if i > 0 {
				b.WriteString(" OR ")
			}
			b.WriteString("(")
			p.apply(b)
			b.WriteString(")")
		}
	})
}

// Not negates a predicate.
func Not(p *Predicate) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("NOT (")
		p.apply(b)
		b.WriteString(")")
	})
}

// False returns a predicate that matches no rows. It is used to force an
// empty result set when a query must fail closed.
func False() *Predicate {
	return P(func(b *Builder) {
		b.WriteString("FALSE")
	})
}

// True returns a predicate that matches all rows.
func True() *Predicate {
	return P(func(b *Builder) {
		b.WriteString("TRUE")
	})
}

// ExprP returns a predicate from a raw expression with ? placeholders.
func ExprP(expr string, args ...any) *Predicate {
	return P(func(b *Builder) {
		for i, part := range strings.Split(expr, "?") {
			if i > 0 {
				b.Arg(args[i-1])
			}
			b.WriteString(part)
		}
	})
}

func compact(ps []*Predicate) []*Predicate {
	out := ps[:0]
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
