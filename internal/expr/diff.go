package expr

import "math"

// The constructors below fold the trivial cases that differentiation
// produces (0+u, 1*u, 0*u, numeric sub-trees) and nothing more.

func zero() Node { return &Num{Value: 0} }
func one() Node  { return &Num{Value: 1} }

func numValue(n Node) (float64, bool) {
	if num, ok := n.(*Num); ok {
		return num.Value, true
	}
	return 0, false
}

func isNum(n Node, v float64) bool {
	got, ok := numValue(n)
	return ok && got == v
}

// folded returns a literal for v when it is finite, so that rendering never
// produces text like "+Inf".
func folded(v float64) (Node, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, false
	}
	return &Num{Value: v}, true
}

// constant reports whether n does not depend on x.
func constant(n Node) bool {
	switch t := n.(type) {
	case *Num:
		return true
	case Var:
		return false
	case *Neg:
		return constant(t.Arg)
	case *Binary:
		return constant(t.Left) && constant(t.Right)
	case *Call:
		return constant(t.Arg)
	}
	return false
}

func add(a, b Node) Node {
	av, aok := numValue(a)
	bv, bok := numValue(b)
	switch {
	case aok && bok:
		if n, ok := folded(av + bv); ok {
			return n
		}
	case aok && av == 0:
		return b
	case bok && bv == 0:
		return a
	}
	return &Binary{Op: AddOp, Left: a, Right: b}
}

func sub(a, b Node) Node {
	av, aok := numValue(a)
	bv, bok := numValue(b)
	switch {
	case aok && bok:
		if n, ok := folded(av - bv); ok {
			return n
		}
	case bok && bv == 0:
		return a
	case aok && av == 0:
		return neg(b)
	}
	return &Binary{Op: SubtractOp, Left: a, Right: b}
}

func mul(a, b Node) Node {
	av, aok := numValue(a)
	bv, bok := numValue(b)
	switch {
	case aok && bok:
		if n, ok := folded(av * bv); ok {
			return n
		}
	case (aok && av == 0) || (bok && bv == 0):
		return zero()
	case aok && av == 1:
		return b
	case bok && bv == 1:
		return a
	case aok && av == -1:
		return neg(b)
	case bok && bv == -1:
		return neg(a)
	}
	return &Binary{Op: MultiplyOp, Left: a, Right: b}
}

func div(a, b Node) Node {
	av, aok := numValue(a)
	bv, bok := numValue(b)
	switch {
	case aok && bok:
		if n, ok := folded(av / bv); ok {
			return n
		}
	case aok && av == 0:
		return zero()
	case bok && bv == 1:
		return a
	}
	return &Binary{Op: DivideOp, Left: a, Right: b}
}

func pow(base, exp Node) Node {
	bv, bok := numValue(base)
	ev, eok := numValue(exp)
	switch {
	case bok && eok:
		if n, ok := folded(math.Pow(bv, ev)); ok {
			return n
		}
	case eok && ev == 1:
		return base
	case eok && ev == 0:
		return one()
	}
	return &Binary{Op: PowOp, Left: base, Right: exp}
}

func neg(a Node) Node {
	switch t := a.(type) {
	case *Num:
		return &Num{Value: -t.Value}
	case *Neg:
		return t.Arg
	}
	return &Neg{Arg: a}
}

func call(name string, arg Node) Node {
	return &Call{Fn: registry[name], Arg: arg}
}

// Diff applies the sum, difference, product, quotient and power rules.
func (b *Binary) Diff() Node {
	u, v := b.Left, b.Right
	switch b.Op {
	case AddOp:
		return add(u.Diff(), v.Diff())
	case SubtractOp:
		return sub(u.Diff(), v.Diff())
	case MultiplyOp:
		return add(mul(u.Diff(), v), mul(u, v.Diff()))
	case DivideOp:
		numerator := sub(mul(u.Diff(), v), mul(u, v.Diff()))
		return div(numerator, pow(v, &Num{Value: 2}))
	case PowOp:
		return powDiff(u, v)
	}
	panic("expr: unknown operator " + string(b.Op))
}

// powDiff differentiates u^v. A constant exponent uses the power rule, a
// constant base the exponential rule; otherwise d(u^v) = u^v*(v'*ln(u) + v*u'/u).
func powDiff(u, v Node) Node {
	switch {
	case constant(v):
		return mul(mul(v, pow(u, sub(v, one()))), u.Diff())
	case constant(u):
		return mul(mul(pow(u, v), call("ln", u)), v.Diff())
	default:
		inner := add(mul(v.Diff(), call("ln", u)), div(mul(v, u.Diff()), u))
		return mul(pow(u, v), inner)
	}
}
