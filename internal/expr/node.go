package expr

import (
	"math"
	"strconv"
	"strings"
)

// Precedence describes how tightly an expression is glued together. It is
// used to decide where parentheses are needed when rendering.
type Precedence int

const (
	AddPrecedence Precedence = iota
	MultPrecedence
	NegPrecedence
	ExpPrecedence
	AtomicPrecedence
)

// A Node is a sub-expression of a single-variable function. Nodes are never
// mutated after construction, so a derivative tree may share sub-trees with
// the tree it was derived from.
type Node interface {
	// Eval evaluates the sub-expression at x using IEEE-754 semantics.
	Eval(x float64) float64

	// Diff returns the derivative of the sub-expression with respect to x.
	Diff() Node

	// Precedence returns the loosest binding operator at the top of the
	// expression.
	Precedence() Precedence

	// String returns a representation that Compile accepts.
	String() string

	// write renders the sub-expression into sb.
	write(sb *strings.Builder)
}

func render(n Node) string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

// writeOperand renders n, parenthesized when it binds no tighter than
// parent.
func writeOperand(sb *strings.Builder, n Node, parent Precedence) {
	if n.Precedence() <= parent {
		sb.WriteByte('(')
		n.write(sb)
		sb.WriteByte(')')
		return
	}
	n.write(sb)
}

// Num is a numeric literal.
type Num struct {
	Value float64
}

func (n *Num) Eval(float64) float64 { return n.Value }

func (n *Num) Diff() Node { return zero() }

func (n *Num) Precedence() Precedence {
	if n.Value < 0 || math.Signbit(n.Value) {
		return NegPrecedence
	}
	return AtomicPrecedence
}

func (n *Num) String() string { return render(n) }

func (n *Num) write(sb *strings.Builder) {
	var buf [32]byte
	sb.Write(strconv.AppendFloat(buf[:0], n.Value, 'g', -1, 64))
}

// Var is the function variable x.
type Var struct{}

func (Var) Eval(x float64) float64 { return x }

func (Var) Diff() Node { return one() }

func (Var) Precedence() Precedence { return AtomicPrecedence }

func (Var) String() string { return "x" }

func (Var) write(sb *strings.Builder) { sb.WriteByte('x') }

// Neg negates its argument.
type Neg struct {
	Arg Node
}

func (n *Neg) Eval(x float64) float64 { return -n.Arg.Eval(x) }

func (n *Neg) Diff() Node { return neg(n.Arg.Diff()) }

func (n *Neg) Precedence() Precedence { return NegPrecedence }

func (n *Neg) String() string { return render(n) }

func (n *Neg) write(sb *strings.Builder) {
	sb.WriteByte('-')
	writeOperand(sb, n.Arg, NegPrecedence)
}

// Binary operators.
const (
	AddOp      = '+'
	SubtractOp = '-'
	MultiplyOp = '*'
	DivideOp   = '/'
	PowOp      = '^'
)

// Binary is an arithmetic operation between two nodes.
type Binary struct {
	Op    byte
	Left  Node
	Right Node
}

func (b *Binary) Eval(x float64) float64 {
	l, r := b.Left.Eval(x), b.Right.Eval(x)
	switch b.Op {
	case AddOp:
		return l + r
	case SubtractOp:
		return l - r
	case MultiplyOp:
		return l * r
	case DivideOp:
		return l / r
	case PowOp:
		return math.Pow(l, r)
	}
	panic("expr: unknown operator " + string(b.Op))
}

func (b *Binary) Precedence() Precedence {
	switch b.Op {
	case MultiplyOp, DivideOp:
		return MultPrecedence
	case AddOp, SubtractOp:
		return AddPrecedence
	case PowOp:
		return ExpPrecedence
	}
	panic("expr: unknown operator " + string(b.Op))
}

func (b *Binary) String() string { return render(b) }

func (b *Binary) write(sb *strings.Builder) {
	p := b.Precedence()
	writeOperand(sb, b.Left, p)
	sb.WriteByte(b.Op)
	writeOperand(sb, b.Right, p)
}

// Call applies a registered function to a single argument.
type Call struct {
	Fn  *Builtin
	Arg Node
}

func (c *Call) Eval(x float64) float64 { return c.Fn.eval(c.Arg.Eval(x)) }

// Diff applies the chain rule.
func (c *Call) Diff() Node { return mul(c.Fn.deriv(c.Arg), c.Arg.Diff()) }

func (c *Call) Precedence() Precedence { return AtomicPrecedence }

func (c *Call) String() string { return render(c) }

func (c *Call) write(sb *strings.Builder) {
	sb.WriteString(c.Fn.Name)
	sb.WriteByte('(')
	c.Arg.write(sb)
	sb.WriteByte(')')
}

// treeSize counts the nodes of n, visiting a shared sub-tree once per
// occurrence. Counting stops at limit+1.
func treeSize(n Node, limit int) int {
	memo := make(map[Node]int)
	var walk func(Node) int
	walk = func(n Node) int {
		if size, ok := memo[n]; ok {
			return size
		}
		size := 1
		switch t := n.(type) {
		case *Neg:
			size += walk(t.Arg)
		case *Binary:
			size += walk(t.Left)
			if size <= limit {
				size += walk(t.Right)
			}
		case *Call:
			size += walk(t.Arg)
		}
		if size > limit {
			size = limit + 1
		}
		memo[n] = size
		return size
	}
	return walk(n)
}
