package expr

import (
	"math"
	"sort"
)

// Builtin is a registered single-argument function.
type Builtin struct {
	Name string
	eval func(float64) float64
	// deriv returns f'(u) as an expression in u; Call.Diff multiplies by u'.
	deriv func(u Node) Node
}

// registry is filled once by init and only read afterwards, so it is safe to
// share between concurrent compilations.
var registry map[string]*Builtin

// constants are folded into literals by the parser.
var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return v // keeps 0, -0 and NaN
}

func init() {
	num := func(v float64) Node { return &Num{Value: v} }
	two := num(2)

	fns := []*Builtin{
		{Name: "sin", eval: math.Sin, deriv: func(u Node) Node { return call("cos", u) }},
		{Name: "cos", eval: math.Cos, deriv: func(u Node) Node { return neg(call("sin", u)) }},
		{Name: "tan", eval: math.Tan, deriv: func(u Node) Node { return add(one(), pow(call("tan", u), two)) }},
		{Name: "asin", eval: math.Asin, deriv: func(u Node) Node {
			return div(one(), call("sqrt", sub(one(), pow(u, two))))
		}},
		{Name: "acos", eval: math.Acos, deriv: func(u Node) Node {
			return neg(div(one(), call("sqrt", sub(one(), pow(u, two)))))
		}},
		{Name: "atan", eval: math.Atan, deriv: func(u Node) Node { return div(one(), add(one(), pow(u, two))) }},
		{Name: "sinh", eval: math.Sinh, deriv: func(u Node) Node { return call("cosh", u) }},
		{Name: "cosh", eval: math.Cosh, deriv: func(u Node) Node { return call("sinh", u) }},
		{Name: "tanh", eval: math.Tanh, deriv: func(u Node) Node { return sub(one(), pow(call("tanh", u), two)) }},
		{Name: "exp", eval: math.Exp, deriv: func(u Node) Node { return call("exp", u) }},
		{Name: "ln", eval: math.Log, deriv: func(u Node) Node { return div(one(), u) }},
		{Name: "log", eval: math.Log, deriv: func(u Node) Node { return div(one(), u) }},
		{Name: "log10", eval: math.Log10, deriv: func(u Node) Node { return div(one(), mul(u, num(math.Ln10))) }},
		{Name: "sqrt", eval: math.Sqrt, deriv: func(u Node) Node { return div(one(), mul(two, call("sqrt", u))) }},
		{Name: "abs", eval: math.Abs, deriv: func(u Node) Node { return call("sign", u) }},
		{Name: "sign", eval: sign, deriv: func(Node) Node { return zero() }},
	}

	registry = make(map[string]*Builtin, len(fns))
	for _, fn := range fns {
		registry[fn.Name] = fn
	}
}

// Lookup returns the registered function with the given name.
func Lookup(name string) (*Builtin, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Builtins returns the names of all registered functions in sorted order.
func Builtins() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Constants returns the names of the predefined constants in sorted order.
func Constants() []string {
	names := make([]string, 0, len(constants))
	for name := range constants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
