// Package expr compiles single-variable real functions from text, evaluates
// them and differentiates them symbolically.
//
// Source text is untrusted: the parser bounds input length and nesting depth
// and reports every problem as a parse-kind error without returning a partial
// tree. Evaluation never fails; NaN and infinities propagate to the caller.
package expr

import (
	"sync"

	apperrors "github.com/copyleftdev/calclab/internal/errors"
)

// MaxDerivativeSize bounds the node count of a derivative, counting shared
// sub-trees once per occurrence. It also bounds the rendered text and the
// cost of one evaluation.
const MaxDerivativeSize = 1 << 16

// Function is a compiled expression in x. It is immutable once compiled and
// may be evaluated from many goroutines.
type Function struct {
	source string
	root   Node

	once     sync.Once
	deriv    *Function
	derivErr error
}

// Compile parses text. The derivative is built on first use.
func Compile(text string) (*Function, error) {
	root, err := parse(text)
	if err != nil {
		return nil, err
	}
	return &Function{source: text, root: root}, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and
// package-level fixtures.
func MustCompile(text string) *Function {
	f, err := Compile(text)
	if err != nil {
		panic(err)
	}
	return f
}

// Eval evaluates the function at x.
func (f *Function) Eval(x float64) float64 {
	return f.root.Eval(x)
}

// Derivative returns the symbolic derivative of f. It is built on first use
// and cached; derivatives of derivatives are supported. A derivative larger
// than MaxDerivativeSize nodes is rejected with a parse-kind error.
func (f *Function) Derivative() (*Function, error) {
	f.once.Do(func() {
		d := f.root.Diff()
		if treeSize(d, MaxDerivativeSize) > MaxDerivativeSize {
			f.derivErr = apperrors.Parse("derivative has more than %d nodes", MaxDerivativeSize).
				WithComponent("expr").
				WithOperation("derivative")
			return
		}
		f.deriv = &Function{root: d}
	})
	return f.deriv, f.derivErr
}

// MustDerivative is like Derivative but panics on error.
func (f *Function) MustDerivative() *Function {
	d, err := f.Derivative()
	if err != nil {
		panic(err)
	}
	return d
}

// Source returns the text f was compiled from. For derivatives it is the
// rendered derivative expression.
func (f *Function) Source() string {
	if f.source == "" {
		return f.String()
	}
	return f.source
}

// String renders the expression tree.
func (f *Function) String() string {
	return render(f.root)
}
