package task

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/copyleftdev/calclab/internal/errors"
	"github.com/copyleftdev/calclab/internal/optimization"
)

const (
	DefaultEps = 1e-4
	DefaultH   = 0.1
)

// Kind selects what a task computes.
type Kind string

const (
	KindMinimize      Kind = "minimize"
	KindDifferentiate Kind = "differentiate"
)

// ParseKind resolves a task name or alias, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimize", "minimization", "task1", "1":
		return KindMinimize, nil
	case "differentiate", "differentiation", "derivative", "diff", "task2", "2":
		return KindDifferentiate, nil
	case "":
		return "", apperrors.Validation("task is required (minimize or differentiate)")
	}
	return "", apperrors.Validation("unknown task %q (want minimize or differentiate)", s)
}

// Field is a numeric request field kept as text. It accepts both JSON
// strings and JSON numbers.
type Field string

// UnmarshalJSON implements json.Unmarshaler.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Field(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = Field(n)
	return nil
}

// Request is a task as submitted by a caller.
type Request struct {
	Task   string `json:"task"`
	Func   string `json:"func"`
	A      Field  `json:"a"`
	B      Field  `json:"b"`
	Method string `json:"method,omitempty"`
	Eps    Field  `json:"eps,omitempty"`
	H      Field  `json:"h,omitempty"`
	// RMSESweep defaults to true when absent.
	RMSESweep *bool `json:"rmseSweep,omitempty"`
}

// Params are validated task parameters.
type Params struct {
	Kind Kind
	Func string
	A, B float64

	// Minimize only.
	Method optimization.Method
	Eps    float64

	// Differentiate only.
	H     float64
	Sweep bool
}

// ParseRequest converts the text fields of req and checks every parameter
// invariant. The function text is not compiled here.
func ParseRequest(req Request) (Params, error) {
	kind, err := ParseKind(req.Task)
	if err != nil {
		return Params{}, err
	}
	p := Params{Kind: kind, Func: req.Func}

	if p.A, err = parseNumber("a", req.A, math.NaN()); err != nil {
		return Params{}, err
	}
	if p.B, err = parseNumber("b", req.B, math.NaN()); err != nil {
		return Params{}, err
	}
	if p.A >= p.B {
		return Params{}, apperrors.Validation("a must be less than b, got a = %g, b = %g", p.A, p.B)
	}

	switch kind {
	case KindMinimize:
		if p.Method, err = optimization.ParseMethod(req.Method); err != nil {
			return Params{}, err
		}
		if p.Eps, err = parseNumber("eps", req.Eps, DefaultEps); err != nil {
			return Params{}, err
		}
		if p.Eps <= 0 {
			return Params{}, apperrors.Validation("eps must be positive, got %g", p.Eps)
		}
	case KindDifferentiate:
		if p.H, err = parseNumber("h", req.H, DefaultH); err != nil {
			return Params{}, err
		}
		if p.H <= 0 {
			return Params{}, apperrors.Validation("h must be positive, got %g", p.H)
		}
		if 2*p.H >= p.B-p.A {
			return Params{}, apperrors.Validation("h = %g is too large for [%g, %g]: 2h must be less than b - a", p.H, p.A, p.B)
		}
		p.Sweep = req.RMSESweep == nil || *req.RMSESweep
	}
	return p, nil
}

// parseNumber parses a finite decimal, accepting a decimal comma. An empty
// field takes def, or is an error when def is NaN.
func parseNumber(name string, field Field, def float64) (float64, error) {
	s := strings.TrimSpace(string(field))
	if s == "" {
		if math.IsNaN(def) {
			return 0, apperrors.Validation("%s is required", name)
		}
		return def, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, apperrors.Validation("%s must be a finite number, got %q", name, s)
	}
	return v, nil
}
