package task

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/copyleftdev/calclab/internal/derivative"
	"github.com/copyleftdev/calclab/internal/optimization"
)

// Result holds exactly one of Minimization or Differentiation, selected by
// Kind.
type Result struct {
	Kind            Kind
	Minimization    *Minimization
	Differentiation *derivative.Result
}

// Minimization is the outcome of a minimize task.
type Minimization struct {
	Method     optimization.Method
	Curve      []optimization.Point
	Iterations []optimization.Iteration
	XMin, FMin float64
}

// number encodes NaN and infinities as null.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func tuple(vs ...float64) []number {
	out := make([]number, len(vs))
	for i, v := range vs {
		out[i] = number(v)
	}
	return out
}

type minimizationJSON struct {
	Method     string     `json:"method"`
	Curve      [][]number `json:"curve"`
	Points     [][]number `json:"points"`
	Intervals  [][]number `json:"intervals"`
	XMin       number     `json:"xMin"`
	FMin       number     `json:"fMin"`
	Iterations int        `json:"iterations"`
}

type differentiationJSON struct {
	Derivative string     `json:"derivative"`
	H          number     `json:"h"`
	Combined   [][]number `json:"combined"`
	RMSE       [][]number `json:"rmse"`
	RMSEAtH    []number   `json:"rmseAtH"`
}

type resultJSON struct {
	Task            Kind                 `json:"task"`
	Minimization    *minimizationJSON    `json:"minimization"`
	Differentiation *differentiationJSON `json:"differentiation"`
}

// MarshalJSON renders the result in its wire form: rows become arrays of
// numbers and non-finite values become null.
func (r *Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{Task: r.Kind}

	if m := r.Minimization; m != nil {
		mj := &minimizationJSON{
			Method:     string(m.Method),
			Curve:      make([][]number, len(m.Curve)),
			Points:     make([][]number, len(m.Iterations)),
			Intervals:  make([][]number, len(m.Iterations)),
			XMin:       number(m.XMin),
			FMin:       number(m.FMin),
			Iterations: len(m.Iterations),
		}
		for i, p := range m.Curve {
			mj.Curve[i] = tuple(p.X, p.Y)
		}
		for i, it := range m.Iterations {
			k := float64(it.K)
			mj.Points[i] = tuple(k, it.X, it.FX)
			mj.Intervals[i] = tuple(k, it.Lo, it.Hi, it.Length)
		}
		out.Minimization = mj
	}

	if d := r.Differentiation; d != nil {
		dj := &differentiationJSON{
			Derivative: d.Derivative,
			H:          number(d.H),
			Combined:   make([][]number, len(d.Rows)),
			RMSE:       make([][]number, len(d.Sweep)),
			RMSEAtH:    tuple(d.AtH.Forward, d.AtH.Backward, d.AtH.Central),
		}
		for i, row := range d.Rows {
			dj.Combined[i] = tuple(row.X, row.F, row.Exact, row.Forward, row.Backward, row.Central)
		}
		for i, row := range d.Sweep {
			dj.RMSE[i] = tuple(row.H, row.Forward, row.Backward, row.Central)
		}
		out.Differentiation = dj
	}

	return json.Marshal(out)
}
