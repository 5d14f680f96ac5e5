/*
NAME
  model.go

DESCRIPTION
  model.go defines the transformation models used to map one retention-time
  axis onto another: identity, ordinary-least-squares linear, and a
  piecewise interior interpolator (linear/cubic-spline/Akima) with a
  separately configurable extrapolation policy applied outside the data
  range.

AUTHORS
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package model implements the transformation model set used to align one
// retention-time axis onto another.
package model

import (
	"sort"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"

	"github.com/massflow/mzflow/mzerr"
)

// Model maps an x coordinate (typically a target rt) onto y (a reference
// rt).
type Model interface {
	Evaluate(x float64) float64
}

// InteriorKind selects the interior interpolator for NewInterpolated.
type InteriorKind int

const (
	InteriorLinear InteriorKind = iota
	InteriorCubicSpline
	InteriorAkima
)

// ExtrapolationKind selects the out-of-range policy for NewInterpolated.
// It is a separate axis from InteriorKind, not a subclass: any interior
// kind may be paired with any extrapolation kind.
type ExtrapolationKind int

const (
	ExtraGlobalLinear ExtrapolationKind = iota
	ExtraTwoPointLinear
	ExtraFourPointLinear
)

type identity struct{}

// Evaluate implements Model.
func (identity) Evaluate(x float64) float64 { return x }

// NewIdentity returns the no-op model.
func NewIdentity() Model { return identity{} }

type linear struct{ slope, intercept float64 }

// Evaluate implements Model.
func (m linear) Evaluate(x float64) float64 { return m.slope*x + m.intercept }

// NewLinear fits an ordinary-least-squares line through (xs, ys).
func NewLinear(xs, ys []float64) (Model, error) {
	if len(xs) != len(ys) || len(xs) == 0 {
		return nil, mzerr.New(mzerr.IllegalArgument, "linear model requires matching non-empty xs/ys")
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return linear{slope: beta, intercept: alpha}, nil
}

// NewLinearThroughPoints builds the line passing exactly through (x0,y0)
// and (x1,y1).
func NewLinearThroughPoints(x0, y0, x1, y1 float64) (Model, error) {
	if x0 == x1 {
		return nil, mzerr.New(mzerr.IllegalArgument, "linear-through-points requires distinct x values")
	}
	slope := (y1 - y0) / (x1 - x0)
	return linear{slope: slope, intercept: y0 - slope*x0}, nil
}

// fittablePredictor is the subset of gonum/interp's interpolator types
// this package depends on.
type fittablePredictor interface {
	Fit(xs, ys []float64) error
	Predict(x float64) float64
}

type interpolated struct {
	xs          []float64
	interior    fittablePredictor
	front, back Model
}

// Evaluate implements Model: out-of-range x dispatches to the front/back
// extrapolator, in-range x to the interior interpolator.
func (m *interpolated) Evaluate(x float64) float64 {
	switch {
	case x < m.xs[0]:
		return m.front.Evaluate(x)
	case x > m.xs[len(m.xs)-1]:
		return m.back.Evaluate(x)
	default:
		return m.interior.Predict(x)
	}
}

// NewInterpolated builds a piecewise interior interpolator over (xs, ys).
// Duplicate x values are collapsed, averaging their ys, before fitting;
// at least 3 unique x values are required.
func NewInterpolated(xs, ys []float64, interior InteriorKind, extra ExtrapolationKind) (Model, error) {
	if len(xs) != len(ys) {
		return nil, mzerr.New(mzerr.IllegalArgument, "interpolated model requires matching xs/ys")
	}

	px, py := collapseDuplicates(xs, ys)
	if len(px) < 3 {
		return nil, mzerr.New(mzerr.Configuration, "interpolated model needs at least 3 unique x values")
	}

	var fp fittablePredictor
	switch interior {
	case InteriorLinear:
		fp = &interp.PiecewiseLinear{}
	case InteriorCubicSpline:
		fp = &interp.ClampedCubic{}
	case InteriorAkima:
		fp = &interp.AkimaSpline{}
	default:
		return nil, mzerr.New(mzerr.Configuration, "unknown interior interpolation kind")
	}
	if err := fp.Fit(px, py); err != nil {
		return nil, mzerr.Wrap(mzerr.Configuration, "fitting interior interpolator", err)
	}

	front, back, err := buildExtrapolators(px, py, extra)
	if err != nil {
		return nil, err
	}
	return &interpolated{xs: px, interior: fp, front: front, back: back}, nil
}

func buildExtrapolators(xs, ys []float64, extra ExtrapolationKind) (Model, Model, error) {
	switch extra {
	case ExtraGlobalLinear:
		m, err := NewLinear(xs, ys)
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	case ExtraTwoPointLinear:
		m, err := NewLinearThroughPoints(xs[0], ys[0], xs[len(xs)-1], ys[len(ys)-1])
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	case ExtraFourPointLinear:
		front, err := NewLinearThroughPoints(xs[0], ys[0], xs[1], ys[1])
		if err != nil {
			return nil, nil, err
		}
		back, err := NewLinearThroughPoints(xs[len(xs)-2], ys[len(ys)-2], xs[len(xs)-1], ys[len(ys)-1])
		if err != nil {
			return nil, nil, err
		}
		return front, back, nil
	default:
		return nil, nil, mzerr.New(mzerr.Configuration, "unknown extrapolation kind")
	}
}

// collapseDuplicates groups ys by equal x, averaging each group, and
// returns the result sorted by x ascending.
func collapseDuplicates(xs, ys []float64) ([]float64, []float64) {
	type acc struct {
		sum float64
		n   int
	}
	grouped := make(map[float64]*acc)
	for i, x := range xs {
		a, ok := grouped[x]
		if !ok {
			a = &acc{}
			grouped[x] = a
		}
		a.sum += ys[i]
		a.n++
	}
	px := make([]float64, 0, len(grouped))
	for x := range grouped {
		px = append(px, x)
	}
	sort.Float64s(px)
	py := make([]float64, len(px))
	for i, x := range px {
		a := grouped[x]
		py[i] = a.sum / float64(a.n)
	}
	return px, py
}
