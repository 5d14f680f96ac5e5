/*
NAME
  model_test.go

DESCRIPTION
  model_test.go contains tests for the model package.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package model

import (
	"math"
	"testing"
)

func approx(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestIdentity(t *testing.T) {
	m := NewIdentity()
	for _, x := range []float64{-5, 0, 3.14} {
		if got := m.Evaluate(x); got != x {
			t.Errorf("Evaluate(%v) = %v, want %v", x, got, x)
		}
	}
}

func TestLinearOLS(t *testing.T) {
	xs := []float64{0, 1, 2, 3}
	ys := []float64{1, 3, 5, 7}
	m, err := NewLinear(xs, ys)
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	if got := m.Evaluate(4); !approx(got, 9, 1e-9) {
		t.Errorf("Evaluate(4) = %v, want 9", got)
	}
}

func TestLinearThroughPoints(t *testing.T) {
	m, err := NewLinearThroughPoints(0, 0, 2, 4)
	if err != nil {
		t.Fatalf("NewLinearThroughPoints: %v", err)
	}
	if got := m.Evaluate(1); !approx(got, 2, 1e-9) {
		t.Errorf("Evaluate(1) = %v, want 2", got)
	}
	if _, err := NewLinearThroughPoints(1, 0, 1, 4); err == nil {
		t.Fatal("expected error for equal x values")
	}
}

func TestInterpolatedTooFewPoints(t *testing.T) {
	_, err := NewInterpolated([]float64{0, 1}, []float64{0, 1}, InteriorLinear, ExtraTwoPointLinear)
	if err == nil {
		t.Fatal("expected error for fewer than 3 unique x values")
	}
}

// TestInterpolatedScenarioS5 exercises scenario S5 with ExtraTwoPointLinear
// defined per section 4.6 as the single line through the global endpoints
// (x[0],y[0]) and (x[n-1],y[n-1]) -- here (0,0) and (4,16), slope 4 -- not
// the four-point-linear numbers; see DESIGN.md's Open Question decisions
// for the section 4.6/8 discrepancy this resolves.
func TestInterpolatedScenarioS5(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4}
	ys := []float64{0, 1, 4, 9, 16}
	m, err := NewInterpolated(xs, ys, InteriorCubicSpline, ExtraTwoPointLinear)
	if err != nil {
		t.Fatalf("NewInterpolated: %v", err)
	}
	if got := m.Evaluate(-1); !approx(got, -4, 1e-6) {
		t.Errorf("Evaluate(-1) = %v, want -4", got)
	}
	if got := m.Evaluate(5); !approx(got, 20, 1e-6) {
		t.Errorf("Evaluate(5) = %v, want 20", got)
	}
	if got := m.Evaluate(2); !approx(got, 4, 1e-6) {
		t.Errorf("Evaluate(2) = %v, want 4", got)
	}
}

func TestInterpolatedCollapsesDuplicateXs(t *testing.T) {
	xs := []float64{0, 1, 1, 2, 3}
	ys := []float64{0, 2, 4, 6, 8}
	m, err := NewInterpolated(xs, ys, InteriorLinear, ExtraGlobalLinear)
	if err != nil {
		t.Fatalf("NewInterpolated: %v", err)
	}
	if got := m.Evaluate(1); !approx(got, 3, 1e-9) {
		t.Errorf("Evaluate(1) = %v, want 3 (average of collapsed ys)", got)
	}
}

func TestFourPointLinearExtrapolation(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4}
	ys := []float64{0, 1, 2, 3, 4}
	m, err := NewInterpolated(xs, ys, InteriorLinear, ExtraFourPointLinear)
	if err != nil {
		t.Fatalf("NewInterpolated: %v", err)
	}
	if got := m.Evaluate(10); !approx(got, 10, 1e-9) {
		t.Errorf("Evaluate(10) = %v, want 10", got)
	}
	if got := m.Evaluate(-10); !approx(got, -10, 1e-9) {
		t.Errorf("Evaluate(-10) = %v, want -10", got)
	}
}
