/*
NAME
  numpress_test.go

DESCRIPTION
  numpress_test.go contains tests for the numpress package.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package numpress

import (
	"math"
	"testing"
)

func approxEqual(t *testing.T, got, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > tol {
			t.Errorf("index %d: got %v, want %v (tol %v)", i, got[i], want[i], tol)
		}
	}
}

func TestLinearRoundTrip(t *testing.T) {
	xs := []float64{100.0, 100.001, 100.003, 99.998, 105.5, 105.501, 200.0}
	enc, err := Encode(Linear, xs, Config{EstimateFixedPoint: true})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if enc == nil {
		t.Fatal("Encode returned nil output for non-empty input")
	}
	dec, err := Decode(Linear, enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	approxEqual(t, dec, xs, 1e-3)
}

func TestPicRoundTrip(t *testing.T) {
	xs := []float64{0, 1, 2, 1000, 1000000, 42}
	enc, err := Encode(Pic, xs, Config{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dec, err := Decode(Pic, enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	approxEqual(t, dec, xs, 0.5)
}

func TestPicRejectsNegative(t *testing.T) {
	_, err := Encode(Pic, []float64{-1}, Config{})
	if err == nil {
		t.Error("expected error encoding negative sample as Pic")
	}
}

func TestSlofRoundTrip(t *testing.T) {
	xs := []float64{0, 10, 1000, 50000, 123456.789}
	fp := OptimalSlofFixedPoint(xs)
	enc, err := Encode(Slof, xs, Config{FixedPoint: fp})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dec, err := Decode(Slof, enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	// Slof's log-domain quantization is coarser than Linear/Pic; accept a
	// generous relative tolerance rather than an absolute one.
	for i, x := range xs {
		if x == 0 {
			continue
		}
		if rel := math.Abs(1 - dec[i]/x); rel > 0.01 {
			t.Errorf("index %d: got %v, want ~%v (rel %v)", i, dec[i], x, rel)
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	for _, kind := range []Kind{Linear, Pic, Slof} {
		out, err := Encode(kind, nil, Config{})
		if err != nil {
			t.Errorf("kind %v: unexpected error: %v", kind, err)
		}
		if out != nil {
			t.Errorf("kind %v: expected nil output for empty input", kind)
		}
	}
}

func TestDecodeEmpty(t *testing.T) {
	for _, kind := range []Kind{Linear, Pic, Slof} {
		out, err := Decode(kind, nil)
		if err != nil {
			t.Errorf("kind %v: unexpected error: %v", kind, err)
		}
		if out != nil {
			t.Errorf("kind %v: expected nil output for empty input", kind)
		}
	}
}

// TestEncodeVerificationFallback checks that an unreasonably tight error
// tolerance causes Encode to fall back to (nil, nil) instead of returning
// an error, per the documented Numeric fallback policy.
func TestEncodeVerificationFallback(t *testing.T) {
	xs := []float64{1.23456789, 2.3456789123, 3.456789123}
	// A fixed point this small discards virtually all precision, so the
	// round trip cannot satisfy a tight relative tolerance.
	out, err := Encode(Linear, xs, Config{FixedPoint: 2, ErrorTolerance: 1e-9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != nil {
		t.Error("expected nil output when verification fails")
	}
}

func TestZigzag(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 2, -2, 1 << 40, -(1 << 40)} {
		if got := unzigzag(zigzag(v)); got != v {
			t.Errorf("zigzag round trip: got %d, want %d", got, v)
		}
	}
}
