/*
NAME
  fixedpoint.go

DESCRIPTION
  fixedpoint.go estimates the fixed-point multiplier used by the Linear and
  Slof Numpress encodings.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package numpress

import "math"

// maxScaledMagnitude bounds the scaled integer magnitude so that the
// second-difference residuals used by the Linear encoding stay within a
// safe int64 range for any three consecutive values.
const maxScaledMagnitude = float64(1 << 50)

// slofMaxCode is the largest value a Slof encoded sample may take (16-bit
// unsigned, since log(x+1) >= 0 for non-negative intensities).
const slofMaxCode = float64(1<<16 - 1)

// OptimalLinearFixedPoint returns the largest fixed point for which
// fp*max(|xs|) stays within the Linear encoding's safe integer range. It
// returns 0 if xs is empty or all zero.
func OptimalLinearFixedPoint(xs []float64) float64 {
	max := maxAbs(xs)
	if max == 0 {
		return 0
	}
	return math.Floor(maxScaledMagnitude / max)
}

// OptimalLinearFixedPointMass estimates a fixed point that targets the
// given mass accuracy (a relative tolerance on encoded values, e.g. 1e-5
// for 10 ppm). It returns -1 (a sentinel meaning "infeasible") when
// accuracy is non-positive; the caller is expected to fall back to
// OptimalLinearFixedPoint in that case, per the codec's fallback policy.
func OptimalLinearFixedPointMass(xs []float64, accuracy float64) float64 {
	if accuracy <= 0 || math.IsNaN(accuracy) || math.IsInf(accuracy, 0) {
		return -1
	}
	fp := 1.0 / accuracy
	if fp <= 0 {
		return -1
	}
	// Never exceed the encoding's safe range even if that yields a
	// tighter accuracy than requested.
	if max := maxAbs(xs); max > 0 {
		if limit := maxScaledMagnitude / max; fp > limit {
			fp = limit
		}
	}
	return fp
}

// OptimalSlofFixedPoint returns the fixed point that makes best use of
// the Slof encoding's 16-bit code range for xs (all of which must be >= 0
// for log(x+1) to be defined).
func OptimalSlofFixedPoint(xs []float64) float64 {
	maxLog := 0.0
	for _, x := range xs {
		if x < 0 {
			continue
		}
		if l := math.Log(x + 1); l > maxLog {
			maxLog = l
		}
	}
	if maxLog == 0 {
		return 0
	}
	return math.Floor(slofMaxCode / maxLog)
}

func resolveLinearFixedPoint(xs []float64, cfg Config) float64 {
	if cfg.FixedPoint > 0 {
		return cfg.FixedPoint
	}
	if !cfg.EstimateFixedPoint {
		return OptimalLinearFixedPoint(xs)
	}
	if cfg.MassAccuracy > 0 {
		if fp := OptimalLinearFixedPointMass(xs, cfg.MassAccuracy); fp > 0 {
			return fp
		}
	}
	return OptimalLinearFixedPoint(xs)
}

func resolveSlofFixedPoint(xs []float64, cfg Config) float64 {
	if cfg.FixedPoint > 0 {
		return cfg.FixedPoint
	}
	return OptimalSlofFixedPoint(xs)
}

func maxAbs(xs []float64) float64 {
	max := 0.0
	for _, x := range xs {
		if ax := math.Abs(x); ax > max {
			max = ax
		}
	}
	return max
}
