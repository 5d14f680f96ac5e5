/*
NAME
  numpress.go

DESCRIPTION
  numpress.go implements the Numpress family of lossy/lossless numeric
  codecs used to compress m/z, retention-time and intensity arrays: Linear
  (second-difference + variable-length residuals), Pic (rounded positive
  integer) and Slof (short log-of-floats). See linear.go, pic.go and
  slof.go for the per-encoding implementations, and fixedpoint.go for
  fixed-point estimation.

AUTHORS
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package numpress implements the Numpress linear, pic and slof numeric
// codecs for mass-spectrometry m/z, retention-time and intensity arrays.
//
// Each codec maps a []float64 to a compact byte encoding and back. Linear
// and Slof use a caller-supplied or estimated fixed-point multiplier;
// residuals are packed as variable-length nibble groups (3 data bits plus
// a continuation bit per nibble, written with github.com/icza/bitio) — a
// faithful generalization of the "nibble-packed residual" scheme
// described for Numpress, not a byte-for-bit clone of any particular
// upstream implementation.
package numpress

import (
	"math"

	"github.com/icza/bitio"
	"github.com/pkg/errors"

	"github.com/ausocean/utils/logging"
)

// Kind selects a Numpress encoding.
type Kind int

const (
	Linear Kind = iota
	Pic
	Slof
)

// Config carries the fixed-point and verification settings for an Encode
// call.
type Config struct {
	// FixedPoint, if > 0, is used directly; otherwise a fixed-point is
	// estimated according to EstimateFixedPoint/MassAccuracy.
	FixedPoint float64

	// EstimateFixedPoint, when FixedPoint <= 0, lets a Linear encode use
	// the MassAccuracy-targeted estimate. Without it, or for Slof, the
	// unconstrained optimum is estimated instead.
	EstimateFixedPoint bool

	// MassAccuracy, when > 0, drives a mass-accuracy-targeted fixed
	// point estimate (Linear only); falls back to the unconstrained
	// optimum on failure.
	MassAccuracy float64

	// ErrorTolerance, when > 0, requests a round-trip verification pass
	// after encoding. Verification failure logs the first bad index and
	// Encode returns (nil, nil): the caller falls back to uncompressed
	// output.
	ErrorTolerance float64

	// Log receives diagnostics; a nil Log is treated as a no-op sink.
	Log logging.Logger
}

func (c Config) log() logging.Logger {
	if c.Log != nil {
		return c.Log
	}
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) SetLevel(int8)                                 {}
func (nopLogger) Log(level int8, message string, params ...interface{}) {}
func (nopLogger) Debug(msg string, params ...interface{})       {}
func (nopLogger) Info(msg string, params ...interface{})        {}
func (nopLogger) Warning(msg string, params ...interface{})     {}
func (nopLogger) Error(msg string, params ...interface{})       {}
func (nopLogger) Fatal(msg string, params ...interface{})       {}

// Encode encodes xs using the given Numpress kind and configuration. An
// empty input yields empty output and a nil error. If ErrorTolerance > 0
// and verification fails, Encode returns (nil, nil): this is the
// documented fallback path, not an error, per the Numeric error-kind
// policy.
func Encode(kind Kind, xs []float64, cfg Config) ([]byte, error) {
	if len(xs) == 0 {
		return nil, nil
	}

	var (
		out []byte
		err error
		fp  float64
	)
	switch kind {
	case Linear:
		fp = resolveLinearFixedPoint(xs, cfg)
		out, err = encodeLinear(xs, fp)
	case Pic:
		out, err = encodePic(xs)
	case Slof:
		fp = resolveSlofFixedPoint(xs, cfg)
		out, err = encodeSlof(xs, fp)
	default:
		return nil, errors.New("numpress: unknown kind")
	}
	if err != nil {
		return nil, errors.Wrap(err, "numpress: encode")
	}

	if cfg.ErrorTolerance <= 0 {
		return out, nil
	}

	decoded, err := Decode(kind, out)
	if err != nil {
		cfg.log().Warning("numpress verification decode failed", "error", err.Error())
		return nil, nil
	}
	if badIdx, ok := verify(kind, xs, decoded, cfg.ErrorTolerance); !ok {
		cfg.log().Warning("numpress round-trip verification failed", "index", badIdx)
		return nil, nil
	}
	return out, nil
}

// Decode decodes a Numpress-encoded byte slice of the given kind. Empty
// input yields an empty, non-nil-error result.
func Decode(kind Kind, in []byte) ([]float64, error) {
	if len(in) == 0 {
		return nil, nil
	}
	switch kind {
	case Linear:
		return decodeLinear(in)
	case Pic:
		return decodePic(in)
	case Slof:
		return decodeSlof(in)
	default:
		return nil, errors.New("numpress: unknown kind")
	}
}

// verify implements the round-trip acceptance tests from the testable
// properties: Pic rejects when |x - round(y)| >= 1 or y non-finite;
// Linear/Slof reject on non-finite values or relative error exceeding
// tol, with zero-safe handling on either side.
func verify(kind Kind, xs, ys []float64, tol float64) (int, bool) {
	if len(xs) != len(ys) {
		return len(ys), false
	}
	for i := 0; i < len(xs); i++ {
		d, u := xs[i], ys[i]
		if kind == Pic {
			if !finite(u) || math.Abs(d-math.Round(u)) >= 1.0 {
				return i, false
			}
			continue
		}
		if !finite(u) || !finite(d) {
			return i, false
		}
		switch {
		case d == 0:
			if math.Abs(u) > tol {
				return i, false
			}
		case u == 0:
			if math.Abs(d) > tol {
				return i, false
			}
		default:
			if math.Abs(1.0-d/u) > tol {
				return i, false
			}
		}
	}
	return -1, true
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// writeVarNibble writes v as a sequence of 4-bit groups: the low 3 bits
// are data, the high bit (0x8) signals another group follows.
func writeVarNibble(w *bitio.Writer, v uint64) error {
	for {
		nib := byte(v & 0x7)
		v >>= 3
		if v != 0 {
			nib |= 0x8
		}
		if err := w.WriteBits(uint64(nib), 4); err != nil {
			return err
		}
		if v == 0 {
			return nil
		}
	}
}

// readVarNibble reads a value written by writeVarNibble.
func readVarNibble(r *bitio.Reader) (uint64, error) {
	var v uint64
	var shift uint
	for {
		nib, err := r.ReadBits(4)
		if err != nil {
			return 0, err
		}
		v |= (nib & 0x7) << shift
		if nib&0x8 == 0 {
			return v, nil
		}
		shift += 3
	}
}

func zigzag(v int64) uint64  { return uint64((v << 1) ^ (v >> 63)) }
func unzigzag(u uint64) int64 { return int64(u>>1) ^ -int64(u&1) }
