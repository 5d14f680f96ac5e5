/*
NAME
  linear.go

DESCRIPTION
  linear.go implements the Numpress Linear encoding: integer-truncated
  second-difference of (x * fp), with a variable-length nibble-packed
  residual. Output is an 8-byte little-endian fixed-point header, a
  4-byte little-endian sample count, the first two encoded samples (raw
  int64, 8 bytes each), and then the nibble-packed residual stream.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package numpress

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/icza/bitio"
	"github.com/pkg/errors"
)

func encodeLinear(xs []float64, fp float64) ([]byte, error) {
	if fp <= 0 {
		return nil, errors.New("linear: fixed point must be > 0")
	}

	scaled := make([]int64, len(xs))
	for i, x := range xs {
		scaled[i] = int64(math.Round(x * fp))
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, fp); err != nil {
		return nil, err
	}
	// The residual stream is nibble-packed and bitio.Writer.Close zero-pads
	// to the next byte; an odd nibble count would otherwise be
	// indistinguishable from a trailing zero-valued residual. Recording
	// the sample count lets the decoder stop after exactly that many
	// residuals instead of relying on EOF.
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(scaled))); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, scaled[0]); err != nil {
		return nil, err
	}
	if len(scaled) > 1 {
		if err := binary.Write(&buf, binary.LittleEndian, scaled[1]); err != nil {
			return nil, err
		}
	}

	w := bitio.NewWriter(&buf)
	for i := 2; i < len(scaled); i++ {
		extrapolated := 2*scaled[i-1] - scaled[i-2]
		residual := scaled[i] - extrapolated
		if err := writeVarNibble(w, zigzag(residual)); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeLinear(in []byte) ([]float64, error) {
	r := bytes.NewReader(in)

	var fp float64
	if err := binary.Read(r, binary.LittleEndian, &fp); err != nil {
		return nil, errors.Wrap(err, "linear: reading fixed point")
	}
	if fp <= 0 {
		return nil, errors.New("linear: fixed point must be > 0")
	}

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, errors.Wrap(err, "linear: reading sample count")
	}
	if count == 0 {
		return nil, nil
	}

	var first int64
	if err := binary.Read(r, binary.LittleEndian, &first); err != nil {
		return nil, errors.Wrap(err, "linear: reading first sample")
	}
	scaled := []int64{first}

	if count > 1 {
		var second int64
		if err := binary.Read(r, binary.LittleEndian, &second); err != nil {
			return nil, errors.Wrap(err, "linear: reading second sample")
		}
		scaled = append(scaled, second)
	}

	br := bitio.NewReader(r)
	for uint32(len(scaled)) < count {
		u, err := readVarNibble(br)
		if err != nil {
			return nil, errors.Wrap(err, "linear: reading residual")
		}
		residual := unzigzag(u)
		extrapolated := 2*scaled[len(scaled)-1] - scaled[len(scaled)-2]
		scaled = append(scaled, extrapolated+residual)
	}

	out := make([]float64, len(scaled))
	for i, s := range scaled {
		out[i] = float64(s) / fp
	}
	return out, nil
}
