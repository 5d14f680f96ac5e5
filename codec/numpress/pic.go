/*
NAME
  pic.go

DESCRIPTION
  pic.go implements the Numpress Pic encoding: each non-negative sample
  is rounded to the nearest integer and packed directly as a
  variable-length nibble group, with no fixed point and no
  second-differencing. Intended for intensity arrays where an absolute
  rounding error of up to 0.5 is acceptable.

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

func encodePic(xs []float64) ([]byte, error) {
	var buf bytes.Buffer
	// As in linear.go, bitio.Writer.Close zero-pads the nibble stream to a
	// byte boundary; an odd nibble count would be indistinguishable from a
	// trailing zero-valued sample without recording the sample count.
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(xs))); err != nil {
		return nil, err
	}

	w := bitio.NewWriter(&buf)
	for _, x := range xs {
		if x < 0 {
			return nil, errors.New("pic: negative sample")
		}
		if err := writeVarNibble(w, uint64(math.Round(x))); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePic(in []byte) ([]float64, error) {
	r := bytes.NewReader(in)

	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, errors.Wrap(err, "pic: reading sample count")
	}

	br := bitio.NewReader(r)
	out := make([]float64, 0, count)
	for uint32(len(out)) < count {
		u, err := readVarNibble(br)
		if err != nil {
			return nil, errors.Wrap(err, "pic: reading sample")
		}
		out = append(out, float64(u))
	}
	return out, nil
}
