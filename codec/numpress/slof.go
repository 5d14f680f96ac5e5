/*
NAME
  slof.go

DESCRIPTION
  slof.go implements the Numpress Slof ("short log-of-floats") encoding:
  an 8-byte little-endian fixed-point header followed by one fixed
  16-bit code per sample, computed as round(fp * log(x+1)) and inverted
  as exp(code/fp)-1. Unlike Linear there is no differencing and no
  variable-length packing; every sample costs exactly two bytes.

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

	"github.com/pkg/errors"
)

func encodeSlof(xs []float64, fp float64) ([]byte, error) {
	if fp <= 0 {
		return nil, errors.New("slof: fixed point must be > 0")
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, fp); err != nil {
		return nil, err
	}
	for _, x := range xs {
		if x < 0 {
			return nil, errors.New("slof: negative sample")
		}
		code := math.Round(fp * math.Log(x+1))
		if code < 0 {
			code = 0
		}
		if code > slofMaxCode {
			code = slofMaxCode
		}
		if err := binary.Write(&buf, binary.LittleEndian, uint16(code)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeSlof(in []byte) ([]float64, error) {
	r := bytes.NewReader(in)

	var fp float64
	if err := binary.Read(r, binary.LittleEndian, &fp); err != nil {
		return nil, errors.Wrap(err, "slof: reading fixed point")
	}
	if fp <= 0 {
		return nil, errors.New("slof: fixed point must be > 0")
	}

	n := r.Len() / 2
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		var code uint16
		if err := binary.Read(r, binary.LittleEndian, &code); err != nil {
			return nil, errors.Wrap(err, "slof: reading sample")
		}
		out = append(out, math.Exp(float64(code)/fp)-1)
	}
	return out, nil
}
