/*
NAME
  binarray.go

DESCRIPTION
  binarray.go transcodes one mzML binary data array axis (m/z/time or
  intensity) between a []float64 in memory and the on-disk byte
  encoding: an optional Numpress pass, an optional zlib pass, and
  base64 framing for CDATA text. CVParams records which controlled
  vocabulary accessions describe the bytes actually produced, so a
  container writer can stamp the matching <cvParam> elements without
  re-deriving them from the axis configuration at read time.

AUTHORS
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package binarray transcodes mzML <binaryDataArray> payloads: an axis of
// float64 samples to and from Numpress-compressed, zlib-compressed,
// base64-framed bytes.
package binarray

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/massflow/mzflow/codec/numpress"
	"github.com/massflow/mzflow/config"
)

// Axis distinguishes the two families of binary data array found in an
// mzML spectrum or chromatogram.
type Axis int

const (
	// AxisMZOrTime covers both m/z arrays (spectra) and time arrays
	// (chromatograms): both default to 64-bit precision and share the
	// same encode/decode path.
	AxisMZOrTime Axis = iota
	AxisIntensity
)

// Controlled-vocabulary accessions from the PSI-MS ontology, named by
// constant rather than re-derived, per the binary data array encoding
// table.
const (
	CV64BitFloat      = "MS:1000523"
	CV32BitFloat      = "MS:1000521"
	CVZlibCompression = "MS:1000574"
	CVNoCompression   = "MS:1000576"
	CVMZArray         = "MS:1000514"
	CVIntensityArray  = "MS:1000515"
	CVTimeArray       = "MS:1000595"
	CVNumpressLinear  = "MS:1002312"
	CVNumpressPic     = "MS:1002313"
	CVNumpressSlof    = "MS:1002314"
)

// CVParams are the accessions describing the bytes produced by EncodeAxis,
// to be stamped onto the enclosing <binaryDataArray> by the container
// writer.
type CVParams struct {
	// Precision is CV64BitFloat or CV32BitFloat; empty when Numpress is
	// in use (Numpress payloads carry their own precision).
	Precision string

	// Compression is CVZlibCompression or CVNoCompression.
	Compression string

	// Numpress is one of CVNumpressLinear/Pic/Slof, or empty when
	// Numpress is disabled or fell back to uncompressed output.
	Numpress string
}

// EncodeAxis runs raw through the numpress?->zlib?->base64 pipeline
// described by opts and returns the encoded bytes alongside the CV
// accessions describing them, ready for mzML CDATA text. Empty input
// yields empty output.
func EncodeAxis(axis Axis, raw []float64, opts config.AxisCodec) ([]byte, CVParams, error) {
	payload, cv, err := EncodeAxisBlob(axis, raw, opts)
	if err != nil {
		return nil, CVParams{}, err
	}
	if payload == nil {
		return nil, cv, nil
	}
	out := make([]byte, base64.StdEncoding.EncodedLen(len(payload)))
	base64.StdEncoding.Encode(out, payload)
	return out, cv, nil
}

// DecodeAxis reverses EncodeAxis given the CV params recorded for data.
func DecodeAxis(axis Axis, data []byte, cv CVParams) ([]float64, error) {
	if len(data) == 0 {
		return nil, nil
	}
	payload := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(payload, data)
	if err != nil {
		return nil, errors.Wrap(err, "binarray: base64 decode")
	}
	return DecodeAxisBlob(axis, payload[:n], cv)
}

// EncodeAxisBlob runs raw through the numpress?->zlib? pipeline without
// the final base64 framing, for back-ends that store bytes directly
// (e.g. a BLOB column). Empty input yields empty output.
func EncodeAxisBlob(axis Axis, raw []float64, opts config.AxisCodec) ([]byte, CVParams, error) {
	if len(raw) == 0 {
		return nil, CVParams{}, nil
	}

	var cv CVParams

	payload, numpressed, err := encodeNumpress(raw, opts)
	if err != nil {
		return nil, CVParams{}, errors.Wrap(err, "binarray: numpress")
	}
	if numpressed {
		cv.Numpress = numpressAccession(opts.NumpressKind)
	} else {
		payload = encodeFloats(raw, opts.Precision64)
		if opts.Precision64 {
			cv.Precision = CV64BitFloat
		} else {
			cv.Precision = CV32BitFloat
		}
	}

	if opts.ZlibCompression {
		compressed, err := deflate(payload)
		if err != nil {
			return nil, CVParams{}, errors.Wrap(err, "binarray: zlib")
		}
		payload = compressed
		cv.Compression = CVZlibCompression
	} else {
		cv.Compression = CVNoCompression
	}

	return payload, cv, nil
}

// DecodeAxisBlob reverses EncodeAxisBlob given the CV params recorded
// for data.
func DecodeAxisBlob(axis Axis, payload []byte, cv CVParams) ([]float64, error) {
	if len(payload) == 0 {
		return nil, nil
	}

	var err error
	if cv.Compression == CVZlibCompression {
		payload, err = inflate(payload)
		if err != nil {
			return nil, errors.Wrap(err, "binarray: zlib inflate")
		}
	}

	if kind, ok := numpressKind(cv.Numpress); ok {
		xs, err := numpress.Decode(kind, payload)
		if err != nil {
			return nil, errors.Wrap(err, "binarray: numpress decode")
		}
		return xs, nil
	}

	return decodeFloats(payload, cv.Precision == CV64BitFloat)
}

func encodeNumpress(raw []float64, opts config.AxisCodec) ([]byte, bool, error) {
	if opts.NumpressKind == config.NumpressNone {
		return nil, false, nil
	}
	kind, ok := numpressKind(numpressAccession(opts.NumpressKind))
	if !ok {
		return nil, false, errors.New("binarray: unknown numpress kind")
	}
	out, err := numpress.Encode(kind, raw, numpress.Config{
		FixedPoint:         opts.NumpressFixedPoint,
		EstimateFixedPoint: true,
		MassAccuracy:       opts.NumpressMassAccuracy,
		ErrorTolerance:     opts.NumpressTolerance,
	})
	if err != nil {
		return nil, false, err
	}
	if out == nil {
		// Numeric fallback: verification failed, encode uncompressed.
		return nil, false, nil
	}
	return out, true, nil
}

func numpressAccession(kind int) string {
	switch kind {
	case config.NumpressLinear:
		return CVNumpressLinear
	case config.NumpressPic:
		return CVNumpressPic
	case config.NumpressSlof:
		return CVNumpressSlof
	default:
		return ""
	}
}

func numpressKind(accession string) (numpress.Kind, bool) {
	switch accession {
	case CVNumpressLinear:
		return numpress.Linear, true
	case CVNumpressPic:
		return numpress.Pic, true
	case CVNumpressSlof:
		return numpress.Slof, true
	default:
		return 0, false
	}
}

func encodeFloats(xs []float64, precision64 bool) []byte {
	if precision64 {
		buf := make([]byte, 8*len(xs))
		for i, x := range xs {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
		}
		return buf
	}
	buf := make([]byte, 4*len(xs))
	for i, x := range xs {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(x)))
	}
	return buf
}

func decodeFloats(buf []byte, precision64 bool) ([]float64, error) {
	if precision64 {
		if len(buf)%8 != 0 {
			return nil, errors.New("binarray: 64-bit payload not a multiple of 8 bytes")
		}
		out := make([]float64, len(buf)/8)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		}
		return out, nil
	}
	if len(buf)%4 != 0 {
		return nil, errors.New("binarray: 32-bit payload not a multiple of 4 bytes")
	}
	out := make([]float64, len(buf)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])))
	}
	return out, nil
}

func deflate(in []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(in); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflate(in []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
