/*
NAME
  sqmass.go

DESCRIPTION
  sqmass.go defines the compression/data-type enums pinned for the
  sqMass schema's DATA table, matching the external interface exactly:
  compression in {0 no compression, 1 zlib, 5 numpress-linear, 6
  numpress-pic, 8 numpress-slof}, data_type in {0 m/z, 1 intensity, 2
  retention time}.

AUTHORS
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package sqmass implements a single-file SQLite-backed relational store
// for spectra and chromatograms, as a Consumer back-end alternative to
// container/mzml.
package sqmass

import "github.com/massflow/mzflow/codec/binarray"

// Compression pins the exact integer codes the sqMass schema uses for
// DATA.compression. These are not re-derived from config.AxisCodec at
// read time; they are looked up from the CV accession recorded by
// codec/binarray.
type Compression int

const (
	CompressionNone           Compression = 0
	CompressionZlib           Compression = 1
	CompressionNumpressLinear Compression = 5
	CompressionNumpressPic    Compression = 6
	CompressionNumpressSlof   Compression = 8
)

// DataType pins the exact integer codes for DATA.data_type.
type DataType int

const (
	DataTypeMZ        DataType = 0
	DataTypeIntensity DataType = 1
	DataTypeTime      DataType = 2
)

// compressionFor derives the sqMass compression code from the CV params
// codec/binarray recorded for an encoded axis: Numpress takes priority
// over zlib, matching the pipeline order raw -> numpress? -> zlib?.
func compressionFor(cv binarray.CVParams) Compression {
	switch cv.Numpress {
	case binarray.CVNumpressLinear:
		return CompressionNumpressLinear
	case binarray.CVNumpressPic:
		return CompressionNumpressPic
	case binarray.CVNumpressSlof:
		return CompressionNumpressSlof
	}
	if cv.Compression == binarray.CVZlibCompression {
		return CompressionZlib
	}
	return CompressionNone
}
