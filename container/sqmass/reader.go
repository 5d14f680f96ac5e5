/*
NAME
  reader.go

DESCRIPTION
  reader.go implements Reader, the pull side of the sqMass store: it
  streams rows out of SPECTRUM/CHROMATOGRAM/DATA/PRECURSOR in row ID
  (insertion) order, one item at a time, rather than loading an entire run into
  memory.

AUTHORS
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package sqmass

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ausocean/utils/logging"

	"github.com/massflow/mzflow/codec/binarray"
	"github.com/massflow/mzflow/ms"
	"github.com/massflow/mzflow/mzerr"
)

// Reader pulls spectra and chromatograms out of a sqMass database
// written by Writer.
type Reader struct {
	db  *sql.DB
	log logging.Logger
}

// NewReader opens a read-only view of the sqMass database at path.
func NewReader(path string, log logging.Logger) (*Reader, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, mzerr.Wrap(mzerr.IO, "opening sqmass database", err)
	}
	return &Reader{db: db, log: log}, nil
}

// Close closes the underlying database connection.
func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return mzerr.Wrap(mzerr.IO, "closing sqmass database", err)
	}
	return nil
}

// Spectra streams every SPECTRUM row, ordered by ID, calling fn once per
// spectrum with its decoded peaks and precursors.
func (r *Reader) Spectra(fn func(ms.Spectrum) error) error {
	rows, err := r.db.Query(`SELECT ID, NATIVE_ID, MS_LEVEL, SCAN_POLARITY, RETENTION_TIME FROM SPECTRUM ORDER BY ID`)
	if err != nil {
		return mzerr.Wrap(mzerr.IO, "querying spectra", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var s ms.Spectrum
		if err := rows.Scan(&id, &s.NativeID, &s.MSLevel, &s.Polarity, &s.RT); err != nil {
			return mzerr.Wrap(mzerr.IO, "scanning spectrum row", err)
		}

		mzs, err := r.readData(id, 0, DataTypeMZ)
		if err != nil {
			return err
		}
		intensities, err := r.readData(id, 0, DataTypeIntensity)
		if err != nil {
			return err
		}
		if len(mzs) != len(intensities) {
			return mzerr.New(mzerr.IO, "mismatched mz/intensity array lengths")
		}
		s.Peaks = make([]ms.Peak1D, len(mzs))
		for i := range mzs {
			s.Peaks[i] = ms.Peak1D{MZ: mzs[i], Intensity: float32(intensities[i])}
		}

		precs, err := r.readPrecursors(id)
		if err != nil {
			return err
		}
		s.Precursors = precs

		if err := fn(s); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Chromatograms streams every CHROMATOGRAM row, ordered by ID, calling
// fn once per chromatogram with its decoded points.
func (r *Reader) Chromatograms(fn func(ms.Chromatogram) error) error {
	rows, err := r.db.Query(`SELECT ID, NATIVE_ID, PRECURSOR_MZ, PRODUCT_MZ FROM CHROMATOGRAM ORDER BY ID`)
	if err != nil {
		return mzerr.Wrap(mzerr.IO, "querying chromatograms", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var c ms.Chromatogram
		if err := rows.Scan(&id, &c.NativeID, &c.PrecursorMZ, &c.ProductMZ); err != nil {
			return mzerr.Wrap(mzerr.IO, "scanning chromatogram row", err)
		}

		rts, err := r.readData(0, id, DataTypeTime)
		if err != nil {
			return err
		}
		intensities, err := r.readData(0, id, DataTypeIntensity)
		if err != nil {
			return err
		}
		if len(rts) != len(intensities) {
			return mzerr.New(mzerr.IO, "mismatched rt/intensity array lengths")
		}
		c.Points = make([]ms.ChromPoint, len(rts))
		for i := range rts {
			c.Points[i] = ms.ChromPoint{RT: rts[i], Intensity: float32(intensities[i])}
		}

		if err := fn(c); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *Reader) readData(spectrumID, chromatogramID int64, dataType DataType) ([]float64, error) {
	var specFilter, chromFilter interface{}
	if spectrumID != 0 {
		specFilter = spectrumID
	}
	if chromatogramID != 0 {
		chromFilter = chromatogramID
	}

	var compression int
	var data []byte
	err := r.db.QueryRow(
		`SELECT COMPRESSION, DATA FROM DATA WHERE SPECTRUM_ID IS ? AND CHROMATOGRAM_ID IS ? AND DATA_TYPE = ?`,
		specFilter, chromFilter, int(dataType)).Scan(&compression, &data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mzerr.Wrap(mzerr.IO, "querying data row", err)
	}

	return binarray.DecodeAxisBlob(binarray.AxisMZOrTime, data, cvFromCompression(Compression(compression)))
}

func (r *Reader) readPrecursors(spectrumID int64) ([]ms.Precursor, error) {
	rows, err := r.db.Query(
		`SELECT ISOLATION_TARGET_MZ, ISOLATION_WINDOW_LOWER, ISOLATION_WINDOW_UPPER, CHARGE FROM PRECURSOR WHERE SPECTRUM_ID = ?`,
		spectrumID)
	if err != nil {
		return nil, mzerr.Wrap(mzerr.IO, "querying precursors", err)
	}
	defer rows.Close()

	var out []ms.Precursor
	for rows.Next() {
		var p ms.Precursor
		if err := rows.Scan(&p.MZ, &p.IsolationWindowLower, &p.IsolationWindowUpper, &p.Charge); err != nil {
			return nil, mzerr.Wrap(mzerr.IO, "scanning precursor row", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func cvFromCompression(c Compression) binarray.CVParams {
	switch c {
	case CompressionZlib:
		return binarray.CVParams{Compression: binarray.CVZlibCompression, Precision: binarray.CV64BitFloat}
	case CompressionNumpressLinear:
		return binarray.CVParams{Numpress: binarray.CVNumpressLinear}
	case CompressionNumpressPic:
		return binarray.CVParams{Numpress: binarray.CVNumpressPic}
	case CompressionNumpressSlof:
		return binarray.CVParams{Numpress: binarray.CVNumpressSlof}
	default:
		return binarray.CVParams{Compression: binarray.CVNoCompression, Precision: binarray.CV64BitFloat}
	}
}
