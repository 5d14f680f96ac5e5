/*
NAME
  writer.go

DESCRIPTION
  writer.go implements Writer, a Consumer back-end that stores spectra
  and chromatograms in a single-file SQLite database. Grounded on the
  DBKey sqlite.Writer pattern: one *sql.DB and a Close step that flushes
  the last batch, commits and closes. Bulk-insert pragmas and batched
  transactions follow the sqMass write protocol.

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
	"github.com/massflow/mzflow/config"
	"github.com/massflow/mzflow/ms"
	"github.com/massflow/mzflow/mzerr"
)

const schema = `
CREATE TABLE IF NOT EXISTS RUN (
	ID INTEGER PRIMARY KEY,
	FILENAME TEXT,
	NATIVE_ID TEXT,
	SAMPLE_NAME TEXT
);

CREATE TABLE IF NOT EXISTS RUN_EXTRA (
	RUN_ID INTEGER REFERENCES RUN(ID),
	METADATA BLOB
);

CREATE TABLE IF NOT EXISTS SPECTRUM (
	ID INTEGER PRIMARY KEY,
	RUN_ID INTEGER REFERENCES RUN(ID),
	NATIVE_ID TEXT,
	MS_LEVEL INTEGER,
	SCAN_POLARITY TEXT,
	RETENTION_TIME REAL
);

CREATE TABLE IF NOT EXISTS CHROMATOGRAM (
	ID INTEGER PRIMARY KEY,
	RUN_ID INTEGER REFERENCES RUN(ID),
	NATIVE_ID TEXT,
	PRECURSOR_MZ REAL,
	PRODUCT_MZ REAL
);

CREATE TABLE IF NOT EXISTS DATA (
	SPECTRUM_ID INTEGER REFERENCES SPECTRUM(ID),
	CHROMATOGRAM_ID INTEGER REFERENCES CHROMATOGRAM(ID),
	DATA_TYPE INTEGER,
	COMPRESSION INTEGER,
	DATA BLOB
);

CREATE TABLE IF NOT EXISTS PRECURSOR (
	SPECTRUM_ID INTEGER REFERENCES SPECTRUM(ID),
	ISOLATION_TARGET_MZ REAL,
	ISOLATION_WINDOW_LOWER REAL,
	ISOLATION_WINDOW_UPPER REAL,
	CHARGE INTEGER
);

CREATE TABLE IF NOT EXISTS PRODUCT (
	CHROMATOGRAM_ID INTEGER REFERENCES CHROMATOGRAM(ID),
	ISOLATION_TARGET_MZ REAL,
	ISOLATION_WINDOW_LOWER REAL,
	ISOLATION_WINDOW_UPPER REAL
);
`

const bulkInsertPragmas = `
PRAGMA synchronous = OFF;
PRAGMA journal_mode = OFF;
`

// pendingItem is either a spectrum or a chromatogram, queued until the
// batch reaches its configured capacity.
type pendingItem struct {
	spectrum     *ms.Spectrum
	chromatogram *ms.Chromatogram
}

// Writer implements container/mzml.Consumer atop a single SQLite
// connection, batching up to opts.StreamPoolSize items per transaction.
type Writer struct {
	db  *sql.DB
	log logging.Logger

	mzCodec        config.AxisCodec
	intensityCodec config.AxisCodec
	batchSize      int

	runID int64

	nextSpectrumID     int64
	nextChromatogramID int64

	pending []pendingItem
	closed  bool
}

// NewWriter opens (creating if absent) a sqMass database at path,
// applies the bulk-insert pragmas, creates the schema if absent, and
// inserts the RUN row.
func NewWriter(path string, log logging.Logger, opts config.PeakFileOptions, settings ms.Settings) (*Writer, error) {
	// The DATA.compression column carries no precision bit, so any axis
	// not using Numpress (which fixes its own decode width) must be
	// 64-bit: there is nowhere in the schema to record 32-bit floats
	// unambiguously.
	for _, c := range []config.AxisCodec{opts.MZCodec, opts.IntensityCodec} {
		if c.NumpressKind == config.NumpressNone && !c.Precision64 {
			return nil, mzerr.New(mzerr.Configuration, "sqmass requires 64-bit precision for non-numpress axes")
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, mzerr.Wrap(mzerr.IO, "opening sqmass database", err)
	}

	if _, err := db.Exec(bulkInsertPragmas); err != nil {
		db.Close()
		return nil, mzerr.Wrap(mzerr.IO, "applying bulk-insert pragmas", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, mzerr.Wrap(mzerr.IO, "creating sqmass schema", err)
	}

	w := &Writer{
		db:             db,
		log:            log,
		mzCodec:        opts.MZCodec,
		intensityCodec: opts.IntensityCodec,
		batchSize:      opts.StreamPoolSize,
	}
	if w.batchSize <= 0 {
		w.batchSize = 1000
	}

	res, err := db.Exec(`INSERT INTO RUN (FILENAME, NATIVE_ID, SAMPLE_NAME) VALUES (?, ?, ?)`,
		settings.SourceFile, settings.RunID, settings.SampleName)
	if err != nil {
		db.Close()
		return nil, mzerr.Wrap(mzerr.IO, "inserting run row", err)
	}
	w.runID, err = res.LastInsertId()
	if err != nil {
		db.Close()
		return nil, mzerr.Wrap(mzerr.IO, "reading run id", err)
	}

	log.Debug("sqmass writer opened", "path", path, "runID", w.runID, "batchSize", w.batchSize)
	return w, nil
}

// SetExperimentalSettings is a no-op: the RUN row is written by
// NewWriter so the caller's settings are already recorded.
func (w *Writer) SetExperimentalSettings(ms.Settings) error { return nil }

// SetExpectedSize is a no-op for sqmass: expected counts are not
// enforced, per the write protocol.
func (w *Writer) SetExpectedSize(nSpectra, nChromatograms int) {}

// ConsumeSpectrum queues s, flushing the current batch if it is full. It
// is an error to call this after a chromatogram has been consumed.
func (w *Writer) ConsumeSpectrum(s ms.Spectrum) error {
	if w.nextChromatogramID > 0 || (len(w.pending) > 0 && w.pending[len(w.pending)-1].chromatogram != nil) {
		return mzerr.New(mzerr.ProtocolMisuse, "consumeSpectrum after chromatogram writing began")
	}
	w.pending = append(w.pending, pendingItem{spectrum: &s})
	if len(w.pending) >= w.batchSize {
		return w.flush()
	}
	return nil
}

// ConsumeChromatogram queues c, flushing the current batch if it is
// full.
func (w *Writer) ConsumeChromatogram(c ms.Chromatogram) error {
	w.pending = append(w.pending, pendingItem{chromatogram: &c})
	if len(w.pending) >= w.batchSize {
		return w.flush()
	}
	return nil
}

// Close flushes any remaining batch and closes the database connection.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.flush(); err != nil {
		w.db.Close()
		return err
	}
	w.log.Debug("closing sqmass writer", "spectra", w.nextSpectrumID, "chromatograms", w.nextChromatogramID)
	if err := w.db.Close(); err != nil {
		return mzerr.Wrap(mzerr.IO, "closing sqmass database", err)
	}
	return nil
}

func (w *Writer) flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	w.log.Debug("flushing sqmass batch", "items", len(w.pending))

	tx, err := w.db.Begin()
	if err != nil {
		return mzerr.Wrap(mzerr.IO, "beginning sqmass transaction", err)
	}

	for _, item := range w.pending {
		switch {
		case item.spectrum != nil:
			if err := w.insertSpectrum(tx, *item.spectrum); err != nil {
				tx.Rollback()
				return err
			}
		case item.chromatogram != nil:
			if err := w.insertChromatogram(tx, *item.chromatogram); err != nil {
				tx.Rollback()
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return mzerr.Wrap(mzerr.IO, "committing sqmass transaction", err)
	}
	w.pending = w.pending[:0]
	return nil
}

func (w *Writer) insertSpectrum(tx *sql.Tx, s ms.Spectrum) error {
	w.nextSpectrumID++
	id := w.nextSpectrumID

	if _, err := tx.Exec(
		`INSERT INTO SPECTRUM (ID, RUN_ID, NATIVE_ID, MS_LEVEL, SCAN_POLARITY, RETENTION_TIME) VALUES (?, ?, ?, ?, ?, ?)`,
		id, w.runID, s.NativeID, s.MSLevel, s.Polarity, s.RT); err != nil {
		return mzerr.Wrap(mzerr.IO, "inserting spectrum row", err)
	}

	mzs := make([]float64, len(s.Peaks))
	intensities := make([]float64, len(s.Peaks))
	for i, p := range s.Peaks {
		mzs[i] = p.MZ
		intensities[i] = float64(p.Intensity)
	}
	if err := w.insertData(tx, id, 0, DataTypeMZ, mzs, w.mzCodec); err != nil {
		return err
	}
	if err := w.insertData(tx, id, 0, DataTypeIntensity, intensities, w.intensityCodec); err != nil {
		return err
	}

	for _, p := range s.Precursors {
		if _, err := tx.Exec(
			`INSERT INTO PRECURSOR (SPECTRUM_ID, ISOLATION_TARGET_MZ, ISOLATION_WINDOW_LOWER, ISOLATION_WINDOW_UPPER, CHARGE) VALUES (?, ?, ?, ?, ?)`,
			id, p.MZ, p.IsolationWindowLower, p.IsolationWindowUpper, p.Charge); err != nil {
			return mzerr.Wrap(mzerr.IO, "inserting precursor row", err)
		}
	}
	return nil
}

func (w *Writer) insertChromatogram(tx *sql.Tx, c ms.Chromatogram) error {
	w.nextChromatogramID++
	id := w.nextChromatogramID

	if _, err := tx.Exec(
		`INSERT INTO CHROMATOGRAM (ID, RUN_ID, NATIVE_ID, PRECURSOR_MZ, PRODUCT_MZ) VALUES (?, ?, ?, ?, ?)`,
		id, w.runID, c.NativeID, c.PrecursorMZ, c.ProductMZ); err != nil {
		return mzerr.Wrap(mzerr.IO, "inserting chromatogram row", err)
	}

	rts := make([]float64, len(c.Points))
	intensities := make([]float64, len(c.Points))
	for i, p := range c.Points {
		rts[i] = p.RT
		intensities[i] = float64(p.Intensity)
	}
	if err := w.insertData(tx, 0, id, DataTypeTime, rts, w.mzCodec); err != nil {
		return err
	}
	if err := w.insertData(tx, 0, id, DataTypeIntensity, intensities, w.intensityCodec); err != nil {
		return err
	}
	return nil
}

func (w *Writer) insertData(tx *sql.Tx, spectrumID, chromatogramID int64, dataType DataType, xs []float64, codec config.AxisCodec) error {
	encoded, cv, err := binarray.EncodeAxisBlob(binarray.AxisMZOrTime, xs, codec)
	if err != nil {
		return mzerr.Wrap(mzerr.IO, "encoding sqmass data blob", err)
	}

	var specID, chromID interface{}
	if spectrumID != 0 {
		specID = spectrumID
	}
	if chromatogramID != 0 {
		chromID = chromatogramID
	}

	if _, err := tx.Exec(
		`INSERT INTO DATA (SPECTRUM_ID, CHROMATOGRAM_ID, DATA_TYPE, COMPRESSION, DATA) VALUES (?, ?, ?, ?, ?)`,
		specID, chromID, int(dataType), int(compressionFor(cv)), encoded); err != nil {
		return mzerr.Wrap(mzerr.IO, "inserting data row", err)
	}
	return nil
}
