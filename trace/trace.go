/*
NAME
  trace.go

DESCRIPTION
  trace.go implements mass-trace detection: grouping centroided MS1 peaks
  across consecutive scans into ion traces by apex-seeded growth, then
  estimating each trace's fwhm, quantity and m/z spread.

AUTHORS
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package trace detects mass traces (ions followed across consecutive MS1
// scans) from a run's spectra.
package trace

import (
	"math"
	"sort"
	"sync"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/massflow/mzflow/ms"
)

// Params configures mass-trace detection.
type Params struct {
	// MZTolerancePPM bounds the m/z distance a candidate peak may be from
	// the running centroid to extend a trace.
	MZTolerancePPM float64

	// MinTraceLength is the minimum accepted rt span, in seconds.
	MinTraceLength float64

	// MinPeaks is the minimum accepted peak count.
	MinPeaks int

	// IntensityFloor discards apex candidates below this intensity before
	// growth begins.
	IntensityFloor float32

	// MaxGapScans is the number of consecutive scans without a matching
	// peak tolerated before growth in that direction stops.
	MaxGapScans int

	// Quant selects area or median quantitation over the fwhm window.
	Quant ms.QuantMethod

	// Smooth enables a Hamming-windowed smoothed-intensity buffer, used
	// in place of raw intensity during fwhm estimation.
	Smooth bool
}

func (p Params) withDefaults() Params {
	if p.MaxGapScans <= 0 {
		p.MaxGapScans = 1
	}
	if p.MinPeaks <= 0 {
		p.MinPeaks = 1
	}
	return p
}

type apex struct {
	scan, peak int
	intensity  float32
}

// Detect groups peaks across the MS1 spectra in spectra into mass traces.
// Non-MS1 spectra are skipped without perturbing the scan indexing used
// internally for growth. Traces are returned in apex-intensity-descending
// insertion order; callers needing rt order should sort with ByRT.
func Detect(spectra []ms.Spectrum, params Params) []ms.MassTrace {
	params = params.withDefaults()

	var ms1 []ms.Spectrum
	for _, s := range spectra {
		if s.MSLevel == 1 {
			ms1 = append(ms1, s)
		}
	}
	if len(ms1) == 0 {
		return nil
	}

	used := make([][]bool, len(ms1))
	for i, s := range ms1 {
		used[i] = make([]bool, len(s.Peaks))
	}

	var apexes []apex
	for si, s := range ms1 {
		for pi, pk := range s.Peaks {
			if pk.Intensity < params.IntensityFloor {
				continue
			}
			apexes = append(apexes, apex{scan: si, peak: pi, intensity: pk.Intensity})
		}
	}
	sort.Slice(apexes, func(i, j int) bool { return apexes[i].intensity > apexes[j].intensity })

	var out []ms.MassTrace
	for _, a := range apexes {
		if used[a.scan][a.peak] {
			continue
		}
		tr, ok := grow(ms1, used, a, params)
		if !ok {
			continue
		}
		out = append(out, tr)
	}
	return out
}

// centroid tracks the incrementally-updated weighted m/z mean using the
// numerator/denominator form, numerically preferred over a running pair.
type centroid struct{ num, den float64 }

func (c *centroid) add(mz, intensity float64) { c.num += mz * intensity; c.den += intensity }

func (c *centroid) mz() float64 {
	if c.den == 0 {
		return 0
	}
	return c.num / c.den
}

func grow(ms1 []ms.Spectrum, used [][]bool, seed apex, params Params) (ms.MassTrace, bool) {
	seedPk := ms1[seed.scan].Peaks[seed.peak]
	used[seed.scan][seed.peak] = true

	var c centroid
	c.add(seedPk.MZ, float64(seedPk.Intensity))
	mid := ms.Peak2D{RT: ms1[seed.scan].RT, MZ: seedPk.MZ, Intensity: seedPk.Intensity}

	var forward, backward []ms.Peak2D

	gap := 0
	for si := seed.scan + 1; si < len(ms1); si++ {
		pi, ok := nearestWithin(ms1[si].Peaks, used[si], c.mz(), params.MZTolerancePPM)
		if !ok {
			gap++
			if gap > params.MaxGapScans {
				break
			}
			continue
		}
		gap = 0
		pk := ms1[si].Peaks[pi]
		used[si][pi] = true
		c.add(pk.MZ, float64(pk.Intensity))
		forward = append(forward, ms.Peak2D{RT: ms1[si].RT, MZ: pk.MZ, Intensity: pk.Intensity})
	}

	gap = 0
	for si := seed.scan - 1; si >= 0; si-- {
		pi, ok := nearestWithin(ms1[si].Peaks, used[si], c.mz(), params.MZTolerancePPM)
		if !ok {
			gap++
			if gap > params.MaxGapScans {
				break
			}
			continue
		}
		gap = 0
		pk := ms1[si].Peaks[pi]
		used[si][pi] = true
		c.add(pk.MZ, float64(pk.Intensity))
		backward = append(backward, ms.Peak2D{RT: ms1[si].RT, MZ: pk.MZ, Intensity: pk.Intensity})
	}

	peaks := make([]ms.Peak2D, 0, len(backward)+1+len(forward))
	for i := len(backward) - 1; i >= 0; i-- {
		peaks = append(peaks, backward[i])
	}
	peaks = append(peaks, mid)
	peaks = append(peaks, forward...)

	if len(peaks) < params.MinPeaks {
		return ms.MassTrace{}, false
	}
	if rtSpan := peaks[len(peaks)-1].RT - peaks[0].RT; rtSpan < params.MinTraceLength {
		return ms.MassTrace{}, false
	}

	tr := ms.MassTrace{Peaks: peaks, CentroidMZ: c.mz(), Quant: params.Quant}
	if params.Smooth && len(peaks) > 1 {
		tr.Smoothed = smooth(peaks)
	}

	estimate(&tr)
	if tr.Quantity == 0 {
		return ms.MassTrace{}, false
	}
	return tr, true
}

func nearestWithin(peaks []ms.Peak1D, used []bool, centroidMZ, tolPPM float64) (int, bool) {
	best := -1
	bestDelta := math.Inf(1)
	tol := centroidMZ * tolPPM * 1e-6
	for i, pk := range peaks {
		if used[i] {
			continue
		}
		delta := math.Abs(pk.MZ - centroidMZ)
		if delta > tol {
			continue
		}
		if delta < bestDelta {
			bestDelta = delta
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// estimate fills in fwhm, quantity, centroid rt and m/z standard deviation
// for tr, whose Peaks and CentroidMZ are already populated.
func estimate(tr *ms.MassTrace) {
	n := len(tr.Peaks)
	rts := make([]float64, n)
	mzs := make([]float64, n)
	weights := make([]float64, n)
	for i, pk := range tr.Peaks {
		rts[i] = pk.RT
		mzs[i] = pk.MZ
		weights[i] = float64(pk.Intensity)
	}
	tr.CentroidRT = stat.Mean(rts, weights)
	if n > 1 {
		tr.MZStdDev = stat.StdDev(mzs, weights)
	}

	if n == 1 {
		// Single-peak traces bypass the fwhm estimator and inherit the
		// peak's own values.
		tr.FWHM = 0
		tr.FWHMStart, tr.FWHMEnd = 0, 0
		tr.Quantity = float64(tr.Peaks[0].Intensity)
		return
	}

	intensities := make([]float64, n)
	for i, pk := range tr.Peaks {
		if len(tr.Smoothed) == n {
			intensities[i] = tr.Smoothed[i]
		} else {
			intensities[i] = float64(pk.Intensity)
		}
	}
	maxIdx := 0
	for i, v := range intensities {
		if v > intensities[maxIdx] {
			maxIdx = i
		}
	}
	halfMax := intensities[maxIdx] / 2

	start := maxIdx
	for start > 0 && intensities[start-1] >= halfMax {
		start--
	}
	end := maxIdx
	for end < n-1 && intensities[end+1] >= halfMax {
		end++
	}
	tr.FWHMStart, tr.FWHMEnd = start, end
	tr.FWHM = tr.Peaks[end].RT - tr.Peaks[start].RT

	win := tr.Peaks[start : end+1]
	if tr.Quant == ms.QuantMedian {
		vals := make([]float64, len(win))
		for i, pk := range win {
			vals[i] = float64(pk.Intensity)
		}
		sort.Float64s(vals)
		tr.Quantity = median(vals)
		return
	}

	winRT := make([]float64, len(win))
	winY := make([]float64, len(win))
	for i, pk := range win {
		winRT[i] = pk.RT
		winY[i] = float64(pk.Intensity)
	}
	tr.Quantity = trapezoidalArea(winRT, winY)
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func trapezoidalArea(xs, ys []float64) float64 {
	if len(xs) < 2 {
		if len(ys) == 1 {
			return ys[0]
		}
		return 0
	}
	segments := make([]float64, len(xs)-1)
	for i := 0; i < len(xs)-1; i++ {
		segments[i] = (xs[i+1] - xs[i]) * (ys[i+1] + ys[i]) / 2
	}
	return floats.Sum(segments)
}

// smooth produces a Hamming-windowed moving average of the trace's
// intensities, one entry per peak.
func smooth(peaks []ms.Peak2D) []float64 {
	n := len(peaks)
	radius := n / 10
	if radius < 1 {
		radius = 1
	}
	size := 2*radius + 1
	if size > n {
		size = n
		if size%2 == 0 {
			size--
		}
		radius = size / 2
	}
	kernel := window.Hamming(size)
	total := floats.Sum(kernel)
	for i := range kernel {
		kernel[i] /= total
	}

	out := make([]float64, n)
	for i := range peaks {
		var acc float64
		for k := -radius; k <= radius; k++ {
			idx := i + k
			switch {
			case idx < 0:
				idx = 0
			case idx >= n:
				idx = n - 1
			}
			acc += float64(peaks[idx].Intensity) * kernel[k+radius]
		}
		out[i] = acc
	}
	return out
}

// DetectParallel runs Detect independently across perFileSpectra using a
// bounded worker pool, generalizing the teacher's fixed 4-goroutine
// row-worker pattern to a configurable worker count over independent
// files rather than image rows.
func DetectParallel(perFileSpectra [][]ms.Spectrum, params Params, workers int) [][]ms.MassTrace {
	if workers <= 0 {
		workers = 4
	}
	out := make([][]ms.MassTrace, len(perFileSpectra))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = Detect(perFileSpectra[i], params)
			}
		}()
	}
	for i := range perFileSpectra {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return out
}

// ByRT sorts a []ms.MassTrace by CentroidRT ascending, for callers that
// need rt order; Detect itself returns apex-insertion order and does not
// sort internally.
type ByRT []ms.MassTrace

func (b ByRT) Len() int           { return len(b) }
func (b ByRT) Less(i, j int) bool { return b[i].CentroidRT < b[j].CentroidRT }
func (b ByRT) Swap(i, j int)      { b[i], b[j] = b[j], b[i] }
