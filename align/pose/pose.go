/*
NAME
  pose.go

DESCRIPTION
  pose.go implements pose-clustering alignment: candidate feature
  correspondences between a reference and target map vote into a 2D
  (slope, intercept) histogram, the densest bin seeds an initial affine
  model, and a refinement pass recomputes ordinary least squares over the
  inlier pairs.

AUTHORS
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package pose aligns a target feature map onto a reference feature map's
// retention-time axis using pose-clustering.
package pose

import (
	"math"
	"sort"
	"sync"

	"github.com/massflow/mzflow/align/model"
	"github.com/massflow/mzflow/ms"
	"github.com/massflow/mzflow/mzerr"
)

// Params configures pose-clustering alignment.
type Params struct {
	// MZTolerance is the advisory m/z window within which a (ref, tgt)
	// feature pair is considered a candidate correspondence.
	MZTolerance float64

	// MaxPeaksConsidered caps each map's features to the top-intensity
	// subset before correspondences are formed, bounding runtime.
	MaxPeaksConsidered int

	// RTTolerance bounds how far a correspondence's predicted rt may be
	// from its actual rt under the seed model to count as an inlier
	// during refinement.
	RTTolerance float64

	// MinPairs is the minimum number of compatible correspondences (and
	// inliers) required to avoid a degenerate, identity-fallback result.
	MinPairs int

	// SlopeBinWidth and InterceptBinWidth quantize the (slope,
	// intercept) vote histogram.
	SlopeBinWidth     float64
	InterceptBinWidth float64
}

func (p Params) withDefaults() Params {
	if p.MaxPeaksConsidered <= 0 {
		p.MaxPeaksConsidered = 1000
	}
	if p.MinPairs <= 0 {
		p.MinPairs = 3
	}
	if p.SlopeBinWidth <= 0 {
		p.SlopeBinWidth = 0.01
	}
	if p.InterceptBinWidth <= 0 {
		p.InterceptBinWidth = 1.0
	}
	return p
}

// Report describes the outcome of an alignment attempt.
type Report struct {
	// Degenerate is true when too few compatible correspondences were
	// found and Align fell back to the identity model.
	Degenerate bool

	CandidateCorrespondences int
	InlierPairs              int
}

type correspondence struct {
	ref, tgt *ms.Feature
	weight   float64
}

// Align estimates an affine rt_target -> rt_reference transform between
// ref and tgt. Too few compatible correspondences is reported as
// Report.Degenerate rather than returned as an error, since aligning a map
// to itself must always succeed (an abundance of exact matches at a=1,
// b=0) and a hard failure here would be surprising.
func Align(ref, tgt ms.FeatureMap, params Params) (model.Model, Report, error) {
	params = params.withDefaults()

	refFeatures := topIntensity(ref.Features, params.MaxPeaksConsidered)
	tgtFeatures := topIntensity(tgt.Features, params.MaxPeaksConsidered)
	maxRefI, maxTgtI := maxIntensity(refFeatures), maxIntensity(tgtFeatures)

	var cands []correspondence
	for _, rf := range refFeatures {
		for _, tf := range tgtFeatures {
			if math.Abs(rf.MZ-tf.MZ) >= params.MZTolerance {
				continue
			}
			w := normalize(rf.Intensity, maxRefI) * normalize(tf.Intensity, maxTgtI)
			cands = append(cands, correspondence{ref: rf, tgt: tf, weight: w})
		}
	}

	if len(cands) < params.MinPairs {
		return model.NewIdentity(), Report{Degenerate: true, CandidateCorrespondences: len(cands)}, nil
	}

	type bin struct{ slope, intercept, votes float64 }
	votes := make(map[[2]int64]*bin)
	for i := 0; i < len(cands); i++ {
		for j := i + 1; j < len(cands); j++ {
			a, b, ok := solveAffine(cands[i], cands[j])
			if !ok {
				continue
			}
			key := [2]int64{
				int64(math.Round(a / params.SlopeBinWidth)),
				int64(math.Round(b / params.InterceptBinWidth)),
			}
			w := cands[i].weight * cands[j].weight
			bn, ok := votes[key]
			if !ok {
				bn = &bin{}
				votes[key] = bn
			}
			bn.slope += a * w
			bn.intercept += b * w
			bn.votes += w
		}
	}

	if len(votes) == 0 {
		return model.NewIdentity(), Report{Degenerate: true, CandidateCorrespondences: len(cands)}, nil
	}

	var best *bin
	for _, bn := range votes {
		if best == nil || bn.votes > best.votes {
			best = bn
		}
	}
	a0, b0 := best.slope/best.votes, best.intercept/best.votes

	var inlierTgt, inlierRef []float64
	for _, c := range cands {
		predicted := a0*c.tgt.RT + b0
		if math.Abs(predicted-c.ref.RT) <= params.RTTolerance {
			inlierTgt = append(inlierTgt, c.tgt.RT)
			inlierRef = append(inlierRef, c.ref.RT)
		}
	}
	if len(inlierTgt) < params.MinPairs {
		return model.NewIdentity(), Report{Degenerate: true, CandidateCorrespondences: len(cands)}, nil
	}

	m, err := model.NewLinear(inlierTgt, inlierRef)
	if err != nil {
		return nil, Report{}, mzerr.Wrap(mzerr.Numeric, "refining pose-clustering alignment", err)
	}
	return m, Report{CandidateCorrespondences: len(cands), InlierPairs: len(inlierTgt)}, nil
}

// solveAffine returns the unique (slope, intercept) satisfying
// ref.RT = a*tgt.RT + b for both correspondences, or ok=false when their
// target rts coincide.
func solveAffine(c1, c2 correspondence) (a, b float64, ok bool) {
	if c1.tgt.RT == c2.tgt.RT {
		return 0, 0, false
	}
	a = (c1.ref.RT - c2.ref.RT) / (c1.tgt.RT - c2.tgt.RT)
	b = c1.ref.RT - a*c1.tgt.RT
	return a, b, true
}

func topIntensity(features []*ms.Feature, max int) []*ms.Feature {
	if len(features) <= max {
		return features
	}
	sorted := make([]*ms.Feature, len(features))
	copy(sorted, features)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Intensity > sorted[j].Intensity })
	return sorted[:max]
}

func maxIntensity(features []*ms.Feature) float64 {
	max := 0.0
	for _, f := range features {
		if f.Intensity > max {
			max = f.Intensity
		}
	}
	return max
}

func normalize(v, max float64) float64 {
	if max == 0 {
		return 0
	}
	return v / max
}

// AlignParallel aligns many target maps against one reference concurrently,
// mirroring trace.DetectParallel's worker-pool shape.
func AlignParallel(ref ms.FeatureMap, targets []ms.FeatureMap, params Params, workers int) ([]model.Model, []Report, error) {
	if workers <= 0 {
		workers = 4
	}
	models := make([]model.Model, len(targets))
	reports := make([]Report, len(targets))
	errs := make([]error, len(targets))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				m, r, err := Align(ref, targets[i], params)
				models[i], reports[i], errs[i] = m, r, err
			}
		}()
	}
	for i := range targets {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, nil, err
		}
	}
	return models, reports, nil
}
