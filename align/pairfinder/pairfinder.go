/*
NAME
  pairfinder.go

DESCRIPTION
  pairfinder.go implements the stable feature-pair matcher: a mutual
  nearest/second-nearest-neighbor match between exactly two consensus
  feature maps, committed only when both sides agree and the gap test
  passes, with unpaired features emitted as quality-0 singletons.

AUTHORS
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package pairfinder matches features between two consensus maps using a
// stable, mutual-nearest-neighbor pairing rule.
package pairfinder

import (
	"math"
	"sort"

	"github.com/massflow/mzflow/ms"
)

// DistanceUnit selects whether m/z delta is measured in ppm or Da.
type DistanceUnit int

const (
	MZUnitPPM DistanceUnit = iota
	MZUnitDa
)

// Params configures the distance functor and the stable-pairing gap test.
type Params struct {
	MZWeight        float64
	RTWeight        float64
	IntensityWeight float64

	MZUnit DistanceUnit

	// MaxMZDifference and MaxRTDifference are the hard windows outside
	// which a pair is flagged invalid: it can still feed the
	// second-nearest distance, but never the nearest.
	MaxMZDifference float64
	MaxRTDifference float64

	// SecondNearestGap is the minimum ratio (>=1) by which a pair's
	// distance must be smaller than the second-nearest distance on both
	// sides to be committed.
	SecondNearestGap float64

	// UseIdentifications enables the identity-compatibility guard.
	UseIdentifications bool
}

func (p Params) withDefaults() Params {
	if p.SecondNearestGap < 1 {
		p.SecondNearestGap = 1
	}
	if p.MZWeight == 0 && p.RTWeight == 0 && p.IntensityWeight == 0 {
		p.MZWeight, p.RTWeight, p.IntensityWeight = 1, 1, 1
	}
	return p
}

const infDistance = math.MaxFloat64

// Match pairs consensus features between a and b, returning one consensus
// map containing both paired consensus features and unpaired singletons.
func Match(a, b ms.ConsensusMap, params Params) ms.ConsensusMap {
	params = params.withDefaults()
	if len(a.Features) == 0 && len(b.Features) == 0 {
		return ms.ConsensusMap{}
	}

	maxIntensity := 0.0
	for _, f := range a.Features {
		maxIntensity = math.Max(maxIntensity, f.Intensity)
	}
	for _, f := range b.Features {
		maxIntensity = math.Max(maxIntensity, f.Intensity)
	}

	nnIndexA := make([]int, len(a.Features))
	nnIndexB := make([]int, len(b.Features))
	bestA := make([]float64, len(a.Features))
	secondA := make([]float64, len(a.Features))
	bestB := make([]float64, len(b.Features))
	secondB := make([]float64, len(b.Features))
	for i := range nnIndexA {
		nnIndexA[i] = -1
		bestA[i], secondA[i] = infDistance, infDistance
	}
	for j := range nnIndexB {
		nnIndexB[j] = -1
		bestB[j], secondB[j] = infDistance, infDistance
	}

	for i, fa := range a.Features {
		for j, fb := range b.Features {
			if params.UseIdentifications && !compatibleIdentifications(fa, fb) {
				continue
			}
			d, valid := distance(fa, fb, maxIntensity, params)

			if d < secondA[i] {
				if valid && d < bestA[i] {
					secondA[i] = bestA[i]
					bestA[i] = d
					nnIndexA[i] = j
				} else {
					secondA[i] = d
				}
			}
			if d < secondB[j] {
				if valid && d < bestB[j] {
					secondB[j] = bestB[j]
					bestB[j] = d
					nnIndexB[j] = i
				} else {
					secondB[j] = d
				}
			}
		}
	}

	singletonA := make([]bool, len(a.Features))
	singletonB := make([]bool, len(b.Features))
	for i := range singletonA {
		singletonA[i] = true
	}
	for j := range singletonB {
		singletonB[j] = true
	}

	var result ms.ConsensusMap
	for i := range a.Features {
		j := nnIndexA[i]
		if j < 0 || bestA[i] == infDistance {
			continue
		}
		if bestA[i]*params.SecondNearestGap > secondA[i] {
			continue
		}
		if nnIndexB[j] != i {
			continue
		}
		if bestB[j]*params.SecondNearestGap > secondB[j] {
			continue
		}

		d := bestA[i]
		q0 := 1 - d*params.SecondNearestGap/secondA[i]
		q1 := 1 - d*params.SecondNearestGap/secondB[j]
		pairQuality := (1 - d) * q0 * q1

		fa, fb := a.Features[i], b.Features[j]
		size0 := maxInt(len(fa.Handles), 1)
		size1 := maxInt(len(fb.Handles), 1)
		priorQ0 := fa.Quality * float64(size0-1)
		priorQ1 := fb.Quality * float64(size1-1)
		quality := clampQuality((pairQuality + priorQ0 + priorQ1) / float64(size0+size1-1))

		result.Features = append(result.Features, mergeConsensusFeatures(fa, fb, quality))
		singletonA[i], singletonB[j] = false, false
	}

	for i, unpaired := range singletonA {
		if unpaired {
			result.Features = append(result.Features, singleton(a.Features[i]))
		}
	}
	for j, unpaired := range singletonB {
		if unpaired {
			result.Features = append(result.Features, singleton(b.Features[j]))
		}
	}

	sort.Slice(result.Features, func(i, j int) bool { return result.Features[i].MZ < result.Features[j].MZ })
	return result
}

// mergeConsensusFeatures combines fa and fb's handle maps (map-0 handles
// from fa, map-1 handles from fb) into one consensus feature at the
// midpoint mz/rt.
func mergeConsensusFeatures(fa, fb *ms.ConsensusFeature, quality float64) *ms.ConsensusFeature {
	handles := make(map[int]*ms.Feature, len(fa.Handles)+len(fb.Handles))
	for k, f := range fa.Handles {
		handles[k] = f
	}
	for k, f := range fb.Handles {
		handles[k] = f
	}
	return &ms.ConsensusFeature{
		MZ:        (fa.MZ + fb.MZ) / 2,
		RT:        (fa.RT + fb.RT) / 2,
		Intensity: fa.Intensity + fb.Intensity,
		Quality:   clampQuality(quality),
		Handles:   handles,
	}
}

func singleton(f *ms.ConsensusFeature) *ms.ConsensusFeature {
	if len(f.Handles) < 2 {
		cp := *f
		cp.Quality = 0
		return &cp
	}
	return f
}

func clampQuality(q float64) float64 {
	switch {
	case q < 0:
		return 0
	case q > 1:
		return 1
	default:
		return q
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// distance computes the weighted m/z/rt/intensity distance between fa and
// fb, normalized into roughly [0, inf), and reports whether the pair lies
// within the hard mz/rt windows (valid for nearest-neighbor purposes, but
// always usable for the second-nearest distance).
func distance(fa, fb *ms.ConsensusFeature, maxIntensity float64, params Params) (float64, bool) {
	mzDelta := math.Abs(fa.MZ - fb.MZ)
	if params.MZUnit == MZUnitPPM {
		mzDelta = mzDelta / fa.MZ * 1e6
	}
	rtDelta := math.Abs(fa.RT - fb.RT)

	var intensityDelta float64
	if maxIntensity > 0 {
		intensityDelta = math.Abs(fa.Intensity-fb.Intensity) / maxIntensity
	}

	mzNorm := 0.0
	if params.MaxMZDifference > 0 {
		mzNorm = mzDelta / params.MaxMZDifference
	}
	rtNorm := 0.0
	if params.MaxRTDifference > 0 {
		rtNorm = rtDelta / params.MaxRTDifference
	}

	d := params.MZWeight*mzNorm + params.RTWeight*rtNorm + params.IntensityWeight*intensityDelta
	d /= params.MZWeight + params.RTWeight + params.IntensityWeight

	valid := true
	if params.MaxMZDifference > 0 && mzDelta > params.MaxMZDifference {
		valid = false
	}
	if params.MaxRTDifference > 0 && rtDelta > params.MaxRTDifference {
		valid = false
	}
	return d, valid
}

// compatibleIdentifications reports whether fa and fb may be paired under
// the identity-compatibility guard: a feature without identifications
// always matches, otherwise the sets of best-hit sequences across all of
// each consensus feature's handles must be equal.
func compatibleIdentifications(fa, fb *ms.ConsensusFeature) bool {
	setA := sequenceSet(fa)
	setB := sequenceSet(fb)
	if len(setA) == 0 || len(setB) == 0 {
		return true
	}
	if len(setA) != len(setB) {
		return false
	}
	for s := range setA {
		if _, ok := setB[s]; !ok {
			return false
		}
	}
	return true
}

func sequenceSet(cf *ms.ConsensusFeature) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range cf.Handles {
		for _, id := range f.Identifications {
			for _, s := range id.Sequences {
				set[s] = struct{}{}
			}
		}
	}
	return set
}
