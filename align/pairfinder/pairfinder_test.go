/*
NAME
  pairfinder_test.go

DESCRIPTION
  pairfinder_test.go contains tests for the pairfinder package.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package pairfinder

import (
	"testing"

	"github.com/massflow/mzflow/ms"
)

func cf(mapIdx int, mz, rt, intensity float64) *ms.ConsensusFeature {
	return &ms.ConsensusFeature{
		MZ: mz, RT: rt, Intensity: intensity,
		Handles: map[int]*ms.Feature{mapIdx: {MZ: mz, RT: rt, Intensity: intensity}},
	}
}

func defaultParams() Params {
	return Params{MaxMZDifference: 0.01, MaxRTDifference: 5, SecondNearestGap: 2}
}

// TestMatchIdenticalMaps exercises scenario S4: one map matched against an
// identical copy should pair every feature with itself, with quality 1 and
// no singletons.
func TestMatchIdenticalMaps(t *testing.T) {
	a := ms.ConsensusMap{Features: []*ms.ConsensusFeature{
		cf(0, 500, 100, 1000),
		cf(0, 600, 150, 2000),
		cf(0, 700, 200, 1500),
	}}
	b := ms.ConsensusMap{Features: []*ms.ConsensusFeature{
		cf(1, 500, 100, 1000),
		cf(1, 600, 150, 2000),
		cf(1, 700, 200, 1500),
	}}

	result := Match(a, b, defaultParams())
	if len(result.Features) != 3 {
		t.Fatalf("got %d consensus features, want 3 (no singletons)", len(result.Features))
	}
	for _, f := range result.Features {
		if len(f.Handles) != 2 {
			t.Errorf("feature at mz %v has %d handles, want 2", f.MZ, len(f.Handles))
		}
		if f.Quality < 0.999 {
			t.Errorf("feature at mz %v quality = %v, want ~1", f.MZ, f.Quality)
		}
	}
}

func TestMatchProducesSingletonsForUnmatched(t *testing.T) {
	a := ms.ConsensusMap{Features: []*ms.ConsensusFeature{cf(0, 500, 100, 1000)}}
	b := ms.ConsensusMap{Features: []*ms.ConsensusFeature{cf(1, 900, 400, 500)}}

	result := Match(a, b, defaultParams())
	if len(result.Features) != 2 {
		t.Fatalf("got %d features, want 2 singletons", len(result.Features))
	}
	for _, f := range result.Features {
		if f.Quality != 0 {
			t.Errorf("singleton quality = %v, want 0", f.Quality)
		}
		if len(f.Handles) != 1 {
			t.Errorf("singleton handle count = %d, want 1", len(f.Handles))
		}
	}
}

func TestMatchIdentificationGuardBlocksMismatch(t *testing.T) {
	a := ms.ConsensusMap{Features: []*ms.ConsensusFeature{{
		MZ: 500, RT: 100, Intensity: 1000,
		Handles: map[int]*ms.Feature{0: {
			MZ: 500, RT: 100, Intensity: 1000,
			Identifications: []ms.Identification{{Sequences: []string{"PEPTIDEA"}}},
		}},
	}}}
	b := ms.ConsensusMap{Features: []*ms.ConsensusFeature{{
		MZ: 500.001, RT: 100.1, Intensity: 1000,
		Handles: map[int]*ms.Feature{1: {
			MZ: 500.001, RT: 100.1, Intensity: 1000,
			Identifications: []ms.Identification{{Sequences: []string{"PEPTIDEB"}}},
		}},
	}}}

	params := defaultParams()
	params.UseIdentifications = true
	result := Match(a, b, params)
	if len(result.Features) != 2 {
		t.Fatalf("expected identification mismatch to block pairing, got %d features", len(result.Features))
	}
}
