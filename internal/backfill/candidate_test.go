package backfill

import (
	"testing"

	"github.com/reactorcluster/reactord/internal/activity"
	"github.com/reactorcluster/reactord/internal/branchhistory"
	"github.com/reactorcluster/reactord/internal/region"
)

func localMap(t *testing.T, r region.Region, v branchhistory.Version, coherent bool) *Map {
	t.Helper()
	return NewFromLocal([]struct {
		Region region.Region
		Range  branchhistory.VersionRange
	}{
		{Region: r, Range: branchhistory.VersionRange{Earliest: v, Latest: v, Coherent: coherent}},
	})
}

func TestAbsorbPrefersDescendant(t *testing.T) {
	t.Parallel()
	h := branchhistory.New()
	h.AddBranch("b", "a", region.Full)

	vA := branchhistory.Version{Branch: "a", Revision: 3}
	vB := branchhistory.Version{Branch: "b", Revision: 5}

	m := localMap(t, region.Full, vA, true)
	err := m.Absorb("peerB", activity.BackfillerCard{}, []OfferedRegion{
		{Region: region.Full, Range: branchhistory.VersionRange{Earliest: vB, Latest: vB, Coherent: true}},
	}, h)
	if err != nil {
		t.Fatalf("Absorb returned %v", err)
	}

	entries := m.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	cand := entries[0].Candidate
	if cand.VersionRange.Latest != vB {
		t.Errorf("expected descendant version to win, got %v", cand.VersionRange.Latest)
	}
	if cand.PresentInOurStore {
		t.Error("descendant candidate should not be marked present in our store")
	}
	if len(cand.Sources) != 1 || cand.Sources[0].Peer != "peerB" {
		t.Errorf("expected single source peerB, got %v", cand.Sources)
	}
}

func TestAbsorbTieAddsSource(t *testing.T) {
	t.Parallel()
	h := branchhistory.New()
	v := branchhistory.Version{Branch: "a", Revision: 5}

	m := localMap(t, region.Full, v, true)
	err := m.Absorb("peerB", activity.BackfillerCard{}, []OfferedRegion{
		{Region: region.Full, Range: branchhistory.VersionRange{Earliest: v, Latest: v, Coherent: true}},
	}, h)
	if err != nil {
		t.Fatalf("Absorb returned %v", err)
	}

	cand := m.Entries()[0].Candidate
	if !cand.PresentInOurStore {
		t.Error("tie should keep present_in_our_store true (we already have this version)")
	}
	if len(cand.Sources) != 1 {
		t.Errorf("expected the tied peer added as a source, got %v", cand.Sources)
	}
}

func TestAbsorbDivergentFails(t *testing.T) {
	t.Parallel()
	h := branchhistory.New()
	h.AddBranch("left", "root", region.Full)
	h.AddBranch("right", "root", region.Full)

	vLeft := branchhistory.Version{Branch: "left", Revision: 0}
	vRight := branchhistory.Version{Branch: "right", Revision: 0}

	m := localMap(t, region.Full, vLeft, true)
	err := m.Absorb("peerB", activity.BackfillerCard{}, []OfferedRegion{
		{Region: region.Full, Range: branchhistory.VersionRange{Earliest: vRight, Latest: vRight, Coherent: true}},
	}, h)
	if err != ErrDivergentData {
		t.Errorf("Absorb = %v, want ErrDivergentData", err)
	}
}

func TestAbsorbSpeculativeLeavesOriginalUntouched(t *testing.T) {
	t.Parallel()
	h := branchhistory.New()
	h.AddBranch("b", "a", region.Full)
	vA := branchhistory.Version{Branch: "a", Revision: 1}
	vB := branchhistory.Version{Branch: "b", Revision: 1}

	m := localMap(t, region.Full, vA, true)
	result, err := m.AbsorbSpeculative("peerB", activity.BackfillerCard{}, []OfferedRegion{
		{Region: region.Full, Range: branchhistory.VersionRange{Earliest: vB, Latest: vB, Coherent: true}},
	}, h)
	if err != nil {
		t.Fatalf("AbsorbSpeculative returned %v", err)
	}
	if m.Entries()[0].Candidate.VersionRange.Latest != vA {
		t.Error("speculative absorption must not mutate the original map")
	}
	if result.Entries()[0].Candidate.VersionRange.Latest != vB {
		t.Error("speculative result should reflect the absorbed version")
	}
}

func TestAbsorbPartialRegionSplitsEntry(t *testing.T) {
	t.Parallel()
	h := branchhistory.New()
	h.AddBranch("b", "a", region.Full)
	vA := branchhistory.Version{Branch: "a", Revision: 1}
	vB := branchhistory.Version{Branch: "b", Revision: 1}

	m := localMap(t, region.New(0, 100), vA, true)
	err := m.Absorb("peerB", activity.BackfillerCard{}, []OfferedRegion{
		{Region: region.New(0, 50), Range: branchhistory.VersionRange{Earliest: vB, Latest: vB, Coherent: true}},
	}, h)
	if err != nil {
		t.Fatalf("Absorb returned %v", err)
	}

	entries := m.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected the entry to split into two, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Region.Equal(region.New(0, 50)) && e.Candidate.VersionRange.Latest != vB {
			t.Error("the offered subregion should carry the new version")
		}
		if e.Region.Equal(region.New(50, 100)) && e.Candidate.VersionRange.Latest != vA {
			t.Error("the untouched subregion should keep the original version")
		}
	}
}

func TestAllCoherent(t *testing.T) {
	t.Parallel()
	v := branchhistory.Version{Branch: "a", Revision: 1}
	coherent := localMap(t, region.Full, v, true)
	if !coherent.AllCoherent() {
		t.Error("expected coherent map")
	}
	incoherent := localMap(t, region.Full, v, false)
	if incoherent.AllCoherent() {
		t.Error("expected incoherent map")
	}
}
