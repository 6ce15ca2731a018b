// Package backfill implements the best-backfiller computation (§4.C): for
// a region, compare offered peer versions against the causal branch
// history and pick a coherent latest version plus the set of peers that
// can supply it.
package backfill

import (
	"fmt"

	"github.com/reactorcluster/reactord/internal/activity"
	"github.com/reactorcluster/reactord/internal/blueprint"
	"github.com/reactorcluster/reactord/internal/branchhistory"
	"github.com/reactorcluster/reactord/internal/region"
)

// ErrDivergentData is returned when two offered versions for the same
// subregion are neither ancestors of one another. The reactor must refuse
// to auto-resolve; an operator has to bless a branch.
var ErrDivergentData = fmt.Errorf("backfill: divergent data")

// Source names a peer that can supply a candidate's version, along with
// the capability to pull it.
type Source struct {
	Peer blueprint.PeerID
	Card activity.BackfillerCard
}

// Candidate is the best known version for a subregion and who can supply
// it, per the data model in spec §3.
type Candidate struct {
	VersionRange      branchhistory.VersionRange
	Sources           []Source
	PresentInOurStore bool
}

// entry pairs a region with its candidate; a Map is a list of entries whose
// regions partition the region under analysis.
type entry struct {
	region    region.Region
	candidate Candidate
}

// Map is a region -> Candidate partition.
type Map struct {
	entries []entry
}

// NewFromLocal initializes a best-backfiller map from the local store's
// metainfo, marking every entry present_in_our_store = true with no
// offering sources, so the local version is recognized and not
// re-backfilled unless a peer offers something strictly better.
func NewFromLocal(local []struct {
	Region region.Region
	Range  branchhistory.VersionRange
}) *Map {
	m := &Map{}
	for _, l := range local {
		m.entries = append(m.entries, entry{
			region: l.Region,
			candidate: Candidate{
				VersionRange:      l.Range,
				PresentInOurStore: true,
			},
		})
	}
	return m
}

// Entries returns a snapshot of the map's (region, candidate) pairs.
func (m *Map) Entries() []struct {
	Region    region.Region
	Candidate Candidate
} {
	out := make([]struct {
		Region    region.Region
		Candidate Candidate
	}, len(m.entries))
	for i, e := range m.entries {
		out[i] = struct {
			Region    region.Region
			Candidate Candidate
		}{e.region, e.candidate}
	}
	return out
}

// AllCoherent reports whether every candidate's version range is coherent.
// An incoherent latest requires operator intervention; the reactor refuses
// to auto-backfill it.
func (m *Map) AllCoherent() bool {
	for _, e := range m.entries {
		if !e.candidate.VersionRange.Coherent {
			return false
		}
	}
	return true
}

// clone returns a deep-enough copy for speculative absorption: the caller's
// map must only be overwritten on success (§4.D).
func (m *Map) clone() *Map {
	out := &Map{entries: make([]entry, len(m.entries))}
	for i, e := range m.entries {
		cand := e.candidate
		cand.Sources = append([]Source(nil), e.candidate.Sources...)
		out.entries[i] = entry{region: e.region, candidate: cand}
	}
	return out
}

// OfferedRegion is one (subregion, version_range) pair from a peer's
// offered backfill versions.
type OfferedRegion struct {
	Region region.Region
	Range  branchhistory.VersionRange
}

// Absorb compares an offered peer's region -> version_range map against m,
// per the four cases of §4.C, mutating m in place. It returns
// ErrDivergentData if any subregion's offered and incumbent versions are
// mutually non-ancestral.
func (m *Map) Absorb(peer blueprint.PeerID, card activity.BackfillerCard, offer []OfferedRegion, history *branchhistory.History) error {
	for _, off := range offer {
		if err := m.absorbOne(peer, card, off, history); err != nil {
			return err
		}
	}
	return nil
}

// absorbOne restricts m to off.Region and applies the four-case comparison
// against every overlapping incumbent entry, splitting entries as needed so
// the map continues to partition its full domain.
func (m *Map) absorbOne(peer blueprint.PeerID, card activity.BackfillerCard, off OfferedRegion, history *branchhistory.History) error {
	var rebuilt []entry
	for _, e := range m.entries {
		overlap := e.region.Intersect(off.Region)
		if overlap.Empty() {
			rebuilt = append(rebuilt, e)
			continue
		}

		updated, err := compare(e.candidate, off.Range, peer, card, overlap, history)
		if err != nil {
			return err
		}

		for _, rem := range e.region.Subtract(overlap) {
			rebuilt = append(rebuilt, entry{region: rem, candidate: e.candidate})
		}
		rebuilt = append(rebuilt, entry{region: overlap, candidate: updated})
	}
	m.entries = rebuilt
	return nil
}

// compare applies the four cases of §4.C for a single (incumbent,
// challenger) pair restricted to subregion.
func compare(incumbent Candidate, challenger branchhistory.VersionRange, peer blueprint.PeerID, card activity.BackfillerCard, subregion region.Region, history *branchhistory.History) (Candidate, error) {
	src := Source{Peer: peer, Card: card}

	if history.IsDivergent(incumbent.VersionRange.Latest, challenger.Latest, subregion) {
		return Candidate{}, ErrDivergentData
	}

	if incumbent.VersionRange.Latest == challenger.Latest && incumbent.VersionRange.Coherent == challenger.Coherent {
		// Tie: more sources is better.
		incumbent.Sources = append(incumbent.Sources, src)
		return incumbent, nil
	}

	ancestorOfChallenger := incumbent.VersionRange.Latest != challenger.Latest &&
		history.IsAncestor(incumbent.VersionRange.Latest, challenger.Latest, subregion)
	sameLatestButMoreCoherent := incumbent.VersionRange.Latest == challenger.Latest && challenger.Coherent && !incumbent.VersionRange.Coherent

	if ancestorOfChallenger || sameLatestButMoreCoherent {
		return Candidate{
			VersionRange:      challenger,
			Sources:           []Source{src},
			PresentInOurStore: false,
		}, nil
	}

	// Otherwise, keep the incumbent unchanged.
	return incumbent, nil
}

// AbsorbSpeculative runs Absorb against a copy of m, leaving m untouched,
// returning the resulting map on success. This is how the safety predicate
// (§4.D) implements "only on success is the caller's best-backfiller map
// overwritten with the result."
func (m *Map) AbsorbSpeculative(peer blueprint.PeerID, card activity.BackfillerCard, offer []OfferedRegion, history *branchhistory.History) (*Map, error) {
	cp := m.clone()
	if err := cp.Absorb(peer, card, offer, history); err != nil {
		return nil, err
	}
	return cp, nil
}

// Replace overwrites m's entries with other's. Used once a speculative
// absorption across every peer has fully succeeded.
func (m *Map) Replace(other *Map) {
	m.entries = other.entries
}
