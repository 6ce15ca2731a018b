// Package blueprint holds the immutable cluster-wide role assignment that
// an external orchestrator produces and the reactor reconciles against.
// The reactor never constructs or mutates a Blueprint; it only reads one.
package blueprint

import (
	"fmt"

	"github.com/reactorcluster/reactord/internal/region"
)

// PeerID identifies a node in the cluster.
type PeerID string

// Role is the replication role a peer plays for a region.
type Role int

const (
	RoleNothing Role = iota
	RoleSecondary
	RolePrimary
)

func (r Role) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleSecondary:
		return "secondary"
	case RoleNothing:
		return "nothing"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// RegionRole pairs a region with the role a peer plays over it.
type RegionRole struct {
	Region region.Region
	Role   Role
}

// Blueprint is an immutable snapshot mapping peer -> (region -> role). It is
// total over the key space: every key in region.Full is covered by exactly
// one RegionRole per peer entry, and exactly one peer holds RolePrimary
// over any given key.
type Blueprint struct {
	Peers map[PeerID][]RegionRole
}

// New builds a Blueprint from a flat list of per-peer assignments.
func New(peers map[PeerID][]RegionRole) Blueprint {
	out := make(map[PeerID][]RegionRole, len(peers))
	for p, rr := range peers {
		cp := make([]RegionRole, len(rr))
		copy(cp, rr)
		out[p] = cp
	}
	return Blueprint{Peers: out}
}

// RolesFor returns the region/role assignments for a given peer, or nil if
// the peer has no assignments at all (equivalent to RoleNothing everywhere).
func (b Blueprint) RolesFor(peer PeerID) []RegionRole {
	return b.Peers[peer]
}

// PeersForRegion returns every peer with at least one assignment that
// intersects target, along with the subset of that peer's role that
// intersects target.
func (b Blueprint) PeersForRegion(target region.Region) map[PeerID][]RegionRole {
	out := make(map[PeerID][]RegionRole)
	for peer, rr := range b.Peers {
		var matched []RegionRole
		for _, entry := range rr {
			overlap := entry.Region.Intersect(target)
			if !overlap.Empty() {
				matched = append(matched, RegionRole{Region: overlap, Role: entry.Role})
			}
		}
		if len(matched) > 0 {
			out[peer] = matched
		}
	}
	return out
}

// Validate checks the single-primary invariant: for every region.Full key,
// exactly one peer must hold RolePrimary, and no peer may list overlapping
// regions for itself.
func (b Blueprint) Validate() error {
	var primaryRegions []region.Region
	for peer, rr := range b.Peers {
		var ownRegions []region.Region
		for _, entry := range rr {
			for _, existing := range ownRegions {
				if existing.Overlaps(entry.Region) {
					return fmt.Errorf("blueprint: peer %s has overlapping region assignments", peer)
				}
			}
			ownRegions = append(ownRegions, entry.Region)
			if entry.Role == RolePrimary {
				for _, existing := range primaryRegions {
					if existing.Overlaps(entry.Region) {
						return fmt.Errorf("blueprint: region %v has more than one primary", entry.Region)
					}
				}
				primaryRegions = append(primaryRegions, entry.Region)
			}
		}
	}
	joined, err := region.Join(primaryRegions...)
	if err != nil {
		return fmt.Errorf("blueprint: primary assignments are not total over the key space: %w", err)
	}
	if !joined.Equal(region.Full) {
		return fmt.Errorf("blueprint: primary assignments cover %v, not the whole key space %v", joined, region.Full)
	}
	return nil
}
