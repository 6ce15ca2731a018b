// Package safety implements the primary- and nothing-election safety
// predicates (§4.D): whether it is safe for this node to assume a role on a
// region, given the current directory snapshot, the blueprint, and the
// branch history.
package safety

import (
	"fmt"

	"github.com/reactorcluster/reactord/internal/activity"
	"github.com/reactorcluster/reactord/internal/backfill"
	"github.com/reactorcluster/reactord/internal/blueprint"
	"github.com/reactorcluster/reactord/internal/branchhistory"
	"github.com/reactorcluster/reactord/internal/directory"
	"github.com/reactorcluster/reactord/internal/region"
)

// IsSafeForUsToBePrimary implements §4.D. It returns true iff:
//
//  1. every peer blueprint.PeersForRegion names for target is present in
//     snapshot with a published business card;
//  2. each such peer's activities intersecting target union to exactly
//     target, with no gap and no overlap (an overlap aborts the process —
//     it is a programmer-error condition per §7);
//  3. every intersecting activity is a variant that lets us safely become
//     primary (activity.Activity.SafeForOthersPrimary);
//  4. absorbing every peer's offered backfill versions into best never
//     raises backfill.ErrDivergentData;
//  5. after absorption, every resulting candidate is coherent.
//
// best is only overwritten with the absorbed result when the predicate
// returns true.
func IsSafeForUsToBePrimary(snap directory.Snapshot, bp blueprint.Blueprint, target region.Region, best *backfill.Map, history *branchhistory.History) bool {
	relevant := bp.PeersForRegion(target)

	working := best
	for peer, roles := range relevant {
		if _, ok := snap.Peers[peer]; !ok {
			return false
		}

		activities := snap.ActivitiesIntersecting(peer, target)
		covered, overlap := unionAndOverlapCheck(activities, target)
		if overlap {
			panic(fmt.Sprintf("safety: peer %v has overlapping activities for region %v intersecting %v", peer, roles, target))
		}
		if !covered.Equal(target) {
			return false // gap: this peer does not cover all of target
		}

		for _, ra := range activities {
			if !ra.Activity.SafeForOthersPrimary() {
				return false
			}
		}

		offer, bcard := offeredVersions(activities, target)
		if len(offer) == 0 {
			continue
		}
		updated, err := working.AbsorbSpeculative(peer, bcard, offer, history)
		if err != nil {
			return false
		}
		working = updated
	}

	if !working.AllCoherent() {
		return false
	}

	best.Replace(working)
	return true
}

// IsSafeForUsToBeNothing implements the be_nothing safety check (§4.E.3):
// erasing here will not lose the last copy of the region iff every
// intersecting peer is either a live primary or a fully backfilled
// secondary.
func IsSafeForUsToBeNothing(snap directory.Snapshot, bp blueprint.Blueprint, target region.Region) bool {
	relevant := bp.PeersForRegion(target)

	for peer := range relevant {
		if _, ok := snap.Peers[peer]; !ok {
			return false
		}
		activities := snap.ActivitiesIntersecting(peer, target)
		covered, overlap := unionAndOverlapCheck(activities, target)
		if overlap {
			panic(fmt.Sprintf("safety: peer %v has overlapping activities intersecting %v", peer, target))
		}
		if !covered.Equal(target) {
			return false
		}
		for _, ra := range activities {
			switch ra.Activity.Kind {
			case activity.KindPrimary:
				if ra.Activity.Broadcaster == nil {
					return false // primary without a live broadcaster isn't serving yet
				}
			case activity.KindSecondaryUpToDate:
				// fine, a full copy exists here
			default:
				return false
			}
		}
	}
	return true
}

// unionAndOverlapCheck reports whether the given activity regions, clipped
// to target, overlap one another, and if not, returns target itself when
// they fully cover it with no gap (the zero Region otherwise).
func unionAndOverlapCheck(activities []directory.RegionActivity, target region.Region) (region.Region, bool) {
	clipped := make([]region.Region, 0, len(activities))
	for _, ra := range activities {
		c := ra.Region.Intersect(target)
		if !c.Empty() {
			clipped = append(clipped, c)
		}
	}

	for i := 0; i < len(clipped); i++ {
		for j := i + 1; j < len(clipped); j++ {
			if clipped[i].Overlaps(clipped[j]) {
				return region.Region{}, true
			}
		}
	}

	remaining := []region.Region{target}
	for _, c := range clipped {
		var next []region.Region
		for _, r := range remaining {
			next = append(next, r.Subtract(c)...)
		}
		remaining = next
	}
	if len(remaining) != 0 {
		return region.Region{}, false // gap: does not cover all of target
	}
	return target, false
}

// offeredVersions derives the offered region->version_range map a peer's
// intersecting activities imply, paired with the backfiller card to
// contact them through.
func offeredVersions(activities []directory.RegionActivity, target region.Region) ([]backfill.OfferedRegion, activity.BackfillerCard) {
	var out []backfill.OfferedRegion
	var bcard activity.BackfillerCard
	for _, ra := range activities {
		switch ra.Activity.Kind {
		case activity.KindSecondaryWithoutPrimary, activity.KindNothingWhenSafe:
			clipped := ra.Region.Intersect(target)
			if clipped.Empty() {
				continue
			}
			out = append(out, backfill.OfferedRegion{Region: clipped, Range: ra.Activity.CurrentState})
			if ra.Activity.Backfiller != nil {
				bcard = *ra.Activity.Backfiller
			}
		}
	}
	return out, bcard
}
