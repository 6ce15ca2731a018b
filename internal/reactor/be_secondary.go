package reactor

import (
	"context"
	"fmt"
	"sort"

	"github.com/reactorcluster/reactord/internal/activity"
	"github.com/reactorcluster/reactord/internal/blueprint"
	"github.com/reactorcluster/reactord/internal/branchhistory"
	"github.com/reactorcluster/reactord/internal/directory"
	"github.com/reactorcluster/reactord/internal/region"
	"github.com/reactorcluster/reactord/internal/store"
)

// beSecondary implements §4.E.2: publish our current state, wait for a
// live primary to appear, backfill from it, then serve reads as
// secondary_up_to_date until interrupted. Losing the backfiller mid-
// transfer or failing the transfer returns to the top and retries. A
// visible primary is used as a source only if its published branch is not
// divergent from our local version (see choosePrimary). Once up to date,
// the runner stays secondary_up_to_date until interrupted, even if that
// primary later disappears.
func (r *Reactor) beSecondary(ctx context.Context, target region.Region) error {
	entry := directory.NewEntry(r.echo, target)
	defer entry.Close()

	for {
		metainfo, err := r.store.GetMetainfo(ctx, target)
		if err != nil {
			return fmt.Errorf("be_secondary: read metainfo: %w", err)
		}
		state := localState(metainfo, target)

		selfCard := r.backfillerCard(target)
		entry.Set(activity.SecondaryWithoutPrimary(state, selfCard))

		var chosen activity.BackfillerCard
		if err := r.echo.RunUntilSatisfied(ctx, func(s directory.Snapshot) bool {
			card, ok := r.choosePrimary(s, target, state)
			if !ok {
				return false
			}
			chosen = card
			return true
		}); err != nil {
			return err
		}

		data, vr, err := chosen.Backfill(ctx, target)
		if err != nil {
			// Failed or lost source; retry from the top with a fresh card.
			continue
		}
		if err := r.store.Write(ctx, target, data); err != nil {
			return fmt.Errorf("be_secondary: write backfilled data: %w", err)
		}
		if err := r.store.SetMetainfo(ctx, target, vr); err != nil {
			return fmt.Errorf("be_secondary: set metainfo: %w", err)
		}

		entry.Set(activity.SecondaryUpToDate(selfCard))

		<-ctx.Done()
		return directory.ErrInterrupted
	}
}

// choosePrimary scans peers the blueprint assigns to target for one
// publishing primary with a live broadcaster and replier whose activity
// region fully covers target, and whose published branch is not divergent
// from ours. Branch history, not the reactor, is what's allowed to say two
// versions are compatible; a primary whose branch diverged from our local
// data is skipped rather than silently backfilled over, leaving divergence
// for an operator to resolve (§1/§7). Among remaining ties it
// deterministically prefers the lowest peer id, so repeated evaluations of
// the same directory snapshot never thrash between equally valid sources.
func (r *Reactor) choosePrimary(snap directory.Snapshot, target region.Region, local branchhistory.VersionRange) (activity.BackfillerCard, bool) {
	bp := r.currentBlueprint()
	relevant := bp.PeersForRegion(target)

	var candidates []blueprint.PeerID
	cards := make(map[blueprint.PeerID]activity.BackfillerCard)
	for peer := range relevant {
		bcard, found := snap.Peers[peer]
		if !found {
			continue
		}
		for _, ra := range bcard.Activities {
			if ra.Activity.Kind != activity.KindPrimary {
				continue
			}
			if ra.Activity.Broadcaster == nil || ra.Activity.Replier == nil || ra.Activity.Backfiller == nil {
				continue
			}
			if !ra.Region.Intersect(target).Equal(target) {
				continue // this primary doesn't cover the whole of our target
			}
			if r.history.IsDivergent(local.Latest, ra.Activity.CurrentState.Latest, target) {
				continue // diverged branch: not ours to auto-resolve
			}
			candidates = append(candidates, peer)
			cards[peer] = *ra.Activity.Backfiller
		}
	}

	if len(candidates) == 0 {
		return activity.BackfillerCard{}, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	return cards[candidates[0]], true
}

func localState(metainfo []store.MetainfoEntry, target region.Region) branchhistory.VersionRange {
	for _, m := range metainfo {
		if m.Region.Equal(target) {
			return m.Range
		}
	}
	return branchhistory.VersionRange{Coherent: true}
}
