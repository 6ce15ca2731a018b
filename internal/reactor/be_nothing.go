package reactor

import (
	"context"
	"fmt"

	"github.com/reactorcluster/reactord/internal/activity"
	"github.com/reactorcluster/reactord/internal/branchhistory"
	"github.com/reactorcluster/reactord/internal/directory"
	"github.com/reactorcluster/reactord/internal/region"
	"github.com/reactorcluster/reactord/internal/safety"
	"github.com/reactorcluster/reactord/internal/store"
)

// beNothing implements §4.E.3: if we hold data for target, wait until
// every other peer on the region is either a live primary or a fully
// backfilled secondary, then erase, then idle as nothing until
// interrupted.
func (r *Reactor) beNothing(ctx context.Context, target region.Region) error {
	entry := directory.NewEntry(r.echo, target)
	defer entry.Close()

	metainfo, err := r.store.GetMetainfo(ctx, target)
	if err != nil {
		return fmt.Errorf("be_nothing: read metainfo: %w", err)
	}

	if hasData(metainfo, target) {
		state := localState(metainfo, target)
		selfCard := r.backfillerCard(target)
		entry.Set(activity.NothingWhenSafe(state, selfCard))

		if err := r.echo.RunUntilSatisfied(ctx, func(s directory.Snapshot) bool {
			return safety.IsSafeForUsToBeNothing(s, r.otherPeersBlueprint(), target)
		}); err != nil {
			return err
		}

		entry.Set(activity.NothingWhenDoneErasing())
		if err := r.store.Erase(ctx, target); err != nil {
			return fmt.Errorf("be_nothing: erase: %w", err)
		}
	}

	entry.Set(activity.Nothing())

	<-ctx.Done()
	return directory.ErrInterrupted
}

// hasData reports whether any metainfo entry intersecting target has moved
// past the zero version a brand-new, empty store starts at.
func hasData(metainfo []store.MetainfoEntry, target region.Region) bool {
	for _, m := range metainfo {
		if !m.Region.Intersect(target).Empty() && m.Range.Latest != (branchhistory.Version{}) {
			return true
		}
	}
	return false
}
