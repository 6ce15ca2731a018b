package reactor

import (
	"context"

	"github.com/reactorcluster/reactord/internal/activity"
	"github.com/reactorcluster/reactord/internal/branchhistory"
	"github.com/reactorcluster/reactord/internal/region"
)

// withBackfiller attaches a backfiller card to an activity whose
// constructor does not otherwise carry one (primary's variants only
// publish broadcaster/replier cards). Letting a primary also advertise a
// backfiller card means a peer transitioning through nothing_when_safe or
// a fresh secondary never has to wait on a second peer just to find a
// readable source once one primary is already up.
func withBackfiller(act activity.Activity, card activity.BackfillerCard) activity.Activity {
	act.Backfiller = &card
	return act
}

// withCurrentState attaches the publisher's current version range to an
// activity whose constructor does not otherwise carry one (the primary
// constructors leave CurrentState unset). A secondary choosing among live primaries needs this to check
// the candidate's branch against its own before trusting it as a backfill
// source.
func withCurrentState(act activity.Activity, state branchhistory.VersionRange) activity.Activity {
	act.CurrentState = state
	return act
}

// backfillerCard builds the constructible capability for pulling this
// node's current data and version range for target. Every role that holds
// a readable copy of the region advertises one so that a peer on the
// other side of the best-backfiller comparison has something to pull
// from.
func (r *Reactor) backfillerCard(target region.Region) activity.BackfillerCard {
	addr := r.mailbox.NewAddr(r.handleRead(target))
	return activity.BackfillerCard{
		Addr: string(addr),
		Backfill: func(ctx context.Context, req region.Region) ([]byte, branchhistory.VersionRange, error) {
			data, err := r.store.Read(ctx, req)
			if err != nil {
				return nil, branchhistory.VersionRange{}, err
			}
			metainfo, err := r.store.GetMetainfo(ctx, req)
			if err != nil {
				return nil, branchhistory.VersionRange{}, err
			}
			return data, localState(metainfo, req), nil
		},
	}
}
