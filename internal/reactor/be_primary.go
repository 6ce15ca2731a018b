package reactor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/reactorcluster/reactord/internal/activity"
	"github.com/reactorcluster/reactord/internal/backfill"
	"github.com/reactorcluster/reactord/internal/blueprint"
	"github.com/reactorcluster/reactord/internal/branchhistory"
	"github.com/reactorcluster/reactord/internal/directory"
	"github.com/reactorcluster/reactord/internal/mailbox"
	"github.com/reactorcluster/reactord/internal/region"
	"github.com/reactorcluster/reactord/internal/safety"
	"github.com/reactorcluster/reactord/internal/store"
)

// bePrimary implements §4.E.1: publish intent, wait for every currently
// connected peer to ack it (preventing two nodes racing into primary),
// then loop the safety check and any required backfills until the
// best-backfiller map is fully satisfied, before serving as primary until
// interrupted.
func (r *Reactor) bePrimary(ctx context.Context, target region.Region) error {
	entry := directory.NewEntry(r.echo, target)
	defer entry.Close()

	v := entry.Set(activity.PrimaryWhenSafe())
	if err := r.echo.WaitForDirectoryAcks(ctx, v, r.connectedPeers); err != nil {
		return err
	}

	for {
		metainfo, err := r.store.GetMetainfo(ctx, target)
		if err != nil {
			return fmt.Errorf("be_primary: read metainfo: %w", err)
		}
		best := backfill.NewFromLocal(toLocalEntries(metainfo))

		if err := r.echo.RunUntilSatisfied(ctx, func(s directory.Snapshot) bool {
			return safety.IsSafeForUsToBePrimary(s, r.otherPeersBlueprint(), target, best, r.history)
		}); err != nil {
			return err
		}

		results := r.runBackfills(ctx, target, best)
		if ctx.Err() != nil {
			return directory.ErrInterrupted
		}
		if allSucceeded(results) {
			break
		}
		// A backfill failed or its source peer was lost; restart from the
		// top, the directory may have changed since.
	}

	state, err := r.localVersionState(ctx, target)
	if err != nil {
		return err
	}

	broadcaster := activity.BroadcasterCard{Addr: string(r.mailbox.NewAddr(r.handleWrite(target)))}
	backfiller := r.backfillerCard(target)
	entry.Set(withCurrentState(withBackfiller(activity.Primary(broadcaster), backfiller), state))

	replierAddr := r.mailbox.NewAddr(r.handleRead(target))
	masterID := directory.MasterID(fmt.Sprintf("%s/%v", r.self, target))
	r.echo.PublishMaster(masterID, directory.MasterCard{Region: target})
	defer r.echo.RetractMaster(masterID)

	withReplier := activity.PrimaryWithReplier(broadcaster, activity.ReplierCard{Addr: string(replierAddr)})
	entry.UpdateWithoutChangingID(withCurrentState(withBackfiller(withReplier, backfiller), state))

	<-ctx.Done()
	return directory.ErrInterrupted
}

func (r *Reactor) connectedPeers() []blueprint.PeerID {
	return r.conn.Peers()
}

// localVersionState reads this node's current version range for target, so
// a primary can advertise it on its activity for a secondary to check
// against before treating it as a backfill source.
func (r *Reactor) localVersionState(ctx context.Context, target region.Region) (branchhistory.VersionRange, error) {
	metainfo, err := r.store.GetMetainfo(ctx, target)
	if err != nil {
		return branchhistory.VersionRange{}, fmt.Errorf("be_primary: read metainfo: %w", err)
	}
	return localState(metainfo, target), nil
}

// toLocalEntries bridges store.MetainfoEntry to the anonymous struct shape
// backfill.NewFromLocal expects.
func toLocalEntries(metainfo []store.MetainfoEntry) []struct {
	Region region.Region
	Range  branchhistory.VersionRange
} {
	out := make([]struct {
		Region region.Region
		Range  branchhistory.VersionRange
	}, len(metainfo))
	for i, m := range metainfo {
		out[i] = struct {
			Region region.Region
			Range  branchhistory.VersionRange
		}{Region: m.Region, Range: m.Range}
	}
	return out
}

type backfillResult struct {
	region region.Region
	err    error
}

// runBackfills spawns one concurrent task per best-backfiller entry not
// already present in our store, bounded by r.backfillSem, and joins every
// result with a plain WaitGroup rather than an error-group: every task is
// always awaited, even once a failure is seen, so a short-circuited join
// can never leak a pending backfill goroutine.
func (r *Reactor) runBackfills(ctx context.Context, target region.Region, best *backfill.Map) []backfillResult {
	var pending []struct {
		region region.Region
		cand   backfill.Candidate
	}
	for _, e := range best.Entries() {
		if !e.Candidate.PresentInOurStore {
			pending = append(pending, struct {
				region region.Region
				cand   backfill.Candidate
			}{e.Region, e.Candidate})
		}
	}
	if len(pending) == 0 {
		return nil
	}

	results := make([]backfillResult, len(pending))
	var wg sync.WaitGroup
	for i, p := range pending {
		wg.Add(1)
		go func(i int, reg region.Region, cand backfill.Candidate) {
			defer wg.Done()
			if err := r.backfillSem.Acquire(ctx, 1); err != nil {
				results[i] = backfillResult{region: reg, err: err}
				return
			}
			defer r.backfillSem.Release(1)
			results[i] = backfillResult{region: reg, err: r.backfillOne(ctx, reg, cand)}
		}(i, p.region, p.cand)
	}
	wg.Wait()
	return results
}

func (r *Reactor) backfillOne(ctx context.Context, reg region.Region, cand backfill.Candidate) error {
	if len(cand.Sources) == 0 {
		return fmt.Errorf("be_primary: no backfill source offered for %v", reg)
	}
	src := cand.Sources[0]
	if src.Card.Backfill == nil {
		return fmt.Errorf("be_primary: backfiller card from %s has no backfill function", src.Peer)
	}

	start := time.Now()
	data, vr, err := src.Card.Backfill(ctx, reg)
	if err != nil {
		return fmt.Errorf("backfill %v from %s: %w", reg, src.Peer, err)
	}
	if err := r.store.Write(ctx, reg, data); err != nil {
		return fmt.Errorf("write backfilled data for %v: %w", reg, err)
	}
	if err := r.store.SetMetainfo(ctx, reg, vr); err != nil {
		return fmt.Errorf("set metainfo for %v: %w", reg, err)
	}
	log.Printf("[backfill] %v from %s: %s in %s", reg, src.Peer,
		humanize.Bytes(uint64(len(data))), time.Since(start).Round(time.Millisecond))
	return nil
}

func allSucceeded(results []backfillResult) bool {
	for _, res := range results {
		if res.err != nil {
			return false
		}
	}
	return true
}

// handleWrite and handleRead are the mailbox endpoints a broadcaster and
// replier advertise once instantiated. The data-path read/write dispatch
// behind them belongs to the storage engine, out of the reactor's scope;
// these exist so a directory business card resolves to something
// reachable.
func (r *Reactor) handleWrite(target region.Region) mailbox.Handler {
	return func(_ context.Context, _ any) {}
}

func (r *Reactor) handleRead(target region.Region) mailbox.Handler {
	return func(_ context.Context, _ any) {}
}
