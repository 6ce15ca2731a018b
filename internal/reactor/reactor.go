// Package reactor implements the per-node reactor: the role runners that
// drive a local region through primary/secondary/nothing, and the
// blueprint reconciler that spawns and cancels them.
package reactor

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/reactorcluster/reactord/internal/blueprint"
	"github.com/reactorcluster/reactord/internal/branchhistory"
	"github.com/reactorcluster/reactord/internal/directory"
	"github.com/reactorcluster/reactord/internal/mailbox"
	"github.com/reactorcluster/reactord/internal/region"
	"github.com/reactorcluster/reactord/internal/store"
)

// Reactor drives this node's local regions through the replication roles
// the cluster blueprint assigns to them: directory echo access, the
// best-backfiller computation, the primary safety predicate, the role
// runners, and the blueprint reconciler all meet here.
type Reactor struct {
	self        blueprint.PeerID
	mailbox     mailbox.Manager
	conn        mailbox.Connectivity
	echo        *directory.EchoAccess
	history     *branchhistory.History
	store       store.StoreView
	backfillSem *semaphore.Weighted

	bpMu sync.RWMutex
	bp   blueprint.Blueprint

	mu      sync.Mutex
	runners map[region.Region]*runner
	wg      sync.WaitGroup
}

type runner struct {
	role   blueprint.Role
	cancel context.CancelFunc
}

// Config bundles a Reactor's construction parameters: the reactor's only
// public surface is a mailbox manager and connectivity service, a writable
// directory view, an RW branch history, and a store view. The blueprint
// itself arrives later, as a stream delivered to Run.
type Config struct {
	Self                blueprint.PeerID
	Mailbox             mailbox.Manager
	Connectivity        mailbox.Connectivity
	Directory           *directory.Directory
	History             *branchhistory.History
	Store               store.StoreView
	BackfillConcurrency int64
}

// New constructs a Reactor. BackfillConcurrency defaults to 4 when <= 0.
func New(cfg Config) *Reactor {
	concurrency := cfg.BackfillConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Reactor{
		self:        cfg.Self,
		mailbox:     cfg.Mailbox,
		conn:        cfg.Connectivity,
		echo:        directory.NewEchoAccess(cfg.Directory, cfg.Self),
		history:     cfg.History,
		store:       cfg.Store,
		backfillSem: semaphore.NewWeighted(concurrency),
		runners:     make(map[region.Region]*runner),
	}
}

// currentBlueprint returns the most recently reconciled blueprint. Running
// role runners re-read it on every safety-check iteration so a membership
// change elsewhere in the cluster is observed without the reconciler
// needing to restart an unaffected runner.
func (r *Reactor) currentBlueprint() blueprint.Blueprint {
	r.bpMu.RLock()
	defer r.bpMu.RUnlock()
	return r.bp
}

// otherPeersBlueprint returns the current blueprint with this node's own
// assignments removed, for safety checks that look only at other peers.
func (r *Reactor) otherPeersBlueprint() blueprint.Blueprint {
	bp := r.currentBlueprint()
	others := make(map[blueprint.PeerID][]blueprint.RegionRole, len(bp.Peers))
	for p, rr := range bp.Peers {
		if p != r.self {
			others[p] = rr
		}
	}
	return blueprint.Blueprint{Peers: others}
}

// Reconcile implements the blueprint reconciler: given the latest
// blueprint, compute this node's desired (region, role) assignments,
// cancel runners whose assignment no longer holds, and start runners for
// newly assigned (region, role) pairs. Safe to call repeatedly as the
// blueprint watchable delivers new values.
func (r *Reactor) Reconcile(ctx context.Context, bp blueprint.Blueprint) {
	r.bpMu.Lock()
	r.bp = bp
	r.bpMu.Unlock()

	desired := make(map[region.Region]blueprint.Role)
	for _, rr := range bp.RolesFor(r.self) {
		desired[rr.Region] = rr.Role
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for reg, run := range r.runners {
		role, ok := desired[reg]
		if !ok || role != run.role {
			run.cancel()
			delete(r.runners, reg)
		}
	}

	for reg, role := range desired {
		if _, ok := r.runners[reg]; ok {
			continue
		}
		runCtx, cancel := context.WithCancel(ctx)
		r.runners[reg] = &runner{role: role, cancel: cancel}
		r.wg.Add(1)
		go func(reg region.Region, role blueprint.Role) {
			defer r.wg.Done()
			r.runRole(runCtx, reg, role)
		}(reg, role)
	}
}

// runRole dispatches to the role runner for role and logs a non-routine
// exit. Neither the runner nor runRole removes the runners entry when the
// runner returns; it stays until a later Reconcile drops or changes that
// region's assignment.
func (r *Reactor) runRole(ctx context.Context, target region.Region, role blueprint.Role) {
	var err error
	switch role {
	case blueprint.RolePrimary:
		err = r.bePrimary(ctx, target)
	case blueprint.RoleSecondary:
		err = r.beSecondary(ctx, target)
	case blueprint.RoleNothing:
		err = r.beNothing(ctx, target)
	}
	if err != nil && err != context.Canceled && err != directory.ErrInterrupted {
		log.Printf("[reactor] role runner for %v (%v) exited: %v", target, role, err)
	}
}

// Run starts the reconciler loop, applying every blueprint delivered on
// blueprints until ctx is canceled or the channel closes, then cancels and
// waits for every role runner to exit — the reactor's drainer.
func (r *Reactor) Run(ctx context.Context, blueprints <-chan blueprint.Blueprint) {
	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return
		case bp, ok := <-blueprints:
			if !ok {
				r.shutdown()
				return
			}
			if err := bp.Validate(); err != nil {
				log.Printf("[reactor] rejecting invalid blueprint: %v", err)
				continue
			}
			r.Reconcile(ctx, bp)
		}
	}
}

// shutdown cancels every running role runner and blocks until each has
// exited, guaranteeing no runner outlives the reactor.
func (r *Reactor) shutdown() {
	r.mu.Lock()
	for _, run := range r.runners {
		run.cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// CurrentRoles returns a snapshot of the regions this reactor is currently
// running a role runner for, and which role.
func (r *Reactor) CurrentRoles() map[region.Region]blueprint.Role {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[region.Region]blueprint.Role, len(r.runners))
	for reg, run := range r.runners {
		out[reg] = run.role
	}
	return out
}

// Self returns this reactor's own peer id.
func (r *Reactor) Self() blueprint.PeerID {
	return r.self
}

// Snapshot returns the current cross-peer directory as observed by this
// reactor, for introspection surfaces like pkg/statusfs.
func (r *Reactor) Snapshot() directory.Snapshot {
	return r.echo.Snapshot()
}
