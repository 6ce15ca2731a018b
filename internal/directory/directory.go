// Package directory implements the gossiped, watchable per-peer directory
// the reactor publishes its activities into and reads its peers' activities
// from, plus the per-peer echo-version bookkeeping backing
// wait_for_directory_acks.
//
// The real cluster directory is gossiped infrastructure out of the
// reactor's scope (§1 of the spec); this package provides the consumed
// interface plus an in-memory implementation sufficient to run and test a
// reactor without a live cluster.
package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/exp/maps"

	"github.com/reactorcluster/reactord/internal/activity"
	"github.com/reactorcluster/reactord/internal/blueprint"
	"github.com/reactorcluster/reactord/internal/region"
)

// ActivityID uniquely names one published activity for the lifetime of the
// reactor that owns it. A fresh ActivityID signals observers that the
// underlying sub-state changed and any subscription built against the old
// id should be dropped.
type ActivityID string

func newActivityID() ActivityID {
	return ActivityID(uuid.NewString())
}

// RegionActivity is one entry in a peer's activity map.
type RegionActivity struct {
	Region   region.Region
	Activity activity.Activity
}

// BusinessCard is the directory payload one peer publishes: its activity
// map plus the echo version of the last publish.
type BusinessCard struct {
	Echo       uint64
	Activities map[ActivityID]RegionActivity
}

func (c *BusinessCard) clone() *BusinessCard {
	out := &BusinessCard{Echo: c.Echo, Activities: make(map[ActivityID]RegionActivity, len(c.Activities))}
	for id, ra := range c.Activities {
		out.Activities[id] = ra
	}
	return out
}

// MasterID names a master business card published while serving as primary.
type MasterID string

// MasterCard is the business card contributed to the shared master
// directory while a reactor serves as primary for a region.
type MasterCard struct {
	Region region.Region
}

// Snapshot is a point-in-time, read-only view of the cross-peer directory.
// Predicates passed to RunUntilSatisfied must be pure functions of a
// Snapshot so that re-evaluating them on every change is safe and
// idempotent.
type Snapshot struct {
	Peers   map[blueprint.PeerID]*BusinessCard
	Masters map[MasterID]MasterCard
}

// ActivitiesIntersecting returns every RegionActivity in peer's business
// card whose region overlaps target, or nil if the peer is absent.
func (s Snapshot) ActivitiesIntersecting(peer blueprint.PeerID, target region.Region) []RegionActivity {
	card, ok := s.Peers[peer]
	if !ok {
		return nil
	}
	var out []RegionActivity
	for _, ra := range card.Activities {
		if ra.Region.Overlaps(target) {
			out = append(out, ra)
		}
	}
	return out
}

// ErrInterrupted is returned when a suspension point's context is canceled
// before its condition is satisfied.
var ErrInterrupted = fmt.Errorf("directory: interrupted")

// Directory is the in-memory implementation of the cluster's gossiped
// directory. All peers share one Directory instance in this single-process
// harness; a networked deployment would replace this with a real gossip
// transport behind the same interface.
type Directory struct {
	mu      sync.Mutex
	cards   map[blueprint.PeerID]*BusinessCard
	masters map[MasterID]MasterCard
	acked   map[blueprint.PeerID]map[blueprint.PeerID]uint64 // acked[observer][publisher] = highest echo seen
	changed chan struct{}
}

// New returns an empty directory.
func New() *Directory {
	return &Directory{
		cards:   make(map[blueprint.PeerID]*BusinessCard),
		masters: make(map[MasterID]MasterCard),
		acked:   make(map[blueprint.PeerID]map[blueprint.PeerID]uint64),
		changed: make(chan struct{}),
	}
}

// bump must be called with mu held; it wakes every current waiter.
func (d *Directory) bump() {
	close(d.changed)
	d.changed = make(chan struct{})
}

// NewActivityID allocates a fresh, directory-wide unique activity id.
func (d *Directory) NewActivityID() ActivityID {
	return newActivityID()
}

// Publish atomically updates publisher's activity map under id and returns
// the new echo version. Versions are per-publisher monotonic.
func (d *Directory) Publish(publisher blueprint.PeerID, id ActivityID, r region.Region, act activity.Activity) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	card, ok := d.cards[publisher]
	if !ok {
		card = &BusinessCard{Activities: make(map[ActivityID]RegionActivity)}
		d.cards[publisher] = card
	}
	card.Echo++
	card.Activities[id] = RegionActivity{Region: r, Activity: act}
	d.bump()
	return card.Echo
}

// Retract removes id from publisher's activity map.
func (d *Directory) Retract(publisher blueprint.PeerID, id ActivityID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	card, ok := d.cards[publisher]
	if !ok {
		return
	}
	if _, present := card.Activities[id]; !present {
		return
	}
	card.Echo++
	delete(card.Activities, id)
	d.bump()
}

// Swap atomically replaces oldID with a newly published activity under
// newID in publisher's activity map, within a single lock acquisition and
// a single version bump. Unlike a separate Publish followed by Retract,
// this never exposes an intermediate state where both oldID and newID are
// present together, which would make the region look doubly-covered to a
// concurrently-woken observer.
func (d *Directory) Swap(publisher blueprint.PeerID, oldID, newID ActivityID, r region.Region, act activity.Activity) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	card, ok := d.cards[publisher]
	if !ok {
		card = &BusinessCard{Activities: make(map[ActivityID]RegionActivity)}
		d.cards[publisher] = card
	}
	card.Echo++
	delete(card.Activities, oldID)
	card.Activities[newID] = RegionActivity{Region: r, Activity: act}
	d.bump()
	return card.Echo
}

// PublishMaster adds this peer's master business card to the shared master
// directory, contributed only while serving as primary.
func (d *Directory) PublishMaster(id MasterID, card MasterCard) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.masters[id] = card
	d.bump()
}

// RetractMaster removes a master business card.
func (d *Directory) RetractMaster(id MasterID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.masters, id)
	d.bump()
}

// Snapshot returns the current directory contents as observed by observer,
// recording that observer has now seen every publisher's current echo
// version (the Go analogue of gossip replication delivering the latest
// message to observer).
func (d *Directory) Snapshot(observer blueprint.PeerID) Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	peers := make(map[blueprint.PeerID]*BusinessCard, len(d.cards))
	obs, ok := d.acked[observer]
	if !ok {
		obs = make(map[blueprint.PeerID]uint64)
		d.acked[observer] = obs
	}
	advanced := false
	for peer, card := range d.cards {
		peers[peer] = card.clone()
		if obs[peer] < card.Echo {
			obs[peer] = card.Echo
			advanced = true
		}
	}
	if advanced {
		// A new acknowledgement may satisfy a WaitForAcks caller.
		d.bump()
	}
	return Snapshot{Peers: peers, Masters: maps.Clone(d.masters)}
}

func (d *Directory) waitChanged() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.changed
}

// RunUntilSatisfied suspends the caller, observing as observer, until
// predicate(snapshot) returns true, re-evaluating on every directory
// change. It returns ErrInterrupted if ctx is canceled first.
func (d *Directory) RunUntilSatisfied(ctx context.Context, observer blueprint.PeerID, predicate func(Snapshot) bool) error {
	for {
		ch := d.waitChanged()
		snap := d.Snapshot(observer)
		if predicate(snap) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ErrInterrupted
		case <-ch:
		}
	}
}

// WaitForAcks blocks until every peer named by connected has observed
// version >= v from publisher, re-checking (and re-reading connected) on
// every directory change. A peer dropping out of connected is noticed at
// the next directory change, not at the moment it drops.
func (d *Directory) WaitForAcks(ctx context.Context, publisher blueprint.PeerID, version uint64, connected func() []blueprint.PeerID) error {
	for {
		d.mu.Lock()
		satisfied := true
		for _, peer := range connected() {
			if peer == publisher {
				continue
			}
			if d.acked[peer][publisher] < version {
				satisfied = false
				break
			}
		}
		ch := d.changed
		d.mu.Unlock()

		if satisfied {
			return nil
		}
		select {
		case <-ctx.Done():
			return ErrInterrupted
		case <-ch:
		}
	}
}
