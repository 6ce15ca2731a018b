package directory

import (
	"context"

	"github.com/reactorcluster/reactord/internal/activity"
	"github.com/reactorcluster/reactord/internal/blueprint"
	"github.com/reactorcluster/reactord/internal/region"
)

// EchoAccess wraps the writable local slot of the directory for one peer
// (§4.A). It is the reactor's only handle onto the shared Directory: every
// publish, retract, and wait the reactor performs goes through here so the
// peer identity is threaded consistently.
type EchoAccess struct {
	dir  *Directory
	self blueprint.PeerID
}

// NewEchoAccess scopes a Directory to the given peer.
func NewEchoAccess(dir *Directory, self blueprint.PeerID) *EchoAccess {
	return &EchoAccess{dir: dir, self: self}
}

// Publish atomically updates this node's activity map and returns the new
// echo version.
func (e *EchoAccess) Publish(id ActivityID, r region.Region, act activity.Activity) uint64 {
	return e.dir.Publish(e.self, id, r, act)
}

// Retract removes id from this node's activity map.
func (e *EchoAccess) Retract(id ActivityID) {
	e.dir.Retract(e.self, id)
}

// Swap atomically replaces oldID with a newly published activity under
// newID, in one version bump, so observers never see both ids present at
// once.
func (e *EchoAccess) Swap(oldID, newID ActivityID, r region.Region, act activity.Activity) uint64 {
	return e.dir.Swap(e.self, oldID, newID, r, act)
}

// NewActivityID allocates a fresh reactor_activity_id.
func (e *EchoAccess) NewActivityID() ActivityID {
	return e.dir.NewActivityID()
}

// RunUntilSatisfied suspends until predicate holds over the current
// directory snapshot, observing on this peer's behalf.
func (e *EchoAccess) RunUntilSatisfied(ctx context.Context, predicate func(Snapshot) bool) error {
	return e.dir.RunUntilSatisfied(ctx, e.self, predicate)
}

// WaitForDirectoryAcks returns when every peer named by connected has
// observed version v from us.
func (e *EchoAccess) WaitForDirectoryAcks(ctx context.Context, version uint64, connected func() []blueprint.PeerID) error {
	return e.dir.WaitForAcks(ctx, e.self, version, connected)
}

// Snapshot returns the current cross-peer directory as observed by us.
func (e *EchoAccess) Snapshot() Snapshot {
	return e.dir.Snapshot(e.self)
}

// PublishMaster/RetractMaster forward to the shared master directory, which
// a reactor contributes to only while serving as primary for a region.
func (e *EchoAccess) PublishMaster(id MasterID, card MasterCard) { e.dir.PublishMaster(id, card) }
func (e *EchoAccess) RetractMaster(id MasterID)                 { e.dir.RetractMaster(id) }
