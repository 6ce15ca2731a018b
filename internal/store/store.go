// Package store defines the reactor's consumed view of the on-disk storage
// engine (§6): a region -> version_range metainfo map the reactor reads to
// seed its best-backfiller map and writes after a successful backfill, plus
// the raw data stream backfill moves around. The storage engine itself
// (the protocol-level read/write path real clients hit) is out of scope;
// only the slice the reactor touches is implemented here.
package store

import (
	"context"

	"github.com/reactorcluster/reactord/internal/branchhistory"
	"github.com/reactorcluster/reactord/internal/region"
)

// MetainfoEntry pairs a subregion with the version range the store
// currently holds for it.
type MetainfoEntry struct {
	Region region.Region
	Range  branchhistory.VersionRange
}

// StoreView is the interface the reactor consumes to read and update
// persisted metainfo, and to move bytes during a backfill. A read or write
// may block on a prior in-flight write completing, mirroring the original's
// new_read_token/new_write_token ordering; the Go port expresses that with
// plain context cancellation rather than a token object.
type StoreView interface {
	// GetMetainfo returns every metainfo entry intersecting r.
	GetMetainfo(ctx context.Context, r region.Region) ([]MetainfoEntry, error)

	// SetMetainfo overwrites the metainfo for r with vr, superseding any
	// entries it overlaps.
	SetMetainfo(ctx context.Context, r region.Region, vr branchhistory.VersionRange) error

	// Erase drops all metainfo and data for r, used by be_nothing once it is
	// safe to discard the local copy.
	Erase(ctx context.Context, r region.Region) error

	// Read returns the raw bytes held for r, for serving a backfill request.
	Read(ctx context.Context, r region.Region) ([]byte, error)

	// Write installs data for r as the result of a completed backfill.
	Write(ctx context.Context, r region.Region, data []byte) error
}

var (
	_ StoreView = (*Memory)(nil)
	_ StoreView = (*SQLite)(nil)
)
