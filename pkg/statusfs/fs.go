// Package statusfs exposes a running reactor's current roles and directory
// activity as a read-only FUSE mount, so a node's state can be inspected
// with plain filesystem tools instead of a bespoke status protocol.
package statusfs

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/reactorcluster/reactord/internal/cache"
	"github.com/reactorcluster/reactord/internal/reactor"
	"github.com/reactorcluster/reactord/internal/region"
)

// contentCacheTTL bounds how stale a status file's content may be. A
// FUSE read of a file is typically preceded by a Getattr for its size;
// both call content() for the same key within the same round trip, so a
// short TTL absorbs that without masking a real role or activity change
// from a human watching the mount.
const contentCacheTTL = 500 * time.Millisecond

// FS is the root of the status mount: one directory per region the
// reactor currently runs a role for.
type FS struct {
	fs.Inode
	r     *reactor.Reactor
	debug bool
	cache *cache.Cache[string]
}

// New returns a status filesystem rooted on r.
func New(r *reactor.Reactor, debug bool) *FS {
	return &FS{r: r, debug: debug, cache: cache.New[string](contentCacheTTL, 0)}
}

// Mount mounts the status filesystem at mountpoint.
func (fsys *FS) Mount(mountpoint string) (*fuse.Server, error) {
	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			Name:   "reactord-status",
			FsName: "reactord",
			Debug:  fsys.debug,
		},
	}

	server, err := fs.Mount(mountpoint, fsys, opts)
	if err != nil {
		return nil, fmt.Errorf("mount failed: %w", err)
	}
	return server, nil
}

var _ = (fs.NodeReaddirer)((*FS)(nil))
var _ = (fs.NodeLookuper)((*FS)(nil))

// Readdir lists one directory per region the reactor currently runs a role
// runner for.
func (fsys *FS) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	roles := fsys.r.CurrentRoles()
	entries := make([]fuse.DirEntry, 0, len(roles))
	for reg := range roles {
		entries = append(entries, fuse.DirEntry{
			Name: regionName(reg),
			Mode: fuse.S_IFDIR,
		})
	}
	return fs.NewListDirStream(entries), fs.OK
}

// Lookup resolves a region directory name back to its region.Region.
func (fsys *FS) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	roles := fsys.r.CurrentRoles()
	for reg := range roles {
		if regionName(reg) != name {
			continue
		}
		node := &RegionDirNode{r: fsys.r, region: reg, debug: fsys.debug, cache: fsys.cache}
		child := fsys.NewInode(ctx, node, fs.StableAttr{Mode: fuse.S_IFDIR})
		return child, fs.OK
	}
	return nil, syscall.ENOENT
}

func regionName(r region.Region) string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}
