package statusfs

import (
	"context"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/reactorcluster/reactord/internal/cache"
	"github.com/reactorcluster/reactord/internal/reactor"
	"github.com/reactorcluster/reactord/internal/region"
)

// RegionDirNode represents one region's status directory, holding a
// "role" file and an "activity" file.
type RegionDirNode struct {
	fs.Inode
	r      *reactor.Reactor
	region region.Region
	debug  bool
	cache  *cache.Cache[string]
}

var _ = (fs.NodeReaddirer)((*RegionDirNode)(nil))
var _ = (fs.NodeLookuper)((*RegionDirNode)(nil))

func (n *RegionDirNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	entries := []fuse.DirEntry{
		{Name: "role", Mode: fuse.S_IFREG},
		{Name: "activity", Mode: fuse.S_IFREG},
	}
	return fs.NewListDirStream(entries), fs.OK
}

func (n *RegionDirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	if name != "role" && name != "activity" {
		return nil, syscall.ENOENT
	}
	node := &StatusFileNode{r: n.r, region: n.region, kind: name, debug: n.debug, cache: n.cache}
	child := n.NewInode(ctx, node, fs.StableAttr{Mode: fuse.S_IFREG})
	return child, fs.OK
}
