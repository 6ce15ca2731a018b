package statusfs

import (
	"context"
	"fmt"
	"log"
	"strings"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/reactorcluster/reactord/internal/cache"
	"github.com/reactorcluster/reactord/internal/reactor"
	"github.com/reactorcluster/reactord/internal/region"
)

// StatusFileNode is a read-only file whose content reflects the reactor's
// live state: "role" reports the currently running role for its region,
// "activity" reports this node's published directory activity for it.
// content is cache'd briefly (see contentCacheTTL) so the Getattr+Read
// pair one file access triggers reads a consistent value.
type StatusFileNode struct {
	fs.Inode
	r      *reactor.Reactor
	region region.Region
	kind   string
	debug  bool
	cache  *cache.Cache[string]
}

var _ = (fs.NodeOpener)((*StatusFileNode)(nil))
var _ = (fs.NodeReader)((*StatusFileNode)(nil))
var _ = (fs.NodeGetattrer)((*StatusFileNode)(nil))

func (n *StatusFileNode) Open(ctx context.Context, flags uint32) (fh fs.FileHandle, fuseFlags uint32, errno syscall.Errno) {
	if n.debug {
		log.Printf("statusfs: open %s for %v", n.kind, n.region)
	}
	return nil, fuse.FOPEN_DIRECT_IO, fs.OK
}

func (n *StatusFileNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	content := []byte(n.content())
	if off >= int64(len(content)) {
		return fuse.ReadResultData([]byte{}), fs.OK
	}
	end := int(off) + len(dest)
	if end > len(content) {
		end = len(content)
	}
	return fuse.ReadResultData(content[off:end]), fs.OK
}

func (n *StatusFileNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = 0444
	out.Size = uint64(len(n.content()))
	out.Mtime = uint64(time.Now().Unix())
	return fs.OK
}

func (n *StatusFileNode) content() string {
	key := fmt.Sprintf("%s:%d-%d", n.kind, n.region.Start, n.region.End)
	if v, ok := n.cache.Get(key); ok {
		return v
	}

	var v string
	switch n.kind {
	case "role":
		role, ok := n.r.CurrentRoles()[n.region]
		if !ok {
			v = "none\n"
		} else {
			v = role.String() + "\n"
		}
	case "activity":
		v = n.activityContent()
	}
	n.cache.Set(key, v)
	return v
}

func (n *StatusFileNode) activityContent() string {
	snap := n.r.Snapshot()
	card := snap.Peers[n.r.Self()]
	if card == nil {
		return "no published activity\n"
	}

	var b strings.Builder
	for _, ra := range card.Activities {
		if !ra.Region.Intersect(n.region).Equal(n.region) {
			continue
		}
		fmt.Fprintf(&b, "kind: %s\n", ra.Activity.Kind)
		fmt.Fprintf(&b, "region: %s\n", ra.Region)
		if ra.Activity.Broadcaster != nil {
			fmt.Fprintf(&b, "broadcaster: %s\n", ra.Activity.Broadcaster.Addr)
		}
		if ra.Activity.Replier != nil {
			fmt.Fprintf(&b, "replier: %s\n", ra.Activity.Replier.Addr)
		}
		if ra.Activity.Backfiller != nil {
			fmt.Fprintf(&b, "backfiller: %s\n", ra.Activity.Backfiller.Addr)
		}
	}
	if b.Len() == 0 {
		return "no published activity\n"
	}
	return b.String()
}
