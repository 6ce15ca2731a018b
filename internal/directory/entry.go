package directory

import (
	"sync"

	"github.com/reactorcluster/reactord/internal/activity"
	"github.com/reactorcluster/reactord/internal/region"
)

// Entry is the scoped sentry of §4.B: while alive it advertises one
// activity for one region; closing it retracts that advertisement
// atomically. An Entry's lifetime is strictly shorter than the role runner
// that owns it — this is the central discipline behind the "no stale
// directory entries" invariant (§8).
type Entry struct {
	echo   *EchoAccess
	region region.Region

	mu sync.Mutex
	id ActivityID
}

// NewEntry constructs a directory entry for region, publishing an initial
// "nothing" activity under a freshly allocated id.
func NewEntry(echo *EchoAccess, r region.Region) *Entry {
	e := &Entry{echo: echo, region: r}
	e.id = echo.NewActivityID()
	echo.Publish(e.id, r, activity.Nothing())
	return e
}

// ActivityID returns the id currently backing this entry.
func (e *Entry) ActivityID() ActivityID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

// Set republishes act under a newly allocated id, swapping out the
// previous one atomically. The id change signals observers holding a
// subscription against the old id that the underlying sub-state changed
// and should be dropped; doing the swap as a single directory operation
// means no observer ever sees the old and new ids both present (which
// would look like the region is doubly covered) or neither present (which
// would look like it dropped out of the directory entirely).
func (e *Entry) Set(act activity.Activity) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	newID := e.echo.NewActivityID()
	version := e.echo.Swap(e.id, newID, e.region, act)
	e.id = newID
	return version
}

// UpdateWithoutChangingID mutates the published payload in place, for use
// when strictly refining a state (e.g. a primary appending its replier
// card) so subscribers built against the current id remain valid.
func (e *Entry) UpdateWithoutChangingID(act activity.Activity) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.echo.Publish(e.id, e.region, act)
}

// Close retracts this entry's activity. It must be called exactly once,
// when the owning role runner is tearing down.
func (e *Entry) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.echo.Retract(e.id)
}
