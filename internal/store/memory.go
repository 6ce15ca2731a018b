package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/reactorcluster/reactord/internal/branchhistory"
	"github.com/reactorcluster/reactord/internal/region"
)

type memEntry struct {
	region region.Region
	vr     branchhistory.VersionRange
	data   []byte
}

// Memory is an in-memory StoreView, fast enough for reactor unit tests and
// for running a small in-process cluster harness without a database.
type Memory struct {
	mu      sync.Mutex
	entries []memEntry
}

// NewMemory returns an empty Memory store. initial seeds its starting
// metainfo, e.g. a single root-branch entry for region.Full for a brand new
// node.
func NewMemory(initial ...MetainfoEntry) *Memory {
	m := &Memory{}
	for _, e := range initial {
		m.entries = append(m.entries, memEntry{region: e.Region, vr: e.Range})
	}
	return m
}

func (m *Memory) GetMetainfo(_ context.Context, r region.Region) ([]MetainfoEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []MetainfoEntry
	for _, e := range m.entries {
		c := e.region.Intersect(r)
		if !c.Empty() {
			out = append(out, MetainfoEntry{Region: c, Range: e.vr})
		}
	}
	return out, nil
}

func (m *Memory) SetMetainfo(_ context.Context, r region.Region, vr branchhistory.VersionRange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replace(r, vr, nil, false)
	return nil
}

func (m *Memory) Erase(_ context.Context, r region.Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rebuilt []memEntry
	for _, e := range m.entries {
		rebuilt = append(rebuilt, splitAround(e, r)...)
	}
	m.entries = rebuilt
	return nil
}

func (m *Memory) Read(_ context.Context, r region.Region) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.region.Contains(r) {
			return e.data, nil
		}
	}
	return nil, fmt.Errorf("store: no single entry covers %v", r)
}

func (m *Memory) Write(_ context.Context, r region.Region, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var vr branchhistory.VersionRange
	for _, e := range m.entries {
		if e.region.Overlaps(r) {
			vr = e.vr
			break
		}
	}
	m.replace(r, vr, data, true)
	return nil
}

// replace overwrites the portion of the store covering r with (vr, data),
// splitting any overlapping entries so the store continues to partition its
// domain. setData controls whether data is installed (Write) or the
// existing data is kept (SetMetainfo, which only updates version ranges).
func (m *Memory) replace(r region.Region, vr branchhistory.VersionRange, data []byte, setData bool) {
	var rebuilt []memEntry
	remaining := []region.Region{r}
	for _, e := range m.entries {
		overlap := e.region.Intersect(r)
		if overlap.Empty() {
			rebuilt = append(rebuilt, e)
			continue
		}
		for _, rem := range e.region.Subtract(overlap) {
			rebuilt = append(rebuilt, memEntry{region: rem, vr: e.vr, data: e.data})
		}
		d := e.data
		if setData {
			d = data
		}
		rebuilt = append(rebuilt, memEntry{region: overlap, vr: vr, data: d})

		var next []region.Region
		for _, rr := range remaining {
			next = append(next, rr.Subtract(overlap)...)
		}
		remaining = next
	}
	// Any portion of r not covered by an existing entry is freshly created.
	for _, leftover := range remaining {
		rebuilt = append(rebuilt, memEntry{region: leftover, vr: vr, data: data})
	}
	m.entries = rebuilt
}

// splitAround returns e's portions not covered by r, dropping the rest.
func splitAround(e memEntry, r region.Region) []memEntry {
	var out []memEntry
	for _, rem := range e.region.Subtract(r) {
		out = append(out, memEntry{region: rem, vr: e.vr, data: e.data})
	}
	return out
}
