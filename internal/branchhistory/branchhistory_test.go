package branchhistory

import (
	"testing"

	"github.com/reactorcluster/reactord/internal/region"
)

func TestIsAncestorSameBranch(t *testing.T) {
	t.Parallel()
	h := New()
	v := Version{Branch: "a", Revision: 1}
	w := Version{Branch: "a", Revision: 5}
	if !h.IsAncestor(v, w, region.Full) {
		t.Error("lower revision on same branch should be an ancestor")
	}
	if h.IsAncestor(w, v, region.Full) {
		t.Error("higher revision should not be an ancestor of a lower one")
	}
}

func TestIsAncestorAcrossBranches(t *testing.T) {
	t.Parallel()
	h := New()
	h.AddBranch("child", "parent", region.Full)

	v := Version{Branch: "parent", Revision: 10}
	w := Version{Branch: "child", Revision: 0}
	if !h.IsAncestor(v, w, region.Full) {
		t.Error("parent should be an ancestor of its child")
	}
	if h.IsAncestor(w, v, region.Full) {
		t.Error("child should not be an ancestor of its parent")
	}
}

func TestIsAncestorNarrowerRegionBreaksLineage(t *testing.T) {
	t.Parallel()
	h := New()
	// child only inherited from parent over half the key space
	h.AddBranch("child", "parent", region.New(0, 50))

	v := Version{Branch: "parent", Revision: 1}
	w := Version{Branch: "child", Revision: 1}
	if h.IsAncestor(v, w, region.New(0, 100)) {
		t.Error("ancestry restricted to [0,50) should not hold over [0,100)")
	}
	if !h.IsAncestor(v, w, region.New(0, 30)) {
		t.Error("ancestry should hold for a region inside the inherited range")
	}
}

func TestIsDivergent(t *testing.T) {
	t.Parallel()
	h := New()
	h.AddBranch("left", "root", region.Full)
	h.AddBranch("right", "root", region.Full)

	v := Version{Branch: "left", Revision: 0}
	w := Version{Branch: "right", Revision: 0}
	if !h.IsDivergent(v, w, region.Full) {
		t.Error("sibling branches should be divergent")
	}
	if h.IsDivergent(v, v, region.Full) {
		t.Error("a version is never divergent with itself")
	}
}

func TestMergeIsIdempotentAndUnion(t *testing.T) {
	t.Parallel()
	a := New()
	a.AddBranch("x", "root", region.Full)

	b := New()
	b.AddBranch("y", "x", region.Full)

	a.Merge(b)
	a.Merge(b) // idempotent

	v := Version{Branch: "root", Revision: 0}
	w := Version{Branch: "y", Revision: 0}
	if !a.IsAncestor(v, w, region.Full) {
		t.Error("merged history should chain root -> x -> y")
	}
}
