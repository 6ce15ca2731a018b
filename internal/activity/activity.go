// Package activity defines the tagged state a reactor publishes about one
// of its (region, role) pairs, and the "business card" payloads it carries.
package activity

import (
	"context"
	"fmt"

	"github.com/reactorcluster/reactord/internal/branchhistory"
	"github.com/reactorcluster/reactord/internal/region"
)

// Kind tags which variant an Activity holds. Keep this switch exhaustive
// wherever Activity is matched: the safety predicate's correctness depends
// on every variant being handled explicitly rather than falling through a
// default case.
type Kind int

const (
	KindPrimaryWhenSafe Kind = iota
	KindPrimary
	KindSecondaryWithoutPrimary
	KindSecondaryUpToDate
	KindNothingWhenSafe
	KindNothingWhenDoneErasing
	KindNothing
)

func (k Kind) String() string {
	switch k {
	case KindPrimaryWhenSafe:
		return "primary_when_safe"
	case KindPrimary:
		return "primary"
	case KindSecondaryWithoutPrimary:
		return "secondary_without_primary"
	case KindSecondaryUpToDate:
		return "secondary_up_to_date"
	case KindNothingWhenSafe:
		return "nothing_when_safe"
	case KindNothingWhenDoneErasing:
		return "nothing_when_done_erasing"
	case KindNothing:
		return "nothing"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// BroadcasterCard is the constructible capability a primary advertises for
// accepting writes. Read/write dispatch itself is out of scope for the
// reactor; the card is an opaque handle peers can resolve into a live
// connection.
type BroadcasterCard struct {
	Addr string
}

// ReplierCard is added to a primary's activity once its listener/replier
// are up, advertising the read-serving endpoint.
type ReplierCard struct {
	Addr string
}

// BackfillerCard is a constructible capability for pulling a backfill from
// the peer that published it. Backfill is modeled as a function value so
// tests and the in-memory cluster harness can supply it without a real RPC
// transport; a networked deployment would resolve Addr through the mailbox
// manager instead.
type BackfillerCard struct {
	Addr     string
	Backfill func(ctx context.Context, r region.Region) ([]byte, branchhistory.VersionRange, error)
}

// Activity is the tagged sum of everything a reactor can be doing for one
// region. Only the fields relevant to Kind are populated.
type Activity struct {
	Kind Kind

	// CurrentState is populated for secondary_without_primary and
	// nothing_when_safe, and on a reactor's primary activities through
	// withCurrentState: the version range the local store currently holds.
	CurrentState branchhistory.VersionRange

	Broadcaster *BroadcasterCard
	Replier     *ReplierCard
	Backfiller  *BackfillerCard
}

func PrimaryWhenSafe() Activity {
	return Activity{Kind: KindPrimaryWhenSafe}
}

func Primary(broadcaster BroadcasterCard) Activity {
	return Activity{Kind: KindPrimary, Broadcaster: &broadcaster}
}

func PrimaryWithReplier(broadcaster BroadcasterCard, replier ReplierCard) Activity {
	return Activity{Kind: KindPrimary, Broadcaster: &broadcaster, Replier: &replier}
}

func SecondaryWithoutPrimary(state branchhistory.VersionRange, backfiller BackfillerCard) Activity {
	return Activity{Kind: KindSecondaryWithoutPrimary, CurrentState: state, Backfiller: &backfiller}
}

func SecondaryUpToDate(backfiller BackfillerCard) Activity {
	return Activity{Kind: KindSecondaryUpToDate, Backfiller: &backfiller}
}

func NothingWhenSafe(state branchhistory.VersionRange, backfiller BackfillerCard) Activity {
	return Activity{Kind: KindNothingWhenSafe, CurrentState: state, Backfiller: &backfiller}
}

func NothingWhenDoneErasing() Activity {
	return Activity{Kind: KindNothingWhenDoneErasing}
}

func Nothing() Activity {
	return Activity{Kind: KindNothing}
}

// SafeForOthersPrimary reports whether this activity's variant is one that
// lets another peer safely assume primary for the same region: the peer
// must not itself be primary or becoming primary.
func (a Activity) SafeForOthersPrimary() bool {
	switch a.Kind {
	case KindSecondaryWithoutPrimary, KindNothingWhenSafe, KindNothing, KindNothingWhenDoneErasing:
		return true
	case KindPrimaryWhenSafe, KindPrimary, KindSecondaryUpToDate:
		return false
	default:
		panic(fmt.Sprintf("activity: unknown variant %v in safety check", a.Kind))
	}
}

func (a Activity) String() string {
	return a.Kind.String()
}
