// Package mailbox defines the reactor's consumed view of the cluster's
// RPC/mailbox substrate (§6): addressable one-way endpoints for mailbox_manager,
// plus connectivity_service's peer membership and liveness. A live
// deployment would back this with real network transport; this package
// provides the consumed interfaces plus an in-memory mesh sufficient to run
// and test a reactor without one.
package mailbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/reactorcluster/reactord/internal/blueprint"
)

// Addr is a serializable one-way endpoint address (mailbox_addr_t).
type Addr string

func newAddr() Addr {
	return Addr(uuid.NewString())
}

// ErrResourceLost is returned when a send targets an endpoint or peer that
// is no longer reachable — the mailbox analogue of the reactor's general
// resource-lost condition (§7).
var ErrResourceLost = fmt.Errorf("mailbox: destination unreachable")

// Handler processes one delivered payload. Handlers run on their own
// goroutine per delivery, mirroring the original's "mailbox delivery is
// hopped to the addressee's thread" cross-thread surface.
type Handler func(ctx context.Context, payload any)

// Manager is the reactor's consumed mailbox_manager: create typed one-way
// endpoints, and send to one fire-and-forget, unordered, best-effort.
type Manager interface {
	NewAddr(handler Handler) Addr
	Send(ctx context.Context, addr Addr, payload any) error
}

// Connectivity is the reactor's consumed connectivity_service.
type Connectivity interface {
	Me() blueprint.PeerID
	Peers() []blueprint.PeerID
	IsConnected(peer blueprint.PeerID) bool
}

type endpoint struct {
	owner   blueprint.PeerID
	handler Handler
	limiter *rate.Limiter
}

// Network is the shared hub backing an in-memory cluster of peers sharing
// one process. Each peer gets a *View scoped to its own identity; View
// implements both Manager and Connectivity against the shared endpoint and
// membership tables.
type Network struct {
	mu        sync.Mutex
	endpoints map[Addr]*endpoint
	peers     map[blueprint.PeerID]bool
}

// NewNetwork returns an empty mesh.
func NewNetwork() *Network {
	return &Network{
		endpoints: make(map[Addr]*endpoint),
		peers:     make(map[blueprint.PeerID]bool),
	}
}

// Join marks peer as connected, the in-memory analogue of a node joining
// the cluster's gossip mesh.
func (n *Network) Join(peer blueprint.PeerID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.peers[peer] = true
}

// Leave marks peer as disconnected; in-flight sends to its endpoints start
// failing with ErrResourceLost.
func (n *Network) Leave(peer blueprint.PeerID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.peers, peer)
}

// View scopes the network to one peer's identity.
func (n *Network) View(me blueprint.PeerID) *View {
	n.Join(me)
	return &View{net: n, me: me}
}

// View is a peer-scoped handle onto a Network, implementing Manager and
// Connectivity.
type View struct {
	net *Network
	me  blueprint.PeerID
}

func (v *View) Me() blueprint.PeerID { return v.me }

func (v *View) Peers() []blueprint.PeerID {
	v.net.mu.Lock()
	defer v.net.mu.Unlock()
	out := make([]blueprint.PeerID, 0, len(v.net.peers))
	for p := range v.net.peers {
		out = append(out, p)
	}
	return out
}

func (v *View) IsConnected(peer blueprint.PeerID) bool {
	v.net.mu.Lock()
	defer v.net.mu.Unlock()
	return v.net.peers[peer]
}

// NewAddr registers a fresh endpoint owned by this view's peer, throttled
// to a modest steady-state rate so a misbehaving sender retrying sends
// after every directory change cannot starve the addressee (§7 Transient).
func (v *View) NewAddr(handler Handler) Addr {
	addr := newAddr()
	v.net.mu.Lock()
	v.net.endpoints[addr] = &endpoint{owner: v.me, handler: handler, limiter: rate.NewLimiter(rate.Limit(50), 10)}
	v.net.mu.Unlock()
	return addr
}

// Send delivers payload to addr's handler on its own goroutine. It returns
// ErrResourceLost if the endpoint no longer exists (the addressee dropped
// it, e.g. a directory entry was retracted) or its owning peer has left
// the network, and otherwise blocks only on the endpoint's rate limiter,
// not on the handler completing.
func (v *View) Send(ctx context.Context, addr Addr, payload any) error {
	v.net.mu.Lock()
	ep, ok := v.net.endpoints[addr]
	if ok && !v.net.peers[ep.owner] {
		ok = false
	}
	v.net.mu.Unlock()
	if !ok {
		return ErrResourceLost
	}
	if err := ep.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("mailbox: rate limit wait: %w", err)
	}
	go ep.handler(ctx, payload)
	return nil
}

// Close removes addr, causing future sends to it to fail with
// ErrResourceLost. The reactor's role runners do not call Close: endpoints
// they create stay registered after the runner exits.
func (v *View) Close(addr Addr) {
	v.net.mu.Lock()
	defer v.net.mu.Unlock()
	delete(v.net.endpoints, addr)
}

var (
	_ Manager      = (*View)(nil)
	_ Connectivity = (*View)(nil)
)
