package mailbox

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSendDeliversToHandler(t *testing.T) {
	t.Parallel()
	net := NewNetwork()
	a := net.View("a")
	b := net.View("b")

	var mu sync.Mutex
	var got any
	done := make(chan struct{})
	addr := b.NewAddr(func(_ context.Context, payload any) {
		mu.Lock()
		got = payload
		mu.Unlock()
		close(done)
	})

	if err := a.Send(context.Background(), addr, "hello"); err != nil {
		t.Fatalf("Send returned %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}

	mu.Lock()
	defer mu.Unlock()
	if got != "hello" {
		t.Errorf("handler received %v, want %q", got, "hello")
	}
}

func TestSendToClosedAddrFails(t *testing.T) {
	t.Parallel()
	net := NewNetwork()
	a := net.View("a")
	b := net.View("b")

	addr := b.NewAddr(func(context.Context, any) {})
	b.Close(addr)

	if err := a.Send(context.Background(), addr, "x"); err != ErrResourceLost {
		t.Errorf("Send = %v, want ErrResourceLost", err)
	}
}

func TestPeersAndConnectivity(t *testing.T) {
	t.Parallel()
	net := NewNetwork()
	a := net.View("a")
	net.View("b")

	if !a.IsConnected("b") {
		t.Error("b should be connected after View")
	}
	net.Leave("b")
	if a.IsConnected("b") {
		t.Error("b should be disconnected after Leave")
	}

	peers := a.Peers()
	found := false
	for _, p := range peers {
		if p == "a" {
			found = true
		}
	}
	if !found {
		t.Error("Peers() should include self")
	}
}
