// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peergroup

import (
	"sync"
	"testing"

	"github.com/btcsuite/btcd/wire"
)

// fakePeer is a Peer that records queued messages.
type fakePeer struct {
	id           int32
	disconnected bool

	mtx    sync.Mutex
	queued []wire.Message
}

func (p *fakePeer) ID() int32       { return p.id }
func (p *fakePeer) Connected() bool { return !p.disconnected }

func (p *fakePeer) QueueMessage(msg wire.Message, doneChan chan<- struct{}) {
	p.mtx.Lock()
	p.queued = append(p.queued, msg)
	p.mtx.Unlock()
	if doneChan != nil {
		doneChan <- struct{}{}
	}
}

func (p *fakePeer) numQueued() int {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return len(p.queued)
}

// TestGroup ensures peers are tracked and messages are delivered to the
// expected peers.
func TestGroup(t *testing.T) {
	t.Parallel()

	g := New()
	var connected []int32
	g.NotifyPeerConnected(func(id int32) {
		// Calling back into the group must not deadlock.
		if g.Count() == 0 {
			t.Errorf("peer %d not added before notification", id)
		}
		connected = append(connected, id)
	})

	p1 := &fakePeer{id: 1}
	p2 := &fakePeer{id: 2}
	p3 := &fakePeer{id: 3, disconnected: true}
	g.Add(p1)
	g.Add(p2)
	g.Add(p2)
	g.Add(p3)
	if g.Count() != 3 {
		t.Fatalf("unexpected peer count: %d", g.Count())
	}
	if len(connected) != 3 {
		t.Fatalf("unexpected connect notifications: %v", connected)
	}

	g.BroadcastMessage(wire.NewMsgFilterClear())
	tests := []struct {
		name string
		peer *fakePeer
		want int
	}{
		{"peer 1", p1, 1},
		{"peer 2", p2, 1},
		{"disconnected peer", p3, 0},
	}
	for _, test := range tests {
		if got := test.peer.numQueued(); got != test.want {
			t.Errorf("%s: unexpected queued messages: got %d, want %d",
				test.name, got, test.want)
		}
	}

	if !g.SendMessage(1, wire.NewMsgFilterClear()) {
		t.Fatal("send to connected peer failed")
	}
	if g.SendMessage(3, wire.NewMsgFilterClear()) {
		t.Fatal("send to disconnected peer succeeded")
	}
	if g.SendMessage(4, wire.NewMsgFilterClear()) {
		t.Fatal("send to unknown peer succeeded")
	}
	if p1.numQueued() != 2 {
		t.Fatalf("unexpected queued messages: %d", p1.numQueued())
	}

	if !g.Remove(p1) || g.Remove(p1) {
		t.Fatal("unexpected remove result")
	}
	g.BroadcastMessage(wire.NewMsgFilterClear())
	if p1.numQueued() != 2 || p2.numQueued() != 2 {
		t.Fatal("unexpected delivery after removal")
	}
	if g.Count() != 2 {
		t.Fatalf("unexpected peer count: %d", g.Count())
	}
}
