// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peergroup

import (
	"sync"

	"github.com/btcsuite/btcd/wire"
)

// Peer is a connected remote peer messages may be queued to.
type Peer interface {
	// ID returns a unique identifier of the peer.
	ID() int32

	// QueueMessage queues the message to be sent to the peer.  The done
	// channel, when not nil, is notified once the message is sent.
	QueueMessage(msg wire.Message, doneChan chan<- struct{})

	// Connected returns whether or not the peer is still connected.
	Connected() bool
}

// Group tracks the set of connected peers and allows messages to be sent to
// all of them or to an individual peer.
type Group struct {
	mtx         sync.RWMutex
	peers       map[int32]Peer
	subscribers []func(id int32)
}

// New returns an empty peer group.
func New() *Group {
	return &Group{peers: make(map[int32]Peer)}
}

// Add adds the peer to the group and notifies connect subscribers.  Adding a
// peer that is already a member does nothing.
//
// This function is safe for concurrent access.
func (g *Group) Add(p Peer) {
	g.mtx.Lock()
	if _, ok := g.peers[p.ID()]; ok {
		g.mtx.Unlock()
		return
	}
	g.peers[p.ID()] = p
	subscribers := g.subscribers
	g.mtx.Unlock()

	log.Debugf("Added peer %d (total %d)", p.ID(), g.Count())
	for _, fn := range subscribers {
		fn(p.ID())
	}
}

// Remove removes the peer from the group and returns whether or not it was a
// member.
//
// This function is safe for concurrent access.
func (g *Group) Remove(p Peer) bool {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	if _, ok := g.peers[p.ID()]; !ok {
		return false
	}
	delete(g.peers, p.ID())
	log.Debugf("Removed peer %d (total %d)", p.ID(), len(g.peers))
	return true
}

// BroadcastMessage queues the message to every connected peer in the group.
//
// This function is safe for concurrent access.
func (g *Group) BroadcastMessage(msg wire.Message) {
	g.mtx.RLock()
	defer g.mtx.RUnlock()
	for _, p := range g.peers {
		if !p.Connected() {
			continue
		}
		p.QueueMessage(msg, nil)
	}
	log.Tracef("Broadcast %s to %d peers", msg.Command(), len(g.peers))
}

// SendMessage queues the message to the peer with the provided id and returns
// false when there is no such connected peer.
//
// This function is safe for concurrent access.
func (g *Group) SendMessage(id int32, msg wire.Message) bool {
	g.mtx.RLock()
	p, ok := g.peers[id]
	g.mtx.RUnlock()
	if !ok || !p.Connected() {
		return false
	}
	p.QueueMessage(msg, nil)
	return true
}

// NotifyPeerConnected registers the provided function to be invoked with the
// id of every peer added afterwards.  It is invoked without any locks held.
//
// This function is safe for concurrent access.
func (g *Group) NotifyPeerConnected(fn func(id int32)) {
	g.mtx.Lock()
	g.subscribers = append(g.subscribers[:len(g.subscribers):len(g.subscribers)], fn)
	g.mtx.Unlock()
}

// Count returns the number of peers in the group.
//
// This function is safe for concurrent access.
func (g *Group) Count() int {
	g.mtx.RLock()
	defer g.mtx.RUnlock()
	return len(g.peers)
}
