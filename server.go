// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/peer"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/bloomsync/filtermgr"
	"github.com/decred/bloomsync/internal/peergroup"
	"github.com/decred/bloomsync/internal/version"
	"github.com/decred/bloomsync/watchstore"
	"github.com/decred/dcrd/connmgr/v3"
)

const (
	// connectionRetryInterval is the base amount of time to wait in
	// between retries when connecting to persistent peers.  It is adjusted
	// by the number of retries such that there is a retry backoff.
	connectionRetryInterval = time.Second * 5

	// userAgentName is the user agent name and is used to help identify
	// ourselves to other peers.
	userAgentName = "bloomsyncd"
)

// userAgentVersion is the user agent version and is used to help identify
// ourselves to other peers.
var userAgentVersion = version.String()

// simpleAddr implements the net.Addr interface with two struct fields.  It is
// used so hostnames are resolved by the dialer, which is the proxy when one
// is configured, rather than locally.
type simpleAddr struct {
	net, addr string
}

// String returns the address.
//
// This is part of the net.Addr interface.
func (a simpleAddr) String() string {
	return a.addr
}

// Network returns the network.
//
// This is part of the net.Addr interface.
func (a simpleAddr) Network() string {
	return a.net
}

// Ensure simpleAddr implements the net.Addr interface.
var _ net.Addr = simpleAddr{}

// serverPeer extends the peer to maintain state shared by the server.
type serverPeer struct {
	*peer.Peer

	server  *server
	connReq *connmgr.ConnReq

	// rejected is set when the peer does not support bloom filters so the
	// connection is not retried.
	rejected atomic.Bool
}

// newServerPeer returns a new serverPeer instance.  The peer needs to be set by
// the caller.
func newServerPeer(s *server, c *connmgr.ConnReq) *serverPeer {
	return &serverPeer{server: s, connReq: c}
}

// OnVerAck is invoked when a peer receives a verack message.  Peers that are
// able to serve bloom filtered data are added to the peer group which sends
// them the current filter.  All others are disconnected.
func (sp *serverPeer) OnVerAck(_ *peer.Peer, _ *wire.MsgVerAck) {
	if sp.Services()&wire.SFNodeBloom != wire.SFNodeBloom {
		srvrLog.Infof("Peer %s does not support bloom filters "+
			"(services %v) -- disconnecting", sp, sp.Services())
		sp.reject()
		return
	}
	if sp.ProtocolVersion() < wire.BIP0037Version {
		srvrLog.Infof("Peer %s protocol version %d is too old for bloom "+
			"filters -- disconnecting", sp, sp.ProtocolVersion())
		sp.reject()
		return
	}

	srvrLog.Infof("New peer %s (%s, %s)", sp, sp.UserAgent(), sp.Services())
	sp.server.peers.Add(sp)
}

// reject disconnects the peer without retrying the connection.
func (sp *serverPeer) reject() {
	sp.rejected.Store(true)
	sp.Disconnect()
}

// server provides a bloom filtering light client that keeps the configured
// peers synchronized with the filter of the watched elements.
type server struct {
	connManager *connmgr.ConnManager
	peers       *peergroup.Group
	filterMgr   *filtermgr.Manager

	// watchStore is the persistent store of watched items.  It is nil
	// when disabled.
	watchStore *watchstore.Store
}

// newPeerConfig returns the configuration for the given serverPeer.
func newPeerConfig(sp *serverPeer) *peer.Config {
	return &peer.Config{
		Listeners: peer.MessageListeners{
			OnVerAck: sp.OnVerAck,
		},
		UserAgentName:    userAgentName,
		UserAgentVersion: userAgentVersion,
		ChainParams:      cfg.params,
		Proxy:            cfg.Proxy,
		DisableRelayTx:   true,
	}
}

// outboundPeerConnected is invoked by the connection manager when a new
// outbound connection is established.  It initializes a new outbound server
// peer instance, associates it with the connection, and waits for it to
// disconnect in a separate goroutine.
func (s *server) outboundPeerConnected(c *connmgr.ConnReq, conn net.Conn) {
	sp := newServerPeer(s, c)
	p, err := peer.NewOutboundPeer(newPeerConfig(sp), c.Addr.String())
	if err != nil {
		srvrLog.Debugf("Cannot create outbound peer %s: %v", c.Addr, err)
		s.connManager.Disconnect(c.ID())
		return
	}
	sp.Peer = p
	sp.AssociateConnection(conn)
	go s.peerDoneHandler(sp)
}

// peerDoneHandler removes the peer from the peer group once it disconnects
// and tells the connection manager to retry the connection unless the peer
// was rejected.
//
// It must be run as a goroutine.
func (s *server) peerDoneHandler(sp *serverPeer) {
	sp.WaitForDisconnect()
	s.peers.Remove(sp)

	if sp.rejected.Load() {
		s.connManager.Remove(sp.connReq.ID())
		return
	}
	srvrLog.Infof("Peer %s disconnected", sp)
	s.connManager.Disconnect(sp.connReq.ID())
}

// logFilterReady logs details about the initial filter once it is built.
func (s *server) logFilterReady(ctx context.Context) {
	if err := s.filterMgr.WaitUntilReady(ctx); err != nil {
		return
	}
	stats, err := s.filterMgr.Stats()
	if err != nil {
		return
	}
	srvrLog.Infof("Filter ready: %d static elements, %d sources, %d "+
		"insertions, %d bytes, estimated false positive rate %.6f",
		stats.Elements, stats.Sources, stats.InsertionCount,
		stats.FilterBytes, stats.FalsePositiveRate)
}

// Run starts the server and blocks until the provided context is cancelled.
// This entails connecting to the configured peers and keeping them
// synchronized with the filter.
func (s *server) Run(ctx context.Context) {
	srvrLog.Trace("Starting server")

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		s.filterMgr.Run(ctx)
		wg.Done()
	}()
	go func() {
		s.connManager.Run(ctx)
		wg.Done()
	}()
	go func() {
		s.logFilterReady(ctx)
		wg.Done()
	}()

	// Start up persistent peers.
	for _, addr := range cfg.connectAddrs {
		go s.connManager.Connect(ctx, &connmgr.ConnReq{
			Addr:      simpleAddr{net: "tcp", addr: addr},
			Permanent: true,
		})
	}

	// Shutdown the server when the context is cancelled.
	<-ctx.Done()
	srvrLog.Warnf("Server shutting down")
	wg.Wait()

	if s.watchStore != nil {
		if err := s.watchStore.Close(); err != nil {
			srvrLog.Errorf("Unable to close watch store: %v", err)
		}
	}
	srvrLog.Trace("Server stopped")
}

// newServer returns a new bloomsyncd server configured to watch the elements
// specified by the configuration.
func newServer(cfg *config) (*server, error) {
	s := server{peers: peergroup.New()}

	filterMgr, err := filtermgr.New(&filtermgr.Config{
		Peers:             s.peers,
		FalsePositiveRate: cfg.FalsePositiveRate,
		ResizeThreshold:   cfg.ResizeThreshold,
		UpdateFlags:       cfg.bloomUpdate,
		DisableFilterAdd:  cfg.NoFilterAdd,
		OnError: func(err error) {
			srvrLog.Errorf("Filter error: %v", err)
		},
	})
	if err != nil {
		return nil, err
	}
	s.filterMgr = filterMgr

	for _, element := range cfg.watchElements {
		if err := filterMgr.AddElement(element); err != nil {
			return nil, err
		}
	}

	if !cfg.NoWatchDB {
		store, err := watchstore.Open(cfg.WatchDB)
		if err != nil {
			return nil, err
		}
		if err := store.Add(cfg.watchItems...); err != nil {
			store.Close()
			return nil, err
		}
		if err := filterMgr.AddSource(store); err != nil {
			store.Close()
			return nil, err
		}
		s.watchStore = store
	}

	cmgr, err := connmgr.New(&connmgr.Config{
		RetryDuration:  connectionRetryInterval,
		TargetOutbound: uint32(len(cfg.connectAddrs)),
		Dial:           cfg.dial,
		Timeout:        cfg.DialTimeout,
		OnConnection:   s.outboundPeerConnected,
	})
	if err != nil {
		if s.watchStore != nil {
			s.watchStore.Close()
		}
		return nil, err
	}
	s.connManager = cmgr

	return &s, nil
}
