// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package watchstore

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/decred/bloomsync/filtermgr"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// newMemStore returns a store backed by an in-memory database.
func newMemStore(t *testing.T) *Store {
	t.Helper()

	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		t.Fatalf("unable to open database: %v", err)
	}
	s := New(db)
	t.Cleanup(func() { s.Close() })
	return s
}

// fetch invokes FetchElements and waits for the reply.
func fetch(t *testing.T, s *Store) ([][]byte, error) {
	t.Helper()

	type result struct {
		elements interface{}
		err      error
	}
	results := make(chan result, 1)
	resp := s.FetchElements(func(elements interface{}, err error) {
		results <- result{elements, err}
	})
	if resp != filtermgr.Deferred {
		t.Fatalf("unexpected synchronous response %v", resp)
	}

	select {
	case r := <-results:
		if r.err != nil {
			return nil, r.err
		}
		elements, ok := r.elements.([][]byte)
		if r.elements != nil && !ok {
			t.Fatalf("unexpected response type %T", r.elements)
		}
		return elements, nil
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for fetch reply")
	}
	return nil, nil
}

// TestAddItems ensures items are stored once and can be queried.
func TestAddItems(t *testing.T) {
	t.Parallel()

	s := newMemStore(t)
	tests := []struct {
		name      string
		items     [][]byte
		wantErr   error
		wantCount int
	}{{
		name:      "first items",
		items:     [][]byte{{0x02}, {0x01}},
		wantCount: 2,
	}, {
		name:      "duplicates within batch",
		items:     [][]byte{{0x03}, {0x03}},
		wantCount: 3,
	}, {
		name:      "already stored",
		items:     [][]byte{{0x01}},
		wantCount: 3,
	}, {
		name:      "empty item",
		items:     [][]byte{{0x04}, {}},
		wantErr:   ErrEmptyItem,
		wantCount: 3,
	}}

	for _, test := range tests {
		err := s.Add(test.items...)
		if !errors.Is(err, test.wantErr) {
			t.Fatalf("%q: unexpected error: got %v, want %v", test.name,
				err, test.wantErr)
		}
		count, err := s.Count()
		if err != nil {
			t.Fatalf("%q: unexpected count error: %v", test.name, err)
		}
		if count != test.wantCount {
			t.Fatalf("%q: unexpected count: got %d, want %d", test.name,
				count, test.wantCount)
		}
	}

	items, err := s.Items()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [][]byte{{0x01}, {0x02}, {0x03}}
	if len(items) != len(want) {
		t.Fatalf("unexpected items: got %x, want %x", items, want)
	}
	for i := range want {
		if !bytes.Equal(items[i], want[i]) {
			t.Fatalf("unexpected item %d: got %x, want %x", i, items[i],
				want[i])
		}
	}

	for _, item := range want {
		if ok, err := s.Has(item); err != nil || !ok {
			t.Fatalf("item %x not found (err %v)", item, err)
		}
	}
	if ok, _ := s.Has([]byte{0x04}); ok {
		t.Fatal("item from failed batch was stored")
	}
}

// TestSubscribe ensures subscribers are only notified about new items and not
// after cancelling.
func TestSubscribe(t *testing.T) {
	t.Parallel()

	s := newMemStore(t)
	if err := s.Add([]byte("old")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var mtx sync.Mutex
	var notified [][]byte
	cancel := s.Subscribe(func(items ...[]byte) {
		mtx.Lock()
		notified = append(notified, items...)
		mtx.Unlock()
	})

	if err := s.Add([]byte("old"), []byte("new")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mtx.Lock()
	if len(notified) != 1 || !bytes.Equal(notified[0], []byte("new")) {
		t.Fatalf("unexpected notifications: %q", notified)
	}
	mtx.Unlock()

	cancel()
	if err := s.Add([]byte("newer")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mtx.Lock()
	defer mtx.Unlock()
	if len(notified) != 1 {
		t.Fatalf("notified after cancel: %q", notified)
	}
}

// TestFetchElements ensures fetches reply with every stored item.
func TestFetchElements(t *testing.T) {
	t.Parallel()

	s := newMemStore(t)
	elements, err := fetch(t, s)
	if err != nil || len(elements) != 0 {
		t.Fatalf("unexpected empty fetch result: %x (err %v)", elements, err)
	}

	if err := s.Add([]byte("a"), []byte("b")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	elements, err = fetch(t, s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(elements) != 2 {
		t.Fatalf("unexpected number of elements: %d", len(elements))
	}
}

// TestClosed ensures the store rejects use after it is closed.
func TestClosed(t *testing.T) {
	t.Parallel()

	s := newMemStore(t)
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected second close error: %v", err)
	}
	if err := s.Add([]byte("a")); !errors.Is(err, ErrClosed) {
		t.Fatalf("unexpected add error: %v", err)
	}
	if _, err := s.Has([]byte("a")); !errors.Is(err, ErrClosed) {
		t.Fatalf("unexpected has error: %v", err)
	}
	if _, err := fetch(t, s); !errors.Is(err, ErrClosed) {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	s.Subscribe(func(...[]byte) {})()
}

// TestOpenPersists ensures items survive reopening the database.
func TestOpenPersists(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "watch")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("unable to open store: %v", err)
	}
	if err := s.Add([]byte("persisted")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	s, err = Open(dbPath)
	if err != nil {
		t.Fatalf("unable to reopen store: %v", err)
	}
	defer s.Close()
	if ok, err := s.Has([]byte("persisted")); err != nil || !ok {
		t.Fatalf("item not persisted (err %v)", err)
	}
}

// stubPeers is a filtermgr.PeerNotifier that counts broadcast filteradds.
type stubPeers struct {
	mtx  sync.Mutex
	adds int
}

func (p *stubPeers) BroadcastMessage(msg wire.Message) {
	if _, ok := msg.(*wire.MsgFilterAdd); ok {
		p.mtx.Lock()
		p.adds++
		p.mtx.Unlock()
	}
}

func (p *stubPeers) SendMessage(int32, wire.Message) bool { return false }
func (p *stubPeers) NotifyPeerConnected(func(int32))       {}

func (p *stubPeers) numAdds() int {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return p.adds
}

// TestFilterSource ensures the store works as a source for the filter
// manager.
func TestFilterSource(t *testing.T) {
	t.Parallel()

	s := newMemStore(t)
	if err := s.Add([]byte("existing")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	peers := &stubPeers{}
	mgr, err := filtermgr.New(&filtermgr.Config{Peers: peers})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mgr.AddSource(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mgr.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	if err := mgr.WaitUntilReady(waitCtx); err != nil {
		t.Fatalf("manager not ready: %v", err)
	}
	if ok, err := mgr.Matches([]byte("existing")); err != nil || !ok {
		t.Fatalf("filter does not match stored item (err %v)", err)
	}

	if err := s.Add([]byte("added later")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for peers.numAdds() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("timeout waiting for filteradd")
		}
		time.Sleep(time.Millisecond)
	}
	if ok, err := mgr.Matches([]byte("added later")); err != nil || !ok {
		t.Fatalf("filter does not match added item (err %v)", err)
	}
}

// addDuringFetchStore is a store that adds an item after loading its items for
// a fetch but before replying with them.
type addDuringFetchStore struct {
	*Store
	t    *testing.T
	item []byte
}

func (s *addDuringFetchStore) FetchElements(reply filtermgr.ReplyFunc) interface{} {
	return s.Store.FetchElements(func(elements interface{}, err error) {
		if addErr := s.Add(s.item); addErr != nil {
			s.t.Errorf("unexpected error adding item during fetch: %v",
				addErr)
		}
		reply(elements, err)
	})
}

// TestFilterSourceAddDuringFetch ensures items added to the store while the
// filter manager is fetching its items are not missed, both when the store is
// registered with a running manager and when it is fetched for the initial
// filter.
func TestFilterSourceAddDuringFetch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		addBeforeRun bool
	}{
		{"registered while running", false},
		{"registered before run", true},
	}

	for _, test := range tests {
		s := newMemStore(t)
		early, late := []byte("early"), []byte("late")
		if err := s.Add(early); err != nil {
			t.Fatalf("%q: unexpected error: %v", test.name, err)
		}
		src := &addDuringFetchStore{Store: s, t: t, item: late}

		mgr, err := filtermgr.New(&filtermgr.Config{Peers: &stubPeers{}})
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", test.name, err)
		}
		if test.addBeforeRun {
			if err := mgr.AddSource(src); err != nil {
				t.Fatalf("%q: unexpected error: %v", test.name, err)
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			mgr.Run(ctx)
			close(done)
		}()

		waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
		err = mgr.WaitUntilReady(waitCtx)
		waitCancel()
		if err != nil {
			t.Fatalf("%q: manager not ready: %v", test.name, err)
		}
		if !test.addBeforeRun {
			if err := mgr.AddSource(src); err != nil {
				t.Fatalf("%q: unexpected error: %v", test.name, err)
			}
		}

		if ok, err := s.Has(late); err != nil || !ok {
			t.Fatalf("%q: item not stored (err %v)", test.name, err)
		}
		for _, item := range [][]byte{early, late} {
			ok, err := mgr.Matches(item)
			if err != nil || !ok {
				t.Fatalf("%q: filter does not match %q (err %v)",
					test.name, item, err)
			}
		}
		stats, err := mgr.Stats()
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", test.name, err)
		}
		if stats.Sources != 1 {
			t.Fatalf("%q: unexpected number of sources: %d", test.name,
				stats.Sources)
		}

		cancel()
		<-done
	}
}
