// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package watchstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/decred/bloomsync/filtermgr"
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// itemPrefix is the key prefix of every watched item in the database.
var itemPrefix = []byte("watch/")

// itemKey returns the database key for the provided item.
func itemKey(item []byte) []byte {
	key := make([]byte, 0, len(itemPrefix)+len(item))
	key = append(key, itemPrefix...)
	return append(key, item...)
}

// convertLdbErr converts the passed leveldb error into an error with an
// equivalent error kind and the passed description.
func convertLdbErr(ldbErr error, desc string) Error {
	kind := ErrDatabase
	switch {
	case ldberrors.IsCorrupted(ldbErr):
		kind = ErrCorruption
	case errors.Is(ldbErr, leveldb.ErrClosed):
		kind = ErrClosed
	}

	err := makeError(kind, fmt.Sprintf("%s: %v", desc, ldbErr))
	err.RawErr = ldbErr
	return err
}

// Store is a persistent set of items to watch for, such as scripts and
// serialized outpoints.  It implements filtermgr.Source so that every stored
// item is matched by the filter and items added later are announced to peers.
type Store struct {
	// db is the database that holds the items.  It is set when the instance
	// is created and is not changed afterward.
	db *leveldb.DB

	// mtx protects the fields below and serializes additions so
	// subscribers are only ever notified about items that were not already
	// stored.
	mtx         sync.Mutex
	closed      bool
	nextSubID   uint64
	subscribers map[uint64]func(items ...[]byte)

	// wg tracks in flight fetches so the database isn't closed under them.
	wg sync.WaitGroup
}

// Ensure Store implements the filtermgr.Source interface.
var _ filtermgr.Source = (*Store)(nil)

// Open opens (or creates when needed) the watch store database at the provided
// path.
func Open(dbPath string) (*Store, error) {
	// The error can be ignored here since the call to leveldb.OpenFile will
	// fail if the directory couldn't be created.
	_ = os.MkdirAll(filepath.Dir(dbPath), 0700)

	log.Infof("Loading watch store from '%s'", dbPath)
	opts := opt.Options{
		Strict:      opt.DefaultStrict,
		Compression: opt.NoCompression,
		Filter:      filter.NewBloomFilter(10),
	}
	db, err := leveldb.OpenFile(dbPath, &opts)
	if err != nil {
		return nil, convertLdbErr(err, "failed to open watch store")
	}

	return New(db), nil
}

// New returns a watch store that uses the provided database for its underlying
// storage.  The store takes ownership of the database and closes it on Close.
func New(db *leveldb.DB) *Store {
	return &Store{
		db:          db,
		subscribers: make(map[uint64]func(items ...[]byte)),
	}
}

// Close stops notifying subscribers, waits for in flight fetches, and closes
// the database.
func (s *Store) Close() error {
	s.mtx.Lock()
	if s.closed {
		s.mtx.Unlock()
		return nil
	}
	s.closed = true
	s.subscribers = nil
	s.mtx.Unlock()

	s.wg.Wait()
	if err := s.db.Close(); err != nil {
		return convertLdbErr(err, "failed to close watch store")
	}
	return nil
}

// errClosed returns the error used when the store is accessed after it has
// been closed.
func errClosed() error {
	return makeError(ErrClosed, "watch store is closed")
}

// Add stores the provided items.  Subscribers are notified with the items that
// were not already stored once they have been written.
//
// This function is safe for concurrent access.
func (s *Store) Add(items ...[]byte) error {
	for i, item := range items {
		if len(item) == 0 {
			str := fmt.Sprintf("item %d is empty", i)
			return makeError(ErrEmptyItem, str)
		}
	}

	s.mtx.Lock()
	if s.closed {
		s.mtx.Unlock()
		return errClosed()
	}

	var batch leveldb.Batch
	added := make([][]byte, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[string(item)]; ok {
			continue
		}
		seen[string(item)] = struct{}{}

		key := itemKey(item)
		exists, err := s.db.Has(key, nil)
		if err != nil {
			s.mtx.Unlock()
			return convertLdbErr(err, "failed to look up item")
		}
		if exists {
			continue
		}
		batch.Put(key, nil)
		added = append(added, append([]byte(nil), item...))
	}
	if len(added) == 0 {
		s.mtx.Unlock()
		return nil
	}
	if err := s.db.Write(&batch, nil); err != nil {
		s.mtx.Unlock()
		return convertLdbErr(err, "failed to store items")
	}

	subscribers := make([]func(items ...[]byte), 0, len(s.subscribers))
	for _, notify := range s.subscribers {
		subscribers = append(subscribers, notify)
	}
	s.mtx.Unlock()

	log.Debugf("Added %d new watched items", len(added))
	for _, notify := range subscribers {
		notify(added...)
	}
	return nil
}

// Has returns whether or not the item is stored.
//
// This function is safe for concurrent access.
func (s *Store) Has(item []byte) (bool, error) {
	exists, err := s.db.Has(itemKey(item), nil)
	if err != nil {
		return false, convertLdbErr(err, "failed to look up item")
	}
	return exists, nil
}

// forEach invokes the provided function with each stored item.  The item is
// only valid for the duration of the call.
func (s *Store) forEach(fn func(item []byte)) error {
	iter := s.db.NewIterator(util.BytesPrefix(itemPrefix), nil)
	defer iter.Release()
	for iter.Next() {
		fn(iter.Key()[len(itemPrefix):])
	}
	if err := iter.Error(); err != nil {
		return convertLdbErr(err, "failed to iterate items")
	}
	return nil
}

// Count returns the number of stored items.
//
// This function is safe for concurrent access.
func (s *Store) Count() (int, error) {
	var count int
	err := s.forEach(func([]byte) { count++ })
	return count, err
}

// Items returns all stored items in key order.
//
// This function is safe for concurrent access.
func (s *Store) Items() ([][]byte, error) {
	var items [][]byte
	err := s.forEach(func(item []byte) {
		items = append(items, append([]byte(nil), item...))
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// FetchElements loads all stored items from a separate goroutine and provides
// them via the reply func.
//
// This is part of the filtermgr.Source interface.
func (s *Store) FetchElements(reply filtermgr.ReplyFunc) interface{} {
	s.mtx.Lock()
	if s.closed {
		s.mtx.Unlock()
		reply(nil, errClosed())
		return filtermgr.Deferred
	}
	s.wg.Add(1)
	s.mtx.Unlock()

	go func() {
		defer s.wg.Done()
		items, err := s.Items()
		if err != nil {
			reply(nil, err)
			return
		}
		log.Tracef("Providing %d watched items", len(items))
		reply(items, nil)
	}()
	return filtermgr.Deferred
}

// Subscribe registers the provided function to be invoked with newly added
// items.  The returned function cancels the subscription.
//
// This is part of the filtermgr.Source interface.
func (s *Store) Subscribe(notify func(items ...[]byte)) func() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.closed {
		return func() {}
	}
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = notify
	return func() {
		s.mtx.Lock()
		delete(s.subscribers, id)
		s.mtx.Unlock()
	}
}
