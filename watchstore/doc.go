// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package watchstore provides a persistent set of items a light client watches
for, backed by a leveldb database.

A Store implements filtermgr.Source, so registering it with a filter manager
ensures the filter matches every stored item, and items added later are
announced to peers as they are stored.
*/
package watchstore
