// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package filtermgr maintains a BIP37 bloom filter on behalf of a light client
and keeps the copies held by remote peers synchronized with it.

The filter matches every static element added via AddElement along with every
element provided by the registered sources.  Sources report their full current
set of elements when asked and notify the manager as they discover new ones.
Newly added elements are announced to peers with filteradd messages while the
complete filter is sent with a filterload message whenever it is rebuilt and to
each newly connected peer.

Since bloom filters can't grow, the estimated false positive rate rises as
elements are added.  Once it exceeds the target by more than the configured
threshold, the filter is rebuilt from scratch with a new random tweak and sized
for the number of insertions so far.  Sources are queried again for their
current elements during a rebuild, so elements a source no longer reports are
dropped from the new filter.

Elements and sources may be added before the manager is started with Run.  The
initial filter is built, and sources fetched, once it runs.
*/
package filtermgr
