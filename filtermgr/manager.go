// Copyright (c) 2026 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package filtermgr

import (
	"context"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil/bloom"
	"github.com/decred/dcrd/container/lru"
	"github.com/decred/dcrd/crypto/rand"
)

const (
	// DefaultFalsePositiveRate is the target false positive rate used when
	// none is configured.
	DefaultFalsePositiveRate = 0.001

	// DefaultResizeThreshold is the fraction of the target false positive
	// rate the estimated rate may exceed the target by before the filter is
	// rebuilt when none is configured.
	DefaultResizeThreshold = 0.4

	// maxAnnouncedElements is the maximum number of elements tracked in
	// order to avoid announcing the same element to peers more than once
	// per filter.
	maxAnnouncedElements = 10000

	// msgChanSize is the size of the buffered channel used to submit
	// requests to the event handler.
	msgChanSize = 100
)

// PeerNotifier provides an interface to the connected peers the filter is
// kept synchronized with.
type PeerNotifier interface {
	// BroadcastMessage sends the message to all currently connected peers.
	BroadcastMessage(msg wire.Message)

	// SendMessage sends the message to the connected peer with the provided
	// id.  It returns false when no such peer is connected.
	SendMessage(id int32, msg wire.Message) bool

	// NotifyPeerConnected registers the provided function to be invoked
	// with the id of each newly connected peer.
	NotifyPeerConnected(fn func(id int32))
}

// Config holds the configuration options related to the filter manager.
type Config struct {
	// Peers specifies the peers to keep synchronized with the filter.  It
	// is required.
	Peers PeerNotifier

	// FalsePositiveRate is the target false positive rate of the filter.
	// It must be in the range (0, 1) and defaults to
	// DefaultFalsePositiveRate.
	FalsePositiveRate float64

	// ResizeThreshold is the fraction of the target false positive rate the
	// estimated rate may exceed the target by before the filter is rebuilt.
	// It must be in the range (0, 1) and defaults to
	// DefaultResizeThreshold.
	ResizeThreshold float64

	// UpdateFlags specifies how remote peers update the filter when they
	// find matches.
	UpdateFlags wire.BloomUpdateType

	// DisableFilterAdd disables announcing newly added elements to peers
	// via filteradd messages.  Peers will then only learn about new
	// elements when the filter is next rebuilt.
	DisableFilterAdd bool

	// OnError is invoked with errors that can't be returned to a caller,
	// such as sources that respond to a fetch more than once or rebuilds
	// triggered by source notifications that fail.  It is invoked from the
	// event handler and therefore must not block or call back into the
	// manager.
	OnError func(error)
}

// Stats describes the current state of the filter manager.
type Stats struct {
	// Elements is the number of static elements.
	Elements int

	// Sources is the number of registered sources.  It shrinks while a
	// rebuild is in progress and grows back as sources are re-fetched.
	Sources int

	// InsertionCount is the number of insertions into the current filter
	// since it was created.
	InsertionCount uint32

	// FilterBytes, HashFuncs, and Tweak describe the current filter.  They
	// are zero before the first filter is built.
	FilterBytes int
	HashFuncs   uint32
	Tweak       uint32

	// FalsePositiveRate is the estimated false positive rate of the current
	// filter.
	FalsePositiveRate float64

	// Rebuilds is the number of times the filter was rebuilt after the
	// initial build.
	Rebuilds uint64

	// Rebuilding indicates whether a rebuild is in progress.
	Rebuilding bool

	// Ready indicates whether the initial filter has been built.
	Ready bool
}

// addElementMsg is used to add a static element to the filter.
type addElementMsg struct {
	data  []byte
	reply chan error
}

// addSourceMsg is used to register a source.
type addSourceMsg struct {
	src   Source
	reply chan error
}

// fetchReplyMsg carries an asynchronous response to a source fetch.
type fetchReplyMsg struct {
	token    *fetchToken
	elements interface{}
	err      error
}

// sourceElementsMsg carries newly discovered elements from a source.
type sourceElementsMsg struct {
	entry    *sourceEntry
	elements [][]byte
}

// peerConnectedMsg signifies a newly connected peer to the event handler.
type peerConnectedMsg struct {
	id int32
}

// getStatsMsg is used to query the current state of the manager.
type getStatsMsg struct {
	reply chan Stats
}

// matchesMsg is used to test an item against the current filter.
type matchesMsg struct {
	data  []byte
	reply chan bool
}

// getFilterLoadMsg is used to obtain the current filter payload.
type getFilterLoadMsg struct {
	reply chan *wire.MsgFilterLoad
}

// rebuildState tracks an in progress rebuild.
type rebuildState struct {
	// pending is the number of outstanding source fetches plus one while
	// the fetches are still being issued.
	pending int

	// err is the first error reported by a source fetch.
	err error

	// waiters are the callers whose insertions triggered the rebuild.
	waiters []chan error

	// initial indicates the rebuild is the initial build of the filter.
	initial bool
}

// Manager maintains a BIP37 bloom filter that matches every static element and
// every element provided by the registered sources and keeps connected peers
// synchronized with it.  The filter is rebuilt from scratch with a new tweak
// whenever its estimated false positive rate drifts too far above the target.
//
// All state is owned by a single event handler goroutine once Run is invoked.
// Before that, elements and sources may be added directly and sources are not
// fetched until the initial filter is built.
type Manager struct {
	// cfg specifies the configuration of the manager and is set at creation
	// time and treated as immutable after that.
	cfg Config

	// The following fields are used for lifecycle management of the
	// manager.
	quit      chan struct{}
	readyChan chan struct{}
	msgChan   chan interface{}

	// startMtx protects started.  The state below is modified by callers
	// while holding it until the manager is started and is owned by the
	// event handler afterwards.
	startMtx sync.Mutex
	started  bool

	elements           [][]byte
	sources            []*sourceEntry
	subscribed         map[*sourceEntry]struct{}
	count              uint32
	filter             *bloom.Filter
	rebuild            *rebuildState
	resizeAfterRebuild bool
	numRebuilds        uint64
	announced          *lru.Set[string]
	maxSizeWarned      bool
}

// sendReply delivers the result to the reply channel when there is one.  All
// reply channels are buffered so this never blocks.
func sendReply(reply chan error, err error) {
	if reply != nil {
		reply <- err
	}
}

// shutdownError returns the error returned to callers when the manager stops
// before servicing their request.
func shutdownError() error {
	return makeError(ErrShutdown, "filter manager is shutting down")
}

// reportError logs the error and hands it to the configured error handler.
func (m *Manager) reportError(err error) {
	log.Warnf("%v", err)
	if m.cfg.OnError != nil {
		m.cfg.OnError(err)
	}
}

// isReady returns whether or not the initial filter has been built.
func (m *Manager) isReady() bool {
	select {
	case <-m.readyChan:
		return true
	default:
	}
	return false
}

// fpRate returns the estimated false positive rate of the current filter.
//
// This function MUST be called with a filter.
func (m *Manager) fpRate() float64 {
	msg := m.filter.MsgFilterLoad()
	sizeBits := uint32(len(msg.Filter)) * 8
	return calcFPRate(sizeBits, msg.HashFuncs, filterElements(m.count))
}

// filterLoadMsg returns a filterload message for the current filter.  The
// filter data is copied so later insertions do not modify queued messages.
//
// This function MUST be called with a filter.
func (m *Manager) filterLoadMsg() *wire.MsgFilterLoad {
	msg := m.filter.MsgFilterLoad()
	filter := make([]byte, len(msg.Filter))
	copy(filter, msg.Filter)
	return wire.NewMsgFilterLoad(filter, msg.HashFuncs, msg.Tweak, msg.Flags)
}

// announce sends a filteradd for the element to all peers unless announcing is
// disabled, the element is too large to announce, or it was already announced
// since the filter was last rebuilt.
func (m *Manager) announce(data []byte) {
	if m.cfg.DisableFilterAdd {
		return
	}
	if len(data) > wire.MaxFilterAddDataSize {
		log.Debugf("Not announcing %d byte element (max %d)", len(data),
			wire.MaxFilterAddDataSize)
		return
	}
	key := string(data)
	if m.announced.Contains(key) {
		return
	}
	m.announced.Put(key)

	log.Tracef("Sending filteradd: %x", data)
	m.cfg.Peers.BroadcastMessage(wire.NewMsgFilterAdd(data))
}

// insert adds the element to the current filter, when there is one, and
// optionally announces it to peers.  The insertion is counted either way so
// the initial filter is sized for everything added before it existed.
func (m *Manager) insert(data []byte, announce bool) {
	m.count++
	if m.filter == nil {
		return
	}
	m.filter.Add(data)
	if announce {
		m.announce(data)
	}
}

// addStaticElement appends the already copied element to the static elements
// and inserts it into the filter.
func (m *Manager) addStaticElement(data []byte) {
	m.elements = append(m.elements, data)
	m.insert(data, true)
}

// subscribe attaches to the source's new element notifications unless already
// attached.
func (m *Manager) subscribe(entry *sourceEntry) {
	if entry.subscribed {
		return
	}
	entry.subscribed = true
	m.subscribed[entry] = struct{}{}
	entry.cancel = entry.src.Subscribe(func(elements ...[]byte) {
		if len(elements) == 0 {
			return
		}
		copied := make([][]byte, 0, len(elements))
		for _, element := range elements {
			copied = append(copied, append([]byte(nil), element...))
		}
		select {
		case m.msgChan <- sourceElementsMsg{entry: entry, elements: copied}:
		case <-m.quit:
		}
	})
}

// unsubscribe detaches from the source's new element notifications.
func (m *Manager) unsubscribe(entry *sourceEntry) {
	entry.unsubscribe()
	delete(m.subscribed, entry)
}

// maybeResize evaluates the resize policy against the current filter and
// starts a rebuild when the estimated false positive rate is too high.  The
// provided reply channel, when not nil, receives the result of the rebuild, or
// nil immediately when no rebuild is needed.
//
// When a rebuild is already in progress, a caller that would trigger one
// instead waits on the one in progress and the policy is evaluated again once
// it completes.
func (m *Manager) maybeResize(reply chan error) {
	if m.filter == nil {
		sendReply(reply, nil)
		return
	}

	fpRate := m.fpRate()
	target := m.cfg.FalsePositiveRate
	if !needsResize(fpRate, target, m.cfg.ResizeThreshold) {
		sendReply(reply, nil)
		return
	}

	if m.rebuild != nil {
		m.resizeAfterRebuild = true
		if reply != nil {
			m.rebuild.waiters = append(m.rebuild.waiters, reply)
		}
		return
	}

	if !m.resizeImproves(fpRate) {
		if !m.maxSizeWarned {
			log.Warnf("Filter is at the maximum size allowed by the protocol "+
				"(fp=%g, target=%g) -- not rebuilding", fpRate, target)
			m.maxSizeWarned = true
		}
		sendReply(reply, nil)
		return
	}

	log.Debugf("Resizing filter: fp=%g, target=%g, insertions=%d", fpRate,
		target, m.count)
	m.startRebuild(reply)
}

// resizeImproves returns whether or not rebuilding the filter for the current
// number of insertions would lower its estimated false positive rate.  This is
// only ever false once the filter has reached the maximum size permitted by
// the protocol.
func (m *Manager) resizeImproves(fpRate float64) bool {
	if len(m.filter.MsgFilterLoad().Filter) < wire.MaxFilterLoadFilterSize {
		return true
	}

	n := filterElements(m.count)
	sizeBits, hashFuncs := filterParams(n, m.cfg.FalsePositiveRate)
	return calcFPRate(sizeBits, hashFuncs, n) < fpRate
}

// startRebuild replaces the current filter with a new one sized for the
// current number of insertions, re-inserts all static elements, and re-fetches
// every registered source.  The rebuild completes once all fetches have.
func (m *Manager) startRebuild(reply chan error) {
	initial := m.filter == nil
	n := filterElements(m.count)
	m.filter = bloom.NewFilter(n, rand.Uint32(), m.cfg.FalsePositiveRate,
		m.cfg.UpdateFlags)
	m.count = 0
	m.announced.Clear()
	m.maxSizeWarned = false
	if !initial {
		m.numRebuilds++
	}
	for _, element := range m.elements {
		m.insert(element, false)
	}

	sources := m.sources
	m.sources = nil
	rb := &rebuildState{pending: len(sources) + 1, initial: initial}
	if reply != nil {
		rb.waiters = append(rb.waiters, reply)
	}
	m.rebuild = rb

	log.Debugf("Rebuilding filter for %d elements with %d static elements "+
		"and %d sources", n, len(m.elements), len(sources))
	for _, entry := range sources {
		m.fetchSource(&fetchToken{
			entry:   entry,
			purpose: fetchRebuild,
			rebuild: rb,
		})
	}
	m.rebuildFetchDone(rb)
}

// rebuildFetchDone marks one of the outstanding fetches of the rebuild done and
// finishes the rebuild once there are none left.
func (m *Manager) rebuildFetchDone(rb *rebuildState) {
	rb.pending--
	if rb.pending > 0 {
		return
	}

	m.rebuild = nil
	if rb.err == nil {
		msg := m.filterLoadMsg()
		log.Debugf("Sending filterload: %d bytes, %d hash funcs, %d "+
			"insertions", len(msg.Filter), msg.HashFuncs, m.count)
		m.cfg.Peers.BroadcastMessage(msg)
	} else if len(rb.waiters) == 0 {
		m.reportError(rb.err)
	}
	for _, waiter := range rb.waiters {
		waiter <- rb.err
	}

	if rb.initial {
		log.Infof("Initial filter built with %d insertions", m.count)
		close(m.readyChan)
	}

	if m.resizeAfterRebuild {
		m.resizeAfterRebuild = false
		m.maybeResize(nil)
	}
}

// fetchSource requests the current elements of the source the token refers to.
// Synchronous responses are handled immediately while asynchronous ones are
// delivered to the event handler.
func (m *Manager) fetchSource(token *fetchToken) {
	// Subscribe before fetching so elements the source adds after taking
	// its snapshot are not missed.
	if token.purpose == fetchRegister {
		token.entry.registering = true
	}
	m.subscribe(token.entry)

	reply := func(elements interface{}, err error) {
		elements = copyResponse(elements)

		// The reply may be invoked from within FetchElements on the event
		// handler goroutine, so it must never block.
		go func() {
			msg := fetchReplyMsg{token: token, elements: elements, err: err}
			select {
			case m.msgChan <- msg:
			case <-m.quit:
			}
		}()
	}

	resp := token.entry.src.FetchElements(reply)
	if _, ok := resp.(deferredResponse); ok {
		log.Tracef("Waiting for deferred %s fetch", token.purpose)
		return
	}
	m.handleFetchResponse(token, copyResponse(resp), nil)
}

// handleFetchResponse handles a response to a source fetch.  Only the first
// response to a fetch is used.
func (m *Manager) handleFetchResponse(token *fetchToken, resp interface{}, err error) {
	if token.committed {
		str := fmt.Sprintf("source %T responded to a %s fetch more than "+
			"once", token.entry.src, token.purpose)
		m.reportError(makeError(ErrDoubleResponse, str))
		return
	}
	token.committed = true

	var elements [][]byte
	if err != nil {
		str := fmt.Sprintf("source %T failed to provide elements: %v",
			token.entry.src, err)
		err = Error{Err: ErrSourceFetchFailed, Description: str, Cause: err}
	} else {
		elements, err = parseFetchResponse(resp)
	}

	switch token.purpose {
	case fetchRegister:
		m.finishRegistration(token, elements, err)
	case fetchRebuild:
		m.finishRebuildFetch(token, elements, err)
	}
}

// finishRegistration completes the registration of a new source once its
// initial elements have been fetched.
//
// Elements the source announced while the fetch was outstanding are added and
// announced once the fetched elements are in the filter.  They are discarded
// along with the subscription when the registration fails.
func (m *Manager) finishRegistration(token *fetchToken, elements [][]byte, err error) {
	entry := token.entry
	pending := entry.pending
	entry.registering = false
	entry.pending = nil
	if err != nil {
		log.Debugf("Source registration failed: %v", err)
		m.unsubscribe(entry)
		sendReply(token.reply, err)
		return
	}

	for _, element := range elements {
		m.insert(element, false)
	}
	for _, element := range pending {
		m.insert(element, true)
	}
	m.sources = append(m.sources, entry)
	log.Debugf("Source %T registered with %d initial elements and %d "+
		"announced during registration", entry.src, len(elements),
		len(pending))
	m.maybeResize(token.reply)
}

// finishRebuildFetch folds the re-fetched elements of a source into the filter
// being rebuilt.  A source that fails to respond is dropped.
func (m *Manager) finishRebuildFetch(token *fetchToken, elements [][]byte, err error) {
	rb := token.rebuild
	if err != nil {
		log.Warnf("Dropping source after failed re-fetch: %v", err)
		m.unsubscribe(token.entry)
		if rb.err == nil {
			rb.err = err
		}
		m.rebuildFetchDone(rb)
		return
	}

	for _, element := range elements {
		m.insert(element, false)
	}
	m.sources = append(m.sources, token.entry)
	m.rebuildFetchDone(rb)
}

// handleAddElementMsg adds a static element and evaluates the resize policy.
func (m *Manager) handleAddElementMsg(msg addElementMsg) {
	m.addStaticElement(msg.data)
	log.Tracef("Static element added: %x", msg.data)
	m.maybeResize(msg.reply)
}

// handleAddSourceMsg begins the registration of a source by fetching its
// initial elements.
func (m *Manager) handleAddSourceMsg(msg addSourceMsg) {
	m.fetchSource(&fetchToken{
		entry:   &sourceEntry{src: msg.src},
		purpose: fetchRegister,
		reply:   msg.reply,
	})
}

// handleSourceElementsMsg adds newly discovered elements from a source exactly
// like static elements, except they are not retained, and then evaluates the
// resize policy once for the batch.
func (m *Manager) handleSourceElementsMsg(msg sourceElementsMsg) {
	if !msg.entry.subscribed {
		log.Tracef("Ignoring %d elements from unsubscribed source %T",
			len(msg.elements), msg.entry.src)
		return
	}
	if msg.entry.registering {
		msg.entry.pending = append(msg.entry.pending, msg.elements...)
		return
	}
	for _, element := range msg.elements {
		m.insert(element, true)
	}
	log.Tracef("Added %d elements from source %T", len(msg.elements),
		msg.entry.src)
	m.maybeResize(nil)
}

// handlePeerConnectedMsg sends the current filter to a newly connected peer.
func (m *Manager) handlePeerConnectedMsg(msg peerConnectedMsg) {
	if m.filter == nil {
		return
	}
	log.Debugf("Sending filterload to peer %d", msg.id)
	if !m.cfg.Peers.SendMessage(msg.id, m.filterLoadMsg()) {
		log.Tracef("Peer %d disconnected before receiving filter", msg.id)
	}
}

// stats returns the current state of the manager.
func (m *Manager) stats() Stats {
	stats := Stats{
		Elements:       len(m.elements),
		Sources:        len(m.sources),
		InsertionCount: m.count,
		Rebuilds:       m.numRebuilds,
		Rebuilding:     m.rebuild != nil,
		Ready:          m.isReady(),
	}
	if m.filter != nil {
		msg := m.filter.MsgFilterLoad()
		stats.FilterBytes = len(msg.Filter)
		stats.HashFuncs = msg.HashFuncs
		stats.Tweak = msg.Tweak
		stats.FalsePositiveRate = m.fpRate()
	}
	return stats
}

// eventHandler is the main handler for the filter manager.  It must be run as
// a goroutine.  Every change to the filter, the static elements, and the
// registered sources is made from it, so none of them need to be locked.
func (m *Manager) eventHandler(ctx context.Context) {
	m.startRebuild(nil)

out:
	for {
		select {
		case data := <-m.msgChan:
			switch msg := data.(type) {
			case addElementMsg:
				m.handleAddElementMsg(msg)

			case addSourceMsg:
				m.handleAddSourceMsg(msg)

			case fetchReplyMsg:
				m.handleFetchResponse(msg.token, msg.elements, msg.err)

			case sourceElementsMsg:
				m.handleSourceElementsMsg(msg)

			case peerConnectedMsg:
				m.handlePeerConnectedMsg(msg)

			case getStatsMsg:
				msg.reply <- m.stats()

			case matchesMsg:
				msg.reply <- m.filter.Matches(msg.data)

			case getFilterLoadMsg:
				msg.reply <- m.filterLoadMsg()

			default:
				log.Warnf("Invalid message type in event handler: %T", msg)
			}

		case <-ctx.Done():
			break out
		}
	}

	for entry := range m.subscribed {
		m.unsubscribe(entry)
	}
	log.Trace("Filter manager event handler done")
}

// Run starts the filter manager, builds the initial filter, and keeps peers
// synchronized with it until the provided context is cancelled.
func (m *Manager) Run(ctx context.Context) {
	log.Trace("Starting filter manager")

	m.startMtx.Lock()
	m.started = true
	m.startMtx.Unlock()

	m.cfg.Peers.NotifyPeerConnected(func(id int32) {
		select {
		case m.msgChan <- peerConnectedMsg{id: id}:
		case <-m.quit:
		}
	})

	// Start the event handler goroutine.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		m.eventHandler(ctx)
		wg.Done()
	}()

	// Shutdown the manager when the context is cancelled.
	<-ctx.Done()
	close(m.quit)
	wg.Wait()
	log.Trace("Filter manager stopped")
}

// startedOrApply runs the provided function while holding the start mutex and
// returns false when the manager has not been started yet.  Otherwise, it
// returns true without running the function, in which case the request must
// be submitted to the event handler instead.
func (m *Manager) startedOrApply(fn func()) bool {
	m.startMtx.Lock()
	defer m.startMtx.Unlock()
	if m.started {
		return true
	}
	fn()
	return false
}

// submit sends the message to the event handler and waits for the result on
// the provided reply channel.
func (m *Manager) submit(msg interface{}, reply chan error) error {
	select {
	case m.msgChan <- msg:
	case <-m.quit:
		return shutdownError()
	}

	select {
	case err := <-reply:
		return err
	case <-m.quit:
		return shutdownError()
	}
}

// AddElement adds a static element to the filter.  The element is copied, so
// the caller may reuse the buffer afterwards.  Static elements are retained for
// the lifetime of the manager and are part of every rebuilt filter.
//
// When the insertion causes the filter to be rebuilt, it returns once the
// rebuild finishes along with any error encountered while re-fetching sources.
// The rebuilt filter is kept even in that case.
//
// This function is safe for concurrent access.
func (m *Manager) AddElement(data []byte) error {
	element := append([]byte(nil), data...)
	if !m.startedOrApply(func() { m.addStaticElement(element) }) {
		return nil
	}

	reply := make(chan error, 1)
	return m.submit(addElementMsg{data: element, reply: reply}, reply)
}

// AddSource registers a source of elements.  Its current elements are fetched
// and added to the filter and elements it announces afterwards are added as
// they arrive.
//
// Sources added before the manager is started are not fetched until the
// initial filter is built.
//
// An error is returned when the source responds with something other than a
// list of elements or reports an error, in which case the source is not
// registered.
//
// This function is safe for concurrent access.
func (m *Manager) AddSource(src Source) error {
	if !m.startedOrApply(func() {
		m.sources = append(m.sources, &sourceEntry{src: src})
	}) {
		return nil
	}

	reply := make(chan error, 1)
	return m.submit(addSourceMsg{src: src, reply: reply}, reply)
}

// RemoveElement always returns ErrRemovalUnsupported since elements can't be
// removed from a bloom filter without also evicting others.
func (m *Manager) RemoveElement(data []byte) error {
	return makeError(ErrRemovalUnsupported, "removing elements from the "+
		"filter is not supported")
}

// RemoveSource always returns ErrRemovalUnsupported since the elements of a
// source can't be removed from a bloom filter without also evicting others.
func (m *Manager) RemoveSource(src Source) error {
	return makeError(ErrRemovalUnsupported, "removing sources from the "+
		"filter is not supported")
}

// Ready returns a channel that is closed once the initial filter is built.
func (m *Manager) Ready() <-chan struct{} {
	return m.readyChan
}

// WaitUntilReady blocks until the initial filter is built or the provided
// context is cancelled.  It returns immediately when the filter is already
// built.
func (m *Manager) WaitUntilReady(ctx context.Context) error {
	select {
	case <-m.readyChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the current state of the manager.
//
// This function is safe for concurrent access.
func (m *Manager) Stats() (Stats, error) {
	var stats Stats
	if !m.startedOrApply(func() { stats = m.stats() }) {
		return stats, nil
	}

	reply := make(chan Stats, 1)
	select {
	case m.msgChan <- getStatsMsg{reply: reply}:
	case <-m.quit:
		return Stats{}, shutdownError()
	}
	select {
	case stats = <-reply:
		return stats, nil
	case <-m.quit:
		return Stats{}, shutdownError()
	}
}

// Matches returns whether or not the current filter matches the provided data.
// It always returns false before the initial filter is built.
//
// This function is safe for concurrent access.
func (m *Manager) Matches(data []byte) (bool, error) {
	if !m.startedOrApply(func() {}) {
		return false, nil
	}

	reply := make(chan bool, 1)
	select {
	case m.msgChan <- matchesMsg{data: data, reply: reply}:
	case <-m.quit:
		return false, shutdownError()
	}
	select {
	case matched := <-reply:
		return matched, nil
	case <-m.quit:
		return false, shutdownError()
	}
}

// FilterLoad returns a filterload message for the current filter.  It returns
// nil before the manager is started.
//
// This function is safe for concurrent access.
func (m *Manager) FilterLoad() (*wire.MsgFilterLoad, error) {
	if !m.startedOrApply(func() {}) {
		return nil, nil
	}

	reply := make(chan *wire.MsgFilterLoad, 1)
	select {
	case m.msgChan <- getFilterLoadMsg{reply: reply}:
	case <-m.quit:
		return nil, shutdownError()
	}
	select {
	case msg := <-reply:
		return msg, nil
	case <-m.quit:
		return nil, shutdownError()
	}
}

// New returns a new filter manager with the provided configuration.  Use Run to
// build the initial filter and begin processing requests.
func New(cfg *Config) (*Manager, error) {
	if cfg == nil || cfg.Peers == nil {
		return nil, makeError(ErrConfiguration, "a peer notifier must be "+
			"provided")
	}

	c := *cfg // Copy so caller can't mutate
	if c.FalsePositiveRate == 0 {
		c.FalsePositiveRate = DefaultFalsePositiveRate
	}
	if c.ResizeThreshold == 0 {
		c.ResizeThreshold = DefaultResizeThreshold
	}
	if c.FalsePositiveRate <= 0 || c.FalsePositiveRate >= 1 {
		str := fmt.Sprintf("false positive rate %g is not in the range "+
			"(0, 1)", c.FalsePositiveRate)
		return nil, makeError(ErrConfiguration, str)
	}
	if c.ResizeThreshold <= 0 || c.ResizeThreshold >= 1 {
		str := fmt.Sprintf("resize threshold %g is not in the range (0, 1)",
			c.ResizeThreshold)
		return nil, makeError(ErrConfiguration, str)
	}

	return &Manager{
		cfg:        c,
		quit:       make(chan struct{}),
		readyChan:  make(chan struct{}),
		msgChan:    make(chan interface{}, msgChanSize),
		subscribed: make(map[*sourceEntry]struct{}),
		announced:  lru.NewSet[string](maxAnnouncedElements),
	}, nil
}
