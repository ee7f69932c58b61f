package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-memory Store used for unit tests and local development.
// Every mutating call is recorded so tests can assert on write-through traffic,
// errors can be injected, and snapshot delivery can be held back and released
// manually to exercise cancellation ordering.
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any

	writeCalls  []WriteCall
	deleteCalls []DeleteCall
	err         error

	held    bool
	pending []func()

	collWatchers map[string][]*collWatcher
	docWatchers  map[string][]*docWatcher
}

// WriteCall captures one Set invocation.
type WriteCall struct {
	Collection string
	ID         string
	Fields     map[string]any
	Merge      bool
}

// DeleteCall captures one Delete invocation.
type DeleteCall struct {
	Collection string
	ID         string
}

type collWatcher struct {
	collection string
	ch         chan CollectionSnapshot
	cancelled  bool
}

type docWatcher struct {
	collection string
	id         string
	ch         chan DocumentSnapshot
	cancelled  bool
}

// NewMemory instantiates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections:  make(map[string]map[string]map[string]any),
		collWatchers: make(map[string][]*collWatcher),
		docWatchers:  make(map[string][]*docWatcher),
	}
}

// WithError configures the store to fail every subsequent call with err.
// Pass nil to clear.
func (m *Memory) WithError(err error) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Hold suspends snapshot delivery. Events produced while held queue up until
// Release. Used by tests that need an event "in flight" across a cancellation.
func (m *Memory) Hold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held = true
}

// Release delivers all queued snapshots and resumes immediate delivery.
func (m *Memory) Release() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.held = false
	m.mu.Unlock()

	for _, deliver := range pending {
		deliver()
	}
}

// WriteCalls returns a snapshot of recorded Set calls.
func (m *Memory) WriteCalls() []WriteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]WriteCall(nil), m.writeCalls...)
}

// DeleteCalls returns a snapshot of recorded Delete calls.
func (m *Memory) DeleteCalls() []DeleteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DeleteCall(nil), m.deleteCalls...)
}

func (m *Memory) Set(_ context.Context, collection, id string, fields map[string]any, merge bool) error {
	m.mu.Lock()
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return err
	}

	m.writeCalls = append(m.writeCalls, WriteCall{
		Collection: collection,
		ID:         id,
		Fields:     cloneFields(fields),
		Merge:      merge,
	})

	col := m.collections[collection]
	if col == nil {
		col = make(map[string]map[string]any)
		m.collections[collection] = col
	}

	if merge {
		doc := col[id]
		if doc == nil {
			doc = make(map[string]any)
			col[id] = doc
		}
		for k, v := range fields {
			doc[k] = v
		}
	} else {
		col[id] = cloneFields(fields)
	}

	deliver := m.broadcastLocked(collection, id)
	m.mu.Unlock()
	deliver()
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return err
	}

	m.deleteCalls = append(m.deleteCalls, DeleteCall{Collection: collection, ID: id})

	if col := m.collections[collection]; col != nil {
		delete(col, id)
	}

	deliver := m.broadcastLocked(collection, id)
	m.mu.Unlock()
	deliver()
	return nil
}

func (m *Memory) Get(_ context.Context, collection, id string) (Document, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Document{}, false, m.err
	}
	col := m.collections[collection]
	if col == nil {
		return Document{}, false, nil
	}
	doc, ok := col[id]
	if !ok {
		return Document{}, false, nil
	}
	return Document{ID: id, Data: cloneFields(doc)}, true, nil
}

func (m *Memory) WatchCollection(_ context.Context, collection string) (<-chan CollectionSnapshot, func(), error) {
	m.mu.Lock()
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return nil, nil, err
	}

	w := &collWatcher{
		collection: collection,
		ch:         make(chan CollectionSnapshot, 64),
	}
	m.collWatchers[collection] = append(m.collWatchers[collection], w)

	// Initial snapshot, queued behind Hold like any other event.
	snap := m.collectionSnapshotLocked(collection)
	deliver := m.enqueueLocked(func() { m.deliverColl(w, snap) })
	m.mu.Unlock()
	deliver()

	cancel := func() {
		m.mu.Lock()
		if w.cancelled {
			m.mu.Unlock()
			return
		}
		w.cancelled = true
		watchers := m.collWatchers[collection]
		for i, cur := range watchers {
			if cur == w {
				m.collWatchers[collection] = append(watchers[:i], watchers[i+1:]...)
				break
			}
		}
		close(w.ch)
		m.mu.Unlock()
	}
	return w.ch, cancel, nil
}

func (m *Memory) WatchDocument(_ context.Context, collection, id string) (<-chan DocumentSnapshot, func(), error) {
	m.mu.Lock()
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return nil, nil, err
	}

	w := &docWatcher{
		collection: collection,
		id:         id,
		ch:         make(chan DocumentSnapshot, 64),
	}
	key := collection + "/" + id
	m.docWatchers[key] = append(m.docWatchers[key], w)

	snap := m.documentSnapshotLocked(collection, id)
	deliver := m.enqueueLocked(func() { m.deliverDoc(w, snap) })
	m.mu.Unlock()
	deliver()

	cancel := func() {
		m.mu.Lock()
		if w.cancelled {
			m.mu.Unlock()
			return
		}
		w.cancelled = true
		watchers := m.docWatchers[key]
		for i, cur := range watchers {
			if cur == w {
				m.docWatchers[key] = append(watchers[:i], watchers[i+1:]...)
				break
			}
		}
		close(w.ch)
		m.mu.Unlock()
	}
	return w.ch, cancel, nil
}

// FailWatchers closes every live subscription with err, simulating a backend
// delivery failure.
func (m *Memory) FailWatchers(err error) {
	m.mu.Lock()
	var deliveries []func()
	for _, watchers := range m.collWatchers {
		for _, w := range watchers {
			w := w
			snap := CollectionSnapshot{Err: err}
			deliveries = append(deliveries, func() { m.deliverColl(w, snap) })
		}
	}
	for _, watchers := range m.docWatchers {
		for _, w := range watchers {
			w := w
			snap := DocumentSnapshot{Err: err}
			deliveries = append(deliveries, func() { m.deliverDoc(w, snap) })
		}
	}
	m.mu.Unlock()
	for _, deliver := range deliveries {
		deliver()
	}
}

// broadcastLocked builds post-mutation snapshots for all watchers of the
// touched collection and document. Caller holds the mutex; the returned func
// performs (or queues, when held) the actual delivery.
func (m *Memory) broadcastLocked(collection, id string) func() {
	var deliveries []func()

	if watchers := m.collWatchers[collection]; len(watchers) > 0 {
		snap := m.collectionSnapshotLocked(collection)
		for _, w := range watchers {
			w := w
			deliveries = append(deliveries, func() { m.deliverColl(w, snap) })
		}
	}
	key := collection + "/" + id
	if watchers := m.docWatchers[key]; len(watchers) > 0 {
		snap := m.documentSnapshotLocked(collection, id)
		for _, w := range watchers {
			w := w
			deliveries = append(deliveries, func() { m.deliverDoc(w, snap) })
		}
	}

	return m.enqueueLocked(func() {
		for _, deliver := range deliveries {
			deliver()
		}
	})
}

func (m *Memory) enqueueLocked(deliver func()) func() {
	if m.held {
		m.pending = append(m.pending, deliver)
		return func() {}
	}
	return deliver
}

func (m *Memory) deliverColl(w *collWatcher, snap CollectionSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.cancelled {
		return
	}
	select {
	case w.ch <- snap:
	default:
	}
}

func (m *Memory) deliverDoc(w *docWatcher, snap DocumentSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.cancelled {
		return
	}
	select {
	case w.ch <- snap:
	default:
	}
}

func (m *Memory) collectionSnapshotLocked(collection string) CollectionSnapshot {
	col := m.collections[collection]
	docs := make([]Document, 0, len(col))
	for id, data := range col {
		docs = append(docs, Document{ID: id, Data: cloneFields(data)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return CollectionSnapshot{Docs: docs}
}

func (m *Memory) documentSnapshotLocked(collection, id string) DocumentSnapshot {
	col := m.collections[collection]
	if col == nil {
		return DocumentSnapshot{}
	}
	data, ok := col[id]
	if !ok {
		return DocumentSnapshot{}
	}
	return DocumentSnapshot{Exists: true, Doc: Document{ID: id, Data: cloneFields(data)}}
}

func cloneFields(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
