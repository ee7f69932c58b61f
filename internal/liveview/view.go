// Package liveview keeps locally materialized views of remote document
// collections in sync via live subscriptions. A view's list is a pure function
// of the most recent snapshot: every event replaces the whole list, nothing is
// patched, and writes become visible only through the next snapshot.
package liveview

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/userdesk/backend/internal/models"
	"github.com/userdesk/backend/internal/store"
)

// State tracks the subscription lifecycle of a view.
type State int

const (
	StateIdle State = iota
	StateActive
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	// ErrAlreadyStarted is returned by Start on any view that has left Idle.
	// Failed and stopped views are not restartable; build a new one.
	ErrAlreadyStarted = errors.New("view already started")
)

// Watcher is the subscription surface a view needs from the store.
type Watcher interface {
	WatchCollection(ctx context.Context, collection string) (<-chan store.CollectionSnapshot, func(), error)
	WatchDocument(ctx context.Context, collection, id string) (<-chan store.DocumentSnapshot, func(), error)
}

// CollectionView materializes a whole collection as []models.UserProfile.
// The subscription goroutine is the only writer of the list; readers get
// copies. Stop gates delivery: once called, snapshots already queued on the
// transport are discarded instead of applied.
type CollectionView struct {
	watcher    Watcher
	collection string
	logger     *slog.Logger

	mu       sync.Mutex
	state    State
	err      error
	profiles []models.UserProfile
	gen      uint64
	stopped  bool
	cancel   func()
	onChange []func([]models.UserProfile)

	proj projectionCache
}

// NewCollectionView builds an idle view over collection. Call Start to begin
// receiving snapshots.
func NewCollectionView(w Watcher, collection string, logger *slog.Logger) *CollectionView {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollectionView{
		watcher:    w,
		collection: collection,
		logger:     logger,
	}
}

// OnChange registers a callback invoked with a copy of the materialized list
// after every applied snapshot. Must be called before Start.
func (v *CollectionView) OnChange(fn func([]models.UserProfile)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onChange = append(v.onChange, fn)
}

// Start opens the subscription and begins applying snapshots.
func (v *CollectionView) Start(ctx context.Context) error {
	v.mu.Lock()
	if v.state != StateIdle {
		v.mu.Unlock()
		return ErrAlreadyStarted
	}
	v.mu.Unlock()

	ch, cancel, err := v.watcher.WatchCollection(ctx, v.collection)
	if err != nil {
		v.mu.Lock()
		v.state = StateFailed
		v.err = err
		v.mu.Unlock()
		return err
	}

	v.mu.Lock()
	if v.stopped {
		// Stop raced with Start; release the subscription immediately.
		v.mu.Unlock()
		cancel()
		return nil
	}
	v.state = StateActive
	v.cancel = cancel
	v.mu.Unlock()

	go v.consume(ch)
	return nil
}

func (v *CollectionView) consume(ch <-chan store.CollectionSnapshot) {
	for snap := range ch {
		if snap.Err != nil {
			v.fail(snap.Err)
			return
		}
		v.apply(snap)
	}
}

func (v *CollectionView) apply(snap store.CollectionSnapshot) {
	v.mu.Lock()
	if v.stopped || v.state != StateActive {
		v.mu.Unlock()
		return
	}

	list := make([]models.UserProfile, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		list = append(list, models.ProfileFromFields(doc.ID, doc.Data))
	}
	v.profiles = list
	v.gen++
	callbacks := v.onChange
	v.mu.Unlock()

	if len(callbacks) > 0 {
		copied := append([]models.UserProfile(nil), list...)
		for _, fn := range callbacks {
			fn(copied)
		}
	}
}

func (v *CollectionView) fail(err error) {
	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		return
	}
	v.state = StateFailed
	v.err = err
	cancel := v.cancel
	v.cancel = nil
	v.mu.Unlock()

	v.logger.Error("collection subscription failed", "collection", v.collection, "error", err)
	if cancel != nil {
		cancel()
	}
}

// Stop cancels the subscription. No snapshot delivered after Stop mutates the
// list, including events already in flight. Safe to call more than once.
func (v *CollectionView) Stop() {
	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		return
	}
	v.stopped = true
	v.state = StateStopped
	cancel := v.cancel
	v.cancel = nil
	v.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Profiles returns a copy of the current materialized list.
func (v *CollectionView) Profiles() []models.UserProfile {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]models.UserProfile(nil), v.profiles...)
}

// State reports the current lifecycle state.
func (v *CollectionView) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Err returns the delivery error that moved the view to StateFailed, nil
// otherwise.
func (v *CollectionView) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Generation increments with every applied snapshot; projection memoization
// keys on it.
func (v *CollectionView) Generation() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gen
}
