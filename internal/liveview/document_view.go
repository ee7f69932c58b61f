package liveview

import (
	"context"
	"log/slog"
	"sync"

	"github.com/userdesk/backend/internal/models"
	"github.com/userdesk/backend/internal/store"
)

// DocumentView tracks a single profile document, used for the self-profile
// flow. When a snapshot reports the document missing, the view shows the
// configured fallback (typically the session identity's uid and email) instead
// of whatever it displayed before.
type DocumentView struct {
	watcher    Watcher
	collection string
	id         string
	fallback   models.UserProfile
	logger     *slog.Logger

	mu       sync.Mutex
	state    State
	err      error
	current  models.UserProfile
	exists   bool
	stopped  bool
	cancel   func()
	onChange []func(models.UserProfile, bool)
}

// NewDocumentView builds an idle single-document view. fallback is the
// profile presented while the document does not exist.
func NewDocumentView(w Watcher, collection, id string, fallback models.UserProfile, logger *slog.Logger) *DocumentView {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentView{
		watcher:    w,
		collection: collection,
		id:         id,
		fallback:   fallback,
		current:    fallback,
		logger:     logger,
	}
}

// OnChange registers a callback invoked after every applied snapshot with the
// current profile and whether the underlying document exists. Must be called
// before Start.
func (v *DocumentView) OnChange(fn func(models.UserProfile, bool)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onChange = append(v.onChange, fn)
}

// Start opens the subscription.
func (v *DocumentView) Start(ctx context.Context) error {
	v.mu.Lock()
	if v.state != StateIdle {
		v.mu.Unlock()
		return ErrAlreadyStarted
	}
	v.mu.Unlock()

	ch, cancel, err := v.watcher.WatchDocument(ctx, v.collection, v.id)
	if err != nil {
		v.mu.Lock()
		v.state = StateFailed
		v.err = err
		v.mu.Unlock()
		return err
	}

	v.mu.Lock()
	if v.stopped {
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

func (v *DocumentView) consume(ch <-chan store.DocumentSnapshot) {
	for snap := range ch {
		if snap.Err != nil {
			v.fail(snap.Err)
			return
		}
		v.apply(snap)
	}
}

func (v *DocumentView) apply(snap store.DocumentSnapshot) {
	v.mu.Lock()
	if v.stopped || v.state != StateActive {
		v.mu.Unlock()
		return
	}

	if snap.Exists {
		v.current = models.ProfileFromFields(snap.Doc.ID, snap.Doc.Data)
		v.exists = true
	} else {
		v.current = v.fallback
		v.exists = false
	}
	current, exists := v.current, v.exists
	callbacks := v.onChange
	v.mu.Unlock()

	for _, fn := range callbacks {
		fn(current, exists)
	}
}

func (v *DocumentView) fail(err error) {
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

	v.logger.Error("document subscription failed",
		"collection", v.collection, "id", v.id, "error", err)
	if cancel != nil {
		cancel()
	}
}

// Stop cancels the subscription and discards later deliveries.
func (v *DocumentView) Stop() {
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

// Profile returns the current profile and whether the backing document exists.
// While the document is absent the fallback profile is returned.
func (v *DocumentView) Profile() (models.UserProfile, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current, v.exists
}

// State reports the current lifecycle state.
func (v *DocumentView) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Err returns the delivery error for a failed view.
func (v *DocumentView) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}
