package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/userdesk/backend/internal/liveview"
	"github.com/userdesk/backend/internal/models"
	"github.com/userdesk/backend/internal/store"
)

// DirectoryService is the administrative surface over the users collection.
// It owns a long-lived collection view: reads come from the materialized list,
// writes go through to the store, and their effects show up only via the next
// snapshot. Admin edits use replace semantics, so a replaced document holds
// exactly the submitted fields.
type DirectoryService struct {
	store  store.Store
	view   *liveview.CollectionView
	logger *slog.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]chan []models.UserProfile
}

func NewDirectoryService(st store.Store, logger *slog.Logger) *DirectoryService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DirectoryService{
		store:  st,
		logger: logger,
		subs:   make(map[int]chan []models.UserProfile),
	}
	s.view = liveview.NewCollectionView(st, UsersCollection, logger)
	s.view.OnChange(s.fanout)
	return s
}

// Start opens the underlying collection subscription.
func (s *DirectoryService) Start(ctx context.Context) error {
	return s.view.Start(ctx)
}

// Stop tears the subscription down; queued snapshots are discarded.
func (s *DirectoryService) Stop() {
	s.view.Stop()
}

// View exposes the underlying collection view, primarily for health and
// diagnostics.
func (s *DirectoryService) View() *liveview.CollectionView {
	return s.view
}

// List projects the materialized list: case-insensitive username search plus
// locale-aware username sort. Pure in (current snapshot, search, order).
func (s *DirectoryService) List(search string, order liveview.SortOrder) []models.UserProfile {
	return s.view.Project(search, order)
}

// Total reports how many profiles the latest snapshot holds.
func (s *DirectoryService) Total() int {
	return len(s.view.Profiles())
}

// Create adds a directory entry with a locally generated id. Unlike
// registration this does not create an identity-provider account; it is the
// one call site where the document id is not a provider UID.
func (s *DirectoryService) Create(ctx context.Context, req models.UpdateUserRequest) (string, error) {
	if fields := req.Validate(); len(fields) > 0 {
		return "", &ErrValidation{Fields: fields}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	profile := models.UserProfile{
		ID:           id,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := s.store.Set(ctx, UsersCollection, id, profile.Fields(), false); err != nil {
		return "", err
	}
	s.logger.Info("directory entry created", "id", id)
	return id, nil
}

// Update replaces the document wholesale with the submitted fields. Any field
// not in the request, the avatar included, is dropped by the replace write.
func (s *DirectoryService) Update(ctx context.Context, id string, req models.UpdateUserRequest) error {
	if fields := req.Validate(); len(fields) > 0 {
		return &ErrValidation{Fields: fields}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	fields := map[string]any{
		"username":      req.Username,
		"email":         req.Email,
		"password_hash": string(hash),
	}
	if err := s.store.Set(ctx, UsersCollection, id, fields, false); err != nil {
		return err
	}
	s.logger.Info("directory entry updated", "id", id)
	return nil
}

// Remove deletes the profile document. The matching identity-provider account,
// if any, is untouched.
func (s *DirectoryService) Remove(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, UsersCollection, id); err != nil {
		return err
	}
	s.logger.Info("directory entry removed", "id", id)
	return nil
}

// Subscribe returns a channel receiving the full materialized list after every
// applied snapshot, plus an unsubscribe func. Slow consumers drop snapshots
// rather than block delivery.
func (s *DirectoryService) Subscribe() (<-chan []models.UserProfile, func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	ch := make(chan []models.UserProfile, 8)
	s.subs[id] = ch
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		if cur, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(cur)
		}
		s.mu.Unlock()
	}
	return ch, unsubscribe
}

func (s *DirectoryService) fanout(list []models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- list:
		default:
		}
	}
}
