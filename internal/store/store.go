package store

import (
	"context"
	"errors"
)

// Document is a single schema-less record addressed by collection and id.
type Document struct {
	ID   string
	Data map[string]any
}

// CollectionSnapshot carries the complete current contents of a collection at
// one moment. Subscriptions always deliver full snapshots, never deltas; a
// consumer replaces its entire materialized state on every event. Err is set
// on delivery failure, which terminates the subscription.
type CollectionSnapshot struct {
	Docs []Document
	Err  error
}

// DocumentSnapshot is the single-document variant. Exists is false when the
// document is currently absent from the store.
type DocumentSnapshot struct {
	Exists bool
	Doc    Document
	Err    error
}

// ErrNotFound is returned by Get when the document does not exist.
var ErrNotFound = errors.New("document not found")

// Store is the write-through document store consumed by the sync layer.
// Implementations: Firestore, MongoDB (change streams), and an in-memory fake
// for tests and local development.
type Store interface {
	// Set writes fields to collection/id. With merge true only the supplied
	// fields change; with merge false the document is replaced wholesale,
	// dropping any field not present in fields.
	Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error

	// Delete removes the document. Deleting an absent document is not an
	// application-level error.
	Delete(ctx context.Context, collection, id string) error

	// Get performs a point read. The boolean reports existence; ErrNotFound is
	// never returned alongside ok=false, errors are transport failures only.
	Get(ctx context.Context, collection, id string) (Document, bool, error)

	// WatchCollection opens a live subscription delivering full snapshots.
	// The returned cancel func must be called on teardown; after cancel no
	// further events are delivered and the channel is closed.
	WatchCollection(ctx context.Context, collection string) (<-chan CollectionSnapshot, func(), error)

	// WatchDocument is the single-document subscription variant.
	WatchDocument(ctx context.Context, collection, id string) (<-chan DocumentSnapshot, func(), error)
}
