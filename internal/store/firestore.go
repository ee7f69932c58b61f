package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore implements Store on Cloud Firestore, the backend the directory
// runs against in production. Collection and document subscriptions map onto
// Firestore snapshot listeners, which already deliver full snapshots.
type Firestore struct {
	client *firestore.Client
}

// FirestoreConfig selects the Firebase project and optional service-account
// credentials. Empty CredentialsJSON falls back to application default
// credentials.
type FirestoreConfig struct {
	ProjectID       string
	CredentialsJSON string
}

// NewFirestore initializes the Firestore client through the Firebase app.
func NewFirestore(ctx context.Context, cfg FirestoreConfig) (*Firestore, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore: project id is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: init app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore: init client: %w", err)
	}
	return &Firestore{client: client}, nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

func (f *Firestore) Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	ref := f.client.Collection(collection).Doc(id)
	var err error
	if merge {
		_, err = ref.Set(ctx, fields, firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, fields)
	}
	return err
}

func (f *Firestore) Delete(ctx context.Context, collection, id string) error {
	_, err := f.client.Collection(collection).Doc(id).Delete(ctx)
	return err
}

func (f *Firestore) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	snap, err := f.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, err
	}
	return Document{ID: snap.Ref.ID, Data: snap.Data()}, true, nil
}

func (f *Firestore) WatchCollection(ctx context.Context, collection string) (<-chan CollectionSnapshot, func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	it := f.client.Collection(collection).Snapshots(ctx)
	ch := make(chan CollectionSnapshot, 16)

	go func() {
		defer close(ch)
		defer it.Stop()
		for {
			qs, err := it.Next()
			if err != nil {
				if status.Code(err) == codes.Canceled || ctx.Err() != nil {
					return
				}
				select {
				case ch <- CollectionSnapshot{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			docSnaps, err := qs.Documents.GetAll()
			if err != nil {
				select {
				case ch <- CollectionSnapshot{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			docs := make([]Document, 0, len(docSnaps))
			for _, d := range docSnaps {
				docs = append(docs, Document{ID: d.Ref.ID, Data: d.Data()})
			}
			select {
			case ch <- CollectionSnapshot{Docs: docs}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, cancel, nil
}

func (f *Firestore) WatchDocument(ctx context.Context, collection, id string) (<-chan DocumentSnapshot, func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	it := f.client.Collection(collection).Doc(id).Snapshots(ctx)
	ch := make(chan DocumentSnapshot, 16)

	go func() {
		defer close(ch)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if status.Code(err) == codes.Canceled || ctx.Err() != nil {
					return
				}
				select {
				case ch <- DocumentSnapshot{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			out := DocumentSnapshot{}
			if snap.Exists() {
				out.Exists = true
				out.Doc = Document{ID: snap.Ref.ID, Data: snap.Data()}
			}
			select {
			case ch <- out:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, cancel, nil
}
