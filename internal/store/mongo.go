package store

import (
	"context"
	"crypto/tls"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo implements Store on MongoDB. Change streams report deltas, not
// snapshots, so each change triggers a full re-read of the affected scope
// before a snapshot is emitted; the subscription contract stays
// full-replacement regardless of backend. Requires a replica set (change
// streams are unavailable on standalone servers).
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo connects and pings the deployment.
func NewMongo(ctx context.Context, mongoURI, dbName string) (*Mongo, error) {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS12,
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI).SetTLSConfig(tlsCfg))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return &Mongo{client: client, db: client.Database(dbName)}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	col := m.db.Collection(collection)
	if merge {
		_, err := col.UpdateOne(ctx,
			bson.M{"_id": id},
			bson.M{"$set": bson.M(fields)},
			options.Update().SetUpsert(true),
		)
		return err
	}

	doc := bson.M{"_id": id}
	for k, v := range fields {
		doc[k] = v
	}
	_, err := col.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}

func (m *Mongo) Delete(ctx context.Context, collection, id string) error {
	// DeleteOne on a missing id matches zero documents and reports no error,
	// which is the idempotency the callers expect.
	_, err := m.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (m *Mongo) Get(ctx context.Context, collection, id string) (Document, bool, error) {
	var raw bson.M
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err == mongo.ErrNoDocuments {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, err
	}
	return mongoDocument(id, raw), true, nil
}

func (m *Mongo) WatchCollection(ctx context.Context, collection string) (<-chan CollectionSnapshot, func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	col := m.db.Collection(collection)

	cs, err := col.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("mongo: watch %s: %w", collection, err)
	}

	ch := make(chan CollectionSnapshot, 16)
	go func() {
		defer close(ch)
		defer cs.Close(context.Background())

		emit := func() bool {
			snap, err := m.readCollection(ctx, collection)
			if err != nil {
				if ctx.Err() != nil {
					return false
				}
				select {
				case ch <- CollectionSnapshot{Err: err}:
				case <-ctx.Done():
				}
				return false
			}
			select {
			case ch <- snap:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for cs.Next(ctx) {
			if !emit() {
				return
			}
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			select {
			case ch <- CollectionSnapshot{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, cancel, nil
}

func (m *Mongo) WatchDocument(ctx context.Context, collection, id string) (<-chan DocumentSnapshot, func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	col := m.db.Collection(collection)

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"documentKey._id": id}}},
	}
	cs, err := col.Watch(ctx, pipeline)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("mongo: watch %s/%s: %w", collection, id, err)
	}

	ch := make(chan DocumentSnapshot, 16)
	go func() {
		defer close(ch)
		defer cs.Close(context.Background())

		emit := func() bool {
			doc, ok, err := m.Get(ctx, collection, id)
			if err != nil {
				if ctx.Err() != nil {
					return false
				}
				select {
				case ch <- DocumentSnapshot{Err: err}:
				case <-ctx.Done():
				}
				return false
			}
			snap := DocumentSnapshot{Exists: ok}
			if ok {
				snap.Doc = doc
			}
			select {
			case ch <- snap:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for cs.Next(ctx) {
			if !emit() {
				return
			}
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			select {
			case ch <- DocumentSnapshot{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, cancel, nil
}

func (m *Mongo) readCollection(ctx context.Context, collection string) (CollectionSnapshot, error) {
	cursor, err := m.db.Collection(collection).Find(ctx, bson.M{})
	if err != nil {
		return CollectionSnapshot{}, err
	}
	defer cursor.Close(ctx)

	var docs []Document
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return CollectionSnapshot{}, err
		}
		id, _ := raw["_id"].(string)
		docs = append(docs, mongoDocument(id, raw))
	}
	if err := cursor.Err(); err != nil {
		return CollectionSnapshot{}, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return CollectionSnapshot{Docs: docs}, nil
}

func mongoDocument(id string, raw bson.M) Document {
	data := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "_id" {
			continue
		}
		data[k] = v
	}
	return Document{ID: id, Data: data}
}
