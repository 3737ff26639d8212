package store

import (
	"context"
	"encoding/json"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoStore backs the board with MongoDB. Upserts are ReplaceOne with
// upsert semantics; subscriptions watch the collection's change stream and
// re-query the top-limit set on every event, so consumers always see a full
// snapshot rather than a diff.
type MongoStore struct {
	db  *mongo.Database
	log *zap.Logger
}

func NewMongoStore(ctx context.Context, uri, database string, log *zap.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return &MongoStore{db: client.Database(database), log: log}, nil
}

func (s *MongoStore) Upsert(ctx context.Context, collection, key string, doc any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return &WriteError{Collection: collection, Key: key, Err: err}
	}
	var fields bson.M
	if err := bson.UnmarshalExtJSON(b, false, &fields); err != nil {
		return &WriteError{Collection: collection, Key: key, Err: err}
	}
	fields["_id"] = key

	_, err = s.db.Collection(collection).ReplaceOne(ctx,
		bson.M{"_id": key}, fields, options.Replace().SetUpsert(true))
	if err != nil {
		return &WriteError{Collection: collection, Key: key, Err: err}
	}
	return nil
}

func (s *MongoStore) SubscribeOrdered(ctx context.Context, collection, sortField string, descending bool, limit int) (*Subscription, error) {
	col := s.db.Collection(collection)

	cs, err := col.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := newSubscription(cancel)

	go func() {
		defer close(sub.out)
		defer cs.Close(context.Background())

		snap, err := s.query(ctx, col, sortField, descending, limit)
		if err != nil {
			s.log.Error("initial snapshot query failed",
				zap.String("collection", collection), zap.Error(err))
			return
		}
		if !sub.push(ctx, snap) {
			return
		}
		for cs.Next(ctx) {
			snap, err := s.query(ctx, col, sortField, descending, limit)
			if err != nil {
				s.log.Error("snapshot query failed",
					zap.String("collection", collection), zap.Error(err))
				continue
			}
			if !sub.push(ctx, snap) {
				return
			}
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			s.log.Error("change stream broken",
				zap.String("collection", collection), zap.Error(err))
		}
	}()
	return sub, nil
}

func (s *MongoStore) query(ctx context.Context, col *mongo.Collection, sortField string, descending bool, limit int) (Snapshot, error) {
	dir := 1
	if descending {
		dir = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: sortField, Value: dir}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cur, err := col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var snap Snapshot
	for cur.Next(ctx) {
		var m bson.M
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		delete(m, "_id")
		b, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		snap = append(snap, b)
	}
	return snap, cur.Err()
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}
