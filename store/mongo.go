package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore maps each collection onto a MongoDB collection keyed by _id.
// Message logs live in "<collection>_messages" with a parent field.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &MongoStore{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		log.Printf("⚠️  [STORE] mongo index setup failed: %v", err)
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.messages(Rooms).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "parent", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	if err != nil {
		return err
	}
	_, err = s.db.Collection(Users).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "usernameKey", Value: 1}},
	})
	return err
}

func (s *MongoStore) messages(collection string) *mongo.Collection {
	return s.db.Collection(collection + "_messages")
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return fromBSON(raw)
}

func (s *MongoStore) Set(ctx context.Context, collection, id string, fields Document) error {
	if len(fields) == 0 {
		return nil
	}
	_, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": map[string]any(fields)},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *MongoStore) Replace(ctx context.Context, collection, id string, doc Document) error {
	_, err := s.db.Collection(collection).ReplaceOne(ctx,
		bson.M{"_id": id},
		map[string]any(doc),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.messages(collection).DeleteMany(ctx, bson.M{"parent": id}); err != nil {
		return fmt.Errorf("delete messages of %s/%s: %w", collection, id, err)
	}
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *MongoStore) Query(ctx context.Context, collection, field string, value any, limit int) ([]Snapshot, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.db.Collection(collection).Find(ctx, bson.M{field: value}, opts)
	if err != nil {
		return nil, fmt.Errorf("query %s where %s: %w", collection, field, err)
	}
	return drain(ctx, cur)
}

func (s *MongoStore) TopN(ctx context.Context, collection, field string, limit int) ([]Snapshot, error) {
	opts := options.Find().SetSort(bson.D{{Key: field, Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.db.Collection(collection).Find(ctx, bson.M{field: bson.M{"$exists": true}}, opts)
	if err != nil {
		return nil, fmt.Errorf("top %s by %s: %w", collection, field, err)
	}
	return drain(ctx, cur)
}

func (s *MongoStore) List(ctx context.Context, collection string) ([]Snapshot, error) {
	cur, err := s.db.Collection(collection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return drain(ctx, cur)
}

func (s *MongoStore) AddMessage(ctx context.Context, collection, parentID string, msg Document) error {
	_, err := s.messages(collection).InsertOne(ctx, bson.M{
		"_id":       uuid.NewString(),
		"parent":    parentID,
		"timestamp": msg["timestamp"],
		"data":      map[string]any(msg),
	})
	if err != nil {
		return fmt.Errorf("add message to %s/%s: %w", collection, parentID, err)
	}
	return nil
}

func (s *MongoStore) ListMessages(ctx context.Context, collection, parentID string) ([]Document, error) {
	cur, err := s.messages(collection).Find(ctx,
		bson.M{"parent": parentID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list messages of %s/%s: %w", collection, parentID, err)
	}
	defer cur.Close(ctx)

	var out []Document
	for cur.Next(ctx) {
		var row struct {
			Data bson.M `bson:"data"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		doc, err := fromBSON(row.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, cur.Err()
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func drain(ctx context.Context, cur *mongo.Cursor) ([]Snapshot, error) {
	defer cur.Close(ctx)
	var out []Snapshot
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, err
		}
		id := fmt.Sprint(raw["_id"])
		doc, err := fromBSON(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, Snapshot{ID: id, Data: doc})
	}
	return out, cur.Err()
}

// fromBSON normalizes driver types (primitive.D, primitive.A, int32) into the
// plain JSON shapes the rest of the code expects.
func fromBSON(raw bson.M) (Document, error) {
	ext, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("convert bson: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(ext, &doc); err != nil {
		return nil, fmt.Errorf("convert bson: %w", err)
	}
	delete(doc, "_id")
	return doc, nil
}
