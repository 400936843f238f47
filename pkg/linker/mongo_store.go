package linker

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const mongoCollection = "link_sessions"

// MongoStore persists credential records in a MongoDB collection, one
// document per session id.
type MongoStore struct {
	col *mongo.Collection
}

type mongoCredentialDoc struct {
	ID        string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoStore creates a store over the database's link_sessions collection.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection(mongoCollection)}
}

func (s *MongoStore) Load(ctx context.Context, id string) ([]byte, error) {
	var doc mongoCredentialDoc
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCredentialsNotFound
		}
		return nil, err
	}
	return doc.Data, nil
}

func (s *MongoStore) Save(ctx context.Context, id string, data []byte) error {
	doc := mongoCredentialDoc{
		ID:        id,
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.col.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	_, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
