// pkg/credentials/mongo.go
package credentials

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps one document per (tenant, connector) in a single
// collection. Writes go through ReplaceOne with upsert, so an update is
// a single atomic document replacement, no field-by-field merges.
type MongoStore struct {
	col *mongo.Collection
}

const collectionName = "connections"

func NewMongoStore(db *mongo.Database) (*MongoStore, error) {
	col := db.Collection(collectionName)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "connector_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}
	return &MongoStore{col: col}, nil
}

func filterFor(tenant, connector string) bson.M {
	return bson.M{"tenant_id": tenant, "connector_id": connector}
}

func (s *MongoStore) Get(ctx context.Context, tenant, connector string) (Record, bool, error) {
	var rec Record
	err := s.col.FindOne(ctx, filterFor(tenant, connector)).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *MongoStore) Put(ctx context.Context, tenant, connector string, rec Record) error {
	rec.TenantID = tenant
	rec.ConnectorID = connector
	rec.UpdatedAt = time.Now().UTC()
	_, err := s.col.ReplaceOne(ctx, filterFor(tenant, connector), rec, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) Delete(ctx context.Context, tenant, connector string) (bool, error) {
	res, err := s.col.DeleteOne(ctx, filterFor(tenant, connector))
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
