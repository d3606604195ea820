package pairwise

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const pairwiseCollectionName = "pairwise_derivations"

// derivationDocument is the BSON projection of Record. Keyed by
// (master_did, relying_party_did) via a composite unique index so Put is a
// natural upsert.
type derivationDocument struct {
	MasterDID       string    `bson:"master_did"`
	RelyingPartyDID string    `bson:"relying_party_did"`
	ContextSalt     string    `bson:"context_salt"`
	DerivedDID      string    `bson:"derived_did"`
	CreatedAt       time.Time `bson:"created_at"`
}

// MongoRegistry implements Registry on top of MongoDB, for deployments that
// need the relationship cache to survive a process restart.
type MongoRegistry struct {
	collection *mongo.Collection
}

// NewMongoRegistry validates connectivity, creates the composite unique
// index on (master_did, relying_party_did), and returns a ready Registry.
func NewMongoRegistry(db *mongo.Database) (*MongoRegistry, error) {
	if db == nil {
		return nil, fmt.Errorf("pairwise: database cannot be nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.Client().Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pairwise: mongodb connection failed: %w", err)
	}

	collection := db.Collection(pairwiseCollectionName)
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "master_did", Value: 1}, {Key: "relying_party_did", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("pairwise: failed to create index: %w", err)
	}

	return &MongoRegistry{collection: collection}, nil
}

func (r *MongoRegistry) Get(ctx context.Context, masterDID, rpDID string) (Record, bool, error) {
	var doc derivationDocument
	err := r.collection.FindOne(ctx, bson.M{"master_did": masterDID, "relying_party_did": rpDID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("pairwise: get failed: %w", err)
	}
	return Record{
		MasterDID:       doc.MasterDID,
		RelyingPartyDID: doc.RelyingPartyDID,
		ContextSalt:     doc.ContextSalt,
		DerivedDID:      doc.DerivedDID,
		CreatedAt:       doc.CreatedAt.Unix(),
	}, true, nil
}

func (r *MongoRegistry) Put(ctx context.Context, rec Record) error {
	doc := derivationDocument{
		MasterDID:       rec.MasterDID,
		RelyingPartyDID: rec.RelyingPartyDID,
		ContextSalt:     rec.ContextSalt,
		DerivedDID:      rec.DerivedDID,
		CreatedAt:       time.Unix(rec.CreatedAt, 0).UTC(),
	}
	filter := bson.M{"master_did": rec.MasterDID, "relying_party_did": rec.RelyingPartyDID}
	_, err := r.collection.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("pairwise: put failed: %w", err)
	}
	return nil
}

func (r *MongoRegistry) Revoke(ctx context.Context, masterDID, rpDID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"master_did": masterDID, "relying_party_did": rpDID})
	if err != nil {
		return fmt.Errorf("pairwise: revoke failed: %w", err)
	}
	return nil
}

func (r *MongoRegistry) ListByMaster(ctx context.Context, masterDID string) ([]Record, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"master_did": masterDID})
	if err != nil {
		return nil, fmt.Errorf("pairwise: list failed: %w", err)
	}
	defer cursor.Close(ctx)

	var out []Record
	for cursor.Next(ctx) {
		var doc derivationDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("pairwise: decode failed: %w", err)
		}
		out = append(out, Record{
			MasterDID:       doc.MasterDID,
			RelyingPartyDID: doc.RelyingPartyDID,
			ContextSalt:     doc.ContextSalt,
			DerivedDID:      doc.DerivedDID,
			CreatedAt:       doc.CreatedAt.Unix(),
		})
	}
	return out, cursor.Err()
}

func (r *MongoRegistry) Close() error { return nil }
