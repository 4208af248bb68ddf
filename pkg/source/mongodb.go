package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Carolinedanslesnuages/grist-sync-plugin-sub000/pkg/logger"
)

// MongoSource reads documents from a MongoDB collection.
type MongoSource struct {
	client     *mongo.Client
	collection *mongo.Collection
	limit      int64
	log        logger.Log
}

// MongoConfig configures a MongoDB source.
type MongoConfig struct {
	ConnectionString string `json:"connectionString"`
	Database         string `json:"database"`
	Collection       string `json:"collection"`
	Limit            int64  `json:"limit,omitempty"`
}

// NewMongoSource connects to MongoDB and verifies the connection.
func NewMongoSource(ctx context.Context, cfg MongoConfig, log logger.Log) (*MongoSource, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("MongoDB connection string is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("MongoDB database name is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("MongoDB collection name is required")
	}
	if log == nil {
		log = logger.Nop()
	}

	clientOptions := options.Client().
		ApplyURI(cfg.ConnectionString).
		SetConnectTimeout(30 * time.Second).
		SetSocketTimeout(120 * time.Second)

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	limit := cfg.Limit
	if limit <= 0 {
		limit = 1000
	}

	return &MongoSource{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		limit:      limit,
		log:        log,
	}, nil
}

// Close disconnects from MongoDB.
func (s *MongoSource) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Fetch reads up to the configured limit of documents. Documents round-trip
// through JSON so the records carry the same value types as every other
// source, which keeps type inference and diffing consistent.
func (s *MongoSource) Fetch(ctx context.Context) ([]any, error) {
	cursor, err := s.collection.Find(ctx, bson.D{}, options.Find().SetLimit(s.limit))
	if err != nil {
		return nil, fmt.Errorf("MongoDB find failed: %w", err)
	}
	defer cursor.Close(ctx)

	var documents []bson.M
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, fmt.Errorf("failed to read MongoDB cursor: %w", err)
	}

	records := make([]any, 0, len(documents))
	for _, doc := range documents {
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode MongoDB document: %w", err)
		}
		var record any
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("failed to normalize MongoDB document: %w", err)
		}
		records = append(records, record)
	}

	s.log.Infof("Fetched %d documents from collection %s", len(records), s.collection.Name())
	return records, nil
}
