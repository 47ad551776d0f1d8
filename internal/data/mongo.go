package data

import (
	"context"
	"fmt"
	"time"

	"github.com/flatpee/flatpee-bot/internal/biz/domain"
	"github.com/flatpee/flatpee-bot/internal/biz/repo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const mongoCollection = "chat_history"

// mongoMessage is the stored form of a MessageRecord
type mongoMessage struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	RecordID       string             `bson:"recordId"`
	ConversationID string             `bson:"conversationId"`
	Text           string             `bson:"text"`
	Direction      string             `bson:"direction"`
	OccurredAt     time.Time          `bson:"occurredAt"`
}

// mongoConversationRepo implements the conversation log on MongoDB
// Retention is a TTL index on occurredAt
type mongoConversationRepo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoConversationRepo connects, pings and ensures indexes
func NewMongoConversationRepo(ctx context.Context, uri, database string, retention time.Duration) (repo.ConversationRepo, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	fmt.Printf("[Store] Connected to MongoDB database %s\n", database)

	r := &mongoConversationRepo{
		client: client,
		coll:   client.Database(database).Collection(mongoCollection),
	}

	// Index failures (e.g. a TTL index with different options) leave the
	// existing index in place
	if err := r.ensureIndexes(ctx, retention); err != nil {
		fmt.Printf("[Store] Warning: %v\n", err)
	}

	return r, nil
}

func (r *mongoConversationRepo) ensureIndexes(ctx context.Context, retention time.Duration) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "conversationId", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "conversationId", Value: 1},
				{Key: "occurredAt", Value: -1},
				{Key: "_id", Value: -1},
			},
		},
		{
			Keys:    bson.D{{Key: "occurredAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retention / time.Second)),
		},
	}

	names, err := r.coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	fmt.Printf("[Store] Indexes ready: %v\n", names)
	return nil
}

// Append writes one record
func (r *mongoConversationRepo) Append(ctx context.Context, record *domain.MessageRecord) error {
	_, err := r.coll.InsertOne(ctx, mongoMessage{
		RecordID:       record.ID,
		ConversationID: string(record.ConversationID),
		Text:           record.Text,
		Direction:      string(record.Direction),
		OccurredAt:     record.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// Recent returns the newest records, reversed to oldest first
func (r *mongoConversationRepo) Recent(ctx context.Context, conversationID domain.ConversationID, limit int) ([]domain.MessageRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "occurredAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, bson.M{"conversationId": string(conversationID)}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}

	var docs []mongoMessage
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	records := make([]domain.MessageRecord, len(docs))
	for i, doc := range docs {
		records[len(docs)-1-i] = domain.MessageRecord{
			ID:             doc.RecordID,
			ConversationID: domain.ConversationID(doc.ConversationID),
			Text:           doc.Text,
			Direction:      domain.Direction(doc.Direction),
			OccurredAt:     doc.OccurredAt,
		}
	}
	return records, nil
}

// Ping checks the primary is reachable
func (r *mongoConversationRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

// Indexes lists the index names on the collection
func (r *mongoConversationRepo) Indexes(ctx context.Context) ([]string, error) {
	cursor, err := r.coll.Indexes().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes: %w", err)
	}

	var specs []bson.M
	if err := cursor.All(ctx, &specs); err != nil {
		return nil, fmt.Errorf("failed to decode indexes: %w", err)
	}

	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		if name, ok := spec["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// Close disconnects the client pool
func (r *mongoConversationRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}
