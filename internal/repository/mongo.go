package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"scribely/internal/apperr"
	"scribely/internal/model"
)

const recordsCollection = "records"

// recordDocument is the stored shape of a record. Absent artifacts are
// written as explicit nulls.
type recordDocument struct {
	ID                string    `bson:"_id"`
	CreatedAt         time.Time `bson:"created_at"`
	Filename          string    `bson:"filename"`
	DurationMs        int64     `bson:"duration_ms"`
	SegmentCount      int       `bson:"segment_count"`
	MissingSegments   []int     `bson:"missing_segments,omitempty"`
	Transcript        string    `bson:"transcript"`
	CleanedTranscript *string   `bson:"cleaned_transcript"`
	Analysis          *string   `bson:"analysis"`
	Summary           *string   `bson:"summary"`
	ActionItems       *string   `bson:"action_items"`
	Quotes            *string   `bson:"quotes"`
	STTProvider       string    `bson:"stt_provider"`
	LLMProvider       string    `bson:"llm_provider"`
}

type mongoRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

// NewMongoRepository creates a repository on the records collection of db
// and ensures its created_at index.
func NewMongoRepository(ctx context.Context, db *mongo.Database, logger *zap.Logger) (RecordRepository, error) {
	collection := db.Collection(recordsCollection)

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create records index: %w", err)
	}

	return &mongoRepository{collection: collection, logger: logger}, nil
}

func (r *mongoRepository) Driver() string {
	return "mongo"
}

func (r *mongoRepository) Insert(ctx context.Context, rec *model.Record) error {
	doc := recordDocument{
		ID:                rec.ID.String(),
		CreatedAt:         rec.CreatedAt.UTC(),
		Filename:          rec.Filename,
		DurationMs:        rec.DurationMs,
		SegmentCount:      rec.SegmentCount,
		MissingSegments:   rec.MissingSegments,
		Transcript:        rec.Transcript,
		CleanedTranscript: rec.CleanedTranscript,
		Analysis:          rec.Analysis,
		Summary:           rec.Summary,
		ActionItems:       rec.ActionItems,
		Quotes:            rec.Quotes,
		STTProvider:       rec.STTProvider,
		LLMProvider:       rec.LLMProvider,
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return &apperr.PersistenceError{Driver: r.Driver(), Err: fmt.Errorf("failed to insert record: %w", err)}
	}
	r.logger.Debug("Record inserted", zap.String("id", doc.ID))
	return nil
}

func (r *mongoRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Record, error) {
	var doc recordDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &apperr.PersistenceError{Driver: r.Driver(), Err: fmt.Errorf("failed to get record: %w", err)}
	}
	return doc.record()
}

func (r *mongoRepository) List(ctx context.Context) ([]model.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, &apperr.PersistenceError{Driver: r.Driver(), Err: fmt.Errorf("failed to query records: %w", err)}
	}
	defer cursor.Close(ctx)

	records := []model.Record{}
	for cursor.Next(ctx) {
		var doc recordDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, &apperr.PersistenceError{Driver: r.Driver(), Err: fmt.Errorf("failed to decode record: %w", err)}
		}
		rec, err := doc.record()
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, &apperr.PersistenceError{Driver: r.Driver(), Err: err}
	}
	return records, nil
}

func (d recordDocument) record() (*model.Record, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid record id %q: %w", d.ID, err)
	}
	return &model.Record{
		ID:                id,
		CreatedAt:         d.CreatedAt.UTC(),
		Filename:          d.Filename,
		DurationMs:        d.DurationMs,
		SegmentCount:      d.SegmentCount,
		MissingSegments:   d.MissingSegments,
		Transcript:        d.Transcript,
		CleanedTranscript: d.CleanedTranscript,
		Analysis:          d.Analysis,
		Summary:           d.Summary,
		ActionItems:       d.ActionItems,
		Quotes:            d.Quotes,
		STTProvider:       d.STTProvider,
		LLMProvider:       d.LLMProvider,
	}, nil
}

// ConnectMongo opens a client for uri and returns it with the named database.
func ConnectMongo(ctx context.Context, uri, database string, logger *zap.Logger) (*mongo.Client, *mongo.Database, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(10).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info("Connected to MongoDB", zap.String("database", database))
	return client, client.Database(database), nil
}
