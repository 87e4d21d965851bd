package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoScoreRepo хранит таблицу рекордов в коллекции scores
type MongoScoreRepo struct {
	client     *mongo.Client
	collection *mongo.Collection
	ctxTimeout time.Duration
}

// NewMongoScoreRepo подключается к MongoDB и создаёт индексы
func NewMongoScoreRepo(ctx context.Context, uri, database string) (*MongoScoreRepo, error) {
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	if database == "" {
		database = "coin_collector"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	repo := &MongoScoreRepo{
		client:     client,
		collection: client.Database(database).Collection("scores"),
		ctxTimeout: 5 * time.Second,
	}
	if err := repo.ensureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return repo, nil
}

func (m *MongoScoreRepo) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	sessionIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("session_unique"),
	}
	scoreIdx := mongo.IndexModel{
		Keys:    bson.D{{Key: "score", Value: -1}, {Key: "updated_at", Value: 1}},
		Options: options.Index().SetName("score_desc"),
	}
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{sessionIdx, scoreIdx})
	return err
}

// Save делает upsert; $max не даёт счёту уменьшиться
func (m *MongoScoreRepo) Save(ctx context.Context, rec ScoreRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	update := bson.M{
		"$max": bson.M{"score": rec.Score},
		"$set": bson.M{"player_id": rec.PlayerID, "updated_at": rec.UpdatedAt.UTC()},
	}
	_, err := m.collection.UpdateOne(ctx, bson.M{"session_id": rec.SessionID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo save %s: %w", rec.SessionID, err)
	}
	return nil
}

func (m *MongoScoreRepo) Get(ctx context.Context, sessionID string) (ScoreRecord, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	var rec ScoreRecord
	err := m.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return ScoreRecord{}, false, nil
	}
	if err != nil {
		return ScoreRecord{}, false, err
	}
	return rec, true, nil
}

func (m *MongoScoreRepo) Top(ctx context.Context, n int) ([]ScoreRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "score", Value: -1}, {Key: "updated_at", Value: 1}, {Key: "session_id", Value: 1}}).
		SetLimit(int64(n))
	cur, err := m.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []ScoreRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoScoreRepo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
