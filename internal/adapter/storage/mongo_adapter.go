package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rl1809/vending-machine/internal/core/domain"
)

const transactionsCollection = "transactions"

type itemDocument struct {
	ID         string `bson:"id"`
	Name       string `bson:"name"`
	PriceCents int64  `bson:"price_cents"`
}

type transactionDocument struct {
	ID          string         `bson:"_id"`
	Timestamp   time.Time      `bson:"timestamp"`
	Items       []itemDocument `bson:"items"`
	TotalCents  int64          `bson:"total_cents"`
	ChangeCents int64          `bson:"change_cents"`
}

func toDocument(t domain.Transaction) transactionDocument {
	items := make([]itemDocument, len(t.Items))
	for i, it := range t.Items {
		items[i] = itemDocument{ID: it.ID, Name: it.Name, PriceCents: int64(it.Price)}
	}
	return transactionDocument{
		ID:          t.ID,
		Timestamp:   t.Timestamp.UTC(),
		Items:       items,
		TotalCents:  int64(t.TotalPrice),
		ChangeCents: int64(t.Change),
	}
}

func (d transactionDocument) toDomain() domain.Transaction {
	items := make([]domain.ItemSnapshot, len(d.Items))
	for i, it := range d.Items {
		items[i] = domain.ItemSnapshot{ID: it.ID, Name: it.Name, Price: domain.Money(it.PriceCents)}
	}
	return domain.Transaction{
		ID:         d.ID,
		Timestamp:  d.Timestamp,
		Items:      items,
		TotalPrice: domain.Money(d.TotalCents),
		Change:     domain.Money(d.ChangeCents),
	}
}

// MongoAdapter archives settled transactions, one document per transaction.
type MongoAdapter struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoAdapter connects to uri and verifies the connection.
func NewMongoAdapter(ctx context.Context, uri, dbName string) (*MongoAdapter, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoAdapter{
		client:     client,
		collection: client.Database(dbName).Collection(transactionsCollection),
	}, nil
}

func (m *MongoAdapter) EnsureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

func (m *MongoAdapter) SaveTransaction(ctx context.Context, t domain.Transaction) error {
	_, err := m.collection.InsertOne(ctx, toDocument(t))
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateTransaction
	}
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (m *MongoAdapter) ListTransactions(ctx context.Context, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		return nil, nil
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := m.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []transactionDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}

	out := make([]domain.Transaction, len(docs))
	for i, d := range docs {
		out[i] = d.toDomain()
	}
	return out, nil
}

func (m *MongoAdapter) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
