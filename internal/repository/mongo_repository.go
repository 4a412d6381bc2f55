package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection("cart_items"),
	}
}

func (m *mongoRepository) ListItems(ctx context.Context, userID string) ([]domain.LineItem, error) {
	// ids are time ordered, so sorting by _id yields insertion order
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := m.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}

	items := []domain.LineItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("failed to decode cart items: %w", err)
	}
	return items, nil
}

func (m *mongoRepository) AddItem(ctx context.Context, userID string, productID int64, quantity int) (*domain.LineItem, error) {
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}

	// an item too full to take quantity does not match, so the upsert
	// collides with it on the unique index instead of incrementing it
	filter := bson.M{
		"user_id":    userID,
		"product_id": productID,
		"quantity":   bson.M{"$lte": domain.MaxQuantity - quantity},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var item domain.LineItem
	for attempt := 0; ; attempt++ {
		update := bson.M{
			"$inc": bson.M{"quantity": quantity},
			"$setOnInsert": bson.M{
				"_id":        domain.NewLineItemID(),
				"created_at": time.Now().UTC(),
			},
		}
		err := m.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&item)
		if err == nil {
			return &item, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("failed to add cart item: %w", err)
		}

		full, ferr := m.atLimit(ctx, userID, productID, quantity)
		if ferr != nil {
			return nil, ferr
		}
		if full {
			return nil, ErrQuantityLimit
		}
		// Two concurrent upserts for the same pair can both miss the match;
		// the unique index rejects the loser, whose retry then matches.
		if attempt > 0 {
			return nil, fmt.Errorf("failed to add cart item: %w", err)
		}
	}
}

// atLimit reports whether the user's item for the product cannot take
// another quantity units.
func (m *mongoRepository) atLimit(ctx context.Context, userID string, productID int64, quantity int) (bool, error) {
	var existing domain.LineItem
	err := m.collection.FindOne(ctx, bson.M{"user_id": userID, "product_id": productID}).Decode(&existing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get cart item: %w", err)
	}
	return existing.Quantity > domain.MaxQuantity-quantity, nil
}

func (m *mongoRepository) GetItem(ctx context.Context, id string) (*domain.LineItem, error) {
	var item domain.LineItem
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}
	return &item, nil
}

func (m *mongoRepository) UpdateItemQuantity(ctx context.Context, id string, quantity int) (*domain.LineItem, error) {
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}
	update := bson.M{"$set": bson.M{"quantity": quantity}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var item domain.LineItem
	err := m.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to update item quantity: %w", err)
	}
	return &item, nil
}

func (m *mongoRepository) RemoveItem(ctx context.Context, id string) (*domain.LineItem, error) {
	var item domain.LineItem
	err := m.collection.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&item)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to remove item: %w", err)
	}
	return &item, nil
}

func (m *mongoRepository) DeleteCart(ctx context.Context, userID string) error {
	if _, err := m.collection.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

func (m *mongoRepository) Ping(ctx context.Context) error {
	return m.collection.Database().Client().Ping(ctx, nil)
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "product_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// EnsureIndexes creates the indexes AddItem relies on for merge atomicity.
func EnsureIndexes(ctx context.Context, repo CartRepository) error {
	m, ok := repo.(*mongoRepository)
	if !ok {
		return nil
	}
	return m.CreateIndexes(ctx)
}
