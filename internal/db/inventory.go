package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// ErrDuplicateCode is returned when an item code is already taken.
var ErrDuplicateCode = errors.New("item code already exists")

// MongoInventoryCollection implements InventoryCollection for MongoDB.
type MongoInventoryCollection struct {
	Collection *mongo.Collection
}

// InsertItem stores a new inventory item.
func (c *MongoInventoryCollection) InsertItem(ctx context.Context, item *models.InventoryItem) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	res, err := c.Collection.InsertOne(ctx, item)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateCode
		}
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		item.ID = oid
	}
	return nil
}

// FindItemByID finds an item by its id.
func (c *MongoInventoryCollection) FindItemByID(ctx context.Context, id string) (*models.InventoryItem, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var item models.InventoryItem
	if err := c.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&item); err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

// FindItems lists items sorted by name.
func (c *MongoInventoryCollection) FindItems(ctx context.Context, filter ItemFilter) ([]models.InventoryItem, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	opts := options.Find().SetSort(bson.D{{Key: "namaBahan", Value: 1}})
	cursor, err := c.Collection.Find(ctx, filter.Query(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	items := []models.InventoryItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// FindCodes reports which of the given item codes exist.
func (c *MongoInventoryCollection) FindCodes(ctx context.Context, codes []string) (map[string]bool, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	known := make(map[string]bool, len(codes))
	if len(codes) == 0 {
		return known, nil
	}
	opts := options.Find().SetProjection(bson.M{"kodeBahan": 1})
	cursor, err := c.Collection.Find(ctx, bson.M{"kodeBahan": bson.M{"$in": codes}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var doc struct {
			KodeBahan string `bson:"kodeBahan"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		known[doc.KodeBahan] = true
	}
	return known, cursor.Err()
}

// ApplyPatch writes a field-delta update to one item.
func (c *MongoInventoryCollection) ApplyPatch(ctx context.Context, id string, patch *models.Patch) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := c.Collection.UpdateOne(ctx, patch.Filter(bson.M{"_id": oid}), patch.Document())
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("update item %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return missOrStale(ctx, c.Collection, oid, patch)
	}
	return nil
}

// DecrementStock subtracts qty only when enough stock is on hand, so
// concurrent stock-outs can never drive stok below zero.
func (c *MongoInventoryCollection) DecrementStock(ctx context.Context, id string, qty float64) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := c.Collection.UpdateOne(ctx,
		bson.M{"_id": oid, "stok": bson.M{"$gte": qty}},
		bson.M{
			"$inc": bson.M{"stok": -qty},
			"$set": bson.M{"updatedAt": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := c.FindItemByID(ctx, id); err != nil {
			return err
		}
		return ErrInsufficientStock
	}
	return nil
}

// UpsertPartStubs inserts placeholder items for part codes that do not exist
// yet and leaves existing ones untouched. It returns how many were created.
func (c *MongoInventoryCollection) UpsertPartStubs(ctx context.Context, stubs []models.InventoryItem) (int64, error) {
	if c.Collection == nil {
		return 0, ErrNilCollection
	}
	var created int64
	for _, s := range stubs {
		if s.KodeBahan == "" {
			continue
		}
		res, err := c.Collection.UpdateOne(ctx,
			bson.M{"kodeBahan": s.KodeBahan},
			bson.M{"$setOnInsert": bson.M{
				"tipe":       s.Tipe,
				"namaBahan":  s.NamaBahan,
				"satuan":     s.Satuan,
				"stok":       s.Stok,
				"minStok":    s.MinStok,
				"hargaModal": s.HargaModal,
				"hargaJual":  s.HargaJual,
				"createdAt":  s.CreatedAt,
				"updatedAt":  s.UpdatedAt,
			}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return created, fmt.Errorf("upsert part %s: %w", s.KodeBahan, err)
		}
		created += res.UpsertedCount
	}
	return created, nil
}

// MongoSupplierCollection implements SupplierCollection for MongoDB.
type MongoSupplierCollection struct {
	Collection *mongo.Collection
}

// InsertSupplier stores a new supplier.
func (c *MongoSupplierCollection) InsertSupplier(ctx context.Context, s *models.Supplier) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	now := time.Now()
	s.CreatedAt, s.UpdatedAt = now, now
	res, err := c.Collection.InsertOne(ctx, s)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		s.ID = oid
	}
	return nil
}

// FindSuppliers lists all suppliers by name.
func (c *MongoSupplierCollection) FindSuppliers(ctx context.Context) ([]models.Supplier, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	cursor, err := c.Collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	out := []models.Supplier{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateSupplier replaces a supplier's fields.
func (c *MongoSupplierCollection) UpdateSupplier(ctx context.Context, id string, s models.Supplier) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := c.Collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"name":      s.Name,
		"phone":     s.Phone,
		"address":   s.Address,
		"contact":   s.Contact,
		"updatedAt": time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSupplier deletes a supplier by id.
func (c *MongoSupplierCollection) DeleteSupplier(ctx context.Context, id string) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := c.Collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
