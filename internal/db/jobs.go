package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// MongoJobCollection implements JobCollection for MongoDB.
type MongoJobCollection struct {
	Collection *mongo.Collection
}

// InsertJob stores a new job and sets its generated id.
func (c *MongoJobCollection) InsertJob(ctx context.Context, job *models.Job) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	res, err := c.Collection.InsertOne(ctx, job)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		job.ID = oid
	}
	return nil
}

// FindJobByID finds a job by its id.
func (c *MongoJobCollection) FindJobByID(ctx context.Context, id string) (*models.Job, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var job models.Job
	if err := c.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&job); err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

// FindJobs lists jobs newest first.
func (c *MongoJobCollection) FindJobs(ctx context.Context, filter JobFilter) ([]models.Job, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	cursor, err := c.Collection.Find(ctx, filter.Query(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	jobs := []models.Job{}
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// FindLatestByPoliceNumber returns the most recent job for a plate.
func (c *MongoJobCollection) FindLatestByPoliceNumber(ctx context.Context, plate string) (*models.Job, error) {
	return c.findOneByPlate(ctx, bson.M{"policeNumber": models.NormalizePoliceNumber(plate)})
}

// FindOpenByPoliceNumber returns the most recent open job for a plate.
func (c *MongoJobCollection) FindOpenByPoliceNumber(ctx context.Context, plate string) (*models.Job, error) {
	return c.findOneByPlate(ctx, bson.M{
		"policeNumber": models.NormalizePoliceNumber(plate),
		"isClosed":     bson.M{"$ne": true},
	})
}

func (c *MongoJobCollection) findOneByPlate(ctx context.Context, filter bson.M) (*models.Job, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	var job models.Job
	if err := c.Collection.FindOne(ctx, filter, opts).Decode(&job); err != nil {
		return nil, notFound(err)
	}
	return &job, nil
}

// ApplyPatch writes every operator of the patch in one atomic update.
func (c *MongoJobCollection) ApplyPatch(ctx context.Context, id string, patch *models.Patch) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	if patch == nil || patch.IsEmpty() {
		return nil
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := c.Collection.UpdateOne(ctx, patch.Filter(bson.M{"_id": oid}), patch.Document())
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return missOrStale(ctx, c.Collection, oid, patch)
	}
	return nil
}
