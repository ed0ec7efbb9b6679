package db

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PhotoMeta is stored alongside each blob.
type PhotoMeta struct {
	JobID       string `bson:"jobId"`
	Category    string `bson:"category"`
	ContentType string `bson:"contentType"`
	UploadedBy  string `bson:"uploadedBy"`
}

// GridFSPhotoBucket implements PhotoBucket on a GridFS bucket.
type GridFSPhotoBucket struct {
	Bucket *gridfs.Bucket
}

// NewGridFSPhotoBucket opens the job-photos bucket.
func NewGridFSPhotoBucket(database *mongo.Database) (*GridFSPhotoBucket, error) {
	bucket, err := gridfs.NewBucket(database, options.GridFSBucket().SetName(PhotoBucketName))
	if err != nil {
		return nil, err
	}
	return &GridFSPhotoBucket{Bucket: bucket}, nil
}

func (b *GridFSPhotoBucket) deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Time{}
}

// Upload stores data and returns the new file id.
func (b *GridFSPhotoBucket) Upload(ctx context.Context, filename string, data []byte, meta PhotoMeta) (string, error) {
	if b.Bucket == nil {
		return "", ErrNilCollection
	}
	if err := b.Bucket.SetWriteDeadline(b.deadline(ctx)); err != nil {
		return "", err
	}
	opts := options.GridFSUpload().SetMetadata(bson.M{
		"jobId":       meta.JobID,
		"category":    meta.Category,
		"contentType": meta.ContentType,
		"uploadedBy":  meta.UploadedBy,
	})
	id, err := b.Bucket.UploadFromStream(filename, bytes.NewReader(data), opts)
	if err != nil {
		return "", err
	}
	return id.Hex(), nil
}

// Download writes the blob to w.
func (b *GridFSPhotoBucket) Download(ctx context.Context, fileID string, w io.Writer) (int64, error) {
	if b.Bucket == nil {
		return 0, ErrNilCollection
	}
	oid, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return 0, ErrNotFound
	}
	if err := b.Bucket.SetReadDeadline(b.deadline(ctx)); err != nil {
		return 0, err
	}
	n, err := b.Bucket.DownloadToStream(oid, w)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return 0, ErrNotFound
	}
	return n, err
}

// Delete removes the blob and its chunks.
func (b *GridFSPhotoBucket) Delete(ctx context.Context, fileID string) error {
	if b.Bucket == nil {
		return ErrNilCollection
	}
	oid, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return ErrNotFound
	}
	if err := b.Bucket.SetWriteDeadline(b.deadline(ctx)); err != nil {
		return err
	}
	if err := b.Bucket.Delete(oid); err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
