package db

import (
	"context"
	"io"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// JobCollection defines the job document operations.
type JobCollection interface {
	InsertJob(ctx context.Context, job *models.Job) error
	FindJobByID(ctx context.Context, id string) (*models.Job, error)
	FindJobs(ctx context.Context, filter JobFilter) ([]models.Job, error)
	FindLatestByPoliceNumber(ctx context.Context, plate string) (*models.Job, error)
	FindOpenByPoliceNumber(ctx context.Context, plate string) (*models.Job, error)
	ApplyPatch(ctx context.Context, id string, patch *models.Patch) error
}

// InventoryCollection defines the parts and materials master operations.
type InventoryCollection interface {
	InsertItem(ctx context.Context, item *models.InventoryItem) error
	FindItemByID(ctx context.Context, id string) (*models.InventoryItem, error)
	FindItems(ctx context.Context, filter ItemFilter) ([]models.InventoryItem, error)
	FindCodes(ctx context.Context, codes []string) (map[string]bool, error)
	ApplyPatch(ctx context.Context, id string, patch *models.Patch) error
	DecrementStock(ctx context.Context, id string, qty float64) error
	UpsertPartStubs(ctx context.Context, stubs []models.InventoryItem) (int64, error)
}

// SupplierCollection defines supplier master operations.
type SupplierCollection interface {
	InsertSupplier(ctx context.Context, s *models.Supplier) error
	FindSuppliers(ctx context.Context) ([]models.Supplier, error)
	UpdateSupplier(ctx context.Context, id string, s models.Supplier) error
	DeleteSupplier(ctx context.Context, id string) error
}

// SettingsStore loads and saves the single settings document.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	SaveSettings(ctx context.Context, s models.Settings) error
}

// Counter hands out monotonically increasing sequence numbers per key.
type Counter interface {
	Next(ctx context.Context, key string) (int, error)
}

// Transactor runs a callback atomically across documents.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// PhotoBucket stores photo blobs.
type PhotoBucket interface {
	Upload(ctx context.Context, filename string, data []byte, meta PhotoMeta) (string, error)
	Download(ctx context.Context, fileID string, w io.Writer) (int64, error)
	Delete(ctx context.Context, fileID string) error
}
