package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/db"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/events"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// MockJobCollection is a mock implementation of db.JobCollection
type MockJobCollection struct {
	mock.Mock
}

func (m *MockJobCollection) InsertJob(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobCollection) FindJobByID(ctx context.Context, id string) (*models.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockJobCollection) FindJobs(ctx context.Context, filter db.JobFilter) ([]models.Job, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Job), args.Error(1)
}

func (m *MockJobCollection) FindLatestByPoliceNumber(ctx context.Context, plate string) (*models.Job, error) {
	args := m.Called(ctx, plate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockJobCollection) FindOpenByPoliceNumber(ctx context.Context, plate string) (*models.Job, error) {
	args := m.Called(ctx, plate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *MockJobCollection) ApplyPatch(ctx context.Context, id string, patch *models.Patch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}

// MockInventoryCollection is a mock implementation of db.InventoryCollection
type MockInventoryCollection struct {
	mock.Mock
}

func (m *MockInventoryCollection) InsertItem(ctx context.Context, item *models.InventoryItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockInventoryCollection) FindItemByID(ctx context.Context, id string) (*models.InventoryItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryItem), args.Error(1)
}

func (m *MockInventoryCollection) FindItems(ctx context.Context, filter db.ItemFilter) ([]models.InventoryItem, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InventoryItem), args.Error(1)
}

func (m *MockInventoryCollection) FindCodes(ctx context.Context, codes []string) (map[string]bool, error) {
	args := m.Called(ctx, codes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]bool), args.Error(1)
}

func (m *MockInventoryCollection) ApplyPatch(ctx context.Context, id string, patch *models.Patch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}

func (m *MockInventoryCollection) DecrementStock(ctx context.Context, id string, qty float64) error {
	args := m.Called(ctx, id, qty)
	return args.Error(0)
}

func (m *MockInventoryCollection) UpsertPartStubs(ctx context.Context, stubs []models.InventoryItem) (int64, error) {
	args := m.Called(ctx, stubs)
	return args.Get(0).(int64), args.Error(1)
}

// MockSettingsStore is a mock implementation of db.SettingsStore
type MockSettingsStore struct {
	mock.Mock
}

func (m *MockSettingsStore) GetSettings(ctx context.Context) (*models.Settings, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Settings), args.Error(1)
}

func (m *MockSettingsStore) SaveSettings(ctx context.Context, s models.Settings) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

// memCounter mimics the atomic $inc upsert of the counters collection.
type memCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newMemCounter() *memCounter {
	return &memCounter{counts: map[string]int{}}
}

func (c *memCounter) Next(_ context.Context, key string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return c.counts[key], nil
}

// inlineTx runs the callback directly.
type inlineTx struct{}

func (inlineTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memPhotos keeps blobs in memory.
type memPhotos struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	seq     int
	deleted []string
}

func newMemPhotos() *memPhotos {
	return &memPhotos{blobs: map[string][]byte{}}
}

func (p *memPhotos) Upload(_ context.Context, _ string, data []byte, _ db.PhotoMeta) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("file-%d", p.seq)
	p.blobs[id] = append([]byte(nil), data...)
	return id, nil
}

func (p *memPhotos) Download(_ context.Context, id string, w io.Writer) (int64, error) {
	p.mu.Lock()
	data, ok := p.blobs[id]
	p.mu.Unlock()
	if !ok {
		return 0, db.ErrNotFound
	}
	return io.Copy(w, bytes.NewReader(data))
}

func (p *memPhotos) Delete(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.blobs[id]; !ok {
		return db.ErrNotFound
	}
	delete(p.blobs, id)
	p.deleted = append(p.deleted, id)
	return nil
}

// staticSettings always returns the same snapshot.
type staticSettings struct{ cfg models.Settings }

func (s staticSettings) Current(context.Context) (models.Settings, error) {
	return s.cfg.Clone(), nil
}

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

var (
	testNow = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

	manager = models.Actor{UserID: "u-mgr", Email: "manager@bengkel.test", Role: models.RoleManager}
	sa      = models.Actor{UserID: "u-sa", Email: "sa@bengkel.test", Role: models.RoleServiceAdvisor}
	partman = models.Actor{UserID: "u-pm", Email: "partman@bengkel.test", Role: models.RolePartman}
	finance = models.Actor{UserID: "u-fin", Email: "finance@bengkel.test", Role: models.RoleFinance}
	crc     = models.Actor{UserID: "u-crc", Email: "crc@bengkel.test", Role: models.RoleCRC}
)

func testSettings() models.Settings {
	return models.Settings{
		PpnPercentage: 11,
		StatusPekerjaanOptions: []string{
			"Belum Mulai Perbaikan", "Las Ketok", "Dempul", "Cat", "Poles", "Quality Control", "Selesai",
		},
		StatusKendaraanOptions: []string{
			"Booking Masuk", "Work In Progress", "Rawat Jalan", "Sudah Di ambil Pemilik",
		},
		InsuranceOptions: []models.InsuranceOption{
			{Name: "Umum / Pribadi", Jasa: 10, Part: 5},
			{Name: "Garda Oto", Jasa: 10, Part: 5},
		},
		WhatsAppTemplates: []models.MessageTemplate{
			{Title: "Siap Diambil", Message: "Halo {nama_pelanggan}, {model_mobil} {no_polisi} siap diambil."},
		},
	}
}

type fixture struct {
	jobs    *MockJobCollection
	items   *MockInventoryCollection
	counter *memCounter
	photos  *memPhotos
	events  *recorder
	service *JobService
}

func newFixture() *fixture {
	f := &fixture{
		jobs:    new(MockJobCollection),
		items:   new(MockInventoryCollection),
		counter: newMemCounter(),
		photos:  newMemPhotos(),
		events:  &recorder{},
	}
	f.service = NewJobService(JobDeps{
		Jobs:     f.jobs,
		Items:    f.items,
		Counter:  f.counter,
		Tx:       inlineTx{},
		Photos:   f.photos,
		Settings: staticSettings{cfg: testSettings()},
		Events:   f.events,
		Location: time.UTC,
	})
	f.service.now = func() time.Time { return testNow }
	return f
}

func dbMeta() db.PhotoMeta {
	return db.PhotoMeta{JobID: "job", Category: "after", UploadedBy: "test"}
}
