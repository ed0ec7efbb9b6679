package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/db"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/events"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/inventory"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/workflow"
)

func material(name string, stok, unitCost float64) *models.InventoryItem {
	return &models.InventoryItem{
		ID:         primitive.NewObjectID(),
		Tipe:       models.ItemBahan,
		NamaBahan:  name,
		KodeBahan:  "MAT-" + name,
		Satuan:     models.UnitGram,
		Stok:       stok,
		HargaModal: unitCost,
	}
}

func TestJobService_AssignMaterials(t *testing.T) {
	ctx := context.Background()

	t.Run("charges merged lines in one transaction", func(t *testing.T) {
		f := newFixture()
		job := storedJob()
		job.GrossProfit = 500000
		primer := material("primer", 1000, 50)
		thinner := material("thinner", 500, 20)
		f.jobs.On("FindJobByID", mock.Anything, job.ID.Hex()).Return(job, nil)
		f.items.On("FindItemByID", mock.Anything, primer.ID.Hex()).Return(primer, nil)
		f.items.On("FindItemByID", mock.Anything, thinner.ID.Hex()).Return(thinner, nil)
		f.items.On("DecrementStock", mock.Anything, primer.ID.Hex(), 300.0).Return(nil).Once()
		f.items.On("DecrementStock", mock.Anything, thinner.ID.Hex(), 100.0).Return(nil).Once()

		var written *models.Patch
		f.jobs.On("ApplyPatch", mock.Anything, job.ID.Hex(), mock.Anything).
			Run(func(args mock.Arguments) { written = args.Get(2).(*models.Patch) }).
			Return(nil)

		res, err := f.service.AssignMaterials(ctx, partman, job.ID.Hex(), []inventory.MaterialLine{
			{ItemID: primer.ID.Hex(), Qty: 200},
			{ItemID: thinner.ID.Hex(), Qty: 100},
			{ItemID: primer.ID.Hex(), Qty: 100},
		})
		require.NoError(t, err)
		assert.Equal(t, 17000.0, res.Total)
		assert.Equal(t, 17000.0, res.Job.CostData.HargaModalBahan)
		assert.Equal(t, 483000.0, res.Job.GrossProfit)

		require.NotNil(t, written)
		assert.Equal(t, 17000.0, written.Inc["costData.hargaModalBahan"])
		assert.Equal(t, -17000.0, written.Inc["grossProfit"])
		assert.Contains(t, written.Set, "lastUpdatedBy")
		f.items.AssertExpectations(t)
		assert.Contains(t, f.events.kinds(), events.InventoryUpdated)
		assert.Contains(t, f.events.kinds(), events.JobUpdated)
	})

	t.Run("not enough stock aborts before any write", func(t *testing.T) {
		f := newFixture()
		job := storedJob()
		primer := material("primer", 100, 50)
		f.jobs.On("FindJobByID", mock.Anything, job.ID.Hex()).Return(job, nil)
		f.items.On("FindItemByID", mock.Anything, primer.ID.Hex()).Return(primer, nil)

		_, err := f.service.AssignMaterials(ctx, partman, job.ID.Hex(), []inventory.MaterialLine{
			{ItemID: primer.ID.Hex(), Qty: 150},
		})
		assert.Equal(t, errs.KindConflict, errs.KindOf(err))
		f.items.AssertNotCalled(t, "DecrementStock", mock.Anything, mock.Anything, mock.Anything)
		f.jobs.AssertNotCalled(t, "ApplyPatch", mock.Anything, mock.Anything, mock.Anything)
		assert.Empty(t, f.events.kinds())
	})

	t.Run("stock taken concurrently is a conflict", func(t *testing.T) {
		f := newFixture()
		job := storedJob()
		primer := material("primer", 100, 50)
		f.jobs.On("FindJobByID", mock.Anything, job.ID.Hex()).Return(job, nil)
		f.items.On("FindItemByID", mock.Anything, primer.ID.Hex()).Return(primer, nil)
		f.items.On("DecrementStock", mock.Anything, primer.ID.Hex(), 80.0).Return(db.ErrInsufficientStock)

		_, err := f.service.AssignMaterials(ctx, partman, job.ID.Hex(), []inventory.MaterialLine{
			{ItemID: primer.ID.Hex(), Qty: 80},
		})
		assert.Equal(t, errs.KindConflict, errs.KindOf(err))
		f.jobs.AssertNotCalled(t, "ApplyPatch", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("role without permission", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.AssignMaterials(ctx, crc, "any", []inventory.MaterialLine{{ItemID: "x", Qty: 1}})
		assert.Equal(t, errs.KindForbidden, errs.KindOf(err))
	})

	t.Run("stock out by plate resolves the open job", func(t *testing.T) {
		f := newFixture()
		job := storedJob()
		primer := material("primer", 100, 50)
		f.jobs.On("FindOpenByPoliceNumber", mock.Anything, "B1234XYZ").Return(job, nil)
		f.jobs.On("FindJobByID", mock.Anything, job.ID.Hex()).Return(job, nil)
		f.items.On("FindItemByID", mock.Anything, primer.ID.Hex()).Return(primer, nil)
		f.items.On("DecrementStock", mock.Anything, primer.ID.Hex(), 10.0).Return(nil)
		f.jobs.On("ApplyPatch", mock.Anything, job.ID.Hex(), mock.Anything).Return(nil)

		res, err := f.service.StockOutToJob(ctx, partman, primer.ID.Hex(), 10, "b 1234 xyz")
		require.NoError(t, err)
		assert.Equal(t, 500.0, res.Total)
	})

	t.Run("stock out without an open job", func(t *testing.T) {
		f := newFixture()
		f.jobs.On("FindOpenByPoliceNumber", mock.Anything, "B1").Return(nil, db.ErrNotFound)
		_, err := f.service.StockOutToJob(ctx, partman, "item", 10, "B1")
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	})
}

func TestJobService_PartsFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	job := storedJob()
	job.EstimateData = &models.EstimateData{PartItems: []models.PartItem{
		{Name: "Lampu", Number: "KD-001", Qty: 1, Price: 50000},
	}}
	job.PartOrderStatus = models.PartOrderAwaiting
	job.StatusOrderPart = models.PartDisplayAwaiting
	job.GrossProfit = 200000
	f.jobs.On("FindJobByID", mock.Anything, job.ID.Hex()).Return(job, nil)
	f.jobs.On("ApplyPatch", mock.Anything, job.ID.Hex(), mock.Anything).Return(nil)

	confirmed, err := f.service.ConfirmParts(ctx, partman, job.ID.Hex(), []workflow.PartConfirmation{{Index: 0, HargaBeliAktual: 75000}})
	require.NoError(t, err)
	assert.Equal(t, models.PartOrderOrdered, confirmed.PartOrderStatus)
	assert.Equal(t, 75000.0, confirmed.CostData.HargaBeliPart)

	_, err = f.service.MoveParts(ctx, sa, job.ID.Hex(), workflow.PartArrivedAll)
	assert.Equal(t, errs.KindForbidden, errs.KindOf(err))

	cancelled, err := f.service.CancelParts(ctx, partman, job.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.PartOrderCancelled, cancelled.PartOrderStatus)
}
