package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/db"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/events"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/workflow"
)

func storedJob() *models.Job {
	return &models.Job{
		ID:              primitive.NewObjectID(),
		PoliceNumber:    "B1234XYZ",
		CustomerName:    "Budi",
		CarModel:        "Mazda CX-5",
		NamaAsuransi:    "Garda Oto",
		JumlahPanel:     4,
		StatusKendaraan: models.VehicleBookingMasuk,
		StatusPekerjaan: models.StageNotStarted,
		PosisiKendaraan: models.PositionAtShop,
		StatusOrderPart: models.PartDisplayNone,
		TanggalMasuk:    "2025-03-10",
	}
}

func TestJobService_CreateJob(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts and publishes", func(t *testing.T) {
		f := newFixture()
		f.jobs.On("InsertJob", mock.Anything, mock.AnythingOfType("*models.Job")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*models.Job).ID = primitive.NewObjectID()
			}).Return(nil)

		job, err := f.service.CreateJob(ctx, sa, workflow.JobInput{
			PoliceNumber: "b 1234 xyz",
			CustomerName: "Budi",
			CarModel:     "Mazda 2",
			NamaAsuransi: "Garda Oto",
		})
		require.NoError(t, err)
		assert.Equal(t, "B1234XYZ", job.PoliceNumber)
		assert.Equal(t, models.StageNotStarted, job.StatusPekerjaan)
		assert.Equal(t, []events.Kind{events.JobCreated}, f.events.kinds())
		f.jobs.AssertExpectations(t)
	})

	t.Run("invalid input writes nothing", func(t *testing.T) {
		f := newFixture()
		_, err := f.service.CreateJob(ctx, sa, workflow.JobInput{PoliceNumber: "B1"})
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
		f.jobs.AssertNotCalled(t, "InsertJob", mock.Anything, mock.Anything)
		assert.Empty(t, f.events.kinds())
	})

	t.Run("storage failure is internal", func(t *testing.T) {
		f := newFixture()
		f.jobs.On("InsertJob", mock.Anything, mock.Anything).Return(assert.AnError)
		_, err := f.service.CreateJob(ctx, sa, workflow.JobInput{
			PoliceNumber: "B1", CustomerName: "A", CarModel: "Mazda 3", NamaAsuransi: "Garda Oto",
		})
		assert.Equal(t, errs.KindInternal, errs.KindOf(err))
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestJobService_Lookup(t *testing.T) {
	ctx := context.Background()

	t.Run("no match is not an error", func(t *testing.T) {
		f := newFixture()
		f.jobs.On("FindLatestByPoliceNumber", mock.Anything, "B999ZZ").Return(nil, db.ErrNotFound)
		res, err := f.service.Lookup(ctx, "b 999 zz")
		require.NoError(t, err)
		assert.False(t, res.Found)
		assert.Equal(t, "B999ZZ", res.PoliceNumber)
	})

	t.Run("prefills from last visit", func(t *testing.T) {
		f := newFixture()
		last := storedJob()
		f.jobs.On("FindLatestByPoliceNumber", mock.Anything, "B1234XYZ").Return(last, nil)
		res, err := f.service.Lookup(ctx, "B1234XYZ")
		require.NoError(t, err)
		assert.True(t, res.Found)
		assert.Equal(t, "Budi", res.CustomerName)
		assert.Equal(t, last.ID.Hex(), res.OpenJobID)
	})
}

func TestJobService_Transition(t *testing.T) {
	ctx := context.Background()

	t.Run("missing dates rejected without a write", func(t *testing.T) {
		f := newFixture()
		job := storedJob()
		f.jobs.On("FindJobByID", mock.Anything, job.ID.Hex()).Return(job, nil)

		_, err := f.service.Transition(ctx, sa, job.ID.Hex(), "Dempul")
		assert.Equal(t, errs.KindPrecondition, errs.KindOf(err))
		f.jobs.AssertNotCalled(t, "ApplyPatch", mock.Anything, mock.Anything, mock.Anything)
		assert.Empty(t, f.events.kinds())
	})

	t.Run("one patch with stamp fields", func(t *testing.T) {
		f := newFixture()
		job := storedJob()
		job.TanggalMulaiPerbaikan = "2025-03-11"
		job.TanggalEstimasiSelesai = "2025-03-20"
		f.jobs.On("FindJobByID", mock.Anything, job.ID.Hex()).Return(job, nil)

		var written *models.Patch
		f.jobs.On("ApplyPatch", mock.Anything, job.ID.Hex(), mock.Anything).
			Run(func(args mock.Arguments) { written = args.Get(2).(*models.Patch) }).
			Return(nil).Once()

		updated, err := f.service.Transition(ctx, sa, job.ID.Hex(), "Dempul")
		require.NoError(t, err)
		assert.Equal(t, "Dempul", updated.StatusPekerjaan)
		assert.Equal(t, models.VehicleWorkInProgress, updated.StatusKendaraan)
		assert.Len(t, updated.History, 1)

		require.NotNil(t, written)
		assert.Equal(t, testNow, written.Set["updatedAt"])
		assert.Equal(t, sa.Email, written.Set["lastUpdatedBy"])
		assert.Equal(t, "Dempul", written.Set["statusPekerjaan"])
		assert.Len(t, written.Push["history"], 1)
		assert.Equal(t, []events.Kind{events.JobUpdated}, f.events.kinds())
		f.jobs.AssertExpectations(t)
	})

	t.Run("unknown job", func(t *testing.T) {
		f := newFixture()
		f.jobs.On("FindJobByID", mock.Anything, "nope").Return(nil, db.ErrNotFound)
		_, err := f.service.Transition(ctx, sa, "nope", "Dempul")
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	})

	t.Run("write failure publishes nothing", func(t *testing.T) {
		f := newFixture()
		job := storedJob()
		job.TanggalMulaiPerbaikan = "2025-03-11"
		job.TanggalEstimasiSelesai = "2025-03-20"
		f.jobs.On("FindJobByID", mock.Anything, job.ID.Hex()).Return(job, nil)
		f.jobs.On("ApplyPatch", mock.Anything, job.ID.Hex(), mock.Anything).Return(assert.AnError)

		_, err := f.service.Transition(ctx, sa, job.ID.Hex(), "Dempul")
		assert.Equal(t, errs.KindInternal, errs.KindOf(err))
		assert.Equal(t, "something went wrong, please try again", errs.MessageOf(err))
		assert.Empty(t, f.events.kinds())
	})
}

func estimateInput() workflow.EstimateInput {
	return workflow.EstimateInput{
		JasaItems: []models.JasaItem{{Name: "Panel pintu", Price: 100000}},
		PartItems: []models.PartItem{
			{Name: "Lampu", Number: "kd-001", Qty: 1, Price: 50000},
			{Name: "Bumper", Number: "KD-002", Qty: 1, Price: 80000},
		},
	}
}

func TestJobService_SaveEstimate(t *testing.T) {
	ctx := context.Background()

	t.Run("finalize numbers the WO and stubs unknown parts", func(t *testing.T) {
		f := newFixture()
		job := storedJob()
		f.jobs.On("FindJobByID", mock.Anything, job.ID.Hex()).Return(job, nil)
		f.jobs.On("ApplyPatch", mock.Anything, job.ID.Hex(), mock.Anything).Return(nil)
		f.items.On("FindCodes", mock.Anything, []string{"KD-001", "KD-002"}).
			Return(map[string]bool{"KD-001": true}, nil)
		f.items.On("UpsertPartStubs", mock.Anything, mock.MatchedBy(func(stubs []models.InventoryItem) bool {
			return len(stubs) == 1 && stubs[0].KodeBahan == "KD-002" && stubs[0].Stok == 0 && stubs[0].MinStok == 1
		})).Return(int64(1), nil)

		updated, err := f.service.SaveEstimate(ctx, sa, job.ID.Hex(), estimateInput(), true)
		require.NoError(t, err)
		assert.Equal(t, "BW25030001", updated.WONumber)
		assert.True(t, updated.IsWoConfirmed)
		assert.Equal(t, models.PartDisplayAwaiting, updated.StatusOrderPart)
		assert.Contains(t, f.events.kinds(), events.InventoryUpdated)
		f.items.AssertExpectations(t)
	})

	t.Run("draft does not allocate", func(t *testing.T) {
		f := newFixture()
		job := storedJob()
		f.jobs.On("FindJobByID", mock.Anything, job.ID.Hex()).Return(job, nil)
		f.jobs.On("ApplyPatch", mock.Anything, job.ID.Hex(), mock.Anything).Return(nil)

		updated, err := f.service.SaveEstimate(ctx, sa, job.ID.Hex(), estimateInput(), false)
		require.NoError(t, err)
		assert.Empty(t, updated.WONumber)
		assert.Empty(t, f.counter.counts)
		f.items.AssertNotCalled(t, "FindCodes", mock.Anything, mock.Anything)
	})

	t.Run("existing number is kept", func(t *testing.T) {
		f := newFixture()
		job := storedJob()
		job.WONumber = "BW25020042"
		f.jobs.On("FindJobByID", mock.Anything, job.ID.Hex()).Return(job, nil)
		f.jobs.On("ApplyPatch", mock.Anything, job.ID.Hex(), mock.Anything).Return(nil)
		f.items.On("FindCodes", mock.Anything, mock.Anything).
			Return(map[string]bool{"KD-001": true, "KD-002": true}, nil)

		updated, err := f.service.SaveEstimate(ctx, sa, job.ID.Hex(), estimateInput(), true)
		require.NoError(t, err)
		assert.Equal(t, "BW25020042", updated.WONumber)
		assert.Empty(t, f.counter.counts)
		f.items.AssertNotCalled(t, "UpsertPartStubs", mock.Anything, mock.Anything)
	})

	t.Run("closed job rejected before allocation", func(t *testing.T) {
		f := newFixture()
		job := storedJob()
		job.IsClosed = true
		f.jobs.On("FindJobByID", mock.Anything, job.ID.Hex()).Return(job, nil)

		_, err := f.service.SaveEstimate(ctx, sa, job.ID.Hex(), estimateInput(), true)
		assert.Equal(t, errs.KindPrecondition, errs.KindOf(err))
		assert.Empty(t, f.counter.counts)
	})
}

func TestJobService_ConcurrentFinalizeGetsDistinctNumbers(t *testing.T) {
	f := newFixture()
	const n = 25
	ids := make([]string, n)
	for i := range ids {
		job := storedJob()
		ids[i] = job.ID.Hex()
		f.jobs.On("FindJobByID", mock.Anything, ids[i]).Return(job, nil)
	}
	f.jobs.On("ApplyPatch", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.items.On("FindCodes", mock.Anything, mock.Anything).
		Return(map[string]bool{"KD-001": true, "KD-002": true}, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = map[string]bool{}
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			job, err := f.service.SaveEstimate(context.Background(), sa, id, estimateInput(), true)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers[job.WONumber] = true
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	require.Len(t, numbers, n)
	for i := 1; i <= n; i++ {
		assert.True(t, numbers[fmt.Sprintf("BW2503%04d", i)], "missing sequence %d", i)
	}
}

func TestJobService_CloseCosts(t *testing.T) {
	ctx := context.Background()

	finished := func() *models.Job {
		job := storedJob()
		job.NamaAsuransi = models.InsurerSelfPay
		job.StatusPekerjaan = models.StageDone
		job.HargaJasa = 900000
		job.HargaPart = 100000
		job.CostData.HargaBeliPart = 75000
		job.GrossProfit = 850000
		return job
	}

	t.Run("closes and logs drift", func(t *testing.T) {
		hook := test.NewGlobal()
		defer hook.Reset()

		f := newFixture()
		job := finished()
		f.jobs.On("FindJobByID", mock.Anything, job.ID.Hex()).Return(job, nil)
		f.jobs.On("ApplyPatch", mock.Anything, job.ID.Hex(), mock.Anything).Return(nil)

		updated, err := f.service.CloseCosts(ctx, finance, job.ID.Hex(), CloseRequest{
			Costs: workflow.CostInput{HargaModalBahan: 50000, HargaBeliPart: 75000},
			Close: true,
		})
		require.NoError(t, err)
		assert.True(t, updated.IsClosed)
		assert.Equal(t, 875000.0, updated.GrossProfit)

		var drift *logrus.Entry
		for _, e := range hook.AllEntries() {
			if e.Level == logrus.WarnLevel && e.Data["drift_amount"] != nil {
				drift = e
			}
		}
		require.NotNil(t, drift)
		assert.Equal(t, -75000.0, drift.Data["drift_amount"])
	})

	t.Run("gate closed writes nothing", func(t *testing.T) {
		f := newFixture()
		job := finished()
		job.StatusPekerjaan = "Cat"
		f.jobs.On("FindJobByID", mock.Anything, job.ID.Hex()).Return(job, nil)

		_, err := f.service.CloseCosts(ctx, finance, job.ID.Hex(), CloseRequest{Close: true})
		assert.Equal(t, errs.KindPrecondition, errs.KindOf(err))
		f.jobs.AssertNotCalled(t, "ApplyPatch", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("reopen is manager only", func(t *testing.T) {
		f := newFixture()
		job := finished()
		job.IsClosed = true
		f.jobs.On("FindJobByID", mock.Anything, job.ID.Hex()).Return(job, nil)
		f.jobs.On("ApplyPatch", mock.Anything, job.ID.Hex(), mock.Anything).Return(nil)

		_, err := f.service.Reopen(ctx, finance, job.ID.Hex())
		assert.Equal(t, errs.KindForbidden, errs.KindOf(err))

		reopened, err := f.service.Reopen(ctx, manager, job.ID.Hex())
		require.NoError(t, err)
		assert.False(t, reopened.IsClosed)
	})
}

func TestJobService_AddFollowUpRendersTemplate(t *testing.T) {
	f := newFixture()
	job := storedJob()
	f.jobs.On("FindJobByID", mock.Anything, job.ID.Hex()).Return(job, nil)
	f.jobs.On("ApplyPatch", mock.Anything, job.ID.Hex(), mock.Anything).Return(nil)

	updated, err := f.service.AddFollowUp(context.Background(), crc, job.ID.Hex(), workflow.FollowUpInput{
		Type:     workflow.FollowUpReadyToCollect,
		Template: "Siap Diambil",
	})
	require.NoError(t, err)
	require.Len(t, updated.FollowUpHistory, 1)
	assert.Equal(t, "Halo Budi, Mazda CX-5 B1234XYZ siap diambil.", updated.FollowUpHistory[0].Message)

	_, err = f.service.AddFollowUp(context.Background(), crc, job.ID.Hex(), workflow.FollowUpInput{
		Type:     workflow.FollowUpReadyToCollect,
		Template: "Tidak Ada",
	})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}
