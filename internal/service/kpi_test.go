package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/db"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

func TestKPIService(t *testing.T) {
	ctx := context.Background()
	jobs := new(MockJobCollection)
	items := new(MockInventoryCollection)
	svc := NewKPIService(jobs, items, staticSettings{cfg: testSettings()}, time.UTC)
	svc.now = func() time.Time { return testNow }

	closed := *storedJob()
	closed.IsClosed = true
	closedAt := testNow.Add(-24 * time.Hour)
	closed.ClosedAt = &closedAt
	closed.TanggalSelesai = "2025-03-13"
	closed.HargaJasa = 1000000
	closed.CostData.HargaBeliPart = 250000
	jobs.On("FindJobs", mock.Anything, db.JobFilter{Status: db.JobsAll}).Return([]models.Job{closed, *storedJob()}, nil)

	t.Run("gross profit", func(t *testing.T) {
		report, err := svc.GrossProfit(ctx, 2025, time.March, 2)
		require.NoError(t, err)
		assert.Equal(t, 750000.0, report.Monthly.Achieved.GrossProfit)
		require.NotNil(t, report.Weekly)
	})

	t.Run("bad month", func(t *testing.T) {
		_, err := svc.GrossProfit(ctx, 2025, 13, 0)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	})

	t.Run("finance", func(t *testing.T) {
		sum, err := svc.Finance(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, sum.OpenJobs)
		assert.Equal(t, 1, sum.ClosedJobs)
	})

	t.Run("crc range", func(t *testing.T) {
		_, _, err := svc.CRC(ctx, testNow, testNow.Add(-time.Hour))
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	})

	t.Run("low stock", func(t *testing.T) {
		items.On("FindItems", mock.Anything, db.ItemFilter{}).Return([]models.InventoryItem{
			{NamaBahan: "primer", Stok: 1, MinStok: 5},
			{NamaBahan: "thinner", Stok: 10, MinStok: 5},
		}, nil)
		low, err := svc.LowStock(ctx)
		require.NoError(t, err)
		require.Len(t, low, 1)
		assert.Equal(t, "primer", low[0].NamaBahan)
	})
}
