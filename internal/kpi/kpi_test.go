package kpi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

var testNow = time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)

func kpiSettings() models.Settings {
	return models.Settings{
		PpnPercentage:            11,
		MonthlyTarget:            100000000,
		WeeklyTarget:             25000000,
		AfterServiceFollowUpDays: 3,
		StatusPekerjaanOptions:   []string{models.StageNotStarted, "Las Ketok", "Cat", models.StageDone},
	}
}

func allDocs() models.FinanceDocs {
	return models.FinanceDocs{
		HasSpkAsuransi: true, HasWoEstimasi: true, HasApprovalBiaya: true,
		HasFotoPeneng: true, HasFotoEpoxy: true, HasGesekRangka: true,
		HasFotoSelesai: true, HasInvoice: true, HasFakturPajak: true,
	}
}

func job(plate string, mutate func(*models.Job)) models.Job {
	j := models.Job{
		ID:              primitive.NewObjectID(),
		PoliceNumber:    plate,
		CustomerName:    "Pelanggan " + plate,
		CarModel:        "Mazda 2",
		NamaAsuransi:    "Garda Oto",
		JumlahPanel:     2,
		StatusKendaraan: models.VehicleWorkInProgress,
		StatusPekerjaan: "Las Ketok",
		PosisiKendaraan: models.PositionAtShop,
		StatusOrderPart: models.PartDisplayNone,
		CreatedAt:       time.Date(2025, time.March, 3, 8, 0, 0, 0, time.UTC),
	}
	if mutate != nil {
		mutate(&j)
	}
	return j
}

func closedAt(day int) *time.Time {
	t := time.Date(2025, time.March, day, 15, 0, 0, 0, time.UTC)
	return &t
}

func TestGrossProfitStatsIgnoresStoredGP(t *testing.T) {
	jobs := []models.Job{
		job("A", func(j *models.Job) {
			j.HargaJasa, j.HargaPart = 2000000, 1000000
			j.CostData = models.CostData{HargaModalBahan: 300000, HargaBeliPart: 700000}
			j.GrossProfit = 42
		}),
		job("B", func(j *models.Job) {
			j.HargaJasa = 500000
			j.CostData.JasaExternal = 100000
		}),
	}
	s := GrossProfitStats(jobs)
	assert.Equal(t, 2, s.Unit)
	assert.Equal(t, 4, s.Panel)
	assert.Equal(t, 2500000.0, s.RevJasa)
	assert.Equal(t, 1000000.0, s.RevPart)
	assert.Equal(t, 2400000.0, s.GrossProfit)
}

func TestBuildGrossProfitReport(t *testing.T) {
	jobs := []models.Job{
		job("CLOSED1", func(j *models.Job) {
			j.IsClosed, j.ClosedAt = true, closedAt(5)
			j.HargaJasa, j.HargaPart = 4000000, 2000000
			j.CostData = models.CostData{HargaModalBahan: 1000000, HargaBeliPart: 1500000}
		}),
		job("CLOSED2", func(j *models.Job) {
			j.IsClosed, j.ClosedAt = true, closedAt(12)
			j.NamaAsuransi = "Lainnya"
			j.HargaJasa = 1000000
		}),
		job("FEB", func(j *models.Job) {
			j.IsClosed = true
			t := time.Date(2025, time.February, 27, 10, 0, 0, 0, time.UTC)
			j.ClosedAt = &t
			j.CreatedAt = t
			j.HargaJasa = 9000000
		}),
		job("OPEN", func(j *models.Job) {
			j.CreatedAt = time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC)
			j.HargaJasa = 3000000
		}),
	}

	r := BuildGrossProfitReport(jobs, kpiSettings(), 2025, time.March, 2, time.UTC)

	m := r.Monthly
	assert.Equal(t, 2, m.Achieved.Unit)
	assert.Equal(t, 4500000.0, m.Achieved.GrossProfit)
	assert.Equal(t, 95500000.0, m.Gap)
	assert.InDelta(t, 4.5, m.Achievement, 1e-9)
	assert.Equal(t, 3, m.UnitEntry)
	assert.Equal(t, 26, m.WorkingDays)
	assert.Equal(t, 1, m.Forecast.Unit)
	assert.Equal(t, 1, m.Productivity.UnitInsured)
	assert.Equal(t, 1, m.Productivity.UnitSelfPay)
	assert.Equal(t, 1250000.0, m.Productivity.AvgJasaPanel)

	require.NotNil(t, r.Weekly)
	w := r.Weekly
	assert.Equal(t, 8, w.Period.Start.Day())
	assert.Equal(t, 1, w.Achieved.Unit)
	assert.Equal(t, 1000000.0, w.Achieved.GrossProfit)
	assert.Equal(t, 1, w.Forecast.Unit)
	assert.Equal(t, 1, w.UnitEntry)

	assert.Nil(t, BuildGrossProfitReport(jobs, kpiSettings(), 2025, time.March, 0, time.UTC).Weekly)
}

func TestBuildFinanceSummary(t *testing.T) {
	jobs := []models.Job{
		job("READY", func(j *models.Job) {
			j.StatusPekerjaan = models.StageDone
			j.FinanceDocs = allDocs()
			j.HargaJasa = 1000
		}),
		job("NODOCS", func(j *models.Job) {
			j.StatusPekerjaan = models.StageDone
			j.HargaJasa = 500
		}),
		job("SELFPAY", func(j *models.Job) {
			j.StatusPekerjaan = models.StageDone
			j.NamaAsuransi = models.InsurerSelfPay
		}),
		job("WIP", nil),
		job("CLOSED", func(j *models.Job) { j.IsClosed = true }),
	}
	s := BuildFinanceSummary(jobs)
	assert.Equal(t, 4, s.OpenJobs)
	assert.Equal(t, 1, s.ClosedJobs)
	assert.Equal(t, 1500.0, s.OpenRevenue)
	require.Len(t, s.DocsIncomplete, 1)
	assert.Equal(t, "NODOCS", s.DocsIncomplete[0].PoliceNumber)
	require.Len(t, s.ReadyToClose, 2)
	assert.Equal(t, "READY", s.ReadyToClose[0].PoliceNumber)
	assert.Equal(t, "SELFPAY", s.ReadyToClose[1].PoliceNumber)
}

func TestBuildProductionSummary(t *testing.T) {
	hist := func(status string, day int) models.HistoryEntry {
		return models.HistoryEntry{Status: status, Timestamp: time.Date(2025, time.March, day, 9, 0, 0, 0, time.UTC)}
	}
	jobs := []models.Job{
		job("ONTIME", func(j *models.Job) {
			j.StatusPekerjaan = models.StageDone
			j.TanggalMulaiPerbaikan = "2025-03-01"
			j.TanggalEstimasiSelesai = "2025-03-08"
			j.TanggalSelesai = "2025-03-06"
			j.History = []models.HistoryEntry{hist("Las Ketok", 1), hist("Cat", 3), hist(models.StageDone, 6)}
		}),
		job("LATE", func(j *models.Job) {
			j.StatusPekerjaan = models.StageDone
			j.IsRework = true
			j.TanggalMulaiPerbaikan = "2025-03-02"
			j.TanggalEstimasiSelesai = "2025-03-05"
			j.TanggalSelesai = "2025-03-10"
		}),
		job("OVERDUE", func(j *models.Job) {
			j.StatusPekerjaan = "Cat"
			j.TanggalMulaiPerbaikan = "2025-03-04"
			j.TanggalEstimasiSelesai = "2025-03-12"
			j.IsRework = true
		}),
		job("OLD", func(j *models.Job) {
			j.IsClosed = true
			j.StatusPekerjaan = models.StageDone
			j.TanggalMulaiPerbaikan = "2024-12-01"
			j.TanggalSelesai = "2024-12-05"
		}),
	}

	s := BuildProductionSummary(jobs, kpiSettings(), 30, testNow)

	require.Len(t, s.PerStage, 4)
	assert.Equal(t, StageCount{Stage: "Cat", Count: 1}, s.PerStage[2])
	assert.Equal(t, StageCount{Stage: models.StageDone, Count: 2}, s.PerStage[3])
	assert.Equal(t, 2, s.OpenRework)
	assert.Equal(t, 2, s.Finished)
	assert.Equal(t, 6.5, s.AvgCycleDays)
	assert.Equal(t, 50.0, s.OnTimeRate)
	assert.Equal(t, 50.0, s.ReworkRate)
	assert.Equal(t, 2.0, s.WIPAging[1].AvgDays)
	assert.Equal(t, 3.0, s.WIPAging[2].AvgDays)
	require.Len(t, s.Overdue, 1)
	assert.Equal(t, "OVERDUE", s.Overdue[0].PoliceNumber)
}

func TestBuildPartsBoard(t *testing.T) {
	withParts := &models.EstimateData{PartItems: []models.PartItem{{Name: "Bumper", Qty: 1}}}
	jobs := []models.Job{
		job("NEW", func(j *models.Job) { j.PartOrderStatus = models.PartOrderAwaiting }),
		job("ORD", func(j *models.Job) { j.PartOrderStatus = models.PartOrderOrdered }),
		job("IND", func(j *models.Job) { j.PartOrderStatus = models.PartOrderIndent }),
		job("ARR", func(j *models.Job) {
			j.PartOrderStatus = models.PartOrderArrived
			j.EstimateData = withParts
		}),
		job("ARRNOPARTS", func(j *models.Job) { j.PartOrderStatus = models.PartOrderArrived }),
		job("CANCEL", func(j *models.Job) { j.PartOrderStatus = models.PartOrderCancelled }),
		job("CLOSED", func(j *models.Job) {
			j.IsClosed = true
			j.PartOrderStatus = models.PartOrderOrdered
		}),
	}
	b := BuildPartsBoard(jobs)
	assert.Len(t, b.NewOrders, 1)
	assert.Len(t, b.OnOrder, 1)
	assert.Len(t, b.Indent, 1)
	require.Len(t, b.Arrived, 1)
	assert.Equal(t, "ARR", b.Arrived[0].PoliceNumber)
}

func TestBuildCRCBoard(t *testing.T) {
	jobs := []models.Job{
		job("BOOK", func(j *models.Job) { j.StatusKendaraan = models.VehicleBookingMasuk }),
		job("BOOKED", func(j *models.Job) {
			j.StatusKendaraan = models.VehicleBookingMasuk
			j.BookingConfirmed = true
		}),
		job("DONE", func(j *models.Job) { j.StatusPekerjaan = models.StageDone }),
		job("PART", func(j *models.Job) {
			j.StatusOrderPart = models.PartDisplayReady
			j.PosisiKendaraan = models.PositionAtOwner
		}),
		job("RAWAT", func(j *models.Job) { j.StatusKendaraan = models.VehicleRawatJalan }),
		job("AFTER", func(j *models.Job) {
			j.IsClosed = true
			j.TanggalDiambil = "2025-03-10"
		}),
		job("TOOSOON", func(j *models.Job) {
			j.IsClosed = true
			j.TanggalDiambil = "2025-03-13"
		}),
		job("SURVEYED", func(j *models.Job) {
			j.IsClosed = true
			j.TanggalDiambil = "2025-03-01"
			j.SurveyCompleted = true
		}),
	}
	b := BuildCRCBoard(jobs, kpiSettings(), testNow)
	refs := func(rs []JobRef) []string {
		var out []string
		for _, r := range rs {
			out = append(out, r.PoliceNumber)
		}
		return out
	}
	assert.Equal(t, []string{"BOOK"}, refs(b.Booking))
	assert.Equal(t, []string{"DONE"}, refs(b.ReadyToCollect))
	assert.Equal(t, []string{"PART"}, refs(b.PartReady))
	assert.Equal(t, []string{"RAWAT"}, refs(b.Outpatient))
	assert.Equal(t, []string{"AFTER"}, refs(b.AfterService))
}

func TestBuildCRCSummary(t *testing.T) {
	at := func(day int) time.Time { return time.Date(2025, time.March, day, 11, 0, 0, 0, time.UTC) }
	jobs := []models.Job{
		job("CONVERTED", func(j *models.Job) {
			j.BookingConfirmed = true
			j.FollowUpHistory = []models.FollowUpEntry{{Type: "booking", Timestamp: at(2)}}
			j.History = []models.HistoryEntry{{Status: models.VehicleWorkInProgress, Timestamp: at(4)}}
		}),
		job("WAITING", func(j *models.Job) {
			j.StatusPekerjaan = models.StageNotStarted
			j.BookingConfirmed = true
			j.FollowUpHistory = []models.FollowUpEntry{{Type: "booking", Timestamp: at(3)}, {Type: "", Timestamp: at(4)}}
		}),
		job("SURVEY", func(j *models.Job) {
			j.IsClosed = true
			j.TanggalDiambil = "2025-03-05"
			j.SurveyCompleted = true
			j.SurveyScore = 5
			j.SurveyData = &models.SurveyData{Score: 5, Timestamp: at(9)}
			j.FollowUpHistory = []models.FollowUpEntry{{Type: "afterService", Timestamp: at(9)}}
		}),
		job("NOSURVEY", func(j *models.Job) {
			j.IsClosed = true
			j.TanggalDiambil = "2025-03-07"
		}),
	}
	s := BuildCRCSummary(jobs, MonthRange(2025, time.March, time.UTC))
	assert.Equal(t, 4, s.TotalFollowUps)
	assert.Equal(t, map[string]int{"booking": 2, "other": 1, "afterService": 1}, s.FollowUpsByType)
	assert.Equal(t, 50.0, s.BookingConversionRate)
	assert.Equal(t, 1, s.SurveysCompleted)
	assert.Equal(t, 50.0, s.SurveyResponseRate)
	assert.Equal(t, 5.0, s.AverageSurveyScore)
}

func TestBuildSATaskBoard(t *testing.T) {
	jobs := []models.Job{
		job("MINE", func(j *models.Job) {
			j.NamaSA = "Rina"
			j.SATasks = models.SATasks{NeedsSpkAppeal: true, NeedsEstimation: true, EstimationDone: true, NeedsCustomerApproval: true}
			j.EstimateData = &models.EstimateData{Totals: models.Totals{GrandTotal: 3330000}}
		}),
		job("FINISHED", func(j *models.Job) {
			j.NamaSA = "Rina"
			j.TanggalSelesai = "2025-03-10"
			j.TanggalEstimasiSelesai = "2025-03-11"
			j.HargaJasa = 2000000
			j.CostData.HargaModalBahan = 500000
		}),
		job("OTHER", func(j *models.Job) {
			j.NamaSA = "Dedi"
			j.SATasks = models.SATasks{NeedsSupplement: true}
		}),
	}
	month := MonthRange(2025, time.March, time.UTC)

	b := BuildSATaskBoard(jobs, "Rina", month)
	assert.Len(t, b.SpkAppeal, 1)
	assert.Empty(t, b.Estimation)
	assert.Len(t, b.CustomerApproval, 1)
	assert.Empty(t, b.Supplement)
	assert.Equal(t, 2, b.MonthlyWOCount)
	assert.Equal(t, 1665000.0, b.AvgWOValue)
	assert.Equal(t, 1500000.0, b.GrossProfit)
	assert.Equal(t, 100.0, b.OnTimeRate)

	all := BuildSATaskBoard(jobs, "", month)
	assert.Len(t, all.Supplement, 1)
	assert.Equal(t, 3, all.MonthlyWOCount)
}

func TestLowStockNeverNil(t *testing.T) {
	assert.NotNil(t, LowStock(nil))
	items := []models.InventoryItem{{NamaBahan: "Thinner", Stok: 1, MinStok: 2}, {NamaBahan: "Dempul", Stok: 5, MinStok: 2}}
	low := LowStock(items)
	require.Len(t, low, 1)
	assert.Equal(t, "Thinner", low[0].NamaBahan)
}
