package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/kpi"
)

// MockKPIService is a mock implementation of KPIService
type MockKPIService struct {
	mock.Mock
}

func (m *MockKPIService) GrossProfit(ctx context.Context, year int, month time.Month, week int) (kpi.GrossProfitReport, error) {
	args := m.Called(ctx, year, month, week)
	return args.Get(0).(kpi.GrossProfitReport), args.Error(1)
}

func (m *MockKPIService) Finance(ctx context.Context) (kpi.FinanceSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(kpi.FinanceSummary), args.Error(1)
}

func (m *MockKPIService) Production(ctx context.Context, days int) (kpi.ProductionSummary, error) {
	args := m.Called(ctx, days)
	return args.Get(0).(kpi.ProductionSummary), args.Error(1)
}

func (m *MockKPIService) Parts(ctx context.Context) (kpi.PartsBoard, error) {
	args := m.Called(ctx)
	return args.Get(0).(kpi.PartsBoard), args.Error(1)
}

func (m *MockKPIService) CRC(ctx context.Context, from, to time.Time) (kpi.CRCBoard, kpi.CRCSummary, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(kpi.CRCBoard), args.Get(1).(kpi.CRCSummary), args.Error(2)
}

func (m *MockKPIService) SATasks(ctx context.Context, saName string) (kpi.SATaskBoard, error) {
	args := m.Called(ctx, saName)
	return args.Get(0).(kpi.SATaskBoard), args.Error(1)
}

var jakarta = time.FixedZone("WIB", 7*3600)

func newKPIHandler(svc KPIService) *KPIHandler {
	h := NewKPIHandler(svc, jakarta)
	h.now = func() time.Time { return time.Date(2025, time.March, 14, 9, 30, 0, 0, jakarta) }
	return h
}

func TestKPIHandler_GrossProfit(t *testing.T) {
	t.Run("defaults to the current month", func(t *testing.T) {
		svc := new(MockKPIService)
		svc.On("GrossProfit", mock.Anything, 2025, time.March, 0).Return(kpi.GrossProfitReport{}, nil)

		w := httptest.NewRecorder()
		newKPIHandler(svc).GrossProfit(w, httptest.NewRequest(http.MethodGet, "/api/kpi/gross-profit", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("explicit week", func(t *testing.T) {
		svc := new(MockKPIService)
		svc.On("GrossProfit", mock.Anything, 2024, time.December, 2).Return(kpi.GrossProfitReport{}, nil)

		w := httptest.NewRecorder()
		newKPIHandler(svc).GrossProfit(w, httptest.NewRequest(http.MethodGet, "/api/kpi/gross-profit?year=2024&month=12&week=2", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("service rejects month", func(t *testing.T) {
		svc := new(MockKPIService)
		svc.On("GrossProfit", mock.Anything, 2025, time.Month(13), 0).
			Return(kpi.GrossProfitReport{}, errs.Validation("month must be between 1 and 12"))

		w := httptest.NewRecorder()
		newKPIHandler(svc).GrossProfit(w, httptest.NewRequest(http.MethodGet, "/api/kpi/gross-profit?month=13", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("non numeric week", func(t *testing.T) {
		w := httptest.NewRecorder()
		newKPIHandler(new(MockKPIService)).GrossProfit(w, httptest.NewRequest(http.MethodGet, "/api/kpi/gross-profit?week=first", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestKPIHandler_CRC(t *testing.T) {
	t.Run("default period is the current month", func(t *testing.T) {
		svc := new(MockKPIService)
		period := kpi.MonthRange(2025, time.March, jakarta)
		svc.On("CRC", mock.Anything, period.Start, period.End).Return(kpi.CRCBoard{}, kpi.CRCSummary{TotalFollowUps: 4}, nil)

		w := httptest.NewRecorder()
		newKPIHandler(svc).CRC(w, httptest.NewRequest(http.MethodGet, "/api/kpi/crc", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"totalFollowUps":4`)
	})

	t.Run("to covers the whole day", func(t *testing.T) {
		svc := new(MockKPIService)
		from := time.Date(2025, time.February, 1, 0, 0, 0, 0, jakarta)
		to := time.Date(2025, time.February, 10, 23, 59, 59, int(time.Second-time.Nanosecond), jakarta)
		svc.On("CRC", mock.Anything, from, to).Return(kpi.CRCBoard{}, kpi.CRCSummary{}, nil)

		w := httptest.NewRecorder()
		newKPIHandler(svc).CRC(w, httptest.NewRequest(http.MethodGet, "/api/kpi/crc?from=2025-02-01&to=2025-02-10", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		svc.AssertExpectations(t)
	})

	t.Run("bad date", func(t *testing.T) {
		w := httptest.NewRecorder()
		newKPIHandler(new(MockKPIService)).CRC(w, httptest.NewRequest(http.MethodGet, "/api/kpi/crc?from=01-02-2025", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestKPIHandler_Boards(t *testing.T) {
	svc := new(MockKPIService)
	svc.On("Finance", mock.Anything).Return(kpi.FinanceSummary{OpenJobs: 3}, nil)
	svc.On("Production", mock.Anything, 7).Return(kpi.ProductionSummary{Finished: 2}, nil)
	svc.On("Parts", mock.Anything).Return(kpi.PartsBoard{}, nil)
	svc.On("SATasks", mock.Anything, "Rina").Return(kpi.SATaskBoard{MonthlyWOCount: 5}, nil)
	h := newKPIHandler(svc)

	w := httptest.NewRecorder()
	h.Finance(w, httptest.NewRequest(http.MethodGet, "/api/kpi/finance", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"openJobs":3`)

	w = httptest.NewRecorder()
	h.Production(w, httptest.NewRequest(http.MethodGet, "/api/kpi/production?days=7", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.Parts(w, httptest.NewRequest(http.MethodGet, "/api/kpi/parts", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.SATasks(w, httptest.NewRequest(http.MethodGet, "/api/kpi/sa?name=Rina", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"monthlyWOCount":5`)

	svc.AssertExpectations(t)
}
