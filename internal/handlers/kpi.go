package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/kpi"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// KPIService computes the dashboards.
type KPIService interface {
	GrossProfit(ctx context.Context, year int, month time.Month, week int) (kpi.GrossProfitReport, error)
	Finance(ctx context.Context) (kpi.FinanceSummary, error)
	Production(ctx context.Context, days int) (kpi.ProductionSummary, error)
	Parts(ctx context.Context) (kpi.PartsBoard, error)
	CRC(ctx context.Context, from, to time.Time) (kpi.CRCBoard, kpi.CRCSummary, error)
	SATasks(ctx context.Context, saName string) (kpi.SATaskBoard, error)
}

// KPIHandler serves /api/kpi.
type KPIHandler struct {
	kpi KPIService
	loc *time.Location
	now func() time.Time
}

func NewKPIHandler(svc KPIService, loc *time.Location) *KPIHandler {
	if loc == nil {
		loc = time.Local
	}
	return &KPIHandler{kpi: svc, loc: loc, now: time.Now}
}

func respond[T any](w http.ResponseWriter, r *http.Request, v T, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GrossProfit takes year, month (1..12) and an optional week (1..5); year
// and month default to the current month.
func (h *KPIHandler) GrossProfit(w http.ResponseWriter, r *http.Request) {
	now := h.now().In(h.loc)
	year, err := queryInt(r, "year", now.Year())
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := queryInt(r, "month", int(now.Month()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	week, err := queryInt(r, "week", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := h.kpi.GrossProfit(r.Context(), year, time.Month(month), week)
	respond(w, r, report, err)
}

func (h *KPIHandler) Finance(w http.ResponseWriter, r *http.Request) {
	sum, err := h.kpi.Finance(r.Context())
	respond(w, r, sum, err)
}

func (h *KPIHandler) Production(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := h.kpi.Production(r.Context(), days)
	respond(w, r, sum, err)
}

func (h *KPIHandler) Parts(w http.ResponseWriter, r *http.Request) {
	board, err := h.kpi.Parts(r.Context())
	respond(w, r, board, err)
}

type crcResponse struct {
	Board   kpi.CRCBoard   `json:"board"`
	Summary kpi.CRCSummary `json:"summary"`
}

// CRC takes from/to dates (YYYY-MM-DD); the default is the current month.
func (h *KPIHandler) CRC(w http.ResponseWriter, r *http.Request) {
	now := h.now().In(h.loc)
	period := kpi.MonthRange(now.Year(), now.Month(), h.loc)
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.ParseInLocation(models.DateLayout, raw, h.loc)
		if err != nil {
			writeError(w, r, errs.Validation("from must be a date in YYYY-MM-DD format"))
			return
		}
		period.Start = from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.ParseInLocation(models.DateLayout, raw, h.loc)
		if err != nil {
			writeError(w, r, errs.Validation("to must be a date in YYYY-MM-DD format"))
			return
		}
		period.End = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	board, summary, err := h.kpi.CRC(r.Context(), period.Start, period.End)
	respond(w, r, crcResponse{Board: board, Summary: summary}, err)
}

// SATasks builds the board for one advisor; an empty name covers all of them.
func (h *KPIHandler) SATasks(w http.ResponseWriter, r *http.Request) {
	board, err := h.kpi.SATasks(r.Context(), r.URL.Query().Get("name"))
	respond(w, r, board, err)
}
