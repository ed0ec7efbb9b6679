package service

import (
	"context"
	"time"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/db"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/kpi"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// defaultProductionDays is the production dashboard window.
const defaultProductionDays = 30

// KPIService feeds the dashboards from a fresh job snapshot per request.
type KPIService struct {
	jobs     db.JobCollection
	items    db.InventoryCollection
	settings SettingsSource
	loc      *time.Location
	now      func() time.Time
}

func NewKPIService(jobs db.JobCollection, items db.InventoryCollection, settings SettingsSource, loc *time.Location) *KPIService {
	if loc == nil {
		loc = time.Local
	}
	return &KPIService{jobs: jobs, items: items, settings: settings, loc: loc, now: time.Now}
}

func (s *KPIService) snapshot(ctx context.Context, status string) ([]models.Job, models.Settings, error) {
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, cfg, err
	}
	jobs, err := s.jobs.FindJobs(ctx, db.JobFilter{Status: status})
	if err != nil {
		return nil, cfg, errs.Wrap(errs.KindInternal, err, "load jobs")
	}
	return jobs, cfg, nil
}

// GrossProfit reports a month and optionally one of its weeks (1..5).
func (s *KPIService) GrossProfit(ctx context.Context, year int, month time.Month, week int) (kpi.GrossProfitReport, error) {
	if month < time.January || month > time.December {
		return kpi.GrossProfitReport{}, errs.Validation("month must be 1..12")
	}
	if week < 0 || week > 5 {
		return kpi.GrossProfitReport{}, errs.Validation("week must be 1..5")
	}
	jobs, cfg, err := s.snapshot(ctx, db.JobsAll)
	if err != nil {
		return kpi.GrossProfitReport{}, err
	}
	return kpi.BuildGrossProfitReport(jobs, cfg, year, month, week, s.loc), nil
}

func (s *KPIService) Finance(ctx context.Context) (kpi.FinanceSummary, error) {
	jobs, _, err := s.snapshot(ctx, db.JobsAll)
	if err != nil {
		return kpi.FinanceSummary{}, err
	}
	return kpi.BuildFinanceSummary(jobs), nil
}

func (s *KPIService) Production(ctx context.Context, days int) (kpi.ProductionSummary, error) {
	if days <= 0 {
		days = defaultProductionDays
	}
	jobs, cfg, err := s.snapshot(ctx, db.JobsAll)
	if err != nil {
		return kpi.ProductionSummary{}, err
	}
	return kpi.BuildProductionSummary(jobs, cfg, days, s.now().In(s.loc)), nil
}

func (s *KPIService) Parts(ctx context.Context) (kpi.PartsBoard, error) {
	jobs, _, err := s.snapshot(ctx, db.JobsOpen)
	if err != nil {
		return kpi.PartsBoard{}, err
	}
	return kpi.BuildPartsBoard(jobs), nil
}

// CRC returns the follow-up board and the summary for [from, to].
func (s *KPIService) CRC(ctx context.Context, from, to time.Time) (kpi.CRCBoard, kpi.CRCSummary, error) {
	if to.Before(from) {
		return kpi.CRCBoard{}, kpi.CRCSummary{}, errs.Validation("'from' must not be after 'to'")
	}
	jobs, cfg, err := s.snapshot(ctx, db.JobsAll)
	if err != nil {
		return kpi.CRCBoard{}, kpi.CRCSummary{}, err
	}
	board := kpi.BuildCRCBoard(jobs, cfg, s.now().In(s.loc))
	return board, kpi.BuildCRCSummary(jobs, kpi.Period{Start: from, End: to}), nil
}

// SATasks builds one advisor's board for the current month.
func (s *KPIService) SATasks(ctx context.Context, saName string) (kpi.SATaskBoard, error) {
	jobs, _, err := s.snapshot(ctx, db.JobsAll)
	if err != nil {
		return kpi.SATaskBoard{}, err
	}
	now := s.now().In(s.loc)
	return kpi.BuildSATaskBoard(jobs, saName, kpi.MonthRange(now.Year(), now.Month(), s.loc)), nil
}

func (s *KPIService) LowStock(ctx context.Context) ([]models.InventoryItem, error) {
	items, err := s.items.FindItems(ctx, db.ItemFilter{})
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "load inventory")
	}
	return kpi.LowStock(items), nil
}
