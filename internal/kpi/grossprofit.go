package kpi

import (
	"time"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/estimate"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/workflow"
)

// insurerOther is the catch-all insurer option; it is reported with self-pay units.
const insurerOther = "Lainnya"

// GPStats aggregates revenue, cost and gross profit over a set of jobs.
type GPStats struct {
	Unit         int     `json:"unit"`
	Panel        int     `json:"panel"`
	RevJasa      float64 `json:"revJasa"`
	RevPart      float64 `json:"revPart"`
	CostBahan    float64 `json:"costBahan"`
	CostPart     float64 `json:"costPart"`
	CostExternal float64 `json:"costExternal"`
	GrossProfit  float64 `json:"grossProfit"`
}

// GrossProfitStats sums the jobs. Gross profit is recomputed per job and the
// stored grossProfit field is ignored.
func GrossProfitStats(jobs []models.Job) GPStats {
	var s GPStats
	for i := range jobs {
		j := &jobs[i]
		s.Unit++
		s.Panel += j.JumlahPanel
		s.RevJasa += j.HargaJasa
		s.RevPart += j.HargaPart
		s.CostBahan += j.CostData.HargaModalBahan
		s.CostPart += j.CostData.HargaBeliPart
		s.CostExternal += j.CostData.JasaExternal
		s.GrossProfit += workflow.GrossProfit(j)
	}
	return s
}

// Productivity are the per-unit and per-panel averages of a period.
type Productivity struct {
	AvgUnitEntry   float64 `json:"avgUnitEntry"`
	AvgBahanPanel  float64 `json:"avgBahanPanel"`
	AvgJasaPanel   float64 `json:"avgJasaPanel"`
	AvgRevenueUnit float64 `json:"avgRevenueUnit"`
	MarginJasa     float64 `json:"marginJasa"`
	MarginPart     float64 `json:"marginPart"`
	UnitInsured    int     `json:"unitInsured"`
	UnitSelfPay    int     `json:"unitSelfPay"`
}

// ComputeProductivity derives productivity from closed-job stats, the number of
// units that entered in the period and its working days.
func ComputeProductivity(closed []models.Job, stats GPStats, entered int, workingDays int) Productivity {
	p := Productivity{}
	if workingDays > 0 {
		p.AvgUnitEntry = float64(entered) / float64(workingDays)
	}
	if stats.Panel > 0 {
		p.AvgBahanPanel = estimate.Round(stats.CostBahan / float64(stats.Panel))
		p.AvgJasaPanel = estimate.Round(stats.RevJasa / float64(stats.Panel))
	}
	if stats.Unit > 0 {
		p.AvgRevenueUnit = estimate.Round((stats.RevJasa + stats.RevPart) / float64(stats.Unit))
	}
	if stats.RevJasa > 0 {
		p.MarginJasa = (stats.RevJasa - stats.CostBahan) / stats.RevJasa * 100
	}
	if stats.RevPart > 0 {
		p.MarginPart = (stats.RevPart - stats.CostPart) / stats.RevPart * 100
	}
	for i := range closed {
		if isSelfPayForReport(closed[i].NamaAsuransi) {
			p.UnitSelfPay++
		} else {
			p.UnitInsured++
		}
	}
	return p
}

func isSelfPayForReport(insurer string) bool {
	return insurer == "" || insurer == models.InsurerSelfPay || insurer == insurerOther
}

// PeriodReport is the gross-profit view of one month or week.
type PeriodReport struct {
	Period       Period       `json:"period"`
	Forecast     GPStats      `json:"forecast"`
	Achieved     GPStats      `json:"achieved"`
	UnitEntry    int          `json:"unitEntry"`
	Target       float64      `json:"target"`
	Gap          float64      `json:"gap"`
	Achievement  float64      `json:"achievement"`
	WorkingDays  int          `json:"workingDays"`
	Productivity Productivity `json:"productivity"`
}

// GrossProfitReport is the monthly report plus, when week is 1..5, the weekly one.
type GrossProfitReport struct {
	Monthly PeriodReport  `json:"monthly"`
	Weekly  *PeriodReport `json:"weekly,omitempty"`
}

// BuildGrossProfitReport compares achieved GP (jobs closed in the period)
// against the configured targets. Forecast covers open jobs; the weekly
// forecast only those created in the week.
func BuildGrossProfitReport(jobs []models.Job, cfg models.Settings, year int, month time.Month, week int, loc *time.Location) GrossProfitReport {
	var open []models.Job
	for i := range jobs {
		if !jobs[i].IsClosed {
			open = append(open, jobs[i])
		}
	}

	mp := MonthRange(year, month, loc)
	report := GrossProfitReport{
		Monthly: periodReport(jobs, GrossProfitStats(open), mp, cfg.MonthlyTarget, cfg.NationalHolidays),
	}
	if wp, ok := WeekRange(year, month, week, loc); ok {
		var openInWeek []models.Job
		for i := range open {
			if wp.Contains(open[i].CreatedAt) {
				openInWeek = append(openInWeek, open[i])
			}
		}
		wr := periodReport(jobs, GrossProfitStats(openInWeek), wp, cfg.WeeklyTarget, cfg.NationalHolidays)
		report.Weekly = &wr
	}
	return report
}

func periodReport(jobs []models.Job, forecast GPStats, p Period, target float64, holidays []string) PeriodReport {
	var closed []models.Job
	entered := 0
	for i := range jobs {
		j := &jobs[i]
		if p.Contains(j.CreatedAt) {
			entered++
		}
		if j.IsClosed && j.ClosedAt != nil && p.Contains(*j.ClosedAt) {
			closed = append(closed, *j)
		}
	}
	achieved := GrossProfitStats(closed)
	days := WorkingDays(p, holidays)
	r := PeriodReport{
		Period:       p,
		Forecast:     forecast,
		Achieved:     achieved,
		UnitEntry:    entered,
		Target:       target,
		Gap:          target - achieved.GrossProfit,
		WorkingDays:  days,
		Productivity: ComputeProductivity(closed, achieved, entered, days),
	}
	if target > 0 {
		r.Achievement = achieved.GrossProfit / target * 100
	}
	return r
}
