package kpi

import (
	"sort"
	"time"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/inventory"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/workflow"
)

// JobRef is the card shown on action boards.
type JobRef struct {
	ID              string  `json:"id"`
	PoliceNumber    string  `json:"policeNumber"`
	WONumber        string  `json:"woNumber,omitempty"`
	CustomerName    string  `json:"customerName"`
	CarModel        string  `json:"carModel"`
	NamaAsuransi    string  `json:"namaAsuransi"`
	NamaSA          string  `json:"namaSA,omitempty"`
	StatusPekerjaan string  `json:"statusPekerjaan"`
	Revenue         float64 `json:"revenue"`
}

func refOf(j *models.Job) JobRef {
	return JobRef{
		ID:              j.ID.Hex(),
		PoliceNumber:    j.PoliceNumber,
		WONumber:        j.WONumber,
		CustomerName:    j.CustomerName,
		CarModel:        j.CarModel,
		NamaAsuransi:    j.NamaAsuransi,
		NamaSA:          j.NamaSA,
		StatusPekerjaan: j.StatusPekerjaan,
		Revenue:         j.Revenue(),
	}
}

// FinanceSummary is the Finance action board.
type FinanceSummary struct {
	OpenJobs       int      `json:"openJobs"`
	ClosedJobs     int      `json:"closedJobs"`
	OpenRevenue    float64  `json:"openRevenue"`
	DocsIncomplete []JobRef `json:"docsIncomplete"`
	ReadyToClose   []JobRef `json:"readyToClose"`
}

// BuildFinanceSummary lists finished insured jobs still missing billing
// documents and open jobs that pass the close gate.
func BuildFinanceSummary(jobs []models.Job) FinanceSummary {
	s := FinanceSummary{DocsIncomplete: []JobRef{}, ReadyToClose: []JobRef{}}
	for i := range jobs {
		j := &jobs[i]
		if j.IsClosed {
			s.ClosedJobs++
			continue
		}
		s.OpenJobs++
		s.OpenRevenue += j.Revenue()
		if j.StatusPekerjaan == models.StageDone && !j.IsSelfPay() && !j.FinanceDocs.Complete() {
			s.DocsIncomplete = append(s.DocsIncomplete, refOf(j))
		}
		if workflow.CanClose(j) {
			s.ReadyToClose = append(s.ReadyToClose, refOf(j))
		}
	}
	return s
}

// StageCount is the number of open jobs at one stage.
type StageCount struct {
	Stage string `json:"stage"`
	Count int    `json:"count"`
}

// StageAging is the mean number of days jobs spent at a stage.
type StageAging struct {
	Stage   string  `json:"stage"`
	AvgDays float64 `json:"avgDays"`
}

// ProductionSummary is the Foreman/production view.
type ProductionSummary struct {
	PerStage     []StageCount `json:"perStage"`
	OpenRework   int          `json:"openRework"`
	Finished     int          `json:"finished"`
	AvgCycleDays float64      `json:"avgCycleDays"`
	OnTimeRate   float64      `json:"onTimeRate"`
	ReworkRate   float64      `json:"reworkRate"`
	WIPAging     []StageAging `json:"wipAging"`
	Overdue      []JobRef     `json:"overdue"`
}

// BuildProductionSummary covers jobs whose repair started within the last
// `days` days (creation time when no start date is set), plus all open jobs
// for the stage counts and overdue list.
func BuildProductionSummary(jobs []models.Job, cfg models.Settings, days int, now time.Time) ProductionSummary {
	loc := now.Location()
	window := Period{Start: now.AddDate(0, 0, -days), End: now}
	s := ProductionSummary{Overdue: []JobRef{}}

	counts := map[string]int{}
	var overdue []*models.Job
	var cycleTotal, cycleN, onTime, rework int
	agingTotal := map[string]int{}
	agingN := map[string]int{}

	for i := range jobs {
		j := &jobs[i]
		if !j.IsClosed {
			counts[j.StatusPekerjaan]++
			if j.IsRework {
				s.OpenRework++
			}
			if est, ok := parseDate(j.TanggalEstimasiSelesai, loc); ok &&
				j.StatusPekerjaan != models.StageDone && endOfDay(est).Before(now) {
				overdue = append(overdue, j)
			}
		}

		started, ok := parseDate(j.TanggalMulaiPerbaikan, loc)
		if !ok {
			started = j.CreatedAt
		}
		if started.IsZero() || !window.Contains(started) {
			continue
		}
		if !j.IsRework {
			for k := 0; k+1 < len(j.History); k++ {
				if d := daysBetween(j.History[k].Timestamp, j.History[k+1].Timestamp); d >= 0 {
					agingTotal[j.History[k].Status] += d
					agingN[j.History[k].Status]++
				}
			}
		}
		if j.StatusPekerjaan != models.StageDone {
			continue
		}
		s.Finished++
		if j.IsRework {
			rework++
		}
		finish, okFinish := parseDate(j.TanggalSelesai, loc)
		if start, okStart := parseDate(j.TanggalMulaiPerbaikan, loc); okStart && okFinish {
			if d := daysBetween(start, finish); d >= 0 {
				cycleTotal += d
				cycleN++
			}
		}
		if est, okEst := parseDate(j.TanggalEstimasiSelesai, loc); okEst && okFinish && !finish.After(est) {
			onTime++
		}
	}

	for _, stage := range cfg.StatusPekerjaanOptions {
		s.PerStage = append(s.PerStage, StageCount{Stage: stage, Count: counts[stage]})
		aging := StageAging{Stage: stage}
		if agingN[stage] > 0 {
			aging.AvgDays = float64(agingTotal[stage]) / float64(agingN[stage])
		}
		s.WIPAging = append(s.WIPAging, aging)
	}
	if cycleN > 0 {
		s.AvgCycleDays = float64(cycleTotal) / float64(cycleN)
	}
	s.OnTimeRate = percent(onTime, s.Finished)
	s.ReworkRate = percent(rework, s.Finished)

	sort.SliceStable(overdue, func(a, b int) bool {
		return overdue[a].TanggalEstimasiSelesai < overdue[b].TanggalEstimasiSelesai
	})
	for _, j := range overdue {
		s.Overdue = append(s.Overdue, refOf(j))
	}
	return s
}

// PartsBoard groups active part orders by procurement state.
type PartsBoard struct {
	NewOrders []JobRef `json:"newOrders"`
	OnOrder   []JobRef `json:"onOrder"`
	Indent    []JobRef `json:"indent"`
	Arrived   []JobRef `json:"arrived"`
}

// BuildPartsBoard lists open jobs with an active (not cancelled) part order.
func BuildPartsBoard(jobs []models.Job) PartsBoard {
	b := PartsBoard{NewOrders: []JobRef{}, OnOrder: []JobRef{}, Indent: []JobRef{}, Arrived: []JobRef{}}
	for i := range jobs {
		j := &jobs[i]
		if j.IsClosed || j.PartOrderStatus == models.PartOrderNone || j.PartOrderStatus == models.PartOrderCancelled {
			continue
		}
		switch j.PartOrderStatus {
		case models.PartOrderAwaiting:
			b.NewOrders = append(b.NewOrders, refOf(j))
		case models.PartOrderOrdered:
			b.OnOrder = append(b.OnOrder, refOf(j))
		case models.PartOrderIndent:
			b.Indent = append(b.Indent, refOf(j))
		case models.PartOrderArrived:
			if len(j.PartItems()) > 0 {
				b.Arrived = append(b.Arrived, refOf(j))
			}
		}
	}
	return b
}

// CRCBoard holds the CRC's open follow-up tasks.
type CRCBoard struct {
	Booking        []JobRef `json:"booking"`
	ReadyToCollect []JobRef `json:"readyToCollect"`
	PartReady      []JobRef `json:"partReady"`
	Outpatient     []JobRef `json:"outpatient"`
	AfterService   []JobRef `json:"afterService"`
}

// BuildCRCBoard lists jobs needing customer contact. After-service follow-up is
// due afterServiceFollowUpDays after pickup for closed jobs without a survey.
func BuildCRCBoard(jobs []models.Job, cfg models.Settings, now time.Time) CRCBoard {
	b := CRCBoard{Booking: []JobRef{}, ReadyToCollect: []JobRef{}, PartReady: []JobRef{}, Outpatient: []JobRef{}, AfterService: []JobRef{}}
	days := cfg.AfterServiceFollowUpDays
	if days <= 0 {
		days = 3
	}
	due := now.AddDate(0, 0, -days)
	for i := range jobs {
		j := &jobs[i]
		if j.IsClosed {
			if picked, ok := parseDate(j.TanggalDiambil, now.Location()); ok && !j.SurveyCompleted && !picked.After(due) {
				b.AfterService = append(b.AfterService, refOf(j))
			}
			continue
		}
		if j.StatusKendaraan == models.VehicleBookingMasuk && !j.BookingConfirmed {
			b.Booking = append(b.Booking, refOf(j))
		}
		if j.StatusPekerjaan == models.StageDone && j.StatusKendaraan != models.VehiclePickedUp && !j.CollectionNotified {
			b.ReadyToCollect = append(b.ReadyToCollect, refOf(j))
		}
		if j.StatusOrderPart == models.PartDisplayReady && j.PosisiKendaraan == models.PositionAtOwner && !j.PartReadyNotified {
			b.PartReady = append(b.PartReady, refOf(j))
		}
		if j.StatusKendaraan == models.VehicleRawatJalan && !j.OutpatientFollowUpSent {
			b.Outpatient = append(b.Outpatient, refOf(j))
		}
	}
	return b
}

// CRCSummary measures CRC activity in a period.
type CRCSummary struct {
	TotalFollowUps        int            `json:"totalFollowUps"`
	FollowUpsByType       map[string]int `json:"followUpsByType"`
	BookingConversionRate float64        `json:"bookingConversionRate"`
	SurveysCompleted      int            `json:"surveysCompleted"`
	SurveyResponseRate    float64        `json:"surveyResponseRate"`
	AverageSurveyScore    float64        `json:"averageSurveyScore"`
}

// BuildCRCSummary counts follow-ups logged in p, booking conversion (confirmed
// bookings that reached production) and survey response for jobs picked up in p.
func BuildCRCSummary(jobs []models.Job, p Period) CRCSummary {
	s := CRCSummary{FollowUpsByType: map[string]int{}}
	var confirmed, converted, eligible, scoreSum int
	for i := range jobs {
		j := &jobs[i]
		bookingInPeriod := false
		for _, f := range j.FollowUpHistory {
			if !p.Contains(f.Timestamp) {
				continue
			}
			s.TotalFollowUps++
			kind := f.Type
			if kind == "" {
				kind = "other"
			}
			s.FollowUpsByType[kind]++
			if f.Type == workflow.FollowUpBooking {
				bookingInPeriod = true
			}
		}
		if j.BookingConfirmed && bookingInPeriod {
			confirmed++
			if reachedProduction(j) {
				converted++
			}
		}
		if j.SurveyCompleted && j.SurveyData != nil && p.Contains(j.SurveyData.Timestamp) {
			s.SurveysCompleted++
			scoreSum += j.SurveyScore
		}
		if j.IsClosed && p.ContainsDate(j.TanggalDiambil) {
			eligible++
		}
	}
	s.BookingConversionRate = percent(converted, confirmed)
	s.SurveyResponseRate = percent(s.SurveysCompleted, eligible)
	if s.SurveysCompleted > 0 {
		s.AverageSurveyScore = float64(scoreSum) / float64(s.SurveysCompleted)
	}
	return s
}

func reachedProduction(j *models.Job) bool {
	for _, h := range j.History {
		if h.Status == models.VehicleWorkInProgress {
			return true
		}
	}
	return j.StatusPekerjaan != models.StageNotStarted
}

// SATaskBoard lists open Service Advisor blockers per task, optionally for one SA.
type SATaskBoard struct {
	SpkAppeal        []JobRef `json:"spkAppeal"`
	Supplement       []JobRef `json:"supplement"`
	Estimation       []JobRef `json:"estimation"`
	CustomerApproval []JobRef `json:"customerApproval"`
	MonthlyWOCount   int      `json:"monthlyWOCount"`
	AvgWOValue       float64  `json:"avgWOValue"`
	GrossProfit      float64  `json:"grossProfit"`
	OnTimeRate       float64  `json:"onTimeRate"`
}

// BuildSATaskBoard builds the SA board. Monthly figures use jobs created (WO
// count and value) or finished (GP and on-time rate) in month.
func BuildSATaskBoard(jobs []models.Job, saName string, month Period) SATaskBoard {
	b := SATaskBoard{SpkAppeal: []JobRef{}, Supplement: []JobRef{}, Estimation: []JobRef{}, CustomerApproval: []JobRef{}}
	var woValue float64
	var finished, onTime int
	for i := range jobs {
		j := &jobs[i]
		if saName != "" && j.NamaSA != saName {
			continue
		}
		if !j.IsClosed {
			for _, task := range j.SATasks.Pending() {
				switch task {
				case "spkAppeal":
					b.SpkAppeal = append(b.SpkAppeal, refOf(j))
				case "supplement":
					b.Supplement = append(b.Supplement, refOf(j))
				case "estimation":
					b.Estimation = append(b.Estimation, refOf(j))
				case "customerApproval":
					b.CustomerApproval = append(b.CustomerApproval, refOf(j))
				}
			}
		}
		if month.Contains(j.CreatedAt) {
			b.MonthlyWOCount++
			if j.EstimateData != nil {
				woValue += j.EstimateData.GrandTotal
			}
		}
		if month.ContainsDate(j.TanggalSelesai) {
			finished++
			b.GrossProfit += workflow.GrossProfit(j)
			if j.TanggalEstimasiSelesai != "" && j.TanggalSelesai <= j.TanggalEstimasiSelesai {
				onTime++
			}
		}
	}
	if b.MonthlyWOCount > 0 {
		b.AvgWOValue = woValue / float64(b.MonthlyWOCount)
	}
	b.OnTimeRate = percent(onTime, finished)
	return b
}

// LowStock returns items at or below their reorder threshold.
func LowStock(items []models.InventoryItem) []models.InventoryItem {
	out := inventory.LowStock(items)
	if out == nil {
		return []models.InventoryItem{}
	}
	return out
}
