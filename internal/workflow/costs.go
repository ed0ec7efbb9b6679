package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// GrossProfit recomputes gross profit from revenue and recorded expenses.
// It ignores the stored grossProfit field.
func GrossProfit(j *models.Job) float64 {
	return j.Revenue() - j.CostData.Total()
}

// Drift is how far the stored grossProfit has moved away from the recomputed
// value, usually through delta updates from the parts workflow.
func Drift(j *models.Job) float64 {
	return j.GrossProfit - GrossProfit(j)
}

// closablePartStates are the statusOrderPart values that allow closing a WO.
var closablePartStates = map[string]bool{
	models.PartDisplayReady:   true,
	models.PartDisplayPartial: true,
	models.PartDisplayNone:    true,
}

// CloseBlockers lists every reason the job cannot be closed yet.
func CloseBlockers(j *models.Job) []string {
	var blockers []string
	if j.StatusPekerjaan != models.StageDone {
		blockers = append(blockers, fmt.Sprintf("work stage is %q, not %q", j.StatusPekerjaan, models.StageDone))
	}
	if !closablePartStates[j.StatusOrderPart] {
		blockers = append(blockers, fmt.Sprintf("parts are %q", j.StatusOrderPart))
	}
	if !j.IsSelfPay() {
		for _, doc := range j.FinanceDocs.Missing() {
			blockers = append(blockers, "missing "+doc)
		}
	}
	return blockers
}

// CanClose reports whether the WO close gate is open.
func CanClose(j *models.Job) bool {
	return len(CloseBlockers(j)) == 0
}

// CostInput is the Finance cost form.
type CostInput struct {
	HargaModalBahan float64 `json:"hargaModalBahan" validate:"gte=0"`
	HargaBeliPart   float64 `json:"hargaBeliPart" validate:"gte=0"`
	JasaExternal    float64 `json:"jasaExternal" validate:"gte=0"`
}

// CloseCosts saves the authoritative cost snapshot and document checklist,
// recomputes gross profit wholesale and optionally closes the WO. A rejected
// close writes nothing.
func CloseCosts(job *models.Job, costs CostInput, docs models.FinanceDocs, closeRequested bool, actor models.Actor, now time.Time) (*models.Job, *models.Patch, error) {
	if err := authorize(actor, models.PermCloseCosts); err != nil {
		return nil, nil, err
	}
	if err := requireOpen(job); err != nil {
		return nil, nil, err
	}
	if costs.HargaModalBahan < 0 || costs.HargaBeliPart < 0 || costs.JasaExternal < 0 {
		return nil, nil, errs.Validation("costs must not be negative")
	}

	updated := cloneJob(job)
	updated.CostData = models.CostData{
		HargaModalBahan: costs.HargaModalBahan,
		HargaBeliPart:   costs.HargaBeliPart,
		JasaExternal:    costs.JasaExternal,
	}
	updated.FinanceDocs = docs
	updated.GrossProfit = GrossProfit(updated)

	p := models.NewPatch().
		SetField("costData", updated.CostData).
		SetField("financeDocs", updated.FinanceDocs).
		SetField("grossProfit", updated.GrossProfit)

	if !closeRequested {
		return updated, p, nil
	}
	if blockers := CloseBlockers(updated); len(blockers) > 0 {
		return nil, nil, errs.Precondition("WO cannot be closed: %s", strings.Join(blockers, "; "))
	}

	closedAt := now
	updated.IsClosed = true
	updated.ClosedAt = &closedAt
	updated.StatusKendaraan = models.VehiclePickedUp
	if updated.TanggalSelesai == "" {
		updated.TanggalSelesai = models.FormatDate(now)
	}
	if updated.TanggalDiambil == "" {
		updated.TanggalDiambil = updated.TanggalSelesai
	}
	p.SetField("isClosed", true).
		SetField("closedAt", closedAt).
		SetField("statusKendaraan", updated.StatusKendaraan).
		SetField("tanggalSelesai", updated.TanggalSelesai).
		SetField("tanggalDiambil", updated.TanggalDiambil)
	return updated, p, nil
}

// Reopen reverses a close. Costs stay as last saved.
func Reopen(job *models.Job, actor models.Actor) (*models.Job, *models.Patch, error) {
	if err := authorize(actor, models.PermReopenWO); err != nil {
		return nil, nil, errs.Forbidden("only a Manager can reopen a WO")
	}
	if !job.IsClosed {
		return nil, nil, errs.Precondition("WO %s is not closed", displayID(job))
	}
	updated := cloneJob(job)
	updated.IsClosed = false
	updated.ClosedAt = nil
	p := models.NewPatch().SetField("isClosed", false).UnsetField("closedAt")
	return updated, p, nil
}
