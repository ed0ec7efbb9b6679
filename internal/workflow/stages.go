package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// Transition moves a job to newStage. Stages are ordered by their position
// in cfg.StatusPekerjaanOptions; moving backwards needs rework mode.
func Transition(job *models.Job, newStage string, actor models.Actor, cfg models.Settings, now time.Time) (*models.Job, *models.Patch, error) {
	if err := authorize(actor, models.PermTransitionJob); err != nil {
		return nil, nil, err
	}
	if err := requireOpen(job); err != nil {
		return nil, nil, err
	}

	target := cfg.StageIndex(newStage)
	if target < 0 {
		return nil, nil, errs.Validation("unknown stage %q", newStage)
	}
	if newStage == job.StatusPekerjaan {
		return nil, nil, errs.Precondition("job is already at stage %q", newStage)
	}
	if job.StatusPekerjaan == models.StageNotStarted &&
		(job.TanggalMulaiPerbaikan == "" || job.TanggalEstimasiSelesai == "") {
		return nil, nil, errs.Precondition("set tanggalMulaiPerbaikan and tanggalEstimasiSelesai before starting work")
	}
	// A stage that is no longer configured has no ordinal; any move away is forward.
	if current := cfg.StageIndex(job.StatusPekerjaan); current >= 0 && target < current && !job.IsRework {
		return nil, nil, errs.Precondition("cannot move back from %q to %q unless rework mode is active", job.StatusPekerjaan, newStage)
	}

	updated := cloneJob(job)
	p := models.NewPatch()

	entry := models.HistoryEntry{Status: newStage, Timestamp: now, UpdatedBy: actor.Name(), IsRework: job.IsRework}
	updated.StatusPekerjaan = newStage
	updated.History = append(updated.History, entry)
	p.SetField("statusPekerjaan", newStage).PushField("history", entry)

	if job.StatusPekerjaan == models.StageNotStarted {
		updated.StatusKendaraan = models.VehicleWorkInProgress
		p.SetField("statusKendaraan", updated.StatusKendaraan)
	}
	if newStage == models.StageDone && job.TanggalSelesai == "" {
		updated.TanggalSelesai = models.FormatDate(now)
		p.SetField("tanggalSelesai", updated.TanggalSelesai)
	}
	return updated, p, nil
}

// ActivateRework switches the job into rework mode at its current stage.
func ActivateRework(job *models.Job, reason, mechanic string, actor models.Actor, now time.Time) (*models.Job, *models.Patch, error) {
	if err := authorize(actor, models.PermToggleRework); err != nil {
		return nil, nil, err
	}
	if err := requireOpen(job); err != nil {
		return nil, nil, err
	}
	if job.IsRework {
		return nil, nil, errs.Precondition("job is already in rework mode")
	}
	reason = strings.TrimSpace(reason)
	mechanic = strings.TrimSpace(mechanic)
	if reason == "" {
		return nil, nil, errs.Validation("reworkReason is required")
	}
	if mechanic == "" {
		return nil, nil, errs.Validation("reworkResponsibleMechanic is required")
	}

	updated := cloneJob(job)
	p := models.NewPatch()
	activateRework(updated, p, reason, mechanic, job.StatusPekerjaan, actor, now)
	return updated, p, nil
}

func activateRework(j *models.Job, p *models.Patch, reason, mechanic, stall string, actor models.Actor, now time.Time) {
	j.IsRework = true
	j.ReworkReason = reason
	j.ReworkResponsibleMechanic = mechanic
	j.ReworkStall = stall
	entry := models.HistoryEntry{
		Status:    fmt.Sprintf("Mode Rework Diaktifkan (di tahap: %s)", stall),
		Timestamp: now,
		UpdatedBy: actor.Name(),
		IsRework:  true,
	}
	j.History = append(j.History, entry)
	p.SetField("isRework", true).
		SetField("reworkReason", reason).
		SetField("reworkResponsibleMechanic", mechanic).
		SetField("reworkStall", j.ReworkStall).
		PushField("history", entry)
}

// ClearRework leaves rework mode. The reason, mechanic and stall stay on the
// job for reporting.
func ClearRework(job *models.Job, actor models.Actor, now time.Time) (*models.Job, *models.Patch, error) {
	if err := authorize(actor, models.PermToggleRework); err != nil {
		return nil, nil, err
	}
	if err := requireOpen(job); err != nil {
		return nil, nil, err
	}
	if !job.IsRework {
		return nil, nil, errs.Precondition("job is not in rework mode")
	}

	updated := cloneJob(job)
	updated.IsRework = false
	entry := models.HistoryEntry{
		Status:    fmt.Sprintf("Mode Rework Dinonaktifkan (di tahap: %s)", job.StatusPekerjaan),
		Timestamp: now,
		UpdatedBy: actor.Name(),
	}
	updated.History = append(updated.History, entry)
	p := models.NewPatch().SetField("isRework", false).PushField("history", entry)
	return updated, p, nil
}

// MechanicLogInput is one work log submitted by the Foreman.
type MechanicLogInput struct {
	NamaMekanik      string  `json:"namaMekanik" validate:"required"`
	TahapanPekerjaan string  `json:"tahapanPekerjaan" validate:"required"`
	JumlahPanel      float64 `json:"jumlahPanel" validate:"gt=0"`
	IsRework         bool    `json:"isRework"`
	AlasanRework     string  `json:"alasanRework"`
	Catatan          string  `json:"catatan"`
}

// AddMechanicLog appends a mechanic work log. A rework-tagged log puts the job
// into rework mode when it is not already there.
func AddMechanicLog(job *models.Job, in MechanicLogInput, actor models.Actor, cfg models.Settings, now time.Time) (*models.Job, *models.Patch, error) {
	if err := authorize(actor, models.PermLogMechanic); err != nil {
		return nil, nil, err
	}
	if err := requireOpen(job); err != nil {
		return nil, nil, err
	}
	mechanic := strings.TrimSpace(in.NamaMekanik)
	if mechanic == "" {
		return nil, nil, errs.Validation("namaMekanik is required")
	}
	if cfg.StageIndex(in.TahapanPekerjaan) < 0 {
		return nil, nil, errs.Validation("unknown stage %q", in.TahapanPekerjaan)
	}
	if in.JumlahPanel <= 0 {
		return nil, nil, errs.Validation("jumlahPanel must be greater than 0")
	}
	reason := strings.TrimSpace(in.AlasanRework)
	if in.IsRework && reason == "" {
		return nil, nil, errs.Validation("alasanRework is required for a rework log")
	}
	if in.IsRework && !job.IsRework {
		if err := authorize(actor, models.PermToggleRework); err != nil {
			return nil, nil, err
		}
	}

	entry := models.MechanicLog{
		ID:               uuid.NewString(),
		NamaMekanik:      mechanic,
		TahapanPekerjaan: in.TahapanPekerjaan,
		JumlahPanel:      in.JumlahPanel,
		IsRework:         in.IsRework,
		AlasanRework:     reason,
		Catatan:          in.Catatan,
		TanggalLog:       now,
		DicatatOleh:      actor.Name(),
	}

	updated := cloneJob(job)
	p := models.NewPatch()
	updated.LogPekerjaan = append(updated.LogPekerjaan, entry)
	p.PushField("logPekerjaan", entry)
	if in.IsRework && !job.IsRework {
		activateRework(updated, p, reason, mechanic, in.TahapanPekerjaan, actor, now)
	}
	return updated, p, nil
}
