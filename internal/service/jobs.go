package service

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/db"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/events"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/workflow"
)

// JobDeps wires a JobService.
type JobDeps struct {
	Jobs     db.JobCollection
	Items    db.InventoryCollection
	Counter  db.Counter
	Tx       db.Transactor
	Photos   db.PhotoBucket
	Settings SettingsSource
	Events   events.Publisher
	Location *time.Location
}

// JobService runs every job mutation.
type JobService struct {
	jobs     db.JobCollection
	items    db.InventoryCollection
	counter  db.Counter
	tx       db.Transactor
	photos   db.PhotoBucket
	settings SettingsSource
	events   events.Publisher
	logger   *log.Entry
	loc      *time.Location
	now      func() time.Time
}

func NewJobService(d JobDeps) *JobService {
	loc := d.Location
	if loc == nil {
		loc = time.Local
	}
	return &JobService{
		jobs:     d.Jobs,
		items:    d.Items,
		counter:  d.Counter,
		tx:       d.Tx,
		photos:   d.Photos,
		settings: d.Settings,
		events:   d.Events,
		logger:   log.WithField("component", "jobs"),
		loc:      loc,
		now:      time.Now,
	}
}

func (s *JobService) clock() time.Time {
	return s.now().In(s.loc)
}

// mutation is a domain step: it receives the loaded job and returns the
// updated job with the patch that persists the change.
type mutation func(job *models.Job, cfg models.Settings, now time.Time) (*models.Job, *models.Patch, error)

// mutate loads the job, runs fn, writes the resulting patch in one update and
// publishes the change.
func (s *JobService) mutate(ctx context.Context, actor models.Actor, op, id string, fn mutation) (updated *models.Job, err error) {
	fields := log.Fields{"job_id": id, "actor": actor.Name()}
	defer func() { logResult(s.logger, op, fields, err) }()

	job, err := s.jobs.FindJobByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "job", id)
	}
	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock()

	updated, patch, err := fn(job, cfg, now)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return updated, nil
	}
	stamp(updated, patch, actor, now)
	if err = s.jobs.ApplyPatch(ctx, id, patch); err != nil {
		return nil, storeErr(err, "job", id)
	}
	fields["paths"] = patch.Paths()
	s.events.Publish(events.New(events.JobUpdated, id, actor.Name(), updated))
	return updated, nil
}

// CreateJob registers a vehicle from the intake form.
func (s *JobService) CreateJob(ctx context.Context, actor models.Actor, in workflow.JobInput) (job *models.Job, err error) {
	fields := log.Fields{"actor": actor.Name(), "police_number": in.PoliceNumber}
	defer func() { logResult(s.logger, "create_job", fields, err) }()

	cfg, err := s.settings.Current(ctx)
	if err != nil {
		return nil, err
	}
	job, err = workflow.NewJob(in, actor, cfg, s.clock())
	if err != nil {
		return nil, err
	}
	if err = s.jobs.InsertJob(ctx, job); err != nil {
		return nil, storeErr(err, "job", job.PoliceNumber)
	}
	fields["job_id"] = job.ID.Hex()
	s.events.Publish(events.New(events.JobCreated, job.ID.Hex(), actor.Name(), job))
	return job, nil
}

// LookupResult prefills the intake form from the vehicle's last visit.
type LookupResult struct {
	Found         bool   `json:"found"`
	PoliceNumber  string `json:"policeNumber"`
	CustomerName  string `json:"customerName,omitempty"`
	CustomerPhone string `json:"customerPhone,omitempty"`
	CarModel      string `json:"carModel,omitempty"`
	WarnaMobil    string `json:"warnaMobil,omitempty"`
	NomorRangka   string `json:"nomorRangka,omitempty"`
	NamaAsuransi  string `json:"namaAsuransi,omitempty"`
	OpenJobID     string `json:"openJobId,omitempty"`
}

// Lookup finds the most recent job for a plate. No match is a normal answer.
func (s *JobService) Lookup(ctx context.Context, plate string) (LookupResult, error) {
	plate = models.NormalizePoliceNumber(plate)
	res := LookupResult{PoliceNumber: plate}
	if plate == "" {
		return res, errs.Validation("policeNumber is required")
	}
	last, err := s.jobs.FindLatestByPoliceNumber(ctx, plate)
	if errors.Is(err, db.ErrNotFound) {
		return res, nil
	}
	if err != nil {
		return res, storeErr(err, "vehicle", plate)
	}
	res.Found = true
	res.CustomerName = last.CustomerName
	res.CustomerPhone = last.CustomerPhone
	res.CarModel = last.CarModel
	res.WarnaMobil = last.WarnaMobil
	res.NomorRangka = last.NomorRangka
	res.NamaAsuransi = last.NamaAsuransi
	if !last.IsClosed {
		res.OpenJobID = last.ID.Hex()
	}
	return res, nil
}

func (s *JobService) GetJob(ctx context.Context, id string) (*models.Job, error) {
	job, err := s.jobs.FindJobByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "job", id)
	}
	return job, nil
}

func (s *JobService) ListJobs(ctx context.Context, filter db.JobFilter) ([]models.Job, error) {
	jobs, err := s.jobs.FindJobs(ctx, filter)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "list jobs")
	}
	return jobs, nil
}

func (s *JobService) UpdateDetails(ctx context.Context, actor models.Actor, id string, in workflow.DetailsInput) (*models.Job, error) {
	return s.mutate(ctx, actor, "update_details", id, func(job *models.Job, cfg models.Settings, now time.Time) (*models.Job, *models.Patch, error) {
		return workflow.UpdateDetails(job, in, actor, cfg, now)
	})
}

func (s *JobService) Transition(ctx context.Context, actor models.Actor, id, stage string) (*models.Job, error) {
	return s.mutate(ctx, actor, "transition", id, func(job *models.Job, cfg models.Settings, now time.Time) (*models.Job, *models.Patch, error) {
		return workflow.Transition(job, stage, actor, cfg, now)
	})
}

func (s *JobService) ActivateRework(ctx context.Context, actor models.Actor, id, reason, mechanic string) (*models.Job, error) {
	return s.mutate(ctx, actor, "activate_rework", id, func(job *models.Job, _ models.Settings, now time.Time) (*models.Job, *models.Patch, error) {
		return workflow.ActivateRework(job, reason, mechanic, actor, now)
	})
}

func (s *JobService) ClearRework(ctx context.Context, actor models.Actor, id string) (*models.Job, error) {
	return s.mutate(ctx, actor, "clear_rework", id, func(job *models.Job, _ models.Settings, now time.Time) (*models.Job, *models.Patch, error) {
		return workflow.ClearRework(job, actor, now)
	})
}

func (s *JobService) AddMechanicLog(ctx context.Context, actor models.Actor, id string, in workflow.MechanicLogInput) (*models.Job, error) {
	return s.mutate(ctx, actor, "mechanic_log", id, func(job *models.Job, cfg models.Settings, now time.Time) (*models.Job, *models.Patch, error) {
		return workflow.AddMechanicLog(job, in, actor, cfg, now)
	})
}

// CloseRequest is the Finance cost form.
type CloseRequest struct {
	Costs       workflow.CostInput `json:"costs"`
	FinanceDocs models.FinanceDocs `json:"financeDocs"`
	Close       bool               `json:"close"`
}

// CloseCosts saves the recorded expenses and optionally closes the WO. The
// stored grossProfit is compared with the recomputed one before it is replaced.
func (s *JobService) CloseCosts(ctx context.Context, actor models.Actor, id string, req CloseRequest) (*models.Job, error) {
	return s.mutate(ctx, actor, "close_costs", id, func(job *models.Job, _ models.Settings, now time.Time) (*models.Job, *models.Patch, error) {
		updated, p, err := workflow.CloseCosts(job, req.Costs, req.FinanceDocs, req.Close, actor, now)
		if err != nil {
			return nil, nil, err
		}
		if drift := workflow.Drift(job); drift != 0 {
			s.logger.WithFields(log.Fields{
				"job_id":       id,
				"wo_number":    job.WONumber,
				"stored_gp":    job.GrossProfit,
				"recomputed":   workflow.GrossProfit(job),
				"drift_amount": drift,
			}).Warn("gross profit drift corrected at cost close")
		}
		return updated, p, nil
	})
}

func (s *JobService) Reopen(ctx context.Context, actor models.Actor, id string) (*models.Job, error) {
	return s.mutate(ctx, actor, "reopen", id, func(job *models.Job, _ models.Settings, _ time.Time) (*models.Job, *models.Patch, error) {
		return workflow.Reopen(job, actor)
	})
}

// AddFollowUp logs a CRC contact. A template title renders the message from
// the settings templates when no message is given.
func (s *JobService) AddFollowUp(ctx context.Context, actor models.Actor, id string, in workflow.FollowUpInput) (*models.Job, error) {
	return s.mutate(ctx, actor, "follow_up", id, func(job *models.Job, cfg models.Settings, now time.Time) (*models.Job, *models.Patch, error) {
		if in.Message == "" && in.Template != "" {
			t, ok := workflow.FindTemplate(cfg, in.Template)
			if !ok {
				return nil, nil, errs.Validation("unknown message template %q", in.Template)
			}
			in.Message = workflow.RenderTemplate(t, job)
		}
		return workflow.AddFollowUp(job, in, actor, now)
	})
}

func (s *JobService) RecordSurvey(ctx context.Context, actor models.Actor, id string, in workflow.SurveyInput) (*models.Job, error) {
	return s.mutate(ctx, actor, "survey", id, func(job *models.Job, _ models.Settings, now time.Time) (*models.Job, *models.Patch, error) {
		return workflow.RecordSurvey(job, in, actor, now)
	})
}

func (s *JobService) CompleteSATask(ctx context.Context, actor models.Actor, id, task string) (*models.Job, error) {
	return s.mutate(ctx, actor, "sa_task", id, func(job *models.Job, _ models.Settings, _ time.Time) (*models.Job, *models.Patch, error) {
		return workflow.CompleteSATask(job, task, actor)
	})
}
