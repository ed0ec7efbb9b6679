package service

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/db"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/estimate"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/events"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/inventory"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/workflow"
)

// SaveEstimate stores the estimate and, when finalize is set, turns it into a
// numbered work order. The WO number is allocated only once per job.
func (s *JobService) SaveEstimate(ctx context.Context, actor models.Actor, id string, in workflow.EstimateInput, finalize bool) (*models.Job, error) {
	op := "save_estimate"
	if finalize {
		op = "finalize_wo"
	}
	apply := func(job *models.Job, cfg models.Settings, now time.Time) (*models.Job, *models.Patch, error) {
		updated, p, err := workflow.ApplyEstimate(job, in, actor, cfg)
		if err != nil || !finalize {
			return updated, p, err
		}
		var woNumber string
		if updated.WONumber == "" {
			seq, err := s.counter.Next(ctx, estimate.CounterKey(now))
			if err != nil {
				return nil, nil, errs.Wrap(errs.KindInternal, err, "allocate WO number")
			}
			woNumber = estimate.FormatWONumber(now, int64(seq))
		}
		confirmed, cp, err := workflow.ConfirmWO(updated, woNumber)
		if err != nil {
			return nil, nil, err
		}
		return confirmed, p.Merge(cp), nil
	}
	job, err := s.mutate(ctx, actor, op, id, apply)
	if finalize && errors.Is(err, db.ErrStale) {
		// A concurrent finalize numbered the job first. Saving again on top of
		// the reloaded job keeps that number.
		job, err = s.mutate(ctx, actor, op, id, apply)
	}
	if err != nil {
		return nil, err
	}
	if finalize {
		s.ensurePartStubs(ctx, actor, job.PartItems())
	}
	return job, nil
}

// ensurePartStubs creates placeholder master records for part numbers the
// catalog does not know yet. The estimate is already saved; failures are logged.
func (s *JobService) ensurePartStubs(ctx context.Context, actor models.Actor, parts []models.PartItem) {
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Number != "" {
			codes = append(codes, p.Number)
		}
	}
	if len(codes) == 0 {
		return
	}
	logger := s.logger.WithField("op", "part_stubs")
	known, err := s.items.FindCodes(ctx, codes)
	if err != nil {
		logger.WithError(err).Error("failed to look up part numbers")
		return
	}
	unknown := workflow.UnknownParts(parts, known)
	if len(unknown) == 0 {
		return
	}
	now := s.clock()
	stubs := make([]models.InventoryItem, 0, len(unknown))
	for _, p := range unknown {
		stubs = append(stubs, inventory.NewPartStub(p, now))
	}
	created, err := s.items.UpsertPartStubs(ctx, stubs)
	if err != nil {
		logger.WithError(err).Error("failed to create part stubs")
		return
	}
	if created > 0 {
		logger.WithField("created", created).Info("part stubs created")
		s.events.Publish(events.New(events.InventoryUpdated, "", actor.Name(), codes))
	}
}

// ConfirmParts records the Partman's order with actual purchase prices.
func (s *JobService) ConfirmParts(ctx context.Context, actor models.Actor, id string, lines []workflow.PartConfirmation) (*models.Job, error) {
	return s.mutate(ctx, actor, "parts_confirm", id, func(job *models.Job, _ models.Settings, _ time.Time) (*models.Job, *models.Patch, error) {
		return workflow.ConfirmOrder(job, lines, actor)
	})
}

// MoveParts applies an arrival, indent or back-to-order step.
func (s *JobService) MoveParts(ctx context.Context, actor models.Actor, id string, action workflow.PartAction) (*models.Job, error) {
	return s.mutate(ctx, actor, "parts_"+string(action), id, func(job *models.Job, _ models.Settings, _ time.Time) (*models.Job, *models.Patch, error) {
		return workflow.MoveParts(job, action, actor)
	})
}

// CancelParts cancels the order and reverses the booked purchase cost.
func (s *JobService) CancelParts(ctx context.Context, actor models.Actor, id string) (*models.Job, error) {
	return s.mutate(ctx, actor, "parts_cancel", id, func(job *models.Job, _ models.Settings, _ time.Time) (*models.Job, *models.Patch, error) {
		return workflow.CancelOrder(job, actor)
	})
}

// MaterialsResult is the outcome of a material assignment.
type MaterialsResult struct {
	Job   *models.Job `json:"job"`
	Total float64     `json:"total"`
}

// AssignMaterials draws materials from stock and books their cost onto the
// job in one transaction. Any line without enough stock aborts everything.
func (s *JobService) AssignMaterials(ctx context.Context, actor models.Actor, id string, lines []inventory.MaterialLine) (res MaterialsResult, err error) {
	fields := log.Fields{"job_id": id, "actor": actor.Name()}
	defer func() { logResult(s.logger, "assign_materials", fields, err) }()

	if !actor.Can(models.PermAssignMaterials) {
		return res, errs.Forbidden("role %q is not allowed to assign materials", actor.Role)
	}
	merged, err := inventory.MergeLines(lines)
	if err != nil {
		return res, err
	}

	var (
		updated *models.Job
		total   float64
	)
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		job, err := s.jobs.FindJobByID(ctx, id)
		if err != nil {
			return storeErr(err, "job", id)
		}
		charges := make([]workflow.MaterialCharge, 0, len(merged))
		for _, l := range merged {
			item, err := s.items.FindItemByID(ctx, l.ItemID)
			if err != nil {
				return storeErr(err, "item", l.ItemID)
			}
			if _, err := inventory.StockOut(*item, l.Qty); err != nil {
				return err
			}
			charges = append(charges, workflow.MaterialCharge{Item: *item, Qty: l.Qty})
		}
		next, p, sum, err := workflow.ChargeMaterials(job, charges, actor)
		if err != nil {
			return err
		}
		for _, c := range charges {
			if err := s.items.DecrementStock(ctx, c.Item.ID.Hex(), c.Qty); err != nil {
				if errorsIsInsufficient(err) {
					return errs.Conflict("not enough stock for %s", c.Item.NamaBahan)
				}
				return storeErr(err, "item", c.Item.ID.Hex())
			}
		}
		now := s.clock()
		stamp(next, p, actor, now)
		if err := s.jobs.ApplyPatch(ctx, id, p); err != nil {
			return storeErr(err, "job", id)
		}
		updated, total = next, sum
		return nil
	})
	if err != nil {
		err = storeErr(err, "materials for job", id)
		return res, err
	}

	fields["total"] = total
	for _, l := range merged {
		s.events.Publish(events.New(events.InventoryUpdated, l.ItemID, actor.Name(), l))
	}
	s.events.Publish(events.New(events.JobUpdated, id, actor.Name(), updated))
	return MaterialsResult{Job: updated, Total: total}, nil
}

// StockOutToJob assigns one item to the open job of a vehicle.
func (s *JobService) StockOutToJob(ctx context.Context, actor models.Actor, itemID string, qty float64, plate string) (MaterialsResult, error) {
	plate = models.NormalizePoliceNumber(plate)
	if plate == "" {
		return MaterialsResult{}, errs.Validation("policeNumber is required")
	}
	job, err := s.jobs.FindOpenByPoliceNumber(ctx, plate)
	if err != nil {
		return MaterialsResult{}, storeErr(err, "open job for", plate)
	}
	return s.AssignMaterials(ctx, actor, job.ID.Hex(), []inventory.MaterialLine{{ItemID: itemID, Qty: qty}})
}
