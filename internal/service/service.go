// Package service orchestrates every mutation: load the current document, run
// the pure domain function, write its patch atomically, publish the change.
package service

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/db"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

// SettingsSource hands out the current settings snapshot.
type SettingsSource interface {
	Current(ctx context.Context) (models.Settings, error)
}

// storeErr classifies a db error for callers: missing documents become
// NotFound, lost conditional writes Conflict, everything else is an
// internal failure.
func storeErr(err error, what string, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, db.ErrNotFound) {
		return errs.NotFound("%s %s not found", what, id)
	}
	if errors.Is(err, db.ErrStale) {
		return errs.Wrap(errs.KindConflict, err, "%s %s was changed by someone else; reload and try again", what, id)
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	return errs.Wrap(errs.KindInternal, err, "%s %s: storage failure", what, id)
}

// logResult logs a finished operation at a level matching its outcome.
func logResult(logger *log.Entry, op string, fields log.Fields, err error) {
	entry := logger.WithFields(fields).WithField("op", op)
	switch {
	case err == nil:
		entry.Info("ok")
	case errs.KindOf(err) == errs.KindInternal:
		entry.WithError(err).Error("failed")
	default:
		entry.WithField("kind", errs.KindOf(err).String()).WithError(err).Warn("rejected")
	}
}

// stamp records who changed the document and when.
func stamp(job *models.Job, p *models.Patch, actor models.Actor, now time.Time) {
	job.UpdatedAt = now
	job.LastUpdatedBy = actor.Name()
	p.SetField("updatedAt", now).SetField("lastUpdatedBy", actor.Name())
}

func errorsIsInsufficient(err error) bool {
	return errors.Is(err, db.ErrInsufficientStock)
}
