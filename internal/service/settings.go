package service

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/db"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/errs"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/events"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
)

const settingsTTL = 30 * time.Second

// SettingsService loads, caches and saves the workshop settings.
type SettingsService struct {
	store    db.SettingsStore
	defaults models.Settings
	events   events.Publisher
	logger   *log.Entry
	now      func() time.Time

	mu       sync.RWMutex
	cached   *models.Settings
	loadedAt time.Time
}

// NewSettingsService uses defaults until a settings document is saved.
func NewSettingsService(store db.SettingsStore, defaults models.Settings, pub events.Publisher) *SettingsService {
	return &SettingsService{
		store:    store,
		defaults: defaults,
		events:   pub,
		logger:   log.WithField("component", "settings"),
		now:      time.Now,
	}
}

// Current returns a snapshot of the settings. The caller owns the copy.
func (s *SettingsService) Current(ctx context.Context) (models.Settings, error) {
	s.mu.RLock()
	if s.cached != nil && s.now().Sub(s.loadedAt) < settingsTTL {
		snap := s.cached.Clone()
		s.mu.RUnlock()
		return snap, nil
	}
	s.mu.RUnlock()

	stored, err := s.store.GetSettings(ctx)
	switch {
	case errors.Is(err, db.ErrNotFound):
		d := s.defaults.Clone()
		stored = &d
	case err != nil:
		return models.Settings{}, errs.Wrap(errs.KindInternal, err, "load settings")
	}

	s.mu.Lock()
	s.cached = stored
	s.loadedAt = s.now()
	s.mu.Unlock()
	return stored.Clone(), nil
}

// Save validates and replaces the settings. Manager only.
func (s *SettingsService) Save(ctx context.Context, actor models.Actor, next models.Settings) (models.Settings, error) {
	var err error
	defer func() {
		logResult(s.logger, "save_settings", log.Fields{"actor": actor.Name()}, err)
	}()
	if !actor.Can(models.PermSaveSettings) {
		err = errs.Forbidden("only a Manager can change settings")
		return models.Settings{}, err
	}
	if verr := next.Validate(); verr != nil {
		err = errs.Validation("%v", verr)
		return models.Settings{}, err
	}
	next.UpdatedAt = s.now()
	next.UpdatedBy = actor.Name()
	if err = s.store.SaveSettings(ctx, next); err != nil {
		err = errs.Wrap(errs.KindInternal, err, "save settings")
		return models.Settings{}, err
	}

	saved := next.Clone()
	s.mu.Lock()
	s.cached = &saved
	s.loadedAt = s.now()
	s.mu.Unlock()

	s.events.Publish(events.New(events.SettingsUpdated, "main", actor.Name(), next))
	return next.Clone(), nil
}
