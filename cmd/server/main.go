// Command server runs the bengkel HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/auth"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/config"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/db"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/events"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/handlers"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/middleware"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/models"
	"github.com/MazdaRanger/mazda-ranger-bp-system/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	config.SetupLogging(cfg)

	defaults, err := config.DefaultSettings()
	if err != nil {
		return fmt.Errorf("default settings: %w", err)
	}

	client, err := db.ConnectMongo(cfg.MongoURI)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.WithError(err).Warn("mongo disconnect failed")
		}
	}()
	log.WithField("database", cfg.MongoDB).Info("Connected to MongoDB")

	store, err := db.NewStore(client, cfg.MongoDB)
	if err != nil {
		return err
	}
	idxCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = store.EnsureIndexes(idxCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	bus := events.NewBus(128)
	if cfg.MQTTBroker != "" {
		bridge, err := events.NewMQTTBridge(events.MQTTConfig{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
			QoS:         1,
		})
		if err != nil {
			// Live views still work over WebSocket without the broker.
			log.WithError(err).Warn("MQTT bridge disabled")
		} else {
			stop := bridge.Run(bus)
			defer bridge.Close()
			defer stop()
			log.WithField("broker", cfg.MQTTBroker).Info("MQTT bridge running")
		}
	}

	authService, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry, cfg.AdminUserID)
	if err != nil {
		return err
	}

	routes := newRoutes(cfg, store, bus, authService, defaults)
	routes.Health = func(ctx context.Context) error { return client.Ping(ctx, nil) }

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("HTTP server listening")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

// newRoutes wires services and handlers onto the store.
func newRoutes(cfg *config.Config, store *db.Store, bus *events.Bus, authService *auth.Service, defaults models.Settings) handlers.Routes {
	settings := service.NewSettingsService(store.Settings, defaults, bus)
	jobs := service.NewJobService(service.JobDeps{
		Jobs:     store.Jobs,
		Items:    store.Inventory,
		Counter:  store.Counters,
		Tx:       store.Transactor,
		Photos:   store.Photos,
		Settings: settings,
		Events:   bus,
		Location: cfg.Location,
	})
	inventory := service.NewInventoryService(store.Inventory, store.Suppliers, bus)
	kpi := service.NewKPIService(store.Jobs, store.Inventory, settings, cfg.Location)

	return handlers.Routes{
		Auth:           handlers.NewAuthHandler(authService, store.Users),
		Jobs:           handlers.NewJobHandler(jobs),
		Inventory:      handlers.NewInventoryHandler(inventory, jobs),
		Settings:       handlers.NewSettingsHandler(settings),
		KPI:            handlers.NewKPIHandler(kpi, cfg.Location),
		Stream:         handlers.NewStreamHandler(bus, cfg.AllowedOrigins),
		AuthMiddleware: middleware.NewAuthMiddleware(authService),
		RateLimiter:    middleware.NewRateLimitMiddleware(),
		RateLimit:      cfg.RateLimitRequests,
		RateWindow:     cfg.RateLimitWindow,
	}
}
