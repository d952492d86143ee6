package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"etd-catalog/config"
	"etd-catalog/database"
	"etd-catalog/repository"
	"etd-catalog/search"
	"etd-catalog/services"
	"etd-catalog/storage"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := database.Connect(cfg, logging)
	if err != nil {
		logging.Fatal("Failed to connect to catalog database", zap.Error(err))
	}
	logging.Info("Running database auto-migration...")
	if err := database.Migrate(db, cfg.SearchBackend == "postgres"); err != nil {
		logging.Fatal("Migration failed", zap.Error(err))
	}

	store, err := storage.NewFileStore(cfg)
	if err != nil {
		logging.Fatal("Document store setup failed", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	index, err := search.NewMetaIndex(ctx, cfg, db, logging)
	cancel()
	if err != nil {
		logging.Fatal("Search index setup failed", zap.Error(err))
	}
	logging.Info("Backends ready", zap.String("store", cfg.StoreBackend), zap.String("search", cfg.SearchBackend))

	// Setup Services
	repo := repository.NewEtdEntryRepository(db)
	entryService := services.NewEtdEntryService(repo, index, store, storage.NewPathMapper(cfg.DocumentRoot), logging)
	cat := &catalog{
		Entries:   entryService,
		Comments:  services.NewClaimCommentService(db, repo, logging),
		Favorites: services.NewFavoriteService(db, repo, logging),
		Users:     services.NewUserService(db, logging),
	}
	reconciler := services.NewReconcileService(entryService, logging)

	// Setup Cron
	cronScheduler := cron.New()
	_, err = cronScheduler.AddFunc(cfg.ReconcileSchedule, func() {
		logging.Info("Running scheduled orphan sweep...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := reconciler.SweepOrphans(ctx, cfg.OrphanGrace); err != nil {
			logging.Error("Orphan sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		logging.Fatal("Invalid RECONCILE_SCHEDULE", zap.String("schedule", cfg.ReconcileSchedule), zap.Error(err))
	}
	cronScheduler.Start()
	defer cronScheduler.Stop()

	router := newRouter(cfg, cat, logging)

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       120 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}
