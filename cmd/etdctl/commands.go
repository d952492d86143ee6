package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"etd-catalog/config"
	"etd-catalog/database"
	"etd-catalog/repository"
	"etd-catalog/search"
	"etd-catalog/services"
	"etd-catalog/storage"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	orphanGrace string
	workers     int

	rootCmd = &cobra.Command{
		Use:           "etdctl",
		Short:         "Operator tool for the ETD catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	insertCmd = &cobra.Command{
		Use:   "insert [directory]",
		Short: "Import every entry sub-directory (one .json, at least one .pdf) through the ingestion saga",
		Args:  cobra.ExactArgs(1),
		RunE:  runInsert,
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Remove entries whose ingestion never reached the document step",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}

	deleteCmd = &cobra.Command{
		Use:   "delete [entry id...]",
		Short: "Remove entries from index, record store and document store",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDelete,
	}

	backupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Dump the catalog database to the S3 bucket and rotate old dumps",
		Args:  cobra.NoArgs,
		RunE:  runBackup,
	}
)

func init() {
	rootCmd.AddCommand(insertCmd)
	insertCmd.Flags().IntVar(&workers, "workers", 0, "Parallel imports (default INSERTER_WORKERS)")

	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().StringVar(&orphanGrace, "grace", "", "Minimum age of an orphan, e.g. 30m (default ORPHAN_GRACE)")

	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(backupCmd)
}

// app hält die für einen Lauf aufgebauten Services.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	entries *services.EtdEntryService
	users   *services.UserService
}

func setup(ctx context.Context) (*app, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.Connect(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db, cfg.SearchBackend == "postgres"); err != nil {
		return nil, err
	}
	store, err := storage.NewFileStore(cfg)
	if err != nil {
		return nil, err
	}
	index, err := search.NewMetaIndex(ctx, cfg, db, logger)
	if err != nil {
		return nil, err
	}
	repo := repository.NewEtdEntryRepository(db)
	return &app{
		cfg:     cfg,
		log:     logger,
		entries: services.NewEtdEntryService(repo, index, store, storage.NewPathMapper(cfg.DocumentRoot), logger),
		users:   services.NewUserService(db, logger),
	}, nil
}

func runInsert(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.log.Sync()

	n := a.cfg.InserterWorkers
	if workers > 0 {
		n = workers
	}
	inserter := services.NewInserterService(a.entries, a.users, a.log, a.cfg.InserterUser, n)
	report, err := inserter.InsertFromDirectory(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d ETD entries, skipped %d, failed %d\n", report.Inserted, report.Skipped, report.Failed)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.log.Sync()

	grace, err := parseGrace(orphanGrace, a.cfg)
	if err != nil {
		return err
	}
	removed, err := services.NewReconcileService(a.entries, a.log).SweepOrphans(cmd.Context(), grace)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d orphaned entries\n", removed)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.log.Sync()

	failed := 0
	for _, id := range ids {
		if err := a.entries.Delete(cmd.Context(), id); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "entry %d: %v\n", id, err)
			failed++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted entry %d\n", id)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d deletions failed", failed, len(ids))
	}
	return nil
}

func parseIDs(args []string) ([]uint, error) {
	ids := make([]uint, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseUint(arg, 10, 64)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid entry id %q", arg)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

// parseGrace liest --grace; leer bedeutet cfg.OrphanGrace.
func parseGrace(raw string, cfg *config.Config) (time.Duration, error) {
	if raw == "" {
		return cfg.OrphanGrace, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid --grace %q: %w", raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("--grace must not be negative")
	}
	return d, nil
}
