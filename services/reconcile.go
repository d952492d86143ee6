package services

import (
	"context"
	"time"

	"etd-catalog/etderr"

	"go.uber.org/zap"
)

// ReconcileService räumt Einträge ab, deren Ingestion-Saga nie bis zum Dokument gekommen ist.
type ReconcileService struct {
	Entries *EtdEntryService
	Logger  *zap.Logger
}

func NewReconcileService(entries *EtdEntryService, logger *zap.Logger) *ReconcileService {
	return &ReconcileService{Entries: entries, Logger: logger}
}

// SweepOrphans löscht alle Einträge ohne Dokument, die älter als grace sind, über die Removal-Saga.
// Geliefert wird die Anzahl entfernter Einträge; einzelne Fehler brechen den Lauf nicht ab.
func (r *ReconcileService) SweepOrphans(ctx context.Context, grace time.Duration) (int, error) {
	before := r.Entries.Now().UTC().Add(-grace)
	orphans, err := r.Entries.Repo.FindOrphans(ctx, before)
	if err != nil {
		r.Logger.Error("Orphan-Suche fehlgeschlagen", zap.Error(err))
		return 0, err
	}
	if len(orphans) == 0 {
		r.Logger.Debug("Keine verwaisten Einträge gefunden")
		return 0, nil
	}

	removed := 0
	for _, o := range orphans {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		err := r.Entries.Delete(ctx, o.ID)
		if err != nil && !etderr.IsNotFound(err) {
			r.Logger.Error("Verwaister Eintrag konnte nicht entfernt werden", zap.Uint("entry_id", o.ID), zap.Error(err))
			continue
		}
		if err == nil {
			removed++
			orphansRemovedCounter.Inc()
		}
	}
	r.Logger.Info("Orphan-Abgleich abgeschlossen", zap.Int("found", len(orphans)), zap.Int("removed", removed))
	return removed, nil
}
