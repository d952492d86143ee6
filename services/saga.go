package services

import (
	"context"

	"etd-catalog/etderr"

	"go.uber.org/zap"
)

// Schrittnamen der Ingestion-Saga, für Logs und Metriken.
const (
	stepRecord    = "record"
	stepIndex     = "index"
	stepFilename  = "filename"
	stepDirectory = "directory"
	stepFile      = "file"
	stepLink      = "link"
)

type compensation struct {
	step string
	undo func(ctx context.Context) error
}

// saga merkt sich die Kompensationen der abgeschlossenen Schritte.
type saga struct {
	log  *zap.Logger
	done []compensation
}

func newSaga(log *zap.Logger) *saga {
	return &saga{log: log}
}

func (s *saga) push(step string, undo func(ctx context.Context) error) {
	s.done = append(s.done, compensation{step: step, undo: undo})
}

// rollback führt alle Kompensationen rückwärts aus. Fehler werden geloggt und verschluckt.
// Kompensationen laufen auch nach Ablauf von ctx weiter.
func (s *saga) rollback(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(s.done) - 1; i >= 0; i-- {
		c := s.done[i]
		if err := c.undo(ctx); err != nil {
			compensationsCounter.WithLabelValues(c.step, "error").Inc()
			s.log.Error("Kompensation fehlgeschlagen", zap.String("step", c.step), zap.Error(err))
			continue
		}
		compensationsCounter.WithLabelValues(c.step, "ok").Inc()
		s.log.Info("Schritt zurückgenommen", zap.String("step", c.step))
	}
	s.done = nil
}

// fail loggt den fehlgeschlagenen Schritt, kompensiert und liefert den groben Fehler für den Aufrufer.
func (s *saga) fail(ctx context.Context, step string, err error) error {
	s.log.Error("Ingestion-Schritt fehlgeschlagen", zap.String("step", step), zap.Error(err))
	sagaFailuresCounter.WithLabelValues(step).Inc()
	s.rollback(ctx)
	return etderr.Wrap(etderr.CreationFailed, err, "could not create record")
}
