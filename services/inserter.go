package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"etd-catalog/models"

	"go.uber.org/zap"
)

// InsertReport fasst einen Lauf des Bulk-Imports zusammen.
type InsertReport struct {
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// InserterService importiert ETD-Verzeichnisse von der Platte über die Ingestion-Saga.
// Jedes Unterverzeichnis enthält genau eine JSON-Datei mit Metadaten und mindestens ein PDF.
type InserterService struct {
	Entries *EtdEntryService
	Users   *UserService
	Logger  *zap.Logger
	// Besitzer aller importierten Einträge
	OwnerExternalID string
	Workers         int
}

func NewInserterService(entries *EtdEntryService, users *UserService, logger *zap.Logger, ownerExternalID string, workers int) *InserterService {
	if workers < 1 {
		workers = 1
	}
	return &InserterService{
		Entries:         entries,
		Users:           users,
		Logger:          logger,
		OwnerExternalID: ownerExternalID,
		Workers:         workers,
	}
}

// InsertFromDirectory importiert alle Unterverzeichnisse von dir parallel.
func (s *InserterService) InsertFromDirectory(ctx context.Context, dir string) (InsertReport, error) {
	var report InsertReport

	dirents, err := os.ReadDir(dir)
	if err != nil {
		return report, fmt.Errorf("read import directory: %w", err)
	}
	owner, err := s.Users.EnsureUser(ctx, s.OwnerExternalID, "ETD Inserter")
	if err != nil {
		return report, fmt.Errorf("ensure inserter user: %w", err)
	}

	var entryDirs []string
	for _, d := range dirents {
		if d.IsDir() {
			entryDirs = append(entryDirs, filepath.Join(dir, d.Name()))
		}
	}
	s.Logger.Info("Starte Import", zap.String("dir", dir), zap.Int("entries", len(entryDirs)), zap.Int("workers", s.Workers))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	semaphore := make(chan struct{}, s.Workers)

	for _, entryDir := range entryDirs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		semaphore <- struct{}{}

		go func(entryDir string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			result := s.insertOne(ctx, entryDir, owner.ID)
			mu.Lock()
			switch result {
			case insertOK:
				report.Inserted++
			case insertSkipped:
				report.Skipped++
			default:
				report.Failed++
			}
			mu.Unlock()
		}(entryDir)
	}

	wg.Wait()
	s.Logger.Info("Import abgeschlossen",
		zap.Int("inserted", report.Inserted),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, ctx.Err()
}

type insertResult int

const (
	insertOK insertResult = iota
	insertSkipped
	insertFailed
)

func (s *InserterService) insertOne(ctx context.Context, entryDir string, ownerID uint) insertResult {
	log := s.Logger.With(zap.String("entry_dir", entryDir))

	jsonFiles, err := filesWithExt(entryDir, ".json")
	if err != nil {
		log.Error("Verzeichnis nicht lesbar", zap.Error(err))
		return insertFailed
	}
	if len(jsonFiles) != 1 {
		log.Warn("Übersprungen: erwartet genau eine JSON-Datei", zap.Int("json_files", len(jsonFiles)))
		return insertSkipped
	}
	pdfFiles, err := filesWithExt(entryDir, ".pdf")
	if err != nil {
		log.Error("Verzeichnis nicht lesbar", zap.Error(err))
		return insertFailed
	}
	if len(pdfFiles) == 0 {
		log.Warn("Übersprungen: kein PDF vorhanden")
		return insertSkipped
	}

	raw, err := os.ReadFile(jsonFiles[0])
	if err != nil {
		log.Error("Metadaten nicht lesbar", zap.Error(err))
		return insertFailed
	}
	var meta models.EtdEntryMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		log.Warn("Übersprungen: Metadaten sind kein gültiges JSON", zap.Error(err))
		return insertSkipped
	}

	data, err := os.ReadFile(pdfFiles[0])
	if err != nil {
		log.Error("PDF nicht lesbar", zap.Error(err))
		return insertFailed
	}
	if len(pdfFiles) > 1 {
		log.Debug("Mehrere PDFs, nur das erste wird übernommen", zap.Int("pdf_files", len(pdfFiles)))
	}

	detected := http.DetectContentType(data)
	entry, err := s.Entries.Create(ctx, &meta, DocumentUpload{
		Filename:    filepath.Base(pdfFiles[0]),
		ContentType: strings.SplitN(detected, ";", 2)[0],
		Data:        data,
	}, ownerID)
	if err != nil {
		log.Error("Import fehlgeschlagen", zap.Error(err))
		return insertFailed
	}
	log.Debug("Eintrag importiert", zap.Uint("entry_id", entry.ID))
	return insertOK
}

// filesWithExt liefert die Dateien in dir mit der Endung ext (ohne Groß-/Kleinschreibung), sortiert.
func filesWithExt(dir, ext string) ([]string, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, d := range dirents {
		if d.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(d.Name()), ext) {
			out = append(out, filepath.Join(dir, d.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
