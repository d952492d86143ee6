package services

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"time"

	"etd-catalog/etderr"
	"etd-catalog/models"
	"etd-catalog/repository"
	"etd-catalog/search"
	"etd-catalog/storage"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// PDFContentType ist der einzige akzeptierte Dokumenttyp.
const PDFContentType = "application/pdf"

// DocumentUpload ist das vom Client gelieferte Dokument einer neuen Arbeit.
type DocumentUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// EtdEntryService legt Einträge über Record-Store, Suchindex und Dateiablage hinweg an und entfernt sie.
type EtdEntryService struct {
	Repo   repository.EtdEntryRepository
	Index  search.MetaIndex
	Store  storage.FileStore
	Paths  storage.PathMapper
	Logger *zap.Logger
	Now    func() time.Time

	validate *validator.Validate
}

// NewEtdEntryService erstellt eine neue Instanz des EtdEntryService.
func NewEtdEntryService(repo repository.EtdEntryRepository, index search.MetaIndex, store storage.FileStore, paths storage.PathMapper, logger *zap.Logger) *EtdEntryService {
	return &EtdEntryService{
		Repo:     repo,
		Index:    index,
		Store:    store,
		Paths:    paths,
		Logger:   logger,
		Now:      time.Now,
		validate: newMetaValidator(),
	}
}

// requiredMeta listet die Pflichtfelder in der Reihenfolge, in der sie geprüft werden.
type requiredMeta struct {
	Title      string   `name:"title" validate:"required"`
	Author     string   `name:"contributor_author" validate:"required"`
	Publisher  string   `name:"publisher" validate:"required"`
	Department string   `name:"contributor_department" validate:"required"`
	Subject    []string `name:"subject" validate:"min=1"`
	Abstract   string   `name:"description_abstract" validate:"required"`
}

func newMetaValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("name")
	})
	return v
}

// ValidateMeta prüft die Pflichtfelder und meldet das erste fehlende Feld.
func (s *EtdEntryService) ValidateMeta(meta *models.EtdEntryMeta) error {
	if meta == nil {
		return etderr.New(etderr.ValidationFailed, "metadata is missing")
	}
	view := requiredMeta{
		Title:      strings.TrimSpace(meta.Title),
		Author:     strings.TrimSpace(meta.ContributorAuthor),
		Publisher:  strings.TrimSpace(meta.Publisher),
		Department: strings.TrimSpace(meta.ContributorDepartment),
		Abstract:   strings.TrimSpace(meta.DescriptionAbstract),
	}
	for _, subj := range meta.Subject {
		if subj = strings.TrimSpace(subj); subj != "" {
			view.Subject = append(view.Subject, subj)
		}
	}

	v := s.validate
	if v == nil {
		v = newMetaValidator()
	}
	err := v.Struct(view)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return etderr.New(etderr.ValidationFailed, "%s is required", verrs[0].Field())
	}
	return etderr.Wrap(etderr.ValidationFailed, err, "metadata is invalid")
}

// Create führt die Ingestion-Saga aus. Schlägt ein Schritt fehl, werden alle bereits
// abgeschlossenen Schritte in umgekehrter Reihenfolge zurückgenommen.
func (s *EtdEntryService) Create(ctx context.Context, meta *models.EtdEntryMeta, doc DocumentUpload, ownerID uint) (*models.EtdEntry, error) {
	if err := s.ValidateMeta(meta); err != nil {
		return nil, err
	}
	if doc.ContentType != PDFContentType {
		return nil, etderr.New(etderr.ValidationFailed, "document must be %s, got %q", PDFContentType, doc.ContentType)
	}

	log := s.Logger.With(zap.Uint("owner_id", ownerID))
	sg := newSaga(log)

	// 1. leerer Record
	owner := ownerID
	entry := &models.EtdEntry{UserID: &owner}
	id, err := s.Repo.Insert(ctx, entry)
	if err != nil {
		return nil, sg.fail(ctx, stepRecord, err)
	}
	log = log.With(zap.Uint("entry_id", id))
	sg.log = log
	sg.push(stepRecord, func(ctx context.Context) error {
		return s.Repo.Delete(ctx, id)
	})

	// 2. Metadaten mit ID und Ausgabedatum in den Index
	stamped := *meta
	issued := s.Now().UTC()
	stamped.ID = id
	stamped.DateIssued = &issued
	if err := s.Index.Index(ctx, &stamped); err != nil {
		return nil, sg.fail(ctx, stepIndex, err)
	}
	sg.push(stepIndex, func(ctx context.Context) error {
		return s.Index.DeleteByID(ctx, id)
	})

	// 3. Dateiname
	filename, err := storage.Sanitize(doc.Filename)
	if err != nil {
		log.Warn("Dokument-Dateiname abgelehnt", zap.Bool("security", true), zap.String("filename", doc.Filename), zap.Error(err))
		sg.rollback(ctx)
		sagaFailuresCounter.WithLabelValues(stepFilename).Inc()
		return nil, etderr.Wrap(etderr.ValidationFailed, err, "document filename is not acceptable")
	}

	// 4. Verzeichnis
	dir := s.Paths.DirFor(id)
	if err := s.Store.CreateDirectory(ctx, dir); err != nil {
		return nil, sg.fail(ctx, stepDirectory, err)
	}
	sg.push(stepDirectory, func(ctx context.Context) error {
		return s.Store.DeleteDirectory(ctx, dir)
	})

	// 5. Dokument schreiben
	docPath, err := s.Paths.DocumentPath(id, filename)
	if err != nil {
		return nil, sg.fail(ctx, stepFile, err)
	}
	if err := s.Store.WriteFile(ctx, docPath, doc.Data); err != nil {
		return nil, sg.fail(ctx, stepFile, err)
	}

	// 6. Dokument-Referenz anhängen
	entry.Documents = append(entry.Documents, models.EtdDocument{EtdEntryID: id, Filename: filename})
	if err := s.Repo.Update(ctx, entry); err != nil {
		return nil, sg.fail(ctx, stepLink, err)
	}

	entriesCreatedCounter.Inc()
	log.Info("ETD-Eintrag angelegt", zap.String("filename", filename), zap.Int("bytes", len(doc.Data)))
	return entry, nil
}

// Delete führt die Removal-Saga aus: erst Index, dann Record, dann best-effort das Verzeichnis.
func (s *EtdEntryService) Delete(ctx context.Context, id uint) error {
	log := s.Logger.With(zap.Uint("entry_id", id))

	exists, err := s.Repo.ExistsByID(ctx, id)
	if err != nil {
		log.Error("Existenzprüfung fehlgeschlagen", zap.Error(err))
		return etderr.Wrap(etderr.DeletionFailed, err, "could not delete record")
	}
	if !exists {
		return etderr.New(etderr.RecordNotFound, "record %d not found", id)
	}

	// Für den Fall, dass der Record nicht entfernt werden kann.
	previous, err := s.Index.FindByID(ctx, id)
	if err != nil && !errors.Is(err, search.ErrNotFound) {
		log.Warn("Metadaten vor dem Löschen nicht lesbar", zap.Error(err))
	}

	if err := s.Index.DeleteByID(ctx, id); err != nil {
		log.Error("Metadaten konnten nicht aus dem Index entfernt werden", zap.Error(err))
		return etderr.Wrap(etderr.DeletionFailed, err, "could not delete record")
	}

	if err := s.Repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return etderr.New(etderr.RecordNotFound, "record %d not found", id)
		}
		log.Error("Record konnte nicht gelöscht werden", zap.Error(err))
		if previous != nil {
			if rerr := s.Index.Index(context.WithoutCancel(ctx), previous); rerr != nil {
				log.Error("Metadaten konnten nicht wiederhergestellt werden", zap.Error(rerr))
			}
		}
		return etderr.Wrap(etderr.DeletionFailed, err, "could not delete record")
	}

	if err := s.Store.DeleteDirectory(ctx, s.Paths.DirFor(id)); err != nil {
		log.Warn("Verzeichnis konnte nicht entfernt werden", zap.Error(err))
	}

	entriesDeletedCounter.Inc()
	log.Info("ETD-Eintrag gelöscht")
	return nil
}

// GetEntry liefert einen vollständigen Eintrag. Einträge ohne Dokument gelten als nicht vorhanden.
func (s *EtdEntryService) GetEntry(ctx context.Context, id uint) (*models.EtdEntry, error) {
	entry, err := s.Repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, etderr.New(etderr.RecordNotFound, "record %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	if !entry.Ready() {
		return nil, etderr.New(etderr.RecordNotFound, "record %d is not ready", id)
	}
	return entry, nil
}

// GetMeta liefert die Metadaten eines Eintrags aus dem Index.
func (s *EtdEntryService) GetMeta(ctx context.Context, id uint) (*models.EtdEntryMeta, error) {
	meta, err := s.Index.FindByID(ctx, id)
	if errors.Is(err, search.ErrNotFound) {
		return nil, etderr.New(etderr.RecordNotFound, "metadata of record %d not found", id)
	}
	return meta, err
}

// MetasForEntries lädt die Metadaten zu entries in deren Reihenfolge.
func (s *EtdEntryService) MetasForEntries(ctx context.Context, entries []models.EtdEntry) ([]models.EtdEntryMeta, error) {
	if len(entries) == 0 {
		return []models.EtdEntryMeta{}, nil
	}
	ids := make([]uint, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return s.Index.FindAllByIDs(ctx, ids)
}

// EntriesOfUser liefert die vollständigen Einträge eines Besitzers.
func (s *EtdEntryService) EntriesOfUser(ctx context.Context, userID uint) ([]models.EtdEntry, error) {
	entries, err := s.Repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ready := make([]models.EtdEntry, 0, len(entries))
	for _, e := range entries {
		if e.Ready() {
			ready = append(ready, e)
		}
	}
	return ready, nil
}

// OpenDocument öffnet das erste Dokument eines Eintrags. Der Aufrufer schließt den Reader.
func (s *EtdEntryService) OpenDocument(ctx context.Context, id uint) (io.ReadCloser, string, error) {
	entry, err := s.GetEntry(ctx, id)
	if err != nil {
		return nil, "", err
	}
	filename := entry.Documents[0].Filename
	p, err := s.Paths.DocumentPath(id, filename)
	if err != nil {
		s.Logger.Warn("Gespeicherter Dateiname ungültig", zap.Bool("security", true), zap.Uint("entry_id", id), zap.String("filename", filename))
		return nil, "", err
	}
	rc, err := s.Store.OpenForRead(ctx, p)
	if errors.Is(err, storage.ErrNotExist) {
		s.Logger.Error("Dokument fehlt in der Ablage", zap.Uint("entry_id", id), zap.String("path", p))
		return nil, "", etderr.New(etderr.RecordNotFound, "document of record %d not found", id)
	}
	if err != nil {
		return nil, "", err
	}
	return rc, filename, nil
}
