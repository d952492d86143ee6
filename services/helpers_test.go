package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"etd-catalog/database/dbtest"
	"etd-catalog/models"
	"etd-catalog/repository"
	"etd-catalog/search"
	"etd-catalog/storage"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

var errInjected = errors.New("injected failure")

// callLog zeichnet die Store-Aufrufe in Reihenfolge auf.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type faultyRepo struct {
	repository.EtdEntryRepository
	log        *callLog
	failInsert bool
	failUpdate bool
	failDelete bool
}

func (r *faultyRepo) Insert(ctx context.Context, e *models.EtdEntry) (uint, error) {
	r.log.add("repo.insert")
	if r.failInsert {
		return 0, errInjected
	}
	return r.EtdEntryRepository.Insert(ctx, e)
}

func (r *faultyRepo) Update(ctx context.Context, e *models.EtdEntry) error {
	r.log.add("repo.update")
	if r.failUpdate {
		return errInjected
	}
	return r.EtdEntryRepository.Update(ctx, e)
}

func (r *faultyRepo) Delete(ctx context.Context, id uint) error {
	r.log.add("repo.delete")
	if r.failDelete {
		return errInjected
	}
	return r.EtdEntryRepository.Delete(ctx, id)
}

type faultyIndex struct {
	search.MetaIndex
	log        *callLog
	failIndex  bool
	failDelete bool
}

func (i *faultyIndex) Index(ctx context.Context, m *models.EtdEntryMeta) error {
	i.log.add("index.index")
	if i.failIndex {
		return errInjected
	}
	return i.MetaIndex.Index(ctx, m)
}

func (i *faultyIndex) FindAllByIDs(ctx context.Context, ids []uint) ([]models.EtdEntryMeta, error) {
	i.log.add("index.find_all")
	return i.MetaIndex.FindAllByIDs(ctx, ids)
}

func (i *faultyIndex) DeleteByID(ctx context.Context, id uint) error {
	i.log.add("index.delete")
	if i.failDelete {
		return errInjected
	}
	return i.MetaIndex.DeleteByID(ctx, id)
}

type faultyStore struct {
	storage.FileStore
	log           *callLog
	failCreateDir bool
	failWrite     bool
	failDeleteDir bool
	onWrite       func()
}

func (s *faultyStore) CreateDirectory(ctx context.Context, dir string) error {
	s.log.add("store.mkdir")
	if s.failCreateDir {
		return errInjected
	}
	return s.FileStore.CreateDirectory(ctx, dir)
}

func (s *faultyStore) WriteFile(ctx context.Context, p string, data []byte) error {
	s.log.add("store.write")
	if s.onWrite != nil {
		s.onWrite()
	}
	if s.failWrite {
		return errInjected
	}
	return s.FileStore.WriteFile(ctx, p, data)
}

func (s *faultyStore) DeleteDirectory(ctx context.Context, dir string) error {
	s.log.add("store.rmdir")
	if s.failDeleteDir {
		return errInjected
	}
	return s.FileStore.DeleteDirectory(ctx, dir)
}

type fixture struct {
	db      *gorm.DB
	log     *callLog
	repo    *faultyRepo
	index   *faultyIndex
	store   *faultyStore
	baseDir string
	entries *EtdEntryService
	users   *UserService
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	logger := zaptest.NewLogger(t)

	local, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	calls := &callLog{}
	f := &fixture{
		db:      db,
		log:     calls,
		repo:    &faultyRepo{EtdEntryRepository: repository.NewEtdEntryRepository(db), log: calls},
		index:   &faultyIndex{MetaIndex: search.NewPostgresIndex(db), log: calls},
		store:   &faultyStore{FileStore: local, log: calls},
		baseDir: local.BaseDir,
		users:   NewUserService(db, logger),
		now:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.entries = NewEtdEntryService(f.repo, f.index, f.store, storage.NewPathMapper("etd"), logger)
	f.entries.Now = func() time.Time { return f.now }
	return f
}

func (f *fixture) user(t *testing.T, externalID string) *models.User {
	t.Helper()
	u, err := f.users.EnsureUser(context.Background(), externalID, externalID)
	require.NoError(t, err)
	return u
}

func (f *fixture) dirExists(id uint) bool {
	_, err := os.Stat(filepath.Join(f.baseDir, "etd", filepath.Base(f.entries.Paths.DirFor(id))))
	return err == nil
}

func (f *fixture) countRows(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func validMeta() *models.EtdEntryMeta {
	return &models.EtdEntryMeta{
		Title:                 "T",
		ContributorAuthor:     "A",
		Publisher:             "P",
		ContributorDepartment: "D",
		Subject:               models.StringList{"X"},
		DescriptionAbstract:   "Y",
	}
}

func pdfUpload(name string) DocumentUpload {
	return DocumentUpload{
		Filename:    name,
		ContentType: PDFContentType,
		Data:        []byte("%PDF-1.4\n%test document\n"),
	}
}
