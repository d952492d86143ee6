package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredDB(t *testing.T) {
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "etd")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "catalog")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredDB(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5432, cfg.DBPort)
	assert.Equal(t, "local", cfg.StoreBackend)
	assert.Equal(t, "weaviate", cfg.SearchBackend)
	assert.Equal(t, "etd", cfg.DocumentRoot)
	assert.Equal(t, 10*time.Minute, cfg.OrphanGrace)
	assert.Equal(t, "host=db user=etd password=secret dbname=catalog port=5432 sslmode=disable", cfg.DSN())
}

func TestLoadS3RequiresCredentials(t *testing.T) {
	setRequiredDB(t)
	t.Setenv("STORE_BACKEND", "s3")
	t.Setenv("S3_KEY", "key")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_SECRET")
}

func TestLoadMissingDBFails(t *testing.T) {
	t.Setenv("DB_HOST", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateUnknownBackends(t *testing.T) {
	cfg := &Config{StoreBackend: "ftp", SearchBackend: "postgres", DocumentRoot: "etd", InserterWorkers: 1, BackupPrefix: "backups/", KeepBackups: 4}
	assert.ErrorContains(t, cfg.Validate(), "STORE_BACKEND")

	cfg.StoreBackend = "local"
	cfg.LocalStoreDir = "/tmp"
	cfg.SearchBackend = "solr"
	assert.ErrorContains(t, cfg.Validate(), "SEARCH_BACKEND")

	cfg.SearchBackend = "postgres"
	assert.NoError(t, cfg.Validate())
}

func TestValidateBackupPrefix(t *testing.T) {
	base := Config{StoreBackend: "local", LocalStoreDir: "/tmp", SearchBackend: "postgres", DocumentRoot: "etd", InserterWorkers: 1, KeepBackups: 4}

	tests := []struct {
		prefix string
		docs   string
		ok     bool
	}{
		{"backups/", "etd", true},
		{"db/backup-", "etd", true},
		{"", "etd", false},
		{"   ", "etd", false},
		{"/", "etd", false},
		{"e", "etd", false},
		{"etd/", "etd", false},
		{"etd/backups/", "etd", false},
		{"/etd/dumps/", "etd/", false},
		{"backups/", "backups/etd", false},
	}
	for _, tt := range tests {
		cfg := base
		cfg.BackupPrefix = tt.prefix
		cfg.DocumentRoot = tt.docs
		err := cfg.Validate()
		if tt.ok {
			assert.NoError(t, err, "prefix %q docs %q", tt.prefix, tt.docs)
		} else {
			assert.ErrorContains(t, err, "BACKUP_PREFIX", "prefix %q docs %q", tt.prefix, tt.docs)
		}
	}

	cfg := base
	cfg.BackupPrefix = "backups/"
	cfg.KeepBackups = 0
	assert.ErrorContains(t, cfg.Validate(), "KEEP_BACKUPS")
}
