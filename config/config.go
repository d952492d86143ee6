package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort    string `envconfig:"HTTP_PORT" default:"4242"`
	MaxUploadMB int64  `envconfig:"MAX_UPLOAD_MB" default:"64"`

	// Identität kommt aus einem vorgeschalteten, bereits verifizierten Auth-Proxy
	IdentityHeader     string `envconfig:"IDENTITY_HEADER" default:"X-Forwarded-User"`
	IdentityNameHeader string `envconfig:"IDENTITY_NAME_HEADER" default:"X-Forwarded-Name"`

	// Dokumentenablage: local oder s3
	StoreBackend  string `envconfig:"STORE_BACKEND" default:"local"`
	DocumentRoot  string `envconfig:"DOCUMENT_ROOT" default:"etd"`
	LocalStoreDir string `envconfig:"LOCAL_STORE_DIR" default:"./data"`

	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION"`
	S3Bucket string `envconfig:"S3_BUCKET"`

	// Suchindex: weaviate oder postgres
	SearchBackend string `envconfig:"SEARCH_BACKEND" default:"weaviate"`
	WeaviateURL   string `envconfig:"WEAVIATE_URL" default:"http://localhost:8080"`
	WeaviateClass string `envconfig:"WEAVIATE_CLASS" default:"EtdEntryMeta"`

	// Orphan-Abgleich für abgebrochene Sagas
	ReconcileSchedule string        `envconfig:"RECONCILE_SCHEDULE" default:"*/15 * * * *"`
	OrphanGrace       time.Duration `envconfig:"ORPHAN_GRACE" default:"10m"`

	InserterUser    string `envconfig:"INSERTER_USER" default:"etd-inserter"`
	InserterWorkers int    `envconfig:"INSERTER_WORKERS" default:"5"`

	// Datenbank-Backups landen im S3-Bucket unter BackupPrefix
	BackupPrefix string `envconfig:"BACKUP_PREFIX" default:"backups/"`
	KeepBackups  int    `envconfig:"KEEP_BACKUPS" default:"4"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Validate prüft die backend-abhängigen Pflichtfelder.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "local":
		if c.LocalStoreDir == "" {
			return errors.New("LOCAL_STORE_DIR must be set for local store")
		}
	case "s3":
		if c.S3Key == "" || c.S3Secret == "" || c.S3URL == "" || c.S3Region == "" || c.S3Bucket == "" {
			return errors.New("S3_KEY, S3_SECRET, S3_URL, S3_REGION and S3_BUCKET must be set for s3 store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.SearchBackend {
	case "weaviate":
		if c.WeaviateURL == "" || c.WeaviateClass == "" {
			return errors.New("WEAVIATE_URL and WEAVIATE_CLASS must be set for weaviate index")
		}
	case "postgres":
	default:
		return fmt.Errorf("unknown SEARCH_BACKEND %q", c.SearchBackend)
	}

	if c.DocumentRoot == "" {
		return errors.New("DOCUMENT_ROOT must not be empty")
	}
	if c.InserterWorkers < 1 {
		return errors.New("INSERTER_WORKERS must be at least 1")
	}
	return c.validateBackup()
}

// validateBackup verhindert, dass die Backup-Rotation Dokumente im selben Bucket erfasst.
// Die Rotation arbeitet auf einem reinen String-Präfix, nicht auf Verzeichnissen.
func (c *Config) validateBackup() error {
	if strings.TrimSpace(c.BackupPrefix) == "" {
		return errors.New("BACKUP_PREFIX must not be empty")
	}
	if c.KeepBackups < 1 {
		return errors.New("KEEP_BACKUPS must be at least 1")
	}
	docs := strings.Trim(c.DocumentRoot, "/") + "/"
	backups := strings.TrimLeft(c.BackupPrefix, "/")
	if backups == "" || strings.HasPrefix(docs, backups) || strings.HasPrefix(backups, docs) {
		return fmt.Errorf("BACKUP_PREFIX %q overlaps DOCUMENT_ROOT %q", c.BackupPrefix, c.DocumentRoot)
	}
	return nil
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return &c, err
	}
	return &c, c.Validate()
}
