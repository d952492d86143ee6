package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"time"

	"etd-catalog/config"
	"etd-catalog/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// backupBucket ist der Ausschnitt des S3-Clients, den Upload und Rotation brauchen.
type backupBucket interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

func runBackup(cmd *cobra.Command, args []string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.S3Bucket == "" || cfg.S3URL == "" {
		return errors.New("backup needs S3_URL and S3_BUCKET")
	}

	logger.Info("Starte Backup-Prozess...")
	dump, err := createDump(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("create database dump: %w", err)
	}
	client, err := storage.NewS3Client(cfg)
	if err != nil {
		return fmt.Errorf("create s3 client: %w", err)
	}

	key := backupKey(cfg.BackupPrefix, time.Now())
	if _, err := client.PutObject(cmd.Context(), &s3.PutObjectInput{
		Bucket:        aws.String(cfg.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(dump),
		ContentLength: aws.Int64(int64(len(dump))),
		ContentType:   aws.String("application/gzip"),
	}); err != nil {
		return fmt.Errorf("upload backup: %w", err)
	}
	logger.Info("Backup hochgeladen", zap.String("bucket", cfg.S3Bucket), zap.String("key", key), zap.Int("bytes", len(dump)))

	deleted, err := rotateBackups(cmd.Context(), client, cfg.S3Bucket, cfg.BackupPrefix, cfg.KeepBackups, logger)
	if err != nil {
		return fmt.Errorf("rotate backups: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Backup s3://%s/%s written, %d old backups removed\n", cfg.S3Bucket, key, deleted)
	return nil
}

func backupKey(prefix string, now time.Time) string {
	return fmt.Sprintf("%sbackup-%s.sql.gz", prefix, now.UTC().Format("2006-01-02T15-04-05Z"))
}

// createDump ruft pg_dump auf und komprimiert die Ausgabe.
func createDump(ctx context.Context, cfg *config.Config) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "pg_dump",
		"-h", cfg.DBHost,
		"-p", strconv.Itoa(cfg.DBPort),
		"-U", cfg.DBUser,
		"-d", cfg.DBName,
		"-w", // Passwort kommt über PGPASSWORD
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+cfg.DBPassword)
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := io.Copy(gz, stdout); err != nil {
		_ = cmd.Wait()
		return nil, err
	}
	if err := gz.Close(); err != nil {
		_ = cmd.Wait()
		return nil, err
	}
	if err := cmd.Wait(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// rotateBackups behält die keep neuesten Objekte unter prefix und löscht den Rest.
func rotateBackups(ctx context.Context, client backupBucket, bucket, prefix string, keep int, log *zap.Logger) (int, error) {
	if prefix == "" {
		return 0, errors.New("refusing to rotate without a backup prefix")
	}
	var objects []types.Object
	paginator := s3.NewListObjectsV2Paginator(client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		objects = append(objects, page.Contents...)
	}

	if len(objects) <= keep {
		log.Info("Keine Rotation nötig", zap.Int("backups", len(objects)), zap.Int("keep", keep))
		return 0, nil
	}

	sort.Slice(objects, func(i, j int) bool {
		return aws.ToTime(objects[i].LastModified).After(aws.ToTime(objects[j].LastModified))
	})

	deleted := 0
	for _, obj := range objects[keep:] {
		log.Info("Lösche altes Backup", zap.String("key", aws.ToString(obj.Key)))
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    obj.Key,
		}); err != nil {
			log.Error("Backup konnte nicht gelöscht werden", zap.String("key", aws.ToString(obj.Key)), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}
