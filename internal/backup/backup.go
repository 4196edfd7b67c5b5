// Package backup uploads encrypted snapshots of the SQLite database to
// S3-compatible storage on a daily schedule.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ecotrackhq/ecotrack/internal/model"
	"github.com/ecotrackhq/ecotrack/internal/store"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration. The passphrase comes from the
// environment, so scheduled backups need no operator interaction.
type Config struct {
	S3            S3Config
	DBPath        string
	Passphrase    string
	ScheduleHour  int
	RetentionDays int
}

// State represents the backup manager state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

// Status holds the current backup manager status.
type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Manager manages encrypted backups to S3-compatible storage.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback

	db          *sql.DB
	backupStore *store.BackupStore
	client      s3Client
	logger      *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a new backup manager. It is disabled until S3
// credentials and a passphrase are configured.
func NewManager(cfg Config, db *sql.DB, bs *store.BackupStore, logger *slog.Logger, callback StatusCallback) *Manager {
	m := &Manager{
		cfg:         cfg,
		db:          db,
		backupStore: bs,
		logger:      logger,
		callback:    callback,
		status:      Status{State: StateDisabled},
	}

	if cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}

	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Start begins the scheduled backup loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.status.State == StateDisabled {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkSchedule(ctx)
			}
		}
	}()
}

// Stop gracefully stops the backup manager.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Status returns the current backup status.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

func (m *Manager) checkSchedule(ctx context.Context) {
	now := time.Now().UTC()
	if now.Hour() != m.cfg.ScheduleHour || now.Minute() != 0 {
		return
	}

	if _, err := m.RunNow(ctx); err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
	}

	retentionDays := m.cfg.RetentionDays
	if retentionDays <= 0 {
		retentionDays = 30
	}
	if err := m.Cleanup(ctx, retentionDays); err != nil {
		m.logger.Error("backup cleanup failed", "error", err)
	}
}

// RunNow runs a backup immediately and returns the backup record id.
func (m *Manager) RunNow(ctx context.Context) (int64, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()

	if client == nil {
		return 0, fmt.Errorf("backup not configured")
	}

	m.setStatus(Status{State: StateRunning, InProgress: true})

	timestamp := time.Now().UTC().Format("2006-01-02T150405Z")
	filename := fmt.Sprintf("backup-%s.db.enc", timestamp)
	s3Key := "backups/" + filename

	record, err := m.backupStore.Create(filename, s3Key)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return 0, fmt.Errorf("create backup record: %w", err)
	}

	m.backupStore.UpdateStatus(record.ID, model.BackupStatusUploading, "")

	tmpDir := os.TempDir()
	dbCopy := filepath.Join(tmpDir, fmt.Sprintf("ecotrack-backup-%d.db", record.ID))
	encFile := filepath.Join(tmpDir, fmt.Sprintf("ecotrack-backup-%d.db.enc", record.ID))
	defer os.Remove(dbCopy)
	defer os.Remove(encFile)

	// Checkpoint WAL and copy database
	if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return 0, m.fail(record.ID, fmt.Errorf("wal checkpoint: %w", err))
	}

	if err := copyFile(m.cfg.DBPath, dbCopy); err != nil {
		return 0, m.fail(record.ID, fmt.Errorf("copy database: %w", err))
	}

	// Fresh salt per backup; DecryptFile reads it back from the file header.
	salt, err := GenerateSalt()
	if err != nil {
		return 0, m.fail(record.ID, err)
	}
	if err := EncryptFile(dbCopy, encFile, m.cfg.Passphrase, salt); err != nil {
		return 0, m.fail(record.ID, fmt.Errorf("encrypt: %w", err))
	}

	encData, err := os.Open(encFile)
	if err != nil {
		return 0, m.fail(record.ID, fmt.Errorf("open encrypted file: %w", err))
	}
	defer encData.Close()

	stat, _ := encData.Stat()

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(s3Key),
		Body:          encData,
		ContentLength: aws.Int64(stat.Size()),
	})
	if err != nil {
		return 0, m.fail(record.ID, fmt.Errorf("upload to s3: %w", err))
	}

	m.backupStore.UpdateCompleted(record.ID, stat.Size())

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now})

	return record.ID, nil
}

func (m *Manager) fail(recordID int64, err error) error {
	m.backupStore.UpdateStatus(recordID, model.BackupStatusFailed, err.Error())
	m.setStatus(Status{State: StateError, Error: err.Error()})
	return err
}

// Cleanup deletes backups older than the retention period, both the records
// and the S3 objects they point at.
func (m *Manager) Cleanup(ctx context.Context, retentionDays int) error {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()

	if client == nil {
		return nil
	}

	before := time.Now().UTC().AddDate(0, 0, -retentionDays)
	keys, err := m.backupStore.DeleteOlderThan(before)
	if err != nil {
		return fmt.Errorf("delete old backups: %w", err)
	}

	for _, key := range keys {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Error("delete s3 object", "key", key, "error", err)
		}
	}

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
