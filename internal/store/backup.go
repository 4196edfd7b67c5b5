package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ecotrackhq/ecotrack/internal/model"
)

type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

func scanBackup(scanner interface{ Scan(...any) error }) (*model.Backup, error) {
	var b model.Backup
	var errMsg sql.NullString
	var completedAt sql.NullTime
	err := scanner.Scan(&b.ID, &b.Filename, &b.S3Key, &b.SizeBytes, &b.Status, &errMsg, &completedAt, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	b.ErrorMessage = errMsg.String
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}
	return &b, nil
}

const backupCols = `id, filename, s3_key, size_bytes, status, error_message, completed_at, created_at`

func (s *BackupStore) Create(filename, s3Key string) (*model.Backup, error) {
	result, err := s.db.Exec(
		`INSERT INTO backups (filename, s3_key, status) VALUES (?, ?, ?)`,
		filename, s3Key, model.BackupStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("create backup record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+backupCols+` FROM backups WHERE id = ?`, id)
	return scanBackup(row)
}

func (s *BackupStore) UpdateStatus(id int64, status model.BackupStatus, errorMsg string) error {
	var errPtr *string
	if errorMsg != "" {
		errPtr = &errorMsg
	}
	_, err := s.db.Exec(`UPDATE backups SET status = ?, error_message = ? WHERE id = ?`, status, errPtr, id)
	if err != nil {
		return fmt.Errorf("update backup status: %w", err)
	}
	return nil
}

func (s *BackupStore) UpdateCompleted(id, sizeBytes int64) error {
	_, err := s.db.Exec(
		`UPDATE backups SET status = ?, size_bytes = ?, completed_at = datetime('now') WHERE id = ?`,
		model.BackupStatusCompleted, sizeBytes, id,
	)
	if err != nil {
		return fmt.Errorf("update backup completed: %w", err)
	}
	return nil
}

func (s *BackupStore) List(limit int) ([]model.Backup, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT `+backupCols+` FROM backups ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	var backups []model.Backup
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	return backups, rows.Err()
}

// DeleteOlderThan deletes records before the cutoff and returns their S3 keys
// so the caller can remove the objects.
func (s *BackupStore) DeleteOlderThan(before time.Time) ([]string, error) {
	rows, err := s.db.Query(`SELECT s3_key FROM backups WHERE created_at < ?`, before)
	if err != nil {
		return nil, fmt.Errorf("select old backups: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan s3 key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := s.db.Exec(`DELETE FROM backups WHERE created_at < ?`, before); err != nil {
		return nil, fmt.Errorf("delete old backups: %w", err)
	}
	return keys, nil
}
