package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CheckpointManager snapshots the database file so destructive operations
// (bulk import, full reset) can be undone.
type CheckpointManager struct {
	db             *sql.DB
	dbPath         string
	checkpointsDir string
}

// CheckpointMetadata contains metadata about a checkpoint, stored as a
// sidecar JSON file next to the snapshot.
type CheckpointMetadata struct {
	CreatedAt     time.Time      `json:"created_at"`
	RowCounts     map[string]int `json:"row_counts"`
	ID            string         `json:"id"`
	Description   string         `json:"description"`
	FileSize      int64          `json:"file_size"`
	SchemaVersion int            `json:"schema_version"`
	IsAuto        bool           `json:"is_auto"`
}

// CheckpointInfo represents information about a checkpoint for listing.
type CheckpointInfo struct {
	ID            string
	CreatedAt     time.Time
	Description   string
	FileSize      int64
	Transactions  int
	Accounts      int
	Categories    int
	Transfers     int
	SchemaVersion int
	IsAuto        bool
}

// Common errors.
var (
	ErrCheckpointNotFound  = errors.New("checkpoint not found")
	ErrCheckpointCorrupted = errors.New("checkpoint integrity check failed")
	ErrCheckpointExists    = errors.New("checkpoint already exists")
)

// NewCheckpointManager creates a new checkpoint manager.
func NewCheckpointManager(db *sql.DB, dbPath string) (*CheckpointManager, error) {
	// Determine checkpoints directory
	dir := filepath.Dir(dbPath)
	checkpointsDir := filepath.Join(dir, "checkpoints")

	// Ensure checkpoints directory exists
	if err := os.MkdirAll(checkpointsDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &CheckpointManager{
		db:             db,
		dbPath:         dbPath,
		checkpointsDir: checkpointsDir,
	}, nil
}

// Create creates a new checkpoint with the given tag and description.
func (cm *CheckpointManager) Create(ctx context.Context, tag, description string) (*CheckpointInfo, error) {
	// Generate checkpoint ID if not provided
	if tag == "" {
		tag = fmt.Sprintf("checkpoint-%s", time.Now().Format("2006-01-02-150405"))
	}

	// Validate tag (no path traversal)
	if strings.Contains(tag, "/") || strings.Contains(tag, "\\") || strings.Contains(tag, "..") {
		return nil, errors.New("invalid checkpoint tag: cannot contain path separators")
	}

	// Check if checkpoint already exists
	checkpointPath := filepath.Join(cm.checkpointsDir, tag+".db")
	if _, err := os.Stat(checkpointPath); err == nil {
		return nil, ErrCheckpointExists
	}

	// Get current schema version
	var schemaVersion int
	if err := cm.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&schemaVersion); err != nil {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}

	// Collect row counts
	rowCounts, err := cm.collectRowCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect row counts: %w", err)
	}

	// Perform SQLite backup
	if backupErr := cm.backupDatabase(ctx, checkpointPath); backupErr != nil {
		return nil, fmt.Errorf("failed to backup database: %w", backupErr)
	}

	// Get checkpoint file size
	checkpointStat, err := os.Stat(checkpointPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat checkpoint: %w", err)
	}

	// Create metadata
	metadata := CheckpointMetadata{
		ID:            tag,
		CreatedAt:     time.Now().UTC(),
		Description:   description,
		FileSize:      checkpointStat.Size(),
		RowCounts:     rowCounts,
		SchemaVersion: schemaVersion,
		IsAuto:        false,
	}

	// Save metadata
	metadataPath := filepath.Join(cm.checkpointsDir, tag+".meta.json")
	if err := cm.saveMetadata(metadataPath, metadata); err != nil {
		// Clean up checkpoint file on metadata save failure
		if rmErr := os.Remove(checkpointPath); rmErr != nil {
			slog.Error("failed to remove checkpoint file after metadata save failure", "error", rmErr)
		}
		return nil, fmt.Errorf("failed to save metadata: %w", err)
	}

	return checkpointInfoFromMetadata(&metadata), nil
}

// List returns all checkpoints, newest first.
func (cm *CheckpointManager) List(_ context.Context) ([]CheckpointInfo, error) {
	entries, err := os.ReadDir(cm.checkpointsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoints directory: %w", err)
	}

	checkpoints := make([]CheckpointInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}

		metadataPath := filepath.Join(cm.checkpointsDir, entry.Name())
		metadata, err := cm.loadMetadata(metadataPath)
		if err != nil {
			// Skip corrupted metadata files
			continue
		}

		checkpoints = append(checkpoints, *checkpointInfoFromMetadata(metadata))
	}

	// Sort by creation time (newest first)
	for i := 0; i < len(checkpoints)-1; i++ {
		for j := i + 1; j < len(checkpoints); j++ {
			if checkpoints[i].CreatedAt.Before(checkpoints[j].CreatedAt) {
				checkpoints[i], checkpoints[j] = checkpoints[j], checkpoints[i]
			}
		}
	}

	return checkpoints, nil
}

// Restore restores the database from a checkpoint. The storage handle must
// be re-opened afterwards; Restore closes the underlying connection.
func (cm *CheckpointManager) Restore(_ context.Context, checkpointID string) error {
	// Validate checkpoint ID
	if strings.Contains(checkpointID, "/") || strings.Contains(checkpointID, "\\") || strings.Contains(checkpointID, "..") {
		return errors.New("invalid checkpoint ID: cannot contain path separators")
	}

	checkpointPath := filepath.Join(cm.checkpointsDir, checkpointID+".db")
	metadataPath := filepath.Join(cm.checkpointsDir, checkpointID+".meta.json")

	// Check if checkpoint exists
	if _, err := os.Stat(checkpointPath); err != nil {
		if os.IsNotExist(err) {
			return ErrCheckpointNotFound
		}
		return fmt.Errorf("failed to access checkpoint: %w", err)
	}

	// Load and verify metadata
	if _, err := cm.loadMetadata(metadataPath); err != nil {
		return fmt.Errorf("failed to load checkpoint metadata: %w", err)
	}

	// Verify checkpoint integrity
	if err := cm.verifyCheckpointIntegrity(checkpointPath); err != nil {
		return ErrCheckpointCorrupted
	}

	// Close current database connection
	if err := cm.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	// Create backup of current database before restore
	backupPath := cm.dbPath + ".restore-backup"
	if err := cm.copyFile(cm.dbPath, backupPath); err != nil {
		return fmt.Errorf("failed to backup current database: %w", err)
	}

	// Restore checkpoint
	if err := cm.copyFile(checkpointPath, cm.dbPath); err != nil {
		// Attempt to restore backup on failure
		if restoreErr := cm.copyFile(backupPath, cm.dbPath); restoreErr != nil {
			slog.Error("failed to restore backup after checkpoint restore failure", "error", restoreErr)
		}
		return fmt.Errorf("failed to restore checkpoint: %w", err)
	}

	// Remove stale WAL and SHM files so the restored snapshot is authoritative
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(cm.dbPath + suffix); err != nil && !os.IsNotExist(err) {
			slog.Error("failed to remove stale file", "error", err, "path", cm.dbPath+suffix)
		}
	}

	// Remove backup
	if err := os.Remove(backupPath); err != nil {
		slog.Error("failed to remove backup file", "error", err)
	}

	return nil
}

// Delete removes a checkpoint and its metadata.
func (cm *CheckpointManager) Delete(_ context.Context, checkpointID string) error {
	// Validate checkpoint ID
	if strings.Contains(checkpointID, "/") || strings.Contains(checkpointID, "\\") || strings.Contains(checkpointID, "..") {
		return errors.New("invalid checkpoint ID: cannot contain path separators")
	}

	checkpointPath := filepath.Join(cm.checkpointsDir, checkpointID+".db")
	metadataPath := filepath.Join(cm.checkpointsDir, checkpointID+".meta.json")

	// Check if checkpoint exists
	if _, err := os.Stat(checkpointPath); err != nil {
		if os.IsNotExist(err) {
			return ErrCheckpointNotFound
		}
		return fmt.Errorf("failed to access checkpoint: %w", err)
	}

	// Remove files
	if err := os.Remove(checkpointPath); err != nil {
		return fmt.Errorf("failed to remove checkpoint file: %w", err)
	}

	if err := os.Remove(metadataPath); err != nil {
		// Non-fatal: metadata might not exist
		slog.Debug("failed to remove metadata file", "error", err, "path", metadataPath)
	}

	return nil
}

// AutoCheckpoint creates an automatic checkpoint with a generated name and
// prunes old automatic checkpoints.
func (cm *CheckpointManager) AutoCheckpoint(ctx context.Context, prefix string) error {
	tag := fmt.Sprintf("auto-%s-%s", prefix, time.Now().Format("2006-01-02-150405"))
	description := fmt.Sprintf("Automatic checkpoint before %s", prefix)

	info, err := cm.Create(ctx, tag, description)
	if err != nil {
		return fmt.Errorf("failed to create auto-checkpoint: %w", err)
	}

	// Mark as auto in the sidecar metadata
	metadataPath := filepath.Join(cm.checkpointsDir, info.ID+".meta.json")
	metadata, err := cm.loadMetadata(metadataPath)
	if err == nil {
		metadata.IsAuto = true
		if saveErr := cm.saveMetadata(metadataPath, *metadata); saveErr != nil {
			slog.Error("failed to save updated metadata for auto-checkpoint", "error", saveErr)
		}
	}

	// Clean up old auto-checkpoints if needed
	if err := cm.cleanupOldAutoCheckpoints(ctx); err != nil {
		// Non-fatal: log but continue
		slog.Warn("failed to clean up old auto-checkpoints", "error", err)
	}

	return nil
}

func (cm *CheckpointManager) cleanupOldAutoCheckpoints(ctx context.Context) error {
	checkpoints, err := cm.List(ctx)
	if err != nil {
		return err
	}

	// Keep only the 5 most recent auto-checkpoints
	const maxAutoCheckpoints = 5
	autoCount := 0

	for _, cp := range checkpoints {
		if cp.IsAuto {
			autoCount++
			if autoCount > maxAutoCheckpoints {
				if err := cm.Delete(ctx, cp.ID); err != nil {
					// Non-fatal: continue cleanup
					slog.Debug("failed to delete old auto-checkpoint during cleanup", "error", err, "checkpoint", cp.ID)
				}
			}
		}
	}

	return nil
}

// Helper methods

func checkpointInfoFromMetadata(metadata *CheckpointMetadata) *CheckpointInfo {
	return &CheckpointInfo{
		ID:            metadata.ID,
		CreatedAt:     metadata.CreatedAt,
		Description:   metadata.Description,
		FileSize:      metadata.FileSize,
		Transactions:  metadata.RowCounts["transactions"],
		Accounts:      metadata.RowCounts["accounts"],
		Categories:    metadata.RowCounts["categories"],
		Transfers:     metadata.RowCounts["transfers"],
		SchemaVersion: metadata.SchemaVersion,
		IsAuto:        metadata.IsAuto,
	}
}

func (cm *CheckpointManager) collectRowCounts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)

	// Use explicit queries for each table to avoid SQL injection
	tableQueries := map[string]string{
		"transactions": "SELECT COUNT(*) FROM transactions",
		"accounts":     "SELECT COUNT(*) FROM accounts",
		"categories":   "SELECT COUNT(*) FROM categories",
		"transfers":    "SELECT COUNT(*) FROM transfers",
	}

	for table, query := range tableQueries {
		var count int
		if err := cm.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			// Table might not exist in older schemas
			counts[table] = 0
			continue
		}
		counts[table] = count
	}

	return counts, nil
}

func (cm *CheckpointManager) backupDatabase(ctx context.Context, destPath string) error {
	// Ensure WAL content is folded into the main database file first
	if _, err := cm.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint WAL: %w", err)
	}

	// Validate destPath to prevent SQL injection through the file name
	if strings.Contains(destPath, "'") || strings.Contains(destPath, "\"") || strings.Contains(destPath, ";") {
		return fmt.Errorf("invalid destination path: contains forbidden characters")
	}
	if strings.Contains(destPath, "..") {
		return fmt.Errorf("invalid destination path")
	}

	// Use VACUUM INTO for an atomic, compacted copy (SQLite 3.27.0+)
	// #nosec G201 - destPath is validated above
	query := fmt.Sprintf("VACUUM INTO '%s'", destPath)
	if _, err := cm.db.ExecContext(ctx, query); err != nil {
		// Fallback to file copy if VACUUM INTO not supported
		return cm.copyFile(cm.dbPath, destPath)
	}

	return nil
}

func (cm *CheckpointManager) copyFile(src, dst string) error {
	// Validate paths to prevent directory traversal
	cleanSrc := filepath.Clean(src)
	cleanDst := filepath.Clean(dst)
	if cleanSrc != src || cleanDst != dst || strings.Contains(src, "..") || strings.Contains(dst, "..") {
		return fmt.Errorf("invalid file paths")
	}

	// Create temporary file first for atomic operation
	tmpDst := dst + ".tmp"

	// #nosec G304 - cleanSrc is validated above
	source, err := os.Open(cleanSrc)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := source.Close(); closeErr != nil {
			slog.Error("failed to close source file", "error", closeErr)
		}
	}()

	// #nosec G304 - tmpDst derives from the validated destination
	destination, err := os.Create(tmpDst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(destination, source); err != nil {
		if closeErr := destination.Close(); closeErr != nil {
			slog.Error("failed to close destination file after copy error", "error", closeErr)
		}
		if rmErr := os.Remove(tmpDst); rmErr != nil {
			slog.Error("failed to remove temporary file after copy error", "error", rmErr)
		}
		return err
	}

	if err := destination.Close(); err != nil {
		if removeErr := os.Remove(tmpDst); removeErr != nil {
			slog.Error("failed to remove temporary file after close error", "error", removeErr)
		}
		return err
	}

	// Atomic rename
	return os.Rename(tmpDst, dst)
}

func (cm *CheckpointManager) saveMetadata(path string, metadata CheckpointMetadata) error {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return err
	}

	// Write to temporary file first
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	// Atomic rename
	return os.Rename(tmpPath, path)
}

func (cm *CheckpointManager) loadMetadata(path string) (*CheckpointMetadata, error) {
	// Validate path to prevent directory traversal
	if strings.Contains(path, "..") {
		return nil, fmt.Errorf("invalid metadata path")
	}
	// #nosec G304 - path is validated above
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var metadata CheckpointMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, err
	}

	return &metadata, nil
}

func (cm *CheckpointManager) verifyCheckpointIntegrity(path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}

	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}

	return nil
}
