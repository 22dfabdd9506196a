package backup

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"pontovault/internal/audit"
	"pontovault/internal/database"
	"pontovault/internal/logging"
)

// EngineConfig holds engine-level policy settings
type EngineConfig struct {
	MaxBackupAge   time.Duration
	MaxBackupSize  int64
	DefaultTimeout time.Duration
}

// DefaultEngineConfig returns the standard policy settings
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxBackupAge:   MaxBackupAge,
		MaxBackupSize:  MaxBackupSize,
		DefaultTimeout: 10 * time.Minute,
	}
}

// Engine creates, validates and restores encrypted backups
type Engine struct {
	store       database.Store
	archives    ArchiveStore
	crypto      *CryptoManager
	compression *CompressionManager
	sanitizer   *Sanitizer
	recorder    audit.Recorder
	logger      *logging.Logger
	config      EngineConfig

	// guards production restores; sandbox restores do not take it
	restoreMu sync.Mutex
}

// NewEngine creates a backup engine
func NewEngine(store database.Store, archives ArchiveStore, recorder audit.Recorder, logger *logging.Logger, config EngineConfig) *Engine {
	if config.MaxBackupAge == 0 {
		config.MaxBackupAge = MaxBackupAge
	}
	if config.MaxBackupSize == 0 {
		config.MaxBackupSize = MaxBackupSize
	}
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = 10 * time.Minute
	}

	return &Engine{
		store:       store,
		archives:    archives,
		crypto:      NewCryptoManager(),
		compression: NewCompressionManager(),
		sanitizer:   NewSanitizer(),
		recorder:    recorder,
		logger:      logger,
		config:      config,
	}
}

// payload is the plaintext content of an archive
type payload struct {
	Version     string                              `json:"version"`
	CreatedAt   time.Time                           `json:"created_at"`
	Tables      map[string][]map[string]interface{} `json:"tables"`
	RecordCount int                                 `json:"record_count"`
}

// CreateBackup collects, sanitizes, compresses and seals a snapshot of the
// configured tables.
func (e *Engine) CreateBackup(ctx context.Context, password string, opts CreateOptions) (*Archive, error) {
	startTime := time.Now()
	backupID := GenerateBackupID()

	if err := CheckPasswordPolicy(password); err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.config.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	archive, err := e.createBackup(ctx, backupID, password, opts)

	duration := time.Since(startTime)
	e.logger.LogBackupOperation("create", backupID, duration, err)
	e.recordBackupEvent("BACKUP_CREATE", backupID, duration, err)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, NewTimeoutError("backup exceeded its duration budget", err).
				WithContext("backup_id", backupID).
				WithContext("timeout", timeout.String())
		}
		return nil, err
	}

	return archive, nil
}

func (e *Engine) createBackup(ctx context.Context, backupID, password string, opts CreateOptions) (*Archive, error) {
	tables := opts.Tables
	if len(tables) == 0 {
		tables = append([]string{}, DefaultTables...)
		if opts.IncludeBiometric {
			tables = append(tables, "biometric_data")
		}
	}

	content := make(map[string][]map[string]interface{}, len(tables))
	recordCount := 0

	for _, table := range tables {
		records, err := e.collectTable(ctx, table, opts.IncludeBiometric)
		if err != nil {
			return nil, err
		}
		content[table] = records
		recordCount += len(records)
	}

	p := payload{
		Version:     FormatVersion,
		CreatedAt:   time.Now().UTC(),
		Tables:      content,
		RecordCount: recordCount,
	}

	plaintext, err := json.Marshal(p)
	if err != nil {
		return nil, NewStructureError("failed to serialize backup payload", err)
	}
	dataHash := CalculateDataChecksum(plaintext)

	compression := opts.Compression
	if compression == "" {
		compression = CompressionTypeGzip
	}
	compressed, err := e.compression.Compress(plaintext, compression, opts.CompressionLevel)
	if err != nil {
		return nil, err
	}
	compressedHash := CalculateDataChecksum(compressed)

	salt, err := e.crypto.KeyManager().GenerateSalt()
	if err != nil {
		return nil, err
	}
	iv, err := e.crypto.KeyManager().GenerateIV()
	if err != nil {
		return nil, err
	}
	key := e.crypto.KeyManager().DeriveKey(password, salt)

	ciphertext, tag, err := e.crypto.Seal(key, iv, compressed)
	if err != nil {
		return nil, err
	}

	if int64(len(ciphertext)) > e.config.MaxBackupSize {
		return nil, NewPolicyError("backup exceeds the maximum archive size", nil).
			WithContext("size", len(ciphertext)).
			WithContext("limit", e.config.MaxBackupSize)
	}

	archive := &Archive{
		ID:            backupID,
		CreatedAt:     p.CreatedAt,
		FormatVersion: FormatVersion,
		Algorithm:     Algorithm,
		SaltHex:       hex.EncodeToString(salt),
		IVHex:         hex.EncodeToString(iv),
		TagHex:        hex.EncodeToString(tag),
		Ciphertext:    ciphertext,
		Metadata: Metadata{
			TableNames:     tables,
			RecordCount:    recordCount,
			OriginalSize:   int64(len(plaintext)),
			CompressedSize: int64(len(compressed)),
			EncryptedSize:  int64(len(ciphertext)),
			DataHash:       dataHash,
			CompressedHash: compressedHash,
			Compression:    compression,
		},
	}

	if err := e.archives.Store(ctx, archive); err != nil {
		return nil, err
	}

	return archive, nil
}

// collectTable reads and sanitizes all rows of one table
func (e *Engine) collectTable(ctx context.Context, table string, includeBiometric bool) ([]map[string]interface{}, error) {
	if !database.ValidIdentifier(table) {
		return nil, NewValidationError(fmt.Sprintf("invalid table name: %q", table), nil)
	}

	rows, err := e.store.Query(ctx, fmt.Sprintf("SELECT * FROM %s", database.QuoteIdentifier(table)))
	if err != nil {
		return nil, NewDatabaseError(fmt.Sprintf("failed to read table %s", table), err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, NewDatabaseError("failed to read column names", err)
	}

	records := make([]map[string]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, NewDatabaseError(fmt.Sprintf("failed to scan row from %s", table), err)
		}

		record := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			switch v := values[i].(type) {
			case []byte:
				record[col] = string(v)
			case time.Time:
				record[col] = v.UTC().Format(time.RFC3339)
			default:
				record[col] = v
			}
		}

		e.sanitizer.SanitizeRecord(table, record)
		if table == "biometric_data" && !includeBiometric {
			e.sanitizer.StripBiometric(record)
		}

		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, NewDatabaseError(fmt.Sprintf("failed reading table %s", table), err)
	}

	return records, nil
}

// ValidateBackup checks structure, policy bounds, authentication and payload
// integrity. Authentication failure never yields plaintext.
func (e *Engine) ValidateBackup(ctx context.Context, archive *Archive, password string) (*ValidationOutcome, error) {
	startTime := time.Now()

	outcome := &ValidationOutcome{
		CheckedAt: startTime,
	}
	if archive != nil {
		outcome.BackupID = archive.ID
	}

	defer func() {
		outcome.Duration = time.Since(startTime)
	}()

	issues := e.checkStructure(archive)
	if issues.HasErrors() {
		outcome.Valid = false
		outcome.Reason = "structural validation failed"
		for _, issue := range issues {
			outcome.Issues = append(outcome.Issues, issue.Error())
		}
		return outcome, nil
	}

	if int64(len(archive.Ciphertext)) > e.config.MaxBackupSize {
		outcome.Valid = false
		outcome.Reason = "archive exceeds the maximum allowed size"
		return outcome, nil
	}

	if time.Since(archive.CreatedAt) > e.config.MaxBackupAge {
		outcome.Valid = false
		outcome.Reason = "archive is older than the retention policy allows"
		return outcome, nil
	}

	p, _, err := e.openPayload(archive, password)
	if err != nil {
		engineErr, ok := err.(*EngineError)
		if ok && (engineErr.Type == EngineErrorTypeValidation || engineErr.Type == EngineErrorTypeCorruption) {
			outcome.Valid = false
			outcome.Reason = engineErr.Message
			return outcome, nil
		}
		return nil, err
	}

	if p.RecordCount != archive.Metadata.RecordCount {
		outcome.Valid = false
		outcome.Reason = "record count does not match archive metadata"
		return outcome, nil
	}

	outcome.Valid = true
	outcome.TableNames = archive.Metadata.TableNames
	outcome.RecordCount = p.RecordCount
	return outcome, nil
}

// checkStructure verifies archive completeness without touching the payload
func (e *Engine) checkStructure(archive *Archive) ValidationIssues {
	var issues ValidationIssues

	if archive == nil {
		issues.Add("archive", "archive is nil", nil)
		return issues
	}

	if archive.ID == "" {
		issues.Add("id", "backup ID is required", nil)
	}
	if archive.FormatVersion != FormatVersion {
		issues.Add("format_version", "unsupported format version", archive.FormatVersion)
	}
	if archive.Algorithm != Algorithm {
		issues.Add("algorithm", "unsupported cipher", archive.Algorithm)
	}
	if archive.CreatedAt.IsZero() {
		issues.Add("created_at", "creation timestamp is required", nil)
	}
	if len(archive.Ciphertext) == 0 {
		issues.Add("ciphertext", "ciphertext is empty", nil)
	}
	if archive.Metadata.DataHash == "" {
		issues.Add("metadata.data_hash", "payload hash is required", nil)
	}
	if len(archive.Metadata.TableNames) == 0 {
		issues.Add("metadata.table_names", "table list is required", nil)
	}

	if salt, err := hex.DecodeString(archive.SaltHex); err != nil || len(salt) != SaltSize {
		issues.Add("salt", "salt must be a 32-byte hex string", archive.SaltHex)
	}
	if iv, err := hex.DecodeString(archive.IVHex); err != nil || len(iv) != IVSize {
		issues.Add("iv", "IV must be a 16-byte hex string", archive.IVHex)
	}
	if tag, err := hex.DecodeString(archive.TagHex); err != nil || len(tag) != TagSize {
		issues.Add("tag", "tag must be a 16-byte hex string", archive.TagHex)
	}

	return issues
}

// openPayload authenticates, decrypts, decompresses and parses an archive
func (e *Engine) openPayload(archive *Archive, password string) (*payload, []byte, error) {
	salt, err := hex.DecodeString(archive.SaltHex)
	if err != nil {
		return nil, nil, NewStructureError("malformed salt", err)
	}
	iv, err := hex.DecodeString(archive.IVHex)
	if err != nil {
		return nil, nil, NewStructureError("malformed IV", err)
	}
	tag, err := hex.DecodeString(archive.TagHex)
	if err != nil {
		return nil, nil, NewStructureError("malformed tag", err)
	}

	key := e.crypto.KeyManager().DeriveKey(password, salt)
	compressed, err := e.crypto.Open(key, iv, archive.Ciphertext, tag)
	if err != nil {
		return nil, nil, err
	}

	if archive.Metadata.CompressedHash != "" && !VerifyChecksum(compressed, archive.Metadata.CompressedHash) {
		return nil, nil, NewCorruptionError("compressed payload hash mismatch", nil)
	}

	plaintext, err := e.compression.Decompress(compressed, archive.Metadata.Compression)
	if err != nil {
		return nil, nil, err
	}

	if !VerifyChecksum(plaintext, archive.Metadata.DataHash) {
		return nil, nil, NewCorruptionError("payload hash mismatch - archive content is corrupted", nil)
	}

	var p payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return nil, nil, NewStructureError("failed to parse backup payload", err)
	}

	return &p, plaintext, nil
}

// RestoreBackup validates an archive and writes its content back into the
// data store. Production restores (empty TargetSchema) are serialized by a
// lock; sandbox restores into an explicit target schema run without it.
func (e *Engine) RestoreBackup(ctx context.Context, archive *Archive, password string, opts RestoreOptions) (*RestoreResult, error) {
	startTime := time.Now()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.config.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	production := opts.TargetSchema == ""
	if production {
		if !e.restoreMu.TryLock() {
			return nil, NewConflictError("another restore is already in progress", nil)
		}
		defer e.restoreMu.Unlock()
	} else if !database.ValidIdentifier(opts.TargetSchema) {
		return nil, NewValidationError(fmt.Sprintf("invalid target schema: %q", opts.TargetSchema), nil)
	}

	result, err := e.restoreBackup(ctx, archive, password, opts, production)

	duration := time.Since(startTime)
	var backupID string
	if archive != nil {
		backupID = archive.ID
	}
	restoredTables, restoredRows := 0, 0
	if result != nil {
		restoredTables, restoredRows = result.RestoredTables, result.RestoredRows
		result.Duration = duration
	}
	e.logger.LogRestoreOperation(backupID, opts.TargetSchema, restoredTables, restoredRows, duration, err)
	e.recordBackupEvent("BACKUP_RESTORE", backupID, duration, err)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, NewTimeoutError("restore exceeded its duration budget", err).
				WithContext("backup_id", backupID)
		}
		return nil, err
	}

	return result, nil
}

func (e *Engine) restoreBackup(ctx context.Context, archive *Archive, password string, opts RestoreOptions, production bool) (*RestoreResult, error) {
	outcome, err := e.ValidateBackup(ctx, archive, password)
	if err != nil {
		return nil, err
	}
	if !outcome.Valid {
		return nil, NewValidationError(fmt.Sprintf("archive failed validation: %s", outcome.Reason), nil)
	}

	p, _, err := e.openPayload(archive, password)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{
		BackupID:     archive.ID,
		TargetSchema: opts.TargetSchema,
	}

	// safety backup of the current state before a production restore
	if production && opts.SafetyBackup {
		safety, err := e.createBackup(ctx, GenerateBackupID(), password, CreateOptions{Tables: archive.Metadata.TableNames})
		if err != nil {
			return nil, NewStorageError("failed to create pre-restore safety backup", err)
		}
		result.SafetyBackupID = safety.ID
	}

	tables := opts.Tables
	if len(tables) == 0 {
		tables = archive.Metadata.TableNames
	}

	strategy := opts.Strategy
	if strategy == "" {
		strategy = RestoreStrategyReplace
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, NewDatabaseError("failed to begin restore transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	for _, table := range tables {
		if production && CriticalTables[table] && !opts.AllowCritical {
			result.Tables = append(result.Tables, TableRestoreResult{
				Table:   table,
				Skipped: true,
				Reason:  "critical table requires explicit permission",
			})
			result.SkippedTables = append(result.SkippedTables, table)
			continue
		}

		records, ok := p.Tables[table]
		if !ok {
			result.Tables = append(result.Tables, TableRestoreResult{
				Table:   table,
				Skipped: true,
				Reason:  "table not present in archive",
			})
			result.SkippedTables = append(result.SkippedTables, table)
			continue
		}

		restored, err := e.restoreTable(ctx, tx, table, records, opts.TargetSchema, strategy)
		if err != nil {
			if opts.ContinueOnError {
				result.Tables = append(result.Tables, TableRestoreResult{
					Table: table,
					Error: err.Error(),
				})
				continue
			}
			return nil, err
		}

		result.Tables = append(result.Tables, TableRestoreResult{Table: table, Restored: restored})
		result.RestoredTables++
		result.RestoredRows += restored
	}

	if err := tx.Commit(); err != nil {
		return nil, NewDatabaseError("failed to commit restore transaction", err)
	}
	committed = true

	return result, nil
}

// restoreTable replays one table's records inside the restore transaction
func (e *Engine) restoreTable(ctx context.Context, tx txExecutor, table string, records []map[string]interface{}, targetSchema string, strategy RestoreStrategy) (int, error) {
	if !database.ValidIdentifier(table) {
		return 0, NewValidationError(fmt.Sprintf("invalid table name: %q", table), nil)
	}

	qualified := database.QuoteIdentifier(table)
	if targetSchema != "" {
		qualified = database.QuoteIdentifier(targetSchema) + "." + qualified

		// sandbox schemas start empty; clone the production structure
		ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s LIKE %s", qualified, database.QuoteIdentifier(table))
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return 0, NewDatabaseError(fmt.Sprintf("failed to provision sandbox table %s", table), err)
		}
	}

	if strategy == RestoreStrategyReplace {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", qualified)); err != nil {
			return 0, NewDatabaseError(fmt.Sprintf("failed to clear table %s", table), err)
		}
	}

	if len(records) == 0 {
		return 0, nil
	}

	columns := make([]string, 0, len(records[0]))
	for col := range records[0] {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	verb := "INSERT INTO"
	if strategy == RestoreStrategyMerge {
		verb = "INSERT IGNORE INTO"
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		if !database.ValidIdentifier(col) {
			return 0, NewValidationError(fmt.Sprintf("invalid column name: %q", col), nil)
		}
		quoted[i] = database.QuoteIdentifier(col)
	}

	restored := 0
	for start := 0; start < len(records); start += InsertBatchSize {
		end := start + InsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
		placeholders := make([]string, len(batch))
		args := make([]interface{}, 0, len(batch)*len(columns))
		for i, record := range batch {
			placeholders[i] = rowPlaceholder
			for _, col := range columns {
				args = append(args, record[col])
			}
		}

		stmt := fmt.Sprintf("%s %s (%s) VALUES %s",
			verb, qualified, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))

		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return restored, NewDatabaseError(fmt.Sprintf("failed to insert batch into %s", table), err)
		}
		restored += len(batch)
	}

	return restored, nil
}

// txExecutor is the slice of sql.Tx the restore path needs
type txExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// ListBackups enumerates archive metadata without decrypting anything
func (e *Engine) ListBackups(ctx context.Context) ([]*ArchiveInfo, error) {
	return e.archives.List(ctx)
}

// GetBackup loads a stored archive by ID
func (e *Engine) GetBackup(ctx context.Context, backupID string) (*Archive, error) {
	return e.archives.Retrieve(ctx, backupID)
}

// CleanupOldBackups deletes archives older than the retention window.
// Running it twice removes nothing the second time.
func (e *Engine) CleanupOldBackups(ctx context.Context, retention time.Duration) (*CleanupResult, error) {
	if retention <= 0 {
		retention = e.config.MaxBackupAge
	}

	infos, err := e.archives.List(ctx)
	if err != nil {
		return nil, err
	}

	result := &CleanupResult{Examined: len(infos)}
	cutoff := time.Now().Add(-retention)

	for _, info := range infos {
		if !info.CreatedAt.Before(cutoff) {
			continue
		}

		if err := e.archives.Delete(ctx, info.ID); err != nil {
			result.Failed = append(result.Failed, info.ID)
			e.logger.Warnf("Failed to remove expired backup %s: %v", info.ID, err)
			continue
		}
		result.Removed = append(result.Removed, info.ID)
	}

	e.recorder.Record(audit.Event{
		Action:   "BACKUP_CLEANUP",
		Category: "BACKUP",
		Severity: audit.SeverityInfo,
		Details: map[string]interface{}{
			"examined": result.Examined,
			"removed":  len(result.Removed),
			"failed":   len(result.Failed),
		},
	})

	return result, nil
}

// ArchiveStorageUsage returns the total bytes held by the archive store
func (e *Engine) ArchiveStorageUsage(ctx context.Context) (int64, error) {
	return e.archives.TotalSize(ctx)
}

func (e *Engine) recordBackupEvent(action, backupID string, duration time.Duration, err error) {
	severity := audit.SeverityInfo
	details := map[string]interface{}{
		"backup_id": backupID,
		"duration":  duration.String(),
	}
	if err != nil {
		severity = audit.SeverityError
		details["error"] = err.Error()
	}

	e.recorder.Record(audit.Event{
		Action:   action,
		Category: "BACKUP",
		Severity: severity,
		Details:  details,
	})
}
