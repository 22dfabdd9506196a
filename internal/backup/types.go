package backup

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Archive format constants
const (
	// FormatVersion identifies the archive layout
	FormatVersion = "2.0"
	// Algorithm is the only cipher the engine produces
	Algorithm = "aes-256-gcm"
	// ArchiveExtension is the on-disk archive suffix
	ArchiveExtension = ".pvb"

	// KeySize is the AES-256 key length in bytes
	KeySize = 32
	// SaltSize is the PBKDF2 salt length in bytes
	SaltSize = 32
	// IVSize is the GCM nonce length in bytes
	IVSize = 16
	// TagSize is the GCM authentication tag length in bytes
	TagSize = 16
	// PBKDF2Iterations is the key derivation work factor
	PBKDF2Iterations = 100000

	// MinPasswordLength is the policy floor for backup passwords
	MinPasswordLength = 12
	// MaxBackupAge is the retention bound for restorable archives
	MaxBackupAge = 90 * 24 * time.Hour
	// MaxBackupSize bounds a single archive
	MaxBackupSize = 500 * 1024 * 1024
	// InsertBatchSize bounds restore insert statements
	InsertBatchSize = 100
)

// CompressionType identifies a compression algorithm
type CompressionType string

const (
	CompressionTypeNone CompressionType = "none"
	CompressionTypeGzip CompressionType = "gzip"
	CompressionTypeLZ4  CompressionType = "lz4"
	CompressionTypeZstd CompressionType = "zstd"
)

// DefaultTables is the table set captured by a backup, in dependency order
var DefaultTables = []string{
	"usuarios",
	"colaboradores",
	"registros_ponto",
	"configuracoes",
	"audit_sessions",
	"logs_auditoria",
}

// CriticalTables are skipped on restore unless explicitly allowed
var CriticalTables = map[string]bool{
	"usuarios":       true,
	"audit_sessions": true,
}

// Metadata describes the plaintext content of an archive without exposing it
type Metadata struct {
	TableNames     []string        `json:"table_names"`
	RecordCount    int             `json:"record_count"`
	OriginalSize   int64           `json:"original_size"`
	CompressedSize int64           `json:"compressed_size"`
	EncryptedSize  int64           `json:"encrypted_size"`
	DataHash       string          `json:"data_hash"`
	CompressedHash string          `json:"compressed_hash"`
	Compression    CompressionType `json:"compression"`
}

// Archive is a sealed backup. Immutable once written.
type Archive struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	FormatVersion string    `json:"format_version"`
	Algorithm     string    `json:"algorithm"`
	SaltHex       string    `json:"salt"`
	IVHex         string    `json:"iv"`
	TagHex        string    `json:"tag"`
	Ciphertext    []byte    `json:"ciphertext"`
	Metadata      Metadata  `json:"metadata"`
}

// ArchiveInfo is the metadata-only view returned by listings
type ArchiveInfo struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	FormatVersion string    `json:"format_version"`
	Size          int64     `json:"size"`
	TableCount    int       `json:"table_count"`
	RecordCount   int       `json:"record_count"`
}

// CreateOptions controls backup creation
type CreateOptions struct {
	Tables           []string        `json:"tables,omitempty"`
	Compression      CompressionType `json:"compression,omitempty"`
	CompressionLevel int             `json:"compression_level,omitempty"`
	IncludeBiometric bool            `json:"include_biometric,omitempty"`
	Timeout          time.Duration   `json:"timeout,omitempty"`
}

// RestoreStrategy selects how restored rows land in existing tables
type RestoreStrategy string

const (
	// RestoreStrategyReplace deletes existing rows then inserts
	RestoreStrategyReplace RestoreStrategy = "replace"
	// RestoreStrategyMerge inserts rows, skipping key conflicts
	RestoreStrategyMerge RestoreStrategy = "merge"
)

// RestoreOptions controls a restore run
type RestoreOptions struct {
	Tables          []string        `json:"tables,omitempty"`
	TargetSchema    string          `json:"target_schema,omitempty"`
	Strategy        RestoreStrategy `json:"strategy,omitempty"`
	AllowCritical   bool            `json:"allow_critical,omitempty"`
	ContinueOnError bool            `json:"continue_on_error,omitempty"`
	SafetyBackup    bool            `json:"safety_backup,omitempty"`
	Timeout         time.Duration   `json:"timeout,omitempty"`
}

// TableRestoreResult records the outcome for a single table
type TableRestoreResult struct {
	Table    string `json:"table"`
	Restored int    `json:"restored"`
	Skipped  bool   `json:"skipped"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

// RestoreResult summarizes a restore run
type RestoreResult struct {
	BackupID       string               `json:"backup_id"`
	TargetSchema   string               `json:"target_schema,omitempty"`
	Tables         []TableRestoreResult `json:"tables"`
	RestoredTables int                  `json:"restored_tables"`
	RestoredRows   int                  `json:"restored_rows"`
	SkippedTables  []string             `json:"skipped_tables,omitempty"`
	SafetyBackupID string               `json:"safety_backup_id,omitempty"`
	Duration       time.Duration        `json:"duration"`
}

// ValidationOutcome reports whether an archive can be trusted
type ValidationOutcome struct {
	BackupID    string        `json:"backup_id"`
	Valid       bool          `json:"valid"`
	Reason      string        `json:"reason,omitempty"`
	Issues      []string      `json:"issues,omitempty"`
	TableNames  []string      `json:"table_names,omitempty"`
	RecordCount int           `json:"record_count"`
	CheckedAt   time.Time     `json:"checked_at"`
	Duration    time.Duration `json:"duration"`
}

// CleanupResult summarizes a retention sweep
type CleanupResult struct {
	Examined int      `json:"examined"`
	Removed  []string `json:"removed"`
	Failed   []string `json:"failed,omitempty"`
}

// GenerateBackupID creates a unique backup identifier
func GenerateBackupID() string {
	timestamp := time.Now().Format("20060102-150405")
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return fmt.Sprintf("backup-%s-%d", timestamp, time.Now().UnixNano()%100000000)
	}
	return fmt.Sprintf("backup-%s-%s", timestamp, hex.EncodeToString(randomBytes))
}

// CalculateDataChecksum returns the SHA-256 hex digest of data
func CalculateDataChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
