package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ArchiveStore abstracts archive persistence for different backend types
type ArchiveStore interface {
	Store(ctx context.Context, archive *Archive) error
	Retrieve(ctx context.Context, backupID string) (*Archive, error)
	Delete(ctx context.Context, backupID string) error
	List(ctx context.Context) ([]*ArchiveInfo, error)
	Stat(ctx context.Context, backupID string) (*ArchiveInfo, error)
	HealthCheck(ctx context.Context) error
	// TotalSize returns the bytes consumed by stored archives
	TotalSize(ctx context.Context) (int64, error)
}

// StorageProviderType identifies an archive storage backend
type StorageProviderType string

const (
	StorageProviderLocal StorageProviderType = "LOCAL"
	StorageProviderS3    StorageProviderType = "S3"
	StorageProviderAzure StorageProviderType = "AZURE"
	StorageProviderGCS   StorageProviderType = "GCS"
)

// StorageConfig defines storage provider configuration
type StorageConfig struct {
	Provider StorageProviderType `mapstructure:"provider" yaml:"provider"`
	Local    *LocalConfig        `mapstructure:"local" yaml:"local,omitempty"`
	S3       *S3Config           `mapstructure:"s3" yaml:"s3,omitempty"`
	Azure    *AzureConfig        `mapstructure:"azure" yaml:"azure,omitempty"`
	GCS      *GCSConfig          `mapstructure:"gcs" yaml:"gcs,omitempty"`
}

// Validate checks the configuration of the selected provider
func (sc *StorageConfig) Validate() error {
	switch sc.Provider {
	case StorageProviderLocal, "":
		if sc.Local == nil {
			return NewValidationError("local storage configuration is required", nil)
		}
		return sc.Local.Validate()
	case StorageProviderS3:
		if sc.S3 == nil {
			return NewValidationError("s3 storage configuration is required", nil)
		}
		return sc.S3.Validate()
	case StorageProviderAzure:
		if sc.Azure == nil {
			return NewValidationError("azure storage configuration is required", nil)
		}
		return sc.Azure.Validate()
	case StorageProviderGCS:
		if sc.GCS == nil {
			return NewValidationError("gcs storage configuration is required", nil)
		}
		return sc.GCS.Validate()
	default:
		return NewValidationError(fmt.Sprintf("unknown storage provider: %s", sc.Provider), nil)
	}
}

// LocalConfig for local file system storage
type LocalConfig struct {
	BasePath string `mapstructure:"base_path" yaml:"base_path"`
}

// Validate checks the local configuration
func (lc *LocalConfig) Validate() error {
	if lc.BasePath == "" {
		return NewValidationError("local storage base path is required", nil)
	}
	return nil
}

// S3Config for Amazon S3 storage
type S3Config struct {
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Region    string `mapstructure:"region" yaml:"region"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
}

// AzureConfig for Azure Blob Storage
type AzureConfig struct {
	AccountName   string `mapstructure:"account_name" yaml:"account_name"`
	AccountKey    string `mapstructure:"account_key" yaml:"account_key"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
}

// GCSConfig for Google Cloud Storage
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
	ProjectID       string `mapstructure:"project_id" yaml:"project_id"`
}

// LocalArchiveStore implements ArchiveStore on the local file system.
// The base directory is owner-only and every archive file is written 0600.
type LocalArchiveStore struct {
	basePath string
}

// NewLocalArchiveStore creates a local store rooted at the configured path
func NewLocalArchiveStore(config *LocalConfig) (*LocalArchiveStore, error) {
	if config == nil {
		return nil, NewValidationError("local storage configuration is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(config.BasePath, 0700); err != nil {
		return nil, NewStorageError("failed to create archive directory", err)
	}

	return &LocalArchiveStore{basePath: config.BasePath}, nil
}

// BasePath returns the archive directory
func (s *LocalArchiveStore) BasePath() string {
	return s.basePath
}

// Store writes an archive to disk. The write goes through a temp file and
// rename so a crash never leaves a truncated archive behind.
func (s *LocalArchiveStore) Store(ctx context.Context, archive *Archive) error {
	if archive == nil {
		return NewValidationError("archive cannot be nil", nil)
	}
	if archive.ID == "" {
		return NewValidationError("archive ID cannot be empty", nil)
	}

	data, err := json.MarshalIndent(archive, "", "  ")
	if err != nil {
		return NewStorageError("failed to serialize archive", err)
	}

	finalPath := s.archivePath(archive.ID)
	tmpPath := finalPath + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return NewStorageError("failed to write archive file", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return NewStorageError("failed to finalize archive file", err)
	}

	return nil
}

// Retrieve loads an archive from disk
func (s *LocalArchiveStore) Retrieve(ctx context.Context, backupID string) (*Archive, error) {
	if backupID == "" {
		return nil, NewValidationError("backup ID cannot be empty", nil)
	}

	path := s.archivePath(backupID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewNotFoundError(fmt.Sprintf("backup %s not found", backupID), err)
		}
		return nil, NewStorageError("failed to read archive file", err)
	}

	var archive Archive
	if err := json.Unmarshal(data, &archive); err != nil {
		return nil, NewStructureError("failed to parse archive file", err)
	}

	return &archive, nil
}

// Delete removes an archive from disk. Deleting a missing archive is not
// an error so retention sweeps stay idempotent.
func (s *LocalArchiveStore) Delete(ctx context.Context, backupID string) error {
	if backupID == "" {
		return NewValidationError("backup ID cannot be empty", nil)
	}

	err := os.Remove(s.archivePath(backupID))
	if err != nil && !os.IsNotExist(err) {
		return NewStorageError("failed to delete archive file", err)
	}
	return nil
}

// List enumerates archive metadata without decrypting payloads
func (s *LocalArchiveStore) List(ctx context.Context) ([]*ArchiveInfo, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, NewStorageError("failed to list archive directory", err)
	}

	infos := make([]*ArchiveInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ArchiveExtension) {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ArchiveExtension)
		info, err := s.Stat(ctx, id)
		if err != nil {
			// unreadable archives are skipped, not fatal for a listing
			continue
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})

	return infos, nil
}

// Stat returns the metadata view of a single archive
func (s *LocalArchiveStore) Stat(ctx context.Context, backupID string) (*ArchiveInfo, error) {
	path := s.archivePath(backupID)

	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewNotFoundError(fmt.Sprintf("backup %s not found", backupID), err)
		}
		return nil, NewStorageError("failed to stat archive file", err)
	}

	archive, err := s.Retrieve(ctx, backupID)
	if err != nil {
		return nil, err
	}

	return &ArchiveInfo{
		ID:            archive.ID,
		CreatedAt:     archive.CreatedAt,
		FormatVersion: archive.FormatVersion,
		Size:          fi.Size(),
		TableCount:    len(archive.Metadata.TableNames),
		RecordCount:   archive.Metadata.RecordCount,
	}, nil
}

// HealthCheck verifies the archive directory is writable
func (s *LocalArchiveStore) HealthCheck(ctx context.Context) error {
	testFile := filepath.Join(s.basePath, ".health_check")

	if err := os.WriteFile(testFile, []byte("health_check"), 0600); err != nil {
		return NewStorageError("archive store health check failed: cannot write to directory", err)
	}
	if _, err := os.ReadFile(testFile); err != nil {
		return NewStorageError("archive store health check failed: cannot read from directory", err)
	}
	os.Remove(testFile)

	return nil
}

// TotalSize sums the bytes of all stored archives
func (s *LocalArchiveStore) TotalSize(ctx context.Context) (int64, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return 0, NewStorageError("failed to read archive directory", err)
	}

	var total int64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ArchiveExtension) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		total += fi.Size()
	}

	return total, nil
}

func (s *LocalArchiveStore) archivePath(backupID string) string {
	return filepath.Join(s.basePath, sanitizeBackupID(backupID)+ArchiveExtension)
}

// sanitizeBackupID removes potentially dangerous characters from a backup ID
func sanitizeBackupID(backupID string) string {
	sanitized := strings.ReplaceAll(backupID, "/", "_")
	sanitized = strings.ReplaceAll(sanitized, "\\", "_")
	sanitized = strings.ReplaceAll(sanitized, "..", "_")
	return sanitized
}
