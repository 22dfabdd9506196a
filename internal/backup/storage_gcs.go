package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSArchiveStore implements ArchiveStore on Google Cloud Storage
type GCSArchiveStore struct {
	client     *storage.Client
	bucketName string
	prefix     string
}

// Validate checks the GCS configuration
func (c *GCSConfig) Validate() error {
	if c.Bucket == "" {
		return NewValidationError("GCS bucket is required", nil)
	}
	return nil
}

// NewGCSArchiveStore creates a GCS-backed archive store
func NewGCSArchiveStore(ctx context.Context, config *GCSConfig) (*GCSArchiveStore, error) {
	if config == nil {
		return nil, NewValidationError("GCS storage configuration is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var client *storage.Client
	var err error

	if config.CredentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(config.CredentialsPath))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, NewStorageError("failed to create GCS client", err)
	}

	return &GCSArchiveStore{
		client:     client,
		bucketName: config.Bucket,
		prefix:     "archives/",
	}, nil
}

// Store uploads an archive as a single object
func (g *GCSArchiveStore) Store(ctx context.Context, archive *Archive) error {
	if archive == nil {
		return NewValidationError("archive cannot be nil", nil)
	}
	if archive.ID == "" {
		return NewValidationError("archive ID cannot be empty", nil)
	}

	data, err := json.Marshal(archive)
	if err != nil {
		return NewStorageError("failed to serialize archive", err)
	}

	object := g.client.Bucket(g.bucketName).Object(g.objectName(archive.ID))
	writer := object.NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.Metadata = map[string]string{
		"backup-id":      archive.ID,
		"format-version": archive.FormatVersion,
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return NewStorageError("failed to write archive data to GCS", err)
	}
	if err := writer.Close(); err != nil {
		return NewStorageError("failed to upload archive to GCS", err)
	}

	return nil
}

// Retrieve downloads and parses an archive
func (g *GCSArchiveStore) Retrieve(ctx context.Context, backupID string) (*Archive, error) {
	if backupID == "" {
		return nil, NewValidationError("backup ID cannot be empty", nil)
	}

	object := g.client.Bucket(g.bucketName).Object(g.objectName(backupID))
	reader, err := object.NewReader(ctx)
	if err != nil {
		return nil, NewNotFoundError(fmt.Sprintf("backup %s not found in GCS", backupID), err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, NewStorageError("failed to read archive data", err)
	}

	var archive Archive
	if err := json.Unmarshal(data, &archive); err != nil {
		return nil, NewStructureError("failed to parse archive data", err)
	}

	return &archive, nil
}

// Delete removes an archive object. Missing objects are not an error.
func (g *GCSArchiveStore) Delete(ctx context.Context, backupID string) error {
	if backupID == "" {
		return NewValidationError("backup ID cannot be empty", nil)
	}

	object := g.client.Bucket(g.bucketName).Object(g.objectName(backupID))
	if err := object.Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return NewStorageError("failed to delete archive from GCS", err)
	}

	return nil
}

// List enumerates stored archives
func (g *GCSArchiveStore) List(ctx context.Context) ([]*ArchiveInfo, error) {
	var infos []*ArchiveInfo

	it := g.client.Bucket(g.bucketName).Objects(ctx, &storage.Query{Prefix: g.prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, NewStorageError("failed to list archives in GCS", err)
		}

		if !strings.HasSuffix(attrs.Name, ArchiveExtension) {
			continue
		}

		id := g.backupIDFromName(attrs.Name)
		if id == "" {
			continue
		}

		info, err := g.Stat(ctx, id)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}

	return infos, nil
}

// Stat returns metadata for a single archive
func (g *GCSArchiveStore) Stat(ctx context.Context, backupID string) (*ArchiveInfo, error) {
	object := g.client.Bucket(g.bucketName).Object(g.objectName(backupID))

	attrs, err := object.Attrs(ctx)
	if err != nil {
		return nil, NewNotFoundError(fmt.Sprintf("backup %s not found in GCS", backupID), err)
	}

	archive, err := g.Retrieve(ctx, backupID)
	if err != nil {
		return nil, err
	}

	return &ArchiveInfo{
		ID:            archive.ID,
		CreatedAt:     archive.CreatedAt,
		FormatVersion: archive.FormatVersion,
		Size:          attrs.Size,
		TableCount:    len(archive.Metadata.TableNames),
		RecordCount:   archive.Metadata.RecordCount,
	}, nil
}

// HealthCheck verifies bucket access
func (g *GCSArchiveStore) HealthCheck(ctx context.Context) error {
	_, err := g.client.Bucket(g.bucketName).Attrs(ctx)
	if err != nil {
		return NewStorageError("GCS health check failed: bucket not accessible", err)
	}

	return nil
}

// TotalSize sums the stored archive object sizes
func (g *GCSArchiveStore) TotalSize(ctx context.Context) (int64, error) {
	var total int64

	it := g.client.Bucket(g.bucketName).Objects(ctx, &storage.Query{Prefix: g.prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, NewStorageError("failed to measure GCS archive usage", err)
		}
		total += attrs.Size
	}

	return total, nil
}

// Close releases the underlying client
func (g *GCSArchiveStore) Close() error {
	return g.client.Close()
}

func (g *GCSArchiveStore) objectName(backupID string) string {
	return g.prefix + sanitizeBackupID(backupID) + ArchiveExtension
}

func (g *GCSArchiveStore) backupIDFromName(objectName string) string {
	if !strings.HasPrefix(objectName, g.prefix) || !strings.HasSuffix(objectName, ArchiveExtension) {
		return ""
	}
	id := strings.TrimPrefix(objectName, g.prefix)
	return strings.TrimSuffix(id, ArchiveExtension)
}
