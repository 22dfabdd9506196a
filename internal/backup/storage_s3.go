package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3ArchiveStore implements ArchiveStore on Amazon S3
type S3ArchiveStore struct {
	client *s3.S3
	bucket string
	prefix string
}

// Validate checks the S3 configuration
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return NewValidationError("S3 bucket is required", nil)
	}
	if c.Region == "" {
		return NewValidationError("S3 region is required", nil)
	}
	return nil
}

// NewS3ArchiveStore creates an S3-backed archive store
func NewS3ArchiveStore(config *S3Config) (*S3ArchiveStore, error) {
	if config == nil {
		return nil, NewValidationError("S3 storage configuration is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}
	if config.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, "")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, NewStorageError("failed to create AWS session", err)
	}

	prefix := config.Prefix
	if prefix == "" {
		prefix = "archives/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &S3ArchiveStore{
		client: s3.New(sess),
		bucket: config.Bucket,
		prefix: prefix,
	}, nil
}

// Store uploads an archive as a single object
func (s *S3ArchiveStore) Store(ctx context.Context, archive *Archive) error {
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

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(archive.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]*string{
			"backup-id":      aws.String(archive.ID),
			"format-version": aws.String(archive.FormatVersion),
			"record-count":   aws.String(fmt.Sprintf("%d", archive.Metadata.RecordCount)),
		},
	})
	if err != nil {
		return NewStorageError("failed to upload archive to S3", err)
	}

	return nil
}

// Retrieve downloads and parses an archive
func (s *S3ArchiveStore) Retrieve(ctx context.Context, backupID string) (*Archive, error) {
	if backupID == "" {
		return nil, NewValidationError("backup ID cannot be empty", nil)
	}

	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(backupID)),
	})
	if err != nil {
		return nil, NewNotFoundError(fmt.Sprintf("backup %s not found in S3", backupID), err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
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
func (s *S3ArchiveStore) Delete(ctx context.Context, backupID string) error {
	if backupID == "" {
		return NewValidationError("backup ID cannot be empty", nil)
	}

	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(backupID)),
	})
	if err != nil {
		return NewStorageError("failed to delete archive from S3", err)
	}

	return nil
}

// List enumerates stored archives
func (s *S3ArchiveStore) List(ctx context.Context) ([]*ArchiveInfo, error) {
	var infos []*ArchiveInfo

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	}

	err := s.client.ListObjectsV2PagesWithContext(ctx, input,
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				if !strings.HasSuffix(*obj.Key, ArchiveExtension) {
					continue
				}

				id := s.backupIDFromKey(*obj.Key)
				if id == "" {
					continue
				}

				info, err := s.Stat(ctx, id)
				if err != nil {
					continue
				}
				infos = append(infos, info)
			}
			return true
		})
	if err != nil {
		return nil, NewStorageError("failed to list archives in S3", err)
	}

	return infos, nil
}

// Stat returns metadata for a single archive
func (s *S3ArchiveStore) Stat(ctx context.Context, backupID string) (*ArchiveInfo, error) {
	head, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(backupID)),
	})
	if err != nil {
		return nil, NewNotFoundError(fmt.Sprintf("backup %s not found in S3", backupID), err)
	}

	archive, err := s.Retrieve(ctx, backupID)
	if err != nil {
		return nil, err
	}

	var size int64
	if head.ContentLength != nil {
		size = *head.ContentLength
	}

	return &ArchiveInfo{
		ID:            archive.ID,
		CreatedAt:     archive.CreatedAt,
		FormatVersion: archive.FormatVersion,
		Size:          size,
		TableCount:    len(archive.Metadata.TableNames),
		RecordCount:   archive.Metadata.RecordCount,
	}, nil
}

// HealthCheck verifies bucket access and list permission
func (s *S3ArchiveStore) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return NewStorageError("S3 health check failed: bucket not accessible", err)
	}

	_, err = s.client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.prefix),
		MaxKeys: aws.Int64(1),
	})
	if err != nil {
		return NewStorageError("S3 health check failed: cannot list objects", err)
	}

	return nil
}

// TotalSize sums the stored archive object sizes
func (s *S3ArchiveStore) TotalSize(ctx context.Context) (int64, error) {
	var total int64

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	}

	err := s.client.ListObjectsV2PagesWithContext(ctx, input,
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				if obj.Size != nil {
					total += *obj.Size
				}
			}
			return true
		})
	if err != nil {
		return 0, NewStorageError("failed to measure S3 archive usage", err)
	}

	return total, nil
}

func (s *S3ArchiveStore) objectKey(backupID string) string {
	return s.prefix + sanitizeBackupID(backupID) + ArchiveExtension
}

func (s *S3ArchiveStore) backupIDFromKey(objectKey string) string {
	if !strings.HasPrefix(objectKey, s.prefix) || !strings.HasSuffix(objectKey, ArchiveExtension) {
		return ""
	}
	id := strings.TrimPrefix(objectKey, s.prefix)
	return strings.TrimSuffix(id, ArchiveExtension)
}
