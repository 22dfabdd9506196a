package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

// AzureArchiveStore implements ArchiveStore on Azure Blob Storage
type AzureArchiveStore struct {
	serviceURL    azblob.ServiceURL
	containerName string
	prefix        string
}

// Validate checks the Azure configuration
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" {
		return NewValidationError("Azure account name is required", nil)
	}
	if c.AccountKey == "" {
		return NewValidationError("Azure account key is required", nil)
	}
	if c.ContainerName == "" {
		return NewValidationError("Azure container name is required", nil)
	}
	return nil
}

// NewAzureArchiveStore creates an Azure-backed archive store
func NewAzureArchiveStore(config *AzureConfig) (*AzureArchiveStore, error) {
	if config == nil {
		return nil, NewValidationError("Azure storage configuration is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, NewStorageError("failed to create Azure credentials", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", config.AccountName))
	if err != nil {
		return nil, NewStorageError("failed to parse Azure service URL", err)
	}

	return &AzureArchiveStore{
		serviceURL:    azblob.NewServiceURL(*serviceURL, pipeline),
		containerName: config.ContainerName,
		prefix:        "archives/",
	}, nil
}

// Store uploads an archive as a single block blob
func (a *AzureArchiveStore) Store(ctx context.Context, archive *Archive) error {
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

	containerURL := a.serviceURL.NewContainerURL(a.containerName)
	blobURL := containerURL.NewBlockBlobURL(a.blobName(archive.ID))

	_, err = azblob.UploadBufferToBlockBlob(ctx, data, blobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 16,
		Metadata: azblob.Metadata{
			"backupid":      archive.ID,
			"formatversion": archive.FormatVersion,
		},
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: "application/json",
		},
	})
	if err != nil {
		return NewStorageError("failed to upload archive to Azure", err)
	}

	return nil
}

// Retrieve downloads and parses an archive
func (a *AzureArchiveStore) Retrieve(ctx context.Context, backupID string) (*Archive, error) {
	if backupID == "" {
		return nil, NewValidationError("backup ID cannot be empty", nil)
	}

	containerURL := a.serviceURL.NewContainerURL(a.containerName)
	blobURL := containerURL.NewBlockBlobURL(a.blobName(backupID))

	response, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return nil, NewNotFoundError(fmt.Sprintf("backup %s not found in Azure", backupID), err)
	}

	body := response.Body(azblob.RetryReaderOptions{MaxRetryRequests: 3})
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, NewStorageError("failed to read archive data", err)
	}

	var archive Archive
	if err := json.Unmarshal(data, &archive); err != nil {
		return nil, NewStructureError("failed to parse archive data", err)
	}

	return &archive, nil
}

// Delete removes an archive blob
func (a *AzureArchiveStore) Delete(ctx context.Context, backupID string) error {
	if backupID == "" {
		return NewValidationError("backup ID cannot be empty", nil)
	}

	containerURL := a.serviceURL.NewContainerURL(a.containerName)
	blobURL := containerURL.NewBlockBlobURL(a.blobName(backupID))

	_, err := blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{})
	if err != nil {
		if storageErr, ok := err.(azblob.StorageError); ok &&
			storageErr.ServiceCode() == azblob.ServiceCodeBlobNotFound {
			return nil
		}
		return NewStorageError("failed to delete archive from Azure", err)
	}

	return nil
}

// List enumerates stored archives
func (a *AzureArchiveStore) List(ctx context.Context) ([]*ArchiveInfo, error) {
	var infos []*ArchiveInfo

	containerURL := a.serviceURL.NewContainerURL(a.containerName)

	for marker := (azblob.Marker{}); marker.NotDone(); {
		listBlob, err := containerURL.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: a.prefix,
		})
		if err != nil {
			return nil, NewStorageError("failed to list archives in Azure", err)
		}
		marker = listBlob.NextMarker

		for _, blobItem := range listBlob.Segment.BlobItems {
			if !strings.HasSuffix(blobItem.Name, ArchiveExtension) {
				continue
			}

			id := a.backupIDFromName(blobItem.Name)
			if id == "" {
				continue
			}

			info, err := a.Stat(ctx, id)
			if err != nil {
				continue
			}
			infos = append(infos, info)
		}
	}

	return infos, nil
}

// Stat returns metadata for a single archive
func (a *AzureArchiveStore) Stat(ctx context.Context, backupID string) (*ArchiveInfo, error) {
	containerURL := a.serviceURL.NewContainerURL(a.containerName)
	blobURL := containerURL.NewBlockBlobURL(a.blobName(backupID))

	props, err := blobURL.GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		return nil, NewNotFoundError(fmt.Sprintf("backup %s not found in Azure", backupID), err)
	}

	archive, err := a.Retrieve(ctx, backupID)
	if err != nil {
		return nil, err
	}

	return &ArchiveInfo{
		ID:            archive.ID,
		CreatedAt:     archive.CreatedAt,
		FormatVersion: archive.FormatVersion,
		Size:          props.ContentLength(),
		TableCount:    len(archive.Metadata.TableNames),
		RecordCount:   archive.Metadata.RecordCount,
	}, nil
}

// HealthCheck verifies container access
func (a *AzureArchiveStore) HealthCheck(ctx context.Context) error {
	containerURL := a.serviceURL.NewContainerURL(a.containerName)

	_, err := containerURL.GetProperties(ctx, azblob.LeaseAccessConditions{})
	if err != nil {
		return NewStorageError("Azure health check failed: container not accessible", err)
	}

	return nil
}

// TotalSize sums the stored archive blob sizes
func (a *AzureArchiveStore) TotalSize(ctx context.Context) (int64, error) {
	var total int64

	containerURL := a.serviceURL.NewContainerURL(a.containerName)

	for marker := (azblob.Marker{}); marker.NotDone(); {
		listBlob, err := containerURL.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: a.prefix,
		})
		if err != nil {
			return 0, NewStorageError("failed to measure Azure archive usage", err)
		}
		marker = listBlob.NextMarker

		for _, blobItem := range listBlob.Segment.BlobItems {
			if blobItem.Properties.ContentLength != nil {
				total += *blobItem.Properties.ContentLength
			}
		}
	}

	return total, nil
}

func (a *AzureArchiveStore) blobName(backupID string) string {
	return a.prefix + sanitizeBackupID(backupID) + ArchiveExtension
}

func (a *AzureArchiveStore) backupIDFromName(blobName string) string {
	if !strings.HasPrefix(blobName, a.prefix) || !strings.HasSuffix(blobName, ArchiveExtension) {
		return ""
	}
	id := strings.TrimPrefix(blobName, a.prefix)
	return strings.TrimSuffix(id, ArchiveExtension)
}
