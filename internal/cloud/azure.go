package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"dbmanager/internal/security"
)

// azuriteKey is the well-known development key of the Azurite emulator
const azuriteKey = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="

// AzureStore stores dumps in an Azure Blob Storage container
type AzureStore struct {
	client    *azblob.Client
	container string
}

// NewAzureStore authenticates with a shared key. A custom endpoint without
// credentials targets Azurite's default account.
func NewAzureStore(cfg *Config) (*AzureStore, error) {
	account, key := cfg.AccessKey, cfg.SecretKey
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", account)

	if cfg.Endpoint != "" {
		if account == "" {
			account = "devstoreaccount1"
		}
		if key == "" {
			key = azuriteKey
		}
		serviceURL = strings.TrimSuffix(cfg.Endpoint, "/")
		if !strings.Contains(serviceURL, account) {
			serviceURL += "/" + account
		}
	}

	cred, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	return &AzureStore{client: client, container: cfg.Bucket}, nil
}

// Name returns the backend name
func (a *AzureStore) Name() string {
	return "azure"
}

// Upload sends localPath as a block blob in 4MB blocks
func (a *AzureStore) Upload(ctx context.Context, localPath, key string) error {
	sum, err := security.ChecksumFile(localPath)
	if err != nil {
		return err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	_, err = a.client.UploadFile(ctx, a.container, key, file, &azblob.UploadFileOptions{
		BlockSize: 4 * 1024 * 1024,
		Metadata:  map[string]*string{"sha256": to.Ptr(sum)},
	})
	if err != nil {
		return fmt.Errorf("failed to upload blob %s: %w", key, err)
	}
	return nil
}

// Download fetches key into localPath
func (a *AzureStore) Download(ctx context.Context, key, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	defer file.Close()

	if _, err := a.client.DownloadFile(ctx, a.container, key, file, nil); err != nil {
		if isAzureNotFound(err) {
			return fmt.Errorf("azure://%s/%s: %w", a.container, key, os.ErrNotExist)
		}
		return fmt.Errorf("failed to download blob %s: %w", key, err)
	}
	return nil
}

// List returns the blobs under prefix with their checksum metadata
func (a *AzureStore) List(ctx context.Context, prefix string) ([]Object, error) {
	pager := a.client.NewListBlobsFlatPager(a.container, &azblob.ListBlobsFlatOptions{
		Prefix:  to.Ptr(prefix),
		Include: azblob.ListBlobsInclude{Metadata: true},
	})

	var objects []Object
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}
		for _, blob := range page.Segment.BlobItems {
			if blob.Name == nil || blob.Properties == nil {
				continue
			}
			obj := Object{
				Key:  *blob.Name,
				Name: path.Base(*blob.Name),
			}
			if blob.Properties.ContentLength != nil {
				obj.Size = *blob.Properties.ContentLength
			}
			if blob.Properties.LastModified != nil {
				obj.LastModified = *blob.Properties.LastModified
			}
			if sum, ok := blob.Metadata["sha256"]; ok && sum != nil {
				obj.SHA256 = *sum
			}
			objects = append(objects, obj)
		}
	}
	return objects, nil
}

// Delete removes key
func (a *AzureStore) Delete(ctx context.Context, key string) error {
	if _, err := a.client.DeleteBlob(ctx, a.container, key, nil); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}

func isAzureNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
