package storage

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureBlobHostSuffix identifies URLs served by Azure blob storage
const AzureBlobHostSuffix = ".blob.core.windows.net"

type azureStorage struct {
	client    *azblob.Client
	maxPixels int64
}

// NewAzureStorage creates a fetcher for blobs in the given storage account.
// Without a key the account is accessed anonymously, which works for public containers.
func NewAzureStorage(accountName string, accountKey string, maxPixels int64) (ImageFetcher, error) {
	serviceURL := fmt.Sprintf("https://%s%s/", accountName, AzureBlobHostSuffix)

	if accountKey == "" {
		client, err := azblob.NewClientWithNoCredential(serviceURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create anonymous blob client: %w", err)
		}
		return &azureStorage{client: client, maxPixels: maxPixels}, nil
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid storage credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	return &azureStorage{client: client, maxPixels: maxPixels}, nil
}

// FetchImage downloads https://<account>.blob.core.windows.net/<container>/<blob>
func (s *azureStorage) FetchImage(ctx context.Context, blobURL string) (image.Image, error) {
	containerName, blobName, err := ParseBlobURL(blobURL)
	if err != nil {
		return nil, err
	}

	downloadResponse, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}

	body := downloadResponse.Body
	defer body.Close()

	raw, err := io.ReadAll(io.LimitReader(body, MaxFetchSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	if len(raw) > MaxFetchSize {
		return nil, fmt.Errorf("blob exceeds %d bytes", MaxFetchSize)
	}
	img, _, err := DecodeImage(raw, s.maxPixels)
	return img, err
}

// ParseBlobURL splits a blob URL path into container and blob name
func ParseBlobURL(blobURL string) (string, string, error) {
	parsedURL, err := url.Parse(blobURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}

	parts := strings.SplitN(strings.TrimPrefix(parsedURL.Path, "/"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("blob URL must be /<container>/<blob>: %q", parsedURL.Path)
	}
	return parts[0], parts[1], nil
}

// IsAzureBlobURL reports whether u points at Azure blob storage
func IsAzureBlobURL(u *url.URL) bool {
	return strings.HasSuffix(strings.ToLower(u.Hostname()), AzureBlobHostSuffix)
}
