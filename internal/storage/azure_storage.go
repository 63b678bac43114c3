package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	apperrors "github.com/ugguru/url-fraud-detection/internal/errors"
)

// AzureImageSource fetches image bytes from Azure blob storage. The ref is
// a blob URL whose path names the container and whose blob query parameter
// names the blob.
type AzureImageSource struct {
	client *azblob.Client
}

// NewAzureImageSource creates a blob-backed image source with shared key
// credentials.
func NewAzureImageSource(accountName, accountKey string) (ImageSource, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &AzureImageSource{client: client}, nil
}

func (s *AzureImageSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	parsed, err := url.Parse(ref)
	if err != nil || len(parsed.Path) < 2 {
		return nil, apperrors.NewValidationError("invalid blob URL", err)
	}

	containerName := parsed.Path[1:]
	blobName := parsed.Query().Get("blob")
	if blobName == "" {
		return nil, apperrors.NewValidationError("blob URL missing blob parameter", nil)
	}

	resp, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, apperrors.NewNetworkError("blob download failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, apperrors.NewNetworkError("blob read failed", err)
	}
	if len(data) > maxImageBytes {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("image exceeds %d byte limit", maxImageBytes), nil)
	}
	return data, nil
}
