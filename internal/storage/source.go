package storage

import (
	"context"
	"image"
	"strings"

	apperrors "github.com/anime-shed/ingrediscan-go/internal/errors"
	"github.com/anime-shed/ingrediscan-go/pkg/validation"
)

// RoutingFetcher validates image URLs and sends blobs of the configured
// storage account through the Azure SDK and everything else over HTTP.
type RoutingFetcher struct {
	validator    *validation.URLValidator
	http         ImageFetcher
	azure        ImageFetcher
	azureAccount string
}

// NewRoutingFetcher creates a fetcher; azure may be nil when no account is configured
func NewRoutingFetcher(validator *validation.URLValidator, httpFetcher ImageFetcher, azure ImageFetcher, azureAccount string) *RoutingFetcher {
	return &RoutingFetcher{
		validator:    validator,
		http:         httpFetcher,
		azure:        azure,
		azureAccount: strings.ToLower(azureAccount),
	}
}

// FetchImage returns invalid_image errors for anything that cannot be turned into a bitmap
func (r *RoutingFetcher) FetchImage(ctx context.Context, imageURL string) (image.Image, error) {
	parsed, err := r.validator.ValidateImageURL(imageURL)
	if err != nil {
		return nil, err
	}

	fetcher := r.http
	if r.azure != nil && IsAzureBlobURL(parsed) && r.ownsAccount(parsed.Hostname()) {
		fetcher = r.azure
	}

	img, err := fetcher.FetchImage(ctx, parsed.String())
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeInvalidImage) {
			return nil, err
		}
		return nil, apperrors.NewInvalidImageError("failed to fetch image", err)
	}
	return img, nil
}

func (r *RoutingFetcher) ownsAccount(host string) bool {
	return strings.ToLower(host) == r.azureAccount+AzureBlobHostSuffix
}
