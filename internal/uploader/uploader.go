// Package uploader pushes selected candidate images into the CMS asset
// store and hands back their hosted URLs.
package uploader

import (
	"context"
	"fmt"

	"pressroom/internal/scraper"
	"pressroom/pkg/clients/webflow"
	"pressroom/pkg/logging"
)

// Uploader stores candidate images as Webflow site assets.
type Uploader struct {
	webflow *webflow.Client
	logger  logging.Logger
}

func New(client *webflow.Client, logger logging.Logger) *Uploader {
	return &Uploader{webflow: client, logger: logger}
}

// Upload reads the image from its staging path and uploads it to the site's
// asset library, returning the hosted URL to reference from item fields.
func (u *Uploader) Upload(ctx context.Context, siteID string, image scraper.CandidateImage) (string, error) {
	data, err := image.Read()
	if err != nil {
		return "", fmt.Errorf("read image %s: %w", image.Path, err)
	}

	asset, err := u.webflow.UploadAsset(ctx, siteID, image.FileName(), data)
	if err != nil {
		return "", err
	}

	hostedURL := asset.HostedURL
	if hostedURL == "" {
		hostedURL = asset.AssetURL
	}
	if hostedURL == "" {
		return "", fmt.Errorf("asset %s uploaded but no hosted URL returned", asset.ID)
	}

	u.logger.WithFields(logging.Fields{
		"file":  image.FileName(),
		"asset": asset.ID,
	}).Info("Uploaded thumbnail asset")
	return hostedURL, nil
}
