package pipeline

import (
	"context"
	"errors"

	"pressroom/internal/generator"
	"pressroom/internal/scraper"
	"pressroom/internal/selector"
	"pressroom/pkg/clients/webflow"
)

var (
	// ErrTooManyItems rejects a request over the configured item cap before
	// any external call is made. Fatal to the whole request.
	ErrTooManyItems = errors.New("too many items requested")
	// ErrGeneration wraps content generation failures; without generated
	// items there is nothing to process. Fatal to the whole request.
	ErrGeneration = errors.New("content generation failed")
	// ErrMissingSourceURL marks an item whose source URL is absent or not a
	// fetchable http(s) URL. Fatal to that item only.
	ErrMissingSourceURL = errors.New("missing or malformed source URL")
)

// ContentGenerator produces an ordered batch of content items for a topic.
type ContentGenerator interface {
	Generate(ctx context.Context, topic string, extra map[string]string, count int) ([]generator.ContentItem, error)
	// Stage persists the generated batch for inspection; returns the
	// directory written, or "" when staging is disabled or failed.
	Stage(items []generator.ContentItem, topic string) string
}

// ImageScraper collects candidate images from a page. An empty slice with a
// nil error means the page had no usable images, which is an expected
// outcome, not a failure.
type ImageScraper interface {
	Scrape(ctx context.Context, pageURL, runLabel string) ([]scraper.CandidateImage, string, error)
	Cleanup(dir string)
}

// ImageSelector ranks 2+ candidates against keywords.
type ImageSelector interface {
	Select(ctx context.Context, candidates []scraper.CandidateImage, keywords string) (selector.Result, error)
}

// AssetUploader stores one image in the CMS and returns its durable URL.
type AssetUploader interface {
	Upload(ctx context.Context, siteID string, image scraper.CandidateImage) (string, error)
}

// CMSPublisher is the CMS record surface: schema lookup, draft creation, and
// batch publishing. *webflow.Client satisfies this.
type CMSPublisher interface {
	GetCollection(ctx context.Context, collectionID string) (*webflow.Collection, error)
	CreateItem(ctx context.Context, collectionID string, fieldData map[string]any, live bool) (string, error)
	PublishItems(ctx context.Context, collectionID string, itemIDs []string) error
	PublishSite(ctx context.Context, siteID string) error
}

// Request is one accepted batch job.
type Request struct {
	CollectionID string
	SiteID       string
	Topic        string
	ExtraFields  map[string]string
	Count        int
}

// Outcome classifies one item's terminal result.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// LedgerEntry is the recorded outcome for one content item.
type LedgerEntry struct {
	// Index is the item's position in the generated batch; it orders the
	// ledger, not the JSON payload.
	Index        int      `json:"-"`
	Item         string   `json:"item"`
	Status       Outcome  `json:"status"`
	Reason       string   `json:"reason,omitempty"`
	Error        string   `json:"error,omitempty"`
	ItemID       string   `json:"item_id,omitempty"`
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	ImageScore   *float64 `json:"image_score,omitempty"`
}

// Summary aggregates ledger outcomes. Total always equals
// Created+Skipped+Failed.
type Summary struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// BatchResult is the complete outcome of one request.
type BatchResult struct {
	Topic          string        `json:"topic"`
	ContentDir     string        `json:"content_dir,omitempty"`
	Summary        Summary       `json:"summary"`
	Results        []LedgerEntry `json:"results"`
	PublishWarning string        `json:"publish_warning,omitempty"`
}

// CreatedIDs returns the CMS identifiers of all created entries, in ledger
// order.
func (r *BatchResult) CreatedIDs() []string {
	ids := make([]string, 0, r.Summary.Created)
	for _, entry := range r.Results {
		if entry.Status == OutcomeCreated && entry.ItemID != "" {
			ids = append(ids, entry.ItemID)
		}
	}
	return ids
}
