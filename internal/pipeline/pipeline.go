package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"pressroom/internal/generator"
	"pressroom/internal/mapping"
	"pressroom/internal/scraper"
	"pressroom/pkg/clients/webflow"
	"pressroom/pkg/logging"
)

const (
	defaultMaxItems = 15
	defaultWorkers  = 1

	skipReasonNoImages = "no images found"
)

// Config wires the pipeline's collaborators and budgets.
type Config struct {
	Generator ContentGenerator
	Scraper   ImageScraper
	Selector  ImageSelector
	Uploader  AssetUploader
	Publisher CMSPublisher
	Mapper    mapping.Builder
	Logger    logging.Logger
	Metrics   *Metrics

	MaxItems         int
	Workers          int
	CreatesPerMinute int

	ScrapeTimeout time.Duration
	SelectTimeout time.Duration
	UploadTimeout time.Duration
	CreateTimeout time.Duration

	// KeepImages leaves downloaded candidates on disk after each item
	// instead of cleaning the staging directory.
	KeepImages bool
}

// Pipeline turns a topic into published CMS entries: generate items, scrape
// each item's source page for images, pick the best one, upload it, create
// the CMS record, and finally publish the batch. Item failures are isolated;
// one bad page never sinks the batch.
type Pipeline struct {
	generator ContentGenerator
	scraper   ImageScraper
	selector  ImageSelector
	uploader  AssetUploader
	publisher CMSPublisher
	mapper    mapping.Builder
	logger    logging.Logger
	metrics   *Metrics
	throttle  *throttle

	maxItems   int
	workers    int
	keepImages bool

	scrapeTimeout time.Duration
	selectTimeout time.Duration
	uploadTimeout time.Duration
	createTimeout time.Duration
}

func New(cfg Config) *Pipeline {
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Pipeline{
		generator:     cfg.Generator,
		scraper:       cfg.Scraper,
		selector:      cfg.Selector,
		uploader:      cfg.Uploader,
		publisher:     cfg.Publisher,
		mapper:        cfg.Mapper,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		throttle:      newThrottle(cfg.CreatesPerMinute),
		maxItems:      maxItems,
		workers:       workers,
		keepImages:    cfg.KeepImages,
		scrapeTimeout: cfg.ScrapeTimeout,
		selectTimeout: cfg.SelectTimeout,
		uploadTimeout: cfg.UploadTimeout,
		createTimeout: cfg.CreateTimeout,
	}
}

// Run executes one batch end to end. It fails outright only when the request
// is over the item cap or content generation itself fails; every later
// problem is recorded in the ledger and reflected in the summary. A publish
// failure after items were created surfaces as a warning, never an error:
// the created drafts are real and retrying the publish is cheap.
func (p *Pipeline) Run(ctx context.Context, req Request) (*BatchResult, error) {
	if req.Count > p.maxItems {
		return nil, fmt.Errorf("%w: requested %d, maximum is %d", ErrTooManyItems, req.Count, p.maxItems)
	}

	p.metrics.recordBatch()

	genStart := time.Now()
	items, err := p.generator.Generate(ctx, req.Topic, req.ExtraFields, req.Count)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	p.metrics.recordStage("generate", genStart)

	result := &BatchResult{
		Topic:      req.Topic,
		ContentDir: p.generator.Stage(items, req.Topic),
		Results:    []LedgerEntry{},
	}
	if len(items) == 0 {
		p.logger.WithField("topic", req.Topic).Warn("Generation produced no items")
		return result, nil
	}

	schema := p.fetchSchema(ctx, req.CollectionID)

	board := &ledger{}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.workers)
	for idx, item := range items {
		idx, item := idx, item
		group.Go(func() error {
			entry := p.processItem(groupCtx, req, schema, idx, item)
			p.metrics.recordItem(entry.Status)
			board.append(entry)
			return nil
		})
	}
	_ = group.Wait()

	result.Results = board.sorted()
	result.Summary = summarize(result.Results)

	p.publish(ctx, req, result)

	p.logger.WithFields(logging.Fields{
		"topic":   req.Topic,
		"total":   result.Summary.Total,
		"created": result.Summary.Created,
		"skipped": result.Summary.Skipped,
		"failed":  result.Summary.Failed,
	}).Info("Pipeline run complete")

	return result, nil
}

// fetchSchema loads the collection schema for field filtering. Failure
// degrades to unfiltered mapping rather than failing the batch.
func (p *Pipeline) fetchSchema(ctx context.Context, collectionID string) *webflow.Collection {
	collection, err := p.publisher.GetCollection(ctx, collectionID)
	if err != nil {
		p.logger.WithError(err).WithField("collection_id", collectionID).
			Warn("Failed to fetch collection schema, skipping field filtering")
		return nil
	}
	return collection
}

func (p *Pipeline) processItem(ctx context.Context, req Request, schema *webflow.Collection, idx int, item generator.ContentItem) LedgerEntry {
	entry := LedgerEntry{Index: idx, Item: item.DisplayName()}
	state := newTracker()
	log := p.logger.WithFields(logging.Fields{"item": entry.Item, "position": idx + 1})

	fail := func(err error) LedgerEntry {
		state.to(StateFailed)
		entry.Status = OutcomeFailed
		entry.Error = err.Error()
		log.WithError(err).Error("Item failed")
		return entry
	}

	link := strings.TrimSpace(item.Link)
	if !validSourceURL(link) {
		return fail(fmt.Errorf("%w: %q", ErrMissingSourceURL, item.Link))
	}

	scrapeStart := time.Now()
	candidates, stagingDir, err := p.scrapeWithTimeout(ctx, link, item.Slug)
	p.metrics.recordStage("scrape", scrapeStart)
	state.to(StateScraped)
	if stagingDir != "" && !p.keepImages {
		defer p.scraper.Cleanup(stagingDir)
	}
	if err != nil {
		// A page that cannot be scraped is treated the same as a page with
		// no images: the item is content-complete, just thumbnail-less.
		log.WithError(err).Warn("Scrape failed, skipping item")
	}
	if err != nil || len(candidates) == 0 {
		state.to(StateSkipped)
		entry.Status = OutcomeSkipped
		entry.Reason = skipReasonNoImages
		log.Info("No candidate images, skipping item")
		return entry
	}

	winner, score := p.pickImage(ctx, log, candidates, item.Keywords())
	state.to(StateSelected)

	uploadStart := time.Now()
	assetURL, err := p.uploadWithTimeout(ctx, req.SiteID, winner)
	p.metrics.recordStage("upload", uploadStart)
	if err != nil {
		return fail(fmt.Errorf("upload thumbnail: %w", err))
	}
	state.to(StateUploaded)

	fieldData := p.mapper.Build(item.Canonical(), assetURL, schema)

	if err := p.throttle.Wait(ctx); err != nil {
		return fail(fmt.Errorf("create item: %w", err))
	}
	createStart := time.Now()
	itemID, err := p.createWithTimeout(ctx, req.CollectionID, fieldData)
	p.metrics.recordStage("create", createStart)
	if err != nil {
		return fail(fmt.Errorf("create item: %w", err))
	}
	state.to(StateCreated)

	entry.Status = OutcomeCreated
	entry.ItemID = itemID
	entry.ThumbnailURL = assetURL
	entry.ImageScore = score
	log.WithField("item_id", itemID).Info("Created CMS item")
	return entry
}

// pickImage applies the image-count policy: a single candidate is used
// directly with no model call, two or more go through the selector, and a
// selector failure falls back to the first candidate in page order.
func (p *Pipeline) pickImage(ctx context.Context, log *logrus.Entry, candidates []scraper.CandidateImage, keywords string) (scraper.CandidateImage, *float64) {
	if len(candidates) == 1 {
		log.Info("Single candidate image, using it directly")
		return candidates[0], nil
	}

	selectStart := time.Now()
	selectCtx, cancel := p.budget(ctx, p.selectTimeout)
	defer cancel()
	res, err := p.selector.Select(selectCtx, candidates, keywords)
	p.metrics.recordStage("select", selectStart)
	if err != nil {
		log.WithError(err).Warn("Image selection failed, falling back to first candidate")
		return candidates[0], nil
	}

	log.WithFields(logging.Fields{
		"image": res.Candidate.FileName(),
		"score": res.Score,
	}).Info("Selected best candidate image")
	score := res.Score
	return res.Candidate, &score
}

func (p *Pipeline) publish(ctx context.Context, req Request, result *BatchResult) {
	itemIDs := result.CreatedIDs()
	if len(itemIDs) == 0 {
		return
	}

	if err := p.publisher.PublishItems(ctx, req.CollectionID, itemIDs); err != nil {
		p.metrics.recordPublishFailure()
		p.logger.WithError(err).Warn("Batch publish failed, items remain as drafts")
		result.PublishWarning = fmt.Sprintf("items created but batch publish failed: %v", err)
		return
	}

	if req.SiteID == "" {
		return
	}
	if err := p.publisher.PublishSite(ctx, req.SiteID); err != nil {
		p.metrics.recordPublishFailure()
		p.logger.WithError(err).Warn("Site publish failed")
		result.PublishWarning = fmt.Sprintf("items published but site publish failed: %v", err)
		return
	}

	p.logger.WithField("published", len(itemIDs)).Info("Published batch")
}

func (p *Pipeline) scrapeWithTimeout(ctx context.Context, pageURL, label string) ([]scraper.CandidateImage, string, error) {
	ctx, cancel := p.budget(ctx, p.scrapeTimeout)
	defer cancel()
	return p.scraper.Scrape(ctx, pageURL, label)
}

func (p *Pipeline) uploadWithTimeout(ctx context.Context, siteID string, image scraper.CandidateImage) (string, error) {
	ctx, cancel := p.budget(ctx, p.uploadTimeout)
	defer cancel()
	return p.uploader.Upload(ctx, siteID, image)
}

func (p *Pipeline) createWithTimeout(ctx context.Context, collectionID string, fieldData map[string]any) (string, error) {
	ctx, cancel := p.budget(ctx, p.createTimeout)
	defer cancel()
	return p.publisher.CreateItem(ctx, collectionID, fieldData, true)
}

func (p *Pipeline) budget(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func validSourceURL(raw string) bool {
	if raw == "" {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
