package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"pressroom/internal/generator"
	"pressroom/internal/mapping"
	"pressroom/internal/scraper"
	"pressroom/internal/selector"
	"pressroom/pkg/clients/webflow"
	"pressroom/pkg/logging"
)

type fakeGenerator struct {
	items []generator.ContentItem
	err   error
}

func (f *fakeGenerator) Generate(ctx context.Context, topic string, extra map[string]string, count int) ([]generator.ContentItem, error) {
	return f.items, f.err
}

func (f *fakeGenerator) Stage(items []generator.ContentItem, topic string) string { return "" }

type fakeScraper struct {
	mu       sync.Mutex
	byURL    map[string][]scraper.CandidateImage
	errByURL map[string]error
	cleaned  []string
}

func (f *fakeScraper) Scrape(ctx context.Context, pageURL, runLabel string) ([]scraper.CandidateImage, string, error) {
	if err := f.errByURL[pageURL]; err != nil {
		return nil, "", err
	}
	candidates := f.byURL[pageURL]
	if len(candidates) == 0 {
		return nil, "", nil
	}
	return candidates, "staging/" + runLabel, nil
}

func (f *fakeScraper) Cleanup(dir string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned = append(f.cleaned, dir)
}

type fakeSelector struct {
	mu     sync.Mutex
	calls  int
	result selector.Result
	err    error
}

func (f *fakeSelector) Select(ctx context.Context, candidates []scraper.CandidateImage, keywords string) (selector.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return selector.Result{}, f.err
	}
	return f.result, nil
}

func (f *fakeSelector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeUploader struct {
	err error
}

func (f *fakeUploader) Upload(ctx context.Context, siteID string, image scraper.CandidateImage) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://assets.example.com/" + image.FileName(), nil
}

type fakePublisher struct {
	mu              sync.Mutex
	createErrByItem map[string]error // keyed by fieldData["name"]
	created         int
	publishedIDs    []string
	publishItemsErr error
	publishSiteErr  error
	sitePublishes   int
}

func (f *fakePublisher) GetCollection(ctx context.Context, collectionID string) (*webflow.Collection, error) {
	return &webflow.Collection{ID: collectionID}, nil
}

func (f *fakePublisher) CreateItem(ctx context.Context, collectionID string, fieldData map[string]any, live bool) (string, error) {
	name, _ := fieldData["name"].(string)
	if err := f.createErrByItem[name]; err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return fmt.Sprintf("item-%d", f.created), nil
}

func (f *fakePublisher) PublishItems(ctx context.Context, collectionID string, itemIDs []string) error {
	if f.publishItemsErr != nil {
		return f.publishItemsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishedIDs = append(f.publishedIDs, itemIDs...)
	return nil
}

func (f *fakePublisher) PublishSite(ctx context.Context, siteID string) error {
	if f.publishSiteErr != nil {
		return f.publishSiteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sitePublishes++
	return nil
}

func testItem(n int) generator.ContentItem {
	return generator.ContentItem{
		Slug:  fmt.Sprintf("item-%d", n),
		Title: fmt.Sprintf("Item %d", n),
		Link:  fmt.Sprintf("https://example.com/page-%d", n),
	}
}

func candidates(n int) []scraper.CandidateImage {
	out := make([]scraper.CandidateImage, n)
	for i := range out {
		out[i] = scraper.CandidateImage{
			SourceURL: fmt.Sprintf("https://example.com/img-%d.jpg", i),
			Path:      fmt.Sprintf("staging/img-%d.jpg", i),
			Position:  i,
		}
	}
	return out
}

func newTestPipeline(gen ContentGenerator, scr ImageScraper, sel ImageSelector, up AssetUploader, pub CMSPublisher) *Pipeline {
	logger := logging.NewLogger()
	return New(Config{
		Generator: gen,
		Scraper:   scr,
		Selector:  sel,
		Uploader:  up,
		Publisher: pub,
		Mapper:    mapping.Builder{FieldMap: mapping.DefaultFieldMap(), Logger: logger},
		Logger:    logger,
	})
}

func baseRequest() Request {
	return Request{CollectionID: "col-1", SiteID: "site-1", Topic: "finance dashboards", Count: 3}
}

func TestRunSkipsItemWithoutImages(t *testing.T) {
	item := testItem(1)
	gen := &fakeGenerator{items: []generator.ContentItem{item}}
	scr := &fakeScraper{byURL: map[string][]scraper.CandidateImage{}}
	sel := &fakeSelector{}
	pub := &fakePublisher{}

	p := newTestPipeline(gen, scr, sel, &fakeUploader{}, pub)
	result, err := p.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := Summary{Total: 1, Created: 0, Skipped: 1, Failed: 0}
	if result.Summary != want {
		t.Fatalf("summary = %+v, want %+v", result.Summary, want)
	}
	entry := result.Results[0]
	if entry.Status != OutcomeSkipped || entry.Reason != "no images found" {
		t.Errorf("entry = %+v, want skipped with reason", entry)
	}
	if sel.callCount() != 0 {
		t.Errorf("selector called %d times for item without images", sel.callCount())
	}
	if len(pub.publishedIDs) != 0 {
		t.Errorf("publish called with nothing created")
	}
}

func TestRunTreatsScrapeErrorAsSkip(t *testing.T) {
	item := testItem(1)
	gen := &fakeGenerator{items: []generator.ContentItem{item}}
	scr := &fakeScraper{errByURL: map[string]error{item.Link: errors.New("net::ERR_NAME_NOT_RESOLVED")}}

	p := newTestPipeline(gen, scr, &fakeSelector{}, &fakeUploader{}, &fakePublisher{})
	result, err := p.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Summary.Skipped != 1 || result.Summary.Failed != 0 {
		t.Fatalf("summary = %+v, want scrape error counted as skip", result.Summary)
	}
}

func TestRunSingleImageBypassesSelector(t *testing.T) {
	one, multi := testItem(1), testItem(2)
	imgs := candidates(3)
	gen := &fakeGenerator{items: []generator.ContentItem{one, multi}}
	scr := &fakeScraper{byURL: map[string][]scraper.CandidateImage{
		one.Link:   candidates(1),
		multi.Link: imgs,
	}}
	sel := &fakeSelector{result: selector.Result{Candidate: imgs[2], Score: 88}}
	pub := &fakePublisher{}

	p := newTestPipeline(gen, scr, sel, &fakeUploader{}, pub)
	result, err := p.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := Summary{Total: 2, Created: 2, Skipped: 0, Failed: 0}
	if result.Summary != want {
		t.Fatalf("summary = %+v, want %+v", result.Summary, want)
	}
	if sel.callCount() != 1 {
		t.Fatalf("selector called %d times, want 1 (only for the multi-image item)", sel.callCount())
	}

	// Ledger keeps batch order regardless of completion order.
	if result.Results[0].Item != one.Title || result.Results[1].Item != multi.Title {
		t.Fatalf("ledger out of order: %+v", result.Results)
	}
	if result.Results[0].ImageScore != nil {
		t.Errorf("single-image item recorded a score: %v", *result.Results[0].ImageScore)
	}
	if result.Results[1].ImageScore == nil || *result.Results[1].ImageScore != 88 {
		t.Errorf("multi-image item score = %v, want 88", result.Results[1].ImageScore)
	}
	if len(pub.publishedIDs) != 2 {
		t.Errorf("published %d items, want 2", len(pub.publishedIDs))
	}
	if pub.sitePublishes != 1 {
		t.Errorf("site publishes = %d, want 1", pub.sitePublishes)
	}
}

func TestRunSelectorFailureFallsBackToFirstCandidate(t *testing.T) {
	item := testItem(1)
	imgs := candidates(4)
	gen := &fakeGenerator{items: []generator.ContentItem{item}}
	scr := &fakeScraper{byURL: map[string][]scraper.CandidateImage{item.Link: imgs}}
	sel := &fakeSelector{err: errors.New("vision model unavailable")}

	p := newTestPipeline(gen, scr, sel, &fakeUploader{}, &fakePublisher{})
	result, err := p.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	entry := result.Results[0]
	if entry.Status != OutcomeCreated {
		t.Fatalf("entry = %+v, want created despite selector failure", entry)
	}
	if !strings.Contains(entry.ThumbnailURL, imgs[0].FileName()) {
		t.Errorf("thumbnail = %q, want first candidate %q", entry.ThumbnailURL, imgs[0].FileName())
	}
	if entry.ImageScore != nil {
		t.Errorf("fallback recorded a score: %v", *entry.ImageScore)
	}
}

func TestRunIsolatesCreateFailure(t *testing.T) {
	items := []generator.ContentItem{testItem(1), testItem(2), testItem(3)}
	byURL := map[string][]scraper.CandidateImage{}
	for _, item := range items {
		byURL[item.Link] = candidates(1)
	}
	gen := &fakeGenerator{items: items}
	scr := &fakeScraper{byURL: byURL}
	pub := &fakePublisher{createErrByItem: map[string]error{
		items[1].Title: errors.New("validation error: description too long"),
	}}

	p := newTestPipeline(gen, scr, &fakeSelector{}, &fakeUploader{}, pub)
	result, err := p.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := Summary{Total: 3, Created: 2, Skipped: 0, Failed: 1}
	if result.Summary != want {
		t.Fatalf("summary = %+v, want %+v", result.Summary, want)
	}
	failed := result.Results[1]
	if failed.Status != OutcomeFailed || !strings.Contains(failed.Error, "validation error") {
		t.Errorf("failed entry = %+v, want create error recorded", failed)
	}
	// Publish still runs for the surviving items.
	if len(pub.publishedIDs) != 2 {
		t.Errorf("published %d items, want 2", len(pub.publishedIDs))
	}
}

func TestRunUploadFailureFailsItem(t *testing.T) {
	item := testItem(1)
	gen := &fakeGenerator{items: []generator.ContentItem{item}}
	scr := &fakeScraper{byURL: map[string][]scraper.CandidateImage{item.Link: candidates(1)}}

	p := newTestPipeline(gen, scr, &fakeSelector{}, &fakeUploader{err: errors.New("asset store unavailable")}, &fakePublisher{})
	result, err := p.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	entry := result.Results[0]
	if entry.Status != OutcomeFailed || !strings.Contains(entry.Error, "upload thumbnail") {
		t.Fatalf("entry = %+v, want upload failure", entry)
	}
}

func TestRunRejectsMalformedSourceURL(t *testing.T) {
	items := []generator.ContentItem{
		{Slug: "no-link", Title: "No Link"},
		{Slug: "bad-scheme", Title: "Bad Scheme", Link: "ftp://example.com/x"},
	}
	gen := &fakeGenerator{items: items}
	scr := &fakeScraper{}

	p := newTestPipeline(gen, scr, &fakeSelector{}, &fakeUploader{}, &fakePublisher{})
	result, err := p.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Summary.Failed != 2 {
		t.Fatalf("summary = %+v, want both items failed", result.Summary)
	}
	for _, entry := range result.Results {
		if !strings.Contains(entry.Error, "source URL") {
			t.Errorf("entry error = %q, want source URL failure", entry.Error)
		}
	}
}

func TestRunRejectsOversizedRequest(t *testing.T) {
	p := newTestPipeline(&fakeGenerator{}, &fakeScraper{}, &fakeSelector{}, &fakeUploader{}, &fakePublisher{})
	req := baseRequest()
	req.Count = 100

	_, err := p.Run(context.Background(), req)
	if !errors.Is(err, ErrTooManyItems) {
		t.Fatalf("err = %v, want ErrTooManyItems", err)
	}
}

func TestRunWrapsGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model timeout")}
	p := newTestPipeline(gen, &fakeScraper{}, &fakeSelector{}, &fakeUploader{}, &fakePublisher{})

	_, err := p.Run(context.Background(), baseRequest())
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
}

func TestRunPublishFailureIsWarningNotError(t *testing.T) {
	item := testItem(1)
	gen := &fakeGenerator{items: []generator.ContentItem{item}}
	scr := &fakeScraper{byURL: map[string][]scraper.CandidateImage{item.Link: candidates(1)}}
	pub := &fakePublisher{publishItemsErr: errors.New("rate limited")}

	p := newTestPipeline(gen, scr, &fakeSelector{}, &fakeUploader{}, pub)
	result, err := p.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Summary.Created != 1 {
		t.Fatalf("summary = %+v, item should still count as created", result.Summary)
	}
	if !strings.Contains(result.PublishWarning, "batch publish failed") {
		t.Errorf("publish warning = %q", result.PublishWarning)
	}
	if pub.sitePublishes != 0 {
		t.Errorf("site publish ran after item publish failed")
	}
}

func TestRunSitePublishFailureIsWarning(t *testing.T) {
	item := testItem(1)
	gen := &fakeGenerator{items: []generator.ContentItem{item}}
	scr := &fakeScraper{byURL: map[string][]scraper.CandidateImage{item.Link: candidates(1)}}
	pub := &fakePublisher{publishSiteErr: errors.New("publish in progress")}

	p := newTestPipeline(gen, scr, &fakeSelector{}, &fakeUploader{}, pub)
	result, err := p.Run(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(result.PublishWarning, "site publish failed") {
		t.Errorf("publish warning = %q", result.PublishWarning)
	}
	if len(pub.publishedIDs) != 1 {
		t.Errorf("item publish should have succeeded first")
	}
}

func TestRunCleansStagingPerItem(t *testing.T) {
	item := testItem(1)
	gen := &fakeGenerator{items: []generator.ContentItem{item}}
	scr := &fakeScraper{byURL: map[string][]scraper.CandidateImage{item.Link: candidates(2)}}

	p := newTestPipeline(gen, scr, &fakeSelector{result: selector.Result{Candidate: candidates(2)[1], Score: 95}}, &fakeUploader{}, &fakePublisher{})
	if _, err := p.Run(context.Background(), baseRequest()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(scr.cleaned) != 1 {
		t.Fatalf("cleaned %d staging dirs, want 1", len(scr.cleaned))
	}
}

func TestRunOrderStableWithWorkers(t *testing.T) {
	var items []generator.ContentItem
	byURL := map[string][]scraper.CandidateImage{}
	for i := 1; i <= 8; i++ {
		item := testItem(i)
		items = append(items, item)
		byURL[item.Link] = candidates(1)
	}
	gen := &fakeGenerator{items: items}
	scr := &fakeScraper{byURL: byURL}
	logger := logging.NewLogger()

	p := New(Config{
		Generator: gen,
		Scraper:   scr,
		Selector:  &fakeSelector{},
		Uploader:  &fakeUploader{},
		Publisher: &fakePublisher{},
		Mapper:    mapping.Builder{FieldMap: mapping.DefaultFieldMap(), Logger: logger},
		Logger:    logger,
		Workers:   4,
	})

	req := baseRequest()
	req.Count = 8
	result, err := p.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i, entry := range result.Results {
		if entry.Item != items[i].Title {
			t.Fatalf("ledger[%d] = %q, want %q", i, entry.Item, items[i].Title)
		}
	}
	if got := result.Summary; got.Total != got.Created+got.Skipped+got.Failed {
		t.Fatalf("summary does not reconcile: %+v", got)
	}
}
