package scraper

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"pressroom/pkg/logging"
)

const (
	pageStableDur     = 500 * time.Millisecond
	maxConcurrentTabs = 3
	maxScrolls        = 10
	scrollPause       = time.Second
)

// blockedResourceTypes lists network resource types the scraper skips while
// rendering. Image bytes are fetched separately over plain HTTP, so the page
// load itself only needs the DOM.
var blockedResourceTypes = []proto.NetworkResourceType{
	proto.NetworkResourceTypeFont,
	proto.NetworkResourceTypeStylesheet,
	proto.NetworkResourceTypeMedia,
}

// Config configures a Scraper.
type Config struct {
	Logger     logging.Logger
	StagingDir string
}

// Scraper renders JavaScript-heavy pages in a headless Chromium instance and
// collects the images they reference. The browser is a shared resource; each
// scrape acquires its own tab, bounded by a semaphore, and candidate
// downloads go through a retrying HTTP client.
type Scraper struct {
	browser    *rod.Browser
	tabSem     chan struct{}
	downloader *downloader
	logger     logging.Logger
	stagingDir string
}

// New launches a headless Chromium process via Rod's launcher.
// Returns an error if Chrome/Chromium cannot be started.
func New(cfg Config) (*Scraper, error) {
	u, err := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Launch()
	if err != nil {
		return nil, fmt.Errorf("launch headless browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to headless browser: %w", err)
	}

	stagingDir := cfg.StagingDir
	if stagingDir == "" {
		stagingDir = "images"
	}

	return &Scraper{
		browser:    browser,
		tabSem:     make(chan struct{}, maxConcurrentTabs),
		downloader: newDownloader(cfg.Logger),
		logger:     cfg.Logger,
		stagingDir: stagingDir,
	}, nil
}

// Connected reports whether the browser process is reachable, for health
// checks.
func (s *Scraper) Connected() bool {
	if s == nil || s.browser == nil {
		return false
	}
	_, err := proto.BrowserGetVersion{}.Call(s.browser)
	return err == nil
}

// Scrape renders pageURL, waits for lazy content, and downloads every image
// the page references into a run-scoped staging directory. An empty result
// with a nil error means the page genuinely had no usable images. The caller
// owns the returned directory and should Cleanup it when done with the
// candidates.
func (s *Scraper) Scrape(ctx context.Context, pageURL string, runLabel string) ([]CandidateImage, string, error) {
	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		return nil, "", fmt.Errorf("invalid page URL %q", pageURL)
	}

	html, err := s.render(ctx, pageURL)
	if err != nil {
		return nil, "", err
	}

	refs, err := ExtractImageURLs(html, base)
	if err != nil {
		return nil, "", fmt.Errorf("extract images from %s: %w", pageURL, err)
	}
	s.logger.WithFields(logging.Fields{"url": pageURL, "found": len(refs)}).Info("Collected image references")
	if len(refs) == 0 {
		return nil, "", nil
	}

	dir := filepath.Join(s.stagingDir, fmt.Sprintf("%s_%s", time.Now().UTC().Format("20060102_15-04-05"), runLabel))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("create staging dir: %w", err)
	}

	candidates := s.downloader.fetchAll(ctx, refs, dir)
	if len(candidates) == 0 {
		// Nothing survived the content-type and size filters; remove the
		// empty directory so runs do not accumulate.
		_ = os.Remove(dir)
		return nil, "", nil
	}

	return candidates, dir, nil
}

func (s *Scraper) render(ctx context.Context, pageURL string) (string, error) {
	select {
	case s.tabSem <- struct{}{}:
		defer func() { <-s.tabSem }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	page, err := stealth.Page(s.browser)
	if err != nil {
		return "", fmt.Errorf("create tab: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx)

	router := page.HijackRequests()
	for _, rt := range blockedResourceTypes {
		rt := rt
		_ = router.Add("*", rt, func(h *rod.Hijack) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		})
	}
	go router.Run()
	defer router.MustStop()

	if err := page.Navigate(pageURL); err != nil {
		return "", fmt.Errorf("navigate to %s: %w", pageURL, err)
	}
	_ = page.WaitStable(pageStableDur)

	// Scroll to the bottom in steps so lazy loaders attach real sources.
	if err := s.scrollPage(ctx, page); err != nil {
		return "", err
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("get HTML from %s: %w", pageURL, err)
	}
	return html, nil
}

func (s *Scraper) scrollPage(ctx context.Context, page *rod.Page) error {
	lastHeight := -1
	for i := 0; i < maxScrolls; i++ {
		if _, err := page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			return nil // scroll failures are not fatal; use what rendered
		}
		select {
		case <-time.After(scrollPause):
		case <-ctx.Done():
			return ctx.Err()
		}
		height := 0
		if obj, err := page.Eval(`() => document.body.scrollHeight`); err == nil {
			height = obj.Value.Int()
		}
		if height == lastHeight {
			break
		}
		lastHeight = height
	}
	return nil
}

// Cleanup removes a run's staging directory.
func (s *Scraper) Cleanup(dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		s.logger.WithError(err).WithField("dir", dir).Warn("Failed to clean staging directory")
	}
}

// Close shuts down the headless browser process.
func (s *Scraper) Close() {
	_ = s.browser.Close()
}
