package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"pressroom/pkg/clients"
	"pressroom/pkg/logging"
)

const (
	// Images below this size are tracking pixels and spacer gifs, not
	// thumbnail material.
	minImageBytes = 1024

	downloadUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

var unsafeFilenameExpr = regexp.MustCompile(`[^\w\-.]`)

type downloader struct {
	client   *http.Client
	executor failsafe.Executor[*http.Response]
	logger   logging.Logger
}

func newDownloader(logger logging.Logger) *downloader {
	return &downloader{
		client:   &http.Client{Timeout: 30 * time.Second, Transport: clients.DefaultTransport()},
		executor: clients.NewHTTPExecutor(clients.DefaultHTTPExecutorConfig()),
		logger:   logger,
	}
}

// fetchAll downloads each reference into dir, skipping anything that is not
// an image or is too small to be a thumbnail. Per-URL failures are logged
// and skipped; order of the survivors follows the page order.
func (d *downloader) fetchAll(ctx context.Context, refs []string, dir string) []CandidateImage {
	candidates := make([]CandidateImage, 0, len(refs))
	for idx, ref := range refs {
		candidate, err := d.fetchOne(ctx, ref, dir, idx)
		if err != nil {
			d.logger.WithError(err).WithField("url", ref).Debug("Skipping image download")
			continue
		}
		candidate.Position = len(candidates)
		candidates = append(candidates, candidate)
	}
	d.logger.WithFields(logging.Fields{"dir": dir, "saved": len(candidates)}).Info("Downloaded candidate images")
	return candidates
}

func (d *downloader) fetchOne(ctx context.Context, ref, dir string, idx int) (CandidateImage, error) {
	resp, err := clients.ExecuteHTTP(ctx, d.executor, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", ref, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", downloadUserAgent)
		return d.client.Do(req)
	})
	if err != nil {
		return CandidateImage{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return CandidateImage{}, fmt.Errorf("status %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return CandidateImage{}, fmt.Errorf("not an image: %s", contentType)
	}

	filePath := uniquePath(dir, sanitizeFilename(ref, idx))
	file, err := os.Create(filePath)
	if err != nil {
		return CandidateImage{}, err
	}
	size, err := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if err != nil {
		_ = os.Remove(filePath)
		return CandidateImage{}, err
	}
	if closeErr != nil {
		_ = os.Remove(filePath)
		return CandidateImage{}, closeErr
	}
	if size < minImageBytes {
		_ = os.Remove(filePath)
		return CandidateImage{}, fmt.Errorf("image too small (%d bytes)", size)
	}

	return CandidateImage{SourceURL: ref, Path: filePath, Size: size}, nil
}

// sanitizeFilename derives a safe local filename from an image URL.
func sanitizeFilename(ref string, idx int) string {
	name := ""
	if parsed, err := url.Parse(ref); err == nil {
		name = path.Base(parsed.Path)
	}
	if name == "" || name == "." || name == "/" || !strings.Contains(name, ".") {
		ext := ".jpg"
		lower := strings.ToLower(ref)
		switch {
		case strings.Contains(lower, "png"):
			ext = ".png"
		case strings.Contains(lower, "gif"):
			ext = ".gif"
		case strings.Contains(lower, "webp"):
			ext = ".webp"
		}
		name = fmt.Sprintf("image_%d%s", idx, ext)
	}
	return unsafeFilenameExpr.ReplaceAllString(name, "_")
}

// uniquePath returns a path in dir that does not collide with an existing
// file, suffixing _1, _2, ... as needed.
func uniquePath(dir, name string) string {
	filePath := filepath.Join(dir, name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			return filePath
		}
		filePath = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
	}
}
