package scraper

import "os"

// CandidateImage is one image retrieved from a source page, not yet judged
// for relevance. It lives in the run's staging directory and is discarded
// once the owning item finishes processing.
type CandidateImage struct {
	// SourceURL is the resolved URL the image was downloaded from.
	SourceURL string
	// Path is the local staging path of the downloaded bytes.
	Path string
	// Position is the ordinal position the image was found on the page.
	Position int
	// Size is the downloaded byte count.
	Size int64
}

// Read returns the downloaded image bytes.
func (c CandidateImage) Read() ([]byte, error) {
	return os.ReadFile(c.Path)
}

// FileName returns the staged file's base name.
func (c CandidateImage) FileName() string {
	for i := len(c.Path) - 1; i >= 0; i-- {
		if c.Path[i] == '/' || c.Path[i] == os.PathSeparator {
			return c.Path[i+1:]
		}
	}
	return c.Path
}
