package mapping

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"pressroom/pkg/logging"
)

// TagMap resolves tag labels to CMS reference item IDs.
type TagMap map[string]string

// LoadTagMap reads a JSON object mapping tag labels to item IDs. A missing
// path yields an empty map; tags are then skipped entirely.
func LoadTagMap(path string) (TagMap, error) {
	if path == "" {
		return TagMap{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tag map: %w", err)
	}
	var tagMap TagMap
	if err := json.Unmarshal(data, &tagMap); err != nil {
		return nil, fmt.Errorf("tag map %s must contain a JSON object of strings: %w", path, err)
	}
	return tagMap, nil
}

// Resolve translates labels into reference IDs. Unknown labels are dropped
// with a warning; they are a content/config mismatch, not an error.
func (t TagMap) Resolve(labels []string, logger logging.Logger) []string {
	if len(labels) == 0 || len(t) == 0 {
		return nil
	}
	resolved := make([]string, 0, len(labels))
	var missing []string
	for _, label := range labels {
		if id, ok := t[label]; ok && id != "" {
			resolved = append(resolved, id)
		} else {
			missing = append(missing, label)
		}
	}
	if len(missing) > 0 && logger != nil {
		logger.WithField("tags", strings.Join(missing, ", ")).Warn("Missing tag IDs, skipping these tags")
	}
	return resolved
}
