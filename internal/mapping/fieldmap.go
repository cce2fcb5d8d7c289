package mapping

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"pressroom/pkg/clients/webflow"
	"pressroom/pkg/logging"
)

// canonicalKeys is the recognized vocabulary of generated content fields.
// Mapping overrides naming anything else are configuration mistakes and are
// rejected at load time instead of being passed through silently.
var canonicalKeys = map[string]struct{}{
	"title":        {},
	"slug":         {},
	"subtitle":     {},
	"source":       {},
	"author":       {},
	"link":         {},
	"thumbnail":    {},
	"tags":         {},
	"category":     {},
	"description":  {},
	"access":       {},
	"source_type":  {},
	"license":      {},
	"last_checked": {},
	"language":     {},
}

// FieldMap translates canonical field names to CMS field slugs. An empty
// slug disables the field.
type FieldMap map[string]string

// DefaultFieldMap returns the built-in canonical-to-Webflow mapping.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		"title":        "name",
		"slug":         "slug",
		"subtitle":     "subtitle",
		"source":       "source-name",
		"author":       "author",
		"link":         "source-url",
		"thumbnail":    "thumbnail",
		"tags":         "tags",
		"category":     "category",
		"description":  "description",
		"access":       "access-level",
		"source_type":  "source-type",
		"license":      "license",
		"last_checked": "last-checked",
		"language":     "language",
	}
}

// LoadFieldMap returns the default mapping with overrides applied from a
// JSON object file. Overrides for unknown canonical keys are an error.
func LoadFieldMap(path string) (FieldMap, error) {
	fieldMap := DefaultFieldMap()
	if path == "" {
		return fieldMap, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read field map: %w", err)
	}
	var overrides map[string]string
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("field map %s must contain a JSON object of strings: %w", path, err)
	}

	var unknown []string
	for key, slug := range overrides {
		if _, ok := canonicalKeys[key]; !ok {
			unknown = append(unknown, key)
			continue
		}
		fieldMap[key] = slug
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("field map %s contains unknown canonical keys: %v", path, unknown)
	}

	return fieldMap, nil
}

// Builder turns canonical item fields into CMS field data.
type Builder struct {
	FieldMap FieldMap
	TagMap   TagMap
	Logger   logging.Logger
}

// Build maps the canonical item values onto CMS field slugs, resolving tag
// labels to reference IDs and attaching the uploaded asset URL as the
// thumbnail. When a collection schema is supplied, slugs the collection does
// not expose are dropped and reference fields are type-checked.
func (b Builder) Build(canonical map[string]any, assetURL string, collection *webflow.Collection) map[string]any {
	prepared := make(map[string]any)

	for key, slug := range b.FieldMap {
		if slug == "" {
			continue
		}
		value, ok := canonical[key]
		if !ok || isEmptyValue(value) {
			continue
		}
		switch key {
		case "thumbnail":
			// Replaced below with the uploaded asset; the generated
			// thumbnail URL is only a hint for the model.
			continue
		case "tags":
			labels, _ := value.([]string)
			refs := b.TagMap.Resolve(labels, b.Logger)
			if len(refs) > 0 {
				prepared[slug] = refs
			}
		default:
			prepared[slug] = value
		}
	}

	if assetURL != "" {
		thumbnailSlug := b.FieldMap["thumbnail"]
		if collection != nil {
			if imageSlug := collection.ImageFieldSlug(); imageSlug != "" {
				thumbnailSlug = imageSlug
			}
		}
		if thumbnailSlug != "" {
			prepared[thumbnailSlug] = map[string]any{"url": assetURL}
		}
	}

	if collection == nil || len(collection.Fields) == 0 {
		return prepared
	}

	filtered := make(map[string]any, len(prepared))
	for slug, value := range prepared {
		field, ok := collection.FieldBySlug(slug)
		if !ok {
			b.logDebug("Skipping field not present in collection", slug)
			continue
		}
		switch field.Type {
		case "MultiReference":
			if refs, ok := value.([]string); ok {
				filtered[slug] = refs
			} else {
				b.logDebug("Skipping field; expected reference ID list", slug)
			}
		case "Reference":
			if ref, ok := value.(string); ok {
				filtered[slug] = ref
			} else {
				b.logDebug("Skipping field; expected single reference ID", slug)
			}
		default:
			filtered[slug] = value
		}
	}

	return filtered
}

func (b Builder) logDebug(msg, slug string) {
	if b.Logger != nil {
		b.Logger.WithField("slug", slug).Debug(msg)
	}
}

func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	default:
		return false
	}
}
