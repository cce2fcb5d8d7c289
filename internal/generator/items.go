package generator

import (
	"regexp"
	"strings"
	"unicode"
)

// ContentItem is one generated unit of structured content destined for a CMS
// record. Fields use the canonical vocabulary; translation to CMS field slugs
// happens in the mapping layer.
type ContentItem struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"title"`
	Subtitle    string   `json:"subtitle"`
	Source      string   `json:"source"`
	Author      string   `json:"author"`
	Link        string   `json:"link"`
	Thumbnail   string   `json:"thumbnail"`
	Tags        []string `json:"tags"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Access      string   `json:"access"`
	SourceType  string   `json:"source_type"`
	License     string   `json:"license,omitempty"`
	LastChecked string   `json:"last_checked"`
	Language    string   `json:"language"`
}

// Canonical returns the item as a canonical-key map, the shape consumed by
// the field mapping layer. Empty values are included; the mapper drops them.
func (item ContentItem) Canonical() map[string]any {
	return map[string]any{
		"title":        item.Title,
		"slug":         item.Slug,
		"subtitle":     item.Subtitle,
		"source":       item.Source,
		"author":       item.Author,
		"link":         item.Link,
		"thumbnail":    item.Thumbnail,
		"tags":         item.Tags,
		"category":     item.Category,
		"description":  item.Description,
		"access":       item.Access,
		"source_type":  item.SourceType,
		"license":      item.License,
		"last_checked": item.LastChecked,
		"language":     item.Language,
	}
}

// Keywords returns the search keywords for image selection: the item slug,
// falling back to category, falling back to a generic default.
func (item ContentItem) Keywords() string {
	if item.Slug != "" {
		return item.Slug
	}
	if item.Category != "" {
		return item.Category
	}
	return "dashboard"
}

// DisplayName identifies the item in ledger entries and logs.
func (item ContentItem) DisplayName() string {
	if item.Title != "" {
		return item.Title
	}
	return item.Slug
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Slugify converts a value into a lowercase hyphenated slug. Non-ASCII
// characters are stripped rather than transliterated.
func Slugify(value string) string {
	ascii := strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, value)
	cleaned := strings.ToLower(strings.Trim(nonAlphanumeric.ReplaceAllString(ascii, "-"), "-"))
	if cleaned == "" {
		return "dashboard-entry"
	}
	return cleaned
}
