package scraper

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	srcsetImageExpr = regexp.MustCompile(`(?i)([^\s,]+(?:\.jpg|\.jpeg|\.png|\.gif|\.webp)[^\s,]*)`)
	srcsetURLExpr   = regexp.MustCompile(`(https?://[^\s,]+)`)
)

// ExtractImageURLs pulls every image reference out of rendered HTML: <img>
// src and lazy-load attributes, srcset entries, <source> elements, and
// og:image / twitter:image / image_src meta references. Relative references
// are resolved against base; duplicates are removed preserving first-seen
// order.
func ExtractImageURLs(html string, base *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var refs []string

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src := firstAttr(sel, "src", "data-src", "data-lazy-src")
		if src != "" && !strings.HasPrefix(src, "data:") {
			refs = append(refs, src)
		}
		if srcset := firstAttr(sel, "srcset", "data-srcset"); srcset != "" {
			refs = append(refs, srcsetImageExpr.FindAllString(srcset, -1)...)
		}
	})

	doc.Find("source").Each(func(_ int, sel *goquery.Selection) {
		if srcset := firstAttr(sel, "srcset", "data-srcset"); srcset != "" {
			refs = append(refs, srcsetURLExpr.FindAllString(srcset, -1)...)
		}
		if src, ok := sel.Attr("src"); ok && src != "" {
			refs = append(refs, src)
		}
	})

	doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		prop, _ := sel.Attr("property")
		if prop == "og:image" || prop == "twitter:image" {
			if content, ok := sel.Attr("content"); ok && content != "" {
				refs = append(refs, content)
			}
		}
	})

	doc.Find(`link[rel="image_src"]`).Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok && href != "" {
			refs = append(refs, href)
		}
	})

	seen := make(map[string]struct{}, len(refs))
	resolved := make([]string, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" || strings.HasPrefix(ref, "data:") {
			continue
		}
		// srcset entries may carry a width descriptor after the URL
		if idx := strings.IndexAny(ref, " \t"); idx > 0 {
			ref = ref[:idx]
		}
		parsed, err := url.Parse(ref)
		if err != nil {
			continue
		}
		full := base.ResolveReference(parsed).String()
		if _, ok := seen[full]; ok {
			continue
		}
		seen[full] = struct{}{}
		resolved = append(resolved, full)
	}

	return resolved, nil
}

func firstAttr(sel *goquery.Selection, names ...string) string {
	for _, name := range names {
		if value, ok := sel.Attr(name); ok && value != "" {
			return value
		}
	}
	return ""
}
