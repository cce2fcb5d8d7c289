package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	codeBlockExpr = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\}|\\[.*?\\])\\s*```")
	jsonBlobExpr  = regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`)
)

type itemsEnvelope struct {
	Items []ContentItem `json:"items"`
}

// ExtractItems normalizes a model response into content items. The model may
// return pure JSON, JSON wrapped in a markdown code fence, or JSON buried in
// surrounding prose; either an {"items": [...]} envelope or a bare array is
// accepted.
func ExtractItems(text string) ([]ContentItem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("empty model response")
	}

	payload := text
	if !looksLikeJSON(payload) {
		if match := codeBlockExpr.FindStringSubmatch(text); match != nil {
			payload = match[1]
		} else if match := jsonBlobExpr.FindStringSubmatch(text); match != nil {
			payload = match[1]
		} else {
			return nil, errors.New("unable to locate JSON payload in model response")
		}
	}

	items, err := decodeItems(payload)
	if err != nil {
		// The whole response looked like JSON but was not; fall back to
		// searching for an embedded block before giving up.
		if match := codeBlockExpr.FindStringSubmatch(text); match != nil {
			if retry, retryErr := decodeItems(match[1]); retryErr == nil {
				items = retry
				err = nil
			}
		}
		if err != nil {
			return nil, fmt.Errorf("parse model response: %w", err)
		}
	}

	for i := range items {
		if items[i].Slug == "" {
			items[i].Slug = Slugify(items[i].Title)
		}
		if items[i].Tags == nil {
			items[i].Tags = []string{}
		}
	}
	return items, nil
}

func decodeItems(payload string) ([]ContentItem, error) {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "{") {
		var envelope itemsEnvelope
		if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
			return nil, err
		}
		if envelope.Items == nil {
			return nil, errors.New("response JSON does not contain an items list")
		}
		return envelope.Items, nil
	}

	var items []ContentItem
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[")
}
