package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// VisionScore is the model's judgment of one image against a set of keywords.
type VisionScore struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// VisionClient scores images against keywords using an OpenAI-compatible
// vision model. Unlike Provider it uses non-streaming chat completions,
// since the response is a single small JSON object.
type VisionClient struct {
	client *http.Client
	apiKey string
	apiURL string
	model  string
}

func NewVisionClient(cfg Config) *VisionClient {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.openai.com/v1"
	}
	return &VisionClient{
		client: &http.Client{Timeout: 60 * time.Second},
		apiKey: cfg.APIKey,
		apiURL: apiURL,
		model:  cfg.Model,
	}
}

type visionRequest struct {
	Model     string          `json:"model"`
	Messages  []visionMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type visionMessage struct {
	Role    string          `json:"role"`
	Content []visionContent `json:"content"`
}

type visionContent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *visionImageURL `json:"image_url,omitempty"`
}

type visionImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type visionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// ScoreImage asks the vision model to rate how well imageData matches the
// keywords and returns a 0-100 score with a short reasoning string.
func (v *VisionClient) ScoreImage(ctx context.Context, imageData []byte, keywords string) (VisionScore, error) {
	encoded := base64.StdEncoding.EncodeToString(imageData)
	prompt := fmt.Sprintf("Rate how well this image matches these keywords: %q\n\n"+
		"Respond with JSON only:\n{\n  \"score\": <0-100>,\n  \"reasoning\": \"<brief explanation>\"\n}", keywords)

	reqBody := visionRequest{
		Model: v.model,
		Messages: []visionMessage{{
			Role: "user",
			Content: []visionContent{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &visionImageURL{
					URL:    "data:image/jpeg;base64," + encoded,
					Detail: "low",
				}},
			},
		}},
		MaxTokens: 300,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return VisionScore{}, fmt.Errorf("vision: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.apiURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return VisionScore{}, fmt.Errorf("vision: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return VisionScore{}, fmt.Errorf("vision: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return VisionScore{}, fmt.Errorf("vision: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var parsed visionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return VisionScore{}, fmt.Errorf("vision: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return VisionScore{}, fmt.Errorf("vision: empty response")
	}

	return parseVisionScore(parsed.Choices[0].Message.Content)
}

// parseVisionScore extracts the score JSON, tolerating markdown code fences
// around the payload.
func parseVisionScore(content string) (VisionScore, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var score VisionScore
	if err := json.Unmarshal([]byte(content), &score); err != nil {
		return VisionScore{}, fmt.Errorf("vision: parse score: %w", err)
	}
	if score.Score < 0 {
		score.Score = 0
	}
	if score.Score > 100 {
		score.Score = 100
	}
	if score.Reasoning == "" {
		score.Reasoning = "No reasoning provided"
	}
	return score, nil
}
