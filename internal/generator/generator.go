package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pressroom/pkg/llm"
	"pressroom/pkg/logging"
)

const generateTimeout = 5 * time.Minute

const systemPrompt = `You curate public dashboards for a free dashboard library.
Deliver a clean JSON object with an "items" array of CMS-ready entries.
Each entry has: slug, title, subtitle, source, author, link, thumbnail, tags,
category, description, access, source_type, license, last_checked, language.
Prefer public, no-login examples with canonical URLs. Deduplicate entries.
Do not invent details; use null for unknowns. Normalize categories
(Marketing, Product, Finance, Operations, Healthcare, Government & Open Data,
Sales, People/HR, Engineering/DevOps). Use 1-3 tags.
Respond with a JSON code block only.`

// Config configures a Generator.
type Config struct {
	LLM        llm.Provider
	Logger     logging.Logger
	ContentDir string
}

// Generator produces batches of content items for a topic via the LLM.
type Generator struct {
	llm        llm.Provider
	logger     logging.Logger
	contentDir string
}

func New(cfg Config) *Generator {
	return &Generator{
		llm:        cfg.LLM,
		logger:     cfg.Logger,
		contentDir: cfg.ContentDir,
	}
}

// Generate asks the model for count items about the topic. The extra fields
// from the request are passed through as additional context. Failure here is
// fatal for the whole request; the caller has nothing to process without it.
func (g *Generator) Generate(ctx context.Context, topic string, extra map[string]string, count int) ([]ContentItem, error) {
	if g.llm == nil {
		return nil, fmt.Errorf("LLM provider not configured")
	}

	g.logger.WithFields(logging.Fields{
		"topic": topic,
		"count": count,
	}).Info("Requesting content items from LLM")

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	stream, err := g.llm.Complete(ctx, []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildUserPrompt(topic, extra, count)},
	})
	if err != nil {
		return nil, fmt.Errorf("generate items: %w", err)
	}

	text, err := llm.CollectText(stream)
	if err != nil {
		return nil, fmt.Errorf("generate items: %w", err)
	}

	items, err := ExtractItems(text)
	if err != nil {
		return nil, err
	}

	g.logger.WithField("items", len(items)).Info("Got content items from LLM")
	return items, nil
}

// Stage writes the generated batch to the content directory so a run can be
// inspected or replayed. Failure is logged, not fatal.
func (g *Generator) Stage(items []ContentItem, topic string) string {
	if g.contentDir == "" {
		return ""
	}

	dir := filepath.Join(g.contentDir, fmt.Sprintf("%s_%s", time.Now().UTC().Format("20060102_15-04-05"), Slugify(topic)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		g.logger.WithError(err).Warn("Failed to create content staging directory")
		return ""
	}

	path := filepath.Join(dir, "generated.json")
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		g.logger.WithError(err).Warn("Failed to encode generated items")
		return ""
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		g.logger.WithError(err).Warn("Failed to write generated items")
		return ""
	}

	g.logger.WithFields(logging.Fields{"path": path, "items": len(items)}).Info("Staged generated items")
	return dir
}

func buildUserPrompt(topic string, extra map[string]string, count int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Topic: %s\n", topic)
	fmt.Fprintf(&b, "Deliver exactly %d entries.\n", count)

	if len(extra) > 0 {
		b.WriteString("\nAdditional request context:\n")
		for k, v := range extra {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}

	return b.String()
}
