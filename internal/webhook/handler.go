// Package webhook exposes the HTTP trigger for pipeline runs.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pressroom/internal/pipeline"
	"pressroom/pkg/logging"
)

// Runner executes one batch. *pipeline.Pipeline satisfies this.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.BatchResult, error)
}

// Config configures a Handler.
type Config struct {
	Pipeline     Runner
	Logger       logging.Logger
	DefaultCount int
}

// Handler accepts webhook calls and turns them into pipeline requests.
type Handler struct {
	pipeline     Runner
	logger       logging.Logger
	defaultCount int
}

func NewHandler(cfg Config) *Handler {
	defaultCount := cfg.DefaultCount
	if defaultCount <= 0 {
		defaultCount = 5
	}
	return &Handler{
		pipeline:     cfg.Pipeline,
		logger:       cfg.Logger,
		defaultCount: defaultCount,
	}
}

// RegisterRoutes attaches the webhook endpoint to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.POST("/webhook", h.HandleWebhook)
}

type webhookRequest struct {
	CollectionID string         `json:"collection_id"`
	SiteID       string         `json:"site_id"`
	Topic        string         `json:"topic"`
	Count        int            `json:"count"`
	FieldData    map[string]any `json:"fieldData"`
}

type webhookResponse struct {
	Success        bool                   `json:"success"`
	Topic          string                 `json:"topic"`
	ContentDir     string                 `json:"content_dir,omitempty"`
	Summary        pipeline.Summary       `json:"summary"`
	Results        []pipeline.LedgerEntry `json:"results"`
	PublishWarning string                 `json:"publish_warning,omitempty"`
}

// HandleWebhook runs the pipeline for one trigger. The topic comes from the
// trigger record's slug, then its category, then an explicit topic field;
// without any of those there is nothing to generate from.
func (h *Handler) HandleWebhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	if req.CollectionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "collection_id is required"})
		return
	}
	if req.SiteID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "site_id is required"})
		return
	}

	topic := firstNonEmpty(
		stringField(req.FieldData, "slug"),
		stringField(req.FieldData, "category"),
		strings.TrimSpace(req.Topic),
	)
	if topic == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no topic found in request; provide fieldData.slug, fieldData.category or topic"})
		return
	}

	count := req.Count
	if count <= 0 {
		count = h.defaultCount
	}

	h.logger.WithFields(logging.Fields{
		"topic":         topic,
		"count":         count,
		"collection_id": req.CollectionID,
	}).Info("Webhook accepted")

	// An accepted batch runs to completion even if the caller disconnects;
	// half-processed batches would leave orphaned drafts and assets.
	ctx := context.WithoutCancel(c.Request.Context())

	result, err := h.pipeline.Run(ctx, pipeline.Request{
		CollectionID: req.CollectionID,
		SiteID:       req.SiteID,
		Topic:        topic,
		ExtraFields:  extraFields(req.FieldData),
		Count:        count,
	})
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, pipeline.ErrTooManyItems):
			status = http.StatusBadRequest
		case errors.Is(err, pipeline.ErrGeneration):
			status = http.StatusBadGateway
		}
		h.logger.WithError(err).WithField("topic", topic).Error("Pipeline run failed")
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, webhookResponse{
		Success:        true,
		Topic:          result.Topic,
		ContentDir:     result.ContentDir,
		Summary:        result.Summary,
		Results:        result.Results,
		PublishWarning: result.PublishWarning,
	})
}

func stringField(fields map[string]any, key string) string {
	if value, ok := fields[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func extraFields(fields map[string]any) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	extra := make(map[string]string, len(fields))
	for key, value := range fields {
		if s, ok := value.(string); ok && s != "" {
			extra[key] = s
		}
	}
	return extra
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
