package webflow

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"pressroom/pkg/clients"

	"github.com/failsafe-go/failsafe-go"
)

const defaultBaseURL = "https://api.webflow.com/v2"

// APIError carries the status and body of a failed Webflow API call.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		return fmt.Sprintf("webflow returned status: %d", e.StatusCode)
	}
	return fmt.Sprintf("webflow returned status %d: %s", e.StatusCode, msg)
}

// Client talks to the Webflow v2 Data API.
type Client struct {
	baseURL      string
	token        string
	client       *http.Client
	httpExecutor failsafe.Executor[*http.Response]
	shouldRetry  func(resp *http.Response, err error) bool
}

type Option func(*Client)

func NewClient(token string, opts ...Option) *Client {
	defaultConfig := clients.DefaultHTTPExecutorConfig()
	c := &Client{
		baseURL:      defaultBaseURL,
		token:        token,
		client:       &http.Client{Timeout: 30 * time.Second, Transport: clients.DefaultTransport()},
		httpExecutor: clients.NewHTTPExecutor(defaultConfig),
		shouldRetry:  defaultConfig.ShouldRetry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

func WithHTTPExecutorConfig(cfg clients.HTTPExecutorConfig) Option {
	return func(c *Client) {
		c.httpExecutor = clients.NewHTTPExecutor(cfg)
		c.shouldRetry = cfg.ShouldRetry
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("accept-version", "2.0.0")
}

func (c *Client) doRequest(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	if c.httpExecutor == nil {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return c.client.Do(req)
	}

	return clients.ExecuteHTTP(ctx, c.httpExecutor, func() (*http.Response, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if c.shouldRetry != nil && c.shouldRetry(resp, err) {
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
		}
		return resp, err
	})
}

func (c *Client) postJSON(ctx context.Context, url string, body any) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return c.doRequest(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)
		return req, nil
	})
}

func decodeOrAPIError(resp *http.Response, out any) error {
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 400 {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: buf.String()}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Field describes one field in a collection schema.
type Field struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	DisplayName string `json:"displayName"`
	Type        string `json:"type"`
	IsRequired  bool   `json:"isRequired"`
}

// Collection is the schema of a Webflow CMS collection.
type Collection struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	Fields      []Field `json:"fields"`
}

// FieldBySlug returns the field definition for a slug, if present.
func (col *Collection) FieldBySlug(slug string) (Field, bool) {
	for _, f := range col.Fields {
		if f.Slug == slug {
			return f, true
		}
	}
	return Field{}, false
}

// ImageFieldSlug returns the slug of the first Image-typed field, or "" when
// the collection has none.
func (col *Collection) ImageFieldSlug() string {
	for _, f := range col.Fields {
		if f.Type == "Image" {
			return f.Slug
		}
	}
	return ""
}

// GetCollection fetches a collection's schema.
func (c *Client) GetCollection(ctx context.Context, collectionID string) (*Collection, error) {
	reqURL := fmt.Sprintf("%s/collections/%s", c.baseURL, collectionID)

	resp, err := c.doRequest(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var col Collection
	if err := decodeOrAPIError(resp, &col); err != nil {
		return nil, err
	}
	return &col, nil
}

type createItemRequest struct {
	Items []itemPayload `json:"items"`
}

type itemPayload struct {
	IsArchived bool           `json:"isArchived"`
	IsDraft    bool           `json:"isDraft"`
	FieldData  map[string]any `json:"fieldData"`
}

type createItemResponse struct {
	Items []struct {
		ID string `json:"id"`
	} `json:"items"`
}

// CreateItem creates a single CMS item and returns its ID. When live is true
// the item is created non-draft and staged for publishing.
func (c *Client) CreateItem(ctx context.Context, collectionID string, fieldData map[string]any, live bool) (string, error) {
	reqURL := fmt.Sprintf("%s/collections/%s/items?live=%t", c.baseURL, collectionID, live)

	resp, err := c.postJSON(ctx, reqURL, createItemRequest{
		Items: []itemPayload{{IsArchived: false, IsDraft: !live, FieldData: fieldData}},
	})
	if err != nil {
		return "", err
	}

	var result createItemResponse
	if err := decodeOrAPIError(resp, &result); err != nil {
		return "", err
	}
	if len(result.Items) == 0 || result.Items[0].ID == "" {
		return "", fmt.Errorf("webflow create returned no item id")
	}
	return result.Items[0].ID, nil
}

// PublishItems publishes the given item IDs within a collection.
func (c *Client) PublishItems(ctx context.Context, collectionID string, itemIDs []string) error {
	reqURL := fmt.Sprintf("%s/collections/%s/items/publish", c.baseURL, collectionID)

	resp, err := c.postJSON(ctx, reqURL, map[string]any{"itemIds": itemIDs})
	if err != nil {
		return err
	}
	return decodeOrAPIError(resp, nil)
}

// PublishSite triggers a site publish so newly published items go live.
func (c *Client) PublishSite(ctx context.Context, siteID string) error {
	reqURL := fmt.Sprintf("%s/sites/%s/publish", c.baseURL, siteID)

	resp, err := c.postJSON(ctx, reqURL, map[string]any{"publishToWebflowSubdomain": true})
	if err != nil {
		return err
	}
	return decodeOrAPIError(resp, nil)
}

// Asset is the result of an asset upload.
type Asset struct {
	ID        string `json:"id"`
	AssetURL  string `json:"assetUrl"`
	HostedURL string `json:"hostedUrl"`
	FileName  string `json:"originalFileName"`
	CreatedOn string `json:"createdOn"`
}

type prepareUploadResponse struct {
	Asset
	UploadURL     string            `json:"uploadUrl"`
	UploadDetails map[string]string `json:"uploadDetails"`
}

// UploadAsset uploads an image using Webflow's two-step asset flow: register
// the file (name + MD5) to obtain S3 upload credentials, then POST the bytes
// to the returned upload URL. Returns the asset with its hosted URL.
func (c *Client) UploadAsset(ctx context.Context, siteID, fileName string, data []byte) (*Asset, error) {
	sum := md5.Sum(data)
	fileHash := hex.EncodeToString(sum[:])

	prepareURL := fmt.Sprintf("%s/sites/%s/assets", c.baseURL, siteID)
	resp, err := c.postJSON(ctx, prepareURL, map[string]any{
		"fileName": fileName,
		"fileHash": fileHash,
	})
	if err != nil {
		return nil, fmt.Errorf("prepare asset upload: %w", err)
	}

	var prepared prepareUploadResponse
	if err := decodeOrAPIError(resp, &prepared); err != nil {
		return nil, fmt.Errorf("prepare asset upload: %w", err)
	}
	if prepared.UploadURL == "" {
		return nil, fmt.Errorf("prepare asset upload: no upload URL returned")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	// S3 requires the presigned form fields before the file part.
	for key, value := range prepared.UploadDetails {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("build upload form: %w", err)
		}
	}
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build upload form: %w", err)
	}

	uploadReq, err := http.NewRequestWithContext(ctx, "POST", prepared.UploadURL, &body)
	if err != nil {
		return nil, err
	}
	uploadReq.Header.Set("Content-Type", writer.FormDataContentType())

	uploadResp, err := c.client.Do(uploadReq)
	if err != nil {
		return nil, fmt.Errorf("upload asset bytes: %w", err)
	}
	defer func() { _ = uploadResp.Body.Close() }()

	switch uploadResp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
	default:
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(uploadResp.Body)
		return nil, &APIError{StatusCode: uploadResp.StatusCode, Body: buf.String()}
	}

	asset := prepared.Asset
	return &asset, nil
}
