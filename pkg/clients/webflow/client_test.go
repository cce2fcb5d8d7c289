package webflow

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetCollection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/col-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth header = %q", got)
		}
		if got := r.Header.Get("accept-version"); got != "2.0.0" {
			t.Errorf("accept-version = %q", got)
		}
		fmt.Fprint(w, `{"id": "col-1", "displayName": "Dashboards", "fields": [
			{"slug": "name", "type": "PlainText"},
			{"slug": "thumbnail", "type": "Image"}
		]}`)
	}))
	defer server.Close()

	c := NewClient("tok", WithBaseURL(server.URL))
	col, err := c.GetCollection(context.Background(), "col-1")
	if err != nil {
		t.Fatalf("GetCollection: %v", err)
	}
	if col.ImageFieldSlug() != "thumbnail" {
		t.Errorf("ImageFieldSlug = %q", col.ImageFieldSlug())
	}
	if _, ok := col.FieldBySlug("name"); !ok {
		t.Errorf("FieldBySlug(name) missing")
	}
}

func TestCreateItem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/col-1/items" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("live"); got != "true" {
			t.Errorf("live = %q", got)
		}
		var payload struct {
			Items []struct {
				IsArchived bool           `json:"isArchived"`
				IsDraft    bool           `json:"isDraft"`
				FieldData  map[string]any `json:"fieldData"`
			} `json:"items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(payload.Items) != 1 || payload.Items[0].IsDraft {
			t.Errorf("payload = %+v", payload)
		}
		if payload.Items[0].FieldData["name"] != "Sales KPIs" {
			t.Errorf("fieldData = %v", payload.Items[0].FieldData)
		}
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{"items": [{"id": "item-123"}]}`)
	}))
	defer server.Close()

	c := NewClient("tok", WithBaseURL(server.URL))
	id, err := c.CreateItem(context.Background(), "col-1", map[string]any{"name": "Sales KPIs"}, true)
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if id != "item-123" {
		t.Errorf("id = %q", id)
	}
}

func TestCreateItemAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message": "Validation Error: field 'description' too long"}`)
	}))
	defer server.Close()

	c := NewClient("tok", WithBaseURL(server.URL))
	_, err := c.CreateItem(context.Background(), "col-1", map[string]any{}, true)
	if err == nil {
		t.Fatal("CreateItem succeeded on 400")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("err = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || !strings.Contains(apiErr.Body, "Validation Error") {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestPublishItems(t *testing.T) {
	var gotIDs []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/col-1/items/publish" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var payload struct {
			ItemIDs []string `json:"itemIds"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		gotIDs = payload.ItemIDs
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	c := NewClient("tok", WithBaseURL(server.URL))
	if err := c.PublishItems(context.Background(), "col-1", []string{"a", "b"}); err != nil {
		t.Fatalf("PublishItems: %v", err)
	}
	if len(gotIDs) != 2 {
		t.Errorf("itemIds = %v", gotIDs)
	}
}

func TestPublishSite(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sites/site-1/publish" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if payload["publishToWebflowSubdomain"] != true {
			t.Errorf("payload = %v", payload)
		}
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	c := NewClient("tok", WithBaseURL(server.URL))
	if err := c.PublishSite(context.Background(), "site-1"); err != nil {
		t.Fatalf("PublishSite: %v", err)
	}
}

func TestUploadAsset(t *testing.T) {
	data := []byte("fake image bytes")
	sum := md5.Sum(data)
	wantHash := hex.EncodeToString(sum[:])

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	var s3Hit bool
	mux.HandleFunc("/sites/site-1/assets", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode prepare body: %v", err)
		}
		if payload["fileName"] != "hero.jpg" {
			t.Errorf("fileName = %q", payload["fileName"])
		}
		if payload["fileHash"] != wantHash {
			t.Errorf("fileHash = %q, want %q", payload["fileHash"], wantHash)
		}
		fmt.Fprintf(w, `{
			"id": "asset-1",
			"hostedUrl": "https://assets.example.com/hero.jpg",
			"uploadUrl": %q,
			"uploadDetails": {"key": "uploads/hero.jpg", "policy": "signed"}
		}`, server.URL+"/s3-upload")
	})
	mux.HandleFunc("/s3-upload", func(w http.ResponseWriter, r *http.Request) {
		s3Hit = true
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("key"); got != "uploads/hero.jpg" {
			t.Errorf("form key = %q", got)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer func() { _ = file.Close() }()
		body, _ := io.ReadAll(file)
		if string(body) != string(data) {
			t.Errorf("uploaded bytes mismatch")
		}
		w.WriteHeader(http.StatusNoContent)
	})

	c := NewClient("tok", WithBaseURL(server.URL))
	asset, err := c.UploadAsset(context.Background(), "site-1", "hero.jpg", data)
	if err != nil {
		t.Fatalf("UploadAsset: %v", err)
	}
	if !s3Hit {
		t.Fatal("upload URL was never called")
	}
	if asset.HostedURL != "https://assets.example.com/hero.jpg" || asset.ID != "asset-1" {
		t.Errorf("asset = %+v", asset)
	}
}

func TestUploadAssetRejectsMissingUploadURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "asset-1"}`)
	}))
	defer server.Close()

	c := NewClient("tok", WithBaseURL(server.URL))
	if _, err := c.UploadAsset(context.Background(), "site-1", "hero.jpg", []byte("x")); err == nil {
		t.Fatal("UploadAsset succeeded without an upload URL")
	}
}

func TestClientRetriesOn5xx(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"id": "col-1", "fields": []}`)
	}))
	defer server.Close()

	c := NewClient("tok", WithBaseURL(server.URL))
	if _, err := c.GetCollection(context.Background(), "col-1"); err != nil {
		t.Fatalf("GetCollection: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}
