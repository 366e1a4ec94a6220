// Package storage uploads images to the object storage buckets used by the blog, PHC and
// gallery screens and returns their public URLs.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	BucketBlogImages = "blog-images"
	BucketPHCImages  = "phc-images"
	BucketGallery    = "gallery"
)

// Object identifies an uploaded file.
type Object struct {
	Bucket    string `json:"bucket"`
	Path      string `json:"path"`
	PublicURL string `json:"public_url"`
}

// Store is the file-object store the services upload to.
type Store interface {
	Upload(ctx context.Context, bucket, path, contentType string, data []byte) (Object, error)
	Delete(ctx context.Context, bucket, path string) error
}

// Client talks to a Supabase-compatible storage REST API.
type Client struct {
	baseURL    string
	serviceKey string
	http       *http.Client
}

func NewClient(baseURL, serviceKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Upload(ctx context.Context, bucket, path, contentType string, data []byte) (Object, error) {
	if c.baseURL == "" || c.serviceKey == "" {
		return Object{}, fmt.Errorf("storage is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.objectURL(bucket, path), bytes.NewReader(data))
	if err != nil {
		return Object{}, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")

	resp, err := c.http.Do(req)
	if err != nil {
		return Object{}, fmt.Errorf("failed to send upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Object{}, fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	return Object{Bucket: bucket, Path: path, PublicURL: c.PublicURL(bucket, path)}, nil
}

func (c *Client) Delete(ctx context.Context, bucket, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.objectURL(bucket, path), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("delete failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (c *Client) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, bucket, escapePath(path))
}

func (c *Client) objectURL(bucket, path string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, bucket, escapePath(path))
}

func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.\-_]+`)

// ObjectName builds a unique object path under folder keeping a sanitised copy of the
// original file name.
func ObjectName(folder, original string, now time.Time) string {
	safe := unsafeChars.ReplaceAllString(original, "_")
	if safe == "" {
		safe = "upload"
	}
	name := fmt.Sprintf("%s-%s-%s", now.Format("20060102"), uuid.NewString(), safe)
	if folder == "" {
		return name
	}
	return folder + "/" + name
}
