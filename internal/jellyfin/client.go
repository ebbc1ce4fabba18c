// Package jellyfin implements a typed HTTP wrapper over Jellyfin's
// public REST endpoints for primary-image download/upload, tag
// mutation, and item metadata. Retry/backoff on transient failures
// uses github.com/sethvargo/go-retry.
package jellyfin

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"maukemana-backend/internal/batcherr"
	"maukemana-backend/internal/model"
)

// Client is a typed Jellyfin REST client. It is stateless beyond the
// auth token and is safe to share across workers.
type Client struct {
	baseURL    string
	apiKey     string
	userID     string
	httpClient *http.Client

	retries       int
	initialBackoff time.Duration
}

// New creates a Jellyfin client against baseURL, authenticating with
// apiKey as the token of a MediaBrowser Authorization header.
// retries/initialBackoff configure the
// retry policy applied to transient failures.
func New(baseURL, apiKey, userID string, retries int, initialBackoff time.Duration) *Client {
	return &Client{
		baseURL:        baseURL,
		apiKey:         apiKey,
		userID:         userID,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		retries:        retries,
		initialBackoff: initialBackoff,
	}
}

func (c *Client) authHeader(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf(
		`MediaBrowser Token="%s", Client="batch-core", Device="batch-core", DeviceId="batch-core", Version="1.0.0"`,
		c.apiKey))
}

// classify maps an HTTP status code (or transport error) to the
// shared error taxonomy.
func classify(op string, statusCode int, cause error) error {
	if cause != nil {
		return batcherr.Transient(op, cause)
	}
	switch {
	case statusCode == http.StatusTooManyRequests:
		return batcherr.RateLimited(op, fmt.Errorf("jellyfin: rate limited (429)"))
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return batcherr.Permanent(op, fmt.Errorf("jellyfin: unauthorised (%d)", statusCode))
	case statusCode == http.StatusNotFound:
		return batcherr.Permanent(op, fmt.Errorf("jellyfin: not found (404)"))
	case statusCode == http.StatusBadRequest:
		return batcherr.Permanent(op, fmt.Errorf("jellyfin: bad request (400)"))
	case statusCode >= 500:
		return batcherr.Transient(op, fmt.Errorf("jellyfin: server error (%d)", statusCode))
	case statusCode >= 400:
		return batcherr.Permanent(op, fmt.Errorf("jellyfin: client error (%d)", statusCode))
	default:
		return nil
	}
}

// withRetry retries fn on transient/rate-limited classification,
// using exponential backoff starting at c.initialBackoff, bounded to
// c.retries retries after the first attempt (c.retries+1 attempts in
// all), applied uniformly to every Jellyfin call.
func (c *Client) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := retry.NewExponential(c.initialBackoff)
	backoff = retry.WithMaxRetries(uint64(c.retries), backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if batcherr.IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// DownloadPrimary fetches the current primary image bytes for id.
func (c *Client) DownloadPrimary(ctx context.Context, id string) ([]byte, error) {
	var body []byte
	op := "jellyfin.download_primary"
	err := c.withRetry(ctx, op, func(ctx context.Context) error {
		url := fmt.Sprintf("%s/Items/%s/Images/Primary", c.baseURL, id)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return batcherr.Transient(op, err)
		}
		c.authHeader(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return classify(op, 0, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return classify(op, resp.StatusCode, nil)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return batcherr.Transient(op, fmt.Errorf("read image body: %w", err))
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// UploadPrimary replaces the primary image for id with the given
// JPEG bytes. Jellyfin expects the image base64-encoded in the body.
func (c *Client) UploadPrimary(ctx context.Context, id string, imageBytes []byte) error {
	op := "jellyfin.upload_primary"
	encoded := base64.StdEncoding.EncodeToString(imageBytes)
	return c.withRetry(ctx, op, func(ctx context.Context) error {
		url := fmt.Sprintf("%s/Items/%s/Images/Primary", c.baseURL, id)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte(encoded)))
		if err != nil {
			return batcherr.Transient(op, err)
		}
		c.authHeader(req)
		req.Header.Set("Content-Type", "image/jpeg")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return classify(op, 0, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			return classify(op, resp.StatusCode, nil)
		}
		return nil
	})
}

// AddTag attaches tag to the media item identified by id. The caller
// treats a failure here as loggable but non-fatal for the poster as a
// whole.
func (c *Client) AddTag(ctx context.Context, id, tag string) error {
	op := "jellyfin.add_tag"
	return c.withRetry(ctx, op, func(ctx context.Context) error {
		media, err := c.getMediaRaw(ctx, id)
		if err != nil {
			return err
		}
		tags, _ := media["Tags"].([]interface{})
		for _, t := range tags {
			if s, ok := t.(string); ok && s == tag {
				return nil // already tagged
			}
		}
		tags = append(tags, tag)
		media["Tags"] = tags

		payload, err := json.Marshal(media)
		if err != nil {
			return batcherr.Transient(op, fmt.Errorf("marshal item update: %w", err))
		}

		url := fmt.Sprintf("%s/Items/%s", c.baseURL, id)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return batcherr.Transient(op, err)
		}
		c.authHeader(req)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return classify(op, 0, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			return classify(op, resp.StatusCode, nil)
		}
		return nil
	})
}

// GetMedia fetches and decodes a media item's record.
func (c *Client) GetMedia(ctx context.Context, id string) (*model.MediaRecord, error) {
	op := "jellyfin.get_media"
	var record model.MediaRecord
	err := c.withRetry(ctx, op, func(ctx context.Context) error {
		raw, err := c.getMediaRaw(ctx, id)
		if err != nil {
			return err
		}
		record = decodeMediaRecord(id, raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListLibraries returns the Jellyfin virtual folders visible to the
// configured user.
func (c *Client) ListLibraries(ctx context.Context) ([]model.Library, error) {
	op := "jellyfin.list_libraries"
	var libraries []model.Library
	err := c.withRetry(ctx, op, func(ctx context.Context) error {
		url := fmt.Sprintf("%s/Library/VirtualFolders", c.baseURL)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return batcherr.Transient(op, err)
		}
		c.authHeader(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return classify(op, 0, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return classify(op, resp.StatusCode, nil)
		}

		var raw []struct {
			ItemID string `json:"ItemId"`
			Name   string `json:"Name"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return batcherr.Transient(op, fmt.Errorf("decode libraries: %w", err))
		}
		for _, l := range raw {
			libraries = append(libraries, model.Library{ID: l.ItemID, Name: l.Name})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return libraries, nil
}

func (c *Client) getMediaRaw(ctx context.Context, id string) (map[string]interface{}, error) {
	op := "jellyfin.get_media"
	url := fmt.Sprintf("%s/Users/%s/Items/%s", c.baseURL, c.userID, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, batcherr.Transient(op, err)
	}
	c.authHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(op, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classify(op, resp.StatusCode, nil)
	}

	var raw map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, batcherr.Transient(op, fmt.Errorf("decode item: %w", err))
	}
	return raw, nil
}

func decodeMediaRecord(id string, raw map[string]interface{}) model.MediaRecord {
	record := model.MediaRecord{ID: id, ProviderIDs: map[string]string{}}

	if name, ok := raw["Name"].(string); ok {
		record.Name = name
	}
	if providerIDs, ok := raw["ProviderIds"].(map[string]interface{}); ok {
		for k, v := range providerIDs {
			if s, ok := v.(string); ok {
				record.ProviderIDs[k] = s
			}
		}
	}

	sources, _ := raw["MediaSources"].([]interface{})
	for _, s := range sources {
		source, ok := s.(map[string]interface{})
		if !ok {
			continue
		}
		streams, _ := source["MediaStreams"].([]interface{})
		for _, st := range streams {
			stream, ok := st.(map[string]interface{})
			if !ok {
				continue
			}
			kind, _ := stream["Type"].(string)
			switch kind {
			case "Audio":
				record.AudioStreams = append(record.AudioStreams, model.AudioStream{
					Codec:        stringField(stream, "Codec"),
					Profile:      stringField(stream, "Profile"),
					Title:        stringField(stream, "Title"),
					DisplayTitle: stringField(stream, "DisplayTitle"),
					Channels:     intField(stream, "Channels"),
					BitRate:      intField(stream, "BitRate"),
					IsDefault:    boolField(stream, "IsDefault"),
				})
			case "Video":
				record.VideoStreams = append(record.VideoStreams, model.VideoStream{
					Height:         intField(stream, "Height"),
					Width:          intField(stream, "Width"),
					VideoRange:     stringField(stream, "VideoRange"),
					VideoRangeType: stringField(stream, "VideoRangeType"),
					Title:          stringField(stream, "Title"),
				})
			}
		}
	}

	return record
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func intField(m map[string]interface{}, key string) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}

func boolField(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}
