package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a face-analysis inference service over HTTP.
// Calls are synchronous and bounded by the client timeout; failures are
// reported to the caller without retrying, since re-running the same image
// through the same model fails deterministically.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient constructs a client for the inference service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// DetectFaces submits the image and returns one detection per found face.
func (c *Client) DetectFaces(ctx context.Context, image []byte) ([]FaceDetection, error) {
	var payload struct {
		Faces []FaceDetection `json:"faces"`
	}
	if err := c.post(ctx, "/v1/faces", image, &payload); err != nil {
		return nil, err
	}
	return payload.Faces, nil
}

// DetectEmotions submits the image and returns emotion scores per found face.
func (c *Client) DetectEmotions(ctx context.Context, image []byte) ([]EmotionDetection, error) {
	var payload struct {
		Faces []EmotionDetection `json:"faces"`
	}
	if err := c.post(ctx, "/v1/emotions", image, &payload); err != nil {
		return nil, err
	}
	return payload.Faces, nil
}

func (c *Client) post(ctx context.Context, path string, image []byte, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(image))
	if err != nil {
		return fmt.Errorf("build extractor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call extractor %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("extractor %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode extractor response: %w", err)
	}
	return nil
}
