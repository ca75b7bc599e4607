package frames

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Default paths served by the photobooth backend.
const (
	ActiveFramePath = "/api/frames/active"
	FrameFilePath   = "/api/frames/file/"
)

// maxAssetBytes bounds a downloaded frame asset.
const maxAssetBytes = 32 << 20

// Client reads the active frame and frame assets from a photobooth backend.
// It satisfies AssetLoader, so it can back a Cache on a capture station
// that does not hold the registry itself.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a Client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type activeFrameResponse struct {
	Frame *Descriptor `json:"frame"`
}

// Active fetches the active frame. Transport failures, non-2xx responses,
// and a null frame all mean "no active frame" and return (nil, nil).
func (c *Client) Active(ctx context.Context) (*Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+ActiveFramePath, nil)
	if err != nil {
		return nil, fmt.Errorf("build active frame request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("Active frame request failed, continuing without frame")
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug().Int("status", resp.StatusCode).Msg("No active frame available")
		return nil, nil
	}

	var body activeFrameResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Warn().Err(err).Msg("Malformed active frame response, continuing without frame")
		return nil, nil
	}
	return body.Frame, nil
}

// LoadAsset downloads the frame asset bytes.
func (c *Client) LoadAsset(ctx context.Context, filename string) ([]byte, error) {
	if !SafeFilename(filename) {
		return nil, fmt.Errorf("invalid frame filename %q", filename)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+FrameFilePath+url.PathEscape(filename), nil)
	if err != nil {
		return nil, fmt.Errorf("build frame asset request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch frame asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch frame asset: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return nil, fmt.Errorf("read frame asset: %w", err)
	}
	return data, nil
}
