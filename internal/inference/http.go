package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"helioscope/internal/common"
)

// HTTPClient calls a model service over HTTP
type HTTPClient struct {
	endpoint string
	client   *http.Client
}

// NewHTTPClient creates a client for a model service rooted at baseURL
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &HTTPClient{
		endpoint: strings.TrimRight(baseURL, "/") + "/predict",
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// PredictRequest is the body sent to the model service
type PredictRequest struct {
	ImageB64 string `json:"image_b64"`
}

// Infer sends the image to the model service and returns its raw JSON record
func (c *HTTPClient) Infer(ctx context.Context, img common.StitchedImage) (json.RawMessage, error) {
	if img.Empty() {
		return nil, fmt.Errorf("no image to analyse")
	}

	body, err := json.Marshal(PredictRequest{ImageB64: img.DataURL()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference service request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read inference response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference service returned status %d: %s", resp.StatusCode, truncate(payload, 200))
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("inference service returned invalid JSON: %s", truncate(payload, 200))
	}

	return json.RawMessage(bytes.TrimSpace(payload)), nil
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
