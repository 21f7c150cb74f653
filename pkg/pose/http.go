package pose

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/teslashibe/go-posedrive/internal/httpc"
)

// HTTPEstimator posts JPEG frames to an inference endpoint that answers
// with {"poses": [...]}.
type HTTPEstimator struct {
	url    string
	client *http.Client
}

// NewHTTPEstimator creates an estimator for endpoint url using the shared
// HTTP client.
func NewHTTPEstimator(url string) *HTTPEstimator {
	return &HTTPEstimator{
		url:    url,
		client: httpc.Client,
	}
}

// Estimate posts one frame.
func (h *HTTPEstimator) Estimate(ctx context.Context, jpeg []byte) ([]Pose, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(jpeg))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pose request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &ServiceError{Message: fmt.Sprintf("status %d: %s", resp.StatusCode, bytes.TrimSpace(body))}
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode poses: %w", err)
	}
	if out.Error != "" {
		return nil, &ServiceError{Message: out.Error}
	}
	return out.Poses, nil
}

// Close is a no-op; the shared client is not owned.
func (h *HTTPEstimator) Close() error {
	return nil
}
