package faceclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Detection is a single face found by the analysis service. Age and
// gender are estimates; Landmarks is the number of landmark points the
// model resolved (0 when the landmark net produced nothing).
type Detection struct {
	Score     float64 `json:"score"`
	Landmarks int     `json:"landmarks"`
	Age       float64 `json:"age"`
	Gender    string  `json:"gender"`
	Box       Box     `json:"box"`
}

// Box is the detected face bounding box in image pixels.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Detect modes. The fast detector is tried first; on zero results the
// caller retries with the thorough one.
const (
	ModeFast     = "fast"
	ModeThorough = "thorough"
)

// Client calls the face analysis microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client. With skip set, all calls return a canned
// single confident detection so the rest of the pipeline can run
// without the service.
func New(baseURL string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // face processing can take time
		},
	}
}

// WaitReady polls the service health endpoint in 100ms steps for up to
// 10 seconds. A timeout is not an error: the caller proceeds with the
// heuristic fallback instead.
func (c *Client) WaitReady(ctx context.Context) bool {
	if c.Skip {
		return true
	}
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if c.Health(ctx) == nil {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
	return false
}

// DetectAndAnalyze runs face detection over raw image bytes, retrying
// with the thorough detector when the fast one finds nothing.
func (c *Client) DetectAndAnalyze(ctx context.Context, image []byte) ([]Detection, error) {
	if c.Skip {
		return []Detection{{
			Score:     0.95,
			Landmarks: 68,
			Age:       25,
			Gender:    "neutral",
			Box:       Box{X: 40, Y: 40, Width: 200, Height: 200},
		}}, nil
	}

	detections, err := c.detect(ctx, image, ModeFast)
	if err != nil {
		return nil, err
	}
	if len(detections) == 0 {
		detections, err = c.detect(ctx, image, ModeThorough)
		if err != nil {
			return nil, err
		}
	}
	return detections, nil
}

func (c *Client) detect(ctx context.Context, image []byte, mode string) ([]Detection, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("image data required")
	}

	body, _ := json.Marshal(map[string]string{
		"image_data": base64.StdEncoding.EncodeToString(image),
		"mode":       mode,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Detections []Detection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Detections, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}
