package avatar

import (
	"context"
	"errors"

	"studentreg/internal/faceclient"
)

// Detector is the face-presence capability. The remote implementation
// talks to the analysis service; the heuristic one is the local
// fallback used when the service is unavailable. The strategy is
// chosen by the pipeline, not by exception catching.
type Detector interface {
	TryDetect(ctx context.Context, image []byte) ([]faceclient.Detection, error)
}

// RemoteDetector delegates to the face analysis service.
type RemoteDetector struct {
	Client *faceclient.Client
}

func (d *RemoteDetector) TryDetect(ctx context.Context, image []byte) ([]faceclient.Detection, error) {
	return d.Client.DetectAndAnalyze(ctx, image)
}

// ErrImageTooSmall is the only hard failure of the heuristic fallback.
var ErrImageTooSmall = errors.New("image is too small, please upload a larger photo")

// minFallbackDim is the smallest image edge the heuristic accepts.
const minFallbackDim = 100

// HeuristicDetector accepts any readable image of at least
// 100x100 pixels, reporting a single low-confidence detection with no
// landmarks or estimates. It never reaches the network.
type HeuristicDetector struct{}

func (HeuristicDetector) TryDetect(_ context.Context, image []byte) ([]faceclient.Detection, error) {
	w, h, err := imageDimensions(image)
	if err != nil {
		return nil, ErrImageTooSmall
	}
	if w < minFallbackDim || h < minFallbackDim {
		return nil, ErrImageTooSmall
	}
	return []faceclient.Detection{{
		Score: heuristicScore,
		Box:   faceclient.Box{Width: w, Height: h},
	}}, nil
}

// heuristicScore sits below the confidence threshold so heuristic
// accepts always carry a warning.
const heuristicScore = 0.1
