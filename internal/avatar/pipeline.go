// Package avatar implements the upload-to-avatar pipeline: validate
// the uploaded photo, establish face presence (remote analysis with a
// local heuristic fallback), derive characteristics, and resolve a
// generated placeholder image into an inline data URI.
package avatar

import (
	"context"
	"errors"
	"log"

	"studentreg/internal/validate"
)

// Upload is a photo submitted as avatar source material.
type Upload struct {
	Data        []byte
	ContentType string
}

// Asset is the resolved avatar: the service URL it was generated from
// and the embeddable data-URI payload.
type Asset struct {
	URL     string
	DataURI string
}

// Result carries the resolved asset plus a non-fatal warning when the
// accept decision was best-effort.
type Result struct {
	Asset   Asset
	Warning string
}

// RejectionError marks an upload the pipeline refused (no face,
// multiple faces, bad file, undersized image). These are field-scoped
// validation failures, never transport errors.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

// IsRejection reports whether err is a pipeline rejection.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

// Pipeline wires the detection strategies to the generator and
// fetcher.
type Pipeline struct {
	Remote   Detector
	Fallback Detector
	Gen      *Generator
	Fetch    *Fetcher
}

// NewPipeline builds the standard pipeline: remote detection first,
// heuristic image-dimension fallback when the service fails.
func NewPipeline(remote Detector, gen *Generator, fetch *Fetcher) *Pipeline {
	return &Pipeline{
		Remote:   remote,
		Fallback: HeuristicDetector{},
		Gen:      gen,
		Fetch:    fetch,
	}
}

// Resolve runs the full pipeline over an uploaded photo. A hard
// failure of the remote classifier is recovered through the heuristic
// fallback; only rejected uploads and avatar-service failures return
// errors.
func (p *Pipeline) Resolve(ctx context.Context, up Upload) (Result, error) {
	if err := validate.ValidImageFile(up.ContentType, int64(len(up.Data))); err != nil {
		return Result{}, &RejectionError{Reason: err.Error()}
	}

	var (
		req     Request
		warning string
	)

	detections, err := p.Remote.TryDetect(ctx, up.Data)
	if err != nil {
		// Classifier unavailable: fall back to the local heuristic.
		log.Printf("face detection unavailable, using fallback: %v", err)
		if _, ferr := p.Fallback.TryDetect(ctx, up.Data); ferr != nil {
			return Result{}, &RejectionError{Reason: ferr.Error()}
		}
		warning = "image accepted, please ensure it contains a clear face photo"
		req = p.Gen.Fallback()
	} else {
		v := ValidateDetections(detections)
		if !v.OK {
			return Result{}, &RejectionError{Reason: v.Reason}
		}
		warning = v.Warning

		if detections[0].Gender != "" {
			chars := CharacteristicsFrom(detections[0], up.Data)
			req = p.Gen.ForCharacteristics(chars)
		} else {
			// No age/gender estimates: seed without characteristic data.
			req = p.Gen.Fallback()
		}
	}

	imageURL := p.Gen.URL(req)
	dataURI, err := p.Fetch.Fetch(ctx, imageURL)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Asset:   Asset{URL: imageURL, DataURI: dataURI},
		Warning: warning,
	}, nil
}
