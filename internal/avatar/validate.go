package avatar

import "studentreg/internal/faceclient"

// confidenceThreshold is the detection score below which a single
// face is still accepted but flagged with a warning.
const confidenceThreshold = 0.3

// Validation is the outcome of the face-presence policy.
type Validation struct {
	OK      bool
	Warning string
	Reason  string // set when OK is false
}

// ValidateDetections applies the acceptance policy to detector output.
// The policy is intentionally permissive: the only hard rejections are
// zero faces and more than one face.
func ValidateDetections(detections []faceclient.Detection) Validation {
	if len(detections) == 0 {
		return Validation{Reason: "no human face detected in the image, please upload a clear photo of your face"}
	}
	if len(detections) > 1 {
		return Validation{Reason: "multiple faces detected, please upload a photo with only one person"}
	}

	d := detections[0]
	if d.Score < confidenceThreshold {
		return Validation{OK: true, Warning: "face detected with low confidence, avatar may not match perfectly"}
	}
	if d.Landmarks > 0 {
		return Validation{OK: true}
	}
	return Validation{OK: true, Warning: "face detected, avatar will be generated"}
}
