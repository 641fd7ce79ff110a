package avatar

import (
	"bytes"
	"image"
	"math"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"studentreg/internal/faceclient"
)

// Characteristics is the ephemeral facial profile derived from a
// detection. It exists only to pick an avatar style and is discarded
// after generation.
type Characteristics struct {
	Gender     string // female, male, neutral
	Age        int
	SkinTone   string // light, medium-light, medium, medium-dark, dark
	HasGlasses bool
	FaceShape  string // round, oval, heart, long
}

func defaultCharacteristics() Characteristics {
	return Characteristics{
		Gender:    "neutral",
		Age:       25,
		SkinTone:  "medium",
		FaceShape: "oval",
	}
}

// CharacteristicsFrom builds a facial profile from the primary
// detection plus the source image. Missing signals fall back to the
// neutral defaults rather than failing.
func CharacteristicsFrom(d faceclient.Detection, img []byte) Characteristics {
	c := defaultCharacteristics()

	if d.Gender == "female" || d.Gender == "male" {
		c.Gender = d.Gender
		c.Age = int(math.Round(d.Age))
	}
	if d.Box.Width > 0 && d.Box.Height > 0 {
		c.FaceShape = faceShapeFromBox(d.Box)
		if tone, ok := skinToneFromImage(img, d.Box); ok {
			c.SkinTone = tone
		}
	}
	return c
}

// faceShapeFromBox buckets the face by width-to-height ratio.
func faceShapeFromBox(box faceclient.Box) string {
	ratio := float64(box.Width) / float64(box.Height)
	switch {
	case ratio > 0.9:
		return "round"
	case ratio > 0.75:
		return "oval"
	case ratio > 0.65:
		return "heart"
	default:
		return "long"
	}
}

// skinToneFromImage samples a small patch at the center of the face
// box and buckets the average brightness into five tones.
func skinToneFromImage(data []byte, box faceclient.Box) (string, bool) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", false
	}

	const sample = 20
	cx := box.X + box.Width/2
	cy := box.Y + box.Height/2
	bounds := img.Bounds()

	var sum, count int64
	for y := cy - sample/2; y < cy+sample/2; y++ {
		for x := cx - sample/2; x < cx+sample/2; x++ {
			if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
				continue
			}
			r, g, b, _ := img.At(x, y).RGBA()
			sum += int64((r>>8 + g>>8 + b>>8) / 3)
			count++
		}
	}
	if count == 0 {
		return "", false
	}

	brightness := sum / count
	switch {
	case brightness > 200:
		return "light", true
	case brightness > 150:
		return "medium-light", true
	case brightness > 100:
		return "medium", true
	case brightness > 50:
		return "medium-dark", true
	default:
		return "dark", true
	}
}

// imageDimensions reads just the image header to get its size.
func imageDimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
