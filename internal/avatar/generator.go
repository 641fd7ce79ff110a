package avatar

import (
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"time"
)

// Avatar styles offered by the image service, keyed by gender.
const (
	StyleFemale = "lorelei"
	StyleMale   = "micah"
)

// Request describes one placeholder image to ask of the avatar
// service: a style bucket, a seed for visual identity, and fixed
// rendering parameters.
type Request struct {
	Style  string
	Seed   string
	Size   int
	Radius int
}

// Generator builds avatar requests from facial characteristics.
type Generator struct {
	BaseURL string

	now  func() time.Time
	rand *rand.Rand
}

// NewGenerator creates a generator against an avatar image service.
func NewGenerator(baseURL string) *Generator {
	return &Generator{
		BaseURL: baseURL,
		now:     time.Now,
		rand:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ForCharacteristics picks the style bucket from the detected gender
// and synthesizes a fresh seed. The timestamp plus random suffix keeps
// avatars visually distinct across submissions.
func (g *Generator) ForCharacteristics(c Characteristics) Request {
	style := StyleMale
	if c.Gender == "female" {
		style = StyleFemale
	}
	return Request{
		Style:  style,
		Seed:   g.seed("user"),
		Size:   200,
		Radius: 50,
	}
}

// Fallback returns a request usable when facial analysis failed
// entirely: a uniformly random style and a seed carrying no
// characteristic data.
func (g *Generator) Fallback() Request {
	style := StyleFemale
	if g.rand.Intn(2) == 0 {
		style = StyleMale
	}
	return Request{
		Style:  style,
		Seed:   g.seed("fallback"),
		Size:   200,
		Radius: 50,
	}
}

// URL renders the request as an avatar service image URL.
func (g *Generator) URL(req Request) string {
	return fmt.Sprintf("%s/%s/svg?seed=%s&size=%d&radius=%d",
		g.BaseURL, req.Style, url.QueryEscape(req.Seed), req.Size, req.Radius)
}

func (g *Generator) seed(prefix string) string {
	suffix := strconv.FormatInt(g.rand.Int63(), 36)
	if len(suffix) > 7 {
		suffix = suffix[:7]
	}
	return fmt.Sprintf("%s-%d-%s", prefix, g.now().UnixMilli(), suffix)
}
