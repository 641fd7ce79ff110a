package form

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentreg/internal/avatar"
	"studentreg/internal/faceclient"
	"studentreg/internal/student"
)

type countingSubmitter struct {
	calls int
	last  student.StudentInput
	err   error
}

func (s *countingSubmitter) Create(_ context.Context, in student.StudentInput) (*student.Student, error) {
	s.calls++
	s.last = in
	if s.err != nil {
		return nil, s.err
	}
	return &student.Student{ID: "STU1"}, nil
}

type stubDetector struct {
	detections []faceclient.Detection
	err        error
}

func (d stubDetector) TryDetect(context.Context, []byte) ([]faceclient.Detection, error) {
	return d.detections, d.err
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func avatarServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Write([]byte("<svg/>"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fillValid(c *Controller) {
	c.SetField("first_name", "jane")
	c.SetField("last_name", "doe")
	c.SetField("date_of_birth", "2000-05-15")
	c.SetField("phone_number", "4302032033")
	c.SetField("desired_course", "Computer Science")
}

func TestSubmitEmptyFormCollectsAllErrors(t *testing.T) {
	sub := &countingSubmitter{}
	c := New(sub, nil)

	state := c.Submit(context.Background())

	assert.Equal(t, StateInvalid, state)
	assert.Len(t, c.Errors(), 5)
	assert.Zero(t, sub.calls, "invalid form must not reach the network")
}

func TestSubmitInvalidPhoneAndDOBReportedTogether(t *testing.T) {
	sub := &countingSubmitter{}
	c := New(sub, nil)
	fillValid(c)
	c.SetField("phone_number", "1111111111")
	c.SetField("date_of_birth", "2024-01-01")

	state := c.Submit(context.Background())

	assert.Equal(t, StateInvalid, state)
	fields := make([]string, 0, len(c.Errors()))
	for _, e := range c.Errors() {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"phone_number", "date_of_birth"}, fields)
	assert.Zero(t, sub.calls)
}

func TestSubmitSuccessResetsAfterWindow(t *testing.T) {
	sub := &countingSubmitter{}
	c := New(sub, nil)
	fillValid(c)

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	state := c.Submit(context.Background())
	require.Equal(t, StateSuccess, state)
	assert.Equal(t, 1, sub.calls)

	// Inside the window the success banner is still up.
	now = now.Add(2 * time.Second)
	assert.Equal(t, StateSuccess, c.State())
	assert.Equal(t, "jane", c.Fields().FirstName)

	// Past the window the form is blank again.
	now = now.Add(2 * time.Second)
	assert.Equal(t, StateEditing, c.State())
	assert.Empty(t, c.Fields().FirstName)
}

func TestSubmitFailureKeepsForm(t *testing.T) {
	sub := &countingSubmitter{err: errors.New("Student with this phone number already exists")}
	c := New(sub, nil)
	fillValid(c)

	state := c.Submit(context.Background())

	assert.Equal(t, StateFailure, state)
	assert.Equal(t, "Student with this phone number already exists", c.FailureMessage())
	assert.Equal(t, "jane", c.Fields().FirstName, "form values survive a failed submit")

	// Editing any field clears the failure banner.
	c.SetField("phone_number", "4302032034")
	assert.Equal(t, StateEditing, c.State())
	assert.Empty(t, c.FailureMessage())
}

func TestRejectedAvatarBlocksSubmitWithoutNetworkCall(t *testing.T) {
	sub := &countingSubmitter{}
	srv := avatarServer(t)
	pipe := avatar.NewPipeline(stubDetector{err: errors.New("detector down")}, avatar.NewGenerator(srv.URL), avatar.NewFetcher())
	c := New(sub, pipe)
	fillValid(c)

	// Too small for the heuristic fallback, so the pipeline rejects.
	err := c.AttachAvatar(context.Background(), avatar.Upload{
		Data:        pngImage(t, 40, 40),
		ContentType: "image/png",
	})
	require.Error(t, err)
	require.NotEmpty(t, c.AvatarBlocked())

	state := c.Submit(context.Background())

	assert.Equal(t, StateInvalid, state)
	assert.Zero(t, sub.calls, "a rejected avatar must short-circuit submission")

	// Clearing the rejected photo still leaves the gate closed until an
	// accepted one is attached.
	c.ClearAvatar()
	state = c.Submit(context.Background())
	assert.Equal(t, StateInvalid, state)
	assert.Zero(t, sub.calls)

	require.NoError(t, c.AttachAvatar(context.Background(), avatar.Upload{
		Data:        pngImage(t, 400, 400),
		ContentType: "image/png",
	}))
	state = c.Submit(context.Background())
	assert.Equal(t, StateSuccess, state)
	assert.Equal(t, 1, sub.calls)
}

func TestRejectedAvatarShortCircuitsFieldValidation(t *testing.T) {
	sub := &countingSubmitter{}
	srv := avatarServer(t)
	pipe := avatar.NewPipeline(stubDetector{err: errors.New("detector down")}, avatar.NewGenerator(srv.URL), avatar.NewFetcher())
	c := New(sub, pipe)
	// Every field left blank on purpose.

	err := c.AttachAvatar(context.Background(), avatar.Upload{
		Data:        pngImage(t, 40, 40),
		ContentType: "image/png",
	})
	require.Error(t, err)

	state := c.Submit(context.Background())

	assert.Equal(t, StateInvalid, state)
	require.Len(t, c.Errors(), 1, "the closed gate must fail alone, before field checks")
	assert.Equal(t, "avatar", c.Errors()[0].Field)
	assert.Zero(t, sub.calls)
}

func TestSubmitRequiresAvatarWhenPipelineConfigured(t *testing.T) {
	sub := &countingSubmitter{}
	srv := avatarServer(t)
	pipe := avatar.NewPipeline(stubDetector{}, avatar.NewGenerator(srv.URL), avatar.NewFetcher())
	c := New(sub, pipe)
	fillValid(c)

	state := c.Submit(context.Background())

	assert.Equal(t, StateInvalid, state)
	require.Len(t, c.Errors(), 1)
	assert.Equal(t, "avatar", c.Errors()[0].Field)
	assert.Zero(t, sub.calls, "no avatar attached means no submission")
}

func TestSuccessWindowDisablesEditing(t *testing.T) {
	sub := &countingSubmitter{}
	c := New(sub, nil)
	fillValid(c)

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.Equal(t, StateSuccess, c.Submit(context.Background()))

	// Edits are ignored while the success indicator shows.
	c.SetField("first_name", "bob")
	assert.Equal(t, StateSuccess, c.State())
	assert.Equal(t, "jane", c.Fields().FirstName)

	// Once the window elapses the form is blank and editable again.
	now = now.Add(4 * time.Second)
	c.SetField("first_name", "bob")
	assert.Equal(t, StateEditing, c.State())
	assert.Equal(t, "bob", c.Fields().FirstName)
}

func TestAcceptedAvatarIsSubmittedInline(t *testing.T) {
	sub := &countingSubmitter{}
	srv := avatarServer(t)
	det := stubDetector{detections: []faceclient.Detection{{
		Score:     0.95,
		Landmarks: 68,
		Gender:    "female",
		Age:       24,
		Box:       faceclient.Box{Width: 120, Height: 150},
	}}}
	pipe := avatar.NewPipeline(det, avatar.NewGenerator(srv.URL), avatar.NewFetcher())
	c := New(sub, pipe)
	fillValid(c)

	require.NoError(t, c.AttachAvatar(context.Background(), avatar.Upload{
		Data:        pngImage(t, 400, 400),
		ContentType: "image/png",
	}))
	assert.Empty(t, c.AvatarBlocked())

	state := c.Submit(context.Background())
	require.Equal(t, StateSuccess, state)
	assert.Contains(t, sub.last.Avatar, "data:image/svg+xml;base64,")
}

func TestHeuristicFallbackWarnsButSubmits(t *testing.T) {
	sub := &countingSubmitter{}
	srv := avatarServer(t)
	pipe := avatar.NewPipeline(stubDetector{err: errors.New("detector down")}, avatar.NewGenerator(srv.URL), avatar.NewFetcher())
	c := New(sub, pipe)
	fillValid(c)

	// Big enough for the heuristic, so a placeholder is generated.
	require.NoError(t, c.AttachAvatar(context.Background(), avatar.Upload{
		Data:        pngImage(t, 400, 400),
		ContentType: "image/png",
	}))
	assert.NotEmpty(t, c.AvatarWarning())

	state := c.Submit(context.Background())
	assert.Equal(t, StateSuccess, state)
	assert.Equal(t, 1, sub.calls)
}
