// Package form drives the registration form lifecycle: field edits,
// whole-form validation, the avatar gate, submission, and the
// transient success state.
package form

import (
	"context"
	"strings"
	"time"

	"studentreg/internal/avatar"
	"studentreg/internal/student"
	"studentreg/internal/validate"
)

// State is the controller's lifecycle position.
type State string

const (
	StateEditing    State = "editing"
	StateValidating State = "validating"
	StateInvalid    State = "invalid"
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
	StateFailure    State = "failure"
)

// successWindow is how long the success banner shows before the form
// resets for the next entry.
const successWindow = 3 * time.Second

// Fields are the raw user-entered values.
type Fields struct {
	FirstName     string
	MiddleName    string
	LastName      string
	DateOfBirth   string
	PhoneNumber   string
	DesiredCourse string
}

// FieldError ties a message to the field it belongs to.
type FieldError struct {
	Field   string
	Message string
}

// Submitter sends a validated record to the backend. *client.Repository
// satisfies it.
type Submitter interface {
	Create(ctx context.Context, in student.StudentInput) (*student.Student, error)
}

// Controller holds the form state machine.
type Controller struct {
	submitter Submitter
	pipeline  *avatar.Pipeline

	state  State
	fields Fields
	errors []FieldError

	avatarResult  *avatar.Result
	avatarBlocked string // rejection reason, submission gate
	avatarWarning string

	failureMessage string
	successUntil   time.Time

	now func() time.Time
}

// New creates a controller in the editing state. The pipeline may be
// nil when no avatar upload is offered.
func New(submitter Submitter, pipeline *avatar.Pipeline) *Controller {
	return &Controller{
		submitter: submitter,
		pipeline:  pipeline,
		state:     StateEditing,
		now:       time.Now,
	}
}

// State reports the current lifecycle position, expiring the success
// window lazily.
func (c *Controller) State() State {
	if c.state == StateSuccess && c.now().After(c.successUntil) {
		c.reset()
	}
	return c.state
}

// Fields returns the current values.
func (c *Controller) Fields() Fields { return c.fields }

// Errors returns the field errors from the last validation.
func (c *Controller) Errors() []FieldError { return c.errors }

// FailureMessage returns the server/network message after a failed
// submit.
func (c *Controller) FailureMessage() string { return c.failureMessage }

// AvatarWarning surfaces a pipeline warning (low confidence, fallback
// placeholder) without blocking submission.
func (c *Controller) AvatarWarning() string { return c.avatarWarning }

// AvatarBlocked reports why the avatar gate is closed, empty when open.
func (c *Controller) AvatarBlocked() string { return c.avatarBlocked }

// SetField updates one value and drops the controller back to editing.
// While the success indicator is showing the form is disabled and
// edits are ignored.
func (c *Controller) SetField(name, value string) {
	if c.State() == StateSuccess {
		return
	}
	switch name {
	case "first_name":
		c.fields.FirstName = value
	case "middle_name":
		c.fields.MiddleName = value
	case "last_name":
		c.fields.LastName = value
	case "date_of_birth":
		c.fields.DateOfBirth = value
	case "phone_number":
		c.fields.PhoneNumber = value
	case "desired_course":
		c.fields.DesiredCourse = value
	}
	c.state = StateEditing
	c.failureMessage = ""
}

// AttachAvatar runs the upload through the avatar pipeline. A
// rejection closes the submission gate until a different image is
// attached.
func (c *Controller) AttachAvatar(ctx context.Context, up avatar.Upload) error {
	c.avatarResult = nil
	c.avatarBlocked = ""
	c.avatarWarning = ""

	res, err := c.pipeline.Resolve(ctx, up)
	if err != nil {
		if avatar.IsRejection(err) {
			c.avatarBlocked = err.Error()
		}
		return err
	}
	c.avatarResult = &res
	c.avatarWarning = res.Warning
	return nil
}

// ClearAvatar removes the attached image and reopens the gate.
func (c *Controller) ClearAvatar() {
	c.avatarResult = nil
	c.avatarBlocked = ""
	c.avatarWarning = ""
}

// validateFields collects every problem at once rather than stopping
// at the first.
func (c *Controller) validateFields() []FieldError {
	var errs []FieldError
	required := []struct{ name, val string }{
		{"first_name", c.fields.FirstName},
		{"last_name", c.fields.LastName},
		{"date_of_birth", c.fields.DateOfBirth},
		{"phone_number", c.fields.PhoneNumber},
		{"desired_course", c.fields.DesiredCourse},
	}
	for _, f := range required {
		if strings.TrimSpace(f.val) == "" {
			errs = append(errs, FieldError{Field: f.name, Message: "This field is required"})
		}
	}
	if strings.TrimSpace(c.fields.PhoneNumber) != "" && !validate.ValidPhoneNumber(c.fields.PhoneNumber) {
		errs = append(errs, FieldError{Field: "phone_number", Message: "Please enter a valid phone number"})
	}
	if strings.TrimSpace(c.fields.DateOfBirth) != "" && !validate.ValidDateOfBirth(c.fields.DateOfBirth, c.now()) {
		errs = append(errs, FieldError{Field: "date_of_birth", Message: "Please enter a valid date of birth"})
	}
	return errs
}

// Submit validates the form and, if the avatar gate is open and every
// field passes, sends the record. The avatar gate is checked first and
// on its own: a closed gate fails the submission before field
// validation runs, and no network call is ever made from an invalid
// form.
func (c *Controller) Submit(ctx context.Context) State {
	c.state = StateValidating

	if c.pipeline != nil {
		reason := c.avatarBlocked
		if reason == "" && c.avatarResult == nil {
			reason = "Please upload a profile photo"
		}
		if reason != "" {
			c.errors = []FieldError{{Field: "avatar", Message: reason}}
			c.state = StateInvalid
			return c.state
		}
	}

	c.errors = c.validateFields()
	if len(c.errors) > 0 {
		c.state = StateInvalid
		return c.state
	}

	c.state = StateSubmitting
	in := student.StudentInput{
		FirstName:     c.fields.FirstName,
		MiddleName:    optional(c.fields.MiddleName),
		LastName:      c.fields.LastName,
		DateOfBirth:   c.fields.DateOfBirth,
		PhoneNumber:   c.fields.PhoneNumber,
		DesiredCourse: c.fields.DesiredCourse,
	}
	if c.avatarResult != nil {
		if c.avatarResult.Asset.DataURI != "" {
			in.Avatar = c.avatarResult.Asset.DataURI
		} else {
			in.Avatar = c.avatarResult.Asset.URL
		}
	}

	if _, err := c.submitter.Create(ctx, in); err != nil {
		c.failureMessage = err.Error()
		c.state = StateFailure
		return c.state
	}

	c.state = StateSuccess
	c.successUntil = c.now().Add(successWindow)
	return c.state
}

// reset clears the form after the success window elapses.
func (c *Controller) reset() {
	c.fields = Fields{}
	c.errors = nil
	c.avatarResult = nil
	c.avatarBlocked = ""
	c.avatarWarning = ""
	c.failureMessage = ""
	c.state = StateEditing
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
