// Package student holds the registration records, their persistence,
// and the service rules around creating and querying them.
package student

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"
)

// Student is the course-registration record shape.
type Student struct {
	ID               string    `json:"id"`
	FirstName        string    `json:"first_name"`
	MiddleName       *string   `json:"middle_name,omitempty"`
	LastName         string    `json:"last_name"`
	DateOfBirth      string    `json:"date_of_birth"`
	PhoneNumber      string    `json:"phone_number"`
	DesiredCourse    string    `json:"desired_course"`
	Avatar           *string   `json:"avatar_data"`
	RegistrationDate time.Time `json:"registration_date"`

	avatarData []byte
	avatarURL  string
}

// Contact is the contact-directory record shape.
type Contact struct {
	ID               string    `json:"id"`
	FullName         string    `json:"full_name"`
	Company          string    `json:"company"`
	PhoneNumber      string    `json:"phone_number"`
	AlternatePhone   *string   `json:"alternate_phone,omitempty"`
	Email            string    `json:"email"`
	Avatar           *string   `json:"avatar_data"`
	RegistrationDate time.Time `json:"registration_date"`

	avatarData []byte
	avatarURL  string
}

// Typed failures surfaced to the HTTP layer.
var ErrNotFound = errors.New("record not found")

// ConflictError reports a uniqueness violation with a message safe to
// show the user verbatim.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ValidationError reports missing or malformed fields on create.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string { return e.Message }

var dataURIPrefix = regexp.MustCompile(`^data:image/[a-z+.-]+;base64,`)

// decodeAvatarPayload splits an avatar payload into raw image bytes
// (when the payload is a base64 data URI) or a plain URL.
func decodeAvatarPayload(payload string) (data []byte, url string, err error) {
	if payload == "" {
		return nil, "", nil
	}
	if loc := dataURIPrefix.FindString(payload); loc != "" {
		raw, err := base64.StdEncoding.DecodeString(payload[len(loc):])
		if err != nil {
			return nil, "", fmt.Errorf("invalid avatar data: %w", err)
		}
		return raw, "", nil
	}
	return nil, payload, nil
}

// encodeAvatar renders stored avatar state back into the wire
// representation: inline bytes win over a stored URL.
func encodeAvatar(data []byte, url string) *string {
	if len(data) > 0 {
		s := "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(data)
		return &s
	}
	if url != "" {
		return &url
	}
	return nil
}

// NewStudentID generates a registration token in the STU<millis><3
// digits> format. The server is the id authority; client-supplied ids
// are accepted but not required.
func NewStudentID() string {
	return fmt.Sprintf("STU%d%03d", time.Now().UnixMilli(), rand.Intn(1000))
}

// sqlTimestamp renders a time in the YYYY-MM-DD HH:MM:SS layout the
// storage schema uses.
func sqlTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// parseRegistrationDate accepts an ISO-8601 timestamp, defaulting to
// now when absent or malformed.
func parseRegistrationDate(iso string) time.Time {
	if iso == "" {
		return time.Now().UTC()
	}
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return time.Now().UTC()
	}
	return t.UTC()
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}

// timeNow is swapped out in tests.
var timeNow = time.Now
