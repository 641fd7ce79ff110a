package student

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/google/uuid"

	"studentreg/internal/queue"
	"studentreg/internal/validate"
)

// Storage is the persistence surface the service needs. *Store
// satisfies it.
type Storage interface {
	CreateStudent(ctx context.Context, st *Student) error
	ListStudents(ctx context.Context) ([]Student, error)
	CountStudents(ctx context.Context) (int, error)
	SearchStudents(ctx context.Context, term string) ([]Student, error)
	GetStudent(ctx context.Context, id string) (*Student, error)
	DeleteStudent(ctx context.Context, id string) error

	CreateContact(ctx context.Context, c *Contact) error
	ListContacts(ctx context.Context) ([]Contact, error)
	CountContacts(ctx context.Context) (int, error)
	SearchContacts(ctx context.Context, term string) ([]Contact, error)
	GetContact(ctx context.Context, id string) (*Contact, error)
	DeleteContact(ctx context.Context, id string) error
}

// AvatarJob asks the worker to fetch and inline an avatar that was
// stored by URL only.
type AvatarJob struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	URL  string `json:"url"`
}

const avatarJobType = "avatar.resolve"

// Service applies the registration rules on top of storage: field
// validation, name normalization, id assignment, and cache upkeep.
type Service struct {
	storage Storage
	cache   *Cache
	jobs    queue.Queue
}

// NewService wires a service. Cache and jobs may be nil.
func NewService(storage Storage, cache *Cache, jobs queue.Queue) *Service {
	return &Service{storage: storage, cache: cache, jobs: jobs}
}

// StudentInput is the create-request payload for students.
type StudentInput struct {
	ID               string  `json:"id"`
	FirstName        string  `json:"first_name"`
	MiddleName       *string `json:"middle_name"`
	LastName         string  `json:"last_name"`
	DateOfBirth      string  `json:"date_of_birth"`
	PhoneNumber      string  `json:"phone_number"`
	DesiredCourse    string  `json:"desired_course"`
	Avatar           string  `json:"avatar_data"`
	RegistrationDate string  `json:"registration_date"`
}

// ContactInput is the create-request payload for contacts.
type ContactInput struct {
	ID               string  `json:"id"`
	FullName         string  `json:"full_name"`
	Company          string  `json:"company"`
	PhoneNumber      string  `json:"phone_number"`
	AlternatePhone   *string `json:"alternate_phone"`
	Email            string  `json:"email"`
	Avatar           string  `json:"avatar_data"`
	RegistrationDate string  `json:"registration_date"`
}

func missingFieldsError(missing []string) error {
	return &ValidationError{
		Message: "Missing required fields: " + strings.Join(missing, ", "),
		Fields:  missing,
	}
}

// CreateStudent validates and stores a student record.
func (s *Service) CreateStudent(ctx context.Context, in StudentInput) (*Student, error) {
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"first_name", in.FirstName},
		{"last_name", in.LastName},
		{"date_of_birth", in.DateOfBirth},
		{"phone_number", in.PhoneNumber},
		{"desired_course", in.DesiredCourse},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, missingFieldsError(missing)
	}
	if !validate.ValidPhoneNumber(in.PhoneNumber) {
		return nil, &ValidationError{Message: "Invalid phone number", Fields: []string{"phone_number"}}
	}
	if !validate.ValidDateOfBirth(in.DateOfBirth, timeNow()) {
		return nil, &ValidationError{Message: "Invalid date of birth", Fields: []string{"date_of_birth"}}
	}

	data, url, err := decodeAvatarPayload(in.Avatar)
	if err != nil {
		return nil, &ValidationError{Message: "Invalid avatar payload", Fields: []string{"avatar_data"}}
	}

	st := &Student{
		ID:               strings.TrimSpace(in.ID),
		FirstName:        validate.CapitalizeProperName(in.FirstName),
		MiddleName:       normalizeNamePtr(in.MiddleName),
		LastName:         validate.CapitalizeProperName(in.LastName),
		DateOfBirth:      strings.TrimSpace(in.DateOfBirth),
		PhoneNumber:      strings.TrimSpace(in.PhoneNumber),
		DesiredCourse:    strings.TrimSpace(in.DesiredCourse),
		RegistrationDate: parseRegistrationDate(in.RegistrationDate),
		avatarData:       data,
		avatarURL:        url,
	}
	if st.ID == "" {
		st.ID = NewStudentID()
	}
	if err := s.storage.CreateStudent(ctx, st); err != nil {
		return nil, err
	}
	st.Avatar = encodeAvatar(data, url)
	s.invalidate(ctx, "students")
	s.enqueueAvatar(ctx, "students", st.ID, url, data)
	return st, nil
}

// CreateContact validates and stores a contact record.
func (s *Service) CreateContact(ctx context.Context, in ContactInput) (*Contact, error) {
	var missing []string
	for _, f := range []struct{ name, val string }{
		{"full_name", in.FullName},
		{"company", in.Company},
		{"phone_number", in.PhoneNumber},
		{"email", in.Email},
	} {
		if strings.TrimSpace(f.val) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, missingFieldsError(missing)
	}
	if !validate.ValidPhoneNumber(in.PhoneNumber) {
		return nil, &ValidationError{Message: "Invalid phone number", Fields: []string{"phone_number"}}
	}
	if in.AlternatePhone != nil && strings.TrimSpace(*in.AlternatePhone) != "" &&
		!validate.ValidPhoneNumber(*in.AlternatePhone) {
		return nil, &ValidationError{Message: "Invalid alternate phone", Fields: []string{"alternate_phone"}}
	}
	if !validate.ValidEmail(in.Email) {
		return nil, &ValidationError{Message: "Invalid email address", Fields: []string{"email"}}
	}

	data, url, err := decodeAvatarPayload(in.Avatar)
	if err != nil {
		return nil, &ValidationError{Message: "Invalid avatar payload", Fields: []string{"avatar_data"}}
	}

	c := &Contact{
		ID:               strings.TrimSpace(in.ID),
		FullName:         capitalizeWords(in.FullName),
		Company:          strings.TrimSpace(in.Company),
		PhoneNumber:      strings.TrimSpace(in.PhoneNumber),
		AlternatePhone:   trimPtr(in.AlternatePhone),
		Email:            strings.ToLower(strings.TrimSpace(in.Email)),
		RegistrationDate: parseRegistrationDate(in.RegistrationDate),
		avatarData:       data,
		avatarURL:        url,
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := s.storage.CreateContact(ctx, c); err != nil {
		return nil, err
	}
	c.Avatar = encodeAvatar(data, url)
	s.invalidate(ctx, "contacts")
	s.enqueueAvatar(ctx, "contacts", c.ID, url, data)
	return c, nil
}

// ListStudents serves from storage, falling back to a cached listing
// when the database is unavailable.
func (s *Service) ListStudents(ctx context.Context) ([]Student, error) {
	out, err := s.storage.ListStudents(ctx)
	if err != nil {
		var cached []Student
		if s.cache.GetList(ctx, "students", &cached) {
			log.Printf("students list: serving cache after storage error: %v", err)
			return cached, nil
		}
		return nil, err
	}
	s.cache.SetList(ctx, "students", out)
	return out, nil
}

// CountStudents serves from storage with cache fallback.
func (s *Service) CountStudents(ctx context.Context) (int, error) {
	n, err := s.storage.CountStudents(ctx)
	if err != nil {
		if cached, ok := s.cache.GetCount(ctx, "students"); ok {
			log.Printf("students count: serving cache after storage error: %v", err)
			return cached, nil
		}
		return 0, err
	}
	s.cache.SetCount(ctx, "students", n)
	return n, nil
}

// SearchStudents is uncached; search terms are too varied to keep warm.
func (s *Service) SearchStudents(ctx context.Context, term string) ([]Student, error) {
	return s.storage.SearchStudents(ctx, strings.TrimSpace(term))
}

// GetStudent returns a single record.
func (s *Service) GetStudent(ctx context.Context, id string) (*Student, error) {
	return s.storage.GetStudent(ctx, id)
}

// DeleteStudent removes a record and drops cached reads.
func (s *Service) DeleteStudent(ctx context.Context, id string) error {
	if err := s.storage.DeleteStudent(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, "students")
	return nil
}

// ListContacts serves from storage with cache fallback.
func (s *Service) ListContacts(ctx context.Context) ([]Contact, error) {
	out, err := s.storage.ListContacts(ctx)
	if err != nil {
		var cached []Contact
		if s.cache.GetList(ctx, "contacts", &cached) {
			log.Printf("contacts list: serving cache after storage error: %v", err)
			return cached, nil
		}
		return nil, err
	}
	s.cache.SetList(ctx, "contacts", out)
	return out, nil
}

// CountContacts serves from storage with cache fallback.
func (s *Service) CountContacts(ctx context.Context) (int, error) {
	n, err := s.storage.CountContacts(ctx)
	if err != nil {
		if cached, ok := s.cache.GetCount(ctx, "contacts"); ok {
			log.Printf("contacts count: serving cache after storage error: %v", err)
			return cached, nil
		}
		return 0, err
	}
	s.cache.SetCount(ctx, "contacts", n)
	return n, nil
}

// SearchContacts is uncached.
func (s *Service) SearchContacts(ctx context.Context, term string) ([]Contact, error) {
	return s.storage.SearchContacts(ctx, strings.TrimSpace(term))
}

// GetContact returns a single record.
func (s *Service) GetContact(ctx context.Context, id string) (*Contact, error) {
	return s.storage.GetContact(ctx, id)
}

// DeleteContact removes a record and drops cached reads.
func (s *Service) DeleteContact(ctx context.Context, id string) error {
	if err := s.storage.DeleteContact(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, "contacts")
	return nil
}

func (s *Service) invalidate(ctx context.Context, kind string) {
	s.cache.Invalidate(ctx, kind)
}

// enqueueAvatar schedules the worker to inline an avatar stored by URL
// only. Delivery is best-effort; the URL stays on the record either
// way.
func (s *Service) enqueueAvatar(ctx context.Context, kind, id, url string, data []byte) {
	if s.jobs == nil || url == "" || len(data) > 0 {
		return
	}
	body, err := json.Marshal(AvatarJob{Kind: kind, ID: id, URL: url})
	if err != nil {
		return
	}
	if err := s.jobs.Publish(ctx, queue.Message{Type: avatarJobType, Body: body}); err != nil {
		log.Printf("avatar job enqueue failed for %s/%s: %v", kind, id, err)
	}
}

// capitalizeWords normalizes a multi-word name, one proper name per
// word.
func capitalizeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = validate.CapitalizeProperName(w)
	}
	return strings.Join(words, " ")
}

func normalizeNamePtr(p *string) *string {
	p = trimPtr(p)
	if p == nil {
		return nil
	}
	n := validate.CapitalizeProperName(*p)
	return &n
}
