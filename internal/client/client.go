// Package client is the Go consumer of the registration API: typed
// errors, an in-memory read cache, and the same record shapes the
// server returns.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"studentreg/internal/student"
)

// ErrNotFound reports a missing record.
var ErrNotFound = errors.New("record not found")

// ConflictError carries the server's duplicate message verbatim so
// callers can show it to the user.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ValidationError carries the server's 400 message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Count   int             `json:"count"`
	Data    json.RawMessage `json:"data"`
}

// Repository talks to the student endpoints. Reads fall back to the
// last successful response when the server is unreachable.
type Repository struct {
	baseURL string
	http    *http.Client
	token   string

	mu          sync.Mutex
	cachedList  []student.Student
	cachedCount int
	cacheWarm   bool
}

// New creates a repository against the API base URL, e.g.
// "http://localhost:8080".
func New(baseURL string) *Repository {
	return &Repository{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// SetToken attaches an admin bearer token used on delete.
func (r *Repository) SetToken(token string) { r.token = token }

func (r *Repository) do(ctx context.Context, method, path string, body any) (*envelope, int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, &buf)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return &env, resp.StatusCode, nil
}

func statusError(status int, env *envelope) error {
	switch status {
	case http.StatusBadRequest:
		return &ValidationError{Message: env.Error}
	case http.StatusConflict:
		return &ConflictError{Message: env.Error}
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("server returned %d: %s", status, env.Error)
	}
}

// Create registers a student and returns the stored record.
func (r *Repository) Create(ctx context.Context, in student.StudentInput) (*student.Student, error) {
	env, status, err := r.do(ctx, http.MethodPost, "/api/students", in)
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated {
		return nil, statusError(status, env)
	}
	var st student.Student
	if err := json.Unmarshal(env.Data, &st); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.cacheWarm = false
	r.mu.Unlock()
	return &st, nil
}

// cachedListing returns a copy of the last successful listing; an
// empty slice when no read has ever succeeded.
func (r *Repository) cachedListing() []student.Student {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]student.Student, len(r.cachedList))
	copy(out, r.cachedList)
	return out
}

// ListAll fetches every student, most recent first. Reads degrade
// gracefully: any transport or server failure yields the last
// successful listing, or an empty one when nothing was ever fetched.
func (r *Repository) ListAll(ctx context.Context) ([]student.Student, error) {
	env, status, err := r.do(ctx, http.MethodGet, "/api/students", nil)
	if err == nil && status == http.StatusOK {
		var out []student.Student
		if jerr := json.Unmarshal(env.Data, &out); jerr == nil {
			r.mu.Lock()
			r.cachedList = out
			r.cachedCount = len(out)
			r.cacheWarm = true
			r.mu.Unlock()
			return out, nil
		}
	}
	if err == nil {
		err = statusError(status, env)
	}
	log.Printf("list students: serving cached copy after failure: %v", err)
	return r.cachedListing(), nil
}

// Count returns the stored-record count with the same degradation as
// ListAll.
func (r *Repository) Count(ctx context.Context) (int, error) {
	env, status, err := r.do(ctx, http.MethodGet, "/api/students/count", nil)
	if err == nil && status == http.StatusOK {
		r.mu.Lock()
		r.cachedCount = env.Count
		r.mu.Unlock()
		return env.Count, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cachedCount, nil
}

// SearchByText matches students by name substring server-side. When
// the server cannot answer, the cached listing is filtered locally
// instead.
func (r *Repository) SearchByText(ctx context.Context, term string) ([]student.Student, error) {
	env, status, err := r.do(ctx, http.MethodGet, "/api/students/search/"+url.PathEscape(term), nil)
	if err == nil && status == http.StatusOK {
		var out []student.Student
		if jerr := json.Unmarshal(env.Data, &out); jerr == nil {
			return out, nil
		}
	}
	log.Printf("search students: filtering cached copy after failure")
	return r.searchCached(term), nil
}

func (r *Repository) searchCached(term string) []student.Student {
	term = strings.ToLower(term)
	var out []student.Student
	for _, st := range r.cachedListing() {
		name := strings.ToLower(st.FirstName + " " + st.LastName)
		if st.MiddleName != nil {
			name += " " + strings.ToLower(*st.MiddleName)
		}
		if strings.Contains(name, term) {
			out = append(out, st)
		}
	}
	if out == nil {
		out = []student.Student{}
	}
	return out
}

// GetByID fetches a single record.
func (r *Repository) GetByID(ctx context.Context, id string) (*student.Student, error) {
	env, status, err := r.do(ctx, http.MethodGet, "/api/students/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusError(status, env)
	}
	var st student.Student
	if err := json.Unmarshal(env.Data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// DeleteByID removes a record. Requires an admin token.
func (r *Repository) DeleteByID(ctx context.Context, id string) error {
	env, status, err := r.do(ctx, http.MethodDelete, "/api/students/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return statusError(status, env)
	}
	r.mu.Lock()
	r.cacheWarm = false
	r.mu.Unlock()
	return nil
}
