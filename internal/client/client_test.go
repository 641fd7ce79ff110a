package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studentreg/internal/student"
)

func apiStub(t *testing.T, handler http.HandlerFunc) (*Repository, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL), srv
}

func TestCreateSurfacesConflictMessageVerbatim(t *testing.T) {
	repo, _ := apiStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "Student with this ID already exists",
		})
	})

	_, err := repo.Create(context.Background(), student.StudentInput{FirstName: "Jane"})
	var cerr *ConflictError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "Student with this ID already exists", cerr.Message)
}

func TestCreateSurfacesValidationMessage(t *testing.T) {
	repo, _ := apiStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "Missing required fields: last_name",
		})
	})

	_, err := repo.Create(context.Background(), student.StudentInput{FirstName: "Jane"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "Missing required fields")
}

func TestListAllFallsBackToCacheWhenServerDies(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"count":   1,
			"data":    []map[string]any{{"id": "STU1", "first_name": "Jane", "last_name": "Doe"}},
		})
	}))
	repo := New(srv.URL)

	first, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	srv.Close()

	second, err := repo.ListAll(context.Background())
	require.NoError(t, err, "cached listing should survive the outage")
	assert.Equal(t, first, second)

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListAllColdCacheDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	repo := New(srv.URL)
	srv.Close()

	out, err := repo.ListAll(context.Background())
	require.NoError(t, err, "reads degrade to the empty cached state")
	assert.Empty(t, out)

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListAllFallsBackOnServerError(t *testing.T) {
	var fail bool
	repo, _ := apiStub(t, func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "internal error"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"count":   1,
			"data":    []map[string]any{{"id": "STU1", "first_name": "Jane", "last_name": "Doe"}},
		})
	})

	first, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	fail = true
	second, err := repo.ListAll(context.Background())
	require.NoError(t, err, "a 5xx on a read serves the cached listing")
	assert.Equal(t, first, second)
}

func TestSearchByTextFallsBackToLocalFilter(t *testing.T) {
	var fail bool
	repo, _ := apiStub(t, func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "internal error"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"count":   2,
			"data": []map[string]any{
				{"id": "STU2", "first_name": "Ada", "last_name": "Lovelace"},
				{"id": "STU1", "first_name": "Jane", "last_name": "Doe"},
			},
		})
	})

	_, err := repo.ListAll(context.Background())
	require.NoError(t, err)

	fail = true
	out, err := repo.SearchByText(context.Background(), "ada")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Ada", out[0].FirstName)

	out, err = repo.SearchByText(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestListAllIsIdempotent(t *testing.T) {
	repo, _ := apiStub(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"count":   2,
			"data": []map[string]any{
				{"id": "STU2", "first_name": "Ada"},
				{"id": "STU1", "first_name": "Jane"},
			},
		})
	})

	a, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	b, err := repo.ListAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDeleteSendsBearerToken(t *testing.T) {
	var gotAuth string
	repo, _ := apiStub(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"success": true, "message": "Student deleted successfully"})
	})
	repo.SetToken("tok123")

	require.NoError(t, repo.DeleteByID(context.Background(), "STU1"))
	assert.Equal(t, "Bearer tok123", gotAuth)
}

func TestDeleteNotFound(t *testing.T) {
	repo, _ := apiStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "Student not found"})
	})

	err := repo.DeleteByID(context.Background(), "STU404")
	assert.ErrorIs(t, err, ErrNotFound)
}
