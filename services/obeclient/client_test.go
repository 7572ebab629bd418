package obeclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/trezcool/masomo-obe/core"
	"github.com/trezcool/masomo-obe/core/assessment"
	"github.com/trezcool/masomo-obe/core/mapping"
	"github.com/trezcool/masomo-obe/core/outcome"
	"github.com/trezcool/masomo-obe/core/session"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// testAPI serves the endpoints the tests need. Only the token in `valid` is accepted.
type testAPI struct {
	valid      atomic.Value // string
	refreshes  int32
	refreshErr bool
	handlers   map[string]http.HandlerFunc
}

func newTestAPI(t *testing.T) (*testAPI, *Client) {
	api := &testAPI{handlers: make(map[string]http.HandlerFunc)}
	api.valid.Store("access-1")

	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unable to log in with provided credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access":     "access-1",
			"refresh":    "refresh-1",
			"expires_in": 900,
			"user":       map[string]interface{}{"id": 3, "username": creds["username"], "roles": []string{"teacher:"}},
		})
	})
	mux.HandleFunc("/api/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&api.refreshes, 1)
		if api.refreshErr {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token is expired"})
			return
		}
		api.valid.Store("access-2")
		writeJSON(w, http.StatusOK, map[string]interface{}{"access": "access-2", "expires_in": 900})
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+api.valid.Load().(string) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired jwt"})
			return
		}
		h, ok := api.handlers[r.Method+" "+r.URL.Path]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not Found"})
			return
		}
		h(w, r)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := New(srv.URL+"/api", srv.Client(), session.New(), nopLogger{})
	require.NoError(t, err)
	return api, client
}

func login(t *testing.T, c *Client) {
	_, err := c.Login(context.Background(), "teacher", "secret")
	require.NoError(t, err)
}

func TestClient_Login(t *testing.T) {
	_, c := newTestAPI(t)

	_, err := c.Login(context.Background(), "teacher", "wrong")
	var tErr *core.TransportError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, http.StatusUnauthorized, tErr.StatusCode)
	assert.False(t, c.Session().Active())

	p, err := c.Login(context.Background(), "teacher", "secret")
	require.NoError(t, err)
	assert.Equal(t, 3, p.ID)
	assert.True(t, c.Session().Active())
	assert.True(t, c.Session().HasAnyRole("teacher:"))
	assert.Equal(t, "refresh-1", c.Session().Token().RefreshToken)
}

func TestClient_ListMappings(t *testing.T) {
	api, c := newTestAPI(t)
	login(t, c)

	api.handlers["GET /api/assessment-los/"] = func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("courseId"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeJSON(w, http.StatusOK, []interface{}{
			map[string]interface{}{"id": 1, "assessment": 4, "learning_outcome": 7, "weight": 3.3, "course": 10, "lo_code": "CLO1"},
			"not a record",
		})
	}
	ms, err := c.ListMappings(context.Background(), outcome.KindAssessmentLO, 10)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, outcome.Percentage(33), ms[0].Percentage())
	assert.Equal(t, "CLO1", ms[0].TargetLabel)
	assert.Zero(t, ms[1].ID)

	api.handlers["GET /api/lo-pos/"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"results": []int{}})
	}
	_, err = c.ListMappings(context.Background(), outcome.KindLOPO, 10)
	assert.True(t, errors.Is(err, core.ErrMalformedResponse))
}

func TestClient_RefreshOn401(t *testing.T) {
	api, c := newTestAPI(t)
	login(t, c)
	api.valid.Store("access-2") // server rotated keys: access-1 is now rejected

	var calls int32
	api.handlers["GET /api/assessments/"] = func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusOK, []assessment.Assessment{{ID: 1, Course: 1, Weight: 100}})
	}
	as, err := c.ListAssessments(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, as, 1)
	assert.Equal(t, int32(1), atomic.LoadInt32(&api.refreshes))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "access-2", c.Session().Token().AccessToken)
}

func TestClient_RefreshExpiredToken(t *testing.T) {
	api, c := newTestAPI(t)
	c.Session().Begin(session.Profile{ID: 3}, &oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Minute),
	})
	api.handlers["GET /api/courses/"] = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []interface{}{})
	}
	_, err := c.ListCourses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&api.refreshes), "refreshed before sending")
}

func TestClient_SessionExpired(t *testing.T) {
	api, c := newTestAPI(t)
	login(t, c)
	api.valid.Store("access-9")
	api.refreshErr = true

	var ended bool
	c.Session().OnEnd(func() { ended = true })

	_, err := c.ListMappings(context.Background(), outcome.KindLOPO, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSessionExpired))
	var tErr *core.TransportError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, http.StatusUnauthorized, tErr.StatusCode)
	assert.True(t, ended)
	assert.False(t, c.Session().Active())

	nErr := mapping.Normalize("list", err)
	assert.Equal(t, "your session has expired, please log in again", nErr.Error())
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   interface{}
		check  func(t *testing.T, err error)
	}{
		{
			name:   "DRF unique set",
			status: http.StatusBadRequest,
			body:   map[string]interface{}{"non_field_errors": []string{"The fields assessment, learning_outcome must make a unique set."}},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, outcome.ErrMappingExists))
			},
		},
		{
			name:   "conflict",
			status: http.StatusConflict,
			body:   map[string]string{"error": "this mapping already exists"},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, outcome.ErrMappingExists))
			},
		},
		{
			name:   "other conflict",
			status: http.StatusConflict,
			body:   map[string]string{"error": "the course is archived"},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, core.ErrConflict))
				assert.False(t, errors.Is(err, outcome.ErrMappingExists))
				assert.EqualError(t, err, "the course is archived")
			},
		},
		{
			name:   "field errors",
			status: http.StatusBadRequest,
			body:   map[string]interface{}{"weight": []string{"Ensure this value is less than or equal to 10."}, "assessment": "this field is required"},
			check: func(t *testing.T, err error) {
				var vErr *core.ValidationError
				require.True(t, errors.As(err, &vErr))
				assert.Equal(t, map[string]string{
					"weight":     "Ensure this value is less than or equal to 10.",
					"assessment": "this field is required",
				}, vErr.FieldMap())
			},
		},
		{
			name:   "grading blocked",
			status: http.StatusBadRequest,
			body:   map[string]string{"error": "grades cannot be saved until assessment weights total 100% (weights total 95%, 5% short)"},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, assessment.ErrGradingBlocked))
				assert.EqualError(t, err, "grades cannot be saved until assessment weights total 100% (weights total 95%, 5% short)")
			},
		},
		{
			name:   "detail message",
			status: http.StatusBadRequest,
			body:   map[string]string{"detail": "the course is archived"},
			check: func(t *testing.T, err error) {
				var vErr *core.ValidationError
				require.True(t, errors.As(err, &vErr))
				assert.Empty(t, vErr.Fields)
				assert.EqualError(t, err, "the course is archived")
				assert.False(t, errors.Is(err, assessment.ErrGradingBlocked))
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   map[string]string{"error": "Internal Server Error"},
			check: func(t *testing.T, err error) {
				var tErr *core.TransportError
				require.True(t, errors.As(err, &tErr))
				assert.Equal(t, http.StatusInternalServerError, tErr.StatusCode)
				assert.Equal(t, "/api/assessment-los/", tErr.Path)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, c := newTestAPI(t)
			login(t, c)
			api.handlers["POST /api/assessment-los/"] = func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			}
			_, err := c.CreateMapping(context.Background(), outcome.NewMapping{Kind: outcome.KindAssessmentLO, SourceID: 1, TargetID: 2, Weight: 5})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	c, err := New("http://127.0.0.1:1/api", &http.Client{Timeout: time.Second}, session.New(), nopLogger{})
	require.NoError(t, err)
	c.Session().Begin(session.Profile{ID: 1}, &oauth2.Token{AccessToken: "a"})

	err = c.DeleteMapping(context.Background(), outcome.KindLOPO, 4)
	var tErr *core.TransportError
	require.True(t, errors.As(err, &tErr))
	assert.Zero(t, tErr.StatusCode)
	assert.Equal(t, "could not reach the server", mapping.Normalize("delete", err).Error())
}

func TestClient_WithMappingService(t *testing.T) {
	api, c := newTestAPI(t)
	login(t, c)

	var created []map[string]interface{}
	api.handlers["POST /api/lo-pos/"] = func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		for _, prev := range created {
			if prev["learning_outcome"] == body["learning_outcome"] && prev["program_outcome"] == body["program_outcome"] {
				writeJSON(w, http.StatusBadRequest, map[string][]string{
					"non_field_errors": {"The fields learning_outcome, program_outcome must make a unique set."},
				})
				return
			}
		}
		created = append(created, body)
		body["id"] = len(created)
		writeJSON(w, http.StatusCreated, body)
	}

	svc := mapping.NewService(c, c.Session(), nil, nopLogger{})
	m, err := svc.Create(context.Background(), outcome.KindLOPO, 7, 2, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, m.ID)
	assert.Equal(t, 5.0, created[0]["weight"], "50% travels as weight 5")

	_, err = svc.Create(context.Background(), outcome.KindLOPO, 7, 2, 80)
	require.Error(t, err)
	assert.Equal(t, "this mapping already exists", err.Error())
}
