package mapping

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/trezcool/masomo-obe/core"
	"github.com/trezcool/masomo-obe/core/outcome"
	"github.com/trezcool/masomo-obe/core/session"
)

type testLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *testLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+": "+msg)
}

func (l *testLogger) Debug(msg string, _ ...interface{}) { l.log("debug", msg) }
func (l *testLogger) Info(msg string, _ ...interface{})  { l.log("info", msg) }
func (l *testLogger) Warn(msg string, _ ...interface{})  { l.log("warn", msg) }
func (l *testLogger) Error(msg string, _ ...interface{}) { l.log("error", msg) }
func (l *testLogger) Fatal(msg string, _ ...interface{}) { l.log("fatal", msg) }

func (l *testLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int
	for _, e := range l.entries {
		if len(e) > len(level) && e[:len(level)+1] == level+":" {
			n++
		}
	}
	return n
}

// fakeBackend keeps mappings in memory and enforces pair uniqueness like the server does.
type fakeBackend struct {
	mu       sync.Mutex
	nextID   int
	mappings map[int]outcome.Mapping
	courseOf map[int]int // source id -> course

	listErr   error
	createErr error
	deleted   []int
	gates     map[int]chan struct{} // course -> released when closed
	started   chan int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		mappings: make(map[int]outcome.Mapping),
		courseOf: map[int]int{1: 10, 2: 10, 3: 20},
	}
}

func (b *fakeBackend) ListMappings(_ context.Context, kind outcome.Kind, courseID int) ([]outcome.Mapping, error) {
	b.mu.Lock()
	gate := b.gates[courseID]
	started := b.started
	b.mu.Unlock()

	if started != nil {
		started <- courseID
	}
	if gate != nil {
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	ms := make([]outcome.Mapping, 0)
	for id := 1; id <= b.nextID; id++ {
		m, ok := b.mappings[id]
		if ok && m.Kind == kind && m.Course == courseID {
			ms = append(ms, m)
		}
	}
	return ms, nil
}

func (b *fakeBackend) CreateMapping(_ context.Context, nm outcome.NewMapping) (outcome.Mapping, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return outcome.Mapping{}, b.createErr
	}
	for _, m := range b.mappings {
		if m.Kind == nm.Kind && m.SourceID == nm.SourceID && m.TargetID == nm.TargetID {
			return outcome.Mapping{}, outcome.ErrMappingExists
		}
	}
	b.nextID++
	m := outcome.Mapping{
		Kind:     nm.Kind,
		ID:       b.nextID,
		SourceID: nm.SourceID,
		TargetID: nm.TargetID,
		Weight:   nm.Weight,
		Course:   b.courseOf[nm.SourceID],
	}
	b.mappings[m.ID] = m
	return m, nil
}

func (b *fakeBackend) UpdateMapping(_ context.Context, kind outcome.Kind, id int, w outcome.ContributionWeight) (outcome.Mapping, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.mappings[id]
	if !ok || m.Kind != kind {
		return outcome.Mapping{}, core.NewNotFoundError("mapping")
	}
	m.Weight = w
	b.mappings[id] = m
	return m, nil
}

func (b *fakeBackend) DeleteMapping(_ context.Context, kind outcome.Kind, id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.mappings[id]
	if !ok || m.Kind != kind {
		return core.NewNotFoundError("mapping")
	}
	delete(b.mappings, id)
	b.deleted = append(b.deleted, id)
	return nil
}

func activeSession() *session.Session {
	s := session.New()
	s.Begin(session.Profile{ID: 1, Username: "teacher", Roles: []string{"teacher:"}}, &oauth2.Token{AccessToken: "a"})
	return s
}

func confirmWith(answer bool, asked *int) Confirmer {
	return ConfirmFunc(func(context.Context, string) (bool, error) {
		if asked != nil {
			*asked++
		}
		return answer, nil
	})
}

func newTestService(b Backend, confirm Confirmer) (*Service, *testLogger) {
	logger := new(testLogger)
	return NewService(b, activeSession(), confirm, logger), logger
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	svc, _ := newTestService(b, nil)

	m, err := svc.Create(ctx, outcome.KindAssessmentLO, 1, 5, 33)
	require.NoError(t, err)
	assert.Equal(t, outcome.ContributionWeight(3.3), m.Weight)
	assert.Equal(t, outcome.Percentage(33), m.Percentage())

	// same pair again
	_, err = svc.Create(ctx, outcome.KindAssessmentLO, 1, 5, 50)
	require.Error(t, err)
	var mErr *Error
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, KindConflict, mErr.Kind)
	assert.Equal(t, "this mapping already exists", err.Error())
	assert.True(t, errors.Is(err, outcome.ErrMappingExists), "the cause is kept")

	// same pair under the other kind is a different mapping
	_, err = svc.Create(ctx, outcome.KindLOPO, 1, 5, 50)
	require.NoError(t, err)
}

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name     string
		kind     outcome.Kind
		source   int
		target   int
		pct      outcome.Percentage
		wantMsg  string
		wantFlds []string
	}{
		{
			name: "zero percentage", kind: outcome.KindAssessmentLO, source: 1, target: 2, pct: 0,
			wantMsg: "percentage: contribution must be between 1% and 100%", wantFlds: []string{"percentage"},
		},
		{
			name: "above 100", kind: outcome.KindAssessmentLO, source: 1, target: 2, pct: 101,
			wantFlds: []string{"percentage"},
		},
		{
			name: "nothing selected", kind: outcome.KindLOPO, source: 0, target: 0, pct: 50,
			wantMsg:  "learning_outcome: this field is required; program_outcome: this field is required",
			wantFlds: []string{"learning_outcome", "program_outcome"},
		},
		{
			name: "unknown kind", kind: outcome.Kind("po-lo"), source: 1, target: 2, pct: 50,
			wantFlds: []string{"kind"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend()
			svc, _ := newTestService(b, nil)

			_, err := svc.Create(context.Background(), tt.kind, tt.source, tt.target, tt.pct)
			var mErr *Error
			require.True(t, errors.As(err, &mErr))
			assert.Equal(t, KindValidation, mErr.Kind)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, mErr.Message)
			}
			for _, f := range tt.wantFlds {
				assert.Contains(t, mErr.Fields, f)
			}
			assert.Len(t, mErr.Fields, len(tt.wantFlds))
			assert.Empty(t, b.mappings, "nothing is sent")
		})
	}
}

func TestService_NoSession(t *testing.T) {
	b := newFakeBackend()
	svc := NewService(b, session.New(), nil, new(testLogger))

	_, err := svc.List(context.Background(), outcome.KindLOPO, 10)
	var mErr *Error
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, KindAuth, mErr.Kind)

	_, err = svc.Create(context.Background(), outcome.KindLOPO, 1, 2, 50)
	require.Error(t, err)
	assert.Empty(t, b.mappings)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	svc, _ := newTestService(b, nil)

	m, err := svc.Create(ctx, outcome.KindLOPO, 2, 9, 50)
	require.NoError(t, err)

	m, err = svc.Update(ctx, outcome.KindLOPO, m.ID, 67)
	require.NoError(t, err)
	assert.Equal(t, outcome.Percentage(67), m.Percentage())

	_, err = svc.Update(ctx, outcome.KindLOPO, m.ID, -5)
	var mErr *Error
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, KindValidation, mErr.Kind)

	_, err = svc.Update(ctx, outcome.KindLOPO, 999, 40)
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, KindNotFound, mErr.Kind)
	assert.Equal(t, "this mapping no longer exists", mErr.Message)
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("declined", func(t *testing.T) {
		b := newFakeBackend()
		var asked int
		svc, _ := newTestService(b, confirmWith(false, &asked))
		m, err := svc.Create(ctx, outcome.KindAssessmentLO, 1, 5, 10)
		require.NoError(t, err)

		deleted, err := svc.Delete(ctx, outcome.KindAssessmentLO, m.ID)
		require.NoError(t, err)
		assert.False(t, deleted)
		assert.Equal(t, 1, asked)
		assert.Empty(t, b.deleted)
	})

	t.Run("confirmed", func(t *testing.T) {
		b := newFakeBackend()
		svc, _ := newTestService(b, confirmWith(true, nil))
		m, err := svc.Create(ctx, outcome.KindAssessmentLO, 1, 5, 10)
		require.NoError(t, err)

		deleted, err := svc.Delete(ctx, outcome.KindAssessmentLO, m.ID)
		require.NoError(t, err)
		assert.True(t, deleted)
		assert.Equal(t, []int{m.ID}, b.deleted)
	})

	t.Run("no prompt configured", func(t *testing.T) {
		b := newFakeBackend()
		svc, _ := newTestService(b, nil)
		m, err := svc.Create(ctx, outcome.KindAssessmentLO, 1, 5, 10)
		require.NoError(t, err)

		deleted, err := svc.Delete(ctx, outcome.KindAssessmentLO, m.ID)
		require.Error(t, err)
		assert.False(t, deleted)
		assert.Empty(t, b.deleted)
	})
}

func TestService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("filters malformed records", func(t *testing.T) {
		b := newFakeBackend()
		svc, logger := newTestService(b, nil)
		_, err := svc.Create(ctx, outcome.KindAssessmentLO, 1, 5, 10)
		require.NoError(t, err)
		b.nextID++
		b.mappings[b.nextID] = outcome.Mapping{Kind: outcome.KindAssessmentLO, ID: b.nextID, SourceID: 2, TargetID: 6, Weight: 42, Course: 10}

		ms, err := svc.List(ctx, outcome.KindAssessmentLO, 10)
		require.NoError(t, err)
		require.Len(t, ms, 1)
		assert.Equal(t, 5, ms[0].TargetID)
		assert.Equal(t, 1, logger.count("warn"))
	})

	t.Run("malformed response is empty", func(t *testing.T) {
		b := newFakeBackend()
		b.listErr = errors.Wrap(core.ErrMalformedResponse, "decoding list")
		svc, logger := newTestService(b, nil)

		ms, err := svc.List(ctx, outcome.KindLOPO, 10)
		require.NoError(t, err)
		assert.NotNil(t, ms)
		assert.Empty(t, ms)
		assert.Equal(t, 1, logger.count("warn"))
	})

	t.Run("transport errors are not swallowed", func(t *testing.T) {
		b := newFakeBackend()
		b.listErr = &core.TransportError{Method: "GET", Path: "/api/lo-pos/", StatusCode: 502}
		svc, _ := newTestService(b, nil)

		_, err := svc.List(ctx, outcome.KindLOPO, 10)
		var mErr *Error
		require.True(t, errors.As(err, &mErr))
		assert.Equal(t, KindTransport, mErr.Kind)
		assert.Equal(t, "the server could not process the request (502)", mErr.Message)
	})
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind ErrorKind
		wantMsg  string
	}{
		{"unreachable", &core.TransportError{Method: "POST", Path: "/api/lo-pos/", Err: fmt.Errorf("connection refused")}, KindTransport, "could not reach the server"},
		{"server error", &core.TransportError{Method: "POST", Path: "/api/lo-pos/", StatusCode: 500}, KindTransport, "the server could not process the request (500)"},
		{"session expired", &core.TransportError{Method: "GET", Path: "/api/lo-pos/", StatusCode: 401, Err: core.ErrSessionExpired}, KindAuth, "your session has expired, please log in again"},
		{"duplicate", errors.Wrap(outcome.ErrMappingExists, "creating"), KindConflict, "this mapping already exists"},
		{"conflict", core.NewConflictError("code already in use"), KindConflict, "code already in use"},
		{"fields", core.NewValidationError(nil, core.FieldError{Field: "weight", Error: "too big"}, core.FieldError{Field: "assessment", Error: "required"}), KindValidation, "assessment: required; weight: too big"},
		{"deadline", context.DeadlineExceeded, KindTransport, "the server took too long to respond"},
		{"other", fmt.Errorf("boom"), KindUnknown, "something went wrong: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Normalize("op", tt.err)
			var mErr *Error
			require.True(t, errors.As(err, &mErr))
			assert.Equal(t, tt.wantKind, mErr.Kind)
			assert.Equal(t, tt.wantMsg, mErr.Message)
			assert.Equal(t, tt.err, mErr.Cause)
			assert.Same(t, mErr, Normalize("again", mErr))
		})
	}
	assert.Nil(t, Normalize("op", nil))
}

func TestService_Apply(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	var asked int
	svc, logger := newTestService(b, confirmWith(true, &asked))

	first, err := svc.Create(ctx, outcome.KindAssessmentLO, 1, 5, 10)
	require.NoError(t, err)
	second, err := svc.Create(ctx, outcome.KindAssessmentLO, 2, 5, 10)
	require.NoError(t, err)

	edits := []Edit{
		{Op: OpCreate, Kind: outcome.KindAssessmentLO, SourceID: 1, TargetID: 5, Percentage: 20}, // duplicate
		{Op: OpCreate, Kind: outcome.KindAssessmentLO, SourceID: 1, TargetID: 6, Percentage: 20},
		{Op: OpUpdate, Kind: outcome.KindAssessmentLO, ID: second.ID, Percentage: 150}, // invalid
		{Op: OpDelete, Kind: outcome.KindAssessmentLO, ID: first.ID},
		{Op: OpDelete, Kind: outcome.KindAssessmentLO, ID: 404},
	}
	res := svc.Apply(ctx, edits)

	assert.Equal(t, 5, res.Total())
	assert.Equal(t, 1, asked, "one confirmation for the batch")
	require.Len(t, res.Succeeded, 2)
	assert.Equal(t, edits[1], res.Succeeded[0])
	assert.Equal(t, edits[3], res.Succeeded[1])

	require.Len(t, res.Failed, 3)
	assert.Equal(t, "this mapping already exists", res.Failed[0].Err.Error())
	assert.Equal(t, edits[2], res.Failed[1].Item)
	assert.Equal(t, "this mapping no longer exists", res.Failed[2].Err.Error())
	assert.Error(t, res.Err())
	assert.Equal(t, 1, logger.count("warn"))
}

func TestService_Apply_DeclinedDeletes(t *testing.T) {
	ctx := context.Background()
	b := newFakeBackend()
	svc, _ := newTestService(b, confirmWith(false, nil))

	m, err := svc.Create(ctx, outcome.KindLOPO, 1, 5, 10)
	require.NoError(t, err)

	res := svc.Apply(ctx, []Edit{
		{Op: OpDelete, Kind: outcome.KindLOPO, ID: m.ID},
		{Op: OpUpdate, Kind: outcome.KindLOPO, ID: m.ID, Percentage: 80},
	})
	require.Len(t, res.Failed, 1)
	assert.ErrorIs(t, res.Failed[0].Err, ErrDeclined)
	require.Len(t, res.Succeeded, 1)
	assert.Empty(t, b.deleted)
	assert.Equal(t, outcome.Percentage(80), b.mappings[m.ID].Percentage())
}
