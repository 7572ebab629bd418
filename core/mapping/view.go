package mapping

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core/outcome"
)

var ErrNoCourse = errors.New("no course selected")

// Ticket identifies one load started for a course selection.
type Ticket struct {
	Course int
	gen    uint64
}

// Selection tracks the selected course. Every Select or Renew invalidates the tickets
// handed out before it.
type Selection struct {
	mu     sync.Mutex
	course int
	gen    uint64
}

func (s *Selection) Select(courseID int) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.course = courseID
	s.gen++
	return Ticket{Course: s.course, gen: s.gen}
}

// Renew hands out a new ticket for the current course, superseding in-flight loads.
func (s *Selection) Renew() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return Ticket{Course: s.course, gen: s.gen}
}

func (s *Selection) Course() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.course
}

func (s *Selection) IsCurrent(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.gen == s.gen && t.Course == s.course
}

// Commit runs fn only if t is still current. The selection cannot change while fn runs.
func (s *Selection) Commit(t Ticket, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.gen != s.gen || t.Course != s.course {
		return false
	}
	fn()
	return true
}

// View holds the mappings of one kind for the selected course, the way a course page shows them.
// Responses of loads started for a previous selection are discarded.
type View struct {
	svc  *Service
	kind outcome.Kind
	sel  Selection

	mu       sync.RWMutex
	course   int
	mappings []outcome.Mapping
}

func NewView(svc *Service, kind outcome.Kind) *View {
	return &View{svc: svc, kind: kind}
}

func (v *View) Kind() outcome.Kind { return v.kind }

// Select switches the view to courseID and loads its mappings.
func (v *View) Select(ctx context.Context, courseID int) ([]outcome.Mapping, error) {
	t := v.sel.Select(courseID)
	v.sel.Commit(t, func() { v.set(courseID, nil) })
	return v.load(ctx, t)
}

// Reload fetches the mappings of the selected course again.
func (v *View) Reload(ctx context.Context) ([]outcome.Mapping, error) {
	t := v.sel.Renew()
	if t.Course == 0 {
		return nil, ErrNoCourse
	}
	return v.load(ctx, t)
}

func (v *View) load(ctx context.Context, t Ticket) ([]outcome.Mapping, error) {
	ms, err := v.svc.List(ctx, v.kind, t.Course)
	if !v.sel.IsCurrent(t) {
		return nil, ErrStaleResponse
	}
	if err != nil {
		return nil, err
	}
	if !v.sel.Commit(t, func() { v.set(t.Course, ms) }) {
		return nil, ErrStaleResponse
	}
	return v.copyMappings(), nil
}

func (v *View) set(course int, ms []outcome.Mapping) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.course = course
	v.mappings = ms
}

func (v *View) copyMappings() []outcome.Mapping {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]outcome.Mapping{}, v.mappings...)
}

// Mappings returns the course shown and its mappings.
func (v *View) Mappings() (courseID int, ms []outcome.Mapping) {
	v.mu.RLock()
	courseID = v.course
	v.mu.RUnlock()
	return courseID, v.copyMappings()
}

func (v *View) Create(ctx context.Context, sourceID, targetID int, pct outcome.Percentage) (outcome.Mapping, error) {
	if v.sel.Course() == 0 {
		return outcome.Mapping{}, ErrNoCourse
	}
	m, err := v.svc.Create(ctx, v.kind, sourceID, targetID, pct)
	if err != nil {
		return m, err
	}
	v.refresh(ctx)
	return m, nil
}

func (v *View) Update(ctx context.Context, id int, pct outcome.Percentage) (outcome.Mapping, error) {
	m, err := v.svc.Update(ctx, v.kind, id, pct)
	if err != nil {
		return m, err
	}
	v.refresh(ctx)
	return m, nil
}

func (v *View) Delete(ctx context.Context, id int) (bool, error) {
	deleted, err := v.svc.Delete(ctx, v.kind, id)
	if err != nil || !deleted {
		return deleted, err
	}
	v.refresh(ctx)
	return true, nil
}

// refresh re-fetches after a successful change. The change is not undone by a failed reload.
func (v *View) refresh(ctx context.Context) {
	if v.sel.Course() == 0 {
		return
	}
	if _, err := v.Reload(ctx); err != nil && !errors.Is(err, ErrStaleResponse) {
		v.svc.logger.Warn(fmt.Sprintf("reloading %s mappings: %v", v.kind, err), v.svc.user())
	}
}
