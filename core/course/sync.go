package course

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core"
)

// EnrollmentBackend performs the enrollment requests of a client.
type EnrollmentBackend interface {
	ListEnrollments(ctx context.Context, courseID int) ([]Enrollment, error)
	Enroll(ctx context.Context, ne NewEnrollment) (Enrollment, error)
	Unenroll(ctx context.Context, enrollmentID int) error
}

type ChangeOp string

const (
	ChangeEnroll   ChangeOp = "enroll"
	ChangeUnenroll ChangeOp = "unenroll"
)

// Change is one item of an enrollment sync.
type Change struct {
	Op         ChangeOp
	Course     int
	Student    int
	Enrollment int // set when unenrolling
}

func (c Change) String() string {
	return fmt.Sprintf("%s student %d (course %d)", c.Op, c.Student, c.Course)
}

// DiffEnrollment compares the enrollments of a course with the wanted student ids.
// Both results are sorted by student id; duplicates in desired are ignored.
func DiffEnrollment(current []Enrollment, desired []int) (toEnroll []int, toUnenroll []Enrollment) {
	want := make(map[int]bool, len(desired))
	for _, id := range desired {
		if id > 0 {
			want[id] = true
		}
	}
	have := make(map[int]bool, len(current))
	for _, e := range current {
		have[e.Student] = true
		if !want[e.Student] {
			toUnenroll = append(toUnenroll, e)
		}
	}
	for id := range want {
		if !have[id] {
			toEnroll = append(toEnroll, id)
		}
	}
	sort.Ints(toEnroll)
	sort.Slice(toUnenroll, func(i, j int) bool { return toUnenroll[i].Student < toUnenroll[j].Student })
	return toEnroll, toUnenroll
}

type EnrollmentSyncer struct {
	backend EnrollmentBackend
	logger  core.Logger
}

func NewEnrollmentSyncer(backend EnrollmentBackend, logger core.Logger) *EnrollmentSyncer {
	return &EnrollmentSyncer{backend: backend, logger: logger}
}

// Plan returns the changes Sync would make.
func (s *EnrollmentSyncer) Plan(ctx context.Context, courseID int, desired []int) ([]Change, error) {
	current, err := s.backend.ListEnrollments(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "listing enrollments")
	}
	toEnroll, toUnenroll := DiffEnrollment(current, desired)
	changes := make([]Change, 0, len(toEnroll)+len(toUnenroll))
	for _, id := range toEnroll {
		changes = append(changes, Change{Op: ChangeEnroll, Course: courseID, Student: id})
	}
	for _, e := range toUnenroll {
		changes = append(changes, Change{Op: ChangeUnenroll, Course: courseID, Student: e.Student, Enrollment: e.ID})
	}
	return changes, nil
}

// Sync makes the course's enrollments match desired, one request per change.
// A failed change does not stop the others.
func (s *EnrollmentSyncer) Sync(ctx context.Context, courseID int, desired []int) (core.BatchResult[Change], error) {
	var res core.BatchResult[Change]
	changes, err := s.Plan(ctx, courseID, desired)
	if err != nil {
		return res, err
	}

	for _, c := range changes {
		if err := ctx.Err(); err != nil {
			res.Record(c, err)
			continue
		}
		switch c.Op {
		case ChangeEnroll:
			_, err = s.backend.Enroll(ctx, NewEnrollment{Course: c.Course, Student: c.Student})
		case ChangeUnenroll:
			err = s.backend.Unenroll(ctx, c.Enrollment)
		}
		res.Record(c, err)
	}

	if !res.OK() {
		s.logger.Warn(fmt.Sprintf("enrollment sync of course %d: %d of %d changes failed", courseID, len(res.Failed), res.Total()), res.Err())
	}
	return res, nil
}
