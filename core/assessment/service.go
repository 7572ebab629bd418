package assessment

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core"
)

type (
	Repository interface {
		CreateAssessment(ctx context.Context, a Assessment) (Assessment, error)
		GetAssessment(ctx context.Context, id int) (Assessment, error)
		QueryAssessments(ctx context.Context, courseID int) ([]Assessment, error)
		UpdateAssessment(ctx context.Context, a Assessment) (Assessment, error)
		DeleteAssessment(ctx context.Context, id int) error

		// SaveGrades inserts or replaces the grades, atomically.
		SaveGrades(ctx context.Context, grades []Grade) ([]Grade, error)
		QueryGrades(ctx context.Context, courseID int, studentID ...int) ([]Grade, error)
		// EnrolledStudents returns the ids of the students enrolled in the course.
		EnrolledStudents(ctx context.Context, courseID int) ([]int, error)
		CourseExists(ctx context.Context, courseID int) (bool, error)

		// LockCourse runs fn in a transaction holding the course's write lock, so the weight
		// changes of one course never interleave. fn's writes commit only when it returns nil.
		LockCourse(ctx context.Context, courseID int, fn func(tx CourseTx) error) error
	}

	// CourseTx is what can be done with the assessments of a locked course.
	CourseTx interface {
		GetAssessment(ctx context.Context, id int) (Assessment, error)
		QueryAssessments(ctx context.Context, courseID int) ([]Assessment, error)
		CreateAssessment(ctx context.Context, a Assessment) (Assessment, error)
		UpdateAssessment(ctx context.Context, a Assessment) (Assessment, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func weightFieldError(others []GradeWeightPercent) error {
	return core.NewValidationError(nil, core.FieldError{
		Field: "weight",
		Error: fmt.Sprintf(
			"the total of the course's assessment weights cannot exceed 100%% (at most %.1f%% is left)",
			float64(MaxAllowed(others)),
		),
	})
}

// Create adds an assessment to a course. The course weight total may be under 100
// while assessments are being set up, but never over.
func (svc *Service) Create(ctx context.Context, na NewAssessment) (Assessment, error) {
	ok, err := svc.repo.CourseExists(ctx, na.Course)
	if err != nil {
		return Assessment{}, errors.Wrap(err, "checking course")
	}
	if !ok {
		return Assessment{}, core.NewFieldError("course", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", na.Course))
	}

	frs := na.FeedbackRanges
	if frs == nil {
		frs = FeedbackRanges{}
	}

	var created Assessment
	err = svc.repo.LockCourse(ctx, na.Course, func(tx CourseTx) error {
		siblings, err := tx.QueryAssessments(ctx, na.Course)
		if err != nil {
			return errors.Wrap(err, "querying course assessments")
		}
		others := Weights(siblings)
		if WhatIf(others, na.Weight).State == WeightOver {
			return weightFieldError(others)
		}

		created, err = tx.CreateAssessment(ctx, Assessment{
			Course:         na.Course,
			Title:          na.Title,
			Type:           na.Type,
			MaxScore:       na.MaxScore,
			Weight:         na.Weight,
			FeedbackRanges: frs,
		})
		return err
	})
	if err != nil {
		return Assessment{}, err
	}
	return created, nil
}

func (svc *Service) Get(ctx context.Context, id int) (Assessment, error) {
	return svc.repo.GetAssessment(ctx, id)
}

func (svc *Service) Query(ctx context.Context, courseID int) ([]Assessment, error) {
	return svc.repo.QueryAssessments(ctx, courseID)
}

// Update patches an assessment; a new weight must keep the course total at or below 100.
func (svc *Service) Update(ctx context.Context, id int, ua UpdateAssessment) (Assessment, error) {
	a, err := svc.repo.GetAssessment(ctx, id)
	if err != nil {
		return Assessment{}, err
	}
	if ua.Weight == nil {
		ua.apply(&a)
		return svc.repo.UpdateAssessment(ctx, a)
	}

	var updated Assessment
	err = svc.repo.LockCourse(ctx, a.Course, func(tx CourseTx) error {
		// reloaded under the lock: the weights read before it may be stale
		a, err := tx.GetAssessment(ctx, id)
		if err != nil {
			return err
		}
		siblings, err := tx.QueryAssessments(ctx, a.Course)
		if err != nil {
			return errors.Wrap(err, "querying course assessments")
		}
		others := Weights(siblings, a.ID)
		if WhatIf(others, *ua.Weight).State == WeightOver {
			return weightFieldError(others)
		}
		ua.apply(&a)
		updated, err = tx.UpdateAssessment(ctx, a)
		return err
	})
	if err != nil {
		return Assessment{}, err
	}
	return updated, nil
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.repo.DeleteAssessment(ctx, id)
}

// WeightStatus checks the weights of a course's assessments against the 100% total.
func (svc *Service) WeightStatus(ctx context.Context, courseID int) (WeightCheck, error) {
	as, err := svc.repo.QueryAssessments(ctx, courseID)
	if err != nil {
		return WeightCheck{}, errors.Wrap(err, "querying course assessments")
	}
	return CheckWeights(Weights(as)...), nil
}

// SaveGrades stores a grade sheet. Nothing is saved unless the course's assessment
// weights total exactly 100; every entry must target an assessment of the course,
// an enrolled student and a score within [0, max_score].
func (svc *Service) SaveGrades(ctx context.Context, sg SaveGrades) ([]Grade, error) {
	as, err := svc.repo.QueryAssessments(ctx, sg.Course)
	if err != nil {
		return nil, errors.Wrap(err, "querying course assessments")
	}
	if err := GradingGate(Weights(as)...); err != nil {
		return nil, err
	}

	byID := make(map[int]Assessment, len(as))
	for _, a := range as {
		byID[a.ID] = a
	}
	studentIDs, err := svc.repo.EnrolledStudents(ctx, sg.Course)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrolled students")
	}
	enrolled := make(map[int]bool, len(studentIDs))
	for _, id := range studentIDs {
		enrolled[id] = true
	}

	var flds []core.FieldError
	grades := make([]Grade, 0, len(sg.Grades))
	for i, ge := range sg.Grades {
		field := fmt.Sprintf("grades[%d]", i)
		a, ok := byID[ge.Assessment]
		switch {
		case !ok:
			flds = append(flds, core.FieldError{Field: field + ".assessment", Error: "the assessment does not belong to this course"})
		case !enrolled[ge.Student]:
			flds = append(flds, core.FieldError{Field: field + ".student", Error: "the student is not enrolled in this course"})
		case ge.Score > a.MaxScore:
			flds = append(flds, core.FieldError{Field: field + ".score", Error: fmt.Sprintf("must be %v or less", a.MaxScore)})
		default:
			grades = append(grades, Grade{Assessment: ge.Assessment, Student: ge.Student, Score: ge.Score})
		}
	}
	if len(flds) > 0 {
		return nil, core.NewValidationError(nil, flds...)
	}
	return svc.repo.SaveGrades(ctx, grades)
}

func (svc *Service) QueryGrades(ctx context.Context, courseID int, studentID ...int) ([]Grade, error) {
	return svc.repo.QueryGrades(ctx, courseID, studentID...)
}

// Scores returns, per student, their percentage on each graded assessment of the course.
func (svc *Service) Scores(ctx context.Context, courseID int, studentID ...int) (map[int]map[int]float64, error) {
	as, err := svc.repo.QueryAssessments(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying course assessments")
	}
	byID := make(map[int]Assessment, len(as))
	for _, a := range as {
		byID[a.ID] = a
	}
	grades, err := svc.repo.QueryGrades(ctx, courseID, studentID...)
	if err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}

	scores := make(map[int]map[int]float64)
	for _, g := range grades {
		a, ok := byID[g.Assessment]
		if !ok {
			continue
		}
		if scores[g.Student] == nil {
			scores[g.Student] = make(map[int]float64)
		}
		scores[g.Student][g.Assessment] = a.ScorePercentage(g.Score)
	}
	return scores, nil
}
