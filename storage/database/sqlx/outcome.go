package sqlxrepos

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core"
	"github.com/trezcool/masomo-obe/core/course"
	"github.com/trezcool/masomo-obe/core/outcome"
	"github.com/trezcool/masomo-obe/storage/database"
)

var _ outcome.Repository = (*outcomeRepository)(nil)

const (
	loColumns = "id, course, code, title, description, target_percentage"
	poColumns = "id, department, code, title, description, target_percentage"

	assessmentLOSelect = `SELECT m.id, m.assessment, m.learning_outcome, m.weight,
		a.course AS course, a.title AS assessment_title,
		lo.code AS lo_code, lo.title AS lo_title, lo.description AS lo_description
		FROM assessment_los m
		JOIN assessments a ON a.id = m.assessment
		JOIN learning_outcomes lo ON lo.id = m.learning_outcome`

	lopoSelect = `SELECT m.id, m.learning_outcome, m.program_outcome, m.weight,
		lo.course AS course, lo.code AS lo_code,
		po.code AS po_code, po.title AS po_title, po.description AS po_description
		FROM lo_pos m
		JOIN learning_outcomes lo ON lo.id = m.learning_outcome
		JOIN program_outcomes po ON po.id = m.program_outcome`
)

var errAssessmentNotFound = core.NewNotFoundError("assessment")

type outcomeRepository struct {
	db *sqlx.DB
}

func NewOutcomeRepository(db *sqlx.DB) *outcomeRepository {
	return &outcomeRepository{db: db}
}

// Learning outcomes

func (repo *outcomeRepository) CreateLearningOutcome(ctx context.Context, lo outcome.LearningOutcome) (outcome.LearningOutcome, error) {
	id, err := insert(ctx, repo.db,
		`INSERT INTO learning_outcomes (course, code, title, description, target_percentage)
		VALUES (?, ?, ?, ?, ?) RETURNING id`,
		lo.Course, lo.Code, lo.Title, lo.Description, lo.TargetPercentage,
	)
	if err != nil {
		return outcome.LearningOutcome{}, uniqueOr(err, outcome.ErrCodeExists, "inserting learning outcome")
	}
	lo.ID = id
	return lo, nil
}

func (repo *outcomeRepository) GetLearningOutcome(ctx context.Context, id int) (outcome.LearningOutcome, error) {
	var lo outcome.LearningOutcome
	err := get(ctx, repo.db, outcome.ErrLONotFound, &lo, "SELECT "+loColumns+" FROM learning_outcomes WHERE id = ?", id)
	return lo, err
}

func (repo *outcomeRepository) QueryLearningOutcomes(ctx context.Context, courseID int) ([]outcome.LearningOutcome, error) {
	los := make([]outcome.LearningOutcome, 0)
	query := "SELECT " + loColumns + " FROM learning_outcomes WHERE course = ? ORDER BY code"
	if err := selectAll(ctx, repo.db, &los, query, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting learning outcomes")
	}
	return los, nil
}

func (repo *outcomeRepository) UpdateLearningOutcome(ctx context.Context, lo outcome.LearningOutcome) (outcome.LearningOutcome, error) {
	err := exec(ctx, repo.db, outcome.ErrLONotFound,
		"UPDATE learning_outcomes SET code = ?, title = ?, description = ?, target_percentage = ? WHERE id = ?",
		lo.Code, lo.Title, lo.Description, lo.TargetPercentage, lo.ID,
	)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return outcome.LearningOutcome{}, uniqueOr(err, outcome.ErrCodeExists, "updating learning outcome")
	}
	return lo, err
}

func (repo *outcomeRepository) DeleteLearningOutcome(ctx context.Context, id int) error {
	return exec(ctx, repo.db, outcome.ErrLONotFound, "DELETE FROM learning_outcomes WHERE id = ?", id)
}

// Program outcomes

func (repo *outcomeRepository) CreateProgramOutcome(ctx context.Context, po outcome.ProgramOutcome) (outcome.ProgramOutcome, error) {
	id, err := insert(ctx, repo.db,
		`INSERT INTO program_outcomes (department, code, title, description, target_percentage)
		VALUES (?, ?, ?, ?, ?) RETURNING id`,
		po.Department, po.Code, po.Title, po.Description, po.TargetPercentage,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return outcome.ProgramOutcome{}, core.NewFieldError("department",
				fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", po.Department))
		}
		return outcome.ProgramOutcome{}, uniqueOr(err, outcome.ErrCodeExists, "inserting program outcome")
	}
	po.ID = id
	return po, nil
}

func (repo *outcomeRepository) GetProgramOutcome(ctx context.Context, id int) (outcome.ProgramOutcome, error) {
	var po outcome.ProgramOutcome
	err := get(ctx, repo.db, outcome.ErrPONotFound, &po, "SELECT "+poColumns+" FROM program_outcomes WHERE id = ?", id)
	return po, err
}

func (repo *outcomeRepository) QueryProgramOutcomes(ctx context.Context, departmentID int) ([]outcome.ProgramOutcome, error) {
	pos := make([]outcome.ProgramOutcome, 0)
	query := "SELECT " + poColumns + " FROM program_outcomes WHERE department = ? ORDER BY code"
	if err := selectAll(ctx, repo.db, &pos, query, departmentID); err != nil {
		return nil, errors.Wrap(err, "selecting program outcomes")
	}
	return pos, nil
}

func (repo *outcomeRepository) UpdateProgramOutcome(ctx context.Context, po outcome.ProgramOutcome) (outcome.ProgramOutcome, error) {
	err := exec(ctx, repo.db, outcome.ErrPONotFound,
		"UPDATE program_outcomes SET code = ?, title = ?, description = ?, target_percentage = ? WHERE id = ?",
		po.Code, po.Title, po.Description, po.TargetPercentage, po.ID,
	)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return outcome.ProgramOutcome{}, uniqueOr(err, outcome.ErrCodeExists, "updating program outcome")
	}
	return po, err
}

func (repo *outcomeRepository) DeleteProgramOutcome(ctx context.Context, id int) error {
	return exec(ctx, repo.db, outcome.ErrPONotFound, "DELETE FROM program_outcomes WHERE id = ?", id)
}

// Assessment -> LO mappings

func (repo *outcomeRepository) CreateAssessmentLO(ctx context.Context, m outcome.AssessmentLO) (outcome.AssessmentLO, error) {
	id, err := insert(ctx, repo.db,
		"INSERT INTO assessment_los (assessment, learning_outcome, weight) VALUES (?, ?, ?) RETURNING id",
		m.Assessment, m.LearningOutcome, float64(m.Weight),
	)
	if err != nil {
		return outcome.AssessmentLO{}, uniqueOr(err, outcome.ErrMappingExists, "inserting assessment-lo mapping")
	}
	return repo.GetAssessmentLO(ctx, id)
}

func (repo *outcomeRepository) GetAssessmentLO(ctx context.Context, id int) (outcome.AssessmentLO, error) {
	var m outcome.AssessmentLO
	err := get(ctx, repo.db, outcome.ErrMappingNotFound, &m, assessmentLOSelect+" WHERE m.id = ?", id)
	return m, err
}

func (repo *outcomeRepository) QueryAssessmentLOs(ctx context.Context, courseID int) ([]outcome.AssessmentLO, error) {
	ms := make([]outcome.AssessmentLO, 0)
	if err := selectAll(ctx, repo.db, &ms, assessmentLOSelect+" WHERE a.course = ? ORDER BY m.id", courseID); err != nil {
		return nil, errors.Wrap(err, "selecting assessment-lo mappings")
	}
	return ms, nil
}

func (repo *outcomeRepository) UpdateAssessmentLOWeight(ctx context.Context, id int, w outcome.ContributionWeight) (outcome.AssessmentLO, error) {
	if err := exec(ctx, repo.db, outcome.ErrMappingNotFound, "UPDATE assessment_los SET weight = ? WHERE id = ?", float64(w), id); err != nil {
		return outcome.AssessmentLO{}, err
	}
	return repo.GetAssessmentLO(ctx, id)
}

func (repo *outcomeRepository) DeleteAssessmentLO(ctx context.Context, id int) error {
	return exec(ctx, repo.db, outcome.ErrMappingNotFound, "DELETE FROM assessment_los WHERE id = ?", id)
}

// LO -> PO mappings

func (repo *outcomeRepository) CreateLOPO(ctx context.Context, m outcome.LOPO) (outcome.LOPO, error) {
	id, err := insert(ctx, repo.db,
		"INSERT INTO lo_pos (learning_outcome, program_outcome, weight) VALUES (?, ?, ?) RETURNING id",
		m.LearningOutcome, m.ProgramOutcome, float64(m.Weight),
	)
	if err != nil {
		return outcome.LOPO{}, uniqueOr(err, outcome.ErrMappingExists, "inserting lo-po mapping")
	}
	return repo.GetLOPO(ctx, id)
}

func (repo *outcomeRepository) GetLOPO(ctx context.Context, id int) (outcome.LOPO, error) {
	var m outcome.LOPO
	err := get(ctx, repo.db, outcome.ErrMappingNotFound, &m, lopoSelect+" WHERE m.id = ?", id)
	return m, err
}

func (repo *outcomeRepository) QueryLOPOs(ctx context.Context, courseID int) ([]outcome.LOPO, error) {
	ms := make([]outcome.LOPO, 0)
	if err := selectAll(ctx, repo.db, &ms, lopoSelect+" WHERE lo.course = ? ORDER BY m.id", courseID); err != nil {
		return nil, errors.Wrap(err, "selecting lo-po mappings")
	}
	return ms, nil
}

func (repo *outcomeRepository) UpdateLOPOWeight(ctx context.Context, id int, w outcome.ContributionWeight) (outcome.LOPO, error) {
	if err := exec(ctx, repo.db, outcome.ErrMappingNotFound, "UPDATE lo_pos SET weight = ? WHERE id = ?", float64(w), id); err != nil {
		return outcome.LOPO{}, err
	}
	return repo.GetLOPO(ctx, id)
}

func (repo *outcomeRepository) DeleteLOPO(ctx context.Context, id int) error {
	return exec(ctx, repo.db, outcome.ErrMappingNotFound, "DELETE FROM lo_pos WHERE id = ?", id)
}

func (repo *outcomeRepository) AssessmentCourse(ctx context.Context, assessmentID int) (int, error) {
	var courseID int
	err := get(ctx, repo.db, errAssessmentNotFound, &courseID, "SELECT course FROM assessments WHERE id = ?", assessmentID)
	return courseID, err
}

func (repo *outcomeRepository) CourseDepartment(ctx context.Context, courseID int) (int, error) {
	var dept int
	err := get(ctx, repo.db, course.ErrCourseNotFound, &dept, "SELECT department FROM courses WHERE id = ?", courseID)
	return dept, err
}
