package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core/assessment"
	"github.com/trezcool/masomo-obe/core/course"
	"github.com/trezcool/masomo-obe/storage/database"
)

var _ assessment.Repository = (*assessmentRepository)(nil)

const assessmentColumns = "id, course, title, assessment_type, max_score, weight, feedback_ranges"

// assessmentQueries run on the pool, or on the transaction of a locked course.
type assessmentQueries struct {
	q sqlx.ExtContext
}

type assessmentRepository struct {
	assessmentQueries
	db *sqlx.DB
}

func NewAssessmentRepository(db *sqlx.DB) *assessmentRepository {
	return &assessmentRepository{assessmentQueries: assessmentQueries{q: db}, db: db}
}

// LockCourse takes the course row lock (the database write lock on sqlite) before running fn,
// so concurrent weight checks on one course are serialized until commit.
func (repo *assessmentRepository) LockCourse(ctx context.Context, courseID int, fn func(tx assessment.CourseTx) error) error {
	return database.WithTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := exec(ctx, tx, course.ErrCourseNotFound, "UPDATE courses SET id = id WHERE id = ?", courseID); err != nil {
			return err
		}
		return fn(assessmentQueries{q: tx})
	})
}

func (aq assessmentQueries) CreateAssessment(ctx context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	id, err := insert(ctx, aq.q,
		`INSERT INTO assessments (course, title, assessment_type, max_score, weight, feedback_ranges)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		a.Course, a.Title, string(a.Type), a.MaxScore, float64(a.Weight), a.FeedbackRanges,
	)
	if err != nil {
		return assessment.Assessment{}, errors.Wrap(err, "inserting assessment")
	}
	a.ID = id
	return a, nil
}

func (aq assessmentQueries) GetAssessment(ctx context.Context, id int) (assessment.Assessment, error) {
	var a assessment.Assessment
	err := get(ctx, aq.q, assessment.ErrNotFound, &a, "SELECT "+assessmentColumns+" FROM assessments WHERE id = ?", id)
	return a, err
}

func (aq assessmentQueries) QueryAssessments(ctx context.Context, courseID int) ([]assessment.Assessment, error) {
	as := make([]assessment.Assessment, 0)
	query := "SELECT " + assessmentColumns + " FROM assessments WHERE course = ? ORDER BY id"
	if err := selectAll(ctx, aq.q, &as, query, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting assessments")
	}
	return as, nil
}

func (aq assessmentQueries) UpdateAssessment(ctx context.Context, a assessment.Assessment) (assessment.Assessment, error) {
	err := exec(ctx, aq.q, assessment.ErrNotFound,
		`UPDATE assessments SET title = ?, assessment_type = ?, max_score = ?, weight = ?, feedback_ranges = ?
		WHERE id = ?`,
		a.Title, string(a.Type), a.MaxScore, float64(a.Weight), a.FeedbackRanges, a.ID,
	)
	if err != nil {
		return assessment.Assessment{}, err
	}
	return a, nil
}

func (repo *assessmentRepository) DeleteAssessment(ctx context.Context, id int) error {
	return exec(ctx, repo.db, assessment.ErrNotFound, "DELETE FROM assessments WHERE id = ?", id)
}

// SaveGrades upserts the grades on (assessment, student) in one transaction.
func (repo *assessmentRepository) SaveGrades(ctx context.Context, grades []assessment.Grade) ([]assessment.Grade, error) {
	saved := make([]assessment.Grade, 0, len(grades))
	err := database.WithTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for _, g := range grades {
			id, err := insert(ctx, tx,
				`INSERT INTO grades (assessment, student, score) VALUES (?, ?, ?)
				ON CONFLICT (assessment, student) DO UPDATE SET score = excluded.score
				RETURNING id`,
				g.Assessment, g.Student, g.Score,
			)
			if err != nil {
				return errors.Wrapf(err, "saving grade of student %d on assessment %d", g.Student, g.Assessment)
			}
			g.ID = id
			saved = append(saved, g)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (repo *assessmentRepository) QueryGrades(ctx context.Context, courseID int, studentID ...int) ([]assessment.Grade, error) {
	query := `SELECT g.id, g.assessment, g.student, g.score
		FROM grades g JOIN assessments a ON a.id = g.assessment
		WHERE a.course = ?`
	args := []interface{}{courseID}
	if len(studentID) > 0 {
		q, inArgs, err := sqlx.In(" AND g.student IN (?)", studentID)
		if err != nil {
			return nil, err
		}
		query += q
		args = append(args, inArgs...)
	}

	grades := make([]assessment.Grade, 0)
	if err := selectAll(ctx, repo.db, &grades, query+" ORDER BY g.student, g.assessment", args...); err != nil {
		return nil, errors.Wrap(err, "selecting grades")
	}
	return grades, nil
}

func (repo *assessmentRepository) EnrolledStudents(ctx context.Context, courseID int) ([]int, error) {
	ids := make([]int, 0)
	if err := selectAll(ctx, repo.db, &ids, "SELECT student FROM enrollments WHERE course = ? ORDER BY student", courseID); err != nil {
		return nil, errors.Wrap(err, "selecting enrolled students")
	}
	return ids, nil
}

func (repo *assessmentRepository) CourseExists(ctx context.Context, courseID int) (bool, error) {
	var n int
	if err := repo.db.GetContext(ctx, &n, repo.db.Rebind("SELECT COUNT(*) FROM courses WHERE id = ?"), courseID); err != nil {
		return false, errors.Wrap(err, "counting courses")
	}
	return n > 0, nil
}
