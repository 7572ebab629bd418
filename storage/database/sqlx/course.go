package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core/course"
	"github.com/trezcool/masomo-obe/core/user"
)

var _ course.Repository = (*courseRepository)(nil)

type courseRepository struct {
	db *sqlx.DB
}

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

// Departments

func (repo *courseRepository) CreateDepartment(ctx context.Context, d course.Department) (course.Department, error) {
	id, err := insert(ctx, repo.db, "INSERT INTO departments (name, code) VALUES (?, ?) RETURNING id", d.Name, d.Code)
	if err != nil {
		return course.Department{}, uniqueOr(err, course.ErrCodeExists, "inserting department")
	}
	d.ID = id
	return d, nil
}

func (repo *courseRepository) GetDepartment(ctx context.Context, id int) (course.Department, error) {
	var d course.Department
	err := get(ctx, repo.db, course.ErrDepartmentNotFound, &d, "SELECT id, name, code FROM departments WHERE id = ?", id)
	return d, err
}

func (repo *courseRepository) QueryDepartments(ctx context.Context) ([]course.Department, error) {
	ds := make([]course.Department, 0)
	if err := selectAll(ctx, repo.db, &ds, "SELECT id, name, code FROM departments ORDER BY code"); err != nil {
		return nil, errors.Wrap(err, "selecting departments")
	}
	return ds, nil
}

// Courses

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	id, err := insert(ctx, repo.db,
		"INSERT INTO courses (department, code, name) VALUES (?, ?, ?) RETURNING id",
		c.Department, c.Code, c.Name,
	)
	if err != nil {
		return course.Course{}, uniqueOr(err, course.ErrCodeExists, "inserting course")
	}
	c.ID = id
	return c, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id int) (course.Course, error) {
	var c course.Course
	err := get(ctx, repo.db, course.ErrCourseNotFound, &c, "SELECT id, department, code, name FROM courses WHERE id = ?", id)
	return c, err
}

func (repo *courseRepository) QueryCourses(ctx context.Context, departmentID int) ([]course.Course, error) {
	query := "SELECT id, department, code, name FROM courses"
	var args []interface{}
	if departmentID > 0 {
		query += " WHERE department = ?"
		args = append(args, departmentID)
	}
	cs := make([]course.Course, 0)
	if err := selectAll(ctx, repo.db, &cs, query+" ORDER BY code", args...); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	return cs, nil
}

// Enrollments

func (repo *courseRepository) CreateEnrollment(ctx context.Context, e course.Enrollment) (course.Enrollment, error) {
	id, err := insert(ctx, repo.db,
		"INSERT INTO enrollments (course, student) VALUES (?, ?) RETURNING id",
		e.Course, e.Student,
	)
	if err != nil {
		return course.Enrollment{}, uniqueOr(err, course.ErrAlreadyEnrolled, "inserting enrollment")
	}
	e.ID = id
	return e, nil
}

func (repo *courseRepository) QueryEnrollments(ctx context.Context, courseID int) ([]course.Enrollment, error) {
	es := make([]course.Enrollment, 0)
	query := `SELECT e.id, e.course, e.student, u.name AS student_name
		FROM enrollments e JOIN users u ON u.id = e.student
		WHERE e.course = ? ORDER BY u.name, e.id`
	if err := selectAll(ctx, repo.db, &es, query, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	return es, nil
}

func (repo *courseRepository) DeleteEnrollment(ctx context.Context, id int) error {
	return exec(ctx, repo.db, course.ErrEnrollmentNotFound, "DELETE FROM enrollments WHERE id = ?", id)
}

func (repo *courseRepository) IsStudent(ctx context.Context, userID int) (bool, error) {
	var roles string
	err := get(ctx, repo.db, user.ErrNotFound, &roles, "SELECT roles FROM users WHERE id = ?", userID)
	if errors.Is(err, user.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, role := range splitRoles(roles) {
		if strings.HasPrefix(role, user.RoleStudent) {
			return true, nil
		}
	}
	return false, nil
}
