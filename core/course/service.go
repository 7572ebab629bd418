// Package course holds departments, courses and the enrollment of students in courses.
package course

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core"
)

type (
	Repository interface {
		// CreateDepartment returns ErrCodeExists when the code is taken.
		CreateDepartment(ctx context.Context, d Department) (Department, error)
		GetDepartment(ctx context.Context, id int) (Department, error)
		QueryDepartments(ctx context.Context) ([]Department, error)

		// CreateCourse returns ErrCodeExists when the code is taken in the department.
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourse(ctx context.Context, id int) (Course, error)
		// QueryCourses returns every course when departmentID is 0.
		QueryCourses(ctx context.Context, departmentID int) ([]Course, error)

		// CreateEnrollment returns ErrAlreadyEnrolled when the student is enrolled already.
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		QueryEnrollments(ctx context.Context, courseID int) ([]Enrollment, error)
		DeleteEnrollment(ctx context.Context, id int) error

		// IsStudent reports whether the user exists and has the student role.
		IsStudent(ctx context.Context, userID int) (bool, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func invalidPK(field string, id int) error {
	return core.NewFieldError(field, fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
}

func (svc *Service) CreateDepartment(ctx context.Context, nd NewDepartment) (Department, error) {
	return svc.repo.CreateDepartment(ctx, Department{Name: nd.Name, Code: nd.Code})
}

func (svc *Service) GetDepartment(ctx context.Context, id int) (Department, error) {
	return svc.repo.GetDepartment(ctx, id)
}

func (svc *Service) QueryDepartments(ctx context.Context) ([]Department, error) {
	return svc.repo.QueryDepartments(ctx)
}

func (svc *Service) CreateCourse(ctx context.Context, nc NewCourse) (Course, error) {
	if _, err := svc.repo.GetDepartment(ctx, nc.Department); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return Course{}, invalidPK("department", nc.Department)
		}
		return Course{}, errors.Wrap(err, "finding department")
	}
	return svc.repo.CreateCourse(ctx, Course{Department: nc.Department, Code: nc.Code, Name: nc.Name})
}

func (svc *Service) GetCourse(ctx context.Context, id int) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *Service) QueryCourses(ctx context.Context, departmentID int) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, departmentID)
}

// Enroll adds a student to a course.
func (svc *Service) Enroll(ctx context.Context, ne NewEnrollment) (Enrollment, error) {
	if _, err := svc.repo.GetCourse(ctx, ne.Course); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return Enrollment{}, invalidPK("course", ne.Course)
		}
		return Enrollment{}, errors.Wrap(err, "finding course")
	}
	ok, err := svc.repo.IsStudent(ctx, ne.Student)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "finding student")
	}
	if !ok {
		return Enrollment{}, invalidPK("student", ne.Student)
	}
	return svc.repo.CreateEnrollment(ctx, Enrollment{Course: ne.Course, Student: ne.Student})
}

func (svc *Service) QueryEnrollments(ctx context.Context, courseID int) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, courseID)
}

func (svc *Service) Unenroll(ctx context.Context, enrollmentID int) error {
	return svc.repo.DeleteEnrollment(ctx, enrollmentID)
}
