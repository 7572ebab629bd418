package course

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-obe/core"
)

var (
	ErrDepartmentNotFound = core.NewNotFoundError("department")
	ErrCourseNotFound     = core.NewNotFoundError("course")
	ErrEnrollmentNotFound = core.NewNotFoundError("enrollment")
	ErrCodeExists         = core.NewConflictError("this code is already in use")
	ErrAlreadyEnrolled    = core.NewConflictError("the student is already enrolled in this course")
)

type Department struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Code string `json:"code" db:"code"`
}

type Course struct {
	ID         int    `json:"id" db:"id"`
	Department int    `json:"department" db:"department"`
	Code       string `json:"code" db:"code"`
	Name       string `json:"name" db:"name"`
}

type Enrollment struct {
	ID      int `json:"id" db:"id"`
	Course  int `json:"course" db:"course"`
	Student int `json:"student" db:"student"`

	// read-only
	StudentName string `json:"student_name,omitempty" db:"student_name"`
}

type NewDepartment struct {
	Name string `json:"name" validate:"required,notblank,max=200"`
	Code string `json:"code" validate:"required,max=20,code"`
}

func (nd *NewDepartment) Validate(validate *validator.Validate) error {
	nd.Name = core.CleanString(nd.Name)
	nd.Code = core.CleanString(nd.Code)
	return validate.Struct(nd)
}

type NewCourse struct {
	Department int    `json:"department" validate:"required"`
	Code       string `json:"code" validate:"required,max=20,code"`
	Name       string `json:"name" validate:"required,notblank,max=200"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Code = core.CleanString(nc.Code)
	return validate.Struct(nc)
}

type NewEnrollment struct {
	Course  int `json:"course" validate:"required"`
	Student int `json:"student" validate:"required"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error { return validate.Struct(ne) }
