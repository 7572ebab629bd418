package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core/course"
)

type courseApi struct {
	svc      *course.Service
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := courseApi{svc: deps.CourseSvc, validate: deps.Validate}

	dg := g.Group("/departments", jwt)
	dg.GET("", api.queryDepartments)
	dg.POST("", api.createDepartment, adminMiddleware())
	dg.GET("/:id", api.retrieveDepartment)

	cg := g.Group("/courses", jwt)
	cg.GET("", api.queryCourses)
	cg.POST("", api.createCourse, adminMiddleware())
	cg.GET("/:id", api.retrieveCourse)

	eg := g.Group("/enrollments", jwt, staffMiddleware)
	eg.GET("", api.queryEnrollments)
	eg.POST("", api.enroll)
	eg.DELETE("/:id", api.unenroll)
}

func (api *courseApi) queryDepartments(ctx echo.Context) error {
	ds, err := api.svc.QueryDepartments(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying departments")
	}
	return ctx.JSON(http.StatusOK, ds)
}

func (api *courseApi) createDepartment(ctx echo.Context) error {
	var data course.NewDepartment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDepartment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	d, err := api.svc.CreateDepartment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating department")
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *courseApi) retrieveDepartment(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	d, err := api.svc.GetDepartment(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting department")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *courseApi) queryCourses(ctx echo.Context) error {
	deptID, err := queryID(ctx, "department")
	if err != nil {
		return err
	}
	cs, err := api.svc.QueryCourses(ctx.Request().Context(), deptID)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, cs)
}

func (api *courseApi) createCourse(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	c, err := api.svc.CreateCourse(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *courseApi) retrieveCourse(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	c, err := api.svc.GetCourse(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) queryEnrollments(ctx echo.Context) error {
	courseID, err := requiredQueryID(ctx, "course", "courseId")
	if err != nil {
		return err
	}
	es, err := api.svc.QueryEnrollments(ctx.Request().Context(), courseID)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	return ctx.JSON(http.StatusOK, es)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	var data course.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	e, err := api.svc.Enroll(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *courseApi) unenroll(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Unenroll(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "unenrolling student")
	}
	return ctx.NoContent(http.StatusNoContent)
}
