package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core/assessment"
)

type assessmentApi struct {
	svc      *assessment.Service
	validate *validator.Validate
}

type weightStatusResponse struct {
	assessment.WeightCheck
	Message string `json:"message"`
}

func registerAssessmentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *assessment.Service, validate *validator.Validate) {
	api := assessmentApi{svc: svc, validate: validate}

	ag := g.Group("/assessments", jwt)
	ag.GET("", api.query)
	ag.POST("", api.create, staffMiddleware)
	ag.GET("/weights", api.weights)
	ag.GET("/:id", api.retrieve)
	ag.PATCH("/:id", api.update, staffMiddleware)
	ag.PUT("/:id", api.update, staffMiddleware)
	ag.DELETE("/:id", api.destroy, staffMiddleware)

	gg := g.Group("/grades", jwt)
	gg.GET("", api.queryGrades)
	gg.POST("", api.saveGrades, staffMiddleware)
}

func (api *assessmentApi) query(ctx echo.Context) error {
	courseID, err := requiredQueryID(ctx, "course", "courseId")
	if err != nil {
		return err
	}
	as, err := api.svc.Query(ctx.Request().Context(), courseID)
	if err != nil {
		return errors.Wrap(err, "querying assessments")
	}
	return ctx.JSON(http.StatusOK, as)
}

func (api *assessmentApi) create(ctx echo.Context) error {
	var data assessment.NewAssessment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssessment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	a, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating assessment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assessmentApi) weights(ctx echo.Context) error {
	courseID, err := requiredQueryID(ctx, "course", "courseId")
	if err != nil {
		return err
	}
	check, err := api.svc.WeightStatus(ctx.Request().Context(), courseID)
	if err != nil {
		return errors.Wrap(err, "checking assessment weights")
	}
	return ctx.JSON(http.StatusOK, weightStatusResponse{WeightCheck: check, Message: check.Message()})
}

func (api *assessmentApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting assessment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assessmentApi) update(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data assessment.UpdateAssessment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssessment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	a, err := api.svc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating assessment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assessmentApi) destroy(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting assessment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// queryGrades lists the grades of a course. Students only ever see their own.
func (api *assessmentApi) queryGrades(ctx echo.Context) error {
	courseID, err := requiredQueryID(ctx, "course", "courseId")
	if err != nil {
		return err
	}
	studentID, err := queryID(ctx, "student")
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if !(claims.IsTeacher || claims.IsAdmin) {
		if studentID != 0 && studentID != claims.UserID() {
			return errHttpForbidden
		}
		studentID = claims.UserID()
	}

	var students []int
	if studentID != 0 {
		students = append(students, studentID)
	}
	grades, err := api.svc.QueryGrades(ctx.Request().Context(), courseID, students...)
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

func (api *assessmentApi) saveGrades(ctx echo.Context) error {
	var data assessment.SaveGrades
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveGrades")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	grades, err := api.svc.SaveGrades(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "saving grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}
