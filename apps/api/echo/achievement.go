package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core/assessment"
	"github.com/trezcool/masomo-obe/core/outcome"
)

type achievementApi struct {
	outcomes    *outcome.Service
	assessments *assessment.Service
}

func registerAchievementAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := achievementApi{outcomes: deps.OutcomeSvc, assessments: deps.AssessmentSvc}
	g.GET("/courses/:id/achievements", api.report, jwt)
}

// report computes the LO and PO achievements of a course, or of one of its
// students when ?student= is given. Students may only request their own report.
func (api *achievementApi) report(ctx echo.Context) error {
	courseID, err := pathID(ctx)
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

	reqCtx := ctx.Request().Context()
	cm, err := api.outcomes.CourseMap(reqCtx, courseID)
	if err != nil {
		return errors.Wrap(err, "loading course map")
	}

	if studentID != 0 {
		scores, err := api.assessments.Scores(reqCtx, courseID, studentID)
		if err != nil {
			return errors.Wrap(err, "computing student scores")
		}
		return ctx.JSON(http.StatusOK, cm.StudentReport(studentID, scores[studentID]))
	}

	scores, err := api.assessments.Scores(reqCtx, courseID)
	if err != nil {
		return errors.Wrap(err, "computing course scores")
	}
	return ctx.JSON(http.StatusOK, cm.CourseReport(scores))
}
