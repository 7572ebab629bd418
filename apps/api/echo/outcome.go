package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core/outcome"
)

type outcomeApi struct {
	svc      *outcome.Service
	validate *validator.Validate
}

func registerOutcomeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *outcome.Service, validate *validator.Validate) {
	api := outcomeApi{svc: svc, validate: validate}

	lg := g.Group("/learning-outcomes", jwt)
	lg.GET("", api.queryLOs)
	lg.POST("", api.createLO, staffMiddleware)
	lg.GET("/:id", api.retrieveLO)
	lg.PATCH("/:id", api.updateLO, staffMiddleware)
	lg.PUT("/:id", api.updateLO, staffMiddleware)
	lg.DELETE("/:id", api.destroyLO, staffMiddleware)

	pg := g.Group("/program-outcomes", jwt)
	pg.GET("", api.queryPOs)
	pg.POST("", api.createPO, adminMiddleware())
	pg.GET("/:id", api.retrievePO)
	pg.PATCH("/:id", api.updatePO, adminMiddleware())
	pg.PUT("/:id", api.updatePO, adminMiddleware())
	pg.DELETE("/:id", api.destroyPO, adminMiddleware())

	ag := g.Group("/assessment-los", jwt)
	ag.GET("", api.queryAssessmentLOs)
	ag.POST("", api.createAssessmentLO, staffMiddleware)
	ag.GET("/:id", api.retrieveAssessmentLO)
	ag.PATCH("/:id", api.updateAssessmentLO, staffMiddleware)
	ag.PUT("/:id", api.updateAssessmentLO, staffMiddleware)
	ag.DELETE("/:id", api.destroyAssessmentLO, staffMiddleware)

	mg := g.Group("/lo-pos", jwt)
	mg.GET("", api.queryLOPOs)
	mg.POST("", api.createLOPO, staffMiddleware)
	mg.GET("/:id", api.retrieveLOPO)
	mg.PATCH("/:id", api.updateLOPO, staffMiddleware)
	mg.PUT("/:id", api.updateLOPO, staffMiddleware)
	mg.DELETE("/:id", api.destroyLOPO, staffMiddleware)
}

// Learning outcomes

func (api *outcomeApi) queryLOs(ctx echo.Context) error {
	courseID, err := requiredQueryID(ctx, "course", "courseId")
	if err != nil {
		return err
	}
	los, err := api.svc.QueryLearningOutcomes(ctx.Request().Context(), courseID)
	if err != nil {
		return errors.Wrap(err, "querying learning outcomes")
	}
	return ctx.JSON(http.StatusOK, los)
}

func (api *outcomeApi) createLO(ctx echo.Context) error {
	var data outcome.NewLearningOutcome
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLearningOutcome")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	lo, err := api.svc.CreateLearningOutcome(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating learning outcome")
	}
	return ctx.JSON(http.StatusCreated, lo)
}

func (api *outcomeApi) retrieveLO(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	lo, err := api.svc.GetLearningOutcome(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting learning outcome")
	}
	return ctx.JSON(http.StatusOK, lo)
}

func (api *outcomeApi) updateLO(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data outcome.UpdateOutcome
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateOutcome")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	lo, err := api.svc.UpdateLearningOutcome(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating learning outcome")
	}
	return ctx.JSON(http.StatusOK, lo)
}

func (api *outcomeApi) destroyLO(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteLearningOutcome(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting learning outcome")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Program outcomes

func (api *outcomeApi) queryPOs(ctx echo.Context) error {
	deptID, err := requiredQueryID(ctx, "department")
	if err != nil {
		return err
	}
	pos, err := api.svc.QueryProgramOutcomes(ctx.Request().Context(), deptID)
	if err != nil {
		return errors.Wrap(err, "querying program outcomes")
	}
	return ctx.JSON(http.StatusOK, pos)
}

func (api *outcomeApi) createPO(ctx echo.Context) error {
	var data outcome.NewProgramOutcome
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProgramOutcome")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	po, err := api.svc.CreateProgramOutcome(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating program outcome")
	}
	return ctx.JSON(http.StatusCreated, po)
}

func (api *outcomeApi) retrievePO(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	po, err := api.svc.GetProgramOutcome(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting program outcome")
	}
	return ctx.JSON(http.StatusOK, po)
}

func (api *outcomeApi) updatePO(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data outcome.UpdateOutcome
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateOutcome")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	po, err := api.svc.UpdateProgramOutcome(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating program outcome")
	}
	return ctx.JSON(http.StatusOK, po)
}

func (api *outcomeApi) destroyPO(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteProgramOutcome(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting program outcome")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Assessment -> LO mappings

func (api *outcomeApi) queryAssessmentLOs(ctx echo.Context) error {
	courseID, err := requiredQueryID(ctx, "courseId", "course")
	if err != nil {
		return err
	}
	ms, err := api.svc.QueryAssessmentLOs(ctx.Request().Context(), courseID)
	if err != nil {
		return errors.Wrap(err, "querying assessment-lo mappings")
	}
	return ctx.JSON(http.StatusOK, ms)
}

func (api *outcomeApi) createAssessmentLO(ctx echo.Context) error {
	var data outcome.NewAssessmentLO
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssessmentLO")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	m, err := api.svc.CreateAssessmentLO(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating assessment-lo mapping")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *outcomeApi) retrieveAssessmentLO(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	m, err := api.svc.GetAssessmentLO(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting assessment-lo mapping")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *outcomeApi) updateAssessmentLO(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data outcome.UpdateMappingWeight
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMappingWeight")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	m, err := api.svc.UpdateAssessmentLO(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating assessment-lo mapping")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *outcomeApi) destroyAssessmentLO(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteAssessmentLO(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting assessment-lo mapping")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// LO -> PO mappings

func (api *outcomeApi) queryLOPOs(ctx echo.Context) error {
	courseID, err := requiredQueryID(ctx, "courseId", "course")
	if err != nil {
		return err
	}
	ms, err := api.svc.QueryLOPOs(ctx.Request().Context(), courseID)
	if err != nil {
		return errors.Wrap(err, "querying lo-po mappings")
	}
	return ctx.JSON(http.StatusOK, ms)
}

func (api *outcomeApi) createLOPO(ctx echo.Context) error {
	var data outcome.NewLOPO
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLOPO")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	m, err := api.svc.CreateLOPO(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating lo-po mapping")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *outcomeApi) retrieveLOPO(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	m, err := api.svc.GetLOPO(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "getting lo-po mapping")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *outcomeApi) updateLOPO(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data outcome.UpdateMappingWeight
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMappingWeight")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	m, err := api.svc.UpdateLOPO(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating lo-po mapping")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *outcomeApi) destroyLOPO(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteLOPO(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting lo-po mapping")
	}
	return ctx.NoContent(http.StatusNoContent)
}
