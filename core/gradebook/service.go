// Package gradebook drives grade entry for a course from a client: it keeps the course's
// assessment weights at 100% and refuses to send grades until they are.
package gradebook

import (
	"context"
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core"
	"github.com/trezcool/masomo-obe/core/assessment"
)

type (
	Backend interface {
		ListAssessments(ctx context.Context, courseID int) ([]assessment.Assessment, error)
		GetAssessment(ctx context.Context, id int) (assessment.Assessment, error)
		UpdateAssessment(ctx context.Context, id int, ua assessment.UpdateAssessment) (assessment.Assessment, error)
		SaveGrades(ctx context.Context, sg assessment.SaveGrades) ([]assessment.Grade, error)
	}

	Service struct {
		backend    Backend
		validate   *validator.Validate
		translator ut.Translator
		logger     core.Logger
	}

	// Adjustment reports the weight actually stored after a weight edit.
	Adjustment struct {
		Assessment assessment.Assessment
		Requested  assessment.GradeWeightPercent
		Applied    assessment.GradeWeightPercent
		Clamped    bool
		// Message is set when the weight was clamped.
		Message string
		// Check is the course state after the edit.
		Check assessment.WeightCheck
	}
)

func NewService(backend Backend, validate *validator.Validate, translator ut.Translator, logger core.Logger) *Service {
	return &Service{
		backend:    backend,
		validate:   validate,
		translator: translator,
		logger:     logger,
	}
}

// WeightStatus reports whether the course's assessment weights total 100%.
func (svc *Service) WeightStatus(ctx context.Context, courseID int) (assessment.WeightCheck, error) {
	as, err := svc.backend.ListAssessments(ctx, courseID)
	if err != nil {
		return assessment.WeightCheck{}, errors.Wrap(err, "listing assessments")
	}
	return assessment.CheckWeights(assessment.Weights(as)...), nil
}

// SetAssessmentWeight stores a new grade weight for an assessment. A weight that would take
// the course over 100% is lowered to what is left and the adjustment says so.
func (svc *Service) SetAssessmentWeight(ctx context.Context, assessmentID int, proposed assessment.GradeWeightPercent) (Adjustment, error) {
	if proposed < 0 || proposed > assessment.WeightTotal {
		return Adjustment{}, core.NewFieldError("weight", "ensure this value is between 0 and 100")
	}
	a, err := svc.backend.GetAssessment(ctx, assessmentID)
	if err != nil {
		return Adjustment{}, errors.Wrap(err, "fetching assessment")
	}
	siblings, err := svc.backend.ListAssessments(ctx, a.Course)
	if err != nil {
		return Adjustment{}, errors.Wrap(err, "listing assessments")
	}
	others := assessment.Weights(siblings, a.ID)

	adj := Adjustment{Requested: proposed}
	adj.Applied, adj.Clamped = assessment.ClampWeight(others, proposed)
	if adj.Clamped {
		adj.Message = assessment.ClampMessage(adj.Applied)
		svc.logger.Info(fmt.Sprintf("assessment %d: weight %.1f%% clamped to %.1f%%", a.ID, float64(proposed), float64(adj.Applied)))
	}

	applied := adj.Applied
	updated, err := svc.backend.UpdateAssessment(ctx, a.ID, assessment.UpdateAssessment{Weight: &applied})
	if err != nil {
		return Adjustment{}, errors.Wrap(err, "updating assessment weight")
	}
	adj.Assessment = updated
	adj.Check = assessment.WhatIf(others, updated.Weight)
	return adj, nil
}

// SaveGrades sends a grade sheet. It is blocked unless the course weights total exactly 100%;
// the returned error then matches assessment.ErrGradingBlocked and carries the deficit or excess.
func (svc *Service) SaveGrades(ctx context.Context, courseID int, entries []assessment.GradeEntry) ([]assessment.Grade, error) {
	as, err := svc.backend.ListAssessments(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "listing assessments")
	}
	if err := assessment.GradingGate(assessment.Weights(as)...); err != nil {
		return nil, err
	}

	sg := assessment.SaveGrades{Course: courseID, Grades: entries}
	if err := sg.Validate(svc.validate); err != nil {
		return nil, core.TranslateValidation(err, svc.translator)
	}
	if err := checkScores(as, entries); err != nil {
		return nil, err
	}

	grades, err := svc.backend.SaveGrades(ctx, sg)
	if err != nil {
		return nil, errors.Wrap(err, "saving grades")
	}
	return grades, nil
}

func checkScores(as []assessment.Assessment, entries []assessment.GradeEntry) error {
	byID := make(map[int]assessment.Assessment, len(as))
	for _, a := range as {
		byID[a.ID] = a
	}
	var flds []core.FieldError
	for i, e := range entries {
		a, ok := byID[e.Assessment]
		if !ok {
			flds = append(flds, core.FieldError{
				Field: fmt.Sprintf("grades[%d].assessment", i),
				Error: "the assessment does not belong to this course",
			})
			continue
		}
		if e.Score > a.MaxScore {
			flds = append(flds, core.FieldError{
				Field: fmt.Sprintf("grades[%d].score", i),
				Error: fmt.Sprintf("must be %g or less", a.MaxScore),
			})
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// SetFeedbackRanges replaces the feedback ranges of an assessment.
func (svc *Service) SetFeedbackRanges(ctx context.Context, assessmentID int, ranges assessment.FeedbackRanges) (assessment.Assessment, error) {
	if ranges == nil {
		ranges = assessment.FeedbackRanges{}
	}
	ua := assessment.UpdateAssessment{FeedbackRanges: &ranges}
	if err := ua.Validate(svc.validate); err != nil {
		return assessment.Assessment{}, core.TranslateValidation(err, svc.translator)
	}
	a, err := svc.backend.UpdateAssessment(ctx, assessmentID, ua)
	if err != nil {
		return assessment.Assessment{}, errors.Wrap(err, "updating feedback ranges")
	}
	return a, nil
}

// Feedback returns the feedback a student gets for score on the assessment.
func (svc *Service) Feedback(ctx context.Context, assessmentID int, score float64) (string, bool, error) {
	a, err := svc.backend.GetAssessment(ctx, assessmentID)
	if err != nil {
		return "", false, errors.Wrap(err, "fetching assessment")
	}
	fb, ok := a.Feedback(score)
	return fb, ok, nil
}
