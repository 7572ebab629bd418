package assessment

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-obe/core"
)

var ErrNotFound = core.NewNotFoundError("assessment")

type Type string

const (
	TypeExam         Type = "exam"
	TypeMidterm      Type = "midterm"
	TypeFinal        Type = "final"
	TypeQuiz         Type = "quiz"
	TypeAssignment   Type = "assignment"
	TypeProject      Type = "project"
	TypeLab          Type = "lab"
	TypePresentation Type = "presentation"
	TypeOther        Type = "other"
)

var Types = []Type{
	TypeExam, TypeMidterm, TypeFinal, TypeQuiz, TypeAssignment, TypeProject, TypeLab, TypePresentation, TypeOther,
}

func (t Type) Valid() bool {
	for _, typ := range Types {
		if t == typ {
			return true
		}
	}
	return false
}

var (
	typeTag  = "assessmenttype"
	typeText = fmt.Sprintf("must be one of %v", Types)
)

// InitValidators registers the assessment validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(typeTag, func(fl validator.FieldLevel) bool {
		return Type(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, typeTag, typeText)
}

type Assessment struct {
	ID             int                `json:"id" db:"id"`
	Course         int                `json:"course" db:"course"`
	Title          string             `json:"title" db:"title"`
	Type           Type               `json:"assessment_type" db:"assessment_type"`
	MaxScore       float64            `json:"max_score" db:"max_score"`
	Weight         GradeWeightPercent `json:"weight" db:"weight"`
	FeedbackRanges FeedbackRanges     `json:"feedback_ranges" db:"feedback_ranges"`
}

// ScorePercentage returns score as a percentage of the assessment's max score.
func (a Assessment) ScorePercentage(score float64) float64 {
	return ScorePercentage(score, a.MaxScore)
}

// Feedback resolves the feedback text of a score on the assessment.
func (a Assessment) Feedback(score float64) (string, bool) {
	return a.FeedbackRanges.Resolve(a.ScorePercentage(score))
}

// NewAssessment contains information needed to create an Assessment.
type NewAssessment struct {
	Course         int                `json:"course" validate:"required"`
	Title          string             `json:"title" validate:"required,notblank,max=200"`
	Type           Type               `json:"assessment_type" validate:"required,assessmenttype"`
	MaxScore       float64            `json:"max_score" validate:"required,gt=0"`
	Weight         GradeWeightPercent `json:"weight" validate:"gte=0,lte=100"`
	FeedbackRanges FeedbackRanges     `json:"feedback_ranges" validate:"omitempty,dive"`
}

func (na *NewAssessment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	if na.Type == "" {
		na.Type = TypeOther
	}
	na.FeedbackRanges.clean()
	return validate.Struct(na)
}

// UpdateAssessment defines what may be modified on an existing Assessment.
type UpdateAssessment struct {
	Title          *string             `json:"title,omitempty" validate:"omitempty,notblank,max=200"`
	Type           *Type               `json:"assessment_type,omitempty" validate:"omitempty,assessmenttype"`
	MaxScore       *float64            `json:"max_score,omitempty" validate:"omitempty,gt=0"`
	Weight         *GradeWeightPercent `json:"weight,omitempty" validate:"omitempty,gte=0,lte=100"`
	FeedbackRanges *FeedbackRanges     `json:"feedback_ranges,omitempty" validate:"omitempty,dive"`
}

func (ua *UpdateAssessment) Validate(validate *validator.Validate) error {
	if ua.Title != nil {
		*ua.Title = core.CleanString(*ua.Title)
	}
	if ua.FeedbackRanges != nil {
		ua.FeedbackRanges.clean()
	}
	return validate.Struct(ua)
}

func (ua UpdateAssessment) apply(a *Assessment) {
	if ua.Title != nil {
		a.Title = *ua.Title
	}
	if ua.Type != nil {
		a.Type = *ua.Type
	}
	if ua.MaxScore != nil {
		a.MaxScore = *ua.MaxScore
	}
	if ua.Weight != nil {
		a.Weight = *ua.Weight
	}
	if ua.FeedbackRanges != nil {
		a.FeedbackRanges = *ua.FeedbackRanges
	}
}

type Grade struct {
	ID         int     `json:"id" db:"id"`
	Assessment int     `json:"assessment" db:"assessment"`
	Student    int     `json:"student" db:"student"`
	Score      float64 `json:"score" db:"score"`
}

type GradeEntry struct {
	Assessment int     `json:"assessment" validate:"required"`
	Student    int     `json:"student" validate:"required"`
	Score      float64 `json:"score" validate:"gte=0"`
}

// SaveGrades is the payload of a grade sheet submission for a course.
type SaveGrades struct {
	Course int          `json:"course" validate:"required"`
	Grades []GradeEntry `json:"grades" validate:"required,min=1,dive"`
}

func (sg *SaveGrades) Validate(validate *validator.Validate) error { return validate.Struct(sg) }
