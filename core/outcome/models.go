package outcome

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-obe/core"
)

var (
	ErrLONotFound      = core.NewNotFoundError("learning outcome")
	ErrPONotFound      = core.NewNotFoundError("program outcome")
	ErrMappingNotFound = core.NewNotFoundError("mapping")
	ErrCodeExists      = core.NewConflictError("an outcome with this code already exists")
	// ErrMappingExists is returned when the (source, target) pair of a mapping is already mapped.
	ErrMappingExists = core.NewConflictError("this mapping already exists")
)

type LearningOutcome struct {
	ID               int     `json:"id" db:"id"`
	Course           int     `json:"course" db:"course"`
	Code             string  `json:"code" db:"code"`
	Title            string  `json:"title" db:"title"`
	Description      string  `json:"description" db:"description"`
	TargetPercentage float64 `json:"target_percentage" db:"target_percentage"`
}

type ProgramOutcome struct {
	ID               int     `json:"id" db:"id"`
	Department       int     `json:"department" db:"department"`
	Code             string  `json:"code" db:"code"`
	Title            string  `json:"title" db:"title"`
	Description      string  `json:"description" db:"description"`
	TargetPercentage float64 `json:"target_percentage" db:"target_percentage"`
}

// AssessmentLO maps an assessment to a learning outcome of the same course.
type AssessmentLO struct {
	ID              int                `json:"id" db:"id"`
	Assessment      int                `json:"assessment" db:"assessment"`
	LearningOutcome int                `json:"learning_outcome" db:"learning_outcome"`
	Weight          ContributionWeight `json:"weight" db:"weight"`

	// read-only
	Course          int    `json:"course,omitempty" db:"course"`
	AssessmentTitle string `json:"assessment_title,omitempty" db:"assessment_title"`
	LOCode          string `json:"lo_code,omitempty" db:"lo_code"`
	LOTitle         string `json:"lo_title,omitempty" db:"lo_title"`
	LODescription   string `json:"lo_description,omitempty" db:"lo_description"`
}

// LOPO maps a learning outcome to a program outcome.
type LOPO struct {
	ID              int                `json:"id" db:"id"`
	LearningOutcome int                `json:"learning_outcome" db:"learning_outcome"`
	ProgramOutcome  int                `json:"program_outcome" db:"program_outcome"`
	Weight          ContributionWeight `json:"weight" db:"weight"`

	// read-only
	Course        int    `json:"course,omitempty" db:"course"`
	LOCode        string `json:"lo_code,omitempty" db:"lo_code"`
	POCode        string `json:"po_code,omitempty" db:"po_code"`
	POTitle       string `json:"po_title,omitempty" db:"po_title"`
	PODescription string `json:"po_description,omitempty" db:"po_description"`
}

// Mapping is the kind-agnostic view of an AssessmentLO or a LOPO.
type Mapping struct {
	Kind        Kind
	ID          int
	SourceID    int
	TargetID    int
	Weight      ContributionWeight
	Course      int
	SourceLabel string
	TargetLabel string
	TargetTitle string
	TargetDesc  string
}

func (m Mapping) Percentage() Percentage { return WeightToPercentage(m.Weight) }

func (m Mapping) String() string {
	return fmt.Sprintf("%s#%d (%d -> %d, %.0f%%)", m.Kind, m.ID, m.SourceID, m.TargetID, float64(m.Percentage()))
}

func (a AssessmentLO) Mapping() Mapping {
	return Mapping{
		Kind:        KindAssessmentLO,
		ID:          a.ID,
		SourceID:    a.Assessment,
		TargetID:    a.LearningOutcome,
		Weight:      a.Weight,
		Course:      a.Course,
		SourceLabel: a.AssessmentTitle,
		TargetLabel: a.LOCode,
		TargetTitle: a.LOTitle,
		TargetDesc:  a.LODescription,
	}
}

func (l LOPO) Mapping() Mapping {
	return Mapping{
		Kind:        KindLOPO,
		ID:          l.ID,
		SourceID:    l.LearningOutcome,
		TargetID:    l.ProgramOutcome,
		Weight:      l.Weight,
		Course:      l.Course,
		SourceLabel: l.LOCode,
		TargetLabel: l.POCode,
		TargetTitle: l.POTitle,
		TargetDesc:  l.PODescription,
	}
}

// NewMapping is the create payload of both mapping kinds once converted to a weight.
type NewMapping struct {
	Kind     Kind
	SourceID int
	TargetID int
	Weight   ContributionWeight
}

// Payload returns the wire body for the mapping's kind.
func (nm NewMapping) Payload() map[string]interface{} {
	return map[string]interface{}{
		nm.Kind.SourceField(): nm.SourceID,
		nm.Kind.TargetField(): nm.TargetID,
		"weight":              nm.Weight,
	}
}

// NewLearningOutcome contains information needed to create a LearningOutcome.
type NewLearningOutcome struct {
	Course           int     `json:"course" validate:"required"`
	Code             string  `json:"code" validate:"required,max=20,code"`
	Title            string  `json:"title" validate:"required,notblank,max=200"`
	Description      string  `json:"description"`
	TargetPercentage float64 `json:"target_percentage" validate:"gte=0,lte=100"`
}

func (n *NewLearningOutcome) Validate(validate *validator.Validate) error {
	n.Code = core.CleanString(n.Code)
	n.Title = core.CleanString(n.Title)
	n.Description = core.CleanString(n.Description)
	if n.TargetPercentage == 0 {
		n.TargetPercentage = DefaultTargetPercentage
	}
	return validate.Struct(n)
}

// NewProgramOutcome contains information needed to create a ProgramOutcome.
type NewProgramOutcome struct {
	Department       int     `json:"department" validate:"required"`
	Code             string  `json:"code" validate:"required,max=20,code"`
	Title            string  `json:"title" validate:"required,notblank,max=200"`
	Description      string  `json:"description"`
	TargetPercentage float64 `json:"target_percentage" validate:"gte=0,lte=100"`
}

func (n *NewProgramOutcome) Validate(validate *validator.Validate) error {
	n.Code = core.CleanString(n.Code)
	n.Title = core.CleanString(n.Title)
	n.Description = core.CleanString(n.Description)
	if n.TargetPercentage == 0 {
		n.TargetPercentage = DefaultTargetPercentage
	}
	return validate.Struct(n)
}

// UpdateOutcome defines what may be changed on an existing LO or PO.
type UpdateOutcome struct {
	Code             *string  `json:"code" validate:"omitempty,max=20,code"`
	Title            *string  `json:"title" validate:"omitempty,notblank,max=200"`
	Description      *string  `json:"description"`
	TargetPercentage *float64 `json:"target_percentage" validate:"omitempty,gte=0,lte=100"`
}

func (u *UpdateOutcome) Validate(validate *validator.Validate) error {
	for _, s := range []*string{u.Code, u.Title, u.Description} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	if u.TargetPercentage != nil && *u.TargetPercentage == 0 {
		target := DefaultTargetPercentage
		u.TargetPercentage = &target
	}
	return validate.Struct(u)
}

// NewAssessmentLO is the create payload of an Assessment->LO mapping.
type NewAssessmentLO struct {
	Assessment      int                `json:"assessment" validate:"required"`
	LearningOutcome int                `json:"learning_outcome" validate:"required"`
	Weight          ContributionWeight `json:"weight" validate:"required,gte=0.01,lte=10"`
}

func (n *NewAssessmentLO) Validate(validate *validator.Validate) error { return validate.Struct(n) }

// NewLOPO is the create payload of a LO->PO mapping.
type NewLOPO struct {
	LearningOutcome int                `json:"learning_outcome" validate:"required"`
	ProgramOutcome  int                `json:"program_outcome" validate:"required"`
	Weight          ContributionWeight `json:"weight" validate:"required,gte=0.01,lte=10"`
}

func (n *NewLOPO) Validate(validate *validator.Validate) error { return validate.Struct(n) }

// UpdateMappingWeight is the update payload of both mapping kinds; only the weight may change.
type UpdateMappingWeight struct {
	Weight ContributionWeight `json:"weight" validate:"required,gte=0.01,lte=10"`
}

func (u *UpdateMappingWeight) Validate(validate *validator.Validate) error {
	return validate.Struct(u)
}

const DefaultTargetPercentage = 60.0
