package outcome

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core"
)

type (
	Repository interface {
		CreateLearningOutcome(ctx context.Context, lo LearningOutcome) (LearningOutcome, error)
		GetLearningOutcome(ctx context.Context, id int) (LearningOutcome, error)
		QueryLearningOutcomes(ctx context.Context, courseID int) ([]LearningOutcome, error)
		UpdateLearningOutcome(ctx context.Context, lo LearningOutcome) (LearningOutcome, error)
		DeleteLearningOutcome(ctx context.Context, id int) error

		CreateProgramOutcome(ctx context.Context, po ProgramOutcome) (ProgramOutcome, error)
		GetProgramOutcome(ctx context.Context, id int) (ProgramOutcome, error)
		QueryProgramOutcomes(ctx context.Context, departmentID int) ([]ProgramOutcome, error)
		UpdateProgramOutcome(ctx context.Context, po ProgramOutcome) (ProgramOutcome, error)
		DeleteProgramOutcome(ctx context.Context, id int) error

		// CreateAssessmentLO returns ErrMappingExists when the pair is already mapped.
		CreateAssessmentLO(ctx context.Context, m AssessmentLO) (AssessmentLO, error)
		GetAssessmentLO(ctx context.Context, id int) (AssessmentLO, error)
		QueryAssessmentLOs(ctx context.Context, courseID int) ([]AssessmentLO, error)
		UpdateAssessmentLOWeight(ctx context.Context, id int, w ContributionWeight) (AssessmentLO, error)
		DeleteAssessmentLO(ctx context.Context, id int) error

		// CreateLOPO returns ErrMappingExists when the pair is already mapped.
		CreateLOPO(ctx context.Context, m LOPO) (LOPO, error)
		GetLOPO(ctx context.Context, id int) (LOPO, error)
		QueryLOPOs(ctx context.Context, courseID int) ([]LOPO, error)
		UpdateLOPOWeight(ctx context.Context, id int, w ContributionWeight) (LOPO, error)
		DeleteLOPO(ctx context.Context, id int) error

		// AssessmentCourse returns the course an assessment belongs to.
		AssessmentCourse(ctx context.Context, assessmentID int) (int, error)
		// CourseDepartment returns the department a course belongs to.
		CourseDepartment(ctx context.Context, courseID int) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func invalidPK(field string, id int) error {
	return core.NewValidationError(nil, core.FieldError{
		Field: field,
		Error: fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id),
	})
}

// Learning outcomes

func (svc *Service) CreateLearningOutcome(ctx context.Context, nlo NewLearningOutcome) (LearningOutcome, error) {
	if _, err := svc.repo.CourseDepartment(ctx, nlo.Course); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return LearningOutcome{}, invalidPK("course", nlo.Course)
		}
		return LearningOutcome{}, errors.Wrap(err, "finding course")
	}
	return svc.repo.CreateLearningOutcome(ctx, LearningOutcome{
		Course:           nlo.Course,
		Code:             nlo.Code,
		Title:            nlo.Title,
		Description:      nlo.Description,
		TargetPercentage: nlo.TargetPercentage,
	})
}

func (svc *Service) GetLearningOutcome(ctx context.Context, id int) (LearningOutcome, error) {
	return svc.repo.GetLearningOutcome(ctx, id)
}

func (svc *Service) QueryLearningOutcomes(ctx context.Context, courseID int) ([]LearningOutcome, error) {
	return svc.repo.QueryLearningOutcomes(ctx, courseID)
}

func (svc *Service) UpdateLearningOutcome(ctx context.Context, id int, uo UpdateOutcome) (LearningOutcome, error) {
	lo, err := svc.repo.GetLearningOutcome(ctx, id)
	if err != nil {
		return LearningOutcome{}, err
	}
	uo.apply(&lo.Code, &lo.Title, &lo.Description, &lo.TargetPercentage)
	return svc.repo.UpdateLearningOutcome(ctx, lo)
}

func (svc *Service) DeleteLearningOutcome(ctx context.Context, id int) error {
	return svc.repo.DeleteLearningOutcome(ctx, id)
}

// Program outcomes

func (svc *Service) CreateProgramOutcome(ctx context.Context, npo NewProgramOutcome) (ProgramOutcome, error) {
	return svc.repo.CreateProgramOutcome(ctx, ProgramOutcome{
		Department:       npo.Department,
		Code:             npo.Code,
		Title:            npo.Title,
		Description:      npo.Description,
		TargetPercentage: npo.TargetPercentage,
	})
}

func (svc *Service) GetProgramOutcome(ctx context.Context, id int) (ProgramOutcome, error) {
	return svc.repo.GetProgramOutcome(ctx, id)
}

func (svc *Service) QueryProgramOutcomes(ctx context.Context, departmentID int) ([]ProgramOutcome, error) {
	return svc.repo.QueryProgramOutcomes(ctx, departmentID)
}

func (svc *Service) UpdateProgramOutcome(ctx context.Context, id int, uo UpdateOutcome) (ProgramOutcome, error) {
	po, err := svc.repo.GetProgramOutcome(ctx, id)
	if err != nil {
		return ProgramOutcome{}, err
	}
	uo.apply(&po.Code, &po.Title, &po.Description, &po.TargetPercentage)
	return svc.repo.UpdateProgramOutcome(ctx, po)
}

func (svc *Service) DeleteProgramOutcome(ctx context.Context, id int) error {
	return svc.repo.DeleteProgramOutcome(ctx, id)
}

func (uo UpdateOutcome) apply(code, title, desc *string, target *float64) {
	if uo.Code != nil {
		*code = *uo.Code
	}
	if uo.Title != nil {
		*title = *uo.Title
	}
	if uo.Description != nil {
		*desc = *uo.Description
	}
	if uo.TargetPercentage != nil {
		*target = *uo.TargetPercentage
	}
}

// Assessment -> LO mappings

// CreateAssessmentLO maps an assessment to a learning outcome of the same course.
func (svc *Service) CreateAssessmentLO(ctx context.Context, nm NewAssessmentLO) (AssessmentLO, error) {
	course, err := svc.repo.AssessmentCourse(ctx, nm.Assessment)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return AssessmentLO{}, invalidPK("assessment", nm.Assessment)
		}
		return AssessmentLO{}, errors.Wrap(err, "finding assessment")
	}
	lo, err := svc.repo.GetLearningOutcome(ctx, nm.LearningOutcome)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return AssessmentLO{}, invalidPK("learning_outcome", nm.LearningOutcome)
		}
		return AssessmentLO{}, errors.Wrap(err, "finding learning outcome")
	}
	if lo.Course != course {
		return AssessmentLO{}, core.NewValidationError(nil, core.FieldError{
			Field: "learning_outcome",
			Error: "the learning outcome does not belong to the assessment's course",
		})
	}
	return svc.repo.CreateAssessmentLO(ctx, AssessmentLO{
		Assessment:      nm.Assessment,
		LearningOutcome: nm.LearningOutcome,
		Weight:          nm.Weight,
	})
}

func (svc *Service) GetAssessmentLO(ctx context.Context, id int) (AssessmentLO, error) {
	return svc.repo.GetAssessmentLO(ctx, id)
}

func (svc *Service) QueryAssessmentLOs(ctx context.Context, courseID int) ([]AssessmentLO, error) {
	return svc.repo.QueryAssessmentLOs(ctx, courseID)
}

func (svc *Service) UpdateAssessmentLO(ctx context.Context, id int, um UpdateMappingWeight) (AssessmentLO, error) {
	return svc.repo.UpdateAssessmentLOWeight(ctx, id, um.Weight)
}

func (svc *Service) DeleteAssessmentLO(ctx context.Context, id int) error {
	return svc.repo.DeleteAssessmentLO(ctx, id)
}

// LO -> PO mappings

// CreateLOPO maps a learning outcome to a program outcome of the course's department.
func (svc *Service) CreateLOPO(ctx context.Context, nm NewLOPO) (LOPO, error) {
	lo, err := svc.repo.GetLearningOutcome(ctx, nm.LearningOutcome)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return LOPO{}, invalidPK("learning_outcome", nm.LearningOutcome)
		}
		return LOPO{}, errors.Wrap(err, "finding learning outcome")
	}
	po, err := svc.repo.GetProgramOutcome(ctx, nm.ProgramOutcome)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return LOPO{}, invalidPK("program_outcome", nm.ProgramOutcome)
		}
		return LOPO{}, errors.Wrap(err, "finding program outcome")
	}
	dept, err := svc.repo.CourseDepartment(ctx, lo.Course)
	if err != nil {
		return LOPO{}, errors.Wrap(err, "finding course department")
	}
	if po.Department != dept {
		return LOPO{}, core.NewValidationError(nil, core.FieldError{
			Field: "program_outcome",
			Error: "the program outcome does not belong to the course's department",
		})
	}
	return svc.repo.CreateLOPO(ctx, LOPO{
		LearningOutcome: nm.LearningOutcome,
		ProgramOutcome:  nm.ProgramOutcome,
		Weight:          nm.Weight,
	})
}

func (svc *Service) GetLOPO(ctx context.Context, id int) (LOPO, error) {
	return svc.repo.GetLOPO(ctx, id)
}

func (svc *Service) QueryLOPOs(ctx context.Context, courseID int) ([]LOPO, error) {
	return svc.repo.QueryLOPOs(ctx, courseID)
}

func (svc *Service) UpdateLOPO(ctx context.Context, id int, um UpdateMappingWeight) (LOPO, error) {
	return svc.repo.UpdateLOPOWeight(ctx, id, um.Weight)
}

func (svc *Service) DeleteLOPO(ctx context.Context, id int) error {
	return svc.repo.DeleteLOPO(ctx, id)
}

// CourseMap loads the outcomes and mappings of a course for achievement reports.
func (svc *Service) CourseMap(ctx context.Context, courseID int) (CourseMap, error) {
	dept, err := svc.repo.CourseDepartment(ctx, courseID)
	if err != nil {
		return CourseMap{}, err
	}
	cm := CourseMap{Course: courseID}
	if cm.LearningOutcomes, err = svc.repo.QueryLearningOutcomes(ctx, courseID); err != nil {
		return CourseMap{}, errors.Wrap(err, "querying learning outcomes")
	}
	if cm.ProgramOutcomes, err = svc.repo.QueryProgramOutcomes(ctx, dept); err != nil {
		return CourseMap{}, errors.Wrap(err, "querying program outcomes")
	}
	if cm.AssessmentLOs, err = svc.repo.QueryAssessmentLOs(ctx, courseID); err != nil {
		return CourseMap{}, errors.Wrap(err, "querying assessment-lo mappings")
	}
	if cm.LOPOs, err = svc.repo.QueryLOPOs(ctx, courseID); err != nil {
		return CourseMap{}, errors.Wrap(err, "querying lo-po mappings")
	}
	return cm, nil
}
