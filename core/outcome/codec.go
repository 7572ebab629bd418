package outcome

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Percentage is the teacher-facing contribution of a mapping, 1..100.
type Percentage float64

// ContributionWeight is the stored/wire contribution of a mapping, 0.01..10.
// It is unrelated to an assessment's share of the course grade.
type ContributionWeight float64

const (
	MinPercentage Percentage = 1
	MaxPercentage Percentage = 100

	MinWeight ContributionWeight = 0.01
	MaxWeight ContributionWeight = 10
)

var (
	ErrPercentageOutOfRange = errors.New("contribution must be between 1% and 100%")
	ErrWeightOutOfRange     = errors.New("contribution weight must be between 0.01 and 10")

	hundred     = decimal.NewFromInt(100)
	weightScale = decimal.NewFromInt(int64(MaxWeight))
)

func (p Percentage) Valid() bool { return p >= MinPercentage && p <= MaxPercentage }

func (w ContributionWeight) Valid() bool { return w >= MinWeight && w <= MaxWeight }

// PercentageToWeight converts a contribution percentage into its wire weight: (p/100)*10.
// Out of range percentages are rejected, never clamped.
func PercentageToWeight(p Percentage) (ContributionWeight, error) {
	if !p.Valid() {
		return 0, ErrPercentageOutOfRange
	}
	w, _ := decimal.NewFromFloat(float64(p)).Div(hundred).Mul(weightScale).Float64()
	return ContributionWeight(w), nil
}

// WeightToPercentage converts a wire weight into a whole display percentage,
// rounding half away from zero.
func WeightToPercentage(w ContributionWeight) Percentage {
	f := float64(w)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	p := decimal.NewFromFloat(f).Div(weightScale).Mul(hundred).Round(0)
	return Percentage(p.IntPart())
}

// ResolvePercentage applies the input policy of the mapping forms:
// 0 (an emptied field) falls back to the kind's default and reports the reset,
// anything else outside 1..100 is a validation error.
func ResolvePercentage(kind Kind, input float64) (p Percentage, reset bool, err error) {
	if input == 0 {
		return kind.DefaultPercentage(), true, nil
	}
	p = Percentage(input)
	if !p.Valid() {
		return 0, false, ErrPercentageOutOfRange
	}
	return p, false, nil
}

// Kind identifies one of the two mapping families.
type Kind string

const (
	KindAssessmentLO Kind = "assessment-lo"
	KindLOPO         Kind = "lo-po"
)

var Kinds = []Kind{KindAssessmentLO, KindLOPO}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown mapping kind %q (want %q or %q)", s, KindAssessmentLO, KindLOPO)
	}
	return k, nil
}

func (k Kind) Valid() bool { return k == KindAssessmentLO || k == KindLOPO }

func (k Kind) String() string { return string(k) }

// DefaultPercentage is the contribution preselected for new mappings.
func (k Kind) DefaultPercentage() Percentage {
	if k == KindLOPO {
		return 50
	}
	return 10
}

// Resource is the REST collection serving this kind.
func (k Kind) Resource() string {
	if k == KindLOPO {
		return "lo-pos"
	}
	return "assessment-los"
}

func (k Kind) SourceField() string {
	if k == KindLOPO {
		return "learning_outcome"
	}
	return "assessment"
}

func (k Kind) TargetField() string {
	if k == KindLOPO {
		return "program_outcome"
	}
	return "learning_outcome"
}
