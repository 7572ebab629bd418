package assessment

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// GradeWeightPercent is an assessment's share of the course grade, in percent.
// The shares of a course must total exactly 100.
type GradeWeightPercent float64

const (
	WeightTotal     GradeWeightPercent = 100
	WeightTolerance                    = 1e-6
)

var (
	hundred   = decimal.NewFromInt(int64(WeightTotal))
	tolerance = decimal.NewFromFloat(WeightTolerance)

	// ErrGradingBlocked is matched by the *WeightSumError returned by GradingGate.
	ErrGradingBlocked = errors.New("grades cannot be saved until assessment weights total 100%")
)

type WeightState int

const (
	WeightUnder WeightState = iota
	WeightExact
	WeightOver
)

func (s WeightState) String() string {
	switch s {
	case WeightUnder:
		return "under"
	case WeightExact:
		return "exact"
	case WeightOver:
		return "over"
	}
	return fmt.Sprintf("WeightState(%d)", int(s))
}

func (s WeightState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// WeightCheck is the state of a set of assessment weights against the 100% total.
// Deficit and Excess are rounded to one decimal place.
type WeightCheck struct {
	State   WeightState `json:"state"`
	Total   float64     `json:"total"`
	Deficit float64     `json:"deficit,omitempty"`
	Excess  float64     `json:"excess,omitempty"`
}

func (c WeightCheck) Exact() bool { return c.State == WeightExact }

func (c WeightCheck) Message() string {
	switch c.State {
	case WeightUnder:
		return fmt.Sprintf("assessment weights total %.1f%%: %.1f%% short of 100%%", c.Total, c.Deficit)
	case WeightOver:
		return fmt.Sprintf("assessment weights total %.1f%%: %.1f%% over 100%%", c.Total, c.Excess)
	}
	return "assessment weights total 100%"
}

// Err returns a *WeightSumError unless the weights total exactly 100.
func (c WeightCheck) Err() error {
	if c.Exact() {
		return nil
	}
	return &WeightSumError{Check: c}
}

type WeightSumError struct {
	Check WeightCheck
	// Blocking is set when the error stops grade entry.
	Blocking bool
}

func (err *WeightSumError) Error() string {
	if err.Blocking {
		return ErrGradingBlocked.Error() + " (" + err.Check.Message() + ")"
	}
	return err.Check.Message()
}

func (err *WeightSumError) Unwrap() error {
	if err.Blocking {
		return ErrGradingBlocked
	}
	return nil
}

func sum(weights []GradeWeightPercent) decimal.Decimal {
	total := decimal.Zero
	for _, w := range weights {
		total = total.Add(decimal.NewFromFloat(float64(w)))
	}
	return total
}

// CheckWeights classifies the weights of a course as under, exactly at or over 100,
// within a 1e-6 tolerance.
func CheckWeights(weights ...GradeWeightPercent) WeightCheck {
	total := sum(weights)
	diff := total.Sub(hundred)

	check := WeightCheck{}
	check.Total, _ = total.Round(6).Float64()
	switch {
	case diff.Abs().LessThanOrEqual(tolerance):
		check.State = WeightExact
	case diff.IsNegative():
		check.State = WeightUnder
		check.Deficit, _ = diff.Neg().Round(1).Float64()
	default:
		check.State = WeightOver
		check.Excess, _ = diff.Round(1).Float64()
	}
	return check
}

// WhatIf checks the course weights as they would be with candidate added to others.
func WhatIf(others []GradeWeightPercent, candidate GradeWeightPercent) WeightCheck {
	all := make([]GradeWeightPercent, 0, len(others)+1)
	all = append(all, others...)
	return CheckWeights(append(all, candidate)...)
}

// MaxAllowed returns the largest weight that keeps the total at or below 100.
func MaxAllowed(others []GradeWeightPercent) GradeWeightPercent {
	room := hundred.Sub(sum(others))
	if room.IsNegative() {
		return 0
	}
	f, _ := room.Float64()
	return GradeWeightPercent(f)
}

// ClampWeight caps a proposed weight so the course total does not exceed 100.
// clamped reports whether the proposed weight had to be lowered.
func ClampWeight(others []GradeWeightPercent, proposed GradeWeightPercent) (applied GradeWeightPercent, clamped bool) {
	if WhatIf(others, proposed).State != WeightOver {
		return proposed, false
	}
	return MaxAllowed(others), true
}

// ClampMessage describes a clamp to the teacher.
func ClampMessage(applied GradeWeightPercent) string {
	return fmt.Sprintf("weight reduced to the maximum of %.1f%% so the course total stays at 100%%", float64(applied))
}

// GradingGate blocks grade entry unless the weights total exactly 100.
// The returned *WeightSumError matches ErrGradingBlocked.
func GradingGate(weights ...GradeWeightPercent) error {
	check := CheckWeights(weights...)
	if check.Exact() {
		return nil
	}
	return &WeightSumError{Check: check, Blocking: true}
}

// Weights extracts the grade weights of assessments, optionally skipping one of them.
func Weights(assessments []Assessment, excludeID ...int) []GradeWeightPercent {
	var excluded int
	if len(excludeID) > 0 {
		excluded = excludeID[0]
	}
	weights := make([]GradeWeightPercent, 0, len(assessments))
	for _, a := range assessments {
		if excluded != 0 && a.ID == excluded {
			continue
		}
		weights = append(weights, a.Weight)
	}
	return weights
}
