package outcome

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentageRoundTrip(t *testing.T) {
	for p := 1; p <= 100; p++ {
		w, err := PercentageToWeight(Percentage(p))
		require.NoErrorf(t, err, "PercentageToWeight(%d)", p)
		assert.Truef(t, w.Valid(), "PercentageToWeight(%d) = %v, not a valid weight", p, w)
		if got := WeightToPercentage(w); got != Percentage(p) {
			t.Errorf("WeightToPercentage(PercentageToWeight(%d)) = %v", p, got)
		}
	}
}

func TestPercentageToWeight(t *testing.T) {
	tests := []struct {
		name    string
		p       Percentage
		want    ContributionWeight
		wantErr error
	}{
		{name: "min", p: 1, want: 0.1},
		{name: "default assessment-lo", p: 10, want: 1},
		{name: "default lo-po", p: 50, want: 5},
		{name: "max", p: 100, want: 10},
		{name: "fractional", p: 33.3, want: 3.33},
		{name: "zero", p: 0, wantErr: ErrPercentageOutOfRange},
		{name: "negative", p: -5, wantErr: ErrPercentageOutOfRange},
		{name: "above max", p: 101, wantErr: ErrPercentageOutOfRange},
		{name: "NaN", p: Percentage(math.NaN()), wantErr: ErrPercentageOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PercentageToWeight(tt.p)
			if err != tt.wantErr {
				t.Fatalf("PercentageToWeight() error = %v, wantErr %v", err, tt.wantErr)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWeightToPercentage(t *testing.T) {
	tests := []struct {
		name string
		w    ContributionWeight
		want Percentage
	}{
		{name: "min weight", w: 0.01, want: 0},
		{name: "half rounds up", w: 0.05, want: 1},
		{name: "below half rounds down", w: 0.04, want: 0},
		{name: "x.5 rounds away from zero", w: 2.25, want: 23},
		{name: "another x.5", w: 2.45, want: 25},
		{name: "whole", w: 7, want: 70},
		{name: "max", w: 10, want: 100},
		{name: "infinite", w: ContributionWeight(math.Inf(1)), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WeightToPercentage(tt.w))
		})
	}
}

func TestResolvePercentage(t *testing.T) {
	tests := []struct {
		name      string
		kind      Kind
		input     float64
		want      Percentage
		wantReset bool
		wantErr   error
	}{
		{name: "zero resets assessment-lo", kind: KindAssessmentLO, input: 0, want: 10, wantReset: true},
		{name: "zero resets lo-po", kind: KindLOPO, input: 0, want: 50, wantReset: true},
		{name: "in range", kind: KindLOPO, input: 35, want: 35},
		{name: "bounds are inclusive", kind: KindAssessmentLO, input: 100, want: 100},
		{name: "below one", kind: KindAssessmentLO, input: 0.5, wantErr: ErrPercentageOutOfRange},
		{name: "negative", kind: KindAssessmentLO, input: -1, wantErr: ErrPercentageOutOfRange},
		{name: "above max", kind: KindLOPO, input: 101, wantErr: ErrPercentageOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reset, err := ResolvePercentage(tt.kind, tt.input)
			if err != tt.wantErr {
				t.Fatalf("ResolvePercentage() error = %v, wantErr %v", err, tt.wantErr)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantReset, reset)
		})
	}
}

func TestContributionWeight_Valid(t *testing.T) {
	assert.True(t, MinWeight.Valid())
	assert.True(t, MaxWeight.Valid())
	assert.False(t, ContributionWeight(0.009).Valid())
	assert.False(t, ContributionWeight(10.01).Valid())
	assert.False(t, ContributionWeight(0).Valid())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Assessment-LO ")
	require.NoError(t, err)
	assert.Equal(t, KindAssessmentLO, k)
	assert.Equal(t, "assessment-los", k.Resource())
	assert.Equal(t, "assessment", k.SourceField())
	assert.Equal(t, "learning_outcome", k.TargetField())

	k, err = ParseKind("lo-po")
	require.NoError(t, err)
	assert.Equal(t, "lo-pos", k.Resource())
	assert.Equal(t, "learning_outcome", k.SourceField())
	assert.Equal(t, "program_outcome", k.TargetField())

	_, err = ParseKind("po-lo")
	assert.Error(t, err)
}
