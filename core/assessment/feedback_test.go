package assessment

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-obe/core"
)

func TestResolveFeedback(t *testing.T) {
	ranges := FeedbackRanges{
		{MinScore: 90, MaxScore: 100, Feedback: "A"},
		{MinScore: 80, MaxScore: 89, Feedback: "B"},
		{MinScore: 0, MaxScore: 79, Feedback: "C"},
	}
	overlapping := FeedbackRanges{
		{MinScore: 50, MaxScore: 100, Feedback: "pass"},
		{MinScore: 70, MaxScore: 100, Feedback: "good"},
	}

	tests := []struct {
		name   string
		ranges FeedbackRanges
		pct    float64
		want   string
		wantOk bool
	}{
		{name: "middle band", ranges: ranges, pct: 85, want: "B", wantOk: true},
		{name: "lower bound inclusive", ranges: ranges, pct: 90, want: "A", wantOk: true},
		{name: "upper bound inclusive", ranges: ranges, pct: 79, want: "C", wantOk: true},
		{name: "gap", ranges: ranges, pct: 89.5, wantOk: false},
		{name: "first match wins", ranges: overlapping, pct: 80, want: "pass", wantOk: true},
		{name: "no ranges", ranges: nil, pct: 50, wantOk: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.ranges.Resolve(tt.pct)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOk, ok)
		})
	}
}

func TestAssessment_Feedback(t *testing.T) {
	a := Assessment{
		MaxScore: 40,
		FeedbackRanges: FeedbackRanges{
			{MinScore: 50, MaxScore: 100, Feedback: "pass"},
			{MinScore: 0, MaxScore: 49.99, Feedback: "fail"},
		},
	}
	fb, ok := a.Feedback(20)
	assert.True(t, ok)
	assert.Equal(t, "pass", fb)

	fb, _ = a.Feedback(19)
	assert.Equal(t, "fail", fb)

	assert.Equal(t, 0.0, ScorePercentage(10, 0))
}

func TestFeedbackRanges_ScanValue(t *testing.T) {
	frs := FeedbackRanges{{MinScore: 0, MaxScore: 100, Feedback: "ok"}}
	v, err := frs.Value()
	require.NoError(t, err)

	var got FeedbackRanges
	require.NoError(t, got.Scan(v))
	assert.Equal(t, frs, got)

	require.NoError(t, got.Scan(nil))
	assert.Equal(t, FeedbackRanges{}, got)

	v, err = FeedbackRanges(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	assert.Error(t, got.Scan(42))
}

func TestNewAssessment_Validate(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	tests := []struct {
		name       string
		data       NewAssessment
		wantFields map[string]string
	}{
		{
			name: "valid",
			data: NewAssessment{Course: 1, Title: " Midterm ", Type: TypeMidterm, MaxScore: 50, Weight: 30},
		},
		{
			name: "defaults type",
			data: NewAssessment{Course: 1, Title: "Essay", MaxScore: 20, Weight: 10},
		},
		{
			name: "invalid fields",
			data: NewAssessment{Title: " ", Type: "party", MaxScore: 0, Weight: 101},
			wantFields: map[string]string{
				"course":          "this field is required",
				"title":           "this field is required",
				"assessment_type": typeText,
				"max_score":       "this field is required",
				"weight":          "weight must be 100 or less",
			},
		},
		{
			name: "invalid feedback range",
			data: NewAssessment{
				Course: 1, Title: "Quiz", Type: TypeQuiz, MaxScore: 10,
				FeedbackRanges: FeedbackRanges{{MinScore: 80, MaxScore: 70, Feedback: "B"}},
			},
			wantFields: map[string]string{
				"max_score": "max_score must be greater than or equal to MinScore",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := core.TranslateValidation(tt.data.Validate(validate), translator)
			if tt.wantFields == nil {
				require.NoError(t, err)
				return
			}
			var vErr *core.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantFields, vErr.FieldMap())
		})
	}
}
