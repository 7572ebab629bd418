package assessment

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core"
)

// FeedbackRange attaches a feedback text to a band of score percentages, bounds inclusive.
type FeedbackRange struct {
	MinScore float64 `json:"min_score" validate:"gte=0,lte=100"`
	MaxScore float64 `json:"max_score" validate:"gte=0,lte=100,gtefield=MinScore"`
	Feedback string  `json:"feedback" validate:"required,notblank"`
}

func (fr FeedbackRange) Contains(pct float64) bool {
	return fr.MinScore <= pct && pct <= fr.MaxScore
}

// FeedbackRanges are scanned in order; ranges may overlap or leave gaps.
type FeedbackRanges []FeedbackRange

// Resolve returns the feedback of the first range containing pct.
func (frs FeedbackRanges) Resolve(pct float64) (string, bool) {
	return ResolveFeedback(frs, pct)
}

func (frs FeedbackRanges) clean() {
	for i := range frs {
		frs[i].Feedback = core.CleanString(frs[i].Feedback)
	}
}

// Value stores the ranges as a JSON array.
func (frs FeedbackRanges) Value() (driver.Value, error) {
	if frs == nil {
		return "[]", nil
	}
	b, err := json.Marshal(frs)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (frs *FeedbackRanges) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*frs = FeedbackRanges{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("feedback ranges: cannot scan %T", src)
	}
	if len(data) == 0 {
		*frs = FeedbackRanges{}
		return nil
	}
	return json.Unmarshal(data, frs)
}

// ResolveFeedback returns the feedback of the first range, in scan order, whose
// bounds contain pct. ok is false when no range matches.
func ResolveFeedback(ranges []FeedbackRange, pct float64) (feedback string, ok bool) {
	for _, fr := range ranges {
		if fr.Contains(pct) {
			return fr.Feedback, true
		}
	}
	return "", false
}

// ScorePercentage converts a raw score into a percentage of maxScore.
func ScorePercentage(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	return score / maxScore * 100
}
