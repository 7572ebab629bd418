package outcome

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Achievement is the attainment of one LO or PO.
type Achievement struct {
	Outcome    int     `json:"outcome"`
	Code       string  `json:"code"`
	Title      string  `json:"title"`
	Percentage float64 `json:"percentage"`
	Target     float64 `json:"target_percentage"`
	Met        bool    `json:"met"`
	Graded     bool    `json:"graded"` // false when no mapped assessment carries a grade yet
}

// Report holds the LO and PO achievements of a student, or of a whole course when Student is 0.
type Report struct {
	Course           int           `json:"course"`
	Student          int           `json:"student,omitempty"`
	Students         int           `json:"students,omitempty"`
	LearningOutcomes []Achievement `json:"learning_outcomes"`
	ProgramOutcomes  []Achievement `json:"program_outcomes"`
}

type weightedMean struct {
	sum    decimal.Decimal
	weight decimal.Decimal
}

func (m *weightedMean) add(value float64, w ContributionWeight) {
	dw := decimal.NewFromFloat(float64(w))
	m.sum = m.sum.Add(decimal.NewFromFloat(value).Mul(dw))
	m.weight = m.weight.Add(dw)
}

func (m weightedMean) value() (float64, bool) {
	if !m.weight.IsPositive() {
		return 0, false
	}
	v, _ := m.sum.DivRound(m.weight, 4).Float64()
	return v, true
}

// LOAchievements returns, per learning outcome, the weighted average of the score
// percentages of its mapped assessments. scores maps an assessment id to the
// student's percentage on it; ungraded assessments are left out of the average.
func LOAchievements(scores map[int]float64, mappings []AssessmentLO) map[int]float64 {
	means := make(map[int]*weightedMean)
	for _, m := range mappings {
		pct, ok := scores[m.Assessment]
		if !ok || !m.Weight.Valid() {
			continue
		}
		wm, ok := means[m.LearningOutcome]
		if !ok {
			wm = new(weightedMean)
			means[m.LearningOutcome] = wm
		}
		wm.add(pct, m.Weight)
	}
	return resolve(means)
}

// POAchievements returns, per program outcome, the weighted average of the
// achievements of its mapped learning outcomes.
func POAchievements(loAchievements map[int]float64, mappings []LOPO) map[int]float64 {
	means := make(map[int]*weightedMean)
	for _, m := range mappings {
		ach, ok := loAchievements[m.LearningOutcome]
		if !ok || !m.Weight.Valid() {
			continue
		}
		wm, ok := means[m.ProgramOutcome]
		if !ok {
			wm = new(weightedMean)
			means[m.ProgramOutcome] = wm
		}
		wm.add(ach, m.Weight)
	}
	return resolve(means)
}

func resolve(means map[int]*weightedMean) map[int]float64 {
	res := make(map[int]float64, len(means))
	for id, wm := range means {
		if v, ok := wm.value(); ok {
			res[id] = v
		}
	}
	return res
}

// CourseMap gathers what a course report is computed from.
type CourseMap struct {
	Course           int
	LearningOutcomes []LearningOutcome
	ProgramOutcomes  []ProgramOutcome
	AssessmentLOs    []AssessmentLO
	LOPOs            []LOPO
}

// StudentReport computes the report of one student from their assessment percentages.
func (cm CourseMap) StudentReport(student int, scores map[int]float64) Report {
	loAch := LOAchievements(scores, cm.AssessmentLOs)
	poAch := POAchievements(loAch, cm.LOPOs)
	rep := cm.report(loAch, poAch)
	rep.Student = student
	return rep
}

// CourseReport averages the per-student achievements over the students having data for an outcome.
// perStudent maps a student id to their assessment percentages.
func (cm CourseMap) CourseReport(perStudent map[int]map[int]float64) Report {
	loMeans := make(map[int]*weightedMean)
	poMeans := make(map[int]*weightedMean)
	for _, scores := range perStudent {
		loAch := LOAchievements(scores, cm.AssessmentLOs)
		for id, v := range loAch {
			accumulate(loMeans, id, v)
		}
		for id, v := range POAchievements(loAch, cm.LOPOs) {
			accumulate(poMeans, id, v)
		}
	}
	rep := cm.report(resolve(loMeans), resolve(poMeans))
	rep.Students = len(perStudent)
	return rep
}

func accumulate(means map[int]*weightedMean, id int, v float64) {
	wm, ok := means[id]
	if !ok {
		wm = new(weightedMean)
		means[id] = wm
	}
	wm.add(v, 1)
}

func (cm CourseMap) report(loAch, poAch map[int]float64) Report {
	rep := Report{
		Course:           cm.Course,
		LearningOutcomes: make([]Achievement, 0, len(cm.LearningOutcomes)),
		ProgramOutcomes:  make([]Achievement, 0, len(cm.ProgramOutcomes)),
	}
	for _, lo := range cm.LearningOutcomes {
		rep.LearningOutcomes = append(rep.LearningOutcomes, newAchievement(lo.ID, lo.Code, lo.Title, lo.TargetPercentage, loAch))
	}

	// only the POs reached from this course's LOs are reported
	reached := make(map[int]bool)
	for _, m := range cm.LOPOs {
		reached[m.ProgramOutcome] = true
	}
	for _, po := range cm.ProgramOutcomes {
		if reached[po.ID] {
			rep.ProgramOutcomes = append(rep.ProgramOutcomes, newAchievement(po.ID, po.Code, po.Title, po.TargetPercentage, poAch))
		}
	}
	sort.SliceStable(rep.LearningOutcomes, func(i, j int) bool { return rep.LearningOutcomes[i].Code < rep.LearningOutcomes[j].Code })
	sort.SliceStable(rep.ProgramOutcomes, func(i, j int) bool { return rep.ProgramOutcomes[i].Code < rep.ProgramOutcomes[j].Code })
	return rep
}

func newAchievement(id int, code, title string, target float64, values map[int]float64) Achievement {
	ach := Achievement{Outcome: id, Code: code, Title: title, Target: target}
	if v, ok := values[id]; ok {
		ach.Percentage, _ = decimal.NewFromFloat(v).Round(2).Float64()
		ach.Graded = true
		ach.Met = v >= target
	}
	return ach
}
