// Package study recommends study time per subject and predicts final grades.
package study

import (
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/trezcool/mahudhurio/core/attendance"
)

const (
	optimizerSamples = 3000
	ridgeAlpha       = 1.0

	defaultAttendance = 75.0 // assumed when no class was recorded
	defaultDifficulty = 5.0
	minHours          = 1.0
	maxHours          = 25.0
)

// Priority of a subject in the study plan.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Color returns the UI severity of the Priority.
func (p Priority) Color() string {
	switch p {
	case PriorityHigh:
		return "danger"
	case PriorityMedium:
		return "warning"
	default:
		return "success"
	}
}

// Session is a logged study session.
type Session struct {
	Subject  attendance.SubjectID `json:"subject"`
	Duration float64              `json:"duration"` // minutes
}

type Insight struct {
	Type string `json:"type"`
	Icon string `json:"icon"`
	Text string `json:"text"`
}

// SubjectPlan is the study recommendation for one subject.
type SubjectPlan struct {
	SubjectID        attendance.SubjectID
	SubjectName      string
	Difficulty       float64 // 1..10
	GradeEstimate    float64
	Attendance       float64 // percentage
	StudiedHours     float64
	RecommendedHours float64 // until the exam
	WeeklyHours      float64
	DailyHours       float64
	Priority         Priority
	Insights         []Insight
}

// Optimizer recommends how many hours to study each subject before an exam.
type Optimizer struct {
	model *ridge
}

// NewOptimizer trains an Optimizer on synthetic student histories generated from `seed`.
func NewOptimizer(seed uint64) (*Optimizer, error) {
	X, y := syntheticStudyData(seed, optimizerSamples)
	model, err := fitRidge(X, y, ridgeAlpha)
	if err != nil {
		return nil, errors.Wrap(err, "training study optimizer")
	}
	return &Optimizer{model: model}, nil
}

// R2 returns the coefficient of determination of the model on its training set.
func (o *Optimizer) R2() float64 { return o.model.r2 }

// RecommendedHours predicts the total study hours needed before the exam, within [1, 25].
func (o *Optimizer) RecommendedHours(difficulty, grade float64, daysToExam int, attendancePct float64) float64 {
	h := o.model.predict([]float64{difficulty, grade, float64(daysToExam), attendancePct})
	return clamp(h, minHours, maxHours)
}

// Plan builds the study plan of every subject, highest priority first.
func (o *Optimizer) Plan(subjects []attendance.Subject, tallies attendance.Tallies, sessions []Session, daysToExam int) ([]SubjectPlan, error) {
	if daysToExam <= 0 {
		return nil, errors.Errorf("days to exam must be positive, got %d", daysToExam)
	}

	minutes := make(map[attendance.SubjectID]float64)
	for _, s := range sessions {
		minutes[s.Subject] += s.Duration
	}

	plans := make([]SubjectPlan, 0, len(subjects))
	for _, subj := range subjects {
		tally := tallies[string(subj.ID)]
		att := defaultAttendance
		if tally.Total > 0 {
			att = tally.Percentage()
		}
		studied := minutes[subj.ID] / 60
		grade := att*0.4 + 50

		difficulty := defaultDifficulty
		if studied > 0 {
			difficulty = clamp(studied/math.Max(1, float64(tally.Total))*5, 1, 10)
		}

		recommended := o.RecommendedHours(difficulty, grade, daysToExam, att)
		daily := recommended / float64(daysToExam)

		var priority Priority
		switch {
		case att < 75 || grade < 60:
			priority = PriorityHigh
		case att < 85 || grade < 75:
			priority = PriorityMedium
		default:
			priority = PriorityLow
		}

		plans = append(plans, SubjectPlan{
			SubjectID:        subj.ID,
			SubjectName:      subj.Name,
			Difficulty:       difficulty,
			GradeEstimate:    grade,
			Attendance:       att,
			StudiedHours:     studied,
			RecommendedHours: recommended,
			WeeklyHours:      daily * 7,
			DailyHours:       daily,
			Priority:         priority,
			Insights:         insights(difficulty, grade, att, studied, recommended),
		})
	}

	sort.SliceStable(plans, func(i, j int) bool { return plans[i].Priority.rank() < plans[j].Priority.rank() })
	return plans, nil
}

func insights(difficulty, grade, att, studied, recommended float64) []Insight {
	var out []Insight
	if studied < recommended*0.5 {
		out = append(out, Insight{
			Type: "warning",
			Icon: "clock-history",
			Text: fmt.Sprintf("Significantly under-studied. Increase study time by %.1f hours", recommended-studied),
		})
	}
	if att < 75 {
		out = append(out, Insight{
			Type: "danger",
			Icon: "exclamation-triangle",
			Text: "Low attendance detected. Attend classes regularly to reduce study burden",
		})
	}
	if difficulty > 7 {
		out = append(out, Insight{Type: "info", Icon: "book", Text: "High difficulty subject. Consider group study or tutoring"})
	}
	switch {
	case grade < 60:
		out = append(out, Insight{Type: "danger", Icon: "graph-down", Text: "Critical: Immediate intensive study required"})
	case grade >= 85:
		out = append(out, Insight{Type: "success", Icon: "trophy", Text: "Excellent performance! Maintain current study routine"})
	}
	if len(out) == 0 {
		out = append(out, Insight{Type: "success", Icon: "check-circle", Text: "On track. Continue with recommended study plan"})
	}
	return out
}

// syntheticStudyData generates (difficulty, grade, days to exam, attendance) samples and the hours they need.
func syntheticStudyData(seed uint64, n int) ([][]float64, []float64) {
	src := rand.NewSource(seed)
	difficulties := []float64{3, 4, 5, 6, 7, 8}
	pickDifficulty := distuv.NewCategorical([]float64{0.1, 0.2, 0.3, 0.2, 0.15, 0.05}, src)
	grades := distuv.Beta{Alpha: 6, Beta: 2, Src: src}
	days := distuv.Gamma{Alpha: 3, Beta: 0.1, Src: src}
	attendances := distuv.Beta{Alpha: 8, Beta: 2, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: 0.5, Src: src}

	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		difficulty := difficulties[int(pickDifficulty.Rand())]
		grade := grades.Rand()*60 + 40
		daysToExam := clamp(days.Rand(), 1, 90)
		att := attendances.Rand() * 100

		hours := difficulty*0.6 +
			math.Max(0, (85-grade)/15) +
			clamp(40/daysToExam, 0.5, 3) +
			math.Max(0, (85-att)/40)
		hours = clamp(hours, 2, maxHours)
		hours = clamp(hours+noise.Rand(), minHours, maxHours)

		X[i] = []float64{difficulty, grade, daysToExam, att}
		y[i] = hours
	}
	return X, y
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
