package study

import (
	"fmt"
	"math"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	gradeSamples = 2000
	neighbours   = 15

	ridgeWeight = 0.6
	knnWeight   = 0.4

	maxSuggestions = 3
	maxStudyHours  = 25.0 // per week
)

// GradeInput are the current results of a student in a subject.
type GradeInput struct {
	Attendance        float64 `json:"attendance" validate:"min=0,max=100"`
	StudyHoursPerWeek float64 `json:"study_hours_per_week" validate:"min=0,max=40"`
	Midterm           float64 `json:"midterm" validate:"min=0,max=100"`
	Assignment        float64 `json:"assignment" validate:"min=0,max=100"`
	Quiz              float64 `json:"quiz" validate:"min=0,max=100"`
}

func (in GradeInput) vector() []float64 {
	return []float64{in.Attendance, in.StudyHoursPerWeek, in.Midterm, in.Assignment, in.Quiz}
}

type Suggestion struct {
	Area    string  `json:"area"`
	Current float64 `json:"current"`
	Needed  float64 `json:"needed"`
	Impact  float64 `json:"impact"`
}

// Target is what it takes to reach a letter grade.
type Target struct {
	Score        float64      `json:"target_score"`
	PointsNeeded float64      `json:"points_needed"`
	Suggestions  []Suggestion `json:"suggestions"`
}

type GradePrediction struct {
	Score        float64 // 0..100
	Letter       string
	Confidence   float64 // 0..100, lower when the models disagree
	Ridge        float64
	KNN          float64
	Improvements map[string]Target // keyed by "target_<letter>"
}

// GradePredictor predicts final grades with an ensemble of a ridge regression and a k-nearest-neighbours regressor.
type GradePredictor struct {
	model  *ridge
	points [][]float64 // standardized training features
	grades []float64
	k      int
}

// NewGradePredictor trains a GradePredictor on synthetic student results generated from `seed`.
func NewGradePredictor(seed uint64) (*GradePredictor, error) {
	X, y := syntheticGradeData(seed, gradeSamples)
	model, err := fitRidge(X, y, ridgeAlpha)
	if err != nil {
		return nil, errors.Wrap(err, "training grade predictor")
	}
	points := make([][]float64, len(X))
	for i, row := range X {
		points[i] = model.standardize(row)
	}
	return &GradePredictor{model: model, points: points, grades: y, k: neighbours}, nil
}

func (gp *GradePredictor) Predict(in GradeInput) GradePrediction {
	x := in.vector()
	ridgePred := gp.model.predict(x)
	knnPred := gp.knn(gp.model.standardize(x))

	score := clamp(ridgePred*ridgeWeight+knnPred*knnWeight, 0, 100)
	std := math.Abs(ridgePred-knnPred) / 2

	return GradePrediction{
		Score:        score,
		Letter:       Letter(score),
		Confidence:   clamp(100-std*5, 0, 100),
		Ridge:        ridgePred,
		KNN:          knnPred,
		Improvements: improvements(in, score),
	}
}

func (gp *GradePredictor) knn(z []float64) float64 {
	type neighbour struct {
		dist  float64
		grade float64
	}
	nn := make([]neighbour, len(gp.points))
	for i, p := range gp.points {
		nn[i] = neighbour{dist: floats.Distance(z, p, 2), grade: gp.grades[i]}
	}
	sort.Slice(nn, func(a, b int) bool { return nn[a].dist < nn[b].dist })

	k := gp.k
	if k > len(nn) {
		k = len(nn)
	}
	var sum float64
	for _, n := range nn[:k] {
		sum += n.grade
	}
	return sum / float64(k)
}

// Letter converts a score to a letter grade.
func Letter(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// points gained per unit of improvement
const (
	attendanceImpact = 0.15
	studyHoursImpact = 0.10 * 100 / 35
	assignmentImpact = 0.25
)

func improvements(in GradeInput, score float64) map[string]Target {
	out := make(map[string]Target)
	for _, target := range []float64{90, 80, 70, 60} {
		if target <= score {
			continue
		}
		gap := target - score

		var suggestions []Suggestion
		if in.Attendance < 95 {
			if needed := math.Min(100-in.Attendance, gap/attendanceImpact); needed > 0 {
				suggestions = append(suggestions, Suggestion{
					Area:    "attendance",
					Current: in.Attendance,
					Needed:  in.Attendance + needed,
					Impact:  needed * attendanceImpact,
				})
			}
		}
		if in.StudyHoursPerWeek < maxStudyHours {
			if needed := math.Min(maxStudyHours-in.StudyHoursPerWeek, gap/studyHoursImpact); needed > 1 {
				suggestions = append(suggestions, Suggestion{
					Area:    "study_hours",
					Current: in.StudyHoursPerWeek,
					Needed:  in.StudyHoursPerWeek + needed,
					Impact:  needed * studyHoursImpact,
				})
			}
		}
		if in.Assignment < 95 {
			if needed := math.Min(100-in.Assignment, gap/assignmentImpact); needed > 0 {
				suggestions = append(suggestions, Suggestion{
					Area:    "assignments",
					Current: in.Assignment,
					Needed:  in.Assignment + needed,
					Impact:  needed * assignmentImpact,
				})
			}
		}
		if len(suggestions) > maxSuggestions {
			suggestions = suggestions[:maxSuggestions]
		}

		out[fmt.Sprintf("target_%s", Letter(target))] = Target{Score: target, PointsNeeded: gap, Suggestions: suggestions}
	}
	return out
}

// syntheticGradeData generates student results whose final grade is a noisy weighted sum of them.
func syntheticGradeData(seed uint64, n int) ([][]float64, []float64) {
	src := rand.NewSource(seed)
	attendances := distuv.Beta{Alpha: 8, Beta: 2, Src: src}
	hours := distuv.Gamma{Alpha: 3, Beta: 0.5, Src: src}
	noise := distuv.UnitNormal
	noise.Src = src

	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		att := attendances.Rand() * 100
		study := clamp(hours.Rand()*5, 0, 35)
		ratio := study / 35

		midterm := clamp(40+att/100*20+ratio*20+noise.Rand()*8, 0, 100)
		assignment := clamp(50+att/100*25+ratio*15+noise.Rand()*10, 0, 100)
		quiz := clamp(45+att/100*15+ratio*20+noise.Rand()*12, 0, 100)

		final := att*0.15 + midterm*0.35 + assignment*0.25 + quiz*0.15 + ratio*100*0.10
		X[i] = []float64{att, study, midterm, assignment, quiz}
		y[i] = clamp(final+noise.Rand()*5, 0, 100)
	}
	return X, y
}
