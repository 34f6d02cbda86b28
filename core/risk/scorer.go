package risk

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Features are the inputs of a risk Scorer.
type Features struct {
	Current        float64
	Trend          float64
	DaysLeft       float64
	RecentAbsences float64
}

func (f Features) vector() []float64 {
	return []float64{f.Current, f.Trend, f.DaysLeft, f.RecentAbsences}
}

// Scorer returns a risk probability in [0, 1].
// Implementations must not increase the score when Current or Trend rise,
// nor decrease it when RecentAbsences rise.
type Scorer interface {
	Score(f Features) float64
}

// ScorerFunc adapts an ordinary function to a Scorer.
type ScorerFunc func(f Features) float64

func (fn ScorerFunc) Score(f Features) float64 { return fn(f) }

const (
	trainingSamples = 2000
	l2Penalty       = 1.0
	nFeatures       = 4

	gradientThreshold  = 1e-6
	acceptableGradient = 1e-2
)

// monotonic constraints on the weights of the features, in Features.vector order: -1 (<= 0), 0 (free), 1 (>= 0)
var weightSigns = [nFeatures]float64{-1, -1, 0, 1}

// LogisticScorer is a logistic regression over standardized Features.
type LogisticScorer struct {
	mean    [nFeatures]float64
	std     [nFeatures]float64
	weights [nFeatures]float64
	bias    float64

	// Accuracy is the share of training samples correctly classified.
	Accuracy float64
}

var _ Scorer = (*LogisticScorer)(nil)

func (s *LogisticScorer) Score(f Features) float64 {
	z := s.bias
	for i, x := range f.vector() {
		z += s.weights[i] * (x - s.mean[i]) / s.std[i]
	}
	return sigmoid(z)
}

// TrainLogistic fits a LogisticScorer on synthetic attendance histories generated from `seed`.
func TrainLogistic(seed uint64) (*LogisticScorer, error) {
	X, y := syntheticRiskData(seed, trainingSamples)

	s := new(LogisticScorer)
	cols := make([][]float64, nFeatures)
	for j := range cols {
		cols[j] = make([]float64, len(X))
		for i, row := range X {
			cols[j][i] = row[j]
		}
		s.mean[j], s.std[j] = stat.MeanStdDev(cols[j], nil)
		if s.std[j] == 0 {
			s.std[j] = 1
		}
	}
	Z := make([][]float64, len(X))
	for i, row := range X {
		Z[i] = make([]float64, nFeatures)
		for j, x := range row {
			Z[i][j] = (x - s.mean[j]) / s.std[j]
		}
	}

	problem := optimize.Problem{
		Func: func(params []float64) float64 {
			w, b := params[:nFeatures], params[nFeatures]
			var loss float64
			for i, z := range Z {
				t := floats.Dot(w, z) + b
				loss += softplus(t) - y[i]*t
			}
			return loss + l2Penalty/2*floats.Dot(w, w)
		},
		Grad: func(grad, params []float64) {
			w, b := params[:nFeatures], params[nFeatures]
			for j := range grad {
				grad[j] = 0
			}
			for i, z := range Z {
				diff := sigmoid(floats.Dot(w, z)+b) - y[i]
				floats.AddScaled(grad[:nFeatures], diff, z)
				grad[nFeatures] += diff
			}
			floats.AddScaled(grad[:nFeatures], l2Penalty, w)
		},
	}

	settings := &optimize.Settings{GradientThreshold: gradientThreshold}
	result, err := optimize.Minimize(problem, make([]float64, nFeatures+1), settings, &optimize.LBFGS{})
	if err != nil {
		// the line search gives up once the loss is flat, the optimum is still usable then
		if result == nil || result.Gradient == nil || floats.Norm(result.Gradient, math.Inf(1)) > acceptableGradient {
			return nil, errors.Wrap(err, "fitting logistic regression")
		}
	}

	for j := 0; j < nFeatures; j++ {
		w := result.X[j]
		switch {
		case weightSigns[j] < 0 && w > 0, weightSigns[j] > 0 && w < 0:
			w = 0
		}
		s.weights[j] = w
	}
	s.bias = result.X[nFeatures]

	var correct int
	for i, row := range X {
		f := Features{Current: row[0], Trend: row[1], DaysLeft: row[2], RecentAbsences: row[3]}
		if (s.Score(f) >= 0.5) == (y[i] == 1) {
			correct++
		}
	}
	s.Accuracy = float64(correct) / float64(len(X))
	return s, nil
}

// syntheticRiskData generates attendance histories labelled as at risk (1) or not (0).
func syntheticRiskData(seed uint64, n int) ([][]float64, []float64) {
	src := rand.NewSource(seed)
	rnd := rand.New(src)
	attendance := distuv.Beta{Alpha: 7, Beta: 2, Src: src}
	trend := distuv.Normal{Mu: 0, Sigma: 3, Src: src}
	absences := distuv.Poisson{Lambda: 2, Src: src}

	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		current := attendance.Rand() * 100
		tr := trend.Rand()
		daysLeft := float64(rnd.Intn(85) + 5)
		abs := absences.Rand()

		projected := current + tr*(daysLeft/30)
		switch {
		case projected < 70,
			projected < 75 && tr < -1,
			current < 75 && abs > 3:
			y[i] = 1
		}
		X[i] = []float64{current, tr, daysLeft, abs}
	}
	return X, y
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// softplus is log(1 + e^z), computed without overflow.
func softplus(z float64) float64 {
	return math.Max(z, 0) + math.Log1p(math.Exp(-math.Abs(z)))
}
