package study

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ridge is an L2-regularized linear regression over standardized features.
type ridge struct {
	mean      []float64
	std       []float64
	coef      []float64
	intercept float64
	r2        float64 // coefficient of determination on the training set
}

func fitRidge(X [][]float64, y []float64, alpha float64) (*ridge, error) {
	n := len(X)
	if n == 0 || n != len(y) {
		return nil, errors.New("fitting ridge: empty or mismatched training set")
	}
	p := len(X[0])

	r := &ridge{mean: make([]float64, p), std: make([]float64, p)}
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		r.mean[j], r.std[j] = stat.MeanStdDev(col, nil)
		if r.std[j] == 0 {
			r.std[j] = 1
		}
	}

	Z := mat.NewDense(n, p, nil)
	for i, row := range X {
		Z.SetRow(i, r.standardize(row))
	}
	r.intercept = stat.Mean(y, nil)
	yc := mat.NewVecDense(n, nil)
	for i, v := range y {
		yc.SetVec(i, v-r.intercept)
	}

	// (ZᵀZ + αI) w = Zᵀy
	gram := mat.NewSymDense(p, nil)
	gram.SymOuterK(1, Z.T())
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(Z.T(), yc)

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return nil, errors.New("fitting ridge: normal equations are not positive definite")
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &rhs); err != nil {
		return nil, errors.Wrap(err, "solving normal equations")
	}
	r.coef = make([]float64, p)
	for j := range r.coef {
		r.coef[j] = w.AtVec(j)
	}

	estimates := make([]float64, n)
	for i, row := range X {
		estimates[i] = r.predict(row)
	}
	r.r2 = stat.RSquaredFrom(estimates, y, nil)
	return r, nil
}

func (r *ridge) standardize(x []float64) []float64 {
	z := make([]float64, len(x))
	for j, v := range x {
		z[j] = (v - r.mean[j]) / r.std[j]
	}
	return z
}

func (r *ridge) predict(x []float64) float64 {
	pred := r.intercept
	for j, z := range r.standardize(x) {
		pred += r.coef[j] * z
	}
	return pred
}
