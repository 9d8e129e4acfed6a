// Package gp implements the online Gaussian-process surrogate used by
// both bandit variants: a nu=1.5 Matern-kernel regressor over a bounded
// sliding window of observations, with per-dimension input
// standardisation and marginal-likelihood hyperparameter refitting on
// every update.
package gp

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// noiseVariance is the additive observation-noise variance (alpha) added
// to the kernel diagonal before factorisation.
const noiseVariance = 1e-2

// restarts is the number of random log-uniform restarts used when
// re-optimising the length-scale on every fit, in addition to a
// warm-started evaluation at the previous length-scale.
const restarts = 5

// stdEpsilon is added to every per-column standard deviation so standardised
// inputs never divide by zero.
const stdEpsilon = 1e-8

// GaussianProcess is an online Matern(nu=1.5) GP regressor with a bounded
// sliding-window memory and output (y) normalisation. It satisfies the
// "GaussianProcess trait" called for in the design notes: fit (Update) and
// predict (Predict), so any other numeric backend can be substituted behind
// the same two methods.
type GaussianProcess struct {
	window      *ring
	lengthScale float64
	rng         *rand.Rand

	dim      int
	xMean    []float64
	xStd     []float64
	yMean    float64
	yStd     float64
	trainX   [][]float64 // standardised
	chol     *mat.Cholesky
	alphaVec []float64
}

// New constructs a GP surrogate with the given sliding-window capacity.
// windowSize must be positive.
func New(windowSize int) *GaussianProcess {
	return &GaussianProcess{
		window:      newRing(windowSize),
		lengthScale: 1.0,
		rng:         rand.New(rand.NewSource(1)),
	}
}

// Empty reports whether the GP has never been fitted (its window holds no
// observations).
func (g *GaussianProcess) Empty() bool { return g.window.len() == 0 }

// Len reports the current sliding-window length.
func (g *GaussianProcess) Len() int { return g.window.len() }

// Update appends the given rows to the sliding window, truncating to the
// most recent capacity entries, recomputes per-column input statistics over
// the surviving window, and refits the kernel hyperparameters by marginal
// likelihood maximisation. y values must not be pre-standardised; the GP
// handles output normalisation internally.
func (g *GaussianProcess) Update(X [][]float64, y []float64) error {
	if len(X) != len(y) {
		return fmt.Errorf("gp: update: %d rows but %d targets", len(X), len(y))
	}
	if len(X) == 0 {
		return nil
	}
	for i := range X {
		row := append([]float64(nil), X[i]...)
		g.window.push(row, y[i])
	}

	xs, ys := g.window.rows()
	g.dim = len(xs[0])

	g.xMean, g.xStd = columnStats(xs)
	xsStd := standardiseRows(xs, g.xMean, g.xStd)

	yMean, err := stats.Mean(stats.Float64Data(ys))
	if err != nil {
		return fmt.Errorf("gp: computing y mean: %w", err)
	}
	yStd, err := stats.StandardDeviation(stats.Float64Data(ys))
	if err != nil {
		return fmt.Errorf("gp: computing y stddev: %w", err)
	}
	yStd += stdEpsilon
	g.yMean, g.yStd = yMean, yStd

	ysStd := make([]float64, len(ys))
	for i, v := range ys {
		ysStd[i] = (v - yMean) / yStd
	}

	ls, chol, alphaVec, err := g.optimizeLengthScale(xsStd, ysStd)
	if err != nil {
		return err
	}
	g.lengthScale = ls
	g.chol = chol
	g.alphaVec = alphaVec
	g.trainX = xsStd
	return nil
}

// Predict returns the posterior mean and standard deviation at each row of
// X. On an empty (never-updated) GP it returns a zero mean and the kernel
// prior's marginal standard deviation, per the external contract.
func (g *GaussianProcess) Predict(X [][]float64) (mean, std []float64, err error) {
	mean = make([]float64, len(X))
	std = make([]float64, len(X))
	if g.Empty() {
		k := maternKernel{lengthScale: g.lengthScale}
		for i, x := range X {
			std[i] = math.Sqrt(k.eval(x, x))
		}
		return mean, std, nil
	}

	k := maternKernel{lengthScale: g.lengthScale}
	xStd := standardiseRows(X, g.xMean, g.xStd)
	kStar := k.cross(xStd, g.trainX)

	for i := range X {
		row := kStar[i]
		var dotAlpha float64
		for j, v := range row {
			dotAlpha += v * g.alphaVec[j]
		}
		mean[i] = dotAlpha*g.yStd + g.yMean

		kStarVec := mat.NewVecDense(len(row), row)
		var solved mat.VecDense
		if err := g.chol.SolveVecTo(&solved, kStarVec); err != nil {
			return nil, nil, fmt.Errorf("gp: predict: solving for posterior variance: %w", err)
		}
		var quad float64
		for j, v := range row {
			quad += v * solved.AtVec(j)
		}
		kxx := k.eval(xStd[i], xStd[i])
		variance := kxx - quad
		if variance < 0 {
			variance = 0
		}
		std[i] = math.Sqrt(variance) * g.yStd
	}
	return mean, std, nil
}

// Reset empties the sliding window. X_mean/X_std become undefined and the
// next Predict re-enters the empty-window branch.
func (g *GaussianProcess) Reset() {
	g.window.reset()
	g.xMean, g.xStd = nil, nil
	g.trainX, g.chol, g.alphaVec = nil, nil, nil
}

// fit factorises the Matern kernel Gram matrix (plus observation noise) for
// the given length-scale and solves for the GP weight vector.
func fit(xs [][]float64, ysStd []float64, lengthScale float64) (*mat.Cholesky, []float64, error) {
	n := len(xs)
	k := maternKernel{lengthScale: lengthScale}
	gram := k.gram(xs)

	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := gram[i][j]
			if i == j {
				v += noiseVariance
			}
			data[i*n+j] = v
		}
	}
	symK := mat.NewSymDense(n, data)
	var chol mat.Cholesky
	if ok := chol.Factorize(symK); !ok {
		return nil, nil, fmt.Errorf("gp: kernel matrix is not positive definite at length_scale=%.6g", lengthScale)
	}

	yVec := mat.NewVecDense(n, ysStd)
	var alphaVecM mat.VecDense
	if err := chol.SolveVecTo(&alphaVecM, yVec); err != nil {
		return nil, nil, fmt.Errorf("gp: solving for GP weights: %w", err)
	}
	alphaVec := make([]float64, n)
	for i := range alphaVec {
		alphaVec[i] = alphaVecM.AtVec(i)
	}
	return &chol, alphaVec, nil
}

// logMarginalLikelihood computes the log marginal likelihood of the
// standardised targets under the fitted kernel.
func logMarginalLikelihood(chol *mat.Cholesky, alphaVec, ysStd []float64) float64 {
	n := len(ysStd)
	var quad float64
	for i := range ysStd {
		quad += ysStd[i] * alphaVec[i]
	}
	return -0.5*quad - 0.5*chol.LogDet() - 0.5*float64(n)*math.Log(2*math.Pi)
}

// optimizeLengthScale re-fits the kernel length-scale by marginal-likelihood
// maximisation: one warm-started evaluation at the current length-scale plus
// `restarts` random log-uniform samples within [1e-5, 1e5]. Returns the
// best-scoring length-scale along with its factorisation, or an error if
// every candidate diverges numerically.
func (g *GaussianProcess) optimizeLengthScale(xsStd [][]float64, ysStd []float64) (float64, *mat.Cholesky, []float64, error) {
	candidates := make([]float64, 0, restarts+1)
	candidates = append(candidates, clampLengthScale(g.lengthScale))
	logMin, logMax := math.Log(lengthScaleMin), math.Log(lengthScaleMax)
	for i := 0; i < restarts; i++ {
		logLS := logMin + g.rng.Float64()*(logMax-logMin)
		candidates = append(candidates, math.Exp(logLS))
	}

	bestLML := math.Inf(-1)
	var bestLS float64
	var bestChol *mat.Cholesky
	var bestAlpha []float64
	var lastErr error

	for _, ls := range candidates {
		chol, alphaVec, err := fit(xsStd, ysStd, ls)
		if err != nil {
			lastErr = err
			continue
		}
		lml := logMarginalLikelihood(chol, alphaVec, ysStd)
		if lml > bestLML {
			bestLML, bestLS, bestChol, bestAlpha = lml, ls, chol, alphaVec
		}
	}
	if bestChol == nil {
		if lastErr == nil {
			lastErr = fmt.Errorf("gp: no candidate length-scales evaluated")
		}
		return 0, nil, nil, fmt.Errorf("gp: hyperparameter fit diverged across all restarts: %w", lastErr)
	}
	return bestLS, bestChol, bestAlpha, nil
}

func clampLengthScale(ls float64) float64 {
	switch {
	case ls < lengthScaleMin:
		return lengthScaleMin
	case ls > lengthScaleMax:
		return lengthScaleMax
	default:
		return ls
	}
}

func columnStats(xs [][]float64) (mean, std []float64) {
	d := len(xs[0])
	mean = make([]float64, d)
	std = make([]float64, d)
	col := make([]float64, len(xs))
	for c := 0; c < d; c++ {
		for i, row := range xs {
			col[i] = row[c]
		}
		m, _ := stats.Mean(stats.Float64Data(col))
		s, _ := stats.StandardDeviation(stats.Float64Data(col))
		mean[c] = m
		std[c] = s + stdEpsilon
	}
	return mean, std
}

func standardiseRows(xs [][]float64, mean, std []float64) [][]float64 {
	out := make([][]float64, len(xs))
	for i, row := range xs {
		r := make([]float64, len(row))
		for c, v := range row {
			r[c] = (v - mean[c]) / std[c]
		}
		out[i] = r
	}
	return out
}
