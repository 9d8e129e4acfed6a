// Package acquisition implements the pure UCB scoring functions and the
// exploration-coefficient schedule shared by both bandit variants.
package acquisition

import (
	"fmt"
	"math"
)

// Predictor is the minimal surface the acquisition functions need from a
// fitted surrogate model.
type Predictor interface {
	Predict(X [][]float64) (mean, std []float64, err error)
}

// baseConfidence (B) is the UCB confidence-scaler constant from the
// reference schedule.
const baseConfidence = 1.0

// Beta computes the theoretical UCB exploration coefficient beta(t) for
// input dimension d at iteration t:
//
//	gamma(t) = d * log(t+1)
//	l(t)     = log(max(t/B, 1))
//	beta(t)  = 2*B^2 + 300*gamma(t)*l(t)^3
func Beta(t int, d int) float64 {
	gamma := float64(d) * math.Log(float64(t)+1)
	logTerm := math.Log(math.Max(float64(t)/baseConfidence, 1.0))
	return 2*baseConfidence*baseConfidence + 300*gamma*logTerm*logTerm*logTerm
}

// UCB scores each row of X as mean(x) + sqrt(beta)*std(x).
func UCB(gp Predictor, X [][]float64, beta float64) ([]float64, error) {
	mean, std, err := gp.Predict(X)
	if err != nil {
		return nil, fmt.Errorf("acquisition: predicting for UCB: %w", err)
	}
	sqrtBeta := math.Sqrt(beta)
	scores := make([]float64, len(X))
	for i := range X {
		scores[i] = mean[i] + sqrtBeta*std[i]
	}
	return scores, nil
}

// SelectUCBAction scores every arm in armSet (concatenated with context) and
// returns the index and vector of the arm with maximal UCB score, breaking
// ties by lowest index.
func SelectUCBAction(armSet [][]float64, context []float64, gp Predictor, t int, d int) (bestIdx int, bestArm []float64, bestScore float64, err error) {
	if len(armSet) == 0 {
		return 0, nil, 0, fmt.Errorf("acquisition: empty arm set")
	}
	beta := Beta(t, d)
	inputs := make([][]float64, len(armSet))
	for i, arm := range armSet {
		inputs[i] = concat(arm, context)
	}
	scores, err := UCB(gp, inputs, beta)
	if err != nil {
		return 0, nil, 0, err
	}
	bestIdx = 0
	bestScore = scores[0]
	for i := 1; i < len(scores); i++ {
		if scores[i] > bestScore {
			bestScore = scores[i]
			bestIdx = i
		}
	}
	return bestIdx, armSet[bestIdx], bestScore, nil
}

func concat(a, b []float64) []float64 {
	out := make([]float64, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
