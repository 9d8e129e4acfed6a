// Package bandit implements the two orchestration-mode bandits: the
// unconstrained (public-cloud) bandit over a scalarised reward, and the
// constrained (private-cloud) bandit with a safe-set resource filter.
package bandit

// Arm is a fixed-length real vector describing one candidate resource
// configuration: [cpu_cores, memory_MiB, replica_count, replicas_in_zone...].
type Arm []float64

// Context is a fixed-length real vector of observed environment features.
type Context []float64

// ArmSet is an immutable, frozen-at-construction collection of candidate
// arms.
type ArmSet []Arm

// Clone returns an independent copy of the arm set, so callers that must
// not mutate the original (e.g. to build a narrowed safe set) can do so
// freely.
func (s ArmSet) Clone() ArmSet {
	out := make(ArmSet, len(s))
	copy(out, s)
	return out
}

func concat(a Arm, c Context) []float64 {
	out := make([]float64, 0, len(a)+len(c))
	out = append(out, a...)
	out = append(out, c...)
	return out
}

func toFloatRows(armSet ArmSet, c Context) [][]float64 {
	rows := make([][]float64, len(armSet))
	for i, a := range armSet {
		rows[i] = concat(a, c)
	}
	return rows
}
