package orchestrator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/MSRG/DRONE/internal/cluster"
	"github.com/MSRG/DRONE/internal/config"
)

// ObjectiveEnforcer owns the public-mode reward weights. It fails fast on
// negative weights and normalises alpha/beta to sum to 1.
type ObjectiveEnforcer struct {
	alpha float64
	beta  float64
	log   zerolog.Logger
}

// NewObjectiveEnforcer validates and normalises the given weights.
func NewObjectiveEnforcer(alpha, beta float64, log zerolog.Logger) (*ObjectiveEnforcer, error) {
	if alpha < 0 || beta < 0 {
		return nil, fmt.Errorf("enforcer: weights must be non-negative, got alpha=%g beta=%g", alpha, beta)
	}
	total := alpha + beta
	normAlpha, normBeta := 0.5, 0.5
	if total > 0 {
		normAlpha, normBeta = alpha/total, beta/total
	}
	log.Info().Float64("alpha", normAlpha).Float64("beta", normBeta).Msg("set objective weights")
	return &ObjectiveEnforcer{alpha: normAlpha, beta: normBeta, log: log}, nil
}

// Weights returns the normalised (alpha, beta) pair.
func (e *ObjectiveEnforcer) Weights() (float64, float64) { return e.alpha, e.beta }

// ResourceEnforcer owns private-mode resource budget fractions and derives
// absolute cluster-wide limits from live node state.
type ResourceEnforcer struct {
	limits         map[string]float64
	absoluteLimits map[string]float64
	log            zerolog.Logger
}

// NewResourceEnforcer validates fractional limits (each must lie in
// [0,1]) and falls back to config.DefaultResourceLimits when none given.
func NewResourceEnforcer(limits map[string]float64, log zerolog.Logger) (*ResourceEnforcer, error) {
	if limits == nil {
		limits = config.DefaultResourceLimits
	}
	for k, v := range limits {
		if v < 0 || v > 1 {
			return nil, fmt.Errorf("enforcer: resource limit for %s must be in [0,1], got %g", k, v)
		}
	}
	return &ResourceEnforcer{limits: limits, absoluteLimits: map[string]float64{}, log: log}, nil
}

// CalculateAbsoluteLimits sums allocatable CPU (cores) and memory (bytes)
// across the given nodes and multiplies by the configured fractions.
func (e *ResourceEnforcer) CalculateAbsoluteLimits(nodes []cluster.Node) {
	if len(nodes) == 0 {
		e.log.Warn().Msg("no nodes found in the cluster")
		return
	}
	var totalCPU, totalMemory float64
	for _, n := range nodes {
		if cpuStr, ok := n.Allocatable["cpu"]; ok {
			totalCPU += parseCPU(cpuStr)
		}
		if memStr, ok := n.Allocatable["memory"]; ok {
			totalMemory += parseMemoryBytes(memStr)
		}
	}
	e.absoluteLimits = map[string]float64{
		"cpu":    totalCPU * e.limits["cpu"],
		"memory": totalMemory * e.limits["memory"],
	}
	e.log.Info().Interface("absolute_limits", e.absoluteLimits).Msg("calculated absolute resource limits")
}

// AbsoluteLimits returns the last-computed absolute limits (cpu in cores,
// memory in bytes). Empty until CalculateAbsoluteLimits has run.
func (e *ResourceEnforcer) AbsoluteLimits() map[string]float64 { return e.absoluteLimits }

// SafetyMargins reports, for every absolute limit, the fraction of budget
// remaining given the observed usage. Diagnostic only.
func (e *ResourceEnforcer) SafetyMargins(usage map[string]float64) map[string]float64 {
	margins := map[string]float64{}
	for k, limit := range e.absoluteLimits {
		if limit <= 0 {
			continue
		}
		if u, ok := usage[k]; ok {
			margin := (limit - u) / limit
			if margin < 0 {
				margin = 0
			}
			margins[k] = margin
		}
	}
	return margins
}

func parseCPU(s string) float64 {
	if strings.HasSuffix(s, "m") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "m"), 64)
		if err != nil {
			return 0
		}
		return v / 1000
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseMemoryBytes(s string) float64 {
	switch {
	case strings.HasSuffix(s, "Ki"):
		v, _ := strconv.ParseFloat(strings.TrimSuffix(s, "Ki"), 64)
		return v * 1024
	case strings.HasSuffix(s, "Mi"):
		v, _ := strconv.ParseFloat(strings.TrimSuffix(s, "Mi"), 64)
		return v * 1024 * 1024
	case strings.HasSuffix(s, "Gi"):
		v, _ := strconv.ParseFloat(strings.TrimSuffix(s, "Gi"), 64)
		return v * 1024 * 1024 * 1024
	default:
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
}
