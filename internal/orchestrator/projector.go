package orchestrator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/MSRG/DRONE/internal/bandit"
)

// Parameters are the cluster-facing resource parameters an Arm projects to.
type Parameters struct {
	CPU            float64
	Memory         string // "<N>Mi"
	Replicas       int
	NodeAffinities map[string][]string // zone -> hostnames
}

// ArmProjector converts between the bandit's Arm vector space and the
// cluster-facing Parameters, given the fixed zone ordering established at
// action-space construction time.
type ArmProjector struct {
	zoneNames []string
	zoneHosts map[string][]string
}

// NewArmProjector builds a projector over the given zone->hostnames map,
// fixing zone order by sorting the zone names, the same order
// ArmSetBuilder.Build uses for an arm's zone components (map iteration
// order is not stable, so the order is captured once and reused for every
// projection).
func NewArmProjector(zoneHosts map[string][]string) *ArmProjector {
	names := make([]string, 0, len(zoneHosts))
	for z := range zoneHosts {
		names = append(names, z)
	}
	sort.Strings(names)
	return &ArmProjector{zoneNames: names, zoneHosts: zoneHosts}
}

// NumZones returns the number of zones this projector was built over.
func (p *ArmProjector) NumZones() int { return len(p.zoneNames) }

// ToParameters implements the forward projection (§4.5 step 3): an arm
// [cpu, mem_MiB, replicas, z1...zZ] becomes cluster parameters, with a
// node-affinity entry for every zone whose scheduling component is > 0.
func (p *ArmProjector) ToParameters(arm bandit.Arm) (Parameters, error) {
	if len(arm) < 3+len(p.zoneNames) {
		return Parameters{}, fmt.Errorf("orchestrator: arm has %d dims, need at least %d", len(arm), 3+len(p.zoneNames))
	}
	cpu := arm[0]
	memory := arm[1]
	replicas := int(arm[2])
	scheduling := arm[3 : 3+len(p.zoneNames)]

	affinities := map[string][]string{}
	for i, count := range scheduling {
		if count > 0 {
			zone := p.zoneNames[i]
			affinities[zone] = p.zoneHosts[zone]
		}
	}
	return Parameters{
		CPU:            cpu,
		Memory:         fmt.Sprintf("%dMi", int(memory)),
		Replicas:       replicas,
		NodeAffinities: affinities,
	}, nil
}

// FromParameters implements the inverse projection (parameters_to_action),
// used only at iteration 1 to seed the GP with the cluster's status-quo
// configuration. Per §9/§4.5, it sets z_i = 1 wherever a zone is present in
// node_affinities rather than splitting replicas across zones — this does
// NOT generally sum to replicas, matching the source's documented
// asymmetry with ToParameters.
func (p *ArmProjector) FromParameters(params Parameters) bandit.Arm {
	cpu := params.CPU
	if cpu == 0 {
		cpu = 0.5
	}
	memory := parseMemoryMi(params.Memory)
	replicas := params.Replicas
	if replicas == 0 {
		replicas = 1
	}

	arm := make(bandit.Arm, 3+len(p.zoneNames))
	arm[0] = cpu
	arm[1] = memory
	arm[2] = float64(replicas)
	for i, zone := range p.zoneNames {
		if _, ok := params.NodeAffinities[zone]; ok {
			arm[3+i] = 1
		}
	}
	return arm
}

func parseMemoryMi(s string) float64 {
	switch {
	case strings.HasSuffix(s, "Mi"):
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "Mi"), 64)
		if err != nil {
			return 512
		}
		return v
	case strings.HasSuffix(s, "Gi"):
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "Gi"), 64)
		if err != nil {
			return 512
		}
		return v * 1024
	default:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 512
		}
		return v
	}
}
