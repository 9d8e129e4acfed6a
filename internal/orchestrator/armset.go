package orchestrator

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/MSRG/DRONE/internal/bandit"
	"github.com/MSRG/DRONE/internal/cluster"
)

// zoneLabelKey is the well-known topology label used to partition nodes
// into zones for action-space construction.
const zoneLabelKey = "topology.kubernetes.io/zone"

// cpuGrid and memoryGridMi are the candidate resource levels combined into
// the action space, mirroring the reference implementation's discretised
// grid search space.
var (
	cpuGrid      = []float64{0.25, 0.5, 1, 2, 4}
	memoryGridMi = []float64{256, 512, 1024, 2048, 4096}
	replicaGrid  = []int{1, 2, 3, 5, 8}
)

// ArmSetBuilder constructs the bandit's fixed action space from live
// cluster topology: a grid over CPU, memory, and replica count, crossed
// with the discovered zones. Each arm places all of its replicas in one
// zone, so its zone components sum to its replica count.
type ArmSetBuilder struct {
	rng *rand.Rand
}

// NewArmSetBuilder builds an ArmSetBuilder. rng may be nil to use the
// default source.
func NewArmSetBuilder(rng *rand.Rand) *ArmSetBuilder {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &ArmSetBuilder{rng: rng}
}

// Build returns the arm set together with the zone->hostnames map used to
// build the matching ArmProjector. numActions caps the arm set size via
// uniform sampling without replacement; 0 or negative means unbounded.
func (b *ArmSetBuilder) Build(nodes []cluster.Node, numActions int) (bandit.ArmSet, map[string][]string, error) {
	if len(nodes) == 0 {
		return nil, nil, fmt.Errorf("orchestrator: cannot build an arm set from zero nodes")
	}
	zoneHosts := map[string][]string{}
	for _, n := range nodes {
		zone := n.Labels[zoneLabelKey]
		if zone == "" {
			zone = "default"
		}
		zoneHosts[zone] = append(zoneHosts[zone], n.Name)
	}
	zoneNames := make([]string, 0, len(zoneHosts))
	for z := range zoneHosts {
		zoneNames = append(zoneNames, z)
	}
	sort.Strings(zoneNames)

	var armSet bandit.ArmSet
	for _, cpu := range cpuGrid {
		for _, mem := range memoryGridMi {
			for _, replicas := range replicaGrid {
				for zi := range zoneNames {
					arm := make(bandit.Arm, 3+len(zoneNames))
					arm[0] = cpu
					arm[1] = mem
					arm[2] = float64(replicas)
					arm[3+zi] = float64(replicas)
					armSet = append(armSet, arm)
				}
			}
		}
	}

	if numActions > 0 && numActions < len(armSet) {
		b.rng.Shuffle(len(armSet), func(i, j int) { armSet[i], armSet[j] = armSet[j], armSet[i] })
		armSet = armSet[:numActions]
	}
	return armSet, zoneHosts, nil
}
