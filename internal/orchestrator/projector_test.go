package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MSRG/DRONE/internal/bandit"
)

func testZoneHosts() map[string][]string {
	return map[string][]string{
		"zone-a": {"host-1", "host-2"},
		"zone-b": {"host-3"},
	}
}

func TestToParametersRejectsShortArm(t *testing.T) {
	p := NewArmProjector(testZoneHosts())
	_, err := p.ToParameters(bandit.Arm{1, 2})
	require.Error(t, err)
}

func TestToParametersOnlyIncludesPositiveZones(t *testing.T) {
	p := NewArmProjector(testZoneHosts())
	arm := make(bandit.Arm, 3+p.NumZones())
	arm[0], arm[1], arm[2] = 1.0, 512, 2
	zoneIdx := indexOf(p.zoneNames, "zone-a")
	arm[3+zoneIdx] = 1

	params, err := p.ToParameters(arm)
	require.NoError(t, err)
	assert.Equal(t, 1.0, params.CPU)
	assert.Equal(t, "512Mi", params.Memory)
	assert.Equal(t, 2, params.Replicas)
	assert.Contains(t, params.NodeAffinities, "zone-a")
	assert.NotContains(t, params.NodeAffinities, "zone-b")
}

func TestFromParametersSetsOneHotForPresentZones(t *testing.T) {
	p := NewArmProjector(testZoneHosts())
	params := Parameters{
		CPU: 2, Memory: "1024Mi", Replicas: 3,
		NodeAffinities: map[string][]string{"zone-b": {"host-3"}},
	}
	arm := p.FromParameters(params)
	require.Len(t, arm, 3+p.NumZones())
	assert.Equal(t, 2.0, arm[0])
	assert.Equal(t, 1024.0, arm[1])
	assert.Equal(t, 3.0, arm[2])

	zoneIdx := indexOf(p.zoneNames, "zone-b")
	assert.Equal(t, 1.0, arm[3+zoneIdx])
	otherIdx := indexOf(p.zoneNames, "zone-a")
	assert.Equal(t, 0.0, arm[3+otherIdx])
}

func TestFromParametersFillsDefaultsWhenZero(t *testing.T) {
	p := NewArmProjector(testZoneHosts())
	arm := p.FromParameters(Parameters{})
	assert.Equal(t, 0.5, arm[0])
	assert.Equal(t, 1.0, arm[2])
}

func TestParseMemoryMiHandlesGi(t *testing.T) {
	assert.Equal(t, 2048.0, parseMemoryMi("2Gi"))
	assert.Equal(t, 512.0, parseMemoryMi("512Mi"))
	assert.Equal(t, 512.0, parseMemoryMi("garbage"))
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
