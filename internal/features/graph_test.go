package features

import (
	"testing"

	"github.com/devc-cli/devc/internal/devc"
	"github.com/stretchr/testify/assert"
)

func parserWithDeps(id string, dependsOn ...string) *devc.DevcontainerFeatureParser {
	deps := devc.FeatureMap{}
	for _, d := range dependsOn {
		deps[d] = devc.FeatureValues{}
	}
	return &devc.DevcontainerFeatureParser{
		Config: devc.DevcontainerFeatureConfig{ID: id, DependsOn: deps},
	}
}

func TestInstallOrderRespectsDependsOn(t *testing.T) {
	inst := &Installer{parsersByID: map[string]*devc.DevcontainerFeatureParser{
		"./alpha": parserWithDeps("alpha"),
		"./beta":  parserWithDeps("beta", "./alpha"),
		"./gamma": parserWithDeps("gamma"),
		"./delta": parserWithDeps("delta", "./gamma"),
	}}

	levels, err := inst.InstallOrder(nil)
	assert.Nil(t, err)
	assert.Len(t, levels, 2)
	assert.ElementsMatch(t, []string{"./alpha", "./gamma"}, levels[0])
	assert.ElementsMatch(t, []string{"./beta", "./delta"}, levels[1])
}

func TestInstallOrderInstallsAfterIsSoft(t *testing.T) {
	gamma := parserWithDeps("gamma")
	gamma.Config.InstallsAfter = []string{"./alpha"}

	inst := &Installer{parsersByID: map[string]*devc.DevcontainerFeatureParser{
		"./alpha": parserWithDeps("alpha"),
		"./gamma": gamma,
	}}

	levels, err := inst.InstallOrder(nil)
	assert.Nil(t, err)
	assert.Len(t, levels, 2)
	assert.Equal(t, []string{"./alpha"}, levels[0])
	assert.Equal(t, []string{"./gamma"}, levels[1])
}

func TestInstallOrderInstallsAfterIgnoredWhenAbsent(t *testing.T) {
	solo := parserWithDeps("solo")
	solo.Config.InstallsAfter = []string{"./not-in-this-install"}

	inst := &Installer{parsersByID: map[string]*devc.DevcontainerFeatureParser{
		"./solo": solo,
	}}

	levels, err := inst.InstallOrder(nil)
	assert.Nil(t, err)
	assert.Len(t, levels, 1)
	assert.Equal(t, []string{"./solo"}, levels[0])
}

func TestInstallOrderDeclaredOrderTiebreak(t *testing.T) {
	inst := &Installer{parsersByID: map[string]*devc.DevcontainerFeatureParser{
		"./alpha": parserWithDeps("alpha"),
		"./beta":  parserWithDeps("beta"),
		"./gamma": parserWithDeps("gamma"),
	}}

	declared := []string{"./gamma", "./alpha", "./beta"}
	levels, err := inst.InstallOrder(&declared)
	assert.Nil(t, err)
	assert.Len(t, levels, 1)
	assert.Equal(t, []string{"./gamma", "./alpha", "./beta"}, levels[0])
}
