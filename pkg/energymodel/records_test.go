package energymodel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestPUERounded(t *testing.T) {
	var r EnergyResult
	assert.Nil(t, r.PUEInputRounded())
	assert.Nil(t, r.PUECalcRounded())

	r.Calculated.PUEInput = ptr(1.23456)
	r.Calculated.PUE = ptr(1.0004)
	require.NotNil(t, r.PUEInputRounded())
	assert.Equal(t, 1.235, *r.PUEInputRounded())
	assert.Equal(t, 1.0, *r.PUECalcRounded())
	assert.Equal(t, 1.23456, *r.Calculated.PUEInput, "stored value stays unrounded")
}

func TestContributionsSumCoversEveryField(t *testing.T) {
	var c Contributions
	for i, k := range AllContributions {
		f := c.Field(k)
		require.NotNil(t, f, "contribution %s", k)
		*f = float64(i + 1)
	}
	n := float64(len(AllContributions))
	assert.Equal(t, n*(n+1)/2, c.Sum())
	assert.Nil(t, c.Field("unknown"))
}

func TestPutConfigValidates(t *testing.T) {
	r := newRecords(Project{ID: "p"})

	err := r.PutConfig(UPS{EfficiencyPercent: 120})
	assert.Error(t, err)
	assert.Nil(t, r.UPS)

	err = r.PutConfig(Transformer{UnitCapacityKW: -1})
	assert.Error(t, err)

	err = r.PutConfig(Lighting{OnForHoursYear: ptr(9000)})
	assert.Error(t, err)

	err = r.PutConfig(ChilledWaterSetting{GlycolContent: "15%"})
	assert.Error(t, err)

	err = r.PutConfig(Chiller{MinimumCHWSTempC: 20, MaximumCHWSTempC: 10})
	assert.Error(t, err)

	assert.Empty(t, r.Changed())
}

func TestPutConfigAcceptsPointers(t *testing.T) {
	r := newRecords(Project{ID: "p"})

	require.NoError(t, r.PutConfig(&Datahall{AreaM2: 500}))
	require.NotNil(t, r.Datahall)
	assert.Equal(t, 500.0, r.Datahall.AreaM2)
	assert.Equal(t, []Kind{KindDatahall}, r.Changed())
}

func TestPutDatahallDefaultsServerDT(t *testing.T) {
	r := newRecords(Project{ID: "p"})

	require.NoError(t, r.PutConfig(Datahall{AreaM2: 500}))
	assert.Equal(t, DefaultServerDTKelvin, r.Datahall.ServerDTKelvin)

	require.NoError(t, r.PutConfig(Datahall{AreaM2: 500, ServerDTKelvin: 8}))
	assert.Equal(t, 8.0, r.Datahall.ServerDTKelvin)
}

func TestRejectsNonFiniteValues(t *testing.T) {
	for name, v := range map[string]float64{
		"nan":  math.NaN(),
		"+inf": math.Inf(1),
		"-inf": math.Inf(-1),
	} {
		v := v
		t.Run(name, func(t *testing.T) {
			r := newRecords(Project{ID: "p"})
			assert.Error(t, r.SetEnergyInputs(v, 1500))
			assert.Error(t, r.SetEnergyInputs(1000, v))
			assert.Error(t, r.PutConfig(Datahall{AreaM2: v}))
			assert.Error(t, r.PutConfig(UPS{InstalledCapacityKW: v}))
			assert.Error(t, r.PutConfig(Lighting{OnForHoursYear: &v}))
			assert.Zero(t, r.Result.EITInputKWh)
			assert.Empty(t, r.Changed())
		})
	}
}

func TestPutConfigCopiesOverrides(t *testing.T) {
	r := newRecords(Project{ID: "p"})
	override := 8.0
	require.NoError(t, r.PutConfig(Lighting{LightingLoadInputWm2: &override}))

	override = 20
	assert.Equal(t, 8.0, *r.Lighting.LightingLoadInputWm2)
}

func TestCloneIsDeep(t *testing.T) {
	r := newRecords(Project{ID: "p"})
	require.NoError(t, r.PutConfig(Transformer{TransformerType: "Dry-Type", CoreLossInput: ptr(0.004)}))
	r.Transformer.Calculated.TotalLossKW = ptr(17)
	r.Result.Calculated.PUE = ptr(1.5)

	c := r.Clone()
	assert.Empty(t, c.Changed())

	*c.Transformer.CoreLossInput = 1
	*c.Transformer.Calculated.TotalLossKW = 1
	*c.Result.Calculated.PUE = 1

	assert.Equal(t, 0.004, *r.Transformer.CoreLossInput)
	assert.Equal(t, 17.0, *r.Transformer.Calculated.TotalLossKW)
	assert.Equal(t, 1.5, *r.Result.Calculated.PUE)
}

func TestRemoveConfig(t *testing.T) {
	r := newRecords(Project{ID: "p"})
	assert.False(t, r.RemoveConfig(KindCRAH))
	assert.Empty(t, r.Changed())

	require.NoError(t, r.PutConfig(CRAH{CoolingCapacityKW: 100}))
	r.resetChanges()
	assert.True(t, r.Has(KindCRAH))
	assert.True(t, r.RemoveConfig(KindCRAH))
	assert.False(t, r.Has(KindCRAH))
	assert.Equal(t, []Kind{KindCRAH}, r.Changed())
}

func TestSetEnergyInputs(t *testing.T) {
	r := newRecords(Project{ID: "p"})
	assert.Error(t, r.SetEnergyInputs(-1, 0))

	require.NoError(t, r.SetEnergyInputs(0, 0))
	assert.Empty(t, r.Changed(), "unchanged inputs are not a write")

	require.NoError(t, r.SetEnergyInputs(1000, 1500))
	assert.Equal(t, []Kind{KindResult}, r.Changed())
}
