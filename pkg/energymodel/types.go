package energymodel

import "math"

// HoursPerYear is the annualization basis for continuous operation.
const HoursPerYear = 8760.0

// Kind identifies a record attached to a project.
type Kind string

const (
	KindResult       Kind = "energy_result"
	KindDatahall     Kind = "datahall"
	KindLighting     Kind = "lighting"
	KindTransformer  Kind = "transformer"
	KindUPS          Kind = "ups"
	KindCRAH         Kind = "crah"
	KindCHWPump      Kind = "chw_pump"
	KindChilledWater Kind = "chilled_water_setting"
	KindChiller      Kind = "chiller"
)

// Datacenter is a physical site. It owns any number of projects.
type Datacenter struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Location string `json:"location" yaml:"location"`
}

// Project is one modeled configuration of a datacenter.
type Project struct {
	ID           string `json:"id"`
	DatacenterID string `json:"datacenter_id"`
	Name         string `json:"name"`
}

// EnergyResult is the per-project aggregate. Only the two inputs are owned by
// users; everything under Calculated is written by the calculation engine.
type EnergyResult struct {
	EITInputKWh float64      `json:"e_it_input_kwh"`
	EDCInputKWh float64      `json:"e_dc_input_kwh"`
	Calculated  ResultValues `json:"calculated"`
}

// ResultValues holds the derived part of an EnergyResult.
type ResultValues struct {
	PUEInput       *float64      `json:"pue_calc_input,omitempty"`
	EDCKWh         float64       `json:"e_dc_calc_kwh"`
	Contributions  Contributions `json:"contributions"`
	UnaccountedKWh float64       `json:"e_un_accounted_calc_kwh"`
	PUE            *float64      `json:"pue_calc,omitempty"`
}

// PUEInputRounded is the input-based PUE rounded for display, nil when undefined.
func (r EnergyResult) PUEInputRounded() *float64 {
	return round3(r.Calculated.PUEInput)
}

// PUECalcRounded is the calculated PUE rounded for display, nil when undefined.
func (r EnergyResult) PUECalcRounded() *float64 {
	return round3(r.Calculated.PUE)
}

func round3(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*1000) / 1000
	return &r
}

// Contribution names one per-subsystem energy figure of the aggregate.
type Contribution string

const (
	ContribChiller          Contribution = "chiller"
	ContribCoolingTower     Contribution = "cooling_tower"
	ContribPumpCW           Contribution = "pump_cw"
	ContribPumpCHWPrimary   Contribution = "pump_chw_primary"
	ContribPumpCHWSecondary Contribution = "pump_chw_secondary"
	ContribCRAH             Contribution = "crah"
	ContribCRAC             Contribution = "crac"
	ContribMAU              Contribution = "mau"
	ContribHumidifier       Contribution = "humidifier_in_room"
	ContribDehumidifier     Contribution = "dehum_in_room"
	ContribUPS              Contribution = "ups"
	ContribTransformer      Contribution = "transformer"
	ContribGenerator        Contribution = "generator_heating"
	ContribLighting         Contribution = "lighting"
	ContribCableLosses      Contribution = "cable_losses"
)

// AllContributions lists every contribution in display order.
var AllContributions = []Contribution{
	ContribChiller, ContribCoolingTower, ContribPumpCW, ContribPumpCHWPrimary,
	ContribPumpCHWSecondary, ContribCRAH, ContribCRAC, ContribMAU,
	ContribHumidifier, ContribDehumidifier, ContribUPS, ContribTransformer,
	ContribGenerator, ContribLighting, ContribCableLosses,
}

// Contributions are annual kWh per subsystem; zero when not computed.
type Contributions struct {
	ChillerKWh          float64 `json:"e_chiller_calc_kwh"`
	CoolingTowerKWh     float64 `json:"e_cooling_tower_calc_kwh"`
	PumpCWKWh           float64 `json:"e_pump_cw_calc_kwh"`
	PumpCHWPrimaryKWh   float64 `json:"e_pump_chw_primary_calc_kwh"`
	PumpCHWSecondaryKWh float64 `json:"e_pump_chw_secondary_calc_kwh"`
	CRAHKWh             float64 `json:"e_crah_calc_kwh"`
	CRACKWh             float64 `json:"e_crac_calc_kwh"`
	MAUKWh              float64 `json:"e_mau_calc_kwh"`
	HumidifierKWh       float64 `json:"e_humidifier_in_room_kwh"`
	DehumidifierKWh     float64 `json:"e_dehum_in_room_kwh"`
	UPSKWh              float64 `json:"e_ups_calc_kwh"`
	TXKWh               float64 `json:"e_tx_calc_kwh"`
	GeneratorKWh        float64 `json:"e_generator_heating_calc_kwh"`
	LightingKWh         float64 `json:"e_lighting_calc_kwh"`
	CableLossesKWh      float64 `json:"e_cable_losses_calc_kwh"`
}

// Field returns the storage for contribution k, or nil for an unknown name.
func (c *Contributions) Field(k Contribution) *float64 {
	switch k {
	case ContribChiller:
		return &c.ChillerKWh
	case ContribCoolingTower:
		return &c.CoolingTowerKWh
	case ContribPumpCW:
		return &c.PumpCWKWh
	case ContribPumpCHWPrimary:
		return &c.PumpCHWPrimaryKWh
	case ContribPumpCHWSecondary:
		return &c.PumpCHWSecondaryKWh
	case ContribCRAH:
		return &c.CRAHKWh
	case ContribCRAC:
		return &c.CRACKWh
	case ContribMAU:
		return &c.MAUKWh
	case ContribHumidifier:
		return &c.HumidifierKWh
	case ContribDehumidifier:
		return &c.DehumidifierKWh
	case ContribUPS:
		return &c.UPSKWh
	case ContribTransformer:
		return &c.TXKWh
	case ContribGenerator:
		return &c.GeneratorKWh
	case ContribLighting:
		return &c.LightingKWh
	case ContribCableLosses:
		return &c.CableLossesKWh
	}
	return nil
}

// Sum adds every contribution in AllContributions order.
func (c Contributions) Sum() float64 {
	total := 0.0
	for _, k := range AllContributions {
		total += *c.Field(k)
	}
	return total
}
