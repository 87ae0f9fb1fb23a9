package energymodel

import (
	"fmt"
	"math"
)

// Config is a subsystem configuration attached to a project.
type Config interface {
	Kind() Kind
	Validate() error
}

// Datahall describes the white space. Its area feeds the lighting step.
type Datahall struct {
	AreaM2                float64 `json:"area_m2" yaml:"area_m2"`
	DesignLoadDensityKWm2 float64 `json:"design_load_density_kwm2" yaml:"design_load_density_kwm2"`
	DesignITLoadKW        float64 `json:"design_it_load_kw" yaml:"design_it_load_kw"`
	ServerDTKelvin        float64 `json:"server_dt_in_kelvin" yaml:"server_dt_in_kelvin"`
	TypeAirCooling        string  `json:"type_air_cooling" yaml:"type_air_cooling"`
}

// DefaultServerDTKelvin is stored when a datahall leaves the server delta T unset.
const DefaultServerDTKelvin = 12.0

func (d Datahall) withDefaults() Datahall {
	if d.ServerDTKelvin == 0 {
		d.ServerDTKelvin = DefaultServerDTKelvin
	}
	return d
}

func (Datahall) Kind() Kind { return KindDatahall }

func (d Datahall) Validate() error {
	return nonNegative(KindDatahall,
		field{"area_m2", d.AreaM2},
		field{"design_load_density_kwm2", d.DesignLoadDensityKWm2},
		field{"design_it_load_kw", d.DesignITLoadKW},
		field{"server_dt_in_kelvin", d.ServerDTKelvin},
	)
}

// Lighting selects a fixture type and control strategy. The two input
// pointers override the catalog when set.
type Lighting struct {
	LightingType         string             `json:"lighting_type" yaml:"lighting_type"`
	LightingLoadInputWm2 *float64           `json:"lighting_load_input_wm2,omitempty" yaml:"lighting_load_input_wm2"`
	LightingControls     string             `json:"lighting_controls" yaml:"lighting_controls"`
	OnForHoursYear       *float64           `json:"on_for_hoursyear,omitempty" yaml:"on_for_hoursyear"`
	Calculated           LightingCalculated `json:"calculated" yaml:"-"`
}

// LightingCalculated holds the resolved lighting inputs.
type LightingCalculated struct {
	LightingLoadWm2 *float64 `json:"lighting_load_wm2,omitempty"`
	HoursPerYear    *float64 `json:"hours_per_year,omitempty"`
}

func (Lighting) Kind() Kind { return KindLighting }

func (l Lighting) Validate() error {
	if l.OnForHoursYear != nil && *l.OnForHoursYear > HoursPerYear {
		return fmt.Errorf("%s: on_for_hoursyear must not exceed %.0f", KindLighting, HoursPerYear)
	}
	return nonNegative(KindLighting,
		optField("lighting_load_input_wm2", l.LightingLoadInputWm2),
		optField("on_for_hoursyear", l.OnForHoursYear),
	)
}

// Transformer describes the installed transformers. Loss factors are
// fractions (0.003 == 0.3%); the input pointers override the catalog.
type Transformer struct {
	TransformerType string                `json:"transformer_type" yaml:"transformer_type"`
	UnitCapacityKW  float64               `json:"transformer_unit_capacity_kw" yaml:"transformer_unit_capacity_kw"`
	Quantity        int                   `json:"quantity_installed_number" yaml:"quantity_installed_number"`
	CoreLossInput   *float64              `json:"core_loss_factor_percent_input,omitempty" yaml:"core_loss_factor_percent_input"`
	LoadLossInput   *float64              `json:"load_loss_factor_percent_input,omitempty" yaml:"load_loss_factor_percent_input"`
	Calculated      TransformerCalculated `json:"calculated" yaml:"-"`
}

// TransformerCalculated holds the derived transformer figures.
type TransformerCalculated struct {
	CoreLoss                 *float64 `json:"core_loss_factor_percent,omitempty"`
	LoadLoss                 *float64 `json:"load_loss_factor_percent,omitempty"`
	TotalInstalledCapacityKW *float64 `json:"total_installed_capacity_kw,omitempty"`
	EDCPowerKW               *float64 `json:"e_dc_power_kw,omitempty"`
	AverageUtilization       *float64 `json:"average_utilization,omitempty"`
	TotalLossFactor          *float64 `json:"tx_total_loss_factor_percent,omitempty"`
	TotalLossKW              *float64 `json:"tx_total_loss_kw,omitempty"`
}

func (Transformer) Kind() Kind { return KindTransformer }

func (t Transformer) Validate() error {
	if t.Quantity < 0 {
		return fmt.Errorf("%s: quantity_installed_number must not be negative", KindTransformer)
	}
	return nonNegative(KindTransformer,
		field{"transformer_unit_capacity_kw", t.UnitCapacityKW},
		optField("core_loss_factor_percent_input", t.CoreLossInput),
		optField("load_loss_factor_percent_input", t.LoadLossInput),
	)
}

// UPS describes the uninterruptible power supply.
type UPS struct {
	ModelName           string        `json:"model_name" yaml:"model_name"`
	InstalledCapacityKW float64       `json:"installed_capacity_kw" yaml:"installed_capacity_kw"`
	OperatingMode       string        `json:"operating_mode" yaml:"operating_mode"`
	EfficiencyPercent   float64       `json:"efficiency_percent" yaml:"efficiency_percent"`
	Calculated          UPSCalculated `json:"calculated" yaml:"-"`
}

// UPSCalculated holds the derived UPS figures.
type UPSCalculated struct {
	UtilizationPercent *float64 `json:"utilization_percent,omitempty"`
}

func (UPS) Kind() Kind { return KindUPS }

func (u UPS) Validate() error {
	if u.EfficiencyPercent > 100 {
		return fmt.Errorf("%s: efficiency_percent must not exceed 100", KindUPS)
	}
	return nonNegative(KindUPS,
		field{"installed_capacity_kw", u.InstalledCapacityKW},
		field{"efficiency_percent", u.EfficiencyPercent},
	)
}

// CRAH describes the computer room air handlers.
type CRAH struct {
	CoolingCapacityKW      float64 `json:"cooling_capacity_in_kw" yaml:"cooling_capacity_in_kw"`
	RatedAirflowM3s        float64 `json:"rated_airflow_m3s" yaml:"rated_airflow_m3s"`
	MaxFanPowerKW          float64 `json:"max_fan_power_kw" yaml:"max_fan_power_kw"`
	AverageDTKelvin        float64 `json:"average_dt_in_kelvin" yaml:"average_dt_in_kelvin"`
	SupplyAirTempC         float64 `json:"supply_air_temperature_in_c" yaml:"supply_air_temperature_in_c"`
	ReturnAirTempAvgC      float64 `json:"return_air_temperature_avg_in_c" yaml:"return_air_temperature_avg_in_c"`
	AirToWaterApproachC    float64 `json:"air_to_water_approach_temperature_in_c" yaml:"air_to_water_approach_temperature_in_c"`
	ChilledWaterExitTempC  float64 `json:"chilled_water_exit_temperature_in_c" yaml:"chilled_water_exit_temperature_in_c"`
	MinFanSpeedPercent     float64 `json:"min_fan_speed_percent" yaml:"min_fan_speed_percent"`
	DesignRedundancy       string  `json:"design_redundancy" yaml:"design_redundancy"`
	QuantityInstalledInput *int    `json:"quantity_installed_input,omitempty" yaml:"quantity_installed_input"`
}

func (CRAH) Kind() Kind { return KindCRAH }

func (c CRAH) Validate() error {
	if c.MinFanSpeedPercent > 100 {
		return fmt.Errorf("%s: min_fan_speed_percent must not exceed 100", KindCRAH)
	}
	if c.QuantityInstalledInput != nil && *c.QuantityInstalledInput < 0 {
		return fmt.Errorf("%s: quantity_installed_input must not be negative", KindCRAH)
	}
	// Temperatures may be negative but must still be numbers.
	if err := allFinite(KindCRAH,
		field{"supply_air_temperature_in_c", c.SupplyAirTempC},
		field{"return_air_temperature_avg_in_c", c.ReturnAirTempAvgC},
		field{"air_to_water_approach_temperature_in_c", c.AirToWaterApproachC},
		field{"chilled_water_exit_temperature_in_c", c.ChilledWaterExitTempC},
	); err != nil {
		return err
	}
	return nonNegative(KindCRAH,
		field{"cooling_capacity_in_kw", c.CoolingCapacityKW},
		field{"rated_airflow_m3s", c.RatedAirflowM3s},
		field{"max_fan_power_kw", c.MaxFanPowerKW},
		field{"average_dt_in_kelvin", c.AverageDTKelvin},
		field{"min_fan_speed_percent", c.MinFanSpeedPercent},
	)
}

// CHWPump describes the chilled water pumps.
type CHWPump struct {
	PumpType                 string  `json:"pump_type" yaml:"pump_type"`
	DesignThermalLoadKW      float64 `json:"pump_design_thermal_load_kw" yaml:"pump_design_thermal_load_kw"`
	PumpsRunningInParallel   int     `json:"qty_pumps_running_in_parallel" yaml:"qty_pumps_running_in_parallel"`
	DesignPressureKPa        float64 `json:"design_pressure_kpa" yaml:"design_pressure_kpa"`
	DesignEfficiencyPercent  float64 `json:"design_efficiency_percent" yaml:"design_efficiency_percent"`
	DesignPumpFlowKgs        float64 `json:"design_pump_flow_kgs" yaml:"design_pump_flow_kgs"`
	MinimumPumpSpeedPercent  float64 `json:"minimum_pump_speed_percent" yaml:"minimum_pump_speed_percent"`
	ChilledWaterOperatingDTK float64 `json:"chilled_water_operating_dt_in_kelvin" yaml:"chilled_water_operating_dt_in_kelvin"`
}

func (CHWPump) Kind() Kind { return KindCHWPump }

func (p CHWPump) Validate() error {
	if p.PumpsRunningInParallel < 0 {
		return fmt.Errorf("%s: qty_pumps_running_in_parallel must not be negative", KindCHWPump)
	}
	if p.DesignEfficiencyPercent > 100 || p.MinimumPumpSpeedPercent > 100 {
		return fmt.Errorf("%s: percentages must not exceed 100", KindCHWPump)
	}
	return nonNegative(KindCHWPump,
		field{"pump_design_thermal_load_kw", p.DesignThermalLoadKW},
		field{"design_pressure_kpa", p.DesignPressureKPa},
		field{"design_efficiency_percent", p.DesignEfficiencyPercent},
		field{"design_pump_flow_kgs", p.DesignPumpFlowKgs},
		field{"minimum_pump_speed_percent", p.MinimumPumpSpeedPercent},
	)
}

// ChilledWaterSetting describes the chilled water loop.
type ChilledWaterSetting struct {
	GlycolContent      string  `json:"glycol_content" yaml:"glycol_content"`
	SupplyTempC        float64 `json:"chw_supply_temp_degc" yaml:"chw_supply_temp_degc"`
	DesignDeltaTKelvin float64 `json:"design_delta_t_in_kelvin" yaml:"design_delta_t_in_kelvin"`
}

func (ChilledWaterSetting) Kind() Kind { return KindChilledWater }

func (s ChilledWaterSetting) Validate() error {
	switch s.GlycolContent {
	case "", "0%", "10%", "20%", "30%", "40%":
	default:
		return fmt.Errorf("%s: unsupported glycol_content %q", KindChilledWater, s.GlycolContent)
	}
	if s.SupplyTempC > 25 {
		return fmt.Errorf("%s: chw_supply_temp_degc must not exceed 25", KindChilledWater)
	}
	return nonNegative(KindChilledWater,
		field{"chw_supply_temp_degc", s.SupplyTempC},
		field{"design_delta_t_in_kelvin", s.DesignDeltaTKelvin},
	)
}

// Chiller describes the chiller plant.
type Chiller struct {
	RedundancyNPlus     int     `json:"chiller_redundancy_n_plus" yaml:"chiller_redundancy_n_plus"`
	WaterSideEconomizer bool    `json:"water_side_economizer" yaml:"water_side_economizer"`
	CoolingCapacityKWTh float64 `json:"cooling_capacity_kw_thermal" yaml:"cooling_capacity_kw_thermal"`
	MinimumCHWSTempC    float64 `json:"minimum_chws_temp_degc" yaml:"minimum_chws_temp_degc"`
	MaximumCHWSTempC    float64 `json:"maximum_chws_temp_degc" yaml:"maximum_chws_temp_degc"`
	EconomizerApproachK float64 `json:"economizer_approach_in_kelvin" yaml:"economizer_approach_in_kelvin"`
	SCOP                float64 `json:"scop" yaml:"scop"`
}

func (Chiller) Kind() Kind { return KindChiller }

func (c Chiller) Validate() error {
	if c.RedundancyNPlus < 0 {
		return fmt.Errorf("%s: chiller_redundancy_n_plus must not be negative", KindChiller)
	}
	if c.MinimumCHWSTempC > c.MaximumCHWSTempC {
		return fmt.Errorf("%s: minimum_chws_temp_degc exceeds maximum_chws_temp_degc", KindChiller)
	}
	return nonNegative(KindChiller,
		field{"cooling_capacity_kw_thermal", c.CoolingCapacityKWTh},
		field{"minimum_chws_temp_degc", c.MinimumCHWSTempC},
		field{"maximum_chws_temp_degc", c.MaximumCHWSTempC},
		field{"economizer_approach_in_kelvin", c.EconomizerApproachK},
		field{"scop", c.SCOP},
	)
}

type field struct {
	name  string
	value float64
}

// optField maps an unset pointer to zero, which always passes nonNegative.
func optField(name string, v *float64) field {
	if v == nil {
		return field{name: name}
	}
	return field{name, *v}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(kind Kind, fields ...field) error {
	for _, f := range fields {
		if !finite(f.value) {
			return fmt.Errorf("%s: %s must be a finite number", kind, f.name)
		}
	}
	return nil
}

func nonNegative(kind Kind, fields ...field) error {
	if err := allFinite(kind, fields...); err != nil {
		return err
	}
	for _, f := range fields {
		if f.value < 0 {
			return fmt.Errorf("%s: %s must not be negative", kind, f.name)
		}
	}
	return nil
}
