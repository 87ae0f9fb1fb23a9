package equipment

import "errors"

// ErrSpecNotFound is returned when no catalog row matches the requested type.
var ErrSpecNotFound = errors.New("equipment spec not found")

// Kind names one of the reference tables.
type Kind string

const (
	KindLighting        Kind = "lighting"
	KindLightingControl Kind = "lighting_control"
	KindTransformer     Kind = "transformer"
)

// LightingSpec is the installed lighting load for a fixture type.
type LightingSpec struct {
	LightingType  string  `json:"lighting_type" yaml:"lighting_type"`
	LightingLoadW float64 `json:"lighting_load_wm2" yaml:"lighting_load_wm2"` // W/m2
}

// LightingControlSpec is the annual on-time implied by a control strategy.
type LightingControlSpec struct {
	ControlType  string  `json:"control_type" yaml:"control_type"`
	HoursPerYear float64 `json:"hours_per_year" yaml:"hours_per_year"`
}

// TransformerSpec holds loss fractions (0.003 == 0.3%) for a transformer type.
type TransformerSpec struct {
	TransformerType string  `json:"transformer_type" yaml:"transformer_type"`
	Application     string  `json:"application" yaml:"application"`
	CoreLoss        float64 `json:"core_losses_percent" yaml:"core_losses_percent"`
	LoadLoss        float64 `json:"load_losses_percent" yaml:"load_losses_percent"`
}

// Rows is the full content of a catalog, in lookup order.
type Rows struct {
	Lighting         []LightingSpec        `json:"lighting" yaml:"lighting"`
	LightingControls []LightingControlSpec `json:"lighting_controls" yaml:"lighting_controls"`
	Transformers     []TransformerSpec     `json:"transformers" yaml:"transformers"`
}
