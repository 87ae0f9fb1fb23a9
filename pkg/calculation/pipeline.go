package calculation

import (
	"errors"
	"fmt"

	"github.com/example/dc-energy/pkg/energymodel"
)

// Requirement is a precondition a step checks before it runs.
type Requirement string

const (
	NeedITInput      Requirement = "it_input"
	NeedDCInput      Requirement = "dc_input"
	NeedDatahall     Requirement = "datahall"
	NeedLighting     Requirement = "lighting"
	NeedTransformer  Requirement = "transformer"
	NeedUPS          Requirement = "ups"
	NeedCRAH         Requirement = "crah"
	NeedCHWPump      Requirement = "chw_pump"
	NeedChilledWater Requirement = "chilled_water_setting"
	NeedChiller      Requirement = "chiller"
)

func (r Requirement) met(rec *energymodel.Records) bool {
	switch r {
	case NeedITInput:
		return rec.Result.EITInputKWh != 0
	case NeedDCInput:
		return rec.Result.EDCInputKWh != 0
	case NeedDatahall:
		return rec.Has(energymodel.KindDatahall)
	case NeedLighting:
		return rec.Has(energymodel.KindLighting)
	case NeedTransformer:
		return rec.Has(energymodel.KindTransformer)
	case NeedUPS:
		return rec.Has(energymodel.KindUPS)
	case NeedCRAH:
		return rec.Has(energymodel.KindCRAH)
	case NeedCHWPump:
		return rec.Has(energymodel.KindCHWPump)
	case NeedChilledWater:
		return rec.Has(energymodel.KindChilledWater)
	case NeedChiller:
		return rec.Has(energymodel.KindChiller)
	}
	return false
}

func (r Requirement) subsystem() bool {
	return r != NeedITInput && r != NeedDCInput
}

// Step is one entry of the calculation pipeline. Run executes only when
// every requirement is met; otherwise OnSkip, when set, runs instead and
// receives the first unmet requirement. A step whose Run bails out with a
// skip error leaves its stored values untouched.
type Step struct {
	Name     string
	Requires []Requirement
	Run      func(p *pass) error
	OnSkip   func(p *pass, missing Requirement)
}

// DefaultPipeline returns the calculation order. Totals come after every
// contribution, and PUE comes last.
func DefaultPipeline() []Step {
	return []Step{
		inputPUEStep("input_pue"),
		upsLossesStep(),
		transformerLossesStep(),
		lightingEnergyStep(),
		placeholderStep("crah_energy", energymodel.ContribCRAH),
		placeholderStep("crac_energy", energymodel.ContribCRAC),
		placeholderStep("chw_pump_primary_energy", energymodel.ContribPumpCHWPrimary),
		placeholderStep("chw_pump_secondary_energy", energymodel.ContribPumpCHWSecondary),
		placeholderStep("cw_pump_energy", energymodel.ContribPumpCW),
		placeholderStep("chiller_energy", energymodel.ContribChiller),
		placeholderStep("cooling_tower_energy", energymodel.ContribCoolingTower),
		placeholderStep("mau_energy", energymodel.ContribMAU),
		placeholderStep("humidifier_energy", energymodel.ContribHumidifier),
		placeholderStep("dehumidifier_energy", energymodel.ContribDehumidifier),
		placeholderStep("generator_heating_energy", energymodel.ContribGenerator),
		placeholderStep("cable_losses_energy", energymodel.ContribCableLosses),
		totalEnergyStep(),
		unaccountedEnergyStep(),
		inputPUEStep("input_pue_recheck"),
		calculatedPUEStep(),
	}
}

// validatePipeline rejects unnamed, duplicate or empty steps.
func validatePipeline(steps []Step) error {
	seen := make(map[string]bool, len(steps))
	for i, s := range steps {
		if s.Name == "" {
			return fmt.Errorf("step %d has no name", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate step %q", s.Name)
		}
		if s.Run == nil {
			return fmt.Errorf("step %q has no Run func", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// skipError marks a step that stopped for missing or unresolvable data.
type skipError struct {
	reason string
	err    error
}

func (e *skipError) Error() string {
	if e.err != nil {
		return e.reason + ": " + e.err.Error()
	}
	return e.reason
}

func (e *skipError) Unwrap() error { return e.err }

func skip(reason string, err error) error {
	return &skipError{reason: reason, err: err}
}

func asSkip(err error) (*skipError, bool) {
	var s *skipError
	if errors.As(err, &s) {
		return s, true
	}
	return nil, false
}
