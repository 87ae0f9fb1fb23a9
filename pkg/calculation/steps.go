package calculation

import (
	"errors"
	"fmt"

	"github.com/example/dc-energy/pkg/energymodel"
	"github.com/example/dc-energy/pkg/equipment"
	"go.uber.org/zap"
)

func ratio(num, den float64) *float64 {
	v := num / den
	return &v
}

// clearWhenRemoved zeroes a contribution once its subsystem is no longer
// configured. Other unmet requirements keep the stored value.
func clearWhenRemoved(c energymodel.Contribution, subsystem Requirement) func(*pass, Requirement) {
	return func(p *pass, missing Requirement) {
		if missing == subsystem {
			p.setContribution(c, 0)
		}
	}
}

// inputPUEStep computes PUE from the two measured inputs.
func inputPUEStep(name string) Step {
	return Step{
		Name:     name,
		Requires: []Requirement{NeedITInput, NeedDCInput},
		Run: func(p *pass) error {
			r := &p.rec.Result
			p.setOptional(energymodel.KindResult, "pue_calc_input", &r.Calculated.PUEInput, ratio(r.EDCInputKWh, r.EITInputKWh))
			return nil
		},
		OnSkip: func(p *pass, _ Requirement) {
			p.setOptional(energymodel.KindResult, "pue_calc_input", &p.rec.Result.Calculated.PUEInput, nil)
		},
	}
}

// calculatedPUEStep computes PUE from the modeled facility energy.
func calculatedPUEStep() Step {
	return Step{
		Name:     "calculated_pue",
		Requires: []Requirement{NeedITInput},
		Run: func(p *pass) error {
			r := &p.rec.Result
			p.setOptional(energymodel.KindResult, "pue_calc", &r.Calculated.PUE, ratio(r.Calculated.EDCKWh, r.EITInputKWh))
			return nil
		},
		OnSkip: func(p *pass, _ Requirement) {
			p.setOptional(energymodel.KindResult, "pue_calc", &p.rec.Result.Calculated.PUE, nil)
		},
	}
}

// upsLossesStep charges the conversion loss of the UPS feeding the IT load.
func upsLossesStep() Step {
	return Step{
		Name:     "ups_losses",
		Requires: []Requirement{NeedUPS, NeedITInput},
		OnSkip:   clearWhenRemoved(energymodel.ContribUPS, NeedUPS),
		Run: func(p *pass) error {
			ups := p.rec.UPS
			it := p.rec.Result.EITInputKWh

			if ups.InstalledCapacityKW > 0 {
				util := (it / energymodel.HoursPerYear) / ups.InstalledCapacityKW * 100
				p.setOptional(energymodel.KindUPS, "utilization_percent", &ups.Calculated.UtilizationPercent, &util)
			}

			if ups.EfficiencyPercent == 0 {
				return skip("efficiency_missing", nil)
			}
			input := it / (ups.EfficiencyPercent / 100)
			p.setContribution(energymodel.ContribUPS, input-it)
			return nil
		},
	}
}

// transformerLossesStep charges no-load and load-dependent transformer losses
// at the average utilization implied by the facility energy.
func transformerLossesStep() Step {
	return Step{
		Name:     "transformer_losses",
		Requires: []Requirement{NeedTransformer, NeedDCInput},
		OnSkip:   clearWhenRemoved(energymodel.ContribTransformer, NeedTransformer),
		Run: func(p *pass) error {
			tx := p.rec.Transformer

			installed := tx.UnitCapacityKW * float64(tx.Quantity)
			if installed <= 0 {
				return skip("no_installed_capacity", nil)
			}

			core, load, err := transformerLossFactors(p, tx)
			if err != nil {
				return err
			}

			avgKW := p.rec.Result.EDCInputKWh / energymodel.HoursPerYear
			util := avgKW / installed
			factor := core + load*util
			lossKW := installed * factor

			c := &tx.Calculated
			p.setOptional(energymodel.KindTransformer, "core_loss_factor_percent", &c.CoreLoss, &core)
			p.setOptional(energymodel.KindTransformer, "load_loss_factor_percent", &c.LoadLoss, &load)
			p.setOptional(energymodel.KindTransformer, "total_installed_capacity_kw", &c.TotalInstalledCapacityKW, &installed)
			p.setOptional(energymodel.KindTransformer, "e_dc_power_kw", &c.EDCPowerKW, &avgKW)
			p.setOptional(energymodel.KindTransformer, "average_utilization", &c.AverageUtilization, &util)
			p.setOptional(energymodel.KindTransformer, "tx_total_loss_factor_percent", &c.TotalLossFactor, &factor)
			p.setOptional(energymodel.KindTransformer, "tx_total_loss_kw", &c.TotalLossKW, &lossKW)
			p.setContribution(energymodel.ContribTransformer, lossKW*energymodel.HoursPerYear)
			return nil
		},
	}
}

// transformerLossFactors resolves each loss factor from its override, falling
// back to the catalog entry for the transformer type.
func transformerLossFactors(p *pass, tx *energymodel.Transformer) (core, load float64, err error) {
	if tx.CoreLossInput != nil && tx.LoadLossInput != nil {
		return *tx.CoreLossInput, *tx.LoadLossInput, nil
	}

	spec, err := p.catalog.Transformer(p.ctx, tx.TransformerType)
	if errors.Is(err, equipment.ErrSpecNotFound) {
		return 0, 0, skip("catalog_miss", err)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("looking up transformer type: %w", err)
	}

	core, load = spec.CoreLoss, spec.LoadLoss
	if tx.CoreLossInput != nil {
		core = *tx.CoreLossInput
	}
	if tx.LoadLossInput != nil {
		load = *tx.LoadLossInput
	}
	return core, load, nil
}

// lightingEnergyStep computes annual lighting energy over the datahall area.
func lightingEnergyStep() Step {
	return Step{
		Name:     "lighting_energy",
		Requires: []Requirement{NeedLighting, NeedDatahall},
		OnSkip:   clearWhenRemoved(energymodel.ContribLighting, NeedLighting),
		Run: func(p *pass) error {
			l := p.rec.Lighting
			area := p.rec.Datahall.AreaM2
			if area <= 0 {
				return skip("datahall_area_missing", nil)
			}

			load, err := lightingLoad(p, l)
			if err != nil {
				return err
			}
			hours, err := lightingHours(p, l)
			if err != nil {
				return err
			}

			p.setOptional(energymodel.KindLighting, "lighting_load_wm2", &l.Calculated.LightingLoadWm2, &load)
			p.setOptional(energymodel.KindLighting, "hours_per_year", &l.Calculated.HoursPerYear, &hours)
			p.setContribution(energymodel.ContribLighting, load*area*hours/1000)
			return nil
		},
	}
}

func lightingLoad(p *pass, l *energymodel.Lighting) (float64, error) {
	if l.LightingLoadInputWm2 != nil {
		return *l.LightingLoadInputWm2, nil
	}
	spec, err := p.catalog.Lighting(p.ctx, l.LightingType)
	if errors.Is(err, equipment.ErrSpecNotFound) {
		return 0, skip("catalog_miss", err)
	}
	if err != nil {
		return 0, fmt.Errorf("looking up lighting type: %w", err)
	}
	return spec.LightingLoadW, nil
}

// lightingHours falls back to continuous operation when neither an override
// nor a known control strategy gives the burn hours.
func lightingHours(p *pass, l *energymodel.Lighting) (float64, error) {
	if l.OnForHoursYear != nil {
		return *l.OnForHoursYear, nil
	}
	if l.LightingControls == "" {
		return energymodel.HoursPerYear, nil
	}
	spec, err := p.catalog.LightingControl(p.ctx, l.LightingControls)
	if errors.Is(err, equipment.ErrSpecNotFound) {
		p.logger.Debug("Unknown lighting control, assuming continuous operation",
			zap.String("lighting_controls", l.LightingControls))
		return energymodel.HoursPerYear, nil
	}
	if err != nil {
		return 0, fmt.Errorf("looking up lighting control: %w", err)
	}
	return spec.HoursPerYear, nil
}

// placeholderStep holds a contribution whose subsystem model is not built at
// zero.
func placeholderStep(name string, c energymodel.Contribution) Step {
	return Step{
		Name: name,
		Run: func(p *pass) error {
			p.setContribution(c, 0)
			return nil
		},
	}
}

// totalEnergyStep sums the IT energy and every subsystem contribution.
func totalEnergyStep() Step {
	return Step{
		Name: "total_energy",
		Run: func(p *pass) error {
			r := &p.rec.Result
			total := r.EITInputKWh + r.Calculated.Contributions.Sum()
			p.set(energymodel.KindResult, "e_dc_calc_kwh", &r.Calculated.EDCKWh, total)
			return nil
		},
	}
}

// unaccountedEnergyStep is the gap between measured and modeled facility energy.
func unaccountedEnergyStep() Step {
	return Step{
		Name: "unaccounted_energy",
		Run: func(p *pass) error {
			r := &p.rec.Result
			p.set(energymodel.KindResult, "e_un_accounted_calc_kwh", &r.Calculated.UnaccountedKWh, r.EDCInputKWh-r.Calculated.EDCKWh)
			return nil
		},
	}
}
