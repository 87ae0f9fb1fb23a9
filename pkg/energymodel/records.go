package energymodel

import (
	"fmt"
	"sort"
)

// Records is everything attached to one project: the aggregate and at most
// one configuration per subsystem. A nil pointer means the subsystem is not
// configured.
type Records struct {
	Project      Project              `json:"project"`
	Result       EnergyResult         `json:"energy_result"`
	Datahall     *Datahall            `json:"datahall,omitempty"`
	Lighting     *Lighting            `json:"lighting,omitempty"`
	Transformer  *Transformer         `json:"transformer,omitempty"`
	UPS          *UPS                 `json:"ups,omitempty"`
	CRAH         *CRAH                `json:"crah,omitempty"`
	CHWPump      *CHWPump             `json:"chw_pump,omitempty"`
	ChilledWater *ChilledWaterSetting `json:"chilled_water_settings,omitempty"`
	Chiller      *Chiller             `json:"chiller_settings,omitempty"`

	changed map[Kind]bool
}

func newRecords(p Project) *Records {
	return &Records{Project: p}
}

// PutConfig stores the user-owned fields of cfg. Calculated fields already on
// the stored config are kept; values supplied in cfg.Calculated are ignored.
func (r *Records) PutConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	switch c := cfg.(type) {
	case Datahall:
		c = c.withDefaults()
		r.Datahall = &c
	case *Datahall:
		return r.PutConfig(*c)
	case Lighting:
		c.Calculated = LightingCalculated{}
		if r.Lighting != nil {
			c.Calculated = r.Lighting.Calculated
		}
		c.LightingLoadInputWm2 = cloneFloat(c.LightingLoadInputWm2)
		c.OnForHoursYear = cloneFloat(c.OnForHoursYear)
		r.Lighting = &c
	case *Lighting:
		return r.PutConfig(*c)
	case Transformer:
		c.Calculated = TransformerCalculated{}
		if r.Transformer != nil {
			c.Calculated = r.Transformer.Calculated
		}
		c.CoreLossInput = cloneFloat(c.CoreLossInput)
		c.LoadLossInput = cloneFloat(c.LoadLossInput)
		r.Transformer = &c
	case *Transformer:
		return r.PutConfig(*c)
	case UPS:
		c.Calculated = UPSCalculated{}
		if r.UPS != nil {
			c.Calculated = r.UPS.Calculated
		}
		r.UPS = &c
	case *UPS:
		return r.PutConfig(*c)
	case CRAH:
		c.QuantityInstalledInput = cloneInt(c.QuantityInstalledInput)
		r.CRAH = &c
	case *CRAH:
		return r.PutConfig(*c)
	case CHWPump:
		r.CHWPump = &c
	case *CHWPump:
		return r.PutConfig(*c)
	case ChilledWaterSetting:
		r.ChilledWater = &c
	case *ChilledWaterSetting:
		return r.PutConfig(*c)
	case Chiller:
		r.Chiller = &c
	case *Chiller:
		return r.PutConfig(*c)
	default:
		return fmt.Errorf("unsupported config type %T", cfg)
	}
	r.MarkChanged(cfg.Kind())
	return nil
}

// RemoveConfig detaches the subsystem of kind k. It reports whether one was attached.
func (r *Records) RemoveConfig(k Kind) bool {
	var had bool
	switch k {
	case KindDatahall:
		had, r.Datahall = r.Datahall != nil, nil
	case KindLighting:
		had, r.Lighting = r.Lighting != nil, nil
	case KindTransformer:
		had, r.Transformer = r.Transformer != nil, nil
	case KindUPS:
		had, r.UPS = r.UPS != nil, nil
	case KindCRAH:
		had, r.CRAH = r.CRAH != nil, nil
	case KindCHWPump:
		had, r.CHWPump = r.CHWPump != nil, nil
	case KindChilledWater:
		had, r.ChilledWater = r.ChilledWater != nil, nil
	case KindChiller:
		had, r.Chiller = r.Chiller != nil, nil
	}
	if had {
		r.MarkChanged(k)
	}
	return had
}

// Has reports whether a subsystem of kind k is configured.
func (r *Records) Has(k Kind) bool {
	switch k {
	case KindResult:
		return true
	case KindDatahall:
		return r.Datahall != nil
	case KindLighting:
		return r.Lighting != nil
	case KindTransformer:
		return r.Transformer != nil
	case KindUPS:
		return r.UPS != nil
	case KindCRAH:
		return r.CRAH != nil
	case KindCHWPump:
		return r.CHWPump != nil
	case KindChilledWater:
		return r.ChilledWater != nil
	case KindChiller:
		return r.Chiller != nil
	}
	return false
}

// SetEnergyInputs replaces the two measured annual figures of the aggregate.
func (r *Records) SetEnergyInputs(itKWh, dcKWh float64) error {
	if err := ValidateEnergyInputs(itKWh, dcKWh); err != nil {
		return err
	}
	if r.Result.EITInputKWh == itKWh && r.Result.EDCInputKWh == dcKWh {
		return nil
	}
	r.Result.EITInputKWh = itKWh
	r.Result.EDCInputKWh = dcKWh
	r.MarkChanged(KindResult)
	return nil
}

// ValidateEnergyInputs checks the two measured annual figures.
func ValidateEnergyInputs(itKWh, dcKWh float64) error {
	if !finite(itKWh) || !finite(dcKWh) {
		return fmt.Errorf("%s: energy inputs must be finite numbers", KindResult)
	}
	if itKWh < 0 || dcKWh < 0 {
		return fmt.Errorf("%s: energy inputs must not be negative", KindResult)
	}
	return nil
}

// MarkChanged flags a record as needing to be persisted.
func (r *Records) MarkChanged(k Kind) {
	if r.changed == nil {
		r.changed = make(map[Kind]bool)
	}
	r.changed[k] = true
}

// Changed lists the kinds modified since the records were loaded.
func (r *Records) Changed() []Kind {
	out := make([]Kind, 0, len(r.changed))
	for k := range r.changed {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Records) resetChanges() {
	r.changed = nil
}

// Clone returns a deep copy with no pending changes.
func (r *Records) Clone() *Records {
	out := &Records{
		Project: r.Project,
		Result:  r.Result,
	}
	out.Result.Calculated.PUEInput = cloneFloat(r.Result.Calculated.PUEInput)
	out.Result.Calculated.PUE = cloneFloat(r.Result.Calculated.PUE)

	if r.Datahall != nil {
		d := *r.Datahall
		out.Datahall = &d
	}
	if r.Lighting != nil {
		l := *r.Lighting
		l.LightingLoadInputWm2 = cloneFloat(l.LightingLoadInputWm2)
		l.OnForHoursYear = cloneFloat(l.OnForHoursYear)
		l.Calculated = LightingCalculated{
			LightingLoadWm2: cloneFloat(l.Calculated.LightingLoadWm2),
			HoursPerYear:    cloneFloat(l.Calculated.HoursPerYear),
		}
		out.Lighting = &l
	}
	if r.Transformer != nil {
		t := *r.Transformer
		t.CoreLossInput = cloneFloat(t.CoreLossInput)
		t.LoadLossInput = cloneFloat(t.LoadLossInput)
		c := t.Calculated
		t.Calculated = TransformerCalculated{
			CoreLoss:                 cloneFloat(c.CoreLoss),
			LoadLoss:                 cloneFloat(c.LoadLoss),
			TotalInstalledCapacityKW: cloneFloat(c.TotalInstalledCapacityKW),
			EDCPowerKW:               cloneFloat(c.EDCPowerKW),
			AverageUtilization:       cloneFloat(c.AverageUtilization),
			TotalLossFactor:          cloneFloat(c.TotalLossFactor),
			TotalLossKW:              cloneFloat(c.TotalLossKW),
		}
		out.Transformer = &t
	}
	if r.UPS != nil {
		u := *r.UPS
		u.Calculated.UtilizationPercent = cloneFloat(u.Calculated.UtilizationPercent)
		out.UPS = &u
	}
	if r.CRAH != nil {
		c := *r.CRAH
		c.QuantityInstalledInput = cloneInt(c.QuantityInstalledInput)
		out.CRAH = &c
	}
	if r.CHWPump != nil {
		p := *r.CHWPump
		out.CHWPump = &p
	}
	if r.ChilledWater != nil {
		s := *r.ChilledWater
		out.ChilledWater = &s
	}
	if r.Chiller != nil {
		c := *r.Chiller
		out.Chiller = &c
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
