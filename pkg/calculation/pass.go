package calculation

import (
	"context"

	"github.com/example/dc-energy/pkg/energymodel"
	"github.com/example/dc-energy/pkg/equipment"
	"go.uber.org/zap"
)

// pass is the state of one recalculation over a project's records.
type pass struct {
	ctx     context.Context
	rec     *energymodel.Records
	catalog equipment.Catalog
	logger  *zap.Logger

	writes  int
	written map[energymodel.Kind]int
	skipped []string
}

// set writes v into dst only when it differs from the stored value.
func (p *pass) set(kind energymodel.Kind, name string, dst *float64, v float64) {
	if *dst == v {
		return
	}
	p.logger.Debug("Recomputed field",
		zap.String("record", string(kind)),
		zap.String("field", name),
		zap.Float64("old", *dst),
		zap.Float64("new", v))
	*dst = v
	p.changed(kind)
}

// setOptional is set for fields that may be undefined. A nil v clears dst.
func (p *pass) setOptional(kind energymodel.Kind, name string, dst **float64, v *float64) {
	old := *dst
	if old == nil && v == nil {
		return
	}
	if old != nil && v != nil && *old == *v {
		return
	}

	fields := []zap.Field{zap.String("record", string(kind)), zap.String("field", name)}
	if old != nil {
		fields = append(fields, zap.Float64("old", *old))
	}
	if v != nil {
		fields = append(fields, zap.Float64("new", *v))
	} else {
		fields = append(fields, zap.String("new", "undefined"))
	}
	p.logger.Debug("Recomputed field", fields...)

	if v == nil {
		*dst = nil
	} else {
		nv := *v
		*dst = &nv
	}
	p.changed(kind)
}

func (p *pass) setContribution(c energymodel.Contribution, v float64) {
	p.set(energymodel.KindResult, "e_"+string(c)+"_kwh", p.rec.Result.Calculated.Contributions.Field(c), v)
}

func (p *pass) changed(kind energymodel.Kind) {
	p.rec.MarkChanged(kind)
	p.writes++
	if p.written == nil {
		p.written = make(map[energymodel.Kind]int)
	}
	p.written[kind]++
}
