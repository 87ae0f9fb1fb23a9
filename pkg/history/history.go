// Package history keeps time-stamped PUE snapshots of calculated projects.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/example/dc-energy/pkg/energymodel"
)

// ErrNoHistory is returned when a project has no recorded snapshot.
var ErrNoHistory = errors.New("no history recorded")

// DefaultRetention bounds how long snapshots are kept.
const DefaultRetention = 30 * 24 * time.Hour

// Snapshot is a project's aggregate at the end of one recalculation.
type Snapshot struct {
	ProjectID      string    `json:"project_id"`
	Timestamp      time.Time `json:"timestamp"`
	ITKWh          float64   `json:"e_it_input_kwh"`
	DCKWh          float64   `json:"e_dc_input_kwh"`
	EDCCalcKWh     float64   `json:"e_dc_calc_kwh"`
	UnaccountedKWh float64   `json:"e_un_accounted_calc_kwh"`
	PUEInput       *float64  `json:"pue_calc_input,omitempty"`
	PUE            *float64  `json:"pue_calc,omitempty"`
}

// NewSnapshot captures r at ts.
func NewSnapshot(projectID string, r energymodel.EnergyResult, ts time.Time) Snapshot {
	s := Snapshot{
		ProjectID:      projectID,
		Timestamp:      ts,
		ITKWh:          r.EITInputKWh,
		DCKWh:          r.EDCInputKWh,
		EDCCalcKWh:     r.Calculated.EDCKWh,
		UnaccountedKWh: r.Calculated.UnaccountedKWh,
	}
	if v := r.Calculated.PUEInput; v != nil {
		pue := *v
		s.PUEInput = &pue
	}
	if v := r.Calculated.PUE; v != nil {
		pue := *v
		s.PUE = &pue
	}
	return s
}

// Recorder accepts snapshots and drops them once their project is gone.
type Recorder interface {
	Record(ctx context.Context, s Snapshot) error
	// Delete removes every snapshot of a project. Unknown projects are not an error.
	Delete(ctx context.Context, projectID string) error
}

// Store records snapshots and reads them back.
type Store interface {
	Recorder
	// Current returns the latest snapshot of a project.
	Current(ctx context.Context, projectID string) (Snapshot, error)
	// Since returns a project's snapshots at or after since, oldest first.
	Since(ctx context.Context, projectID string, since time.Time) ([]Snapshot, error)
}
