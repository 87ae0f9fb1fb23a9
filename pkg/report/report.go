// Package report summarizes calculated projects across a portfolio.
package report

import (
	"math"
	"sort"

	"github.com/example/dc-energy/pkg/energymodel"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ConfidenceLevel is the coverage of the interval reported around mean PUE.
const ConfidenceLevel = 0.95

// Row is one project's figures.
type Row struct {
	Datacenter     string
	Project        string
	ITKWh          float64
	DCKWh          float64
	EDCCalcKWh     float64
	UnaccountedKWh float64
	Contributions  energymodel.Contributions
	PUEInput       *float64
	PUE            *float64
}

// NewRow copies the aggregate of rec into a row.
func NewRow(datacenter string, rec *energymodel.Records) Row {
	r := rec.Result
	row := Row{
		Datacenter:     datacenter,
		Project:        rec.Project.Name,
		ITKWh:          r.EITInputKWh,
		DCKWh:          r.EDCInputKWh,
		EDCCalcKWh:     r.Calculated.EDCKWh,
		UnaccountedKWh: r.Calculated.UnaccountedKWh,
		Contributions:  r.Calculated.Contributions,
	}
	if v := r.Calculated.PUEInput; v != nil {
		pue := *v
		row.PUEInput = &pue
	}
	if v := r.Calculated.PUE; v != nil {
		pue := *v
		row.PUE = &pue
	}
	return row
}

// Stats describes one PUE series.
type Stats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
	// CILow and CIHigh bound the mean at ConfidenceLevel. Both equal the
	// mean when fewer than two values exist.
	CILow  float64 `json:"ci_low"`
	CIHigh float64 `json:"ci_high"`
}

// Summary aggregates a portfolio.
type Summary struct {
	Projects            int     `json:"projects"`
	TotalITKWh          float64 `json:"total_e_it_input_kwh"`
	TotalDCKWh          float64 `json:"total_e_dc_input_kwh"`
	TotalEDCCalcKWh     float64 `json:"total_e_dc_calc_kwh"`
	TotalUnaccountedKWh float64 `json:"total_e_un_accounted_calc_kwh"`
	// PortfolioPUE is the input PUE weighted by IT energy, nil when no
	// project defines one.
	PortfolioPUE *float64 `json:"portfolio_pue,omitempty"`
	PUEInput     Stats    `json:"pue_calc_input"`
	PUE          Stats    `json:"pue_calc"`
}

// Summarize computes totals and PUE statistics over rows. Projects with an
// undefined PUE are left out of that PUE's statistics.
func Summarize(rows []Row) Summary {
	s := Summary{Projects: len(rows)}

	var inputs, inputWeights, calculated []float64
	for _, r := range rows {
		s.TotalITKWh += r.ITKWh
		s.TotalDCKWh += r.DCKWh
		s.TotalEDCCalcKWh += r.EDCCalcKWh
		s.TotalUnaccountedKWh += r.UnaccountedKWh

		if r.PUEInput != nil {
			inputs = append(inputs, *r.PUEInput)
			inputWeights = append(inputWeights, r.ITKWh)
		}
		if r.PUE != nil {
			calculated = append(calculated, *r.PUE)
		}
	}

	if len(inputs) > 0 {
		weighted := stat.Mean(inputs, inputWeights)
		s.PortfolioPUE = &weighted
	}
	s.PUEInput = describe(inputs)
	s.PUE = describe(calculated)
	return s
}

func describe(data []float64) Stats {
	if len(data) == 0 {
		return Stats{}
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	mean := stat.Mean(data, nil)
	s := Stats{
		Count:  len(data),
		Mean:   mean,
		Min:    sorted[0],
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P90:    stat.Quantile(0.9, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
		CILow:  mean,
		CIHigh: mean,
	}
	if len(data) < 2 {
		return s
	}

	s.StdDev = math.Sqrt(stat.Variance(data, nil))
	n := float64(len(data))
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 1}.Quantile(1 - (1-ConfidenceLevel)/2)
	margin := t * s.StdDev / math.Sqrt(n)
	s.CILow = mean - margin
	s.CIHigh = mean + margin
	return s
}
