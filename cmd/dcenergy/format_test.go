package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/example/dc-energy/pkg/energymodel"
	"github.com/example/dc-energy/pkg/equipment"
	"github.com/example/dc-energy/pkg/history"
	"github.com/example/dc-energy/pkg/report"
	"github.com/stretchr/testify/assert"
)

func TestPrintProject(t *testing.T) {
	pueIn, pue := 1.23456, 1.0
	rec := &energymodel.Records{
		Project: energymodel.Project{ID: "p-1", Name: "Baseline"},
		Result: energymodel.EnergyResult{
			EITInputKWh: 1000,
			EDCInputKWh: 1234.56,
			Calculated: energymodel.ResultValues{
				PUEInput: &pueIn,
				EDCKWh:   1000,
				PUE:      &pue,
				Contributions: energymodel.Contributions{
					TXKWh: 148920,
				},
			},
		},
	}

	var buf bytes.Buffer
	printProject(&buf, "DC1", rec)
	out := buf.String()

	assert.Contains(t, out, "DC1 / Baseline")
	assert.Contains(t, out, "project id: p-1")
	assert.Contains(t, out, "1.235")
	assert.Contains(t, out, "transformer (kWh)")
	assert.Contains(t, out, "148920.0")
	assert.NotContains(t, out, "lighting (kWh)", "zero contributions are omitted")
}

func TestPrintReportUndefinedPUE(t *testing.T) {
	rows := []report.Row{{Datacenter: "DC1", Project: "Empty"}}

	var buf bytes.Buffer
	printReport(&buf, rows, report.Summarize(rows))
	out := buf.String()

	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "PUE (input): no projects")
}

func TestPrintCatalog(t *testing.T) {
	var buf bytes.Buffer
	printCatalog(&buf, equipment.DefaultRows())

	assert.Contains(t, buf.String(), "Dry-Type")
	assert.Contains(t, buf.String(), "0.0110")
	assert.Contains(t, buf.String(), "Occupancy Sensor")
}

func TestPrintHistory(t *testing.T) {
	pue := 1.095
	snaps := []history.Snapshot{
		{Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), ITKWh: 8_000_000, PUEInput: &pue},
	}

	var buf bytes.Buffer
	printHistory(&buf, snaps)

	assert.Contains(t, buf.String(), "2024-03-01T12:00:00Z")
	assert.Contains(t, buf.String(), "8000000.0")
	assert.Contains(t, buf.String(), "1.095")
}
