package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/example/dc-energy/pkg/energymodel"
	"github.com/example/dc-energy/pkg/equipment"
	"github.com/example/dc-energy/pkg/history"
	"github.com/example/dc-energy/pkg/report"
)

func formatPUE(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", *v)
}

func formatKWh(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

func printProject(w io.Writer, datacenter string, rec *energymodel.Records) {
	r := rec.Result

	fmt.Fprintf(w, "%s / %s\n", datacenter, rec.Project.Name)
	fmt.Fprintln(w, "==================================")
	if rec.Project.ID != "" {
		fmt.Fprintf(w, "project id: %s\n", rec.Project.ID)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "E_IT input (kWh)\t%s\t\n", formatKWh(r.EITInputKWh))
	fmt.Fprintf(tw, "E_DC input (kWh)\t%s\t\n", formatKWh(r.EDCInputKWh))
	fmt.Fprintf(tw, "\t\t\n")
	for _, c := range energymodel.AllContributions {
		v := *r.Calculated.Contributions.Field(c)
		if v == 0 {
			continue
		}
		fmt.Fprintf(tw, "%s (kWh)\t%s\t\n", c, formatKWh(v))
	}
	fmt.Fprintf(tw, "\t\t\n")
	fmt.Fprintf(tw, "E_DC calculated (kWh)\t%s\t\n", formatKWh(r.Calculated.EDCKWh))
	fmt.Fprintf(tw, "Unaccounted (kWh)\t%s\t\n", formatKWh(r.Calculated.UnaccountedKWh))
	fmt.Fprintf(tw, "PUE (input)\t%s\t\n", formatPUE(r.PUEInputRounded()))
	fmt.Fprintf(tw, "PUE (calculated)\t%s\t\n", formatPUE(r.PUECalcRounded()))
	tw.Flush()
}

func printReport(w io.Writer, rows []report.Row, s report.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATACENTER\tPROJECT\tE_IT kWh\tE_DC kWh\tE_DC CALC kWh\tUNACCOUNTED kWh\tPUE IN\tPUE CALC")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Datacenter, r.Project,
			formatKWh(r.ITKWh), formatKWh(r.DCKWh),
			formatKWh(r.EDCCalcKWh), formatKWh(r.UnaccountedKWh),
			formatPUE(r.PUEInput), formatPUE(r.PUE))
	}
	tw.Flush()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary")
	fmt.Fprintln(w, "-------")
	fmt.Fprintf(w, "  Projects:              %d\n", s.Projects)
	fmt.Fprintf(w, "  Total E_IT (kWh):      %s\n", formatKWh(s.TotalITKWh))
	fmt.Fprintf(w, "  Total E_DC (kWh):      %s\n", formatKWh(s.TotalDCKWh))
	fmt.Fprintf(w, "  Total unaccounted:     %s\n", formatKWh(s.TotalUnaccountedKWh))
	fmt.Fprintf(w, "  Portfolio PUE:         %s\n", formatPUE(s.PortfolioPUE))
	fmt.Fprintln(w)
	printStats(w, "PUE (input)", s.PUEInput)
	printStats(w, "PUE (calculated)", s.PUE)
}

func printStats(w io.Writer, label string, st report.Stats) {
	if st.Count == 0 {
		fmt.Fprintf(w, "  %s: no projects\n", label)
		return
	}
	fmt.Fprintf(w, "  %s over %d projects\n", label, st.Count)
	fmt.Fprintf(w, "    mean %.3f  std-dev %.3f  %.0f%% CI [%.3f, %.3f]\n",
		st.Mean, st.StdDev, report.ConfidenceLevel*100, st.CILow, st.CIHigh)
	fmt.Fprintf(w, "    min %.3f  median %.3f  p90 %.3f  max %.3f\n",
		st.Min, st.Median, st.P90, st.Max)
}

func printCatalog(w io.Writer, rows equipment.Rows) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "LIGHTING TYPE\tLOAD W/m2")
	for _, l := range rows.Lighting {
		fmt.Fprintf(tw, "%s\t%.1f\n", l.LightingType, l.LightingLoadW)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "LIGHTING CONTROL\tHOURS/YEAR")
	for _, c := range rows.LightingControls {
		fmt.Fprintf(tw, "%s\t%.0f\n", c.ControlType, c.HoursPerYear)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "TRANSFORMER TYPE\tCORE LOSS\tLOAD LOSS\tAPPLICATION")
	for _, t := range rows.Transformers {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%s\n", t.TransformerType, t.CoreLoss, t.LoadLoss, t.Application)
	}
	tw.Flush()
}

func printHistory(w io.Writer, snaps []history.Snapshot) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tE_IT kWh\tE_DC kWh\tE_DC CALC kWh\tPUE IN\tPUE CALC")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Timestamp.Format(time.RFC3339),
			formatKWh(s.ITKWh), formatKWh(s.DCKWh), formatKWh(s.EDCCalcKWh),
			formatPUE(s.PUEInput), formatPUE(s.PUE))
	}
	tw.Flush()
}
