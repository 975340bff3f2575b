package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/jerkytreats/cdnhealth/internal/healthcheck"
)

const ReportNoColorKey = "report.no_color"

// TextOptions controls RenderText.
type TextOptions struct {
	NoColor bool
}

type palette struct {
	Title   func(format string, a ...interface{}) string
	Success func(format string, a ...interface{}) string
	Warning func(format string, a ...interface{}) string
	Error   func(format string, a ...interface{}) string
}

func newPalette(noColor bool) palette {
	mk := func(attrs ...color.Attribute) func(string, ...interface{}) string {
		c := color.New(attrs...)
		if noColor {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
		return c.SprintfFunc()
	}
	return palette{
		Title:   mk(color.Bold),
		Success: mk(color.FgGreen),
		Warning: mk(color.FgYellow),
		Error:   mk(color.FgRed),
	}
}

func (p palette) tier(t Tier) func(string, ...interface{}) string {
	switch t {
	case TierExcellent, TierGood:
		return p.Success
	case TierFair:
		return p.Warning
	default:
		return p.Error
	}
}

// RenderText writes a multi-section, human-readable report.
func RenderText(w io.Writer, r *HealthReport, opts TextOptions) error {
	p := newPalette(opts.NoColor)
	rule := strings.Repeat("=", 60)
	res := r.Results

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, p.Title("CDN Resource Health Report"))
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Overall score: %s\n\n", p.tier(r.Tier)("%.2f (%s)", r.OverallScore, r.Tier))

	fmt.Fprintln(w, p.Title("Dimensions"))
	dims := tablewriter.NewTable(w)
	dims.Header([]string{"Dimension", "Total", "Passed", "Failed", "Rate"})
	rows := [][]string{
		dimensionRow("Availability", res.Availability.Total, res.Availability.Matching, res.Availability.Rate),
		dimensionRow("Consistency", res.Consistency.Total, res.Consistency.Matching, res.Consistency.Rate),
		dimensionRow("Cache validity", res.Cache.Total, res.Cache.Matching, res.Cache.Rate),
		// Broken links: "passed" are working URLs, the rate is the defect rate.
		dimensionRow("Broken links", res.BrokenLinks.Total, res.BrokenLinks.Total-res.BrokenLinks.Matching, res.BrokenLinks.Rate),
	}
	for _, row := range rows {
		if err := dims.Append(row); err != nil {
			return err
		}
	}
	if err := dims.Render(); err != nil {
		return err
	}

	perf := res.Performance
	fmt.Fprintln(w)
	fmt.Fprintln(w, p.Title("Performance"))
	if perf.Responded == 0 {
		fmt.Fprintln(w, "No resource responded.")
	} else {
		fmt.Fprintf(w, "Average %.2fms, min %dms, max %dms (%d/%d responded)\n",
			perf.AverageMs, perf.MinMs, perf.MaxMs, perf.Responded, perf.Total)
	}

	if failed := failures(res); len(failed) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, p.Title("Failed resources"))
		t := tablewriter.NewTable(w)
		t.Header([]string{"URL", "Status", "Error"})
		for _, f := range failed {
			if err := t.Append([]string{f.URL, statusText(f.Status), f.Error}); err != nil {
				return err
			}
		}
		if err := t.Render(); err != nil {
			return err
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, p.Title("Recommendations"))
	for i, rec := range r.Recommendations {
		line := fmt.Sprintf("%d. %s", i+1, rec)
		if rec == AllClearMessage {
			fmt.Fprintln(w, p.Success("%s", line))
		} else {
			fmt.Fprintln(w, p.Warning("%s", line))
		}
	}
	fmt.Fprintln(w, rule)
	return nil
}

func dimensionRow(name string, total, passed int, rate float64) []string {
	return []string{name, strconv.Itoa(total), strconv.Itoa(passed), strconv.Itoa(total - passed), healthcheck.FormatRate(rate)}
}

func failures(r *healthcheck.Results) []healthcheck.ProbeResult {
	var out []healthcheck.ProbeResult
	for _, res := range r.Availability.Results {
		if !res.Matched() {
			out = append(out, res)
		}
	}
	return out
}

func statusText(status int) string {
	if status == 0 {
		return "-"
	}
	return strconv.Itoa(status)
}
