package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"hrexport/internal/export"
	"hrexport/internal/zones"
)

const (
	barWidth    = 30
	chartWidth  = 50
	chartHeight = 8
)

// RenderSummary renders the end-of-run card printed after an export
func RenderSummary(res *export.Result) string {
	if res == nil {
		return ""
	}

	header := headerStyle.Render(fmt.Sprintf("Heart rate export · %s", res.Day.Format("Mon, Jan 2 2006")))

	metrics := []string{
		RenderMetric("Samples", fmt.Sprintf("%d", len(res.Samples))),
		RenderMetric("With heart rate", fmt.Sprintf("%d", res.Classified)),
	}
	if res.RestingHR != nil {
		metrics = append(metrics, RenderMetric("Resting HR", fmt.Sprintf("%d bpm", *res.RestingHR)))
	}
	metrics = append(metrics, RenderMetric("Took", res.Duration.Round(10*time.Millisecond).String()))

	sections := []string{
		header,
		cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
			append([]string{cardTitleStyle.Render("Day")}, metrics...)...)),
		cardStyle.Render(renderZones(res.Distribution)),
	}

	if chart := renderHeartRateChart(res.Samples); chart != "" {
		sections = append(sections, chart)
	}
	if len(res.Files) > 0 {
		sections = append(sections, renderFiles(res.Files))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func renderZones(d zones.Distribution) string {
	title := cardTitleStyle.Render("Zones")
	if d.Len() == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, warningStyle.Render("No heart rate samples for this day"))
	}

	lines := []string{title}
	for i, s := range d.Shares() {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Left,
			zoneLabelStyle.Render(s.Zone),
			RenderZoneBar(i, s.Fraction, barWidth),
			metricValueStyle.Render(fmt.Sprintf(" %5.1f%%", s.Fraction*100)),
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderHeartRateChart plots the day's readings, skipping gaps
func renderHeartRateChart(samples []zones.Sample) string {
	values := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.Value != nil {
			values = append(values, float64(*s.Value))
		}
	}
	if len(values) < 2 {
		return ""
	}

	graph := asciigraph.Plot(values,
		asciigraph.Height(chartHeight),
		asciigraph.Width(chartWidth),
		asciigraph.Precision(0),
	)
	return chartTitleStyle.Render("Heart rate (bpm)") + "\n" + graph
}

func renderFiles(files []export.File) string {
	var b strings.Builder
	b.WriteString(cardTitleStyle.Render("Files"))
	b.WriteString("\n")
	for _, f := range files {
		fmt.Fprintf(&b, "%s %s\n",
			helpKeyStyle.Render(fmt.Sprintf("%-10s", f.Kind)),
			helpDescStyle.Render(filepath.Base(f.Path)))
	}
	return strings.TrimRight(b.String(), "\n")
}
