package tui

import (
	"fmt"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/mlowicki/chartwell/internal/chart"
)

// renderBarChart draws the visible window of a timeline. Zero buckets render
// as empty slots so gaps in the data stay visible.
func renderBarChart(visible []chart.Bucket, p chart.Period, width, height int) string {
	if len(visible) == 0 || width <= 0 || height <= 0 {
		return dimStyle.Render("no data loaded")
	}

	bc := barchart.New(width, height)
	stride := p.AxisLabelStride()
	for i, b := range visible {
		label := ""
		if stride > 0 && i%stride == 0 {
			label = bucketLabel(b.Date, p)
		}
		bc.Push(barchart.BarData{
			Label: label,
			Values: []barchart.BarValue{
				{Name: "value", Value: b.Value, Style: barStyle},
			},
		})
	}
	bc.Draw()
	return bc.View()
}

// bucketLabel formats a bucket's axis label at the period's granularity.
func bucketLabel(date time.Time, p chart.Period) string {
	switch p {
	case chart.PeriodDay:
		return date.Format("15")
	case chart.PeriodWeek:
		return date.Format("Mon")
	case chart.PeriodMonth:
		return date.Format("2")
	case chart.PeriodSixMonth:
		return date.Format("Jan 2")
	case chart.PeriodYear:
		return date.Format("Jan")
	}
	return date.Format("Jan 2")
}

// headlineLabel names the statistic shown above the chart.
func headlineLabel(p chart.Period) string {
	if p == chart.PeriodDay {
		return "Total"
	}
	return "Daily Avg"
}

func renderHeadline(label string, value float64, p chart.Period) string {
	return lipgloss.JoinHorizontal(lipgloss.Bottom,
		headlineStyle.Render(fmt.Sprintf("%.0f", value)),
		subtextStyle.Render(" "+headlineLabel(p)+" · "+label),
	)
}

func renderPeriodTabs(active chart.Period) string {
	var tabs []string
	for _, p := range chart.ValidPeriods {
		style := periodInactiveStyle
		if p == active {
			style = periodActiveStyle
		}
		tabs = append(tabs, style.Render(p.Label()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}
