package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/mlowicki/chartwell/internal/sleep"
)

var sparkBlocks = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

func renderSparkline(values []float64, w int, color lipgloss.Color) string {
	if len(values) == 0 || w < 1 {
		return ""
	}

	if len(values) > w {
		step := float64(len(values)) / float64(w)
		sampled := make([]float64, w)
		for i := 0; i < w; i++ {
			idx := int(float64(i) * step)
			if idx >= len(values) {
				idx = len(values) - 1
			}
			sampled[i] = values[idx]
		}
		values = sampled
	}

	minV, maxV := values[0], values[0]
	for _, v := range values {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}

	rng := maxV - minV
	if rng == 0 {
		rng = 1
	}

	var sb strings.Builder
	for _, v := range values {
		idx := int((v - minV) / rng * float64(len(sparkBlocks)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkBlocks) {
			idx = len(sparkBlocks) - 1
		}
		sb.WriteRune(sparkBlocks[idx])
	}

	return lipgloss.NewStyle().Foreground(color).Render(sb.String())
}

var stageColors = map[sleep.Stage]lipgloss.Color{
	sleep.StageDeep:        colorSky,
	sleep.StageCore:        colorYellow,
	sleep.StageREM:         colorTeal,
	sleep.StageAwake:       colorRed,
	sleep.StageUnspecified: colorGreen,
	sleep.StageInBed:       colorSurface1,
}

var stageOrder = []sleep.Stage{
	sleep.StageDeep,
	sleep.StageCore,
	sleep.StageREM,
	sleep.StageUnspecified,
	sleep.StageAwake,
}

func formatHours(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", h, m)
}

// renderStageBar draws the session's stage mix as a proportional bar.
func renderStageBar(dur sleep.Durations, w int) string {
	total := dur.InBed
	if total <= 0 || w < 4 {
		return ""
	}

	var sb strings.Builder
	used := 0
	for _, stage := range stageOrder {
		d, ok := dur.ByStage[stage]
		if !ok || d <= 0 {
			continue
		}
		cells := int(float64(w) * float64(d) / float64(total))
		if cells < 1 {
			cells = 1
		}
		if used+cells > w {
			cells = w - used
		}
		if cells <= 0 {
			break
		}
		sb.WriteString(lipgloss.NewStyle().Foreground(stageColors[stage]).Render(strings.Repeat("█", cells)))
		used += cells
	}
	if used < w {
		sb.WriteString(lipgloss.NewStyle().Foreground(colorSurface0).Render(strings.Repeat("░", w-used)))
	}
	return sb.String()
}

func renderSessionLine(s sleep.Session, barW int) string {
	dur := sleep.SessionDurations(s)

	date := s.Date
	if t, err := time.Parse("2006-01-02", s.Date); err == nil {
		date = t.Format("Mon Jan 2")
	}

	span := "manual entry"
	if !s.Start.IsZero() && !s.End.IsZero() {
		span = s.Start.Local().Format("15:04") + "-" + s.End.Local().Format("15:04")
	} else if s.Manual != nil {
		span = "manual " + s.Manual.Bedtime.Local().Format("15:04") + "-" + s.Manual.Waketime.Local().Format("15:04")
	}

	line := fmt.Sprintf("%s  %s  asleep %s  in bed %s",
		titleStyle.Render(fmt.Sprintf("%-11s", date)),
		subtextStyle.Render(fmt.Sprintf("%-13s", span)),
		headlineStyle.Render(formatHours(dur.Asleep)),
		subtextStyle.Render(formatHours(dur.InBed)),
	)
	if bar := renderStageBar(dur, barW); bar != "" {
		line += "\n  " + bar
	}
	return line
}

// renderSleepPanel lists the most recent sessions with a trend sparkline and
// weekly averages. Sessions arrive oldest first; display is newest first.
func renderSleepPanel(sessions []sleep.Session, width, maxSessions int) string {
	if len(sessions) == 0 {
		return dimStyle.Render("no sleep sessions recorded")
	}

	var b strings.Builder

	asleepHours := lo.Map(sessions, func(s sleep.Session, _ int) float64 {
		return sleep.SessionDurations(s).Asleep.Hours()
	})
	sparkW := clamp(len(asleepHours), 7, width-14)
	b.WriteString(subtextStyle.Render("asleep trend "))
	b.WriteString(renderSparkline(asleepHours, sparkW, colorGreen))
	b.WriteString("\n\n")

	barW := clamp(width-4, 10, 40)
	recent := sessions
	if len(recent) > maxSessions {
		recent = recent[len(recent)-maxSessions:]
	}
	for i := len(recent) - 1; i >= 0; i-- {
		b.WriteString(renderSessionLine(recent[i], barW))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(renderWeeklyAverages(sessions, 4))
	return b.String()
}

func renderWeeklyAverages(sessions []sleep.Session, weeks int) string {
	avgs := sleep.WeeklyAverages(sessions)
	if len(avgs) == 0 {
		return ""
	}

	keys := lo.Keys(avgs)
	sort.Strings(keys)
	if len(keys) > weeks {
		keys = keys[len(keys)-weeks:]
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Weekly average asleep"))
	b.WriteString("\n")
	for i := len(keys) - 1; i >= 0; i-- {
		week := keys[i]
		label := week
		if t, err := time.Parse("2006-01-02", week); err == nil {
			label = "wk of " + t.Format("Jan 2")
		}
		b.WriteString(fmt.Sprintf("  %s  %s\n",
			subtextStyle.Render(fmt.Sprintf("%-12s", label)),
			headlineStyle.Render(formatHours(avgs[week]))))
	}
	return b.String()
}
