package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// renderTimelineScrollBar shows where the visible window sits inside the
// loaded timeline: offset and visible are in buckets, total is the loaded
// bucket count.
func renderTimelineScrollBar(width, offset, visible, total int) string {
	if width <= 0 || visible <= 0 || total <= 0 || total <= visible {
		return ""
	}

	maxOffset := total - visible
	offset = clamp(offset, 0, maxOffset)

	prefix := "  ↔ "
	trackW := width - lipgloss.Width(prefix) - 2
	if trackW < 6 {
		return fitAnsiWidth(fmt.Sprintf("%s%d/%d", prefix, offset, maxOffset), width)
	}

	thumbW := int(math.Round((float64(visible) / float64(total)) * float64(trackW)))
	if thumbW < 1 {
		thumbW = 1
	}
	if thumbW > trackW {
		thumbW = trackW
	}

	thumbPos := 0
	if maxOffset > 0 && trackW > thumbW {
		thumbPos = int(math.Round((float64(offset) / float64(maxOffset)) * float64(trackW-thumbW)))
	}

	railStyle := lipgloss.NewStyle().Foreground(colorSurface1)
	thumbStyle := lipgloss.NewStyle().Foreground(colorAccent)
	arrowStyle := lipgloss.NewStyle().Foreground(colorDim)

	line := prefix +
		arrowStyle.Render("◀") +
		railStyle.Render(strings.Repeat("─", thumbPos)) +
		thumbStyle.Render(strings.Repeat("━", thumbW)) +
		railStyle.Render(strings.Repeat("─", trackW-thumbPos-thumbW)) +
		arrowStyle.Render("▶")

	return fitAnsiWidth(line, width)
}

func fitAnsiWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	out := ansi.Cut(s, 0, width)
	if pad := width - lipgloss.Width(out); pad > 0 {
		out += strings.Repeat(" ", pad)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
