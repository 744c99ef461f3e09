package tui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"

	"github.com/mlowicki/chartwell/internal/chart"
	"github.com/mlowicki/chartwell/internal/config"
	"github.com/mlowicki/chartwell/internal/sleep"
)

// TimelineUpdatedMsg is posted (via Program.Send) when a loader's timeline
// changed, typically from a Loader.OnUpdate callback.
type TimelineUpdatedMsg struct{ MetricID string }

// SleepUpdatedMsg is posted when the sleep feed has new sessions.
type SleepUpdatedMsg struct{}

type headlineMsg struct {
	metricID string
	value    float64
}

type loadErrMsg struct{ err error }

type screenTab int

const (
	screenChart screenTab = iota
	screenSleep
)

const sleepLookbackDays = 30

type Model struct {
	cfg     config.Config
	fetcher chart.Fetcher
	loaders map[string]*chart.Loader
	feed    *sleep.Feed
	now     func() time.Time

	metrics   []config.Metric
	metricIdx int

	period       chart.Period
	visibleStart time.Time
	sessions     []sleep.Session

	headline float64
	errText  string

	screen   screenTab
	showHelp bool
	width    int
	height   int
}

func NewModel(cfg config.Config, fetcher chart.Fetcher, loaders map[string]*chart.Loader, feed *sleep.Feed) Model {
	return Model{
		cfg:     cfg,
		fetcher: fetcher,
		loaders: loaders,
		feed:    feed,
		now:     time.Now,
		metrics: cfg.Metrics,
		period:  chart.ParsePeriod(cfg.UI.DefaultPeriod),
		width:   100,
		height:  30,
	}
}

func (m Model) activeMetric() config.Metric {
	if len(m.metrics) == 0 {
		return config.Metric{}
	}
	return m.metrics[m.metricIdx%len(m.metrics)]
}

func (m Model) activeLoader() *chart.Loader {
	return m.loaders[m.activeMetric().MetricID]
}

// defaultVisibleStart puts "now" in the last visible bucket.
func (m Model) defaultVisibleStart(p chart.Period) time.Time {
	unit := p.Unit()
	return unit.Add(unit.Truncate(m.now()), -(p.VisibleBars() - 1))
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.initPeriodCmd(m.period), m.loadSleepCmd())
}

func (m Model) initPeriodCmd(p chart.Period) tea.Cmd {
	l := m.activeLoader()
	if l == nil {
		return nil
	}
	return func() tea.Msg {
		if err := l.Initialize(context.Background(), p); err != nil {
			return loadErrMsg{err}
		}
		return TimelineUpdatedMsg{MetricID: m.activeMetric().MetricID}
	}
}

func (m Model) scrollCmd(position time.Time) tea.Cmd {
	l := m.activeLoader()
	if l == nil {
		return nil
	}
	return func() tea.Msg {
		if err := l.OnScrollPositionChanged(context.Background(), position); err != nil {
			return loadErrMsg{err}
		}
		return TimelineUpdatedMsg{MetricID: m.activeMetric().MetricID}
	}
}

func (m Model) loadSleepCmd() tea.Cmd {
	if m.feed == nil {
		return nil
	}
	now := m.now()
	from := now.AddDate(0, 0, -sleepLookbackDays)
	return func() tea.Msg {
		if err := m.feed.LoadRange(context.Background(), from, now); err != nil {
			return loadErrMsg{err}
		}
		return SleepUpdatedMsg{}
	}
}

// headlineCmd computes the stat shown above the chart. Six-month and year
// views prefer averaging the window's daily sums over averaging rollups, so
// short weeks don't skew the result.
func (m Model) headlineCmd() tea.Cmd {
	l := m.activeLoader()
	if l == nil {
		return nil
	}
	metric := m.activeMetric()
	p := m.period
	visibleStart := m.visibleStart
	data := l.Data()
	precise := m.cfg.PrecisePreferred() &&
		(p == chart.PeriodSixMonth || p == chart.PeriodYear)

	return func() tea.Msg {
		if precise {
			rows, err := m.fetcher.FetchAggregates(context.Background(), chart.AggregateQuery{
				MetricID:        metric.MetricID,
				PeriodType:      "daily",
				CalculationType: "SUM",
				From:            visibleStart,
				To:              visibleStart.Add(p.VisibleWindow()),
			})
			if err == nil {
				sums := lo.Map(rows, func(r chart.AggregateRow, _ int) float64 { return r.Value })
				return headlineMsg{metric.MetricID, chart.AggregateDailySums(sums)}
			}
			// fall through to the rollup path on error
		}
		return headlineMsg{metric.MetricID, chart.Aggregate(data, visibleStart, p)}
	}
}

func (m *Model) clampVisibleStart() {
	l := m.activeLoader()
	if l == nil {
		return
	}
	rng := l.Range()
	unit := m.period.Unit()
	maxStart := unit.Add(rng.Newest, -(m.period.VisibleBars() - 1))
	if m.visibleStart.After(maxStart) {
		m.visibleStart = maxStart
	}
	if m.visibleStart.Before(rng.Oldest) {
		m.visibleStart = rng.Oldest
	}
}

func (m *Model) scrollBy(units int) tea.Cmd {
	unit := m.period.Unit()
	m.visibleStart = unit.Add(m.visibleStart, units)
	m.clampVisibleStart()
	return tea.Batch(m.scrollCmd(m.visibleStart), m.headlineCmd())
}

func (m *Model) switchPeriod(p chart.Period) tea.Cmd {
	m.period = p
	m.visibleStart = m.defaultVisibleStart(p)
	return m.initPeriodCmd(p)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TimelineUpdatedMsg:
		if msg.MetricID != m.activeMetric().MetricID {
			return m, nil
		}
		if m.visibleStart.IsZero() {
			m.visibleStart = m.defaultVisibleStart(m.period)
		}
		m.clampVisibleStart()
		m.errText = ""
		return m, m.headlineCmd()

	case SleepUpdatedMsg:
		if m.feed != nil {
			m.sessions = m.feed.Sessions()
		}
		return m, nil

	case headlineMsg:
		if msg.metricID == m.activeMetric().MetricID {
			m.headline = msg.value
		}
		return m, nil

	case loadErrMsg:
		m.errText = msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

var periodKeys = map[string]chart.Period{
	"1": chart.PeriodDay,
	"2": chart.PeriodWeek,
	"3": chart.PeriodMonth,
	"4": chart.PeriodSixMonth,
	"5": chart.PeriodYear,
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "tab":
		if m.screen == screenChart {
			m.screen = screenSleep
			return m, m.loadSleepCmd()
		}
		m.screen = screenChart
		return m, nil

	case "[", "]":
		if len(m.metrics) < 2 || m.screen != screenChart {
			return m, nil
		}
		if key == "]" {
			m.metricIdx = (m.metricIdx + 1) % len(m.metrics)
		} else {
			m.metricIdx = (m.metricIdx + len(m.metrics) - 1) % len(m.metrics)
		}
		cmd := m.switchPeriod(m.period)
		return m, cmd

	case "left", "h":
		if m.screen == screenChart {
			cmd := m.scrollBy(-1)
			return m, cmd
		}
	case "right", "l":
		if m.screen == screenChart {
			cmd := m.scrollBy(1)
			return m, cmd
		}
	case "shift+left", "H", "pgup":
		if m.screen == screenChart {
			cmd := m.scrollBy(-m.period.VisibleBars())
			return m, cmd
		}
	case "shift+right", "L", "pgdown":
		if m.screen == screenChart {
			cmd := m.scrollBy(m.period.VisibleBars())
			return m, cmd
		}

	case "r":
		if m.screen == screenSleep {
			if m.feed != nil {
				m.feed.Reset()
			}
			return m, m.loadSleepCmd()
		}
		cmd := m.switchPeriod(m.period)
		return m, cmd
	}

	if p, ok := periodKeys[key]; ok && m.screen == screenChart {
		cmd := m.switchPeriod(p)
		return m, cmd
	}
	return m, nil
}

// visibleBuckets slices the loaded timeline down to the visible window and
// reports the window's bucket offset inside the full timeline.
func (m Model) visibleBuckets() (buckets []chart.Bucket, offset, total int) {
	l := m.activeLoader()
	if l == nil {
		return nil, 0, 0
	}
	data := l.Data()
	total = len(data)
	bars := m.period.VisibleBars()
	divisor := m.period.DisplayDivisor()

	for i, b := range data {
		if b.Date.Before(m.visibleStart) {
			continue
		}
		offset = i
		for _, vb := range data[i:] {
			if len(buckets) == bars {
				break
			}
			buckets = append(buckets, chart.Bucket{Date: vb.Date, Value: vb.Value / divisor})
		}
		break
	}
	return buckets, offset, total
}

func (m Model) View() string {
	var b strings.Builder

	metric := m.activeMetric()
	header := titleStyle.Render("chartwell") + "  " + subtextStyle.Render(metric.Label)
	if l := m.activeLoader(); l != nil {
		if older, newer := l.Loading(); older || newer {
			header += "  " + dimStyle.Render("loading…")
		}
	}
	b.WriteString(header)
	b.WriteString("\n\n")

	switch m.screen {
	case screenChart:
		b.WriteString(m.viewChart())
	case screenSleep:
		b.WriteString(m.viewSleep())
	}

	if m.errText != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.errText))
	}

	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(dimStyle.Render("1-5 period · ←/→ scroll · shift+←/→ page · [/] metric · tab sleep · r reload · q quit"))
	} else {
		b.WriteString(dimStyle.Render("? help · q quit"))
	}
	return b.String()
}

func (m Model) viewChart() string {
	var b strings.Builder

	b.WriteString(renderPeriodTabs(m.period))
	b.WriteString("\n\n")

	b.WriteString(renderHeadline(m.activeMetric().Label, m.headline, m.period))
	b.WriteString("\n")

	innerW := clamp(m.width-6, 24, 120)
	chartH := clamp(m.height-12, 6, 20)
	visible, offset, total := m.visibleBuckets()
	b.WriteString(cardStyle.Render(renderBarChart(visible, m.period, innerW, chartH)))
	b.WriteString("\n")
	b.WriteString(renderTimelineScrollBar(innerW, offset, m.period.VisibleBars(), total))
	return b.String()
}

func (m Model) viewSleep() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Sleep"))
	if m.feed != nil && m.feed.Loading() {
		b.WriteString("  " + dimStyle.Render("loading…"))
	}
	b.WriteString("\n\n")

	innerW := clamp(m.width-6, 24, 100)
	maxSessions := clamp((m.height-14)/3, 3, 10)
	b.WriteString(cardStyle.Render(renderSleepPanel(m.sessions, innerW, maxSessions)))
	return b.String()
}
