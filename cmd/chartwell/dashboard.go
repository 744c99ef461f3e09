package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mlowicki/chartwell/internal/chart"
	"github.com/mlowicki/chartwell/internal/config"
	"github.com/mlowicki/chartwell/internal/sleep"
	"github.com/mlowicki/chartwell/internal/store"
	"github.com/mlowicki/chartwell/internal/tui"
)

func runDashboard(cfg config.Config) {
	st, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	loaders := make(map[string]*chart.Loader, len(cfg.Metrics))
	for _, metric := range cfg.Metrics {
		loaders[metric.MetricID] = chart.NewLoader(st, metric.MetricID)
	}

	lookup := sleep.NewReferenceLookup(st)
	feed := sleep.NewFeed(st, lookup)

	model := tui.NewModel(cfg, st, loaders, feed)
	program := tea.NewProgram(model, tea.WithAltScreen())

	for id, loader := range loaders {
		metricID := id
		loader.OnUpdate(func() {
			program.Send(tui.TimelineUpdatedMsg{MetricID: metricID})
		})
	}
	feed.OnUpdate(func() {
		program.Send(tui.SleepUpdatedMsg{})
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		log.SetOutput(os.Stderr)
		log.Fatalf("TUI error: %v", err)
	}
}

func openStore(cfg config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.StorePath, cfg.PatientID)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureStageReferences(context.Background()); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
