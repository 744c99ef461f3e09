package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/mlowicki/chartwell/internal/config"
)

func main() {
	if os.Getenv("CHARTWELL_DEBUG") != "" {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		fmt.Fprintf(os.Stderr, "Config path: %s\n", config.ConfigPath())
		os.Exit(1)
	}

	root := cobra.Command{
		Use:   "chartwell",
		Short: "Chartwell is a terminal dashboard for charting health metrics and sleep sessions.",
		Run: func(_ *cobra.Command, _ []string) {
			runDashboard(cfg)
		},
	}

	root.AddCommand(newSyncCommand(cfg))
	root.AddCommand(newVersionCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
