package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mlowicki/chartwell/internal/appupdate"
	"github.com/mlowicki/chartwell/internal/version"
)

func newVersionCommand() *cobra.Command {
	var checkUpdate bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the chartwell version.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Println(version.String())
			if !checkUpdate {
				return nil
			}

			result, err := appupdate.Check(cmd.Context(), appupdate.CheckOptions{
				CurrentVersion: version.Version,
			})
			if err != nil {
				return fmt.Errorf("checking for updates: %w", err)
			}
			if result.UpdateAvailable {
				fmt.Printf("update available: %s (installed %s)\n", result.LatestVersion, result.CurrentVersion)
				if result.UpgradeHint != "" {
					fmt.Println(result.UpgradeHint)
				}
			} else {
				fmt.Println("up to date")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkUpdate, "check-update", false, "check GitHub for a newer release")
	return cmd
}
