package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cindergrace/depot/internal/report"
	"github.com/cindergrace/depot/internal/ui"
)

var diskCmd = &cobra.Command{
	Use:     "disk",
	Short:   "Show free space on the model storage roots",
	GroupID: "system",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		thresholds := diskThresholds()

		printRoot := func(name, path string) {
			if path == "" {
				return
			}
			usage, err := report.DiskUsage(path)
			if err != nil {
				fmt.Printf("  %-8s %s\n", name, ui.Muted(fmt.Sprintf("unavailable: %v", err)))
				return
			}
			health := report.Classify(usage, thresholds)
			fmt.Printf("  %-8s %s  %s free / %s  (%.0f%% used)  %s\n",
				name,
				healthLabel(health),
				ui.FormatBytes(int64(usage.Free)),
				ui.FormatBytes(int64(usage.Total)),
				usage.UsedFraction()*100,
				ui.Muted(path))
		}

		fmt.Println()
		printRoot("models", cfg.Paths.Models)
		if featureEnabled("backup") {
			printRoot("backup", cfg.Paths.Backup)
		}
	},
}

func init() {
	rootCmd.AddCommand(diskCmd)
}
