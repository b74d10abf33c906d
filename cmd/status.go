package cmd

import (
	"fmt"
	"path"

	"github.com/spf13/cobra"

	"github.com/cindergrace/depot/internal/report"
	"github.com/cindergrace/depot/internal/ui"
)

var statusVerify bool

var statusCmd = &cobra.Command{
	Use:     "status <workflow> <tier>",
	Short:   "Show on-disk status of a workflow tier's models",
	GroupID: "models",
	Long: `Resolve a workflow and VRAM tier into its model list and report each
model's on-disk state. With --verify, models that declare a checksum are
fully hashed instead of only size-checked.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cat := mustLoadCatalog()
		resolver := newResolver(statusVerify)

		entries, err := resolver.Resolve(cat, args[0], args[1])
		if err != nil {
			ui.Fatal("%v", err)
		}

		table := ui.NewTable(
			ui.Column{Header: "STATUS", Width: 18},
			ui.Column{Header: "MODEL", Width: 26},
			ui.Column{Header: "FILE", Width: 34},
			ui.Column{Header: "FOLDER", Width: 22},
			ui.Column{Header: "SIZE", Width: 10, Align: ui.AlignRight},
		)
		for _, e := range entries {
			size := "-"
			if e.Definition.SizeBytes > 0 {
				size = ui.FormatBytes(e.Definition.SizeBytes)
			}
			table.AddRow(
				statusLabel(e.Status),
				e.Definition.ID,
				e.Definition.Filename,
				path.Join(e.Definition.TargetFolder, e.Definition.TargetSubpath),
				size,
			)
		}

		fmt.Println()
		fmt.Print(table.Render())

		summary := report.Summarize(entries)
		fmt.Printf("\n  %d present, %d missing, %d restorable, %d corrupt\n",
			summary.Present, summary.Missing, summary.BackupAvailable, summary.Corrupt)
		if summary.Missing > 0 {
			line := fmt.Sprintf("  %s to download", ui.FormatBytes(summary.MissingBytes))
			if summary.UnsizedMissing > 0 {
				line += fmt.Sprintf(" (+%d models of undeclared size)", summary.UnsizedMissing)
			}
			fmt.Println(line)
		}

		if usage, err := report.DiskUsage(cfg.Paths.Models); err == nil {
			health := report.Classify(usage, diskThresholds())
			fmt.Printf("  disk: %s, %s free of %s\n",
				healthLabel(health),
				ui.FormatBytes(int64(usage.Free)),
				ui.FormatBytes(int64(usage.Total)))
		}
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusVerify, "verify", false, "Hash models with declared checksums")
	rootCmd.AddCommand(statusCmd)
}
