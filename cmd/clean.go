package cmd

import (
	"fmt"
	"path"

	"github.com/spf13/cobra"

	"github.com/cindergrace/depot/internal/sweep"
	"github.com/cindergrace/depot/internal/ui"
)

var cleanYes bool

var cleanCmd = &cobra.Command{
	Use:     "clean <workflow> <tier>",
	Short:   "Remove models that the selected workflow tier does not use",
	GroupID: "models",
	Long: `Scan the approved model folders for model files that are not part of
the selected workflow and tier. Found files are moved to the backup root,
or deleted when no identical backup copy can be made.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if !featureEnabled("sweep") {
			ui.Fatal("The sweep feature is not enabled in this deployment")
		}

		cat := mustLoadCatalog()
		resolver := newResolver(false)

		entries, err := resolver.Resolve(cat, args[0], args[1])
		if err != nil {
			ui.Fatal("%v", err)
		}

		extras, err := sweep.Scan(cfg.Paths.Models, entries)
		if err != nil {
			ui.Fatal("Scan failed: %v", err)
		}
		if len(extras) == 0 {
			fmt.Println("No unreferenced models found.")
			return
		}

		table := ui.NewTable(
			ui.Column{Header: "FILE", Width: 40},
			ui.Column{Header: "FOLDER", Width: 26},
			ui.Column{Header: "SIZE", Width: 10, Align: ui.AlignRight},
		)
		var total int64
		for _, ex := range extras {
			table.AddRow(ex.Filename, path.Join(ex.Folder, ex.Subpath), ui.FormatBytes(ex.Size))
			total += ex.Size
		}
		fmt.Println()
		fmt.Print(table.Render())
		fmt.Printf("\n  %d files, %s\n\n", len(extras), ui.FormatBytes(total))

		if !cleanYes && !ui.PromptYesNo("Remove these files?", false) {
			fmt.Println("Cancelled.")
			return
		}

		backupRoot := ""
		if featureEnabled("backup") {
			backupRoot = cfg.Paths.Backup
		}
		for _, ex := range extras {
			outcome, err := sweep.Evacuate(cfg.Paths.Models, backupRoot, ex)
			if err != nil {
				ui.PrintError("%s: %v", ex.Filename, err)
				continue
			}
			fmt.Printf("  %s %s: %s\n", ui.Success(ui.IconCheck), ex.Filename, outcome)
		}
	},
}

func init() {
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(cleanCmd)
}
