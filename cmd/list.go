package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cindergrace/depot/internal/ui"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List workflows and their VRAM tiers",
	GroupID: "models",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cat := mustLoadCatalog()

		workflows := cat.Workflows()
		if len(workflows) == 0 {
			fmt.Println("No workflows in catalog.")
			return
		}

		table := ui.NewTable(
			ui.Column{Header: "WORKFLOW", Width: 24},
			ui.Column{Header: "NAME", Width: 28},
			ui.Column{Header: "CATEGORY", Width: 14},
			ui.Column{Header: "TIERS", Width: 24},
		)
		for _, wf := range workflows {
			table.AddRow(wf.ID, wf.Name, wf.Category, strings.Join(wf.Tiers(), ", "))
		}

		fmt.Println()
		fmt.Print(table.Render())
		fmt.Printf("\n  %s\n", ui.Muted(fmt.Sprintf("%d workflows, %d models (catalog %s)",
			len(workflows), cat.ModelCount(), cat.Version)))
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
