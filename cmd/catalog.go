package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cindergrace/depot/internal/catalog"
	"github.com/cindergrace/depot/internal/ui"
)

var catalogCmd = &cobra.Command{
	Use:     "catalog",
	Short:   "Inspect and validate catalog documents",
	GroupID: "system",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a catalog document without installing it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			ui.Fatal("Failed to read %s: %v", args[0], err)
		}

		cat, err := catalog.Load(data)
		if err != nil {
			var schemaErr *catalog.SchemaError
			if errors.As(err, &schemaErr) {
				ui.PrintError("Catalog is invalid:")
				for _, p := range schemaErr.Problems {
					fmt.Printf("  %s %s\n", ui.ErrorMsg(ui.IconCross), p)
				}
				os.Exit(1)
			}
			ui.Fatal("%v", err)
		}

		fmt.Printf("%s Catalog is valid: version %s, %d workflows, %d models\n",
			ui.Success(ui.IconCheck), cat.Version, len(cat.Workflows()), cat.ModelCount())
	},
}

var catalogInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the active catalog's source and contents",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cat := mustLoadCatalog()

		fmt.Printf("\n  %s %s\n", ui.Bold("Source:"), cfg.Paths.Catalog)
		fmt.Printf("  %s %s\n", ui.Bold("Version:"), cat.Version)
		fmt.Printf("  %s %d workflows, %d models\n", ui.Bold("Contents:"), len(cat.Workflows()), cat.ModelCount())
		if len(cat.TargetFolders) > 0 {
			fmt.Printf("  %s %v\n", ui.Bold("Folders:"), cat.TargetFolders)
		}
	},
}

func init() {
	catalogCmd.AddCommand(catalogValidateCmd, catalogInfoCmd)
	rootCmd.AddCommand(catalogCmd)
}
