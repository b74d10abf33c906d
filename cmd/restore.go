package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cindergrace/depot/internal/fetch"
	"github.com/cindergrace/depot/internal/resolve"
	"github.com/cindergrace/depot/internal/ui"
)

var restoreCmd = &cobra.Command{
	Use:     "restore <workflow> <tier>",
	Short:   "Restore missing models from the backup root",
	GroupID: "models",
	Args:    cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if !featureEnabled("backup") {
			ui.Fatal("The backup feature is not enabled in this deployment")
		}

		cat := mustLoadCatalog()
		resolver := newResolver(false)

		entries, err := resolver.Resolve(cat, args[0], args[1])
		if err != nil {
			ui.Fatal("%v", err)
		}

		orch := newOrchestrator(resolver, 0)
		defer orch.Close()

		var jobs []*fetch.Job
		for _, e := range entries {
			if e.Status != resolve.StatusBackupAvailable {
				continue
			}
			job, err := orch.Restore(e.Definition)
			if err != nil {
				ui.PrintError("%s: %v", e.Definition.ID, err)
				continue
			}
			jobs = append(jobs, job)
		}

		if len(jobs) == 0 {
			fmt.Println("Nothing to restore.")
			return
		}

		fmt.Printf("Restoring %d models from backup\n", len(jobs))
		if failed := waitForJobs(orch, jobs); failed > 0 {
			ui.Fatal("%d of %d restores failed", failed, len(jobs))
		}
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}
