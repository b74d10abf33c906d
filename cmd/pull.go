package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cindergrace/depot/internal/fetch"
	"github.com/cindergrace/depot/internal/resolve"
	"github.com/cindergrace/depot/internal/ui"
)

var (
	pullParallel int
	pullCorrupt  bool
)

var pullCmd = &cobra.Command{
	Use:     "pull <workflow> <tier>",
	Short:   "Download missing models and restore from backup",
	GroupID: "models",
	Long: `Resolve a workflow and VRAM tier, then fetch every model that is not
already in place: missing models are downloaded from their source URLs,
and models with a backup copy are restored from the backup root. With
--corrupt, models whose on-disk copy fails its declared size or checksum
are re-downloaded as well.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cat := mustLoadCatalog()
		resolver := newResolver(false)

		entries, err := resolver.Resolve(cat, args[0], args[1])
		if err != nil {
			ui.Fatal("%v", err)
		}

		orch := newOrchestrator(resolver, pullParallel)
		defer orch.Close()

		var jobs []*fetch.Job
		for _, e := range entries {
			var job *fetch.Job
			var err error
			switch e.Status {
			case resolve.StatusMissing:
				job, err = orch.Download(e.Definition)
			case resolve.StatusBackupAvailable:
				if featureEnabled("backup") {
					job, err = orch.Restore(e.Definition)
				} else {
					job, err = orch.Download(e.Definition)
				}
			case resolve.StatusCorrupt:
				if !pullCorrupt {
					ui.Warn("model failed verification on disk; re-fetch with --corrupt", "model", e.Definition.ID)
					continue
				}
				job, err = orch.Download(e.Definition)
			default:
				continue
			}
			if err != nil {
				ui.PrintError("%s: %v", e.Definition.ID, err)
				continue
			}
			jobs = append(jobs, job)
		}

		if len(jobs) == 0 {
			fmt.Println("All models already in place.")
			return
		}

		fmt.Printf("Fetching %d models\n", len(jobs))
		failed := waitForJobs(orch, jobs)
		if failed > 0 {
			ui.Fatal("%d of %d transfers failed", failed, len(jobs))
		}
		fmt.Printf("%s All models in place.\n", ui.Success(ui.IconCheck))
	},
}

// waitForJobs blocks until every job is terminal, rendering an aggregate
// progress line, and returns how many ended in failure.
func waitForJobs(orch *fetch.Orchestrator, jobs []*fetch.Job) int {
	var g errgroup.Group
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			<-job.Done()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	progress := ui.NewProgress("fetching", aggregateTotal(jobs))
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			progress.SetTotal(aggregateTotal(jobs))
			progress.Update(aggregateWritten(jobs))
		case <-done:
			failed := 0
			for _, job := range jobs {
				if job.State() == fetch.JobFailed {
					failed++
				}
			}
			if failed == 0 {
				progress.Finish("done")
			} else {
				progress.Fail("finished with errors")
			}
			for _, job := range jobs {
				printJobOutcome(job)
				orch.Ack(job)
			}
			return failed
		}
	}
}

// aggregateTotal sums the known payload sizes, 0 when none are known yet.
func aggregateTotal(jobs []*fetch.Job) int64 {
	var total int64
	for _, job := range jobs {
		if _, t := job.Progress(); t > 0 {
			total += t
		}
	}
	return total
}

func aggregateWritten(jobs []*fetch.Job) int64 {
	var written int64
	for _, job := range jobs {
		w, _ := job.Progress()
		written += w
	}
	return written
}

func printJobOutcome(job *fetch.Job) {
	switch job.State() {
	case fetch.JobComplete:
		fmt.Printf("  %s %s (%s)\n", ui.Success(ui.IconCheck), job.ModelID(), job.Kind())
	case fetch.JobFailed:
		fmt.Printf("  %s %s: %v (after %d attempts)\n",
			ui.ErrorMsg(ui.IconCross), job.ModelID(), job.Err(), job.Attempts())
	case fetch.JobCancelled:
		fmt.Printf("  %s %s cancelled\n", ui.Muted(ui.IconArrow), job.ModelID())
	}
}

func init() {
	pullCmd.Flags().IntVar(&pullParallel, "parallel", 0, "Worker pool size (default from config)")
	pullCmd.Flags().BoolVar(&pullCorrupt, "corrupt", false, "Also re-download models that fail verification")
	rootCmd.AddCommand(pullCmd)
}
