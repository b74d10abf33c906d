package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cindergrace/depot/internal/config"
	"github.com/cindergrace/depot/internal/feature"
	"github.com/cindergrace/depot/internal/ui"
)

var (
	verbose bool
	cfg     *config.Config
	enabled map[string]bool
)

var rootCmd = &cobra.Command{
	Use:   "depot",
	Short: "Manage model assets for VRAM-tiered workflows",
	Long: `Depot resolves a workflow's VRAM tier into the model files it needs,
checks what is already on disk, downloads what is missing, and restores
copies from a backup location. Writes only land inside the approved model
folders.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.InitLogger(verbose)

		c, err := config.Load()
		if err != nil {
			ui.Fatal("Failed to load config: %v", err)
		}
		cfg = c

		if err := config.EnsureDirectories(cfg); err != nil {
			ui.Fatal("Failed to create directories: %v", err)
		}

		features, err := registry().Enable(cfg.Features)
		if err != nil {
			ui.Fatal("Invalid feature configuration: %v", err)
		}
		enabled = make(map[string]bool, len(features))
		for _, f := range features {
			enabled[f.Name()] = true
			ui.Debug("feature enabled", "name", f.Name())
		}
	},
}

// registry returns the built-in feature set. Features are registered here
// explicitly; the config's features list selects among these names only.
func registry() *feature.Registry {
	r := feature.NewRegistry()
	r.Register("backup", func() (feature.Feature, error) {
		return builtinFeature{"backup", "restore and evacuate models via the backup root"}, nil
	})
	r.Register("sweep", func() (feature.Feature, error) {
		return builtinFeature{"sweep", "find and remove models outside the selected workflow"}, nil
	})
	return r
}

type builtinFeature struct {
	name string
	desc string
}

func (f builtinFeature) Name() string        { return f.name }
func (f builtinFeature) Description() string { return f.desc }

// featureEnabled reports whether the deployment profile enables name.
func featureEnabled(name string) bool {
	return enabled[name]
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.AddGroup(
		&cobra.Group{ID: "models", Title: "Model Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)
}
