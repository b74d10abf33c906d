package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cindergrace/depot/internal/version"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Show the depot version",
	GroupID: "system",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("depot %s\n", version.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
