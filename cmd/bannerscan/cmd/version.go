package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/bannerscan/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, commit, date := version.Info()
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "bannerscan version %s\n", v)
		_, _ = fmt.Fprintf(out, "Commit: %s\n", commit)
		_, _ = fmt.Fprintf(out, "Built: %s\n", date)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
