package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/bannerscan/internal/batch"
	"github.com/MeKo-Tech/bannerscan/internal/store"
)

var summaryCmd = &cobra.Command{
	Use:   "summary [output-dir]",
	Short: "Rebuild and print the summary of a result directory",
	Long: `Recompute summary.json from every per-image record in a result directory
and print it. Records are never modified; rebuilding twice without new
records yields the same summary.

Examples:
  bannerscan summary
  bannerscan summary results --format json
  bannerscan summary results --no-rebuild`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSummaryCommand,
}

func runSummaryCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	dir := cfg.Output.Dir
	if len(args) == 1 {
		dir = args[0]
	}
	overrideBool(cmd, "combined", &cfg.Output.Combined)
	format, _ := cmd.Flags().GetString("format")
	noRebuild, _ := cmd.Flags().GetBool("no-rebuild")

	var (
		sum store.Summary
		err error
	)
	if noRebuild {
		st, serr := store.New(dir, store.Options{})
		if serr != nil {
			return serr
		}
		sum, err = st.ReadSummary(cmd.Context())
	} else {
		sum, err = batch.RebuildSummary(cmd.Context(), dir, cfg.Output.Combined)
	}
	if err != nil {
		return fmt.Errorf("summary of %s: %w", dir, err)
	}

	out := cmd.OutOrStdout()
	switch format {
	case batch.FormatText:
		_, err = fmt.Fprint(out, batch.FormatSummaryText(sum))
	case batch.FormatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(sum)
	case batch.FormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err = enc.Encode(sum); err == nil {
			err = enc.Close()
		}
	default:
		return fmt.Errorf("unsupported summary format %q (valid: text, json, yaml)", format)
	}
	return err
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().StringP("format", "f", batch.FormatText,
		"output format: "+strings.Join([]string{batch.FormatText, batch.FormatJSON, batch.FormatYAML}, ", "))
	summaryCmd.Flags().Bool("no-rebuild", false, "print summary.json as last written instead of rebuilding it")
	summaryCmd.Flags().Bool("combined", true, "also rewrite combined_results.json")
}
