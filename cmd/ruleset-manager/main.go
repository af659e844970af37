package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mamamialezatoz/go-wpscan-plugins/internal/models"
	"github.com/mamamialezatoz/go-wpscan-plugins/internal/parser"
)

// Version information
const (
	Version    = "0.3.0"
	BuildDate  = "2026-10-18"
	CommitHash = "development"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var list, status bool

	cmd := &cobra.Command{
		Use:           "ruleset-manager <rules.yml>",
		Short:         "Validate and inspect a plugin ruleset",
		Long:          "ruleset-manager loads a ruleset exactly as the scanner does and reports\nwhether it is valid. No network access is performed.",
		Version:       fmt.Sprintf("%s (build: %s, commit: %s)", Version, BuildDate, CommitHash),
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			ruleset, err := parser.LoadRulesetFile(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case list:
				return printRuleset(out, ruleset)
			case status:
				printStatus(out, ruleset)
			default:
				fmt.Fprintf(out, "%s: OK (%d plugins)\n", ruleset.Source, ruleset.Len())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List every plugin with its signal types and version strategy")
	cmd.Flags().BoolVar(&status, "status", false, "Show ruleset statistics")
	cmd.MarkFlagsMutuallyExclusive("list", "status")

	return cmd
}

// printRuleset writes one row per plugin signal
func printRuleset(w io.Writer, ruleset *models.Ruleset) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SECTION\tPLUGIN\tSIGNAL\tVERSION\tPATTERN")
	for _, plugin := range ruleset.Plugins() {
		for _, name := range plugin.SignalOrder {
			rule := plugin.Signals[name]
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", plugin.Section, plugin.Name, name, rule.Strategy, rule.PatternSource)
		}
	}
	return tw.Flush()
}

// printStatus displays counts for the loaded ruleset
func printStatus(w io.Writer, ruleset *models.Ruleset) {
	strategies := make(map[models.VersionStrategy]int)
	signals := make(map[string]int)
	withReadme := 0

	for _, plugin := range ruleset.Plugins() {
		if plugin.ReadmePath != "" {
			withReadme++
		}
		for _, name := range plugin.SignalOrder {
			signals[name]++
			strategies[plugin.Signals[name].Strategy]++
		}
	}

	fmt.Fprintf(w, "Ruleset: %s\n", ruleset.Source)
	fmt.Fprintf(w, "Sections: %d\n", len(ruleset.Sections))
	for _, section := range ruleset.Sections {
		fmt.Fprintf(w, "  %s: %d plugins\n", section.Name, len(section.Plugins))
	}
	fmt.Fprintf(w, "Plugins: %d (%d with readme)\n", ruleset.Len(), withReadme)

	fmt.Fprintln(w, "\nSignal rules:")
	for _, name := range sortedKeys(signals) {
		fmt.Fprintf(w, "  %s: %d\n", name, signals[name])
	}

	fmt.Fprintln(w, "\nVersion strategies:")
	for _, s := range []models.VersionStrategy{models.StrategyDirectCapture, models.StrategyReadmeStableTag, models.StrategyNone} {
		fmt.Fprintf(w, "  %s: %d\n", s, strategies[s])
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
