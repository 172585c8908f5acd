// Sessioncheck - control-plane adjacency analyzer
//
// Reads a configuration snapshot of a network, pairs every configured BGP,
// OSPF and IPsec endpoint with its remote counterpart, and reports sessions
// that cannot come up, are ambiguous, or are misconfigured.
//
// Examples:
//
//	sessioncheck check snapshots/dc1.yaml                 # Full text report
//	sessioncheck check dc1.yaml --summary                 # Counts per category
//	sessioncheck check dc1.yaml --node1 'leaf.*' --json   # Leaves only, JSON
//	sessioncheck check -q questions/edge.yaml             # Parameters from a question file
//	sessioncheck collect -o dc1.yaml leaf1=10.0.0.11 spine1=10.0.0.1
//	sessioncheck history --broken                         # Recorded runs that found broken sessions
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/newtron-network/sessioncheck/pkg/cli"
	"github.com/newtron-network/sessioncheck/pkg/settings"
	"github.com/newtron-network/sessioncheck/pkg/util"
	"github.com/newtron-network/sessioncheck/pkg/version"
)

var (
	// Global option flags
	verbose      bool
	noColor      bool
	logFormat    string
	settingsPath string

	// Global state
	userSettings *settings.Settings
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "sessioncheck",
	Short:             "Control-plane adjacency analyzer",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Sessioncheck pairs the BGP, OSPF and IPsec endpoints declared in a
network snapshot and classifies every session as matched, passive, half-open,
ambiguous or broken.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// quiet by default, verbose on -v
		level := "warn"
		if verbose {
			level = "debug"
		}
		if err := util.ConfigureLogging(level, logFormat); err != nil {
			return err
		}
		cli.SetColor(!noColor && cli.IsTerminal(os.Stdout))

		var err error
		userSettings, err = settings.LoadFrom(settingsPath)
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", util.LogFormatText, "Diagnostic log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", settings.DefaultSettingsPath(), "Settings file")

	rootCmd.AddGroup(
		&cobra.Group{ID: "analysis", Title: "Analysis:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{checkCmd, collectCmd, historyCmd} {
		cmd.GroupID = "analysis"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{settingsCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd, "sessioncheck")
	},
}

func printVersion(cmd *cobra.Command, tool string) {
	if version.Version == "dev" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s dev build (use 'make build' for version info)\n", tool)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", tool, version.Version, version.GitCommit)
	}
}
