package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/sessioncheck/pkg/audit"
	"github.com/newtron-network/sessioncheck/pkg/cli"
)

var runLogRetention = audit.Retention{
	MaxSize:        10 << 20,
	MaxGenerations: 5,
	MaxAge:         90 * 24 * time.Hour,
}

var (
	historyLog      string
	historyRun      string
	historySnapshot string
	historyQuestion string
	historyLast     time.Duration
	historyLimit    int
	historyFailures bool
	historyBroken   bool
	historyJSON     bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded check runs",
	Long: `List the check runs recorded in the run log, newest first.

Runs are recorded when check is given --audit-log or the audit_log
setting is set. --run shows one run in full; a unique prefix of its
ID is enough.

Examples:
  sessioncheck history
  sessioncheck history --snapshot dc1 --last 24h
  sessioncheck history --broken --limit 5 --json
  sessioncheck history --run 3f2a`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := historyLog
		if path == "" {
			path = userSettings.AuditLog
		}
		if path == "" {
			return fmt.Errorf("no run log: pass --log or use 'sessioncheck settings set audit_log <path>'")
		}

		runs, err := audit.OpenRunLog(path, runLogRetention)
		if err != nil {
			return err
		}
		defer runs.Close()

		out := cmd.OutOrStdout()
		if historyRun != "" {
			e, err := runs.Get(historyRun)
			if err != nil {
				return err
			}
			if historyJSON {
				return writeJSON(out, e)
			}
			printRun(out, e)
			return nil
		}

		filter := audit.Filter{
			Snapshot:    historySnapshot,
			Question:    historyQuestion,
			FailureOnly: historyFailures,
			BrokenOnly:  historyBroken,
			NewestFirst: true,
			Limit:       historyLimit,
		}
		if historyLast > 0 {
			filter.StartTime = time.Now().Add(-historyLast)
		}
		events, err := runs.Query(filter)
		if err != nil {
			return err
		}

		if historyJSON {
			if events == nil {
				events = []*audit.Event{}
			}
			return writeJSON(out, events)
		}
		if len(events) == 0 {
			fmt.Fprintln(out, "No runs recorded.")
			return nil
		}

		t := cli.NewTable("RUN", "TIME", "SNAPSHOT", "QUESTION", "SESSIONS", "BROKEN", "RESULT").WithWriter(out)
		for _, e := range events {
			t.Row(
				shortID(e.ID),
				e.Timestamp.Local().Format(time.DateTime),
				e.Snapshot,
				e.Question,
				strconv.Itoa(e.Sessions),
				strconv.Itoa(e.Broken),
				runResult(e),
			)
		}
		t.Flush()
		return nil
	},
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runResult(e *audit.Event) string {
	switch {
	case !e.Success:
		return cli.Red("error: " + e.Error)
	case e.Broken > 0:
		return cli.Yellow("broken")
	}
	return cli.Green("ok")
}

// printRun writes one run with its bucket counts
func printRun(w io.Writer, e *audit.Event) {
	fmt.Fprintf(w, "Run:      %s\n", e.ID)
	fmt.Fprintf(w, "Time:     %s (%s)\n", e.Timestamp.Local().Format(time.DateTime), e.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "User:     %s\n", e.User)
	fmt.Fprintf(w, "Snapshot: %s\n", e.Snapshot)
	if e.Question != "" {
		fmt.Fprintf(w, "Question: %s\n", e.Question)
	}
	fmt.Fprintf(w, "Result:   %s\n", runResult(e))
	if !e.Success {
		return
	}

	fmt.Fprintln(w)
	names := make([]string, 0, len(e.Counts))
	for c := range e.Counts {
		names = append(names, c)
	}
	sort.Strings(names)
	t := cli.NewTable("CATEGORY", "COUNT").WithWriter(w)
	for _, c := range names {
		t.Row(c, strconv.Itoa(e.Counts[c]))
	}
	t.Flush()

	if len(e.Skipped) > 0 {
		fmt.Fprintf(w, "\nSkipped nodes: %v\n", e.Skipped)
	}
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyLog, "log", "", "Run log file (overrides the audit_log setting)")
	f.StringVar(&historyRun, "run", "", "Show one run by ID or unique ID prefix")
	f.StringVar(&historySnapshot, "snapshot", "", "Only runs of this snapshot name")
	f.StringVar(&historyQuestion, "question", "", "Only runs of this question name")
	f.DurationVar(&historyLast, "last", 0, "Only runs within this duration (e.g. 24h)")
	f.IntVarP(&historyLimit, "limit", "n", 20, "Maximum runs to list (0 = all)")
	f.BoolVar(&historyFailures, "failures", false, "Only runs that failed")
	f.BoolVar(&historyBroken, "broken", false, "Only runs that found broken sessions")
	f.BoolVar(&historyJSON, "json", false, "JSON output")
}
