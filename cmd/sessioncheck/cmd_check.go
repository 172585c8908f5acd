package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/newtron-network/sessioncheck/pkg/analysis"
	"github.com/newtron-network/sessioncheck/pkg/audit"
	"github.com/newtron-network/sessioncheck/pkg/classify"
	"github.com/newtron-network/sessioncheck/pkg/cli"
	"github.com/newtron-network/sessioncheck/pkg/metrics"
	"github.com/newtron-network/sessioncheck/pkg/question"
	"github.com/newtron-network/sessioncheck/pkg/report"
	"github.com/newtron-network/sessioncheck/pkg/session"
	"github.com/newtron-network/sessioncheck/pkg/snapshot"
	"github.com/newtron-network/sessioncheck/pkg/util"
)

var (
	checkQuestion        string
	checkNode1           string
	checkNode2           string
	checkProtocols       string
	checkForeignGroups   []string
	checkForeignPrefixes []string
	checkWorkers         int
	checkSkipInvalid     bool
	checkJSON            bool
	checkSummary         bool
	checkCategory        string
	checkMetricsFile     string
	checkFailOnBroken    bool
	checkAuditLog        string
)

var checkCmd = &cobra.Command{
	Use:   "check [snapshot]",
	Short: "Classify every session in a snapshot",
	Long: `Classify every BGP, OSPF and IPsec session declared in a snapshot.

Parameters come from the question file (-q) when given; flags override
individual values. The snapshot is taken from the argument, then the
question file, then the default_snapshot setting.

Examples:
  sessioncheck check dc1.yaml
  sessioncheck check dc1.yaml --protocols bgp --node1 'leaf.*'
  sessioncheck check dc1.yaml --foreign-group TRANSIT --foreign-prefix 192.0.2.0/24
  sessioncheck check dc1.yaml --category HALF_OPEN
  sessioncheck check -q edge.yaml --json --metrics-file /var/lib/node_exporter/sessioncheck.prom`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, snapPath, qName, err := checkOptions(cmd, args)
		if err != nil {
			return err
		}
		if snapPath == "" {
			return fmt.Errorf("snapshot required: pass a file, set it in the question file, or use 'sessioncheck settings set snapshot <path>'")
		}

		snap, err := snapshot.LoadFile(snapPath)
		if err != nil {
			return err
		}
		if snap.Name == "" {
			snap.Name = strings.TrimSuffix(filepath.Base(snapPath), filepath.Ext(snapPath))
		}

		reg := metrics.NewRegistry()
		a, err := analysis.New(opts)
		if err != nil {
			return err
		}
		start := time.Now()
		rep, err := a.WithMetrics(reg).Run(cmd.Context(), snap)
		recordRun(snap.Name, qName, rep, err, time.Since(start))
		if err != nil {
			return err
		}

		if checkMetricsFile != "" {
			if err := reg.WriteTextfile(checkMetricsFile); err != nil {
				return fmt.Errorf("writing metrics: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		switch {
		case checkJSON:
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(rep); err != nil {
				return err
			}
		case checkSummary:
			printSummary(out, rep)
		case checkCategory != "":
			report.WriteCategory(out, rep, classify.Category(checkCategory))
		default:
			if err := report.WriteText(out, rep); err != nil {
				return err
			}
		}
		for host, reason := range rep.Skipped {
			util.WithNode(host).Warnf("Node skipped: %s", reason)
		}

		if n := rep.Count(classify.CategoryBroken); checkFailOnBroken && n > 0 {
			return fmt.Errorf("%d broken sessions", n)
		}
		return nil
	},
}

func init() {
	f := checkCmd.Flags()
	f.StringVarP(&checkQuestion, "question", "q", "", "Question file (YAML)")
	f.StringVar(&checkNode1, "node1", analysis.DefaultNodeRegex, "Regex selecting the nodes whose sessions are reported")
	f.StringVar(&checkNode2, "node2", analysis.DefaultNodeRegex, "Regex selecting the nodes that may act as remote endpoints")
	f.StringVar(&checkProtocols, "protocols", "", "Comma-separated protocols to analyze (bgp,ospf,ipsec)")
	f.StringSliceVar(&checkForeignGroups, "foreign-group", nil, "BGP peer group whose peers are outside the network")
	f.StringSliceVar(&checkForeignPrefixes, "foreign-prefix", nil, "Address range outside the network")
	f.IntVarP(&checkWorkers, "workers", "w", 0, "Parallel node workers (0 = number of CPUs)")
	f.BoolVar(&checkSkipInvalid, "skip-invalid-nodes", false, "Skip nodes with inconsistent configuration instead of failing")
	f.BoolVar(&checkJSON, "json", false, "JSON output")
	f.BoolVar(&checkSummary, "summary", false, "Print counts per category only")
	f.StringVar(&checkCategory, "category", "", "Print a single category")
	f.StringVar(&checkMetricsFile, "metrics-file", "", "Write Prometheus metrics to a textfile-collector file")
	f.BoolVar(&checkFailOnBroken, "fail-on-broken", false, "Exit non-zero when any session is broken")
	f.StringVar(&checkAuditLog, "audit-log", "", "Append a record of this run to a run log (overrides the audit_log setting)")
}

// checkOptions merges settings, the question file and explicitly set flags,
// in increasing precedence.
func checkOptions(cmd *cobra.Command, args []string) (opts analysis.Options, snapPath, qName string, err error) {
	opts = analysis.DefaultOptions()
	opts.Workers = userSettings.Workers
	snapPath = userSettings.DefaultSnapshot

	qPath := checkQuestion
	if qPath == "" {
		qPath = userSettings.DefaultQuestion
	}
	if qPath != "" {
		q, err := question.Load(qPath)
		if err != nil {
			return opts, "", "", err
		}
		qOpts, err := q.Options()
		if err != nil {
			return opts, "", "", err
		}
		qName = q.Name
		if qOpts.Workers == 0 {
			qOpts.Workers = opts.Workers
		}
		opts = qOpts
		if p := q.SnapshotPath(); p != "" {
			snapPath = p
		}
	}
	if len(args) > 0 {
		snapPath = args[0]
	}

	f := cmd.Flags()
	if f.Changed("node1") {
		opts.Node1 = checkNode1
	}
	if f.Changed("node2") {
		opts.Node2 = checkNode2
	}
	if f.Changed("protocols") {
		opts.Protocols = nil
		for _, name := range util.SplitCommaSeparated(checkProtocols) {
			p, err := session.ParseProtocol(name)
			if err != nil {
				return opts, "", "", err
			}
			opts.Protocols = append(opts.Protocols, p)
		}
	}
	if f.Changed("foreign-group") {
		opts.ForeignGroups = checkForeignGroups
	}
	if f.Changed("foreign-prefix") {
		opts.ForeignPrefixes = nil
		for _, s := range checkForeignPrefixes {
			p, err := util.ParsePrefixOrAddr(s)
			if err != nil {
				return opts, "", "", fmt.Errorf("--foreign-prefix: %w", err)
			}
			opts.ForeignPrefixes = append(opts.ForeignPrefixes, p)
		}
	}
	if f.Changed("workers") {
		opts.Workers = checkWorkers
	}
	if f.Changed("skip-invalid-nodes") {
		opts.SkipInvalidNodes = checkSkipInvalid
	}
	return opts, snapPath, qName, opts.Validate()
}

// recordRun appends the outcome of a run to the run log, when one is configured.
func recordRun(snapName, qName string, rep *report.Report, runErr error, d time.Duration) {
	path := checkAuditLog
	if path == "" {
		path = userSettings.AuditLog
	}
	if path == "" {
		return
	}
	runs, err := audit.OpenRunLog(path, runLogRetention)
	if err != nil {
		util.Warnf("Run not recorded: %v", err)
		return
	}
	defer runs.Close()

	var event *audit.Event
	if runErr != nil {
		event = audit.NewEvent(uuid.NewString(), snapName).WithError(runErr)
	} else {
		event = audit.NewEvent(rep.RunID, snapName).WithReport(rep)
	}
	event.WithQuestion(qName).WithDuration(d)
	if err := runs.Append(event); err != nil {
		util.Warnf("Run not recorded: %v", err)
	}
}

func printSummary(w io.Writer, rep *report.Report) {
	t := cli.NewTable("CATEGORY", "COUNT").WithWriter(w)
	for _, c := range rep.Categories() {
		t.Row(colorCategory(c), strconv.Itoa(rep.Count(c)))
	}
	t.Flush()

	if len(rep.Skipped) > 0 {
		fmt.Fprintf(w, "\n%s %d node(s) skipped\n", cli.Yellow("WARNING:"), len(rep.Skipped))
	}
}

func colorCategory(c classify.Category) string {
	switch {
	case c == classify.CategoryBroken || classify.Status(c).IsBroken():
		return cli.Red(string(c))
	case c == classify.CategoryNonUniqueEndpoint || classify.Status(c) == classify.StatusMultipleRemotes:
		return cli.Yellow(string(c))
	case classify.Status(c) == classify.StatusUniqueMatch:
		return cli.Green(string(c))
	}
	return string(c)
}
