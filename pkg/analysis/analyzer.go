// Package analysis runs the session check pipeline over a snapshot:
// ownership index, session catalog, then per-node resolution and
// classification, aggregated into a report.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/newtron-network/sessioncheck/pkg/classify"
	"github.com/newtron-network/sessioncheck/pkg/metrics"
	"github.com/newtron-network/sessioncheck/pkg/model"
	"github.com/newtron-network/sessioncheck/pkg/ownership"
	"github.com/newtron-network/sessioncheck/pkg/report"
	"github.com/newtron-network/sessioncheck/pkg/resolve"
	"github.com/newtron-network/sessioncheck/pkg/session"
	"github.com/newtron-network/sessioncheck/pkg/util"
)

// Phase names used in errors, logs and metrics
const (
	PhaseOwnership = "ownership"
	PhaseCatalog   = "catalog"
	PhaseClassify  = "classify"
)

// Analyzer runs the pipeline with fixed options. It holds no per-run
// state and may be reused across snapshots.
type Analyzer struct {
	opts    Options
	node1   *regexp.Regexp
	node2   *regexp.Regexp
	foreign *classify.Foreign
	metrics *metrics.Registry
}

// New validates opts and returns an analyzer
func New(opts Options) (*Analyzer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	node1, _ := compileNodeRegex(opts.Node1)
	node2, _ := compileNodeRegex(opts.Node2)
	return &Analyzer{
		opts:    opts,
		node1:   node1,
		node2:   node2,
		foreign: classify.NewForeign(opts.ForeignGroups, opts.ForeignPrefixes),
		metrics: metrics.DefaultRegistry(),
	}, nil
}

// WithMetrics records run metrics into r instead of the default registry
func (a *Analyzer) WithMetrics(r *metrics.Registry) *Analyzer {
	a.metrics = r
	return a
}

func (a *Analyzer) workers() int {
	if a.opts.Workers > 0 {
		return a.opts.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Run analyzes snap. Cancellation is honored between phases and before
// each node task; a cancelled run returns no report.
func (a *Analyzer) Run(ctx context.Context, snap *model.Snapshot) (*report.Report, error) {
	runID := uuid.NewString()
	log := util.WithRun(runID)
	start := time.Now()

	rep, err := a.run(ctx, snap, runID, log)
	if err != nil {
		a.metrics.RecordRun("error", time.Now())
		return nil, err
	}
	a.metrics.RecordRun("success", time.Now())
	log.WithField("sessions", rep.Total()).Debugf("Run finished in %s", time.Since(start))
	return rep, nil
}

func (a *Analyzer) run(ctx context.Context, snap *model.Snapshot, runID string, log *logrus.Entry) (*report.Report, error) {
	if snap == nil {
		return nil, fmt.Errorf("nil snapshot")
	}

	// Phase 1: ownership index, frozen before anything reads it
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", PhaseOwnership, err)
	}
	t := time.Now()
	owners := ownership.Build(snap.SortedNodes())
	if err := owners.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", PhaseOwnership, err)
	}
	a.metrics.RecordPhase(PhaseOwnership, time.Since(t))
	log.WithField("phase", PhaseOwnership).Debugf("Indexed %d addresses", owners.Len())

	// Phase 2: session catalog
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", PhaseCatalog, err)
	}
	t = time.Now()
	cat, nodeErrs, err := session.BuildCatalog(ctx, snap, session.Options{
		Protocols: a.opts.Protocols,
		Strict:    !a.opts.SkipInvalidNodes,
		Workers:   a.workers(),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", PhaseCatalog, err)
	}
	a.metrics.RecordPhase(PhaseCatalog, time.Since(t))
	a.metrics.NodeErrorsTotal.Add(float64(len(nodeErrs)))
	a.metrics.SetSizes(owners.Len(), cat.Len())
	log.WithField("phase", PhaseCatalog).Debugf("Cataloged %d declarations (%d nodes skipped)", cat.Len(), len(nodeErrs))

	// Phase 3: resolution and classification, one task per seed node
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", PhaseClassify, err)
	}
	t = time.Now()
	resolver := resolve.New(cat, owners, a.node2.MatchString)
	classifier := classify.New(owners, resolver, a.foreign)

	var seeds []string
	for _, host := range snap.Hostnames() {
		if a.node1.MatchString(host) {
			seeds = append(seeds, host)
		}
	}

	aggs := make([]*report.Aggregator, len(seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers())
	for i, host := range seeds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			agg := report.NewAggregator()
			for _, d := range cat.ForNode(host) {
				agg.Add(classifier.Classify(d))
			}
			aggs[i] = agg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%s: %w", PhaseClassify, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", PhaseClassify, err)
	}

	final := report.NewAggregator()
	for _, agg := range aggs {
		final.Merge(agg)
	}
	rep := final.Report()
	rep.RunID = runID
	rep.Snapshot = snap.Name
	rep.Skipped = skippedNodes(nodeErrs)
	a.metrics.RecordPhase(PhaseClassify, time.Since(t))

	for _, c := range classify.Statuses {
		for _, e := range rep.Entries(classify.Category(c)) {
			a.metrics.RecordSession(string(e.Session.Declaration.Protocol), string(c))
		}
	}
	return rep, nil
}

// skippedNodes maps the hostname of each failed node to its error
func skippedNodes(nodeErrs []error) map[string]string {
	if len(nodeErrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(nodeErrs))
	for _, err := range nodeErrs {
		var cie *util.ConfigInvariantError
		if errors.As(err, &cie) {
			out[cie.Hostname] = cie.Reason
			continue
		}
		out[err.Error()] = err.Error()
	}
	return out
}
