// Package runner orchestrates one stepview run: fan out fetches per
// (profile, region), fold executions into summaries, merge the partial
// aggregates, and hand stable rows to the presenter.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/datamindedbe/stepview/pkg/aggregate"
	"github.com/datamindedbe/stepview/pkg/config"
	"github.com/datamindedbe/stepview/pkg/query"
	"github.com/datamindedbe/stepview/pkg/sfn"
	"github.com/datamindedbe/stepview/pkg/view"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Fetcher is the slice of the sfn fetcher the runner needs; tests inject
// fakes through the factory.
type Fetcher interface {
	ListStateMachines(ctx context.Context, filter query.TagFilter) ([]sfn.StateMachineRef, error)
	ListExecutions(ctx context.Context, ref sfn.StateMachineRef, window query.Window) ([]aggregate.Record, error)
}

// FetcherFactory builds a fetcher for one (profile, region) pair. An
// empty region means the profile's configured default region.
type FetcherFactory func(ctx context.Context, profile, region string) (Fetcher, error)

// NewFetcherFactory returns the production factory backed by the AWS
// shared config chain.
func NewFetcherFactory(log logrus.FieldLogger, fetch config.FetchConfig) FetcherFactory {
	return func(ctx context.Context, profile, region string) (Fetcher, error) {
		session, err := sfn.NewSession(ctx, profile, region)
		if err != nil {
			return nil, err
		}

		return sfn.NewFetcher(log, session, sfn.FetcherOptions{
			Attempts:       fetch.RetryAttempts,
			RequestsPerSec: fetch.RequestsPerSec,
		}), nil
	}
}

// Options is the resolved scope of a run.
type Options struct {
	Profiles []string
	// Regions to probe per profile; empty probes each profile's
	// default region only.
	Regions     []string
	Window      query.Window
	Filter      query.TagFilter
	Concurrency int
}

// Warning records a skipped or partial fetch, scoped to the narrowest
// failing unit.
type Warning struct {
	Profile string
	Region  string
	Machine string
	Reason  string
}

func (w Warning) String() string {
	scope := w.Profile
	if w.Region != "" {
		scope += "/" + w.Region
	}

	if w.Machine != "" {
		scope += "/" + w.Machine
	}

	return scope + ": " + w.Reason
}

// Report is the outcome of a run: rows in render order plus the warnings
// that accumulated along the way.
type Report struct {
	Rows     []view.Row
	Warnings []Warning
}

// ErrAllProfilesFailed means no profile produced any data; the run exits
// non-zero.
var ErrAllProfilesFailed = errors.New("all profiles failed")

// Runner drives the fetch/aggregate pipeline.
type Runner struct {
	log        logrus.FieldLogger
	opts       Options
	newFetcher FetcherFactory
}

// New creates a runner.
func New(log logrus.FieldLogger, opts Options, factory FetcherFactory) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = config.DefaultConcurrency
	}

	return &Runner{
		log:        log.WithField("component", "runner"),
		opts:       opts,
		newFetcher: factory,
	}
}

// target is one (profile, region) fetch unit.
type target struct {
	profile string
	region  string
}

// targetResult is the immutable contribution of one fan-out task.
type targetResult struct {
	batches  []map[aggregate.Key]*aggregate.Summary
	refs     map[aggregate.Key]sfn.StateMachineRef
	warnings []Warning
	// failed marks a profile-level failure (auth, permission, listing).
	failed bool
}

// Run executes the pipeline. Fetches across targets run concurrently;
// each task's output is combined through the aggregator's associative
// merge, so the result is independent of scheduling order. A cancelled
// context aborts without producing a report: no partial render happens
// on interrupt.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	targets := r.targets()

	results := make([]targetResult, len(targets))

	g, gCtx := errgroup.WithContext(ctx)

	for i, tgt := range targets {
		g.Go(func() error {
			results[i] = r.runTarget(gCtx, tgt)

			return gCtx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		batches  []map[aggregate.Key]*aggregate.Summary
		warnings []Warning
		refs     = make(map[aggregate.Key]sfn.StateMachineRef, 16)
		anyOK    bool
	)

	for _, res := range results {
		batches = append(batches, res.batches...)
		warnings = append(warnings, res.warnings...)

		for k, ref := range res.refs {
			refs[k] = ref
		}

		if !res.failed {
			anyOK = true
		}
	}

	if !anyOK {
		return nil, fmt.Errorf("%w: %d target(s) attempted", ErrAllProfilesFailed, len(targets))
	}

	merged := aggregate.MergeAll(batches...)

	rows := make([]view.Row, 0, len(merged))

	for _, key := range aggregate.SortedKeys(merged) {
		ref := refs[key]

		rows = append(rows, view.Row{
			StateMachine: key.Machine,
			ConsoleURL:   sfn.ConsoleURL(ref.ARN, key.Region),
			Profile:      key.Profile,
			Account:      ref.Account,
			Region:       key.Region,
			Summary:      *merged[key],
		})
	}

	return &Report{Rows: rows, Warnings: warnings}, nil
}

func (r *Runner) targets() []target {
	regions := r.opts.Regions
	if len(regions) == 0 {
		regions = []string{""}
	}

	targets := make([]target, 0, len(r.opts.Profiles)*len(regions))

	for _, p := range r.opts.Profiles {
		for _, reg := range regions {
			targets = append(targets, target{profile: p, region: reg})
		}
	}

	return targets
}

// runTarget fetches one (profile, region). All failures are folded into
// the result as warnings; nothing here aborts sibling targets.
func (r *Runner) runTarget(ctx context.Context, tgt target) targetResult {
	log := r.log.WithFields(logrus.Fields{
		"profile": tgt.profile,
		"region":  tgt.region,
	})

	var res targetResult

	fetcher, err := r.newFetcher(ctx, tgt.profile, tgt.region)
	if err != nil {
		log.WithError(err).Warn("Skipping profile: session setup failed")

		res.failed = true
		res.warnings = append(res.warnings, Warning{
			Profile: tgt.profile,
			Region:  tgt.region,
			Reason:  err.Error(),
		})

		return res
	}

	log.Debug("Fetching state machines")

	machines, err := fetcher.ListStateMachines(ctx, r.opts.Filter)
	if err != nil {
		log.WithError(err).Warn("Skipping profile: listing state machines failed")

		res.failed = true
		res.warnings = append(res.warnings, Warning{
			Profile: tgt.profile,
			Region:  tgt.region,
			Reason:  err.Error(),
		})

		return res
	}

	if len(machines) == 0 {
		log.Info("No state machines found")

		return res
	}

	var mu sync.Mutex

	res.refs = make(map[aggregate.Key]sfn.StateMachineRef, len(machines))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for _, machine := range machines {
		g.Go(func() error {
			key := aggregate.Key{
				Profile: tgt.profile,
				Region:  machine.Region,
				Machine: machine.Name,
			}

			records, execErr := fetcher.ListExecutions(gCtx, machine, r.opts.Window)

			batch := aggregate.Fold(records, func(aggregate.Record) aggregate.Key {
				return key
			})

			if batch[key] == nil {
				batch[key] = &aggregate.Summary{}
			}

			var warning *Warning

			if execErr != nil {
				var rlErr *sfn.RateLimitError
				if errors.As(execErr, &rlErr) {
					// Keep the row, flag it as incomplete.
					batch[key].Partial = true
					warning = &Warning{
						Profile: tgt.profile,
						Region:  machine.Region,
						Machine: machine.Name,
						Reason:  "rate limit retries exhausted, counters incomplete",
					}
				} else {
					log.WithError(execErr).WithField("state_machine", machine.Name).
						Warn("Skipping state machine")

					mu.Lock()
					res.warnings = append(res.warnings, Warning{
						Profile: tgt.profile,
						Region:  machine.Region,
						Machine: machine.Name,
						Reason:  execErr.Error(),
					})
					mu.Unlock()

					return gCtx.Err()
				}
			}

			mu.Lock()
			res.batches = append(res.batches, batch)
			res.refs[key] = machine

			if warning != nil {
				res.warnings = append(res.warnings, *warning)
			}
			mu.Unlock()

			return gCtx.Err()
		})
	}

	// Task errors are only context cancellations; per-machine failures
	// were already converted into warnings.
	if err := g.Wait(); err != nil {
		return res
	}

	return res
}
