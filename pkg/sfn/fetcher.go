package sfn

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/aws/aws-sdk-go-v2/aws"
	tagging "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	taggingtypes "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi/types"
	awssfn "github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/datamindedbe/stepview/pkg/aggregate"
	"github.com/datamindedbe/stepview/pkg/query"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// stateMachineResourceType is the tagging API filter for Step
	// Functions state machines.
	stateMachineResourceType = "states:stateMachine"

	// executionsPageSize is the maximum page size ListExecutions accepts.
	executionsPageSize = 100

	defaultAttempts       = 5
	defaultBaseDelay      = 200 * time.Millisecond
	defaultMaxDelay       = 5 * time.Second
	defaultRequestsPerSec = 10
)

// StateMachineRef identifies one state machine discovered for a profile.
type StateMachineRef struct {
	ARN     string
	Name    string
	Region  string
	Account string
}

// FetcherOptions tune retry and client-side throttling behavior.
type FetcherOptions struct {
	// Attempts is the number of tries per API call before giving up.
	Attempts uint

	// BaseDelay is the first backoff delay; it doubles per attempt up
	// to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// RequestsPerSec caps the request rate of this fetcher across all
	// its API calls.
	RequestsPerSec float64
}

func (o *FetcherOptions) applyDefaults() {
	if o.Attempts == 0 {
		o.Attempts = defaultAttempts
	}

	if o.BaseDelay == 0 {
		o.BaseDelay = defaultBaseDelay
	}

	if o.MaxDelay == 0 {
		o.MaxDelay = defaultMaxDelay
	}

	if o.RequestsPerSec == 0 {
		o.RequestsPerSec = defaultRequestsPerSec
	}
}

// Fetcher lists state machines and executions for a single session.
type Fetcher struct {
	log     logrus.FieldLogger
	session *Session
	limiter *rate.Limiter
	opts    FetcherOptions
}

// NewFetcher creates a fetcher for the given session.
func NewFetcher(log logrus.FieldLogger, session *Session, opts FetcherOptions) *Fetcher {
	opts.applyDefaults()

	return &Fetcher{
		log: log.WithFields(logrus.Fields{
			"component": "fetcher",
			"profile":   session.Profile,
			"region":    session.Region,
		}),
		session: session,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), int(opts.RequestsPerSec)),
		opts:    opts,
	}
}

// ListStateMachines returns all state machines visible to the session,
// restricted by the tag filter when one is given. With tags, discovery
// goes through the resource groups tagging API, which applies the AND
// combination server-side. Credential and authorization failures are
// classified so the caller can isolate the whole profile.
func (f *Fetcher) ListStateMachines(
	ctx context.Context, filter query.TagFilter,
) ([]StateMachineRef, error) {
	var (
		refs []StateMachineRef
		err  error
	)

	if filter.Empty() {
		refs, err = f.listAllStateMachines(ctx)
	} else {
		refs, err = f.listStateMachinesByTag(ctx, filter)
	}

	if err != nil {
		switch {
		case isAuthFailure(err):
			return nil, &AuthError{Profile: f.session.Profile, Err: err}
		case isAccessDenied(err):
			return nil, &PermissionError{Profile: f.session.Profile, Err: err}
		}

		return nil, err
	}

	f.log.WithField("state_machines", len(refs)).Debug("Listed state machines")

	return refs, nil
}

func (f *Fetcher) listAllStateMachines(ctx context.Context) ([]StateMachineRef, error) {
	var (
		refs      []StateMachineRef
		nextToken *string
	)

	for {
		var out *awssfn.ListStateMachinesOutput

		err := f.call(ctx, func(callCtx context.Context) error {
			var callErr error
			out, callErr = f.session.Machines.ListStateMachines(callCtx, &awssfn.ListStateMachinesInput{
				NextToken: nextToken,
			})

			return callErr
		})
		if err != nil {
			return nil, fmt.Errorf("listing state machines: %w", err)
		}

		for _, sm := range out.StateMachines {
			ref, refErr := f.refFromARN(aws.ToString(sm.StateMachineArn))
			if refErr != nil {
				f.log.WithError(refErr).Warn("Skipping state machine with unparsable ARN")

				continue
			}

			refs = append(refs, ref)
		}

		if aws.ToString(out.NextToken) == "" {
			return refs, nil
		}

		nextToken = out.NextToken
	}
}

func (f *Fetcher) listStateMachinesByTag(
	ctx context.Context, filter query.TagFilter,
) ([]StateMachineRef, error) {
	tagFilters := buildTagFilters(filter)

	var (
		refs  []StateMachineRef
		token *string
	)

	for {
		var out *tagging.GetResourcesOutput

		err := f.call(ctx, func(callCtx context.Context) error {
			var callErr error
			out, callErr = f.session.Resources.GetResources(callCtx, &tagging.GetResourcesInput{
				ResourceTypeFilters: []string{stateMachineResourceType},
				TagFilters:          tagFilters,
				PaginationToken:     token,
			})

			return callErr
		})
		if err != nil {
			return nil, fmt.Errorf("listing state machines by tag: %w", err)
		}

		for _, mapping := range out.ResourceTagMappingList {
			ref, refErr := f.refFromARN(aws.ToString(mapping.ResourceARN))
			if refErr != nil {
				f.log.WithError(refErr).Warn("Skipping resource with unparsable ARN")

				continue
			}

			refs = append(refs, ref)
		}

		if aws.ToString(out.PaginationToken) == "" {
			return refs, nil
		}

		token = out.PaginationToken
	}
}

// buildTagFilters groups filter pairs by key, preserving first-key order.
// The tagging API combines distinct keys with AND.
func buildTagFilters(filter query.TagFilter) []taggingtypes.TagFilter {
	byKey := make(map[string][]string, len(filter))

	var keys []string

	for _, t := range filter {
		if _, seen := byKey[t.Key]; !seen {
			keys = append(keys, t.Key)
		}

		byKey[t.Key] = append(byKey[t.Key], t.Value)
	}

	out := make([]taggingtypes.TagFilter, 0, len(keys))
	for _, k := range keys {
		out = append(out, taggingtypes.TagFilter{
			Key:    aws.String(k),
			Values: byKey[k],
		})
	}

	return out
}

// ListExecutions pages through a state machine's executions and returns
// the records whose start time falls inside the window. ListExecutions
// returns executions newest-first, so paging stops once a page reaches
// records older than the window start; every record is window-filtered
// client-side regardless, so correctness does not rest on that ordering.
//
// When throttling retries are exhausted mid-listing, the records fetched
// so far are returned together with a *RateLimitError so the caller can
// mark the row partial instead of dropping it.
func (f *Fetcher) ListExecutions(
	ctx context.Context, ref StateMachineRef, window query.Window,
) ([]aggregate.Record, error) {
	var (
		records   []aggregate.Record
		nextToken *string
	)

	for {
		var out *awssfn.ListExecutionsOutput

		err := f.call(ctx, func(callCtx context.Context) error {
			var callErr error
			out, callErr = f.session.Executions.ListExecutions(callCtx, &awssfn.ListExecutionsInput{
				StateMachineArn: aws.String(ref.ARN),
				MaxResults:      executionsPageSize,
				NextToken:       nextToken,
			})

			return callErr
		})
		if err != nil {
			if isThrottle(err) {
				return records, &RateLimitError{MachineARN: ref.ARN, Err: err}
			}

			return records, fmt.Errorf("listing executions for %s: %w", ref.ARN, err)
		}

		pastWindow := false

		for _, exec := range out.Executions {
			if exec.StartDate == nil {
				continue
			}

			start := exec.StartDate.UTC()
			if start.Before(window.Start) {
				pastWindow = true

				continue
			}

			if !window.Contains(start) {
				continue
			}

			records = append(records, aggregate.Record{
				ExecutionARN: aws.ToString(exec.ExecutionArn),
				MachineARN:   ref.ARN,
				Status:       string(exec.Status),
				StartTime:    start,
			})
		}

		if pastWindow || aws.ToString(out.NextToken) == "" {
			break
		}

		nextToken = out.NextToken
	}

	f.log.WithFields(logrus.Fields{
		"state_machine": ref.Name,
		"executions":    len(records),
	}).Debug("Listed executions")

	return records, nil
}

// call runs one API operation behind the client-side rate limiter with
// exponential backoff on throttling and transient network errors.
func (f *Fetcher) call(ctx context.Context, fn func(context.Context) error) error {
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(f.opts.Attempts),
		retry.Delay(f.opts.BaseDelay),
		retry.MaxDelay(f.opts.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
	)

	return r.Do(func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return retry.Unrecoverable(err)
		}

		return fn(ctx)
	})
}

func (f *Fetcher) refFromARN(raw string) (StateMachineRef, error) {
	arn, err := ParseARN(raw)
	if err != nil {
		return StateMachineRef{}, err
	}

	return StateMachineRef{
		ARN:     raw,
		Name:    arn.Resource,
		Region:  arn.Region,
		Account: arn.Account,
	}, nil
}
