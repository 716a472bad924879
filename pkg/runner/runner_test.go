package runner

import (
	"context"
	"testing"
	"time"

	"github.com/datamindedbe/stepview/pkg/aggregate"
	"github.com/datamindedbe/stepview/pkg/query"
	"github.com/datamindedbe/stepview/pkg/sfn"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func machineRef(name string) sfn.StateMachineRef {
	return sfn.StateMachineRef{
		ARN:     "arn:aws:states:eu-west-1:123456789012:stateMachine:" + name,
		Name:    name,
		Region:  "eu-west-1",
		Account: "123456789012",
	}
}

func records(machine sfn.StateMachineRef, statuses ...string) []aggregate.Record {
	out := make([]aggregate.Record, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, aggregate.Record{
			MachineARN: machine.ARN,
			Status:     s,
			StartTime:  time.Now().UTC(),
		})
	}

	return out
}

// fakeFetcher satisfies Fetcher without any network.
type fakeFetcher struct {
	machines []sfn.StateMachineRef
	listErr  error

	execs    map[string][]aggregate.Record
	execErrs map[string]error
}

func (f *fakeFetcher) ListStateMachines(
	_ context.Context, _ query.TagFilter,
) ([]sfn.StateMachineRef, error) {
	return f.machines, f.listErr
}

func (f *fakeFetcher) ListExecutions(
	_ context.Context, ref sfn.StateMachineRef, _ query.Window,
) ([]aggregate.Record, error) {
	return f.execs[ref.Name], f.execErrs[ref.Name]
}

func factoryFor(fetchers map[string]*fakeFetcher) FetcherFactory {
	return func(_ context.Context, profile, _ string) (Fetcher, error) {
		return fetchers[profile], nil
	}
}

func testLog() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

func testWindow() query.Window {
	now := time.Now().UTC()

	return query.Window{Start: now.Add(-24 * time.Hour), End: now}
}

func TestRun_HappyPath(t *testing.T) {
	orders := machineRef("orders")

	statuses := []string{
		"SUCCEEDED", "SUCCEEDED", "SUCCEEDED", "SUCCEEDED", "SUCCEEDED",
		"SUCCEEDED", "SUCCEEDED", "RUNNING", "RUNNING", "FAILED",
	}

	fetchers := map[string]*fakeFetcher{
		"default": {
			machines: []sfn.StateMachineRef{orders},
			execs:    map[string][]aggregate.Record{"orders": records(orders, statuses...)},
		},
	}

	r := New(testLog(), Options{
		Profiles: []string{"default"},
		Window:   testWindow(),
	}, factoryFor(fetchers))

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Empty(t, report.Warnings)

	row := report.Rows[0]
	assert.Equal(t, "orders", row.StateMachine)
	assert.Equal(t, "default", row.Profile)
	assert.Equal(t, "123456789012", row.Account)
	assert.Equal(t, "eu-west-1", row.Region)
	assert.Contains(t, row.ConsoleURL, orders.ARN)

	assert.Equal(t, int64(10), row.Summary.Total)
	assert.Equal(t, int64(7), row.Summary.Succeeded)
	assert.InDelta(t, 70.0, row.Summary.SucceededPercent(), 1e-9)
	assert.Equal(t, int64(2), row.Summary.Running)
	assert.Equal(t, int64(1), row.Summary.Failed)
	assert.Equal(t, int64(0), row.Summary.Aborted)
	assert.Equal(t, int64(0), row.Summary.TimedOut)
	assert.Equal(t, int64(0), row.Summary.Throttled)
	assert.False(t, row.Summary.Partial)
}

func TestRun_ProfileFailureIsIsolated(t *testing.T) {
	billing := machineRef("billing")

	fetchers := map[string]*fakeFetcher{
		"a": {
			listErr: &sfn.AuthError{Profile: "a"},
		},
		"b": {
			machines: []sfn.StateMachineRef{billing},
			execs:    map[string][]aggregate.Record{"billing": records(billing, "SUCCEEDED")},
		},
	}

	r := New(testLog(), Options{
		Profiles: []string{"a", "b"},
		Window:   testWindow(),
	}, factoryFor(fetchers))

	report, err := r.Run(context.Background())
	require.NoError(t, err, "one healthy profile keeps the run successful")

	require.Len(t, report.Rows, 1)
	assert.Equal(t, "b", report.Rows[0].Profile)

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "a", report.Warnings[0].Profile)
	assert.Contains(t, report.Warnings[0].Reason, "credentials")
}

func TestRun_AllProfilesFailed(t *testing.T) {
	fetchers := map[string]*fakeFetcher{
		"a": {listErr: &sfn.AuthError{Profile: "a"}},
		"b": {listErr: &sfn.PermissionError{Profile: "b"}},
	}

	r := New(testLog(), Options{
		Profiles: []string{"a", "b"},
		Window:   testWindow(),
	}, factoryFor(fetchers))

	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrAllProfilesFailed)
}

func TestRun_RateLimitedMachineIsPartial(t *testing.T) {
	orders := machineRef("orders")
	billing := machineRef("billing")

	fetchers := map[string]*fakeFetcher{
		"default": {
			machines: []sfn.StateMachineRef{orders, billing},
			execs: map[string][]aggregate.Record{
				"orders":  records(orders, "SUCCEEDED", "SUCCEEDED"),
				"billing": records(billing, "SUCCEEDED"),
			},
			execErrs: map[string]error{
				"orders": &sfn.RateLimitError{MachineARN: orders.ARN},
			},
		},
	}

	r := New(testLog(), Options{
		Profiles: []string{"default"},
		Window:   testWindow(),
	}, factoryFor(fetchers))

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Rows, 2)

	// Rows are sorted by machine name: billing, orders.
	assert.Equal(t, "billing", report.Rows[0].StateMachine)
	assert.False(t, report.Rows[0].Summary.Partial)

	assert.Equal(t, "orders", report.Rows[1].StateMachine)
	assert.True(t, report.Rows[1].Summary.Partial)
	assert.Equal(t, int64(2), report.Rows[1].Summary.Total,
		"records fetched before throttling still count")

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "orders", report.Warnings[0].Machine)
}

func TestRun_RowsSortedByMachineName(t *testing.T) {
	machines := []sfn.StateMachineRef{
		machineRef("zeta"), machineRef("alpha"), machineRef("mid"),
	}

	execs := make(map[string][]aggregate.Record, len(machines))
	for _, m := range machines {
		execs[m.Name] = records(m, "SUCCEEDED")
	}

	fetchers := map[string]*fakeFetcher{
		"default": {machines: machines, execs: execs},
	}

	r := New(testLog(), Options{
		Profiles: []string{"default"},
		Window:   testWindow(),
	}, factoryFor(fetchers))

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)

	assert.Equal(t, "alpha", report.Rows[0].StateMachine)
	assert.Equal(t, "mid", report.Rows[1].StateMachine)
	assert.Equal(t, "zeta", report.Rows[2].StateMachine)
}

func TestRun_EmptyProfileHasNoRowsButSucceeds(t *testing.T) {
	fetchers := map[string]*fakeFetcher{
		"default": {},
	}

	r := New(testLog(), Options{
		Profiles: []string{"default"},
		Window:   testWindow(),
	}, factoryFor(fetchers))

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Rows)
	assert.Empty(t, report.Warnings)
}

func TestRun_CancelledContextAbortsWithoutReport(t *testing.T) {
	orders := machineRef("orders")

	fetchers := map[string]*fakeFetcher{
		"default": {
			machines: []sfn.StateMachineRef{orders},
			execs:    map[string][]aggregate.Record{"orders": records(orders, "SUCCEEDED")},
		},
	}

	r := New(testLog(), Options{
		Profiles: []string{"default"},
		Window:   testWindow(),
	}, factoryFor(fetchers))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, report)
}

func TestWarning_String(t *testing.T) {
	w := Warning{Profile: "p", Region: "eu-west-1", Machine: "orders", Reason: "boom"}
	assert.Equal(t, "p/eu-west-1/orders: boom", w.String())

	w = Warning{Profile: "p", Reason: "boom"}
	assert.Equal(t, "p: boom", w.String())
}
