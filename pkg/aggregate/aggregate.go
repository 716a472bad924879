// Package aggregate folds state machine execution records into per-machine
// summary counters. Summaries merge associatively so partial results from
// concurrent fetches can be combined in any order.
package aggregate

import (
	"sort"
	"strings"
	"time"
)

// Execution statuses as reported by the Step Functions API.
const (
	StatusSucceeded = "SUCCEEDED"
	StatusRunning   = "RUNNING"
	StatusFailed    = "FAILED"
	StatusAborted   = "ABORTED"
	StatusTimedOut  = "TIMED_OUT"
	StatusThrottled = "THROTTLED"
)

// Record is one state machine execution, produced by the fetcher and
// discarded once folded into a Summary.
type Record struct {
	ExecutionARN string
	MachineARN   string
	Status       string
	StartTime    time.Time
}

// Key identifies one summary row.
type Key struct {
	Profile string
	Region  string
	Machine string
}

// Summary holds aggregated execution counters for one state machine.
// Statuses the provider may add in the future land in Other instead of
// failing, so Total always equals the sum of all buckets.
type Summary struct {
	Total     int64
	Succeeded int64
	Running   int64
	Failed    int64
	Aborted   int64
	TimedOut  int64
	Throttled int64
	Other     int64

	// Partial marks a summary whose execution listing could not be
	// completed (rate limit retries exhausted). The counters cover only
	// what was fetched.
	Partial bool
}

// Add folds a single execution status into the summary.
func (s *Summary) Add(status string) {
	s.Total++

	switch strings.ToUpper(status) {
	case StatusSucceeded:
		s.Succeeded++
	case StatusRunning:
		s.Running++
	case StatusFailed:
		s.Failed++
	case StatusAborted:
		s.Aborted++
	case StatusTimedOut:
		s.TimedOut++
	case StatusThrottled:
		s.Throttled++
	default:
		s.Other++
	}
}

// Merge combines another summary into this one. Merging is associative and
// commutative: merging partial aggregates equals aggregating the union of
// their inputs, whatever the fan-out order was.
func (s *Summary) Merge(other *Summary) {
	if other == nil {
		return
	}

	s.Total += other.Total
	s.Succeeded += other.Succeeded
	s.Running += other.Running
	s.Failed += other.Failed
	s.Aborted += other.Aborted
	s.TimedOut += other.TimedOut
	s.Throttled += other.Throttled
	s.Other += other.Other
	s.Partial = s.Partial || other.Partial
}

// SucceededPercent returns the success rate in [0, 100]. A summary with no
// executions reports 0 rather than NaN so rendering stays well-defined.
func (s *Summary) SucceededPercent() float64 {
	if s.Total == 0 {
		return 0
	}

	return float64(s.Succeeded) / float64(s.Total) * 100
}

// Fold aggregates a batch of records keyed by (profile, region, machine).
// The machine name and region are derived by the caller via the key func,
// keeping this package free of ARN knowledge.
func Fold(records []Record, keyFor func(Record) Key) map[Key]*Summary {
	out := make(map[Key]*Summary, 8)

	for _, r := range records {
		k := keyFor(r)

		sum, ok := out[k]
		if !ok {
			sum = &Summary{}
			out[k] = sum
		}

		sum.Add(r.Status)
	}

	return out
}

// MergeAll combines per-batch aggregates into a single mapping.
func MergeAll(batches ...map[Key]*Summary) map[Key]*Summary {
	out := make(map[Key]*Summary, 8)

	for _, batch := range batches {
		for k, sum := range batch {
			existing, ok := out[k]
			if !ok {
				existing = &Summary{}
				out[k] = existing
			}

			existing.Merge(sum)
		}
	}

	return out
}

// SortedKeys returns the keys ordered by profile, region, then machine
// name, giving the presenter a stable row order.
func SortedKeys(m map[Key]*Summary) []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Profile != keys[j].Profile {
			return keys[i].Profile < keys[j].Profile
		}

		if keys[i].Region != keys[j].Region {
			return keys[i].Region < keys[j].Region
		}

		return keys[i].Machine < keys[j].Machine
	})

	return keys
}
