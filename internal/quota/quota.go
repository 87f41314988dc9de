// Package quota holds the pure suspend/reactivate decision function for
// traffic-type resellers. It performs no I/O; callers are responsible for
// building the snapshot from a single consistent read.
package quota

import (
	"fmt"
	"time"

	"github.com/xshayank/vpnmarket-reseller/internal/models"
)

// Decision is the outcome of evaluating a reseller snapshot.
type Decision int

const (
	Ok Decision = iota
	ShouldSuspend
	ShouldReactivate
)

func (d Decision) String() string {
	switch d {
	case ShouldSuspend:
		return "should_suspend"
	case ShouldReactivate:
		return "should_reactivate"
	default:
		return "ok"
	}
}

// Snapshot is the reseller state the evaluator decides on. AggregateBytes is
// the full usage aggregate (live + settled, including soft-deleted configs,
// minus forgiven bytes).
type Snapshot struct {
	Type              string
	Status            string
	TrafficTotalBytes *int64
	AggregateBytes    int64
	WindowStartsAt    *time.Time
	WindowEndsAt      *time.Time
}

// SnapshotOf builds a Snapshot from a reseller row and its precomputed
// usage aggregate.
func SnapshotOf(r *models.Reseller, aggregateBytes int64) Snapshot {
	return Snapshot{
		Type:              r.Type,
		Status:            r.Status,
		TrafficTotalBytes: r.TrafficTotalBytes,
		AggregateBytes:    aggregateBytes,
		WindowStartsAt:    r.WindowStartsAt,
		WindowEndsAt:      r.WindowEndsAt,
	}
}

// Evaluate decides whether a reseller should be suspended, reactivated, or
// left alone.
//
// Suspension triggers are OR'd: traffic exhaustion or window expiry alone is
// enough. Reactivation requires BOTH traffic headroom and a window that has
// not ended. A nil traffic total means unlimited and never triggers on
// traffic; nil window bounds do not constrain either side, so a reseller
// suspended on quota alone reactivates on a top-up without any window set.
func Evaluate(s Snapshot, now time.Time) Decision {
	switch s.Status {
	case models.ResellerStatusActive:
		if s.Type != models.ResellerTypeTraffic {
			return Ok
		}
		if s.TrafficTotalBytes != nil && s.AggregateBytes >= *s.TrafficTotalBytes {
			return ShouldSuspend
		}
		if s.WindowEndsAt != nil && !now.Before(*s.WindowEndsAt) {
			return ShouldSuspend
		}
		return Ok

	case models.ResellerStatusSuspended:
		if s.TrafficTotalBytes != nil && s.AggregateBytes >= *s.TrafficTotalBytes {
			return Ok
		}
		if !windowValid(s.WindowStartsAt, s.WindowEndsAt, now) {
			return Ok
		}
		return ShouldReactivate

	default:
		return Ok
	}
}

// SuspendReason names which trigger fired for an active snapshot that
// evaluated to ShouldSuspend. Traffic exhaustion wins the tie so the
// resulting events carry the more specific cause.
func SuspendReason(s Snapshot) string {
	if s.TrafficTotalBytes != nil && s.AggregateBytes >= *s.TrafficTotalBytes {
		return models.ReasonQuotaExhausted
	}
	return models.ReasonWindowExpired
}

// Validate reports data bugs in a snapshot. An invalid snapshot is not a
// runtime error; jobs log it and move on.
func Validate(s Snapshot) error {
	if s.AggregateBytes < 0 {
		return fmt.Errorf("negative aggregate usage: %d", s.AggregateBytes)
	}
	if s.TrafficTotalBytes != nil && *s.TrafficTotalBytes < 0 {
		return fmt.Errorf("negative traffic total: %d", *s.TrafficTotalBytes)
	}
	if s.WindowStartsAt != nil && s.WindowEndsAt != nil && s.WindowEndsAt.Before(*s.WindowStartsAt) {
		return fmt.Errorf("window ends before it starts")
	}
	return nil
}

// windowValid mirrors the suspension triggers: a nil bound does not
// constrain, and the end bound turns the window invalid at the same instant
// suspension would fire, so the two sides cannot flap.
func windowValid(start, end *time.Time, now time.Time) bool {
	if start != nil && now.Before(*start) {
		return false
	}
	if end != nil && !now.Before(*end) {
		return false
	}
	return true
}
