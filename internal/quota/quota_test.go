package quota

import (
	"testing"
	"time"

	"github.com/xshayank/vpnmarket-reseller/internal/models"
)

func i64(v int64) *int64 { return &v }

func ts(t time.Time) *time.Time { return &t }

func TestEvaluateActive(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	start := now.Add(-24 * time.Hour)
	end := now.Add(24 * time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		snap Snapshot
		want Decision
	}{
		{
			name: "under quota inside window",
			snap: Snapshot{
				Type: models.ResellerTypeTraffic, Status: models.ResellerStatusActive,
				TrafficTotalBytes: i64(1000), AggregateBytes: 500,
				WindowStartsAt: ts(start), WindowEndsAt: ts(end),
			},
			want: Ok,
		},
		{
			name: "usage exactly at quota suspends",
			snap: Snapshot{
				Type: models.ResellerTypeTraffic, Status: models.ResellerStatusActive,
				TrafficTotalBytes: i64(1000), AggregateBytes: 1000,
				WindowStartsAt: ts(start), WindowEndsAt: ts(end),
			},
			want: ShouldSuspend,
		},
		{
			name: "over quota suspends",
			snap: Snapshot{
				Type: models.ResellerTypeTraffic, Status: models.ResellerStatusActive,
				TrafficTotalBytes: i64(1000), AggregateBytes: 2000,
				WindowStartsAt: ts(start), WindowEndsAt: ts(end),
			},
			want: ShouldSuspend,
		},
		{
			name: "expired window suspends even with headroom",
			snap: Snapshot{
				Type: models.ResellerTypeTraffic, Status: models.ResellerStatusActive,
				TrafficTotalBytes: i64(1000), AggregateBytes: 100,
				WindowStartsAt: ts(start), WindowEndsAt: ts(past),
			},
			want: ShouldSuspend,
		},
		{
			name: "unlimited traffic never suspends on usage",
			snap: Snapshot{
				Type: models.ResellerTypeTraffic, Status: models.ResellerStatusActive,
				TrafficTotalBytes: nil, AggregateBytes: 1 << 50,
				WindowStartsAt: ts(start), WindowEndsAt: ts(end),
			},
			want: Ok,
		},
		{
			name: "unlimited traffic still suspends on window expiry",
			snap: Snapshot{
				Type: models.ResellerTypeTraffic, Status: models.ResellerStatusActive,
				TrafficTotalBytes: nil, AggregateBytes: 0,
				WindowStartsAt: ts(start), WindowEndsAt: ts(past),
			},
			want: ShouldSuspend,
		},
		{
			name: "no window end never suspends on time",
			snap: Snapshot{
				Type: models.ResellerTypeTraffic, Status: models.ResellerStatusActive,
				TrafficTotalBytes: i64(1000), AggregateBytes: 0,
			},
			want: Ok,
		},
		{
			name: "plan resellers are not metered",
			snap: Snapshot{
				Type: models.ResellerTypePlan, Status: models.ResellerStatusActive,
				TrafficTotalBytes: i64(1000), AggregateBytes: 5000,
				WindowStartsAt: ts(start), WindowEndsAt: ts(past),
			},
			want: Ok,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.snap, now); got != tt.want {
				t.Fatalf("Evaluate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEvaluateSuspended(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	start := now.Add(-24 * time.Hour)
	end := now.Add(24 * time.Hour)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		snap Snapshot
		want Decision
	}{
		{
			name: "headroom and valid window reactivates",
			snap: Snapshot{
				Type: models.ResellerTypeTraffic, Status: models.ResellerStatusSuspended,
				TrafficTotalBytes: i64(1000), AggregateBytes: 100,
				WindowStartsAt: ts(start), WindowEndsAt: ts(end),
			},
			want: ShouldReactivate,
		},
		{
			name: "headroom but expired window stays suspended",
			snap: Snapshot{
				Type: models.ResellerTypeTraffic, Status: models.ResellerStatusSuspended,
				TrafficTotalBytes: i64(1000), AggregateBytes: 100,
				WindowStartsAt: ts(start), WindowEndsAt: ts(past),
			},
			want: Ok,
		},
		{
			name: "valid window but exhausted quota stays suspended",
			snap: Snapshot{
				Type: models.ResellerTypeTraffic, Status: models.ResellerStatusSuspended,
				TrafficTotalBytes: i64(1000), AggregateBytes: 1000,
				WindowStartsAt: ts(start), WindowEndsAt: ts(end),
			},
			want: Ok,
		},
		{
			name: "window not started yet stays suspended",
			snap: Snapshot{
				Type: models.ResellerTypeTraffic, Status: models.ResellerStatusSuspended,
				TrafficTotalBytes: i64(1000), AggregateBytes: 100,
				WindowStartsAt: ts(future), WindowEndsAt: ts(end.Add(48 * time.Hour)),
			},
			want: Ok,
		},
		{
			name: "no window reactivates on headroom alone",
			snap: Snapshot{
				Type: models.ResellerTypeTraffic, Status: models.ResellerStatusSuspended,
				TrafficTotalBytes: i64(1000), AggregateBytes: 100,
			},
			want: ShouldReactivate,
		},
		{
			name: "end-only window reactivates before the end",
			snap: Snapshot{
				Type: models.ResellerTypeTraffic, Status: models.ResellerStatusSuspended,
				TrafficTotalBytes: i64(1000), AggregateBytes: 100,
				WindowEndsAt: ts(end),
			},
			want: ShouldReactivate,
		},
		{
			name: "end-only expired window stays suspended",
			snap: Snapshot{
				Type: models.ResellerTypeTraffic, Status: models.ResellerStatusSuspended,
				TrafficTotalBytes: i64(1000), AggregateBytes: 100,
				WindowEndsAt: ts(past),
			},
			want: Ok,
		},
		{
			name: "window ending exactly now stays suspended",
			snap: Snapshot{
				Type: models.ResellerTypeTraffic, Status: models.ResellerStatusSuspended,
				TrafficTotalBytes: i64(1000), AggregateBytes: 100,
				WindowEndsAt: ts(now),
			},
			want: Ok,
		},
		{
			name: "unlimited traffic with valid window reactivates",
			snap: Snapshot{
				Type: models.ResellerTypeTraffic, Status: models.ResellerStatusSuspended,
				TrafficTotalBytes: nil, AggregateBytes: 1 << 40,
				WindowStartsAt: ts(start), WindowEndsAt: ts(end),
			},
			want: ShouldReactivate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.snap, now); got != tt.want {
				t.Fatalf("Evaluate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSuspendReasonPrefersQuota(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	// Both triggers fire at once: the more specific quota reason wins.
	snap := Snapshot{
		Type: models.ResellerTypeTraffic, Status: models.ResellerStatusActive,
		TrafficTotalBytes: i64(1000), AggregateBytes: 1000,
		WindowStartsAt: ts(now.Add(-24 * time.Hour)), WindowEndsAt: ts(past),
	}
	if got := SuspendReason(snap); got != models.ReasonQuotaExhausted {
		t.Fatalf("SuspendReason() = %q, want %q", got, models.ReasonQuotaExhausted)
	}

	snap.AggregateBytes = 10
	if got := SuspendReason(snap); got != models.ReasonWindowExpired {
		t.Fatalf("SuspendReason() = %q, want %q", got, models.ReasonWindowExpired)
	}
}

func TestValidate(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	good := Snapshot{AggregateBytes: 10, TrafficTotalBytes: i64(100)}
	if err := Validate(good); err != nil {
		t.Fatalf("Validate(good) = %v", err)
	}

	if err := Validate(Snapshot{AggregateBytes: -1}); err == nil {
		t.Fatal("expected error for negative aggregate")
	}
	if err := Validate(Snapshot{TrafficTotalBytes: i64(-5)}); err == nil {
		t.Fatal("expected error for negative total")
	}
	inverted := Snapshot{
		WindowStartsAt: ts(now),
		WindowEndsAt:   ts(now.Add(-time.Hour)),
	}
	if err := Validate(inverted); err == nil {
		t.Fatal("expected error for inverted window")
	}
}
