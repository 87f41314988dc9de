package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/xshayank/vpnmarket-reseller/internal/lifecycle"
	"github.com/xshayank/vpnmarket-reseller/internal/models"
	"github.com/xshayank/vpnmarket-reseller/internal/provision"
)

func i64(v int64) *int64 { return &v }

func ts(t time.Time) *time.Time { return &t }

func bptr(b bool) *bool { return &b }

type fakeDirectory struct {
	resellers     map[uint]*models.Reseller
	configs       map[uint][]models.ResellerConfig // by reseller
	lastEvents    map[uint]*models.ResellerConfigEvent
	createdEvents []*models.ResellerConfigEvent
	usedBytes     map[uint]int64
	syncedUsage   map[uint]int64
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		resellers:   make(map[uint]*models.Reseller),
		configs:     make(map[uint][]models.ResellerConfig),
		lastEvents:  make(map[uint]*models.ResellerConfigEvent),
		usedBytes:   make(map[uint]int64),
		syncedUsage: make(map[uint]int64),
	}
}

func (d *fakeDirectory) ResellerByID(id uint) (*models.Reseller, error) {
	r, ok := d.resellers[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return r, nil
}

func (d *fakeDirectory) TrafficMeteredResellers() ([]models.Reseller, error) {
	var out []models.Reseller
	for _, r := range d.resellers {
		if r.Type == models.ResellerTypeTraffic {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (d *fakeDirectory) SuspendedResellers() ([]models.Reseller, error) {
	var out []models.Reseller
	for _, r := range d.resellers {
		if r.Status == models.ResellerStatusSuspended {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (d *fakeDirectory) AllConfigsOfReseller(resellerID uint) ([]models.ResellerConfig, error) {
	return d.configs[resellerID], nil
}

func (d *fakeDirectory) ConfigsOfResellerByStatus(resellerID uint, status string) ([]models.ResellerConfig, error) {
	var out []models.ResellerConfig
	for _, cfg := range d.configs[resellerID] {
		if cfg.Status == status && !cfg.DeletedAt.Valid {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (d *fakeDirectory) ConfigsByStatus(status string) ([]models.ResellerConfig, error) {
	var out []models.ResellerConfig
	for _, configs := range d.configs {
		for _, cfg := range configs {
			if cfg.Status == status && !cfg.DeletedAt.Valid {
				out = append(out, cfg)
			}
		}
	}
	return out, nil
}

func (d *fakeDirectory) ExpiredDueConfigs(now time.Time) ([]models.ResellerConfig, error) {
	var out []models.ResellerConfig
	for _, configs := range d.configs {
		for _, cfg := range configs {
			if cfg.Status == models.ConfigStatusActive && cfg.ExpiresAt != nil && !cfg.ExpiresAt.After(now) {
				out = append(out, cfg)
			}
		}
	}
	return out, nil
}

func (d *fakeDirectory) ResetDueConfigs(now time.Time) ([]models.ResellerConfig, error) {
	var out []models.ResellerConfig
	for _, configs := range d.configs {
		for _, cfg := range configs {
			if cfg.NextUsageResetAt != nil && !cfg.NextUsageResetAt.After(now) && !cfg.DeletedAt.Valid {
				out = append(out, cfg)
			}
		}
	}
	return out, nil
}

func (d *fakeDirectory) UpdateResellerUsedBytes(id uint, usedBytes int64) error {
	d.usedBytes[id] = usedBytes
	return nil
}

func (d *fakeDirectory) UpdateConfigUsage(id uint, usageBytes int64) error {
	d.syncedUsage[id] = usageBytes
	return nil
}

func (d *fakeDirectory) LastEvent(configID uint) (*models.ResellerConfigEvent, error) {
	return d.lastEvents[configID], nil
}

func (d *fakeDirectory) CreateEvent(ev *models.ResellerConfigEvent) error {
	d.createdEvents = append(d.createdEvents, ev)
	return nil
}

// fakeLifecycle records transitions and can fail or panic on chosen configs.
type fakeLifecycle struct {
	dir          *fakeDirectory
	disabled     []uint
	enabled      []uint
	reset        []uint
	expired      []uint
	suspended    []uint
	reactivated  []uint
	failConfigs  map[uint]error
	panicConfigs map[uint]bool
	notEligible  map[uint]bool
}

func newFakeLifecycle(dir *fakeDirectory) *fakeLifecycle {
	return &fakeLifecycle{
		dir:          dir,
		failConfigs:  make(map[uint]error),
		panicConfigs: make(map[uint]bool),
		notEligible:  make(map[uint]bool),
	}
}

func (f *fakeLifecycle) check(configID uint) error {
	if f.panicConfigs[configID] {
		panic("corrupt row")
	}
	if err, ok := f.failConfigs[configID]; ok {
		return err
	}
	return nil
}

func (f *fakeLifecycle) AutoDisable(ctx context.Context, configID uint, reason string) (*lifecycle.Result, error) {
	if err := f.check(configID); err != nil {
		return nil, err
	}
	f.disabled = append(f.disabled, configID)
	return &lifecycle.Result{Remote: provision.Outcome{Success: true, Attempts: 1}}, nil
}

func (f *fakeLifecycle) AutoEnable(ctx context.Context, configID uint) (*lifecycle.Result, error) {
	if f.notEligible[configID] {
		return nil, lifecycle.ErrNotEligible
	}
	if err := f.check(configID); err != nil {
		return nil, err
	}
	f.enabled = append(f.enabled, configID)
	return &lifecycle.Result{Remote: provision.Outcome{Success: true, Attempts: 1}}, nil
}

func (f *fakeLifecycle) ResetUsage(ctx context.Context, configID uint, reason string) (*lifecycle.Result, error) {
	if err := f.check(configID); err != nil {
		return nil, err
	}
	f.reset = append(f.reset, configID)
	for _, configs := range f.dir.configs {
		for i := range configs {
			if configs[i].ID == configID {
				cfg := configs[i]
				return &lifecycle.Result{Config: &cfg, Remote: provision.Outcome{Success: true, Attempts: 1}}, nil
			}
		}
	}
	return nil, errors.New("record not found")
}

func (f *fakeLifecycle) Expire(ctx context.Context, configID uint) (*lifecycle.Result, error) {
	if err := f.check(configID); err != nil {
		return nil, err
	}
	f.expired = append(f.expired, configID)
	return &lifecycle.Result{Remote: provision.Outcome{Success: true, Attempts: 1}}, nil
}

func (f *fakeLifecycle) SuspendReseller(ctx context.Context, resellerID uint) (*models.Reseller, error) {
	f.suspended = append(f.suspended, resellerID)
	r := f.dir.resellers[resellerID]
	r.Status = models.ResellerStatusSuspended
	return r, nil
}

func (f *fakeLifecycle) ReactivateReseller(ctx context.Context, resellerID uint) (*models.Reseller, error) {
	f.reactivated = append(f.reactivated, resellerID)
	r := f.dir.resellers[resellerID]
	r.Status = models.ResellerStatusActive
	return r, nil
}

type fakeUsageSource struct {
	usage map[uint]int64
	fail  map[uint]bool
}

func (f *fakeUsageSource) FetchUsage(ctx context.Context, cfg *models.ResellerConfig) (int64, provision.Outcome) {
	if f.fail[cfg.ID] {
		return 0, provision.Outcome{Attempts: 3, LastError: "connection refused"}
	}
	return f.usage[cfg.ID], provision.Outcome{Success: true, Attempts: 1}
}

type fakeAuditor struct {
	records []string
}

func (f *fakeAuditor) Record(runID, job string, summary interface{}) error {
	f.records = append(f.records, job)
	return nil
}

type countingPacer struct{ ticks int }

func (p *countingPacer) Tick() { p.ticks++ }

func newTestReconciler(dir *fakeDirectory, lc *fakeLifecycle, src *fakeUsageSource) (*Reconciler, *fakeAuditor, *countingPacer) {
	audit := &fakeAuditor{}
	pacer := &countingPacer{}
	r := New(dir, lc, src, audit, nil, pacer, zap.NewNop())
	return r, audit, pacer
}

func activeConfig(id, resellerID uint, used int64) models.ResellerConfig {
	return models.ResellerConfig{
		ID: id, ResellerID: resellerID,
		Status: models.ConfigStatusActive, UsageBytes: used,
		PanelID: 1, PanelUserID: "u",
	}
}

func TestEnforceSuspendsExhaustedReseller(t *testing.T) {
	dir := newFakeDirectory()
	dir.resellers[7] = &models.Reseller{
		ID: 7, Type: models.ResellerTypeTraffic, Status: models.ResellerStatusActive,
		TrafficTotalBytes: i64(1000),
	}
	dir.configs[7] = []models.ResellerConfig{
		activeConfig(1, 7, 600),
		activeConfig(2, 7, 500),
	}
	lc := newFakeLifecycle(dir)
	r, audit, _ := newTestReconciler(dir, lc, &fakeUsageSource{})

	tally := r.EnforceResellers(context.Background())

	if len(lc.suspended) != 1 || lc.suspended[0] != 7 {
		t.Fatalf("suspended = %v", lc.suspended)
	}
	if len(lc.disabled) != 2 {
		t.Fatalf("disabled = %v, want both configs", lc.disabled)
	}
	if tally.Changed != 1 || tally.Failed != 0 {
		t.Fatalf("tally = %+v", tally)
	}
	if dir.usedBytes[7] != 1100 {
		t.Fatalf("cached aggregate = %d, want 1100", dir.usedBytes[7])
	}
	if len(audit.records) != 1 || audit.records[0] != "enforce_resellers" {
		t.Fatalf("audit records = %v", audit.records)
	}
}

func TestEnforceCountsDeletedConfigUsage(t *testing.T) {
	dir := newFakeDirectory()
	dir.resellers[7] = &models.Reseller{
		ID: 7, Type: models.ResellerTypeTraffic, Status: models.ResellerStatusActive,
		TrafficTotalBytes: i64(1000),
	}
	deleted := activeConfig(1, 7, 0)
	deleted.Status = models.ConfigStatusDeleted
	deleted.SettledUsageBytes = 900
	dir.configs[7] = []models.ResellerConfig{
		deleted,
		activeConfig(2, 7, 200),
	}
	lc := newFakeLifecycle(dir)
	r, _, _ := newTestReconciler(dir, lc, &fakeUsageSource{})

	r.EnforceResellers(context.Background())

	// 900 settled on the deleted config + 200 live crosses the 1000 cap.
	if len(lc.suspended) != 1 {
		t.Fatalf("suspended = %v, deleted usage not counted", lc.suspended)
	}
}

func TestEnforceIsolatesConfigFailures(t *testing.T) {
	dir := newFakeDirectory()
	dir.resellers[7] = &models.Reseller{
		ID: 7, Type: models.ResellerTypeTraffic, Status: models.ResellerStatusActive,
		TrafficTotalBytes: i64(100),
	}
	var configs []models.ResellerConfig
	for id := uint(1); id <= 5; id++ {
		configs = append(configs, activeConfig(id, 7, 50))
	}
	dir.configs[7] = configs
	lc := newFakeLifecycle(dir)
	lc.failConfigs[3] = errors.New("panel timeout")
	r, _, _ := newTestReconciler(dir, lc, &fakeUsageSource{})

	tally := r.EnforceResellers(context.Background())

	if len(lc.disabled) != 4 {
		t.Fatalf("disabled %d configs, want 4 despite one failure", len(lc.disabled))
	}
	for _, id := range lc.disabled {
		if id == 3 {
			t.Fatal("failed config reported as disabled")
		}
	}
	if tally.Failed != 1 {
		t.Fatalf("tally.Failed = %d, want 1", tally.Failed)
	}
}

func TestEnforcePanicDoesNotStopSweep(t *testing.T) {
	dir := newFakeDirectory()
	for id := uint(1); id <= 2; id++ {
		dir.resellers[id] = &models.Reseller{
			ID: id, Type: models.ResellerTypeTraffic, Status: models.ResellerStatusActive,
			TrafficTotalBytes: i64(100),
		}
		dir.configs[id] = []models.ResellerConfig{activeConfig(id*10, id, 500)}
	}
	lc := newFakeLifecycle(dir)
	lc.panicConfigs[10] = true
	r, _, _ := newTestReconciler(dir, lc, &fakeUsageSource{})

	tally := r.EnforceResellers(context.Background())

	// The panicking reseller is counted as failed, the other one suspends.
	if tally.Failed == 0 {
		t.Fatal("panic not surfaced in tally")
	}
	if len(lc.suspended) != 2 {
		t.Fatalf("suspended = %v, want both resellers evaluated", lc.suspended)
	}
}

func TestEnforceSkipsInvalidSnapshots(t *testing.T) {
	dir := newFakeDirectory()
	dir.resellers[7] = &models.Reseller{
		ID: 7, Type: models.ResellerTypeTraffic, Status: models.ResellerStatusActive,
		TrafficTotalBytes: i64(-100),
	}
	dir.configs[7] = []models.ResellerConfig{activeConfig(1, 7, 50)}
	lc := newFakeLifecycle(dir)
	r, _, _ := newTestReconciler(dir, lc, &fakeUsageSource{})

	tally := r.EnforceResellers(context.Background())

	if len(lc.suspended) != 0 {
		t.Fatal("reseller with corrupt quota was suspended")
	}
	if tally.Skipped != 1 {
		t.Fatalf("tally.Skipped = %d, want 1", tally.Skipped)
	}
}

func TestRecoverReactivatesAndRespectsEligibility(t *testing.T) {
	now := time.Now()
	dir := newFakeDirectory()
	dir.resellers[7] = &models.Reseller{
		ID: 7, Type: models.ResellerTypeTraffic, Status: models.ResellerStatusSuspended,
		TrafficTotalBytes: i64(10000),
		WindowStartsAt:    ts(now.Add(-time.Hour)),
		WindowEndsAt:      ts(now.Add(time.Hour)),
	}
	quotaDisabled := activeConfig(1, 7, 100)
	quotaDisabled.Status = models.ConfigStatusDisabled
	manualDisabled := activeConfig(2, 7, 100)
	manualDisabled.Status = models.ConfigStatusDisabled
	dir.configs[7] = []models.ResellerConfig{quotaDisabled, manualDisabled}

	lc := newFakeLifecycle(dir)
	lc.notEligible[2] = true
	r, _, pacer := newTestReconciler(dir, lc, &fakeUsageSource{})

	tally := r.RecoverConfigs(context.Background())

	if len(lc.reactivated) != 1 || lc.reactivated[0] != 7 {
		t.Fatalf("reactivated = %v", lc.reactivated)
	}
	if len(lc.enabled) != 1 || lc.enabled[0] != 1 {
		t.Fatalf("enabled = %v, want only the quota-disabled config", lc.enabled)
	}
	if tally.Changed != 1 {
		t.Fatalf("tally.Changed = %d, want 1", tally.Changed)
	}
	if tally.Skipped != 1 {
		t.Fatalf("tally.Skipped = %d, want 1 for the manual config", tally.Skipped)
	}
	if pacer.ticks != 1 {
		t.Fatalf("pacer ticks = %d, want 1 (no tick for ineligible config)", pacer.ticks)
	}
}

func TestRecoverResellerSingleCheck(t *testing.T) {
	now := time.Now()
	dir := newFakeDirectory()
	dir.resellers[7] = &models.Reseller{
		ID: 7, Type: models.ResellerTypeTraffic, Status: models.ResellerStatusSuspended,
		TrafficTotalBytes: i64(10000),
		WindowStartsAt:    ts(now.Add(-time.Hour)),
		WindowEndsAt:      ts(now.Add(time.Hour)),
	}
	cfg := activeConfig(1, 7, 100)
	cfg.Status = models.ConfigStatusDisabled
	dir.configs[7] = []models.ResellerConfig{cfg}
	lc := newFakeLifecycle(dir)
	r, _, _ := newTestReconciler(dir, lc, &fakeUsageSource{})

	if err := r.RecoverReseller(context.Background(), 7); err != nil {
		t.Fatalf("RecoverReseller() error: %v", err)
	}
	if len(lc.reactivated) != 1 || lc.reactivated[0] != 7 {
		t.Fatalf("reactivated = %v", lc.reactivated)
	}
	if len(lc.enabled) != 1 {
		t.Fatalf("enabled = %v, want the disabled config back up", lc.enabled)
	}

	// A second call sees the reseller active and does nothing.
	if err := r.RecoverReseller(context.Background(), 7); err != nil {
		t.Fatalf("RecoverReseller() second call error: %v", err)
	}
	if len(lc.reactivated) != 1 {
		t.Fatalf("reactivated = %v, want no second reactivation", lc.reactivated)
	}
}

func TestRecoverLeavesExhaustedResellerSuspended(t *testing.T) {
	now := time.Now()
	dir := newFakeDirectory()
	dir.resellers[7] = &models.Reseller{
		ID: 7, Type: models.ResellerTypeTraffic, Status: models.ResellerStatusSuspended,
		TrafficTotalBytes: i64(100),
		WindowStartsAt:    ts(now.Add(-time.Hour)),
		WindowEndsAt:      ts(now.Add(time.Hour)),
	}
	cfg := activeConfig(1, 7, 500)
	cfg.Status = models.ConfigStatusDisabled
	dir.configs[7] = []models.ResellerConfig{cfg}
	lc := newFakeLifecycle(dir)
	r, _, _ := newTestReconciler(dir, lc, &fakeUsageSource{})

	tally := r.RecoverConfigs(context.Background())

	if len(lc.reactivated) != 0 {
		t.Fatal("exhausted reseller was reactivated")
	}
	if tally.Skipped != 1 {
		t.Fatalf("tally.Skipped = %d, want 1", tally.Skipped)
	}
}

func TestSyncUsageWritesChangedCountersAndRefreshesAggregate(t *testing.T) {
	dir := newFakeDirectory()
	dir.resellers[7] = &models.Reseller{ID: 7, Type: models.ResellerTypeTraffic}
	dir.configs[7] = []models.ResellerConfig{
		activeConfig(1, 7, 100), // remote reports 150
		activeConfig(2, 7, 200), // unchanged
		activeConfig(3, 7, 300), // unreachable
	}
	src := &fakeUsageSource{
		usage: map[uint]int64{1: 150, 2: 200},
		fail:  map[uint]bool{3: true},
	}
	lc := newFakeLifecycle(dir)
	r, _, pacer := newTestReconciler(dir, lc, src)

	tally := r.SyncUsage(context.Background())

	if dir.syncedUsage[1] != 150 {
		t.Fatalf("config 1 usage = %d, want 150", dir.syncedUsage[1])
	}
	if _, ok := dir.syncedUsage[2]; ok {
		t.Fatal("unchanged counter was rewritten")
	}
	if tally.Changed != 1 || tally.Skipped != 1 || tally.Failed != 1 {
		t.Fatalf("tally = %+v", tally)
	}
	if pacer.ticks != 3 {
		t.Fatalf("pacer ticks = %d, want 3", pacer.ticks)
	}
	if _, ok := dir.usedBytes[7]; !ok {
		t.Fatal("touched reseller aggregate not refreshed")
	}
}

func TestSyncUsageWaitsForUnconfirmedRemoteReset(t *testing.T) {
	dir := newFakeDirectory()
	dir.resellers[7] = &models.Reseller{ID: 7, Type: models.ResellerTypeTraffic}
	// Settled locally, but the panel never zeroed its counter.
	dir.configs[7] = []models.ResellerConfig{activeConfig(1, 7, 0)}
	dir.lastEvents[1] = &models.ResellerConfigEvent{
		ResellerConfigID: 1, Type: models.EventUsageReset,
		Meta: models.EncodeEventMeta(models.EventMeta{
			Reason: models.ReasonManual, RemoteSuccess: bptr(false), BytesSettled: 500,
		}),
	}
	lc := newFakeLifecycle(dir)
	r, _, _ := newTestReconciler(dir, lc, &fakeUsageSource{usage: map[uint]int64{1: 500}})

	tally := r.SyncUsage(context.Background())

	if _, ok := dir.syncedUsage[1]; ok {
		t.Fatal("settled bytes re-imported from an unreset panel")
	}
	if tally.Skipped != 1 || tally.Changed != 0 {
		t.Fatalf("tally = %+v", tally)
	}
}

func TestSyncUsageSkipsRemoteDecrease(t *testing.T) {
	dir := newFakeDirectory()
	dir.resellers[7] = &models.Reseller{ID: 7, Type: models.ResellerTypeTraffic}
	dir.configs[7] = []models.ResellerConfig{activeConfig(1, 7, 300)}
	lc := newFakeLifecycle(dir)
	r, _, _ := newTestReconciler(dir, lc, &fakeUsageSource{usage: map[uint]int64{1: 100}})

	tally := r.SyncUsage(context.Background())

	if _, ok := dir.syncedUsage[1]; ok {
		t.Fatal("out-of-band remote decrease was imported")
	}
	if tally.Skipped != 1 {
		t.Fatalf("tally = %+v", tally)
	}
}

func TestResetDueConfigsSweepsDueOnly(t *testing.T) {
	now := time.Now()
	dir := newFakeDirectory()
	dir.resellers[7] = &models.Reseller{ID: 7, Type: models.ResellerTypeTraffic}
	due := activeConfig(1, 7, 100)
	due.NextUsageResetAt = ts(now.Add(-time.Hour))
	pending := activeConfig(2, 7, 100)
	pending.NextUsageResetAt = ts(now.Add(time.Hour))
	unscheduled := activeConfig(3, 7, 100)
	dir.configs[7] = []models.ResellerConfig{due, pending, unscheduled}
	lc := newFakeLifecycle(dir)
	r, audit, _ := newTestReconciler(dir, lc, &fakeUsageSource{})

	tally := r.ResetDueConfigs(context.Background())

	if len(lc.reset) != 1 || lc.reset[0] != 1 {
		t.Fatalf("reset = %v, want only the due config", lc.reset)
	}
	if tally.Changed != 1 {
		t.Fatalf("tally.Changed = %d, want 1", tally.Changed)
	}
	if len(audit.records) != 1 || audit.records[0] != "reset_usage" {
		t.Fatalf("audit records = %v", audit.records)
	}
}

func TestResetUsageBatchIsolatesFailures(t *testing.T) {
	dir := newFakeDirectory()
	dir.resellers[7] = &models.Reseller{ID: 7, Type: models.ResellerTypeTraffic}
	dir.configs[7] = []models.ResellerConfig{
		activeConfig(1, 7, 100),
		activeConfig(2, 7, 200),
		activeConfig(3, 7, 300),
	}
	lc := newFakeLifecycle(dir)
	lc.failConfigs[2] = errors.New("panel timeout")
	r, audit, _ := newTestReconciler(dir, lc, &fakeUsageSource{})

	tally := r.ResetUsageBatch(context.Background(), []uint{1, 2, 3}, models.ReasonAdmin)

	if len(lc.reset) != 2 {
		t.Fatalf("reset = %v, want configs 1 and 3 despite the failure", lc.reset)
	}
	if tally.Changed != 2 || tally.Failed != 1 {
		t.Fatalf("tally = %+v", tally)
	}
	if _, ok := dir.usedBytes[7]; !ok {
		t.Fatal("touched reseller aggregate not refreshed")
	}
	if len(audit.records) != 1 || audit.records[0] != "reset_usage" {
		t.Fatalf("audit records = %v", audit.records)
	}
}

func TestExpireConfigs(t *testing.T) {
	now := time.Now()
	dir := newFakeDirectory()
	dir.resellers[7] = &models.Reseller{ID: 7}
	due := activeConfig(1, 7, 0)
	due.ExpiresAt = ts(now.Add(-time.Hour))
	fresh := activeConfig(2, 7, 0)
	fresh.ExpiresAt = ts(now.Add(time.Hour))
	dir.configs[7] = []models.ResellerConfig{due, fresh}
	lc := newFakeLifecycle(dir)
	r, _, _ := newTestReconciler(dir, lc, &fakeUsageSource{})

	tally := r.ExpireConfigs(context.Background())

	if len(lc.expired) != 1 || lc.expired[0] != 1 {
		t.Fatalf("expired = %v, want only the due config", lc.expired)
	}
	if tally.Changed != 1 {
		t.Fatalf("tally.Changed = %d, want 1", tally.Changed)
	}
}

func TestExpireTreatsRacedConfigAsSkipped(t *testing.T) {
	now := time.Now()
	dir := newFakeDirectory()
	dir.resellers[7] = &models.Reseller{ID: 7}
	due := activeConfig(1, 7, 0)
	due.ExpiresAt = ts(now.Add(-time.Hour))
	dir.configs[7] = []models.ResellerConfig{due}
	lc := newFakeLifecycle(dir)
	lc.failConfigs[1] = lifecycle.ErrInvalidTransition
	r, _, _ := newTestReconciler(dir, lc, &fakeUsageSource{})

	tally := r.ExpireConfigs(context.Background())

	if tally.Skipped != 1 || tally.Failed != 0 {
		t.Fatalf("tally = %+v, want the raced config counted as skipped", tally)
	}
}

func TestAuditBackstopWritesDriftEvent(t *testing.T) {
	dir := newFakeDirectory()
	dir.resellers[7] = &models.Reseller{ID: 7}
	drifted := activeConfig(1, 7, 0)
	drifted.Status = models.ConfigStatusDisabled
	consistent := activeConfig(2, 7, 0)
	dir.configs[7] = []models.ResellerConfig{drifted, consistent}
	dir.lastEvents[1] = &models.ResellerConfigEvent{
		ResellerConfigID: 1, Type: models.EventEnabled,
		Meta: models.EncodeEventMeta(models.EventMeta{ToStatus: models.ConfigStatusActive}),
	}
	dir.lastEvents[2] = &models.ResellerConfigEvent{
		ResellerConfigID: 2, Type: models.EventCreated,
		Meta: models.EncodeEventMeta(models.EventMeta{ToStatus: models.ConfigStatusActive}),
	}
	lc := newFakeLifecycle(dir)
	r, _, _ := newTestReconciler(dir, lc, &fakeUsageSource{})

	tally := r.AuditBackstop(context.Background())

	if len(dir.createdEvents) != 1 {
		t.Fatalf("created %d events, want 1", len(dir.createdEvents))
	}
	ev := dir.createdEvents[0]
	if ev.Type != models.EventAuditStatusChanged || ev.ResellerConfigID != 1 {
		t.Fatalf("unexpected event: %+v", ev)
	}
	meta := ev.DecodedMeta()
	if meta.FromStatus != models.ConfigStatusActive || meta.ToStatus != models.ConfigStatusDisabled {
		t.Fatalf("drift meta = %+v", meta)
	}
	if tally.Changed != 1 {
		t.Fatalf("tally.Changed = %d, want 1", tally.Changed)
	}

	// Running again with the log repaired writes nothing new.
	dir.lastEvents[1] = dir.createdEvents[0]
	dir.createdEvents = nil
	r.AuditBackstop(context.Background())
	if len(dir.createdEvents) != 0 {
		t.Fatalf("second run created %d events, want 0", len(dir.createdEvents))
	}
}
