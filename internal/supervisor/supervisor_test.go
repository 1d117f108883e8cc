package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/meep1w/pocket/internal/domain"
	"github.com/meep1w/pocket/internal/repository"
	"github.com/meep1w/pocket/pkg/config"
)

// fakeRuntime blocks until cancelled by default; per-tenant behaviors
// override that to simulate crashes
type fakeRuntime struct {
	mu       sync.Mutex
	starts   map[int64]int
	behavior map[int64]func(ctx context.Context) error
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		starts:   make(map[int64]int),
		behavior: make(map[int64]func(ctx context.Context) error),
	}
}

func (r *fakeRuntime) Run(ctx context.Context, tenant *domain.Tenant) error {
	r.mu.Lock()
	r.starts[tenant.ID]++
	b := r.behavior[tenant.ID]
	r.mu.Unlock()

	if b != nil {
		return b(ctx)
	}
	<-ctx.Done()
	return nil
}

func (r *fakeRuntime) startCount(id int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts[id]
}

func (r *fakeRuntime) setBehavior(id int64, b func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.behavior[id] = b
}

type failingChecker struct {
	failFor map[int64]bool
}

func (c *failingChecker) Entitled(ctx context.Context, tenant *domain.Tenant) (bool, error) {
	if c.failFor[tenant.ID] {
		return false, errors.New("billing backend unreachable")
	}
	return true, nil
}

func testConfig() config.SupervisorConfig {
	return config.SupervisorConfig{
		CheckInterval:  10 * time.Millisecond,
		StopTimeout:    time.Second,
		RestartBackoff: 5 * time.Millisecond,
		MaxRestarts:    2,
		RestartWindow:  time.Minute,
		PurgeInterval:  time.Hour,
		PurgeRetention: time.Hour,
	}
}

func mustCreateTenant(t *testing.T, repo *repository.MemoryTenantRepository, ownerID int64, status domain.TenantStatus) *domain.Tenant {
	t.Helper()
	tenant, err := domain.NewTenant(ownerID, "123:abcdefghijklmnopqrstuvwxyz0123456789", "bot")
	if err != nil {
		t.Fatalf("NewTenant() error = %v", err)
	}
	if err := repo.Create(context.Background(), tenant); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if status != domain.TenantStatusActive {
		if err := repo.UpdateStatus(context.Background(), tenant.ID, status); err != nil {
			t.Fatalf("UpdateStatus() error = %v", err)
		}
	}
	return tenant
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func runningIDs(s *Supervisor) map[int64]bool {
	out := make(map[int64]bool)
	for _, w := range s.Stats().Workers {
		if w.State == WorkerRunning {
			out[w.TenantID] = true
		}
	}
	return out
}

func TestSupervisor_Convergence(t *testing.T) {
	repo := repository.NewMemoryTenantRepository()
	a := mustCreateTenant(t, repo, 1, domain.TenantStatusActive)
	b := mustCreateTenant(t, repo, 2, domain.TenantStatusPaused)
	c := mustCreateTenant(t, repo, 3, domain.TenantStatusActive)

	rt := newFakeRuntime()
	sup := New(repo, rt, nil, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	waitFor(t, time.Second, func() bool {
		ids := runningIDs(sup)
		return ids[a.ID] && ids[c.ID] && !ids[b.ID]
	}, "fleet did not converge to {A, C}")

	// flipping B to active starts its worker within a cycle
	if err := repo.UpdateStatus(ctx, b.ID, domain.TenantStatusActive); err != nil {
		t.Fatalf("UpdateStatus(B) error = %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return runningIDs(sup)[b.ID]
	}, "worker for reactivated tenant did not start")

	// deleting A stops its worker within a cycle
	if err := repo.UpdateStatus(ctx, a.ID, domain.TenantStatusDeleted); err != nil {
		t.Fatalf("UpdateStatus(A) error = %v", err)
	}
	waitFor(t, time.Second, func() bool {
		return !runningIDs(sup)[a.ID]
	}, "worker for deleted tenant kept running")

	cancel()
	<-done

	if got := sup.Stats().Running; got != 0 {
		t.Errorf("workers running after shutdown = %d, want 0", got)
	}
}

func TestSupervisor_CrashIsolationAndRestart(t *testing.T) {
	repo := repository.NewMemoryTenantRepository()
	crasher := mustCreateTenant(t, repo, 1, domain.TenantStatusActive)
	steady := mustCreateTenant(t, repo, 2, domain.TenantStatusActive)

	rt := newFakeRuntime()
	crashOnce := make(chan struct{}, 1)
	crashOnce <- struct{}{}
	rt.setBehavior(crasher.ID, func(ctx context.Context) error {
		select {
		case <-crashOnce:
			return errors.New("telegram api closed the stream")
		default:
			<-ctx.Done()
			return nil
		}
	})

	sup := New(repo, rt, nil, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	// the crasher is restarted after backoff
	waitFor(t, 2*time.Second, func() bool {
		return rt.startCount(crasher.ID) >= 2 && runningIDs(sup)[crasher.ID]
	}, "crashed worker was not restarted")

	// the steady worker was never touched
	if got := rt.startCount(steady.ID); got != 1 {
		t.Errorf("steady worker starts = %d, want 1", got)
	}
}

func TestSupervisor_DegradedAfterRepeatedCrashes(t *testing.T) {
	repo := repository.NewMemoryTenantRepository()
	tenant := mustCreateTenant(t, repo, 1, domain.TenantStatusActive)

	rt := newFakeRuntime()
	rt.setBehavior(tenant.ID, func(ctx context.Context) error {
		return errors.New("unauthorized: bot token revoked")
	})

	sup := New(repo, rt, nil, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	waitFor(t, 2*time.Second, func() bool {
		return sup.Stats().Degraded == 1
	}, "repeat crasher was not parked as degraded")

	// once degraded, no further restarts happen
	count := rt.startCount(tenant.ID)
	time.Sleep(100 * time.Millisecond)
	if got := rt.startCount(tenant.ID); got != count {
		t.Errorf("degraded worker restarted: starts %d -> %d", count, got)
	}

	var status WorkerStatus
	for _, w := range sup.Stats().Workers {
		if w.TenantID == tenant.ID {
			status = w
		}
	}
	if status.LastError == "" {
		t.Error("degraded worker snapshot carries no last error")
	}
}

func TestSupervisor_EntitlementFailClosed(t *testing.T) {
	repo := repository.NewMemoryTenantRepository()
	lapsed := mustCreateTenant(t, repo, 1, domain.TenantStatusActive)
	paying := mustCreateTenant(t, repo, 2, domain.TenantStatusActive)

	checker := &failingChecker{failFor: map[int64]bool{lapsed.ID: true}}
	rt := newFakeRuntime()
	sup := New(repo, rt, checker, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	// a failing entitlement check pauses the tenant instead of
	// running its worker
	waitFor(t, time.Second, func() bool {
		got, err := repo.GetByID(ctx, lapsed.ID)
		return err == nil && got != nil && got.Status == domain.TenantStatusPaused
	}, "tenant with failing entitlement was not autopaused")

	waitFor(t, time.Second, func() bool {
		return runningIDs(sup)[paying.ID]
	}, "entitled tenant's worker did not start")

	if rt.startCount(lapsed.ID) != 0 {
		t.Errorf("lapsed tenant's worker started %d times, want 0", rt.startCount(lapsed.ID))
	}
}

func TestSupervisor_PurgesExpiredTenants(t *testing.T) {
	repo := repository.NewMemoryTenantRepository()
	tenant := mustCreateTenant(t, repo, 1, domain.TenantStatusDeleted)

	cfg := testConfig()
	cfg.PurgeRetention = 0
	sup := New(repo, newFakeRuntime(), nil, cfg)

	// drive the purge directly; Run schedules it on a slow ticker
	time.Sleep(time.Millisecond)
	sup.purge(context.Background())

	purged, err := repo.PurgeDeletedBefore(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("PurgeDeletedBefore() error = %v", err)
	}
	if purged != 0 {
		t.Errorf("tenant %d survived the purge", tenant.ID)
	}
}

func TestHeartbeatRuntime_RejectsMalformedToken(t *testing.T) {
	rt := NewHeartbeatRuntime(time.Minute)
	tenant := &domain.Tenant{ID: 1, BotToken: "not-a-token"}

	err := rt.Run(context.Background(), tenant)
	if !errors.Is(err, ErrBadBotToken) {
		t.Errorf("Run() error = %v, want ErrBadBotToken", err)
	}
}

func TestHeartbeatRuntime_StopsOnCancel(t *testing.T) {
	rt := NewHeartbeatRuntime(time.Millisecond)
	tenant := &domain.Tenant{ID: 1, BotToken: "123:abcdefghijklmnopqrstuvwxyz0123456789"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx, tenant) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() after cancel error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("runtime did not stop on cancel")
	}
}
