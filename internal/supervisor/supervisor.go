// Package supervisor keeps the set of running bot workers converged
// with the tenant directory. One goroutine owns the worker map; a
// periodic sweep starts missing workers, stops extras, restarts
// crashed ones with backoff, and parks repeat crashers as degraded.
package supervisor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/meep1w/pocket/internal/domain"
	"github.com/meep1w/pocket/internal/repository"
	"github.com/meep1w/pocket/pkg/config"
	"github.com/meep1w/pocket/pkg/logger"
)

// Runtime runs one tenant's bot worker. Run blocks until the worker
// exits; a nil return is a clean stop, an error is a crash.
type Runtime interface {
	Run(ctx context.Context, tenant *domain.Tenant) error
}

// EntitlementChecker reports whether a tenant's owner is still
// entitled to run a bot. Errors are treated as not entitled; a flaky
// checker pauses tenants rather than running unpaid workers.
type EntitlementChecker interface {
	Entitled(ctx context.Context, tenant *domain.Tenant) (bool, error)
}

// AllowAll is an EntitlementChecker that entitles every tenant, for
// deployments without a billing gate
type AllowAll struct{}

func (AllowAll) Entitled(ctx context.Context, tenant *domain.Tenant) (bool, error) {
	return true, nil
}

// WorkerState is the supervisor's view of one tenant's worker
type WorkerState string

const (
	WorkerRunning  WorkerState = "running"
	WorkerBackoff  WorkerState = "backoff"
	WorkerDegraded WorkerState = "degraded"
)

type worker struct {
	tenant    *domain.Tenant
	cancel    context.CancelFunc
	done      chan struct{}
	state     WorkerState
	crashes   []time.Time
	nextTry   time.Time
	lastErr   error
	startedAt time.Time
}

// WorkerStatus is a point-in-time snapshot of one worker, safe to
// hand out of the supervisor goroutine
type WorkerStatus struct {
	TenantID  int64       `json:"tenant_id"`
	State     WorkerState `json:"state"`
	Crashes   int         `json:"crashes_in_window"`
	LastError string      `json:"last_error,omitempty"`
	StartedAt time.Time   `json:"started_at,omitempty"`
}

// Stats is a snapshot of the whole supervised fleet
type Stats struct {
	Running  int            `json:"running"`
	Backoff  int            `json:"backoff"`
	Degraded int            `json:"degraded"`
	Workers  []WorkerStatus `json:"workers"`
}

type crashMsg struct {
	tenantID int64
	err      error
}

// Supervisor reconciles running workers against the tenant directory
type Supervisor struct {
	tenantRepo repository.TenantRepository
	runtime    Runtime
	checker    EntitlementChecker
	cfg        config.SupervisorConfig

	workers map[int64]*worker
	crashes chan crashMsg

	mu    sync.RWMutex
	stats Stats
}

// New creates a supervisor. It does nothing until Run is called.
func New(tenantRepo repository.TenantRepository, runtime Runtime, checker EntitlementChecker, cfg config.SupervisorConfig) *Supervisor {
	if checker == nil {
		checker = AllowAll{}
	}
	return &Supervisor{
		tenantRepo: tenantRepo,
		runtime:    runtime,
		checker:    checker,
		cfg:        cfg,
		workers:    make(map[int64]*worker),
		crashes:    make(chan crashMsg, 64),
	}
}

// Run drives the reconcile loop until ctx is cancelled, then stops
// every worker and waits for them to exit
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	purgeInterval := s.cfg.PurgeInterval
	if purgeInterval <= 0 {
		purgeInterval = time.Hour
	}
	purgeTicker := time.NewTicker(purgeInterval)
	defer purgeTicker.Stop()

	s.reconcile(ctx)

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case msg := <-s.crashes:
			s.recordCrash(msg)
			s.publishStats()
		case <-ticker.C:
			s.reconcile(ctx)
		case <-purgeTicker.C:
			s.purge(ctx)
		}
	}
}

// purge physically removes tenants soft-deleted longer ago than the
// retention period, along with their users and postback history
func (s *Supervisor) purge(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.cfg.PurgeRetention)
	purged, err := s.tenantRepo.PurgeDeletedBefore(ctx, cutoff)
	if err != nil {
		logger.Error("purge deleted tenants", zap.Error(err))
		return
	}
	if purged > 0 {
		logger.Info("purged deleted tenants", zap.Int64("count", purged))
	}
}

// Stats returns the latest fleet snapshot
func (s *Supervisor) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// reconcile converges the worker map with the tenant directory. One
// pass handles pauses, deletes, entitlement lapses, crashed workers
// due for a retry, and newly activated tenants.
func (s *Supervisor) reconcile(ctx context.Context) {
	desired, err := s.tenantRepo.ListByStatus(ctx, domain.TenantStatusActive)
	if err != nil {
		// transient directory errors leave the current fleet alone;
		// the next tick retries
		logger.Error("list active tenants", zap.Error(err))
		return
	}

	wanted := make(map[int64]*domain.Tenant, len(desired))
	for _, t := range desired {
		entitled, err := s.checker.Entitled(ctx, t)
		if err != nil {
			logger.Warn("entitlement check failed, pausing tenant",
				zap.Int64("tenant_id", t.ID), zap.Error(err))
			entitled = false
		}
		if !entitled {
			if err := s.tenantRepo.UpdateStatus(ctx, t.ID, domain.TenantStatusPaused); err != nil {
				logger.Error("autopause tenant", zap.Int64("tenant_id", t.ID), zap.Error(err))
			} else {
				logger.Info("tenant autopaused", zap.Int64("tenant_id", t.ID))
			}
			continue
		}
		wanted[t.ID] = t
	}

	// stop workers whose tenant is no longer active
	for id, w := range s.workers {
		if _, ok := wanted[id]; ok {
			continue
		}
		s.stopWorker(id, w)
	}

	// start or retry workers for active tenants
	now := time.Now()
	for id, tenant := range wanted {
		w, ok := s.workers[id]
		if !ok {
			s.startWorker(ctx, tenant)
			continue
		}
		w.tenant = tenant
		switch w.state {
		case WorkerBackoff:
			if now.After(w.nextTry) {
				s.spawn(ctx, w)
			}
		case WorkerDegraded:
			// stays parked until an operator flips the tenant's
			// status, which clears the worker entry above
		}
	}

	s.publishStats()
}

func (s *Supervisor) startWorker(ctx context.Context, tenant *domain.Tenant) {
	w := &worker{tenant: tenant, state: WorkerBackoff}
	s.workers[tenant.ID] = w
	s.spawn(ctx, w)
}

// spawn launches the runtime goroutine for w and marks it running
func (s *Supervisor) spawn(ctx context.Context, w *worker) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done
	w.state = WorkerRunning
	w.startedAt = time.Now()

	tenant := w.tenant
	go func() {
		defer close(done)
		err := s.runtime.Run(runCtx, tenant)
		if runCtx.Err() != nil {
			// stopped on purpose, not a crash
			return
		}
		s.crashes <- crashMsg{tenantID: tenant.ID, err: err}
	}()

	logger.Info("worker started",
		zap.Int64("tenant_id", tenant.ID),
		zap.String("bot_username", tenant.BotUsername),
	)
}

func (s *Supervisor) stopWorker(id int64, w *worker) {
	if w.state == WorkerRunning && w.cancel != nil {
		w.cancel()
		select {
		case <-w.done:
		case <-time.After(s.cfg.StopTimeout):
			logger.Warn("worker did not stop in time, abandoning",
				zap.Int64("tenant_id", id))
		}
	}
	delete(s.workers, id)
	logger.Info("worker stopped", zap.Int64("tenant_id", id))
}

// recordCrash moves a crashed worker to backoff, or parks it as
// degraded once it exceeds the restart budget inside the window
func (s *Supervisor) recordCrash(msg crashMsg) {
	w, ok := s.workers[msg.tenantID]
	if !ok {
		return
	}

	now := time.Now()
	w.lastErr = msg.err
	w.crashes = append(w.crashes, now)

	cutoff := now.Add(-s.cfg.RestartWindow)
	recent := w.crashes[:0]
	for _, t := range w.crashes {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	w.crashes = recent

	if len(w.crashes) > s.cfg.MaxRestarts {
		w.state = WorkerDegraded
		logger.Error("worker degraded after repeated crashes",
			zap.Int64("tenant_id", msg.tenantID),
			zap.Int("crashes", len(w.crashes)),
			zap.Error(msg.err),
		)
		return
	}

	w.state = WorkerBackoff
	w.nextTry = now.Add(s.cfg.RestartBackoff)
	logger.Warn("worker crashed, will restart",
		zap.Int64("tenant_id", msg.tenantID),
		zap.Time("next_try", w.nextTry),
		zap.Error(msg.err),
	)
}

func (s *Supervisor) shutdown() {
	for id, w := range s.workers {
		s.stopWorker(id, w)
	}
	s.publishStats()
}

func (s *Supervisor) publishStats() {
	stats := Stats{Workers: make([]WorkerStatus, 0, len(s.workers))}
	for id, w := range s.workers {
		st := WorkerStatus{
			TenantID:  id,
			State:     w.state,
			Crashes:   len(w.crashes),
			StartedAt: w.startedAt,
		}
		if w.lastErr != nil {
			st.LastError = w.lastErr.Error()
		}
		stats.Workers = append(stats.Workers, st)
		switch w.state {
		case WorkerRunning:
			stats.Running++
		case WorkerBackoff:
			stats.Backoff++
		case WorkerDegraded:
			stats.Degraded++
		}
	}

	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()

	recordWorkerGauge(stats)
}
