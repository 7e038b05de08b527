// Package scheduler provides unified scheduler management using gocron v2.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/worldvpn/broker/internal/shared/biztime"
	"github.com/worldvpn/broker/internal/shared/logger"
)

// BatchJob defines the interface for a scheduled batch processing job.
// Each Execute call processes a batch and returns the number of items processed.
type BatchJob interface {
	Execute(ctx context.Context) (int, error)
}

// ImportJob runs a full feed import pass.
type ImportJob interface {
	Run(ctx context.Context) error
}

// SchedulerManager manages all scheduled jobs using gocron v2.
// All maintenance work (liveness sweeps, session reaping, quota resets,
// feed imports, ledger verification) registers here so one scheduler
// instance owns the full background workload.
type SchedulerManager struct {
	scheduler gocron.Scheduler
	logger    logger.Interface

	// Track whether the scheduler has been started
	started   bool
	startedMu sync.RWMutex
}

// NewSchedulerManager creates a new SchedulerManager instance.
// It initializes gocron with the business timezone for cron expressions.
func NewSchedulerManager(log logger.Interface) (*SchedulerManager, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(biztime.Location()),
	)
	if err != nil {
		return nil, err
	}

	return &SchedulerManager{
		scheduler: scheduler,
		logger:    log,
	}, nil
}

// ========================================
// Liveness Jobs (sweep interval, start immediately)
// ========================================

// RegisterLivenessJobs registers node liveness maintenance:
// - Mark COMMUNITY nodes offline when heartbeats stop arriving
// - Reap sessions that never left MATCHED within the grace period
// Both run on the same sweep interval so a stalled node and its orphaned
// sessions are handled in the same pass.
func (m *SchedulerManager) RegisterLivenessJobs(
	sweepInterval time.Duration,
	livenessSweepJob BatchJob,
	sessionSweepJob BatchJob,
) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), sweepInterval)
			defer cancel()
			m.processLivenessTasks(ctx, livenessSweepJob, sessionSweepJob)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("liveness", "session-sweep"),
		gocron.WithName("liveness-sweeper"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered liveness jobs", "interval", sweepInterval)
	return nil
}

func (m *SchedulerManager) processLivenessTasks(
	ctx context.Context,
	livenessSweepJob BatchJob,
	sessionSweepJob BatchJob,
) {
	m.logger.Debugw("liveness sweep started")

	startTime := biztime.NowUTC()

	// Step 1: demote nodes whose heartbeats fell outside the liveness window
	offlineCount, err := livenessSweepJob.Execute(ctx)
	if err != nil {
		m.logger.Errorw("failed to sweep node liveness",
			"error", err,
			"duration", time.Since(startTime),
		)
	} else if offlineCount > 0 {
		m.logger.Infow("nodes marked offline",
			"count", offlineCount,
			"duration", time.Since(startTime),
		)
	}

	// Step 2: close sessions that never produced a traffic report in time
	reapedCount, err := sessionSweepJob.Execute(ctx)
	if err != nil {
		m.logger.Errorw("failed to reap stalled sessions",
			"error", err,
		)
	} else if reapedCount > 0 {
		m.logger.Infow("stalled sessions closed",
			"count", reapedCount,
		)
	}
}

// ========================================
// Quota Jobs (daily at UTC midnight)
// ========================================

// RegisterQuotaResetJob registers the daily traffic quota reset.
// Runs at midnight UTC so every node's daily byte counter opens the day
// at zero regardless of where the operator runs the broker.
func (m *SchedulerManager) RegisterQuotaResetJob(
	quotaResetJob BatchJob,
) error {
	_, err := m.scheduler.NewJob(
		gocron.CronJob("0 0 * * *", false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			m.executeQuotaReset(ctx, quotaResetJob)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("quota", "daily-reset"),
		gocron.WithName("quota-daily-reset"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered quota reset job", "schedule", "00:00 UTC")
	return nil
}

func (m *SchedulerManager) executeQuotaReset(ctx context.Context, quotaResetJob BatchJob) {
	m.logger.Debugw("executing daily quota reset")

	startTime := biztime.NowUTC()
	resetCount, err := quotaResetJob.Execute(ctx)
	if err != nil {
		m.logger.Errorw("daily quota reset failed",
			"error", err,
			"duration", time.Since(startTime),
		)
		return
	}

	m.logger.Infow("daily quota reset completed",
		"count", resetCount,
		"duration", time.Since(startTime),
	)
}

// ========================================
// Feed Import Jobs (configurable interval, start immediately)
// ========================================

// RegisterImportJobs registers the public gateway feed import.
// A failed pass keeps the previous pool; the next pass retries.
func (m *SchedulerManager) RegisterImportJobs(
	interval time.Duration,
	importJob ImportJob,
) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			m.executeImport(ctx, importJob)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("vpngate", "import"),
		gocron.WithName("vpngate-importer"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered feed import job", "interval", interval)
	return nil
}

func (m *SchedulerManager) executeImport(ctx context.Context, importJob ImportJob) {
	m.logger.Debugw("feed import started")

	if err := importJob.Run(ctx); err != nil {
		// Don't log error if context was cancelled (graceful shutdown)
		if ctx.Err() != nil {
			return
		}
		m.logger.Errorw("feed import failed", "error", err)
		return
	}

	m.logger.Debugw("feed import completed")
}

// ========================================
// Ledger Jobs (daily at 06:00 UTC)
// ========================================

// RegisterLedgerJobs registers the daily ledger verification run.
// Runs after the quota reset window so the two daily jobs never contend,
// and early enough that an operator sees the alert at the start of the day.
func (m *SchedulerManager) RegisterLedgerJobs(
	verifyJob BatchJob,
) error {
	_, err := m.scheduler.NewJob(
		gocron.CronJob("0 6 * * *", false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			m.executeLedgerVerify(ctx, verifyJob)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("ledger", "verify"),
		gocron.WithName("ledger-daily-verify"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered ledger verification job", "schedule", "06:00 UTC")
	return nil
}

func (m *SchedulerManager) executeLedgerVerify(ctx context.Context, verifyJob BatchJob) {
	m.logger.Debugw("executing ledger verification")

	startTime := biztime.NowUTC()
	driftCount, err := verifyJob.Execute(ctx)
	if err != nil {
		m.logger.Errorw("ledger verification failed",
			"error", err,
			"duration", time.Since(startTime),
		)
		return
	}

	if driftCount > 0 {
		m.logger.Warnw("ledger verification found discrepancies",
			"count", driftCount,
			"duration", time.Since(startTime),
		)
	} else {
		m.logger.Infow("ledger verification completed clean",
			"duration", time.Since(startTime),
		)
	}
}

// ========================================
// Scheduler Lifecycle Methods
// ========================================

// Start starts the scheduler and all registered jobs.
func (m *SchedulerManager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler manager started", "job_count", len(m.scheduler.Jobs()))
}

// Stop gracefully stops the scheduler.
// It waits for all running jobs to complete before returning.
func (m *SchedulerManager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	m.logger.Infow("stopping scheduler manager")

	// Shutdown scheduler and wait for running jobs
	err := m.scheduler.Shutdown()
	m.started = false

	if err != nil {
		m.logger.Errorw("scheduler manager shutdown with error", "error", err)
		return err
	}

	m.logger.Infow("scheduler manager stopped")
	return nil
}

// IsStarted returns whether the scheduler is running.
func (m *SchedulerManager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}

// Jobs returns all registered jobs for inspection.
func (m *SchedulerManager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}
