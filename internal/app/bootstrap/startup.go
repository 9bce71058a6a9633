// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/knockwise/knockwise/internal/app/assignments"
	"github.com/knockwise/knockwise/internal/app/store/audit"
	"github.com/knockwise/knockwise/internal/app/system/auditlog"
	"github.com/knockwise/knockwise/internal/app/system/locks"
	"github.com/knockwise/knockwise/internal/app/system/metrics"
	"github.com/knockwise/knockwise/internal/app/system/ratelimit"
	"github.com/knockwise/knockwise/internal/app/system/timeouts"
	"github.com/knockwise/knockwise/internal/app/system/workers"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const lockKeyFormat = "knockwise:%s:lock:%s"

// Services is the assembled service: the assignment core plus the jobs that
// drive it in the background.
type Services struct {
	// Registry holds the app's own collectors. /metrics gathers it together
	// with the default registry WAFFLE registers runtime and HTTP metrics on.
	Registry *prometheus.Registry

	Assignments *assignments.Service
	Scheduler   *workers.Scheduler

	Activator      *workers.ActivatorJob
	ActivationLock locks.Lock
	Reconciler     *workers.ReconcileJob
	ReconcileLock  locks.Lock

	WriteLimiter *ratelimit.Limiter // nil when write_rate_limit is 0
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It
// applies the configured timeouts, builds the assignment service and
// registers the background jobs. The scheduler starts in OnReady.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Services == nil {
		return errors.New("startup: DBDeps.Services is nil; use ConnectDB")
	}
	s := deps.Services

	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})

	s.Registry = prometheus.NewRegistry()

	auditLogger := auditlog.New(audit.New(deps.MongoDatabase), logger, auditlog.Config{
		Admin:  appCfg.AuditLogAdmin,
		System: appCfg.AuditLogSystem,
	})

	s.Assignments = assignments.New(deps.MongoDatabase, logger,
		assignments.WithAudit(auditLogger),
		assignments.WithMetrics(metrics.NewAssignmentMetrics(s.Registry)),
	)
	s.Scheduler = workers.NewScheduler(logger, metrics.NewJobMetrics(s.Registry), appCfg.JobTimeout)
	s.Activator = workers.NewActivatorJob(s.Assignments, logger)
	s.Reconciler = workers.NewReconcileJob(s.Assignments)

	var err error
	if s.ActivationLock, err = jobLock(coreCfg, deps, s.Activator.Name(), appCfg.ActivationLockTTL); err != nil {
		return err
	}
	if s.ReconcileLock, err = jobLock(coreCfg, deps, s.Reconciler.Name(), appCfg.JobTimeout); err != nil {
		return err
	}
	if err := s.scheduleJobs(appCfg); err != nil {
		return fmt.Errorf("schedule jobs: %w", err)
	}

	if appCfg.WriteRateLimit > 0 {
		s.WriteLimiter = ratelimit.New(ctx, appCfg.WriteRateLimit, time.Minute)
	}

	// WAFFLE skips the Shutdown hook once the signal context is cancelled,
	// so cancellation drains the jobs as well.
	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), coreCfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := s.Scheduler.Stop(stopCtx); err != nil {
			logger.Warn("scheduler stop timed out", zap.Error(err))
		}
	}()

	return nil
}

func jobLock(coreCfg *config.CoreConfig, deps DBDeps, job string, ttl time.Duration) (locks.Lock, error) {
	if deps.Redis == nil {
		return locks.NewLocalLock(), nil
	}
	l, err := locks.NewRedisLock(deps.Redis, fmt.Sprintf(lockKeyFormat, coreCfg.Env, job), ttl)
	if err != nil {
		return nil, fmt.Errorf("%s lock: %w", job, err)
	}
	return l, nil
}

// scheduleJobs registers the background jobs on the scheduler without
// starting it.
func (s *Services) scheduleJobs(appCfg AppConfig) error {
	if err := s.Scheduler.Add(appCfg.ActivationSchedule, s.Activator, s.ActivationLock); err != nil {
		return err
	}
	if appCfg.ReconcileSchedule == "off" {
		return nil
	}
	return s.Scheduler.Add(appCfg.ReconcileSchedule, s.Reconciler, s.ReconcileLock)
}

// OnReady starts the job scheduler once the HTTP server is about to accept
// traffic.
func OnReady(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) {
	if deps.Services == nil || deps.Services.Scheduler == nil {
		return
	}
	deps.Services.Scheduler.Start()
	logger.Info("knockwise ready", zap.Int("http_port", coreCfg.HTTP.HTTPPort))
}
