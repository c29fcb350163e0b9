package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	obserrors "github.com/jemaat/portal/internal/observability/errors"
	"github.com/jemaat/portal/internal/observability/metrics"
	"github.com/jemaat/portal/internal/observability/statsd"
)

// IdleSweeper drops in-memory entries not touched for idle and reports how many went.
type IdleSweeper interface {
	Sweep(idle time.Duration) int
}

// AuditPurger deletes access events recorded before cutoff.
type AuditPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	// Sessions and Limiter live in the HTTP process; both are optional.
	Sessions IdleSweeper
	Limiter  IdleSweeper
	Audit    AuditPurger // optional

	Interval       time.Duration
	SessionIdle    time.Duration
	AuditRetention time.Duration

	Logger  *slog.Logger // Optional: structured logger
	Metrics statsd.Sink  // Optional: metrics sink (StatsD-compatible)
	Now     func() time.Time
}

// ReaperService periodically drops idle client sessions and login limiter
// entries and prunes the access log.
type ReaperService struct {
	opts    ReaperServiceOptions
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Sessions == nil && opts.Limiter == nil && opts.Audit == nil {
		return nil, errors.New("reaper has nothing to clean")
	}
	if opts.Interval <= 0 {
		return nil, errors.New("reaper interval must be positive")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reaper_service")
	logger.Debug("ReaperService initialized",
		"interval", opts.Interval,
		"session_idle", opts.SessionIdle,
		"audit_retention", opts.AuditRetention,
		"sessions", opts.Sessions != nil,
		"audit", opts.Audit != nil,
	)

	return &ReaperService{opts: opts, logger: logger, metrics: opts.Metrics}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper service", "interval", s.opts.Interval)

	// Several replicas started together should not purge in lockstep.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	if err := s.RunOnce(ctx); err != nil {
		s.logCleanupError(err, "initial cleanup")
	}

	return s.runLoop(ctx, ticker)
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.opts.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

func (s *ReaperService) runLoop(ctx context.Context, ticker *time.Ticker) error {
	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logCleanupError(err, "cleanup")
			}
		}
	}
}

type cleanupFunc func(context.Context) (int64, error)

type cleanupStep struct {
	operation string
	label     string
	fn        cleanupFunc
}

type cleanupOutcome struct {
	operation string
	count     int64
	err       error
}

// RunOnce performs a single cleanup pass. A failing step does not stop the others.
func (s *ReaperService) RunOnce(ctx context.Context) error {
	start := s.opts.Now()
	var (
		errs        []error
		allCanceled = true
		outcomes    []cleanupOutcome
	)

	for _, step := range s.steps() {
		count, err := step.fn(ctx)
		outcomes = append(outcomes, cleanupOutcome{
			operation: step.operation,
			count:     count,
			err:       suppressContextCancellation(err),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.label, err))
			allCanceled = allCanceled && isContextCancellation(err)
		}
	}

	s.emitCleanupMetrics(outcomes, s.opts.Now().Sub(start))

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if allCanceled {
			return context.Canceled
		}
		return fmt.Errorf("cleanup failed: %w", joined)
	}
	return nil
}

func (s *ReaperService) steps() []cleanupStep {
	var steps []cleanupStep
	if s.opts.Sessions != nil && s.opts.SessionIdle > 0 {
		steps = append(steps, cleanupStep{
			operation: "sweep_sessions",
			label:     "sweep idle sessions",
			fn:        s.sweep(s.opts.Sessions, "swept idle client sessions"),
		})
	}
	if s.opts.Limiter != nil && s.opts.SessionIdle > 0 {
		steps = append(steps, cleanupStep{
			operation: "sweep_login_limiter",
			label:     "sweep login limiter",
			fn:        s.sweep(s.opts.Limiter, "swept idle login limiter entries"),
		})
	}
	if s.opts.Audit != nil && s.opts.AuditRetention > 0 {
		steps = append(steps, cleanupStep{
			operation: "purge_audit",
			label:     "purge access events",
			fn:        s.purgeAudit,
		})
	}
	return steps
}

func (s *ReaperService) sweep(target IdleSweeper, msg string) cleanupFunc {
	return func(ctx context.Context) (int64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n := target.Sweep(s.opts.SessionIdle)
		if n > 0 {
			s.logger.InfoContext(ctx, msg, "count", n, "idle", s.opts.SessionIdle)
		}
		return int64(n), nil
	}
}

func (s *ReaperService) purgeAudit(ctx context.Context) (int64, error) {
	cutoff := s.opts.Now().Add(-s.opts.AuditRetention)
	n, err := s.opts.Audit.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "purged old access events", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

func (s *ReaperService) emitCleanupMetrics(outcomes []cleanupOutcome, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}

	var total int64
	var firstErr error
	for _, o := range outcomes {
		total += o.count
		if firstErr == nil {
			firstErr = o.err
		}
	}

	result := metrics.ResultSuccess
	if firstErr != nil {
		result = metrics.ResultError
	} else if total == 0 {
		result = metrics.ResultNoop
	}
	tags := map[string]string{"result": result}
	if class := obserrors.Classify(firstErr); class != "" {
		tags["error_class"] = class
	}

	s.metrics.Count("reaper.cleanup", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", elapsed, metrics.CloneTags(tags))
	}
	for _, o := range outcomes {
		s.emitCleanupOperationMetric(o)
	}
	if firstErr == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(s.opts.Now().Unix()), nil)
	}
}

func (s *ReaperService) emitCleanupOperationMetric(o cleanupOutcome) {
	result := metrics.ResultSuccess
	if o.err != nil {
		result = metrics.ResultError
	} else if o.count == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{"operation": o.operation, "result": result}
	if class := obserrors.Classify(o.err); class != "" {
		tags["error_class"] = class
	}

	s.metrics.Count("reaper.cleanup_operation", 1, tags)
	if o.err == nil && o.count > 0 {
		s.metrics.Count("reaper.items_removed", o.count, metrics.CloneTags(tags))
	}
}

func (s *ReaperService) logCleanupError(err error, label string) {
	if err == nil {
		return
	}
	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}
	s.logger.Error(label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
