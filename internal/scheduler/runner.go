package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cafeplease/internal/model"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Ticker performs one locked load, tick and save cycle.
type Ticker interface {
	Tick(ctx context.Context) (TickResult, error)
}

// Runner invokes a Ticker on a fixed interval while auto-approval is on.
type Runner struct {
	mu       sync.Mutex
	ticker   Ticker
	interval time.Duration
	log      *zap.Logger
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewRunner(ticker Ticker, interval time.Duration, log *zap.Logger) *Runner {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Runner{
		ticker:   ticker,
		interval: interval,
		log:      log,
	}
}

// Start begins ticking. Calling Start on a running Runner is a no-op.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{r.log})))
	ctx, cancel := context.WithCancel(context.Background())
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", r.interval), func() { r.runOnce(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule tick: %w", err)
	}
	c.Start()

	r.cron, r.ctx, r.cancel = c, ctx, cancel
	r.log.Info("Scheduler started", zap.Duration("interval", r.interval))
	return nil
}

// Stop halts ticking and blocks until a tick already in progress returns.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron == nil {
		return
	}

	<-r.cron.Stop().Done()
	r.cancel()
	r.cron, r.ctx, r.cancel = nil, nil, nil
	r.log.Info("Scheduler stopped")
}

// Running reports whether the Runner is currently scheduled.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cron != nil
}

// Reconcile starts the Runner when any team auto-approves and stops it otherwise.
func (r *Runner) Reconcile(settings model.Settings) {
	if settings.AnyAutoApprove() {
		if err := r.Start(); err != nil {
			r.log.Error("Failed to start scheduler", zap.Error(err))
		}
		return
	}
	r.Stop()
}

func (r *Runner) runOnce(ctx context.Context) {
	res, err := r.ticker.Tick(ctx)
	if err != nil {
		r.log.Error("Scheduler tick failed", zap.Error(err))
		return
	}
	if res.Changed {
		r.log.Info("Scheduler tick applied",
			zap.Strings("expired", res.Expired),
			zap.Strings("approved", res.Approved),
			zap.Strings("completed", res.Completed),
		)
	}
}

type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
