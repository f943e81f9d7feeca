package graph

import (
	"context"
	"log/slog"
	"time"
)

// TimeoutMonitor runs graph operations under a deadline and warns when
// they get close to it.
type TimeoutMonitor struct {
	logger       *slog.Logger
	warningRatio float64 // Warn when execution reaches this share of timeout
}

// NewTimeoutMonitor creates a monitor that warns at 80% of the timeout
func NewTimeoutMonitor(logger *slog.Logger) *TimeoutMonitor {
	return &TimeoutMonitor{
		logger:       logger.With("component", "timeout_monitor"),
		warningRatio: 0.8,
	}
}

// Run executes fn with a context bounded by cfg.Timeout and logs the outcome.
func (tm *TimeoutMonitor) Run(ctx context.Context, cfg TransactionConfig, fn func(context.Context) error) error {
	operation, _ := cfg.Metadata["operation"].(string)
	runCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(runCtx)
	duration := time.Since(start)

	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			tm.logger.Error("operation timed out",
				"operation", operation,
				"duration_seconds", duration.Seconds(),
				"timeout_seconds", cfg.Timeout.Seconds())
		} else {
			tm.logger.Debug("operation failed",
				"operation", operation,
				"duration_seconds", duration.Seconds(),
				"error", err)
		}
		return err
	}

	if cfg.Timeout > 0 && duration >= time.Duration(float64(cfg.Timeout)*tm.warningRatio) {
		tm.logger.Warn("operation approaching timeout",
			"operation", operation,
			"duration_seconds", duration.Seconds(),
			"timeout_seconds", cfg.Timeout.Seconds(),
			"percent_used", duration.Seconds()/cfg.Timeout.Seconds()*100)
	} else {
		tm.logger.Debug("operation completed",
			"operation", operation,
			"duration_seconds", duration.Seconds())
	}
	return nil
}
