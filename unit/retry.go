package unit

import (
	"log/slog"

	"github.com/tailored-agentic-units/supervisor/messaging"
	"github.com/tailored-agentic-units/supervisor/observability"
)

// scheduleRetry arms a single-shot timer for the current generation. Any
// later change of actual or desired state makes the expiry a no-op.
func (u *Unit) scheduleRetry() {
	u.stopRetry()

	generation := u.generation
	u.retry = u.clock.AfterFunc(u.retryPeriod, func() {
		u.mailbox.Send(retryExpired{generation: generation})
	})

	u.emit(EventRetryScheduled, observability.LevelWarning, map[string]any{
		"retry_period": u.retryPeriod.String(),
	})
}

func (u *Unit) stopRetry() {
	if u.retry != nil {
		u.retry.Stop()
		u.retry = nil
	}
}

func (u *Unit) fireRetry(generation uint64) {
	if generation != u.generation ||
		u.state != messaging.StateFailed ||
		u.desired != messaging.DesiredEnabled {
		u.logger.Debug("stale retry ignored", slog.Uint64("generation", generation))
		return
	}

	u.retry = nil
	u.emit(EventRetryFired, observability.LevelInfo, nil)
	u.publish(messaging.NewCommand(u.id, messaging.CommandStart).Build())
}
