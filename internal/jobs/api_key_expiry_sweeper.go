// api_key_expiry_sweeper.go implements the APIKeyExpirySweeper background job, which
// periodically deactivates API keys whose expires_at has passed. Verification already
// rejects expired keys at request time; the sweeper keeps the stored is_active flag in
// agreement with that behavior so listings and metrics reflect reality without waiting
// for the key to be presented again.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/resolveit/resolveit/internal/config"
	"github.com/resolveit/resolveit/internal/db/repositories"
	"github.com/resolveit/resolveit/internal/telemetry"
)

// APIKeyExpirySweeper periodically marks expired API keys inactive.
type APIKeyExpirySweeper struct {
	keyRepo  *repositories.AppAPIKeyRepository
	interval time.Duration
	stopChan chan struct{}
}

// NewAPIKeyExpirySweeper creates a new APIKeyExpirySweeper.
// The sweep interval comes from jobs.api_key_expiry_sweep_interval_hours (default 1h).
func NewAPIKeyExpirySweeper(keyRepo *repositories.AppAPIKeyRepository, cfg *config.JobsConfig) *APIKeyExpirySweeper {
	hours := cfg.APIKeyExpirySweepIntervalHours
	if hours <= 0 {
		hours = 1
	}
	return &APIKeyExpirySweeper{
		keyRepo:  keyRepo,
		interval: time.Duration(hours) * time.Hour,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background sweep loop.
// It runs an initial sweep immediately, then repeats on the configured interval.
// The loop exits when ctx is cancelled or Stop() is called.
func (s *APIKeyExpirySweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("API key expiry sweeper started", "interval", s.interval)

	// Run once immediately on startup
	s.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-s.stopChan:
			slog.Info("API key expiry sweeper stopped")
			return
		case <-ctx.Done():
			slog.Info("API key expiry sweeper context cancelled")
			return
		}
	}
}

// Stop signals the background loop to exit.
func (s *APIKeyExpirySweeper) Stop() {
	close(s.stopChan)
}

// runSweep deactivates every key whose expiry has passed.
func (s *APIKeyExpirySweeper) runSweep(ctx context.Context) {
	count, err := s.keyRepo.DeactivateExpiredKeys(ctx)
	if err != nil {
		slog.Error("API key expiry sweep failed", "error", err)
		return
	}

	if count > 0 {
		telemetry.ExpiredKeysDeactivatedTotal.Add(float64(count))
		slog.Info("deactivated expired API keys", "count", count)
	}
}
