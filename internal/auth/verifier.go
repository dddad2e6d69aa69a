// Package auth - verifier.go implements the request-time API key verification
// service: candidate loading, bcrypt comparison, app-status and IP-whitelist
// checks, and the best-effort last-used write.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/resolveit/resolveit/internal/db/models"
	"github.com/resolveit/resolveit/internal/db/repositories"
	"github.com/resolveit/resolveit/internal/safego"
	"github.com/resolveit/resolveit/internal/telemetry"
)

// Verification failure taxonomy. ErrInvalidAPIKey deliberately covers every
// "no usable match" case (unknown key, revoked key, expired key) so responses
// never reveal whether a presented key once existed.
var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrAppInactive      = errors.New("app is inactive")
	ErrIPNotWhitelisted = errors.New("IP address not whitelisted")
)

// Principal is the verified identity attached to a public API request
type Principal struct {
	App    *models.App
	APIKey *models.AppAPIKey
}

// Verifier resolves a raw API key and client IP to a Principal
type Verifier struct {
	keys      *repositories.AppAPIKeyRepository
	whitelist *repositories.IPWhitelistRepository
}

// NewVerifier creates a new Verifier
func NewVerifier(keys *repositories.AppAPIKeyRepository, whitelist *repositories.IPWhitelistRepository) *Verifier {
	return &Verifier{keys: keys, whitelist: whitelist}
}

// Verify checks a raw API key and source address against the stored credentials.
// On success it returns the owning app and the matched key, and records the use
// asynchronously. Failures map onto the sentinel error taxonomy above.
func (v *Verifier) Verify(ctx context.Context, rawKey, clientIP string) (*Principal, error) {
	candidates, err := v.keys.ListActiveWithApp(ctx)
	if err != nil {
		telemetry.APIKeyVerificationsTotal.WithLabelValues(telemetry.VerifyResultError).Inc()
		return nil, fmt.Errorf("failed to load API key candidates: %w", err)
	}

	// The stored display prefix is the first chars of the raw key, so a cheap
	// string compare skips most bcrypt work. Rows with short or missing
	// prefixes still get the full comparison.
	var keyPrefix string
	if len(rawKey) >= DisplayPrefixLength {
		keyPrefix = rawKey[:DisplayPrefixLength]
	}

	now := time.Now()
	for _, candidate := range candidates {
		if keyPrefix != "" && len(candidate.KeyPrefix) == DisplayPrefixLength && candidate.KeyPrefix != keyPrefix {
			continue
		}

		if !ValidateAPIKey(rawKey, candidate.KeyHash) {
			continue
		}

		// The query excludes expired keys, but the candidate set may be
		// stale by the time bcrypt finishes
		if candidate.IsExpired(now) {
			continue
		}

		if !candidate.App.IsActive {
			telemetry.APIKeyVerificationsTotal.WithLabelValues(telemetry.VerifyResultAppInactive).Inc()
			return nil, ErrAppInactive
		}

		allowed, err := v.checkWhitelist(ctx, candidate.AppID, clientIP)
		if err != nil {
			telemetry.APIKeyVerificationsTotal.WithLabelValues(telemetry.VerifyResultError).Inc()
			return nil, err
		}
		if !allowed {
			telemetry.APIKeyVerificationsTotal.WithLabelValues(telemetry.VerifyResultIPNotWhitelisted).Inc()
			return nil, ErrIPNotWhitelisted
		}

		v.recordUse(candidate.ID, clientIP)

		telemetry.APIKeyVerificationsTotal.WithLabelValues(telemetry.VerifyResultSuccess).Inc()
		key := candidate.AppAPIKey
		app := candidate.App
		return &Principal{App: &app, APIKey: &key}, nil
	}

	telemetry.APIKeyVerificationsTotal.WithLabelValues(telemetry.VerifyResultInvalidKey).Inc()
	return nil, ErrInvalidAPIKey
}

// checkWhitelist loads the app's active whitelist entries and matches the
// client address. An app with no active entries accepts any source address.
func (v *Verifier) checkWhitelist(ctx context.Context, appID, clientIP string) (bool, error) {
	entries, err := v.whitelist.ListActiveByApp(ctx, appID)
	if err != nil {
		return false, fmt.Errorf("failed to load IP whitelist: %w", err)
	}

	if len(entries) == 0 {
		return true, nil
	}

	addresses := make([]string, 0, len(entries))
	for _, entry := range entries {
		addresses = append(addresses, entry.IPAddress)
	}

	return MatchesWhitelist(clientIP, addresses), nil
}

// recordUse updates last_used_at/last_used_ip without blocking the request.
// Failures are logged and dropped; usage tracking never affects the decision.
func (v *Verifier) recordUse(keyID, clientIP string) {
	normalized := NormalizeClientIP(clientIP)
	safego.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := v.keys.UpdateLastUsed(ctx, keyID, normalized); err != nil {
			slog.Warn("failed to update API key last-used", "key_id", keyID, "error", err)
		}
	})
}
