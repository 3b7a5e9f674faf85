package service

import "dibs/internal/model"

// Global ceilings.  The hard cap bounds every hold regardless of per-env
// configuration; the promotion floor keeps a queued user from being handed
// an environment for a few unusable seconds.  The floor applies uniformly
// to sweep-driven and manual promotions.
const (
	HardCapSeconds        int64 = 3 * 24 * 60 * 60
	MinPromotedTTLSeconds int64 = 60
)

// capFor returns the effective TTL ceiling for an environment: its max TTL
// when set, bounded by the global hard cap either way.
func capFor(env *model.Environment) int64 {
	if env.MaxTTLSeconds != nil && *env.MaxTTLSeconds < HardCapSeconds {
		return *env.MaxTTLSeconds
	}
	return HardCapSeconds
}

// grantTTL resolves the duration of a new hold: the explicit request when
// present, else the environment default, clamped to cap.  Only defaults are
// clamped silently; callers must reject explicit requests above cap before
// calling (see Acquire).
func grantTTL(requested *int64, defaultTTL, cap int64) int64 {
	ttl := defaultTTL
	if requested != nil && *requested > 0 {
		ttl = *requested
	}
	if ttl > cap {
		ttl = cap
	}
	return ttl
}

// promotionTTL resolves the duration granted to a promoted queue entry:
// the duration originally requested when queueing, else the environment
// default, clamped to [MinPromotedTTLSeconds, HardCapSeconds].  The per-env
// cap is deliberately not consulted here; the requested duration was
// validated against it at queue time.
func promotionTTL(requested *int64, defaultTTL int64) int64 {
	ttl := defaultTTL
	if requested != nil && *requested > 0 {
		ttl = *requested
	}
	if ttl > HardCapSeconds {
		ttl = HardCapSeconds
	}
	if ttl < MinPromotedTTLSeconds {
		ttl = MinPromotedTTLSeconds
	}
	return ttl
}

// extendedExpiry computes the new deadline for an extension: total granted
// duration so far plus the extension, capped, anchored at the hold start.
// When the result does not move the deadline forward the hold is already
// at (or beyond) cap and nothing should be written.
func extendedExpiry(startedAt, expiresAt, extendSeconds, cap int64) (newExpiry int64, extended bool) {
	used := expiresAt - startedAt
	if used < 0 {
		used = 0
	}
	allowed := used + extendSeconds
	if allowed > cap {
		allowed = cap
	}
	newExpiry = startedAt + allowed
	return newExpiry, newExpiry > expiresAt
}

// queueETA estimates the wait for a queue position: the current holder's
// remaining time plus one default TTL per waiter ahead.
func queueETA(activeRemaining, position, defaultTTL int64) int64 {
	ahead := position - 1
	if ahead < 0 {
		ahead = 0
	}
	if activeRemaining < 0 {
		activeRemaining = 0
	}
	return activeRemaining + ahead*defaultTTL
}
