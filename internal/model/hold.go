package model

// Hold is a time-bounded exclusive claim on an environment.  A hold is
// active while ReleasedAt is nil; the holds table enforces at most one
// active row per environment through a generated-column unique key.
// RemindedAt is nil until the pre-expiry reminder has been sent; extending
// a hold clears it so a new reminder can fire for the new deadline.
type Hold struct {
	ID         uint64 `json:"id"`
	EnvID      uint64 `json:"env_id"`
	UserID     string `json:"user_id"`
	StartedAt  int64  `json:"started_at"`
	ExpiresAt  int64  `json:"expires_at"`
	ReleasedAt *int64 `json:"released_at,omitempty"`
	RemindedAt *int64 `json:"reminded_at,omitempty"`
	Note       string `json:"note,omitempty"`
}

// Active reports whether the hold has not been released yet.
func (h Hold) Active() bool { return h.ReleasedAt == nil }

// Remaining returns the seconds left until expiry at the given time, never
// negative.
func (h Hold) Remaining(now int64) int64 {
	if h.ExpiresAt <= now {
		return 0
	}
	return h.ExpiresAt - now
}
