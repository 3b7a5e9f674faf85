package model

// QueueEntry is one user's place in an environment's FIFO waitlist.
// Positions within an environment start at 1 and stay contiguous: every
// removal renumbers the entries behind it inside the same transaction.
// RequestedTTLSeconds preserves the duration the user originally asked for
// so promotion can honor it; nil means "use the environment default".
type QueueEntry struct {
	ID                  uint64 `json:"id"`
	EnvID               uint64 `json:"env_id"`
	UserID              string `json:"user_id"`
	Position            int64  `json:"position"`
	EnqueuedAt          int64  `json:"enqueued_at"`
	RequestedTTLSeconds *int64 `json:"requested_ttl_seconds,omitempty"`
}
