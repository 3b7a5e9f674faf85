// Package service implements the reservation engine and the background
// sweeper.  Domain outcomes are typed Result values, not errors: expected
// conditions (environment busy, cap reached, already queued) travel to the
// caller as structured results with enough context to render one precise
// message.  Only storage faults propagate as Go errors.
package service

// Kind classifies a domain outcome.
type Kind string

const (
	// KindOK marks a fully successful operation.
	KindOK Kind = "ok"
	// KindQueued means the claim was not satisfied immediately and the
	// caller joined the queue.  Deliberately a non-success outcome so it
	// is rendered even when command acks are suppressed.
	KindQueued Kind = "queued"
	// KindLeftQueue confirms a voluntary queue removal (also non-success
	// so the confirmation stays visible).
	KindLeftQueue Kind = "left_queue"

	// KindEnvNotFound: no active environment with that name.
	KindEnvNotFound Kind = "env_not_found"
	// KindDurationExceedsMax: an explicitly requested duration is over
	// the environment cap.  Explicit requests are rejected, not clamped.
	KindDurationExceedsMax Kind = "duration_exceeds_max"
	// KindAlreadyHolder: caller already holds the environment.
	KindAlreadyHolder Kind = "already_holder"
	// KindAlreadyQueued: caller is already in this environment's queue.
	KindAlreadyQueued Kind = "already_queued"
	// KindNotHolder: caller does not hold the environment (someone else
	// does).
	KindNotHolder Kind = "not_holder"
	// KindMaxTTLReached: an extension would not move the deadline past
	// the cap; nothing was mutated.
	KindMaxTTLReached Kind = "max_ttl_reached"
	// KindInvalidDuration: a non-positive or unparseable duration.
	KindInvalidDuration Kind = "invalid_duration"
	// KindAlreadyFree: the environment has no active hold.
	KindAlreadyFree Kind = "already_free"
	// KindConflict: a conditional update observed concurrent mutation;
	// the caller may simply retry.
	KindConflict Kind = "conflict"
	// KindUsage: malformed command input; Message carries the usage hint.
	KindUsage Kind = "usage"
)

// UsageResult builds the non-success result for malformed command input.
func UsageResult(message string) Result {
	return fail(KindUsage, message)
}

// Result is the structured outcome of every engine operation.  Message is
// ready to show to the requesting user; the context fields allow richer
// rendering (modals, buttons) without re-querying.
type Result struct {
	OK      bool   `json:"ok"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`

	EnvName    string `json:"env_name,omitempty"`
	Holder     string `json:"holder,omitempty"`
	ExpiresAt  int64  `json:"expires_at,omitempty"`
	Position   int64  `json:"position,omitempty"`
	ETASeconds int64  `json:"eta_seconds,omitempty"`
}

func ok(kind Kind, message string) Result {
	return Result{OK: true, Kind: kind, Message: message}
}

func fail(kind Kind, message string) Result {
	return Result{OK: false, Kind: kind, Message: message}
}
