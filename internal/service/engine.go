package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"dibs/internal/model"
	"dibs/internal/notify"
	"dibs/internal/repository"
	"dibs/internal/utils"
)

// Clock returns the current unix time in seconds.  Injected so expiry and
// reminder boundaries are deterministic in tests.
type Clock func() int64

// Engine owns the hold/queue state machine.  Every mutating operation runs
// inside one database transaction; correctness under concurrent commands
// rests on the store's constraints (one active hold per env, one queue
// entry per user per env) and on row locks taken by the repositories, not
// on in-process synchronization.  Notifications are published only after
// commit and never fail the operation.
type Engine struct {
	db        *sql.DB
	envs      *repository.EnvironmentRepo
	holds     *repository.HoldRepo
	queue     *repository.QueueRepo
	settings  *repository.SettingsRepo
	publisher notify.Publisher
	now       Clock
}

// NewEngine constructs the engine.  A nil clock defaults to wall time and
// a nil publisher to a no-op.
func NewEngine(db *sql.DB, envs *repository.EnvironmentRepo, holds *repository.HoldRepo,
	queue *repository.QueueRepo, settings *repository.SettingsRepo,
	publisher notify.Publisher, now Clock) *Engine {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &Engine{db: db, envs: envs, holds: holds, queue: queue,
		settings: settings, publisher: publisher, now: now}
}

// AcquireOptions carries the optional parts of an acquire request.
type AcquireOptions struct {
	RequestedSeconds *int64
	Note             string
}

// Acquire claims an environment for userID, or queues the caller when it
// is busy.  Joining the queue is a non-success outcome: the caller asked
// to claim, not to wait.
//
// The race branch is first-class control flow, not exception handling: two
// concurrent acquires on a free environment both pass the "no active hold"
// read, one insert wins, and the loser's duplicate-key violation routes it
// back through a re-read into the queueing path with no error surfaced.
func (e *Engine) Acquire(ctx context.Context, rawName, userID string, opts AcquireOptions) (Result, error) {
	env, res, err := e.resolveEnv(ctx, rawName)
	if env == nil {
		return res, err
	}
	now := e.now()
	cap := capFor(env)

	if opts.RequestedSeconds != nil && *opts.RequestedSeconds > cap {
		// An explicit over-cap request is an error, never a silent clamp.
		return fail(KindDurationExceedsMax, fmt.Sprintf(
			"Requested duration exceeds the max TTL for `%s`. Max is %s.",
			env.Name, utils.HumanizeSeconds(cap))), nil
	}
	if opts.RequestedSeconds != nil && *opts.RequestedSeconds <= 0 {
		return fail(KindInvalidDuration, "Invalid duration."), nil
	}
	ttl := grantTTL(opts.RequestedSeconds, env.DefaultTTLSeconds, cap)

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	active, err := e.holds.ActiveByEnvTx(ctx, tx, env.ID)
	if err != nil {
		return Result{}, err
	}

	if active == nil {
		hold := &model.Hold{EnvID: env.ID, UserID: userID, StartedAt: now, ExpiresAt: now + ttl, Note: opts.Note}
		err := e.holds.CreateTx(ctx, tx, hold)
		switch {
		case err == nil:
			if err := tx.Commit(); err != nil {
				return Result{}, err
			}
			committed = true
			e.logInfo(ctx, "acquire: granted env=%s user=%s ttl=%d", env.Name, userID, ttl)
			e.announce(ctx, env, fmt.Sprintf("`%s` assigned to <@%s> until %s (%s).",
				env.Name, userID, utils.FormatUnix(hold.ExpiresAt), utils.HumanizeSeconds(ttl)))
			r := ok(KindOK, fmt.Sprintf("You now hold `%s` until %s (%s).",
				env.Name, utils.FormatUnix(hold.ExpiresAt), utils.HumanizeSeconds(ttl)))
			r.EnvName = env.Name
			r.Holder = userID
			r.ExpiresAt = hold.ExpiresAt
			return r, nil
		case repository.IsDuplicateEntry(err):
			// Lost the acquisition race: someone inserted the active hold
			// between our read and our insert.  Re-read and queue instead.
			log.Printf("acquire: race detected on env=%s, falling back to queue", env.Name)
			active, err = e.holds.ActiveByEnvTx(ctx, tx, env.ID)
			if err != nil {
				return Result{}, err
			}
		default:
			return Result{}, err
		}
	}

	if active != nil && active.UserID == userID {
		remaining := active.Remaining(now)
		r := fail(KindAlreadyHolder, fmt.Sprintf("You already hold `%s` (remaining %s).",
			env.Name, utils.HumanizeSeconds(remaining)))
		r.EnvName = env.Name
		r.Holder = userID
		r.ExpiresAt = active.ExpiresAt
		return r, nil
	}

	res, err = e.enqueueTx(ctx, tx, env, active, userID, opts.RequestedSeconds, now)
	if err != nil {
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	committed = true
	return res, nil
}

// enqueueTx appends the caller to the environment's queue inside the
// caller's transaction, handling the already-queued case and the benign
// double-enqueue race.
func (e *Engine) enqueueTx(ctx context.Context, tx *sql.Tx, env *model.Environment,
	active *model.Hold, userID string, requested *int64, now int64) (Result, error) {
	remaining := int64(0)
	holder := ""
	if active != nil {
		remaining = active.Remaining(now)
		holder = active.UserID
	}

	existing, err := e.queue.EntryByEnvUserTx(ctx, tx, env.ID, userID)
	if err != nil {
		return Result{}, err
	}
	if existing != nil {
		return e.alreadyQueuedResult(env, holder, existing.Position, remaining), nil
	}

	pos, err := e.queue.NextPositionTx(ctx, tx, env.ID)
	if err != nil {
		return Result{}, err
	}
	entry := &model.QueueEntry{EnvID: env.ID, UserID: userID, Position: pos,
		EnqueuedAt: now, RequestedTTLSeconds: requested}
	if err := e.queue.EnqueueTx(ctx, tx, entry); err != nil {
		if repository.IsDuplicateEntry(err) {
			// Concurrent enqueue by the same user, or a positional
			// collision; either way the user is (about to be) queued.
			existing, rerr := e.queue.EntryByEnvUserTx(ctx, tx, env.ID, userID)
			if rerr != nil {
				return Result{}, rerr
			}
			posNow := pos
			if existing != nil {
				posNow = existing.Position
			}
			return e.alreadyQueuedResult(env, holder, posNow, remaining), nil
		}
		return Result{}, err
	}
	e.logInfo(ctx, "acquire: enqueued env=%s user=%s position=%d", env.Name, userID, pos)

	eta := queueETA(remaining, pos, env.DefaultTTLSeconds)
	var msg string
	if active != nil {
		msg = fmt.Sprintf("`%s` is currently held by <@%s> until %s. You are queued at position %d. ETA ~ %s.",
			env.Name, holder, utils.FormatUnix(active.ExpiresAt), pos, utils.HumanizeSeconds(eta))
	} else {
		msg = fmt.Sprintf("`%s` is currently busy. You are queued at position %d. ETA ~ %s.",
			env.Name, pos, utils.HumanizeSeconds(eta))
	}
	r := fail(KindQueued, msg)
	r.EnvName = env.Name
	r.Holder = holder
	r.Position = pos
	r.ETASeconds = eta
	return r, nil
}

func (e *Engine) alreadyQueuedResult(env *model.Environment, holder string, position, remaining int64) Result {
	eta := queueETA(remaining, position, env.DefaultTTLSeconds)
	r := fail(KindAlreadyQueued, fmt.Sprintf(
		"`%s` is busy. You are already in the queue at position %d. ETA ~ %s.",
		env.Name, position, utils.HumanizeSeconds(eta)))
	r.EnvName = env.Name
	r.Holder = holder
	r.Position = position
	r.ETASeconds = eta
	return r
}

// Release gives up the caller's hold (promoting the queue head), or
// removes the caller's queue entry when they are only waiting.
func (e *Engine) Release(ctx context.Context, rawName, userID string) (Result, error) {
	env, res, err := e.resolveEnv(ctx, rawName)
	if env == nil {
		return res, err
	}
	now := e.now()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	active, err := e.holds.ActiveByEnvTx(ctx, tx, env.ID)
	if err != nil {
		return Result{}, err
	}

	if active != nil && active.UserID == userID {
		promoted, res, err := e.releaseAndPromoteTx(ctx, tx, env, active, now, "assigned from queue")
		if err != nil {
			return Result{}, err
		}
		if err := tx.Commit(); err != nil {
			return Result{}, err
		}
		committed = true
		e.logInfo(ctx, "release: env=%s user=%s promoted=%v", env.Name, userID, promoted != nil)
		e.afterPromotion(ctx, env, promoted)
		return res, nil
	}

	// Not the holder: a queued caller leaves the queue voluntarily.
	queued, err := e.queue.EntryByEnvUserTx(ctx, tx, env.ID, userID)
	if err != nil {
		return Result{}, err
	}
	if queued != nil {
		if err := e.queue.RemoveTx(ctx, tx, queued); err != nil {
			return Result{}, err
		}
		if err := tx.Commit(); err != nil {
			return Result{}, err
		}
		committed = true
		e.logInfo(ctx, "release: dequeued env=%s user=%s position=%d", env.Name, userID, queued.Position)
		r := fail(KindLeftQueue, fmt.Sprintf("Removed you from the queue for `%s`.", env.Name))
		r.EnvName = env.Name
		return r, nil
	}

	if active != nil {
		r := fail(KindNotHolder, fmt.Sprintf("You do not hold `%s`. It is held by <@%s> until %s.",
			env.Name, active.UserID, utils.FormatUnix(active.ExpiresAt)))
		r.EnvName = env.Name
		r.Holder = active.UserID
		r.ExpiresAt = active.ExpiresAt
		return r, nil
	}
	return fail(KindAlreadyFree, fmt.Sprintf("`%s` is already free.", env.Name)), nil
}

// releaseAndPromoteTx releases the active hold and promotes the queue head
// when present, all inside the caller's transaction.  It returns the
// promoted hold (nil when the queue was empty) and the result for the
// releasing caller.
func (e *Engine) releaseAndPromoteTx(ctx context.Context, tx *sql.Tx, env *model.Environment,
	active *model.Hold, now int64, note string) (*model.Hold, Result, error) {
	released, err := e.holds.ReleaseTx(ctx, tx, active.ID, now)
	if err != nil {
		return nil, Result{}, err
	}
	if !released {
		// The row lock makes this unreachable in practice; treat a
		// concurrently released hold as already free.
		return nil, fail(KindAlreadyFree, fmt.Sprintf("`%s` is already free.", env.Name)), nil
	}

	head, err := e.queue.HeadTx(ctx, tx, env.ID)
	if err != nil {
		return nil, Result{}, err
	}
	if head == nil {
		r := ok(KindOK, fmt.Sprintf("Released `%s`. It is now free.", env.Name))
		r.EnvName = env.Name
		return nil, r, nil
	}

	if err := e.queue.RemoveTx(ctx, tx, head); err != nil {
		return nil, Result{}, err
	}
	ttl := promotionTTL(head.RequestedTTLSeconds, env.DefaultTTLSeconds)
	promoted := &model.Hold{EnvID: env.ID, UserID: head.UserID, StartedAt: now, ExpiresAt: now + ttl, Note: note}
	if err := e.holds.CreateTx(ctx, tx, promoted); err != nil {
		return nil, Result{}, err
	}

	r := ok(KindOK, fmt.Sprintf("Released `%s`. Assigned to <@%s> until %s.",
		env.Name, head.UserID, utils.FormatUnix(promoted.ExpiresAt)))
	r.EnvName = env.Name
	r.Holder = head.UserID
	r.ExpiresAt = promoted.ExpiresAt
	return promoted, r, nil
}

// afterPromotion emits the post-commit notifications shared by release and
// force-release: the channel announcement and, when someone was promoted,
// their direct message.
func (e *Engine) afterPromotion(ctx context.Context, env *model.Environment, promoted *model.Hold) {
	if promoted == nil {
		e.announce(ctx, env, fmt.Sprintf("`%s` is now free.", env.Name))
		return
	}
	ttl := promoted.ExpiresAt - promoted.StartedAt
	e.announce(ctx, env, fmt.Sprintf("`%s` assigned to <@%s> until %s (%s).",
		env.Name, promoted.UserID, utils.FormatUnix(promoted.ExpiresAt), utils.HumanizeSeconds(ttl)))
	e.dm(ctx, promoted.UserID, fmt.Sprintf("You now hold `%s` until %s (%s).",
		env.Name, utils.FormatUnix(promoted.ExpiresAt), utils.HumanizeSeconds(ttl)))
}

// Extend pushes the caller's hold deadline forward.  The total granted
// duration is capped; an extension that cannot move the deadline fails
// with MaxTTLReached and mutates nothing.  expires_at never decreases.
func (e *Engine) Extend(ctx context.Context, rawName, userID string, extendSeconds int64) (Result, error) {
	env, res, err := e.resolveEnv(ctx, rawName)
	if env == nil {
		return res, err
	}
	if extendSeconds <= 0 {
		return fail(KindInvalidDuration, "Invalid duration to extend."), nil
	}
	now := e.now()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	active, err := e.holds.ActiveByEnvTx(ctx, tx, env.ID)
	if err != nil {
		return Result{}, err
	}
	if active == nil {
		return fail(KindAlreadyFree, fmt.Sprintf("`%s` is not currently held.", env.Name)), nil
	}
	if active.UserID != userID {
		r := fail(KindNotHolder, fmt.Sprintf("You do not hold `%s`.", env.Name))
		r.EnvName = env.Name
		r.Holder = active.UserID
		return r, nil
	}

	newExpiry, extended := extendedExpiry(active.StartedAt, active.ExpiresAt, extendSeconds, capFor(env))
	if !extended {
		r := fail(KindMaxTTLReached, fmt.Sprintf("Max TTL reached for `%s`.", env.Name))
		r.EnvName = env.Name
		r.ExpiresAt = active.ExpiresAt
		return r, nil
	}

	updated, err := e.holds.UpdateExpiryTx(ctx, tx, active.ID, active.ExpiresAt, newExpiry)
	if err != nil {
		return Result{}, err
	}
	if !updated {
		return fail(KindConflict, fmt.Sprintf("`%s` changed while extending; try again.", env.Name)), nil
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	committed = true

	e.logInfo(ctx, "extend: env=%s user=%s new_expires=%d", env.Name, userID, newExpiry)
	remaining := newExpiry - now
	if remaining < 0 {
		remaining = 0
	}
	r := ok(KindOK, fmt.Sprintf("Extended `%s` to %s (%s left).",
		env.Name, utils.FormatUnix(newExpiry), utils.HumanizeSeconds(remaining)))
	r.EnvName = env.Name
	r.Holder = userID
	r.ExpiresAt = newExpiry
	return r, nil
}

// ForceRelease releases whoever currently holds the environment, with the
// same promotion logic as Release.  Permission is the caller's problem;
// the engine is permission-agnostic.
func (e *Engine) ForceRelease(ctx context.Context, rawName, actorID string) (Result, error) {
	env, res, err := e.resolveEnv(ctx, rawName)
	if env == nil {
		return res, err
	}
	now := e.now()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	active, err := e.holds.ActiveByEnvTx(ctx, tx, env.ID)
	if err != nil {
		return Result{}, err
	}
	if active == nil {
		return ok(KindAlreadyFree, fmt.Sprintf("`%s` is already free.", env.Name)), nil
	}

	promoted, _, err := e.releaseAndPromoteTx(ctx, tx, env, active, now, "assigned from queue (forced)")
	if err != nil {
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	committed = true
	e.logInfo(ctx, "force-release: env=%s actor=%s from=%s promoted=%v", env.Name, actorID, active.UserID, promoted != nil)
	e.afterPromotion(ctx, env, promoted)

	var r Result
	if promoted == nil {
		r = ok(KindOK, fmt.Sprintf("Force released `%s`. It is now free.", env.Name))
	} else {
		r = ok(KindOK, fmt.Sprintf("Force released `%s`. Assigned to <@%s>.", env.Name, promoted.UserID))
		r.Holder = promoted.UserID
		r.ExpiresAt = promoted.ExpiresAt
	}
	r.EnvName = env.Name
	return r, nil
}

// Transfer reassigns the active hold to another user in place; the expiry
// stays where it was.  Fails when the environment is free.
func (e *Engine) Transfer(ctx context.Context, rawName, actorID, toUserID string) (Result, error) {
	env, res, err := e.resolveEnv(ctx, rawName)
	if env == nil {
		return res, err
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	active, err := e.holds.ActiveByEnvTx(ctx, tx, env.ID)
	if err != nil {
		return Result{}, err
	}
	if active == nil {
		return fail(KindAlreadyFree, fmt.Sprintf("`%s` is not currently held.", env.Name)), nil
	}
	transferred, err := e.holds.TransferTx(ctx, tx, active.ID, toUserID)
	if err != nil {
		return Result{}, err
	}
	if !transferred {
		return fail(KindConflict, fmt.Sprintf("`%s` changed while transferring; try again.", env.Name)), nil
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	committed = true

	e.logInfo(ctx, "transfer: env=%s actor=%s to=%s", env.Name, actorID, toUserID)
	e.announce(ctx, env, fmt.Sprintf("`%s` transferred to <@%s> until %s.",
		env.Name, toUserID, utils.FormatUnix(active.ExpiresAt)))
	r := ok(KindOK, fmt.Sprintf("Transferred `%s` to <@%s>.", env.Name, toUserID))
	r.EnvName = env.Name
	r.Holder = toUserID
	r.ExpiresAt = active.ExpiresAt
	return r, nil
}

// Info renders the state of one environment: policy, current holder and a
// queue preview.  Pure read; no locks.
func (e *Engine) Info(ctx context.Context, rawName, userID string) (Result, error) {
	env, res, err := e.resolveEnv(ctx, rawName)
	if env == nil {
		return res, err
	}
	now := e.now()

	actives, err := e.holds.ActiveByEnvIDs(ctx, []uint64{env.ID})
	if err != nil {
		return Result{}, err
	}
	preview, err := e.queue.PreviewByEnvIDs(ctx, []uint64{env.ID}, 5)
	if err != nil {
		return Result{}, err
	}

	maxTTL := "—"
	if env.MaxTTLSeconds != nil {
		maxTTL = utils.HumanizeSeconds(*env.MaxTTLSeconds)
	}
	parts := []string{
		fmt.Sprintf("*Environment* `%s`", env.Name),
		fmt.Sprintf("• Default TTL: %s", utils.HumanizeSeconds(env.DefaultTTLSeconds)),
		fmt.Sprintf("• Max TTL: %s", maxTTL),
	}
	r := ok(KindOK, "")
	r.EnvName = env.Name
	if active, held := actives[env.ID]; held {
		parts = append(parts, fmt.Sprintf("• Holder: <@%s> until %s (%s left)",
			active.UserID, utils.FormatUnix(active.ExpiresAt), utils.HumanizeSeconds(active.Remaining(now))))
		r.Holder = active.UserID
		r.ExpiresAt = active.ExpiresAt
	} else {
		parts = append(parts, "• Holder: — (free)")
	}
	users := preview[env.ID]
	qLine := fmt.Sprintf("• Queue: %d", len(users))
	if len(users) > 0 {
		mentions := make([]string, len(users))
		for i, u := range users {
			mentions[i] = "<@" + u + ">"
		}
		ellipsis := ""
		if len(users) >= 5 {
			ellipsis = "…"
		}
		qLine += fmt.Sprintf(" (%s%s)", strings.Join(mentions, ", "), ellipsis)
	}
	parts = append(parts, qLine)
	r.Message = strings.Join(parts, "\n")
	return r, nil
}

// ListFilter selects which environments the list operation renders.
type ListFilter string

const (
	FilterAll    ListFilter = "all"
	FilterActive ListFilter = "active"
	FilterFree   ListFilter = "free"
	FilterMine   ListFilter = "mine"
)

// List renders all candidate environments under a filter.  Active holds,
// queue lengths and queue previews are batch-fetched in a constant number
// of queries so latency does not grow with the environment count.
func (e *Engine) List(ctx context.Context, userID string, filter ListFilter) (Result, error) {
	envs, err := e.envs.ListActive(ctx)
	if err != nil {
		return Result{}, err
	}
	now := e.now()

	ids := make([]uint64, len(envs))
	for i, env := range envs {
		ids[i] = env.ID
	}
	actives, err := e.holds.ActiveByEnvIDs(ctx, ids)
	if err != nil {
		return Result{}, err
	}
	counts, err := e.queue.CountsByEnvIDs(ctx, ids)
	if err != nil {
		return Result{}, err
	}
	previews, err := e.queue.PreviewByEnvIDs(ctx, ids, 3)
	if err != nil {
		return Result{}, err
	}
	var mine map[uint64]struct{}
	if filter == FilterMine {
		mine, err = e.queue.EnvIDsQueuedForUser(ctx, userID)
		if err != nil {
			return Result{}, err
		}
	}

	var lines []string
	for _, env := range envs {
		active, held := actives[env.ID]
		switch filter {
		case FilterMine:
			_, queued := mine[env.ID]
			if !(held && active.UserID == userID) && !queued {
				continue
			}
		case FilterActive:
			if !held {
				continue
			}
		case FilterFree:
			if held {
				continue
			}
		}

		suffix := queueSuffix(previews[env.ID], counts[env.ID])
		if held {
			lines = append(lines, fmt.Sprintf("• `%s` — *held by* <@%s> until %s (%s left).%s",
				env.Name, active.UserID, utils.FormatUnix(active.ExpiresAt),
				utils.HumanizeSeconds(active.Remaining(now)), suffix))
		} else {
			lines = append(lines, fmt.Sprintf("• `%s` — *free*. Default TTL: %s.%s",
				env.Name, utils.HumanizeSeconds(env.DefaultTTLSeconds), suffix))
		}
	}

	if len(lines) == 0 {
		if filter == FilterMine {
			return ok(KindOK, "You have no active holds and are not in any queues."), nil
		}
		return ok(KindOK, "No environments found."), nil
	}
	header := fmt.Sprintf("*Environments (%s)*", filter)
	return ok(KindOK, header+"\n\n"+strings.Join(lines, "\n")), nil
}

func queueSuffix(preview []string, count int64) string {
	if count == 0 {
		return ""
	}
	mentions := make([]string, len(preview))
	for i, u := range preview {
		mentions[i] = "<@" + u + ">"
	}
	ellipsis := ""
	if count > int64(len(preview)) {
		ellipsis = "…"
	}
	return fmt.Sprintf(" Queue: %s%s", strings.Join(mentions, ", "), ellipsis)
}

// resolveEnv normalizes the name and loads the environment.  On any
// domain-level failure it returns a nil env and the Result to hand back.
func (e *Engine) resolveEnv(ctx context.Context, rawName string) (*model.Environment, Result, error) {
	name, err := utils.NormalizeEnvName(rawName)
	if err != nil {
		return nil, fail(KindEnvNotFound, err.Error()), nil
	}
	env, err := e.envs.GetByName(ctx, name)
	if errors.Is(err, repository.ErrEnvNotFound) {
		return nil, fail(KindEnvNotFound, fmt.Sprintf(
			"Environment not found. Ask an admin to add it: `add %s`", name)), nil
	}
	if err != nil {
		return nil, Result{}, err
	}
	return env, Result{}, nil
}

// announce publishes a channel announcement when the global and per-env
// flags are on and a channel is bound.  Failures are logged, never
// surfaced: announcements must not fail the operation that caused them.
func (e *Engine) announce(ctx context.Context, env *model.Environment, text string) {
	global, err := e.settings.AnnounceGlobalEnabled(ctx)
	if err != nil {
		log.Printf("announce: settings read failed: %v", err)
		return
	}
	if !global || !env.AnnounceEnabled || env.ChannelID == "" {
		return
	}
	_ = e.publisher.Publish(ctx, notify.Event{
		Recipient:   notify.RecipientChannel,
		RecipientID: env.ChannelID,
		Text:        text,
		EmittedAt:   e.now(),
	})
}

// dm publishes a direct message when DMs are globally enabled.
func (e *Engine) dm(ctx context.Context, userID, text string) {
	enabled, err := e.settings.DMEnabled(ctx)
	if err != nil {
		log.Printf("dm: settings read failed: %v", err)
		return
	}
	if !enabled {
		return
	}
	_ = e.publisher.Publish(ctx, notify.Event{
		Recipient:   notify.RecipientUser,
		RecipientID: userID,
		Text:        text,
		EmittedAt:   e.now(),
	})
}

// logInfo writes an info-level line when the stored log level allows it.
// Warnings and errors go straight through log.Printf at their call sites.
func (e *Engine) logInfo(ctx context.Context, format string, args ...any) {
	level, err := e.settings.LogLevel(ctx)
	if err != nil || level != "info" {
		return
	}
	log.Printf("[INFO] "+format, args...)
}
