package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"dibs/internal/model"
	"dibs/internal/notify"
	"dibs/internal/repository"
	"dibs/internal/utils"
)

// Sweeper drives the time-based transitions: expiry reminders, hold
// expiry with queue promotion, and retention purging.  Each run is
// idempotent; the reminded_at and released_at guards make a crashed or
// doubled tick harmless.
type Sweeper struct {
	db        *sql.DB
	envs      *repository.EnvironmentRepo
	holds     *repository.HoldRepo
	queue     *repository.QueueRepo
	settings  *repository.SettingsRepo
	publisher notify.Publisher
	now       Clock
}

// NewSweeper constructs the sweeper with the same collaborators as the
// engine.
func NewSweeper(db *sql.DB, envs *repository.EnvironmentRepo, holds *repository.HoldRepo,
	queue *repository.QueueRepo, settings *repository.SettingsRepo,
	publisher notify.Publisher, now Clock) *Sweeper {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &Sweeper{db: db, envs: envs, holds: holds, queue: queue,
		settings: settings, publisher: publisher, now: now}
}

// Run executes one sweep tick.  Reminders go first so a hold inside the
// reminder window is warned before the expiry pass can take it.  Errors
// in one pass do not stop the others.
func (s *Sweeper) Run(ctx context.Context) {
	if err := s.remindPass(ctx); err != nil {
		log.Printf("sweep: reminder pass failed: %v", err)
	}
	if err := s.expirePass(ctx); err != nil {
		log.Printf("sweep: expiry pass failed: %v", err)
	}
	if err := s.retentionPass(ctx); err != nil {
		log.Printf("sweep: retention pass failed: %v", err)
	}
}

// remindPass DMs holders whose deadline falls inside the reminder lead
// window.  Short holds below the configured minimum TTL are skipped so a
// 10-minute claim is not nagged moments after it starts.  Each hold is
// reminded at most once: reminded_at is marked before publishing, and the
// mark is guarded so a concurrent tick cannot double-send.
func (s *Sweeper) remindPass(ctx context.Context) error {
	enabled, err := s.settings.DMReminderEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		return nil
	}
	now := s.now()
	lead, err := s.settings.ReminderLeadSeconds(ctx)
	if err != nil {
		return err
	}
	minTTL, err := s.settings.ReminderMinTTLSeconds(ctx)
	if err != nil {
		return err
	}
	extend, err := s.settings.DefaultExtendSeconds(ctx)
	if err != nil {
		return err
	}

	candidates, err := s.holds.ReminderCandidates(ctx, now, lead, minTTL)
	if err != nil {
		return err
	}
	for _, c := range candidates {
		marked, err := s.holds.MarkReminded(ctx, c.ID, now)
		if err != nil {
			log.Printf("sweep: mark reminded failed hold=%d: %v", c.ID, err)
			continue
		}
		if !marked {
			continue
		}
		remaining := c.Remaining(now)
		_ = s.publisher.Publish(ctx, notify.Event{
			Recipient:   notify.RecipientUser,
			RecipientID: c.UserID,
			Text: fmt.Sprintf("Your hold on `%s` expires in %s (at %s).",
				c.EnvName, utils.HumanizeSeconds(remaining), utils.FormatUnix(c.ExpiresAt)),
			Actions: []notify.Action{
				{ID: "extend_default", Label: "Extend " + utils.HumanizeSeconds(extend), EnvName: c.EnvName, Style: "primary"},
				{ID: "release_now", Label: "Release now", EnvName: c.EnvName, Style: "danger"},
			},
			EmittedAt: now,
		})
	}
	return nil
}

// expirePass releases every hold whose deadline has passed and promotes
// each environment's queue head.  Each hold gets its own transaction so
// one failure cannot wedge the rest of the batch.
func (s *Sweeper) expirePass(ctx context.Context) error {
	now := s.now()
	expired, err := s.holds.Expired(ctx, now)
	if err != nil {
		return err
	}
	for _, h := range expired {
		if err := s.expireOne(ctx, h, now); err != nil {
			log.Printf("sweep: expire failed env=%s hold=%d: %v", h.EnvName, h.ID, err)
		}
	}
	return nil
}

func (s *Sweeper) expireOne(ctx context.Context, h repository.ExpiredHold, now int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	released, err := s.holds.ReleaseTx(ctx, tx, h.ID, now)
	if err != nil {
		return err
	}
	if !released {
		// Someone released or force-released it between the scan and now.
		return tx.Commit()
	}

	var promoted *model.Hold
	head, err := s.queue.HeadTx(ctx, tx, h.EnvID)
	if err != nil {
		return err
	}
	if head != nil {
		if err := s.queue.RemoveTx(ctx, tx, head); err != nil {
			return err
		}
		ttl := promotionTTL(head.RequestedTTLSeconds, h.DefaultTTLSeconds)
		promoted = &model.Hold{EnvID: h.EnvID, UserID: head.UserID, StartedAt: now,
			ExpiresAt: now + ttl, Note: "assigned from queue (expiry)"}
		if err := s.holds.CreateTx(ctx, tx, promoted); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	log.Printf("sweep: expired env=%s user=%s promoted=%v", h.EnvName, h.UserID, promoted != nil)

	s.notifyExpired(ctx, h, promoted, now)
	return nil
}

// notifyExpired sends the post-commit messages for one expiry: a DM to
// the expired holder, a DM to the promoted user, and the channel
// announcement when enabled.
func (s *Sweeper) notifyExpired(ctx context.Context, h repository.ExpiredHold, promoted *model.Hold, now int64) {
	if enabled, err := s.settings.DMExpiryEnabled(ctx); err == nil && enabled {
		_ = s.publisher.Publish(ctx, notify.Event{
			Recipient:   notify.RecipientUser,
			RecipientID: h.UserID,
			Text:        fmt.Sprintf("Your hold on `%s` has expired and was released.", h.EnvName),
			EmittedAt:   now,
		})
	}
	if promoted != nil {
		if enabled, err := s.settings.DMEnabled(ctx); err == nil && enabled {
			ttl := promoted.ExpiresAt - promoted.StartedAt
			_ = s.publisher.Publish(ctx, notify.Event{
				Recipient:   notify.RecipientUser,
				RecipientID: promoted.UserID,
				Text: fmt.Sprintf("You now hold `%s` until %s (%s).",
					h.EnvName, utils.FormatUnix(promoted.ExpiresAt), utils.HumanizeSeconds(ttl)),
				EmittedAt: now,
			})
		}
	}
	s.announceExpiry(ctx, h, promoted)
}

func (s *Sweeper) announceExpiry(ctx context.Context, h repository.ExpiredHold, promoted *model.Hold) {
	global, err := s.settings.AnnounceGlobalEnabled(ctx)
	if err != nil || !global {
		return
	}
	env, err := s.envs.GetByName(ctx, h.EnvName)
	if err != nil || !env.AnnounceEnabled || env.ChannelID == "" {
		return
	}
	text := fmt.Sprintf("`%s` expired and is now free.", h.EnvName)
	if promoted != nil {
		text = fmt.Sprintf("`%s` expired and was assigned to <@%s> until %s.",
			h.EnvName, promoted.UserID, utils.FormatUnix(promoted.ExpiresAt))
	}
	_ = s.publisher.Publish(ctx, notify.Event{
		Recipient:   notify.RecipientChannel,
		RecipientID: env.ChannelID,
		Text:        text,
		EmittedAt:   s.now(),
	})
}

// retentionPass deletes released holds older than the configured
// retention window.  Disabled unless retention_days is set.
func (s *Sweeper) retentionPass(ctx context.Context) error {
	days, err := s.settings.RetentionDays(ctx)
	if err != nil {
		return err
	}
	if days == nil || *days <= 0 {
		return nil
	}
	cutoff := s.now() - *days*24*60*60
	purged, err := s.holds.PurgeReleasedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if purged > 0 {
		log.Printf("sweep: purged %d released holds older than %dd", purged, *days)
	}
	return nil
}
