// Package events contains the gateway event handlers that feed member
// activity into the progression store and keep the guild state cache
// current.
package events

import (
	"context"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/rafaello-cc/levelbot/internal/database/types"
	"github.com/rafaello-cc/levelbot/internal/guildstate"
	"github.com/rafaello-cc/levelbot/internal/progression"
	"go.uber.org/zap"
)

// Store is the progression storage surface the activity handlers need.
type Store interface {
	GetOrCreate(ctx context.Context, guildID, memberID uint64) (*types.MemberProgression, error)
	Update(ctx context.Context, guildID, memberID uint64, fields types.ProgressionFields) error
	RaiseLevelIfHigher(ctx context.Context, guildID, memberID uint64, level int) error
}

// Notifier delivers the member-facing side effects of activity events.
type Notifier interface {
	NotifyLevelUp(ctx context.Context, guildID, memberID uint64, level int) error
	SendWelcome(ctx context.Context, guildID, memberID uint64, memberName, avatarURL string, memberNumber int) error
	GrantWelcomeRole(ctx context.Context, guildID, memberID uint64) error
}

// ActivityHandler turns message and membership events into progression
// updates.
type ActivityHandler struct {
	store    Store
	notifier Notifier
	cache    *guildstate.Cache
	locks    *progression.RecordLock
	logger   *zap.Logger
}

// NewActivityHandler creates a new activity event handler.
func NewActivityHandler(
	store Store,
	notifier Notifier,
	cache *guildstate.Cache,
	locks *progression.RecordLock,
	logger *zap.Logger,
) *ActivityHandler {
	return &ActivityHandler{
		store:    store,
		notifier: notifier,
		cache:    cache,
		locks:    locks,
		logger:   logger.Named("activity_events"),
	}
}

// OnMessageCreate credits one message of activity to its author. Bots,
// webhooks, and deleted placeholder accounts earn nothing.
func (h *ActivityHandler) OnMessageCreate(event *events.MessageCreate) {
	if event.GuildID == nil {
		return
	}

	h.HandleMessage(context.Background(), uint64(*event.GuildID), event.Message.Author)
}

// HandleMessage credits one message from the given author, applying the
// skip rules for bots, system accounts, and deleted placeholders.
func (h *ActivityHandler) HandleMessage(ctx context.Context, guildID uint64, author discord.User) {
	if author.Bot || author.System || guildstate.IsDeletedAccountName(author.Username) {
		return
	}

	memberID := uint64(author.ID)

	if err := h.RecordMessage(ctx, guildID, memberID); err != nil {
		h.logger.Error("Failed to record message activity",
			zap.Uint64("guildID", guildID),
			zap.Uint64("memberID", memberID),
			zap.Error(err))
	}
}

// RecordMessage applies one message of activity to a member's record. The
// record lock serializes the read-modify-write so two concurrent messages
// both count.
func (h *ActivityHandler) RecordMessage(ctx context.Context, guildID, memberID uint64) error {
	unlock := h.locks.Lock(guildID, memberID)
	defer unlock()

	record, err := h.store.GetOrCreate(ctx, guildID, memberID)
	if err != nil {
		return err
	}

	newCount := record.MessageCount + 1
	newXP := record.XP

	// Message XP only accrues after graduation; before that, messages
	// advance the member through the count thresholds alone.
	if record.Level >= progression.GraduationLevel {
		newXP += progression.MessageXP
	}

	err = h.store.Update(ctx, guildID, memberID, types.ProgressionFields{
		MessageCount: &newCount,
		XP:           &newXP,
	})
	if err != nil {
		return err
	}

	computed := progression.Calculate(newCount, newXP, record.DaysOnServer)
	if computed <= record.Level {
		return nil
	}

	if err := h.store.RaiseLevelIfHigher(ctx, guildID, memberID, computed); err != nil {
		return err
	}

	if computed > progression.GraduationLevel {
		if err := h.notifier.NotifyLevelUp(ctx, guildID, memberID, computed); err != nil {
			h.logger.Warn("Failed to deliver level-up notification",
				zap.Uint64("guildID", guildID),
				zap.Uint64("memberID", memberID),
				zap.Error(err))
		}
	}

	return nil
}

// OnGuildMemberJoin ensures a new member has a progression record, adds
// them to the roster cache, and delivers the welcome side effects.
func (h *ActivityHandler) OnGuildMemberJoin(event *events.GuildMemberJoin) {
	h.HandleMemberJoin(context.Background(), uint64(event.GuildID), event.Member.User)
}

// HandleMemberJoin applies the join side effects for one user. Bots and
// deleted placeholder accounts are ignored.
func (h *ActivityHandler) HandleMemberJoin(ctx context.Context, guildID uint64, user discord.User) {
	if user.Bot || guildstate.IsDeletedAccountName(user.Username) {
		return
	}

	memberID := uint64(user.ID)

	unlock := h.locks.Lock(guildID, memberID)

	_, err := h.store.GetOrCreate(ctx, guildID, memberID)

	unlock()

	if err != nil {
		h.logger.Error("Failed to initialize progression record",
			zap.Uint64("guildID", guildID),
			zap.Uint64("memberID", memberID),
			zap.Error(err))

		return
	}

	h.cache.SetMember(guildID, memberID, guildstate.MemberInfo{
		Name:      user.Username,
		AvatarURL: user.EffectiveAvatarURL(),
	})

	memberNumber := len(h.cache.Members(guildID))

	err = h.notifier.SendWelcome(ctx, guildID, memberID, user.EffectiveName(), user.EffectiveAvatarURL(), memberNumber)
	if err != nil {
		h.logger.Warn("Failed to deliver welcome message",
			zap.Uint64("guildID", guildID),
			zap.Uint64("memberID", memberID),
			zap.Error(err))
	}

	if err := h.notifier.GrantWelcomeRole(ctx, guildID, memberID); err != nil {
		h.logger.Warn("Failed to grant welcome role",
			zap.Uint64("guildID", guildID),
			zap.Uint64("memberID", memberID),
			zap.Error(err))
	}
}

// OnGuildMemberLeave drops the member from the roster cache. The
// progression record is kept so activity survives a rejoin.
func (h *ActivityHandler) OnGuildMemberLeave(event *events.GuildMemberLeave) {
	h.cache.RemoveMember(uint64(event.GuildID), uint64(event.User.ID))
}
