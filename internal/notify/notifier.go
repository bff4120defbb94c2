// Package notify sends level-up announcements, welcome messages, and role
// grants through the Discord REST API. Delivery failures are reported as
// ErrNotificationDelivery so callers can log them without failing the
// progression update that triggered them.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/rafaello-cc/levelbot/internal/bot/cards"
	"github.com/rafaello-cc/levelbot/internal/database/types"
	"go.uber.org/zap"

	// Avatar decoders. Discord serves static avatars as PNG and animated
	// previews as WebP.
	_ "golang.org/x/image/webp"
	_ "image/jpeg"
	_ "image/png"
)

// ErrNotificationDelivery wraps Discord API failures while delivering a
// notification. These are never fatal to the caller.
var ErrNotificationDelivery = errors.New("notification delivery failed")

// ConfigStore provides the per-guild notification configuration.
type ConfigStore interface {
	Get(ctx context.Context, guildID uint64) (*types.GuildConfig, error)
}

// Notifier delivers guild-facing messages for progression events.
type Notifier struct {
	rest       rest.Rest
	configs    ConfigStore
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// New creates a notifier that sends through the given REST client. Every
// delivery is bounded by the timeout so a slow API call never stalls event
// handling or a job pass.
func New(restClient rest.Rest, configs ConfigStore, timeout time.Duration, logger *zap.Logger) *Notifier {
	return &Notifier{
		rest:       restClient,
		configs:    configs,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		logger:     logger.Named("notify"),
	}
}

// NotifyLevelUp announces a member's new level in the guild's configured
// level channel. Guilds without a level channel get no announcement.
func (n *Notifier) NotifyLevelUp(ctx context.Context, guildID, memberID uint64, level int) error {
	config, err := n.configs.Get(ctx, guildID)
	if err != nil {
		return fmt.Errorf("%w: failed to load guild config: %w", ErrNotificationDelivery, err)
	}

	if config.LevelChannelID == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	message := discord.NewMessageCreateBuilder().
		SetContentf("🎉 Congratulations <@%d>, you reached level **%d**!", memberID, level).
		SetAllowedMentions(&discord.AllowedMentions{Users: []snowflake.ID{snowflake.ID(memberID)}}).
		Build()

	_, err = n.rest.CreateMessage(snowflake.ID(config.LevelChannelID), message, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("%w: failed to send level-up message: %w", ErrNotificationDelivery, err)
	}

	n.logger.Debug("Sent level-up notification",
		zap.Uint64("guildID", guildID),
		zap.Uint64("memberID", memberID),
		zap.Int("level", level))

	return nil
}

// SendWelcome posts a welcome card for a new member in the guild's welcome
// channel. Guilds without a welcome channel get no message. A failed avatar
// fetch degrades the card to text only.
func (n *Notifier) SendWelcome(
	ctx context.Context, guildID, memberID uint64, memberName, avatarURL string, memberNumber int,
) error {
	config, err := n.configs.Get(ctx, guildID)
	if err != nil {
		return fmt.Errorf("%w: failed to load guild config: %w", ErrNotificationDelivery, err)
	}

	if config.WelcomeChannelID == 0 {
		return nil
	}

	card, err := cards.Welcome(n.fetchAvatar(ctx, avatarURL), memberName, memberNumber)
	if err != nil {
		return fmt.Errorf("%w: failed to render welcome card: %w", ErrNotificationDelivery, err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	message := discord.NewMessageCreateBuilder().
		SetContentf("Welcome to the server, <@%d>!", memberID).
		SetAllowedMentions(&discord.AllowedMentions{Users: []snowflake.ID{snowflake.ID(memberID)}}).
		AddFile("welcome.webp", "", bytes.NewReader(card)).
		Build()

	_, err = n.rest.CreateMessage(snowflake.ID(config.WelcomeChannelID), message, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("%w: failed to send welcome message: %w", ErrNotificationDelivery, err)
	}

	n.logger.Debug("Sent welcome message",
		zap.Uint64("guildID", guildID),
		zap.Uint64("memberID", memberID))

	return nil
}

// fetchAvatar downloads and decodes a member's avatar, returning nil when
// anything fails.
func (n *Notifier) fetchAvatar(ctx context.Context, avatarURL string) image.Image {
	if avatarURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, avatarURL, nil)
	if err != nil {
		return nil
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Warn("Failed to download avatar", zap.String("url", avatarURL), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		n.logger.Warn("Unexpected avatar response", zap.String("url", avatarURL), zap.Int("status", resp.StatusCode))
		return nil
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		n.logger.Warn("Failed to decode avatar", zap.String("url", avatarURL), zap.Error(err))
		return nil
	}

	return img
}

// GrantWelcomeRole assigns the guild's configured welcome role to a new
// member. Guilds without a welcome role are skipped.
func (n *Notifier) GrantWelcomeRole(ctx context.Context, guildID, memberID uint64) error {
	config, err := n.configs.Get(ctx, guildID)
	if err != nil {
		return fmt.Errorf("%w: failed to load guild config: %w", ErrNotificationDelivery, err)
	}

	if config.WelcomeRoleID == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	err = n.rest.AddMemberRole(
		snowflake.ID(guildID), snowflake.ID(memberID), snowflake.ID(config.WelcomeRoleID), rest.WithCtx(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to grant welcome role: %w", ErrNotificationDelivery, err)
	}

	return nil
}
