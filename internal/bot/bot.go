// Package bot wires the Discord client to the event handlers that drive
// member progression.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"go.uber.org/zap"

	botevents "github.com/rafaello-cc/levelbot/internal/bot/events"
	"github.com/rafaello-cc/levelbot/internal/database"
	"github.com/rafaello-cc/levelbot/internal/guildstate"
	"github.com/rafaello-cc/levelbot/internal/notify"
	"github.com/rafaello-cc/levelbot/internal/progression"
	"github.com/rafaello-cc/levelbot/internal/setup/config"
)

// Bot owns the Discord gateway connection and the event handlers feeding
// the progression store and guild state cache.
type Bot struct {
	client   bot.Client
	cache    *guildstate.Cache
	notifier *notify.Notifier
	logger   *zap.Logger
}

// New initializes a Bot instance by creating the Discord client, the
// notifier that sends through its REST client, and the event handlers.
// Member chunking is enabled so guild rosters are complete on ready.
func New(
	cfg *config.BotConfig,
	db database.Client,
	stateCache *guildstate.Cache,
	locks *progression.RecordLock,
	logger *zap.Logger,
) (*Bot, error) {
	gatewayOpts := []gateway.ConfigOpt{
		gateway.WithIntents(
			gateway.IntentGuilds,
			gateway.IntentGuildMembers,
			gateway.IntentGuildMessages,
			gateway.IntentMessageContent,
		),
	}
	if cfg.Discord.Status != "" {
		gatewayOpts = append(gatewayOpts, gateway.WithPresenceOpts(
			gateway.WithPlayingActivity(cfg.Discord.Status),
		))
	}

	client, err := disgo.New(cfg.Discord.Token,
		bot.WithGatewayConfigOpts(gatewayOpts...),
		bot.WithCacheConfigOpts(
			cache.WithCaches(cache.FlagGuilds|cache.FlagChannels|cache.FlagRoles|cache.FlagMembers),
		),
		bot.WithMemberChunkingFilter(bot.MemberChunkingFilterAll),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord client: %w", err)
	}

	requestTimeout := time.Duration(cfg.RequestTimeout) * time.Millisecond
	notifier := notify.New(client.Rest(), db.Model().GuildConfig(), requestTimeout, logger)

	activityHandler := botevents.NewActivityHandler(
		db.Model().Progression(), notifier, stateCache, locks, logger,
	)
	guildHandler := botevents.NewGuildEventHandler(stateCache, db.Model().Progression(), logger)
	commandHandler := botevents.NewCommandHandler(
		db.Model().Progression(), db.Model().GuildConfig(), stateCache, logger,
	)

	client.AddEventListeners(&events.ListenerAdapter{
		OnMessageCreate:                 activityHandler.OnMessageCreate,
		OnGuildMemberJoin:               activityHandler.OnGuildMemberJoin,
		OnGuildMemberLeave:              activityHandler.OnGuildMemberLeave,
		OnGuildReady:                    guildHandler.OnGuildReady,
		OnGuildsReady:                   guildHandler.OnGuildsReady,
		OnGuildJoin:                     guildHandler.OnGuildJoin,
		OnGuildLeave:                    guildHandler.OnGuildLeave,
		OnApplicationCommandInteraction: commandHandler.OnApplicationCommandInteraction,
		OnComponentInteraction:          commandHandler.OnComponentInteraction,
	})

	return &Bot{
		client:   client,
		cache:    stateCache,
		notifier: notifier,
		logger:   logger.Named("bot"),
	}, nil
}

// Client returns the underlying Discord client.
func (b *Bot) Client() bot.Client {
	return b.client
}

// Notifier returns the notifier bound to this client's REST transport.
func (b *Bot) Notifier() *notify.Notifier {
	return b.notifier
}

// Start registers the slash commands globally and opens the gateway
// connection to begin receiving events.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Registering commands")

	_, err := b.client.Rest().SetGlobalCommands(b.client.ApplicationID(), botevents.Commands())
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.logger.Info("Starting bot")

	if err := b.client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	return nil
}

// Close gracefully shuts down the Discord gateway connection.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")
	b.client.Close(ctx)
}
