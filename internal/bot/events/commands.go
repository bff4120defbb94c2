package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/rafaello-cc/levelbot/internal/database/types"
	"github.com/rafaello-cc/levelbot/internal/guildstate"
	"go.uber.org/zap"
)

const (
	RankCommandName        = "rank"
	LeaderboardCommandName = "leaderboard"

	leaderboardSize = 10

	embedColor = 0x5b65f2
)

// Commands returns the slash commands the bot registers per guild.
func Commands() []discord.ApplicationCommandCreate {
	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:        RankCommandName,
			Description: "Show your current level and progress",
		},
		discord.SlashCommandCreate{
			Name:        LeaderboardCommandName,
			Description: "Show the most active members of this server",
		},
		discord.SlashCommandCreate{
			Name:        RoleMenuCommandName,
			Description: "Post the self-assign role menu in the configured channel",
		},
	}
}

// CommandStore is the progression storage surface the commands need.
type CommandStore interface {
	GetOrCreate(ctx context.Context, guildID, memberID uint64) (*types.MemberProgression, error)
	Leaderboard(ctx context.Context, guildID uint64, sortBy string, limit, offset int) ([]*types.MemberProgression, error)
}

// CommandHandler answers the rank, leaderboard, and role menu slash
// commands.
type CommandHandler struct {
	store   CommandStore
	configs ConfigStore
	cache   *guildstate.Cache
	logger  *zap.Logger
}

// NewCommandHandler creates a new slash command handler.
func NewCommandHandler(
	store CommandStore, configs ConfigStore, cache *guildstate.Cache, logger *zap.Logger,
) *CommandHandler {
	return &CommandHandler{
		store:   store,
		configs: configs,
		cache:   cache,
		logger:  logger.Named("commands"),
	}
}

// OnApplicationCommandInteraction dispatches slash command interactions.
func (h *CommandHandler) OnApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	if event.GuildID() == nil {
		return
	}

	data := event.SlashCommandInteractionData()

	var err error

	switch data.CommandName() {
	case RankCommandName:
		err = h.handleRank(event)
	case LeaderboardCommandName:
		err = h.handleLeaderboard(event)
	case RoleMenuCommandName:
		err = h.handleRoleMenu(event)
	default:
		return
	}

	if err != nil {
		h.logger.Error("Failed to handle command",
			zap.String("command", data.CommandName()),
			zap.Error(err))
	}
}

func (h *CommandHandler) handleRank(event *events.ApplicationCommandInteractionCreate) error {
	guildID := uint64(*event.GuildID())
	memberID := uint64(event.User().ID)

	record, err := h.store.GetOrCreate(context.Background(), guildID, memberID)
	if err != nil {
		return fmt.Errorf("failed to load progression record: %w", err)
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("Your progression").
		AddField("Level", fmt.Sprintf("%d", record.Level), true).
		AddField("XP", fmt.Sprintf("%d", record.XP), true).
		AddField("Messages", fmt.Sprintf("%d", record.MessageCount), true).
		AddField("Days on server", fmt.Sprintf("%d", record.DaysOnServer), true).
		SetColor(embedColor).
		Build()

	return event.CreateMessage(discord.NewMessageCreateBuilder().
		SetEmbeds(embed).
		SetEphemeral(true).
		Build())
}

func (h *CommandHandler) handleLeaderboard(event *events.ApplicationCommandInteractionCreate) error {
	guildID := uint64(*event.GuildID())

	records, err := h.store.Leaderboard(context.Background(), guildID, "level", leaderboardSize, 0)
	if err != nil {
		return fmt.Errorf("failed to load leaderboard: %w", err)
	}

	var lines []string

	for i, record := range records {
		name := fmt.Sprintf("<@%d>", record.MemberID)
		if info, ok := h.cache.Member(guildID, record.MemberID); ok {
			if guildstate.IsDeletedAccountName(info.Name) {
				continue
			}

			name = info.Name
		}

		lines = append(lines, fmt.Sprintf("%d. **%s** - level %d (%d XP)", i+1, name, record.Level, record.XP))
	}

	if len(lines) == 0 {
		lines = append(lines, "No activity recorded yet.")
	}

	embed := discord.NewEmbedBuilder().
		SetTitle("Leaderboard").
		SetDescription(strings.Join(lines, "\n")).
		SetColor(embedColor).
		Build()

	return event.CreateMessage(discord.NewMessageCreateBuilder().
		SetEmbeds(embed).
		Build())
}
