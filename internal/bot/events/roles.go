package events

import (
	"context"
	"fmt"
	"strconv"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/rafaello-cc/levelbot/internal/database/types"
	"go.uber.org/zap"
)

const (
	RoleMenuCommandName = "rolemenu"

	roleSelectCustomID = "selectable_roles"
)

// ConfigStore provides the per-guild configuration the role menu needs.
type ConfigStore interface {
	Get(ctx context.Context, guildID uint64) (*types.GuildConfig, error)
}

// handleRoleMenu posts the self-assign role select menu into the guild's
// configured role select channel.
func (h *CommandHandler) handleRoleMenu(event *events.ApplicationCommandInteractionCreate) error {
	if event.Member() == nil || !event.Member().Permissions.Has(discord.PermissionManageGuild) {
		return event.CreateMessage(discord.NewMessageCreateBuilder().
			SetContent("You need the Manage Server permission to post the role menu.").
			SetEphemeral(true).
			Build())
	}

	guildID := uint64(*event.GuildID())

	config, err := h.configs.Get(context.Background(), guildID)
	if err != nil {
		return fmt.Errorf("failed to load guild config: %w", err)
	}

	selectable := config.SelectableRoles()
	if config.RoleSelectChannelID == 0 || len(selectable) == 0 {
		return event.CreateMessage(discord.NewMessageCreateBuilder().
			SetContent("Configure a role select channel and selectable roles first.").
			SetEphemeral(true).
			Build())
	}

	roleNames := make(map[uint64]string)
	for _, role := range h.cache.Roles(guildID) {
		roleNames[role.ID] = role.Name
	}

	options := make([]discord.StringSelectMenuOption, 0, len(selectable))

	for _, roleID := range selectable {
		name, ok := roleNames[roleID]
		if !ok {
			continue
		}

		options = append(options, discord.NewStringSelectMenuOption(name, strconv.FormatUint(roleID, 10)))
	}

	if len(options) == 0 {
		return event.CreateMessage(discord.NewMessageCreateBuilder().
			SetContent("None of the configured roles exist anymore.").
			SetEphemeral(true).
			Build())
	}

	menu := discord.NewStringSelectMenu(roleSelectCustomID, "Choose your roles", options...).
		WithMinValues(0).
		WithMaxValues(len(options))

	_, err = event.Client().Rest().CreateMessage(
		snowflake.ID(config.RoleSelectChannelID),
		discord.NewMessageCreateBuilder().
			SetContent("Pick the roles you want below.").
			AddActionRow(menu).
			Build(),
	)
	if err != nil {
		return fmt.Errorf("failed to post role menu: %w", err)
	}

	return event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent("Role menu posted.").
		SetEphemeral(true).
		Build())
}

// OnComponentInteraction applies role menu selections: selected roles from
// the configured set are granted, deselected ones are removed. Roles outside
// the configured set are never touched.
func (h *CommandHandler) OnComponentInteraction(event *events.ComponentInteractionCreate) {
	if event.GuildID() == nil || event.Member() == nil {
		return
	}

	data, ok := event.Data.(discord.StringSelectMenuInteractionData)
	if !ok || data.CustomID() != roleSelectCustomID {
		return
	}

	guildID := uint64(*event.GuildID())

	config, err := h.configs.Get(context.Background(), guildID)
	if err != nil {
		h.logger.Error("Failed to load guild config for role select",
			zap.Uint64("guildID", guildID),
			zap.Error(err))

		return
	}

	selected := make(map[uint64]struct{}, len(data.Values))

	for _, value := range data.Values {
		roleID, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			continue
		}

		selected[roleID] = struct{}{}
	}

	current := make(map[uint64]struct{}, len(event.Member().RoleIDs))
	for _, roleID := range event.Member().RoleIDs {
		current[uint64(roleID)] = struct{}{}
	}

	userID := event.User().ID
	failed := false

	for _, roleID := range config.SelectableRoles() {
		_, wants := selected[roleID]
		_, has := current[roleID]

		var err error

		switch {
		case wants && !has:
			err = event.Client().Rest().AddMemberRole(*event.GuildID(), userID, snowflake.ID(roleID))
		case !wants && has:
			err = event.Client().Rest().RemoveMemberRole(*event.GuildID(), userID, snowflake.ID(roleID))
		}

		if err != nil {
			failed = true

			h.logger.Warn("Failed to apply role selection",
				zap.Uint64("guildID", guildID),
				zap.Uint64("roleID", roleID),
				zap.Error(err))
		}
	}

	content := "Your roles have been updated."
	if failed {
		content = "Some roles could not be updated. Check the bot's role permissions."
	}

	if err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(content).
		SetEphemeral(true).
		Build()); err != nil {
		h.logger.Error("Failed to acknowledge role selection",
			zap.Uint64("guildID", guildID),
			zap.Error(err))
	}
}
