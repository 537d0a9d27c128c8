package notifications

import (
	"context"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

// Messenger is the outbound messaging boundary. It is constructed and
// injected explicitly so the dispatcher can run against a fake in tests
// instead of a process-wide Discord client.
type Messenger interface {
	SendChannelMessage(ctx context.Context, channelID snowflake.ID, message discord.MessageCreate) error
	// MemberDisplayName returns the member's current display name: the guild
	// nickname when set, the account username otherwise.
	MemberDisplayName(ctx context.Context, guildID, userID snowflake.ID) (string, error)
	SetMemberNick(ctx context.Context, guildID, userID snowflake.ID, nick string) error
}

type discordMessenger struct {
	client bot.Client
}

func NewDiscordMessenger(client bot.Client) Messenger {
	return &discordMessenger{client: client}
}

func (m *discordMessenger) SendChannelMessage(ctx context.Context, channelID snowflake.ID, message discord.MessageCreate) error {
	_, err := m.client.Rest().CreateMessage(channelID, message, rest.WithCtx(ctx))
	return err
}

func (m *discordMessenger) MemberDisplayName(ctx context.Context, guildID, userID snowflake.ID) (string, error) {
	member, err := m.client.Rest().GetMember(guildID, userID, rest.WithCtx(ctx))
	if err != nil {
		return "", err
	}
	if member.Nick != nil && *member.Nick != "" {
		return *member.Nick, nil
	}
	return member.User.Username, nil
}

func (m *discordMessenger) SetMemberNick(ctx context.Context, guildID, userID snowflake.ID, nick string) error {
	_, err := m.client.Rest().UpdateMember(guildID, userID, discord.MemberUpdate{
		Nick: &nick,
	}, rest.WithCtx(ctx))
	return err
}
