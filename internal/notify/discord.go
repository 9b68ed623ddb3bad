package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// DiscordNotifier posts events to one Discord channel. Send-only: no
// gateway connection is opened, messages go over the REST API.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
}

// NewDiscordNotifier creates a Discord notifier.
func NewDiscordNotifier(token, channelID string) (*DiscordNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("notify: discord token is required")
	}
	if channelID == "" {
		return nil, fmt.Errorf("notify: discord channel_id is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("notify: discord session: %w", err)
	}
	return &DiscordNotifier{session: session, channelID: channelID}, nil
}

// Notify posts the event as plain text.
func (d *DiscordNotifier) Notify(_ context.Context, ev Event) error {
	if _, err := d.session.ChannelMessageSend(d.channelID, format(ev)); err != nil {
		return fmt.Errorf("notify: discord send: %w", err)
	}
	return nil
}
