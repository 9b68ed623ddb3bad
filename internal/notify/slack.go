package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// severityColors map event severities to Slack attachment sidebar colors.
var severityColors = map[string]string{
	"info":    "#439fe0",
	"warning": "#f2c744",
	"error":   "#d00000",
	"success": "#36a64f",
}

// SlackNotifier posts events to one Slack channel.
type SlackNotifier struct {
	api     *slack.Client
	channel string
}

// NewSlackNotifier creates a Slack notifier.
func NewSlackNotifier(token, channel string) (*SlackNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("notify: slack token is required")
	}
	if channel == "" {
		return nil, fmt.Errorf("notify: slack channel is required")
	}
	return &SlackNotifier{api: slack.New(token), channel: channel}, nil
}

// Notify posts the event as an attachment with a severity color.
func (s *SlackNotifier) Notify(ctx context.Context, ev Event) error {
	color := severityColors[ev.Severity]
	if color == "" {
		color = severityColors["info"]
	}
	attachment := slack.Attachment{
		Color: color,
		Title: ev.Title,
		Text:  ev.Detail,
		Fields: []slack.AttachmentField{
			{Title: "Load", Value: ev.LoadID, Short: true},
			{Title: "Thread", Value: ev.ThreadID, Short: true},
		},
	}
	_, _, err := s.api.PostMessageContext(ctx, s.channel, slack.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("notify: slack post: %w", err)
	}
	return nil
}
