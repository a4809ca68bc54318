package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	log "github.com/sirupsen/logrus"
)

// Line pushes notifications as text messages to a single LINE user or group.
type Line struct {
	To string

	bot *messaging_api.MessagingApiAPI
}

func NewLine(channelToken, to string, options ...messaging_api.MessagingApiAPIOption) (*Line, error) {
	if channelToken == "" || to == "" {
		return nil, errors.New("LINE channel access token and target id are required")
	}
	bot, err := messaging_api.NewMessagingApiAPI(channelToken, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LINE client: %w", err)
	}
	log.Infof("LINE notifications enabled")
	return &Line{
		To:  to,
		bot: bot,
	}, nil
}

func (l *Line) Notify(ctx context.Context, n *Notification) error {
	_, err := l.bot.WithContext(ctx).PushMessage(&messaging_api.PushMessageRequest{
		To: l.To,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: n.Text()},
		},
	}, "")
	if err != nil {
		return fmt.Errorf("LINE push failed: %w", err)
	}
	return nil
}
