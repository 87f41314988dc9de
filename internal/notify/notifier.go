// Package notify pushes operator notifications about suspension and recovery
// events to a Telegram admin channel. Notifications are best effort: a send
// failure is logged and dropped, never surfaced to the caller.
package notify

import (
	"fmt"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// Notifier sends messages to a fixed admin chat. The zero-value-like
// disabled notifier (missing token or chat id) swallows everything.
type Notifier struct {
	tb     *tele.Bot
	chatID int64
	logger *zap.Logger
}

// New builds a Telegram notifier. An empty token or zero chat id yields a
// disabled notifier and no error; an invalid token is an error.
func New(token string, chatID int64, logger *zap.Logger) (*Notifier, error) {
	n := &Notifier{chatID: chatID, logger: logger}
	if token == "" || chatID == 0 {
		return n, nil
	}

	tb, err := tele.NewBot(tele.Settings{
		Token: token,
		OnError: func(err error, c tele.Context) {
			logger.Error("telebot error", zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telebot: %w", err)
	}
	n.tb = tb
	return n, nil
}

// Notify sends text to the admin chat in the background.
func (n *Notifier) Notify(text string) {
	if n.tb == nil {
		return
	}
	go func() {
		chat := &tele.Chat{ID: n.chatID}
		if _, err := n.tb.Send(chat, text, &tele.SendOptions{
			DisableWebPagePreview: true,
		}); err != nil {
			n.logger.Warn("failed to send notification", zap.Error(err))
		}
	}()
}
