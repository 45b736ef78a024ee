package telegram

import "gopkg.in/telebot.v3"

// Client sends operator messages (sweep reports, command replies) to a
// Telegram chat.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}
