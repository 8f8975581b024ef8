package telegram

import "gopkg.in/telebot.v3"

// Client sends text to a Telegram chat. Pass summaries and alerts go through it.
type Client interface {
	SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error
}
