// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(b *telebot.Bot, adminTelegramID int64, baseLogger *logrus.Entry) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == adminTelegramID {
			return c.Send(fmt.Sprintf("Hello %s, the cafeteria console is ready. Use /help for the list of commands.", c.Sender().FirstName))
		}
		return c.Send("This bot is reserved for the cafeteria administrators.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID != adminTelegramID {
			return c.Send("No commands are available to you.")
		}
		return c.Send(adminHelp(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})
}

func adminHelp() string {
	var helpText strings.Builder
	helpText.WriteString("Administrator commands:\n\n")
	helpText.WriteString("`/menu <YYYY-MM-DD> dish | dish`\n - Publish the menu of a day. Dishes dropped from it are removed from user selections and the users are notified. Without dishes the menu is deleted.\n\n")
	helpText.WriteString("`/cascade <YYYY-MM-DD> dish | dish`\n - Re-run the removal of dishes from a day, e.g. after a failed cascade.\n\n")
	helpText.WriteString("`/reconcile [YYYY-MM-DD | <from|*> <to|*>]`\n - Strip every selected dish that is not on its menu. No arguments sweeps all dates.\n\n")
	helpText.WriteString("`/validate <userID> <YYYY-MM-DD>`\n - Check one selection against its menu.\n\n")
	helpText.WriteString("`/unread <userID>`\n - List the unread notifications of a user.\n\n")
	helpText.WriteString("`/help`\n - Show this message.")
	return helpText.String()
}
