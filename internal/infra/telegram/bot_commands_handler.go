package telegram

import (
	"context"
	"fmt"
	"strings"

	"academic_outreach/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// PassRunner starts passes on demand.
type PassRunner interface {
	RunOutreach(ctx context.Context) (*app.PassReport, error)
	RunReminders(ctx context.Context) (*app.PassReport, error)
}

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	adminTelegramID int64,
	runner PassRunner,
	baseLogger *logrus.Entry, // For contextual logging
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID == adminTelegramID {
			return c.Send(fmt.Sprintf("Hello %s! Outreach is running. Use /help for the list of commands.", c.Sender().FirstName))
		}
		logCtx.Info("User is unknown")
		return c.Send("This bot only serves its administrator.")
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		if senderID != adminTelegramID {
			return c.Send("No commands are available to you.")
		}

		var helpText strings.Builder
		helpText.WriteString("Admin commands:\n\n")
		helpText.WriteString("`/status [SubjectID]`\n - Ledger overview, or the chronology of one subject.\n\n")
		helpText.WriteString("`/mark <SubjectID> <status>`\n - Record a reply: positive, negative, out_of_office, follow_up_needed, do_not_contact.\n\n")
		helpText.WriteString("`/stage <SubjectID> <stage> [true|false]`\n - Set gathering, filtering, html, cv or email_sent.\n\n")
		helpText.WriteString("`/add_subject <Name> | <Organization> | <Email> [| <Webpage>]`\n - Register a new subject.\n\n")
		helpText.WriteString("`/correct <SubjectID> | <Organization> | <Email>`\n - Fix contact details.\n\n")
		helpText.WriteString("`/run <outreach|reminders>`\n - Start a pass now.\n\n")
		helpText.WriteString("`/help`\n - Show this message.")
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	})

	b.Handle("/run", func(c telebot.Context) error {
		handlerLogger := commandLogger(baseLogger, "/run", c)
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgUnauthorized)
		}

		args := c.Args()
		if len(args) != 1 {
			return c.Send("Invalid format. Use: /run <outreach|reminders>")
		}
		var run func(context.Context) (*app.PassReport, error)
		switch strings.ToLower(args[0]) {
		case "outreach":
			run = runner.RunOutreach
		case "reminders", "reminder":
			run = runner.RunReminders
		default:
			return c.Send("Unknown pass. Use outreach or reminders.")
		}

		if err := c.Send("Pass started."); err != nil {
			return err
		}
		// The runner reports the summary itself.
		go func() {
			if _, err := run(ctx); err != nil {
				handlerLogger.WithError(err).Error("Manual pass failed")
			}
		}()
		return nil
	})
}
