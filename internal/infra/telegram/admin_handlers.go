package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"academic_outreach/internal/app"
	"academic_outreach/internal/domain/ledger"
	"academic_outreach/internal/domain/subject"
	idb "academic_outreach/internal/infra/database"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const msgUnauthorized = "Error: you are not allowed to run this command."

// RegisterAdminHandlers registers handlers for admin commands.
// It requires the bot instance, admin service, and the configured admin Telegram ID.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, adminService *app.AdminService, adminTelegramID int64, baseLogger *logrus.Entry) {
	b.Handle("/status", func(c telebot.Context) error {
		handlerLogger := commandLogger(baseLogger, "/status", c)
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgUnauthorized)
		}

		args := c.Args()
		if len(args) == 0 {
			overview, err := adminService.Overview(ctx, c.Sender().ID)
			if err != nil {
				handlerLogger.WithError(err).Error("Failed to build overview")
				return c.Send(fmt.Sprintf("Failed to build overview: %s", err.Error()))
			}
			return c.Send(overview.Format())
		}

		subjectID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Error: subject ID must be a number.")
		}
		status, err := adminService.Status(ctx, c.Sender().ID, subjectID)
		if err != nil {
			return c.Send(replyForError(handlerLogger, err, subjectID))
		}
		return c.Send(status.Format(), &telebot.SendOptions{ReplyMarkup: responseKeyboard(subjectID)})
	})

	b.Handle("/mark", func(c telebot.Context) error {
		handlerLogger := commandLogger(baseLogger, "/mark", c)
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgUnauthorized)
		}

		args := c.Args()
		// Expected format: /mark <SubjectID> <status>
		if len(args) != 2 {
			return c.Send("Invalid format. Use: /mark <SubjectID> <status>")
		}
		subjectID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Error: subject ID must be a number.")
		}
		status, err := ledger.ParseResponseStatus(args[1])
		if err != nil {
			return c.Send(fmt.Sprintf("Error: %s", err.Error()))
		}
		handlerLogger = handlerLogger.WithFields(logrus.Fields{"subject_id": subjectID, "status": status.String()})

		if err := adminService.MarkResponse(ctx, c.Sender().ID, subjectID, status); err != nil {
			return c.Send(replyForError(handlerLogger, err, subjectID))
		}
		handlerLogger.Info("Response status updated")
		return c.Send(fmt.Sprintf("Subject %d marked as %s.", subjectID, status))
	})

	b.Handle("/stage", func(c telebot.Context) error {
		handlerLogger := commandLogger(baseLogger, "/stage", c)
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgUnauthorized)
		}

		args := c.Args()
		// Expected format: /stage <SubjectID> <stage> [true|false]
		if len(args) < 2 || len(args) > 3 {
			return c.Send("Invalid format. Use: /stage <SubjectID> <stage> [true|false]")
		}
		subjectID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return c.Send("Error: subject ID must be a number.")
		}
		stage, err := ledger.ParseStage(args[1])
		if err != nil {
			return c.Send(fmt.Sprintf("Error: %s", err.Error()))
		}
		value := true
		if len(args) == 3 {
			if value, err = strconv.ParseBool(args[2]); err != nil {
				return c.Send("Error: value must be true or false.")
			}
		}

		if err := adminService.SetStage(ctx, c.Sender().ID, subjectID, stage, value); err != nil {
			return c.Send(replyForError(handlerLogger, err, subjectID))
		}
		handlerLogger.WithFields(logrus.Fields{"subject_id": subjectID, "stage": stage, "value": value}).Info("Stage updated")
		return c.Send(fmt.Sprintf("Subject %d: %s = %t.", subjectID, stage, value))
	})

	b.Handle("/add_subject", func(c telebot.Context) error {
		handlerLogger := commandLogger(baseLogger, "/add_subject", c)
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgUnauthorized)
		}

		// Expected format: /add_subject <Name> | <Organization> | <Email> [| <Webpage>]
		parts := splitPayload(c.Message().Payload)
		if len(parts) < 3 || len(parts) > 4 {
			return c.Send("Invalid format. Use: /add_subject <Name> | <Organization> | <Email> [| <Webpage>]")
		}
		subj := &subject.Subject{Name: parts[0], Organization: parts[1], Email: parts[2]}
		if len(parts) == 4 {
			subj.Webpage = parts[3]
		}

		created, err := adminService.AddSubject(ctx, c.Sender().ID, subj)
		if err != nil {
			return c.Send(replyForError(handlerLogger, err, 0))
		}
		handlerLogger.WithField("subject_id", created.ID).Info("Subject added successfully")
		return c.Send(fmt.Sprintf("Subject %s (ID: %d) added.", created.Name, created.ID))
	})

	b.Handle("/correct", func(c telebot.Context) error {
		handlerLogger := commandLogger(baseLogger, "/correct", c)
		if c.Sender().ID != adminTelegramID {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(msgUnauthorized)
		}

		// Expected format: /correct <SubjectID> | <Organization> | <Email>
		parts := splitPayload(c.Message().Payload)
		if len(parts) != 3 {
			return c.Send("Invalid format. Use: /correct <SubjectID> | <Organization> | <Email> (leave a field empty to keep it)")
		}
		subjectID, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return c.Send("Error: subject ID must be a number.")
		}

		updated, err := adminService.CorrectSubject(ctx, c.Sender().ID, subjectID, parts[1], parts[2])
		if err != nil {
			return c.Send(replyForError(handlerLogger, err, subjectID))
		}
		handlerLogger.WithField("subject_id", subjectID).Info("Subject corrected")
		return c.Send(fmt.Sprintf("Subject %d: %s, %s.", updated.ID, updated.Organization, updated.Email))
	})
}

func commandLogger(base *logrus.Entry, handler string, c telebot.Context) *logrus.Entry {
	l := base.WithFields(logrus.Fields{
		"handler":   handler,
		"sender_id": c.Sender().ID,
	})
	l.Info("Command received")
	return l
}

func splitPayload(payload string) []string {
	if strings.TrimSpace(payload) == "" {
		return nil
	}
	parts := strings.Split(payload, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// replyForError logs err and returns the text shown to the admin.
func replyForError(log *logrus.Entry, err error, subjectID int64) string {
	logWithError := log.WithError(err)
	switch {
	case errors.Is(err, app.ErrAdminNotAuthorized):
		logWithError.Warn("Admin not authorized (service level)")
		return msgUnauthorized
	case errors.Is(err, idb.ErrSubjectNotFound):
		logWithError.Warn("Subject not found")
		return fmt.Sprintf("Subject with ID %d not found.", subjectID)
	case errors.Is(err, app.ErrSubjectAlreadyExists):
		logWithError.Warn("Subject already exists")
		return "Error: a subject with this ID or email already exists."
	default:
		logWithError.Error("Command failed")
		return fmt.Sprintf("An error occurred: %s", err.Error())
	}
}
