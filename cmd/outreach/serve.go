package main

import (
	"context"
	"fmt"
	"time"

	"academic_outreach/internal/domain/telegram"
	"academic_outreach/internal/infra/config"
	"academic_outreach/internal/infra/logger"
	"academic_outreach/internal/infra/scheduler"
	itg "academic_outreach/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// passTimeout bounds a single scheduled pass, pauses included.
const passTimeout = 6 * time.Hour

func serve(ctx context.Context, cfg *config.AppConfig, w *wiring, baseLogger *logrus.Logger) error {
	mainLogger := logger.Component(baseLogger, "serve")

	var bot *telebot.Bot
	var notifier telegram.Client
	if cfg.TelegramToken != "" {
		telegramLogger := logger.Component(baseLogger, "telegram")
		pref := telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) { // Global error handler
				entry := telegramLogger.WithError(err)
				if c != nil && c.Sender() != nil && c.Chat() != nil {
					entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
				}
				entry.Error("Telegram handler error")
			},
		}
		var err error
		bot, err = telebot.NewBot(pref)
		if err != nil {
			return fmt.Errorf("could not create Telegram bot: %w", err)
		}
		notifier = itg.NewTelebotAdapter(bot)
	}

	runner, err := w.runner(notifier, "")
	if err != nil {
		return err
	}

	sched := scheduler.NewOutreachScheduler(runner, logger.Component(baseLogger, "scheduler"),
		cfg.CronSpecOutreach, cfg.CronSpecReminders, passTimeout)
	if err := sched.Start(); err != nil {
		return err
	}

	if bot != nil {
		handlerLogger := logger.Component(baseLogger, "telegram_handlers")
		itg.RegisterBotCommands(ctx, bot, cfg.AdminTelegramID, runner, handlerLogger)
		itg.RegisterAdminHandlers(ctx, bot, w.admin, cfg.AdminTelegramID, handlerLogger)
		itg.RegisterResponseHandlers(ctx, bot, w.admin, cfg.AdminTelegramID, handlerLogger)
		mainLogger.Info("Telegram handlers registered.")

		// Start bot in a goroutine so it doesn't block graceful shutdown handling
		go bot.Start()
	}

	mainLogger.Info("Application setup complete. Scheduler is running.")
	<-ctx.Done()

	mainLogger.Info("Shutting down application...")
	if bot != nil {
		bot.Stop()
	}
	sched.Stop()
	mainLogger.Info("Application shut down gracefully.")
	return nil
}
