package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"study-garden/internal/bot"
	"study-garden/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot with scheduled reports and quest resets",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.cfg.RequireToken(); err != nil {
		return err
	}

	telegramBot, err := bot.New(a.cfg.TelegramToken, a.svc, &a.cfg, a.loc, a.log)
	if err != nil {
		return err
	}

	scheduler := service.NewSchedulerService(a.loc, a.log)

	reportJob := func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.WithError(err).Error("send reports")
		}
	}
	var (
		reportMu sync.Mutex
		reportID cron.EntryID
	)
	if a.cfg.ReportInterval > 0 {
		if reportID, err = scheduler.ScheduleInterval(a.cfg.ReportInterval, reportJob); err != nil {
			return err
		}
	}
	telegramBot.OnIntervalChange(func(interval time.Duration) error {
		reportMu.Lock()
		defer reportMu.Unlock()
		next, err := scheduler.Reschedule(reportID, interval, reportJob)
		if err != nil {
			return err
		}
		reportID = next
		a.log.WithField("next", scheduler.Next(reportID)).Info("report interval changed")
		return nil
	})

	if _, err := scheduler.ScheduleDaily(a.cfg.QuestResetTime, func() {
		a.log.Info("daily quests reset")
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := telegramBot.SendQuestReset(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.WithError(err).Error("send quest reset")
		}
	}); err != nil {
		return err
	}

	scheduler.Start()
	defer scheduler.Stop()

	a.log.Info("study garden bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.log.Info("shutdown complete")
	return nil
}
