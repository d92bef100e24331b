package commands

import (
	"eprocure-backend/internal/components/chrono"
	"eprocure-backend/internal/components/telemetry"
	"eprocure-backend/internal/harvest"
	"eprocure-backend/internal/notify"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cronCmd)
}

func newNotifier() notify.Notifier {
	channels := []notify.Channel{}
	if cfg.Smtp.Server != "" {
		channels = append(channels, notify.NewEmailChannel(cfg.Smtp))
	}
	if cfg.Twilio.AccountSid != "" {
		whatsapp, err := notify.NewWhatsAppChannel(cfg.Twilio)
		if err != nil {
			slog.Warn("whatsapp notifications disabled", "err", err)
		} else {
			channels = append(channels, whatsapp)
		}
	}
	if len(channels) == 0 {
		slog.Warn("no notification channel configured, new tenders will only be logged")
	}
	return notify.NewNotifier(cfg.Officers, channels, chrono.StandardImpl{}, notify.DefaultOptions(), tel)
}

var cronCmd = &cobra.Command{
	Use:   "cron [keywords...]",
	Short: "Runs a pass on every tick of the cron schedule and notifies officers of new tenders.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		err := chrono.ValidateSpec(cfg.CronSchedule)
		if err != nil {
			return err
		}

		tenders, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer tenders.Close()

		if cfg.Reset {
			slog.Warn("reset is ignored by the cron daemon, new tenders are found by diffing the store")
		}
		orchestrator, err := newOrchestrator(tenders, false)
		if err != nil {
			return err
		}
		pass := harvest.NewScheduledPass(orchestrator, tenders, newNotifier(), tel)
		keywords := cfg.ResolveKeywords(args)

		var running sync.Mutex
		run := func() {
			if !running.TryLock() {
				slog.Warn("previous scheduled scrape still running, skipping tick")
				return
			}
			defer running.Unlock()

			start := time.Now()
			slog.Info("starting scheduled scrape", "keywords", len(keywords))
			report, err := pass.Run(ctx, keywords)
			if err != nil {
				tel.ReportBroken("cron.pass", err)
				return
			}
			slog.Info(
				"scheduled scrape done",
				"run", report.Summary.RunId,
				"failed", len(report.Summary.Failed()),
				"new", len(report.New),
				"notified", report.Notified,
				"seconds", time.Since(start).Seconds(),
			)
		}

		clock, err := newClock()
		if err != nil {
			return err
		}
		cron := chrono.NewStandardCron(tel, clock.Location())
		err = cron.Cron(cfg.CronSchedule, run)
		if err != nil {
			return err
		}
		telemetry.InstrumentPerfStats(ctx, tel, time.Minute)

		slog.Info(
			"tender cron started",
			"schedule", cfg.CronSchedule,
			"officers", len(cfg.Officers),
			"run_on_startup", cfg.RunOnStartup,
		)
		if cfg.RunOnStartup {
			go run()
		}

		<-ctx.Done()
		slog.Info("stopping cron, waiting for a running pass")
		stopped := cron.Stop()
		select {
		case <-stopped.Done():
		case <-time.After(30 * time.Second):
		}
		return nil
	},
}
