package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	domaintelegram "mealsync/internal/domain/telegram"
	idb "mealsync/internal/infra/database"
	"mealsync/internal/infra/logger"
	"mealsync/internal/infra/scheduler"
	"mealsync/internal/infra/telegram"
	"mealsync/internal/infra/telemetry"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the nightly reconcile, the admin bot and the metrics endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd.Context())
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := openRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.db != nil {
				if err := idb.ApplySchema(ctx, rt.db); err != nil {
					return err
				}
			}

			var metricsServer *http.Server
			if cfg.MetricsAddr != "" {
				metricsServer = telemetry.MetricsServer(cfg.MetricsAddr)
				go func() {
					logger.Log.WithField("addr", cfg.MetricsAddr).Info("Serving /metrics")
					if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Log.WithError(err).Error("Metrics server stopped")
					}
				}()
			}

			sweeper := rt.sweeper()
			var notifier domaintelegram.Client
			if cfg.TelegramToken != "" {
				bot, err := telegram.NewBot(cfg.TelegramToken, logger.Component("telegram"))
				if err != nil {
					return err
				}
				notifier = telegram.NewTelebotAdapter(bot)
				telegram.RegisterBotCommands(bot, cfg.AdminTelegramID, logger.Component("telegram"))
				telegram.RegisterAdminHandlers(ctx, bot, telegram.AdminServices{
					Menus:         rt.menuService(),
					Selections:    rt.selectionService(),
					Cascade:       rt.cascadeEngine(),
					Sweeper:       sweeper,
					Notifications: rt.notifications,
				}, cfg.AdminTelegramID, logger.Component("telegram"))
				logger.Log.Info("Admin command handlers registered.")

				// Start bot in a goroutine so it doesn't block graceful shutdown handling
				go bot.Start()
				defer bot.Stop()
			} else {
				logger.Log.Info("TELEGRAM_TOKEN not set, admin bot disabled")
			}

			sched := scheduler.NewReconcileScheduler(
				sweeper,
				notifier,
				cfg.AdminTelegramID,
				logger.Component("scheduler"),
				cfg.CronSpecSweep,
				cfg.SweepTimeout,
				cfg.Location(),
			)
			if err := sched.Start(); err != nil {
				return err
			}

			logger.Log.Info("Application setup complete.")
			<-ctx.Done()

			logger.Log.Info("Shutting down application...")
			sched.Stop()
			if metricsServer != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = metricsServer.Shutdown(shutdownCtx)
			}
			logger.Log.Info("Application shut down gracefully.")
			return nil
		},
	}
}
