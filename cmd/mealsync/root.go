package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mealsync/internal/app"
	"mealsync/internal/domain/calendar"
	"mealsync/internal/domain/menu"
	"mealsync/internal/domain/notification"
	"mealsync/internal/domain/selection"
	"mealsync/internal/domain/store"
	"mealsync/internal/infra/config"
	idb "mealsync/internal/infra/database"
	"mealsync/internal/infra/logger"
	"mealsync/internal/infra/memstore"
	"mealsync/internal/infra/telemetry"
)

func newRootCmd() *cobra.Command {
	var shutdownTracing func(context.Context) error

	cmd := &cobra.Command{
		Use:           "mealsync",
		Short:         "Keeps cafeteria meal selections consistent with the daily menus",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("could not load application configuration: %w", err)
			}
			logger.Init(cfg)
			logger.Log.WithFields(logrus.Fields{
				"backend":     cfg.StoreBackend,
				"environment": cfg.Environment,
				"batch_max":   cfg.BatchMaxOps,
			}).Debug("Configuration loaded")

			shutdownTracing, err = telemetry.InitTracing(cmd.Context(), cfg.ServiceName, cfg.TraceExporter)
			if err != nil {
				return err
			}
			cmd.SetContext(withConfig(cmd.Context(), cfg))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if shutdownTracing == nil {
				return nil
			}
			return shutdownTracing(context.WithoutCancel(cmd.Context()))
		},
	}
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newReconcileCmd())
	cmd.AddCommand(newCascadeCmd())
	cmd.AddCommand(newMenuCmd())
	cmd.AddCommand(newMigrateCmd())
	return cmd
}

type configKey struct{}

func withConfig(ctx context.Context, cfg *config.AppConfig) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, configKey{}, cfg)
}

func configFrom(ctx context.Context) *config.AppConfig {
	cfg, _ := ctx.Value(configKey{}).(*config.AppConfig)
	return cfg
}

// runtime holds the repositories of the configured backend and the services
// built on them.
type runtime struct {
	cfg           *config.AppConfig
	db            *sql.DB // nil on the memory backend
	menus         menu.Repository
	selections    selection.Repository
	notifications notification.Repository
	writer        store.Writer
	clock         calendar.Clock
}

func openRuntime(ctx context.Context, cfg *config.AppConfig) (*runtime, error) {
	rt := &runtime{
		cfg:   cfg,
		clock: calendar.SystemClock{Location: cfg.Location()},
	}

	switch cfg.StoreBackend {
	case config.BackendMemory:
		logger.Log.Warn("Using the in-memory store; data is lost on exit")
		mem := memstore.New(cfg.BatchMaxOps)
		rt.menus, rt.selections, rt.notifications, rt.writer = mem.Menus(), mem.Selections(), mem.Notifications(), mem
	default:
		db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("could not connect to database: %w", err)
		}
		logger.Log.Info("Database connection established successfully.")
		rt.db = db
		rt.menus = idb.NewPostgresMenuRepository(db)
		rt.selections = idb.NewPostgresSelectionRepository(db)
		rt.notifications = idb.NewPostgresNotificationRepository(db)
		rt.writer = idb.NewPostgresBatchWriter(db, cfg.BatchMaxOps)
	}
	return rt, nil
}

func (rt *runtime) Close() error {
	if rt.db != nil {
		return rt.db.Close()
	}
	return nil
}

func (rt *runtime) cascadeEngine() *app.CascadeEngine {
	return app.NewCascadeEngine(rt.selections, rt.writer, rt.cfg.BatchMaxOps, rt.clock, logger.Component("cascade"))
}

func (rt *runtime) sweeper() *app.Sweeper {
	return app.NewSweeper(rt.menus, rt.selections, rt.writer, rt.cfg.BatchMaxOps, rt.clock, logger.Component("sweeper"))
}

func (rt *runtime) menuService() *app.MenuService {
	return app.NewMenuService(rt.menus, rt.cascadeEngine(), rt.clock, logger.Component("menu"))
}

func (rt *runtime) selectionService() *app.SelectionService {
	return app.NewSelectionService(rt.menus, rt.selections, rt.clock, logger.Component("selection"))
}
