package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mealsync/internal/app"
	"mealsync/internal/domain/calendar"
	idb "mealsync/internal/infra/database"
	"mealsync/internal/infra/logger"
)

func newReconcileCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Strip selected dishes that are not on their day's menu",
		Long:  "Run the reconciliation sweep once. Without --from/--to every date is scanned. No notifications are sent.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := calendar.ParseRange(from, to)
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), configFrom(cmd.Context()))
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.sweeper().Reconcile(cmd.Context(), rng)
			if err != nil {
				return fmt.Errorf("reconcile failed: %w", err)
			}
			printReconcile(cmd.OutOrStdout(), rng, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first date to scan (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date to scan (YYYY-MM-DD)")
	return cmd
}

func newCascadeCmd() *cobra.Command {
	var revision string

	cmd := &cobra.Command{
		Use:   "cascade <YYYY-MM-DD> <dish> [dish...]",
		Short: "Remove dishes from the selections of a day and notify the users",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := calendar.Parse(args[0])
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), configFrom(cmd.Context()))
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.cascadeEngine().Apply(cmd.Context(), app.Removal{Date: date, Dishes: args[1:], Revision: revision})
			printCascade(cmd.OutOrStdout(), res)
			if err != nil {
				return fmt.Errorf("cascade failed: %w", err)
			}
			if res.FailedBatchCount > 0 {
				return fmt.Errorf("%d of %d batches failed", res.FailedBatchCount, res.FailedBatchCount+res.CommittedBatchCount)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&revision, "revision", "", "suffix for notification keys when the same removal happens again")
	return cmd
}

func newMenuCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "menu <YYYY-MM-DD> [dish...]",
		Short: "Publish the menu of a day; without dishes the menu is deleted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := calendar.Parse(args[0])
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd.Context(), configFrom(cmd.Context()))
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.menuService().Publish(cmd.Context(), date, args[1:])
			if res != nil {
				out := cmd.OutOrStdout()
				if res.Deleted {
					fmt.Fprintf(out, "menu %s deleted\n", date)
				} else {
					fmt.Fprintf(out, "menu %s: %s\n", date, strings.Join(res.Menu.AvailableItems, ", "))
				}
				if len(res.Removed) > 0 {
					fmt.Fprintf(out, "removed: %s\n", strings.Join(res.Removed, ", "))
					printCascade(out, res.Cascade)
				}
			}
			return err
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), configFrom(cmd.Context()))
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.db == nil {
				return errors.New("migrate needs STORE_BACKEND=postgres")
			}
			if err := idb.ApplySchema(cmd.Context(), rt.db); err != nil {
				return err
			}
			logger.Log.Info("Schema applied")
			return nil
		},
	}
}

func printReconcile(w io.Writer, rng calendar.Range, res app.ReconcileResult) {
	fmt.Fprintf(w, "range:          %s\n", rng)
	fmt.Fprintf(w, "scanned:        %d\n", res.ScannedSelections)
	fmt.Fprintf(w, "cleaned:        %d\n", res.CleanedSelections)
	fmt.Fprintf(w, "removed dishes: %d\n", res.RemovedItems)
	fmt.Fprintf(w, "errors:         %d\n", res.ErrorCount)
	fmt.Fprintf(w, "failed batches: %d\n", res.FailedBatchCount)
}

func printCascade(w io.Writer, res app.CascadeResult) {
	fmt.Fprintf(w, "affected users:     %d\n", res.AffectedUserCount)
	fmt.Fprintf(w, "updated selections: %d\n", res.UpdatedSelectionCount)
	fmt.Fprintf(w, "notified users:     %d\n", res.NotifiedUserCount)
	fmt.Fprintf(w, "notifications:      %d\n", res.NotificationCount)
	fmt.Fprintf(w, "committed batches:  %d\n", res.CommittedBatchCount)
	fmt.Fprintf(w, "failed batches:     %d\n", res.FailedBatchCount)
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "skipped:            %s\n", warn)
	}
}
