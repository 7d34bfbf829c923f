// Command paysyncctl runs operator tasks against the paysync database
// without going through the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/fatflowers/paysync/internal/app"
	notificationlog "github.com/fatflowers/paysync/internal/app/service/notification_log"
	"github.com/fatflowers/paysync/internal/app/service/reconcile"
	"github.com/fatflowers/paysync/internal/app/service/subscription"
	"github.com/fatflowers/paysync/internal/app/service/sweeper"
)

type deps struct {
	manager    reconcile.Manager
	sweeper    *sweeper.Sweeper
	sub        *subscription.Service
	deliveries *notificationlog.Service
}

// withApp starts the core services, runs fn and stops them again so that
// pending writes are flushed before the process exits.
func withApp(ctx context.Context, fn func(ctx context.Context, d *deps) error) error {
	var d deps
	a := fx.New(
		app.CoreModule,
		fx.NopLogger,
		fx.Populate(&d.manager, &d.sweeper, &d.sub, &d.deliveries),
	)
	startCtx, cancel := context.WithTimeout(ctx, app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	runErr := fn(ctx, &d)

	stopCtx, cancel2 := context.WithTimeout(context.WithoutCancel(ctx), app.DefaultStopTimeout)
	defer cancel2()
	if err := a.Stop(stopCtx); err != nil && runErr == nil {
		return fmt.Errorf("failed to stop: %w", err)
	}
	return runErr
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "paysyncctl",
		Short:         "Operator tools for payment reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRecoverCommand(), newSweepCommand(), newStatusCommand(), newDeliveriesCommand())
	return root
}

func newRecoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "recover <bill_id>",
		Short: "Re-drive a bill through reconciliation and finish a partial activation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, d *deps) error {
				res, err := d.manager.Recover(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Reconcile one batch of stale pending bills",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, d *deps) error {
				sum, err := d.sweeper.RunOnce(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), sum)
			})
		},
	}
}

func newStatusCommand() *cobra.Command {
	var history int
	cmd := &cobra.Command{
		Use:   "status <user_id>",
		Short: "Show the ledger view of a user's subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, d *deps) error {
				info, err := d.sub.GetUserSubscriptionInfo(ctx, args[0])
				if err != nil {
					return err
				}
				out := map[string]any{"subscription": info}
				if history > 0 {
					periods, err := d.sub.ListPeriods(ctx, args[0], history)
					if err != nil {
						return err
					}
					out["periods"] = periods
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().IntVar(&history, "history", 0, "Also list this many recent periods")
	return cmd
}

func newDeliveriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deliveries <bill_id>",
		Short: "List the provider notifications logged for a bill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, d *deps) error {
				rows, err := d.deliveries.ListByBillID(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rows)
			})
		},
	}
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
