package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ParesquiMCSA/AutoWpp/internal/archive"
	"github.com/ParesquiMCSA/AutoWpp/internal/capture"
	"github.com/ParesquiMCSA/AutoWpp/internal/dispatch"
	"github.com/ParesquiMCSA/AutoWpp/internal/ledger"
	"github.com/ParesquiMCSA/AutoWpp/internal/logging"
	"github.com/ParesquiMCSA/AutoWpp/internal/report"
	"github.com/ParesquiMCSA/AutoWpp/internal/transport"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Dispatch pending tasks, then keep handling inbound replies",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := ledger.NewStore(cfg.LedgerPath, cfg.Worker)
		if err != nil {
			return err
		}
		mode, err := ledger.ParseMode(cfg.ClaimMode)
		if err != nil {
			return err
		}
		policy := ledger.Policy{Mode: mode, Worker: cfg.Worker}

		db, err := archive.NewDB(cfg.ArchivePath)
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				logging.Warn("archive_close_failed", logging.Fields{Component: "cli", Error: err.Error()})
			}
		}()

		sinks := report.New(cfg.Reporting)

		// The machine replies through the gateway and the gateway feeds the
		// machine through the router, so wire the router first and let its
		// handler close over the machine.
		var machine *capture.Machine
		router, err := transport.NewRouter(256, func(ctx context.Context, msg transport.Message) {
			machine.Handle(ctx, msg)
		})
		if err != nil {
			return err
		}

		gw, err := transport.NewGateway(cfg.GatewayURL, router.OnInbound)
		if err != nil {
			return err
		}
		defer func() {
			if err := gw.Close(); err != nil {
				logging.Warn("gateway_close_failed", logging.Fields{Component: "cli", Error: err.Error()})
			}
		}()

		machine, err = capture.NewMachine(gw, gw, sinks, db, cfg.Replies, cfg.Worker, cfg.InvalidAttemptLimit)
		if err != nil {
			return err
		}

		go router.Run(ctx)

		// Session lifecycle is logging plus one fatal case: an
		// authentication failure ends this worker (other workers and the
		// ledger are unaffected).
		fatal := make(chan error, 1)
		go func() {
			for state := range gw.Sessions() {
				logging.Info("session_state", logging.Fields{
					Component: "transport",
					Worker:    cfg.Worker,
					Step:      state.String(),
				})
				if state == transport.SessionAuthFailure {
					fatal <- fmt.Errorf("transport authentication failed")
					return
				}
			}
		}()

		min, max := cfg.JitterRange()
		loop, err := dispatch.NewLoop(store, policy, gw, sinks, db, dispatch.Pacing{
			DefaultDelay: cfg.DefaultDelay(),
			JitterMin:    min,
			JitterMax:    max,
		})
		if err != nil {
			return err
		}

		stats, err := loop.Run(ctx)
		if err != nil && ctx.Err() == nil {
			return err
		}
		fmt.Printf("dispatch done: %d sent, %d failed, %d skipped (of %d claimable)\n",
			stats.Sent, stats.Failed, stats.Skipped, stats.Claimable)
		fmt.Println("Listening for replies. Ctrl+C to stop.")

		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down…")
			return nil
		case err := <-fatal:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
