package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ParesquiMCSA/AutoWpp/internal/archive"
	"github.com/ParesquiMCSA/AutoWpp/internal/dispatch"
	"github.com/ParesquiMCSA/AutoWpp/internal/ledger"
	"github.com/ParesquiMCSA/AutoWpp/internal/logging"
	"github.com/ParesquiMCSA/AutoWpp/internal/report"
	"github.com/ParesquiMCSA/AutoWpp/internal/transport"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Run one dispatch pass and exit (bounded by the one-shot timeout)",
	RunE: func(cmd *cobra.Command, args []string) error {
		sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(sigCtx, cfg.OneShotTimeout())
		defer cancel()

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

		gw, err := transport.NewGateway(cfg.GatewayURL, func(transport.Message) {
			// One-shot mode dispatches only; inbound replies are the
			// persistent worker's job.
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := gw.Close(); err != nil {
				logging.Warn("gateway_close_failed", logging.Fields{Component: "cli", Error: err.Error()})
			}
		}()

		min, max := cfg.JitterRange()
		loop, err := dispatch.NewLoop(store, policy, gw, report.New(cfg.Reporting), db, dispatch.Pacing{
			DefaultDelay: cfg.DefaultDelay(),
			JitterMin:    min,
			JitterMax:    max,
		})
		if err != nil {
			return err
		}

		stats, err := loop.Run(ctx)
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("one-shot deadline exceeded after %s: %d sent, %d failed", cfg.OneShotTimeout(), stats.Sent, stats.Failed)
		}
		if err != nil && sigCtx.Err() == nil {
			return err
		}

		fmt.Printf("dispatch done: %d sent, %d failed, %d skipped (of %d claimable)\n",
			stats.Sent, stats.Failed, stats.Skipped, stats.Claimable)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
}
