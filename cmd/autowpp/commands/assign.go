package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ParesquiMCSA/AutoWpp/internal/ledger"
)

var assignWorkers []string

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Partition unassigned pending tasks across workers (round-robin)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(assignWorkers) == 0 {
			return fmt.Errorf("at least one --worker is required")
		}

		store, err := ledger.NewStore(cfg.LedgerPath, cfg.Worker)
		if err != nil {
			return err
		}
		count, err := store.Assign(context.Background(), assignWorkers)
		if err != nil {
			return err
		}
		fmt.Printf("assigned %d task(s) across %d worker(s)\n", count, len(assignWorkers))
		return nil
	},
}

func init() {
	assignCmd.Flags().StringSliceVar(&assignWorkers, "worker", nil, "Worker identity to partition tasks to (repeatable)")
	rootCmd.AddCommand(assignCmd)
}
