package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ParesquiMCSA/AutoWpp/internal/archive"
	"github.com/ParesquiMCSA/AutoWpp/internal/ledger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger completion state and local send stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := ledger.NewStore(cfg.LedgerPath, cfg.Worker)
		if err != nil {
			return err
		}

		// Display-only read; never the basis for a write decision.
		tasks, err := store.Read(context.Background())
		if err != nil {
			return err
		}

		var sent, pending, failed int
		perWorker := make(map[string]int)
		for _, t := range tasks {
			switch {
			case t.Sent:
				sent++
				perWorker[t.SentBy]++
			case t.Failed():
				failed++
			default:
				pending++
			}
		}

		fmt.Printf("ledger: %d task(s): %d sent, %d pending, %d owned-unsent\n", len(tasks), sent, pending, failed)
		workers := make([]string, 0, len(perWorker))
		for w := range perWorker {
			workers = append(workers, w)
		}
		sort.Strings(workers)
		for _, w := range workers {
			fmt.Printf("  %-16s %d sent\n", w, perWorker[w])
		}

		db, err := archive.NewDB(cfg.ArchivePath)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		archSent, archFailed, err := db.SendStats()
		if err != nil {
			return err
		}
		fmt.Printf("archive: %d delivery(ies) recorded, %d failure(s)\n", archSent, archFailed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
