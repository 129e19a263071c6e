package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ParesquiMCSA/AutoWpp/internal/archive"
)

var leadsLimit int

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List captured leads from the local archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := archive.NewDB(cfg.ArchivePath)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		leads, err := db.ListLeads(leadsLimit)
		if err != nil {
			return err
		}
		if len(leads) == 0 {
			fmt.Println("no leads captured yet")
			return nil
		}
		for _, l := range leads {
			fmt.Printf("%-16s  %-14s  %-30s  %s\n",
				l.Phone, l.Document, l.Email, l.CapturedAt.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 20, "Maximum number of leads to list")
	rootCmd.AddCommand(leadsCmd)
}
