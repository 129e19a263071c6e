package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ParesquiMCSA/AutoWpp/internal/config"
)

var (
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "autowpp",
	Short: "Multi-worker outbound message dispatch with lead capture.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg != nil {
			return nil
		}
		c, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

// Execute runs the CLI. Fatal faults exit non-zero so the orchestrating
// process can tell workers apart by exit status.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "autowpp.yaml", "Path to the worker config file")
}
