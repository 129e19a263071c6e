package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ParesquiMCSA/AutoWpp/internal/transport"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <routing-id>",
	Short: "Resolve a transport routing handle (e.g. ABC123@lid) to a phone number",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := transport.NewGateway(cfg.GatewayURL, func(transport.Message) {})
		if err != nil {
			return err
		}
		defer func() { _ = gw.Close() }()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		phone, err := gw.ResolvePhone(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(phone)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
