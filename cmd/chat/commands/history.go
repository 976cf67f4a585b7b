package commands

import (
	"context"
	"duochat/domain"
	"fmt"

	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [peer]",
		Short: "Print the whole conversation with peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := register(cmd.Context())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			resp, err := chat.GetMessages(ctx, identity, domain.Identity(args[0]))
			if err != nil {
				return err
			}
			for _, m := range resp.Messages {
				fmt.Println(formatMessage(identity, m))
			}
			return nil
		},
	}
}
