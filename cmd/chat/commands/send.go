package commands

import (
	"context"
	"duochat/domain"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send [peer] [text...]",
		Short: "Send one message to peer",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := register(cmd.Context())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			m, err := chat.SendMessage(ctx, identity, domain.Identity(args[0]), strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Println(formatMessage(identity, m))
			return nil
		},
	}
}
