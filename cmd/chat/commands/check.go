package commands

import (
	"context"
	"duochat/domain"
	"fmt"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [identity]",
		Short: "Tell whether an identity ever registered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			resp, err := chat.CheckIdentity(ctx, domain.Identity(args[0]))
			if err != nil {
				return err
			}
			if !resp.Exists || resp.Info == nil {
				fmt.Println(paint(color.New(color.FgRed), args[0]+" is unknown"))
				return nil
			}
			status := paint(color.New(color.FgGray), "offline")
			if resp.Info.Online {
				status = paint(color.New(color.FgGreen), fmt.Sprintf("online on %d connection(s)", resp.Info.Connections))
			}
			fmt.Printf("%s (%s) %s\n", resp.Info.Identity, resp.Info.DisplayName, status)
			return nil
		},
	}
}
