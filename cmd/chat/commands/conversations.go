package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func conversationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List the conversations of the identity, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := register(cmd.Context())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			conversations, err := chat.ListConversations(ctx, identity)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Peer", "Messages", "Last", "At"})
			table.SetAutoWrapText(false)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetCenterSeparator("")
			table.SetColumnSeparator("")
			table.SetRowSeparator("")
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetTablePadding("\t")
			for _, c := range conversations {
				last, at := "", ""
				if c.LastMessage != nil {
					last = fmt.Sprintf("%s: %s", c.LastMessage.From, c.LastMessage.Text)
					at = c.LastMessage.SentAt.Local().Format("2006-01-02 15:04")
				}
				table.Append([]string{string(c.PeerIdentity), fmt.Sprint(c.TotalMessages), last, at})
			}
			table.Render()
			return nil
		},
	}
}
