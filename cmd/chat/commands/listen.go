package commands

import (
	"duochat/domain"
	"duochat/wire"
	"fmt"

	"github.com/spf13/cobra"
)

func listenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Print incoming messages and presence changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := register(cmd.Context())
			if err != nil {
				return err
			}
			defer chat.OnMessage(func(m domain.Message) {
				fmt.Println(formatMessage(identity, m))
			})()
			defer chat.OnPresence(func(p wire.Presence) {
				fmt.Println(formatOnline(p.Online))
			})()
			states, stop := chat.Watch()
			defer stop()

			fmt.Printf("Listening as %s, Ctrl+C to quit\n", identity)
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case s, ok := <-states:
					if !ok {
						return nil
					}
					fmt.Println(formatState(s))
				}
			}
		},
	}
}
