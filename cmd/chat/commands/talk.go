package commands

import (
	"bufio"
	"context"
	"duochat/client"
	"duochat/domain"
	"duochat/errors"
	stderrors "errors"
	"fmt"
	"os"
	"sync"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

func talkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "talk [peer]",
		Short: "Open an interactive thread with peer, one message per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := register(cmd.Context())
			if err != nil {
				return err
			}
			inbox := client.NewInbox(chat, log, identity)
			defer inbox.Close()

			var mu sync.Mutex
			var printed uint64
			inbox.OnChange(func() {
				_, thread := inbox.Thread()
				mu.Lock()
				defer mu.Unlock()
				for _, m := range thread {
					if m.Seq > printed {
						fmt.Println(formatMessage(identity, m))
						printed = m.Seq
					}
				}
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			err = inbox.Open(ctx, domain.Identity(args[0]))
			cancel()
			if err != nil {
				return err
			}

			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					lines <- scanner.Text()
				}
			}()

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					send(cmd.Context(), inbox, line)
				}
			}
		},
	}
}

func send(ctx context.Context, inbox *client.Inbox, text string) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	_, err := inbox.Send(ctx, text)
	switch {
	case err == nil:
	case inbox.Offline():
		fmt.Println(paint(color.New(color.FgYellow), "offline, reconnecting... message not sent"))
	case stderrors.Is(err, errors.ErrEmptyMessage):
	default:
		fmt.Println(paint(color.New(color.FgRed), "not sent: "+err.Error()))
	}
}
