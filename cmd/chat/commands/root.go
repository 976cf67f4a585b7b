package commands

import (
	"context"
	"duochat/client"
	"duochat/domain"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"
)

const requestTimeout = 10 * time.Second

var (
	config Config
	log    *slog.Logger
	dialer *client.GRPCDialer
	chat   *client.Client
)

func Execute() error {
	var err error
	if config, err = LoadConfig(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	root := &cobra.Command{
		Use:           "chat",
		Short:         "Terminal client of the duochat server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log = logs.GetLoggerFromString(config.LogLevel)
			if dialer, err = client.NewGRPCDialer(config.Addr); err != nil {
				return err
			}
			chat = client.New(dialer, log, client.Options{})
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			if err := chat.Connect(ctx); err != nil {
				return fmt.Errorf("connect to %s: %w", config.Addr, err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			chat.Stop()
			_ = dialer.Close()
		},
	}

	root.PersistentFlags().StringVar(&config.Addr, "addr", config.Addr, "server address")
	root.PersistentFlags().StringVarP(&config.Identity, "identity", "i", config.Identity, "identity to act as")
	root.PersistentFlags().StringVar(&config.DisplayName, "name", config.DisplayName, "display name shown to peers")
	root.PersistentFlags().BoolVar(&config.Colours, "colours", config.Colours, "colorized output")

	root.AddCommand(checkCmd(), conversationsCmd(), historyCmd(), sendCmd(), listenCmd(), talkCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return root.ExecuteContext(ctx)
}

// register attaches the connection to the configured identity.
func register(ctx context.Context) (domain.Identity, error) {
	identity := domain.Identity(config.Identity)
	if !identity.Valid() {
		return "", fmt.Errorf("an identity is required, use --identity or CHAT_IDENTITY")
	}
	name := config.DisplayName
	if name == "" {
		name = config.Identity
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	if _, err := chat.Register(ctx, identity, name); err != nil {
		return "", fmt.Errorf("register %s: %w", identity, err)
	}
	return identity, nil
}
