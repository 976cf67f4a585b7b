package e2e

import (
	"context"
	"duochat/client"
	"fmt"
	"log/slog"
	"time"

	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

type BaseChatSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseChatSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("E2E_SERVER_ADDR is not set")
	}
}

// Header prints a colorized step header in the test logs
func (s *BaseChatSuite) Header(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// WithClient provides a connected chat client within a contextual test step
func (s *BaseChatSuite) WithClient(name string, fn func(ctx context.Context, c *client.Client)) {
	s.Header(name)
	level := slog.LevelWarn
	if s.Config.Debug {
		level = slog.LevelDebug
	}

	dialer, err := client.NewGRPCDialer(s.Config.ServerAddr)
	s.Require().NoError(err, "Failed to target chat server at "+s.Config.ServerAddr)
	defer func() { _ = dialer.Close() }()

	c := client.New(dialer, logs.GetLoggerFromLevel(level), client.Options{})
	defer c.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Require().NoError(c.Connect(ctx), "Failed to connect to chat server")

	fn(ctx, c)
}
