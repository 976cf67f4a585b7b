package commands

import (
	"duochat/client"
	"duochat/domain"
	"fmt"
	"strings"

	"github.com/gookit/color"
	"github.com/samber/lo"
)

func paint(style color.Style, s string) string {
	if !config.Colours {
		return s
	}
	return style.Render(s)
}

func formatMessage(owner domain.Identity, m domain.Message) string {
	style := color.New(color.FgCyan)
	if m.From == owner {
		style = color.New(color.FgGreen)
	}
	at := paint(color.New(color.FgGray), m.SentAt.Local().Format("15:04:05"))
	return fmt.Sprintf("%s %s %s", at, paint(style, string(m.From)+":"), m.Text)
}

func formatState(s client.State) string {
	switch s {
	case client.Connected:
		return paint(color.New(color.FgGreen, color.OpBold), "● "+s.String())
	case client.Reconnecting, client.Connecting:
		return paint(color.New(color.FgYellow, color.OpBold), "● "+s.String())
	default:
		return paint(color.New(color.FgRed, color.OpBold), "● "+s.String())
	}
}

func formatOnline(online []domain.UserInfo) string {
	names := lo.Map(online, func(u domain.UserInfo, _ int) string {
		return string(u.Identity)
	})
	if len(names) == 0 {
		return paint(color.New(color.FgGray), "nobody online")
	}
	return "online: " + strings.Join(names, ", ")
}
