package cli

import (
	"fmt"
	"runtime"

	"github.com/charmbracelet/lipgloss"
)

const appVersion = "0.1.0"

// brand colors
var (
	colorCyan    = lipgloss.Color("#00D7FF")
	colorDimCyan = lipgloss.Color("#00AFAF")
	colorGray    = lipgloss.Color("#6C6C6C")
	colorWhite   = lipgloss.Color("#FFFFFF")
	colorDim     = lipgloss.Color("#4E4E4E")
	colorGreen   = lipgloss.Color("#00FF87")
	colorYellow  = lipgloss.Color("#FFD75F")
	colorRed     = lipgloss.Color("#FF5F5F")
)

var logoLines = []string{
	" ███████ ██    ██ ██████  ██████   ██████  ██████  ████████",
	" ██      ██    ██ ██   ██ ██   ██ ██    ██ ██   ██    ██   ",
	" ███████ ██    ██ ██████  ██████  ██    ██ ██████     ██   ",
	"      ██ ██    ██ ██      ██      ██    ██ ██   ██    ██   ",
	" ███████  ██████  ██      ██       ██████  ██   ██    ██   ",
}

// top to bottom, cyan to violet
var logoGradient = []lipgloss.Color{
	lipgloss.Color("#00FFFF"),
	lipgloss.Color("#00CFFF"),
	lipgloss.Color("#009FFF"),
	lipgloss.Color("#006FFF"),
	lipgloss.Color("#5F5FFF"),
}

// BannerInfo is shown under the logo.
type BannerInfo struct {
	Gateway string
	Email   string
	Welcome string
}

// RenderBanner returns the welcome banner. Narrow terminals get a
// one-line logo.
func RenderBanner(info BannerInfo, width int) string {
	labelStyle := lipgloss.NewStyle().Foreground(colorGray)
	valueStyle := lipgloss.NewStyle().Foreground(colorWhite)
	tipStyle := lipgloss.NewStyle().Foreground(colorDim)
	greenStyle := lipgloss.NewStyle().Foreground(colorGreen)
	versionStyle := lipgloss.NewStyle().Foreground(colorDimCyan)

	var logo string
	if width >= 62 {
		for i, line := range logoLines {
			c := logoGradient[i%len(logoGradient)]
			logo += lipgloss.NewStyle().Foreground(c).Bold(true).Render(line) + "\n"
		}
	} else {
		logo = lipgloss.NewStyle().Foreground(colorCyan).Bold(true).Render(" ◇  S U P P O R T") + "\n"
	}

	ver := versionStyle.Render(fmt.Sprintf("  v%s", appVersion))

	email := info.Email
	if email == "" {
		email = "anonymous (/email to set)"
	}
	gatewayLine := fmt.Sprintf("  %s %s",
		labelStyle.Render("Gateway"),
		valueStyle.Render(info.Gateway),
	)
	emailLine := fmt.Sprintf("  %s %s",
		labelStyle.Render("Email  "),
		greenStyle.Render(email),
	)
	envLine := fmt.Sprintf("  %s %s/%s",
		labelStyle.Render("Env    "),
		labelStyle.Render(runtime.GOOS),
		labelStyle.Render(runtime.GOARCH),
	)

	tips := tipStyle.Render("  Enter to send · /help for commands · Ctrl+C to interrupt")

	out := fmt.Sprintf("\n%s%s\n\n%s\n%s\n%s\n\n%s\n",
		logo, ver,
		gatewayLine, emailLine, envLine,
		tips,
	)
	if info.Welcome != "" {
		out += "\n  " + lipgloss.NewStyle().Foreground(colorCyan).Render(info.Welcome) + "\n"
	}
	return out
}
