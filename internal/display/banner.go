package display

import (
	_ "embed"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
)

//go:embed banner.txt
var bannerArt string

// RenderBanner renders the startup art with a one-line caption under it,
// both centred on the terminal.
func RenderBanner(caption string) string {
	art := strings.TrimRight(bannerArt, "\n")
	block := lipgloss.JoinVertical(lipgloss.Center,
		bannerStyle.Render(art),
		"",
		bannerStyle.Faint(true).Render(caption),
	)
	return lipgloss.PlaceHorizontal(bannerWidth(block), lipgloss.Center, block) + "\n"
}

// bannerWidth is the terminal width, never narrower than block. Falls back
// to 80 columns off a terminal.
func bannerWidth(block string) int {
	w, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil || w <= 0 {
		w = 80
	}
	return max(w, lipgloss.Width(block))
}
