package display

import "github.com/charmbracelet/lipgloss"

// bannerStyle is the muted slate used for the startup banner.
var bannerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#94a3b8"))

// palette is one colour theme.
type palette struct {
	border, title, desc, text, dim, accent, fill, empty, danger, ok string
}

var (
	darkPalette = palette{
		border: "#3f3f46",
		title:  "#e4e4e7",
		desc:   "#71717a",
		text:   "#d4d4d8",
		dim:    "#52525b",
		accent: "#bae6fd",
		fill:   "#94a3b8",
		empty:  "#27272a",
		danger: "#fca5a5",
		ok:     "#bbf7d0",
	}
	lightPalette = palette{
		border: "#d4d4d8",
		title:  "#18181b",
		desc:   "#71717a",
		text:   "#27272a",
		dim:    "#a1a1aa",
		accent: "#0369a1",
		fill:   "#475569",
		empty:  "#e4e4e7",
		danger: "#b91c1c",
		ok:     "#15803d",
	}
)

// styles is the full set of lipgloss styles for one palette.
type styles struct {
	card        lipgloss.Style
	cardFocused lipgloss.Style
	title       lipgloss.Style
	desc        lipgloss.Style
	label       lipgloss.Style
	labelActive lipgloss.Style
	value       lipgloss.Style
	fill        lipgloss.Style
	empty       lipgloss.Style
	button      lipgloss.Style
	stop        lipgloss.Style
	disabled    lipgloss.Style
	toastInfo   lipgloss.Style
	toastUrgent lipgloss.Style
	recording   lipgloss.Style
}

func newStyles(dark bool) styles {
	p := lightPalette
	if dark {
		p = darkPalette
	}
	c := func(s string) lipgloss.Color { return lipgloss.Color(s) }

	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(c(p.border)).
		Padding(0, 1)

	button := lipgloss.NewStyle().Padding(0, 1).Bold(true)

	return styles{
		card:        card,
		cardFocused: card.BorderForeground(c(p.accent)),
		title:       lipgloss.NewStyle().Foreground(c(p.title)).Bold(true),
		desc:        lipgloss.NewStyle().Foreground(c(p.desc)),
		label:       lipgloss.NewStyle().Foreground(c(p.desc)).Width(8),
		labelActive: lipgloss.NewStyle().Foreground(c(p.accent)).Bold(true).Width(8),
		value:       lipgloss.NewStyle().Foreground(c(p.text)),
		fill:        lipgloss.NewStyle().Foreground(c(p.fill)),
		empty:       lipgloss.NewStyle().Foreground(c(p.empty)),
		button:      button.Foreground(c(p.empty)).Background(c(p.accent)),
		stop:        button.Foreground(c(p.empty)).Background(c(p.danger)),
		disabled:    button.Foreground(c(p.dim)).Background(c(p.empty)),
		toastInfo:   lipgloss.NewStyle().Foreground(c(p.ok)),
		toastUrgent: lipgloss.NewStyle().Foreground(c(p.danger)).Bold(true),
		recording:   lipgloss.NewStyle().Foreground(c(p.danger)).Italic(true),
	}
}
