package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme bundles styles, symbols and the panel border.
// All UI helpers pull from `current`.
type Theme struct {
	Title, Muted, Accent, Success, Error, Liked lipgloss.Style
	Selected, Help                              lipgloss.Style
	Border                                      lipgloss.Border
	BorderColor                                 lipgloss.TerminalColor
	SymLiked, SymUnliked, SymOK, SymFail        string
	BarFull, BarEmpty                           string
}

var current = classic()

func classic() Theme {
	return Theme{
		Title:    lipgloss.NewStyle().Bold(true),
		Muted:    lipgloss.NewStyle().Faint(true),
		Accent:   lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Liked:    lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
		Selected: lipgloss.NewStyle().Bold(true).Reverse(true),
		Help:     lipgloss.NewStyle().Faint(true),
		Border:   lipgloss.NormalBorder(), BorderColor: lipgloss.Color("8"),
		SymLiked: "♥", SymUnliked: "♡", SymOK: "✔", SymFail: "✖",
		BarFull: "█", BarEmpty: "░",
	}
}

// SetTheme switches the palette. Unknown names fall back to classic.
func SetTheme(name string) {
	switch strings.ToLower(name) {
	case "neon":
		t := classic()
		t.Title = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
		t.Accent = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
		t.Liked = lipgloss.NewStyle().Foreground(lipgloss.Color("201")).Bold(true)
		t.Border, t.BorderColor = lipgloss.RoundedBorder(), lipgloss.Color("13")
		current = t
	case "mono":
		plain := lipgloss.NewStyle()
		current = Theme{
			Title: plain, Muted: plain, Accent: plain, Success: plain, Error: plain, Liked: plain,
			Selected: plain, Help: plain,
			Border: lipgloss.ASCIIBorder(), BorderColor: lipgloss.NoColor{},
			SymLiked: "<3", SymUnliked: "--", SymOK: "ok", SymFail: "error:",
			BarFull: "#", BarEmpty: ".",
		}
	default:
		current = classic()
	}
}

// Expose what renderers need
func Current() Theme { return current }

// Heart renders the like marker for one friend.
func Heart(liked bool) string {
	t := Current()
	if liked {
		return t.Liked.Render(t.SymLiked)
	}
	return t.Muted.Render(t.SymUnliked)
}
