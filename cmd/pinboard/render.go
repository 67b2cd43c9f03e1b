package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/aretw0/pinboard/pkg/core"
)

const timeLayout = "2006-01-02 15:04"

// swatchColors maps palette labels to terminal colors.
var swatchColors = map[string]lipgloss.Color{
	"gray":   lipgloss.Color("#9ca3af"),
	"red":    lipgloss.Color("#ef4444"),
	"orange": lipgloss.Color("#f97316"),
	"yellow": lipgloss.Color("#eab308"),
	"green":  lipgloss.Color("#22c55e"),
	"blue":   lipgloss.Color("#3b82f6"),
	"indigo": lipgloss.Color("#6366f1"),
	"purple": lipgloss.Color("#a855f7"),
	"pink":   lipgloss.Color("#ec4899"),
}

// swatch renders a colored block followed by the label. Unknown labels get no block.
func swatch(color string) string {
	c, ok := swatchColors[color]
	if !ok {
		return color
	}
	return lipgloss.NewStyle().Background(c).Render("  ") + " " + color
}

func renderTable(w io.Writer, notes []core.Note) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Options.SeparateRows = false
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: 40},
	})

	t.AppendHeader(table.Row{
		text.FgGreen.Sprintf("Color"),
		text.FgGreen.Sprintf("%s", text.Bold.Sprintf("Title")),
		text.FgGreen.Sprintf("Content"),
		text.FgGreen.Sprintf("Updated"),
		text.FgGreen.Sprintf("ID"),
	})
	for _, n := range notes {
		t.AppendRow(table.Row{
			swatch(n.Color),
			n.Title,
			firstLine(n.Content),
			n.UpdatedAt.Local().Format(timeLayout),
			n.ID,
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d note(s)", len(notes))})
	t.Render()
}

func renderNote(w io.Writer, n core.Note) {
	title := lipgloss.NewStyle().Bold(true)
	fmt.Fprintf(w, "%s  %s\n", swatch(n.Color), title.Render(n.Title))
	fmt.Fprintf(w, "%s\n\n", text.FgHiBlack.Sprintf("%s · created %s · updated %s",
		n.ID, n.CreatedAt.Local().Format(timeLayout), n.UpdatedAt.Local().Format(timeLayout)))
	fmt.Fprintln(w, n.Content)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
