package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colors used for terminal rendering.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Bar    lipgloss.Style
	Border lipgloss.Style
	Help   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Bar:    lipgloss.NewStyle().Foreground(t.Primary),
		Border: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Primary).Padding(0, 1),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Bar is one row of a BarChart.
type Bar struct {
	Label string
	Value float64
}

// BarChart renders labelled horizontal bars scaled to the largest value.
type BarChart struct {
	Styles Styles
	Title  string
	Bars   []Bar
	// Width is the length of the longest bar in cells.
	Width int
	// Mark highlights the row with this label.
	Mark string
	Help string
}

// Render renders the chart to a string.
func (c BarChart) Render() string {
	width := c.Width
	if width <= 0 {
		width = 40
	}
	var peak float64
	labelWidth := 0
	for _, b := range c.Bars {
		peak = max(peak, b.Value)
		labelWidth = max(labelWidth, len(b.Label))
	}

	lines := []string{c.Styles.Title.Render(c.Title), ""}
	for _, b := range c.Bars {
		n := 0
		if peak > 0 && b.Value > 0 {
			n = max(1, int(b.Value/peak*float64(width)+0.5))
		}
		label := fmt.Sprintf("%*s", labelWidth, b.Label)
		if b.Label == c.Mark {
			label = c.Styles.Label.Render(label)
		}
		bar := c.Styles.Bar.Render(strings.Repeat("█", n))
		value := c.Styles.Help.Render(fmt.Sprintf("%.4g", b.Value))
		lines = append(lines, label+" │"+bar+" "+value)
	}
	if c.Help != "" {
		lines = append(lines, "", c.Styles.Help.Render(c.Help))
	}
	return c.Styles.Border.Render(strings.Join(lines, "\n"))
}
