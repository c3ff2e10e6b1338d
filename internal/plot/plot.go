// Package plot renders count rows as a two-panel text bar chart.
package plot

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/digestflow/internal/count"
)

// BarWidth is the length of the longest bar in a panel.
const BarWidth = 30

const barRune = "█"

type bar struct {
	label string
	value int
}

// Render writes the chart for c to w. Colors are used only when w is a
// terminal.
func Render(w io.Writer, c count.Counts) error {
	r := lipgloss.NewRenderer(w)
	_, err := io.WriteString(w, Chart(r, c)+"\n")
	return err
}

// Save renders the chart to path, creating parent directories.
func Save(path string, c count.Counts) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create plot directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot: %w", err)
	}
	if err := Render(f, c); err != nil {
		f.Close()
		return fmt.Errorf("render plot: %w", err)
	}
	return f.Close()
}

// Chart lays out the title and both panels using renderer r.
func Chart(r *lipgloss.Renderer, c count.Counts) string {
	aa := c.AminoAcid
	peptides := panel(r, "#001425", []bar{
		{"No. of Peptides w/ " + aa, c.PeptidesWithTarget},
		{"No. of Peptides", c.Peptides},
	})
	residues := panel(r, "#308AAD", []bar{
		{fmt.Sprintf("No. of %s's", aa), c.TargetResidues},
		{"Total No. of Amino Acids", c.TotalResidues},
	})

	title := r.NewStyle().Bold(true).Render(fmt.Sprintf("%s's in Peptides and Amino Acids", aa))
	body := lipgloss.JoinHorizontal(lipgloss.Top, peptides, " ", residues)
	return lipgloss.JoinVertical(lipgloss.Center, title, body)
}

func panel(r *lipgloss.Renderer, color string, bars []bar) string {
	maxVal, labelW := 0, 0
	for _, b := range bars {
		if b.value > maxVal {
			maxVal = b.value
		}
		if w := lipgloss.Width(b.label); w > labelW {
			labelW = w
		}
	}

	barStyle := r.NewStyle().Foreground(lipgloss.Color(color))
	labelStyle := r.NewStyle().Width(labelW)

	lines := make([]string, 0, len(bars))
	for _, b := range bars {
		lines = append(lines, fmt.Sprintf("%s %s %d",
			labelStyle.Render(b.label),
			barStyle.Render(strings.Repeat(barRune, scale(b.value, maxVal))),
			b.value))
	}

	box := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)
	return box.Render(strings.Join(lines, "\n"))
}

// scale maps v onto [0, BarWidth]; any non-zero value gets at least one cell.
func scale(v, maxVal int) int {
	if v <= 0 || maxVal <= 0 {
		return 0
	}
	n := v * BarWidth / maxVal
	if n == 0 {
		n = 1
	}
	return n
}
