package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"stockwatch/internal/graph"
	"stockwatch/pkg/stockwatch"
)

// gridDividers is the number of vertical dividers of the detail chart,
// one per horizontal label.
const gridDividers = 4

// View renders the current screen.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var title, body, help string
	switch m.screen {
	case screenSearch:
		title = "Search"
		body = m.renderSearch()
		help = "enter search | tab results | a add | esc back"
	case screenDetail:
		title = m.detailSymbol
		if m.detailExchange != "" {
			title += ":" + m.detailExchange
		}
		body = m.viewport.View()
		help = "a add/remove | r reload | esc back"
	default:
		title = fmt.Sprintf("Watchlist (%d)", len(m.stocks))
		body = m.renderWatchlist()
		help = "enter open | / search | d remove | q quit"
	}

	header := headerStyle.Render(padOrTrunc(" stockwatch | "+title, m.width))

	footer := footerStyle.Render(padOrTrunc(" "+help, m.width))
	if m.status != "" {
		if m.statusErr {
			footer = errorStyle.Render(padOrTrunc(" "+m.status, m.width))
		} else {
			footer = footerStyle.Render(padOrTrunc(" "+m.status, m.width))
		}
	}

	// Pad the body so the footer stays on the last line.
	lines := strings.Split(body, "\n")
	bodyHeight := max(m.height-2, 1)
	if len(lines) > bodyHeight {
		lines = lines[:bodyHeight]
	}
	for len(lines) < bodyHeight {
		lines = append(lines, "")
	}
	return header + "\n" + strings.Join(lines, "\n") + "\n" + footer
}

func (m Model) renderWatchlist() string {
	if len(m.stocks) == 0 {
		return dimStyle.Render("  The watchlist is empty. Press / to search for a stock.")
	}
	var b strings.Builder
	for i, s := range m.stocks {
		hl := i == m.cursor
		cursor := "  "
		if hl {
			cursor = "> "
		}
		b.WriteString(hlStyle(lipgloss.NewStyle(), hl).Render(cursor))
		b.WriteString(hlStyle(symbolStyle, hl).Render(fmt.Sprintf("%-8s", s.Symbol)))
		b.WriteString(hlStyle(dimStyle, hl).Render(fmt.Sprintf(" %-8s ", s.Exchange)))
		b.WriteString(hlStyle(titleStyle, hl).Render(s.Name))
		if i < len(m.stocks)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (m Model) renderSearch() string {
	var b strings.Builder
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if m.searching {
		b.WriteString(dimStyle.Render("  Searching..."))
		return b.String()
	}
	if len(m.results) == 0 {
		if m.searchMsg != "" {
			b.WriteString(dimStyle.Render("  " + m.searchMsg))
		}
		return b.String()
	}

	for i, r := range m.results {
		hl := m.focusResults && i == m.resultCursor
		cursor := "  "
		if hl {
			cursor = "> "
		}
		mark := " "
		if m.tracked[r.Symbol] {
			mark = "*"
		}
		b.WriteString(hlStyle(lipgloss.NewStyle(), hl).Render(cursor))
		b.WriteString(hlStyle(trackedStyle, hl).Render(mark))
		b.WriteString(hlStyle(symbolStyle, hl).Render(fmt.Sprintf(" %-8s", r.Symbol)))
		b.WriteString(hlStyle(dimStyle, hl).Render(fmt.Sprintf(" %-8s ", r.Exchange)))
		b.WriteString(hlStyle(priceStyle, hl).Render(r.Price + " "))
		b.WriteString(hlStyle(moveStyle(r.Summary), hl).Render(movement(r.Summary)))
		b.WriteString(hlStyle(titleStyle, hl).Render("  " + r.Title))
		if i < len(m.results)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// renderDetail renders the scrollable content of the detail screen.
func (m Model) renderDetail() string {
	if m.screen != screenDetail {
		return ""
	}
	if m.loading {
		return dimStyle.Render("  Loading " + m.detailSymbol + "...")
	}
	if m.detail == nil {
		return ""
	}
	info := m.detail
	s := info.Summary

	var b strings.Builder
	name := titleStyle.Render(s.Title)
	if m.tracked[s.Symbol] {
		name += trackedStyle.Render("  * on watchlist")
	}
	b.WriteString(name + "\n")
	b.WriteString(priceStyle.Render(s.Price+" "+s.Currency) + "  " + moveStyle(s).Render(movement(s)) + "\n\n")

	width := max(m.width-2, 10)
	b.WriteString(renderChart(info.Graph, width, m.progress, moveStyle(s)))

	if len(info.Tags) > 0 {
		b.WriteString("\n")
		tags := make([]string, 0, len(info.Tags))
		for _, t := range info.Tags {
			tags = append(tags, "["+t.Label+"]")
		}
		b.WriteString(dimStyle.Render(strings.Join(tags, " ")) + "\n")
	}

	for _, sec := range info.Sections {
		b.WriteString("\n" + sectionStyle.Render(sec.Title) + "\n")
		if sec.Text != "" {
			b.WriteString(lipgloss.NewStyle().Width(width).Render(sec.Text) + "\n")
		}
		if sec.Link != "" {
			text := sec.LinkText
			if text == "" {
				text = sec.Link
			}
			b.WriteString(dimStyle.Render(text+": "+sec.Link) + "\n")
		}
		for _, r := range sec.Rows {
			b.WriteString(fmt.Sprintf("  %-28s %s\n", r.Label, r.Value))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderChart draws the price series as braille art, revealed up to
// progress, with the edge and horizontal labels below it.
func renderChart(g stockwatch.Graph, width int, progress float64, style lipgloss.Style) string {
	if len(g.Prices) == 0 {
		return dimStyle.Render("  No chart data") + "\n"
	}
	canvas := graph.NewCanvas(width, graphRows)
	size := canvas.Size()
	path, err := graph.Layout(g.Prices, size)
	if err != nil {
		return ""
	}
	canvas.DrawPath(path, progress)

	var b strings.Builder
	for _, line := range canvas.Lines() {
		b.WriteString(style.Render(line) + "\n")
	}
	b.WriteString(dimStyle.Render(labelRow(g, width, size)) + "\n")
	return b.String()
}

// labelRow lays the first label at the left edge, the last at the right
// edge, and the horizontal labels centered under the grid dividers.
func labelRow(g stockwatch.Graph, width int, size graph.Size) string {
	row := []rune(spaces(width))
	put := func(text string, col int) {
		for i, r := range []rune(text) {
			if c := col + i; c >= 0 && c < width {
				row[c] = r
			}
		}
	}
	for _, l := range graph.PlaceLabels(g.HorizontalLabels, gridDividers, size) {
		col := int(math.Round(l.At.X/2)) - len([]rune(l.Text))/2
		put(l.Text, col)
	}
	put(g.FirstLabel, 0)
	put(g.LastLabel, width-len([]rune(g.LastLabel)))
	return string(row)
}

func movement(s stockwatch.Summary) string {
	out := s.Percentage
	if s.Arrow != "" {
		out = s.Arrow + " " + out
	}
	if s.Value != "" {
		out += " (" + s.Value + ")"
	}
	return out
}

func moveStyle(s stockwatch.Summary) lipgloss.Style {
	if s.Color == "" {
		return dimStyle
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color))
}
