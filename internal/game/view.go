package game

import (
	"fmt"
	"html"
	"os"
	"strings"
)

const cardStyle = `
<head>
    <style>
        td {
            width: 120px;
            height: 50px;
            padding: 2px;
            overflow: hidden;
            text-align: center;
            vertical-align: middle;
            border: 1px solid black;
            font-size: 18pt;
            font-family: Arial, Helvetica, sans-serif;
        }
        .long-text-cell { font-size: 12pt; }
        .long-text-cell-selected { font-size: 12pt; background: lightcoral; }
        .selected { background: lightcoral; }
        img { max-height: 50px; }
        @media print {
            br.page { page-break-before: always; }
        }
    </style>
</head>
`

// WriteHTML renders cards to a printable HTML file, one card per page, with
// already-played titles highlighted. number < 0 renders every card.
func (g *Game) WriteHTML(path string, number int) error {
	var sb strings.Builder
	sb.WriteString("<html>")
	sb.WriteString(cardStyle)
	sb.WriteString("<body>\n")

	write := func(card *Card) {
		fmt.Fprintf(&sb, "<h3>%s, Card number %d</h3>\n", html.EscapeString(g.PlaylistName()), card.Number)
		g.writeCardTable(&sb, card)
		sb.WriteString("<br class='page'/>\n")
	}

	if number < 0 {
		for _, card := range g.Cards() {
			write(card)
		}
	} else {
		card, err := g.Card(number)
		if err != nil {
			return err
		}
		write(card)
	}

	sb.WriteString("</body></html>\n")
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("write cards html: %w", err)
	}
	return nil
}

func (g *Game) writeCardTable(sb *strings.Builder, card *Card) {
	sb.WriteString("<table><tr>")
	for _, letter := range "MINGO" {
		fmt.Fprintf(sb, "<th>%c</th>", letter)
	}
	sb.WriteString("</tr>\n")
	for r := 0; r < GridSize; r++ {
		sb.WriteString("<tr>")
		for c := 0; c < GridSize; c++ {
			cell := card.Cells[r*GridSize+c]
			sb.WriteString(g.renderCell(cell, card))
		}
		sb.WriteString("</tr>\n")
	}
	sb.WriteString("</table>\n")
}

func (g *Game) renderCell(cell string, card *Card) string {
	if cell == CenterCell {
		if card.QRFile != "" {
			return fmt.Sprintf(`<td class="selected"><img src="%s"/></td>`, html.EscapeString(card.QRFile))
		}
		return `<td class="selected">` + CenterCell + `</td>`
	}
	played := g.HasBeenPlayed(cell)
	class := ""
	// Long titles get a smaller font so a card still fits on one page.
	switch {
	case len(cell) > 25 && played:
		class = ` class="long-text-cell-selected"`
	case len(cell) > 25:
		class = ` class="long-text-cell"`
	case played:
		class = ` class="selected"`
	}
	return fmt.Sprintf("<td%s>%s</td>", class, html.EscapeString(cell))
}
