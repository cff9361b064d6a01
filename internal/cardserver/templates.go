package cardserver

import (
	"embed"
	"html/template"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

const gridSize = 5

type cellView struct {
	Index int
	Title string
}

// rows slices the flat 25-cell list into 5 rows for the board table.
func rows(titles []string) [][]cellView {
	out := make([][]cellView, 0, gridSize)
	for r := 0; r < gridSize; r++ {
		row := make([]cellView, 0, gridSize)
		for c := 0; c < gridSize; c++ {
			idx := r*gridSize + c
			if idx < len(titles) {
				row = append(row, cellView{Index: idx, Title: titles[idx]})
			}
		}
		out = append(out, row)
	}
	return out
}

func (srv *Server) loadTemplates(r *gin.Engine) {
	funcs := template.FuncMap{"rows": rows}
	tmpl := template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
	r.SetHTMLTemplate(tmpl)
}
