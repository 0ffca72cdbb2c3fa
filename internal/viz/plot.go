package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"
)

// StatePlots renders one ascii plot per state component. series is
// indexed [node][state].
func StatePlots(series [][]float64) string {
	if len(series) == 0 {
		return ""
	}
	nx := len(series[0])
	var b strings.Builder
	for i := 0; i < nx; i++ {
		data := make([]float64, len(series))
		for k := range series {
			data[k] = series[k][i]
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(72),
			asciigraph.Caption(fmt.Sprintf("state x[%d]", i)))
		b.WriteString(graph)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// ControlPlot renders the piecewise-constant controls, one plot per
// component. series is indexed [interval][control].
func ControlPlot(series [][]float64) string {
	if len(series) == 0 || len(series[0]) == 0 {
		return ""
	}
	nu := len(series[0])
	var b strings.Builder
	for i := 0; i < nu; i++ {
		data := make([]float64, len(series))
		for k := range series {
			data[k] = series[k][i]
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(8),
			asciigraph.Width(72),
			asciigraph.Caption(fmt.Sprintf("control u[%d]", i)))
		b.WriteString(graph)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
