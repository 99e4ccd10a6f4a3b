package train

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// PlotLosses draws a crude vertical bar chart of losses, one column per
// report, scaled so the largest loss fills the full height.
func PlotLosses(w io.Writer, losses []float64) {
	const height = 10 // number of text rows
	n := len(losses)
	if n == 0 {
		fmt.Fprintln(w, "no data to plot")
		return
	}
	top := floats.Max(losses)
	if top <= 0 {
		top = 1
	}
	var sb strings.Builder
	for row := height; row >= 1; row-- {
		threshold := float64(row) / float64(height)
		for _, v := range losses {
			if v/top >= threshold {
				sb.WriteString("█")
			} else {
				sb.WriteString(" ")
			}
		}
		sb.WriteString("\n")
	}
	// x-axis, report index every 5 columns
	sb.WriteString(strings.Repeat("─", n) + "\n")
	for i := range losses {
		if i%5 == 0 {
			sb.WriteString(strconv.Itoa(i % 10))
		} else {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("\n")
	io.WriteString(w, sb.String())
}
