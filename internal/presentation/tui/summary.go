package tui

import (
	"fmt"
	"io"
	"time"

	"github.com/muesli/termenv"
)

// ReplaySummary is what PrintReplaySummary reports.
type ReplaySummary struct {
	Emitters int
	Actions  int
	Applied  int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// PrintReplaySummary writes a one-block summary of a feedback replay to w.
// Skipped counts are yellow and failures red, so a clean replay reads green.
func PrintReplaySummary(w io.Writer, s ReplaySummary) {
	out := termenv.NewOutput(w)
	green := out.Color("#22c55e")
	yellow := out.Color("#eab308")
	red := out.Color("#ef4444")

	count := func(n int, c termenv.Color) termenv.Style {
		style := out.String(fmt.Sprint(n))
		if n > 0 {
			style = style.Foreground(c).Bold()
		}
		return style
	}

	fmt.Fprintf(w, "%s %d emitters, %d actions\n", out.String(">>>").Faint(), s.Emitters, s.Actions)
	fmt.Fprintf(w, "    applied %s  skipped %s  failed %s  in %s\n",
		count(s.Applied, green), count(s.Skipped, yellow), count(s.Failed, red), s.Duration.Round(time.Microsecond))
}
