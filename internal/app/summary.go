package app

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/vk/parablock/internal/orchestrator"
)

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	failMark = color.New(color.FgRed).SprintFunc()
	dimText  = color.New(color.Faint).SprintFunc()
)

// printSummary writes the per-function outcome table to the app's output.
func (a *App) printSummary(results []orchestrator.Result) {
	if len(results) == 0 {
		fmt.Fprintln(a.outW, dimText("no declared functions found"))
		return
	}

	failed := 0
	for _, r := range results {
		if r.OK() {
			fmt.Fprintf(a.outW, "%s %s %s\n", okMark("✓"), r.FullName, dimText("("+r.Status.String()+")"))
			continue
		}
		failed++
		fmt.Fprintf(a.outW, "%s %s\n", failMark("✗"), r.FullName)
		if r.Diagnostic != "" {
			fmt.Fprintf(a.outW, "  %s\n", dimText(r.Diagnostic))
		}
	}

	if failed > 0 {
		fmt.Fprintf(a.outW, "%s\n", failMark(fmt.Sprintf("%d of %d functions failed", failed, len(results))))
	} else {
		fmt.Fprintf(a.outW, "%s\n", okMark(fmt.Sprintf("all %d functions ready", len(results))))
	}
}
