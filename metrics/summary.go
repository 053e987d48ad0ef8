package metrics

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"
)

// PrintSummary writes a human-readable run summary to w.
func PrintSummary(w io.Writer, snap Snapshot) {
	fmt.Fprintln(w)

	headerColor := color.New(color.FgCyan, color.Bold)
	headerColor.Fprintln(w, "━━━ Run Summary ━━━")

	printCount(w, "Source frames", snap.SourceFrames)
	printCount(w, "Tiles", snap.Tiles)
	printCount(w, "Frames built", snap.Frames)
	printCount(w, "Steps", snap.Steps)

	reasons := make([]string, 0, len(snap.Drops))
	for reason := range snap.Drops {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)

	if len(reasons) == 0 {
		color.New(color.FgGreen).Fprintln(w, "  ✓ No drops")
	} else {
		warn := color.New(color.FgYellow)
		for _, reason := range reasons {
			warn.Fprintf(w, "  ! %s", reason)
			color.New(color.FgHiBlack).Fprintf(w, " - %d\n", snap.Drops[DropReason(reason)])
		}
	}

	color.New(color.FgHiBlack).Fprintf(w, "(finished in %v)\n", snap.Elapsed.Round(time.Millisecond))
	fmt.Fprintln(w)
}

func printCount(w io.Writer, label string, n uint64) {
	fmt.Fprintf(w, "  %-14s", label)
	color.New(color.FgWhite, color.Bold).Fprintf(w, "%d\n", n)
}
