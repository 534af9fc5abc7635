package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alan-christopher/bb84sim/bb84"
)

const barWidth = 40

// writeReport prints every stage of a single exchange followed by a bar
// showing the QBER against the 25% expected under a full intercept-resend
// attack.
func writeReport(w io.Writer, res bb84.Result) error {
	r := lipgloss.NewRenderer(w)
	label := r.NewStyle().Bold(true).Width(22)
	title := r.NewStyle().Bold(true).Underline(true)

	var b strings.Builder
	row := func(name, value string) {
		fmt.Fprintf(&b, "%s%s\n", label.Render(name), value)
	}
	row("Alice Bits:", res.AliceBits.String())
	row("Alice Bases:", res.AliceBases.String())
	if res.Eavesdropped {
		row("Eve Bases:", res.EveBases.String())
		row("Eve Bits:", res.EveBits.String())
	}
	row("Bob Bases:", res.BobBases.String())
	row("Bob Bits:", res.BobBits.String())
	row("Basis Match:", matchRow(res))
	row("Raw Key (Alice):", res.AliceKey.String())
	row("Raw Key (Bob):", res.BobKey.String())
	fmt.Fprintf(&b, "Quantum Bit Error Rate (QBER): %.2f%%\n", res.QBER)
	if res.Estimate != nil {
		fmt.Fprintf(&b, "Sampled QBER: %.2f%% over %d disclosed bits\n",
			res.Estimate.QBER, res.Estimate.Disclosed)
	}

	heading := "Quantum Bit Error Rate without Eve"
	if res.Eavesdropped {
		heading = "Quantum Bit Error Rate with Eve"
	}
	fmt.Fprintf(&b, "\n%s\n", title.Render(heading))
	bar := r.NewStyle().Foreground(lipgloss.Color("208"))
	fmt.Fprintf(&b, "%s %.2f%%\n", bar.Render(qberBar(res.QBER, barWidth)), res.QBER)

	_, err := io.WriteString(w, b.String())
	return err
}

// matchRow marks each position where Alice's and Bob's bases agree.
func matchRow(res bb84.Result) string {
	var b strings.Builder
	for i := 0; i < res.Mask.Size(); i++ {
		if res.Mask.Get(i) {
			b.WriteString("✅")
		} else {
			b.WriteString("❌")
		}
	}
	return b.String()
}

// qberBar renders qber, a percentage, as a bar of the given width.
func qberBar(qber float64, width int) string {
	filled := int(math.Round(qber / 100 * float64(width)))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}
