package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/anime-shed/ingrediscan-go/pkg/models"
)

// HumanWriter prints colored terminal output
type HumanWriter struct {
	output io.Writer
}

// NewHumanWriter creates a HumanWriter
func NewHumanWriter(output io.Writer) *HumanWriter {
	return &HumanWriter{output: output}
}

func (w *HumanWriter) Write(entries []Entry) error {
	for i, entry := range entries {
		if i > 0 {
			fmt.Fprintln(w.output, strings.Repeat("─", 60))
		}
		w.writeEntry(entry)
	}
	return nil
}

func (w *HumanWriter) writeEntry(entry Entry) {
	cyan := color.New(color.FgCyan, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen, color.Bold)

	cyan.Fprintf(w.output, "📷 %s", entry.Source)
	if entry.Duration > 0 {
		fmt.Fprintf(w.output, " %s", color.HiBlackString("(%s)", entry.Duration.Round(time.Millisecond)))
	}
	fmt.Fprintln(w.output)

	r := entry.Result
	if r == nil || r.IsFailure() {
		msg, typ := "no result", "unknown_error"
		if r != nil {
			msg, typ = r.Error, r.ErrorType
		}
		red.Fprintf(w.output, "   ✗ %s\n", typ)
		fmt.Fprintf(w.output, "   %s\n\n", msg)
		return
	}

	scoreColor(r.HealthScore).Fprintf(w.output, "   Health score: %s", r.HealthScore)
	fmt.Fprintf(w.output, "   confidence %s\n", confidenceText(r))
	fmt.Fprintf(w.output, "   %s\n\n", r.Summary)

	if len(r.Risks) > 0 {
		yellow.Fprintln(w.output, "   ⚠️  RISKS:")
		for _, risk := range r.Risks {
			fmt.Fprintf(w.output, "   %s %s", riskIcon(risk.Level), risk.Name)
			if risk.Desc != "" {
				fmt.Fprintf(w.output, ": %s", risk.Desc)
			}
			fmt.Fprintln(w.output)
		}
		fmt.Fprintln(w.output)
	}

	if len(r.FullIngredients) > 0 {
		fmt.Fprintf(w.output, "   Ingredients: %s\n\n", strings.Join(r.FullIngredients, ", "))
	}

	if len(r.Alternatives) > 0 {
		green.Fprintln(w.output, "   🥗 ALTERNATIVES:")
		for _, alt := range r.Alternatives {
			fmt.Fprintf(w.output, "   • %s\n", alt)
		}
		fmt.Fprintln(w.output)
	}
}

func scoreColor(score string) *color.Color {
	switch score {
	case "A", "B":
		return color.New(color.FgGreen, color.Bold)
	case "C":
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func riskIcon(level models.RiskLevel) string {
	switch level {
	case models.RiskHigh:
		return "🔴"
	case models.RiskModerate:
		return "🟡"
	default:
		return "🟢"
	}
}
