package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/anime-shed/ingrediscan-go/pkg/models"
)

// MarkdownWriter outputs a Markdown document with one section per image
type MarkdownWriter struct {
	output io.Writer
}

// NewMarkdownWriter creates a MarkdownWriter
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: output}
}

func (w *MarkdownWriter) Write(entries []Entry) error {
	md := markdown.NewMarkdown(w.output)

	md.H1("IngrediScan Report")
	md.PlainText("")
	w.writeOverview(md, entries)

	for _, entry := range entries {
		w.writeEntry(md, entry)
	}
	return md.Build()
}

func (w *MarkdownWriter) writeOverview(md *markdown.Markdown, entries []Entry) {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		score, status := "-", "✅"
		if e.Result == nil || e.Result.IsFailure() {
			status = "❌ " + errorType(e.Result)
		} else {
			score = e.Result.HealthScore
		}
		rows = append(rows, []string{"`" + e.Source + "`", score, status})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Image", "Health Score", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeEntry(md *markdown.Markdown, entry Entry) {
	md.H2(entry.Source)
	md.PlainText("")

	r := entry.Result
	if r == nil || r.IsFailure() {
		msg := "no result"
		if r != nil {
			msg = r.Error
		}
		md.Cautionf("%s: %s", errorType(r), msg)
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Health Score", r.HealthScore},
			{"Confidence", confidenceText(r)},
			{"Summary", r.Summary},
			{"Ingredients", strconv.Itoa(len(r.FullIngredients))},
		},
	})
	md.PlainText("")

	w.writeRisks(md, r)

	if len(r.FullIngredients) > 0 {
		md.H3("Ingredients")
		md.PlainText("")
		md.BulletList(r.FullIngredients...)
		md.PlainText("")
	}

	if len(r.Alternatives) > 0 {
		md.H3("Alternatives")
		md.PlainText("")
		md.BulletList(r.Alternatives...)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeRisks(md *markdown.Markdown, r *models.CanonicalResult) {
	if len(r.Risks) == 0 {
		md.Tip("No flagged ingredients.")
		md.PlainText("")
		return
	}

	high := 0
	rows := make([][]string, len(r.Risks))
	for i, risk := range r.Risks {
		if risk.Level == models.RiskHigh {
			high++
		}
		desc := risk.Desc
		if desc == "" {
			desc = "-"
		}
		rows[i] = []string{riskIcon(risk.Level) + " " + string(risk.Level), risk.Name, desc}
	}

	md.H3("Risks")
	md.PlainText("")
	if high > 0 {
		md.Warningf("%d high risk ingredient(s) found.", high)
		md.PlainText("")
	}
	md.Table(markdown.TableSet{
		Header: []string{"Level", "Ingredient", "Description"},
		Rows:   rows,
	})
	md.PlainText("")
}

func errorType(r *models.CanonicalResult) string {
	if r == nil || r.ErrorType == "" {
		return "unknown_error"
	}
	return r.ErrorType
}
