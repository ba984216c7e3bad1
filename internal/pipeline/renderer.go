package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ppiankov/kgex/internal/model"
)

// Renderer writes reports as JSON, Markdown and terminal summaries
type Renderer struct {
	includeFooter bool
	out           io.Writer
}

// NewRenderer creates a renderer writing terminal output to stdout
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter, out: os.Stdout}
}

// SetOutput redirects terminal output and "-" paths
func (r *Renderer) SetOutput(w io.Writer) {
	r.out = w
}

// Printf writes to the terminal output
func (r *Renderer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// RenderJSON writes v as indented JSON to path, or to the terminal output when path is "-"
func (r *Renderer) RenderJSON(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	return r.write(path, append(data, '\n'))
}

// RenderMarkdown writes the Markdown form of report to path ("-" for terminal output)
func (r *Renderer) RenderMarkdown(report *model.PatentReport, path string) error {
	return r.write(path, []byte(r.Markdown(report)))
}

func (r *Renderer) write(path string, data []byte) error {
	if path == "-" {
		_, err := r.out.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Markdown renders a patent report
func (r *Renderer) Markdown(report *model.PatentReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Design knowledge: US%s\n\n", report.PatentID)
	if report.Title != "" {
		fmt.Fprintf(&b, "_%s_\n\n", escapeMarkdown(report.Title))
	}
	fmt.Fprintf(&b, "- Source: %s\n", report.SourceURL)
	fmt.Fprintf(&b, "- Fetched: %s", report.FetchedAt.Format("2006-01-02 15:04:05 UTC"))
	if report.FetchMeta.FromCache {
		b.WriteString(" (cached)")
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "- Sections: %s\n\n", strings.Join(report.Sections, ", "))

	b.WriteString(r.summaryMarkdown(report.Summary))
	b.WriteString(RecordsMarkdown(report.Records))

	if r.includeFooter {
		b.WriteString("\n---\n\n")
		b.WriteString("_Facts are machine-extracted from patent text and may be incomplete or wrong. ")
		b.WriteString("Verify against the source before use._\n")
	}
	return b.String()
}

func (r *Renderer) summaryMarkdown(s model.Summary) string {
	var b strings.Builder
	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Sentences | %d |\n", s.Sentences)
	fmt.Fprintf(&b, "| Sentences with facts | %d |\n", s.RecordsWithFact)
	fmt.Fprintf(&b, "| Unique entities | %d |\n", s.Entities)
	fmt.Fprintf(&b, "| Facts | %d |\n", s.Facts)
	fmt.Fprintf(&b, "| Facts per sentence | %.2f |\n\n", s.FactsPerRecord)

	if len(s.TopRelations) > 0 {
		b.WriteString("### Top relations\n\n")
		for _, rc := range s.TopRelations {
			fmt.Fprintf(&b, "- `%s` (%d)\n", rc.Relation, rc.Count)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RecordsMarkdown renders the records that carry at least one fact
func RecordsMarkdown(records []model.KnowledgeRecord) string {
	var b strings.Builder
	b.WriteString("## Facts\n\n")

	n := 0
	for _, rec := range records {
		if len(rec.Facts) == 0 {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. %s\n", n, escapeMarkdown(rec.Sentence))
		for _, f := range rec.Facts {
			fmt.Fprintf(&b, "   - (%s, **%s**, %s)\n", escapeMarkdown(f.Head), escapeMarkdown(f.Relation), escapeMarkdown(f.Tail))
		}
	}
	if n == 0 {
		b.WriteString("_No facts extracted._\n")
	}
	return b.String()
}

// RenderSummary prints a short terminal summary of a patent report
func (r *Renderer) RenderSummary(report *model.PatentReport) {
	s := report.Summary
	r.Printf("\nUS%s", report.PatentID)
	if report.Title != "" {
		r.Printf("  %s", report.Title)
	}
	r.Printf("\n  sections: %d  sentences: %d  entities: %d  facts: %d\n",
		len(report.Sections), s.Sentences, s.Entities, s.Facts)
	for _, rc := range s.TopRelations {
		r.Printf("  %-24s %d\n", rc.Relation, rc.Count)
	}
}

// RenderRecords prints records one fact per line, sentence first
func (r *Renderer) RenderRecords(records []model.KnowledgeRecord) {
	for _, rec := range records {
		r.Printf("%s\n", rec.Sentence)
		if len(rec.Entities) > 0 {
			r.Printf("  entities: %s\n", strings.Join(rec.Entities, "; "))
		}
		for _, f := range rec.Facts {
			r.Printf("  (%s) -[%s]-> (%s)\n", f.Head, f.Relation, f.Tail)
		}
	}
}

var markdownEscaper = strings.NewReplacer("*", `\*`, "_", `\_`, "`", "\\`", "|", `\|`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
