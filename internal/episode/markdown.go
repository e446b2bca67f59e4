package episode

import (
	"fmt"
	"strings"
)

// Markdown renders the episode as a human-readable document. The file
// store writes this alongside the JSON record so episodes can be read
// and grepped without tooling. The JSON record remains the source of
// truth; markdown is never parsed back.
func (e *Episode) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Episode: %s\n\n", e.Title())
	fmt.Fprintf(&b, "**ID**: %s\n", e.ShortID())
	fmt.Fprintf(&b, "**Date**: %s\n", e.TimestampStart.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "**Project**: %s\n", e.Project)
	fmt.Fprintf(&b, "**Outcome**: %s\n\n", e.Outcome.Status)

	b.WriteString("## Intent\n\n")
	fmt.Fprintf(&b, "%s\n\n", e.Intent.RawPrompt)

	writeList := func(header string, items []string) {
		fmt.Fprintf(&b, "### %s\n", header)
		if len(items) == 0 {
			b.WriteString("- None\n")
		}
		for _, item := range items {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Context\n\n")
	writeList("Files Read", e.Context.FilesRead)
	writeList("Files Modified", e.Context.FilesModified)
	writeList("Tools Invoked", e.Context.ToolsInvoked)

	if len(e.Context.ErrorsEncountered) > 0 {
		b.WriteString("## Errors\n\n")
		b.WriteString("| Error | Resolution |\n|-------|------------|\n")
		for _, rec := range e.Context.ErrorsEncountered {
			resolution := rec.Resolution
			if resolution == "" {
				resolution = "unresolved"
			}
			fmt.Fprintf(&b, "| %s | %s |\n", rec.Message, resolution)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Tags\n\n")
	fmt.Fprintf(&b, "%s\n", strings.Join(e.Intent.Domain, ", "))

	if len(e.RetrievalHistory) > 0 {
		b.WriteString("\n## Retrieval History\n\n")
		b.WriteString("| Date | Project | Query | Helpful |\n|------|---------|-------|--------|\n")
		for _, r := range e.RetrievalHistory {
			helpful := "?"
			switch {
			case r.WasHelpful == nil:
			case *r.WasHelpful:
				helpful = "yes"
			default:
				helpful = "no"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				r.Timestamp.UTC().Format("2006-01-02"), r.Project, r.Query, helpful)
		}
	}

	return b.String()
}
