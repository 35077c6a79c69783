// Package buildinfo renders a human-readable build summary page that ships
// with the published site.
package buildinfo

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// md renders the stage table, so the table extension is required.
var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// StageSummary is one pipeline stage's outcome for display.
type StageSummary struct {
	Name     string
	Result   string // success|warning|fatal|canceled
	Duration time.Duration
}

// Summary carries everything the build-info page shows.
type Summary struct {
	RunID        string
	Outcome      string
	Started      time.Time
	Finished     time.Time
	SourceCommit string
	SourceBranch string
	Files        int
	BrokenLinks  int
	Stages       []StageSummary
}

var titleCaser = cases.Title(language.English)

// displayName turns a stage identifier into a heading ("render_site" -> "Render Site").
func displayName(stage string) string {
	return titleCaser.String(strings.ReplaceAll(stage, "_", " "))
}

// Markdown renders the summary as a markdown document.
func Markdown(s Summary) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "# Documentation Build %s\n\n", s.RunID)
	fmt.Fprintf(&b, "**Outcome:** %s\n\n", s.Outcome)
	fmt.Fprintf(&b, "- Started: %s\n", s.Started.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Finished: %s\n", s.Finished.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n", s.Finished.Sub(s.Started).Round(time.Millisecond))
	if s.SourceCommit != "" {
		rev := s.SourceCommit
		if len(rev) > 8 {
			rev = rev[:8]
		}
		if s.SourceBranch != "" {
			fmt.Fprintf(&b, "- Source: %s @ %s\n", s.SourceBranch, rev)
		} else {
			fmt.Fprintf(&b, "- Source: %s\n", rev)
		}
	}
	fmt.Fprintf(&b, "- Files published: %d\n", s.Files)
	if s.BrokenLinks > 0 {
		fmt.Fprintf(&b, "- Broken internal links: %d\n", s.BrokenLinks)
	}

	if len(s.Stages) > 0 {
		b.WriteString("\n## Stages\n\n")
		b.WriteString("| Stage | Result | Duration |\n|---|---|---|\n")
		for _, st := range s.Stages {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", displayName(st.Name), st.Result, st.Duration.Round(time.Millisecond))
		}
	}

	return b.Bytes()
}

// RenderHTML converts the markdown summary into a standalone HTML page.
func RenderHTML(s Summary) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert(Markdown(s), &body); err != nil {
		return nil, fmt.Errorf("render build info: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>Build %s</title>\n", s.RunID)
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}
