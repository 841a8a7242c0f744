// Package extract turns EDGAR filing HTML into plain text suitable for
// chunking and embedding.
package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// pageNumberLine matches lines that carry only pagination artifacts:
// bare numbers ("47"), financial-statement pages ("F-12") and
// "Page 47" markers. These survive HTML-to-text conversion as noise
// between sections.
var pageNumberLine = regexp.MustCompile(`^(?:Page\s+)?(?:F-)?\d+$`)

// whitespaceRun collapses tabs, non-breaking spaces and repeated spaces.
var whitespaceRun = regexp.MustCompile(`[ \t\x{00a0}]+`)

// Text extracts readable text from a filing document. Script, style and
// other non-content elements are removed, whitespace is normalized and
// page-number lines are dropped.
func Text(html []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing document: %w", err)
	}

	doc.Find("script, style, noscript, head, ix\\:header").Remove()

	// Block-level boundaries matter: without explicit breaks, adjacent
	// table cells and paragraphs would fuse into one token.
	doc.Find("p, div, tr, li, h1, h2, h3, h4, h5, h6, br").
		AfterHtml("\n")

	return normalize(doc.Text()), nil
}

// normalize collapses whitespace and strips pagination noise line by line.
func normalize(text string) string {
	var b strings.Builder
	blank := true

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(whitespaceRun.ReplaceAllString(line, " "))
		if line == "" {
			// Collapse runs of blank lines to a single paragraph break.
			if !blank {
				b.WriteString("\n")
				blank = true
			}
			continue
		}
		if pageNumberLine.MatchString(line) {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
		blank = false
	}

	return strings.TrimSpace(b.String())
}
