package content

import (
	"regexp"
	"strings"
)

// Content longer than summaryMaxLen runes is cut to summaryCutLen runes plus
// an ellipsis.
const (
	summaryMaxLen = 200
	summaryCutLen = 197
	ellipsis      = "..."
)

// structuralLabels marks "label: value" paragraphs used by place records.
// Both the German originals and their English counterparts appear in the wild.
var structuralLabels = []string{
	"Kategorie:", "Bewertung:", "Lage:", "Ort:", "Koordinaten:",
	"Ausstattung:", "Geeignet für:", "Preis:",
	"Category:", "Rating:", "Location:", "Coordinates:",
	"Facilities:", "Suitable for:", "Price:",
}

var (
	reHeadingBlock    = regexp.MustCompile(`(?is)<h[1-6][^>]*>.*?</h[1-6]>`)
	reParagraphBlock  = regexp.MustCompile(`(?is)<p[^>]*>.*?</p>`)
	reAnyTag          = regexp.MustCompile(`(?s)<[^>]+>`)
	reBoldLabelLine   = regexp.MustCompile(`(?m)^\s*\*\*[^*\n]*:\*\*.*$`)
	reMarkdownHeading = regexp.MustCompile(`(?m)^#{2,}[^\n]*$`)
	reMarkdownImage   = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	reBlankLines      = regexp.MustCompile(`\n[ \t]*(\n[ \t]*)+`)
)

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&nbsp;", " ",
)

// deriveSummary produces a plain-text summary from raw event content. The
// pipeline is deterministic: structural blocks are removed, remaining markup
// is stripped, legacy markdown patterns are dropped, blank lines collapse,
// and the result is truncated. A final pass removes any markup the earlier
// stages left behind (entity decoding can reintroduce angle brackets).
func deriveSummary(content string) string {
	s := stripStructuralBlocks(content)
	s = stripMarkup(s)
	s = stripLegacyMarkdown(s)
	s = collapseBlankLines(s)
	s = truncateSummary(s)
	if reAnyTag.MatchString(s) {
		s = strings.TrimSpace(reAnyTag.ReplaceAllString(s, ""))
	}
	return s
}

// stripStructuralBlocks removes HTML headings and the "label: value"
// paragraphs of place records, keeping free-text paragraphs intact.
func stripStructuralBlocks(s string) string {
	s = reHeadingBlock.ReplaceAllString(s, "")
	return reParagraphBlock.ReplaceAllStringFunc(s, func(block string) string {
		inner := strings.TrimSpace(reAnyTag.ReplaceAllString(block, ""))
		for _, label := range structuralLabels {
			if strings.HasPrefix(inner, label) {
				return ""
			}
		}
		return block
	})
}

// stripMarkup drops every remaining tag and decodes the small entity set the
// editors emit.
func stripMarkup(s string) string {
	s = reAnyTag.ReplaceAllString(s, "")
	return entityReplacer.Replace(s)
}

// stripLegacyMarkdown removes the markdown fallback patterns of older place
// records: bold "**Label:**" lines, "##" headings and image syntax.
func stripLegacyMarkdown(s string) string {
	s = reBoldLabelLine.ReplaceAllString(s, "")
	s = reMarkdownHeading.ReplaceAllString(s, "")
	return reMarkdownImage.ReplaceAllString(s, "")
}

func collapseBlankLines(s string) string {
	s = reBlankLines.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

func truncateSummary(s string) string {
	runes := []rune(s)
	if len(runes) <= summaryMaxLen {
		return s
	}
	return string(runes[:summaryCutLen]) + ellipsis
}
