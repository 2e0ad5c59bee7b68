package ingest

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractText converts an HTML fragment to a Markdown-ish plain-text
// rendering suitable for fixed-width display: paragraphs and divs become
// blank-line-separated blocks, anchors become [text](href) unless the
// visible text already is the href, images become ![alt](src), and
// everything else is reduced to stripped text.
func ExtractText(fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	return strings.TrimSpace(textOf(doc.Find("body"), "\n")), nil
}

func textOf(sel *goquery.Selection, sep string) string {
	var parts []string
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		switch goquery.NodeName(child) {
		case "p", "div":
			// Leading newline plus the join separator yields a blank line
			// between blocks.
			parts = append(parts, "\n"+textOf(child, " "))
		case "a":
			href, _ := child.Attr("href")
			text := child.Text()
			if text == href {
				parts = append(parts, text)
			} else {
				parts = append(parts, fmt.Sprintf("[%s](%s)", text, href))
			}
		case "img":
			alt, _ := child.Attr("alt")
			src, _ := child.Attr("src")
			parts = append(parts, fmt.Sprintf("![%s](%s)", alt, src))
		default:
			parts = append(parts, strings.TrimSpace(child.Text()))
		}
	})

	kept := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
