package websearch

import (
	"strings"

	"golang.org/x/net/html"
)

// CleanHTML reduces an HTML document to its visible text. Input that does
// not look like markup is returned with whitespace collapsed.
func CleanHTML(s string) string {
	if !strings.Contains(s, "<") || !strings.Contains(s, ">") {
		return collapseSpace(s)
	}

	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseSpace(sb.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "noscript", "template":
				skip++
			case "p", "br", "div", "li", "h1", "h2", "h3", "h4", "tr":
				sb.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "noscript", "template":
				if skip > 0 {
					skip--
				}
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
				sb.WriteByte(' ')
			}
		}
	}
}

// collapseSpace trims every line and drops blank ones.
func collapseSpace(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if f := strings.Join(strings.Fields(line), " "); f != "" {
			lines = append(lines, f)
		}
	}
	return strings.Join(lines, "\n")
}
