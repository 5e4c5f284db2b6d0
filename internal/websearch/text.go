package websearch

import (
	"fmt"
	"strings"
)

// Text renders the result set as plain text for display.
func (rs *ResultSet) Text() string {
	if rs == nil {
		return ""
	}
	var sb strings.Builder
	if rs.Answer != "" {
		sb.WriteString(rs.Answer)
		sb.WriteString("\n\n")
	}
	if len(rs.Results) == 0 {
		fmt.Fprintf(&sb, "No web results for %q.\n", rs.Query)
	} else {
		sb.WriteString("Sources:\n")
		for i, r := range rs.Results {
			fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
			if r.Content != "" {
				fmt.Fprintf(&sb, "   %s\n", r.Content)
			}
		}
	}
	if len(rs.Images) > 0 {
		sb.WriteString("\nImages:\n")
		for _, u := range rs.Images {
			fmt.Fprintf(&sb, "- %s\n", u)
		}
	}
	return strings.TrimSpace(sb.String())
}
