package reply

import (
	"regexp"
	"strings"
)

var (
	numberedHeadingRE = regexp.MustCompile(`###\s+(\d+\.?\s+\*\*.*?\*\*)`)
	dashBulletRE      = regexp.MustCompile(`(?m)^-\s+`)
	blankRunRE        = regexp.MustCompile(`\n{3,}`)
	sourcesRE         = regexp.MustCompile(`(?im)^[ \t]*(?:#+[ \t]*)?(?:\*\*)?fontes(?:\*\*)?[ \t]*:.*$|^[ \t]*#+[ \t]*fontes[ \t]*$`)
)

// Format rewrites webhook Markdown for display: numbered "###" headings are
// promoted to "##", "-" bullets become "*", runs of blank lines collapse to
// one, and a trailing "Fontes:" section is dropped.
func Format(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = stripSources(text)
	text = numberedHeadingRE.ReplaceAllString(text, "## $1")
	text = dashBulletRE.ReplaceAllString(text, "* ")
	text = blankRunRE.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// stripSources removes the last "Fontes:" heading line and everything after
// it, unless that would leave nothing.
func stripSources(text string) string {
	locs := sourcesRE.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return text
	}
	cut := locs[len(locs)-1][0]
	head := strings.TrimRight(text[:cut], " \t\n")
	if head == "" {
		return text
	}
	return head
}
