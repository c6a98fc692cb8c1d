// Package validate checks generated HTML documents: structural rules,
// accessibility defects and cross-page link integrity.
package validate

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Rules is the configurable structural rule set. Evaluation order is
// fixed (html, head, body, title, external-script) so issue ordering is
// deterministic.
type Rules struct {
	RequireHTML           bool
	RequireHead           bool
	RequireBody           bool
	RequireTitle          bool
	MaxTitleLength        int
	ForbidExternalScripts bool
}

// DefaultRules enables every rule with an 80-character title bound.
func DefaultRules() Rules {
	return Rules{
		RequireHTML:           true,
		RequireHead:           true,
		RequireBody:           true,
		RequireTitle:          true,
		MaxTitleLength:        80,
		ForbidExternalScripts: true,
	}
}

// Report is the outcome of one structural validation pass.
type Report struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}

// Structural validates a document against the enabled rules. Each
// failing rule contributes exactly one issue string.
//
// Tag-presence rules are checked against the source text: the parser
// synthesizes html/head/body nodes for fragments, so the DOM cannot
// tell an explicit tag from an implied one. Title and script rules use
// the parsed tree.
func Structural(src string, rules Rules) Report {
	var issues []string
	lower := strings.ToLower(src)

	if rules.RequireHTML && !strings.Contains(lower, "<html") {
		issues = append(issues, "missing <html> tag")
	}
	if rules.RequireHead && !strings.Contains(lower, "<head") {
		issues = append(issues, "missing <head> section")
	}
	if rules.RequireBody && !strings.Contains(lower, "<body") {
		issues = append(issues, "missing <body> section")
	}

	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		doc = nil
	}

	if rules.RequireTitle {
		title := ""
		if doc != nil {
			title = strings.TrimSpace(findTitle(doc))
		}
		switch {
		case title == "":
			issues = append(issues, "missing or empty <title>")
		case rules.MaxTitleLength > 0 && len(title) > rules.MaxTitleLength:
			issues = append(issues, fmt.Sprintf("<title> longer than %d characters", rules.MaxTitleLength))
		}
	}

	if rules.ForbidExternalScripts && doc != nil {
		if src := findExternalScript(doc); src != "" {
			issues = append(issues, fmt.Sprintf("external script not allowed: %s", src))
		}
	}

	return Report{Valid: len(issues) == 0, Issues: issues}
}

// findTitle returns the first <title> text.
func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		if n.FirstChild != nil {
			return n.FirstChild.Data
		}
		return ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// findExternalScript returns the first http(s) script src, or "".
func findExternalScript(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Script {
		for _, a := range n.Attr {
			if a.Key != "src" {
				continue
			}
			v := strings.TrimSpace(strings.ToLower(a.Val))
			if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
				return strings.TrimSpace(a.Val)
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if s := findExternalScript(c); s != "" {
			return s
		}
	}
	return ""
}

// attr returns the value of the named attribute, or "".
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// hasAttr reports whether the attribute exists at all.
func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// walk visits every node in document order.
func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// textContent collects the concatenated text under a node.
func textContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return strings.TrimSpace(b.String())
}
