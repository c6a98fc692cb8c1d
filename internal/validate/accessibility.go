package validate

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// input types that take no user-visible value and need no label.
var unlabeledInputTypes = map[string]bool{
	"hidden": true,
	"submit": true,
	"button": true,
	"reset":  true,
}

var outlineRemovalPattern = regexp.MustCompile(`(?i)outline\s*:\s*(none|0)(?:[^0-9.]|$)`)

// Accessibility audits a document for a fixed set of defects: missing
// main landmark, unlabeled form controls, missing image alt text and
// removed focus outlines. An empty result means the page passes. A
// parse failure is reported as an issue, not returned as an error.
func Accessibility(src string) []string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return []string{fmt.Sprintf("could not parse HTML for accessibility audit: %v", err)}
	}

	var issues []string

	if !hasMainLandmark(doc) {
		issues = append(issues, "no <main> landmark element")
	}

	ids := collectIDs(doc)
	labelFor := collectLabelTargets(doc)

	if offenders := unlabeledControls(doc, ids, labelFor); len(offenders) > 0 {
		issues = append(issues, "form controls without accessible labels: "+strings.Join(offenders, ", "))
	}

	if offenders := imagesWithoutAlt(doc); len(offenders) > 0 {
		issues = append(issues, "images without alt text: "+strings.Join(offenders, ", "))
	}

	if outlineRemoved(doc) {
		issues = append(issues, "focus outline removed (outline: none or outline: 0)")
	}

	return issues
}

func hasMainLandmark(doc *html.Node) bool {
	found := false
	walk(doc, func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Main {
			found = true
		}
	})
	return found
}

// collectIDs gathers every element id in the document, for
// aria-labelledby resolution.
func collectIDs(doc *html.Node) map[string]bool {
	ids := make(map[string]bool)
	walk(doc, func(n *html.Node) {
		if n.Type == html.ElementNode {
			if id := attr(n, "id"); id != "" {
				ids[id] = true
			}
		}
	})
	return ids
}

// collectLabelTargets gathers the ids referenced by <label for=...>.
func collectLabelTargets(doc *html.Node) map[string]bool {
	targets := make(map[string]bool)
	walk(doc, func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Label {
			if f := attr(n, "for"); f != "" {
				targets[f] = true
			}
		}
	})
	return targets
}

// unlabeledControls returns a tag(+id) descriptor for every form
// control with no accessible label.
func unlabeledControls(doc *html.Node, ids, labelFor map[string]bool) []string {
	var offenders []string
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.DataAtom {
		case atom.Input, atom.Select, atom.Textarea:
		default:
			return
		}
		if n.DataAtom == atom.Input && unlabeledInputTypes[strings.ToLower(attr(n, "type"))] {
			return
		}
		if controlIsLabeled(n, ids, labelFor) {
			return
		}
		desc := n.Data
		if id := attr(n, "id"); id != "" {
			desc += "#" + id
		}
		offenders = append(offenders, desc)
	})
	return offenders
}

func controlIsLabeled(n *html.Node, ids, labelFor map[string]bool) bool {
	if strings.TrimSpace(attr(n, "aria-label")) != "" {
		return true
	}
	if ref := strings.TrimSpace(attr(n, "aria-labelledby")); ref != "" {
		// Any one resolving referenced id labels the control; dangling
		// references fall through to the remaining mechanisms.
		for _, id := range strings.Fields(ref) {
			if ids[id] {
				return true
			}
		}
	}
	if id := attr(n, "id"); id != "" && labelFor[id] {
		return true
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Label {
			return true
		}
	}
	return false
}

// imagesWithoutAlt returns a descriptor for every visible image with
// missing or empty alt text. Decorative images (aria-hidden or
// role=presentation) are exempt.
func imagesWithoutAlt(doc *html.Node) []string {
	var offenders []string
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.DataAtom != atom.Img {
			return
		}
		if strings.EqualFold(attr(n, "aria-hidden"), "true") {
			return
		}
		if strings.EqualFold(attr(n, "role"), "presentation") {
			return
		}
		if hasAttr(n, "alt") && strings.TrimSpace(attr(n, "alt")) != "" {
			return
		}
		desc := "img"
		if src := attr(n, "src"); src != "" {
			desc = fmt.Sprintf("img[src=%s]", src)
		}
		offenders = append(offenders, desc)
	})
	return offenders
}

// outlineRemoved scans inline style attributes and <style> blocks for
// blanket focus-outline removal.
func outlineRemoved(doc *html.Node) bool {
	removed := false
	walk(doc, func(n *html.Node) {
		if removed || n.Type != html.ElementNode {
			return
		}
		if s := attr(n, "style"); s != "" && outlineRemovalPattern.MatchString(s) {
			removed = true
			return
		}
		if n.DataAtom == atom.Style {
			if outlineRemovalPattern.MatchString(textContent(n)) {
				removed = true
			}
		}
	})
	return removed
}
