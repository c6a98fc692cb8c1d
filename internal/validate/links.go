package validate

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// BrokenLink is one internal hyperlink that points at a page which
// does not exist in the current plan.
type BrokenLink struct {
	Href     string `json:"href"`
	LinkText string `json:"link_text"`
}

// CheckLinks audits every page's internal links against the set of
// valid sibling targets ("<id>.html"). Pages with no broken links are
// absent from the result, so `len(result) == 0` means the whole site
// links cleanly.
func CheckLinks(pages map[string]string) map[string][]BrokenLink {
	valid := make(map[string]bool, len(pages))
	for id := range pages {
		valid[id+".html"] = true
	}

	broken := make(map[string][]BrokenLink)
	for id, src := range pages {
		doc, err := html.Parse(strings.NewReader(src))
		if err != nil {
			continue
		}
		var entries []BrokenLink
		walk(doc, func(n *html.Node) {
			if n.Type != html.ElementNode || n.DataAtom != atom.A {
				return
			}
			href := strings.TrimSpace(attr(n, "href"))
			target, internal := normalizeInternalHref(href)
			if !internal || valid[target] {
				return
			}
			entries = append(entries, BrokenLink{
				Href:     href,
				LinkText: textContent(n),
			})
		})
		if len(entries) > 0 {
			broken[id] = entries
		}
	}
	return broken
}

// normalizeInternalHref reduces an href to a sibling-page target.
// External, protocol, mailto/tel and fragment-only links are not
// internal; neither is anything that does not end in .html once query
// and fragment are stripped.
func normalizeInternalHref(href string) (string, bool) {
	if href == "" {
		return "", false
	}
	lower := strings.ToLower(href)
	switch {
	case strings.HasPrefix(lower, "http://"),
		strings.HasPrefix(lower, "https://"),
		strings.HasPrefix(lower, "//"),
		strings.HasPrefix(lower, "mailto:"),
		strings.HasPrefix(lower, "tel:"),
		strings.HasPrefix(lower, "javascript:"),
		strings.HasPrefix(lower, "data:"),
		strings.HasPrefix(href, "#"):
		return "", false
	}

	target := href
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target = target[:i]
	}
	target = strings.TrimPrefix(target, "./")
	if target == "" || !strings.HasSuffix(strings.ToLower(target), ".html") {
		return "", false
	}
	return target, true
}
