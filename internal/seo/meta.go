// Package seo splices model-produced meta tags into built pages and
// provides local sitemap/robots fallbacks for export.
package seo

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/jfjoao12/website-autobuilder/internal/domain"
)

var metaKeyPattern = regexp.MustCompile(`(?i)(?:property|name)\s*=\s*["']([^"']+)["']`)

// InjectMeta splices the page's Open Graph, Twitter and extra tags
// before </head>. Tags whose property/name is already present in the
// document are skipped, so repeated injection is idempotent. Pages
// without a </head> are returned unchanged.
func InjectMeta(src string, meta *domain.PageMeta) string {
	if meta == nil {
		return src
	}

	var tags []string
	tags = append(tags, meta.OpenGraph...)
	tags = append(tags, meta.Twitter...)
	tags = append(tags, meta.Extra...)
	if len(tags) == 0 {
		return src
	}

	idx := headCloseIndex(src)
	if idx < 0 {
		return src
	}

	lower := strings.ToLower(src)
	var b strings.Builder
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || tagPresent(lower, tag) {
			continue
		}
		b.WriteString("    ")
		b.WriteString(tag)
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return src
	}

	return src[:idx] + b.String() + src[idx:]
}

// headCloseIndex returns the offset of </head>, case-insensitive.
func headCloseIndex(src string) int {
	return strings.Index(strings.ToLower(src), "</head>")
}

// tagPresent reports whether the document already carries a tag with
// the same property/name key, or the identical tag text.
func tagPresent(lowerSrc, tag string) bool {
	if m := metaKeyPattern.FindStringSubmatch(tag); m != nil {
		key := strings.ToLower(m[1])
		if strings.Contains(lowerSrc, `property="`+key+`"`) ||
			strings.Contains(lowerSrc, `name="`+key+`"`) ||
			strings.Contains(lowerSrc, `property='`+key+`'`) ||
			strings.Contains(lowerSrc, `name='`+key+`'`) {
			return true
		}
	}
	return strings.Contains(lowerSrc, strings.ToLower(tag))
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

// BuildSitemap renders a sitemap for the page ids, used when the
// model's SEO pack is absent or unusable.
func BuildSitemap(baseURL string, ids []string) string {
	base := strings.TrimRight(baseURL, "/")
	set := sitemapURLSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, id := range ids {
		set.URLs = append(set.URLs, sitemapURL{Loc: fmt.Sprintf("%s/%s.html", base, id)})
	}
	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return ""
	}
	return xml.Header + string(out) + "\n"
}

// BuildRobots renders a permissive robots.txt pointing at the sitemap.
func BuildRobots(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	return fmt.Sprintf("User-agent: *\nAllow: /\n\nSitemap: %s/sitemap.xml\n", base)
}
