// Package prompt builds the model prompts for every pipeline stage.
// Prompts that expect JSON spell out the exact shape; HTML prompts
// demand a single complete document so repair passes can replace the
// candidate wholesale.
package prompt

import (
	"fmt"
	"strings"

	"github.com/jfjoao12/website-autobuilder/internal/domain"
	"github.com/jfjoao12/website-autobuilder/internal/validate"
)

const htmlGroundRules = `Rules:
- Return ONE complete HTML document, nothing else. No markdown fences, no commentary.
- Include <html>, <head> with a concise <title>, and <body>.
- All CSS inline in a <style> block; all JS inline in <script> blocks. Never load external scripts.
- Include a <main> landmark. Label every form control. Give every meaningful image alt text. Never remove focus outlines.`

// Chrome asks for the shared header/footer fragments as JSON.
func Chrome(brief domain.SiteBrief) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are building a small static website about: %s.\n", brief.Topic)
	if brief.Description != "" {
		fmt.Fprintf(&b, "Additional context: %s\n", brief.Description)
	}
	b.WriteString(`Produce the shared site chrome as JSON with this exact shape:
{"site_title": "...", "header": "<header>...</header>", "footer": "<footer>...</footer>"}
The header and footer are HTML fragments (not full documents). The header contains the site title and a <nav> placeholder; the footer contains a copyright line. Return only JSON.`)
	return b.String()
}

// SiteMap asks for the page plan as JSON. siteTitle is the chrome's
// derived title, used as a hint.
func SiteMap(brief domain.SiteBrief, siteTitle string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan a static website about: %s.\n", brief.Topic)
	if siteTitle != "" {
		fmt.Fprintf(&b, "The site is titled %q.\n", siteTitle)
	}
	fmt.Fprintf(&b, `Produce exactly %d pages as JSON with this exact shape:
{"site_title": "...", "pages": [{"id": "kebab-case-id", "title": "...", "purpose": "..."}]}
Page ids must be unique, lowercase kebab-case, and usable as file names. The first page should be "home". Return only JSON.`, brief.PageCount)
	return b.String()
}

// DesignTokens asks for the shared palette/typography record as JSON.
func DesignTokens(brief domain.SiteBrief, plan *domain.SitePlan) string {
	return fmt.Sprintf(`Choose a cohesive visual design for the website %q (topic: %s).
Produce design tokens as JSON with this exact shape:
{"primary": "#hex", "secondary": "#hex", "accent": "#hex", "background": "#hex", "surface": "#hex", "text": "#hex", "muted": "#hex", "font_heading": "css font stack", "font_body": "css font stack", "radius": "css length", "spacing": "css length", "shadow": "css box-shadow"}
Return only JSON.`, plan.SiteTitle, brief.Topic)
}

// PagePlan asks for one page's outline as JSON.
func PagePlan(brief domain.SiteBrief, plan *domain.SitePlan, page domain.PageRef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are planning the %q page (id: %s) of the website %q about %s.\n",
		page.Title, page.ID, plan.SiteTitle, brief.Topic)
	fmt.Fprintf(&b, "Page purpose: %s\n", page.Purpose)
	b.WriteString("The full site map is:\n")
	writeSiteMapList(&b, plan)
	fmt.Fprintf(&b, `Produce the page plan as JSON with this exact shape:
{"id": %q, "title": %q, "outline": ["section..."], "components": ["component..."], "copy_points": ["point..."], "interactions": ["interaction..."], "seo": "one-sentence meta description"}
Return only JSON.`, page.ID, page.Title)
	return b.String()
}

// PageBuild asks for one page's complete HTML document.
func PageBuild(brief domain.SiteBrief, plan *domain.SitePlan, pagePlan *domain.PagePlan,
	tokens domain.DesignTokens, chrome *domain.SharedChrome) string {

	var b strings.Builder
	fmt.Fprintf(&b, "Build the %q page of the static website %q about %s.\n",
		pagePlan.Title, plan.SiteTitle, brief.Topic)

	b.WriteString("\nPage plan:\n")
	writeList(&b, "Outline", pagePlan.Outline)
	writeList(&b, "Components", pagePlan.Components)
	writeList(&b, "Copy points", pagePlan.CopyPoints)
	writeList(&b, "Interactions", pagePlan.Interactions)

	b.WriteString("\nThe site's pages (link between them with relative hrefs like \"about.html\"):\n")
	writeSiteMapList(&b, plan)

	fmt.Fprintf(&b, "\nUse these design tokens for all styling:\n%s\n", tokensBlock(tokens))

	b.WriteString("\nReuse this shared chrome verbatim, only rewriting the nav links to point at the real pages:\n")
	fmt.Fprintf(&b, "HEADER:\n%s\nFOOTER:\n%s\n", chrome.Header, chrome.Footer)

	b.WriteString("\n" + htmlGroundRules)
	return b.String()
}

// StructuralFix asks for a corrected full document given the exact
// structural issues.
func StructuralFix(html string, issues []string) string {
	var b strings.Builder
	b.WriteString("The HTML document below failed validation.\n\nIssues:\n")
	writeNumbered(&b, issues)
	b.WriteString("\nDocument:\n")
	b.WriteString(html)
	b.WriteString("\n\nReturn the corrected COMPLETE HTML document and nothing else. Fix every listed issue; change nothing that already works.")
	return b.String()
}

// AccessibilityPatch asks for a corrected full document given the
// audit findings.
func AccessibilityPatch(html string, issues []string) string {
	var b strings.Builder
	b.WriteString("The HTML document below has accessibility defects.\n\nFindings:\n")
	writeNumbered(&b, issues)
	b.WriteString("\nDocument:\n")
	b.WriteString(html)
	b.WriteString("\n\nReturn the corrected COMPLETE HTML document and nothing else. Resolve every finding; keep content and design unchanged.")
	return b.String()
}

// Regenerate appends the explicit fix-these-problems reminder to the
// original build prompt for the single extra regeneration attempt.
func Regenerate(buildPrompt string, issues []string) string {
	var b strings.Builder
	b.WriteString(buildPrompt)
	b.WriteString("\n\nIMPORTANT: your previous attempt had these problems. Fix all of them this time:\n")
	writeNumbered(&b, issues)
	return b.String()
}

// LinkFix asks for a corrected document whose internal links all
// resolve, supplying the full valid id -> title map.
func LinkFix(html string, plan *domain.SitePlan, broken []validate.BrokenLink) string {
	var b strings.Builder
	b.WriteString("The HTML document below links to pages that do not exist.\n\nBroken links:\n")
	for i, bl := range broken {
		fmt.Fprintf(&b, "%d. href=%q (link text: %q)\n", i+1, bl.Href, bl.LinkText)
	}
	b.WriteString("\nThe ONLY valid pages are:\n")
	for _, p := range plan.Pages {
		fmt.Fprintf(&b, "- %s.html (%s)\n", p.ID, p.Title)
	}
	b.WriteString("\nDocument:\n")
	b.WriteString(html)
	b.WriteString("\n\nReturn the corrected COMPLETE HTML document and nothing else. Point every broken link at the closest valid page; change nothing else.")
	return b.String()
}

// SEOPack asks for the site-wide SEO artifacts as JSON.
func SEOPack(brief domain.SiteBrief, plan *domain.SitePlan, baseURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Produce SEO assets for the website %q about %s, served from %s.\nPages:\n",
		plan.SiteTitle, brief.Topic, baseURL)
	writeSiteMapList(&b, plan)
	b.WriteString(`Produce JSON with this exact shape:
{"sitemap": "<?xml ...urlset...>", "robots": "User-agent...", "pages": [{"page_id": "...", "open_graph": ["<meta property=\"og:...\" content=\"...\">"], "twitter": ["<meta name=\"twitter:...\" content=\"...\">"], "extra": ["<meta name=\"description\" content=\"...\">"]}]}
Cover every page id. Return only JSON.`)
	return b.String()
}

func writeSiteMapList(b *strings.Builder, plan *domain.SitePlan) {
	for _, p := range plan.Pages {
		fmt.Fprintf(b, "- %s.html: %s (%s)\n", p.ID, p.Title, p.Purpose)
	}
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func writeNumbered(b *strings.Builder, items []string) {
	for i, it := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, it)
	}
}

func tokensBlock(t domain.DesignTokens) string {
	return fmt.Sprintf(`primary: %s
secondary: %s
accent: %s
background: %s
surface: %s
text: %s
muted: %s
heading font: %s
body font: %s
radius: %s
spacing: %s
shadow: %s`, t.Primary, t.Secondary, t.Accent, t.Background, t.Surface,
		t.Text, t.Muted, t.FontHead, t.FontBody, t.Radius, t.Spacing, t.Shadow)
}
