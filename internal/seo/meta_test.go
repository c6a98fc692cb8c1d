package seo

import (
	"strings"
	"testing"

	"github.com/jfjoao12/website-autobuilder/internal/domain"
)

const pageSrc = `<html><head><title>Sourdough</title>
<meta name="description" content="Fresh bread daily">
</head><body><main></main></body></html>`

func TestInjectMetaSplicesBeforeHeadClose(t *testing.T) {
	meta := &domain.PageMeta{
		PageID:    "home",
		OpenGraph: []string{`<meta property="og:title" content="Sourdough">`},
		Twitter:   []string{`<meta name="twitter:card" content="summary">`},
	}

	out := InjectMeta(pageSrc, meta)

	headEnd := strings.Index(out, "</head>")
	if headEnd < 0 {
		t.Fatal("head lost")
	}
	head := out[:headEnd]
	if !strings.Contains(head, `og:title`) || !strings.Contains(head, `twitter:card`) {
		t.Errorf("tags not spliced into head: %q", head)
	}
}

func TestInjectMetaIdempotent(t *testing.T) {
	meta := &domain.PageMeta{
		PageID:    "home",
		OpenGraph: []string{`<meta property="og:title" content="Sourdough">`},
	}

	once := InjectMeta(pageSrc, meta)
	twice := InjectMeta(once, meta)
	if once != twice {
		t.Error("repeated injection changed the document")
	}
	if strings.Count(twice, "og:title") != 1 {
		t.Errorf("og:title injected %d times", strings.Count(twice, "og:title"))
	}
}

func TestInjectMetaSkipsExistingKeys(t *testing.T) {
	meta := &domain.PageMeta{
		PageID: "home",
		Extra:  []string{`<meta name="description" content="Something else">`},
	}
	out := InjectMeta(pageSrc, meta)
	if strings.Contains(out, "Something else") {
		t.Error("existing description overridden by injection")
	}
}

func TestInjectMetaEdgeCases(t *testing.T) {
	if got := InjectMeta(pageSrc, nil); got != pageSrc {
		t.Error("nil meta should be a no-op")
	}
	if got := InjectMeta(pageSrc, &domain.PageMeta{PageID: "home"}); got != pageSrc {
		t.Error("empty meta should be a no-op")
	}
	headless := `<main>no head here</main>`
	meta := &domain.PageMeta{OpenGraph: []string{`<meta property="og:x" content="y">`}}
	if got := InjectMeta(headless, meta); got != headless {
		t.Error("page without </head> should be unchanged")
	}
}

func TestBuildSitemap(t *testing.T) {
	out := BuildSitemap("http://localhost:8080/", []string{"home", "about"})
	for _, want := range []string{"home.html", "about.html", "urlset", "http://www.sitemaps.org/schemas/sitemap/0.9"} {
		if !strings.Contains(out, want) {
			t.Errorf("sitemap missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "//home.html") {
		t.Error("trailing base slash not trimmed")
	}
}

func TestBuildRobots(t *testing.T) {
	out := BuildRobots("http://localhost:8080")
	if !strings.Contains(out, "User-agent: *") || !strings.Contains(out, "Sitemap: http://localhost:8080/sitemap.xml") {
		t.Errorf("robots.txt malformed:\n%s", out)
	}
}
