package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jfjoao12/website-autobuilder/internal/config"
	"github.com/jfjoao12/website-autobuilder/internal/domain"
	"github.com/jfjoao12/website-autobuilder/internal/gateway"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:     config.ServerConfig{BaseURL: "http://localhost:8080"},
		Model:      config.ModelConfig{Default: "mock-model"},
		Generation: config.GenerationConfig{MaxFixAttempts: 2, StreamBuffer: 8},
	}
}

func newTestService(gw gateway.Client) *GenerationService {
	return NewGenerationService(testConfig(), zap.NewNop(), gw, nil)
}

func testBrief() domain.SiteBrief {
	return domain.SiteBrief{Topic: "artisan bakery", PageCount: 2, Model: "mock-model"}
}

// pageDoc builds a document that passes structural validation and the
// accessibility audit, linking to the given internal hrefs.
func pageDoc(title string, hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><head><title>" + title + "</title><style>body{font-family:serif}</style></head><body><header><nav>")
	for _, h := range hrefs {
		b.WriteString(`<a href="` + h + `">` + h + `</a>`)
	}
	b.WriteString("</nav></header><main><h1>" + title + "</h1></main><footer>fin</footer></body></html>")
	return b.String()
}

const (
	chromeJSON  = `{"site_title": "Crumb & Crust", "header": "<header><nav></nav></header>", "footer": "<footer>est. 2020</footer>"}`
	siteMapJSON = `{"site_title": "Crumb & Crust", "pages": [{"id": "home", "title": "Home", "purpose": "introduce the bakery"}, {"id": "about", "title": "About", "purpose": "tell the story"}]}`
	tokensJSON  = `{"primary": "#7a4b2a", "background": "#fff8f0"}`
	planJSON    = `{"outline": ["hero", "highlights"], "components": ["card grid"]}`
	seoJSON     = `{"sitemap": "<?xml version=\"1.0\"?><urlset><url><loc>home</loc></url></urlset>", "robots": "User-agent: *\nAllow: /", "pages": [{"page_id": "home", "extra": ["<meta name=\"description\" content=\"Fresh bread daily\">"]}]}`
)

// script dispatches mock responses by stage, recognised from prompt
// markers, and counts the repair calls it serves.
type script struct {
	mu        sync.Mutex
	fixes     int
	patches   int
	regens    int
	linkFixes int

	buildHTML func(prompt string) string
	fixHTML   string
	patchHTML string
	regenHTML string
	linkHTML  string
}

func (sc *script) fn(req gateway.Request) (string, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	p := req.Prompt
	switch {
	case strings.Contains(p, "IMPORTANT: your previous attempt"):
		sc.regens++
		return sc.regenHTML, nil
	case strings.Contains(p, "shared site chrome"):
		return chromeJSON, nil
	case strings.Contains(p, "Plan a static website"):
		return siteMapJSON, nil
	case strings.Contains(p, "cohesive visual design"):
		return tokensJSON, nil
	case strings.Contains(p, "Produce the page plan as JSON"):
		return planJSON, nil
	case strings.Contains(p, "failed validation"):
		sc.fixes++
		return sc.fixHTML, nil
	case strings.Contains(p, "accessibility defects"):
		sc.patches++
		return sc.patchHTML, nil
	case strings.Contains(p, "links to pages that do not exist"):
		sc.linkFixes++
		return sc.linkHTML, nil
	case strings.Contains(p, "Produce SEO assets"):
		return seoJSON, nil
	case strings.Contains(p, "Build the "):
		return sc.buildHTML(p), nil
	}
	return "", errors.New("unrecognised prompt: " + p[:40])
}

func waitDone(t *testing.T, run *Run) {
	t.Helper()
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish in time")
	}
}

func TestRunHappyPath(t *testing.T) {
	sc := &script{
		buildHTML: func(string) string {
			return "<think>layout first</think>" + pageDoc("Page", "home.html", "about.html")
		},
	}
	svc := newTestService(&gateway.MockClient{Fn: sc.fn})

	run, err := svc.StartRun("sess-1", testBrief())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	waitDone(t, run)

	if got := run.Status(); got != domain.RunStatusCompleted {
		t.Fatalf("status = %s, want completed", got)
	}
	result, err := run.Result()
	if err != nil {
		t.Fatalf("Result failed: %v", err)
	}
	if !result.AllValid || len(result.Pages) != 2 {
		t.Fatalf("result = allValid %v, %d pages", result.AllValid, len(result.Pages))
	}
	if result.SiteTitle != "Crumb & Crust" {
		t.Errorf("site title = %q", result.SiteTitle)
	}
	if result.Chrome == nil || result.Chrome.Footer == "" {
		t.Error("chrome missing from result")
	}
	if result.Tokens == nil || result.Tokens.Primary != "#7a4b2a" {
		t.Errorf("tokens not carried through: %+v", result.Tokens)
	}
	if result.Tokens.Text == "" {
		t.Error("missing token values not defaulted")
	}
	if result.SEO == nil {
		t.Fatal("SEO pack missing from result")
	}

	home := result.Pages[0]
	if home.ID != "home" || !home.Valid {
		t.Fatalf("home page = %+v", home)
	}
	if !strings.Contains(home.HTML, `content="Fresh bread daily"`) {
		t.Error("SEO meta not injected into home page")
	}
	if len(home.Thinking) == 0 || home.Thinking[0] != "layout first" {
		t.Errorf("thinking not captured: %v", home.Thinking)
	}

	snap := run.Snapshot()
	if len(snap.Log) == 0 {
		t.Error("run log empty")
	}
	found := false
	for _, th := range snap.Stream.History {
		if th == "layout first" {
			found = true
		}
	}
	if !found {
		t.Errorf("thought history = %v", snap.Stream.History)
	}
	if sc.fixes != 0 || sc.patches != 0 || sc.regens != 0 || sc.linkFixes != 0 {
		t.Errorf("unexpected repair calls: %+v", sc)
	}
}

func TestFixLoopExhaustsAttemptsThenRegenerates(t *testing.T) {
	// Missing <title> only, so the accessibility audit stays clean and
	// the repair path is purely structural.
	noTitle := "<html><head></head><body><main><h1>x</h1></main></body></html>"
	sc := &script{
		buildHTML: func(string) string { return noTitle },
		fixHTML:   noTitle,
		regenHTML: noTitle,
	}
	svc := newTestService(&gateway.MockClient{Fn: sc.fn})

	brief := testBrief()
	brief.PageCount = 2
	run, err := svc.StartRun("sess-1", brief)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	waitDone(t, run)

	// Invalid pages never fail the run.
	if got := run.Status(); got != domain.RunStatusCompleted {
		t.Fatalf("status = %s, want completed", got)
	}
	result, _ := run.Result()
	if result.AllValid {
		t.Error("AllValid despite invalid pages")
	}
	for _, p := range result.Pages {
		if p.Valid {
			t.Errorf("page %s marked valid", p.ID)
		}
		if len(p.Issues) == 0 {
			t.Errorf("page %s carries no issues", p.ID)
		}
	}
	// Two fix attempts and one regeneration per page, no more.
	if sc.fixes != 4 {
		t.Errorf("fix calls = %d, want 4 (2 per page)", sc.fixes)
	}
	if sc.regens != 2 {
		t.Errorf("regen calls = %d, want 2 (1 per page)", sc.regens)
	}
}

func TestFixLoopStopsOnFirstSuccess(t *testing.T) {
	sc := &script{
		buildHTML: func(string) string {
			return "<html><head></head><body><main><h1>x</h1></main></body></html>"
		},
		fixHTML: pageDoc("Fixed", "home.html", "about.html"),
	}
	svc := newTestService(&gateway.MockClient{Fn: sc.fn})

	run, err := svc.StartRun("sess-1", testBrief())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	waitDone(t, run)

	result, _ := run.Result()
	if !result.AllValid {
		t.Error("pages should be valid after the first fix")
	}
	if sc.fixes != 2 {
		t.Errorf("fix calls = %d, want 2 (1 per page)", sc.fixes)
	}
	if sc.regens != 0 {
		t.Errorf("regen calls = %d, want 0", sc.regens)
	}
}

func TestAccessibilityPatchResolvesFindings(t *testing.T) {
	// Structurally valid but no <main> landmark.
	noMain := "<html><head><title>T</title></head><body><p>text</p></body></html>"
	sc := &script{
		buildHTML: func(string) string { return noMain },
		patchHTML: pageDoc("Patched", "home.html", "about.html"),
	}
	svc := newTestService(&gateway.MockClient{Fn: sc.fn})

	run, err := svc.StartRun("sess-1", testBrief())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	waitDone(t, run)

	result, _ := run.Result()
	if !result.AllValid {
		for _, p := range result.Pages {
			t.Logf("page %s issues: %v", p.ID, p.Issues)
		}
		t.Error("patched pages should be valid")
	}
	if sc.patches != 2 {
		t.Errorf("patch calls = %d, want 2 (1 per page)", sc.patches)
	}
	if sc.fixes != 0 {
		t.Errorf("fix calls = %d, want 0", sc.fixes)
	}
}

func TestUnresolvedAccessibilityInvalidatesPage(t *testing.T) {
	noMain := "<html><head><title>T</title></head><body><p>text</p></body></html>"
	sc := &script{
		buildHTML: func(string) string { return noMain },
		patchHTML: noMain,
		regenHTML: noMain,
	}
	svc := newTestService(&gateway.MockClient{Fn: sc.fn})

	run, err := svc.StartRun("sess-1", testBrief())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	waitDone(t, run)

	result, _ := run.Result()
	for _, p := range result.Pages {
		if p.Valid {
			t.Errorf("page %s valid despite unresolved findings", p.ID)
		}
		tagged := false
		for _, is := range p.Issues {
			if strings.HasPrefix(is, "Accessibility: ") {
				tagged = true
			}
		}
		if !tagged {
			t.Errorf("page %s issues carry no accessibility tag: %v", p.ID, p.Issues)
		}
	}
}

func TestBrokenLinkRepair(t *testing.T) {
	sc := &script{
		buildHTML: func(string) string {
			// Links to a page that is not in the plan.
			return pageDoc("Page", "home.html", "contact.html")
		},
		linkHTML: pageDoc("Page", "home.html", "about.html"),
	}
	svc := newTestService(&gateway.MockClient{Fn: sc.fn})

	run, err := svc.StartRun("sess-1", testBrief())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	waitDone(t, run)

	if sc.linkFixes != 2 {
		t.Errorf("link-fix calls = %d, want 2 (both pages link to contact.html)", sc.linkFixes)
	}
	result, _ := run.Result()
	for _, p := range result.Pages {
		if strings.Contains(p.HTML, "contact.html") {
			t.Errorf("page %s still links to contact.html", p.ID)
		}
		if !strings.Contains(p.HTML, "about.html") {
			t.Errorf("page %s lost its repaired link", p.ID)
		}
	}
}

func TestChromeFailureIsFatal(t *testing.T) {
	sc := &script{buildHTML: func(string) string { return "" }}
	base := sc.fn
	fn := func(req gateway.Request) (string, error) {
		if strings.Contains(req.Prompt, "shared site chrome") {
			return "not json at all", nil
		}
		return base(req)
	}
	svc := newTestService(&gateway.MockClient{Fn: fn})

	run, err := svc.StartRun("sess-1", testBrief())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	waitDone(t, run)

	if got := run.Status(); got != domain.RunStatusFailed {
		t.Fatalf("status = %s, want failed", got)
	}
	if _, err := run.Result(); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Result error = %v, want ErrNotFound", err)
	}
}

func TestSEOFailureDegradesGracefully(t *testing.T) {
	sc := &script{
		buildHTML: func(string) string { return pageDoc("Page", "home.html", "about.html") },
	}
	base := sc.fn
	fn := func(req gateway.Request) (string, error) {
		if strings.Contains(req.Prompt, "Produce SEO assets") {
			return "", errors.New("model unavailable")
		}
		return base(req)
	}
	svc := newTestService(&gateway.MockClient{Fn: fn})

	run, err := svc.StartRun("sess-1", testBrief())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	waitDone(t, run)

	if got := run.Status(); got != domain.RunStatusCompleted {
		t.Fatalf("status = %s, want completed", got)
	}
	result, _ := run.Result()
	if result.SEO != nil {
		t.Error("SEO artifacts present despite failure")
	}
	if !result.AllValid {
		t.Error("pages should still be valid without SEO")
	}
}

func TestCancelStopsRunCleanly(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	sc := &script{buildHTML: func(string) string { return pageDoc("Page") }}
	base := sc.fn
	fn := func(req gateway.Request) (string, error) {
		if strings.Contains(req.Prompt, "shared site chrome") {
			once.Do(func() { close(started) })
			<-release
		}
		return base(req)
	}
	svc := newTestService(&gateway.MockClient{Fn: fn})

	run, err := svc.StartRun("sess-1", testBrief())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	<-started

	if _, err := run.Result(); !errors.Is(err, domain.ErrRunActive) {
		t.Errorf("Result during run = %v, want ErrRunActive", err)
	}

	// Cancel while the chrome call is in flight, then let it return.
	// The next gateway call observes the dead context and the run exits
	// as cancelled, not failed.
	run.Cancel()
	close(release)
	waitDone(t, run)

	if got := run.Status(); got != domain.RunStatusCancelled {
		t.Fatalf("status = %s, want cancelled", got)
	}
	snap := run.Snapshot()
	if len(snap.Pages) != 0 {
		t.Errorf("pages mutated after cancellation: %d", len(snap.Pages))
	}

	// The session is free again: a fresh run completes normally.
	run2, err := svc.StartRun("sess-1", testBrief())
	if err != nil {
		t.Fatalf("second StartRun failed: %v", err)
	}
	waitDone(t, run2)
	if got := run2.Status(); got != domain.RunStatusCompleted {
		t.Errorf("second run status = %s, want completed", got)
	}
}

func TestStartRunRejectsInvalidBrief(t *testing.T) {
	svc := newTestService(&gateway.MockClient{})
	_, err := svc.StartRun("sess-1", domain.SiteBrief{PageCount: 2})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestGetAndCancelRunByID(t *testing.T) {
	sc := &script{buildHTML: func(string) string { return pageDoc("Page", "home.html", "about.html") }}
	svc := newTestService(&gateway.MockClient{Fn: sc.fn})

	run, err := svc.StartRun("sess-1", testBrief())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	got, err := svc.GetRun(run.ID)
	if err != nil || got.ID != run.ID {
		t.Fatalf("GetRun = %v, %v", got, err)
	}
	if err := svc.CancelRun(run.ID); err != nil {
		t.Fatalf("CancelRun failed: %v", err)
	}
	waitDone(t, run)

	if _, err := svc.GetRun("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetRun(missing) = %v, want ErrNotFound", err)
	}
}

// countingGateway tracks how many Complete calls overlap, without any
// internal locking that would serialize callers and mask overlap.
type countingGateway struct {
	inFlight atomic.Int64
	peak     atomic.Int64
}

func (g *countingGateway) Complete(ctx context.Context, req gateway.Request) (string, error) {
	cur := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		p := g.peak.Load()
		if cur <= p || g.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	select {
	case <-time.After(2 * time.Millisecond):
	case <-ctx.Done():
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	// Unparsable, so every run fails after its first call.
	return "not json", nil
}

func (g *countingGateway) Stream(ctx context.Context, req gateway.Request) (<-chan gateway.Chunk, error) {
	return nil, errors.New("streaming not scripted")
}

func (g *countingGateway) ListModels(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestConcurrentStartRunsKeepOneRunPerSession(t *testing.T) {
	gw := &countingGateway{}
	svc := newTestService(gw)

	var wg sync.WaitGroup
	runs := make([]*Run, 32)
	for i := range runs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			run, err := svc.StartRun("sess-1", testBrief())
			if err != nil {
				t.Errorf("StartRun failed: %v", err)
				return
			}
			runs[i] = run
		}(i)
	}
	wg.Wait()
	for _, run := range runs {
		if run != nil {
			waitDone(t, run)
		}
	}

	if p := gw.peak.Load(); p > 1 {
		t.Errorf("%d pipelines in flight simultaneously for one session, want at most 1", p)
	}
}

func TestSubscribeAfterFinishWithoutBuffer(t *testing.T) {
	svc := newTestService(&countingGateway{})
	run, err := svc.StartRun("sess-1", testBrief())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	waitDone(t, run)

	ch := run.Subscribe(0)
	select {
	case ev, ok := <-ch:
		if !ok || ev.Type != "done" {
			t.Fatalf("first event = %+v (ok=%v), want done", ev, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("terminal event not delivered to unbuffered subscriber")
	}
	if _, ok := <-ch; ok {
		t.Error("channel not closed after terminal event")
	}
}

func TestFailedPageKeepsFailureCause(t *testing.T) {
	sc := &script{buildHTML: func(string) string { return "" }}
	base := sc.fn
	fn := func(req gateway.Request) (string, error) {
		if strings.Contains(req.Prompt, "Build the ") &&
			!strings.Contains(req.Prompt, "IMPORTANT: your previous attempt") {
			return "", errors.New("model overloaded")
		}
		return base(req)
	}
	svc := newTestService(&gateway.MockClient{Fn: fn})

	run, err := svc.StartRun("sess-1", testBrief())
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	waitDone(t, run)

	// Page failures never fail the run.
	if got := run.Status(); got != domain.RunStatusCompleted {
		t.Fatalf("status = %s, want completed", got)
	}
	result, _ := run.Result()
	for _, p := range result.Pages {
		if p.Valid {
			t.Errorf("page %s valid despite failed build", p.ID)
		}
		cause := false
		structural := false
		for _, is := range p.Issues {
			if strings.HasPrefix(is, "generation failed:") {
				cause = true
			}
			if strings.Contains(is, "<html>") {
				structural = true
			}
		}
		if !cause {
			t.Errorf("page %s lost its failure cause: %v", p.ID, p.Issues)
		}
		if !structural {
			t.Errorf("page %s missing recomputed structural issues: %v", p.ID, p.Issues)
		}
	}
}

func TestNormalizePlan(t *testing.T) {
	brief := domain.SiteBrief{Topic: "t", PageCount: 2, Model: "m"}

	plan := &domain.SitePlan{Pages: []domain.PageRef{
		{ID: "Home Page", Title: "Home"},
		{ID: "home-page", Title: "Duplicate"},
		{ID: "", Title: "Our Menu!"},
		{ID: "extra", Title: "Extra"},
	}}
	if err := normalizePlan(plan, brief); err != nil {
		t.Fatalf("normalizePlan failed: %v", err)
	}
	if len(plan.Pages) != 2 {
		t.Fatalf("pages = %d, want 2 (dedupe then truncate)", len(plan.Pages))
	}
	if plan.Pages[0].ID != "home-page" || plan.Pages[1].ID != "our-menu" {
		t.Errorf("ids = %s, %s", plan.Pages[0].ID, plan.Pages[1].ID)
	}

	empty := &domain.SitePlan{Pages: []domain.PageRef{{ID: "!!!", Title: "???"}}}
	if err := normalizePlan(empty, brief); !errors.Is(err, domain.ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Home":              "home",
		"Our Menu!":         "our-menu",
		"  FAQ & Contact  ": "faq-contact",
		"already-kebab":     "already-kebab",
		"!!!":               "",
	}
	for in, want := range cases {
		if got := slugify(in); got != want {
			t.Errorf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
