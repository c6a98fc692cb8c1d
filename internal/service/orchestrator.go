package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jfjoao12/website-autobuilder/internal/config"
	"github.com/jfjoao12/website-autobuilder/internal/domain"
	"github.com/jfjoao12/website-autobuilder/internal/gateway"
	"github.com/jfjoao12/website-autobuilder/internal/prompt"
	"github.com/jfjoao12/website-autobuilder/internal/repository"
	"github.com/jfjoao12/website-autobuilder/internal/seo"
	"github.com/jfjoao12/website-autobuilder/internal/textproc"
	"github.com/jfjoao12/website-autobuilder/internal/validate"
)

// GenerationService runs site-generation sessions end to end: shared
// chrome, site map, design tokens, per-page build cycles with bounded
// repair, cross-page link repair, SEO pack and the final validation
// sweep. One run per session is in flight at a time; starting a new
// run cancels the session's previous one.
type GenerationService struct {
	cfg    *config.Config
	logger *zap.Logger
	gw     gateway.Client
	runs   *repository.RunRepository
	policy RepairPolicy
	rules  validate.Rules

	mu        sync.Mutex
	bySession map[string]*Run
	byID      map[string]*Run
	admitting map[string]*sync.Mutex
}

// NewGenerationService creates the orchestrator. runs may be nil to
// disable the history archive.
func NewGenerationService(
	cfg *config.Config,
	logger *zap.Logger,
	gw gateway.Client,
	runs *repository.RunRepository,
) *GenerationService {
	policy := DefaultRepairPolicy()
	if cfg.Generation.MaxFixAttempts > 0 {
		policy.MaxFixAttempts = cfg.Generation.MaxFixAttempts
	}
	return &GenerationService{
		cfg:       cfg,
		logger:    logger,
		gw:        gw,
		runs:      runs,
		policy:    policy,
		rules:     validate.DefaultRules(),
		bySession: make(map[string]*Run),
		byID:      make(map[string]*Run),
		admitting: make(map[string]*sync.Mutex),
	}
}

// StartRun admits a new generation run for the session. Any previous
// in-flight run for the same session is cancelled and fully drained
// before the new one starts. Admissions for the same session are
// serialized, so concurrent StartRun calls still leave at most one
// pipeline in flight.
func (s *GenerationService) StartRun(sessionID string, brief domain.SiteBrief) (*Run, error) {
	if brief.Model == "" {
		brief.Model = s.cfg.Model.Default
	}
	if err := brief.Validate(); err != nil {
		return nil, err
	}

	admit := s.sessionLock(sessionID)
	admit.Lock()
	defer admit.Unlock()

	s.mu.Lock()
	prev := s.bySession[sessionID]
	s.mu.Unlock()

	if prev != nil && !prev.Status().Terminal() {
		prev.Cancel()
		<-prev.Done()
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := newRun(uuid.New().String(), sessionID, brief, cancel)

	s.mu.Lock()
	s.bySession[sessionID] = run
	s.byID[run.ID] = run
	s.mu.Unlock()

	s.logger.Info("generation run started",
		zap.String("run_id", run.ID),
		zap.String("session_id", sessionID),
		zap.String("topic", brief.Topic),
		zap.String("model", brief.Model),
		zap.Int("pages", brief.PageCount),
	)

	go s.execute(ctx, run)
	return run, nil
}

// sessionLock returns the admission lock for a session, creating it on
// first use. Cancelling the previous run and registering its
// replacement must be atomic with respect to other StartRun calls for
// the same session.
func (s *GenerationService) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.admitting[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.admitting[sessionID] = l
	}
	return l
}

// GetRun returns a run by id.
func (s *GenerationService) GetRun(id string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return run, nil
}

// CancelRun aborts a run by id. Cancelling a finished run is a no-op.
func (s *GenerationService) CancelRun(id string) error {
	run, err := s.GetRun(id)
	if err != nil {
		return err
	}
	run.Cancel()
	return nil
}

// ListModels proxies the gateway's model list for the wizard's picker.
func (s *GenerationService) ListModels(ctx context.Context) ([]string, error) {
	return s.gw.ListModels(ctx)
}

func (s *GenerationService) execute(ctx context.Context, run *Run) {
	defer run.cancel()

	err := s.pipeline(ctx, run)
	switch {
	case err == nil:
		run.logf("Run complete")
		run.finish(domain.RunStatusCompleted, "")
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		// A normal exit path, not a failure.
		run.logf("Run cancelled")
		run.finish(domain.RunStatusCancelled, "")
	default:
		run.logf("Run failed: %v", err)
		run.finish(domain.RunStatusFailed, err.Error())
	}

	s.logger.Info("generation run finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status())),
	)
	s.archive(run)
}

// archive stores the finished run's summary. Failure to archive never
// affects the run result.
func (s *GenerationService) archive(run *Run) {
	if s.runs == nil {
		return
	}
	snap := run.Snapshot()
	rec := &domain.RunRecord{
		ID:          snap.ID,
		SessionID:   snap.SessionID,
		Topic:       snap.Brief.Topic,
		Model:       snap.Brief.Model,
		Status:      snap.Status,
		PageCount:   len(snap.Pages),
		Log:         run.logText(),
		CreatedAt:   snap.StartedAt,
		CompletedAt: snap.EndedAt,
	}
	for _, p := range snap.Pages {
		if p.Valid {
			rec.ValidPages++
		}
	}
	if err := s.runs.Create(rec); err != nil {
		s.logger.Warn("failed to archive run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

// pipeline is the strictly ordered stage sequence. Stages 1-3 are
// fatal to the run; everything after degrades per page or per asset.
func (s *GenerationService) pipeline(ctx context.Context, run *Run) error {
	brief := run.Brief

	// 1. Shared chrome.
	run.logf("Generating shared chrome")
	var chrome domain.SharedChrome
	if err := s.jsonCall(ctx, run, domain.PhaseChrome, "Shared header and footer", prompt.Chrome(brief), &chrome); err != nil {
		return fmt.Errorf("shared chrome: %w", err)
	}
	if strings.TrimSpace(chrome.Header) == "" || strings.TrimSpace(chrome.Footer) == "" {
		return fmt.Errorf("shared chrome: %w", domain.ErrEmptyResponse)
	}
	run.setChrome(&chrome)
	run.logf("Shared chrome ready (site title: %q)", chrome.SiteTitle)

	// 2. Site map.
	run.logf("Planning site map")
	var plan domain.SitePlan
	if err := s.jsonCall(ctx, run, domain.PhaseSiteMap, "Site map", prompt.SiteMap(brief, chrome.SiteTitle), &plan); err != nil {
		return fmt.Errorf("site map: %w", err)
	}
	if err := normalizePlan(&plan, brief); err != nil {
		return fmt.Errorf("site map: %w", err)
	}
	if plan.SiteTitle == "" {
		plan.SiteTitle = chrome.SiteTitle
	}
	run.setPlan(&plan)
	run.logf("Site map ready: %d page(s): %s", len(plan.Pages), strings.Join(plan.IDs(), ", "))

	// 3. Design tokens. Structurally simple JSON; a single call's worth
	// of trust, no repair loop here.
	run.logf("Choosing design tokens")
	var tokens domain.DesignTokens
	if err := s.jsonCall(ctx, run, domain.PhaseTokens, "Design tokens", prompt.DesignTokens(brief, &plan), &tokens); err != nil {
		return fmt.Errorf("design tokens: %w", err)
	}
	fillTokenDefaults(&tokens)
	run.setTokens(&tokens)
	run.logf("Design tokens ready")

	// 4. Per-page loop, in plan order. Sequential: later pages need the
	// settled id set, and ordered logging is part of the contract.
	pages := make([]*domain.BuiltPage, len(plan.Pages))
	for i, ref := range plan.Pages {
		pages[i] = &domain.BuiltPage{ID: ref.ID, Title: ref.Title}
	}
	run.setPages(pages)

	for i, ref := range plan.Pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := s.buildPage(ctx, run, &plan, &tokens, &chrome, ref)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return err
			}
			// Fatal to this page only; the rest of the run continues.
			run.logf("Page %q failed: %v", ref.Title, err)
			page = &domain.BuiltPage{
				ID:     ref.ID,
				Title:  ref.Title,
				Issues: []string{fmt.Sprintf("generation failed: %v", err)},
			}
		}
		run.replacePage(i, page)
		run.logf("Page %q done (valid: %v, issues: %d)", ref.Title, page.Valid, len(page.Issues))
	}

	// 5. Cross-page link audit and one corrective pass per affected page.
	if err := s.repairLinks(ctx, run, &plan, pages); err != nil {
		return err
	}

	// 6. SEO pack. Non-fatal: the run proceeds without SEO assets.
	run.logf("Generating SEO pack")
	var seoArt domain.SEOArtifacts
	if err := s.jsonCall(ctx, run, domain.PhaseSEO, "SEO pack", prompt.SEOPack(brief, &plan, s.cfg.Server.BaseURL), &seoArt); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return err
		}
		run.logf("SEO pack unavailable: %v; continuing without SEO assets", err)
	} else {
		run.setSEO(&seoArt)
		run.logf("SEO pack ready (%d page metas)", len(seoArt.Pages))

		// 7. Meta injection: pure text splice, idempotent, no model call.
		for i, p := range pages {
			if meta := seoArt.MetaFor(p.ID); meta != nil {
				run.updatePage(i, func(bp *domain.BuiltPage) {
					bp.HTML = seo.InjectMeta(bp.HTML, meta)
				})
			}
		}
		run.logf("Meta tags injected")
	}

	// 8. Final validation sweep over every page.
	valid := 0
	for i := range pages {
		run.updatePage(i, func(bp *domain.BuiltPage) {
			carried := carryFailures(bp.Issues)
			rep := validate.Structural(bp.HTML, s.rules)
			bp.Valid = rep.Valid && len(carried) == 0
			bp.Issues = append(carried, rep.Issues...)
			applyAccessibility(bp, validate.Accessibility(bp.HTML))
		})
		if pages[i].Valid {
			valid++
		}
	}
	run.logf("Final validation: %d/%d page(s) valid", valid, len(pages))

	// 9. Handoff: freeze the result for the export packager.
	result := &domain.BuildResult{
		RunID:     run.ID,
		SiteTitle: plan.SiteTitle,
		Pages:     pages,
		Chrome:    &chrome,
		Tokens:    &tokens,
		AllValid:  valid == len(pages),
	}
	if len(seoArt.Pages) > 0 || seoArt.Sitemap != "" {
		result.SEO = &seoArt
	}
	run.setResult(result)
	return nil
}

// buildPage runs one page's plan call and build cycle, plus the single
// extra regeneration when the cycle's outcome is still deficient.
func (s *GenerationService) buildPage(
	ctx context.Context,
	run *Run,
	plan *domain.SitePlan,
	tokens *domain.DesignTokens,
	chrome *domain.SharedChrome,
	ref domain.PageRef,
) (*domain.BuiltPage, error) {
	brief := run.Brief

	// a. Page plan. Degrades to a synthesized outline on failure: a
	// bad plan call should not sink the page, let alone the run.
	run.logf("Planning page %q", ref.Title)
	var pp domain.PagePlan
	if err := s.jsonCall(ctx, run, domain.PhasePagePlan, "Plan: "+ref.Title, prompt.PagePlan(brief, plan, ref), &pp); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil, err
		}
		run.logf("Page plan for %q unavailable (%v); using outline from site map", ref.Title, err)
		pp = domain.PagePlan{ID: ref.ID, Title: ref.Title, Outline: []string{ref.Purpose}}
	}
	if pp.ID == "" {
		pp.ID = ref.ID
	}
	if pp.Title == "" {
		pp.Title = ref.Title
	}

	// b. Build cycle: generating -> validating -> fixing* -> auditing
	// -> patching? -> done.
	buildPrompt := prompt.PageBuild(brief, plan, &pp, *tokens, chrome)
	page, err := s.buildCycle(ctx, run, ref, buildPrompt)
	if err != nil {
		return nil, err
	}

	// c. One extra full regeneration with the issue list appended, then
	// accept whatever it yields.
	if !page.Valid && s.policy.RegenAttempts > 0 {
		run.logf("Page %q still deficient after repairs; regenerating once", ref.Title)
		html, thoughts, err := s.streamCall(ctx, run, domain.PhasePageBuild,
			"Rebuilding "+ref.Title, prompt.Regenerate(buildPrompt, page.Issues))
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil, err
			}
			run.logf("Regeneration of %q failed (%v); keeping previous attempt", ref.Title, err)
			return page, nil
		}
		if strings.TrimSpace(html) != "" {
			page.HTML = html
			page.AppendThinking(thoughts)
			rep := validate.Structural(page.HTML, s.rules)
			page.Valid = rep.Valid
			page.Issues = rep.Issues
			applyAccessibility(page, validate.Accessibility(page.HTML))
		}
	}
	return page, nil
}

// buildCycle is the per-page repair state machine.
func (s *GenerationService) buildCycle(ctx context.Context, run *Run, ref domain.PageRef, buildPrompt string) (*domain.BuiltPage, error) {
	// generating
	run.logf("Building page %q", ref.Title)
	html, thoughts, err := s.streamCall(ctx, run, domain.PhasePageBuild, "Building "+ref.Title, buildPrompt)
	if err != nil {
		return nil, err
	}
	page := &domain.BuiltPage{ID: ref.ID, Title: ref.Title, HTML: html}
	page.AppendThinking(thoughts)
	if strings.TrimSpace(html) == "" {
		page.Issues = []string{"model returned an empty document"}
		return page, nil
	}

	// validating -> fixing*
	rep := validate.Structural(page.HTML, s.rules)
	for attempt := 1; !rep.Valid && attempt <= s.policy.MaxFixAttempts; attempt++ {
		run.logf("Page %q failed validation (%d issue(s)); fix attempt %d/%d",
			ref.Title, len(rep.Issues), attempt, s.policy.MaxFixAttempts)
		fixed, th, err := s.completeCall(ctx, run, domain.PhaseFix,
			"Fixing "+ref.Title, prompt.StructuralFix(page.HTML, rep.Issues))
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil, err
			}
			run.logf("Fix attempt for %q failed: %v", ref.Title, err)
			break
		}
		if strings.TrimSpace(fixed) != "" {
			// The model returns a full replacement document each time.
			page.HTML = fixed
			page.AppendThinking(th)
		}
		rep = validate.Structural(page.HTML, s.rules)
	}
	page.Valid = rep.Valid
	page.Issues = rep.Issues
	if rep.Valid {
		run.logf("Page %q passed structural validation", ref.Title)
	} else {
		run.logf("Page %q still invalid after %d fix attempt(s); carrying issues forward",
			ref.Title, s.policy.MaxFixAttempts)
	}

	// auditing -> patching?
	a11y := validate.Accessibility(page.HTML)
	if len(a11y) > 0 && s.policy.PatchAttempts > 0 {
		run.logf("Page %q has %d accessibility issue(s); patching", ref.Title, len(a11y))
		patched, th, err := s.completeCall(ctx, run, domain.PhaseAccessibility,
			"Accessibility patch: "+ref.Title, prompt.AccessibilityPatch(page.HTML, a11y))
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil, err
			}
			run.logf("Accessibility patch for %q failed: %v", ref.Title, err)
		} else if strings.TrimSpace(patched) != "" {
			page.HTML = patched
			page.AppendThinking(th)
			rep = validate.Structural(page.HTML, s.rules)
			page.Valid = rep.Valid
			page.Issues = rep.Issues
			a11y = validate.Accessibility(page.HTML)
		}
		if len(a11y) == 0 {
			run.logf("Accessibility patch resolved all issues on %q", ref.Title)
		} else {
			run.logf("Accessibility patch left %d issue(s) on %q", len(a11y), ref.Title)
		}
	}
	applyAccessibility(page, a11y)

	// done
	return page, nil
}

// repairLinks audits every page's internal links and issues one
// corrective call per affected page per pass, re-auditing after each
// pass. The pass count is bounded by the repair policy.
func (s *GenerationService) repairLinks(ctx context.Context, run *Run, plan *domain.SitePlan, pages []*domain.BuiltPage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	run.logf("Auditing cross-page links")
	broken := validate.CheckLinks(pagesByID(pages))
	if len(broken) == 0 {
		run.logf("All internal links resolve")
		return nil
	}

	for pass := 1; pass <= s.policy.LinkFixPasses && len(broken) > 0; pass++ {
		for i, page := range pages {
			entries, ok := broken[page.ID]
			if !ok {
				continue
			}
			run.logf("Page %q has %d broken link(s); repairing", page.Title, len(entries))
			fixed, th, err := s.completeCall(ctx, run, domain.PhaseLinkFix,
				"Repairing links: "+page.Title, prompt.LinkFix(page.HTML, plan, entries))
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return err
				}
				run.logf("Link repair for %q failed: %v", page.Title, err)
				continue
			}
			if strings.TrimSpace(fixed) != "" {
				run.updatePage(i, func(bp *domain.BuiltPage) {
					bp.HTML = fixed
					bp.AppendThinking(th)
				})
			}
		}
		broken = validate.CheckLinks(pagesByID(pages))
	}

	if len(broken) == 0 {
		run.logf("Link repair resolved all broken links")
	} else {
		run.logf("Link repair left broken links on %d page(s)", len(broken))
	}
	return nil
}

// jsonCall performs one JSON-mode model call and unmarshals the
// defensively re-extracted payload.
func (s *GenerationService) jsonCall(ctx context.Context, run *Run, phase domain.Phase, label, promptText string, out any) error {
	run.beginStep(phase, label)
	raw, err := s.gw.Complete(ctx, s.request(run, promptText, true))
	if err != nil {
		return err
	}
	res := textproc.Extract(raw)
	run.updateStream(raw, res.Cleaned, res.Thoughts, "")

	payload, err := textproc.ExtractJSONObject(res.Cleaned)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("%s: parse JSON: %w", label, err)
	}
	return nil
}

// completeCall performs one plain model call and returns the cleaned
// text plus extracted thoughts.
func (s *GenerationService) completeCall(ctx context.Context, run *Run, phase domain.Phase, label, promptText string) (string, []string, error) {
	run.beginStep(phase, label)
	raw, err := s.gw.Complete(ctx, s.request(run, promptText, false))
	if err != nil {
		return "", nil, err
	}
	res := textproc.Extract(raw)
	run.updateStream(raw, res.Cleaned, res.Thoughts, "")
	return res.Cleaned, res.Thoughts, nil
}

// streamCall performs one streaming model call, re-extracting over the
// whole buffer on every chunk so block boundaries that straddle chunks
// are handled, and updating the live-stream slot as output arrives.
func (s *GenerationService) streamCall(ctx context.Context, run *Run, phase domain.Phase, label, promptText string) (string, []string, error) {
	run.beginStep(phase, label)
	ch, err := s.gw.Stream(ctx, s.request(run, promptText, false))
	if err != nil {
		return "", nil, err
	}

	tracker := textproc.NewTracker()
	for chunk := range ch {
		if chunk.Err != nil {
			return "", nil, chunk.Err
		}
		if chunk.Text != "" {
			cleaned, _ := tracker.Append(chunk.Text)
			run.updateStream(tracker.Raw(), cleaned, tracker.History(), chunk.Text)
		}
		if chunk.Done {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	res := textproc.Extract(tracker.Raw())
	return res.Cleaned, res.Thoughts, nil
}

func (s *GenerationService) request(run *Run, promptText string, jsonMode bool) gateway.Request {
	return gateway.Request{
		Model:  run.Brief.Model,
		Prompt: promptText,
		System: run.Brief.SystemPreamble,
		JSON:   jsonMode,
	}
}

// applyAccessibility folds unresolved audit findings into the page's
// issue list with a distinguishing tag and invalidates the page.
func applyAccessibility(page *domain.BuiltPage, issues []string) {
	for _, is := range issues {
		page.Issues = append(page.Issues, "Accessibility: "+is)
	}
	if len(issues) > 0 {
		page.Valid = false
	}
}

// carryFailures keeps generation-failure markers when a page's issue
// list is recomputed; the validators only see the current HTML and
// would otherwise erase the cause from the page record.
func carryFailures(issues []string) []string {
	var kept []string
	for _, is := range issues {
		if strings.HasPrefix(is, "generation failed:") {
			kept = append(kept, is)
		}
	}
	return kept
}

func pagesByID(pages []*domain.BuiltPage) map[string]string {
	m := make(map[string]string, len(pages))
	for _, p := range pages {
		m[p.ID] = p.HTML
	}
	return m
}

// normalizePlan enforces the site-plan invariants: non-empty page
// list, unique kebab-case ids, count bounded by the request.
func normalizePlan(plan *domain.SitePlan, brief domain.SiteBrief) error {
	seen := make(map[string]bool)
	out := plan.Pages[:0]
	for _, p := range plan.Pages {
		id := slugify(p.ID)
		if id == "" {
			id = slugify(p.Title)
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		p.ID = id
		out = append(out, p)
	}
	plan.Pages = out
	if len(plan.Pages) == 0 {
		return fmt.Errorf("%w: no usable pages in plan", domain.ErrEmptyResponse)
	}
	if len(plan.Pages) > brief.PageCount {
		plan.Pages = plan.Pages[:brief.PageCount]
	}
	return nil
}

// slugify reduces a string to a lowercase kebab-case id.
func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// fillTokenDefaults substitutes defaults for any token the model left
// empty; absence of individual values is tolerated.
func fillTokenDefaults(t *domain.DesignTokens) {
	def := domain.DefaultDesignTokens()
	fill := func(dst *string, fallback string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = fallback
		}
	}
	fill(&t.Primary, def.Primary)
	fill(&t.Secondary, def.Secondary)
	fill(&t.Accent, def.Accent)
	fill(&t.Background, def.Background)
	fill(&t.Surface, def.Surface)
	fill(&t.Text, def.Text)
	fill(&t.Muted, def.Muted)
	fill(&t.FontHead, def.FontHead)
	fill(&t.FontBody, def.FontBody)
	fill(&t.Radius, def.Radius)
	fill(&t.Spacing, def.Spacing)
	fill(&t.Shadow, def.Shadow)
}
