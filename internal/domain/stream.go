package domain

// Phase names the pipeline stage a model call belongs to. The live
// stream slot is superseded whenever a step for a different phase/label
// begins.
type Phase string

const (
	PhaseChrome        Phase = "chrome"
	PhaseSiteMap       Phase = "sitemap"
	PhaseTokens        Phase = "tokens"
	PhasePagePlan      Phase = "page_plan"
	PhasePageBuild     Phase = "page_build"
	PhaseFix           Phase = "fix"
	PhaseAccessibility Phase = "accessibility"
	PhaseLinkFix       Phase = "link_fix"
	PhaseSEO           Phase = "seo"
)

// LiveStream is the single-slot aggregation of the in-flight model
// call's output. It is overwritten at the start of every step and
// accumulated while chunks arrive for the current step. Discarded when
// the run ends; never persisted.
type LiveStream struct {
	Phase    Phase    `json:"phase"`
	Label    string   `json:"label"`
	Raw      string   `json:"raw"`
	Cleaned  string   `json:"cleaned"`
	Thoughts []string `json:"thoughts"`
	History  []string `json:"history"`
}

// RunEvent is one entry on a run's subscriber channel. Subscribers get
// stage transitions, stream deltas and log lines as they happen.
type RunEvent struct {
	Type    string `json:"type"` // stage, delta, thinking, log, done, error
	Phase   Phase  `json:"phase,omitempty"`
	Label   string `json:"label,omitempty"`
	Content string `json:"content,omitempty"`
}
