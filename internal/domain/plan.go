package domain

// SitePlan is the model-produced site map. Page ids are the stable keys
// used for file naming, nav links and cross-references for the rest of
// the run.
type SitePlan struct {
	SiteTitle string    `json:"site_title"`
	Pages     []PageRef `json:"pages"`
}

// PageRef identifies one planned page.
type PageRef struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Purpose string `json:"purpose"`
}

// IDs returns the plan's page ids in plan order.
func (p *SitePlan) IDs() []string {
	ids := make([]string, len(p.Pages))
	for i, pg := range p.Pages {
		ids[i] = pg.ID
	}
	return ids
}

// PagePlan is the per-page outline produced before that page's HTML build.
type PagePlan struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Outline      []string `json:"outline"`
	Components   []string `json:"components"`
	CopyPoints   []string `json:"copy_points"`
	Interactions []string `json:"interactions"`
	SEO          string   `json:"seo"`
}

// DesignTokens is the flat palette/spacing record shared by every page
// build prompt. Immutable after creation.
type DesignTokens struct {
	Primary    string `json:"primary"`
	Secondary  string `json:"secondary"`
	Accent     string `json:"accent"`
	Background string `json:"background"`
	Surface    string `json:"surface"`
	Text       string `json:"text"`
	Muted      string `json:"muted"`
	FontHead   string `json:"font_heading"`
	FontBody   string `json:"font_body"`
	Radius     string `json:"radius"`
	Spacing    string `json:"spacing"`
	Shadow     string `json:"shadow"`
}

// DefaultDesignTokens is the fallback used when the model's token JSON
// cannot be parsed into anything useful.
func DefaultDesignTokens() DesignTokens {
	return DesignTokens{
		Primary:    "#2563eb",
		Secondary:  "#0f172a",
		Accent:     "#f59e0b",
		Background: "#ffffff",
		Surface:    "#f8fafc",
		Text:       "#0f172a",
		Muted:      "#64748b",
		FontHead:   "'Inter', system-ui, sans-serif",
		FontBody:   "'Inter', system-ui, sans-serif",
		Radius:     "8px",
		Spacing:    "1rem",
		Shadow:     "0 1px 3px rgba(0,0,0,0.1)",
	}
}

// SharedChrome holds the header/footer fragments reused verbatim across
// all pages. Fragments, not full documents.
type SharedChrome struct {
	Header    string `json:"header"`
	Footer    string `json:"footer"`
	SiteTitle string `json:"site_title,omitempty"`
}
