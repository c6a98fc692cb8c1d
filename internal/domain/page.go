package domain

// BuiltPage is the mutable heart of a run. HTML is replaced wholesale by
// every repair pass; Valid and Issues are recomputed after every
// validation or audit pass; Thinking only ever grows.
type BuiltPage struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	HTML     string   `json:"html"`
	Valid    bool     `json:"valid"`
	Issues   []string `json:"issues"`
	Thinking []string `json:"thinking,omitempty"`
}

// AppendThinking adds new thought entries, keeping everything already
// accumulated across earlier passes.
func (p *BuiltPage) AppendThinking(thoughts []string) {
	p.Thinking = append(p.Thinking, thoughts...)
}

// PageMeta is the per-page slice of the SEO pack.
type PageMeta struct {
	PageID    string   `json:"page_id"`
	OpenGraph []string `json:"open_graph"`
	Twitter   []string `json:"twitter"`
	Extra     []string `json:"extra"`
}

// SEOArtifacts is produced once after all pages exist. Absence of the
// whole record is tolerated (SEO pack parse failure is non-fatal).
type SEOArtifacts struct {
	Sitemap string     `json:"sitemap"`
	Robots  string     `json:"robots"`
	Pages   []PageMeta `json:"pages"`
}

// MetaFor returns the meta entry for a page id, or nil.
func (s *SEOArtifacts) MetaFor(pageID string) *PageMeta {
	if s == nil {
		return nil
	}
	for i := range s.Pages {
		if s.Pages[i].PageID == pageID {
			return &s.Pages[i]
		}
	}
	return nil
}

// BuildResult is the terminal output of one run.
type BuildResult struct {
	RunID     string        `json:"run_id"`
	SiteTitle string        `json:"site_title"`
	Pages     []*BuiltPage  `json:"pages"`
	Chrome    *SharedChrome `json:"chrome,omitempty"`
	Tokens    *DesignTokens `json:"tokens,omitempty"`
	SEO       *SEOArtifacts `json:"seo,omitempty"`
	AllValid  bool          `json:"all_valid"`
}
