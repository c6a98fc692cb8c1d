package textproc

// Tracker accumulates a streaming model response and re-extracts
// reasoning over the whole buffer on every chunk. Whole-buffer
// re-extraction is deliberate: reasoning-block boundaries straddle
// chunk boundaries, so extracting only the delta would miss them.
type Tracker struct {
	raw     string
	seen    map[string]bool
	history []string
}

// NewTracker returns an empty tracker for one model call.
func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]bool)}
}

// Append adds a chunk and returns the current cleaned text plus only
// the thoughts not seen before on this tracker.
func (t *Tracker) Append(delta string) (cleaned string, newThoughts []string) {
	t.raw += delta
	res := Extract(t.raw)
	for _, th := range res.Thoughts {
		if t.seen[th] {
			continue
		}
		t.seen[th] = true
		t.history = append(t.history, th)
		newThoughts = append(newThoughts, th)
	}
	return res.Cleaned, newThoughts
}

// Raw returns the accumulated raw buffer.
func (t *Tracker) Raw() string { return t.raw }

// History returns every distinct thought seen so far, in order.
func (t *Tracker) History() []string {
	out := make([]string, len(t.history))
	copy(out, t.history)
	return out
}
