package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jfjoao12/website-autobuilder/internal/domain"
)

// Run is the explicit state of one generation session. The pipeline
// goroutine is the only writer; observers read through Snapshot or a
// subscriber channel, never through shared references.
type Run struct {
	ID        string
	SessionID string
	Brief     domain.SiteBrief

	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	status      domain.RunStatus
	errMsg      string
	stream      domain.LiveStream
	log         []domain.LogEntry
	pages       []*domain.BuiltPage
	plan        *domain.SitePlan
	tokens      *domain.DesignTokens
	chrome      *domain.SharedChrome
	seo         *domain.SEOArtifacts
	result      *domain.BuildResult
	startedAt   time.Time
	endedAt     *time.Time
	thoughtSeen map[string]bool
	subs        []chan domain.RunEvent
}

func newRun(id, sessionID string, brief domain.SiteBrief, cancel context.CancelFunc) *Run {
	return &Run{
		ID:          id,
		SessionID:   sessionID,
		Brief:       brief,
		cancel:      cancel,
		done:        make(chan struct{}),
		status:      domain.RunStatusRunning,
		startedAt:   time.Now(),
		thoughtSeen: make(map[string]bool),
	}
}

// Cancel aborts the in-flight model call. The run stops advancing but
// keeps every already-committed stage result.
func (r *Run) Cancel() {
	r.cancel()
}

// Done is closed when the pipeline goroutine has fully exited.
func (r *Run) Done() <-chan struct{} { return r.done }

// Status returns the current lifecycle state.
func (r *Run) Status() domain.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Subscribe registers an event channel. Events are dropped rather than
// blocking the pipeline when a subscriber falls behind. The channel
// always has capacity for at least one event, so subscribing to an
// already-finished run delivers its terminal event without blocking.
func (r *Run) Subscribe(buffer int) <-chan domain.RunEvent {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.RunEvent, buffer)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		ch <- domain.RunEvent{Type: "done", Content: string(r.status)}
		close(ch)
		return ch
	}
	r.subs = append(r.subs, ch)
	return ch
}

// publish fans an event out to subscribers without blocking.
func (r *Run) publish(ev domain.RunEvent) {
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// logf appends one line to the append-only run log and notifies
// subscribers. Observability only; nothing reads the log back.
func (r *Run) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.mu.Lock()
	r.log = append(r.log, domain.LogEntry{Time: time.Now(), Message: msg})
	r.publish(domain.RunEvent{Type: "log", Content: msg})
	r.mu.Unlock()
}

// beginStep resets the single live-stream slot for a new phase step.
// The previous step's state is superseded, not merged.
func (r *Run) beginStep(phase domain.Phase, label string) {
	r.mu.Lock()
	r.stream = domain.LiveStream{
		Phase:   phase,
		Label:   label,
		History: r.stream.History,
	}
	r.publish(domain.RunEvent{Type: "stage", Phase: phase, Label: label})
	r.mu.Unlock()
}

// updateStream accumulates chunk output for the current step. New
// thoughts are diffed against everything seen this run so the history
// only grows with genuinely new items.
func (r *Run) updateStream(raw, cleaned string, thoughts []string, delta string) {
	r.mu.Lock()
	r.stream.Raw = raw
	r.stream.Cleaned = cleaned
	r.stream.Thoughts = thoughts
	for _, th := range thoughts {
		if r.thoughtSeen[th] {
			continue
		}
		r.thoughtSeen[th] = true
		r.stream.History = append(r.stream.History, th)
		r.publish(domain.RunEvent{Type: "thinking", Phase: r.stream.Phase, Content: th})
	}
	if delta != "" {
		r.publish(domain.RunEvent{Type: "delta", Phase: r.stream.Phase, Label: r.stream.Label, Content: delta})
	}
	r.mu.Unlock()
}

// finish records the terminal state and closes every subscriber.
func (r *Run) finish(status domain.RunStatus, errMsg string) {
	now := time.Now()
	r.mu.Lock()
	r.status = status
	r.errMsg = errMsg
	r.endedAt = &now
	ev := domain.RunEvent{Type: "done", Content: string(status)}
	if errMsg != "" {
		ev = domain.RunEvent{Type: "error", Content: errMsg}
	}
	r.publish(ev)
	for _, ch := range r.subs {
		close(ch)
	}
	r.subs = nil
	r.mu.Unlock()
	close(r.done)
}

// setPages installs the page slots created from the site plan.
func (r *Run) setPages(pages []*domain.BuiltPage) {
	r.mu.Lock()
	r.pages = pages
	r.mu.Unlock()
}

func (r *Run) setChrome(c *domain.SharedChrome) {
	r.mu.Lock()
	r.chrome = c
	r.mu.Unlock()
}

func (r *Run) setPlan(p *domain.SitePlan) {
	r.mu.Lock()
	r.plan = p
	r.mu.Unlock()
}

func (r *Run) setTokens(t *domain.DesignTokens) {
	r.mu.Lock()
	r.tokens = t
	r.mu.Unlock()
}

func (r *Run) setSEO(s *domain.SEOArtifacts) {
	r.mu.Lock()
	r.seo = s
	r.mu.Unlock()
}

func (r *Run) setResult(res *domain.BuildResult) {
	r.mu.Lock()
	r.result = res
	r.mu.Unlock()
}

// replacePage commits a finished build cycle's page into slot i.
func (r *Run) replacePage(i int, p *domain.BuiltPage) {
	r.mu.Lock()
	r.pages[i] = p
	r.mu.Unlock()
}

// updatePage mutates one page under the run lock, so observers never
// see a half-written page.
func (r *Run) updatePage(i int, fn func(*domain.BuiltPage)) {
	r.mu.Lock()
	fn(r.pages[i])
	r.mu.Unlock()
}

// Snapshot returns a deep-enough copy of the run's observable state.
func (r *Run) Snapshot() domain.RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := domain.RunSnapshot{
		ID:        r.ID,
		SessionID: r.SessionID,
		Brief:     r.Brief,
		Status:    r.status,
		Error:     r.errMsg,
		Stream:    r.stream,
		StartedAt: r.startedAt,
		EndedAt:   r.endedAt,
		Result:    r.result,
	}
	snap.Stream.Thoughts = append([]string(nil), r.stream.Thoughts...)
	snap.Stream.History = append([]string(nil), r.stream.History...)
	snap.Log = append([]domain.LogEntry(nil), r.log...)
	snap.Pages = make([]*domain.BuiltPage, len(r.pages))
	for i, p := range r.pages {
		cp := *p
		cp.Issues = append([]string(nil), p.Issues...)
		cp.Thinking = append([]string(nil), p.Thinking...)
		snap.Pages[i] = &cp
	}
	return snap
}

// Result returns the build result once the run has completed.
func (r *Run) Result() (*domain.BuildResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.Terminal() {
		return nil, domain.ErrRunActive
	}
	if r.result == nil {
		return nil, domain.ErrNotFound
	}
	return r.result, nil
}

// logText flattens the run log for archival.
func (r *Run) logText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out string
	for _, e := range r.log {
		out += e.Time.Format(time.TimeOnly) + " " + e.Message + "\n"
	}
	return out
}
