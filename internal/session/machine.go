package session

import "sync"

// State is the explicit client session state. The original flow encoded
// "has an analysis ever succeeded" in element visibility; here the machine
// is the single source of truth and the UI renders from it.
type State int

const (
	StateNoPreviews State = iota
	StatePreviewsShown
	StateAnalysisPending
	StateAnalysisReady
	StateAnalysisFailed
)

func (s State) String() string {
	switch s {
	case StateNoPreviews:
		return "no_previews"
	case StatePreviewsShown:
		return "previews_shown"
	case StateAnalysisPending:
		return "analysis_pending"
	case StateAnalysisReady:
		return "analysis_ready"
	case StateAnalysisFailed:
		return "analysis_failed"
	default:
		return "unknown"
	}
}

// Event is published to watchers on every transition.
type Event struct {
	State    State
	Seq      uint64
	Encoding string
	Err      string
}

// Machine serializes the session state transitions and owns the single
// mutable board-encoding slot.
//
// Every analysis dispatch is tagged with a monotonically increasing
// sequence number; a completion is applied only when its number is higher
// than any completion applied before it, so out-of-order responses cannot
// roll the slot back to a stale position. Replacing the previews raises a
// barrier: completions dispatched against the old document are discarded.
type Machine struct {
	mu sync.Mutex

	state     State
	encoding  string // current board encoding; written only by applied successes
	resultRef string
	lastErr   string

	nextSeq    uint64 // last dispatched sequence number
	appliedSeq uint64 // highest completion (success or failure) applied so far
	barrier    uint64 // completions at or below were dispatched pre-replace

	watchers []func(Event)
}

func NewMachine() *Machine {
	return &Machine{state: StateNoPreviews}
}

// Watch registers a transition observer. Watchers are invoked synchronously
// after the transition commits, outside the machine lock.
func (m *Machine) Watch(fn func(Event)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.watchers = append(m.watchers, fn)
	m.mu.Unlock()
}

// PreviewsReplaced records a successful upload. The previews are a new
// document: the encoding slot is cleared and launch availability is
// revoked, and any analysis still in flight against the old previews is
// fenced off by the barrier.
func (m *Machine) PreviewsReplaced() {
	m.mu.Lock()
	m.state = StatePreviewsShown
	m.encoding = ""
	m.resultRef = ""
	m.lastErr = ""
	m.barrier = m.nextSeq
	evt := m.eventLocked()
	m.mu.Unlock()
	m.notify(evt)
}

// BeginAnalysis tags a new analysis dispatch. ok is false when no previews
// are shown; such clicks cannot happen through the registry, but the guard
// keeps the machine consistent for direct callers.
func (m *Machine) BeginAnalysis() (seq uint64, ok bool) {
	m.mu.Lock()
	if m.state == StateNoPreviews {
		m.mu.Unlock()
		return 0, false
	}
	m.nextSeq++
	seq = m.nextSeq
	m.state = StateAnalysisPending
	evt := m.eventLocked()
	evt.Seq = seq
	m.mu.Unlock()
	m.notify(evt)
	return seq, true
}

// CompleteAnalysis applies a successful completion. It returns false when
// the completion is stale (superseded by a higher applied sequence or
// dispatched before the last document swap) or when the encoding is empty;
// stale and empty results leave all state untouched.
func (m *Machine) CompleteAnalysis(seq uint64, encoding, resultRef string) bool {
	m.mu.Lock()
	if encoding == "" || seq <= m.barrier || seq <= m.appliedSeq {
		m.mu.Unlock()
		return false
	}
	m.appliedSeq = seq
	m.encoding = encoding
	m.resultRef = resultRef
	m.lastErr = ""
	m.state = StateAnalysisReady
	evt := m.eventLocked()
	evt.Seq = seq
	m.mu.Unlock()
	m.notify(evt)
	return true
}

// FailAnalysis applies a failed completion. The encoding slot is never
// touched: a failure after a prior success keeps the last good encoding
// and its launch availability, while a failure with no prior success lands
// in StateAnalysisFailed. Stale failures are discarded like stale successes.
func (m *Machine) FailAnalysis(seq uint64, message string) bool {
	m.mu.Lock()
	if seq <= m.barrier || seq <= m.appliedSeq {
		m.mu.Unlock()
		return false
	}
	m.appliedSeq = seq
	m.lastErr = message
	if m.encoding != "" {
		m.state = StateAnalysisReady
	} else {
		m.state = StateAnalysisFailed
	}
	evt := m.eventLocked()
	evt.Seq = seq
	m.mu.Unlock()
	m.notify(evt)
	return true
}

// LaunchEncoding reads the slot at activation time. ok mirrors the launch
// controls' visibility: true only after at least one applied success since
// the current previews were shown.
func (m *Machine) LaunchEncoding() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.encoding, m.encoding != ""
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ResultRef returns the image reference of the last applied analysis.
func (m *Machine) ResultRef() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resultRef
}

// LastError returns the most recent displayed analysis error, if any.
func (m *Machine) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Machine) eventLocked() Event {
	return Event{State: m.state, Encoding: m.encoding, Err: m.lastErr}
}

func (m *Machine) notify(evt Event) {
	m.mu.Lock()
	watchers := append(([]func(Event))(nil), m.watchers...)
	m.mu.Unlock()
	for _, fn := range watchers {
		fn(evt)
	}
}
