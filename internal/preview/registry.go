package preview

import "sync"

// Entry is one rendered PDF page: its image reference (an opaque data URI)
// plus the unscaled pixel dimensions the detection service expects
// coordinates in. Entries are owned exclusively by the Registry and are
// replaced wholesale on every successful upload.
type Entry struct {
	ImageRef       string
	Page           int
	OriginalWidth  int
	OriginalHeight int
}

// ClickHandler receives a click on a specific preview, with the click
// position relative to that preview's own displayed bounds.
type ClickHandler func(entry Entry, clickX, clickY, dispWidth, dispHeight float64)

// Registry holds the ordered previews of the last successful upload and the
// single click handler bound to them. Replace discards the previous entries
// together with their bindings, so a click raised against a stale generation
// is dropped instead of firing twice.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
	handler ClickHandler
	gen     uint64
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Bind installs the click handler used for all current and future entries.
func (r *Registry) Bind(h ClickHandler) {
	r.mu.Lock()
	r.handler = h
	r.mu.Unlock()
}

// Replace swaps in a fresh set of entries, detaching the old generation.
// It returns the new generation token; clicks must carry the token of the
// generation they were raised against.
func (r *Registry) Replace(entries []Entry) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append([]Entry(nil), entries...)
	r.gen++
	return r.gen
}

// Generation returns the token of the currently rendered entries.
func (r *Registry) Generation() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gen
}

// Len reports how many previews are currently rendered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries returns a copy of the current entries in page order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Entry(nil), r.entries...)
}

// Entry returns the i-th preview of the current generation.
func (r *Registry) Entry(i int) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.entries) {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Click routes a click on preview i to the bound handler. Clicks against a
// stale generation, an unknown index, or an unbound registry are ignored.
func (r *Registry) Click(gen uint64, i int, clickX, clickY, dispWidth, dispHeight float64) bool {
	r.mu.RLock()
	handler := r.handler
	if gen != r.gen || handler == nil || i < 0 || i >= len(r.entries) {
		r.mu.RUnlock()
		return false
	}
	entry := r.entries[i]
	r.mu.RUnlock()

	handler(entry, clickX, clickY, dispWidth, dispHeight)
	return true
}
