package dedup

// Works maps work IDs to the first canonical URL recorded for them and
// remembers registration order.
type Works struct {
	byID  map[string]string
	order []string
}

// NewWorks returns an empty registry.
func NewWorks() *Works {
	return &Works{byID: make(map[string]string)}
}

// Register records canonical for id unless id is already known. It
// reports whether the work was new.
func (w *Works) Register(id, canonical string) bool {
	if _, ok := w.byID[id]; ok {
		return false
	}
	w.byID[id] = canonical
	w.order = append(w.order, id)
	return true
}

// Lookup returns the canonical URL recorded for id.
func (w *Works) Lookup(id string) (string, bool) {
	u, ok := w.byID[id]
	return u, ok
}

// Len returns the number of distinct works.
func (w *Works) Len() int { return len(w.order) }

// URLs returns the canonical URLs in registration order.
func (w *Works) URLs() []string {
	out := make([]string, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.byID[id])
	}
	return out
}
