package assignments

// Tracker remembers which assignment IDs have already been selected for
// announcement. It is owned by a single scheduler goroutine and is not safe
// for concurrent use.
//
// IDs are recorded when they are selected, before delivery is attempted, so an
// assignment whose delivery fails is not offered again. The registry only
// grows and lives in memory for the lifetime of the process.
type Tracker struct {
	seen map[string]struct{}
}

// NewTracker returns a tracker with an empty registry.
func NewTracker() *Tracker {
	return &Tracker{
		seen: make(map[string]struct{}),
	}
}

// FilterNew returns, in input order, the assignments whose IDs have not been
// seen before, and marks each of them as seen. Repeated IDs within the same
// input are returned once. The result is never nil.
func (t *Tracker) FilterNew(items []Assignment) []Assignment {
	fresh := make([]Assignment, 0, len(items))
	for _, item := range items {
		if _, ok := t.seen[item.ID]; ok {
			continue
		}
		t.seen[item.ID] = struct{}{}
		fresh = append(fresh, item)
	}
	return fresh
}

// Seen reports whether id has already been selected for announcement.
func (t *Tracker) Seen(id string) bool {
	_, ok := t.seen[id]
	return ok
}

// Len returns the number of recorded IDs.
func (t *Tracker) Len() int {
	return len(t.seen)
}
