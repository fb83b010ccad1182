// Package support holds the small shared data structures spec.md §9
// calls out as common to several passes: a FIFO worklist with set-based
// dedupe.
package support

// Worklist is a FIFO queue of comparable items with a set-based dedupe
// side-index, so pushing an item already pending is a no-op (spec.md §9
// "Worklists"). Re-pushing an item that has already been popped and
// re-processed is allowed; the dedupe only suppresses duplicates while
// an item is still pending.
type Worklist[T comparable] struct {
	queue  []T
	queued map[T]bool
}

// NewWorklist builds an empty worklist, optionally seeded with items.
func NewWorklist[T comparable](seed ...T) *Worklist[T] {
	w := &Worklist[T]{queued: make(map[T]bool, len(seed))}
	for _, s := range seed {
		w.Push(s)
	}
	return w
}

// Push enqueues item if it is not already pending.
func (w *Worklist[T]) Push(item T) {
	if w.queued[item] {
		return
	}
	w.queued[item] = true
	w.queue = append(w.queue, item)
}

// Pop removes and returns the front item; ok is false if empty.
func (w *Worklist[T]) Pop() (item T, ok bool) {
	if len(w.queue) == 0 {
		return item, false
	}
	item = w.queue[0]
	w.queue = w.queue[1:]
	delete(w.queued, item)
	return item, true
}

// Empty reports whether the worklist has no pending items.
func (w *Worklist[T]) Empty() bool { return len(w.queue) == 0 }

// Len reports the number of pending items.
func (w *Worklist[T]) Len() int { return len(w.queue) }
