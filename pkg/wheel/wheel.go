package wheel

import (
	"container/heap"
	"time"
)

// Entry is a single pending wake-up tracked by the wheel. The kernel
// keeps LogIndex so two entries with identical FireAt tie-break by
// ascending log index, per spec's ordering rule.
type Entry struct {
	TimerID  string
	TenantID string
	FireAt   time.Time
	LogIndex uint64

	level int // which level currently owns this entry, -1 for overflow
	slot  int
}

// levelSpec describes one cascading level: numSlots buckets, each
// spanning slotWidth of wall time, giving the level a total horizon of
// numSlots*slotWidth before an entry must cascade down from the level
// above (or be created directly in it).
type levelSpec struct {
	slotWidth time.Duration
	numSlots  int
}

// defaultLevels approximates the spec's "256 ms / 16 s / 16 min / 16 hr"
// cascading resolutions: level 0 resolves to ~1ms over a 256ms horizon,
// level 1 to 256ms over ~16s, level 2 to 16s over ~16min, level 3 to
// ~16min over ~16hr. Timers further out than the top level's horizon
// live in the overflow heap until a rotation brings them into range.
func defaultLevels() []levelSpec {
	return []levelSpec{
		{slotWidth: time.Millisecond, numSlots: 256},
		{slotWidth: 256 * time.Millisecond, numSlots: 64},
		{slotWidth: 16 * time.Second, numSlots: 60},
		{slotWidth: 16 * time.Minute, numSlots: 60},
	}
}

type level struct {
	spec   levelSpec
	slots  [][]*Entry
	cursor int // index of the slot representing "now" at this level
}

func newLevel(spec levelSpec) *level {
	return &level{spec: spec, slots: make([][]*Entry, spec.numSlots)}
}

func (lv *level) span() time.Duration {
	return lv.spec.slotWidth * time.Duration(lv.spec.numSlots)
}

// overflowHeap orders entries beyond the top level's horizon by fire
// instant, then by log index, so cascading drains them in fire order.
type overflowHeap []*Entry

func (h overflowHeap) Len() int { return len(h) }
func (h overflowHeap) Less(i, j int) bool {
	if h[i].FireAt.Equal(h[j].FireAt) {
		return h[i].LogIndex < h[j].LogIndex
	}
	return h[i].FireAt.Before(h[j].FireAt)
}
func (h overflowHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *overflowHeap) Push(x any)        { *h = append(*h, x.(*Entry)) }
func (h *overflowHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Wheel is the kernel's hierarchical timing wheel. It is not safe for
// concurrent use; the kernel makes every call (FSM.Apply's Add/Cancel
// and the leader's Advance) while holding one lock.
type Wheel struct {
	levels []*level
	spill  overflowHeap // entries beyond the outermost level's horizon
	now    time.Time
	byID   map[string]*Entry
}

// New creates a wheel anchored at now.
func New(now time.Time) *Wheel {
	specs := defaultLevels()
	w := &Wheel{
		levels: make([]*level, len(specs)),
		now:    now,
		byID:   make(map[string]*Entry),
	}
	for i, s := range specs {
		w.levels[i] = newLevel(s)
	}
	heap.Init(&w.spill)
	return w
}

// Len reports how many entries are currently tracked.
func (w *Wheel) Len() int { return len(w.byID) }

// Add places a timer into the wheel relative to the wheel's current
// notion of now. Re-adding an id replaces its prior placement.
func (w *Wheel) Add(e *Entry) {
	if old, ok := w.byID[e.TimerID]; ok {
		w.remove(old)
	}
	cp := *e
	w.place(&cp, w.now)
	w.byID[e.TimerID] = &cp
}

// Cancel removes a tracked timer. Reports whether it was present.
func (w *Wheel) Cancel(timerID string) bool {
	e, ok := w.byID[timerID]
	if !ok {
		return false
	}
	w.remove(e)
	delete(w.byID, timerID)
	return true
}

// Peek returns the entry for a timer id without removing it.
func (w *Wheel) Peek(timerID string) (*Entry, bool) {
	e, ok := w.byID[timerID]
	if !ok {
		return nil, false
	}
	cp := *e
	return &cp, true
}

func (w *Wheel) remove(e *Entry) {
	if e.level < 0 {
		for i, x := range w.spill {
			if x == e {
				heap.Remove(&w.spill, i)
				return
			}
		}
		return
	}
	lv := w.levels[e.level]
	bucket := lv.slots[e.slot]
	for i, x := range bucket {
		if x == e {
			lv.slots[e.slot] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}

// place computes which level/slot (or the overflow heap) an entry
// belongs in given the wheel's current anchor time.
func (w *Wheel) place(e *Entry, from time.Time) {
	delta := e.FireAt.Sub(from)
	if delta < 0 {
		delta = 0
	}

	for i, lv := range w.levels {
		if delta < lv.span() {
			offset := int(delta / lv.spec.slotWidth)
			// slots[cursor] was already drained when the cursor reached
			// it; an entry placed there would wait a full rotation. Land
			// sub-slot and past-due entries in the next slot instead, so
			// they come due on the very next tick.
			if offset == 0 {
				offset = 1
			}
			slot := (lv.cursor + offset) % lv.spec.numSlots
			e.level = i
			e.slot = slot
			lv.slots[slot] = append(lv.slots[slot], e)
			return
		}
	}
	e.level = -1
	heap.Push(&w.spill, e)
}

// bulkRebuildTicks bounds how many individual 1-tick cascades Advance
// will perform before switching to a direct rebuild. Real operation
// ticks in ~10ms steps, well under this; it only engages after a long
// gap (e.g. a kernel resuming after being down for hours), where
// per-tick cascading would otherwise mean millions of empty iterations.
const bulkRebuildTicks = 2000

// Advance moves the wheel's clock to now, cascading levels as needed,
// and returns every entry whose fire instant has been reached, ordered
// by fire instant then ascending log index (the spec's tie-break rule).
// Entries are removed from the wheel as part of being returned; the
// caller (the kernel) is responsible for committing the fired
// transition and re-adding anything that should stay pending.
func (w *Wheel) Advance(now time.Time) []*Entry {
	if !now.After(w.now) {
		return nil
	}

	tick := w.levels[0].spec.slotWidth
	ticksNeeded := now.Sub(w.now) / tick

	var due []*Entry
	if ticksNeeded > bulkRebuildTicks {
		due = w.rebuild(now)
	} else {
		for w.now.Before(now) {
			w.now = w.now.Add(tick)
			due = append(due, w.tickOnce()...)
		}
	}
	sortEntries(due)
	for _, e := range due {
		delete(w.byID, e.TimerID)
	}
	return due
}

// tickOnce advances level 0 by exactly one slot, cascading a higher
// level down only when the level below it just completed a full
// rotation, and returns any entries that landed in the level-0 slot
// now representing "now".
func (w *Wheel) tickOnce() []*Entry {
	lv0 := w.levels[0]
	lv0.cursor = (lv0.cursor + 1) % lv0.spec.numSlots
	due := lv0.slots[lv0.cursor]
	lv0.slots[lv0.cursor] = nil

	wrapped := lv0.cursor == 0
	topWrapped := false
	for i := 1; i < len(w.levels) && wrapped; i++ {
		lv := w.levels[i]
		lv.cursor = (lv.cursor + 1) % lv.spec.numSlots
		bucket := lv.slots[lv.cursor]
		lv.slots[lv.cursor] = nil
		for _, e := range bucket {
			w.place(e, w.now)
		}
		wrapped = lv.cursor == 0
		topWrapped = wrapped && i == len(w.levels)-1
	}
	if topWrapped {
		w.drainSpill()
	}

	return due
}

// rebuild re-derives every level/slot placement from scratch against a
// new anchor time, used for jumps too large to tick through one slot at
// a time. It is the bulk-catch-up analogue of repeated tickOnce calls:
// same placement rule (place), same ordering guarantee, O(pending
// timers) instead of O(elapsed ticks).
func (w *Wheel) rebuild(now time.Time) []*Entry {
	pending := make([]*Entry, 0, len(w.byID))
	for _, e := range w.byID {
		pending = append(pending, e)
	}

	for _, lv := range w.levels {
		lv.slots = make([][]*Entry, lv.spec.numSlots)
		lv.cursor = 0
	}
	w.spill = w.spill[:0]
	w.now = now

	var due []*Entry
	for _, e := range pending {
		if !e.FireAt.After(now) {
			due = append(due, e)
			continue
		}
		w.place(e, now)
	}
	return due
}

// drainSpill moves overflow entries that now fit inside the wheel's
// levels back in, called whenever the outermost level completes a
// rotation and therefore has newly-opened capacity.
func (w *Wheel) drainSpill() {
	top := w.levels[len(w.levels)-1]
	horizon := w.now.Add(top.span())
	for w.spill.Len() > 0 {
		e := w.spill[0]
		if e.FireAt.After(horizon) {
			break
		}
		heap.Pop(&w.spill)
		w.place(e, w.now)
	}
}

func sortEntries(es []*Entry) {
	// Insertion sort: due slices are small (one tick's worth) so this
	// avoids pulling in sort for a handful of elements, matching the
	// kernel's "process every eligible timer before acking the tick"
	// ordering rule (fire instant, then ascending log index).
	for i := 1; i < len(es); i++ {
		j := i
		for j > 0 && less(es[j], es[j-1]) {
			es[j], es[j-1] = es[j-1], es[j]
			j--
		}
	}
}

func less(a, b *Entry) bool {
	if a.FireAt.Equal(b.FireAt) {
		return a.LogIndex < b.LogIndex
	}
	return a.FireAt.Before(b.FireAt)
}
