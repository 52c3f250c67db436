package batching

import (
	"sync"
	"time"

	"github.com/treehouse/go-batch-backend/internal/catalog"
)

// Slot is the capacity-bounded accumulation of orders for one restaurant in
// one window. Values returned by the registry are snapshots; only the
// registry mutates counters.
type Slot struct {
	Restaurant string `json:"restaurant"`
	Window     Window `json:"window"`
	Current    int    `json:"current"`
	Max        int    `json:"max"`
	FeeCents   int64  `json:"fee_cents"`
}

// Registry tracks reservation counts per (restaurant, window). Slot counters
// are guarded by per-slot mutexes so reservations against unrelated slots
// never contend; the outer RWMutex only guards map shape.
type Registry struct {
	cat        *catalog.Catalog
	defaultMax int
	defaultFee int64

	mu    sync.RWMutex
	slots map[slotKey]*slotState
}

type slotKey struct {
	restaurant string
	closesAt   int64 // unix seconds of Window.ClosesAt
}

type slotState struct {
	mu   sync.Mutex
	slot Slot
}

// NewRegistry builds a registry over the catalog. defaultMax and
// defaultFeeCents apply to restaurants without per-restaurant overrides.
func NewRegistry(cat *catalog.Catalog, defaultMax int, defaultFeeCents int64) *Registry {
	if defaultMax < 1 {
		defaultMax = 1
	}
	return &Registry{
		cat:        cat,
		defaultMax: defaultMax,
		defaultFee: defaultFeeCents,
		slots:      make(map[slotKey]*slotState),
	}
}

// Reserve atomically claims one unit of capacity in the slot for restaurant
// and w. It returns the post-reservation snapshot and true on success, or
// the unchanged snapshot and false when the slot is full.
func (r *Registry) Reserve(restaurant string, w Window) (Slot, bool) {
	st := r.state(restaurant, w)
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.slot.Current >= st.slot.Max {
		return st.slot, false
	}
	st.slot.Current++
	return st.slot, true
}

// Release returns one unit of capacity, flooring the counter at zero.
func (r *Registry) Release(restaurant string, w Window) {
	st := r.state(restaurant, w)
	st.mu.Lock()
	if st.slot.Current > 0 {
		st.slot.Current--
	}
	st.mu.Unlock()
}

// ActiveSlots returns a snapshot of every catalog restaurant's slot for w,
// in catalog order. Slots that have seen no reservations report Current 0.
func (r *Registry) ActiveSlots(w Window) []Slot {
	names := r.cat.Names()
	out := make([]Slot, 0, len(names))
	for _, name := range names {
		st := r.state(name, w)
		st.mu.Lock()
		out = append(out, st.slot)
		st.mu.Unlock()
	}
	return out
}

// Evict drops slot state for windows that closed before cutoff. Called by
// the dispatcher after a window is fully processed to bound memory.
func (r *Registry) Evict(cutoff time.Time) {
	r.mu.Lock()
	for k := range r.slots {
		if time.Unix(k.closesAt, 0).Before(cutoff) {
			delete(r.slots, k)
		}
	}
	r.mu.Unlock()
}

// state fetches or lazily creates the slot state for (restaurant, w).
func (r *Registry) state(restaurant string, w Window) *slotState {
	key := slotKey{restaurant: restaurant, closesAt: w.ClosesAt.Unix()}

	r.mu.RLock()
	st, ok := r.slots[key]
	r.mu.RUnlock()
	if ok {
		return st
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok = r.slots[key]; ok {
		return st
	}

	max, fee := r.defaultMax, r.defaultFee
	if rest, ok := r.cat.Lookup(restaurant); ok {
		if rest.MaxPerWindow > 0 {
			max = rest.MaxPerWindow
		}
		if rest.FeeCents > 0 {
			fee = rest.FeeCents
		}
	}
	st = &slotState{slot: Slot{
		Restaurant: restaurant,
		Window:     w,
		Max:        max,
		FeeCents:   fee,
	}}
	r.slots[key] = st
	return st
}
