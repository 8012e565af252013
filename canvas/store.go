package canvas

import (
	"math"
	"overlay-server/core"
	"sort"
	"sync"
)

// Store holds the overlays shown on the canvas (the active set, in insertion
// order) and the last known saved catalog, keyed by id.
//
// Updates merge field by field, so a drag that only touches the position
// never clobbers a style edit made in between.
//
// Once a canvas size is set, every overlay entering or changing in the active
// set is fitted inside it.
type Store struct {
	mu       sync.RWMutex
	canvas   core.Size
	active   []core.Overlay
	catalog  map[string]core.Overlay
	onChange []func()
}

func NewStore() *Store {
	return &Store{catalog: make(map[string]core.Overlay)}
}

// OnChange registers fn to run after every mutation of the active set.
// Callbacks run outside the store lock and may read the store.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *Store) changed() {
	s.mu.RLock()
	callbacks := append([]func(){}, s.onChange...)
	s.mu.RUnlock()

	for _, fn := range callbacks {
		fn()
	}
}

// SetCanvas sets the bounds active overlays are kept in and refits the ones
// already shown. Only the active set changes; the catalog keeps what was
// saved.
func (s *Store) SetCanvas(size core.Size) {
	if !size.Valid() {
		return
	}

	s.mu.Lock()
	s.canvas = size
	moved := false
	for i := range s.active {
		before := s.active[i].Rect()
		s.fit(&s.active[i])
		moved = moved || s.active[i].Rect() != before
	}
	s.mu.Unlock()

	if moved {
		s.changed()
	}
}

func (s *Store) Canvas() core.Size {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canvas
}

// fit must be called with s.mu held.
func (s *Store) fit(o *core.Overlay) {
	if !s.canvas.Valid() {
		return
	}
	r := core.Fit(o.Rect(), s.canvas)
	o.Position, o.Size = r.Position, r.Size
}

func (s *Store) indexOf(id string) int {
	for i := range s.active {
		if s.active[i].ID == id {
			return i
		}
	}
	return -1
}

// AddActive appends o to the active set. It reports false and leaves the set
// alone when an overlay with the same id is already shown.
func (s *Store) AddActive(o core.Overlay) bool {
	s.mu.Lock()
	if s.indexOf(o.ID) >= 0 {
		s.mu.Unlock()
		return false
	}
	s.fit(&o)
	s.active = append(s.active, o)
	s.mu.Unlock()

	s.changed()
	return true
}

// RemoveActive takes an overlay off the canvas. The catalog is not touched.
func (s *Store) RemoveActive(id string) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.active = append(s.active[:i], s.active[i+1:]...)
	s.mu.Unlock()

	s.changed()
	return true
}

// UpdateActive merges patch into the active overlay with the given id.
// Unknown ids are ignored: a pending drag update may race with the overlay
// being removed.
func (s *Store) UpdateActive(id string, patch core.Patch) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	patch.Apply(&s.active[i])
	s.fit(&s.active[i])
	s.mu.Unlock()

	s.changed()
	return true
}

// SetActive overwrites the active copy of o in place, keeping its slot.
func (s *Store) SetActive(o core.Overlay) bool {
	s.mu.Lock()
	i := s.indexOf(o.ID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.fit(&o)
	s.active[i] = o
	s.mu.Unlock()

	s.changed()
	return true
}

// Active returns a copy of the active set in rendering order.
func (s *Store) Active() []core.Overlay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Overlay{}, s.active...)
}

func (s *Store) ActiveByID(id string) (core.Overlay, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.active[i], true
	}
	return core.Overlay{}, false
}

// ReplaceCatalog swaps in a fresh snapshot of the saved catalog.
func (s *Store) ReplaceCatalog(overlays []core.Overlay) {
	catalog := make(map[string]core.Overlay, len(overlays))
	for _, o := range overlays {
		catalog[o.ID] = o
	}

	s.mu.Lock()
	s.catalog = catalog
	s.mu.Unlock()
}

func (s *Store) UpsertCatalog(o core.Overlay) {
	s.mu.Lock()
	s.catalog[o.ID] = o
	s.mu.Unlock()
}

// UpdateCatalog merges patch into the saved copy of id, if there is one.
func (s *Store) UpdateCatalog(id string, patch core.Patch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.catalog[id]
	if !ok {
		return false
	}
	patch.Apply(&o)
	s.catalog[id] = o
	return true
}

func (s *Store) RemoveCatalog(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.catalog[id]; !ok {
		return false
	}
	delete(s.catalog, id)
	return true
}

// Catalog returns the saved overlays ordered by id.
func (s *Store) Catalog() []core.Overlay {
	s.mu.RLock()
	overlays := make([]core.Overlay, 0, len(s.catalog))
	for _, o := range s.catalog {
		overlays = append(overlays, o)
	}
	s.mu.RUnlock()

	sort.Slice(overlays, func(i, j int) bool {
		return overlays[i].ID < overlays[j].ID
	})
	return overlays
}

func (s *Store) CatalogByID(id string) (core.Overlay, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.catalog[id]
	return o, ok
}

// HitTest returns the topmost visible active overlay under p. Overlays added
// later are drawn on top.
func (s *Store) HitTest(p core.Position) (core.Overlay, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.active) - 1; i >= 0; i-- {
		o := s.active[i]
		if o.Visible && o.Rect().Contains(p) {
			return o, true
		}
	}
	return core.Overlay{}, false
}

// Placement is an overlay ready for absolute positioning over the video.
type Placement struct {
	ID      string     `json:"id"`
	Kind    core.Kind  `json:"type"`
	Content string     `json:"content"`
	X       int        `json:"x"`
	Y       int        `json:"y"`
	Width   int        `json:"width"`
	Height  int        `json:"height"`
	Style   core.Style `json:"style"`
}

// Placements lists the visible active overlays in rendering order, rounded to
// whole pixels with render defaults applied to their style.
func (s *Store) Placements() []Placement {
	s.mu.RLock()
	defer s.mu.RUnlock()

	placements := make([]Placement, 0, len(s.active))
	for _, o := range s.active {
		if !o.Visible {
			continue
		}
		placements = append(placements, Placement{
			ID:      o.ID,
			Kind:    o.Kind,
			Content: o.Content,
			X:       int(math.Round(o.Position.X)),
			Y:       int(math.Round(o.Position.Y)),
			Width:   int(math.Round(o.Size.Width)),
			Height:  int(math.Round(o.Size.Height)),
			Style:   o.Style.Resolve(),
		})
	}
	return placements
}
