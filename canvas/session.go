package canvas

import (
	"context"
	"overlay-server/core"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Gateway is the persistence service as the engine sees it.
type Gateway interface {
	CreateOverlay(ctx context.Context, draft core.Draft) (*core.Overlay, error)
	ListOverlays(ctx context.Context) ([]core.Overlay, error)
	UpdateOverlay(ctx context.Context, id string, patch core.Patch) error
	DeleteOverlay(ctx context.Context, id string) error
}

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Notice is a transient, user-visible report of a failed or notable operation.
type Notice struct {
	Level     Level
	Op        string
	OverlayID string
	Err       error
}

type Notifier interface {
	Notify(n Notice)
}

type NotifierFunc func(n Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier reports notices through logrus.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notice) {
	entry := logrus.WithFields(logrus.Fields{
		"op":         n.Op,
		"overlay_id": n.OverlayID,
	})
	if n.Err != nil {
		entry = entry.WithError(n.Err)
	}
	switch n.Level {
	case LevelError:
		entry.Error("Overlay sync failed")
	case LevelWarn:
		entry.Warn("Overlay sync problem")
	default:
		entry.Info("Overlay sync")
	}
}

// DefaultPushTimeout bounds a single background update.
const DefaultPushTimeout = 10 * time.Second

type Options struct {
	Notifier    Notifier
	PushTimeout time.Duration
}

type push struct {
	op    string
	id    string
	patch core.Patch
}

// Session keeps a Store in step with the persistence service. Local edits are
// applied at once and pushed in the background, in order. Failed pushes are
// reported and not retried; the local change stays.
//
// Every local mutation is stamped from a session-wide counter. A refresh only
// overwrites an active overlay when nothing touched it locally after the
// refresh started, no push for it is still queued and no gesture holds it, so
// late responses never undo newer local state. Refresh writes to the store
// with the session lock held; Store.OnChange callbacks must not call back
// into the Session.
type Session struct {
	store       *Store
	gateway     Gateway
	notifier    Notifier
	pushTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	clock    uint64
	touched  map[string]uint64
	inflight map[string]int
	held     map[string]int
	queue    []push
	draining bool
	closed   bool
	pending  sync.WaitGroup
}

func NewSession(store *Store, gateway Gateway, opts Options) *Session {
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{}
	}
	if opts.PushTimeout <= 0 {
		opts.PushTimeout = DefaultPushTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		store:       store,
		gateway:     gateway,
		notifier:    opts.Notifier,
		pushTimeout: opts.PushTimeout,
		ctx:         ctx,
		cancel:      cancel,
		touched:     make(map[string]uint64),
		inflight:    make(map[string]int),
		held:        make(map[string]int),
	}
}

func (s *Session) Store() *Store {
	return s.store
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// touch records a local mutation of id.
func (s *Session) touch(id string) {
	s.mu.Lock()
	s.clock++
	s.touched[id] = s.clock
	s.mu.Unlock()
}

// Hold keeps refreshes away from id until the matching Release. Controllers
// hold the overlay under a gesture so a refresh cannot move it mid-drag.
func (s *Session) Hold(id string) {
	s.mu.Lock()
	s.held[id]++
	s.mu.Unlock()
}

func (s *Session) Release(id string) {
	s.mu.Lock()
	if s.held[id]--; s.held[id] <= 0 {
		delete(s.held, id)
	}
	s.mu.Unlock()
}

func (s *Session) notify(level Level, op, id string, err error) {
	s.notifier.Notify(Notice{Level: level, Op: op, OverlayID: id, Err: err})
}

// Load fetches the catalog and shows every saved overlay.
func (s *Session) Load(ctx context.Context) error {
	overlays, err := s.gateway.ListOverlays(ctx)
	if err != nil {
		s.notify(LevelError, "load", "", err)
		return err
	}
	if s.isClosed() {
		return nil
	}

	s.store.ReplaceCatalog(overlays)
	for _, o := range overlays {
		s.store.AddActive(o)
	}
	logrus.WithField("overlays", len(overlays)).Debug("Catalog loaded")
	return nil
}

// Create validates draft locally, saves it and shows the result. Nothing is
// added when validation or the service fails.
func (s *Session) Create(ctx context.Context, draft core.Draft) (*core.Overlay, error) {
	if err := draft.Validate(); err != nil {
		s.notify(LevelWarn, "create", "", err)
		return nil, err
	}

	overlay, err := s.gateway.CreateOverlay(ctx, draft)
	if err != nil {
		s.notify(LevelError, "create", "", err)
		return nil, err
	}
	if s.isClosed() {
		return overlay, nil
	}

	s.touch(overlay.ID)
	s.store.UpsertCatalog(*overlay)
	s.store.AddActive(*overlay)
	return overlay, nil
}

// Edit applies patch to the active overlay and pushes it. Invalid patches are
// rejected before anything changes; an overlay that is not on the canvas
// yields a NotFoundError without a push.
func (s *Session) Edit(id string, patch core.Patch) error {
	if err := patch.Validate(); err != nil {
		s.notify(LevelWarn, "update", id, err)
		return err
	}
	if patch.Empty() {
		return nil
	}
	if !s.store.UpdateActive(id, patch) {
		return &core.NotFoundError{ID: id}
	}

	// Push the geometry the store kept, which may have been fitted to the canvas.
	if patch.Position != nil || patch.Size != nil {
		if o, ok := s.store.ActiveByID(id); ok {
			if patch.Position != nil {
				pos := o.Position
				patch.Position = &pos
			}
			if patch.Size != nil {
				size := o.Size
				patch.Size = &size
			}
		}
	}

	s.touch(id)
	s.enqueue(push{op: "update", id: id, patch: patch})
	return nil
}

func (s *Session) SetVisible(id string, visible bool) error {
	return s.Edit(id, core.Patch{Visible: &visible})
}

// CommitPosition pushes the position a drag ended at. The store already holds it.
func (s *Session) CommitPosition(id string, pos core.Position) {
	s.touch(id)
	s.enqueue(push{op: "move", id: id, patch: core.Patch{Position: &pos}})
}

// CommitSize pushes the size a resize ended at.
func (s *Session) CommitSize(id string, size core.Size) {
	s.touch(id)
	s.enqueue(push{op: "resize", id: id, patch: core.Patch{Size: &size}})
}

// Delete removes the overlay from both sets once the service confirms. On
// failure local state is left as it was.
func (s *Session) Delete(ctx context.Context, id string) error {
	if err := s.gateway.DeleteOverlay(ctx, id); err != nil {
		level := LevelError
		if core.IsNotFound(err) {
			level = LevelWarn
		}
		s.notify(level, "delete", id, err)
		return err
	}
	if s.isClosed() {
		return nil
	}

	s.store.RemoveActive(id)
	s.store.RemoveCatalog(id)

	s.mu.Lock()
	delete(s.touched, id)
	s.mu.Unlock()
	return nil
}

// Refresh replaces the catalog with the service's snapshot and brings active
// overlays up to date, except those mutated locally since the refresh began.
// Active overlays the service no longer knows are dropped under the same rule.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	started := s.clock
	s.mu.Unlock()

	overlays, err := s.gateway.ListOverlays(ctx)
	if err != nil {
		s.notify(LevelError, "refresh", "", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	stale := func(id string) bool {
		return s.touched[id] > started || s.inflight[id] > 0 || s.held[id] > 0
	}

	saved := make(map[string]core.Overlay, len(overlays))
	for _, o := range overlays {
		saved[o.ID] = o
	}

	var keep []core.Overlay
	var replace []core.Overlay
	var drop []string
	for _, o := range s.store.Active() {
		fresh, ok := saved[o.ID]
		switch {
		case stale(o.ID):
			keep = append(keep, o)
		case ok:
			replace = append(replace, fresh)
		default:
			drop = append(drop, o.ID)
		}
	}

	s.store.ReplaceCatalog(overlays)
	for _, o := range keep {
		if _, ok := saved[o.ID]; ok {
			s.store.UpsertCatalog(o)
		}
	}
	for _, o := range replace {
		s.store.SetActive(o)
	}
	for _, id := range drop {
		s.store.RemoveActive(id)
	}

	logrus.WithFields(logrus.Fields{
		"overlays": len(overlays),
		"kept":     len(keep),
		"dropped":  len(drop),
	}).Debug("Catalog refreshed")
	return nil
}

// Watch refreshes on every change event until ctx ends or feed closes.
// Events that originate from origin are this client's own writes and are
// skipped.
func (s *Session) Watch(ctx context.Context, feed <-chan core.ChangeEvent, origin string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-feed:
			if !ok {
				return nil
			}
			if origin != "" && event.Origin == origin {
				continue
			}
			logrus.WithFields(logrus.Fields{
				"type":       event.Type,
				"overlay_id": event.OverlayID,
			}).Debug("Remote change received")
			if event.Type == core.ChangeSettings {
				continue
			}
			s.Refresh(ctx)
		}
	}
}

func (s *Session) enqueue(p push) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.queue = append(s.queue, p)
	s.inflight[p.id]++
	s.pending.Add(1)
	if !s.draining {
		s.draining = true
		go s.drain()
	}
}

// drain sends queued pushes one at a time so writes reach the service in the
// order they were made.
func (s *Session) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		p := s.queue[0]
		s.queue = s.queue[1:]
		closed := s.closed
		s.mu.Unlock()

		if !closed {
			s.send(p)
		}

		s.mu.Lock()
		if s.inflight[p.id]--; s.inflight[p.id] <= 0 {
			delete(s.inflight, p.id)
		}
		s.mu.Unlock()
		s.pending.Done()
	}
}

func (s *Session) send(p push) {
	ctx, cancel := context.WithTimeout(s.ctx, s.pushTimeout)
	defer cancel()

	err := s.gateway.UpdateOverlay(ctx, p.id, p.patch)
	if s.isClosed() {
		return
	}

	if err != nil {
		if _, shown := s.store.ActiveByID(p.id); !shown {
			logrus.WithField("overlay_id", p.id).WithError(err).Debug("Discarding result for removed overlay")
			return
		}
		level := LevelError
		if core.IsNotFound(err) {
			level = LevelWarn
		}
		s.notify(level, p.op, p.id, err)
		return
	}

	s.store.UpdateCatalog(p.id, p.patch)
}

// Wait blocks until every queued push has been sent or discarded.
func (s *Session) Wait() {
	s.pending.Wait()
}

// Close stops the session. Queued pushes are dropped and responses still in
// flight are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
}
