package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"overlay-server/auth"
	"overlay-server/canvas"
	"overlay-server/config"
	"overlay-server/core"
	"overlay-server/gateway"
	"overlay-server/stream"
	"sync"
	"text/tabwriter"
)

type (
	overlayGateway = canvas.Gateway

	streamSettings interface {
		GetStreamSettings(ctx context.Context) (*gateway.StreamSettings, error)
		SetStreamURL(ctx context.Context, streamURL string) (*gateway.StreamSettings, error)
	}

	changeFeed interface {
		Subscribe(ctx context.Context) (<-chan core.ChangeEvent, error)
	}
)

func newResolver(cfg config.Config) stream.Resolver {
	return stream.NewResolver(cfg.MediaServerURL, cfg.DefaultStreamURL)
}

// localSettings serves stream settings straight from a store.
type localSettings struct {
	store    core.SettingsStore
	resolver stream.Resolver
}

func (l localSettings) GetStreamSettings(ctx context.Context) (*gateway.StreamSettings, error) {
	url, err := l.store.GetStreamURL(ctx)
	if err != nil {
		return nil, err
	}
	return &gateway.StreamSettings{StreamURL: url, Stream: l.resolver.Resolve(url)}, nil
}

func (l localSettings) SetStreamURL(ctx context.Context, streamURL string) (*gateway.StreamSettings, error) {
	if streamURL == "" {
		return nil, &core.ValidationError{Field: "streamUrl", Reason: "is required"}
	}
	if err := l.store.SetStreamURL(ctx, streamURL); err != nil {
		return nil, err
	}
	return l.GetStreamSettings(ctx)
}

// failures collects error notices so a command can fail after its
// background pushes finish.
type failures struct {
	mu   sync.Mutex
	errs []error
}

func (f *failures) Notify(n canvas.Notice) {
	canvas.LogNotifier{}.Notify(n)
	if n.Level != canvas.LevelError || n.Err == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, fmt.Errorf("%s %s: %w", n.Op, n.OverlayID, n.Err))
}

func (f *failures) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) == 0 {
		return nil
	}
	return f.errs[0]
}

type commands struct {
	backend *backend
	canvas  core.Size
	stdout  io.Writer
	stderr  io.Writer
}

func (c *commands) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func (c *commands) session() (*canvas.Session, *failures) {
	notices := &failures{}
	return canvas.NewSession(canvas.NewStore(), c.backend.gateway, canvas.Options{Notifier: notices}), notices
}

func (c *commands) list(ctx context.Context) error {
	overlays, err := c.backend.gateway.ListOverlays(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tX\tY\tWIDTH\tHEIGHT\tVISIBLE\tCONTENT")
	for _, o := range overlays {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%g\t%g\t%g\t%t\t%s\n",
			o.ID, o.Name, o.Kind, o.Position.X, o.Position.Y, o.Size.Width, o.Size.Height, o.Visible, truncate(o.Content, 40))
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func (c *commands) create(ctx context.Context, args []string) error {
	fs := c.flags("create")
	name := fs.String("name", "", "display name")
	content := fs.String("content", "", "text, or image URL for image overlays")
	kind := fs.String("type", "text", "text or image")
	x := fs.Float64("x", core.DefaultPosition.X, "left edge")
	y := fs.Float64("y", core.DefaultPosition.Y, "top edge")
	w := fs.Float64("w", core.DefaultSize.Width, "width")
	h := fs.Float64("h", core.DefaultSize.Height, "height")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pos := core.Position{X: *x, Y: *y}
	size := core.Size{Width: *w, Height: *h}
	draft := core.Draft{
		Name:     *name,
		Kind:     *kind,
		Content:  *content,
		Position: &pos,
		Size:     &size,
	}

	session, _ := c.session()
	defer session.Close()

	overlay, err := session.Create(ctx, draft)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, overlay.ID)
	return nil
}

func idFlag(fs *flag.FlagSet) *string {
	return fs.String("id", "", "overlay id")
}

func requireID(id string) error {
	if id == "" {
		return &core.ValidationError{Field: "id", Reason: "is required"}
	}
	return nil
}

// gesture loads the catalog and leaves only the target on the canvas, shown,
// so a simulated pointer reaches it whatever else is stacked above it.
func (c *commands) gesture(ctx context.Context, id string) (*canvas.Session, *failures, core.Overlay, error) {
	session, notices := c.session()
	if err := session.Load(ctx); err != nil {
		session.Close()
		return nil, nil, core.Overlay{}, err
	}

	store := session.Store()
	target, ok := store.ActiveByID(id)
	if !ok {
		session.Close()
		return nil, nil, core.Overlay{}, &core.NotFoundError{ID: id}
	}
	for _, o := range store.Active() {
		if o.ID != id {
			store.RemoveActive(o.ID)
		}
	}
	target.Visible = true
	store.SetActive(target)

	return session, notices, target, nil
}

// dragTo presses inside the overlay away from the resize handle and releases
// at the point that puts its top-left corner on to.
func dragTo(ctrl *canvas.Controller, o core.Overlay, to core.Position) error {
	grab := core.Position{X: 1, Y: 1}
	if !ctrl.PointerDown(o.Position.Add(grab)) {
		return fmt.Errorf("overlay %s could not be picked up", o.ID)
	}
	ctrl.PointerMove(to.Add(grab))
	ctrl.PointerUp()
	return nil
}

// resizeTo presses just inside the bottom-right handle and releases where
// the corner should end up.
func resizeTo(ctrl *canvas.Controller, o core.Overlay, to core.Size) error {
	inset := core.Position{X: 1, Y: 1}
	corner := o.Position.Add(core.Position{X: o.Size.Width, Y: o.Size.Height})
	if !ctrl.PointerDown(corner.Sub(inset)) || ctrl.State() != canvas.Resizing {
		ctrl.Cancel()
		return fmt.Errorf("overlay %s could not be resized", o.ID)
	}
	ctrl.PointerMove(o.Position.Add(core.Position{X: to.Width, Y: to.Height}).Sub(inset))
	ctrl.PointerUp()
	return nil
}

func (c *commands) move(ctx context.Context, args []string) error {
	fs := c.flags("move")
	id := idFlag(fs)
	x := fs.Float64("x", 0, "new left edge")
	y := fs.Float64("y", 0, "new top edge")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID(*id); err != nil {
		return err
	}

	session, notices, target, err := c.gesture(ctx, *id)
	if err != nil {
		return err
	}
	defer session.Close()

	ctrl := canvas.NewController(session.Store(), session, c.canvas)
	if err := dragTo(ctrl, target, core.Position{X: *x, Y: *y}); err != nil {
		return err
	}
	session.Wait()
	if err := notices.err(); err != nil {
		return err
	}

	moved, _ := session.Store().ActiveByID(*id)
	fmt.Fprintf(c.stdout, "%s moved to (%g, %g)\n", *id, moved.Position.X, moved.Position.Y)
	return nil
}

func (c *commands) resize(ctx context.Context, args []string) error {
	fs := c.flags("resize")
	id := idFlag(fs)
	w := fs.Float64("w", 0, "new width")
	h := fs.Float64("h", 0, "new height")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID(*id); err != nil {
		return err
	}

	session, notices, target, err := c.gesture(ctx, *id)
	if err != nil {
		return err
	}
	defer session.Close()

	ctrl := canvas.NewController(session.Store(), session, c.canvas)
	if err := resizeTo(ctrl, target, core.Size{Width: *w, Height: *h}); err != nil {
		return err
	}
	session.Wait()
	if err := notices.err(); err != nil {
		return err
	}

	resized, _ := session.Store().ActiveByID(*id)
	fmt.Fprintf(c.stdout, "%s resized to %gx%g\n", *id, resized.Size.Width, resized.Size.Height)
	return nil
}

func (c *commands) setVisible(ctx context.Context, args []string, visible bool) error {
	fs := c.flags("visibility")
	id := idFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID(*id); err != nil {
		return err
	}

	session, notices := c.session()
	defer session.Close()
	if err := session.Load(ctx); err != nil {
		return err
	}
	if err := session.SetVisible(*id, visible); err != nil {
		return err
	}
	session.Wait()
	return notices.err()
}

func (c *commands) delete(ctx context.Context, args []string) error {
	fs := c.flags("delete")
	id := idFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireID(*id); err != nil {
		return err
	}

	session, _ := c.session()
	defer session.Close()
	if err := session.Delete(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s deleted\n", *id)
	return nil
}

func (c *commands) stream(ctx context.Context, args []string) error {
	fs := c.flags("stream")
	set := fs.String("set", "", "new stream URL")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		settings *gateway.StreamSettings
		err      error
	)
	if *set != "" {
		settings, err = c.backend.settings.SetStreamURL(ctx, *set)
	} else {
		settings, err = c.backend.settings.GetStreamSettings(ctx)
	}
	if err != nil {
		return err
	}

	configured := settings.StreamURL
	if configured == "" {
		configured = "(default)"
	}
	fmt.Fprintf(c.stdout, "configured: %s\nplay (%s): %s\n", configured, settings.Stream.Kind, settings.Stream.URL)
	return nil
}

func (c *commands) watch(ctx context.Context) error {
	if c.backend.feed == nil {
		return fmt.Errorf("watch needs the API; it is not available with -db")
	}

	feed, err := c.backend.feed.Subscribe(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(c.stdout)
	for event := range feed {
		if err := enc.Encode(event); err != nil {
			return err
		}
	}
	return nil
}

func cmdToken(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	subject := fs.String("subject", "", "token subject, e.g. the operator's login")
	name := fs.String("name", "", "display name carried in the token")
	ttl := fs.Duration("ttl", auth.DefaultTokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *subject == "" {
		return &core.ValidationError{Field: "subject", Reason: "is required"}
	}

	cfg := config.Load()
	token, err := auth.IssueToken([]byte(cfg.JWTSecret), *subject, *name, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}
