// Command overlayctl manages the overlays of a running overlay server, or of
// a local SQLite database when -db is given.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"overlay-server/config"
	"overlay-server/core"
	"overlay-server/gateway"
	"overlay-server/stores/sqlite"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
)

const usage = `usage: overlayctl [global flags] <command> [flags]

commands:
  list                          print the saved overlays
  create -content c [-name n] [-type text|image] [-x -y -w -h]
  move   -id id -x x -y y       drag an overlay to a new position
  resize -id id -w w -h h       resize an overlay from its bottom-right handle
  hide   -id id
  show   -id id
  delete -id id
  stream [-set url]             print or change the stream URL
  watch                         print change events as they happen
  token  -subject s [-name n]   issue a bearer token signed with JWT_SECRET
`

type globals struct {
	apiURL   string
	token    string
	db       string
	canvas   core.Size
	logLevel string
}

func parseGlobals(args []string, stderr io.Writer) (globals, []string, error) {
	var g globals
	fs := flag.NewFlagSet("overlayctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }

	fs.StringVar(&g.apiURL, "api", envOr("OVERLAY_API_URL", "http://localhost:5000/api"), "overlay server API URL")
	fs.StringVar(&g.token, "token", os.Getenv("OVERLAY_TOKEN"), "bearer token for mutating requests")
	fs.StringVar(&g.db, "db", "", "operate on this SQLite database instead of the API")
	fs.Float64Var(&g.canvas.Width, "canvas-width", 800, "canvas width in pixels")
	fs.Float64Var(&g.canvas.Height, "canvas-height", 450, "canvas height in pixels")
	fs.StringVar(&g.logLevel, "loglevel", "warn", "Set the logging level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return g, nil, err
	}
	if !g.canvas.Valid() {
		return g, nil, fmt.Errorf("canvas size must be positive, got %gx%g", g.canvas.Width, g.canvas.Height)
	}
	return g, fs.Args(), nil
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

// backend is what the commands need from either the API client or a local store.
type backend struct {
	gateway  overlayGateway
	settings streamSettings
	feed     changeFeed
	close    func()
}

func openBackend(g globals) (*backend, error) {
	if g.db != "" {
		store := sqlite.NewOverlayStore(g.db)
		cfg := config.Load()
		return &backend{
			gateway:  gateway.NewLocal(store, nil, "overlayctl"),
			settings: localSettings{store: store, resolver: newResolver(cfg)},
			close:    func() { _ = store.Close() },
		}, nil
	}

	var opts []gateway.Option
	if g.token != "" {
		opts = append(opts, gateway.WithToken(g.token))
	}
	client := gateway.NewClient(g.apiURL, opts...)
	return &backend{
		gateway:  client,
		settings: client,
		feed:     client,
		close:    func() {},
	}, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	g, rest, err := parseGlobals(args, stderr)
	if err != nil {
		return err
	}
	level, err := logrus.ParseLevel(g.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logrus.SetLevel(level)

	if len(rest) == 0 {
		fmt.Fprint(stderr, usage)
		return errors.New("no command given")
	}
	name, cmdArgs := rest[0], rest[1:]

	// token needs no backend.
	if name == "token" {
		return cmdToken(cmdArgs, stdout, stderr)
	}

	b, err := openBackend(g)
	if err != nil {
		return err
	}
	defer b.close()

	c := &commands{backend: b, canvas: g.canvas, stdout: stdout, stderr: stderr}
	switch name {
	case "list":
		return c.list(ctx)
	case "create":
		return c.create(ctx, cmdArgs)
	case "move":
		return c.move(ctx, cmdArgs)
	case "resize":
		return c.resize(ctx, cmdArgs)
	case "hide":
		return c.setVisible(ctx, cmdArgs, false)
	case "show":
		return c.setVisible(ctx, cmdArgs, true)
	case "delete":
		return c.delete(ctx, cmdArgs)
	case "stream":
		return c.stream(ctx, cmdArgs)
	case "watch":
		return c.watch(ctx)
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", name)
	}
}

func main() {
	config.LoadDotEnv()
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "overlayctl: %v\n", err)
		os.Exit(1)
	}
}
