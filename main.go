package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"overlay-server/config"
	"overlay-server/core"
	"overlay-server/events"
	"overlay-server/handlers/api/health"
	"overlay-server/handlers/api/layouts"
	"overlay-server/handlers/api/overlays"
	"overlay-server/handlers/api/settings"
	"overlay-server/handlers/websocket"
	authmw "overlay-server/middleware"
	"overlay-server/stores"
	"overlay-server/stream"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

func setupRouter(cfg config.Config, store stores.Store, hub *events.Hub, viewers health.ViewerCounter) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsOptions := cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			return authmw.OriginAllowed(cfg.AllowedOrigins, origin)
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", core.OriginHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}
	r.Use(cors.Handler(corsOptions))

	// Non-browser clients send no Origin at all.
	feedOrigin := func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || authmw.OriginAllowed(cfg.AllowedOrigins, origin)
	}

	resolver := stream.NewResolver(cfg.MediaServerURL, cfg.DefaultStreamURL)
	requireToken := authmw.AuthJWT(cfg.JWTSecret)
	if cfg.JWTSecret == "" {
		logrus.Warn("JWT_SECRET not set, mutating routes are open")
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health.HandleHealth(store, viewers))

		r.Route("/overlays", func(r chi.Router) {
			r.Get("/", overlays.HandleList(store))
			r.Get("/events", websocket.HandleEvents(hub, feedOrigin))
			r.Get("/{id}", overlays.HandleGet(store))

			r.Group(func(r chi.Router) {
				r.Use(requireToken)
				r.Post("/", overlays.HandleCreate(store, hub))
				r.Put("/{id}", overlays.HandleUpdate(store, hub))
				r.Delete("/{id}", overlays.HandleDelete(store, hub))
			})
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/stream-url", settings.HandleGetStreamURL(store, resolver))
			r.Get("/rtsp", settings.HandleGetRTSP(store, resolver))

			r.Group(func(r chi.Router) {
				r.Use(requireToken)
				r.Post("/stream-url", settings.HandleSetStreamURL(store, resolver, hub))
				r.Post("/rtsp", settings.HandleSetRTSP(store, resolver, hub))
			})
		})

		// Layout API routes - only available with SQLite store
		if layoutStore, ok := store.(core.LayoutStore); ok {
			r.Route("/layouts", func(r chi.Router) {
				r.Get("/", layouts.HandleListLayouts(layoutStore))
				r.Get("/{layoutId}", layouts.HandleGetLayout(layoutStore))

				r.Group(func(r chi.Router) {
					r.Use(requireToken)
					r.Post("/", layouts.HandleCreateLayout(layoutStore, store))
					r.Delete("/{layoutId}", layouts.HandleDeleteLayout(layoutStore))
					r.Post("/{layoutId}/apply", layouts.HandleApplyLayout(layoutStore, store, hub))
				})
			})
			logrus.Info("Layout API routes registered")
		} else {
			logrus.Warn("Layout API not available - requires SQLite storage")
		}
	})

	return r
}

func waitForShutdown(server *http.Server, channel *websocket.Channel, hub *events.Hub) {
	exit := make(chan struct{})
	signalC := make(chan os.Signal, 1)

	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range signalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	logrus.Info("Shutting down...")

	// Closing the hub ends the change feeds and the socket.io relay.
	hub.Close()
	channel.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("Server shutdown incomplete")
	}
}

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	logLevel := flag.String("loglevel", "info", "Set the logging level: debug, info, warn, error, fatal, panic")
	listenAddr := flag.String("listen", cfg.ListenAddr, "Set the server listen address")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	store := stores.GetStore(cfg)
	hub := events.NewHub()

	channel := websocket.SetupSocketIO(cfg.AllowedOrigins)
	feed, _ := hub.Subscribe(events.DefaultBuffer)
	go channel.Relay(feed)

	r := setupRouter(cfg, store, hub, channel)
	r.Handle("/socket.io/", channel.Handler())

	server := &http.Server{Addr: *listenAddr, Handler: r}

	logrus.WithField("addr", *listenAddr).Info("starting server")
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(server, channel, hub)
}
