package main

import (
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"whiteboard-server/core"
	"whiteboard-server/handlers/api/sessions"
	"whiteboard-server/handlers/websocket"
	"whiteboard-server/rooms"
	"whiteboard-server/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

func setupRouter(store core.WhiteboardStore) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	clientURL := os.Getenv("CLIENT_URL")
	corsOptions := cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if origin == "" {
				return false
			}
			if clientURL != "" && origin == clientURL {
				return true
			}

			parsed, err := url.Parse(origin)
			if err != nil {
				return false
			}

			switch parsed.Scheme {
			case "http", "https":
				switch parsed.Hostname() {
				case "localhost", "127.0.0.1", "[::1]":
					return true
				}
			}

			return false
		},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	r.Use(cors.Handler(corsOptions))

	r.Route("/api/sessions", func(r chi.Router) {
		r.Get("/", sessions.HandleList(store))
		r.Post("/save", sessions.HandleSave(store))
		r.Get("/{roomId}", sessions.HandleGet(store))
	})

	return r
}

func waitForShutdown(ioo *socketio.Server, coordinator *rooms.Coordinator) {
	exit := make(chan struct{})
	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	logrus.Info("Shutting down...")
	ioo.Close(nil)
	// Let accepted strokes reach the store before the process exits.
	coordinator.Wait()
	os.Exit(0)
}

func main() {
	logLevel := flag.String("loglevel", "info", "Set the logging level: debug, info, warn, error, fatal, panic")
	listenAddr := flag.String("listen", ":3000", "Set the server listen address")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, relying on the environment")
	}

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(level)

	store := stores.GetStore()
	registry := rooms.NewRegistry()
	broadcaster := rooms.NewBroadcaster(registry)
	coordinator := rooms.NewCoordinator(registry, broadcaster, store)

	r := setupRouter(store)
	ioo := websocket.SetupSocketIO(coordinator)
	r.Handle("/socket.io/", ioo.ServeHandler(nil))

	logrus.WithField("addr", *listenAddr).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddr, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(ioo, coordinator)
}
