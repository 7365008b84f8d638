package main

import (
	"context"
	"drawsync-server/assets"
	"drawsync-server/core"
	"drawsync-server/engine"
	assetsapi "drawsync-server/handlers/api/assets"
	"drawsync-server/handlers/api/unfurl"
	"drawsync-server/handlers/websocket"
	"drawsync-server/rooms"
	"drawsync-server/stores"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	assetCacheTTL    = 24 * time.Hour
	unfurlCacheTTL   = time.Hour
	cacheSweepSize   = 1000
	shutdownDeadline = 5 * time.Second
)

func setupRouter(registry *rooms.Registry, snapshotStore core.SnapshotStore, assetStore *assets.Store, assetCache *assets.ResponseCache, unfurlCache *assets.ResponseCache) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Origin", "X-Requested-With", "Content-Type", "Accept", "Authorization"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		connect := websocket.HandleConnect(registry)
		r.Get("/connect/{roomId}", connect)
		r.Get("/connect", connect)
		r.Get("/connect/", connect)

		r.Post("/uploads/{uploadId}", assetsapi.HandleUpload(assetStore))
		r.Put("/uploads/{uploadId}", assetsapi.HandleUpload(assetStore))
		r.Get("/uploads/{uploadId}", assetsapi.HandleDownload(assetStore, assetCache))

		r.Get("/unfurl", unfurl.HandleUnfurl(unfurlCache, nil))

		r.Get("/rooms", handleListRooms(registry, snapshotStore))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, map[string]any{
				"status":    "ok",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
		})
	})

	return r
}

// handleListRooms merges rooms with live sessions and rooms known to the
// snapshot store into one listing, most active first.
func handleListRooms(registry *rooms.Registry, snapshotStore core.SnapshotStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomMap := make(map[string]*core.RoomInfo)

		for id, sessions := range registry.LiveRooms() {
			roomMap[id] = &core.RoomInfo{ID: id, Sessions: sessions}
		}

		stored, err := snapshotStore.List(r.Context())
		if err != nil {
			logrus.WithError(err).Warn("Failed to list rooms from store")
		} else {
			for _, room := range stored {
				entry, exists := roomMap[room.ID]
				if !exists {
					entry = &core.RoomInfo{ID: room.ID}
					roomMap[room.ID] = entry
				}
				entry.LastActive = room.LastActive
			}
		}

		roomList := make([]core.RoomInfo, 0, len(roomMap))
		for _, entry := range roomMap {
			roomList = append(roomList, *entry)
		}

		sort.Slice(roomList, func(i, j int) bool {
			if roomList[i].Sessions == roomList[j].Sessions {
				if roomList[i].LastActive == roomList[j].LastActive {
					return roomList[i].ID < roomList[j].ID
				}
				return roomList[i].LastActive > roomList[j].LastActive
			}
			return roomList[i].Sessions > roomList[j].Sessions
		})

		render.JSON(w, r, roomList)
	}
}

func waitForShutdown(srv *http.Server, registry *rooms.Registry) {
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

	// Pending snapshot writes go to disk before the process exits.
	registry.Flush()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("Server shutdown was not clean")
	}
}

func uploadsPath() string {
	path := os.Getenv("UPLOADS_PATH")
	if path == "" {
		path = "./data/uploads"
	}
	return path
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	logLevel := flag.String("loglevel", "info", "Set the logging level: debug, info, warn, error, fatal, panic")
	listenAddr := flag.String("listen", ":3001", "Set the server listen address")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	snapshotStore := stores.GetSnapshotStore()
	registry := rooms.NewRegistry(snapshotStore, engine.NewRelay, rooms.DefaultPersistInterval)

	assetStore := assets.NewStore(uploadsPath())
	assetCache := assets.NewResponseCache(assetCacheTTL, cacheSweepSize)
	unfurlCache := assets.NewResponseCache(unfurlCacheTTL, cacheSweepSize)

	r := setupRouter(registry, snapshotStore, assetStore, assetCache, unfurlCache)

	srv := &http.Server{Addr: *listenAddr, Handler: r}
	logrus.WithField("addr", *listenAddr).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(srv, registry)
}
