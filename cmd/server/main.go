package main

import (
	"log"
	"net/http"
	"time"

	"github.com/hmansour/progression/internal/config"
	"github.com/hmansour/progression/internal/graph"
	"github.com/hmansour/progression/internal/persist"
	"github.com/hmansour/progression/internal/server"
	"github.com/hmansour/progression/internal/session"
)

// #region main
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	g, err := graph.LoadFile(cfg.GraphPath)
	if err != nil {
		log.Fatalf("load content graph: %v", err)
	}

	factory, closeAdapters, err := buildAdapterFactory(cfg)
	if err != nil {
		log.Fatalf("persistence: %v", err)
	}
	defer closeAdapters()

	sessions := session.NewManager(g, factory)
	sessions.SetSaveWindow(time.Duration(cfg.SaveWindowMS) * time.Millisecond)
	defer sessions.CloseAll()

	srv := server.New(sessions)
	mux := http.NewServeMux()
	srv.Routes(mux)

	log.Printf("[SERVER] listening on %s, graph %s (%d nodes)", cfg.ListenAddr, cfg.GraphPath, g.Len())
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		log.Fatalf("listen: %v", err)
	}
}

// #endregion main

// #region persistence

// buildAdapterFactory picks Redis when configured, SQLite otherwise. Both
// backends are shared across sessions; each session writes only its own key.
func buildAdapterFactory(cfg config.Config) (session.AdapterFactory, func(), error) {
	if cfg.RedisAddr != "" {
		adapter, err := persist.NewRedisAdapter(persist.RedisConfig{
			Addr:   cfg.RedisAddr,
			Prefix: cfg.RedisPrefix,
			TTL:    0,
		})
		if err != nil {
			return nil, nil, err
		}
		return func(string) (persist.Adapter, error) { return adapter, nil },
			func() { adapter.Close() }, nil
	}

	adapter, err := persist.NewSQLiteAdapter(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return func(string) (persist.Adapter, error) { return adapter, nil },
		func() { adapter.Close() }, nil
}

// #endregion persistence
