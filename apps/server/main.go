package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"parley-lite/apps/server/internal/auth"
	"parley-lite/apps/server/internal/config"
	"parley-lite/apps/server/internal/gateway"
	"parley-lite/apps/server/internal/ledger"
	"parley-lite/apps/server/internal/lobby"
	"parley-lite/apps/server/internal/standing"
	"parley-lite/apps/server/internal/storage"
	"parley-lite/content"
	"parley-lite/conversation/npc"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Server] Invalid config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("[Server] Failed to open %s store: %v", cfg.StoreMode, err)
	}
	if db != nil {
		defer db.Close()
	}

	authService, authMode, err := auth.NewService(ctx, db, cfg.SessionTTL)
	if err != nil {
		log.Fatalf("[Server] Failed to init auth: %v", err)
	}
	defer authService.Close()

	limits := ledger.Limits{Recent: cfg.RecentLimit, Saved: cfg.SavedLimit}
	var (
		ledgerService   ledger.Service
		standingService standing.Service
	)
	if db == nil {
		ledgerService = ledger.NewMemoryService(limits)
		standingService = standing.NewMemoryService()
	} else {
		if ledgerService, err = ledger.NewSQLService(ctx, db, limits); err != nil {
			log.Fatalf("[Server] Failed to init ledger: %v", err)
		}
		if standingService, err = standing.NewSQLService(ctx, db); err != nil {
			log.Fatalf("[Server] Failed to init standing: %v", err)
		}
	}
	defer ledgerService.Close()
	defer standingService.Close()

	manager, err := loadManager(cfg)
	if err != nil {
		log.Fatalf("[Server] Failed to load content: %v", err)
	}

	lby := lobby.New(manager, ledgerService, standingService, lobby.Config{
		ActionTimeout: cfg.ActionTimeout,
		OfflineTTL:    cfg.OfflineTTL,
		AutoplayStyle: cfg.AutoplayStyle,
	})
	defer lby.Close()
	go lby.RunSweeper(ctx, time.Minute)

	gw := gateway.New(lby, authService)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	auth.NewHTTPHandler(authService).RegisterRoutes(mux)
	ledger.NewHTTPHandler(authService, ledgerService).RegisterRoutes(mux)
	standing.NewHTTPHandler(authService, standingService).RegisterRoutes(mux)

	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("[Server] Store: %s (auth %s)", cfg.StoreMode, authMode)
	log.Printf("[Server] Personas: %d", manager.Registry().Count())
	log.Printf("[Server] Starting WebSocket server on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("[Server] Failed to start: %v", err)
	}
	log.Printf("[Server] Stopped")
}

func openStore(ctx context.Context, cfg config.Config) (*storage.DB, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	openCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	switch cfg.StoreMode {
	case config.StoreSQLite:
		return storage.OpenSQLite(openCtx, dsn)
	case config.StorePostgres:
		return storage.OpenPostgres(openCtx, dsn)
	default:
		return nil, nil
	}
}

func loadManager(cfg config.Config) (*npc.Manager, error) {
	catalog, err := content.Catalog(cfg.CardsFile)
	if err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}
	reg := npc.NewRegistry()
	if cfg.PersonasFile != "" {
		err = reg.LoadFromFile(cfg.PersonasFile)
	} else {
		err = reg.LoadFromJSON(content.PersonasJSON())
	}
	if err != nil {
		return nil, fmt.Errorf("load personas: %w", err)
	}
	if err := reg.CheckDecks(catalog); err != nil {
		return nil, err
	}
	return npc.NewManager(reg, catalog, nil), nil
}
