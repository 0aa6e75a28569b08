package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"voxelbarter.ai/internal/persistence/invdb"
	"voxelbarter.ai/internal/sim/catalogs"
	"voxelbarter.ai/internal/sim/inventory"
	"voxelbarter.ai/internal/sim/market"
	"voxelbarter.ai/internal/sim/tuning"
	"voxelbarter.ai/internal/transport/ws"
)

// envOverrides wins over flags when set.
type envOverrides struct {
	Addr    string `env:"VB_ADDR"`
	Configs string `env:"VB_CONFIGS"`
	Data    string `env:"VB_DATA"`
	DB      string `env:"VB_DB"`
	Seed    *int64 `env:"VB_SEED"`

	RatePerSecond float64 `env:"VB_RATE_PER_SECOND" envDefault:"20"`
	RateBurst     int     `env:"VB_RATE_BURST" envDefault:"40"`
}

func main() {
	var (
		addr      = flag.String("addr", ":8080", "http listen address")
		worldID   = flag.String("world", "frontier", "world id recorded in snapshots")
		seed      = flag.Int64("seed", 1337, "base seed for per-connection acceptance draws")
		configDir = flag.String("configs", "./configs", "config directory")
		dataDir   = flag.String("data", "./data", "runtime data directory")
		dbPath    = flag.String("db", "", "sqlite inventory path (empty: in-memory store with snapshots)")
		snapPath  = flag.String("snapshot", "", "snapshot to load (default: latest in <data>/snapshots)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Printf("load .env: %v", err)
	}
	var ov envOverrides
	if err := env.Parse(&ov); err != nil {
		logger.Fatalf("parse env: %v", err)
	}
	applyOverride(addr, ov.Addr)
	applyOverride(configDir, ov.Configs)
	applyOverride(dataDir, ov.Data)
	applyOverride(dbPath, ov.DB)
	if ov.Seed != nil {
		*seed = *ov.Seed
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tune, err := tuning.Load(filepath.Join(*configDir, "tuning.yaml"))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found; using defaults")
		tune = tuning.Defaults()
	}

	var (
		inv   market.Inventory
		store *inventory.Store
	)
	snapDir := filepath.Join(*dataDir, "snapshots")
	if strings.TrimSpace(*dbPath) != "" {
		db, err := invdb.Open(*dbPath, tune.Inventory.MaxStack)
		if err != nil {
			logger.Fatalf("open inventory db: %v", err)
		}
		defer db.Close()
		n, err := seedDB(db, tune)
		if err != nil {
			logger.Fatalf("seed inventory db: %v", err)
		}
		logger.Printf("inventory db=%s seeded=%d", *dbPath, n)
		inv = db
	} else {
		store = inventory.NewStore(tune.Inventory.MaxStack)
		from, err := loadStore(store, tune, *snapPath, snapDir)
		if err != nil {
			logger.Fatalf("load inventory: %v", err)
		}
		logger.Printf("inventory loaded from %s", from)
		inv = store
	}

	eval := market.Evaluator{
		MarginPct:      tune.Trade.MarginPercentage,
		ProbabilityPct: tune.Trade.AcceptProbabilityPct,
	}
	wsLogger := log.New(os.Stdout, "[market] ", log.LstdFlags|log.Lmicroseconds)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"ok":             true,
			"catalog_digest": cats.Digest(),
			"items":          len(cats.Items.Palette),
		})
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(ws.Config{
		Inventory:     inv,
		Catalog:       cats,
		CatalogDigest: cats.Digest(),
		Evaluator:     eval,
		Seed:          *seed,

		MessagesPerSecond: ov.RatePerSecond,
		Burst:             ov.RateBurst,
	}, wsLogger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
		if store != nil {
			path, err := saveStore(store, *worldID, snapDir, time.Now())
			if err != nil {
				logger.Printf("snapshot: %v", err)
				return
			}
			logger.Printf("snapshot written: %s", path)
		}
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-done
}

func applyOverride(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
