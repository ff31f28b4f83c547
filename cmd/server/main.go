package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"clothcraft.ai/internal/logging"
	persistlog "clothcraft.ai/internal/persistence/log"
	"clothcraft.ai/internal/protocol"
	"clothcraft.ai/internal/sim/catalogs"
	"clothcraft.ai/internal/sim/clothmgr"
	"clothcraft.ai/internal/sim/tuning"
	"clothcraft.ai/internal/sim/voxel"
	"clothcraft.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		seed       = flag.Int64("seed", 1337, "world seed")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		backend    = flag.String("store", "file", "region store backend: file|sqlite")
		tickRate   = flag.Int("tick_rate", 0, "server frames per second (default: tuning tick_rate_hz)")
		logLevel   = flag.String("log_level", "info", "log level")
		logFormat  = flag.String("log_format", "text", "log format: text|json")
		demo       = flag.Bool("demo", true, "spawn a demo rope and cloth when the world is empty")
		walker     = flag.Bool("walker", false, "spawn a player that carries a rope away and back, streaming chunks")
	)
	flag.Parse()

	logger := logging.New(*logLevel, *logFormat)
	log := logger.WithField("component", "server")

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Fatal("load tuning")
		}
		log.WithField("path", tp).Info("tuning not found; using defaults")
		tune = tuning.Defaults()
	}
	if *tickRate > 0 {
		tune.TickRateHz = *tickRate
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		log.WithError(err).Fatal("load catalogs")
	}

	store, err := openRegionStore(*backend, *dataDir)
	if err != nil {
		log.WithError(err).Fatal("open region store")
	}
	auditLog := persistlog.NewAuditLogger(*dataDir)
	audit := clothmgr.MultiAudit(auditLog)
	if a, ok := store.(clothmgr.Auditor); ok {
		audit = clothmgr.MultiAudit(auditLog, a)
	}

	w := voxel.New(*seed, tune.ChunkHeight, tune.World, cats)
	hub := ws.NewHub(logger)
	mgr := clothmgr.New(clothmgr.Options{
		Side:        clothmgr.Server,
		Tuning:      tune,
		Env:         w.Env(),
		Broadcaster: hub,
		Store:       store,
		Drops:       w,
		Audit:       audit,
		Log:         logger,
	})
	w.OnChunkLoad(mgr.OnRegionLoad)
	w.OnChunkUnload(mgr.OnRegionUnload)

	if err := mgr.RestoreCounter(); err != nil {
		log.WithError(err).Fatal("restore id counter")
	}
	spawn := voxel.ChunkKey{}
	w.StreamAround(spawn, tune.World.LoadRadius)
	mgr.SetPhase(clothmgr.Running)
	log.WithFields(logrus.Fields{
		"systems": mgr.Len(),
		"next_id": mgr.NextID(),
		"chunks":  len(w.LoadedChunks()),
		"store":   *backend,
	}).Info("world restored")

	if *demo && mgr.Len() == 0 {
		if err := spawnDemo(w, mgr, tune); err != nil {
			log.WithError(err).Warn("demo")
		}
	}
	var walk *walkerState
	if *walker {
		if walk, err = spawnWalker(w, mgr, tune); err != nil {
			log.WithError(err).Warn("walker")
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	sim := &simLoop{
		world:  w,
		mgr:    mgr,
		walker: walk,
		spawn:  spawn,
		radius: tune.World.LoadRadius,
		rate:   tune.TickRateHz,
		log:    log,
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sim.Run(ctx)
	}()

	params := protocol.WorldParams{
		Seed:         *seed,
		ChunkSize:    [3]int{voxel.ChunkSize, voxel.ChunkSize, tune.ChunkHeight},
		FixedStep:    tune.Cloth.FixedStep,
		TuningDigest: tune.Digest(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(sim, mgr, hub))
	mux.HandleFunc("/v1/ws", ws.NewServer(hub, mgr, params, tune.Sync.OutboxSize, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	log.WithField("addr", *addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("ListenAndServe")
		cancel()
	}

	// The loop owns the world; persist only after it has stopped.
	wg.Wait()
	if err := mgr.Shutdown(); err != nil {
		log.WithError(err).Error("shutdown save")
	}
	if err := auditLog.Close(); err != nil {
		log.WithError(err).Warn("close audit log")
	}
	if err := store.Close(); err != nil {
		log.WithError(err).Warn("close region store")
	}
	log.Info("stopped")
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
