package main

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"clothcraft.ai/internal/sim/clothmgr"
	"clothcraft.ai/internal/sim/voxel"
	"clothcraft.ai/internal/transport/ws"
)

// maxFrame caps the time fed into one frame after a stall.
const maxFrame = 0.25

// simLoop drives the world and the cloth manager at a fixed frame rate. It is the only
// goroutine that touches the world.
type simLoop struct {
	world  *voxel.World
	mgr    *clothmgr.Manager
	walker *walkerState
	spawn  voxel.ChunkKey
	radius int
	rate   int
	log    logrus.FieldLogger

	streamTimer float64

	frames atomic.Uint64
	stepUS atomic.Int64
	chunks atomic.Int64
}

func (l *simLoop) Run(ctx context.Context) {
	rate := l.rate
	if rate <= 0 {
		rate = 20
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if dt > maxFrame {
				dt = maxFrame
			}
			start := time.Now()
			l.frame(dt)
			l.stepUS.Store(time.Since(start).Microseconds())
		}
	}
}

func (l *simLoop) frame(dt float64) {
	if err := l.walker.update(l.world, l.mgr); err != nil {
		l.log.WithError(err).Warn("walker")
	}
	l.world.Advance(dt)

	l.streamTimer += dt
	if l.streamTimer >= 1 {
		l.streamTimer = 0
		loaded, unloaded := l.world.StreamAround(l.spawn, l.radius)
		if loaded+unloaded > 0 {
			l.log.WithFields(logrus.Fields{"loaded": loaded, "unloaded": unloaded}).Debug("chunks streamed")
		}
	}
	l.chunks.Store(int64(len(l.world.LoadedChunks())))

	l.mgr.Tick(dt)
	l.frames.Add(1)
}

func metricsHandler(l *simLoop, mgr *clothmgr.Manager, hub *ws.Hub) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP clothcraft_frames_total Simulation frames run.\n")
		fmt.Fprintf(rw, "# TYPE clothcraft_frames_total counter\n")
		fmt.Fprintf(rw, "clothcraft_frames_total %d\n", l.frames.Load())

		fmt.Fprintf(rw, "# HELP clothcraft_frame_ms Last frame duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE clothcraft_frame_ms gauge\n")
		fmt.Fprintf(rw, "clothcraft_frame_ms %.3f\n", float64(l.stepUS.Load())/1000)

		fmt.Fprintf(rw, "# HELP clothcraft_systems Registered rope and cloth systems.\n")
		fmt.Fprintf(rw, "# TYPE clothcraft_systems gauge\n")
		fmt.Fprintf(rw, "clothcraft_systems %d\n", mgr.Len())

		fmt.Fprintf(rw, "# HELP clothcraft_loaded_chunks Loaded chunk count.\n")
		fmt.Fprintf(rw, "# TYPE clothcraft_loaded_chunks gauge\n")
		fmt.Fprintf(rw, "clothcraft_loaded_chunks %d\n", l.chunks.Load())

		fmt.Fprintf(rw, "# HELP clothcraft_clients Connected clients.\n")
		fmt.Fprintf(rw, "# TYPE clothcraft_clients gauge\n")
		fmt.Fprintf(rw, "clothcraft_clients %d\n", hub.Clients())

		fmt.Fprintf(rw, "# HELP clothcraft_clients_evicted_total Clients disconnected for a full outbox.\n")
		fmt.Fprintf(rw, "# TYPE clothcraft_clients_evicted_total counter\n")
		fmt.Fprintf(rw, "clothcraft_clients_evicted_total %d\n", hub.Evicted())
	}
}
