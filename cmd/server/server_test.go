package main

import (
	"os"
	"testing"

	"clothcraft.ai/internal/logging"
	"clothcraft.ai/internal/persistence/regionstore"
	"clothcraft.ai/internal/sim/catalogs"
	"clothcraft.ai/internal/sim/cloth"
	"clothcraft.ai/internal/sim/clothmgr"
	"clothcraft.ai/internal/sim/tuning"
	"clothcraft.ai/internal/sim/voxel"
)

func newTestLoop(t *testing.T, store clothmgr.RegionStore) (*simLoop, tuning.Tuning) {
	t.Helper()
	tune := tuning.Defaults()
	tune.World.PondPermille = 0
	tune.World.PostPermille = 0
	tune.World.LoadRadius = 1

	w := voxel.New(1, tune.ChunkHeight, tune.World, catalogs.Default())
	mgr := clothmgr.New(clothmgr.Options{
		Side:   clothmgr.Server,
		Tuning: tune,
		Env:    w.Env(),
		Store:  store,
		Drops:  w,
	})
	w.OnChunkLoad(mgr.OnRegionLoad)
	w.OnChunkUnload(mgr.OnRegionUnload)
	w.StreamAround(voxel.ChunkKey{}, tune.World.LoadRadius)
	mgr.SetPhase(clothmgr.Running)
	return &simLoop{
		world:  w,
		mgr:    mgr,
		radius: tune.World.LoadRadius,
		rate:   20,
		log:    logging.Discard(),
	}, tune
}

func TestOpenRegionStore(t *testing.T) {
	for _, backend := range []string{"", "file", "SQLite"} {
		s, err := openRegionStore(backend, t.TempDir())
		if err != nil {
			t.Fatalf("%q: %v", backend, err)
		}
		if err := s.SaveCounter(9); err != nil {
			t.Fatalf("%q: save counter: %v", backend, err)
		}
		if n, err := s.LoadCounter(); err != nil || n != 9 {
			t.Fatalf("%q: counter=%d err=%v", backend, n, err)
		}
		_ = s.Close()
	}
	if _, err := openRegionStore("postgres", t.TempDir()); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestSpawnDemo_SystemsStayUp(t *testing.T) {
	l, tune := newTestLoop(t, nil)
	if err := spawnDemo(l.world, l.mgr, tune); err != nil {
		t.Fatalf("demo: %v", err)
	}
	if l.mgr.Len() != 2 {
		t.Fatalf("systems=%d", l.mgr.Len())
	}
	for i := 0; i < 100; i++ {
		l.frame(0.05)
	}
	if l.mgr.Len() != 2 {
		t.Fatalf("tied systems must survive the sweep, have %d", l.mgr.Len())
	}
	for _, s := range l.mgr.Systems() {
		if !s.Active() || !s.PinnedAnywhere() {
			t.Fatalf("system %d active=%v pinned=%v", s.ID(), s.Active(), s.PinnedAnywhere())
		}
		if s.CenterOfMass()[1] < float64(l.world.GroundLevel()) {
			t.Fatalf("system %d fell through the ground: %v", s.ID(), s.CenterOfMass())
		}
	}
}

func TestWalker_RopeSavedAndRestored(t *testing.T) {
	dir := t.TempDir()
	store, err := regionstore.NewFileStore(dir)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	l, tune := newTestLoop(t, store)
	wk, err := spawnWalker(l.world, l.mgr, tune)
	if err != nil {
		t.Fatalf("walker: %v", err)
	}
	l.walker = wk

	run := func(what string, cond func() bool) {
		t.Helper()
		for i := 0; i < 2000; i++ {
			if cond() {
				return
			}
			l.frame(0.05)
		}
		t.Fatalf("timed out waiting for %s", what)
	}

	run("rope tied far away", func() bool { return !wk.carrying })
	var farRegion voxel.ChunkKey
	if err := l.mgr.Update(wk.ropeID, func(s *cloth.System) {
		if _, ok := s.First().Pin().(*cloth.BlockPin); !ok {
			t.Fatalf("rope should be tied to a post, pin=%T", s.First().Pin())
		}
		farRegion = voxel.ChunkOf(s.First().Position())
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	run("rope region unloaded", func() bool {
		_, ok := l.mgr.Get(wk.ropeID)
		return !ok
	})
	if _, err := os.Stat(store.RegionPath(farRegion)); err != nil {
		t.Fatalf("region file for %v: %v", farRegion, err)
	}

	run("rope picked up again", func() bool { return wk.carrying })
	s, ok := l.mgr.Get(wk.ropeID)
	if !ok || !s.Active() {
		t.Fatalf("rope should be restored and active")
	}
	if _, ok := s.First().Pin().(*cloth.EntityPin); !ok {
		t.Fatalf("rope should be in the walker's hand, pin=%T", s.First().Pin())
	}
}
