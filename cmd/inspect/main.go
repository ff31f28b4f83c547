package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"clothcraft.ai/internal/persistence/indexdb"
	"clothcraft.ai/internal/persistence/regionstore"
	"clothcraft.ai/internal/persistence/snapshot"
	"clothcraft.ai/internal/protocol"
	"clothcraft.ai/internal/sim/voxel"
)

type regionDump struct {
	Region  [2]int              `json:"region"`
	Systems []protocol.SystemV1 `json:"systems"`
}

type lister interface {
	Regions() ([]voxel.ChunkKey, error)
	LoadRegion(k voxel.ChunkKey) ([]protocol.SystemV1, error)
	LoadCounter() (int, error)
	Close() error
}

func main() {
	var (
		file    = flag.String("file", "", "single region file (*.cloth.zst) to print")
		dataDir = flag.String("data", "./data", "runtime data directory")
		backend = flag.String("store", "file", "region store backend: file|sqlite")
		header  = flag.Bool("header", false, "print only region headers / counts")
	)
	flag.Parse()

	if *file != "" {
		if err := dumpFile(*file, *header); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := dumpStore(*backend, *dataDir, *header); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dumpFile(path string, headerOnly bool) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if headerOnly {
		h, err := snapshot.ReadHeader(path)
		if err != nil {
			return err
		}
		return enc.Encode(h)
	}
	r, err := snapshot.ReadRegion(path)
	if err != nil {
		return err
	}
	return enc.Encode(regionDump{Region: [2]int{r.Header.CX, r.Header.CZ}, Systems: r.Systems})
}

func dumpStore(backend, dataDir string, headerOnly bool) error {
	var (
		s   lister
		err error
	)
	switch backend {
	case "file":
		s, err = regionstore.NewFileStore(dataDir)
	case "sqlite":
		s, err = indexdb.OpenSQLite(filepath.Join(dataDir, "index", "cloth.sqlite"))
	default:
		return fmt.Errorf("unsupported store backend: %s", backend)
	}
	if err != nil {
		return err
	}
	defer s.Close()

	next, err := s.LoadCounter()
	if err != nil {
		return err
	}
	keys, err := s.Regions()
	if err != nil {
		return err
	}
	out := struct {
		NextID  int            `json:"next_id"`
		Regions []regionDump   `json:"regions,omitempty"`
		Counts  map[string]int `json:"counts,omitempty"`
	}{NextID: next}
	if headerOnly {
		out.Counts = map[string]int{}
	}
	for _, k := range keys {
		systems, err := s.LoadRegion(k)
		if err != nil {
			return fmt.Errorf("region %d,%d: %w", k.CX, k.CZ, err)
		}
		if headerOnly {
			out.Counts[fmt.Sprintf("%d,%d", k.CX, k.CZ)] = len(systems)
			continue
		}
		out.Regions = append(out.Regions, regionDump{Region: [2]int{k.CX, k.CZ}, Systems: systems})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
