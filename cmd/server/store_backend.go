package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"clothcraft.ai/internal/persistence/indexdb"
	"clothcraft.ai/internal/persistence/regionstore"
	"clothcraft.ai/internal/sim/clothmgr"
)

type regionStore interface {
	clothmgr.RegionStore
	Close() error
}

func openRegionStore(backend, dataDir string) (regionStore, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "file":
		return regionstore.NewFileStore(dataDir)
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "cloth.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", backend)
	}
}
