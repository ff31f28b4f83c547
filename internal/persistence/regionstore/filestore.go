package regionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"clothcraft.ai/internal/persistence/snapshot"
	"clothcraft.ai/internal/protocol"
	"clothcraft.ai/internal/sim/voxel"
)

var regionFileRE = regexp.MustCompile(`^c\.(-?\d+)\.(-?\d+)\.cloth\.zst$`)

type meta struct {
	NextID int `json:"next_id"`
}

// FileStore keeps one compressed file per chunk column under <dir>/regions and the id
// counter in <dir>/meta.json.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "regions"), 0o755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) RegionPath(k voxel.ChunkKey) string {
	return filepath.Join(s.dir, "regions", fmt.Sprintf("c.%d.%d.cloth.zst", k.CX, k.CZ))
}

// SaveRegion replaces the stored systems of a region. Saving none removes the file.
func (s *FileStore) SaveRegion(k voxel.ChunkKey, systems []protocol.SystemV1) error {
	path := s.RegionPath(k)
	if len(systems) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return snapshot.WriteRegion(path, snapshot.RegionV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			CX:      k.CX,
			CZ:      k.CZ,
			Systems: len(systems),
			SavedAt: time.Now().UTC().Format(time.RFC3339),
		},
		Systems: systems,
	})
}

func (s *FileStore) LoadRegion(k voxel.ChunkKey) ([]protocol.SystemV1, error) {
	reg, err := snapshot.ReadRegion(s.RegionPath(k))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("region %d,%d: %w", k.CX, k.CZ, err)
	}
	if reg.Header.CX != k.CX || reg.Header.CZ != k.CZ {
		return nil, fmt.Errorf("region %d,%d: file holds %d,%d", k.CX, k.CZ, reg.Header.CX, reg.Header.CZ)
	}
	return reg.Systems, nil
}

func (s *FileStore) SaveCounter(next int) error {
	b, err := json.Marshal(meta{NextID: next})
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, "meta.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *FileStore) LoadCounter() (int, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, "meta.json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	var m meta
	if err := json.Unmarshal(b, &m); err != nil {
		return 0, fmt.Errorf("meta.json: %w", err)
	}
	return m.NextID, nil
}

// Regions lists the chunk columns that have a stored file.
func (s *FileStore) Regions() ([]voxel.ChunkKey, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "regions"))
	if err != nil {
		return nil, err
	}
	var keys []voxel.ChunkKey
	for _, e := range entries {
		m := regionFileRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		cx, _ := strconv.Atoi(m[1])
		cz, _ := strconv.Atoi(m[2])
		keys = append(keys, voxel.ChunkKey{CX: cx, CZ: cz})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys, nil
}

func (s *FileStore) Close() error { return nil }
