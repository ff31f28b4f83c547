package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"clothcraft.ai/internal/protocol"
	"clothcraft.ai/internal/sim/clothmgr"
	"clothcraft.ai/internal/sim/voxel"
)

const counterKey = "next_id"

// SQLiteStore keeps region blobs and the id counter in one sqlite file. Region writes are
// synchronous; audit rows go through a background writer and may be dropped under load.
type SQLiteStore struct {
	db *sql.DB

	enc *zstd.Encoder
	dec *zstd.Decoder

	ch   chan clothmgr.AuditEntry
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Int64
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteStore{
		db:  db,
		enc: enc,
		dec: dec,
		ch:  make(chan clothmgr.AuditEntry, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS regions (
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			systems INTEGER NOT NULL,
			blob BLOB NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (cx, cz)
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			action TEXT NOT NULL,
			cloth_id INTEGER NOT NULL,
			kind TEXT,
			cx INTEGER NOT NULL,
			cz INTEGER NOT NULL,
			count INTEGER NOT NULL,
			reason TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_cloth_tick ON audits(cloth_id, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		s.dec.Close()
		_ = s.enc.Close()
		err = s.db.Close()
	})
	return err
}

// SaveRegion replaces the stored systems of a region. Saving none deletes the row.
func (s *SQLiteStore) SaveRegion(k voxel.ChunkKey, systems []protocol.SystemV1) error {
	if len(systems) == 0 {
		_, err := s.db.Exec(`DELETE FROM regions WHERE cx=? AND cz=?`, k.CX, k.CZ)
		return err
	}
	raw, err := json.Marshal(systems)
	if err != nil {
		return err
	}
	blob := s.enc.EncodeAll(raw, nil)
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO regions(cx,cz,systems,blob,updated_at) VALUES(?,?,?,?,?)`,
		k.CX, k.CZ, len(systems), blob, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *SQLiteStore) LoadRegion(k voxel.ChunkKey) ([]protocol.SystemV1, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT blob FROM regions WHERE cx=? AND cz=?`, k.CX, k.CZ).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	raw, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("region %d,%d: %w", k.CX, k.CZ, err)
	}
	var systems []protocol.SystemV1
	if err := json.Unmarshal(raw, &systems); err != nil {
		return nil, fmt.Errorf("region %d,%d: %w", k.CX, k.CZ, err)
	}
	return systems, nil
}

// Regions lists the stored chunk columns.
func (s *SQLiteStore) Regions() ([]voxel.ChunkKey, error) {
	rows, err := s.db.Query(`SELECT cx, cz FROM regions ORDER BY cx, cz`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []voxel.ChunkKey
	for rows.Next() {
		var k voxel.ChunkKey
		if err := rows.Scan(&k.CX, &k.CZ); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) SaveCounter(next int) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, counterKey, strconv.Itoa(next))
	return err
}

func (s *SQLiteStore) LoadCounter() (int, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key=?`, counterKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("meta %s: %w", counterKey, err)
	}
	return n, nil
}

// WriteAudit queues an audit row. It never blocks the simulation.
func (s *SQLiteStore) WriteAudit(e clothmgr.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- e:
	default:
		// Drop if the indexer falls behind; the JSONL audit log remains the source of truth.
		s.dropped.Add(1)
	}
	return nil
}

// Dropped counts audit rows discarded because the writer was behind.
func (s *SQLiteStore) Dropped() int64 { return s.dropped.Load() }

func (s *SQLiteStore) loop() {
	ctx := context.Background()

	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(tick,seq,action,cloth_id,kind,cx,cz,count,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertAudit != nil {
			_ = insertAudit.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second

		lastTick uint64
		seq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for e := range s.ch {
		begin()
		if tx == nil || insertAudit == nil {
			continue
		}
		if e.Tick != lastTick {
			lastTick = e.Tick
			seq = 0
		}
		raw, _ := json.Marshal(e)
		if _, err := tx.Stmt(insertAudit).Exec(
			int64(e.Tick),
			seq,
			e.Action,
			e.ClothID,
			e.Kind,
			e.Region[0], e.Region[1],
			e.Count,
			e.Reason,
			string(raw),
		); err != nil {
			rollback()
			continue
		}
		seq++
		opCount++
		// Commit eagerly when the queue drains so readers see recent rows.
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}
