package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"clothcraft.ai/internal/sim/clothmgr"
)

func readJSONL(t *testing.T, path string) []clothmgr.AuditEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var out []clothmgr.AuditEntry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e clothmgr.AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestAuditLogger_WritesCompressedJSONL(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)
	l.log.clock = func() time.Time { return time.Date(2026, 3, 4, 5, 30, 0, 0, time.UTC) }

	if err := l.WriteAudit(clothmgr.AuditEntry{Tick: 1, Action: clothmgr.AuditRegister, ClothID: 7, Kind: "ROPE"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.WriteAudit(clothmgr.AuditEntry{Tick: 2, Action: clothmgr.AuditRegionSave, Region: [2]int{-1, 2}, Count: 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	path := filepath.Join(dir, "audit", "audit-2026-03-04-05.jsonl.zst")
	got := readJSONL(t, path)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].ClothID != 7 || got[1].Region != [2]int{-1, 2} || got[1].Count != 3 {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func TestHourlyLog_RotatesOnHourChange(t *testing.T) {
	dir := t.TempDir()
	w := NewHourlyLog(dir, "events")
	at := time.Date(2026, 1, 1, 10, 59, 0, 0, time.UTC)
	w.clock = func() time.Time { return at }

	if w.Path() != "" {
		t.Fatalf("path before first write: %q", w.Path())
	}
	if err := w.Append(map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	first := w.Path()
	at = at.Add(2 * time.Minute)
	if err := w.Append(map[string]int{"n": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	second := w.Path()
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if first == second {
		t.Fatalf("expected rotation, both writes went to %s", first)
	}
	if filepath.Base(first) != "events-2026-01-01-10.jsonl.zst" || filepath.Base(second) != "events-2026-01-01-11.jsonl.zst" {
		t.Fatalf("unexpected files: %s %s", first, second)
	}
	for _, p := range []string{first, second} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
	}
}

func TestHourlyLog_CloseWithoutEntries(t *testing.T) {
	dir := t.TempDir()
	w := NewHourlyLog(filepath.Join(dir, "audit"), "audit")
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "audit")); !os.IsNotExist(err) {
		t.Fatalf("expected no directory before the first entry, stat err=%v", err)
	}
}
