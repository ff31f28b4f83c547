package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"clothcraft.ai/internal/sim/clothmgr"
)

const hourLayout = "2006-01-02-15"

// HourlyLog appends JSON lines to <dir>/<prefix>-<UTC hour>.jsonl.zst and moves to a
// new file when the hour changes. Every entry is flushed through the zstd frame so a
// crash loses at most the line being written.
type HourlyLog struct {
	dir    string
	prefix string
	clock  func() time.Time

	mu  sync.Mutex
	seg *segment
}

func NewHourlyLog(dir, prefix string) *HourlyLog {
	return &HourlyLog{dir: dir, prefix: prefix, clock: time.Now}
}

type segment struct {
	hour string
	path string
	file *os.File
	zw   *zstd.Encoder
	buf  *bufio.Writer
	enc  *json.Encoder
}

func openSegment(path, hour string) (*segment, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	buf := bufio.NewWriter(zw)
	return &segment{hour: hour, path: path, file: f, zw: zw, buf: buf, enc: json.NewEncoder(buf)}, nil
}

func (s *segment) append(v any) error {
	if err := s.enc.Encode(v); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	return s.zw.Flush()
}

func (s *segment) close() error {
	return errors.Join(s.buf.Flush(), s.zw.Close(), s.file.Close())
}

func (l *HourlyLog) Append(v any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	hour := l.clock().UTC().Format(hourLayout)
	if l.seg == nil || l.seg.hour != hour {
		if l.seg != nil {
			err := l.seg.close()
			l.seg = nil
			if err != nil {
				return err
			}
		}
		seg, err := openSegment(filepath.Join(l.dir, l.prefix+"-"+hour+".jsonl.zst"), hour)
		if err != nil {
			return err
		}
		l.seg = seg
	}
	return l.seg.append(v)
}

// Path is the file currently being appended to, or "" before the first entry.
func (l *HourlyLog) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seg == nil {
		return ""
	}
	return l.seg.path
}

func (l *HourlyLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seg == nil {
		return nil
	}
	err := l.seg.close()
	l.seg = nil
	return err
}

// AuditLogger writes cloth lifecycle entries under <dataDir>/audit.
type AuditLogger struct{ log *HourlyLog }

func NewAuditLogger(dataDir string) *AuditLogger {
	return &AuditLogger{log: NewHourlyLog(filepath.Join(dataDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(e clothmgr.AuditEntry) error { return l.log.Append(e) }
func (l *AuditLogger) Close() error                           { return l.log.Close() }
