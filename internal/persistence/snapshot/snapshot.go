package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"clothcraft.ai/internal/protocol"
)

const Version = 1

// Header is written as a plain JSON line ahead of the gob body so tools can identify a
// region file without decoding it.
type Header struct {
	Version int    `json:"version"`
	CX      int    `json:"cx"`
	CZ      int    `json:"cz"`
	Systems int    `json:"systems"`
	SavedAt string `json:"saved_at,omitempty"`
}

type RegionV1 struct {
	Header  Header              `json:"header"`
	Systems []protocol.SystemV1 `json:"systems"`
}

// WriteRegion writes the region to a temp file and renames it over path.
func WriteRegion(path string, reg RegionV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, reg); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, reg RegionV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(reg.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&reg); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func ReadRegion(path string) (RegionV1, error) {
	var reg RegionV1
	f, err := os.Open(path)
	if err != nil {
		return reg, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return reg, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// The gob body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return reg, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&reg); err != nil {
		return reg, fmt.Errorf("gob decode: %w", err)
	}
	if reg.Header.Version != Version {
		return reg, fmt.Errorf("unsupported region version %d", reg.Header.Version)
	}
	return reg, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
