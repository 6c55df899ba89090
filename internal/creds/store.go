// internal/creds/store.go
package creds

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/renameio/v2"

	"github.com/tamzrod/provisiond/internal/dirsync"
	"github.com/tamzrod/provisiond/internal/wifi"
)

// record is the on-disk layout: fixed-length blobs, zero padded.
type record struct {
	Version  uint8  `cbor:"1,keyasint"`
	SSID     []byte `cbor:"2,keyasint"`
	Password []byte `cbor:"3,keyasint"`
}

const recordVersion = 1

// FileStore keeps station credentials in a single CBOR file.
// Writes are atomic, so a power cut leaves either the old or the new record.
type FileStore struct {
	path string
}

var _ wifi.CredentialStore = (*FileStore)(nil)

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("creds: path required")
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Save(cfg wifi.Config) error {
	data, err := cbor.Marshal(record{
		Version:  recordVersion,
		SSID:     cfg.SSID[:],
		Password: cfg.Password[:],
	})
	if err != nil {
		return fmt.Errorf("creds: encode: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("creds: write: %w", err)
	}
	return dirsync.Sync(filepath.Dir(s.path))
}

// Load returns found=false when nothing is stored.
// A record that exists but cannot be decoded is an error.
func (s *FileStore) Load() (wifi.Config, bool, error) {
	var cfg wifi.Config

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, false, nil
	}
	if err != nil {
		return cfg, false, fmt.Errorf("creds: read: %w", err)
	}

	var rec record
	if err := cbor.Unmarshal(data, &rec); err != nil {
		return cfg, false, fmt.Errorf("creds: decode: %w", err)
	}
	if rec.Version != recordVersion {
		return cfg, false, fmt.Errorf("creds: unsupported record version %d", rec.Version)
	}
	if len(rec.SSID) != wifi.MaxSSIDLength || len(rec.Password) != wifi.MaxPasswordLength {
		return cfg, false, fmt.Errorf("creds: bad blob sizes ssid=%d password=%d", len(rec.SSID), len(rec.Password))
	}

	copy(cfg.SSID[:], rec.SSID)
	copy(cfg.Password[:], rec.Password)
	if cfg.IsZero() {
		return cfg, false, nil
	}
	return cfg, true, nil
}

func (s *FileStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("creds: clear: %w", err)
	}
	return nil
}
