// internal/ota/flash/store.go
package flash

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/tamzrod/provisiond/internal/dirsync"
	"github.com/tamzrod/provisiond/internal/ota"
)

// ESPImageMagic is the first byte of an ESP application image.
const ESPImageMagic byte = 0xE9

// Slot labels. Exactly one is booted at a time.
const (
	SlotA = "a"
	SlotB = "b"
)

const bootFile = "boot"

// Config locates the slot directory.
type Config struct {
	Dir string

	// Magic, when set, must be the first byte of every committed image.
	Magic *byte
}

// Store keeps two image slots as files plus a boot pointer file.
// The running slot is fixed when the store is opened: one process, one boot.
type Store struct {
	cfg     Config
	running string

	mu      sync.Mutex
	writing bool
}

var _ ota.Flash = (*Store)(nil)

// Open prepares the directory and reads the boot pointer.
// A missing pointer means slot a.
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("flash: dir required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("flash: %w", err)
	}

	s := &Store{cfg: cfg}

	boot, err := s.BootTarget()
	if err != nil {
		return nil, err
	}
	s.running = boot
	return s, nil
}

// Running is the slot this process was booted from.
func (s *Store) Running() ota.Region {
	return ota.Region{Label: s.running}
}

func (s *Store) Inactive() (ota.Region, error) {
	if s.running == SlotA {
		return ota.Region{Label: SlotB}, nil
	}
	return ota.Region{Label: SlotA}, nil
}

// BootTarget reads the slot that the next boot will use.
func (s *Store) BootTarget() (string, error) {
	data, err := os.ReadFile(filepath.Join(s.cfg.Dir, bootFile))
	if errors.Is(err, fs.ErrNotExist) {
		return SlotA, nil
	}
	if err != nil {
		return "", fmt.Errorf("flash: read boot pointer: %w", err)
	}

	label := strings.TrimSpace(string(data))
	if !validSlot(label) {
		return "", fmt.Errorf("flash: corrupt boot pointer %q", label)
	}
	return label, nil
}

// ImagePath is where a committed slot image lives.
func (s *Store) ImagePath(r ota.Region) string {
	return filepath.Join(s.cfg.Dir, "slot_"+r.Label+".img")
}

func (s *Store) Begin(r ota.Region) (ota.ImageWriter, error) {
	if !validSlot(r.Label) {
		return nil, fmt.Errorf("flash: unknown slot %q", r.Label)
	}
	if r.Label == s.running {
		return nil, fmt.Errorf("flash: slot %s is running", r.Label)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writing {
		return nil, errors.New("flash: write already in progress")
	}

	final := s.ImagePath(r)
	f, err := renameio.NewPendingFile(final, renameio.WithPermissions(0o644))
	if err != nil {
		return nil, fmt.Errorf("flash: open slot %s: %w", r.Label, err)
	}

	s.writing = true
	return &imageWriter{store: s, region: r, f: f, final: final}, nil
}

func (s *Store) SetBoot(r ota.Region) error {
	if !validSlot(r.Label) {
		return fmt.Errorf("flash: unknown slot %q", r.Label)
	}
	if _, err := os.Stat(s.ImagePath(r)); err != nil {
		return fmt.Errorf("flash: slot %s has no image: %w", r.Label, err)
	}
	if err := renameio.WriteFile(filepath.Join(s.cfg.Dir, bootFile), []byte(r.Label+"\n"), 0o644); err != nil {
		return fmt.Errorf("flash: write boot pointer: %w", err)
	}
	return dirsync.Sync(s.cfg.Dir)
}

func (s *Store) release() {
	s.mu.Lock()
	s.writing = false
	s.mu.Unlock()
}

func validSlot(label string) bool {
	return label == SlotA || label == SlotB
}

// --------------------
// Write session
// --------------------

type imageWriter struct {
	store  *Store
	region ota.Region
	f      *renameio.PendingFile
	final  string

	n     int64
	first byte
	done  bool
}

func (w *imageWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, errors.New("flash: write after close")
	}
	if w.n == 0 && len(p) > 0 {
		w.first = p[0]
	}
	n, err := w.f.Write(p)
	w.n += int64(n)
	return n, err
}

// Finish validates, flushes and atomically publishes the image.
// A rejected image is discarded.
func (w *imageWriter) Finish() error {
	if w.done {
		return errors.New("flash: session already closed")
	}

	if verr := w.validate(); verr != nil {
		w.discard()
		return verr
	}
	// fsync, close and rename over the committed slot image
	if err := w.f.CloseAtomicallyReplace(); err != nil {
		w.discard()
		return fmt.Errorf("flash: commit slot %s: %w", w.region.Label, err)
	}
	w.done = true
	defer w.store.release()

	return dirsync.Sync(filepath.Dir(w.final))
}

func (w *imageWriter) Abort() error {
	if w.done {
		return nil
	}
	return w.discard()
}

func (w *imageWriter) validate() error {
	if w.n == 0 {
		return &ota.ValidationError{Region: w.region.Label, Reason: "empty image"}
	}
	if m := w.store.cfg.Magic; m != nil && w.first != *m {
		return &ota.ValidationError{
			Region: w.region.Label,
			Reason: fmt.Sprintf("magic 0x%02X, want 0x%02X", w.first, *m),
		}
	}
	return nil
}

func (w *imageWriter) discard() error {
	w.done = true
	defer w.store.release()

	if err := w.f.Cleanup(); err != nil {
		return fmt.Errorf("flash: discard slot %s: %w", w.region.Label, err)
	}
	return nil
}
