// internal/dirsync/dirsync.go
package dirsync

import (
	"fmt"
	"os"
)

// Sync flushes directory metadata so that a rename survives power loss.
// renameio syncs the file; the entry pointing at it lives in dir.
func Sync(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("dirsync: open %s: %w", dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("dirsync: sync %s: %w", dir, err)
	}
	return nil
}
