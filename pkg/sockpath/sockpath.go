// Package sockpath provides the default Unix socket path shared by fluxdnad
// and fluxctl.
package sockpath

import (
	"os"
	"path/filepath"
)

// DefaultSocketPath returns $XDG_RUNTIME_DIR/fluxdna/fluxdnad.sock, or
// ~/.config/fluxdna/fluxdnad.sock when XDG_RUNTIME_DIR is unset.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "fluxdna", "fluxdnad.sock")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "fluxdna", "fluxdnad.sock")
}
