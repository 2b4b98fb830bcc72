//go:build !windows

package cli

import (
	"os"
	"syscall"
)

// SIGHUP covers a closed terminal in the middle of a long download.
func interruptSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}
}
