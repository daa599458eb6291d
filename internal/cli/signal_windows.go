//go:build windows

package cli

import "os"

// shutdownSignals are the signals that trigger a graceful shutdown. Windows
// only delivers os.Interrupt.
func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
