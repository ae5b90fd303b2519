//go:build windows

package shutdown

import (
	"os"
	"os/signal"
)

// SIGTERM is never delivered on Windows; Ctrl+C is the only clean exit.
func Notify(ch chan os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
