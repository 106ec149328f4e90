//go:build windows

package main

import (
	"os"
	"os/signal"
)

// notifySignals registers the interrupt signals that stop a batch between
// samples. Windows only delivers os.Interrupt (Ctrl+C); there is no SIGTERM.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
