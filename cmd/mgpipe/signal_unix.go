//go:build !windows

package main

import (
	"os"
	"os/signal"
	"syscall"
)

// notifySignals registers the interrupt signals that stop a batch between
// samples. On Unix that is SIGINT and SIGTERM.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
}
