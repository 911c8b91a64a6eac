//go:build !windows

package main

import (
	"os"
	"syscall"
)

var syncSignals = []os.Signal{syscall.SIGUSR1}
