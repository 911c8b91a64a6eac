//go:build windows

package main

import "os"

var syncSignals []os.Signal
