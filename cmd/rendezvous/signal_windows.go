//go:build windows

package main

import "os"

// SIGTERM does not exist on Windows.
var shutdownSignals = []os.Signal{os.Interrupt}
