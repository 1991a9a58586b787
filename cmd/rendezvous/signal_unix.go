//go:build !windows

package main

import (
	"os"
	"syscall"
)

// shutdownSignals stop long-running commands such as watch and simulate.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
