//go:build stm32f103

package main

import (
	"tinygo.org/x/drivers/semihosting"

	"bldc/core"
)

// initDebug routes core debug output to the debugger over semihosting.
// Writes block the core until the debugger has taken them, so output is
// only enabled when debug is true.
func initDebug(debug bool) {
	core.SetDebugWriter(func(s string) {
		semihosting.Stdout.Write([]byte(s + "\n"))
	})
	core.SetDebugEnabled(debug)
}
