// cmd/server/main.go
package main

import (
	"os"

	_ "led-relay/docs"
)

// @title LED Relay API
// @version 1.0.0
// @description Sends single-character commands to a serial-attached LED controller and reports its connection status.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @BasePath /
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
