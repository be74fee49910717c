// Command circadian records and analyzes health measurements from the
// terminal. It shares the data file and configuration with the server.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
