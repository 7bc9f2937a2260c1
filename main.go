// main.go
//
// Entry point; the CLI lives in cmd/root.go.

package main

import (
	"github.com/tandem-sim/tandem-sim/cmd"
)

func main() {
	cmd.Execute()
}
