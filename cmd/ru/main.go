// cmd/ru/main.go
//
// Entry point for the ru CLI. Operators use it to start, stop and steer a
// loop; the agent runtime calls `ru hook pretool` and `ru hook stop` around
// every tool call and turn.

package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ru: %v\n", err)
		os.Exit(1)
	}
}
