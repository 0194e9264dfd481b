// Command tickecs runs tick-driven entity worlds configured from TOML, with
// tables from a YAML schema and behaviors from Lua scripts.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
