package main

import (
	"fmt"
	"runtime/debug"

	"github.com/baalimago/go_away_boilerplate/pkg/ancli"
)

func printVersion() int {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		ancli.PrintErr("failed to read build info\n")
		return 1
	}
	version := bi.Main.Version
	if version == "" {
		version = "(devel)"
	}
	checksum := bi.Main.Sum
	if checksum == "" {
		checksum = "n/a"
	}
	fmt.Printf("version: %v, go version: %v, checksum: %v\n", version, bi.GoVersion, checksum)
	return 0
}
