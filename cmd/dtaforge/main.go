package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/dstolpe/dtaforge/internal/cli"
	"github.com/dstolpe/dtaforge/pkg/dtaforge"
)

func main() {
	// Recover from panics to ensure graceful exits with stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(dtaforge.ExitPanic)
		}
	}()

	if os.Getenv("DTAFORGE_TEST_PANIC") == "1" {
		panic("intentional test panic")
	}

	if err := cli.Execute(); err != nil {
		os.Exit(dtaforge.ExitCodeForError(err))
	}
}
