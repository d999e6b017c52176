// Command bptidx loads, queries, checks and benchmarks B+ tree indexes.
//
// A table T is a pair of files: T.tbl holds the records and T.idx the B+ tree
// over their keys.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	exitCode := run(os.Args)
	os.Exit(exitCode)
}

// run executes the CLI and returns an exit code.
func run(args []string) int {
	if len(args) < 2 {
		printUsage(stdout)
		return 1
	}

	switch args[1] {
	case "load":
		return loadCmd(args[2:])
	case "select":
		return selectCmd(args[2:])
	case "get":
		return getCmd(args[2:])
	case "check":
		return checkCmd(args[2:])
	case "dot":
		return dotCmd(args[2:])
	case "bench":
		return benchCmd(args[2:])
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		fmt.Fprintln(stderr, "Run 'bptidx help' for usage.")
		return 1
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}
