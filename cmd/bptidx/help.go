package main

import (
	"fmt"
	"io"
)

func printUsage(w io.Writer) {
	fmt.Fprint(w, `bptidx - disk-resident B+ tree index

Usage:
  bptidx <command> [options]

Commands:
  load        Append CSV rows to a table and index them
  select      Range scan through the index
  get         Point lookup through the index
  check       Verify the tree and print statistics
  dot         Export the tree as Graphviz DOT (and PNG)
  bench       Compare bptree, pebble and in-memory indexes

Use "bptidx <command> -h" for more information about a command.
`)
}

func printLoadUsage(w io.Writer) {
	fmt.Fprint(w, `Append CSV rows to a table and index them

Usage:
  bptidx load -table <path> -csv <file> [options]

Options:
  -table string
        Table path; records go to <path>.tbl, the index to <path>.idx
  -csv string
        Input file with key,value rows
  -cache int
        Pages cached per file (default 64)
  -v    Log splits at debug level
  -h, -help
        Show this help message
`)
}

func printSelectUsage(w io.Writer) {
	fmt.Fprint(w, `Range scan through the index

Usage:
  bptidx select -table <path> [-from <key>] [-to <key>]

Options:
  -table string
        Table path
  -from int
        Smallest key, inclusive (default -2147483648)
  -to int
        Largest key, inclusive (default 2147483647)
  -count
        Print only the number of matching rows
  -h, -help
        Show this help message
`)
}

func printGetUsage(w io.Writer) {
	fmt.Fprint(w, `Point lookup through the index

Usage:
  bptidx get -table <path> -key <key>
`)
}

func printCheckUsage(w io.Writer) {
	fmt.Fprint(w, `Verify the tree and print statistics

Usage:
  bptidx check -table <path>
`)
}

func printDotUsage(w io.Writer) {
	fmt.Fprint(w, `Export the tree as Graphviz DOT

Usage:
  bptidx dot -table <path> -out <file.dot> [-png <file.png>]

Rendering the PNG needs the 'dot' binary on PATH.
`)
}

func printBenchUsage(w io.Writer) {
	fmt.Fprint(w, `Compare bptree, pebble and in-memory indexes

Usage:
  bptidx bench [options]

Options:
  -n int
        Keys in the initial load (default 100000)
  -out string
        Output directory for data files, results.csv and results.png (default "results")
  -cache int
        Pages cached by the bptree pager (default 64)
  -seed int
        Workload random seed (default 1)
  -degree int
        Minimum degree of the in-memory B+ tree (default 64)
  -h, -help
        Show this help message
`)
}
