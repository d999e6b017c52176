package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"

	"github.com/btree-query-bench/bptidx/dbms/index/bptree"
	"github.com/btree-query-bench/bptidx/dbms/pager"
	"github.com/btree-query-bench/bptidx/dbms/recfile"
)

// table is a record file plus the index over its keys.
type table struct {
	rec *recfile.File
	idx *bptree.Tree
}

func openTable(path string, mode pager.Mode, cache int, log *slog.Logger) (*table, error) {
	rec, err := recfile.Open(path+".tbl", mode, cache)
	if err != nil {
		return nil, err
	}
	idx, err := bptree.Open(path+".idx", mode, bptree.Options{CachePages: cache, Logger: log})
	if err != nil {
		_ = rec.Close()
		return nil, err
	}
	return &table{rec: rec, idx: idx}, nil
}

func (t *table) Close() error {
	err := t.idx.Close()
	if rerr := t.rec.Close(); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// loadCmd handles the load command.
func loadCmd(args []string) int {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	fs.SetOutput(stderr)

	tablePath := fs.String("table", "", "Table path")
	csvPath := fs.String("csv", "", "Input CSV file")
	cache := fs.Int("cache", 64, "Pages cached per file")
	verbose := fs.Bool("v", false, "Debug logging")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *help || *helpLong {
		printLoadUsage(stdout)
		return 0
	}
	if *tablePath == "" || *csvPath == "" {
		fmt.Fprintln(stderr, "Error: -table and -csv are required")
		return 1
	}

	in, err := os.Open(*csvPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error opening input: %v\n", err)
		return 1
	}
	defer in.Close()

	t, err := openTable(*tablePath, pager.ModeWrite, *cache, newLogger(*verbose))
	if err != nil {
		fmt.Fprintf(stderr, "Error opening table: %v\n", err)
		return 1
	}

	start := time.Now()
	n, err := load(t, in)
	if cerr := t.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(stderr, "Load failed after %s rows: %+v\n", humanize.Comma(int64(n)), err)
		return 1
	}

	fmt.Fprintf(stdout, "Loaded %s rows in %s\n", humanize.Comma(int64(n)), time.Since(start).Round(time.Millisecond))
	return 0
}

func load(t *table, in io.Reader) (int, error) {
	r := csv.NewReader(in)
	r.FieldsPerRecord = 2
	r.ReuseRecord = true

	n := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, errors.Wrap(err, "read csv")
		}
		key, err := strconv.ParseInt(row[0], 10, 32)
		if err != nil {
			line, _ := r.FieldPos(0)
			return n, errors.Wrapf(err, "line %d: bad key", line)
		}
		ref, err := t.rec.Append(int32(key), []byte(row[1]))
		if err != nil {
			return n, err
		}
		if err := t.idx.Insert(int32(key), ref); err != nil {
			return n, err
		}
		n++
	}
}

// selectCmd handles the select command.
func selectCmd(args []string) int {
	fs := flag.NewFlagSet("select", flag.ContinueOnError)
	fs.SetOutput(stderr)

	tablePath := fs.String("table", "", "Table path")
	from := fs.Int("from", math.MinInt32, "Smallest key, inclusive")
	to := fs.Int("to", math.MaxInt32, "Largest key, inclusive")
	countOnly := fs.Bool("count", false, "Print only the number of rows")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *help || *helpLong {
		printSelectUsage(stdout)
		return 0
	}
	if *tablePath == "" {
		fmt.Fprintln(stderr, "Error: -table is required")
		return 1
	}
	if !fitsInt32(*from) || !fitsInt32(*to) {
		fmt.Fprintln(stderr, "Error: keys must fit in 32 bits")
		return 1
	}

	t, err := openTable(*tablePath, pager.ModeRead, 64, newLogger(false))
	if err != nil {
		fmt.Fprintf(stderr, "Error opening table: %v\n", err)
		return 1
	}
	defer t.Close()

	it, err := t.idx.Range(int32(*from), int32(*to))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer it.Close()

	w := csv.NewWriter(stdout)
	n := 0
	for it.Next() {
		n++
		if *countOnly {
			continue
		}
		key, value, err := t.rec.Read(it.Ref())
		if err != nil {
			fmt.Fprintf(stderr, "Error reading record %d.%d: %v\n", it.Ref().Page, it.Ref().Slot, err)
			return 1
		}
		if err := w.Write([]string{strconv.Itoa(int(key)), string(value)}); err != nil {
			fmt.Fprintf(stderr, "Error writing output: %v\n", err)
			return 1
		}
	}
	w.Flush()
	if err := it.Error(); err != nil {
		fmt.Fprintf(stderr, "Scan failed: %v\n", err)
		return 1
	}
	if err := w.Error(); err != nil {
		fmt.Fprintf(stderr, "Error writing output: %v\n", err)
		return 1
	}
	if *countOnly {
		fmt.Fprintln(stdout, n)
	}
	return 0
}

// getCmd handles the get command.
func getCmd(args []string) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(stderr)

	tablePath := fs.String("table", "", "Table path")
	key := fs.Int("key", 0, "Key to look up")
	help := fs.Bool("h", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *help {
		printGetUsage(stdout)
		return 0
	}
	if *tablePath == "" {
		fmt.Fprintln(stderr, "Error: -table is required")
		return 1
	}
	if !fitsInt32(*key) {
		fmt.Fprintln(stderr, "Error: key must fit in 32 bits")
		return 1
	}

	t, err := openTable(*tablePath, pager.ModeRead, 16, newLogger(false))
	if err != nil {
		fmt.Fprintf(stderr, "Error opening table: %v\n", err)
		return 1
	}
	defer t.Close()

	refs, err := t.idx.Get(int32(*key))
	if err != nil {
		fmt.Fprintf(stderr, "Lookup failed: %v\n", err)
		return 1
	}
	if len(refs) == 0 {
		fmt.Fprintf(stderr, "Key %d not found\n", *key)
		return 1
	}
	w := csv.NewWriter(stdout)
	for _, ref := range refs {
		k, value, err := t.rec.Read(ref)
		if err != nil {
			fmt.Fprintf(stderr, "Error reading record %d.%d: %v\n", ref.Page, ref.Slot, err)
			return 1
		}
		if err := w.Write([]string{strconv.Itoa(int(k)), string(value)}); err != nil {
			fmt.Fprintf(stderr, "Error writing output: %v\n", err)
			return 1
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fmt.Fprintf(stderr, "Error writing output: %v\n", err)
		return 1
	}
	return 0
}

func fitsInt32(v int) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}

// checkCmd handles the check command.
func checkCmd(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)

	tablePath := fs.String("table", "", "Table path")
	help := fs.Bool("h", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *help {
		printCheckUsage(stdout)
		return 0
	}
	if *tablePath == "" {
		fmt.Fprintln(stderr, "Error: -table is required")
		return 1
	}

	idx, err := bptree.Open(*tablePath+".idx", pager.ModeRead, bptree.Options{})
	if err != nil {
		fmt.Fprintf(stderr, "Error opening index: %v\n", err)
		return 1
	}
	defer idx.Close()

	st, err := idx.Verify()
	if err != nil {
		fmt.Fprintf(stderr, "Check failed: %+v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Index OK\n")
	fmt.Fprintf(stdout, "  Height:         %d\n", st.Height)
	fmt.Fprintf(stdout, "  Entries:        %s\n", humanize.Comma(int64(st.Entries)))
	fmt.Fprintf(stdout, "  Leaf pages:     %s\n", humanize.Comma(int64(st.Leaves)))
	fmt.Fprintf(stdout, "  Internal pages: %s\n", humanize.Comma(int64(st.Internals)))
	fmt.Fprintf(stdout, "  Leaf fill:      %.1f%%\n", 100*st.LeafFill())
	fmt.Fprintf(stdout, "  File size:      %s\n", humanize.IBytes(uint64(st.Pages)*pager.PageSize))
	return 0
}

// dotCmd handles the dot command.
func dotCmd(args []string) int {
	fs := flag.NewFlagSet("dot", flag.ContinueOnError)
	fs.SetOutput(stderr)

	tablePath := fs.String("table", "", "Table path")
	out := fs.String("out", "", "DOT output file")
	png := fs.String("png", "", "PNG output file (needs graphviz)")
	help := fs.Bool("h", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *help {
		printDotUsage(stdout)
		return 0
	}
	if *tablePath == "" || *out == "" {
		fmt.Fprintln(stderr, "Error: -table and -out are required")
		return 1
	}

	idx, err := bptree.Open(*tablePath+".idx", pager.ModeRead, bptree.Options{})
	if err != nil {
		fmt.Fprintf(stderr, "Error opening index: %v\n", err)
		return 1
	}
	defer idx.Close()

	if err := idx.Print(*out, *png); err != nil {
		fmt.Fprintf(stderr, "Export failed: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Wrote %s\n", *out)
	return 0
}
