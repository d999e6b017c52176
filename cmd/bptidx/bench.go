package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"

	"github.com/btree-query-bench/bptidx/dbms/index"
	"github.com/btree-query-bench/bptidx/dbms/index/bptree"
	"github.com/btree-query-bench/bptidx/dbms/index/lsm"
	"github.com/btree-query-bench/bptidx/dbms/index/memindex"
	"github.com/btree-query-bench/bptidx/dbms/index/memtree"
	"github.com/btree-query-bench/bptidx/dbms/pager"
)

type WorkloadType string

const (
	Load      WorkloadType = "Load (sequential)"
	OLTP      WorkloadType = "OLTP (90/10)"
	OLAP      WorkloadType = "OLAP (10/90)"
	Reporting WorkloadType = "Reporting (Range)"
)

// BenchResult is one row of results.csv.
type BenchResult struct {
	Name      string
	Operation WorkloadType
	LatencyNs int64
	MemMB     uint64
	Objects   uint64
}

type MemoryStats struct {
	AllocMB     uint64
	HeapObjects uint64
}

// GetDetailedMem measures live heap after a forced GC.
func GetDetailedMem() MemoryStats {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocMB:     m.Alloc / 1024 / 1024,
		HeapObjects: m.HeapObjects,
	}
}

func Record(w *csv.Writer, res BenchResult) error {
	return w.Write([]string{
		res.Name,
		string(res.Operation),
		strconv.FormatInt(res.LatencyNs, 10),
		strconv.FormatUint(res.MemMB, 10),
		strconv.FormatUint(res.Objects, 10),
	})
}

// ExecuteWorkload runs ops operations of the given mix against keys in [0, ops).
func ExecuteWorkload(idx index.Index, wType WorkloadType, ops int, rng *rand.Rand) error {
	for i := 0; i < ops; i++ {
		choice := rng.Intn(100)
		key := int32(rng.Intn(ops))
		ref := index.RecordRef{Page: uint32(i), Slot: 0}

		var err error
		switch wType {
		case Load:
			err = idx.Insert(int32(i), ref)
		case OLTP:
			if choice < 90 {
				_, err = idx.Get(key)
			} else {
				err = idx.Insert(key, ref)
			}
		case OLAP:
			if choice < 10 {
				_, err = idx.Get(key)
			} else {
				err = idx.Insert(key, ref)
			}
		case Reporting:
			var it index.Iterator
			if it, err = idx.Range(key, key+100); err == nil {
				for it.Next() {
				}
				err = it.Error()
				_ = it.Close()
			}
		}
		if err != nil {
			return errors.Wrapf(err, "%s op %d", wType, i)
		}
	}
	return nil
}

// benchCmd handles the bench command.
func benchCmd(args []string) int {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	fs.SetOutput(stderr)

	n := fs.Int("n", 100000, "Keys in the initial load")
	outDir := fs.String("out", "results", "Output directory")
	cache := fs.Int("cache", 64, "Pages cached by the bptree pager")
	seed := fs.Int64("seed", 1, "Workload random seed")
	degree := fs.Int("degree", 64, "Minimum degree of the in-memory B+ tree")
	verbose := fs.Bool("v", false, "Debug logging")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *help || *helpLong {
		printBenchUsage(stdout)
		return 0
	}
	if *n < 2 {
		fmt.Fprintln(stderr, "Error: -n must be at least 2")
		return 1
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	log := newLogger(*verbose)
	f, err := os.Create(filepath.Join(*outDir, "results.csv"))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer f.Close()
	w := csv.NewWriter(f)
	_ = w.Write([]string{"Structure", "TestType", "LatencyNs", "MemMB", "HeapObjects"})

	suites := []struct {
		name string
		open func() (index.Index, error)
	}{
		{"BPlusTree", func() (index.Index, error) {
			path := filepath.Join(*outDir, "bench.idx")
			_ = os.Remove(path)
			return bptree.Open(path, pager.ModeWrite, bptree.Options{CachePages: *cache, Logger: log})
		}},
		{"Pebble", func() (index.Index, error) {
			dir := filepath.Join(*outDir, "pebble")
			_ = os.RemoveAll(dir)
			return lsm.Open(dir, lsm.Options{Logger: log})
		}},
		{"MemBPlusTree", func() (index.Index, error) {
			return memtree.New(*degree), nil
		}},
		{"SortedSlice", func() (index.Index, error) {
			return memindex.New(), nil
		}},
	}

	var results []BenchResult
	for _, s := range suites {
		fmt.Fprintf(stdout, "Testing %s\n", s.name)
		idx, err := s.open()
		if err != nil {
			fmt.Fprintf(stderr, "Error opening %s: %v\n", s.name, err)
			return 1
		}
		res, err := runSuite(idx, s.name, *n, rand.New(rand.NewSource(*seed)))
		if cerr := idx.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			fmt.Fprintf(stderr, "%s failed: %+v\n", s.name, err)
			return 1
		}
		for _, r := range res {
			_ = Record(w, r)
			fmt.Fprintf(stdout, "  %-18s %12s ns/op\n", r.Operation, humanize.Comma(r.LatencyNs))
		}
		results = append(results, res...)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fmt.Fprintf(stderr, "Error writing results: %v\n", err)
		return 1
	}

	if size, err := fileSize(filepath.Join(*outDir, "bench.idx")); err == nil {
		fmt.Fprintf(stdout, "B+ tree file: %s\n", humanize.IBytes(uint64(size)))
	}
	if err := plotResults(results, filepath.Join(*outDir, "results.png")); err != nil {
		fmt.Fprintf(stderr, "Error plotting results: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Benchmark complete. Results in %s\n", *outDir)
	return 0
}

func runSuite(idx index.Index, name string, n int, rng *rand.Rand) ([]BenchResult, error) {
	phases := []struct {
		wType WorkloadType
		ops   int
	}{
		{Load, n},
		{OLTP, n / 2},
		{OLAP, n / 2},
		{Reporting, 100},
	}

	var out []BenchResult
	for _, ph := range phases {
		start := time.Now()
		if err := ExecuteWorkload(idx, ph.wType, ph.ops, rng); err != nil {
			return nil, err
		}
		latency := time.Since(start).Nanoseconds() / int64(ph.ops)
		mem := GetDetailedMem()
		out = append(out, BenchResult{
			Name:      name,
			Operation: ph.wType,
			LatencyNs: latency,
			MemMB:     mem.AllocMB,
			Objects:   mem.HeapObjects,
		})
	}
	return out, nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
