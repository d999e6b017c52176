package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

// capture redirects the CLI's output for the duration of a test.
func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	oldOut, oldErr := stdout, stderr
	stdout, stderr = &out, &errOut
	t.Cleanup(func() { stdout, stderr = oldOut, oldErr })
	return &out, &errOut
}

func writeCSV(t *testing.T, rows int) string {
	t.Helper()
	var b strings.Builder
	for i := rows; i > 0; i-- {
		fmt.Fprintf(&b, "%d,\"movie %d\"\n", i, i)
	}
	b.WriteString("7,\"movie 7, again\"\n")
	path := filepath.Join(t.TempDir(), "movies.csv")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_NoArgs(t *testing.T) {
	capture(t)
	exitCode := run([]string{"bptidx"})
	if exitCode != 1 {
		t.Errorf("expected exit code 1 for no args, got %d", exitCode)
	}
}

func TestRun_Help(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"help command", []string{"bptidx", "help"}},
		{"short flag", []string{"bptidx", "-h"}},
		{"long flag", []string{"bptidx", "--help"}},
		{"load help", []string{"bptidx", "load", "-h"}},
		{"select help", []string{"bptidx", "select", "-help"}},
		{"get help", []string{"bptidx", "get", "-h"}},
		{"check help", []string{"bptidx", "check", "-h"}},
		{"dot help", []string{"bptidx", "dot", "-h"}},
		{"bench help", []string{"bptidx", "bench", "-h"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := capture(t)
			exitCode := run(tt.args)
			if exitCode != 0 {
				t.Errorf("expected exit code 0 for help, got %d", exitCode)
			}
			if !strings.Contains(out.String(), "Usage:") {
				t.Errorf("help output has no usage section:\n%s", out)
			}
		})
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	_, errOut := capture(t)
	exitCode := run([]string{"bptidx", "unknown"})
	if exitCode != 1 {
		t.Errorf("expected exit code 1 for unknown command, got %d", exitCode)
	}
	if !strings.Contains(errOut.String(), "Unknown command: unknown") {
		t.Errorf("unexpected stderr: %s", errOut)
	}
}

func TestRun_MissingFlags(t *testing.T) {
	tests := [][]string{
		{"bptidx", "load"},
		{"bptidx", "load", "-table", "x"},
		{"bptidx", "select"},
		{"bptidx", "get"},
		{"bptidx", "check"},
		{"bptidx", "dot", "-table", "x"},
		{"bptidx", "bench", "-n", "1"},
		{"bptidx", "load", "-bogus"},
	}
	for _, args := range tests {
		capture(t)
		if code := run(args); code != 1 {
			t.Errorf("%v: expected exit code 1, got %d", args, code)
		}
	}
}

func TestRun_LoadAndQuery(t *testing.T) {
	table := filepath.Join(t.TempDir(), "movie")
	csvPath := writeCSV(t, 500)

	out, errOut := capture(t)
	if code := run([]string{"bptidx", "load", "-table", table, "-csv", csvPath}); code != 0 {
		t.Fatalf("load exit %d: %s", code, errOut)
	}
	if !strings.Contains(out.String(), "Loaded 501 rows") {
		t.Errorf("unexpected load output: %s", out)
	}

	out.Reset()
	if code := run([]string{"bptidx", "select", "-table", table, "-from", "5", "-to", "8"}); code != 0 {
		t.Fatalf("select exit %d: %s", code, errOut)
	}
	want := "5,movie 5\n6,movie 6\n7,movie 7\n7,\"movie 7, again\"\n8,movie 8\n"
	if out.String() != want {
		t.Errorf("select output:\n%s\nwant:\n%s", out, want)
	}

	out.Reset()
	if code := run([]string{"bptidx", "select", "-table", table, "-count"}); code != 0 {
		t.Fatalf("select -count exit %d: %s", code, errOut)
	}
	if strings.TrimSpace(out.String()) != "501" {
		t.Errorf("select -count printed %q", out)
	}

	out.Reset()
	if code := run([]string{"bptidx", "get", "-table", table, "-key", "499"}); code != 0 {
		t.Fatalf("get exit %d: %s", code, errOut)
	}
	if out.String() != "499,movie 499\n" {
		t.Errorf("get printed %q", out)
	}
	if code := run([]string{"bptidx", "get", "-table", table, "-key", "1000"}); code != 1 {
		t.Errorf("get of a missing key: expected exit 1, got %d", code)
	}

	out.Reset()
	if code := run([]string{"bptidx", "check", "-table", table}); code != 0 {
		t.Fatalf("check exit %d: %s", code, errOut)
	}
	for _, s := range []string{"Index OK", "Height:         2", "Entries:        501"} {
		if !strings.Contains(out.String(), s) {
			t.Errorf("check output lacks %q:\n%s", s, out)
		}
	}

	dotPath := filepath.Join(t.TempDir(), "tree.dot")
	if code := run([]string{"bptidx", "dot", "-table", table, "-out", dotPath}); code != 0 {
		t.Fatalf("dot exit %d: %s", code, errOut)
	}
	data, err := os.ReadFile(dotPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("digraph BPlusTree")) {
		t.Errorf("dot file starts with %q", data[:min(len(data), 20)])
	}
}

func TestRun_LoadBadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("1,a\nx,b\n"), 0644); err != nil {
		t.Fatal(err)
	}
	_, errOut := capture(t)
	code := run([]string{"bptidx", "load", "-table", filepath.Join(t.TempDir(), "t"), "-csv", path})
	if code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(errOut.String(), "bad key") {
		t.Errorf("unexpected stderr: %s", errOut)
	}
}

func TestRun_Bench(t *testing.T) {
	if testing.Short() {
		t.Skip("bench writes a pebble store and a chart")
	}
	dir := t.TempDir()
	out, errOut := capture(t)
	if code := run([]string{"bptidx", "bench", "-n", "2000", "-out", dir}); code != 0 {
		t.Fatalf("bench exit %d: %s", code, errOut)
	}
	if !strings.Contains(out.String(), "Benchmark complete") {
		t.Errorf("unexpected output: %s", out)
	}

	data, err := os.ReadFile(filepath.Join(dir, "results.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1+4*4 {
		t.Errorf("results.csv has %d lines", len(lines))
	}
	if _, err := os.Stat(filepath.Join(dir, "results.png")); err != nil {
		t.Errorf("chart missing: %v", err)
	}
}

// loadMovies loads rows movies into a fresh table and returns its path.
func loadMovies(t *testing.T, rows int) string {
	t.Helper()
	table := filepath.Join(t.TempDir(), "movie")
	_, errOut := capture(t)
	if code := run([]string{"bptidx", "load", "-table", table, "-csv", writeCSV(t, rows)}); code != 0 {
		t.Fatalf("load exit %d: %s", code, errOut)
	}
	return table
}

func TestRun_KeyOutOfRange(t *testing.T) {
	table := loadMovies(t, 20)

	tests := [][]string{
		{"bptidx", "select", "-table", table, "-from", "4294967301", "-count"},
		{"bptidx", "select", "-table", table, "-from", "-4294967296", "-count"},
		{"bptidx", "select", "-table", table, "-to", "4294967301", "-count"},
		{"bptidx", "select", "-table", table, "-to", "-4294967296", "-count"},
		{"bptidx", "get", "-table", table, "-key", "4294967301"},
	}
	for _, args := range tests {
		out, errOut := capture(t)
		if code := run(args); code != 1 {
			t.Errorf("%v: expected exit code 1, got %d (stdout %q)", args, code, out)
		}
		if !strings.Contains(errOut.String(), "32 bits") {
			t.Errorf("%v: unexpected stderr: %s", args, errOut)
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestRun_OutputWriteError(t *testing.T) {
	table := loadMovies(t, 20)

	tests := [][]string{
		{"bptidx", "select", "-table", table, "-from", "5", "-to", "8"},
		{"bptidx", "get", "-table", table, "-key", "7"},
	}
	for _, args := range tests {
		_, errOut := capture(t)
		stdout = failingWriter{}
		if code := run(args); code != 1 {
			t.Errorf("%v: expected exit code 1, got %d", args, code)
		}
		if !strings.Contains(errOut.String(), "disk full") {
			t.Errorf("%v: unexpected stderr: %s", args, errOut)
		}
	}
}
