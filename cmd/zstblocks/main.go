package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/bsm/zstblocks"
)

const helpText = `
zstblocks - encode, decode and inspect block-compressed row containers.

Usage:
  zstblocks <command> [options]

Commands:
  encode                  - Encode rows into a container
  decode                  - Decode the rows of a container
  get                     - Read a single row by block offset or row number
  index                   - Build a row number index for a container
  stat                    - Show container statistics
  tozst                   - Convert a container into a plain zstd stream

Run 'zstblocks <command> -h' for the options of a command.
`

// env holds the process streams, so commands can be run in tests.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

type command func(args []string, e *env) error

var commands = map[string]command{
	"encode": runEncode,
	"decode": runDecode,
	"get":    runGet,
	"index":  runIndex,
	"stat":   runStat,
	"tozst":  runToZst,
}

// errUsage marks invalid command line arguments.
var errUsage = errors.New("usage")

func usageErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{errUsage}, args...)...)
}

func main() {
	os.Exit(run(os.Args[1:], &env{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}))
}

func run(args []string, e *env) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(e.stderr, helpText)
		if len(args) == 0 {
			return 1
		}
		return 0
	}

	cmd, ok := commands[args[0]]
	if !ok {
		names := make([]string, 0, len(commands))
		for name := range commands {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(e.stderr, "Unknown command %q, expected one of: %s\n", args[0], strings.Join(names, ", "))
		return 1
	}

	if err := cmd(args[1:], e); err == flag.ErrHelp {
		return 0
	} else if errors.Is(err, errUsage) {
		fmt.Fprintln(e.stderr, strings.TrimPrefix(err.Error(), errUsage.Error()+": "))
		return 1
	} else if err != nil {
		fmt.Fprintf(e.stderr, "Error: %s\n", err)
		return 1
	}
	return 0
}

// --------------------------------------------------------------------

// newFlagSet creates a flag set which reports to stderr.
func newFlagSet(name string, e *env) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	return fs
}

func stringFlag(fs *flag.FlagSet, p *string, names []string, usage string) {
	for _, name := range names {
		fs.StringVar(p, name, "", usage)
	}
}

func boolFlag(fs *flag.FlagSet, p *bool, names []string, usage string) {
	for _, name := range names {
		fs.BoolVar(p, name, false, usage)
	}
}

// codecFlag parses compression codec names.
type codecFlag struct{ c *zstblocks.Compression }

func (f codecFlag) String() string {
	if f.c == nil {
		return zstblocks.ZstdCompression.String()
	}
	return f.c.String()
}

func (f codecFlag) Set(s string) error {
	switch s {
	case "zstd":
		*f.c = zstblocks.ZstdCompression
	case "snappy":
		*f.c = zstblocks.SnappyCompression
	default:
		return fmt.Errorf("unknown codec %q, expected zstd or snappy", s)
	}
	return nil
}

func codecVar(fs *flag.FlagSet, p *zstblocks.Compression, names []string, usage string) {
	for _, name := range names {
		fs.Var(codecFlag{c: p}, name, usage)
	}
}

// openContainer opens a container file for reading.
func openContainer(name string, c zstblocks.Compression) (*os.File, *zstblocks.Reader, error) {
	f, err := os.Open(name)
	if os.IsNotExist(err) {
		return nil, nil, usageErrorf("Input file '%s' does not exist", name)
	} else if err != nil {
		return nil, nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}

	return f, zstblocks.NewReader(f, fi.Size(), &zstblocks.ReaderOptions{Compression: c}), nil
}

// createOutput opens an output file, truncating or appending to it.
func createOutput(name string, appendTo bool) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if appendTo {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	return os.OpenFile(name, flags, 0644)
}

// nopWriteCloser is an io.WriteCloser with a no-op Close method
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// openOutput returns either a file or stdout.
func openOutput(name string, toStdout, appendTo bool, e *env) (io.WriteCloser, error) {
	if toStdout == (name != "") {
		return nil, usageErrorf("Either --output or --stdout must be specified")
	}
	if toStdout {
		return nopWriteCloser{e.stdout}, nil
	}
	return createOutput(name, appendTo)
}
