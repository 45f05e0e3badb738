// Command weft runs WEFT source files (or a program read from stdin when no
// file is given), or with -repl starts an interactive REPL.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/peterh/liner"
	"golang.org/x/exp/maps"

	"github.com/weftlang/weft/asm"
	"github.com/weftlang/weft/compiler"
	"github.com/weftlang/weft/internal/fileinput"
	"github.com/weftlang/weft/internal/lexer"
	"github.com/weftlang/weft/internal/logio"
	"github.com/weftlang/weft/internal/panicerr"
	"github.com/weftlang/weft/internal/parser"
	"github.com/weftlang/weft/stdlib"
	"github.com/weftlang/weft/vm"
)

func main() {
	var (
		memLimit      uint
		gcThreshold   uint
		frameCapacity int
		stackCapacity int
		timeout       time.Duration
		repl          bool
		trace         bool
		dump          bool
	)
	flag.UintVar(&memLimit, "mem-limit", 0, "cap total live heap bytes (0 disables)")
	flag.UintVar(&gcThreshold, "gc-threshold", 0, "bytes allocated between collections (0 uses the default)")
	flag.IntVar(&frameCapacity, "frame-capacity", 0, "call-stack depth limit (0 uses the default)")
	flag.IntVar(&stackCapacity, "stack-capacity", 0, "value stack capacity (0 uses the default)")
	flag.DurationVar(&timeout, "timeout", 0, "abort the run after this long")
	flag.BoolVar(&repl, "repl", false, "start an interactive read-eval-print loop")
	flag.BoolVar(&trace, "trace", false, "log every executed instruction to stderr")
	flag.BoolVar(&dump, "dump", false, "log the compiled assembly's interned names, then run as usual")
	flag.Parse()

	log := logio.Logger{}
	log.SetOutput(os.Stderr)
	defer os.Exit(log.ExitCode())

	opts := []vm.Option{vm.WithOutput(os.Stdout)}
	if memLimit != 0 {
		opts = append(opts, vm.WithMemLimit(memLimit))
	}
	if gcThreshold != 0 {
		opts = append(opts, vm.WithGCThreshold(gcThreshold))
	}
	if frameCapacity != 0 {
		opts = append(opts, vm.WithFrameCapacity(frameCapacity))
	}
	if stackCapacity != 0 {
		opts = append(opts, vm.WithStackCapacity(stackCapacity))
	}
	if trace {
		traceLine := log.Leveledf("TRACE")
		opts = append(opts, vm.WithTrace(func(pc int, op asm.Op) {
			traceLine("%04d %s", pc, op.Code)
		}))
	}

	ctx := context.Background()
	if timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if repl {
		runREPL(ctx, &log, opts)
		return
	}

	src, err := readSources(flag.Args())
	if err != nil {
		log.Errorf("%s", err)
		return
	}
	log.ErrorIf(runOnce(ctx, &log, src, opts, dump))
}

// readSources queues the named files (or stdin, if none given) through
// fileinput.Input and drains it into one combined source string: the
// lexer's contract (internal/lexer.New) takes a whole program upfront, so
// multiple files behave as if concatenated.
func readSources(paths []string) (string, error) {
	var in fileinput.Input
	if len(paths) == 0 {
		in.Queue = append(in.Queue, os.Stdin)
	} else {
		for _, p := range paths {
			f, err := os.Open(p)
			if err != nil {
				return "", err
			}
			defer f.Close()
			in.Queue = append(in.Queue, f)
		}
	}

	var sb strings.Builder
	for {
		r, _, err := in.ReadRune()
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", err
		}
		if r != 0 {
			sb.WriteRune(r)
		}
	}
	return sb.String(), nil
}

func runOnce(ctx context.Context, log *logio.Logger, src string, opts []vm.Option, dump bool) error {
	block, err := parser.ParseProgram(lexer.New(src))
	if err != nil {
		return err
	}
	assembly, err := compiler.Compile(block)
	if err != nil {
		return err
	}
	if dump {
		dumpInterned(log, assembly)
	}

	m := vm.New(assembly, opts...)
	installBuiltins(m)

	done := make(chan error, 1)
	go func() { done <- panicerr.Recover("vm.Run", m.Run) }()
	var runErr error
	select {
	case runErr = <-done:
	case <-ctx.Done():
		runErr = ctx.Err()
	}
	logGCStats(log, m)
	return runErr
}

// dumpInterned logs the compiled assembly's symbol table under `-dump`,
// sorted for deterministic output (the Interner's own map has no stable
// iteration order), grounded on the teacher's dumper.go name listing.
func dumpInterned(log *logio.Logger, assembly *asm.Assembly) {
	ids := assembly.Interner.IDs()
	names := maps.Keys(ids)
	sort.Strings(names)
	dumpLine := log.Leveledf("DUMP")
	for _, name := range names {
		dumpLine("%d\t%s", ids[name], name)
	}
}

// logGCStats reports the VM's final heap footprint in human-readable form
// (spec §9 `GC` summary logging), grounded on the teacher's memcore.go
// usage reporting.
func logGCStats(log *logio.Logger, m *vm.VM) {
	var live uint64
	for o := m.Heap().Head(); o != nil; o = o.Next() {
		live += uint64(o.Size())
	}
	log.Leveledf("GC")("heap live: %s, %d objects", humanize.Bytes(live), m.Heap().Count())
}

// runREPL evaluates one line at a time against a single persistent VM, so
// globals defined on one line are visible to the next (spec §9: no bare
// top-level command mode is specified, so the REPL simply re-parses and
// re-compiles each line standalone but keeps VM state across lines).
func runREPL(ctx context.Context, log *logio.Logger, opts []vm.Option) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	m := vm.New(&asm.Assembly{}, opts...)
	installBuiltins(m)

	for ctx.Err() == nil {
		text, err := line.Prompt("weft> ")
		if err != nil {
			return
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		line.AppendHistory(text)

		block, err := parser.ParseProgram(lexer.New(text))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		assembly, err := compiler.Compile(block)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		if err := m.RunAssembly(assembly); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	logGCStats(log, m)
}

func installBuiltins(m *vm.VM) {
	start := time.Now()
	builtins := stdlib.Builtins{
		Out:       m.Output(),
		In:        bufio.NewReader(os.Stdin),
		Clock:     func() time.Duration { return time.Since(start) },
		CollectGC: func() { m.CollectGarbage() },
	}
	for name, val := range builtins.Register() {
		m.SetGlobal(name, val)
	}
}
