// Package maincmd implements the wenyan command-line entry point:
// read a source file, compile it to bytecode, and run it. Grounded on the
// teacher's internal/maincmd/maincmd.go Cmd/Validate/Main shape, collapsed
// from its parse/resolve/tokenize subcommand dispatch (buildCmds'
// reflection-driven command table) down to the single run operation this
// language's CLI needs (spec.md §7 "Driver").
package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/mna/wenyan/internal/config"
	"github.com/mna/wenyan/internal/xlog"
	"github.com/mna/wenyan/lang/compiler"
	"github.com/mna/wenyan/lang/interner"
	"github.com/mna/wenyan/lang/machine"
	"github.com/mna/wenyan/lang/object"
	"github.com/mna/wenyan/lang/runtime"
)

const binName = "wenyan"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <path>
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <path>
       %[1]s -h|--help
       %[1]s -v|--version

Compiles and runs a single wenyan source file.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       -d --debug                Print the compiled bytecode
                                  disassembly to stdout before running.
       --limits <path>           Load resource limits (step budget,
                                  call depth, stack size) from a YAML
                                  file; WENYAN_* environment variables
                                  take precedence over both the file
                                  and the built-in defaults.

More information on the wenyan programming language:
       https://github.com/wenyan-lang/wenyan
`, binName)
)

// Cmd is the wenyan CLI, matching the teacher's flag-tagged struct
// convention for github.com/mna/mainer.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`
	Debug   bool `flag:"d,debug"`
	Limits  string `flag:"limits"`

	args []string
}

func (c *Cmd) SetArgs(args []string)          { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) {}

// Validate enforces the single positional source-file argument (spec.md
// §7: "exactly one positional argument").
func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) != 1 {
		return fmt.Errorf("expected exactly one source file argument, got %d", len(c.args))
	}
	return nil
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   true,
		EnvPrefix: binName + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.run(ctx, stdio); err != nil {
		if !errors.Is(err, machine.ErrRuntime) {
			fmt.Fprintf(stdio.Stderr, "%s\n", err)
		}
		return mainer.Failure
	}
	return mainer.Success
}

// run reads, compiles, and executes the source file named by c.args[0].
// Compile errors are printed by the compiler itself (in the `[line L]
// compiler error: …` form); runtime errors are printed by the VM (in the
// `[line L] error: …` form) before run returns machine.ErrRuntime.
func (c *Cmd) run(ctx context.Context, stdio mainer.Stdio) error {
	src, err := os.ReadFile(c.args[0])
	if err != nil {
		return err
	}

	limits, err := config.Load(c.Limits)
	if err != nil {
		return fmt.Errorf("loading limits: %w", err)
	}

	in := interner.New()
	functions := &object.Table{}
	topFn, ok := compiler.Compile(src, in, functions, stdio.Stderr)
	if !ok {
		return errors.New("compilation failed")
	}

	if c.Debug {
		for _, line := range compiler.Disassemble(c.args[0], topFn.Chunk, in, functions) {
			fmt.Fprintln(stdio.Stdout, line)
		}
	}

	log := xlog.New(stdio.Stderr, xlog.LevelWarn)
	rt := runtime.New(in, functions)
	vm := machine.New(stdio.Stdout, stdio.Stderr, limits, log)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return vm.Run(rt, topFn)
}
