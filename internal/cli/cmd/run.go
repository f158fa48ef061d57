package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tarikcelik1/cooperative-vm/internal/asm"
	"github.com/tarikcelik1/cooperative-vm/internal/cli"
	"github.com/tarikcelik1/cooperative-vm/internal/debugger"
	"github.com/tarikcelik1/cooperative-vm/internal/kernel"
	"github.com/tarikcelik1/cooperative-vm/internal/log"
	"github.com/tarikcelik1/cooperative-vm/internal/vm"
)

// Runner returns the "run" command: load a program image and execute it to completion.
func Runner() cli.Command {
	return &runner{}
}

type runner struct {
	debugLevel int
	useKernel  bool
	rawStep    bool
}

func (runner) Description() string { return "load and run a program image" }

func (runner) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `run [-D level] [-kernel] [-raw] [path]

Loads the program image at path (in the textual loader format) and runs it to completion. With
-kernel, the reference kernel image is loaded first; path is then optional and, if given, is
loaded on top of it -- handy for supplying just a demo user program while reusing the reference
boot and trap dispatcher.

Debug levels:
  0  (default) dump non-zero memory once, after halting
  1  dump non-zero memory after every instruction
  2  as 1, and wait for a keypress between instructions
  3  as 1, and dump the thread table after every syscall

At debug level 2, -raw steps on a single raw keystroke instead of a line-edited prompt.`)

	return err
}

func (r *runner) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	fs.IntVar(&r.debugLevel, "D", 0, "debug level (0-3)")
	fs.BoolVar(&r.useKernel, "kernel", false, "load the reference kernel image first")
	fs.BoolVar(&r.rawStep, "raw", false, "at debug level 2, step on a single raw keystroke instead of a line-edited prompt")

	return fs
}

func (r *runner) Run(ctx context.Context, args []string, stdout io.Writer, logger *log.Logger) int {
	log.LogLevel.Set(debugLevelToSlog(r.debugLevel))

	if len(args) == 0 && !r.useKernel {
		logger.Error("run: no program image given")
		return 1
	}

	opts := []vm.OptionFn{
		vm.WithLogger(logger),
		vm.WithDebugLevel(r.debugLevel),
		vm.WithStdout(stdout),
	}

	if r.debugLevel == 2 {
		if r.rawStep {
			stepper, err := debugger.NewRawStepper()
			if err != nil {
				logger.Error("raw stepper", "err", err)
				return 1
			}

			defer stepper.Close()

			opts = append(opts, vm.WithStepper(stepper))
		} else {
			stepper := debugger.NewLinerStepper()
			defer stepper.Close()

			opts = append(opts, vm.WithStepper(stepper))
		}
	}

	e := vm.New(opts...)
	loader := vm.NewLoader()

	if r.useKernel {
		img, err := kernel.NewReferenceImage()
		if err != nil {
			logger.Error("loading reference kernel", "err", err)
			return 1
		}

		if _, err := loader.Load(e, img); err != nil {
			logger.Error("loading reference kernel", "err", err)
			return 1
		}
	}

	if len(args) > 0 {
		img, err := loadImage(args[0])
		if err != nil {
			logger.Error("loading image", "file", args[0], "err", err)
			return 1
		}

		if _, err := loader.Load(e, img); err != nil {
			logger.Error("loading image", "file", args[0], "err", err)
			return 1
		}
	}

	if err := e.Run(ctx); err != nil {
		logger.Error("run", "err", err)
		return 1
	}

	return 0
}

func loadImage(path string) (vm.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return vm.Image{}, err
	}
	defer f.Close()

	return asm.Parse(f)
}

func debugLevelToSlog(level int) log.Level {
	switch {
	case level <= 0:
		return log.Error
	case level == 1:
		return log.Warn
	case level == 2:
		return log.Info
	default:
		return log.Debug
	}
}
