package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/tarikcelik1/cooperative-vm/internal/cli"
	"github.com/tarikcelik1/cooperative-vm/internal/kernel"
	"github.com/tarikcelik1/cooperative-vm/internal/log"
	"github.com/tarikcelik1/cooperative-vm/internal/vm"
)

// Dumper returns the "dump" command: load a program image and print its initial memory contents
// without running it.
func Dumper() cli.Command {
	return &dumper{}
}

type dumper struct {
	useKernel bool
}

func (dumper) Description() string { return "load a program image and dump its memory" }

func (dumper) Usage(out io.Writer) error {
	_, err := fmt.Fprintln(out, `dump [-kernel] [path]

Loads the program image at path (in the textual loader format), or the reference kernel image with
-kernel, and prints every non-zero memory cell followed by the thread table. The image is never
run.`)

	return err
}

func (d *dumper) FlagSet() *cli.FlagSet {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	fs.BoolVar(&d.useKernel, "kernel", false, "load the reference kernel image first")

	return fs
}

func (d *dumper) Run(_ context.Context, args []string, stdout io.Writer, logger *log.Logger) int {
	if len(args) == 0 && !d.useKernel {
		logger.Error("dump: no program image given")
		return 1
	}

	e := vm.New(vm.WithLogger(logger), vm.WithStdout(stdout))
	loader := vm.NewLoader()

	if d.useKernel {
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

	vm.DumpMemory(stdout, e.Mem)
	vm.DumpThreadTable(stdout, e.Mem)

	return 0
}
