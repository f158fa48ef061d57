// cmd/sim is the command-line interface to the cooperative-multitasking teaching virtual machine.
package main

import (
	"context"
	"os"

	"github.com/tarikcelik1/cooperative-vm/internal/cli"
	"github.com/tarikcelik1/cooperative-vm/internal/cli/cmd"
)

var commands = []cli.Command{
	cmd.Runner(),
	cmd.Dumper(),
}

// Entry point.
func main() {
	result :=
		cli.New(context.Background()).
			WithLogger(os.Stderr).
			WithCommands(commands).
			WithHelp(cmd.Help(commands)).
			Execute(os.Args[1:])

	os.Exit(result)
}
