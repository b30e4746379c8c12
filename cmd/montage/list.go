package main

import (
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/dudk/montage"
)

type listCommand struct{}

func (cmd *listCommand) Name() string {
	return "list"
}

func (cmd *listCommand) Help() string {
	return "Show the list of available node types"
}

func (cmd *listCommand) Register(*flag.FlagSet) {}

func (cmd *listCommand) Run(out io.Writer) error {
	for _, tag := range montage.Factories() {
		fmt.Fprintln(out, tag)
	}
	return nil
}
