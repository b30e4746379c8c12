// Command montage renders layered compositions described in YAML.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	flag "github.com/spf13/pflag"
)

type command interface {
	Name() string
	Help() string
	Register(*flag.FlagSet)
	Run(out io.Writer) error
}

var (
	successExitCode = 0
	errorExitCode   = 1
	commands        = []command{&renderCommand{}, &listCommand{}}
)

func main() {
	color.NoColor = !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd())
	os.Exit(run(os.Args, os.Stdout))
}

func run(args []string, out io.Writer) int {
	name, args := parseArgs(args)
	if name == "" || name == "-h" || name == "--help" {
		printUsage(out)
		if name == "" {
			return errorExitCode
		}
		return successExitCode
	}

	for _, cmd := range commands {
		if cmd.Name() != name {
			continue
		}
		flags := flag.NewFlagSet(name, flag.ContinueOnError)
		flags.SetOutput(out)
		cmd.Register(flags)
		if err := flags.Parse(args); err != nil {
			return errorExitCode
		}
		if err := cmd.Run(out); err != nil {
			color.New(color.FgRed).Fprintf(out, "%s failed: %v\n", name, err)
			return errorExitCode
		}
		return successExitCode
	}
	color.New(color.FgRed).Fprintf(out, "unknown command '%s'\n\n", name)
	printUsage(out)
	return errorExitCode
}

func parseArgs(args []string) (string, []string) {
	if len(args) < 2 {
		return "", nil
	}
	return args[1], args[2:]
}

func printUsage(out io.Writer) {
	color.New(color.FgCyan, color.Bold).Fprintln(out, "montage composes layers of pictures and sound")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Usage: montage <command> [OPTION]...")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(out, "  %-8s %s\n", cmd.Name(), cmd.Help())
	}
}
