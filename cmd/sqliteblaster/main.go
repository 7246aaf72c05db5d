package main

import (
	"fmt"
	"os"

	"github.com/mitchellh/cli"

	"github.com/siara-cc/sqlite-blaster/cmd/sqliteblaster/command"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		args = append(args, "selftest")
	}

	commands := map[string]cli.CommandFactory{
		"create": func() (cli.Command, error) {
			return &command.CreateCommand{}, nil
		},
		"insert": func() (cli.Command, error) {
			return &command.InsertCommand{}, nil
		},
		"read": func() (cli.Command, error) {
			return &command.ReadCommand{}, nil
		},
		"selftest": func() (cli.Command, error) {
			return &command.SelftestCommand{}, nil
		},
	}

	blasterCLI := &cli.CLI{
		Args:     args,
		Commands: commands,
		HelpFunc: cli.BasicHelpFunc("sqliteblaster"),
	}

	exitCode, err := blasterCLI.Run()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		os.Exit(1)
	}

	os.Exit(exitCode)
}
