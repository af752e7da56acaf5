package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/huh"
)

const usage = `mailtriage sorts unread mail into categories and auto-responds.

Usage:
  mailtriage <command> [flags]

Commands:
  sort        classify unread mail and print the sorted inbox
  respond     sort, then auto-respond to eligible messages
  watch       poll one or more accounts and serve metrics
  configure   edit auto-response settings interactively
  history     list recent auto-response runs
  set-secret  store a mailbox password or API key in the keyring

Run "mailtriage <command> --help" for command flags.
`

type command func(ctx context.Context, args []string) error

var commands = map[string]command{
	"sort":       runSort,
	"respond":    runRespond,
	"watch":      runWatch,
	"configure":  runConfigure,
	"history":    runHistory,
	"set-secret": runSetSecret,
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" || os.Args[1] == "help" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd(ctx, os.Args[2:]); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
