// File: cmd/healer/main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/xkilldash9x/healer/cmd"
	"github.com/xkilldash9x/healer/internal/observability"
)

// osExit is replaced in tests.
var osExit = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer observability.Sync()

	if len(os.Args) > 1 {
		if err := cmd.Execute(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				osExit(0)
				return
			}
			osExit(1)
		}
		return
	}

	if err := interactive(ctx, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error reading from stdin:", err)
		osExit(1)
	}
}

// interactive runs one command per input line until EOF, "exit" or "quit".
// A failing command is reported and the session continues.
func interactive(ctx context.Context, in io.Reader, out, errOut io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "healer > ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		executeLine(ctx, line, out, errOut)
		if ctx.Err() != nil {
			break
		}
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

func executeLine(ctx context.Context, line string, out, errOut io.Writer) {
	root := cmd.NewRootCommand()
	root.SetArgs(strings.Fields(line))
	root.SetOut(out)
	root.SetErr(errOut)
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(errOut, "Error: command panicked: %v\n", r)
		}
	}()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(errOut, "Error:", err)
	}
}
