// File: cmd/logs.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/healer/internal/heal/journal"
	"github.com/xkilldash9x/healer/internal/observability"
)

// newLogsCmd prints the healing debug log.
func newLogsCmd(a *app) *cobra.Command {
	var (
		path       string
		follow     bool
		raw        bool
		categories []string
		session    string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the healing debug log",
		Example: `  healer logs --category failure --category low-confidence
  healer logs --follow --session 6f1c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = a.cfg.Healing().DebugLogFile
			}
			filter := journal.Filter{Session: session}
			for _, c := range categories {
				filter.Categories = append(filter.Categories, observability.HealCategory(c))
			}

			out := cmd.OutOrStdout()
			err := journal.Read(cmd.Context(), path, journal.Options{Follow: follow, Filter: filter}, a.logger,
				func(e journal.Entry) error {
					if raw {
						_, err := fmt.Fprintln(out, e.Raw)
						return err
					}
					return printEntry(out, e)
				})
			if follow && errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "log file (default healing.debug_log_file)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new lines until interrupted")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the JSON lines unchanged")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "only show these categories; repeatable")
	cmd.Flags().StringVar(&session, "session", "", "only show one resolver session")
	return cmd
}

// printEntry renders "time level category message key=value..." with keys sorted.
func printEntry(out io.Writer, e journal.Entry) error {
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Format("15:04:05.000 "))
	}
	fmt.Fprintf(&b, "%-5s %-14s %s", e.Level, e.Category, e.Message)

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}
	_, err := fmt.Fprintln(out, b.String())
	return err
}
