// File: cmd/resolve.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/healer/api/schemas"
)

func healingFlags(cmd *cobra.Command, opts *schemas.HealingOptions) {
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-selector timeout (default healing.timeout)")
	cmd.Flags().StringVar(&opts.ContextSelector, "context", "", "root selector for fuzzy candidates (default healing.context_selector)")
}

// newResolveCmd resolves selectors against a live page.
func newResolveCmd(a *app) *cobra.Command {
	var (
		url       string
		selectors []string
		opts      schemas.HealingOptions
	)
	cmd := &cobra.Command{
		Use:   "resolve [selectors...]",
		Short: "Resolve selectors against a live page, healing the ones that broke",
		Example: `  healer resolve --url https://example.test/login -s "#user-name" -s "//button[id='login']"
  healer resolve --url https://example.test --driver playwright "#search"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			page, err := a.openLive(ctx, url)
			if err != nil {
				return err
			}
			defer page.Close()
			return a.resolveAll(ctx, cmd.OutOrStdout(), page, append(selectors, args...), opts)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "page to load (required)")
	cmd.Flags().StringSliceVarP(&selectors, "selector", "s", nil, "selector to resolve; repeatable")
	healingFlags(cmd, &opts)
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

// newCheckCmd resolves selectors against an HTML snapshot without a browser.
func newCheckCmd(a *app) *cobra.Command {
	var (
		htmlPath  string
		selectors []string
		opts      schemas.HealingOptions
	)
	cmd := &cobra.Command{
		Use:   "check [selectors...]",
		Short: "Resolve selectors against a saved HTML snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := openStatic(htmlPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return a.resolveAll(cmd.Context(), cmd.OutOrStdout(), page, append(selectors, args...), opts)
		},
	}
	cmd.Flags().StringVar(&htmlPath, "html", "", `HTML snapshot to load, or "-" for stdin (required)`)
	cmd.Flags().StringSliceVarP(&selectors, "selector", "s", nil, "selector to resolve; repeatable")
	healingFlags(cmd, &opts)
	_ = cmd.MarkFlagRequired("html")
	return cmd
}
