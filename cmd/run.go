// File: cmd/run.go
package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/healer/api/schemas"
	"github.com/xkilldash9x/healer/internal/script"
)

// stepLine is one line of run output.
type stepLine struct {
	Step     int    `json:"step"`
	Action   string `json:"action"`
	Selector string `json:"selector"`
	Value    any    `json:"value,omitempty"`
	Elapsed  string `json:"elapsed"`
}

// newRunCmd executes a YAML step script against a live page or a snapshot.
func newRunCmd(a *app) *cobra.Command {
	var scriptPath, url, htmlPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a YAML step script through the healing action surface",
		Example: `  healer run --script login.yaml
  healer run --script login.yaml --url https://staging.example.test/login
  healer run --script login.yaml --html snapshot.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := script.LoadFile(scriptPath)
			if err != nil {
				return err
			}

			var page schemas.Page
			if htmlPath != "" {
				if page, err = openStatic(htmlPath, cmd.InOrStdin()); err != nil {
					return err
				}
			} else {
				if url == "" {
					url = s.URL
				}
				if url == "" {
					return errors.New("no page to run against: set url in the script, --url or --html")
				}
				live, err := a.openLive(ctx, url)
				if err != nil {
					return err
				}
				defer live.Close()
				page = live
			}

			eng := a.newEngine(page)
			defer eng.close()
			results, runErr := script.NewRunner(eng.actions, a.logger).Run(ctx, s)

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, r := range results {
				line := stepLine{Step: r.Index + 1, Action: r.Action, Selector: r.Selector, Value: r.Value, Elapsed: r.Elapsed.String()}
				if el, ok := r.Value.(schemas.Element); ok {
					line.Value = el.Key()
				}
				if err := enc.Encode(line); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&scriptPath, "script", "", "YAML step script (required)")
	cmd.Flags().StringVar(&url, "url", "", "page to load; overrides the script's url")
	cmd.Flags().StringVar(&htmlPath, "html", "", `run against an HTML snapshot instead of a browser ("-" for stdin)`)
	cmd.MarkFlagsMutuallyExclusive("url", "html")
	_ = cmd.MarkFlagRequired("script")
	return cmd
}
