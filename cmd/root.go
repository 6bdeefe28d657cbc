// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/healer/internal/config"
	"github.com/xkilldash9x/healer/internal/observability"
)

// app carries state shared by every subcommand of one root command instance.
type app struct {
	cfgFile string
	v       *viper.Viper
	cfg     config.Interface
	logger  *zap.Logger
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:           "healer",
		Short:         "Healer resolves UI element locators and repairs the ones that broke.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	flags.String("driver", string(config.DriverChromedp), "browser driver: chromedp or playwright")
	flags.Bool("headless", true, "run the browser without a window")
	flags.Bool("debug-healing", false, "append every healing line to the debug log file")
	root.SetVersionTemplate(`{{printf "healer version %s\n" .Version}}`)

	root.AddCommand(
		newResolveCmd(a),
		newCheckCmd(a),
		newRunCmd(a),
		newLogsCmd(a),
		newVersionCmd(),
	)
	return root, a
}

// Execute runs the root command with ctx and logs the failure, if any.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			observability.GetLogger().Error("Command execution failed.", zap.Error(err))
			fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		}
		return err
	}
	return nil
}

// load reads the config file, environment and flags, then initializes logging.
// Logs go to stderr so stdout carries only command output.
func (a *app) load(cmd *cobra.Command) error {
	v := a.v
	config.SetDefaults(v)

	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("HEALER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	bindings := map[string]string{
		"browser.driver":    "driver",
		"browser.headless":  "headless",
		"healing.debug_log": "debug-healing",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}

	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	observability.Initialize(cfg.Logger(), zapcore.Lock(zapcore.AddSync(cmd.ErrOrStderr())))
	a.logger = observability.GetLogger()
	a.logger.Debug("Configuration loaded.",
		zap.String("driver", string(cfg.Browser().Driver)),
		zap.Bool("debug_healing", cfg.Healing().DebugLog))
	return nil
}
