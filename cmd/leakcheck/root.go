package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/thesyncim/rtcguard/internal/config"
	"github.com/thesyncim/rtcguard/internal/observability"
	"github.com/thesyncim/rtcguard/pkg/guard"
)

// app carries state shared by subcommands once the root has loaded it.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	root := &cobra.Command{
		Use:          "leakcheck",
		Short:        "Audit and prevent WebRTC local address disclosure",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./leakcheck.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	flags.String("fallback", "strict", "what to do when no relay server is configured (strict, keep-discovery)")
	flags.Bool("relay-only", false, "force the relay ICE transport policy")
	_ = a.v.BindPFlag("logger.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("logger.format", flags.Lookup("log-format"))
	_ = a.v.BindPFlag("guard.fallback", flags.Lookup("fallback"))
	_ = a.v.BindPFlag("guard.relay_only", flags.Lookup("relay-only"))

	root.AddCommand(
		newServeCmd(a),
		newSanitizeCmd(a),
		newRedactCmd(a),
		newAuditCmd(a),
		newShimCmd(a),
	)
	return root
}

func (a *app) load() error {
	if err := config.ReadFile(a.v, a.cfgFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	observability.InitializeLogger(cfg.Logger)
	return nil
}

func (a *app) logger() *zap.Logger {
	return observability.GetLogger()
}

// guard builds a Guard over factory using the configured policy.
func (a *app) guard(factory guard.Factory) (*guard.Guard, error) {
	opts, err := a.cfg.Guard.Options()
	if err != nil {
		return nil, err
	}
	opts = append(opts, guard.WithLogger(a.logger().Named("guard")))
	g, err := guard.New(factory, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create guard: %w", err)
	}
	return g, nil
}
