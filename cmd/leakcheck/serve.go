package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thesyncim/rtcguard/cmd/leakcheck/server"
	"github.com/thesyncim/rtcguard/pkg/guard"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the leak-check page and signaling endpoints",
		Long: `Serves a test page that opens a peer connection with the configured ICE
servers and sends its offer to this process, which answers through the guard
and records what the browser disclosed. Reports are listed at /reports.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.logger()

			api, err := guard.NewAPI(
				guard.WithAPILogger(logger.Named("pion")),
				guard.WithMulticastDNS(a.cfg.Guard.MulticastDNS),
			)
			if err != nil {
				return err
			}
			g, err := a.guard(api)
			if err != nil {
				return err
			}

			srv, err := server.NewServer(server.Config{
				Addr:          a.cfg.Server.Addr,
				ReadTimeout:   a.cfg.Server.ReadTimeout,
				WriteTimeout:  a.cfg.Server.WriteTimeout,
				GatherTimeout: a.cfg.Server.GatherTimeout,
				ICEServers:    a.cfg.Guard.WebRTC(),
				Guard:         g,
				Logger:        logger.Named("server"),
			})
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			addr, err := srv.Start()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Leak check ready: open http://%s in a browser\n", addr)

			<-cmd.Context().Done()
			logger.Info("shutting down", zap.Int("reports", len(srv.Reports().List())))

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	_ = a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}
