package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/alldoizcode/connector/internal/admin"
	"github.com/alldoizcode/connector/internal/btp"
	"github.com/alldoizcode/connector/internal/claim"
	"github.com/alldoizcode/connector/internal/config"
	"github.com/alldoizcode/connector/internal/routing"
	"github.com/alldoizcode/connector/internal/store"
	"github.com/alldoizcode/connector/internal/telemetry"
)

func main() {
	var configFile string
	rootCmd := &cobra.Command{Use: "connector"}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(serveCmd(&configFile))
	rootCmd.AddCommand(peerCmd(&configFile))
	rootCmd.AddCommand(routeCmd(&configFile))
	rootCmd.AddCommand(settleCmd(&configFile))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// serveCmd runs the long-lived connector process: BTP server, optional
// messaging gateway, metrics endpoint, and configured peer dialers.
func serveCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the connector",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			n, err := buildNode(cfg)
			if err != nil {
				return fmt.Errorf("build node: %w", err)
			}

			addr := fmt.Sprintf(":%d", cfg.BTP.ServerPort)
			srv := &http.Server{Addr: addr, Handler: n.router}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go func() {
				n.log.WithField("addr", addr).Info("connector: listening")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					n.log.WithError(err).Error("connector: listener stopped")
				}
			}()

			<-ctx.Done()
			n.log.Info("connector: shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

// buildSurface constructs a standalone admin.Surface for one-shot CLI
// invocations (peer/route/settle), wired the same way buildNode wires its
// own Surface but without starting an HTTP listener.
func buildSurface(cfg *config.Config) (*admin.Surface, *telemetry.PrometheusEmitter, error) {
	log := newLogger(cfg.Logging.Level)
	em := telemetry.NewPrometheusEmitter(prometheus.NewRegistry())
	routes := routing.New()
	for _, rt := range cfg.Routes {
		routes.Add(rt.Prefix, rt.NextHop, rt.Priority)
	}
	fabric := btp.NewFabric(log, em, nil)
	claims := claim.NewManager(log, em, store.NewMemoryClaimStore(), loadSigners(log), defaultSubmitters(), nil)
	return admin.NewSurface(log, routes, fabric, claims), em, nil
}

func peerCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{Use: "peer"}

	add := &cobra.Command{
		Use:   "add <peer-id> <url> <secret>",
		Short: "add and dial a peer",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			surface, _, err := buildSurface(cfg)
			if err != nil {
				return err
			}
			if err := surface.AddPeer(cmd.Context(), btp.PeerTarget{PeerID: args[0], URL: args[1], Secret: []byte(args[2])}); err != nil {
				return err
			}
			fmt.Printf("peer %s scheduled to dial %s\n", args[0], args[1])
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <peer-id>",
		Short: "stop and remove a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			surface, _, err := buildSurface(cfg)
			if err != nil {
				return err
			}
			if err := surface.RemovePeer(args[0]); err != nil {
				return err
			}
			fmt.Printf("peer %s removed\n", args[0])
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status <peer-id>",
		Short: "query a peer's connection state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			surface, _, err := buildSurface(cfg)
			if err != nil {
				return err
			}
			result := surface.PeerStatus(args[0])
			fmt.Printf("peer=%s connected=%t state=%s\n", result.PeerID, result.Connected, result.State)
			return nil
		},
	}

	cmd.AddCommand(add, remove, status)
	return cmd
}

func routeCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{Use: "route"}

	add := &cobra.Command{
		Use:   "add <prefix> <next-hop> <priority>",
		Short: "install or update a route",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			priority, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("priority must be an integer: %w", err)
			}
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			surface, _, err := buildSurface(cfg)
			if err != nil {
				return err
			}
			if err := surface.AddRoute(args[0], args[1], priority); err != nil {
				return err
			}
			fmt.Printf("route %s -> %s (priority %d) installed\n", args[0], args[1], priority)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove <prefix>",
		Short: "remove every route configured for a prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			surface, _, err := buildSurface(cfg)
			if err != nil {
				return err
			}
			if err := surface.RemoveRoute(args[0]); err != nil {
				return err
			}
			fmt.Printf("route %s removed\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(add, remove)
	return cmd
}

func settleCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settle <peer-id> <chain> <channel-id> <amount>",
		Short: "initiate on-chain settlement of the latest stored claim",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseUint(args[3], 10, 64)
			if err != nil {
				return fmt.Errorf("amount must be a non-negative integer: %w", err)
			}
			cfg, err := config.Load(*configFile)
			if err != nil {
				return err
			}
			surface, _, err := buildSurface(cfg)
			if err != nil {
				return err
			}
			result := surface.InitiateSettlement(cmd.Context(), args[0], claim.Chain(args[1]), args[2], amount)
			fmt.Printf("settlement success=%t tx=%s error=%s\n", result.Success, result.TxHash, result.Error)
			return nil
		},
	}
	return cmd
}
