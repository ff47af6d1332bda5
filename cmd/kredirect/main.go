package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	slogcontext "github.com/veqryn/slog-context"

	"kredirect/internal/kredirect"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kredirect [sub-command]",
		Short: "Redirect clients to the latest Linux kernel and ZFS-compatible releases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := baseLogger(cmd)
			if err != nil {
				return fmt.Errorf("could not build logger: %w", err)
			}
			slog.SetDefault(logger)
			cmd.SetContext(slogcontext.NewCtx(cmd.Context(), logger))
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", getenvDefault("KREDIRECT_CONFIG", ""), "path to kredirect.yaml (defaults apply when empty)")
	registerLoggingFlags(root)

	root.AddCommand(newServeCmd(), newResolveCmd())
	return root
}

func loadConfig(cmd *cobra.Command) (kredirect.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return kredirect.Config{}, err
	}
	cfg, err := kredirect.LoadConfig(path)
	if err != nil {
		return kredirect.Config{}, fmt.Errorf("load config %q: %w", path, err)
	}
	return cfg, nil
}

func getenvDefault(name, def string) string {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return v
}
