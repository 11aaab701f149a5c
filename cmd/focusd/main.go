package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/focus-timer/internal/config"
)

var Version = "dev"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "focusd",
		Short:         "Focus timer session server",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(issueKeyCmd())
	rootCmd.AddCommand(revokeKeyCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := openServices(ctx, cfg, nil, logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := svc.Close(); cerr != nil {
					logger.Error("failed to close storage", "error", cerr)
				}
			}()

			server := newHTTPServer(fmt.Sprintf(":%d", cfg.HTTPPort), svc.handler())
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("failed to shutdown server", "error", err)
				}
			}()

			logger.Info("focus timer API listening", "addr", server.Addr, "timezone", cfg.Location.String())
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and print the schema status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			svc, err := openServices(cmd.Context(), cfg, nil, newLogger(cfg.LogLevel))
			if err != nil {
				return err
			}
			defer svc.Close()

			status, err := svc.storage.MigrationStatus(cmd.Context())
			if err != nil {
				return fmt.Errorf("read migration status: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "schema version: %s\n", status.CurrentVersion)
			for _, applied := range status.AppliedMigrations {
				fmt.Fprintf(out, "  %s applied %s\n", applied.Version, applied.AppliedAt.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
}

func issueKeyCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "issue-key",
		Short: "Issue an API key for an owner and print its token once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			svc, err := openServices(cmd.Context(), cfg, nil, newLogger(cfg.LogLevel))
			if err != nil {
				return err
			}
			defer svc.Close()

			issued, err := svc.auth.IssueKey(cmd.Context(), owner)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "key_id: %s\nowner_id: %s\ntoken: %s\n", issued.KeyID, issued.OwnerID, issued.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner id the key authenticates as")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func revokeKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke-key <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			svc, err := openServices(cmd.Context(), cfg, nil, newLogger(cfg.LogLevel))
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.auth.RevokeKey(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
			return nil
		},
	}
}
