// authctl runs operator tasks against the auth database: migrations, account
// locks and session revocation, and seeding a local user.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "authctl",
		Short:         "Operator tooling for the auth service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		migrateCmd(),
		lockCmd(),
		unlockCmd(),
		revokeSessionsCmd(),
		seedCmd(),
	)
	return cmd
}

func migrateCmd() *cobra.Command {
	var statusOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.migrate(cmd.Context(), cmd.OutOrStdout(), statusOnly)
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "Print the current schema version without migrating")
	return cmd
}

func lockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock EMAIL",
		Short: "Lock an account and end its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.auth.LockAccount(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "locked %s\n", args[0])
			return nil
		},
	}
}

func unlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock EMAIL",
		Short: "Unlock an account and clear its failed attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.auth.UnlockAccount(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unlocked %s\n", args[0])
			return nil
		},
	}
}

func revokeSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke-sessions EMAIL",
		Short: "Sign a user out of every device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.auth.RevokeAllSessions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %d session(s) for %s\n", n, args[0])
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	var emailAddr, pw, name string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a confirmed user in the local dev database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if a.cfg.Env != "local" {
				return fmt.Errorf("seed only runs with ENV=local (got %q)", a.cfg.Env)
			}
			return a.seed(cmd.Context(), cmd.OutOrStdout(), emailAddr, pw, name)
		},
	}
	cmd.Flags().StringVar(&emailAddr, "email", "seed@test.local", "Email of the seeded user")
	cmd.Flags().StringVar(&pw, "password", "password123", "Password of the seeded user")
	cmd.Flags().StringVar(&name, "name", "Seed User", "Display name of the seeded user")
	return cmd
}
