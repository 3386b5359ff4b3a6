// Package admin implements picshare-admin, the operator CLI that works on the
// store directly instead of going through the gRPC service.
//
// A rename done here does not reach the session table of a running server;
// sessions of the old name there stay bound to it until they expire.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/dmitrijs2005/picshare/internal/common"
	"github.com/dmitrijs2005/picshare/internal/server/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Accounts is the subset of the user service the CLI needs.
type Accounts interface {
	Register(ctx context.Context, userName, password string) (*models.User, error)
	SetPassword(ctx context.Context, userName, newPassword string) error
	Rename(ctx context.Context, oldName, newName string) (int64, error)
}

// Reconciler purges media records whose blob is gone.
type Reconciler interface {
	ReconcileAll(ctx context.Context) (map[string]int, error)
}

type Backend interface {
	Migrate(ctx context.Context) error
	Accounts() Accounts
	Reconciler() Reconciler
	Close() error
}

// Opener builds a Backend from a config file path and an optional DSN
// override. It is called once per command, after flags are parsed.
type Opener func(ctx context.Context, configPath, dsn string) (Backend, error)

// Test seams.
var (
	readPassword = term.ReadPassword
	stdinFd      = func() int { return int(os.Stdin.Fd()) }
)

var errPasswordMismatch = errors.New("passwords do not match")

type rootOptions struct {
	configPath string
	dsn        string
}

func NewRootCmd(open Opener) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "picshare-admin",
		Short: "Administer a picshare store",
		Long: `Operator tool for the picshare store.

Settings come from the JSON file given with --config and from PICSHARE_*
environment variables, like the server. --dsn overrides the database.

Examples:
  # Apply schema migrations
  picshare-admin migrate

  # Create an account (prompts for the password)
  picshare-admin register Luffy

  # Rename an account and move its media
  picshare-admin rename Luffy Monkey

  # Drop records whose blob is gone
  picshare-admin reconcile`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to JSON config file")
	root.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "database DSN (overrides config)")

	withBackend := func(fn func(cmd *cobra.Command, args []string, b Backend) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			b, err := open(cmd.Context(), opts.configPath, opts.dsn)
			if err != nil {
				return err
			}
			defer b.Close()
			return fn(cmd, args, b)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply schema migrations",
			Args:  cobra.NoArgs,
			RunE:  withBackend(runMigrate),
		},
		&cobra.Command{
			Use:   "register <username>",
			Short: "Create an account",
			Args:  cobra.ExactArgs(1),
			RunE:  withBackend(runRegister),
		},
		&cobra.Command{
			Use:   "passwd <username>",
			Short: "Set a new password without the old one",
			Args:  cobra.ExactArgs(1),
			RunE:  withBackend(runPasswd),
		},
		&cobra.Command{
			Use:   "rename <old> <new>",
			Short: "Rename an account and reassign its media",
			Args:  cobra.ExactArgs(2),
			RunE:  withBackend(runRename),
		},
		&cobra.Command{
			Use:   "reconcile",
			Short: "Purge media records whose blob is missing",
			Args:  cobra.NoArgs,
			RunE:  withBackend(runReconcile),
		},
	)

	return root
}

func runMigrate(cmd *cobra.Command, _ []string, b Backend) error {
	if err := b.Migrate(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date")
	return nil
}

func runRegister(cmd *cobra.Command, args []string, b Backend) error {
	password, err := promptNewPassword(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := b.Accounts().Register(cmd.Context(), args[0], string(password))
	if err != nil {
		return fmt.Errorf("register %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (id %d)\n", u.UserName, u.ID)
	return nil
}

func runPasswd(cmd *cobra.Command, args []string, b Backend) error {
	password, err := promptNewPassword(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := b.Accounts().SetPassword(cmd.Context(), args[0], string(password)); err != nil {
		return fmt.Errorf("passwd %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s\n", args[0])
	return nil
}

func runRename(cmd *cobra.Command, args []string, b Backend) error {
	moved, err := b.Accounts().Rename(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("rename %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s, %d media reassigned\n", args[0], args[1], moved)
	return nil
}

func runReconcile(cmd *cobra.Command, _ []string, b Backend) error {
	purged, err := b.Reconciler().ReconcileAll(cmd.Context())
	if err != nil {
		return err
	}

	names := make([]string, 0, len(purged))
	for n := range purged {
		names = append(names, n)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tPURGED")
	total := 0
	for _, n := range names {
		fmt.Fprintf(w, "%s\t%d\n", n, purged[n])
		total += purged[n]
	}
	fmt.Fprintf(w, "total\t%d\n", total)
	return w.Flush()
}

// promptNewPassword reads a password twice from the terminal.
func promptNewPassword(w io.Writer) ([]byte, error) {
	fmt.Fprint(w, "Password: ")
	pw, err := readPassword(stdinFd())
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}

	fmt.Fprint(w, "Confirm password: ")
	confirm, err := readPassword(stdinFd())
	fmt.Fprintln(w)
	if err != nil {
		common.WipeByteArray(pw)
		return nil, err
	}
	defer common.WipeByteArray(confirm)

	if string(pw) != string(confirm) {
		common.WipeByteArray(pw)
		return nil, errPasswordMismatch
	}
	return pw, nil
}
