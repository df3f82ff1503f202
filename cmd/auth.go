package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/skyfeed/config"
	"github.com/otherjamesbrown/skyfeed/credentials"
)

// AuthStatus is the output of 'auth status'.
type AuthStatus struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	Service    string `json:"service" yaml:"service"`
	Source     string `json:"source,omitempty" yaml:"source,omitempty"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewAuthCommand creates the 'auth' command group.
func NewAuthCommand(deps *Deps) *cobra.Command {
	deps = orDefault(deps)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the bot account's app password",
		Long: `Manage the app password the bot signs in to Bluesky with.

Passwords are stored in the ` + credentials.Description() + `, keyed by
the account identifier (bluesky.identifier or --identifier).

The ` + credentials.EnvAppPassword + ` environment variable takes precedence over
the stored password.`,
	}

	cmd.AddCommand(newAuthLoginCommand(deps))
	cmd.AddCommand(newAuthLogoutCommand(deps))
	cmd.AddCommand(newAuthStatusCommand(deps))
	return cmd
}

func newAuthLoginCommand(deps *Deps) *cobra.Command {
	var (
		identifier string
		verify     bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an app password",
		Long: `Prompt for an app password and store it in the system keyring.

Create app passwords under Settings > Privacy and security > App passwords.
With --verify the password is checked by opening a session first.

Examples:
  skyfeed auth login
  skyfeed auth login --identifier theblue.report --verify`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, deps)
			if err != nil {
				return err
			}
			if identifier != "" {
				cfg.Bluesky.Identifier = identifier
			}
			if cfg.Bluesky.Identifier == "" {
				return fmt.Errorf("%w: pass --identifier or set bluesky.identifier", credentials.ErrNoIdentifier)
			}

			password, err := deps.ReadPassword(fmt.Sprintf("App password for %s: ", cfg.Bluesky.Identifier))
			if err != nil {
				return err
			}
			if password == "" {
				return errors.New("no password entered")
			}

			if verify {
				if err := deps.VerifyLogin(commandContext(cmd), cfg, password); err != nil {
					return fmt.Errorf("verifying password: %w", err)
				}
			}

			store := deps.Credentials()
			if err := store.Save(cfg.Bluesky.Identifier, password); err != nil {
				return fmt.Errorf("saving password: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Login successful!")
			fmt.Fprintf(out, "  Account:  %s\n", cfg.Bluesky.Identifier)
			fmt.Fprintf(out, "  Password: %s\n", credentials.MaskCredential(password))
			fmt.Fprintf(out, "  Stored in: %s\n", credentials.Description())
			return nil
		},
	}

	cmd.Flags().StringVar(&identifier, "identifier", "", "Account handle or DID (defaults to bluesky.identifier)")
	cmd.Flags().BoolVar(&verify, "verify", false, "Check the password against the PDS before storing it")
	return cmd
}

func newAuthLogoutCommand(deps *Deps) *cobra.Command {
	var identifier string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored app password",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, deps)
			if err != nil {
				return err
			}
			if identifier != "" {
				cfg.Bluesky.Identifier = identifier
			}

			if err := deps.Credentials().Delete(cfg.Bluesky.Identifier); err != nil {
				return fmt.Errorf("removing password: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Logged out successfully.")
			if os.Getenv(credentials.EnvAppPassword) != "" {
				fmt.Fprintf(out, "\nNote: %s is still set.\n", credentials.EnvAppPassword)
				fmt.Fprintf(out, "Unset it with: unset %s\n", credentials.EnvAppPassword)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&identifier, "identifier", "", "Account handle or DID (defaults to bluesky.identifier)")
	return cmd
}

func newAuthStatusCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where the app password comes from",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, deps)
			if err != nil {
				return err
			}
			status := authStatus(deps.Credentials(), cfg)
			return WriteOutput(cmd.OutOrStdout(), cfg.OutputFormat, status, func(w io.Writer) error {
				fmt.Fprintln(w, "Authentication Status")
				fmt.Fprintln(w, "=====================")
				fmt.Fprintf(w, "  Account:  %s\n", valueOrDefault(status.Identifier, "(not set)"))
				fmt.Fprintf(w, "  Service:  %s\n", status.Service)
				if status.Error != "" {
					fmt.Fprintf(w, "  Password: none (%s)\n", status.Error)
					fmt.Fprintln(w, "\nNot authenticated. Run 'skyfeed auth login' to store an app password.")
					return nil
				}
				fmt.Fprintf(w, "  Password: %s (from %s)\n", status.Password, status.Source)
				return nil
			})
		},
	}
}

func authStatus(store *credentials.Store, cfg *config.Config) AuthStatus {
	status := AuthStatus{Identifier: cfg.Bluesky.Identifier, Service: cfg.Bluesky.Service}
	pw, source, err := store.AppPassword(cfg.Bluesky.Identifier)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Source = string(source)
	status.Password = credentials.MaskCredential(pw)
	return status
}

func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
