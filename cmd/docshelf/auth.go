package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/docshelf/docshelf/pkg/protocol"
)

// prompt reads one line from stdin after printing label.
func prompt(r *bufio.Reader, label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads a password without echo when stdin is a terminal.
func promptPassword(r *bufio.Reader) (string, error) {
	if !isTerminal(os.Stdin) {
		return prompt(r, "Password: ")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

func newLoginCmd(c *cli) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			r := bufio.NewReader(os.Stdin)
			var err error
			if email == "" {
				if email, err = prompt(r, "Email: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = promptPassword(r); err != nil {
					return err
				}
			}

			resp, err := c.app.Store.Login(ctx, email, password)
			if err != nil {
				return err
			}
			return c.done(cmd, fmt.Sprintf("Logged in as %s. Token saved to %s", resp.User.Email, c.app.Config.TokenPath()))
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when empty)")
	return cmd
}

func newRegisterCmd(c *cli) *cobra.Command {
	var in protocol.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			if in.Password == "" {
				pw, err := promptPassword(bufio.NewReader(os.Stdin))
				if err != nil {
					return err
				}
				in.Password = pw
			}

			resp, err := c.app.Store.Register(ctx, in)
			if err != nil {
				return err
			}
			return c.done(cmd, fmt.Sprintf("Account created for %s", resp.User.Email))
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "Account password (prompted when empty)")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "Last name")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.Session.Logout(); err != nil {
				return err
			}
			return c.done(cmd, "Logged out")
		},
	}
}

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Verify the saved session and show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.signalContext(cmd)
			defer cancel()

			user, err := c.app.RequireSession(ctx)
			if err != nil {
				return sessionError(err)
			}
			return c.render(cmd, user, func(t table.Writer) {
				t.AppendRows([]table.Row{
					{"ID", user.ID},
					{"Email", user.Email},
					{"Name", orDash(user.Name)},
					{"Role", orDash(user.Role)},
				})
			})
		},
	}
}
