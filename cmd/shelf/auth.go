package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func (c *cli) loginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long:  "Sign in with email and password. The password is read from the terminal without echo, or from the first line of stdin when it is not a terminal.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.env(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			out := cmd.OutOrStdout()
			in := bufio.NewReader(cmd.InOrStdin())
			if strings.TrimSpace(email) == "" {
				if email, err = promptLine(out, in, "Email: "); err != nil {
					return err
				}
			}
			password, err := readPassword(out, cmd.InOrStdin(), in)
			if err != nil {
				return err
			}

			user, err := env.Login(cmd.Context(), strings.TrimSpace(email), password)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Signed in as %s\n", user.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email (prompted when empty)")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.env(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			if err := env.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, user, err := c.session(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", user.Email, user.ID)
			if sess, ok := env.Client.Session(); ok && !sess.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "token expires %s\n", sess.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
			}
			fmt.Fprintf(out, "server %s\n", env.Client.BaseURL())
			return nil
		},
	}
}

func promptLine(out io.Writer, in *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(prompt), ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readPassword reads without echo when raw is a terminal and falls back to
// a plain line otherwise.
func readPassword(out io.Writer, raw io.Reader, in *bufio.Reader) (string, error) {
	if f, ok := raw.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, "Password: ")
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}
	return promptLine(out, in, "Password: ")
}
