package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/fwdesk/fwdesk/internal/config"
	"github.com/fwdesk/fwdesk/internal/directory"
	"github.com/fwdesk/fwdesk/internal/service"
)

func newTokenCmd() *cobra.Command {
	var (
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Obtain a session token from the terminal",
		Long:  "Authenticate against the configured directory and print a session token, useful for scripting against the API.",
		Example: `  fwdesk token --username alice            # prompts for password
  fwdesk token --username alice --password hunter2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(username, password)
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Directory account name (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	cmd.MarkFlagRequired("username")

	return cmd
}

func runToken(username, password string) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		password = string(pwBytes)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var dir directory.Client
	if cfg.Directory.URL != "" {
		dir = directory.NewLDAPClient(cfg.Directory)
	}
	authSvc := service.NewAuthService(dir, *cfg, logger)

	token, id, err := authSvc.Login(context.Background(), username, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Authenticated as %s (role: %s, valid for %s)\n",
		id.Username, id.Role, cfg.Auth.TokenTTL)
	fmt.Println(token)
	return nil
}
