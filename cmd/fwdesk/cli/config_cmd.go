package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fwdesk/fwdesk/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage fwdesk configuration",
		Long:  "Initialize a default configuration file or display the current effective configuration.",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

// ---------- config init ----------

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default fwdesk.yaml configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")

	return cmd
}

const defaultConfigFile = `# fwdesk configuration

server:
  host: 0.0.0.0
  port: 3000
  cors_origins:
    - "*"
  login_rate_per_minute: 10

# LDAP directory used for credential verification and group lookup
directory:
  url: ""            # e.g. ldap://ldap.example.com
  base_dn: ""        # e.g. DC=example,DC=com
  domain_suffix: ""  # e.g. @example.com
  admin_group: ""    # substring matched against memberOf values
  bind_dn: ""        # service account for group lookups; anonymous if empty
  bind_password: ""
  timeout: 10s

auth:
  jwt_secret: ""     # Set via FWDESK_AUTH_JWT_SECRET env var
  token_ttl: 1h
  # Development-only login that skips the directory. Keep disabled in
  # production.
  dev_bypass:
    enabled: false
    username: ""
    password: ""
    role: admin

# Directory for the SQLite record store
data_dir: data
`

func runConfigInit(force bool) error {
	const path = "fwdesk.yaml"
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := os.WriteFile(path, []byte(defaultConfigFile), 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("Created %s\n", path)
	return nil
}

// ---------- config show ----------

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the current effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Secrets are not printed.
	cfg.Auth.JWTSecret = "<redacted>"
	if cfg.Directory.BindPassword != "" {
		cfg.Directory.BindPassword = "<redacted>"
	}
	if cfg.Auth.DevBypass.Password != "" {
		cfg.Auth.DevBypass.Password = "<redacted>"
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("render config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}
