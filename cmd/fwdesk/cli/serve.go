package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fwdesk/fwdesk/internal/config"
	"github.com/fwdesk/fwdesk/internal/directory"
	"github.com/fwdesk/fwdesk/internal/server"
	"github.com/fwdesk/fwdesk/internal/service"
	"github.com/fwdesk/fwdesk/internal/store"
)

const banner = `
  __            _           _
 / _|_ __ _____| | ___  ___| | __
| |_| V  V / _ \ |/ _ \/ __| |/ /
|  _|\_/\_/  __/ |  __/\__ \   <
|_|   \__/\___|_|\___||___/_|\_\
`

func newServeCmd() *cobra.Command {
	var (
		port    int
		host    string
		dev     bool
		dataDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the fwdesk API server",
		Long:  "Start the HTTP server that exposes the firewall rule request API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 3000, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Data directory for the record store (default: ./data)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	viper.BindPFlag("data_dir", cmd.Flags().Lookup("data-dir"))

	return cmd
}

func runServe(dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	logLevel := slog.LevelInfo
	if dev {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "data"
	}
	st, err := store.New(dataDir)
	if err != nil {
		return fmt.Errorf("init record store: %w", err)
	}
	logger.Info("record store initialized", "path", dataDir)

	var dir directory.Client
	if cfg.Directory.URL != "" {
		dir = directory.NewLDAPClient(cfg.Directory)
		logger.Info("directory configured", "url", cfg.Directory.URL, "base_dn", cfg.Directory.BaseDN)
	}
	if cfg.Auth.DevBypass.Enabled {
		logger.Warn("dev bypass credential is ENABLED - do not run this in production",
			"username", cfg.Auth.DevBypass.Username)
	}

	authSvc := service.NewAuthService(dir, *cfg, logger)
	reqSvc := service.NewRequestService(st, logger)

	srv := server.New(*cfg, st, authSvc, reqSvc, logger)

	fmt.Printf("→ fwdesk\n")
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ API:     http://%s:%d/api\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Health:  http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()

	return srv.ListenAndServe()
}
