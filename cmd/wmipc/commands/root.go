package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/bryanchriswhite/wmipc/internal/config"
	"github.com/bryanchriswhite/wmipc/internal/logger"
	"github.com/bryanchriswhite/wmipc/internal/x11"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "wmipc",
		Short: "wmipc - talk to i3-compatible window managers over IPC",
		Long: `wmipc speaks the i3 IPC protocol ("i3-ipc" magic, length and type
header, JSON payload) to i3, sway and compatible window managers.

Features:
  • Send commands and queries, print beautified replies
  • Subscribe to window manager events
  • Reformat and sniff JSON from files or stdin
  • Drive status line commands (i3bar protocol or plain text)
  • HTTP/WebSocket bridge with Prometheus metrics`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// exitError ends the process with code after printing err (when set).
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/wmipc/config.yaml)")
	rootCmd.PersistentFlags().StringP("socket", "s", "", "IPC socket path (default: $I3SOCK, $SWAYSOCK or the X11 root window)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")

	viper.BindPFlag("socket_path", rootCmd.PersistentFlags().Lookup("socket"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", ee.err)
			}
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// loadConfig loads the configuration, applies flag overrides and sets up
// logging.
func loadConfig() (*config.Manager, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if socket := viper.GetString("socket_path"); socket != "" {
		if err := configMgr.SetSocketPath(socket); err != nil {
			return nil, err
		}
	}
	if level := viper.GetString("log_level"); level != "" {
		if err := configMgr.SetLogLevel(level); err != nil {
			return nil, err
		}
	}

	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.WithComponent("cli").Debug().
		Str("config", configMgr.GetConfigPath()).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")

	return configMgr, nil
}

// socketPath loads the configuration and resolves the IPC socket.
func socketPath() (*config.Config, string, error) {
	configMgr, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	cfg := configMgr.Get()
	path, err := x11.ResolveSocketPath(cfg.SocketPath)
	if err != nil {
		return cfg, "", err
	}
	return cfg, path, nil
}
